// Package cmd - batch command
package cmd

import (
	"bufio"
	"bytes"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"premium-rater/core/rating"
	"premium-rater/internal/logging"
)

type batchOptions struct {
	*rootOptions

	input   string
	workers int
}

func newBatchCmd(root *rootOptions) *cobra.Command {
	o := &batchOptions{rootOptions: root}

	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Rate a file of requests, one JSON object per line",
		Long: `Rate every request in a JSON lines file. Each line is rated
independently; a bad line reports its error and does not stop the batch.

Examples:
  premium-rater batch --input requests.jsonl
  cat requests.jsonl | premium-rater batch --input - --format json`,
		Args: cobra.NoArgs,
		RunE: o.run,
	}

	batchCmd.Flags().StringVarP(&o.input, "input", "i", "", "JSON lines file, - for stdin [REQUIRED]")
	batchCmd.Flags().IntVarP(&o.workers, "workers", "w", 0, "concurrent workers (default from config)")
	_ = batchCmd.MarkFlagRequired("input")

	return batchCmd
}

func (o *batchOptions) run(cmd *cobra.Command, args []string) error {
	data, err := readInput(cmd, o.input)
	if err != nil {
		return err
	}

	reqs, parseErrs, err := parseLines(data)
	if err != nil {
		return err
	}

	t, err := o.loadTables(cmd.Context())
	if err != nil {
		return err
	}
	engine, err := rating.NewEngine(t, rating.WithLogger(logging.Named("rating")))
	if err != nil {
		return err
	}

	f, err := o.formatter()
	if err != nil {
		return err
	}

	workers := o.workers
	if workers <= 0 {
		workers = o.cfg.Server.Workers
	}

	results, err := engine.RateBatch(cmd.Context(), reqs, workers)
	if err != nil {
		return err
	}
	for i, perr := range parseErrs {
		results[i].Quote, results[i].Err = nil, perr
	}

	logging.Info("batch rated", zap.Int("requests", len(results)), zap.Int("unparsed", len(parseErrs)))
	return f.RenderBatch(cmd.OutOrStdout(), results)
}

// parseLines decodes one request per non-blank line. Lines that are not
// JSON objects are kept as empty requests and reported in the error map.
func parseLines(data []byte) ([]rating.RawRequest, map[int]error, error) {
	var reqs []rating.RawRequest
	parseErrs := make(map[int]error)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		raw, err := rating.ParseRequest(line)
		if err != nil {
			parseErrs[len(reqs)] = err
			raw = rating.RawRequest{}
		}
		reqs = append(reqs, raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read input: %w", err)
	}
	return reqs, parseErrs, nil
}
