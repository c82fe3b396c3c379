package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"premium-rater/core/output"
	"premium-rater/core/rating"
	"premium-rater/core/tables"
	"premium-rater/internal/errors"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRateFlags(t *testing.T) {
	out, err := run(t, "", "rate",
		"--asset-size", "1200000", "--limit", "5000000", "--retention", "1000000",
		"--industry", "Hazard Group 2", "--format", "json")
	require.NoError(t, err)

	var q rating.Quote
	require.NoError(t, json.Unmarshal([]byte(out), &q))
	assert.Equal(t, int64(6311), q.Premium)
}

func TestRateTextOutput(t *testing.T) {
	out, err := run(t, "", "rate",
		"--asset-size", "50000000", "--limit", "23000", "--retention", "0", "--industry", "Hazard Group 1")
	require.NoError(t, err)
	assert.Contains(t, out, "Premium quote (tables: builtin)")
	assert.Contains(t, out, "7,839")
}

func TestRateMissingFlag(t *testing.T) {
	_, err := run(t, "", "rate", "--asset-size", "1000", "--limit", "1000", "--industry", "Hazard Group 1")
	require.Error(t, err)
	assert.Equal(t, "Missing required field: Retention", err.Error())
}

func TestRateInputStdin(t *testing.T) {
	out, err := run(t,
		`{"Asset Size": 60000, "Limit": 400000, "Retention": 5000, "Industry": "Hazard Group 3"}`,
		"rate", "--input", "-", "-f", "json")
	require.NoError(t, err)

	var q rating.Quote
	require.NoError(t, json.Unmarshal([]byte(out), &q))
	assert.Equal(t, int64(4069), q.Premium)
}

func TestRateRejectsFloatInput(t *testing.T) {
	_, err := run(t,
		`{"Asset Size": 60000, "Limit": 400000.0, "Retention": 5000, "Industry": "Hazard Group 3"}`,
		"rate", "--input", "-")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeInvalidLimit))
}

func TestBatch(t *testing.T) {
	input := strings.Join([]string{
		`{"Asset Size": 1200000, "Limit": 5000000, "Retention": 1000000, "Industry": "Hazard Group 2"}`,
		``,
		`not json`,
		`{"Asset Size": 50000000, "Limit": 23000, "Retention": 0, "Industry": "Hazard Group 1"}`,
	}, "\n")

	out, err := run(t, input, "batch", "--input", "-", "--workers", "2", "--format", "json")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)

	var decoded []output.BatchLine
	for _, line := range lines {
		var l output.BatchLine
		require.NoError(t, json.Unmarshal([]byte(line), &l))
		decoded = append(decoded, l)
	}

	require.NotNil(t, decoded[0].Premium)
	assert.Equal(t, int64(6311), *decoded[0].Premium)
	assert.NotNil(t, decoded[1].Error)
	require.NotNil(t, decoded[2].Premium)
	assert.Equal(t, int64(7839), *decoded[2].Premium)
}

func TestBatchRequiresInput(t *testing.T) {
	_, err := run(t, "", "batch")
	assert.Error(t, err)
}

func TestTablesExportAndRateFromCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "calibration")

	_, err := run(t, "", "tables", "export", "--to", "csv", "--out", dir)
	require.NoError(t, err)
	for _, name := range []string{tables.AssetSizeFile, tables.LimitRetentionFile, tables.IndustryFile} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	out, err := run(t, "", "rate", "--tables", dir, "-f", "json",
		"--asset-size", "1200000", "--limit", "5000000", "--retention", "1000000", "--industry", "Hazard Group 2")
	require.NoError(t, err)

	var q rating.Quote
	require.NoError(t, json.Unmarshal([]byte(out), &q))
	assert.Equal(t, int64(6311), q.Premium)
	assert.Equal(t, "csv:"+dir, q.TableSource)
}

func TestTablesShow(t *testing.T) {
	out, err := run(t, "", "tables", "show", "--format", "json")
	require.NoError(t, err)

	var doc tables.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Len(t, doc.Industry, 3)

	out, err = run(t, "", "tables", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "asset_size:")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rater.json")

	out, err := run(t, "", "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"source": "builtin"`)

	_, err = run(t, "", "config", "init", path)
	assert.Error(t, err, "existing file is not overwritten")

	_, err = run(t, "", "config", "init", "--force", path)
	assert.NoError(t, err)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "premium-rater version "+Version+"\n", out)
}

func TestUnknownFormat(t *testing.T) {
	_, err := run(t, "", "rate", "--format", "html",
		"--asset-size", "1000", "--limit", "1000", "--retention", "0", "--industry", "Hazard Group 1")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeConfig))
}
