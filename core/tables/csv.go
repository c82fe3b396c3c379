package tables

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"premium-rater/internal/errors"
)

// CSV file names inside a calibration directory
const (
	AssetSizeFile      = "asset_size.csv"
	LimitRetentionFile = "limit_retention_factor.csv"
	IndustryFile       = "industry_factor.csv"
)

// CSVProvider reads a directory holding the three calibration CSV files.
// Each file has a header row; columns are matched by name.
type CSVProvider struct {
	Dir string
}

// NewCSVProvider creates a provider for dir
func NewCSVProvider(dir string) *CSVProvider {
	return &CSVProvider{Dir: dir}
}

// Source describes the provider
func (p *CSVProvider) Source() string {
	return "csv:" + p.Dir
}

// Files lists the paths the provider reads
func (p *CSVProvider) Files() []string {
	return []string{
		filepath.Join(p.Dir, AssetSizeFile),
		filepath.Join(p.Dir, LimitRetentionFile),
		filepath.Join(p.Dir, IndustryFile),
	}
}

// Tables implements Provider
func (p *CSVProvider) Tables(ctx context.Context) (*Tables, error) {
	var c columns
	var err error

	c.assetSizes, c.baseRates, err = readCurveCSV(filepath.Join(p.Dir, AssetSizeFile), "asset_size", "base_rate")
	if err != nil {
		return nil, errors.TableLoad(p.Source(), err)
	}
	c.limits, c.factors, err = readCurveCSV(filepath.Join(p.Dir, LimitRetentionFile), "limit", "factor")
	if err != nil {
		return nil, errors.TableLoad(p.Source(), err)
	}
	c.industry, err = readIndustryCSV(filepath.Join(p.Dir, IndustryFile))
	if err != nil {
		return nil, errors.TableLoad(p.Source(), err)
	}

	return c.build(p.Source())
}

func readCurveCSV(path, xColumn, yColumn string) ([]float64, []float64, error) {
	records, index, err := readCSV(path, xColumn, yColumn)
	if err != nil {
		return nil, nil, err
	}

	xs := make([]float64, 0, len(records))
	ys := make([]float64, 0, len(records))
	for i, record := range records {
		x, err := parseNumber(record[index[xColumn]])
		if err != nil {
			return nil, nil, fmt.Errorf("%s row %d column %s: %w", filepath.Base(path), i+2, xColumn, err)
		}
		y, err := parseNumber(record[index[yColumn]])
		if err != nil {
			return nil, nil, fmt.Errorf("%s row %d column %s: %w", filepath.Base(path), i+2, yColumn, err)
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	return xs, ys, nil
}

func readIndustryCSV(path string) (map[string]float64, error) {
	records, index, err := readCSV(path, "industry", "factor")
	if err != nil {
		return nil, err
	}

	industry := make(map[string]float64, len(records))
	for i, record := range records {
		label := record[index["industry"]]
		if _, dup := industry[label]; dup {
			return nil, fmt.Errorf("%s row %d: duplicate industry %q", filepath.Base(path), i+2, label)
		}
		factor, err := parseNumber(record[index["factor"]])
		if err != nil {
			return nil, fmt.Errorf("%s row %d column factor: %w", filepath.Base(path), i+2, err)
		}
		industry[label] = factor
	}
	return industry, nil
}

// readCSV returns the data rows and the position of each wanted column
func readCSV(path string, wanted ...string) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("%s is empty", filepath.Base(path))
	}
	if err != nil {
		return nil, nil, err
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, name := range wanted {
		if _, ok := index[name]; !ok {
			return nil, nil, fmt.Errorf("%s has no %q column", filepath.Base(path), name)
		}
	}

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return records, index, nil
}

// parseNumber reads a calibration value exactly before converting it
func parseNumber(s string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

// ExportCSV writes t as the three calibration CSV files in dir
func ExportCSV(dir string, t *Tables) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	write := func(name string, header []string, rows [][]string) error {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		w := csv.NewWriter(f)
		_ = w.Write(header)
		_ = w.WriteAll(rows)
		if err := w.Error(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}

	if err := write(AssetSizeFile, []string{"asset_size", "base_rate"}, pointRows(t.AssetSize.Points())); err != nil {
		return err
	}
	if err := write(LimitRetentionFile, []string{"limit", "factor"}, pointRows(t.LimitRetention.Points())); err != nil {
		return err
	}

	var rows [][]string
	for _, label := range t.Industries() {
		factor, _ := t.IndustryFactor(label)
		rows = append(rows, []string{label, formatNumber(factor)})
	}
	return write(IndustryFile, []string{"industry", "factor"}, rows)
}
