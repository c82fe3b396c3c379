package tables

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"

	"premium-rater/core/curve"
	"premium-rater/internal/errors"
)

// Document is the serialized form of a calibration set, shared by the
// YAML and JSON sources and by the API
type Document struct {
	Source         string             `json:"source,omitempty" yaml:"source,omitempty"`
	AssetSize      []curve.Point      `json:"asset_size" yaml:"asset_size"`
	LimitRetention []curve.Point      `json:"limit_retention" yaml:"limit_retention"`
	Industry       map[string]float64 `json:"industry" yaml:"industry"`
}

// ToDocument converts t for serialization
func ToDocument(t *Tables) *Document {
	return &Document{
		Source:         t.Source,
		AssetSize:      t.AssetSize.Points(),
		LimitRetention: t.LimitRetention.Points(),
		Industry:       t.IndustryFactors(),
	}
}

// Build checks the document's invariants and returns the calibration set
func (d *Document) Build(source string) (*Tables, error) {
	var c columns
	for _, p := range d.AssetSize {
		c.assetSizes = append(c.assetSizes, p.X)
		c.baseRates = append(c.baseRates, p.Y)
	}
	for _, p := range d.LimitRetention {
		c.limits = append(c.limits, p.X)
		c.factors = append(c.factors, p.Y)
	}
	c.industry = d.Industry
	return c.build(source)
}

// FileProvider reads a YAML or JSON calibration document
type FileProvider struct {
	Path   string
	Format string
}

// NewYAMLProvider creates a provider for a YAML document
func NewYAMLProvider(path string) *FileProvider {
	return &FileProvider{Path: path, Format: "yaml"}
}

// NewJSONProvider creates a provider for a JSON document
func NewJSONProvider(path string) *FileProvider {
	return &FileProvider{Path: path, Format: "json"}
}

// Source describes the provider
func (p *FileProvider) Source() string {
	return p.Format + ":" + p.Path
}

// Files lists the paths the provider reads
func (p *FileProvider) Files() []string {
	return []string{p.Path}
}

// Tables implements Provider
func (p *FileProvider) Tables(ctx context.Context) (*Tables, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, errors.TableLoad(p.Source(), err)
	}
	defer f.Close()

	var doc Document
	switch p.Format {
	case "yaml":
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		err = dec.Decode(&doc)
	case "json":
		dec := json.NewDecoder(f)
		dec.DisallowUnknownFields()
		err = dec.Decode(&doc)
	default:
		err = fmt.Errorf("unsupported document format %q", p.Format)
	}
	if err != nil {
		return nil, errors.TableLoad(p.Source(), err)
	}

	return doc.Build(p.Source())
}

// Export writes t to w in format (yaml, json or hcl)
func Export(w io.Writer, t *Tables, format string) error {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(ToDocument(t)); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ToDocument(t))
	case "hcl":
		return ExportHCL(w, t)
	default:
		return errors.Config(fmt.Sprintf("unsupported export format %q", format))
	}
}

// Open returns the provider for a configured source kind
func Open(kind, path string) (Provider, error) {
	switch kind {
	case "", SourceBuiltin:
		return BuiltinProvider{}, nil
	case "csv":
		return NewCSVProvider(path), nil
	case "hcl":
		return NewHCLProvider(path), nil
	case "yaml":
		return NewYAMLProvider(path), nil
	case "json":
		return NewJSONProvider(path), nil
	case "sqlite":
		p, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "auto":
		return Open(DetectKind(path), path)
	default:
		return nil, errors.Config(fmt.Sprintf("unknown table source %q", kind))
	}
}

// DetectKind guesses a source kind from a path
func DetectKind(path string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return "csv"
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		return "hcl"
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	case ".db", ".sqlite", ".sqlite3":
		return "sqlite"
	}
	return SourceBuiltin
}

func formatNumber(v float64) string {
	return decimal.NewFromFloat(v).String()
}

func pointRows(points []curve.Point) [][]string {
	rows := make([][]string, len(points))
	for i, p := range points {
		rows[i] = []string{formatNumber(p.X), formatNumber(p.Y)}
	}
	return rows
}

func ctyNumber(v float64) cty.Value {
	return cty.MustParseNumberVal(formatNumber(v))
}

func ctyColumns(points []curve.Point) ([]cty.Value, []cty.Value) {
	xs := make([]cty.Value, len(points))
	ys := make([]cty.Value, len(points))
	for i, p := range points {
		xs[i] = ctyNumber(p.X)
		ys[i] = ctyNumber(p.Y)
	}
	return xs, ys
}
