package tables

import (
	"context"
	"io"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"premium-rater/internal/errors"
)

// HCLProvider reads a calibration file written in HCL:
//
//	asset_size {
//	  x = [1, 500000, 1000000]
//	  y = [1065, 1442, 1819]
//	}
//	limit_retention {
//	  x = [0, 1000000]
//	  y = [-0.76, 1]
//	}
//	industry "Hazard Group 1" {
//	  factor = 1
//	}
type HCLProvider struct {
	Path string
}

type hclDocument struct {
	AssetSize      hclCurve      `hcl:"asset_size,block"`
	LimitRetention hclCurve      `hcl:"limit_retention,block"`
	Industries     []hclIndustry `hcl:"industry,block"`
}

type hclCurve struct {
	X []float64 `hcl:"x"`
	Y []float64 `hcl:"y"`
}

type hclIndustry struct {
	Label  string  `hcl:"label,label"`
	Factor float64 `hcl:"factor"`
}

// NewHCLProvider creates a provider for path
func NewHCLProvider(path string) *HCLProvider {
	return &HCLProvider{Path: path}
}

// Source describes the provider
func (p *HCLProvider) Source() string {
	return "hcl:" + p.Path
}

// Files lists the paths the provider reads
func (p *HCLProvider) Files() []string {
	return []string{p.Path}
}

// Tables implements Provider
func (p *HCLProvider) Tables(ctx context.Context) (*Tables, error) {
	// a fresh parser per load; hclparse caches files by name
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(p.Path)
	if diags.HasErrors() {
		return nil, errors.TableLoad(p.Source(), diags)
	}

	var doc hclDocument
	if diags := gohcl.DecodeBody(file.Body, nil, &doc); diags.HasErrors() {
		return nil, errors.TableLoad(p.Source(), diags)
	}

	c := columns{
		assetSizes: doc.AssetSize.X,
		baseRates:  doc.AssetSize.Y,
		limits:     doc.LimitRetention.X,
		factors:    doc.LimitRetention.Y,
		industry:   make(map[string]float64, len(doc.Industries)),
	}
	for _, ind := range doc.Industries {
		if _, dup := c.industry[ind.Label]; dup {
			return nil, errors.TableLoad(p.Source(), &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate industry block",
				Detail:   "industry " + ind.Label + " is defined more than once",
			})
		}
		c.industry[ind.Label] = ind.Factor
	}

	return c.build(p.Source())
}

// ExportHCL writes t in the HCLProvider format
func ExportHCL(w io.Writer, t *Tables) error {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	writeCurve := func(name string, xs, ys []cty.Value) {
		block := body.AppendNewBlock(name, nil).Body()
		block.SetAttributeValue("x", cty.TupleVal(xs))
		block.SetAttributeValue("y", cty.TupleVal(ys))
		body.AppendNewline()
	}

	xs, ys := ctyColumns(t.AssetSize.Points())
	writeCurve("asset_size", xs, ys)
	xs, ys = ctyColumns(t.LimitRetention.Points())
	writeCurve("limit_retention", xs, ys)

	for i, label := range t.Industries() {
		if i > 0 {
			body.AppendNewline()
		}
		factor, _ := t.IndustryFactor(label)
		body.AppendNewBlock("industry", []string{label}).Body().
			SetAttributeValue("factor", ctyNumber(factor))
	}

	_, err := w.Write(f.Bytes())
	return err
}
