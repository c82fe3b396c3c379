// Package tables - Calibration tables and their providers
// The rating engine consumes a *Tables value and never parses a source format.
// Providers turn some storage format into that value.
package tables

import (
	"context"
	"math"
	"sort"
	"strings"

	"premium-rater/core/curve"
	"premium-rater/core/determinism"
	"premium-rater/internal/errors"
)

// Tables is one immutable calibration set
type Tables struct {
	// AssetSize maps asset size to base rate
	AssetSize *curve.Table

	// LimitRetention maps total covered amount to the cumulative factor
	LimitRetention *curve.Table

	// Source describes where the set was loaded from
	Source string

	industry    map[string]float64
	fingerprint determinism.ContentHash
}

// New assembles a calibration set. The industry map is copied.
func New(assetSize, limitRetention *curve.Table, industry map[string]float64, source string) (*Tables, error) {
	if assetSize == nil || limitRetention == nil {
		return nil, errors.InvalidTable("asset size and limit/retention tables are required")
	}
	if len(industry) == 0 {
		return nil, errors.InvalidTable("industry factor map is empty")
	}

	factors := make(map[string]float64, len(industry))
	for label, factor := range industry {
		if label == "" {
			return nil, errors.InvalidTable("industry factor map has an empty label")
		}
		if math.IsNaN(factor) || math.IsInf(factor, 0) || factor <= 0 {
			return nil, errors.InvalidTable("industry factor for %q must be a positive number, got %v", label, factor).
				WithContext("industry", label)
		}
		factors[label] = factor
	}

	return &Tables{
		AssetSize:      assetSize,
		LimitRetention: limitRetention,
		Source:         source,
		industry:       factors,
		fingerprint:    fingerprint(assetSize, limitRetention, factors),
	}, nil
}

// Fingerprint hashes the calibration content. Two sets with equal points
// and factors share a fingerprint whatever their source.
func (t *Tables) Fingerprint() determinism.ContentHash {
	return t.fingerprint
}

func fingerprint(assetSize, limitRetention *curve.Table, industry map[string]float64) determinism.ContentHash {
	h := determinism.NewHasher("calibration/v1")
	for _, c := range []*curve.Table{assetSize, limitRetention} {
		points := c.Points()
		xs := make([]float64, len(points))
		ys := make([]float64, len(points))
		for i, p := range points {
			xs[i], ys[i] = p.X, p.Y
		}
		h.Floats(xs).Floats(ys)
	}
	return h.FloatMap(industry).Sum()
}

// IndustryFactor looks up the multiplier for an industry label.
// The match is exact and case-sensitive.
func (t *Tables) IndustryFactor(label string) (float64, bool) {
	factor, ok := t.industry[label]
	return factor, ok
}

// Industries returns the labels with a factor, sorted
func (t *Tables) Industries() []string {
	labels := make([]string, 0, len(t.industry))
	for label := range t.industry {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// IndustryFactors returns a copy of the label to factor map
func (t *Tables) IndustryFactors() map[string]float64 {
	out := make(map[string]float64, len(t.industry))
	for label, factor := range t.industry {
		out[label] = factor
	}
	return out
}

// CheckIndustries fails when any of labels has no factor
func (t *Tables) CheckIndustries(labels []string) error {
	var missing []string
	for _, label := range labels {
		if _, ok := t.industry[label]; !ok {
			missing = append(missing, label)
		}
	}
	if len(missing) > 0 {
		return errors.Newf(errors.TypeTableInconsistent,
			"industry factor table %s has no factor for %s", t.Source, strings.Join(missing, ", ")).
			WithContext("missing", missing)
	}
	return nil
}

// Provider supplies calibration sets
type Provider interface {
	Tables(ctx context.Context) (*Tables, error)
}

// ProviderFunc adapts a function to Provider
type ProviderFunc func(ctx context.Context) (*Tables, error)

// Tables implements Provider
func (f ProviderFunc) Tables(ctx context.Context) (*Tables, error) {
	return f(ctx)
}

// Static returns a provider that always serves t
func Static(t *Tables) Provider {
	return ProviderFunc(func(context.Context) (*Tables, error) {
		return t, nil
	})
}

// columns holds a set as parsed from a source, before invariants are checked
type columns struct {
	assetSizes []float64
	baseRates  []float64
	limits     []float64
	factors    []float64
	industry   map[string]float64
}

func (c *columns) build(source string) (*Tables, error) {
	assetSize, err := curve.NewTable(c.assetSizes, c.baseRates)
	if err != nil {
		return nil, errors.Wrap(errors.TypeInvalidTable, "asset size table from "+source, err)
	}
	limitRetention, err := curve.NewTable(c.limits, c.factors)
	if err != nil {
		return nil, errors.Wrap(errors.TypeInvalidTable, "limit/retention table from "+source, err)
	}
	return New(assetSize, limitRetention, c.industry, source)
}
