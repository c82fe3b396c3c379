package tables

import (
	"context"

	"premium-rater/core/curve"
)

// SourceBuiltin names the calibration compiled into the binary
const SourceBuiltin = "builtin"

// Builtin calibration. The lowest breakpoints equal the validator minima:
// asset size 1 and retention 0.
var (
	builtinAssetSizes = []float64{1, 500000, 1000000, 2500000, 5000000, 7500000, 10000000, 90000000, 250000000}
	builtinBaseRates  = []float64{1065, 1442, 1819, 3619, 3966, 4129, 4291, 7080, 8380}

	builtinLimits = []float64{
		0, 1000, 5000, 10000, 25000, 50000, 100000, 250000,
		500000, 1000000, 2500000, 5000000, 6000000, 8000000, 9000000, 10000000,
	}
	builtinFactors = []float64{
		-0.76, -0.6, -0.4087, -0.2, 0.0897, 0.2, 0.35, 0.6,
		0.762, 1, 1.5, 1.986, 2.113, 2.331, 2.423, 2.503,
	}

	builtinIndustry = map[string]float64{
		"Hazard Group 1": 1,
		"Hazard Group 2": 1.62,
		"Hazard Group 3": 1.944,
	}
)

var builtin = mustBuiltin()

func mustBuiltin() *Tables {
	t, err := New(
		curve.MustTable(builtinAssetSizes, builtinBaseRates),
		curve.MustTable(builtinLimits, builtinFactors),
		builtinIndustry,
		SourceBuiltin,
	)
	if err != nil {
		panic(err.Error())
	}
	return t
}

// Builtin returns the calibration compiled into the binary
func Builtin() *Tables {
	return builtin
}

// BuiltinProvider serves the compiled-in calibration
type BuiltinProvider struct{}

// Tables implements Provider
func (BuiltinProvider) Tables(ctx context.Context) (*Tables, error) {
	return builtin, nil
}
