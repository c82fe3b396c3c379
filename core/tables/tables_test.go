package tables

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"premium-rater/core/curve"
	"premium-rater/internal/errors"
)

func requireSameTables(t *testing.T, want, got *Tables) {
	t.Helper()
	if diff := cmp.Diff(want.AssetSize.Points(), got.AssetSize.Points()); diff != "" {
		t.Errorf("asset size table mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.LimitRetention.Points(), got.LimitRetention.Points()); diff != "" {
		t.Errorf("limit/retention table mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.IndustryFactors(), got.IndustryFactors()); diff != "" {
		t.Errorf("industry factors mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, want.Fingerprint(), got.Fingerprint(), "equal content should share a fingerprint")
}

func TestBuiltinCoversValidatorDomain(t *testing.T) {
	b := Builtin()

	assert.Equal(t, 1.0, b.AssetSize.Min(), "lowest asset size breakpoint must equal the minimum valid asset size")
	assert.Equal(t, 250000000.0, b.AssetSize.Max())
	assert.Equal(t, 0.0, b.LimitRetention.Min(), "lowest limit breakpoint must equal the minimum valid retention")
	assert.Equal(t, 10000000.0, b.LimitRetention.Max())
	assert.True(t, b.AssetSize.NonDecreasing())
	assert.True(t, b.LimitRetention.NonDecreasing())
	assert.Equal(t, SourceBuiltin, b.Source)
}

func TestBuiltinIndustryFactorsAreExact(t *testing.T) {
	b := Builtin()
	assert.Equal(t, []string{"Hazard Group 1", "Hazard Group 2", "Hazard Group 3"}, b.Industries())

	for label, want := range map[string]float64{
		"Hazard Group 1": 1,
		"Hazard Group 2": 1.62,
		"Hazard Group 3": 1.944,
	} {
		got, ok := b.IndustryFactor(label)
		require.True(t, ok, label)
		assert.Equal(t, want, got, label)
	}

	_, ok := b.IndustryFactor("hazard group 1")
	assert.False(t, ok, "lookup must be case-sensitive")
}

func TestBuiltinCurveValues(t *testing.T) {
	b := Builtin()

	baseRates := []struct{ assetSize, want float64 }{
		{1, 1065}, {500000, 1442}, {1000000, 1819}, {2500000, 3619}, {5000000, 3966},
		{7500000, 4129}, {10000000, 4291}, {90000000, 7080}, {250000000, 8380}, {1200000, 2059},
	}
	for _, tc := range baseRates {
		assert.InDelta(t, tc.want, b.AssetSize.At(tc.assetSize), 1, "base rate at %v", tc.assetSize)
	}

	factors := []struct{ limit, want float64 }{
		{0, -0.76}, {100, -0.744}, {100000, 0.35}, {333333, 0.654}, {1000000, 1},
		{5000000, 1.986}, {8000000, 2.331}, {9500000, 2.463}, {10000000, 2.503},
	}
	for _, tc := range factors {
		assert.InDelta(t, tc.want, b.LimitRetention.At(tc.limit), 0.001, "factor at %v", tc.limit)
	}
}

func TestNewRejectsBadIndustryFactors(t *testing.T) {
	asset := curve.MustTable([]float64{1, 2}, []float64{1, 2})
	limit := curve.MustTable([]float64{0, 1}, []float64{0, 1})

	for name, industry := range map[string]map[string]float64{
		"empty":    {},
		"zero":     {"Hazard Group 1": 0},
		"negative": {"Hazard Group 1": -1},
		"nan":      {"Hazard Group 1": math.NaN()},
		"no label": {"": 1},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := New(asset, limit, industry, "test")
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.TypeInvalidTable), "got %v", err)
		})
	}
}

func TestNewCopiesIndustryMap(t *testing.T) {
	industry := map[string]float64{"A": 1}
	tb, err := New(Builtin().AssetSize, Builtin().LimitRetention, industry, "test")
	require.NoError(t, err)

	industry["A"] = 9
	industry["B"] = 2
	got, _ := tb.IndustryFactor("A")
	assert.Equal(t, 1.0, got)
	_, ok := tb.IndustryFactor("B")
	assert.False(t, ok)
}

func TestFingerprintTracksContent(t *testing.T) {
	b := Builtin()
	renamed, err := New(b.AssetSize, b.LimitRetention, b.IndustryFactors(), "elsewhere")
	require.NoError(t, err)
	assert.Equal(t, b.Fingerprint(), renamed.Fingerprint())

	factors := b.IndustryFactors()
	factors["Hazard Group 3"] = 2
	changed, err := New(b.AssetSize, b.LimitRetention, factors, SourceBuiltin)
	require.NoError(t, err)
	assert.NotEqual(t, b.Fingerprint(), changed.Fingerprint())
}

func TestCheckIndustries(t *testing.T) {
	b := Builtin()
	assert.NoError(t, b.CheckIndustries([]string{"Hazard Group 1", "Hazard Group 3"}))

	err := b.CheckIndustries([]string{"Hazard Group 1", "Hazard Group 4"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeTableInconsistent))
	assert.Contains(t, err.Error(), "Hazard Group 4")
}

func TestCSVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, ExportCSV(dir, Builtin()))

	p := NewCSVProvider(dir)
	got, err := p.Tables(context.Background())
	require.NoError(t, err)

	requireSameTables(t, Builtin(), got)
	assert.Equal(t, "csv:"+dir, got.Source)
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
}

func TestCSVProviderMatchesColumnsByName(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		AssetSizeFile:      "base_rate, asset_size\n1065, 1\n8380, 250000000\n",
		LimitRetentionFile: "limit,factor\n0,-0.76\n10000000,2.503\n",
		IndustryFile:       "industry,factor\nHazard Group 1,1\nHazard Group 2,1.62\n",
	})

	got, err := NewCSVProvider(dir).Tables(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []curve.Point{{X: 1, Y: 1065}, {X: 250000000, Y: 8380}}, got.AssetSize.Points())
	factor, ok := got.IndustryFactor("Hazard Group 2")
	require.True(t, ok)
	assert.Equal(t, 1.62, factor)
}

func TestCSVProviderErrors(t *testing.T) {
	valid := map[string]string{
		AssetSizeFile:      "asset_size,base_rate\n1,1065\n250000000,8380\n",
		LimitRetentionFile: "limit,factor\n0,-0.76\n10000000,2.503\n",
		IndustryFile:       "industry,factor\nHazard Group 1,1\n",
	}

	tests := []struct {
		name     string
		override map[string]string
		wantType errors.Type
		wantMsg  string
	}{
		{"missing column", map[string]string{AssetSizeFile: "size,base_rate\n1,1065\n"}, errors.TypeTableLoad, `no "asset_size" column`},
		{"bad number", map[string]string{LimitRetentionFile: "limit,factor\n0,abc\n1,2\n"}, errors.TypeTableLoad, "row 2 column factor"},
		{"empty file", map[string]string{IndustryFile: ""}, errors.TypeTableLoad, "is empty"},
		{"duplicate industry", map[string]string{IndustryFile: "industry,factor\nA,1\nA,2\n"}, errors.TypeTableLoad, "duplicate industry"},
		{"descending", map[string]string{AssetSizeFile: "asset_size,base_rate\n10,1\n5,2\n"}, errors.TypeInvalidTable, "strictly ascending"},
		{"one point", map[string]string{LimitRetentionFile: "limit,factor\n0,1\n"}, errors.TypeInvalidTable, "at least 2 points"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFiles(t, dir, valid)
			writeFiles(t, dir, tc.override)

			_, err := NewCSVProvider(dir).Tables(context.Background())
			require.Error(t, err)
			assert.True(t, errors.IsType(err, tc.wantType), "expected %s, got %v", tc.wantType, err)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}

	t.Run("missing directory", func(t *testing.T) {
		_, err := NewCSVProvider(filepath.Join(t.TempDir(), "nope")).Tables(context.Background())
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.TypeTableLoad))
	})
}

func TestDocumentRoundTrips(t *testing.T) {
	for _, tc := range []struct {
		format string
		ext    string
	}{
		{"yaml", ".yaml"},
		{"json", ".json"},
		{"hcl", ".hcl"},
	} {
		t.Run(tc.format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Export(&buf, Builtin(), tc.format))

			path := filepath.Join(t.TempDir(), "tables"+tc.ext)
			require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

			p, err := Open("auto", path)
			require.NoError(t, err)
			got, err := p.Tables(context.Background())
			require.NoError(t, err)

			requireSameTables(t, Builtin(), got)
			assert.Equal(t, tc.format+":"+path, got.Source)
		})
	}
}

func TestHCLProviderReadsBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.hcl")
	writeFiles(t, filepath.Dir(path), map[string]string{"rates.hcl": `
asset_size {
  x = [1, 1000000, 250000000]
  y = [1065, 1819, 8380]
}

limit_retention {
  x = [0, 1000000, 10000000]
  y = [-0.76, 1, 2.503]
}

industry "Hazard Group 1" {
  factor = 1
}

industry "Hazard Group 3" {
  factor = 1.944
}
`})

	got, err := NewHCLProvider(path).Tables(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, got.AssetSize.Len())
	assert.Equal(t, -0.76, got.LimitRetention.At(0))
	assert.Equal(t, []string{"Hazard Group 1", "Hazard Group 3"}, got.Industries())
}

func TestHCLProviderErrors(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"syntax.hcl":    "asset_size {\n  x = [1, 2\n}\n",
		"missing.hcl":   "asset_size {\n  x = [1, 2]\n  y = [1, 2]\n}\n",
		"duplicate.hcl": "asset_size {\n  x = [1, 2]\n  y = [1, 2]\n}\nlimit_retention {\n  x = [0, 1]\n  y = [0, 1]\n}\nindustry \"A\" {\n  factor = 1\n}\nindustry \"A\" {\n  factor = 2\n}\n",
	})

	for _, name := range []string{"syntax.hcl", "missing.hcl", "duplicate.hcl"} {
		t.Run(name, func(t *testing.T) {
			_, err := NewHCLProvider(filepath.Join(dir, name)).Tables(context.Background())
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.TypeTableLoad), "got %v", err)
		})
	}
}

func TestYAMLProviderRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	require.NoError(t, os.WriteFile(path, []byte("asset_sizes: []\n"), 0644))

	_, err := NewYAMLProvider(path).Tables(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeTableLoad))
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "calibration.db")
	require.NoError(t, ExportSQLite(ctx, path, Builtin()))

	// a second export replaces rather than duplicates rows
	require.NoError(t, ExportSQLite(ctx, path, Builtin()))

	p, err := OpenSQLite(path)
	require.NoError(t, err)
	defer p.Close()

	got, err := p.Tables(ctx)
	require.NoError(t, err)
	requireSameTables(t, Builtin(), got)
	assert.Equal(t, "sqlite:"+path, got.Source)
}

func TestSQLiteProviderMissingSchema(t *testing.T) {
	p, err := OpenSQLite(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Tables(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeTableLoad))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	p, err := Open("", "")
	require.NoError(t, err)
	assert.IsType(t, BuiltinProvider{}, p)

	p, err = Open("auto", dir)
	require.NoError(t, err)
	assert.IsType(t, &CSVProvider{}, p)

	assert.Equal(t, "hcl", DetectKind("rates.hcl"))
	assert.Equal(t, "yaml", DetectKind("rates.yml"))
	assert.Equal(t, "sqlite", DetectKind("rates.sqlite3"))
	assert.Equal(t, SourceBuiltin, DetectKind("rates.txt"))

	_, err = Open("parquet", "rates.parquet")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeConfig))
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	err := Export(&bytes.Buffer{}, Builtin(), "xml")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeConfig))
}
