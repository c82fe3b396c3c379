package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"premium-rater/core/tables"
	"premium-rater/internal/errors"
)

func newTestServer(provider tables.Provider) *Server {
	return NewServer(provider, Options{Version: "test", MaxBatch: 3, Workers: 2, Logger: zap.NewNop()})
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestRate(t *testing.T) {
	s := newTestServer(tables.BuiltinProvider{})

	rec := do(t, s, http.MethodPost, "/rate",
		`{"Asset Size": 1200000, "Limit": 5000000, "Retention": 1000000, "Industry": "Hazard Group 2"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp RateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(6311), resp.Premium)
	assert.Equal(t, "6311", resp.Amount.String())
	assert.Equal(t, Currency, resp.Currency)
	assert.Equal(t, tables.SourceBuiltin, resp.TableSource)
	assert.Equal(t, 1.62, resp.Breakdown.IndustryFactor)
	assert.Len(t, resp.ID, 36)
}

func TestRateValidationErrors(t *testing.T) {
	s := newTestServer(tables.BuiltinProvider{})

	tests := []struct {
		name    string
		body    string
		status  int
		code    errors.Type
		message string
	}{
		{
			"missing field",
			`{"Asset Size": 1000, "Limit": 1000, "Retention": 0}`,
			http.StatusBadRequest, errors.TypeMissingField,
			"Missing required field: Industry",
		},
		{
			"float asset size",
			`{"Asset Size": 12.0, "Limit": 1000, "Retention": 0, "Industry": "Hazard Group 1"}`,
			http.StatusUnprocessableEntity, errors.TypeInvalidAssetSize,
			"Asset Size must be an integer between 1 and 250,000,000",
		},
		{
			"over capacity",
			`{"Asset Size": 1000, "Limit": 5000000, "Retention": 5000000, "Industry": "Hazard Group 1"}`,
			http.StatusUnprocessableEntity, errors.TypeLimitExceedsCapacity,
			"Total policy limit exceeds the maximum allowed capacity of 10,000,000",
		},
		{
			"unknown industry",
			`{"Asset Size": 1000, "Limit": 1000, "Retention": 0, "Industry": "hazard group 1"}`,
			http.StatusUnprocessableEntity, errors.TypeInvalidIndustry,
			"Industry must be one of [Hazard Group 1, Hazard Group 2, Hazard Group 3]",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/rate", tc.body)
			require.Equal(t, tc.status, rec.Code)
			detail := decodeError(t, rec)
			assert.Equal(t, string(tc.code), detail.Code)
			assert.Equal(t, tc.message, detail.Message)
		})
	}
}

func TestRateMalformedBody(t *testing.T) {
	s := newTestServer(tables.BuiltinProvider{})

	for _, body := range []string{"", "[1, 2]", "{broken", "null"} {
		rec := do(t, s, http.MethodPost, "/rate", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
		assert.Equal(t, "INVALID_JSON", decodeError(t, rec).Code)
	}
}

func TestRateTablesUnavailable(t *testing.T) {
	failing := tables.ProviderFunc(func(ctx context.Context) (*tables.Tables, error) {
		return nil, errors.TableLoad("csv:/missing", assert.AnError)
	})
	s := newTestServer(failing)

	rec := do(t, s, http.MethodPost, "/rate",
		`{"Asset Size": 1000, "Limit": 1000, "Retention": 0, "Industry": "Hazard Group 1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, string(errors.TypeTableLoad), decodeError(t, rec).Code)

	rec = do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateInconsistentTables(t *testing.T) {
	b := tables.Builtin()
	partial, err := tables.New(b.AssetSize, b.LimitRetention, map[string]float64{"Hazard Group 1": 1}, "partial")
	require.NoError(t, err)
	s := newTestServer(tables.Static(partial))

	rec := do(t, s, http.MethodPost, "/rate",
		`{"Asset Size": 1000, "Limit": 1000, "Retention": 0, "Industry": "Hazard Group 1"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, string(errors.TypeTableInconsistent), decodeError(t, rec).Code)
}

func TestBatch(t *testing.T) {
	s := newTestServer(tables.BuiltinProvider{})

	rec := do(t, s, http.MethodPost, "/rate/batch", `{"requests": [
		{"Asset Size": 50000000, "Limit": 23000, "Retention": 0, "Industry": "Hazard Group 1"},
		{"Asset Size": 0, "Limit": 23000, "Retention": 0, "Industry": "Hazard Group 1"},
		{"Asset Size": 60000, "Limit": 400000, "Retention": 5000, "Industry": "Hazard Group 3"}
	]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp BatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Rated)
	assert.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Results, 3)

	require.NotNil(t, resp.Results[0].Premium)
	assert.Equal(t, int64(7839), *resp.Results[0].Premium)
	require.NotNil(t, resp.Results[1].Error)
	assert.Equal(t, string(errors.TypeInvalidAssetSize), resp.Results[1].Error.Code)
	require.NotNil(t, resp.Results[2].Premium)
	assert.Equal(t, int64(4069), *resp.Results[2].Premium)
}

func TestBatchTooLarge(t *testing.T) {
	s := newTestServer(tables.BuiltinProvider{})

	rec := do(t, s, http.MethodPost, "/rate/batch", `{"requests": [{}, {}, {}, {}]}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "BATCH_TOO_LARGE", decodeError(t, rec).Code)
}

func TestTables(t *testing.T) {
	s := newTestServer(tables.BuiltinProvider{})

	rec := do(t, s, http.MethodGet, "/tables", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var doc tables.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, tables.SourceBuiltin, doc.Source)
	assert.Len(t, doc.AssetSize, 9)
	assert.Len(t, doc.LimitRetention, 16)
	assert.Equal(t, 1.944, doc.Industry["Hazard Group 3"])

	var fp struct {
		Fingerprint string `json:"fingerprint"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fp))
	assert.Equal(t, tables.Builtin().Fingerprint().Hex(), fp.Fingerprint)

	built, err := doc.Build("api")
	require.NoError(t, err)
	assert.Equal(t, tables.Builtin().AssetSize.Points(), built.AssetSize.Points())
}

func TestHealthAndVersion(t *testing.T) {
	s := newTestServer(tables.BuiltinProvider{})

	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)

	rec = do(t, s, http.MethodGet, "/version", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var v map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, "test", v["version"])
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(tables.BuiltinProvider{})

	rec := do(t, s, http.MethodGet, "/rate", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
