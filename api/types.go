// Package api - API types for premium rating
// These types define the contract for the /rate endpoints.
package api

import (
	"github.com/shopspring/decimal"

	"premium-rater/core/rating"
	"premium-rater/core/tables"
)

// Currency of every quoted amount
const Currency = "USD"

// RateResponse is the output of POST /rate
type RateResponse struct {
	// ID identifies this quote in logs
	ID string `json:"id"`

	Premium  int64           `json:"premium"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`

	Request   rating.Request   `json:"request"`
	Breakdown rating.Breakdown `json:"breakdown"`

	// TableSource names the calibration set used
	TableSource string `json:"table_source"`
}

// BatchRequest is the input to POST /rate/batch
type BatchRequest struct {
	Requests []rating.RawRequest `json:"requests"`
}

// BatchResponse is the output of POST /rate/batch
type BatchResponse struct {
	ID      string      `json:"id"`
	Results []BatchItem `json:"results"`
	Rated   int         `json:"rated"`
	Failed  int         `json:"failed"`
}

// BatchItem is the outcome of one request in a batch.
// Exactly one of Premium and Error is set.
type BatchItem struct {
	Index   int              `json:"index"`
	Premium *int64           `json:"premium,omitempty"`
	Amount  *decimal.Decimal `json:"amount,omitempty"`
	Error   *ErrorDetail     `json:"error,omitempty"`
}

// TablesResponse is the output of GET /tables
type TablesResponse struct {
	*tables.Document
	Industries  []string `json:"industries"`
	Fingerprint string   `json:"fingerprint"`
}

// ErrorResponse wraps a failure
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failure
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newRateResponse(id string, q *rating.Quote) *RateResponse {
	return &RateResponse{
		ID:          id,
		Premium:     q.Premium,
		Amount:      q.Amount,
		Currency:    Currency,
		Request:     q.Request,
		Breakdown:   q.Breakdown,
		TableSource: q.TableSource,
	}
}
