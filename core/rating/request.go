// Package rating - Premium rating
// A RawRequest is validated once into a Request, then rated against an
// immutable calibration set. Nothing here performs I/O.
package rating

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"strconv"

	"premium-rater/internal/errors"
)

// Request field names as they appear on the wire
const (
	FieldAssetSize = "Asset Size"
	FieldLimit     = "Limit"
	FieldRetention = "Retention"
	FieldIndustry  = "Industry"
)

// RequiredFields lists the request fields in validation order
var RequiredFields = []string{FieldAssetSize, FieldLimit, FieldRetention, FieldIndustry}

// RawRequest is a request as supplied by a caller, before validation.
// Numeric fields must hold integer kinds or integer json.Number literals.
type RawRequest map[string]interface{}

// Request is a validated rating request
type Request struct {
	AssetSize int64  `json:"Asset Size"`
	Limit     int64  `json:"Limit"`
	Retention int64  `json:"Retention"`
	Industry  string `json:"Industry"`
}

// Raw converts a typed request back to its raw form
func (r Request) Raw() RawRequest {
	return RawRequest{
		FieldAssetSize: r.AssetSize,
		FieldLimit:     r.Limit,
		FieldRetention: r.Retention,
		FieldIndustry:  r.Industry,
	}
}

// ParseRequest decodes one JSON object. Numbers are kept as json.Number so
// 12.0 and 12 stay distinguishable.
func ParseRequest(data []byte) (RawRequest, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw RawRequest
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(errors.TypeInternal, "request body is not a JSON object", err)
	}
	if raw == nil {
		return nil, errors.New(errors.TypeInternal, "request body is not a JSON object")
	}
	return raw, nil
}

// asInteger extracts an exact integer. Floating-point values are rejected
// even when integral.
func asInteger(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case json.Number:
		i, err := strconv.ParseInt(string(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int8:
		return int64(n), true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	}
	return 0, false
}
