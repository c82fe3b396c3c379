package rating

import (
	"strings"

	"premium-rater/internal/errors"
)

// Domain limits
const (
	MinAssetSize = 1
	MaxAssetSize = 250_000_000
	MinRetention = 0

	// MaxCapacity is the exclusive ceiling on limit + retention
	MaxCapacity = 10_000_000
)

// DefaultIndustries is the rated industry label set
var DefaultIndustries = []string{"Hazard Group 1", "Hazard Group 2", "Hazard Group 3"}

// Validation messages
const (
	msgMissingField     = "Missing required field: "
	msgInvalidAssetSize = "Asset Size must be an integer between 1 and 250,000,000"
	msgInvalidLimit     = "Limit must be an integer greater than 0"
	msgInvalidRetention = "Retention must be an integer greater than or equal to 0"
	msgExceedsCapacity  = "Total policy limit exceeds the maximum allowed capacity of 10,000,000"
	msgInvalidIndustry  = "Industry must be one of "
)

// Validator enforces the rating domain before any computation
type Validator struct {
	// Industries is the closed set of accepted labels, matched exactly
	Industries []string
}

// NewValidator returns a validator for the default industry set
func NewValidator() *Validator {
	return &Validator{Industries: DefaultIndustries}
}

// Validate checks raw and returns the typed request. It reports exactly one
// violated constraint, in field order: missing fields, asset size, limit,
// retention, combined capacity, industry. raw is not modified.
func (v *Validator) Validate(raw RawRequest) (Request, error) {
	for _, field := range RequiredFields {
		if _, ok := raw[field]; !ok {
			return Request{}, errors.New(errors.TypeMissingField, msgMissingField+field).
				WithContext("field", field)
		}
	}

	var req Request
	var ok bool

	req.AssetSize, ok = asInteger(raw[FieldAssetSize])
	if !ok || req.AssetSize < MinAssetSize || req.AssetSize > MaxAssetSize {
		return Request{}, errors.New(errors.TypeInvalidAssetSize, msgInvalidAssetSize).
			WithContext("value", raw[FieldAssetSize])
	}

	req.Limit, ok = asInteger(raw[FieldLimit])
	if !ok || req.Limit <= 0 {
		return Request{}, errors.New(errors.TypeInvalidLimit, msgInvalidLimit).
			WithContext("value", raw[FieldLimit])
	}

	req.Retention, ok = asInteger(raw[FieldRetention])
	if !ok || req.Retention < MinRetention {
		return Request{}, errors.New(errors.TypeInvalidRetention, msgInvalidRetention).
			WithContext("value", raw[FieldRetention])
	}

	// limit + retention >= MaxCapacity, without overflowing
	if req.Limit >= MaxCapacity-req.Retention {
		return Request{}, errors.New(errors.TypeLimitExceedsCapacity, msgExceedsCapacity).
			WithContext("limit", req.Limit).
			WithContext("retention", req.Retention)
	}

	req.Industry, ok = raw[FieldIndustry].(string)
	if !ok || !v.knownIndustry(req.Industry) {
		return Request{}, errors.New(errors.TypeInvalidIndustry, msgInvalidIndustry+v.industryList()).
			WithContext("value", raw[FieldIndustry])
	}

	return req, nil
}

func (v *Validator) knownIndustry(label string) bool {
	for _, known := range v.Industries {
		if label == known {
			return true
		}
	}
	return false
}

func (v *Validator) industryList() string {
	return "[" + strings.Join(v.Industries, ", ") + "]"
}
