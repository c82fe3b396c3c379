package rating

import (
	"github.com/shopspring/decimal"
)

// Quote is a rated premium with the factors that produced it
type Quote struct {
	Request Request `json:"request"`

	// Premium is the truncated premium
	Premium int64 `json:"premium"`

	// Amount is Premium as a decimal money value
	Amount decimal.Decimal `json:"amount"`

	Breakdown Breakdown `json:"breakdown"`

	// TableSource names the calibration set used
	TableSource string `json:"table_source"`
}

// Breakdown lists the evaluated rating factors
type Breakdown struct {
	BaseRate        float64 `json:"base_rate"`
	RetentionFactor float64 `json:"retention_factor"`
	LimitFactor     float64 `json:"limit_factor"`

	// LayerFactor is LimitFactor - RetentionFactor
	LayerFactor    float64 `json:"layer_factor"`
	IndustryFactor float64 `json:"industry_factor"`
	Loading        float64 `json:"loading"`

	// Unrounded is the premium before truncation
	Unrounded float64 `json:"unrounded"`
}
