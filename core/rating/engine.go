package rating

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"premium-rater/core/tables"
	"premium-rater/internal/errors"
	"premium-rater/internal/logging"
)

// Loading is the fixed multiplier applied to every premium
const Loading = 1.7

// Engine rates validated requests against one calibration set.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	tables    *tables.Tables
	validator *Validator
	log       *zap.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithValidator replaces the default validator
func WithValidator(v *Validator) Option {
	return func(e *Engine) {
		e.validator = v
	}
}

// WithLogger sets the engine logger
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// NewEngine binds an engine to t. It fails when t cannot serve every
// request the validator accepts: an industry without a factor, or a curve
// that does not span the validated domain.
func NewEngine(t *tables.Tables, opts ...Option) (*Engine, error) {
	if t == nil {
		return nil, errors.New(errors.TypeTableInconsistent, "no calibration tables")
	}

	e := &Engine{
		tables:    t,
		validator: NewValidator(),
		log:       logging.Named("rating"),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := t.CheckIndustries(e.validator.Industries); err != nil {
		e.log.Error("calibration does not cover the rated industries", zap.Error(err))
		return nil, err
	}
	if t.AssetSize.Min() > MinAssetSize || t.AssetSize.Max() < MaxAssetSize {
		return nil, errors.Newf(errors.TypeTableInconsistent,
			"asset size table %s spans [%v, %v], need [%d, %d]",
			t.Source, t.AssetSize.Min(), t.AssetSize.Max(), MinAssetSize, MaxAssetSize)
	}
	if t.LimitRetention.Min() > MinRetention || t.LimitRetention.Max() < MaxCapacity-1 {
		return nil, errors.Newf(errors.TypeTableInconsistent,
			"limit/retention table %s spans [%v, %v], need [%d, %d]",
			t.Source, t.LimitRetention.Min(), t.LimitRetention.Max(), MinRetention, MaxCapacity-1)
	}

	return e, nil
}

// Tables returns the calibration set the engine rates against
func (e *Engine) Tables() *tables.Tables {
	return e.tables
}

// Validator returns the engine's validator
func (e *Engine) Validator() *Validator {
	return e.validator
}

// Rate validates raw and returns the truncated premium.
// Validation errors are returned as they are.
func (e *Engine) Rate(raw RawRequest) (int64, error) {
	q, err := e.Quote(raw)
	if err != nil {
		return 0, err
	}
	return q.Premium, nil
}

// Quote validates raw and returns the premium with its factors
func (e *Engine) Quote(raw RawRequest) (*Quote, error) {
	req, err := e.validator.Validate(raw)
	if err != nil {
		e.log.Debug("request rejected", zap.Error(err))
		return nil, err
	}
	return e.rate(req)
}

func (e *Engine) rate(req Request) (*Quote, error) {
	baseRate := e.tables.AssetSize.At(float64(req.AssetSize))

	// one curve, read at the bottom and the top of the layer
	retentionFactor := e.tables.LimitRetention.At(float64(req.Retention))
	limitFactor := e.tables.LimitRetention.At(float64(req.Limit + req.Retention))

	industryFactor, ok := e.tables.IndustryFactor(req.Industry)
	if !ok {
		err := errors.Newf(errors.TypeTableInconsistent,
			"industry %q passed validation but has no factor in %s", req.Industry, e.tables.Source).
			WithContext("industry", req.Industry)
		e.log.Error("industry lookup failed", zap.Error(err))
		return nil, err
	}

	unrounded := baseRate * (limitFactor - retentionFactor) * industryFactor * Loading
	amount := decimal.NewFromFloat(unrounded).Truncate(0)

	q := &Quote{
		Request: req,
		Premium: amount.IntPart(),
		Amount:  amount,
		Breakdown: Breakdown{
			BaseRate:        baseRate,
			RetentionFactor: retentionFactor,
			LimitFactor:     limitFactor,
			LayerFactor:     limitFactor - retentionFactor,
			IndustryFactor:  industryFactor,
			Loading:         Loading,
			Unrounded:       unrounded,
		},
		TableSource: e.tables.Source,
	}

	e.log.Debug("quote computed",
		zap.Int64("asset_size", req.AssetSize),
		zap.Int64("limit", req.Limit),
		zap.Int64("retention", req.Retention),
		zap.String("industry", req.Industry),
		zap.Float64("base_rate", baseRate),
		zap.Float64("layer_factor", q.Breakdown.LayerFactor),
		zap.Int64("premium", q.Premium),
	)
	return q, nil
}

// Result is the outcome of one request in a batch
type Result struct {
	Index int
	Quote *Quote
	Err   error
}

// RateBatch rates reqs with at most workers concurrent computations.
// Results keep request order. Once ctx is done, unstarted items fail with
// the context error, which is also returned.
func (e *Engine) RateBatch(ctx context.Context, reqs []RawRequest, workers int) ([]Result, error) {
	if workers <= 0 {
		workers = 1
	}

	results := make([]Result, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range reqs {
		i := i
		results[i].Index = i
		if err := gctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Quote, results[i].Err = e.Quote(reqs[i])
			return nil
		})
	}

	_ = g.Wait()
	return results, ctx.Err()
}
