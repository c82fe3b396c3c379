package tables

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"premium-rater/internal/logging"
)

// Cached loads from an underlying provider once and serves the same
// immutable set until Reload publishes a new one.
type Cached struct {
	provider Provider
	current  atomic.Pointer[Tables]

	// serializes loads so concurrent first calls read the source once
	mu sync.Mutex

	// Check, when set, rejects a loaded set before it is published
	Check func(*Tables) error

	// OnReload, when set, runs after each successful Reload
	OnReload func(*Tables)
}

// NewCached wraps provider
func NewCached(provider Provider) *Cached {
	return &Cached{provider: provider}
}

// Underlying returns the wrapped provider
func (c *Cached) Underlying() Provider {
	return c.provider
}

// Tables implements Provider
func (c *Cached) Tables(ctx context.Context) (*Tables, error) {
	if t := c.current.Load(); t != nil {
		return t, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if t := c.current.Load(); t != nil {
		return t, nil
	}

	t, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	c.current.Store(t)
	logging.Info("calibration tables loaded",
		zap.String("source", t.Source),
		zap.String("fingerprint", t.Fingerprint().Short()),
	)
	return t, nil
}

// Reload reads the source again. A failed reload keeps the previous set,
// and a set with unchanged content is not republished.
func (c *Cached) Reload(ctx context.Context) (*Tables, error) {
	c.mu.Lock()
	t, err := c.load(ctx)
	if err != nil {
		c.mu.Unlock()
		logging.Warn("calibration reload failed, keeping previous tables", zap.Error(err))
		return nil, err
	}
	if prev := c.current.Load(); prev != nil && prev.Fingerprint() == t.Fingerprint() {
		c.mu.Unlock()
		logging.Debug("calibration unchanged", zap.String("fingerprint", t.Fingerprint().Short()))
		return prev, nil
	}
	c.current.Store(t)
	c.mu.Unlock()

	logging.Info("calibration tables reloaded",
		zap.String("source", t.Source),
		zap.String("fingerprint", t.Fingerprint().Short()),
	)
	if c.OnReload != nil {
		c.OnReload(t)
	}
	return t, nil
}

func (c *Cached) load(ctx context.Context) (*Tables, error) {
	t, err := c.provider.Tables(ctx)
	if err != nil {
		return nil, err
	}
	if c.Check != nil {
		if err := c.Check(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}
