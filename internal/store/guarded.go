package store

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// GuardConfig configures Guarded.
type GuardConfig struct {
	Name             string
	RequestsPerSec   float64 // 0 disables rate limiting
	Burst            int
	FailureThreshold uint32        // consecutive failures that open the breaker
	OpenTimeout      time.Duration // how long the breaker stays open
}

// DefaultGuardConfig returns the defaults used by the snapshot jobs.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Name:             "store",
		RequestsPerSec:   20,
		Burst:            5,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// Guarded wraps a Store with a request rate limit and a circuit breaker so a
// failing database is not hammered chunk after chunk.
type Guarded struct {
	inner   Store
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker
}

// NewGuarded wraps inner.
func NewGuarded(inner Store, cfg GuardConfig, logger *zap.Logger) *Guarded {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about the store's health.
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrInvalidIdentifier)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("store circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from_state", from.String()),
				zap.String("to_state", to.String()),
			)
		},
	})

	return &Guarded{
		inner:   inner,
		limiter: rate.NewLimiter(limit, burst),
		cb:      cb,
	}
}

// IsUnavailable reports whether err came from an open circuit breaker.
func IsUnavailable(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func (g *Guarded) do(ctx context.Context, fn func() (any, error)) (any, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return g.cb.Execute(fn)
}

// Select runs q through the guard.
func (g *Guarded) Select(ctx context.Context, q Query) ([]Row, error) {
	res, err := g.do(ctx, func() (any, error) {
		return g.inner.Select(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	rows, _ := res.([]Row)
	return rows, nil
}

// Upsert writes rows through the guard.
func (g *Guarded) Upsert(ctx context.Context, table string, rows []Row, conflict []string) error {
	_, err := g.do(ctx, func() (any, error) {
		return nil, g.inner.Upsert(ctx, table, rows, conflict)
	})
	return err
}

// Ping bypasses the rate limit but still counts toward the breaker.
func (g *Guarded) Ping(ctx context.Context) error {
	_, err := g.cb.Execute(func() (any, error) {
		return nil, g.inner.Ping(ctx)
	})
	return err
}

// Close closes the wrapped store.
func (g *Guarded) Close() error {
	return g.inner.Close()
}

// State reports the breaker state, for health checks.
func (g *Guarded) State() string {
	return g.cb.State().String()
}
