package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls retry behavior with exponential backoff and jitter.
type RetryConfig struct {
	// MaxAttempts counts the first try. 1 disables retries. Default: 3.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry. Default: 250ms.
	InitialBackoff time.Duration

	// MaxBackoff caps a single delay. Default: 5s.
	MaxBackoff time.Duration

	// Multiplier scales the delay after each attempt. Default: 2.0.
	Multiplier float64

	// JitterFraction adds ±fraction of random jitter to each delay.
	JitterFraction float64

	// ShouldRetry overrides IsTransient.
	ShouldRetry func(err error) bool

	// OnRetry is called before each retry sleep.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig suits interactive calls where a reviewer is waiting.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, exhausts
// MaxAttempts, or ctx is done. The last error is returned.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for functions that return a value.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = withDefaults(cfg)
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !shouldRetry(err) || attempt == cfg.MaxAttempts-1 {
			break
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err)
		}

		timer := time.NewTimer(backoff(attempt, cfg))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

func withDefaults(cfg RetryConfig) RetryConfig {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = def.Multiplier
	}
	if cfg.JitterFraction < 0 {
		cfg.JitterFraction = 0
	}
	return cfg
}

func backoff(attempt int, cfg RetryConfig) time.Duration {
	d := math.Min(float64(cfg.InitialBackoff)*math.Pow(cfg.Multiplier, float64(attempt)), float64(cfg.MaxBackoff))
	if cfg.JitterFraction > 0 {
		d += (rand.Float64()*2 - 1) * d * cfg.JitterFraction
	}
	return time.Duration(math.Max(d, 0))
}

// RetryLogger returns an OnRetry callback that logs each attempt.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
