// Package resilience guards calls to external services: a circuit breaker for
// lookups that must degrade instead of block, and bounded retry for idempotent
// reads (image signing, vision extraction). Writes that must not be repeated
// automatically, such as committing a card, never go through Do.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed lets calls through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects calls until ResetTimeout elapses.
	CircuitOpen
	// CircuitHalfOpen lets probe calls through to test recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a call is rejected because the circuit is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// CircuitBreakerConfig controls circuit breaker behavior.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit. Default: 5.
	FailureThreshold int

	// ResetTimeout is how long the circuit stays open. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMaxProbes is the number of successful probes that close a
	// half-open circuit. Default: 1.
	HalfOpenMaxProbes int

	// ShouldTrip decides whether an error counts as a failure. Nil counts
	// every error except context cancellation.
	ShouldTrip func(err error) bool

	// OnStateChange is called on every transition, under the breaker lock.
	OnStateChange func(from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns the defaults used for duplicate lookups.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:  5,
		ResetTimeout:      30 * time.Second,
		HalfOpenMaxProbes: 1,
	}
}

// CircuitBreaker implements the circuit breaker pattern for a single service.
type CircuitBreaker struct {
	cfg   CircuitBreakerConfig
	mu    sync.Mutex
	state CircuitState

	consecutiveFailures int
	openedAt            time.Time
	halfOpenSuccesses   int

	nowFunc func() time.Time
}

// NewCircuitBreaker creates a circuit breaker with the given config.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.HalfOpenMaxProbes <= 0 {
		cfg.HalfOpenMaxProbes = def.HalfOpenMaxProbes
	}
	if cfg.ShouldTrip == nil {
		cfg.ShouldTrip = defaultShouldTrip
	}
	return &CircuitBreaker{cfg: cfg, state: CircuitClosed, nowFunc: time.Now}
}

// A superseded duplicate check is cancelled on purpose; that says nothing
// about the health of the lookup service.
func defaultShouldTrip(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// Execute runs fn unless the circuit is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := ExecuteVal(ctx, cb, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// ExecuteVal is like Execute but preserves a return value.
func ExecuteVal[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := cb.allow(); err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	cb.record(err)
	return val, err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitOpen && cb.cooledDown() {
		return CircuitHalfOpen
	}
	return cb.state
}

// Reset forces the circuit closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFailures = 0
	cb.halfOpenSuccesses = 0
	cb.transition(CircuitClosed)
}

func (cb *CircuitBreaker) cooledDown() bool {
	return cb.nowFunc().Sub(cb.openedAt) >= cb.cfg.ResetTimeout
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != CircuitOpen {
		return nil
	}
	if cb.cooledDown() {
		cb.transition(CircuitHalfOpen)
		return nil
	}
	return ErrCircuitOpen
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.cfg.ShouldTrip(err) {
		if cb.state == CircuitHalfOpen {
			cb.halfOpenSuccesses++
			if cb.halfOpenSuccesses < cb.cfg.HalfOpenMaxProbes {
				return
			}
			cb.transition(CircuitClosed)
		}
		cb.consecutiveFailures = 0
		cb.halfOpenSuccesses = 0
		return
	}

	cb.consecutiveFailures++
	switch {
	case cb.state == CircuitHalfOpen,
		cb.state == CircuitClosed && cb.consecutiveFailures >= cb.cfg.FailureThreshold:
		cb.openedAt = cb.nowFunc()
		cb.halfOpenSuccesses = 0
		cb.transition(CircuitOpen)
	}
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}
