package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failN(cb *CircuitBreaker, n int) {
	for range n {
		_ = cb.Execute(context.Background(), func(context.Context) error {
			return errors.New("lookup down")
		})
	}
}

func TestCircuitBreaker_ClosedPassesThrough(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())

	calls := 0
	err := cb.Execute(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})
	failN(cb, 3)
	assert.Equal(t, CircuitOpen, cb.State())

	err := cb.Execute(context.Background(), func(context.Context) error {
		t.Error("must not be called while open")
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})
	failN(cb, 2)
	require.NoError(t, cb.Execute(context.Background(), func(context.Context) error { return nil }))
	failN(cb, 2)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Second})
	cb.nowFunc = func() time.Time { return now }

	failN(cb, 1)
	assert.Equal(t, CircuitOpen, cb.State())

	now = now.Add(11 * time.Second)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	require.NoError(t, cb.Execute(context.Background(), func(context.Context) error { return nil }))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Second})
	cb.nowFunc = func() time.Time { return now }

	failN(cb, 1)
	now = now.Add(11 * time.Second)
	failN(cb, 1)
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitBreaker_CancellationDoesNotTrip(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})
	for range 3 {
		_ = cb.Execute(context.Background(), func(context.Context) error {
			return context.Canceled
		})
	}
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	failN(cb, 1)
	cb.Reset()
	assert.Equal(t, []string{"closed->open", "open->closed"}, transitions)
}

func TestExecuteVal(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())
	v, err := ExecuteVal(context.Background(), cb, func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestFromCircuitConfig(t *testing.T) {
	cfg := FromCircuitConfig(7, 12)
	assert.Equal(t, 7, cfg.FailureThreshold)
	assert.Equal(t, 12*time.Second, cfg.ResetTimeout)

	def := FromCircuitConfig(0, 0)
	assert.Equal(t, DefaultCircuitBreakerConfig().FailureThreshold, def.FailureThreshold)
}
