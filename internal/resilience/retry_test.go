package resilience

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestDo_SucceedsAfterTransient(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(3), func(context.Context) error {
		calls++
		if calls < 2 {
			return NewTransientError(errors.New("503"), 503)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(3), func(context.Context) error {
		calls++
		return NewTransientError(errors.New("always"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentErrorNotRetried(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(3), func(context.Context) error {
		calls++
		return errors.New("bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, RetryConfig{MaxAttempts: 5, InitialBackoff: 20 * time.Millisecond}, func(context.Context) error {
		calls++
		cancel()
		return NewTransientError(errors.New("fail"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_OnRetry(t *testing.T) {
	var attempts []int
	cfg := fastRetry(3)
	cfg.OnRetry = func(attempt int, _ error) { attempts = append(attempts, attempt) }

	calls := 0
	v, err := DoVal(context.Background(), cfg, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(errors.New("429"), 429)
		}
		return "signed", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "signed", v)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestBackoff_Capped(t *testing.T) {
	cfg := withDefaults(RetryConfig{InitialBackoff: time.Second, MaxBackoff: 2 * time.Second})
	assert.Equal(t, 2*time.Second, backoff(5, cfg))
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("invalid input"), false},
		{"explicit", NewTransientError(errors.New("x"), 503), true},
		{"wrapped explicit", fmt.Errorf("call: %w", NewTransientError(errors.New("x"), 429)), true},
		{"deadline", context.DeadlineExceeded, true},
		{"cancelled", context.Canceled, false},
		{"conn reset", fmt.Errorf("write: %w", syscall.ECONNRESET), true},
		{"pg serialization", &pgconn.PgError{Code: "40001"}, true},
		{"pg connection", &pgconn.PgError{Code: "08006"}, true},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"message pattern", errors.New("read tcp: i/o timeout"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	assert.True(t, IsTransientHTTPStatus(429))
	assert.True(t, IsTransientHTTPStatus(529))
	assert.False(t, IsTransientHTTPStatus(400))
	assert.False(t, IsTransientHTTPStatus(200))
}

func TestFromRetryConfig(t *testing.T) {
	cfg := FromRetryConfig(5, 100, 1000)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, time.Second, cfg.MaxBackoff)
}
