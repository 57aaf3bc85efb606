package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// TransientError marks an error as safe to retry (429, 5xx, timeouts).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps err as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

var transientPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
}

// IsTransient reports whether err (or anything it wraps) is worth retrying.
// Deadline expiry counts; explicit cancellation does not.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// Postgres: serialization failures and connection exceptions.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || strings.HasPrefix(pgErr.Code, "08")
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether an HTTP status is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504, 529:
		return true
	default:
		return false
	}
}
