package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/connect-cli/internal/ingest"
	"github.com/sells-group/connect-cli/internal/review"
	"github.com/sells-group/connect-cli/internal/store"
	"github.com/sells-group/connect-cli/internal/validate"
)

type errorBody struct {
	Error  string                `json:"error"`
	Fields []validate.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case eris.Is(err, ErrSessionNotFound),
		eris.Is(err, store.ErrCardNotFound),
		eris.Is(err, store.ErrMemberNotFound):
		return http.StatusNotFound
	case eris.Is(err, review.ErrActionInFlight),
		eris.Is(err, review.ErrDiscardNotRequested),
		eris.Is(err, store.ErrNotPending),
		eris.Is(err, review.ErrEmptyQueue):
		return http.StatusConflict
	case eris.Is(err, review.ErrCategoryRequired):
		return http.StatusUnprocessableEntity
	case eris.Is(err, review.ErrCapabilityDisabled):
		return http.StatusForbidden
	case eris.Is(err, review.ErrClosed):
		return http.StatusGone
	case eris.Is(err, review.ErrIndexOutOfRange),
		eris.Is(err, review.ErrInvalidCategory),
		eris.Is(err, review.ErrLeaderNotEligible):
		return http.StatusBadRequest
	}
	var rej *ingest.RejectedError
	if errors.As(err, &rej) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// fail writes err with its mapped status. Internal errors are logged and
// their detail withheld.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	var rej *ingest.RejectedError
	if errors.As(err, &rej) {
		body.Fields = rej.Errors
	}
	if status == http.StatusInternalServerError {
		zap.L().Error("api: request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
