// Package api hosts review sessions over HTTP. Callers arrive with an
// already-resolved organization and user in the X-Organization-ID and
// X-User-ID headers.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/sells-group/connect-cli/internal/imageurl"
	"github.com/sells-group/connect-cli/internal/ingest"
	"github.com/sells-group/connect-cli/internal/model"
)

const (
	headerOrg  = "X-Organization-ID"
	headerUser = "X-User-ID"
)

// CardLister lists the review queue.
type CardLister interface {
	FindPendingCards(ctx context.Context, orgID, batchID string) ([]model.PendingCard, error)
}

// Ingester queues one extracted payload.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (model.PendingCard, error)
}

// Config holds the server dependencies.
type Config struct {
	Sessions         *SessionManager
	Cards            CardLister
	Ingester         Ingester
	Images           *imageurl.Resolver
	CORSOrigins      []string
	IngestRatePerMin int
	// Pinger backs the health check. Optional.
	Pinger interface{ Ping(ctx context.Context) error }
}

// Server routes review requests to sessions.
type Server struct {
	cfg      Config
	limiters *orgLimiters
}

// NewServer creates a Server.
func NewServer(cfg Config) *Server {
	return &Server{cfg: cfg, limiters: newOrgLimiters(cfg.IngestRatePerMin)}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", headerOrg, headerUser},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Use(requireScope)

		r.With(s.rateLimit).Post("/cards", s.handleIngestCard)
		r.Get("/cards", s.handleListCards)

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Get("/events", s.handleSessionEvents)
			r.Patch("/form", s.handlePatchForm)
			r.Post("/navigate", s.handleNavigate)
			r.Post("/save", s.handleSave)
			r.Post("/discard", s.handleRequestDiscard)
			r.Post("/discard/confirm", s.handleConfirmDiscard)
			r.Post("/discard/cancel", s.handleCancelDiscard)
			r.Post("/leaders/reload", s.handleReloadLeaders)
		})
	})
	return r
}

type scopeKey struct{}

// requireScope rejects requests without an organization header.
func requireScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope := model.Scope{
			OrganizationID: r.Header.Get(headerOrg),
			UserID:         r.Header.Get(headerUser),
		}
		if scope.OrganizationID == "" {
			writeError(w, http.StatusUnauthorized, "missing "+headerOrg+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), scopeKey{}, scope)))
	})
}

func scopeFrom(ctx context.Context) model.Scope {
	s, _ := ctx.Value(scopeKey{}).(model.Scope)
	return s
}

// orgLimiters hands out one token bucket per organization.
type orgLimiters struct {
	perMin int

	mu sync.Mutex
	m  map[string]*rate.Limiter
}

func newOrgLimiters(perMin int) *orgLimiters {
	return &orgLimiters{perMin: perMin, m: map[string]*rate.Limiter{}}
}

func (o *orgLimiters) allow(orgID string) bool {
	if o.perMin <= 0 {
		return true
	}
	o.mu.Lock()
	l, ok := o.m[orgID]
	if !ok {
		l = rate.NewLimiter(rate.Every(time.Minute/time.Duration(o.perMin)), o.perMin)
		o.m[orgID] = l
	}
	o.mu.Unlock()
	return l.Allow()
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiters.allow(scopeFrom(r.Context()).OrganizationID) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "ingest rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
