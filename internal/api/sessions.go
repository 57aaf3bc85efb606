package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/connect-cli/internal/match"
	"github.com/sells-group/connect-cli/internal/model"
	"github.com/sells-group/connect-cli/internal/review"
)

// ErrSessionNotFound is returned for unknown, expired, or foreign sessions.
var ErrSessionNotFound = eris.New("api: session not found")

const maxSessionEvents = 100

// SessionEvent is the wire form of a review.Event.
type SessionEvent struct {
	Seq       int                     `json:"seq"`
	Kind      review.EventKind        `json:"kind"`
	CardID    string                  `json:"card_id,omitempty"`
	Match     *model.DuplicateMatch   `json:"match,omitempty"`
	Contact   *model.CommittedContact `json:"contact,omitempty"`
	Remaining int                     `json:"remaining"`
	Error     string                  `json:"error,omitempty"`
	At        time.Time               `json:"at"`
}

// Session is one reviewer's controller plus its recent events.
type Session struct {
	ID         string
	Scope      model.Scope
	Controller *review.Controller
	CreatedAt  time.Time

	mu       sync.Mutex
	lastUsed time.Time
	seq      int
	events   []SessionEvent
}

func (s *Session) record(e review.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	ev := SessionEvent{
		Seq:       s.seq,
		Kind:      e.Kind,
		CardID:    e.CardID,
		Match:     e.Match,
		Contact:   e.Contact,
		Remaining: e.Remaining,
		At:        time.Now().UTC(),
	}
	if e.Err != nil {
		ev.Error = e.Err.Error()
	}
	s.events = append(s.events, ev)
	if len(s.events) > maxSessionEvents {
		s.events = s.events[len(s.events)-maxSessionEvents:]
	}
}

// EventsSince returns buffered events with Seq greater than after.
func (s *Session) EventsSince(after int) []SessionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []SessionEvent{}
	for _, e := range s.events {
		if e.Seq > after {
			out = append(out, e)
		}
	}
	return out
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// SessionManager owns the live review sessions of this process.
type SessionManager struct {
	store   review.Store
	checker match.Checker
	opts    review.Options
	idleTTL time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionManager creates a manager. Sessions idle for longer than idleTTL
// are closed by Sweep.
func NewSessionManager(store review.Store, checker match.Checker, opts review.Options, idleTTL time.Duration) *SessionManager {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	return &SessionManager{
		store:    store,
		checker:  checker,
		opts:     opts,
		idleTTL:  idleTTL,
		now:      func() time.Time { return time.Now().UTC() },
		sessions: map[string]*Session{},
	}
}

// Create loads a new review session for scope.
func (m *SessionManager) Create(ctx context.Context, scope model.Scope, batchID string) (*Session, error) {
	now := m.now()
	s := &Session{ID: uuid.New().String(), Scope: scope, CreatedAt: now, lastUsed: now}
	opts := m.opts
	opts.Subscriber = s.record
	s.Controller = review.New(m.store, m.checker, scope, opts)
	if err := s.Controller.Load(ctx, batchID); err != nil {
		s.Controller.Close()
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	zap.L().Info("api: session created",
		zap.String("session_id", s.ID),
		zap.String("org_id", scope.OrganizationID),
		zap.String("user_id", scope.UserID),
	)
	return s, nil
}

// Get returns the session if it belongs to scope's organization and user.
func (m *SessionManager) Get(id string, scope model.Scope) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok || s.Scope != scope {
		return nil, ErrSessionNotFound
	}
	s.touch(m.now())
	return s, nil
}

// Delete closes and forgets a session.
func (m *SessionManager) Delete(id string, scope model.Scope) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok && s.Scope == scope {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok || s.Scope != scope {
		return ErrSessionNotFound
	}
	s.Controller.Close()
	return nil
}

// Sweep closes sessions idle past the TTL and returns how many it closed.
func (m *SessionManager) Sweep() int {
	cutoff := m.now().Add(-m.idleTTL)
	var stale []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
	for _, s := range stale {
		s.Controller.Close()
		zap.L().Debug("api: session expired", zap.String("session_id", s.ID))
	}
	return len(stale)
}

// Run sweeps periodically until ctx is done, then closes every session.
func (m *SessionManager) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			m.CloseAll()
			return
		case <-t.C:
			m.Sweep()
		}
	}
}

// CloseAll closes every session.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = map[string]*Session{}
	m.mu.Unlock()
	for _, s := range all {
		s.Controller.Close()
	}
}

// Len reports the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
