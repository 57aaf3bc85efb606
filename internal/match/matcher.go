// Package match decides whether a connect card refers to someone the
// organization already knows about.
package match

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/connect-cli/internal/model"
	"github.com/sells-group/connect-cli/internal/resilience"
)

// Finder is the candidate lookup boundary. Both methods return records in
// orgID whose email equals q.Email, whose phone digits equal q.PhoneDigits,
// or whose name resembles q.NameLike.
type Finder interface {
	FindMemberCandidates(ctx context.Context, orgID string, q model.CandidateQuery) ([]model.Candidate, error)
	FindPendingCandidates(ctx context.Context, orgID string, q model.CandidateQuery) ([]model.Candidate, error)
}

// Checker is what the review workflow depends on.
type Checker interface {
	Check(ctx context.Context, orgID string, q Query) model.DuplicateMatch
}

// Query carries the identity fields of the card being reviewed.
type Query struct {
	Name          string
	Email         string
	Phone         string
	ExcludeCardID string
}

// Config tunes the name+phone tiers and the lookup guard.
type Config struct {
	NameThreshold  float64
	PhoneThreshold float64
	// NameWeight is the share of the name score in the combined confidence;
	// the phone score gets the rest.
	NameWeight     float64
	LookupTimeout  time.Duration
	CandidateLimit int
	Circuit        resilience.CircuitBreakerConfig
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		NameThreshold:  0.85,
		PhoneThreshold: 0.85,
		NameWeight:     0.6,
		LookupTimeout:  3 * time.Second,
		CandidateLimit: 25,
		Circuit:        resilience.DefaultCircuitBreakerConfig(),
	}
}

// Matcher runs the tiered duplicate check.
type Matcher struct {
	finder  Finder
	cfg     Config
	breaker *resilience.CircuitBreaker
}

// New creates a Matcher.
func New(finder Finder, cfg Config) *Matcher {
	def := DefaultConfig()
	if cfg.NameThreshold <= 0 {
		cfg.NameThreshold = def.NameThreshold
	}
	if cfg.PhoneThreshold <= 0 {
		cfg.PhoneThreshold = def.PhoneThreshold
	}
	if cfg.NameWeight <= 0 || cfg.NameWeight >= 1 {
		cfg.NameWeight = def.NameWeight
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = def.LookupTimeout
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = def.CandidateLimit
	}
	return &Matcher{finder: finder, cfg: cfg, breaker: resilience.NewCircuitBreaker(cfg.Circuit)}
}

// Check evaluates the tiers in priority order and returns the first that
// fires:
//  1. member with the same email (confidence 1.0)
//  2. other pending card with the same email (confidence 1.0)
//  3. member whose name and phone both clear their thresholds
//  4. other pending card, same rule as 3
//
// Scores are never averaged across tiers. A lookup failure yields a
// no-match with CheckFailed set; Check never returns an error so review is
// never blocked on it.
func (m *Matcher) Check(ctx context.Context, orgID string, q Query) model.DuplicateMatch {
	email := NormalizeEmail(q.Email)
	name := strings.TrimSpace(q.Name)
	phone := PhoneDigits(q.Phone)
	namePhone := name != "" && phone != ""
	if email == "" && !namePhone {
		return model.NoMatch()
	}

	cq := model.CandidateQuery{Email: email, ExcludeCardID: q.ExcludeCardID, Limit: m.cfg.CandidateLimit}
	if namePhone {
		cq.NameLike = name
		cq.PhoneDigits = phone
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.LookupTimeout)
	defer cancel()

	members, err := resilience.ExecuteVal(ctx, m.breaker, func(ctx context.Context) ([]model.Candidate, error) {
		return m.finder.FindMemberCandidates(ctx, orgID, cq)
	})
	if err != nil {
		return m.failed(orgID, "members", err)
	}
	if c, ok := emailHit(members, email); ok {
		return m.hit(model.MatchMemberEmail, 1.0, c, q)
	}

	pending, err := resilience.ExecuteVal(ctx, m.breaker, func(ctx context.Context) ([]model.Candidate, error) {
		return m.finder.FindPendingCandidates(ctx, orgID, cq)
	})
	if err != nil {
		return m.failed(orgID, "pending cards", err)
	}
	if c, ok := emailHit(pending, email); ok {
		return m.hit(model.MatchPendingCardEmail, 1.0, c, q)
	}

	if !namePhone {
		return model.NoMatch()
	}
	if c, score, ok := m.namePhoneHit(members, name, phone); ok {
		return m.hit(model.MatchMemberNamePhone, score, c, q)
	}
	if c, score, ok := m.namePhoneHit(pending, name, phone); ok {
		return m.hit(model.MatchPendingCardNamePhone, score, c, q)
	}
	return model.NoMatch()
}

func emailHit(cands []model.Candidate, email string) (model.Candidate, bool) {
	if email == "" {
		return model.Candidate{}, false
	}
	for _, c := range cands {
		if NormalizeEmail(c.Email) == email {
			return c, true
		}
	}
	return model.Candidate{}, false
}

func (m *Matcher) namePhoneHit(cands []model.Candidate, name, phone string) (model.Candidate, float64, bool) {
	var best model.Candidate
	bestScore := -1.0
	for _, c := range cands {
		ns := NameSimilarity(name, c.Name)
		ps := PhoneSimilarity(phone, c.Phone)
		if ns < m.cfg.NameThreshold || ps < m.cfg.PhoneThreshold {
			continue
		}
		score := m.cfg.NameWeight*ns + (1-m.cfg.NameWeight)*ps
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best, bestScore, bestScore >= 0
}

func (m *Matcher) hit(mt model.MatchType, confidence float64, c model.Candidate, q Query) model.DuplicateMatch {
	matched := c
	res := model.DuplicateMatch{
		IsDuplicate:     true,
		MatchType:       mt,
		Confidence:      confidence,
		Matched:         &matched,
		NameSimilarity:  NameSimilarity(q.Name, c.Name),
		PhoneSimilarity: PhoneSimilarity(q.Phone, c.Phone),
		Discrepancies: model.Discrepancies{
			Name:  differs(NormalizeName(q.Name), NormalizeName(c.Name)),
			Email: differs(NormalizeEmail(q.Email), NormalizeEmail(c.Email)),
			Phone: differs(PhoneDigits(q.Phone), PhoneDigits(c.Phone)),
		},
	}
	if c.Kind == model.CandidatePendingCard {
		res.CardID = c.ID
	} else {
		res.MemberID = c.ID
	}
	zap.L().Debug("match: duplicate found",
		zap.String("match_type", string(mt)),
		zap.String("candidate_id", c.ID),
		zap.Float64("confidence", confidence),
	)
	return res
}

// differs is true only when both sides have a value and they disagree.
func differs(a, b string) bool {
	return a != "" && b != "" && a != b
}

func (m *Matcher) failed(orgID, what string, err error) model.DuplicateMatch {
	zap.L().Warn("match: lookup failed, treating as no match",
		zap.String("organization_id", orgID),
		zap.String("lookup", what),
		zap.String("circuit", m.breaker.State().String()),
		zap.Error(err),
	)
	return model.DuplicateMatch{CheckFailed: true}
}
