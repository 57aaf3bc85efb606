// Package store is the connect-card persistence boundary: pending card
// queries, duplicate candidate lookups, and the transactional commit that
// promotes a reviewed card into the member roster.
package store

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/connect-cli/internal/match"
	"github.com/sells-group/connect-cli/internal/model"
	"github.com/sells-group/connect-cli/internal/normalize"
)

var (
	// ErrCardNotFound is returned when the card does not exist in the
	// caller's organization.
	ErrCardNotFound = eris.New("store: card not found")
	// ErrNotPending is returned when the card was already committed or
	// discarded.
	ErrNotPending = eris.New("store: card is not awaiting review")
	// ErrMemberNotFound is returned when a commit links to a member that
	// does not exist in the organization.
	ErrMemberNotFound = eris.New("store: member not found")
)

// Store defines the persistence interface for the review workflow.
type Store interface {
	// Review queue
	FindPendingCards(ctx context.Context, orgID, batchID string) ([]model.PendingCard, error)
	InsertPendingCards(ctx context.Context, cards []model.PendingCard) (int64, error)
	CommitCard(ctx context.Context, scope model.Scope, cardID string, fields model.CommitFields) (model.CommittedContact, error)
	DeleteCard(ctx context.Context, scope model.Scope, cardID string) error

	// Duplicate candidates. Exact email hits rank first, then exact phone
	// hits, so the limit only ever trims name-token matches.
	FindMemberCandidates(ctx context.Context, orgID string, q model.CandidateQuery) ([]model.Candidate, error)
	FindPendingCandidates(ctx context.Context, orgID string, q model.CandidateQuery) ([]model.Candidate, error)

	// Roster
	ListLeaders(ctx context.Context, orgID string) ([]model.Leader, error)
	UpsertMembers(ctx context.Context, members []model.Member) (int64, error)
	UpsertLeaders(ctx context.Context, leaders []model.Leader) (int64, error)

	// Monitoring
	QueueStats(ctx context.Context, since time.Time) ([]model.QueueStats, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

const defaultCandidateLimit = 25

// nameToken picks the token used to widen a name lookup: the last word of
// the folded name, usually the family name. It is matched against the
// name_key column, which holds match.NormalizeName of the stored name.
func nameToken(name string) string {
	fields := strings.Fields(match.NormalizeName(name))
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

func candidateLimit(q model.CandidateQuery) int {
	if q.Limit <= 0 {
		return defaultCandidateLimit
	}
	return q.Limit
}

// wantsVolunteer reports whether a commit records a volunteer assignment.
func wantsVolunteer(f model.CommitFields) bool {
	return slices.Contains(f.Interests, normalize.InterestVolunteering) && f.VolunteerCategory != ""
}

func categoriesToStrings(cs []model.VolunteerCategory) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, string(c))
	}
	return out
}

func stringsToCategories(ss []string) []model.VolunteerCategory {
	out := make([]model.VolunteerCategory, 0, len(ss))
	for _, s := range ss {
		out = append(out, model.VolunteerCategory(s))
	}
	return out
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
