package model

import (
	"slices"
	"strings"
	"time"
)

// Member is an existing contact in an organization's system of record.
type Member struct {
	ID             string    `json:"id" db:"id" yaml:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id" yaml:"-"`
	Name           string    `json:"name" db:"name" yaml:"name"`
	Email          string    `json:"email,omitempty" db:"email" yaml:"email"`
	Phone          string    `json:"phone,omitempty" db:"phone" yaml:"phone"`
	CreatedAt      time.Time `json:"created_at" db:"created_at" yaml:"-"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at" yaml:"-"`
}

// Leader is a ministry leader who can receive volunteer assignments.
type Leader struct {
	ID             string              `json:"id" db:"id" yaml:"id"`
	OrganizationID string              `json:"organization_id" db:"organization_id" yaml:"-"`
	Name           string              `json:"name" db:"name" yaml:"name"`
	Categories     []VolunteerCategory `json:"categories" db:"categories" yaml:"categories"`
}

// Covers reports whether the leader declared the given category.
func (l Leader) Covers(c VolunteerCategory) bool {
	return slices.Contains(l.Categories, c)
}

// CandidateKind identifies where a duplicate candidate came from.
type CandidateKind string

const (
	CandidateMember      CandidateKind = "member"
	CandidatePendingCard CandidateKind = "pending_card"
)

// Candidate is a potential duplicate returned by the lookup boundary.
type Candidate struct {
	ID    string        `json:"id"`
	Kind  CandidateKind `json:"kind"`
	Name  string        `json:"name,omitempty"`
	Email string        `json:"email,omitempty"`
	Phone string        `json:"phone,omitempty"`
}

// CandidateQuery narrows a candidate lookup. Empty fields are ignored;
// non-empty fields are OR-ed together.
type CandidateQuery struct {
	Email         string
	NameLike      string
	PhoneDigits   string
	ExcludeCardID string
	Limit         int
}

// Empty reports whether the query has nothing to search on.
func (q CandidateQuery) Empty() bool {
	return strings.TrimSpace(q.Email) == "" &&
		strings.TrimSpace(q.NameLike) == "" &&
		q.PhoneDigits == ""
}
