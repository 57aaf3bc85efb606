// Package model defines the connect-card domain types shared across the
// review workflow, the matcher, and the persistence layer.
package model

import (
	"slices"
	"time"
)

// CardStatus is the lifecycle state of a scanned connect card.
type CardStatus string

const (
	CardStatusAwaitingReview CardStatus = "awaiting_review"
	CardStatusActive         CardStatus = "active"
	CardStatusRemoved        CardStatus = "removed"
)

// Scope is the already-resolved caller identity supplied by the auth layer.
type Scope struct {
	OrganizationID string `json:"organization_id"`
	UserID         string `json:"user_id"`
}

// PendingCard is one scanned, AI-extracted contact record awaiting review.
type PendingCard struct {
	ID             string `json:"id" db:"id"`
	OrganizationID string `json:"organization_id" db:"organization_id"`
	BatchID        string `json:"batch_id,omitempty" db:"batch_id"`

	FrontImageKey string `json:"front_image_key,omitempty" db:"front_image_key"`
	BackImageKey  string `json:"back_image_key,omitempty" db:"back_image_key"`

	// Extracted fields
	Name          string   `json:"name,omitempty" db:"name"`
	Email         string   `json:"email,omitempty" db:"email"`
	Phone         string   `json:"phone,omitempty" db:"phone"`
	PrayerRequest string   `json:"prayer_request,omitempty" db:"prayer_request"`
	VisitStatus   string   `json:"visit_status,omitempty" db:"visit_status"`
	Interests     []string `json:"interests,omitempty" db:"interests"`
	Keywords      []string `json:"keywords,omitempty" db:"keywords"`

	// Reviewer-assigned routing
	VolunteerCategory VolunteerCategory `json:"volunteer_category,omitempty" db:"volunteer_category"`
	AssignedLeaderID  string            `json:"assigned_leader_id,omitempty" db:"assigned_leader_id"`
	SMSAutomation     bool              `json:"sms_automation" db:"sms_automation"`

	Status    CardStatus `json:"status" db:"status"`
	ScannedAt time.Time  `json:"scanned_at" db:"scanned_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// HasInterest reports whether label appears in the card's interests.
func (c *PendingCard) HasInterest(label string) bool {
	return slices.Contains(c.Interests, label)
}

// CommitFields are the reviewer-corrected values applied at commit time.
type CommitFields struct {
	Name              string            `json:"name"`
	Email             string            `json:"email"`
	Phone             string            `json:"phone"`
	PrayerRequest     string            `json:"prayer_request"`
	VisitStatus       string            `json:"visit_status"`
	Interests         []string          `json:"interests"`
	Keywords          []string          `json:"keywords"`
	VolunteerCategory VolunteerCategory `json:"volunteer_category,omitempty"`
	AssignedLeaderID  string            `json:"assigned_leader_id,omitempty"`
	SMSAutomation     bool              `json:"sms_automation"`

	// IsExistingMember links the card to MatchedMemberID instead of
	// creating a new member.
	IsExistingMember bool   `json:"is_existing_member"`
	MatchedMemberID  string `json:"matched_member_id,omitempty"`

	SendMessageToLeader     bool `json:"send_message_to_leader"`
	SendOnboardingDocuments bool `json:"send_onboarding_documents"`
}

// CommittedContact is the result of promoting a card into the system of record.
type CommittedContact struct {
	CardID      string    `json:"card_id"`
	MemberID    string    `json:"member_id"`
	Created     bool      `json:"created"`
	CommittedAt time.Time `json:"committed_at"`
}

// QueueStats summarizes one organization's review queue.
type QueueStats struct {
	OrganizationID string `json:"organization_id"`
	Pending        int    `json:"pending"`
	// OldestPending is the scan time of the oldest awaiting card; zero when
	// the queue is empty.
	OldestPending time.Time `json:"oldest_pending,omitempty"`
	Committed     int       `json:"committed"`
	Discarded     int       `json:"discarded"`
}
