package review

import (
	"slices"

	"github.com/sells-group/connect-cli/internal/assign"
	"github.com/sells-group/connect-cli/internal/match"
	"github.com/sells-group/connect-cli/internal/model"
	"github.com/sells-group/connect-cli/internal/normalize"
)

// FormState is the editable projection of the card under the cursor. It is
// rebuilt from the PendingCard every time the cursor moves.
type FormState struct {
	CardID            string                  `json:"card_id"`
	Name              string                  `json:"name"`
	Email             string                  `json:"email"`
	Phone             string                  `json:"phone"`
	PrayerRequest     string                  `json:"prayer_request"`
	VisitStatus       string                  `json:"visit_status"`
	Interests         []string                `json:"interests"`
	Keywords          []string                `json:"keywords"`
	VolunteerCategory model.VolunteerCategory `json:"volunteer_category,omitempty"`
	AssignedLeaderID  string                  `json:"assigned_leader_id,omitempty"`
	SMSAutomation     bool                    `json:"sms_automation"`

	// IsExistingMember follows the duplicate check until the reviewer sets
	// it explicitly.
	IsExistingMember        bool `json:"is_existing_member"`
	SendMessageToLeader     bool `json:"send_message_to_leader"`
	SendOnboardingDocuments bool `json:"send_onboarding_documents"`
}

// Volunteering reports whether the Volunteering interest is selected.
func (f *FormState) Volunteering() bool {
	return slices.Contains(f.Interests, normalize.InterestVolunteering)
}

func (f *FormState) clone() FormState {
	out := *f
	out.Interests = slices.Clone(f.Interests)
	out.Keywords = slices.Clone(f.Keywords)
	return out
}

func (f *FormState) setInterest(label string, on bool) {
	has := slices.Contains(f.Interests, label)
	switch {
	case on && !has:
		f.Interests = append(f.Interests, label)
	case !on && has:
		f.Interests = slices.DeleteFunc(f.Interests, func(s string) bool { return s == label })
	}
}

func (f *FormState) query() match.Query {
	return match.Query{Name: f.Name, Email: f.Email, Phone: f.Phone, ExcludeCardID: f.CardID}
}

func (f *FormState) commitFields(dup model.DuplicateMatch, smsEnabled bool) model.CommitFields {
	cf := model.CommitFields{
		Name:                    f.Name,
		Email:                   f.Email,
		Phone:                   f.Phone,
		PrayerRequest:           f.PrayerRequest,
		VisitStatus:             f.VisitStatus,
		Interests:               slices.Clone(f.Interests),
		Keywords:                slices.Clone(f.Keywords),
		VolunteerCategory:       f.VolunteerCategory,
		AssignedLeaderID:        f.AssignedLeaderID,
		SMSAutomation:           smsEnabled && f.SMSAutomation,
		IsExistingMember:        f.IsExistingMember,
		SendMessageToLeader:     f.SendMessageToLeader && f.AssignedLeaderID != "",
		SendOnboardingDocuments: f.SendOnboardingDocuments,
	}
	if f.IsExistingMember {
		cf.MatchedMemberID = dup.MemberID
	}
	return cf
}

// newForm derives a fresh form from card. A stored leader that no longer
// covers the stored category is dropped.
func newForm(card model.PendingCard, leaders []model.Leader) FormState {
	f := FormState{
		CardID:            card.ID,
		Name:              card.Name,
		Email:             card.Email,
		Phone:             card.Phone,
		PrayerRequest:     card.PrayerRequest,
		VisitStatus:       card.VisitStatus,
		Interests:         slices.Clone(card.Interests),
		Keywords:          slices.Clone(card.Keywords),
		VolunteerCategory: card.VolunteerCategory,
		SMSAutomation:     card.SMSAutomation,
	}
	if f.Interests == nil {
		f.Interests = []string{}
	}
	if f.Keywords == nil {
		f.Keywords = []string{}
	}
	f.AssignedLeaderID, _ = assign.Reconcile(card.VolunteerCategory, card.AssignedLeaderID, leaders)
	return f
}
