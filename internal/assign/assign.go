// Package assign routes a volunteer category to the leaders allowed to
// receive it.
package assign

import (
	"github.com/sells-group/connect-cli/internal/model"
)

// EligibleLeaders returns the leaders whose declared categories include
// category, preserving input order. An empty category has no eligible
// leaders.
func EligibleLeaders(category model.VolunteerCategory, leaders []model.Leader) []model.Leader {
	if category == "" {
		return nil
	}
	out := make([]model.Leader, 0, len(leaders))
	for _, l := range leaders {
		if l.Covers(category) {
			out = append(out, l)
		}
	}
	return out
}

// IsEligible reports whether leaderID may be assigned under category.
func IsEligible(category model.VolunteerCategory, leaderID string, leaders []model.Leader) bool {
	if leaderID == "" {
		return false
	}
	for _, l := range EligibleLeaders(category, leaders) {
		if l.ID == leaderID {
			return true
		}
	}
	return false
}

// Reconcile re-applies eligibility after a category change or a leader list
// reload. It returns the leader id to keep and whether a previous selection
// was dropped.
func Reconcile(category model.VolunteerCategory, leaderID string, leaders []model.Leader) (string, bool) {
	if leaderID == "" {
		return "", false
	}
	if IsEligible(category, leaderID, leaders) {
		return leaderID, false
	}
	return "", true
}
