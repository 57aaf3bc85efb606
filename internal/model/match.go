package model

// MatchType is the duplicate tier that fired. Tiers are listed in priority order.
type MatchType string

const (
	MatchNone                 MatchType = ""
	MatchMemberEmail          MatchType = "member_email"
	MatchPendingCardEmail     MatchType = "pending_card_email"
	MatchMemberNamePhone      MatchType = "member_name_phone"
	MatchPendingCardNamePhone MatchType = "pending_card_name_phone"
)

// Discrepancies flags identity fields that differ between the card and the
// matched record.
type Discrepancies struct {
	Name  bool `json:"name"`
	Email bool `json:"email"`
	Phone bool `json:"phone"`
}

// DuplicateMatch is the outcome of a duplicate check against the current
// identity fields of a card.
type DuplicateMatch struct {
	IsDuplicate bool      `json:"is_duplicate"`
	MatchType   MatchType `json:"match_type,omitempty"`
	Confidence  float64   `json:"confidence"`

	MemberID string     `json:"member_id,omitempty"`
	CardID   string     `json:"card_id,omitempty"`
	Matched  *Candidate `json:"matched,omitempty"`

	Discrepancies   Discrepancies `json:"discrepancies"`
	NameSimilarity  float64       `json:"name_similarity"`
	PhoneSimilarity float64       `json:"phone_similarity"`

	// CheckFailed is set when the lookup could not complete. The result is
	// then a no-match and must be surfaced as "check did not run".
	CheckFailed bool `json:"check_failed,omitempty"`
}

// NoMatch is the zero duplicate result.
func NoMatch() DuplicateMatch {
	return DuplicateMatch{}
}
