// Package normalize canonicalizes noisy AI-extracted connect-card text into
// the fixed review vocabulary.
//
// Keyword groups are checked in declaration order and the first group whose
// keyword is a substring of the input wins. Groups overlap ("volunteer with
// small group"), so the order here is part of the classification contract
// and must not be rearranged.
package normalize

import "strings"

// Visit status labels.
const (
	VisitFirst   = "First Visit"
	VisitSecond  = "Second Visit"
	VisitRegular = "Regular attendee"
)

// Interest labels.
const (
	InterestVolunteering = "Volunteering"
	InterestSmallGroups  = "Small Groups"
	InterestYouth        = "Youth Ministry"
	InterestKids         = "Kids Ministry"
	InterestWorship      = "Worship"
	InterestMissions     = "Missions"
)

type keywordGroup struct {
	label    string
	keywords []string
}

var visitGroups = []keywordGroup{
	{VisitFirst, []string{"first", "new"}},
	{VisitSecond, []string{"second", "2nd"}},
	{VisitRegular, []string{"regular", "member", "returning", "frequent", "attend"}},
}

var interestGroups = []keywordGroup{
	{InterestVolunteering, []string{"volunteer", "serv", "involved", "help"}},
	{InterestSmallGroups, []string{"small group", "life group", "bible study"}},
	{InterestYouth, []string{"youth", "student", "teen"}},
	{InterestKids, []string{"kid", "child", "nursery"}},
	{InterestWorship, []string{"worship", "music", "band", "choir"}},
	{InterestMissions, []string{"mission", "outreach"}},
}

// classify returns the label of the first group with a keyword contained in s.
func classify(s string, groups []keywordGroup) (string, bool) {
	for _, g := range groups {
		for _, kw := range g.keywords {
			if strings.Contains(s, kw) {
				return g.label, true
			}
		}
	}
	return "", false
}

// VisitStatus maps a raw visit-type answer to a canonical label. Unmatched
// input is returned unchanged so a reviewer can correct it; "" stays "".
func VisitStatus(raw string) string {
	if raw == "" {
		return ""
	}
	if label, ok := classify(strings.ToLower(strings.TrimSpace(raw)), visitGroups); ok {
		return label
	}
	return raw
}

// Interests maps raw interest entries to canonical labels. Each label is
// emitted at most once; unmatched entries pass through verbatim, deduplicated
// by exact value. Output preserves first-seen order.
func Interests(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		v := r
		if label, ok := classify(strings.ToLower(r), interestGroups); ok {
			v = label
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// Keywords lower-cases and trims campaign keywords and drops empties.
// Repeats are kept: a keyword mentioned twice is a stronger signal.
func Keywords(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		k := strings.ToLower(strings.TrimSpace(r))
		if k == "" {
			continue
		}
		out = append(out, k)
	}
	return out
}
