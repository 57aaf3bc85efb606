// Package roster loads an organization's members and ministry leaders from
// spreadsheets and seed fixtures.
package roster

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/connect-cli/internal/match"
	"github.com/sells-group/connect-cli/internal/model"
)

// namespace keeps derived ids stable across re-imports of the same sheet.
var namespace = uuid.MustParse("6f1c2d0e-5b7a-4c1e-9a51-3d0b8f4e2a10")

// RowError describes a skipped spreadsheet row. Row is 1-based and counts
// the header.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

func (e RowError) String() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// Members converts sheet rows into members. The first row is the header and
// must contain a "name" column; "email", "phone" and "id" are optional.
// Without an id column, ids are derived from the organization and the
// member's email (or name and phone) so a repeated import updates in place.
func Members(rows [][]string, orgID string) ([]model.Member, []RowError, error) {
	h, body, err := split(rows, "name")
	if err != nil {
		return nil, nil, err
	}
	var out []model.Member
	var skipped []RowError
	for i, row := range body {
		name := h.get(row, "name", "full name")
		email := h.get(row, "email", "email address")
		phone := h.get(row, "phone", "phone number", "mobile")
		if name == "" && email == "" && phone == "" {
			continue
		}
		if name == "" {
			skipped = append(skipped, RowError{Row: i + 2, Reason: "name is blank"})
			continue
		}
		id := h.get(row, "id")
		if id == "" {
			id = deriveID(orgID, "member", memberKey(name, email, phone))
		}
		out = append(out, model.Member{
			ID:             id,
			OrganizationID: orgID,
			Name:           name,
			Email:          email,
			Phone:          phone,
		})
	}
	return out, skipped, nil
}

// Leaders converts sheet rows into leaders. Columns: "name" (required),
// "categories" (comma separated enum values or labels), optional "id".
// A row with an unknown category is skipped whole.
func Leaders(rows [][]string, orgID string) ([]model.Leader, []RowError, error) {
	h, body, err := split(rows, "name")
	if err != nil {
		return nil, nil, err
	}
	var out []model.Leader
	var skipped []RowError
	for i, row := range body {
		name := h.get(row, "name")
		rawCats := h.get(row, "categories", "category", "ministries")
		if name == "" && rawCats == "" {
			continue
		}
		if name == "" {
			skipped = append(skipped, RowError{Row: i + 2, Reason: "name is blank"})
			continue
		}
		cats, err := ParseCategories(rawCats)
		if err != nil {
			skipped = append(skipped, RowError{Row: i + 2, Reason: err.Error()})
			continue
		}
		id := h.get(row, "id")
		if id == "" {
			id = deriveID(orgID, "leader", match.NormalizeName(name))
		}
		out = append(out, model.Leader{ID: id, OrganizationID: orgID, Name: name, Categories: cats})
	}
	return out, skipped, nil
}

// ParseCategories splits a comma separated list, deduplicating. Blank input
// yields an empty list.
func ParseCategories(raw string) ([]model.VolunteerCategory, error) {
	out := []model.VolunteerCategory{}
	seen := map[model.VolunteerCategory]bool{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		c, ok := model.ParseCategory(part)
		if !ok {
			return nil, eris.Errorf("unknown category %q", part)
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out, nil
}

func split(rows [][]string, required string) (header, [][]string, error) {
	if len(rows) == 0 {
		return nil, nil, eris.New("roster: sheet is empty")
	}
	h := parseHeader(rows[0])
	if !h.has(required) {
		return nil, nil, eris.Errorf("roster: header has no %q column", required)
	}
	return h, rows[1:], nil
}

func memberKey(name, email, phone string) string {
	if e := match.NormalizeEmail(email); e != "" {
		return e
	}
	return match.NormalizeName(name) + "|" + match.PhoneDigits(phone)
}

func deriveID(orgID, kind, key string) string {
	return uuid.NewSHA1(namespace, []byte(orgID+"/"+kind+"/"+key)).String()
}
