package model

import "strings"

// VolunteerCategory is the fixed set of serving areas a volunteer can be routed to.
type VolunteerCategory string

// CategoryGeneral is the no-assignment default.
const CategoryGeneral VolunteerCategory = "GENERAL"

const (
	CategoryGreeter      VolunteerCategory = "GREETER"
	CategoryParking      VolunteerCategory = "PARKING"
	CategoryUsher        VolunteerCategory = "USHER"
	CategoryHospitality  VolunteerCategory = "HOSPITALITY"
	CategoryKidsMinistry VolunteerCategory = "KIDS_MINISTRY"
	CategoryYouth        VolunteerCategory = "YOUTH"
	CategoryWorshipTeam  VolunteerCategory = "WORSHIP_TEAM"
	CategoryProduction   VolunteerCategory = "PRODUCTION"
	CategoryPrayerTeam   VolunteerCategory = "PRAYER_TEAM"
	CategoryOutreach     VolunteerCategory = "OUTREACH"
)

// Categories lists every category in display order.
var Categories = []VolunteerCategory{
	CategoryGeneral,
	CategoryGreeter,
	CategoryParking,
	CategoryUsher,
	CategoryHospitality,
	CategoryKidsMinistry,
	CategoryYouth,
	CategoryWorshipTeam,
	CategoryProduction,
	CategoryPrayerTeam,
	CategoryOutreach,
}

var categoryLabels = map[VolunteerCategory]string{
	CategoryGeneral:      "General",
	CategoryGreeter:      "Greeter",
	CategoryParking:      "Parking",
	CategoryUsher:        "Usher",
	CategoryHospitality:  "Hospitality",
	CategoryKidsMinistry: "Kids Ministry",
	CategoryYouth:        "Youth",
	CategoryWorshipTeam:  "Worship Team",
	CategoryProduction:   "Production",
	CategoryPrayerTeam:   "Prayer Team",
	CategoryOutreach:     "Outreach",
}

// Valid reports whether c is a known category.
func (c VolunteerCategory) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label returns the display label, or the raw value for unknown categories.
func (c VolunteerCategory) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// ParseCategory accepts either the enum value or its display label,
// case-insensitively.
func ParseCategory(s string) (VolunteerCategory, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, c := range Categories {
		if strings.EqualFold(string(c), s) || strings.EqualFold(c.Label(), s) {
			return c, true
		}
	}
	return "", false
}
