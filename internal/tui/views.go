package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sells-group/connect-cli/internal/model"
	"github.com/sells-group/connect-cli/internal/review"
)

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.snap.State == review.StateEmpty {
		return m.renderEmpty()
	}

	var b strings.Builder
	b.WriteString(m.theme.Title.Render(fmt.Sprintf("Connect card %d of %d", m.snap.Cursor+1, m.snap.Length)))
	b.WriteString("\n")
	b.WriteString(m.renderDuplicate())
	b.WriteString("\n\n")
	b.WriteString(m.theme.Box.Render(m.renderForm()))
	b.WriteString("\n")

	if m.editing != editNone {
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	if m.snap.DiscardPending {
		b.WriteString(m.theme.Dialog.Render("Discard this card? It will not be added to your contacts.\n[y] discard  [esc] keep"))
		b.WriteString("\n")
	}
	for field, msg := range m.snap.ValidationErrors {
		b.WriteString(m.theme.Error.Render(fmt.Sprintf("%s: %s", field, msg)))
		b.WriteString("\n")
	}
	switch {
	case m.err != nil:
		b.WriteString(m.theme.Error.Render(m.err.Error()))
		b.WriteString("\n")
	case m.status != "":
		b.WriteString(m.theme.Success.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderEmpty() string {
	msg := "No cards are waiting for review."
	if m.snap.Outcome == review.OutcomeBatchComplete {
		msg = "Batch complete. Every card has been reviewed."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.theme.Title.Render(msg),
		m.theme.Muted.Render("press q to quit"),
	)
}

func (m Model) renderDuplicate() string {
	switch m.snap.CheckStatus {
	case review.CheckRunning:
		return m.theme.Info.Render("Checking for duplicates...")
	case review.CheckFailed:
		return m.theme.Warning.Render("Duplicate check did not run")
	}
	dm := m.snap.Match
	if !dm.IsDuplicate {
		return m.theme.Success.Render("No duplicate found")
	}
	where := "an existing member"
	if dm.MatchType == model.MatchPendingCardEmail || dm.MatchType == model.MatchPendingCardNamePhone {
		where = "another pending card"
	}
	line := fmt.Sprintf("Possible duplicate of %s (%s, %.0f%%)", where, dm.MatchType, dm.Confidence*100)
	if dm.Matched != nil {
		line += fmt.Sprintf("\n  %s  %s  %s", dm.Matched.Name, dm.Matched.Email, dm.Matched.Phone)
	}
	var diffs []string
	if dm.Discrepancies.Name {
		diffs = append(diffs, "name")
	}
	if dm.Discrepancies.Email {
		diffs = append(diffs, "email")
	}
	if dm.Discrepancies.Phone {
		diffs = append(diffs, "phone")
	}
	if len(diffs) > 0 {
		line += "\n  differs in: " + strings.Join(diffs, ", ")
	}
	return m.theme.Warning.Render(line)
}

func (m Model) renderForm() string {
	f := m.snap.Form
	if f == nil {
		return ""
	}
	rows := [][2]string{
		{"Name", f.Name},
		{"Email", f.Email},
		{"Phone", f.Phone},
		{"Visit", f.VisitStatus},
		{"Prayer request", f.PrayerRequest},
		{"Interests", strings.Join(f.Interests, ", ")},
		{"Keywords", strings.Join(f.Keywords, ", ")},
	}
	if f.Volunteering() {
		rows = append(rows,
			[2]string{"Category", m.categoryLabel(f.VolunteerCategory)},
			[2]string{"Leader", m.leaderName(f.AssignedLeaderID)},
			[2]string{"Notify leader", check(f.SendMessageToLeader)},
		)
	}
	rows = append(rows,
		[2]string{"Existing member", check(f.IsExistingMember)},
		[2]string{"Onboarding docs", check(f.SendOnboardingDocuments)},
	)
	if m.snap.Capabilities.SMSAutomation {
		rows = append(rows, [2]string{"SMS follow-up", check(f.SMSAutomation)})
	}
	if card := m.snap.Card; card != nil {
		imageKey := card.FrontImageKey
		if m.snap.Image.Side == review.SideBack {
			imageKey = card.BackImageKey
		}
		rows = append(rows, [2]string{"Image (" + string(m.snap.Image.Side) + ")", imageKey})
	}

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		v := r[1]
		if v == "" {
			v = m.theme.Muted.Render("-")
		} else {
			v = m.theme.Value.Render(v)
		}
		lines = append(lines, m.theme.Label.Render(r[0])+v)
	}
	return strings.Join(lines, "\n")
}

func (m Model) categoryLabel(c model.VolunteerCategory) string {
	if c == "" {
		return ""
	}
	return m.theme.Selected.Render(c.Label())
}

func (m Model) leaderName(id string) string {
	if id == "" {
		return ""
	}
	for _, l := range m.snap.EligibleLeaders {
		if l.ID == id {
			return l.Name
		}
	}
	return id
}

func (m Model) renderHelp() string {
	parts := make([]string, 0, 12)
	for _, b := range m.keys.help() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return m.theme.Muted.Render(strings.Join(parts, " • "))
}

func check(v bool) string {
	if v {
		return "[x]"
	}
	return "[ ]"
}
