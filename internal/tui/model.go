// Package tui hosts a review session in the terminal.
package tui

import (
	"context"
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sells-group/connect-cli/internal/model"
	"github.com/sells-group/connect-cli/internal/normalize"
	"github.com/sells-group/connect-cli/internal/review"
	"github.com/sells-group/connect-cli/internal/validate"
)

// Reviewer is the part of review.Controller the terminal drives.
type Reviewer interface {
	Snapshot() review.Snapshot
	Next() error
	Prev() error
	Save(ctx context.Context) (model.CommittedContact, error)
	RequestDiscard() error
	CancelDiscard()
	ConfirmDiscard(ctx context.Context) error
	SetName(v string) error
	SetEmail(v string) error
	SetPhone(v string) error
	SetPrayerRequest(v string) error
	SetInterest(label string, on bool) error
	SetCategory(cat model.VolunteerCategory) error
	SetLeader(id string) error
	SetExistingMember(v bool) error
	SetSendMessageToLeader(v bool) error
	SetSendOnboardingDocuments(v bool) error
	SetSMSAutomation(v bool) error
	FlipImage() error
}

// Events fans controller events into the program. Publish never blocks;
// the snapshot is re-read on every message so a dropped event only delays
// a redraw.
type Events struct {
	ch chan review.Event
}

// NewEvents creates an event bridge. Pass Publish as review.Options.Subscriber.
func NewEvents() *Events {
	return &Events{ch: make(chan review.Event, 64)}
}

// Publish forwards e to the program.
func (e *Events) Publish(ev review.Event) {
	select {
	case e.ch <- ev:
	default:
	}
}

type eventMsg review.Event

type actionDoneMsg struct {
	action  string
	contact model.CommittedContact
	err     error
}

type editField int

const (
	editNone editField = iota
	editName
	editEmail
	editPhone
	editPrayer
)

func (f editField) label() string {
	switch f {
	case editName:
		return "Name"
	case editEmail:
		return "Email"
	case editPhone:
		return "Phone"
	case editPrayer:
		return "Prayer request"
	}
	return ""
}

// charLimit is the validator's bound for the field. A stored value that is
// already longer keeps its full length so opening the editor never cuts it.
func (f editField) charLimit(current string) int {
	limit := 0
	switch f {
	case editName:
		limit = validate.MaxNameLen
	case editEmail:
		limit = validate.MaxEmailLen
	case editPhone:
		limit = validate.MaxPhoneLen
	case editPrayer:
		limit = validate.MaxPrayerRequestLen
	}
	return max(limit, utf8.RuneCountInString(current))
}

// Model is the bubbletea model for one review session.
type Model struct {
	ctx    context.Context
	rev    Reviewer
	events *Events
	keys   KeyMap
	theme  Theme

	snap    review.Snapshot
	status  string
	err     error
	busy    bool
	editing editField
	input   textinput.Model

	width    int
	height   int
	quitting bool
}

// New creates a model. events may be nil.
func New(ctx context.Context, rev Reviewer, events *Events) Model {
	ti := textinput.New()
	return Model{
		ctx:    ctx,
		rev:    rev,
		events: events,
		keys:   DefaultKeyMap(),
		theme:  DefaultTheme,
		snap:   rev.Snapshot(),
		input:  ti,
	}
}

// Init starts listening for controller events.
func (m Model) Init() tea.Cmd {
	return m.waitForEvent()
}

func (m Model) waitForEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	ch := m.events.ch
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case eventMsg:
		m.onEvent(review.Event(msg))
		m.refresh()
		return m, m.waitForEvent()

	case actionDoneMsg:
		m.busy = false
		m.err = msg.err
		if msg.err == nil {
			switch msg.action {
			case "save":
				verb := "linked to existing member"
				if msg.contact.Created {
					verb = "added as new member"
				}
				m.status = fmt.Sprintf("Saved: %s", verb)
			case "discard":
				m.status = "Card discarded"
			}
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if m.editing != editNone {
			return m.updateEditing(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) onEvent(e review.Event) {
	switch e.Kind {
	case review.EventBatchComplete:
		m.status = "Batch complete"
	case review.EventError:
		if e.Err != nil {
			m.err = e.Err
		}
	}
}

func (m *Model) refresh() {
	m.snap = m.rev.Snapshot()
}

// do runs a synchronous controller call and records its error.
func (m *Model) do(err error) {
	m.err = err
	if err == nil {
		m.status = ""
	}
	m.refresh()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}
	if m.busy || m.snap.State == review.StateEmpty {
		return m, nil
	}

	if m.snap.DiscardPending {
		switch {
		case key.Matches(msg, m.keys.Confirm):
			m.busy = true
			return m, m.confirmDiscard()
		case key.Matches(msg, m.keys.Cancel):
			m.rev.CancelDiscard()
			m.refresh()
		}
		return m, nil
	}

	form := m.snap.Form
	switch {
	case key.Matches(msg, m.keys.Next):
		m.do(m.rev.Next())
	case key.Matches(msg, m.keys.Prev):
		m.do(m.rev.Prev())
	case key.Matches(msg, m.keys.ToggleVolunteer):
		m.do(m.rev.SetInterest(normalize.InterestVolunteering, !form.Volunteering()))
	case key.Matches(msg, m.keys.NextCategory):
		m.do(m.rev.SetCategory(cycleCategory(form.VolunteerCategory, 1)))
	case key.Matches(msg, m.keys.PrevCategory):
		m.do(m.rev.SetCategory(cycleCategory(form.VolunteerCategory, -1)))
	case key.Matches(msg, m.keys.NextLeader):
		m.do(m.rev.SetLeader(cycleLeader(form.AssignedLeaderID, m.snap.EligibleLeaders)))
	case key.Matches(msg, m.keys.ToggleExisting):
		m.do(m.rev.SetExistingMember(!form.IsExistingMember))
	case key.Matches(msg, m.keys.ToggleNotify):
		m.do(m.rev.SetSendMessageToLeader(!form.SendMessageToLeader))
	case key.Matches(msg, m.keys.ToggleOnboard):
		m.do(m.rev.SetSendOnboardingDocuments(!form.SendOnboardingDocuments))
	case key.Matches(msg, m.keys.ToggleSMS):
		m.do(m.rev.SetSMSAutomation(!form.SMSAutomation))
	case key.Matches(msg, m.keys.Flip):
		m.do(m.rev.FlipImage())
	case key.Matches(msg, m.keys.EditName):
		return m.startEdit(editName, form.Name)
	case key.Matches(msg, m.keys.EditEmail):
		return m.startEdit(editEmail, form.Email)
	case key.Matches(msg, m.keys.EditPhone):
		return m.startEdit(editPhone, form.Phone)
	case key.Matches(msg, m.keys.EditPrayer):
		return m.startEdit(editPrayer, form.PrayerRequest)
	case key.Matches(msg, m.keys.Save):
		m.busy = true
		m.status = "Saving..."
		return m, m.save()
	case key.Matches(msg, m.keys.Discard):
		m.do(m.rev.RequestDiscard())
	}
	return m, nil
}

func (m Model) startEdit(f editField, current string) (tea.Model, tea.Cmd) {
	m.editing = f
	m.input.CharLimit = f.charLimit(current)
	m.input.SetValue(current)
	m.input.CursorEnd()
	m.input.Prompt = f.label() + ": "
	return m, m.input.Focus()
}

func (m Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.editing = editNone
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		v := m.input.Value()
		var err error
		switch m.editing {
		case editName:
			err = m.rev.SetName(v)
		case editEmail:
			err = m.rev.SetEmail(v)
		case editPhone:
			err = m.rev.SetPhone(v)
		case editPrayer:
			err = m.rev.SetPrayerRequest(v)
		}
		m.editing = editNone
		m.input.Blur()
		m.do(err)
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) save() tea.Cmd {
	ctx, rev := m.context(), m.rev
	return func() tea.Msg {
		contact, err := rev.Save(ctx)
		return actionDoneMsg{action: "save", contact: contact, err: err}
	}
}

func (m Model) confirmDiscard() tea.Cmd {
	ctx, rev := m.context(), m.rev
	return func() tea.Msg {
		return actionDoneMsg{action: "discard", err: rev.ConfirmDiscard(ctx)}
	}
}

func (m Model) context() context.Context {
	if m.ctx == nil {
		return context.Background()
	}
	return m.ctx
}

// cycleCategory steps through the unset value followed by every category.
func cycleCategory(cur model.VolunteerCategory, step int) model.VolunteerCategory {
	opts := append([]model.VolunteerCategory{""}, model.Categories...)
	i := slices.Index(opts, cur)
	if i < 0 {
		i = 0
	}
	return opts[(i+step+len(opts))%len(opts)]
}

// cycleLeader steps through no leader followed by each eligible leader.
func cycleLeader(cur string, eligible []model.Leader) string {
	opts := []string{""}
	for _, l := range eligible {
		opts = append(opts, l.ID)
	}
	i := slices.Index(opts, cur)
	if i < 0 {
		i = 0
	}
	return opts[(i+1)%len(opts)]
}
