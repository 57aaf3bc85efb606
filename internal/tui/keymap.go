package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the review shortcuts.
type KeyMap struct {
	Next key.Binding
	Prev key.Binding

	ToggleVolunteer key.Binding
	NextCategory    key.Binding
	PrevCategory    key.Binding
	NextLeader      key.Binding
	ToggleExisting  key.Binding
	ToggleNotify    key.Binding
	ToggleOnboard   key.Binding
	ToggleSMS       key.Binding
	Flip            key.Binding

	EditName   key.Binding
	EditEmail  key.Binding
	EditPhone  key.Binding
	EditPrayer key.Binding

	Save    key.Binding
	Discard key.Binding
	Confirm key.Binding
	Cancel  key.Binding

	Quit key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Next: key.NewBinding(key.WithKeys("right", "l", "n"), key.WithHelp("→/n", "next")),
		Prev: key.NewBinding(key.WithKeys("left", "h", "p"), key.WithHelp("←/p", "prev")),

		ToggleVolunteer: key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "volunteering")),
		NextCategory:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c/C", "category")),
		PrevCategory:    key.NewBinding(key.WithKeys("C")),
		NextLeader:      key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "leader")),
		ToggleExisting:  key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "existing member")),
		ToggleNotify:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "notify leader")),
		ToggleOnboard:   key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "onboarding docs")),
		ToggleSMS:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sms")),
		Flip:            key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "flip image")),

		EditName:   key.NewBinding(key.WithKeys("1"), key.WithHelp("1-4", "edit name/email/phone/prayer")),
		EditEmail:  key.NewBinding(key.WithKeys("2")),
		EditPhone:  key.NewBinding(key.WithKeys("3")),
		EditPrayer: key.NewBinding(key.WithKeys("4")),

		Save:    key.NewBinding(key.WithKeys("enter", "ctrl+s"), key.WithHelp("enter", "save")),
		Discard: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "discard")),
		Confirm: key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "confirm")),
		Cancel:  key.NewBinding(key.WithKeys("esc", "N"), key.WithHelp("esc", "cancel")),

		Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k KeyMap) help() []key.Binding {
	return []key.Binding{
		k.Next, k.Prev, k.ToggleVolunteer, k.NextCategory, k.NextLeader,
		k.ToggleExisting, k.ToggleNotify, k.ToggleOnboard, k.EditName,
		k.Save, k.Discard, k.Quit,
	}
}
