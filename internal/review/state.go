package review

import (
	"github.com/sells-group/connect-cli/internal/model"
)

// Capabilities enumerates the optional per-deployment features of a review
// session.
type Capabilities struct {
	// TwoSidedImages enables flipping between the front and back scan.
	TwoSidedImages bool `json:"two_sided_images"`
	// SMSAutomation lets the reviewer opt the contact into SMS follow-up.
	SMSAutomation bool `json:"sms_automation"`
	// BatchMode restricts the queue to one scan batch.
	BatchMode bool `json:"batch_mode"`
}

// State is the controller's position in the session state machine.
type State int

const (
	StateEmpty State = iota
	StateReviewing
	StateSaving
	StateDiscarding
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateReviewing:
		return "reviewing"
	case StateSaving:
		return "saving"
	case StateDiscarding:
		return "discarding"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON snapshots.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CheckStatus tracks the duplicate check for the current card.
type CheckStatus string

const (
	CheckIdle    CheckStatus = "idle"
	CheckRunning CheckStatus = "checking"
	CheckDone    CheckStatus = "done"
	CheckFailed  CheckStatus = "failed"
)

// Outcome records how a session ended.
type Outcome string

const (
	OutcomeNone          Outcome = ""
	OutcomeNoCards       Outcome = "no_cards"
	OutcomeBatchComplete Outcome = "batch_complete"
)

// ImageSide selects which scan is displayed.
type ImageSide string

const (
	SideFront ImageSide = "front"
	SideBack  ImageSide = "back"
)

// ImageView is per-card viewer state. It never survives navigation.
type ImageView struct {
	Side ImageSide `json:"side"`
	Zoom float64   `json:"zoom"`
	PanX float64   `json:"pan_x"`
	PanY float64   `json:"pan_y"`
}

func defaultImageView() ImageView {
	return ImageView{Side: SideFront, Zoom: 1}
}

// EventKind names a notification emitted to the hosting page.
type EventKind string

const (
	EventEnteredFocusMode EventKind = "entered_focus_mode"
	EventExitedFocusMode  EventKind = "exited_focus_mode"
	EventDuplicateCheck   EventKind = "duplicate_check"
	EventCardSaved        EventKind = "card_saved"
	EventCardDiscarded    EventKind = "card_discarded"
	EventBatchComplete    EventKind = "batch_complete"
	EventError            EventKind = "error"
)

// Event is delivered to the subscriber after the controller releases its
// lock, so handlers may call back into the controller.
type Event struct {
	Kind      EventKind
	CardID    string
	Match     *model.DuplicateMatch
	Contact   *model.CommittedContact
	Remaining int
	Err       error
}

// Snapshot is an immutable view of the session for rendering.
type Snapshot struct {
	State            State                `json:"state"`
	Cursor           int                  `json:"cursor"`
	Length           int                  `json:"length"`
	Card             *model.PendingCard   `json:"card,omitempty"`
	Form             *FormState           `json:"form,omitempty"`
	Match            model.DuplicateMatch `json:"match"`
	CheckStatus      CheckStatus          `json:"check_status"`
	EligibleLeaders  []model.Leader       `json:"eligible_leaders"`
	ValidationErrors map[string]string    `json:"validation_errors,omitempty"`
	LastError        string               `json:"last_error,omitempty"`
	DiscardPending   bool                 `json:"discard_pending"`
	Image            ImageView            `json:"image"`
	Outcome          Outcome              `json:"outcome,omitempty"`
	Capabilities     Capabilities         `json:"capabilities"`
}
