package review

import "github.com/rotisserie/eris"

var (
	// ErrEmptyQueue is returned by any card operation once the session has
	// nothing left to review.
	ErrEmptyQueue = eris.New("review: queue is empty")
	// ErrActionInFlight is returned while a save or discard is pending.
	ErrActionInFlight = eris.New("review: save or discard in progress")
	// ErrCategoryRequired blocks a save when Volunteering is selected without
	// a volunteer category.
	ErrCategoryRequired = eris.New("review: volunteer category required")
	// ErrDiscardNotRequested is returned by ConfirmDiscard without a prior
	// RequestDiscard.
	ErrDiscardNotRequested = eris.New("review: discard was not requested")
	ErrIndexOutOfRange     = eris.New("review: index out of range")
	ErrInvalidCategory     = eris.New("review: unknown volunteer category")
	ErrLeaderNotEligible   = eris.New("review: leader does not cover the selected category")
	ErrCapabilityDisabled  = eris.New("review: capability not enabled for this session")
	ErrClosed              = eris.New("review: session closed")
)
