// Package review drives one reviewer through an ordered batch of pending
// connect cards: form editing, background duplicate checks, leader routing,
// and the save/discard transitions that shrink the queue.
//
// A Controller is safe for concurrent use. Hosts (the HTTP session manager,
// the terminal UI) call its methods from their own goroutines; duplicate
// checks complete on background goroutines. Save and Discard put the session
// into a transient state in which every other mutation is refused, which is
// how duplicate submissions are prevented.
package review

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/connect-cli/internal/assign"
	"github.com/sells-group/connect-cli/internal/match"
	"github.com/sells-group/connect-cli/internal/model"
)

// Store is the persistence boundary the controller consumes.
type Store interface {
	FindPendingCards(ctx context.Context, orgID, batchID string) ([]model.PendingCard, error)
	ListLeaders(ctx context.Context, orgID string) ([]model.Leader, error)
	// CommitCard must be all-or-nothing. The controller never retries it.
	CommitCard(ctx context.Context, scope model.Scope, cardID string, fields model.CommitFields) (model.CommittedContact, error)
	DeleteCard(ctx context.Context, scope model.Scope, cardID string) error
}

// Options configures a Controller.
type Options struct {
	Capabilities Capabilities
	// Debounce delays the duplicate check after an identity edit. Zero runs
	// the check immediately.
	Debounce time.Duration
	// Subscriber receives events. Optional.
	Subscriber func(Event)
}

const fieldCategory = "volunteer_category"

// Controller is the review session state machine.
type Controller struct {
	store   Store
	checker match.Checker
	scope   model.Scope
	opts    Options

	mu      sync.Mutex
	closed  bool
	state   State
	queue   *Queue
	leaders []model.Leader
	outcome Outcome

	// Per-card state, rebuilt by resetCard.
	form             FormState
	dup              model.DuplicateMatch
	checkStatus      CheckStatus
	validationErrors map[string]string
	lastErr          error
	discardPending   bool
	image            ImageView
	existingOverride bool
	autoNotify       bool

	// Duplicate check bookkeeping.
	ctx         context.Context
	cancel      context.CancelFunc
	gen         uint64
	cancelCheck context.CancelFunc
	timer       *time.Timer
	checks      sync.WaitGroup

	events []Event
}

// New creates a controller for scope. Call Load before anything else.
func New(store Store, checker match.Checker, scope model.Scope, opts Options) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		store:       store,
		checker:     checker,
		scope:       scope,
		opts:        opts,
		state:       StateEmpty,
		queue:       NewQueue(nil),
		checkStatus: CheckIdle,
		image:       defaultImageView(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Load fetches the pending cards and leaders for the session and moves to
// Reviewing at cursor 0, or Empty when there is nothing to review. batchID is
// honored only when BatchMode is enabled.
func (c *Controller) Load(ctx context.Context, batchID string) error {
	if !c.opts.Capabilities.BatchMode {
		batchID = ""
	}
	orgID := c.scope.OrganizationID

	cards, err := c.store.FindPendingCards(ctx, orgID, batchID)
	if err != nil {
		return eris.Wrapf(err, "review: load pending cards for org %s", orgID)
	}
	leaders, err := c.store.ListLeaders(ctx, orgID)
	if err != nil {
		return eris.Wrapf(err, "review: load leaders for org %s", orgID)
	}

	c.mu.Lock()
	defer c.unlock()
	if c.closed {
		return ErrClosed
	}
	c.leaders = leaders
	c.queue = NewQueue(cards)
	c.outcome = OutcomeNone

	zap.L().Info("review: session loaded",
		zap.String("organization_id", orgID),
		zap.String("batch_id", batchID),
		zap.Int("cards", c.queue.Len()),
		zap.Int("leaders", len(leaders)),
	)

	if c.queue.Empty() {
		c.state = StateEmpty
		c.outcome = OutcomeNoCards
		return nil
	}
	c.state = StateReviewing
	c.push(Event{Kind: EventEnteredFocusMode, Remaining: c.queue.Len()})
	c.resetCard()
	return nil
}

// ReloadLeaders refreshes the leader list and drops a selected leader that
// is no longer eligible.
func (c *Controller) ReloadLeaders(ctx context.Context) error {
	leaders, err := c.store.ListLeaders(ctx, c.scope.OrganizationID)
	if err != nil {
		return eris.Wrap(err, "review: reload leaders")
	}
	c.mu.Lock()
	defer c.unlock()
	c.leaders = leaders
	if c.state != StateEmpty {
		c.reconcileLeader()
	}
	return nil
}

// Next moves to the following card.
func (c *Controller) Next() error {
	c.mu.Lock()
	defer c.unlock()
	if err := c.editable(); err != nil {
		return err
	}
	return c.seek(c.queue.Cursor() + 1)
}

// Prev moves to the preceding card.
func (c *Controller) Prev() error {
	c.mu.Lock()
	defer c.unlock()
	if err := c.editable(); err != nil {
		return err
	}
	return c.seek(c.queue.Cursor() - 1)
}

// JumpTo moves to index i.
func (c *Controller) JumpTo(i int) error {
	c.mu.Lock()
	defer c.unlock()
	if err := c.editable(); err != nil {
		return err
	}
	return c.seek(i)
}

func (c *Controller) seek(i int) error {
	if err := c.queue.Seek(i); err != nil {
		return err
	}
	c.resetCard()
	return nil
}

// Save validates the form and commits the card. On success the card leaves
// the queue; on failure the form and cursor are untouched so the reviewer
// can retry.
func (c *Controller) Save(ctx context.Context) (model.CommittedContact, error) {
	c.mu.Lock()
	if err := c.editable(); err != nil {
		c.unlock()
		return model.CommittedContact{}, err
	}
	if errs := c.validateForSave(); len(errs) > 0 {
		c.validationErrors = errs
		c.unlock()
		return model.CommittedContact{}, ErrCategoryRequired
	}
	cardID := c.form.CardID
	fields := c.form.commitFields(c.dup, c.opts.Capabilities.SMSAutomation)
	c.state = StateSaving
	c.lastErr = nil
	c.discardPending = false
	c.unlock()

	contact, err := c.store.CommitCard(ctx, c.scope, cardID, fields)

	c.mu.Lock()
	defer c.unlock()
	c.state = StateReviewing
	if err != nil {
		err = eris.Wrapf(err, "review: save card %s", cardID)
		c.fail(cardID, err)
		return model.CommittedContact{}, err
	}

	zap.L().Info("review: card committed",
		zap.String("card_id", cardID),
		zap.String("member_id", contact.MemberID),
		zap.Bool("created", contact.Created),
	)
	c.push(Event{Kind: EventCardSaved, CardID: cardID, Contact: &contact, Remaining: c.queue.Len() - 1})
	c.removeCurrent()
	return contact, nil
}

// RequestDiscard opens the discard confirmation.
func (c *Controller) RequestDiscard() error {
	c.mu.Lock()
	defer c.unlock()
	if err := c.editable(); err != nil {
		return err
	}
	c.discardPending = true
	return nil
}

// CancelDiscard closes the confirmation without deleting anything.
func (c *Controller) CancelDiscard() {
	c.mu.Lock()
	defer c.unlock()
	c.discardPending = false
}

// ConfirmDiscard deletes the current card. The confirmation closes whether
// or not the delete succeeds; on failure the card stays in the queue.
func (c *Controller) ConfirmDiscard(ctx context.Context) error {
	c.mu.Lock()
	if err := c.editable(); err != nil {
		c.unlock()
		return err
	}
	if !c.discardPending {
		c.unlock()
		return ErrDiscardNotRequested
	}
	cardID := c.form.CardID
	c.discardPending = false
	c.state = StateDiscarding
	c.lastErr = nil
	c.unlock()

	err := c.store.DeleteCard(ctx, c.scope, cardID)

	c.mu.Lock()
	defer c.unlock()
	c.state = StateReviewing
	if err != nil {
		err = eris.Wrapf(err, "review: discard card %s", cardID)
		c.fail(cardID, err)
		return err
	}

	zap.L().Info("review: card discarded", zap.String("card_id", cardID))
	c.push(Event{Kind: EventCardDiscarded, CardID: cardID, Remaining: c.queue.Len() - 1})
	c.removeCurrent()
	return nil
}

// Close ends the session, cancelling any pending duplicate check.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.unlock()
		return
	}
	c.closed = true
	c.stopCheck()
	if c.state != StateEmpty {
		c.push(Event{Kind: EventExitedFocusMode, Remaining: c.queue.Len()})
	}
	c.unlock()
	c.cancel()
	c.checks.Wait()
}

// Snapshot returns a copy of the session for rendering.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		State:        c.state,
		Cursor:       c.queue.Cursor(),
		Length:       c.queue.Len(),
		Outcome:      c.outcome,
		Capabilities: c.opts.Capabilities,
		CheckStatus:  CheckIdle,
		Image:        defaultImageView(),
	}
	card, ok := c.queue.Current()
	if !ok || c.state == StateEmpty {
		return s
	}
	form := c.form.clone()
	s.Card = &card
	s.Form = &form
	s.Match = c.dup
	s.CheckStatus = c.checkStatus
	s.EligibleLeaders = assign.EligibleLeaders(c.form.VolunteerCategory, c.leaders)
	s.DiscardPending = c.discardPending
	s.Image = c.image
	if len(c.validationErrors) > 0 {
		s.ValidationErrors = make(map[string]string, len(c.validationErrors))
		for k, v := range c.validationErrors {
			s.ValidationErrors[k] = v
		}
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

// editable returns nil when the current card accepts input.
func (c *Controller) editable() error {
	switch {
	case c.closed:
		return ErrClosed
	case c.state == StateSaving || c.state == StateDiscarding:
		return ErrActionInFlight
	case c.state == StateEmpty:
		return ErrEmptyQueue
	}
	return nil
}

func (c *Controller) validateForSave() map[string]string {
	errs := map[string]string{}
	if c.form.Volunteering() && c.form.VolunteerCategory == "" {
		errs[fieldCategory] = "Select a volunteer category"
	}
	return errs
}

func (c *Controller) fail(cardID string, err error) {
	c.lastErr = err
	zap.L().Warn("review: action failed", zap.String("card_id", cardID), zap.Error(err))
	c.push(Event{Kind: EventError, CardID: cardID, Err: err, Remaining: c.queue.Len()})
}

// removeCurrent drops the card under the cursor and either shows the next
// one or ends the session.
func (c *Controller) removeCurrent() {
	c.queue.RemoveCurrent()
	if c.queue.Empty() {
		c.stopCheck()
		c.state = StateEmpty
		c.outcome = OutcomeBatchComplete
		c.form = FormState{}
		c.dup = model.NoMatch()
		c.checkStatus = CheckIdle
		zap.L().Info("review: batch complete", zap.String("organization_id", c.scope.OrganizationID))
		c.push(Event{Kind: EventBatchComplete})
		c.push(Event{Kind: EventExitedFocusMode})
		return
	}
	c.resetCard()
}

// resetCard rebuilds every piece of per-card state from the card under the
// cursor and starts a fresh duplicate check for it.
func (c *Controller) resetCard() {
	card, _ := c.queue.Current()
	c.form = newForm(card, c.leaders)
	c.validationErrors = nil
	c.lastErr = nil
	c.discardPending = false
	c.image = defaultImageView()
	c.existingOverride = false
	c.autoNotify = false
	c.scheduleCheck(0)
}

func (c *Controller) push(e Event) {
	if c.opts.Subscriber != nil {
		c.events = append(c.events, e)
	}
}

// unlock releases the mutex and then delivers queued events.
func (c *Controller) unlock() {
	evs := c.events
	c.events = nil
	c.mu.Unlock()
	for _, e := range evs {
		c.opts.Subscriber(e)
	}
}
