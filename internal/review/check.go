package review

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/connect-cli/internal/match"
	"github.com/sells-group/connect-cli/internal/model"
)

// scheduleCheck supersedes any pending or in-flight duplicate check with a
// new one for the current form. Only the newest generation may write its
// result. Caller holds c.mu.
func (c *Controller) scheduleCheck(delay time.Duration) {
	c.stopCheck()
	if c.closed {
		return
	}
	c.gen++
	gen := c.gen

	// The previous result described other identity values.
	c.dup = model.NoMatch()

	q := c.form.query()
	if !checkable(q) {
		c.applyCheck(model.NoMatch(), CheckIdle)
		return
	}
	c.checkStatus = CheckRunning

	ctx, cancel := context.WithCancel(c.ctx)
	c.cancelCheck = cancel
	c.checks.Add(1)
	run := func() {
		defer c.checks.Done()
		c.runCheck(ctx, gen)
	}
	if delay <= 0 {
		go run()
		return
	}
	c.timer = time.AfterFunc(delay, run)
}

// stopCheck cancels the pending timer and the in-flight lookup. Caller holds
// c.mu.
func (c *Controller) stopCheck() {
	if c.timer != nil {
		if c.timer.Stop() {
			c.checks.Done()
		}
		c.timer = nil
	}
	if c.cancelCheck != nil {
		c.cancelCheck()
		c.cancelCheck = nil
	}
	c.gen++
}

func (c *Controller) runCheck(ctx context.Context, gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	q := c.form.query()
	orgID := c.scope.OrganizationID
	c.mu.Unlock()

	res := c.checker.Check(ctx, orgID, q)

	c.mu.Lock()
	defer c.unlock()
	if gen != c.gen || ctx.Err() != nil {
		zap.L().Debug("review: stale duplicate check dropped",
			zap.String("card_id", q.ExcludeCardID),
			zap.Uint64("generation", gen),
		)
		return
	}
	// Release the finished lookup's context so it does not stay registered
	// under the session context until Close.
	if c.cancelCheck != nil {
		c.cancelCheck()
		c.cancelCheck = nil
	}
	c.timer = nil
	status := CheckDone
	if res.CheckFailed {
		status = CheckFailed
	}
	c.applyCheck(res, status)
}

// applyCheck stores a result for the current identity values. Caller holds
// c.mu.
func (c *Controller) applyCheck(res model.DuplicateMatch, status CheckStatus) {
	c.dup = res
	c.checkStatus = status
	if !c.existingOverride {
		c.form.IsExistingMember = res.IsDuplicate
	}
	if status != CheckIdle {
		r := res
		c.push(Event{Kind: EventDuplicateCheck, CardID: c.form.CardID, Match: &r, Remaining: c.queue.Len()})
	}
}

// checkable mirrors the matcher's own precondition so an empty form does
// not spin up a goroutine.
func checkable(q match.Query) bool {
	if strings.TrimSpace(q.Email) != "" {
		return true
	}
	return strings.TrimSpace(q.Name) != "" && match.PhoneDigits(q.Phone) != ""
}
