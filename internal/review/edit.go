package review

import (
	"slices"
	"strings"

	"github.com/sells-group/connect-cli/internal/assign"
	"github.com/sells-group/connect-cli/internal/model"
	"github.com/sells-group/connect-cli/internal/normalize"
)

// Patch is a partial form update. Nil fields are left alone. Fields are
// applied in declaration order, so Category is settled before LeaderID.
type Patch struct {
	Name                    *string                  `json:"name,omitempty"`
	Email                   *string                  `json:"email,omitempty"`
	Phone                   *string                  `json:"phone,omitempty"`
	PrayerRequest           *string                  `json:"prayer_request,omitempty"`
	VisitStatus             *string                  `json:"visit_status,omitempty"`
	Keywords                []string                 `json:"keywords,omitempty"`
	Interests               map[string]bool          `json:"interests,omitempty"`
	Category                *model.VolunteerCategory `json:"volunteer_category,omitempty"`
	LeaderID                *string                  `json:"assigned_leader_id,omitempty"`
	IsExistingMember        *bool                    `json:"is_existing_member,omitempty"`
	SendMessageToLeader     *bool                    `json:"send_message_to_leader,omitempty"`
	SendOnboardingDocuments *bool                    `json:"send_onboarding_documents,omitempty"`
	SMSAutomation           *bool                    `json:"sms_automation,omitempty"`
}

// Apply runs the matching setters for every non-nil field. The patch is
// checked as a whole first, so a rejected category, leader or disabled
// capability leaves the form untouched.
func (c *Controller) Apply(p Patch) error {
	if err := c.checkPatch(p); err != nil {
		return err
	}
	if p.Name != nil {
		if err := c.SetName(*p.Name); err != nil {
			return err
		}
	}
	if p.Email != nil {
		if err := c.SetEmail(*p.Email); err != nil {
			return err
		}
	}
	if p.Phone != nil {
		if err := c.SetPhone(*p.Phone); err != nil {
			return err
		}
	}
	if p.PrayerRequest != nil {
		if err := c.SetPrayerRequest(*p.PrayerRequest); err != nil {
			return err
		}
	}
	if p.VisitStatus != nil {
		if err := c.SetVisitStatus(*p.VisitStatus); err != nil {
			return err
		}
	}
	if p.Keywords != nil {
		if err := c.SetKeywords(p.Keywords); err != nil {
			return err
		}
	}
	labels := make([]string, 0, len(p.Interests))
	for label := range p.Interests {
		labels = append(labels, label)
	}
	slices.Sort(labels)
	for _, label := range labels {
		if err := c.SetInterest(label, p.Interests[label]); err != nil {
			return err
		}
	}
	if p.Category != nil {
		if err := c.SetCategory(*p.Category); err != nil {
			return err
		}
	}
	if p.LeaderID != nil {
		if err := c.SetLeader(*p.LeaderID); err != nil {
			return err
		}
	}
	if p.IsExistingMember != nil {
		if err := c.SetExistingMember(*p.IsExistingMember); err != nil {
			return err
		}
	}
	if p.SendMessageToLeader != nil {
		if err := c.SetSendMessageToLeader(*p.SendMessageToLeader); err != nil {
			return err
		}
	}
	if p.SendOnboardingDocuments != nil {
		if err := c.SetSendOnboardingDocuments(*p.SendOnboardingDocuments); err != nil {
			return err
		}
	}
	if p.SMSAutomation != nil {
		if err := c.SetSMSAutomation(*p.SMSAutomation); err != nil {
			return err
		}
	}
	return nil
}

// checkPatch reports the error Apply would hit part way through, before any
// setter runs.
func (c *Controller) checkPatch(p Patch) error {
	if p.SMSAutomation != nil && !c.opts.Capabilities.SMSAutomation {
		return ErrCapabilityDisabled
	}
	if p.Category != nil && *p.Category != "" && !p.Category.Valid() {
		return ErrInvalidCategory
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editable(); err != nil {
		return err
	}
	if p.LeaderID == nil || *p.LeaderID == "" {
		return nil
	}
	cat := c.form.VolunteerCategory
	if on, ok := p.Interests[normalize.InterestVolunteering]; ok && on && cat == "" {
		cat = model.CategoryGeneral
	}
	if p.Category != nil {
		cat = *p.Category
	}
	if !assign.IsEligible(cat, *p.LeaderID, c.leaders) {
		return ErrLeaderNotEligible
	}
	return nil
}

// SetName edits the name and re-runs the duplicate check.
func (c *Controller) SetName(v string) error {
	return c.editIdentity(func(f *FormState) { f.Name = v })
}

// SetEmail edits the email and re-runs the duplicate check.
func (c *Controller) SetEmail(v string) error {
	return c.editIdentity(func(f *FormState) { f.Email = v })
}

// SetPhone edits the phone and re-runs the duplicate check.
func (c *Controller) SetPhone(v string) error {
	return c.editIdentity(func(f *FormState) { f.Phone = v })
}

func (c *Controller) editIdentity(fn func(*FormState)) error {
	c.mu.Lock()
	defer c.unlock()
	if err := c.editable(); err != nil {
		return err
	}
	fn(&c.form)
	// New identity evidence: let the match drive IsExistingMember again.
	c.existingOverride = false
	c.scheduleCheck(c.opts.Debounce)
	return nil
}

func (c *Controller) edit(fn func(*FormState) error) error {
	c.mu.Lock()
	defer c.unlock()
	if err := c.editable(); err != nil {
		return err
	}
	return fn(&c.form)
}

func (c *Controller) SetPrayerRequest(v string) error {
	return c.edit(func(f *FormState) error { f.PrayerRequest = v; return nil })
}

func (c *Controller) SetVisitStatus(v string) error {
	return c.edit(func(f *FormState) error { f.VisitStatus = v; return nil })
}

// SetKeywords replaces the keyword list, normalized.
func (c *Controller) SetKeywords(v []string) error {
	return c.edit(func(f *FormState) error { f.Keywords = normalize.Keywords(v); return nil })
}

// SetInterest toggles one interest label. Turning Volunteering on defaults
// the category to GENERAL when none is chosen; turning it off clears the
// category error.
func (c *Controller) SetInterest(label string, on bool) error {
	label = strings.TrimSpace(label)
	c.mu.Lock()
	defer c.unlock()
	if err := c.editable(); err != nil {
		return err
	}
	c.form.setInterest(label, on)
	if label != normalize.InterestVolunteering {
		return nil
	}
	if on {
		if c.form.VolunteerCategory == "" {
			c.form.VolunteerCategory = model.CategoryGeneral
			c.reconcileLeader()
		}
	} else {
		c.clearValidation(fieldCategory)
	}
	return nil
}

// SetCategory changes the volunteer category. An empty value clears it.
// A leader who does not cover the new category is dropped.
func (c *Controller) SetCategory(cat model.VolunteerCategory) error {
	if cat != "" && !cat.Valid() {
		return ErrInvalidCategory
	}
	c.mu.Lock()
	defer c.unlock()
	if err := c.editable(); err != nil {
		return err
	}
	c.form.VolunteerCategory = cat
	if cat != "" {
		c.clearValidation(fieldCategory)
	}
	c.reconcileLeader()
	return nil
}

// SetLeader selects a leader eligible for the current category; an empty id
// clears the selection. Selecting a leader turns on the notify flag unless
// the reviewer has already set it.
func (c *Controller) SetLeader(id string) error {
	c.mu.Lock()
	defer c.unlock()
	if err := c.editable(); err != nil {
		return err
	}
	if id == "" {
		c.clearLeader()
		return nil
	}
	if !assign.IsEligible(c.form.VolunteerCategory, id, c.leaders) {
		return ErrLeaderNotEligible
	}
	c.form.AssignedLeaderID = id
	if !c.form.SendMessageToLeader {
		c.form.SendMessageToLeader = true
		c.autoNotify = true
	}
	return nil
}

// SetExistingMember overrides the match-derived flag until the next identity
// edit.
func (c *Controller) SetExistingMember(v bool) error {
	return c.edit(func(f *FormState) error {
		f.IsExistingMember = v
		c.existingOverride = true
		return nil
	})
}

func (c *Controller) SetSendMessageToLeader(v bool) error {
	return c.edit(func(f *FormState) error {
		f.SendMessageToLeader = v
		c.autoNotify = false
		return nil
	})
}

func (c *Controller) SetSendOnboardingDocuments(v bool) error {
	return c.edit(func(f *FormState) error { f.SendOnboardingDocuments = v; return nil })
}

// SetSMSAutomation requires the SMSAutomation capability.
func (c *Controller) SetSMSAutomation(v bool) error {
	if !c.opts.Capabilities.SMSAutomation {
		return ErrCapabilityDisabled
	}
	return c.edit(func(f *FormState) error { f.SMSAutomation = v; return nil })
}

// FlipImage switches between the front and back scan.
func (c *Controller) FlipImage() error {
	c.mu.Lock()
	defer c.unlock()
	if err := c.editable(); err != nil {
		return err
	}
	card, _ := c.queue.Current()
	if !c.opts.Capabilities.TwoSidedImages || card.BackImageKey == "" {
		return ErrCapabilityDisabled
	}
	if c.image.Side == SideBack {
		c.image.Side = SideFront
	} else {
		c.image.Side = SideBack
	}
	return nil
}

// SetImageView updates zoom and pan. Zoom is clamped to [1, 5].
func (c *Controller) SetImageView(zoom, panX, panY float64) error {
	c.mu.Lock()
	defer c.unlock()
	if err := c.editable(); err != nil {
		return err
	}
	c.image.Zoom = min(max(zoom, 1), 5)
	c.image.PanX, c.image.PanY = panX, panY
	return nil
}

func (c *Controller) reconcileLeader() {
	if _, cleared := assign.Reconcile(c.form.VolunteerCategory, c.form.AssignedLeaderID, c.leaders); cleared {
		c.clearLeader()
	}
}

func (c *Controller) clearLeader() {
	c.form.AssignedLeaderID = ""
	if c.autoNotify {
		c.form.SendMessageToLeader = false
		c.autoNotify = false
	}
}

func (c *Controller) clearValidation(field string) {
	delete(c.validationErrors, field)
}
