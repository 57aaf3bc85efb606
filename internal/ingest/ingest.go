// Package ingest turns extracted card payloads into queued pending cards:
// validate, normalize, then insert as awaiting_review.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/connect-cli/internal/model"
	"github.com/sells-group/connect-cli/internal/normalize"
	"github.com/sells-group/connect-cli/internal/validate"
)

// Inserter is the store dependency.
type Inserter interface {
	InsertPendingCards(ctx context.Context, cards []model.PendingCard) (int64, error)
}

// Extractor produces a raw payload from card images.
type Extractor interface {
	Extract(ctx context.Context, front, back []byte) ([]byte, error)
}

// RejectedError carries the field errors of a payload that failed validation.
// Nothing is written when it is returned.
type RejectedError struct {
	Errors []validate.FieldError
}

func (e *RejectedError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Message
	}
	return "ingest: payload rejected: " + strings.Join(msgs, "; ")
}

// Request is one card to ingest.
type Request struct {
	Scope         model.Scope
	BatchID       string
	FrontImageKey string
	BackImageKey  string
	Payload       []byte

	// ScannedAt orders the card in the review queue. Zero means now.
	ScannedAt time.Time
}

// Service validates and queues cards.
type Service struct {
	store Inserter
	now   func() time.Time
	newID func() string
}

// New creates a Service.
func New(store Inserter) *Service {
	return &Service{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
}

// Ingest validates req.Payload and inserts one awaiting_review card.
func (s *Service) Ingest(ctx context.Context, req Request) (model.PendingCard, error) {
	card, err := s.build(req)
	if err != nil {
		return model.PendingCard{}, err
	}
	if _, err := s.store.InsertPendingCards(ctx, []model.PendingCard{card}); err != nil {
		return model.PendingCard{}, eris.Wrap(err, "ingest: insert card")
	}
	zap.L().Info("ingest: card queued",
		zap.String("card_id", card.ID),
		zap.String("org_id", card.OrganizationID),
		zap.String("batch_id", card.BatchID),
	)
	return card, nil
}

func (s *Service) build(req Request) (model.PendingCard, error) {
	if req.Scope.OrganizationID == "" {
		return model.PendingCard{}, eris.New("ingest: organization is required")
	}
	res := validate.Validate(req.Payload)
	if !res.Success {
		return model.PendingCard{}, &RejectedError{Errors: res.Errors}
	}
	p := res.Data
	now := s.now()
	scanned := req.ScannedAt
	if scanned.IsZero() {
		scanned = now
	}
	return model.PendingCard{
		ID:             s.newID(),
		OrganizationID: req.Scope.OrganizationID,
		BatchID:        req.BatchID,
		FrontImageKey:  req.FrontImageKey,
		BackImageKey:   req.BackImageKey,
		Name:           strings.TrimSpace(deref(p.Name)),
		Email:          strings.TrimSpace(deref(p.Email)),
		Phone:          strings.TrimSpace(deref(p.Phone)),
		PrayerRequest:  strings.TrimSpace(deref(p.PrayerRequest)),
		VisitStatus:    normalize.VisitStatus(deref(p.VisitStatus)),
		Interests:      normalize.Interests(p.Interests),
		Keywords:       normalize.Keywords(p.Keywords),
		Status:         model.CardStatusAwaitingReview,
		ScannedAt:      scanned.UTC(),
		UpdatedAt:      now,
	}, nil
}

// Scan is one scanned card read from disk or an upload.
type Scan struct {
	FrontKey string
	BackKey  string
	Front    []byte
	Back     []byte

	// ScannedAt is optional. IngestScans stamps unset scans in slice order.
	ScannedAt time.Time
}

// Summary reports a batch run. Failures never abort the rest of the batch.
type Summary struct {
	Queued   []string          `json:"queued"`
	Rejected map[string]string `json:"rejected,omitempty"`
	Failed   map[string]string `json:"failed,omitempty"`
}

// IngestScans extracts and queues scans with bounded concurrency. Only
// context cancellation stops the run early. Scan times are fixed before the
// fan-out, so the queue follows the order of scans, not the order in which
// extractions finish.
func (s *Service) IngestScans(ctx context.Context, ext Extractor, scope model.Scope, batchID string, scans []Scan, concurrency int) (Summary, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	sum := Summary{Rejected: map[string]string{}, Failed: map[string]string{}}
	var mu sync.Mutex

	scans = slices.Clone(scans)
	base := s.now()
	for i := range scans {
		if scans[i].ScannedAt.IsZero() {
			scans[i].ScannedAt = base.Add(time.Duration(i) * time.Millisecond)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, sc := range scans {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			raw, err := ext.Extract(gctx, sc.Front, sc.Back)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				mu.Lock()
				sum.Failed[sc.FrontKey] = err.Error()
				mu.Unlock()
				zap.L().Warn("ingest: extraction failed", zap.String("key", sc.FrontKey), zap.Error(err))
				return nil
			}

			card, err := s.Ingest(gctx, Request{
				Scope:         scope,
				BatchID:       batchID,
				FrontImageKey: sc.FrontKey,
				BackImageKey:  sc.BackKey,
				Payload:       raw,
				ScannedAt:     sc.ScannedAt,
			})
			mu.Lock()
			defer mu.Unlock()
			var rej *RejectedError
			switch {
			case errors.As(err, &rej):
				sum.Rejected[sc.FrontKey] = rej.Error()
			case err != nil:
				sum.Failed[sc.FrontKey] = err.Error()
			default:
				sum.Queued = append(sum.Queued, card.ID)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sum, eris.Wrap(err, "ingest: batch cancelled")
	}
	return sum, nil
}

// String renders a one-line summary for the CLI.
func (s Summary) String() string {
	return fmt.Sprintf("queued=%d rejected=%d failed=%d", len(s.Queued), len(s.Rejected), len(s.Failed))
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
