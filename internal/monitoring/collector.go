package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/connect-cli/internal/model"
)

// MetricsSnapshot holds a point-in-time view of the review queue.
type MetricsSnapshot struct {
	Orgs []model.QueueStats `json:"orgs"`

	TotalPending int `json:"total_pending"`
	// Committed and Discarded count cards resolved inside the lookback window.
	Committed int `json:"committed"`
	Discarded int `json:"discarded"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// QueueStatter is the slice of store.Store the collector reads.
type QueueStatter interface {
	QueueStats(ctx context.Context, since time.Time) ([]model.QueueStats, error)
}

// Collector gathers queue metrics from the store.
type Collector struct {
	store QueueStatter
	now   func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(st QueueStatter) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect gathers a snapshot of queue metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)
	stats, err := c.store.QueueStats(ctx, cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: queue stats")
	}

	snap.Orgs = stats
	for _, s := range stats {
		snap.TotalPending += s.Pending
		snap.Committed += s.Committed
		snap.Discarded += s.Discarded
	}
	return snap, nil
}
