package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/connect-cli/internal/config"
)

// Checker runs periodic queue checks in the background.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
}

// NewChecker creates a background queue checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting queue checker",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("queue checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check runs one collect/evaluate/send cycle and returns the alerts raised.
func (c *Checker) Check(ctx context.Context) []Alert {
	log := zap.L().With(zap.String("component", "monitoring.checker"))

	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("monitoring: failed to collect metrics", zap.Error(err))
		return nil
	}
	log.Debug("monitoring: queue snapshot",
		zap.Int("pending", snap.TotalPending),
		zap.Int("committed", snap.Committed),
		zap.Int("discarded", snap.Discarded),
	)

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		return nil
	}
	for _, a := range alerts {
		log.Warn("monitoring: "+a.Message,
			zap.String("type", string(a.Type)),
			zap.String("org", a.OrganizationID),
		)
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Info("monitoring: queue check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
	return alerts
}
