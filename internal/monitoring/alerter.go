package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/connect-cli/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertQueueBacklog AlertType = "queue_backlog"
	AlertStaleCards   AlertType = "stale_cards"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type           AlertType      `json:"type"`
	Severity       string         `json:"severity"`
	OrganizationID string         `json:"organization_id"`
	Message        string         `json:"message"`
	Details        map[string]any `json:"details,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks each organization's queue against the thresholds.
// A zero threshold disables its check.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := snap.CollectedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	staleAfter := time.Duration(a.cfg.StaleAfterHours) * time.Hour

	for _, org := range snap.Orgs {
		if a.cfg.BacklogThreshold > 0 && org.Pending > a.cfg.BacklogThreshold {
			alerts = append(alerts, Alert{
				Type:           AlertQueueBacklog,
				Severity:       "medium",
				OrganizationID: org.OrganizationID,
				Message: fmt.Sprintf(
					"%d connect cards awaiting review exceeds threshold %d",
					org.Pending, a.cfg.BacklogThreshold,
				),
				Details: map[string]any{
					"pending":   org.Pending,
					"threshold": a.cfg.BacklogThreshold,
				},
				Timestamp: now,
			})
		}

		if staleAfter > 0 && org.Pending > 0 && !org.OldestPending.IsZero() {
			age := now.Sub(org.OldestPending)
			if age > staleAfter {
				alerts = append(alerts, Alert{
					Type:           AlertStaleCards,
					Severity:       "high",
					OrganizationID: org.OrganizationID,
					Message: fmt.Sprintf(
						"oldest pending card has waited %dh (limit %dh)",
						int(age.Hours()), a.cfg.StaleAfterHours,
					),
					Details: map[string]any{
						"oldest_pending": org.OldestPending,
						"pending":        org.Pending,
					},
					Timestamp: now,
				})
			}
		}
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.String("org", alert.OrganizationID),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("org", alert.OrganizationID),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
