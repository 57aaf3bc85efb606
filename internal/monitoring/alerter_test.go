package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/connect-cli/internal/config"
	"github.com/sells-group/connect-cli/internal/model"
)

var collectedAt = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{BacklogThreshold: 50, StaleAfterHours: 72})

	snap := &MetricsSnapshot{
		Orgs: []model.QueueStats{
			{OrganizationID: "org-a", Pending: 10, OldestPending: collectedAt.Add(-2 * time.Hour)},
		},
		CollectedAt: collectedAt,
	}
	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_Backlog(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{BacklogThreshold: 50})

	snap := &MetricsSnapshot{
		Orgs: []model.QueueStats{
			{OrganizationID: "org-a", Pending: 51},
			{OrganizationID: "org-b", Pending: 50},
		},
		CollectedAt: collectedAt,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertQueueBacklog, alerts[0].Type)
	assert.Equal(t, "org-a", alerts[0].OrganizationID)
	assert.Contains(t, alerts[0].Message, "51")
}

func TestAlerter_Evaluate_Stale(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{StaleAfterHours: 72})

	snap := &MetricsSnapshot{
		Orgs: []model.QueueStats{
			{OrganizationID: "org-a", Pending: 1, OldestPending: collectedAt.Add(-100 * time.Hour)},
			{OrganizationID: "org-b", Pending: 3, OldestPending: collectedAt.Add(-10 * time.Hour)},
			{OrganizationID: "org-c", Pending: 0},
		},
		CollectedAt: collectedAt,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertStaleCards, alerts[0].Type)
	assert.Equal(t, "org-a", alerts[0].OrganizationID)
	assert.Contains(t, alerts[0].Message, "100h")
}

func TestAlerter_Evaluate_ZeroThresholdsDisabled(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	snap := &MetricsSnapshot{
		Orgs: []model.QueueStats{
			{OrganizationID: "org-a", Pending: 9999, OldestPending: collectedAt.Add(-1000 * time.Hour)},
		},
		CollectedAt: collectedAt,
	}
	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_BothAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{BacklogThreshold: 5, StaleAfterHours: 24})

	snap := &MetricsSnapshot{
		Orgs: []model.QueueStats{
			{OrganizationID: "org-a", Pending: 8, OldestPending: collectedAt.Add(-48 * time.Hour)},
		},
		CollectedAt: collectedAt,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 2)
	assert.Equal(t, AlertQueueBacklog, alerts[0].Type)
	assert.Equal(t, AlertStaleCards, alerts[1].Type)
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		err := json.NewDecoder(r.Body).Decode(&alert)
		require.NoError(t, err)
		assert.NotEmpty(t, alert.Type)
		assert.NotEmpty(t, alert.OrganizationID)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	alerts := []Alert{
		{Type: AlertQueueBacklog, OrganizationID: "org-a", Message: "backlog"},
		{Type: AlertStaleCards, OrganizationID: "org-b", Message: "stale"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertQueueBacklog}})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertQueueBacklog, Message: "x"}})
	assert.Equal(t, 0, sent)
}
