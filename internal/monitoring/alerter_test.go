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

	"github.com/sells-group/sdr-enrich/internal/config"
	"github.com/sells-group/sdr-enrich/internal/model"
)

func snapshot(queues ...model.QueueStats) *Snapshot {
	return &Snapshot{Queues: queues, CollectedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
}

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{BacklogThreshold: 50})
	alerts := a.Evaluate(snapshot(
		model.QueueStats{Kind: model.QueueEnrichment, Pending: 10},
		model.QueueStats{Kind: model.QueueEmail, Pending: 2, Claimed: 1},
	))
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_ExhaustedGrowth(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	alerts := a.Evaluate(snapshot(model.QueueStats{Kind: model.QueueEnrichment, Exhausted: 2}))
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertQueueExhausted, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "2 enrichment ticket(s)")

	// Unchanged count: reported once.
	assert.Empty(t, a.Evaluate(snapshot(model.QueueStats{Kind: model.QueueEnrichment, Exhausted: 2})))

	alerts = a.Evaluate(snapshot(model.QueueStats{Kind: model.QueueEnrichment, Exhausted: 3}))
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0].Message, "(1 new)")
	assert.Equal(t, 2, alerts[0].Details["previous"])

	// A retry drains the count; the next exhaustion alerts again.
	assert.Empty(t, a.Evaluate(snapshot(model.QueueStats{Kind: model.QueueEnrichment, Exhausted: 0})))
	assert.Len(t, a.Evaluate(snapshot(model.QueueStats{Kind: model.QueueEnrichment, Exhausted: 1})), 1)
}

func TestAlerter_Evaluate_QueuesTrackedSeparately(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})
	a.Evaluate(snapshot(model.QueueStats{Kind: model.QueueEnrichment, Exhausted: 4}))

	alerts := a.Evaluate(snapshot(
		model.QueueStats{Kind: model.QueueEnrichment, Exhausted: 4},
		model.QueueStats{Kind: model.QueueEmail, Exhausted: 1},
	))
	require.Len(t, alerts, 1)
	assert.Equal(t, "email", alerts[0].Details["queue"])
}

func TestAlerter_Evaluate_Backlog(t *testing.T) {
	tests := []struct {
		name      string
		threshold int
		pending   int
		want      int
	}{
		{"disabled", 0, 1000, 0},
		{"below", 100, 99, 0},
		{"at threshold", 100, 100, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAlerter(config.MonitoringConfig{BacklogThreshold: tt.threshold})
			alerts := a.Evaluate(snapshot(model.QueueStats{Kind: model.QueueEmail, Pending: tt.pending}))
			require.Len(t, alerts, tt.want)
			if tt.want > 0 {
				assert.Equal(t, AlertQueueBacklog, alerts[0].Type)
				assert.Equal(t, "medium", alerts[0].Severity)
			}
		})
	}
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		err := json.NewDecoder(r.Body).Decode(&alert)
		require.NoError(t, err)
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{AlertWebhookURL: ts.URL})

	alerts := []Alert{
		{Type: AlertQueueExhausted, Severity: "high", Message: "test alert 1"},
		{Type: AlertQueueBacklog, Severity: "medium", Message: "test alert 2"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertQueueExhausted, Message: "test"},
	})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_EmptyAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{AlertWebhookURL: "http://example.com"})

	sent := a.SendAlerts(context.Background(), nil)
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{AlertWebhookURL: ts.URL})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertQueueExhausted, Message: "test"}})
	assert.Equal(t, 0, sent)
}
