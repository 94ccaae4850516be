package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sdr-enrich/internal/config"
	"github.com/sells-group/sdr-enrich/internal/model"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertQueueExhausted AlertType = "queue_exhausted"
	AlertQueueBacklog   AlertType = "queue_backlog"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates snapshots against thresholds and sends alerts via
// webhook. Exhaustion alerts fire only when a queue's exhausted count grows,
// so a standing dead-letter backlog is reported once.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client

	mu        sync.Mutex
	exhausted map[model.QueueKind]int
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:       cfg,
		client:    &http.Client{Timeout: 10 * time.Second},
		exhausted: make(map[model.QueueKind]int),
	}
}

// Evaluate checks the snapshot and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	a.mu.Lock()
	defer a.mu.Unlock()

	var alerts []Alert
	for _, q := range snap.Queues {
		prev, seen := a.exhausted[q.Kind]
		a.exhausted[q.Kind] = q.Exhausted
		// The first snapshot only sets the baseline unless tickets are already dead.
		if q.Exhausted > prev || (!seen && q.Exhausted > 0) {
			alerts = append(alerts, Alert{
				Type:     AlertQueueExhausted,
				Severity: "high",
				Message: fmt.Sprintf("%d %s ticket(s) exhausted their retries (%d new)",
					q.Exhausted, q.Kind, q.Exhausted-prev),
				Details: map[string]any{
					"queue":     string(q.Kind),
					"exhausted": q.Exhausted,
					"previous":  prev,
				},
				Timestamp: snap.CollectedAt,
			})
		}

		if a.cfg.BacklogThreshold > 0 && q.Pending >= a.cfg.BacklogThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertQueueBacklog,
				Severity: "medium",
				Message: fmt.Sprintf("%d %s ticket(s) waiting, threshold %d",
					q.Pending, q.Kind, a.cfg.BacklogThreshold),
				Details: map[string]any{
					"queue":     string(q.Kind),
					"pending":   q.Pending,
					"claimed":   q.Claimed,
					"threshold": a.cfg.BacklogThreshold,
				},
				Timestamp: snap.CollectedAt,
			})
		}
	}
	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.AlertWebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
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

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.AlertWebhookURL, bytes.NewReader(payload))
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
