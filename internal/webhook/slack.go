package webhook

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	goslack "github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/sells-group/sdr-enrich/internal/approval"
	"github.com/sells-group/sdr-enrich/internal/monitoring"
	"github.com/sells-group/sdr-enrich/internal/store"
)

// SlackHandler receives interactive card callbacks.
type SlackHandler struct {
	secret  string
	decider Decider
	metrics *monitoring.Metrics
}

// NewSlackHandler creates a SlackHandler verifying with the app signing secret.
func NewSlackHandler(signingSecret string, d Decider, m *monitoring.Metrics) *SlackHandler {
	return &SlackHandler{secret: signingSecret, decider: d, metrics: m}
}

func (h *SlackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := zap.L().With(zap.String("webhook", "slack"))

	body, err := readBody(w, r)
	if err != nil {
		h.metrics.ObserveWebhook("slack", "bad_request")
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Error: "invalid request body"})
		return
	}
	sv, err := goslack.NewSecretsVerifier(r.Header, h.secret)
	if err == nil {
		_, _ = sv.Write(body)
		err = sv.Ensure()
	}
	if err != nil {
		log.Warn("webhook: invalid slack signature", zap.Error(err))
		h.metrics.ObserveWebhook("slack", "unauthorized")
		writeJSON(w, http.StatusUnauthorized, response{Status: "error", Error: "invalid signature"})
		return
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		h.metrics.ObserveWebhook("slack", "bad_request")
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Error: "invalid form body"})
		return
	}
	var cb goslack.InteractionCallback
	if err := json.Unmarshal([]byte(form.Get("payload")), &cb); err != nil {
		h.metrics.ObserveWebhook("slack", "bad_request")
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Error: "invalid interaction payload"})
		return
	}
	if cb.Type != goslack.InteractionTypeBlockActions || len(cb.ActionCallback.BlockActions) == 0 {
		h.metrics.ObserveWebhook("slack", "ignored")
		w.WriteHeader(http.StatusOK)
		return
	}

	action, err := approval.ParseAction(cb.ActionCallback.BlockActions[0].Value)
	if err != nil {
		log.Warn("webhook: invalid approval action", zap.Error(err))
		h.metrics.ObserveWebhook("slack", "bad_request")
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Error: "invalid action"})
		return
	}

	status, err := h.decider.Decide(r.Context(), action, cb.User.ID)
	switch {
	case err == nil:
		h.metrics.ObserveWebhook("slack", "decided")
		writeJSON(w, http.StatusOK, response{Status: string(status), LeadID: action.LeadID})
	case errors.Is(err, approval.ErrInvalidTransition), errors.Is(err, store.ErrNotFound):
		// Slack retries non-2xx responses; a stale click is not worth retrying.
		log.Info("webhook: decision ignored", zap.String("lead_id", action.LeadID), zap.Error(err))
		h.metrics.ObserveWebhook("slack", "ignored")
		writeJSON(w, http.StatusOK, response{Status: "ignored", LeadID: action.LeadID})
	default:
		log.Error("webhook: decision failed", zap.String("lead_id", action.LeadID), zap.Error(err))
		h.metrics.ObserveWebhook("slack", "error")
		writeJSON(w, http.StatusInternalServerError, response{Status: "error", Error: "decision failed"})
	}
}
