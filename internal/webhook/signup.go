package webhook

import (
	"encoding/json"
	"net/http"
	"strings"

	svix "github.com/svix/svix-webhooks/go"
	"go.uber.org/zap"

	"github.com/sells-group/sdr-enrich/internal/model"
	"github.com/sells-group/sdr-enrich/internal/monitoring"
)

// SignupHandler receives identity-provider user.created events delivered
// through Svix.
type SignupHandler struct {
	wh      *svix.Webhook
	teamID  string
	leads   LeadCreator
	metrics *monitoring.Metrics
}

// NewSignupHandler creates a SignupHandler. New leads are owned by teamID.
func NewSignupHandler(secret, teamID string, leads LeadCreator, m *monitoring.Metrics) (*SignupHandler, error) {
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, err
	}
	return &SignupHandler{wh: wh, teamID: teamID, leads: leads, metrics: m}, nil
}

type signupEvent struct {
	Type string `json:"type"`
	Data struct {
		ID                    string `json:"id"`
		FirstName             string `json:"first_name"`
		LastName              string `json:"last_name"`
		PrimaryEmailAddressID string `json:"primary_email_address_id"`
		EmailAddresses        []struct {
			ID           string `json:"id"`
			EmailAddress string `json:"email_address"`
		} `json:"email_addresses"`
	} `json:"data"`
}

// primaryEmail returns the primary address, or the first one listed.
func (e signupEvent) primaryEmail() string {
	for _, a := range e.Data.EmailAddresses {
		if a.ID == e.Data.PrimaryEmailAddressID {
			return a.EmailAddress
		}
	}
	if len(e.Data.EmailAddresses) > 0 {
		return e.Data.EmailAddresses[0].EmailAddress
	}
	return ""
}

func (h *SignupHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := zap.L().With(zap.String("webhook", "signup"))
	payload, err := readBody(w, r)
	if err != nil {
		h.metrics.ObserveWebhook("signup", "bad_request")
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Error: "invalid request body"})
		return
	}
	if err := h.wh.Verify(payload, r.Header); err != nil {
		log.Warn("webhook: invalid signup signature", zap.Error(err))
		h.metrics.ObserveWebhook("signup", "unauthorized")
		writeJSON(w, http.StatusUnauthorized, response{Status: "error", Error: "invalid signature"})
		return
	}

	var evt signupEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		h.metrics.ObserveWebhook("signup", "bad_request")
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Error: "invalid JSON payload"})
		return
	}
	if evt.Type != "user.created" {
		h.metrics.ObserveWebhook("signup", "ignored")
		writeJSON(w, http.StatusOK, response{Status: "ignored"})
		return
	}
	email := strings.TrimSpace(evt.primaryEmail())
	if email == "" || !strings.Contains(email, "@") {
		h.metrics.ObserveWebhook("signup", "bad_request")
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Error: "user has no email address"})
		return
	}

	lead := &model.Lead{
		TeamID:    h.teamID,
		Email:     email,
		FirstName: evt.Data.FirstName,
		LastName:  evt.Data.LastName,
	}
	log.Info("webhook: signup received", zap.String("user_id", evt.Data.ID))
	createLead(r.Context(), h.leads, h.metrics, "signup", w, lead)
}
