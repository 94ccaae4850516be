package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/sdr-enrich/internal/model"
	"github.com/sells-group/sdr-enrich/internal/monitoring"
)

// BookingSignatureHeader carries the hex HMAC-SHA256 of the body.
const BookingSignatureHeader = "X-Cal-Signature-256"

// BookingHandler receives calendar BOOKING_CREATED events for a team. The
// team ID is the {teamID} route parameter.
type BookingHandler struct {
	secret  []byte
	leads   LeadCreator
	metrics *monitoring.Metrics
}

// NewBookingHandler creates a BookingHandler.
func NewBookingHandler(secret string, leads LeadCreator, m *monitoring.Metrics) *BookingHandler {
	return &BookingHandler{secret: []byte(strings.TrimSpace(secret)), leads: leads, metrics: m}
}

type bookingEvent struct {
	TriggerEvent string `json:"triggerEvent"`
	Payload      struct {
		Attendees []struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"attendees"`
	} `json:"payload"`
}

// SignBooking returns the signature header value for body.
func SignBooking(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (h *BookingHandler) verify(body []byte, header string) bool {
	header = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(header), "sha256="))
	if len(h.secret) == 0 || header == "" {
		return false
	}
	got, err := hex.DecodeString(header)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

func (h *BookingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	log := zap.L().With(zap.String("webhook", "booking"), zap.String("team_id", teamID))

	payload, err := readBody(w, r)
	if err != nil {
		h.metrics.ObserveWebhook("booking", "bad_request")
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Error: "invalid request body"})
		return
	}
	if !h.verify(payload, r.Header.Get(BookingSignatureHeader)) {
		log.Warn("webhook: invalid booking signature")
		h.metrics.ObserveWebhook("booking", "unauthorized")
		writeJSON(w, http.StatusUnauthorized, response{Status: "error", Error: "invalid signature"})
		return
	}
	if teamID == "" {
		h.metrics.ObserveWebhook("booking", "bad_request")
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Error: "team id is required"})
		return
	}

	var evt bookingEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		h.metrics.ObserveWebhook("booking", "bad_request")
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Error: "invalid JSON payload"})
		return
	}
	if evt.TriggerEvent != "BOOKING_CREATED" {
		h.metrics.ObserveWebhook("booking", "ignored")
		writeJSON(w, http.StatusOK, response{Status: "ignored"})
		return
	}
	if len(evt.Payload.Attendees) == 0 || !strings.Contains(evt.Payload.Attendees[0].Email, "@") {
		h.metrics.ObserveWebhook("booking", "bad_request")
		writeJSON(w, http.StatusBadRequest, response{Status: "error", Error: "booking has no attendee email"})
		return
	}

	attendee := evt.Payload.Attendees[0]
	first, last, _ := strings.Cut(strings.TrimSpace(attendee.Name), " ")
	lead := &model.Lead{
		TeamID:    teamID,
		Email:     strings.TrimSpace(attendee.Email),
		FirstName: first,
		LastName:  strings.TrimSpace(last),
	}
	log.Info("webhook: booking received")
	createLead(r.Context(), h.leads, h.metrics, "booking", w, lead)
}
