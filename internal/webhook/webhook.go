// Package webhook turns verified inbound webhooks into leads and approval
// decisions. Every handler verifies its signature before touching state.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/sells-group/sdr-enrich/internal/approval"
	"github.com/sells-group/sdr-enrich/internal/model"
	"github.com/sells-group/sdr-enrich/internal/monitoring"
)

// maxBody caps webhook payloads.
const maxBody = 1 << 20

// LeadCreator stores a lead together with its enrichment ticket.
type LeadCreator interface {
	CreateLead(ctx context.Context, lead *model.Lead) (bool, error)
}

// Decider applies an approval decision.
type Decider interface {
	Decide(ctx context.Context, action approval.Action, user string) (model.LeadStatus, error)
}

type response struct {
	Status string `json:"status"`
	LeadID string `json:"leadId,omitempty"`
	Error  string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
}

func createLead(ctx context.Context, leads LeadCreator, m *monitoring.Metrics, source string, w http.ResponseWriter, lead *model.Lead) {
	created, err := leads.CreateLead(ctx, lead)
	if err != nil {
		m.ObserveWebhook(source, "error")
		writeJSON(w, http.StatusInternalServerError, response{Status: "error", Error: "could not store lead"})
		return
	}
	status := "created"
	if !created {
		status = "duplicate"
	}
	m.ObserveWebhook(source, status)
	writeJSON(w, http.StatusAccepted, response{Status: status, LeadID: lead.ID})
}
