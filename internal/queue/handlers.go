package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sdr-enrich/internal/model"
	"github.com/sells-group/sdr-enrich/pkg/mailer"
)

// Enricher runs enrichment for one lead.
type Enricher interface {
	Enrich(ctx context.Context, leadID string) error
}

// EnrichmentHandler processes enrichment tickets.
func EnrichmentHandler(e Enricher) Handler {
	return HandlerFunc(func(ctx context.Context, item model.QueueItem) error {
		return e.Enrich(ctx, item.LeadID)
	})
}

// ActivityLog is the lead lookup and audit trail the email handler writes to.
type ActivityLog interface {
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	AppendActivity(ctx context.Context, a *model.Activity) error
}

// EmailHandler sends approved outreach emails.
type EmailHandler struct {
	sender mailer.Sender
	log    ActivityLog
}

// NewEmailHandler creates an EmailHandler.
func NewEmailHandler(sender mailer.Sender, log ActivityLog) *EmailHandler {
	return &EmailHandler{sender: sender, log: log}
}

// Handle decodes the ticket payload and sends it. Every attempt leaves an
// email_sent or email_failed activity on the lead.
func (h *EmailHandler) Handle(ctx context.Context, item model.QueueItem) error {
	var out model.OutboundEmail
	if err := json.Unmarshal(item.Payload, &out); err != nil {
		return eris.Wrapf(err, "queue: decode email payload %s", item.ID)
	}
	if out.To == "" {
		return eris.Errorf("queue: email ticket %s has no recipient", item.ID)
	}

	lead, err := h.log.GetLead(ctx, item.LeadID)
	if err != nil {
		return eris.Wrapf(err, "queue: get lead %s", item.LeadID)
	}

	sendErr := h.sender.Send(ctx, mailer.Message{
		To:      out.To,
		ToName:  out.ToName,
		Subject: out.Subject,
		Body:    out.Body,
	})

	var act model.Activity
	if sendErr != nil {
		act = model.NewActivity(lead, model.ActivityEmailFailed,
			fmt.Sprintf("Email to %s failed (attempt %d)", out.To, item.Attempts+1),
			map[string]any{"ticketId": item.ID, "error": sendErr.Error()})
	} else {
		act = model.NewActivity(lead, model.ActivityEmailSent,
			fmt.Sprintf("Sent %q to %s", out.Subject, out.To),
			map[string]any{"ticketId": item.ID})
	}
	if err := h.log.AppendActivity(context.WithoutCancel(ctx), &act); err != nil {
		zap.L().Warn("queue: append email activity", zap.String("lead_id", lead.ID), zap.Error(err))
	}

	if sendErr != nil {
		return eris.Wrapf(sendErr, "queue: send email %s", item.ID)
	}
	return nil
}
