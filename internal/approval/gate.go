// Package approval drafts outreach emails for enriched leads and holds them
// for a human decision in Slack before anything is sent.
package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/sells-group/sdr-enrich/internal/model"
	"github.com/sells-group/sdr-enrich/internal/store"
	"github.com/sells-group/sdr-enrich/pkg/slack"
)

var tracer = otel.Tracer("github.com/sells-group/sdr-enrich/internal/approval")

// Store is the persistence the gate needs.
type Store interface {
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	AppendActivity(ctx context.Context, a *model.Activity) error
	CreateApproval(ctx context.Context, a *model.Approval) error
	GetApprovalByLead(ctx context.Context, leadID string) (*model.Approval, error)
	SetApprovalMessage(ctx context.Context, id, channelID, ts string) error
	DecideLead(ctx context.Context, d model.Decision) (*model.QueueItem, bool, error)
}

// Gate posts drafts for review and applies reviewer decisions.
type Gate struct {
	store   Store
	drafter Drafter
	slack   slack.Client
	channel string
	now     func() time.Time
}

// NewGate creates a Gate posting to channel.
func NewGate(st Store, d Drafter, sc slack.Client, channel string) *Gate {
	return &Gate{store: st, drafter: d, slack: sc, channel: channel, now: time.Now}
}

// Request drafts an email for lead, records a pending approval and posts the
// review card. The lead waits in ENRICHED until someone decides. A lead that
// already has a pending approval keeps it: no new draft is made and a card is
// posted only if the earlier one never was.
func (g *Gate) Request(ctx context.Context, lead *model.Lead) error {
	ctx, span := tracer.Start(ctx, "approval.request")
	defer span.End()
	span.SetAttributes(attribute.String("lead_id", lead.ID))

	a, err := g.store.GetApprovalByLead(ctx, lead.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		a = nil
	case err != nil:
		return eris.Wrap(err, "approval: get approval")
	case a.Status != model.ApprovalPending:
		a = nil
	case a.MessageTS != "":
		zap.L().Info("approval: draft already awaiting review",
			zap.String("lead_id", lead.ID), zap.String("approval_id", a.ID))
		return nil
	}

	var cost float64
	if a == nil {
		draft, err := g.drafter.Draft(ctx, lead)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		cost = draft.CostUSD
		a = &model.Approval{
			LeadID:  lead.ID,
			TeamID:  lead.TeamID,
			Subject: draft.Subject,
			Body:    draft.Body,
			Status:  model.ApprovalPending,
		}
		if err := g.store.CreateApproval(ctx, a); err != nil {
			return eris.Wrap(err, "approval: save draft")
		}
	}

	channelID, ts, err := g.slack.PostCard(ctx, g.channel, g.card(lead, a, ""))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return eris.Wrap(err, "approval: post card")
	}
	if err := g.store.SetApprovalMessage(ctx, a.ID, channelID, ts); err != nil {
		return eris.Wrap(err, "approval: save card reference")
	}

	act := model.NewActivity(lead, model.ActivityApprovalRequested,
		fmt.Sprintf("Draft %q posted for approval", a.Subject),
		map[string]any{"approvalId": a.ID, "channel": channelID, "ts": ts, "draftCostUsd": cost})
	if err := g.store.AppendActivity(ctx, &act); err != nil {
		zap.L().Warn("approval: append activity", zap.String("lead_id", lead.ID), zap.Error(err))
	}
	return nil
}

// Decide applies a reviewer action. Approving queues the drafted email for
// delivery. A lead that is not ENRICHED, or that another reviewer decided
// first, yields ErrInvalidTransition and nothing changes.
func (g *Gate) Decide(ctx context.Context, action Action, user string) (model.LeadStatus, error) {
	ctx, span := tracer.Start(ctx, "approval.decide")
	defer span.End()
	span.SetAttributes(attribute.String("lead_id", action.LeadID), attribute.String("action", string(action.Kind)))
	log := zap.L().With(zap.String("lead_id", action.LeadID), zap.String("action", string(action.Kind)), zap.String("user", user))

	lead, err := g.store.GetLead(ctx, action.LeadID)
	if err != nil {
		return "", eris.Wrapf(err, "approval: get lead %s", action.LeadID)
	}
	to, err := Transition(lead.Status, action.Kind)
	if err != nil {
		return "", err
	}

	a, err := g.store.GetApprovalByLead(ctx, lead.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		a = nil
	case err != nil:
		return "", eris.Wrap(err, "approval: get approval")
	}

	now := g.now().UTC()
	d := model.Decision{LeadID: lead.ID, From: model.LeadStatusEnriched, To: to, DecidedBy: user, At: now}
	if a != nil {
		d.ApprovalID = a.ID
		d.Status = model.ApprovalRejected
		if to == model.LeadStatusApproved {
			d.Status = model.ApprovalApproved
			if d.Email, err = outboundEmail(lead, a); err != nil {
				return "", err
			}
		}
	}
	ticket, ok, err := g.store.DecideLead(ctx, d)
	if err != nil {
		return "", eris.Wrap(err, "approval: apply decision")
	}
	if !ok {
		return "", eris.Wrapf(ErrInvalidTransition, "lead %s changed concurrently", lead.ID)
	}
	lead.Status = to

	g.recordDecision(ctx, lead, a, ticket, user)

	if a != nil && a.ChannelID != "" && a.MessageTS != "" {
		verb := "Approved"
		if to == model.LeadStatusRejected {
			verb = "Rejected"
		}
		decision := fmt.Sprintf("%s by <@%s> at %s", verb, user, now.Format(time.RFC1123))
		if err := g.slack.UpdateCard(ctx, a.ChannelID, a.MessageTS, g.card(lead, a, decision)); err != nil {
			log.Warn("approval: update card", zap.Error(err))
		}
	}

	log.Info("approval: decided", zap.String("status", string(to)))
	return to, nil
}

func outboundEmail(lead *model.Lead, a *model.Approval) (json.RawMessage, error) {
	payload, err := json.Marshal(model.OutboundEmail{
		To:      lead.Email,
		ToName:  lead.FullName(),
		Subject: a.Subject,
		Body:    a.Body,
	})
	return payload, eris.Wrap(err, "approval: encode email")
}

// recordDecision appends the audit entry for a committed decision.
func (g *Gate) recordDecision(ctx context.Context, lead *model.Lead, a *model.Approval, ticket *model.QueueItem, user string) {
	log := zap.L().With(zap.String("lead_id", lead.ID))
	var act model.Activity
	switch {
	case lead.Status == model.LeadStatusRejected:
		act = model.NewActivity(lead, model.ActivityEmailRejected,
			"Outreach draft rejected", map[string]any{"decidedBy": user})
	case a == nil:
		// Approved without a draft; nothing to send.
		log.Warn("approval: approved lead has no draft")
		return
	default:
		meta := map[string]any{"decidedBy": user, "approvalId": a.ID}
		if ticket != nil {
			meta["ticketId"] = ticket.ID
		}
		act = model.NewActivity(lead, model.ActivityEmailApproved,
			fmt.Sprintf("Outreach %q approved", a.Subject), meta)
	}
	if err := g.store.AppendActivity(ctx, &act); err != nil {
		log.Warn("approval: append activity", zap.Error(err))
	}
}

func (g *Gate) card(lead *model.Lead, a *model.Approval, decision string) slack.Card {
	name := lead.FullName()
	if name == "" {
		name = lead.Email
	}
	return slack.Card{
		Title: "Outreach draft for " + name,
		Fields: []slack.Field{
			{Label: "Email", Value: lead.Email},
			{Label: "Company", Value: lead.Company},
			{Label: "Title", Value: lead.Title},
			{Label: "Industry", Value: lead.Industry},
			{Label: "Location", Value: lead.Location},
			{Label: "LinkedIn", Value: lead.LinkedInURL},
		},
		Subject:      a.Subject,
		Body:         a.Body,
		ApproveValue: Action{Kind: ActionApprove, LeadID: lead.ID}.Encode(),
		RejectValue:  Action{Kind: ActionReject, LeadID: lead.ID}.Encode(),
		Decision:     decision,
	}
}
