// Package store persists leads, work queues, the activity log and approvals.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sdr-enrich/internal/model"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = eris.New("store: not found")

// ErrLeaseLost is returned when a worker reports on a ticket it no longer
// holds: the lease expired and another worker claimed it, or the ticket is gone.
var ErrLeaseLost = eris.New("store: lease lost")

// Store is the persistence interface shared by the Postgres and SQLite backends.
type Store interface {
	LeadStore
	ActivityStore
	QueueStore
	ApprovalStore

	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// LeadStore persists leads.
type LeadStore interface {
	// CreateLead inserts lead and its enrichment ticket in one transaction.
	// When a lead with the same team and email (case-insensitive) exists,
	// lead is overwritten with the stored row and created is false.
	CreateLead(ctx context.Context, lead *model.Lead) (created bool, err error)
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter model.LeadFilter) ([]model.Lead, error)
	SetEmailType(ctx context.Context, id string, t model.EmailType) error
	// UpdateLeadEnrichment writes enrichment output. Leads a reviewer already
	// decided on are left untouched and ErrNotFound is returned.
	UpdateLeadEnrichment(ctx context.Context, id string, upd model.LeadUpdate) error
	// TransitionLead moves a lead from one status to another and reports
	// whether the lead was in the from status.
	TransitionLead(ctx context.Context, id string, from, to model.LeadStatus) (bool, error)
}

// ActivityStore appends to and reads the audit trail.
type ActivityStore interface {
	AppendActivity(ctx context.Context, a *model.Activity) error
	ListActivities(ctx context.Context, leadID string) ([]model.Activity, error)
}

// QueueStore persists work tickets for both queues.
type QueueStore interface {
	// Enqueue adds a ticket. A second enrichment ticket for the same lead is
	// ignored and nil is returned.
	Enqueue(ctx context.Context, kind model.QueueKind, leadID string, payload json.RawMessage) (*model.QueueItem, error)
	// Claim atomically leases up to req.Limit eligible tickets to req.WorkerID.
	Claim(ctx context.Context, kind model.QueueKind, req model.ClaimRequest) ([]model.QueueItem, error)
	// Complete deletes a processed ticket still leased to workerID.
	Complete(ctx context.Context, kind model.QueueKind, id, workerID string) error
	// Fail records a failed attempt and releases the lease held by workerID.
	Fail(ctx context.Context, kind model.QueueKind, id, workerID string, at time.Time, msg string) error
	ListExhausted(ctx context.Context, kind model.QueueKind, maxAttempts int) ([]model.QueueItem, error)
	// ResetAttempts makes an exhausted ticket eligible again.
	ResetAttempts(ctx context.Context, kind model.QueueKind, id string) error
	QueueStats(ctx context.Context, kind model.QueueKind, maxAttempts int, leaseExpiredBefore time.Time) (model.QueueStats, error)
}

// ApprovalStore persists outreach drafts awaiting review.
type ApprovalStore interface {
	CreateApproval(ctx context.Context, a *model.Approval) error
	// GetApprovalByLead returns the most recent approval for a lead.
	GetApprovalByLead(ctx context.Context, leadID string) (*model.Approval, error)
	SetApprovalMessage(ctx context.Context, id, channelID, ts string) error
	// DecideApproval records a decision on a pending approval and reports
	// whether it was still pending.
	DecideApproval(ctx context.Context, id string, status model.ApprovalStatus, decidedBy string, at time.Time) (bool, error)
	// DecideLead applies d in one transaction. It reports false and changes
	// nothing when the lead is no longer in d.From. The email ticket is
	// returned when d.Email is set.
	DecideLead(ctx context.Context, d model.Decision) (*model.QueueItem, bool, error)
}

// claimCutoffs converts a claim request into the timestamps the eligibility
// predicate compares against.
func claimCutoffs(req model.ClaimRequest) (cooldownBefore, leaseBefore time.Time) {
	return req.Now.Add(-req.Cooldown), req.Now.Add(-req.LeaseTTL)
}

func leaseLost(kind model.QueueKind, id, workerID string) error {
	return eris.Wrapf(ErrLeaseLost, "%s ticket %s for worker %s", kind, id, workerID)
}

func notFound(what, id string) error {
	return eris.Wrapf(ErrNotFound, "%s %s", what, id)
}
