package model

import (
	"encoding/json"
	"time"
)

// ApprovalStatus is the state of a human review of an outreach draft.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Approval is a drafted outreach email waiting on (or decided by) a reviewer.
type Approval struct {
	ID        string         `json:"id"`
	LeadID    string         `json:"lead_id"`
	TeamID    string         `json:"team_id"`
	Subject   string         `json:"subject"`
	Body      string         `json:"body"`
	ChannelID string         `json:"channel_id,omitempty"`
	MessageTS string         `json:"message_ts,omitempty"`
	Status    ApprovalStatus `json:"status"`
	DecidedBy string         `json:"decided_by,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	DecidedAt *time.Time     `json:"decided_at,omitempty"`
}

// Decision is a reviewer verdict applied to a lead as one unit: the status
// change, the approval record and, when approving a draft, the email ticket.
type Decision struct {
	LeadID string
	From   LeadStatus
	To     LeadStatus
	// ApprovalID is empty when the lead has no draft.
	ApprovalID string
	Status     ApprovalStatus
	DecidedBy  string
	At         time.Time
	// Email is the OutboundEmail payload to queue. Nil queues nothing.
	Email json.RawMessage
}
