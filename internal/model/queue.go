package model

import (
	"encoding/json"
	"time"
)

// QueueKind names one of the persistent work queues.
type QueueKind string

const (
	QueueEnrichment QueueKind = "enrichment"
	QueueEmail      QueueKind = "email"
)

// Table returns the backing table for the queue.
func (k QueueKind) Table() string {
	switch k {
	case QueueEmail:
		return "email_queue"
	default:
		return "enrichment_queue"
	}
}

// QueueItem is a work ticket. Enrichment and email tickets share this shape;
// only email tickets carry a payload.
type QueueItem struct {
	ID          string          `json:"id"`
	Kind        QueueKind       `json:"kind"`
	LeadID      string          `json:"lead_id"`
	Attempts    int             `json:"attempts"`
	LastAttempt *time.Time      `json:"last_attempt,omitempty"`
	Error       *string         `json:"error,omitempty"`
	ClaimedAt   *time.Time      `json:"claimed_at,omitempty"`
	ClaimedBy   *string         `json:"claimed_by,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ClaimRequest describes an atomic claim of eligible tickets.
type ClaimRequest struct {
	WorkerID    string
	Now         time.Time
	MaxAttempts int
	Cooldown    time.Duration
	LeaseTTL    time.Duration
	Limit       int
}

// QueueStats summarizes a queue for status output and metrics.
type QueueStats struct {
	Kind      QueueKind `json:"kind"`
	Pending   int       `json:"pending"`
	Claimed   int       `json:"claimed"`
	Exhausted int       `json:"exhausted"`
}

// OutboundEmail is the payload of an email ticket.
type OutboundEmail struct {
	To      string `json:"to"`
	ToName  string `json:"to_name,omitempty"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
