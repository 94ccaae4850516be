package model

import (
	"encoding/json"
	"time"
)

// ActivityType classifies an audit trail entry.
type ActivityType string

const (
	ActivityEnrichmentSuccess      ActivityType = "enrichment_success"
	ActivityEnrichmentFailed       ActivityType = "enrichment_failed"
	ActivityCompanyResearchSuccess ActivityType = "company_research_success"
	ActivityCompanyResearchFailed  ActivityType = "company_research_failed"
	ActivityApprovalRequested      ActivityType = "approval_requested"
	ActivityApprovalFailed         ActivityType = "approval_failed"
	ActivityEmailApproved          ActivityType = "email_approved"
	ActivityEmailRejected          ActivityType = "email_rejected"
	ActivityEmailSent              ActivityType = "email_sent"
	ActivityEmailFailed            ActivityType = "email_failed"
)

// Activity is an immutable audit entry attached to a lead.
type Activity struct {
	ID           string          `json:"id"`
	Type         ActivityType    `json:"type"`
	Description  string          `json:"description"`
	LeadID       string          `json:"lead_id"`
	TeamID       string          `json:"team_id"`
	TeamMemberID string          `json:"team_member_id,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewActivity builds an activity for a lead, marshaling metadata. A metadata
// value that cannot be encoded is dropped rather than failing the caller.
func NewActivity(lead *Lead, typ ActivityType, description string, metadata any) Activity {
	a := Activity{
		Type:        typ,
		Description: description,
		LeadID:      lead.ID,
		TeamID:      lead.TeamID,
	}
	if metadata != nil {
		if b, err := json.Marshal(metadata); err == nil {
			a.Metadata = b
		}
	}
	return a
}
