package model

import (
	"encoding/json"
	"time"
)

// EmailType tells whether a lead signed up with a consumer or a company mailbox.
type EmailType string

const (
	EmailTypePersonal EmailType = "PERSONAL"
	EmailTypeCompany  EmailType = "COMPANY"
)

// LeadStatus is the lifecycle state of a lead.
type LeadStatus string

const (
	LeadStatusNew      LeadStatus = "NEW"
	LeadStatusEnriched LeadStatus = "ENRICHED"
	LeadStatusFailed   LeadStatus = "FAILED"
	LeadStatusApproved LeadStatus = "APPROVED"
	LeadStatusRejected LeadStatus = "REJECTED"
)

// Decided reports whether a human already acted on the lead.
func (s LeadStatus) Decided() bool {
	return s == LeadStatusApproved || s == LeadStatusRejected
}

// Lead is a person under enrichment, owned by a team.
type Lead struct {
	ID             string          `json:"id"`
	TeamID         string          `json:"team_id"`
	Email          string          `json:"email"`
	EmailType      EmailType       `json:"email_type,omitempty"`
	FirstName      string          `json:"first_name,omitempty"`
	LastName       string          `json:"last_name,omitempty"`
	Company        string          `json:"company,omitempty"`
	Title          string          `json:"title,omitempty"`
	Industry       string          `json:"industry,omitempty"`
	CompanySize    string          `json:"company_size,omitempty"`
	Location       string          `json:"location,omitempty"`
	LinkedInURL    string          `json:"linkedin_url,omitempty"`
	EnrichmentData json.RawMessage `json:"enrichment_data,omitempty"`
	Status         LeadStatus      `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// FullName joins first and last name, skipping empty parts.
func (l *Lead) FullName() string {
	switch {
	case l.FirstName != "" && l.LastName != "":
		return l.FirstName + " " + l.LastName
	case l.FirstName != "":
		return l.FirstName
	default:
		return l.LastName
	}
}

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	TeamID string     `json:"team_id,omitempty"`
	Status LeadStatus `json:"status,omitempty"`
	Limit  int        `json:"limit,omitempty"`
	Offset int        `json:"offset,omitempty"`
}

// LeadUpdate carries the columns the orchestrator writes after a run.
// Empty strings leave the stored value untouched.
type LeadUpdate struct {
	Company        string
	Title          string
	Industry       string
	CompanySize    string
	Location       string
	LinkedInURL    string
	EnrichmentData json.RawMessage
	Status         LeadStatus
}
