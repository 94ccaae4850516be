package model

import (
	"encoding/json"
	"time"
)

// Pipeline names the enrichment strategy chosen for a lead.
type Pipeline string

const (
	PipelineCompany  Pipeline = "company"
	PipelinePersonal Pipeline = "personal"
)

// ProfileFields are the identity attributes any source may contribute.
type ProfileFields struct {
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Company     string `json:"company,omitempty"`
	Title       string `json:"title,omitempty"`
	Industry    string `json:"industry,omitempty"`
	CompanySize string `json:"company_size,omitempty"`
	Location    string `json:"location,omitempty"`
	LinkedInURL string `json:"linkedin_url,omitempty"`
	Website     string `json:"website,omitempty"`
}

// FoundData reports, per lead column, whether enrichment discovered a value.
type FoundData struct {
	Company     bool `json:"company"`
	Title       bool `json:"title"`
	Industry    bool `json:"industry"`
	CompanySize bool `json:"companySize"`
	Location    bool `json:"location"`
	LinkedInURL bool `json:"linkedInUrl"`
}

// Found summarizes which lead columns are populated.
func (f ProfileFields) Found() FoundData {
	return FoundData{
		Company:     f.Company != "",
		Title:       f.Title != "",
		Industry:    f.Industry != "",
		CompanySize: f.CompanySize != "",
		Location:    f.Location != "",
		LinkedInURL: f.LinkedInURL != "",
	}
}

// MatchSummary records the cross-source identity match of the personal pipeline.
type MatchSummary struct {
	Score       float64 `json:"score"`
	Name        string  `json:"name"`
	Company     string  `json:"company,omitempty"`
	Title       string  `json:"title,omitempty"`
	LinkedInURL string  `json:"linkedin_url,omitempty"`
}

// EnrichmentData is the JSON document stored in leads.enrichment_data.
type EnrichmentData struct {
	Pipeline   Pipeline                   `json:"pipeline"`
	Sources    []string                   `json:"sources"`
	Fields     ProfileFields              `json:"fields"`
	Provenance map[string]string          `json:"provenance,omitempty"`
	Extra      map[string]any             `json:"extra,omitempty"`
	Raw        map[string]json.RawMessage `json:"raw,omitempty"`
	Match      *MatchSummary              `json:"match,omitempty"`
	Error      string                     `json:"error,omitempty"`
	EnrichedAt time.Time                  `json:"enriched_at"`
}

// ParseEnrichmentData decodes a stored document. Empty input yields nil.
func ParseEnrichmentData(raw json.RawMessage) (*EnrichmentData, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var d EnrichmentData
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
