package enrich

import (
	"encoding/json"
	"slices"

	"github.com/sells-group/sdr-enrich/internal/model"
)

// Source names used in provenance, activity metadata and precedence lists.
const (
	SourceApollo          = "apollo"
	SourceCompanyResearch = "company_research"
	SourceLinkedIn        = "linkedin"
	SourcePeopleSearch    = "people_search"
)

// Precedence lists, lowest first. A later source wins a field collision.
var (
	CompanyPrecedence = []string{SourceApollo, SourceCompanyResearch}
	ProfilePrecedence = []string{SourceApollo, SourceLinkedIn}
	MatchedPrecedence = []string{SourceApollo, SourcePeopleSearch, SourceLinkedIn}
)

// SourceResult is what one source contributed to an enrichment.
type SourceResult struct {
	Source string
	Fields model.ProfileFields
	Extra  map[string]any
	Raw    json.RawMessage
	// Errors holds partial failures that did not fail the source as a whole.
	Errors map[string]string
}

// Merged is the reconciled output of several sources.
type Merged struct {
	Sources    []string
	Fields     model.ProfileFields
	Provenance map[string]string
	Extra      map[string]any
	Raw        map[string]json.RawMessage
}

// Merge folds results in precedence order. A non-empty value from a later
// source overwrites an earlier one and provenance names the winner. Sources
// missing from precedence rank below every listed source, in input order.
func Merge(precedence []string, results ...SourceResult) Merged {
	rank := func(source string) int { return slices.Index(precedence, source) }
	ordered := slices.Clone(results)
	slices.SortStableFunc(ordered, func(a, b SourceResult) int {
		return rank(a.Source) - rank(b.Source)
	})

	m := Merged{
		Provenance: make(map[string]string),
		Extra:      make(map[string]any),
		Raw:        make(map[string]json.RawMessage),
	}
	for _, r := range ordered {
		m.Sources = append(m.Sources, r.Source)
		dst := fieldRefs(&m.Fields)
		src := fieldRefs(&r.Fields)
		for i := range dst {
			if v := *src[i].ptr; v != "" {
				*dst[i].ptr = v
				m.Provenance[dst[i].name] = r.Source
			}
		}
		for k, v := range r.Extra {
			if v == nil {
				continue
			}
			m.Extra[k] = v
			m.Provenance["extra."+k] = r.Source
		}
		if len(r.Raw) > 0 {
			m.Raw[r.Source] = r.Raw
		}
	}
	return m
}

type fieldRef struct {
	name string
	ptr  *string
}

func fieldRefs(f *model.ProfileFields) []fieldRef {
	return []fieldRef{
		{"first_name", &f.FirstName},
		{"last_name", &f.LastName},
		{"company", &f.Company},
		{"title", &f.Title},
		{"industry", &f.Industry},
		{"company_size", &f.CompanySize},
		{"location", &f.Location},
		{"linkedin_url", &f.LinkedInURL},
		{"website", &f.Website},
	}
}
