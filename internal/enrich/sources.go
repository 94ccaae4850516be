package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sells-group/sdr-enrich/internal/model"
	"github.com/sells-group/sdr-enrich/internal/monitoring"
	"github.com/sells-group/sdr-enrich/internal/resilience"
	"github.com/sells-group/sdr-enrich/pkg/apollo"
	"github.com/sells-group/sdr-enrich/pkg/browser"
	"github.com/sells-group/sdr-enrich/pkg/jina"
	"github.com/sells-group/sdr-enrich/pkg/perplexity"
	"github.com/sells-group/sdr-enrich/pkg/research"
)

// PersonDirectory is the people and organization database (Apollo).
type PersonDirectory interface {
	// PersonByEmail returns what is known about the owner of email. A
	// missing record yields an empty result, not an error.
	PersonByEmail(ctx context.Context, email string) (*SourceResult, error)
	// Company combines the person record with the organization that owns domain.
	Company(ctx context.Context, email, domain string) (*SourceResult, error)
	PeopleByName(ctx context.Context, name string) ([]SourceResult, error)
}

// CompanyResearch aggregates public information about a company website.
type CompanyResearch interface {
	Research(ctx context.Context, websiteURL string) (*SourceResult, error)
}

// ProfileFinder locates a LinkedIn profile URL through a search engine.
type ProfileFinder interface {
	FindProfileURL(ctx context.Context, query string) (string, error)
}

// PeopleSearch is the alternate people index queried by name.
type PeopleSearch interface {
	FindPeople(ctx context.Context, name, hint string) ([]SourceResult, error)
}

// ProfileScraper extracts a LinkedIn profile.
type ProfileScraper interface {
	Scrape(ctx context.Context, profileURL string) (*SourceResult, error)
}

// Cache stores source lookups between runs.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any) error
}

// SourceOption configures the shared plumbing of a source adapter.
type SourceOption func(*sourceDeps)

type sourceDeps struct {
	guard   *resilience.Guard
	metrics *monitoring.Metrics
	cache   Cache
}

// WithGuard wraps every call in retry and a per-source circuit breaker.
func WithGuard(g *resilience.Guard) SourceOption {
	return func(d *sourceDeps) { d.guard = g }
}

// WithSourceMetrics records call latency and failures.
func WithSourceMetrics(m *monitoring.Metrics) SourceOption {
	return func(d *sourceDeps) { d.metrics = m }
}

// WithCache caches lookups that support it.
func WithCache(c Cache) SourceOption {
	return func(d *sourceDeps) { d.cache = c }
}

func newDeps(opts []SourceOption) sourceDeps {
	var d sourceDeps
	for _, o := range opts {
		o(&d)
	}
	return d
}

// call runs fn for a source with tracing, metrics and the guard.
func call[T any](ctx context.Context, d sourceDeps, source, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, "enrich.source")
	span.SetAttributes(attribute.String("source", source), attribute.String("operation", op))
	defer span.End()

	start := time.Now()
	v, err := resilience.Call(ctx, d.guard, source, op, fn)
	d.metrics.ObserveSource(source, time.Since(start).Seconds(), err)
	if err != nil {
		span.RecordError(err)
	}
	return v, err
}

func rawJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// ApolloSource adapts the Apollo client.
type ApolloSource struct {
	client apollo.Client
	deps   sourceDeps
}

// NewApolloSource creates an ApolloSource.
func NewApolloSource(c apollo.Client, opts ...SourceOption) *ApolloSource {
	return &ApolloSource{client: c, deps: newDeps(opts)}
}

func apolloCacheKey(email string) string {
	return "apollo:person:" + strings.ToLower(strings.TrimSpace(email))
}

func (s *ApolloSource) matchPerson(ctx context.Context, email string) (*apollo.Person, error) {
	key := apolloCacheKey(email)
	if s.deps.cache != nil {
		var cached apollo.Person
		ok, err := s.deps.cache.Get(ctx, key, &cached)
		if err != nil {
			zap.L().Warn("enrich: apollo cache read", zap.Error(err))
		} else if ok {
			return &cached, nil
		}
	}

	p, err := call(ctx, s.deps, SourceApollo, "match_person", func(ctx context.Context) (*apollo.Person, error) {
		return s.client.MatchPerson(ctx, email)
	})
	if err != nil {
		return nil, err
	}
	if p != nil && s.deps.cache != nil {
		if err := s.deps.cache.Set(ctx, key, p); err != nil {
			zap.L().Warn("enrich: apollo cache write", zap.Error(err))
		}
	}
	return p, nil
}

func (s *ApolloSource) PersonByEmail(ctx context.Context, email string) (*SourceResult, error) {
	p, err := s.matchPerson(ctx, email)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: apollo person by email")
	}
	res := personResult(p, nil)
	return &res, nil
}

func (s *ApolloSource) Company(ctx context.Context, email, domain string) (*SourceResult, error) {
	p, err := s.matchPerson(ctx, email)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: apollo person by email")
	}
	var org *apollo.Organization
	if domain != "" {
		orgs, err := call(ctx, s.deps, SourceApollo, "search_organizations", func(ctx context.Context) ([]apollo.Organization, error) {
			return s.client.SearchOrganizations(ctx, domain)
		})
		if err != nil {
			return nil, eris.Wrap(err, "enrich: apollo organization search")
		}
		if len(orgs) > 0 {
			org = &orgs[0]
		}
	}
	res := personResult(p, org)
	return &res, nil
}

func (s *ApolloSource) PeopleByName(ctx context.Context, name string) ([]SourceResult, error) {
	people, err := call(ctx, s.deps, SourceApollo, "search_people", func(ctx context.Context) ([]apollo.Person, error) {
		return s.client.SearchPeople(ctx, apollo.PeopleQuery{PersonName: name, PerPage: 10})
	})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: apollo people by name")
	}
	out := make([]SourceResult, 0, len(people))
	for i := range people {
		out = append(out, personResult(&people[i], nil))
	}
	return out, nil
}

// personResult maps an Apollo person and organization. org falls back to
// the person's nested organization.
func personResult(p *apollo.Person, org *apollo.Organization) SourceResult {
	res := SourceResult{Source: SourceApollo, Extra: map[string]any{}}
	if p != nil {
		res.Fields.FirstName = p.FirstName
		res.Fields.LastName = p.LastName
		if res.Fields.FirstName == "" && res.Fields.LastName == "" {
			res.Fields.FirstName, res.Fields.LastName = splitName(p.Name)
		}
		res.Fields.Title = p.Title
		res.Fields.LinkedInURL = p.LinkedInURL
		res.Fields.Location = p.Location()
		if p.ID != "" {
			res.Extra["apollo_person_id"] = p.ID
		}
		if org == nil {
			org = p.Organization
		}
	}
	if org != nil {
		res.Fields.Company = org.Name
		res.Fields.Industry = org.Industry
		res.Fields.Website = org.WebsiteURL
		if org.EstimatedEmployees > 0 {
			res.Fields.CompanySize = strconv.Itoa(org.EstimatedEmployees)
		}
		if res.Fields.Location == "" {
			res.Fields.Location = (&apollo.Person{City: org.City, State: org.State, Country: org.Country}).Location()
		}
		if org.ShortDescription != "" {
			res.Extra["description"] = org.ShortDescription
		}
		if org.LinkedInURL != "" {
			res.Extra["company_linkedin_url"] = org.LinkedInURL
		}
	}
	if p != nil || org != nil {
		res.Raw = rawJSON(map[string]any{"person": p, "organization": org})
	}
	return res
}

// splitName splits a display name on the first space.
func splitName(name string) (first, last string) {
	name = strings.Join(strings.Fields(name), " ")
	first, last, _ = strings.Cut(name, " ")
	return first, last
}

// ResearchSource adapts the company-research aggregator.
type ResearchSource struct {
	client    research.Client
	endpoints []research.Endpoint
	deps      sourceDeps
}

// NewResearchSource creates a ResearchSource calling every endpoint.
func NewResearchSource(c research.Client, opts ...SourceOption) *ResearchSource {
	return &ResearchSource{client: c, endpoints: research.AllEndpoints, deps: newDeps(opts)}
}

func (s *ResearchSource) Research(ctx context.Context, websiteURL string) (*SourceResult, error) {
	rep, err := research.Research(ctx, guardedResearch{s}, websiteURL, s.endpoints...)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: company research")
	}

	res := &SourceResult{
		Source: SourceCompanyResearch,
		Fields: fieldsFromWebsite(rep.Results[research.ScrapeWebsite]),
		Extra:  make(map[string]any, len(rep.Results)),
		Raw:    rawJSON(rep.Results),
	}
	res.Fields.Website = websiteURL
	for ep, raw := range rep.Results {
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			res.Extra[string(ep)] = v
		}
	}
	if desc, ok := websiteString(rep.Results[research.ScrapeWebsite], "description"); ok {
		res.Extra["description"] = desc
	}
	if len(rep.Errors) > 0 {
		res.Errors = make(map[string]string, len(rep.Errors))
		for ep, e := range rep.Errors {
			res.Errors[string(ep)] = e.Error()
		}
	}
	return res, nil
}

// guardedResearch routes each endpoint through the source guard.
type guardedResearch struct{ s *ResearchSource }

func (g guardedResearch) Call(ctx context.Context, ep research.Endpoint, websiteURL string) (json.RawMessage, error) {
	return call(ctx, g.s.deps, SourceCompanyResearch, string(ep), func(ctx context.Context) (json.RawMessage, error) {
		return g.s.client.Call(ctx, ep, websiteURL)
	})
}

// fieldsFromWebsite reads the well-known keys of a website scrape.
func fieldsFromWebsite(raw json.RawMessage) (f model.ProfileFields) {
	for _, k := range []string{"company_name", "name"} {
		if v, ok := websiteString(raw, k); ok {
			f.Company = v
			break
		}
	}
	f.Industry, _ = websiteString(raw, "industry")
	for _, k := range []string{"location", "headquarters"} {
		if v, ok := websiteString(raw, k); ok {
			f.Location = v
			break
		}
	}
	f.CompanySize, _ = websiteString(raw, "company_size")
	return f
}

func websiteString(raw json.RawMessage, key string) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", false
	}
	switch v := m[key].(type) {
	case string:
		v = strings.TrimSpace(v)
		return v, v != ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	}
	return "", false
}

// DorkFinder finds LinkedIn profiles with a site-restricted web search.
type DorkFinder struct {
	client jina.Client
	deps   sourceDeps
}

// NewDorkFinder creates a DorkFinder.
func NewDorkFinder(c jina.Client, opts ...SourceOption) *DorkFinder {
	return &DorkFinder{client: c, deps: newDeps(opts)}
}

// FindProfileURL returns the first linkedin.com/in/ result for query, or ""
// when there is none.
func (f *DorkFinder) FindProfileURL(ctx context.Context, query string) (string, error) {
	resp, err := call(ctx, f.deps, "dork", "search", func(ctx context.Context) (*jina.SearchResponse, error) {
		return f.client.Search(ctx, fmt.Sprintf("%q", query), jina.WithSiteFilter("linkedin.com"))
	})
	if err != nil {
		return "", eris.Wrap(err, "enrich: dork search")
	}
	return resp.FirstMatch("linkedin.com/in/"), nil
}

// PerplexityPeople adapts the Perplexity people search.
type PerplexityPeople struct {
	client perplexity.Client
	deps   sourceDeps
}

// NewPerplexityPeople creates a PerplexityPeople.
func NewPerplexityPeople(c perplexity.Client, opts ...SourceOption) *PerplexityPeople {
	return &PerplexityPeople{client: c, deps: newDeps(opts)}
}

func (p *PerplexityPeople) FindPeople(ctx context.Context, name, hint string) ([]SourceResult, error) {
	people, err := call(ctx, p.deps, SourcePeopleSearch, "find_people", func(ctx context.Context) ([]perplexity.Person, error) {
		return perplexity.FindPeople(ctx, p.client, name, hint)
	})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: people search")
	}
	out := make([]SourceResult, 0, len(people))
	for _, person := range people {
		first, last := splitName(person.Name)
		out = append(out, SourceResult{
			Source: SourcePeopleSearch,
			Fields: model.ProfileFields{
				FirstName:   first,
				LastName:    last,
				Company:     person.Company,
				Title:       person.Title,
				LinkedInURL: person.LinkedInURL,
			},
			Raw: rawJSON(person),
		})
	}
	return out, nil
}

// BrowserScraper scrapes LinkedIn profiles in scoped browser sessions.
type BrowserScraper struct {
	client browser.Client
	deps   sourceDeps
}

// NewBrowserScraper creates a BrowserScraper.
func NewBrowserScraper(c browser.Client, opts ...SourceOption) *BrowserScraper {
	return &BrowserScraper{client: c, deps: newDeps(opts)}
}

func (b *BrowserScraper) Scrape(ctx context.Context, profileURL string) (*SourceResult, error) {
	p, err := call(ctx, b.deps, SourceLinkedIn, "scrape_profile", func(ctx context.Context) (*browser.Profile, error) {
		return browser.ScrapeProfile(ctx, b.client, profileURL)
	})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: linkedin scrape")
	}
	first, last := splitName(p.Name)
	return &SourceResult{
		Source: SourceLinkedIn,
		Fields: model.ProfileFields{
			FirstName:   first,
			LastName:    last,
			Company:     p.Company,
			Title:       p.Title,
			Industry:    p.Industry,
			Location:    p.Location,
			LinkedInURL: p.LinkedInURL,
		},
		Raw: rawJSON(p),
	}, nil
}
