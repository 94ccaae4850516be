// Package apollo is a client for the Apollo people and organization search API.
package apollo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.apollo.io/api/v1"

// Client looks up people and organizations.
type Client interface {
	// MatchPerson returns the person owning email, or nil when Apollo has no record.
	MatchPerson(ctx context.Context, email string) (*Person, error)
	SearchPeople(ctx context.Context, q PeopleQuery) ([]Person, error)
	SearchOrganizations(ctx context.Context, domain string) ([]Organization, error)
}

// PeopleQuery is the body of a people search. Empty filters are omitted.
type PeopleQuery struct {
	Emails              []string `json:"q_emails,omitempty"`
	PersonName          string   `json:"q_person_name,omitempty"`
	OrganizationDomains []string `json:"q_organization_domains,omitempty"`
	Page                int      `json:"page,omitempty"`
	PerPage             int      `json:"per_page,omitempty"`
}

// Person is an Apollo contact record.
type Person struct {
	ID           string        `json:"id"`
	FirstName    string        `json:"first_name"`
	LastName     string        `json:"last_name"`
	Name         string        `json:"name"`
	Title        string        `json:"title"`
	Email        string        `json:"email"`
	LinkedInURL  string        `json:"linkedin_url"`
	City         string        `json:"city"`
	State        string        `json:"state"`
	Country      string        `json:"country"`
	Organization *Organization `json:"organization,omitempty"`
}

// Location joins the non-empty city, state and country.
func (p *Person) Location() string {
	out := ""
	for _, part := range []string{p.City, p.State, p.Country} {
		if part == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += part
	}
	return out
}

// Organization is an Apollo company record.
type Organization struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	WebsiteURL         string `json:"website_url"`
	PrimaryDomain      string `json:"primary_domain"`
	Industry           string `json:"industry"`
	EstimatedEmployees int    `json:"estimated_num_employees"`
	LinkedInURL        string `json:"linkedin_url"`
	City               string `json:"city"`
	State              string `json:"state"`
	Country            string `json:"country"`
	ShortDescription   string `json:"short_description"`
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("apollo: unexpected status %d: %s", e.StatusCode, e.Body)
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps requests per second. Zero disables limiting.
func WithRateLimit(perSecond float64) Option {
	return func(c *httpClient) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an Apollo client. The default limit is 2 requests per second.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(2), 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) MatchPerson(ctx context.Context, email string) (*Person, error) {
	var resp struct {
		Person *Person `json:"person"`
	}
	body := map[string]any{"email": email, "reveal_personal_emails": false}
	if err := c.post(ctx, "/people/match", body, &resp); err != nil {
		return nil, eris.Wrap(err, "apollo: match person")
	}
	return resp.Person, nil
}

func (c *httpClient) SearchPeople(ctx context.Context, q PeopleQuery) ([]Person, error) {
	if q.PerPage == 0 {
		q.PerPage = 10
	}
	var resp struct {
		People []Person `json:"people"`
	}
	if err := c.post(ctx, "/mixed_people/search", q, &resp); err != nil {
		return nil, eris.Wrap(err, "apollo: search people")
	}
	return resp.People, nil
}

func (c *httpClient) SearchOrganizations(ctx context.Context, domain string) ([]Organization, error) {
	body := map[string]any{
		"q_organization_domains": []string{domain},
		"per_page":               1,
	}
	var resp struct {
		Organizations []Organization `json:"organizations"`
		Accounts      []Organization `json:"accounts"`
	}
	if err := c.post(ctx, "/mixed_companies/search", body, &resp); err != nil {
		return nil, eris.Wrap(err, "apollo: search organizations")
	}
	return append(resp.Accounts, resp.Organizations...), nil
}

func (c *httpClient) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "rate limit wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "unmarshal response")
	}
	return nil
}
