// Package research is a client for the company-research aggregator: a family
// of POST endpoints that each take {"websiteurl"} and answer {"results"}.
package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// Endpoint names an aggregator operation.
type Endpoint string

const (
	ScrapeWebsite   Endpoint = "scrapewebsiteurl"
	FindNews        Endpoint = "findnews"
	ScrapeLinkedIn  Endpoint = "scrapelinkedin"
	FetchFunding    Endpoint = "fetchfunding"
	FetchFounders   Endpoint = "fetchfounders"
	FindCompetitors Endpoint = "findcompetitors"
	FindSocials     Endpoint = "findsocials"
)

// AllEndpoints is the default fan-out for a company.
var AllEndpoints = []Endpoint{
	ScrapeWebsite, FindNews, ScrapeLinkedIn, FetchFunding,
	FetchFounders, FindCompetitors, FindSocials,
}

// Client calls aggregator endpoints.
type Client interface {
	Call(ctx context.Context, endpoint Endpoint, websiteURL string) (json.RawMessage, error)
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	Endpoint   Endpoint
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("research: %s: unexpected status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates an aggregator client rooted at baseURL.
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 90 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Call(ctx context.Context, endpoint Endpoint, websiteURL string) (json.RawMessage, error) {
	payload, err := json.Marshal(map[string]string{"websiteurl": websiteURL})
	if err != nil {
		return nil, eris.Wrap(err, "research: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+string(endpoint), bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrapf(err, "research: %s: create request", endpoint)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "research: %s: send request", endpoint)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "research: %s: read response", endpoint)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out struct {
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrapf(err, "research: %s: unmarshal response", endpoint)
	}
	return out.Results, nil
}

// Report collects the outcome of a fan-out.
type Report struct {
	Results map[Endpoint]json.RawMessage
	Errors  map[Endpoint]error
}

// ErrNoResults is returned by Research when every endpoint failed.
var ErrNoResults = eris.New("research: every endpoint failed")

// Research calls each endpoint concurrently for websiteURL. Individual
// endpoint failures are collected in the report; the call only fails when
// none succeeded.
func Research(ctx context.Context, c Client, websiteURL string, endpoints ...Endpoint) (*Report, error) {
	if len(endpoints) == 0 {
		endpoints = AllEndpoints
	}
	rep := &Report{
		Results: make(map[Endpoint]json.RawMessage, len(endpoints)),
		Errors:  make(map[Endpoint]error),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, ep := range endpoints {
		g.Go(func() error {
			res, err := c.Call(gctx, ep, websiteURL)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				rep.Errors[ep] = err
				return nil
			}
			rep.Results[ep] = res
			return nil
		})
	}
	_ = g.Wait()

	if len(rep.Results) == 0 {
		if err := ctx.Err(); err != nil {
			return rep, eris.Wrap(err, "research: cancelled")
		}
		return rep, ErrNoResults
	}
	return rep, nil
}
