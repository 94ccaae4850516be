// Package browser is a client for the headless-browser session service used
// to scrape profile pages.
package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Client opens browser sessions.
type Client interface {
	Open(ctx context.Context) (Session, error)
	Health(ctx context.Context) (*HealthResponse, error)
}

// Session is one remote browser. Callers must Close every session they open.
type Session interface {
	ID() string
	Goto(ctx context.Context, pageURL string) error
	// Extract asks the browser to pull structured data matching schema out of
	// the current page and decodes it into out.
	Extract(ctx context.Context, instruction string, schema Schema, out any) error
	Close(ctx context.Context) error
}

// Schema is a JSON schema describing the fields to extract.
type Schema map[string]any

// HealthResponse is the service health report.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	BrowserReady bool   `json:"browserReady"`
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("browser: %s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
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

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(key string) Option {
	return func(c *httpClient) {
		c.apiKey = key
	}
}

type httpClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 120 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Open(ctx context.Context) (Session, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, "open", http.MethodPost, "/v1/sessions", map[string]any{}, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, eris.New("browser: open: empty session id")
	}
	return &session{client: c, id: resp.ID}, nil
}

func (c *httpClient) Health(ctx context.Context) (*HealthResponse, error) {
	var h HealthResponse
	if err := c.do(ctx, "health", http.MethodGet, "/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *httpClient) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return eris.Wrapf(err, "browser: %s: marshal request", op)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return eris.Wrapf(err, "browser: %s: create request", op)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrapf(err, "browser: %s: send request", op)
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrapf(err, "browser: %s: read response", op)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrapf(err, "browser: %s: unmarshal response", op)
	}
	return nil
}

type session struct {
	client *httpClient
	id     string
}

func (s *session) ID() string { return s.id }

func (s *session) path(suffix string) string {
	return "/v1/sessions/" + url.PathEscape(s.id) + suffix
}

func (s *session) Goto(ctx context.Context, pageURL string) error {
	return s.client.do(ctx, "goto", http.MethodPost, s.path("/navigate"), map[string]string{"url": pageURL}, nil)
}

func (s *session) Extract(ctx context.Context, instruction string, schema Schema, out any) error {
	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	in := map[string]any{"instruction": instruction, "schema": schema}
	if err := s.client.do(ctx, "extract", http.MethodPost, s.path("/extract"), in, &resp); err != nil {
		return err
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return eris.New("browser: extract: no data")
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return eris.Wrap(err, "browser: extract: decode data")
	}
	return nil
}

func (s *session) Close(ctx context.Context) error {
	return s.client.do(ctx, "close", http.MethodDelete, s.path(""), nil, nil)
}
