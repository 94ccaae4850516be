package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sdr-enrich/internal/monitoring"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func okHandler(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(name))
	})
}

func TestRouter_Health(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		body string
	}{
		{"healthy", nil, http.StatusOK, `{"status":"ok"}`},
		{"db down", errors.New("refused"), http.StatusServiceUnavailable, `{"status":"unavailable"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter(pinger{tt.err}, Handlers{}, Options{Gatherer: prometheus.NewRegistry()})
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.code, rec.Code)
			assert.JSONEq(t, tt.body, rec.Body.String())
		})
	}
}

func TestRouter_Webhooks(t *testing.T) {
	r := NewRouter(pinger{}, Handlers{
		Signup:  okHandler("signup"),
		Booking: okHandler("booking"),
		Slack:   okHandler("slack"),
	}, Options{Gatherer: prometheus.NewRegistry()})

	tests := []struct {
		method, path string
		code         int
		body         string
	}{
		{http.MethodPost, "/webhooks/signup", http.StatusAccepted, "signup"},
		{http.MethodPost, "/webhooks/booking/team-1", http.StatusAccepted, "booking"},
		{http.MethodPost, "/webhooks/slack/interactions", http.StatusAccepted, "slack"},
		{http.MethodGet, "/webhooks/signup", http.StatusMethodNotAllowed, ""},
		{http.MethodPost, "/webhooks/booking", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.code, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestRouter_UnconfiguredHandlers(t *testing.T) {
	r := NewRouter(pinger{}, Handlers{}, Options{Gatherer: prometheus.NewRegistry()})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/slack/interactions", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := monitoring.NewMetrics(reg)
	m.ObserveWebhook("signup", "created")

	r := NewRouter(pinger{}, Handlers{}, Options{Gatherer: reg})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `sdr_webhook_requests_total{source="signup",status="created"} 1`)
}

func TestRouter_CORS(t *testing.T) {
	r := NewRouter(pinger{}, Handlers{}, Options{
		CORSOrigins: []string{"https://app.example.com"},
		Gatherer:    prometheus.NewRegistry(),
	})
	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRun_Shutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, port, okHandler("up")) }()

	require.Eventually(t, func() bool {
		resp, err := http.Post(fmt.Sprintf("http://127.0.0.1:%d/", port), "text/plain", strings.NewReader(""))
		if err != nil {
			return false
		}
		resp.Body.Close() //nolint:errcheck
		return resp.StatusCode == http.StatusAccepted
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
