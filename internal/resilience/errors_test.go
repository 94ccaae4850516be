package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

type statusErr struct{ code int }

func (e *statusErr) Error() string   { return fmt.Sprintf("status %d", e.code) }
func (e *statusErr) HTTPStatus() int { return e.code }

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("bad request"), false},
		{"explicit", MarkTransient(errors.New("x")), true},
		{"wrapped explicit", eris.Wrap(MarkTransient(errors.New("x")), "apollo: match"), true},
		{"status 429", &statusErr{code: http.StatusTooManyRequests}, true},
		{"status 503 wrapped", fmt.Errorf("jina: %w", &statusErr{code: 503}), true},
		{"status 404", &statusErr{code: http.StatusNotFound}, false},
		{"status 401", &statusErr{code: http.StatusUnauthorized}, false},
		{"net timeout", timeoutErr{}, true},
		{"conn reset", syscall.ECONNRESET, true},
		{"conn refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"message pattern", errors.New("read tcp: i/o timeout"), true},
		{"no such host", errors.New("lookup api.apollo.io: no such host"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}

func TestMarkTransient(t *testing.T) {
	inner := errors.New("upstream")
	err := MarkTransient(inner)
	assert.Equal(t, "upstream", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.NoError(t, MarkTransient(nil))
}
