package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    any
		wantErr string
	}{
		{"default log", Config{}, LogSender{}, ""},
		{"sendgrid", Config{Driver: "sendgrid", FromEmail: "sdr@acme.io", SendGridAPIKey: "SG.x"}, &SendGridSender{}, ""},
		{"sendgrid no key", Config{Driver: "sendgrid", FromEmail: "sdr@acme.io"}, nil, "api key"},
		{"smtp", Config{Driver: "smtp", FromEmail: "sdr@acme.io", SMTPHost: "mail.local"}, &SMTPSender{}, ""},
		{"smtp no host", Config{Driver: "smtp", FromEmail: "sdr@acme.io"}, nil, "smtp host"},
		{"no from", Config{Driver: "smtp", SMTPHost: "mail.local"}, nil, "from address"},
		{"unknown", Config{Driver: "pigeon", FromEmail: "sdr@acme.io"}, nil, "unknown driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, s)
		})
	}
}

func TestSendGridSender(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"accepted", http.StatusAccepted, false},
		{"rejected", http.StatusBadRequest, true},
		{"throttled", http.StatusTooManyRequests, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v3/mail/send", r.URL.Path)
				assert.Equal(t, "Bearer SG.test", r.Header.Get("Authorization"))
				var body struct {
					Subject string `json:"subject"`
					From    struct {
						Email string `json:"email"`
					} `json:"from"`
					Personalizations []struct {
						To []struct {
							Email string `json:"email"`
						} `json:"to"`
					} `json:"personalizations"`
				}
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "Quick intro", body.Subject)
				assert.Equal(t, "sdr@acme.io", body.From.Email)
				assert.Equal(t, "jane@acmecorp.com", body.Personalizations[0].To[0].Email)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			s := NewSendGridSender(Config{SendGridAPIKey: "SG.test", SendGridHost: srv.URL, FromEmail: "sdr@acme.io", FromName: "SDR"})
			err := s.Send(context.Background(), Message{To: "jane@acmecorp.com", ToName: "Jane", Subject: "Quick intro", Body: "Hi"})
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.status, se.HTTPStatus())
		})
	}
}

func TestSMTPSender_Build(t *testing.T) {
	s := NewSMTPSender(Config{SMTPHost: "mail.local", FromEmail: "sdr@acme.io", FromName: "SDR"})
	m := s.build(Message{To: "jane@acmecorp.com", ToName: "Jane Doe", Subject: "Quick intro", Body: "Hi Jane"})

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "Subject: Quick intro")
	assert.Contains(t, raw, "jane@acmecorp.com")
	assert.Contains(t, raw, "sdr@acme.io")
	assert.Contains(t, raw, "Hi Jane")
	assert.Equal(t, 587, s.dialer.Port)
}

func TestSMTPSender_CancelledContext(t *testing.T) {
	s := NewSMTPSender(Config{SMTPHost: "127.0.0.1", SMTPPort: 1, FromEmail: "sdr@acme.io"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Send(ctx, Message{To: "x@y.z"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, LogSender{}.Send(context.Background(), Message{To: "x@y.z"}))
}
