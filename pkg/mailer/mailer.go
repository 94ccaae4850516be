// Package mailer delivers approved outreach email through SendGrid or SMTP.
package mailer

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Message is an outbound email.
type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string // plain text
	HTML    string // optional
}

// Config selects and configures a driver.
type Config struct {
	Driver    string // "sendgrid", "smtp" or "log"
	FromEmail string
	FromName  string

	SendGridAPIKey string
	SendGridHost   string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
}

// New builds the Sender named by cfg.Driver.
func New(cfg Config) (Sender, error) {
	if cfg.FromEmail == "" && cfg.Driver != "log" && cfg.Driver != "" {
		return nil, eris.New("mailer: from address is required")
	}
	switch cfg.Driver {
	case "sendgrid":
		if cfg.SendGridAPIKey == "" {
			return nil, eris.New("mailer: sendgrid api key is required")
		}
		return NewSendGridSender(cfg), nil
	case "smtp":
		if cfg.SMTPHost == "" {
			return nil, eris.New("mailer: smtp host is required")
		}
		return NewSMTPSender(cfg), nil
	case "log", "":
		return LogSender{}, nil
	default:
		return nil, eris.Errorf("mailer: unknown driver %q", cfg.Driver)
	}
}

// LogSender logs messages instead of sending them.
type LogSender struct{}

// Send logs msg.
func (LogSender) Send(_ context.Context, msg Message) error {
	zap.L().Info("mailer: log driver, not sending",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}
