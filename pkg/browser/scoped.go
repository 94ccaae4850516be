package browser

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// closeTimeout bounds session release, which runs even after ctx is done.
const closeTimeout = 10 * time.Second

// WithSession opens a session, runs fn, and closes the session on every
// path, including when fn fails or panics. A close failure is joined with
// fn's error.
func WithSession(ctx context.Context, c Client, fn func(ctx context.Context, s Session) error) (err error) {
	s, err := c.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if cerr := s.Close(cctx); cerr != nil {
			zap.L().Warn("browser: close session", zap.String("session_id", s.ID()), zap.Error(cerr))
			err = errors.Join(err, cerr)
		}
	}()
	return fn(ctx, s)
}

// Profile is what a profile scrape extracts.
type Profile struct {
	Name        string `json:"name"`
	Company     string `json:"company"`
	Title       string `json:"title"`
	Industry    string `json:"industry"`
	Location    string `json:"location"`
	LinkedInURL string `json:"profileUrl"`
}

// ProfileSchema declares the fields of Profile for Extract.
var ProfileSchema = Schema{
	"type": "object",
	"properties": map[string]any{
		"name":       map[string]any{"type": "string"},
		"company":    map[string]any{"type": "string"},
		"title":      map[string]any{"type": "string"},
		"industry":   map[string]any{"type": "string"},
		"location":   map[string]any{"type": "string"},
		"profileUrl": map[string]any{"type": "string"},
	},
}

const profileInstruction = "Extract the person's full name, current company, " +
	"current job title, industry, location and the canonical profile URL."

// ScrapeProfile loads profileURL in a fresh session and extracts a Profile.
func ScrapeProfile(ctx context.Context, c Client, profileURL string) (*Profile, error) {
	var p Profile
	err := WithSession(ctx, c, func(ctx context.Context, s Session) error {
		if err := s.Goto(ctx, profileURL); err != nil {
			return err
		}
		return s.Extract(ctx, profileInstruction, ProfileSchema, &p)
	})
	if err != nil {
		return nil, err
	}
	if p.LinkedInURL == "" {
		p.LinkedInURL = profileURL
	}
	return &p, nil
}
