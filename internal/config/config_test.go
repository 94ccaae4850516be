package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://api.apollo.io/api/v1", cfg.Apollo.BaseURL)
	assert.InDelta(t, 2.0, cfg.Apollo.RateLimit, 0.001)
	assert.Equal(t, "https://s.jina.ai", cfg.Jina.BaseURL)
	assert.Equal(t, "sonar-pro", cfg.Perplexity.Model)
	assert.Equal(t, time.Minute, cfg.Queue.PollInterval)
	assert.Equal(t, 10, cfg.Queue.BatchSize)
	assert.Equal(t, 3, cfg.Queue.MaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Queue.EnrichmentCooldown)
	assert.Equal(t, time.Hour, cfg.Queue.EmailCooldown)
	assert.False(t, cfg.Enrich.LegacyFailedAsEnriched)
	assert.Equal(t, "log", cfg.Mail.Driver)
	assert.Equal(t, 7*24*time.Hour, cfg.Redis.ApolloTTL)
	assert.InDelta(t, 1.0, cfg.Perplexity.RateLimit, 0.001)
	assert.Equal(t, 5*time.Minute, cfg.Monitoring.CheckInterval)
	assert.Zero(t, cfg.Monitoring.BacklogThreshold)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  database_url: file:sdr.db
queue:
  enrichment_cooldown: 10m
  batch_size: 25
enrich:
  legacy_failed_as_enriched: true
server:
  cors_origins: ["https://app.example.com"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "file:sdr.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 10*time.Minute, cfg.Queue.EnrichmentCooldown)
	assert.Equal(t, 25, cfg.Queue.BatchSize)
	assert.True(t, cfg.Enrich.LegacyFailedAsEnriched)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.CORSOrigins)
	// Unset values keep defaults.
	assert.Equal(t, time.Hour, cfg.Queue.EmailCooldown)
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log:\n  level: debug\n"), 0o644))

	t.Setenv("SDR_LOG_LEVEL", "warn")
	t.Setenv("SDR_APOLLO_KEY", "ap-123")
	t.Setenv("SDR_QUEUE_POLL_INTERVAL", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "ap-123", cfg.Apollo.Key)
	assert.Equal(t, 30*time.Second, cfg.Queue.PollInterval)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SDR_JINA_KEY=jina-from-dotenv\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("SDR_JINA_KEY") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "jina-from-dotenv", cfg.Jina.Key)
}

func TestLoadMalformedYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [\n"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func validConfig() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://localhost/sdr"
	cfg.Server.Port = 8080
	cfg.Queue.BatchSize = 10
	cfg.Queue.MaxAttempts = 3
	cfg.Queue.Concurrency = 5
	cfg.Webhooks.SignupSecret = "whsec_abc"
	cfg.Webhooks.SignupTeamID = "team-1"
	cfg.Webhooks.BookingSecret = "cal-secret"
	cfg.Apollo.Key = "ap"
	cfg.Jina.Key = "jn"
	cfg.Perplexity.Key = "px"
	cfg.Research.BaseURL = "https://research.local"
	cfg.Browser.BaseURL = "https://browser.local"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mode    Mode
		mutate  func(*Config)
		wantErr []string
	}{
		{name: "serve ok", mode: ModeServe},
		{name: "worker ok", mode: ModeWorker},
		{name: "enrich ok", mode: ModeEnrich},
		{
			name:    "missing database",
			mode:    ModeWorker,
			mutate:  func(c *Config) { c.Store.DatabaseURL = "" },
			wantErr: []string{"store.database_url is required"},
		},
		{
			name:    "bad driver",
			mode:    ModeWorker,
			mutate:  func(c *Config) { c.Store.Driver = "mysql" },
			wantErr: []string{"store.driver must be postgres or sqlite"},
		},
		{
			name: "serve secrets",
			mode: ModeServe,
			mutate: func(c *Config) {
				c.Webhooks = WebhooksConfig{}
				c.Server.Port = 0
			},
			wantErr: []string{"webhooks.signup_secret is required", "webhooks.booking_secret is required", "server.port must be > 0"},
		},
		{
			name:    "worker sources",
			mode:    ModeWorker,
			mutate:  func(c *Config) { c.Apollo.Key = ""; c.Browser.BaseURL = "" },
			wantErr: []string{"apollo.key is required", "browser.base_url is required"},
		},
		{
			name:    "slack needs channel and llm",
			mode:    ModeWorker,
			mutate:  func(c *Config) { c.Slack.Token = "xoxb" },
			wantErr: []string{"slack.channel is required", "anthropic.key is required"},
		},
		{
			name:    "queue bounds",
			mode:    ModeWorker,
			mutate:  func(c *Config) { c.Queue.BatchSize = 0; c.Queue.Concurrency = 51 },
			wantErr: []string{"queue.batch_size must be between 1 and 100", "queue.concurrency must be between 1 and 50"},
		},
		{
			name:    "unknown mode",
			mode:    Mode("fedsync"),
			wantErr: []string{"unknown mode"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate(tt.mode)
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}
