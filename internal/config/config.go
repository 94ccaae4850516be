// Package config loads service configuration from config.yaml, .env and
// SDR_-prefixed environment variables.
package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Apollo     APIConfig        `yaml:"apollo" mapstructure:"apollo"`
	Jina       APIConfig        `yaml:"jina" mapstructure:"jina"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Research   APIConfig        `yaml:"research" mapstructure:"research"`
	Browser    APIConfig        `yaml:"browser" mapstructure:"browser"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Slack      SlackConfig      `yaml:"slack" mapstructure:"slack"`
	Webhooks   WebhooksConfig   `yaml:"webhooks" mapstructure:"webhooks"`
	Queue      QueueConfig      `yaml:"queue" mapstructure:"queue"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	Mail       MailConfig       `yaml:"mail" mapstructure:"mail"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// APIConfig is the common shape of a keyed HTTP source.
type APIConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// PerplexityConfig holds the alternate people-search settings.
type PerplexityConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	Model     string  `yaml:"model" mapstructure:"model"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// AnthropicConfig holds draft generation settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SlackConfig holds the approval channel settings.
type SlackConfig struct {
	Token         string `yaml:"token" mapstructure:"token"`
	APIURL        string `yaml:"api_url" mapstructure:"api_url"`
	SigningSecret string `yaml:"signing_secret" mapstructure:"signing_secret"`
	Channel       string `yaml:"channel" mapstructure:"channel"`
}

// WebhooksConfig holds inbound webhook secrets.
type WebhooksConfig struct {
	// SignupSecret is the Svix signing secret ("whsec_...") of the identity provider.
	SignupSecret string `yaml:"signup_secret" mapstructure:"signup_secret"`
	// SignupTeamID owns leads created from signups.
	SignupTeamID  string `yaml:"signup_team_id" mapstructure:"signup_team_id"`
	BookingSecret string `yaml:"booking_secret" mapstructure:"booking_secret"`
}

// QueueConfig configures the enrichment and email queues.
type QueueConfig struct {
	PollInterval       time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	BatchSize          int           `yaml:"batch_size" mapstructure:"batch_size"`
	MaxAttempts        int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	Concurrency        int           `yaml:"concurrency" mapstructure:"concurrency"`
	LeaseTTL           time.Duration `yaml:"lease_ttl" mapstructure:"lease_ttl"`
	EnrichmentCooldown time.Duration `yaml:"enrichment_cooldown" mapstructure:"enrichment_cooldown"`
	EmailCooldown      time.Duration `yaml:"email_cooldown" mapstructure:"email_cooldown"`
}

// EnrichConfig configures the orchestrator.
type EnrichConfig struct {
	// LegacyFailedAsEnriched records terminal failures as ENRICHED instead of FAILED.
	LegacyFailedAsEnriched bool          `yaml:"legacy_failed_as_enriched" mapstructure:"legacy_failed_as_enriched"`
	SourceRetries          int           `yaml:"source_retries" mapstructure:"source_retries"`
	BreakerThreshold       int           `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerReset           time.Duration `yaml:"breaker_reset" mapstructure:"breaker_reset"`
	ApprovalTemplate       string        `yaml:"approval_template" mapstructure:"approval_template"`
}

// MailConfig configures outbound email.
type MailConfig struct {
	Driver         string `yaml:"driver" mapstructure:"driver"`
	FromEmail      string `yaml:"from_email" mapstructure:"from_email"`
	FromName       string `yaml:"from_name" mapstructure:"from_name"`
	SendGridAPIKey string `yaml:"sendgrid_api_key" mapstructure:"sendgrid_api_key"`
	SMTPHost       string `yaml:"smtp_host" mapstructure:"smtp_host"`
	SMTPPort       int    `yaml:"smtp_port" mapstructure:"smtp_port"`
	SMTPUser       string `yaml:"smtp_user" mapstructure:"smtp_user"`
	SMTPPassword   string `yaml:"smtp_password" mapstructure:"smtp_password"`
}

// RedisConfig configures the optional source cache.
type RedisConfig struct {
	URL       string        `yaml:"url" mapstructure:"url"`
	ApolloTTL time.Duration `yaml:"apollo_ttl" mapstructure:"apollo_ttl"`
}

// MonitoringConfig configures queue health alerting.
type MonitoringConfig struct {
	AlertWebhookURL string        `yaml:"alert_webhook_url" mapstructure:"alert_webhook_url"`
	CheckInterval   time.Duration `yaml:"check_interval" mapstructure:"check_interval"`
	// BacklogThreshold alerts when this many tickets are waiting. Zero disables.
	BacklogThreshold int `yaml:"backlog_threshold" mapstructure:"backlog_threshold"`
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SDR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, val := range defaults() {
		v.SetDefault(key, val)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// defaults registers every key so AutomaticEnv can override it.
func defaults() map[string]any {
	return map[string]any{
		"store.driver":                     "postgres",
		"store.database_url":               "",
		"log.level":                        "info",
		"log.format":                       "json",
		"server.port":                      8080,
		"server.cors_origins":              []string{},
		"apollo.key":                       "",
		"apollo.base_url":                  "https://api.apollo.io/api/v1",
		"apollo.rate_limit":                2.0,
		"jina.key":                         "",
		"jina.base_url":                    "https://s.jina.ai",
		"jina.rate_limit":                  5.0,
		"perplexity.key":                   "",
		"perplexity.base_url":              "https://api.perplexity.ai",
		"perplexity.model":                 "sonar-pro",
		"perplexity.rate_limit":            1.0,
		"research.key":                     "",
		"research.base_url":                "",
		"browser.key":                      "",
		"browser.base_url":                 "",
		"anthropic.key":                    "",
		"anthropic.base_url":               "",
		"anthropic.model":                  "claude-haiku-4-5-20251001",
		"anthropic.max_tokens":             1024,
		"slack.token":                      "",
		"slack.api_url":                    "",
		"slack.signing_secret":             "",
		"slack.channel":                    "",
		"webhooks.signup_secret":           "",
		"webhooks.signup_team_id":          "",
		"webhooks.booking_secret":          "",
		"queue.poll_interval":              time.Minute,
		"queue.batch_size":                 10,
		"queue.max_attempts":               3,
		"queue.concurrency":                5,
		"queue.lease_ttl":                  15 * time.Minute,
		"queue.enrichment_cooldown":        5 * time.Minute,
		"queue.email_cooldown":             time.Hour,
		"enrich.legacy_failed_as_enriched": false,
		"enrich.source_retries":            3,
		"enrich.breaker_threshold":         5,
		"enrich.breaker_reset":             30 * time.Second,
		"enrich.approval_template":         "",
		"mail.driver":                      "log",
		"mail.from_email":                  "",
		"mail.from_name":                   "",
		"mail.sendgrid_api_key":            "",
		"mail.smtp_host":                   "",
		"mail.smtp_port":                   587,
		"mail.smtp_user":                   "",
		"mail.smtp_password":               "",
		"redis.url":                        "",
		"redis.apollo_ttl":                 7 * 24 * time.Hour,
		"monitoring.alert_webhook_url":     "",
		"monitoring.check_interval":        5 * time.Minute,
		"monitoring.backlog_threshold":     0,
	}
}

// Mode names the command a configuration is validated for.
type Mode string

const (
	ModeServe  Mode = "serve"
	ModeWorker Mode = "worker"
	ModeEnrich Mode = "enrich"
)

// Validate checks that the keys mode depends on are set.
func (c *Config) Validate(mode Mode) error {
	var errs []string
	require := func(key, val string) {
		if val == "" {
			errs = append(errs, key+" is required")
		}
	}

	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, "store.driver must be postgres or sqlite")
	}
	require("store.database_url", c.Store.DatabaseURL)

	switch mode {
	case ModeServe:
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		require("webhooks.signup_secret", c.Webhooks.SignupSecret)
		require("webhooks.signup_team_id", c.Webhooks.SignupTeamID)
		require("webhooks.booking_secret", c.Webhooks.BookingSecret)
		if c.Slack.Token != "" {
			require("slack.signing_secret", c.Slack.SigningSecret)
		}
	case ModeWorker, ModeEnrich:
		require("apollo.key", c.Apollo.Key)
		require("jina.key", c.Jina.Key)
		require("perplexity.key", c.Perplexity.Key)
		require("research.base_url", c.Research.BaseURL)
		require("browser.base_url", c.Browser.BaseURL)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Slack.Token != "" {
		require("slack.channel", c.Slack.Channel)
		require("anthropic.key", c.Anthropic.Key)
	}
	if c.Queue.BatchSize < 1 || c.Queue.BatchSize > 100 {
		errs = append(errs, "queue.batch_size must be between 1 and 100")
	}
	if c.Queue.MaxAttempts < 1 {
		errs = append(errs, "queue.max_attempts must be >= 1")
	}
	if c.Queue.Concurrency < 1 || c.Queue.Concurrency > 50 {
		errs = append(errs, "queue.concurrency must be between 1 and 50")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}
