package main

import (
	"context"
	"slices"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sdr-enrich/internal/approval"
	"github.com/sells-group/sdr-enrich/internal/cache"
	"github.com/sells-group/sdr-enrich/internal/config"
	"github.com/sells-group/sdr-enrich/internal/enrich"
	"github.com/sells-group/sdr-enrich/internal/match"
	"github.com/sells-group/sdr-enrich/internal/model"
	"github.com/sells-group/sdr-enrich/internal/monitoring"
	"github.com/sells-group/sdr-enrich/internal/queue"
	"github.com/sells-group/sdr-enrich/internal/resilience"
	"github.com/sells-group/sdr-enrich/internal/store"
	anthropicpkg "github.com/sells-group/sdr-enrich/pkg/anthropic"
	"github.com/sells-group/sdr-enrich/pkg/apollo"
	"github.com/sells-group/sdr-enrich/pkg/browser"
	"github.com/sells-group/sdr-enrich/pkg/jina"
	"github.com/sells-group/sdr-enrich/pkg/mailer"
	"github.com/sells-group/sdr-enrich/pkg/perplexity"
	"github.com/sells-group/sdr-enrich/pkg/research"
	"github.com/sells-group/sdr-enrich/pkg/slack"
)

// initStore opens the configured backend and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "sdr.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// enrichEnv holds everything the worker and enrich commands need.
type enrichEnv struct {
	Store        store.Store
	Orchestrator *enrich.Orchestrator
	Gate         *approval.Gate // nil when Slack is not configured
	Mailer       mailer.Sender
	Metrics      *monitoring.Metrics
	cache        *cache.Redis
}

// Close releases resources held by the environment.
func (e *enrichEnv) Close() {
	if e.cache != nil {
		_ = e.cache.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnrich builds the orchestrator with every source client, the
// approval gate and the mail sender. Callers should defer env.Close().
func initEnrich(ctx context.Context, mode config.Mode) (*enrichEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &enrichEnv{Store: st, Metrics: monitoring.NewMetrics(nil)}

	guard := resilience.NewGuard(retryConfig(cfg.Enrich), breakerConfig(cfg.Enrich))
	opts := []enrich.SourceOption{enrich.WithGuard(guard), enrich.WithSourceMetrics(env.Metrics)}

	apolloOpts := []enrich.SourceOption{}
	if cfg.Redis.URL != "" {
		rc, err := cache.NewRedis(ctx, cfg.Redis.URL, cfg.Redis.ApolloTTL)
		if err != nil {
			zap.L().Warn("redis unavailable, apollo cache disabled", zap.Error(err))
		} else {
			env.cache = rc
			apolloOpts = append(apolloOpts, enrich.WithCache(rc))
		}
	}

	apolloClient := apollo.NewClient(cfg.Apollo.Key,
		apollo.WithBaseURL(cfg.Apollo.BaseURL),
		apollo.WithRateLimit(cfg.Apollo.RateLimit),
	)
	jinaClient := jina.NewClient(cfg.Jina.Key,
		jina.WithBaseURL(cfg.Jina.BaseURL),
		jina.WithRateLimit(cfg.Jina.RateLimit),
	)
	pplxClient := perplexity.NewClient(cfg.Perplexity.Key,
		perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
		perplexity.WithModel(cfg.Perplexity.Model),
		perplexity.WithRateLimit(cfg.Perplexity.RateLimit),
	)
	researchClient := research.NewClient(cfg.Research.BaseURL, cfg.Research.Key)
	browserClient := browser.NewClient(cfg.Browser.BaseURL, browser.WithAPIKey(cfg.Browser.Key))

	sources := enrich.Sources{
		Directory: enrich.NewApolloSource(apolloClient, slices.Concat(opts, apolloOpts)...),
		Research:  enrich.NewResearchSource(researchClient, opts...),
		Finder:    enrich.NewDorkFinder(jinaClient, opts...),
		People:    enrich.NewPerplexityPeople(pplxClient, opts...),
		Scraper:   enrich.NewBrowserScraper(browserClient, opts...),
	}

	orchOpts := []enrich.Option{
		enrich.WithMatcher(match.New()),
		enrich.WithMetrics(env.Metrics),
		enrich.WithLegacyFailedStatus(cfg.Enrich.LegacyFailedAsEnriched),
	}
	if cfg.Slack.Token != "" {
		gate, err := initGate(st)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.Gate = gate
		orchOpts = append(orchOpts, enrich.WithApprover(gate))
	}
	env.Orchestrator = enrich.New(st, sources, orchOpts...)

	sender, err := mailer.New(mailer.Config{
		Driver:         cfg.Mail.Driver,
		FromEmail:      cfg.Mail.FromEmail,
		FromName:       cfg.Mail.FromName,
		SendGridAPIKey: cfg.Mail.SendGridAPIKey,
		SMTPHost:       cfg.Mail.SMTPHost,
		SMTPPort:       cfg.Mail.SMTPPort,
		SMTPUser:       cfg.Mail.SMTPUser,
		SMTPPassword:   cfg.Mail.SMTPPassword,
	})
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Mailer = sender
	return env, nil
}

// initGate builds the approval gate from the Slack and Anthropic settings.
func initGate(st store.Store) (*approval.Gate, error) {
	tmpl, err := approval.LoadTemplate(cfg.Enrich.ApprovalTemplate)
	if err != nil {
		return nil, err
	}
	var llmOpts []option.RequestOption
	if cfg.Anthropic.BaseURL != "" {
		llmOpts = append(llmOpts, option.WithBaseURL(cfg.Anthropic.BaseURL))
	}
	drafter := approval.NewLLMDrafter(
		anthropicpkg.NewClient(cfg.Anthropic.Key, llmOpts...),
		tmpl, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens,
	)
	return approval.NewGate(st, drafter, slack.NewClient(cfg.Slack.Token, cfg.Slack.APIURL), cfg.Slack.Channel), nil
}

func retryConfig(c config.EnrichConfig) resilience.RetryConfig {
	r := resilience.DefaultRetryConfig()
	if c.SourceRetries > 0 {
		r.MaxAttempts = c.SourceRetries
	}
	return r
}

func breakerConfig(c config.EnrichConfig) resilience.CircuitBreakerConfig {
	b := resilience.DefaultCircuitBreakerConfig()
	if c.BreakerThreshold > 0 {
		b.FailureThreshold = c.BreakerThreshold
	}
	if c.BreakerReset > 0 {
		b.ResetTimeout = c.BreakerReset
	}
	return b
}

// queueLimits returns the monitoring view of both queue policies.
func queueLimits() []monitoring.QueueLimits {
	out := make([]monitoring.QueueLimits, 0, 2)
	for _, kind := range []model.QueueKind{model.QueueEnrichment, model.QueueEmail} {
		p := queue.PolicyFor(kind, cfg.Queue)
		out = append(out, monitoring.QueueLimits{Kind: kind, MaxAttempts: p.MaxAttempts, LeaseTTL: p.LeaseTTL})
	}
	return out
}
