package resilience

import (
	"context"

	"go.uber.org/zap"
)

// Guard wraps source calls with a per-source circuit breaker around retries.
// An open circuit fails fast without consuming retry attempts.
type Guard struct {
	Breakers *ServiceBreakers
	Retry    RetryConfig
}

// NewGuard creates a Guard that logs breaker transitions.
func NewGuard(retry RetryConfig, breaker CircuitBreakerConfig) *Guard {
	sb := NewServiceBreakers(breaker)
	sb.OnStateChange = func(service string, from, to CircuitState) {
		zap.L().Warn("source circuit changed state",
			zap.String("source", service),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}
	return &Guard{Breakers: sb, Retry: retry}
}

// Call runs fn for the named source. A nil Guard calls fn directly.
func Call[T any](ctx context.Context, g *Guard, service, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	if g == nil {
		return fn(ctx)
	}
	cfg := g.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = RetryLogger(service, operation)
	}
	return ExecuteVal(ctx, g.Breakers.Get(service), func(ctx context.Context) (T, error) {
		return DoVal(ctx, cfg, fn)
	})
}
