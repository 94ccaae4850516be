// Package queue drains the persistent work queues: claim eligible tickets,
// run a handler on each, and record the outcome.
package queue

import (
	"time"

	"github.com/sells-group/sdr-enrich/internal/config"
	"github.com/sells-group/sdr-enrich/internal/model"
)

// Policy bounds retries for one queue.
type Policy struct {
	MaxAttempts int
	Cooldown    time.Duration
	LeaseTTL    time.Duration
	BatchSize   int
}

// DefaultEnrichmentPolicy retries enrichment every 5 minutes, 3 times.
func DefaultEnrichmentPolicy() Policy {
	return Policy{MaxAttempts: 3, Cooldown: 5 * time.Minute, LeaseTTL: 15 * time.Minute, BatchSize: 10}
}

// DefaultEmailPolicy retries email delivery hourly, 3 times.
func DefaultEmailPolicy() Policy {
	return Policy{MaxAttempts: 3, Cooldown: time.Hour, LeaseTTL: 15 * time.Minute, BatchSize: 10}
}

// PolicyFor builds the policy of a queue from config, falling back to the
// defaults for unset values.
func PolicyFor(kind model.QueueKind, cfg config.QueueConfig) Policy {
	p := DefaultEnrichmentPolicy()
	cooldown := cfg.EnrichmentCooldown
	if kind == model.QueueEmail {
		p = DefaultEmailPolicy()
		cooldown = cfg.EmailCooldown
	}
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if cooldown > 0 {
		p.Cooldown = cooldown
	}
	if cfg.LeaseTTL > 0 {
		p.LeaseTTL = cfg.LeaseTTL
	}
	if cfg.BatchSize > 0 {
		p.BatchSize = cfg.BatchSize
	}
	return p
}

// ClaimRequest turns the policy into a store claim.
func (p Policy) ClaimRequest(workerID string, now time.Time) model.ClaimRequest {
	return model.ClaimRequest{
		WorkerID:    workerID,
		Now:         now,
		MaxAttempts: p.MaxAttempts,
		Cooldown:    p.Cooldown,
		LeaseTTL:    p.LeaseTTL,
		Limit:       p.BatchSize,
	}
}

// Eligible reports whether item may be claimed at now. The stores evaluate
// the same predicate in SQL.
func Eligible(item model.QueueItem, now time.Time, p Policy) bool {
	if item.Attempts >= p.MaxAttempts {
		return false
	}
	if item.LastAttempt != nil && item.LastAttempt.After(now.Add(-p.Cooldown)) {
		return false
	}
	if item.ClaimedAt != nil && item.ClaimedAt.After(now.Add(-p.LeaseTTL)) {
		return false
	}
	return true
}

// Exhausted reports whether item will never be claimed again.
func Exhausted(item model.QueueItem, p Policy) bool {
	return item.Attempts >= p.MaxAttempts
}
