package queue

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/sells-group/sdr-enrich/internal/config"
	"github.com/sells-group/sdr-enrich/internal/model"
)

func ptr[T any](v T) *T { return &v }

func TestEligible(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := DefaultEnrichmentPolicy()

	tests := []struct {
		name string
		item model.QueueItem
		want bool
	}{
		{"fresh ticket", model.QueueItem{}, true},
		{"two attempts, ten minutes ago", model.QueueItem{Attempts: 2, LastAttempt: ptr(now.Add(-10 * time.Minute))}, true},
		{"two attempts, one minute ago", model.QueueItem{Attempts: 2, LastAttempt: ptr(now.Add(-time.Minute))}, false},
		{"cooldown boundary", model.QueueItem{Attempts: 1, LastAttempt: ptr(now.Add(-5 * time.Minute))}, true},
		{"exhausted", model.QueueItem{Attempts: 3, LastAttempt: ptr(now.Add(-time.Hour))}, false},
		{"live lease", model.QueueItem{ClaimedAt: ptr(now.Add(-time.Minute)), ClaimedBy: ptr("w1")}, false},
		{"expired lease", model.QueueItem{ClaimedAt: ptr(now.Add(-16 * time.Minute)), ClaimedBy: ptr("w1")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Eligible(tt.item, now, p))
		})
	}
}

func TestEligible_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := DefaultEnrichmentPolicy()

	properties.Property("exhausted tickets are never eligible", prop.ForAll(
		func(attempts int, agoMinutes int) bool {
			item := model.QueueItem{Attempts: attempts, LastAttempt: ptr(now.Add(-time.Duration(agoMinutes) * time.Minute))}
			return !Eligible(item, now, p)
		},
		gen.IntRange(p.MaxAttempts, 100),
		gen.IntRange(0, 10000),
	))

	properties.Property("eligibility follows the cooldown", prop.ForAll(
		func(attempts int, agoSeconds int) bool {
			last := now.Add(-time.Duration(agoSeconds) * time.Second)
			item := model.QueueItem{Attempts: attempts, LastAttempt: &last}
			return Eligible(item, now, p) == (time.Duration(agoSeconds)*time.Second >= p.Cooldown)
		},
		gen.IntRange(0, p.MaxAttempts-1),
		gen.IntRange(0, 3600),
	))

	properties.Property("an unexpired lease hides the ticket", prop.ForAll(
		func(agoSeconds int) bool {
			claimed := now.Add(-time.Duration(agoSeconds) * time.Second)
			item := model.QueueItem{ClaimedAt: &claimed, ClaimedBy: ptr("w")}
			return Eligible(item, now, p) == (time.Duration(agoSeconds)*time.Second >= p.LeaseTTL)
		},
		gen.IntRange(0, 3600),
	))

	properties.TestingRun(t)
}

func TestPolicyFor(t *testing.T) {
	p := PolicyFor(model.QueueEmail, config.QueueConfig{})
	assert.Equal(t, DefaultEmailPolicy(), p)

	p = PolicyFor(model.QueueEnrichment, config.QueueConfig{
		BatchSize:          25,
		MaxAttempts:        5,
		EnrichmentCooldown: time.Minute,
		EmailCooldown:      2 * time.Hour,
	})
	assert.Equal(t, 25, p.BatchSize)
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, time.Minute, p.Cooldown)
	assert.Equal(t, 15*time.Minute, p.LeaseTTL)

	p = PolicyFor(model.QueueEmail, config.QueueConfig{EmailCooldown: 2 * time.Hour})
	assert.Equal(t, 2*time.Hour, p.Cooldown)
}

func TestPolicy_ClaimRequest(t *testing.T) {
	now := time.Now()
	req := DefaultEmailPolicy().ClaimRequest("w1", now)
	assert.Equal(t, model.ClaimRequest{
		WorkerID:    "w1",
		Now:         now,
		MaxAttempts: 3,
		Cooldown:    time.Hour,
		LeaseTTL:    15 * time.Minute,
		Limit:       10,
	}, req)
}
