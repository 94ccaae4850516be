package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sdr-enrich/internal/model"
)

// Snapshot is a point-in-time view of the work queues.
type Snapshot struct {
	Queues      []model.QueueStats `json:"queues"`
	CollectedAt time.Time          `json:"collected_at"`
}

// Queue returns the stats of kind, or zero stats when it was not collected.
func (s *Snapshot) Queue(kind model.QueueKind) model.QueueStats {
	for _, q := range s.Queues {
		if q.Kind == kind {
			return q
		}
	}
	return model.QueueStats{Kind: kind}
}

// QueueStatsReader reads queue counters from the store.
type QueueStatsReader interface {
	QueueStats(ctx context.Context, kind model.QueueKind, maxAttempts int, leaseExpiredBefore time.Time) (model.QueueStats, error)
}

// QueueLimits is the attempt limit and lease of one queue.
type QueueLimits struct {
	Kind        model.QueueKind
	MaxAttempts int
	LeaseTTL    time.Duration
}

// Collector gathers queue stats and mirrors the exhausted counts into the
// Prometheus gauge.
type Collector struct {
	store   QueueStatsReader
	queues  []QueueLimits
	metrics *Metrics
	now     func() time.Time
}

// NewCollector creates a Collector over queues. m may be nil.
func NewCollector(st QueueStatsReader, m *Metrics, queues ...QueueLimits) *Collector {
	return &Collector{store: st, queues: queues, metrics: m, now: time.Now}
}

// Collect reads every configured queue.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	now := c.now().UTC()
	snap := &Snapshot{CollectedAt: now}
	for _, q := range c.queues {
		stats, err := c.store.QueueStats(ctx, q.Kind, q.MaxAttempts, now.Add(-q.LeaseTTL))
		if err != nil {
			return nil, eris.Wrapf(err, "monitoring: queue stats %s", q.Kind)
		}
		stats.Kind = q.Kind
		c.metrics.SetExhausted(string(q.Kind), stats.Exhausted)
		snap.Queues = append(snap.Queues, stats)
	}
	return snap, nil
}
