package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/sdr-enrich/internal/model"
	"github.com/sells-group/sdr-enrich/internal/monitoring"
	"github.com/sells-group/sdr-enrich/internal/store"
)

// Repo is the queue persistence a worker needs.
type Repo interface {
	Claim(ctx context.Context, kind model.QueueKind, req model.ClaimRequest) ([]model.QueueItem, error)
	// Complete and Fail only touch a ticket still leased to workerID and
	// return store.ErrLeaseLost otherwise.
	Complete(ctx context.Context, kind model.QueueKind, id, workerID string) error
	Fail(ctx context.Context, kind model.QueueKind, id, workerID string, at time.Time, msg string) error
	QueueStats(ctx context.Context, kind model.QueueKind, maxAttempts int, leaseExpiredBefore time.Time) (model.QueueStats, error)
}

// Handler processes one ticket. A returned error counts as a failed attempt.
type Handler interface {
	Handle(ctx context.Context, item model.QueueItem) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, item model.QueueItem) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, item model.QueueItem) error { return f(ctx, item) }

// SweepResult counts the outcomes of one sweep.
type SweepResult struct {
	Claimed   int
	Succeeded int
	Failed    int
	// LeaseLost counts tickets whose lease passed to another worker before
	// the outcome was recorded. Their outcome is dropped.
	LeaseLost int
}

// Worker sweeps a single queue.
type Worker struct {
	kind        model.QueueKind
	repo        Repo
	handler     Handler
	policy      Policy
	id          string
	concurrency int
	metrics     *monitoring.Metrics
	now         func() time.Time
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithWorkerID sets the lease owner name. Defaults to a random UUID.
func WithWorkerID(id string) WorkerOption {
	return func(w *Worker) { w.id = id }
}

// WithConcurrency bounds how many tickets run at once. Defaults to 5.
func WithConcurrency(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithWorkerMetrics records sweep outcomes and the exhausted gauge.
func WithWorkerMetrics(m *monitoring.Metrics) WorkerOption {
	return func(w *Worker) { w.metrics = m }
}

// WithWorkerClock overrides time.Now.
func WithWorkerClock(now func() time.Time) WorkerOption {
	return func(w *Worker) { w.now = now }
}

// NewWorker creates a Worker for kind.
func NewWorker(kind model.QueueKind, repo Repo, h Handler, p Policy, opts ...WorkerOption) *Worker {
	w := &Worker{
		kind:        kind,
		repo:        repo,
		handler:     h,
		policy:      p,
		id:          uuid.New().String(),
		concurrency: 5,
		now:         time.Now,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Kind returns the queue the worker drains.
func (w *Worker) Kind() model.QueueKind { return w.kind }

// Sweep claims up to BatchSize eligible tickets and processes them
// concurrently. Success deletes a ticket; failure records the attempt and
// releases the lease. Only a failed claim is returned as an error.
func (w *Worker) Sweep(ctx context.Context) (SweepResult, error) {
	log := zap.L().With(zap.String("queue", string(w.kind)), zap.String("worker_id", w.id))

	items, err := w.repo.Claim(ctx, w.kind, w.policy.ClaimRequest(w.id, w.now()))
	if err != nil {
		return SweepResult{}, eris.Wrapf(err, "queue: claim %s", w.kind)
	}
	res := SweepResult{Claimed: len(items)}
	w.metrics.AddQueueTickets(string(w.kind), "claimed", len(items))
	if len(items) == 0 {
		w.refreshExhausted(ctx, log)
		return res, nil
	}

	var succeeded, failed, lost atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, item := range items {
		g.Go(func() error {
			switch w.process(gctx, log, item) {
			case outcomeSucceeded:
				succeeded.Add(1)
			case outcomeFailed:
				failed.Add(1)
			case outcomeLeaseLost:
				lost.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Succeeded = int(succeeded.Load())
	res.Failed = int(failed.Load())
	res.LeaseLost = int(lost.Load())
	w.metrics.AddQueueTickets(string(w.kind), "succeeded", res.Succeeded)
	w.metrics.AddQueueTickets(string(w.kind), "failed", res.Failed)
	w.metrics.AddQueueTickets(string(w.kind), "lease_lost", res.LeaseLost)
	w.refreshExhausted(ctx, log)

	log.Info("queue: sweep complete",
		zap.Int("claimed", res.Claimed),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.Int("lease_lost", res.LeaseLost),
	)
	return res, nil
}

type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeFailed
	outcomeLeaseLost
)

func (w *Worker) process(ctx context.Context, log *zap.Logger, item model.QueueItem) outcome {
	log = log.With(zap.String("ticket_id", item.ID), zap.String("lead_id", item.LeadID))

	herr := w.handler.Handle(ctx, item)
	// Outcome writes must land even when the sweep is being cancelled.
	wctx := context.WithoutCancel(ctx)
	if herr == nil {
		err := w.repo.Complete(wctx, w.kind, item.ID, w.id)
		if errors.Is(err, store.ErrLeaseLost) {
			log.Warn("queue: lease lost before completion", zap.Error(err))
			return outcomeLeaseLost
		}
		if err != nil {
			log.Error("queue: complete ticket", zap.Error(err))
		}
		return outcomeSucceeded
	}

	attempt := item.Attempts + 1
	err := w.repo.Fail(wctx, w.kind, item.ID, w.id, w.now(), herr.Error())
	if errors.Is(err, store.ErrLeaseLost) {
		log.Warn("queue: lease lost before failure was recorded", zap.NamedError("handler_error", herr), zap.Error(err))
		return outcomeLeaseLost
	}
	if err != nil {
		log.Error("queue: record failed attempt", zap.Error(err))
	}
	if attempt >= w.policy.MaxAttempts {
		log.Error("queue: ticket exhausted", zap.Int("attempts", attempt), zap.Error(herr))
	} else {
		log.Warn("queue: attempt failed", zap.Int("attempts", attempt), zap.Error(herr))
	}
	return outcomeFailed
}

func (w *Worker) refreshExhausted(ctx context.Context, log *zap.Logger) {
	if w.metrics == nil {
		return
	}
	now := w.now()
	stats, err := w.repo.QueueStats(ctx, w.kind, w.policy.MaxAttempts, now.Add(-w.policy.LeaseTTL))
	if err != nil {
		log.Warn("queue: read stats", zap.Error(err))
		return
	}
	w.metrics.SetExhausted(string(w.kind), stats.Exhausted)
}
