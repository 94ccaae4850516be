package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sweeper is one unit of periodic queue work.
type Sweeper interface {
	Sweep(ctx context.Context) (SweepResult, error)
}

// Scheduler runs its sweepers once per interval. A tick that arrives while
// the previous one is still running is skipped.
type Scheduler struct {
	interval time.Duration
	sweepers []Sweeper

	busy  atomic.Bool
	ticks sync.WaitGroup

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a Scheduler. A non-positive interval means one minute.
func NewScheduler(interval time.Duration, sweepers ...Sweeper) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{interval: interval, sweepers: sweepers}
}

// Start runs an immediate tick and then one per interval until Stop is
// called or ctx is done. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		log := zap.L().With(zap.String("component", "queue.scheduler"))
		log.Info("queue scheduler started", zap.Duration("interval", s.interval))

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		s.Tick(ctx)
		for {
			select {
			case <-ctx.Done():
				log.Info("queue scheduler stopped")
				return
			case <-ticker.C:
				s.ticks.Go(func() { s.Tick(ctx) })
			}
		}
	}(s.done)
}

// Stop cancels the loop and waits for it and every tick it started to
// return. In-flight sweeps finish their current tickets under a cancelled
// context.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.ticks.Wait()
}

// Tick runs every sweeper once, concurrently. It returns false without
// doing anything when the previous tick has not finished.
func (s *Scheduler) Tick(ctx context.Context) bool {
	if !s.busy.CompareAndSwap(false, true) {
		zap.L().Warn("queue: previous sweep still running, skipping tick")
		return false
	}
	defer s.busy.Store(false)

	var g errgroup.Group
	for _, sw := range s.sweepers {
		g.Go(func() error {
			if _, err := sw.Sweep(ctx); err != nil {
				zap.L().Error("queue: sweep failed", zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	return true
}
