package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingSweeper struct {
	calls atomic.Int32
	block chan struct{}
}

func (s *countingSweeper) Sweep(ctx context.Context) (SweepResult, error) {
	s.calls.Add(1)
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
		}
	}
	return SweepResult{}, nil
}

func TestScheduler_TickRunsAllSweepers(t *testing.T) {
	a, b := &countingSweeper{}, &countingSweeper{}
	s := NewScheduler(time.Hour, a, b)

	assert.True(t, s.Tick(context.Background()))
	assert.True(t, s.Tick(context.Background()))
	assert.Equal(t, int32(2), a.calls.Load())
	assert.Equal(t, int32(2), b.calls.Load())
}

func TestScheduler_SkipsOverlappingTick(t *testing.T) {
	slow := &countingSweeper{block: make(chan struct{})}
	s := NewScheduler(time.Hour, slow)

	done := make(chan bool)
	go func() { done <- s.Tick(context.Background()) }()
	assert.Eventually(t, func() bool { return slow.calls.Load() == 1 }, time.Second, time.Millisecond)

	assert.False(t, s.Tick(context.Background()))
	close(slow.block)
	assert.True(t, <-done)
	assert.Equal(t, int32(1), slow.calls.Load())
}

func TestScheduler_StartStop(t *testing.T) {
	sw := &countingSweeper{}
	s := NewScheduler(10*time.Millisecond, sw)

	s.Start(context.Background())
	s.Start(context.Background())
	assert.Eventually(t, func() bool { return sw.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()

	n := sw.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, sw.calls.Load())
	s.Stop()
}

// trackingSweeper records how many sweeps are running at once.
type trackingSweeper struct {
	started  atomic.Int32
	inFlight atomic.Int32
	hold     time.Duration
}

func (s *trackingSweeper) Sweep(context.Context) (SweepResult, error) {
	s.started.Add(1)
	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	// Ignore cancellation so a late tick would still be running after Stop.
	time.Sleep(s.hold)
	return SweepResult{}, nil
}

func TestScheduler_StopWaitsForTickerTicks(t *testing.T) {
	sw := &trackingSweeper{hold: 20 * time.Millisecond}
	s := NewScheduler(time.Millisecond, sw)

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return sw.started.Load() >= 3 }, time.Second, time.Millisecond)
	s.Stop()

	assert.Equal(t, int32(0), sw.inFlight.Load(), "sweep still running after Stop")
	n := sw.started.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, sw.started.Load(), "sweep started after Stop")
}

func TestNewScheduler_DefaultInterval(t *testing.T) {
	s := NewScheduler(0)
	assert.Equal(t, time.Minute, s.interval)
}
