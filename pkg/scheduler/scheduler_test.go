package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raykavin/dexwatch/pkg/core"
	"github.com/raykavin/dexwatch/pkg/logger"
	"github.com/raykavin/dexwatch/pkg/logger/zerolog"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	runs    map[string]int
	failed  map[string]int
	dropped map[string]int
}

func newRecorder() *recorder {
	return &recorder{
		runs:    make(map[string]int),
		failed:  make(map[string]int),
		dropped: make(map[string]int),
	}
}

func (r *recorder) ObserveSweep(task string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[task]++
	if err != nil {
		r.failed[task]++
	}
}

func (r *recorder) TickDropped(task string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped[task]++
}

func (r *recorder) count(m map[string]int, task string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return m[task]
}

func newScheduler(rec Recorder) *Scheduler {
	return New(zerolog.New(zerolog.Options{Level: logger.Disabled}), WithRecorder(rec))
}

func TestScheduler_Register(t *testing.T) {
	s := newScheduler(nil)
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Register("a", time.Minute, noop))
	require.ErrorIs(t, s.Register("a", time.Minute, noop), core.ErrConfig)
	require.ErrorIs(t, s.Register("b", 0, noop), core.ErrConfig)

	s.Start(context.Background())
	defer s.Stop()

	require.Error(t, s.Register("c", time.Minute, noop))
	require.Len(t, s.Tasks(), 1)
}

func TestScheduler_DropsOverlappingTicks(t *testing.T) {
	rec := newRecorder()
	s := newScheduler(rec)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	require.NoError(t, s.Register("slow", time.Hour, func(context.Context) error {
		started <- struct{}{}
		<-release
		return nil
	}))

	s.Start(context.Background())
	defer s.Stop()

	require.True(t, s.Trigger("slow"))
	<-started

	task := s.Tasks()[0]
	require.Equal(t, Running, task.State())
	require.False(t, s.Trigger("slow"))
	require.False(t, s.Trigger("slow"))
	require.Equal(t, 2, rec.count(rec.dropped, "slow"))

	close(release)
	require.Eventually(t, func() bool { return task.State() == Idle }, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, rec.count(rec.runs, "slow"))
}

func TestScheduler_TicksPeriodically(t *testing.T) {
	var calls atomic.Int32
	s := newScheduler(nil)
	require.NoError(t, s.Register("fast", 10*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return nil
	}))

	s.Start(context.Background())
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()

	after := calls.Load()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, after, calls.Load())
}

func TestScheduler_RunOnStart(t *testing.T) {
	done := make(chan struct{})
	s := newScheduler(nil)
	require.NoError(t, s.Register("boot", time.Hour, func(context.Context) error {
		close(done)
		return nil
	}, RunOnStart(true)))

	s.Start(context.Background())
	defer s.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run on start")
	}
}

func TestScheduler_SurvivesFailures(t *testing.T) {
	rec := newRecorder()
	s := newScheduler(rec)

	var calls atomic.Int32
	require.NoError(t, s.Register("flaky", time.Hour, func(context.Context) error {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return errors.New("failed")
	}))

	s.Start(context.Background())
	defer s.Stop()

	task := s.Tasks()[0]
	for i := 0; i < 2; i++ {
		require.Eventually(t, func() bool { return s.Trigger("flaky") }, time.Second, 5*time.Millisecond)
		require.Eventually(t, func() bool { return rec.count(rec.runs, "flaky") == i+1 }, time.Second, 5*time.Millisecond)
	}

	require.Eventually(t, func() bool { return task.State() == Idle }, time.Second, 5*time.Millisecond)
	require.Equal(t, 2, rec.count(rec.failed, "flaky"))
}

func TestScheduler_StopWaitsForRun(t *testing.T) {
	var finished atomic.Bool
	started := make(chan struct{})
	s := newScheduler(nil)
	require.NoError(t, s.Register("long", time.Hour, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
		return nil
	}))

	s.Start(context.Background())
	require.True(t, s.Trigger("long"))
	<-started

	s.Stop()
	require.True(t, finished.Load())
	require.False(t, s.Trigger("long"))
}

func TestScheduler_TriggerRacingStop(t *testing.T) {
	var started, finished atomic.Int32
	s := newScheduler(nil)
	require.NoError(t, s.Register("quick", time.Hour, func(context.Context) error {
		started.Add(1)
		time.Sleep(time.Millisecond)
		finished.Add(1)
		return nil
	}))
	s.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Trigger("quick")
			}
		}()
	}

	time.Sleep(2 * time.Millisecond)
	s.Stop()
	require.Equal(t, started.Load(), finished.Load())

	wg.Wait()
	require.False(t, s.Trigger("quick"))
	require.Equal(t, started.Load(), finished.Load())
}
