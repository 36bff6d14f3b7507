package poll

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func waitForRuns(t *testing.T, runs *atomic.Int64, want int64, within time.Duration) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if runs.Load() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("got %d runs, want at least %d within %v", runs.Load(), want, within)
}

func TestSchedulerRunsImmediately(t *testing.T) {
	var runs atomic.Int64
	s := NewScheduler(time.Hour, func(context.Context) { runs.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	waitForRuns(t, &runs, 1, time.Second)
}

func TestSchedulerKickTriggersRun(t *testing.T) {
	var runs atomic.Int64
	s := NewScheduler(time.Hour, func(context.Context) { runs.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	waitForRuns(t, &runs, 1, time.Second)
	s.Kick()
	waitForRuns(t, &runs, 2, time.Second)
}

func TestSchedulerSetIntervalRearms(t *testing.T) {
	var runs atomic.Int64
	s := NewScheduler(time.Hour, func(context.Context) { runs.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	waitForRuns(t, &runs, 1, time.Second)

	// The hour-long timer is replaced without waiting it out
	s.SetInterval(20 * time.Millisecond)
	waitForRuns(t, &runs, 3, time.Second)

	if s.Interval() != 20*time.Millisecond {
		t.Errorf("Interval() = %v, want 20ms", s.Interval())
	}
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	var runs atomic.Int64
	s := NewScheduler(10*time.Millisecond, func(context.Context) { runs.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	waitForRuns(t, &runs, 2, time.Second)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}

	after := runs.Load()
	time.Sleep(50 * time.Millisecond)
	if runs.Load() != after {
		t.Error("task still running after cancel")
	}
}

func TestSchedulerLatestResetWins(t *testing.T) {
	var runs atomic.Int64
	s := NewScheduler(time.Hour, func(context.Context) { runs.Add(1) })

	// Burst of changes before Run drains any of them
	s.SetInterval(30 * time.Minute)
	s.SetInterval(15 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	waitForRuns(t, &runs, 3, time.Second)
}
