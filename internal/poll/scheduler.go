package poll

import (
	"context"
	"sync"
	"time"

	"github.com/Romanvolodimer/Dispetcher-progecr/internal/logger"
)

// Scheduler drives a task on a mutable recurring interval. SetInterval
// atomically cancels the pending timer and re-arms it with the new period;
// Kick runs the task out of band without touching the cadence.
type Scheduler struct {
	mu       sync.Mutex
	interval time.Duration

	resetCh chan time.Duration
	kickCh  chan struct{}
	task    func(context.Context)
}

// NewScheduler creates a scheduler for the given task.
func NewScheduler(interval time.Duration, task func(context.Context)) *Scheduler {
	return &Scheduler{
		interval: interval,
		resetCh:  make(chan time.Duration, 1),
		kickCh:   make(chan struct{}, 1),
		task:     task,
	}
}

// Interval returns the current poll period.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetInterval re-arms the recurring timer with a new period. Only the most
// recent pending change applies.
func (s *Scheduler) SetInterval(d time.Duration) {
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()

	// Collapse bursts: drop a stale pending reset
	select {
	case <-s.resetCh:
	default:
	}
	s.resetCh <- d
}

// Kick triggers one out-of-band run without resetting the scheduled timer.
// Concurrent kicks collapse into one pending run.
func (s *Scheduler) Kick() {
	select {
	case s.kickCh <- struct{}{}:
	default:
	}
}

// Run executes the task immediately, then on every tick until the context
// is cancelled. A single timer drives the cadence; there are never two
// armed at once.
func (s *Scheduler) Run(ctx context.Context) {
	log := logger.WithComponent("scheduler")
	log.Info().Dur("interval", s.Interval()).Msg("scheduler started")

	s.task(ctx)

	timer := time.NewTimer(s.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler stopped")
			return

		case <-timer.C:
			s.task(ctx)
			timer.Reset(s.Interval())

		case d := <-s.resetCh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(d)
			log.Info().Dur("interval", d).Msg("poll interval re-armed")

		case <-s.kickCh:
			s.task(ctx)
		}
	}
}
