package threshold

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Romanvolodimer/Dispetcher-progecr/internal/logger"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/metrics"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/store"
)

// Action records the direction of the last applied adjustment within an
// hour window.
type Action int8

const (
	ActionNone Action = iota
	ActionIncrease
	ActionDecrease
)

func (a Action) String() string {
	switch a {
	case ActionIncrease:
		return "increase"
	case ActionDecrease:
		return "decrease"
	default:
		return "none"
	}
}

// RejectReason classifies why an adjustment was not applied
type RejectReason string

const (
	// RejectOppositeLocked means the same direction was already applied in
	// this hour window; only the opposite direction may follow
	RejectOppositeLocked RejectReason = "oppositeLocked"
	// RejectUnknownInstallation means the installation is not configured
	RejectUnknownInstallation RejectReason = "unknownInstallation"
	// RejectPersistenceFailure means the store write failed
	RejectPersistenceFailure RejectReason = "persistenceFailure"
)

// Rejection is returned when an adjustment is refused. OppositeLocked is an
// expected user-facing outcome, not a fault.
type Rejection struct {
	Reason RejectReason
	Err    error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return fmt.Sprintf("adjustment rejected (%s): %v", r.Reason, r.Err)
	}
	return fmt.Sprintf("adjustment rejected (%s)", r.Reason)
}

func (r *Rejection) Unwrap() error { return r.Err }

// instState is the per-installation alternation state. The window resets
// lazily on the next adjustment after the hour rolls over; no background
// sweep runs.
type instState struct {
	mu     sync.Mutex
	window Window
	last   Action
}

// Engine applies signed step adjustments to the hourly threshold,
// enforcing direction alternation within each hour window and persisting
// the result through the store's atomic upsert. Adjustments on the same
// installation serialize on a per-installation mutex; different
// installations proceed independently.
type Engine struct {
	store    store.Store
	resolver *Resolver
	states   map[string]*instState
}

// NewEngine creates an engine for the fixed installation set.
func NewEngine(st store.Store, resolver *Resolver, installations []string) *Engine {
	states := make(map[string]*instState, len(installations))
	for _, name := range installations {
		states[name] = &instState{}
	}
	return &Engine{store: st, resolver: resolver, states: states}
}

// Adjust applies one capacity step in the given direction (+1 or -1) to the
// installation's threshold for the current hour window and returns the new
// threshold. The same direction cannot repeat within one hour window; the
// opposite direction is always allowed. lastAction only reflects
// successfully persisted adjustments: on a store failure the in-memory
// state is rolled back.
func (e *Engine) Adjust(ctx context.Context, installation string, direction int, when time.Time) (float64, error) {
	st, ok := e.states[installation]
	if !ok {
		metrics.AdjustmentsTotal.WithLabelValues(installation, "rejected").Inc()
		return 0, &Rejection{Reason: RejectUnknownInstallation}
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	prevWindow, prevLast := st.window, st.last

	w := WindowAt(when)
	if st.window != w {
		st.window = w
		st.last = ActionNone
	}

	want := ActionIncrease
	if direction < 0 {
		want = ActionDecrease
	}
	if st.last == want {
		metrics.AdjustmentsTotal.WithLabelValues(installation, "rejected").Inc()
		return 0, &Rejection{Reason: RejectOppositeLocked}
	}

	current, capacity, _ := e.resolver.Resolve(ctx, installation, when)

	delta := capacity * float64(direction)
	next := current + delta
	if next < 0 {
		next = 0
	}

	if err := e.store.UpsertHourlyThreshold(ctx, installation, w.Date, w.Hour, next); err != nil {
		st.window, st.last = prevWindow, prevLast
		metrics.AdjustmentsTotal.WithLabelValues(installation, "failed").Inc()
		return 0, &Rejection{Reason: RejectPersistenceFailure, Err: err}
	}

	st.last = want
	e.resolver.fallbacks.Set(installation, next)

	log := logger.WithComponent("engine")
	log.Info().
		Str("installation", installation).
		Str("date", w.Date).
		Int("hour", w.Hour).
		Float64("delta", delta).
		Float64("threshold", next).
		Msg("threshold adjusted")
	metrics.AdjustmentsTotal.WithLabelValues(installation, "applied").Inc()

	return next, nil
}

// LastAction reports the alternation state for an installation as of
// "when". Used by tests and the stats endpoint.
func (e *Engine) LastAction(installation string, when time.Time) Action {
	st, ok := e.states[installation]
	if !ok {
		return ActionNone
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.window != WindowAt(when) {
		return ActionNone
	}
	return st.last
}
