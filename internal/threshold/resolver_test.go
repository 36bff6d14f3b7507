package threshold

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Romanvolodimer/Dispetcher-progecr/internal/models"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/store"
)

var at = time.Date(2024, 3, 10, 4, 30, 0, 0, time.UTC) // window hour 5

func newResolver(t *testing.T, st store.Store, fallback float64) (*Resolver, *Fallbacks) {
	t.Helper()
	fallbacks := NewFallbacks(map[string]float64{"KGU1": fallback})
	return NewResolver(st, fallbacks), fallbacks
}

func TestResolveFallsBackOnTotalMiss(t *testing.T) {
	r, _ := newResolver(t, store.NewMemoryStore(), 2000)

	thr, capacity, dynamic := r.Resolve(context.Background(), "KGU1", at)
	if dynamic {
		t.Error("expected usedDynamic=false on empty store")
	}
	if thr != 2000 {
		t.Errorf("threshold = %v, want fallback 2000", thr)
	}
	if capacity != 1 {
		t.Errorf("capacity = %v, want default 1", capacity)
	}
}

func TestResolveUsesCurrentHour(t *testing.T) {
	st := store.NewMemoryStore()
	st.UpsertHourlyThreshold(context.Background(), "KGU1", "2024-03-10", 5, 1850)

	r, _ := newResolver(t, st, 2000)
	thr, _, dynamic := r.Resolve(context.Background(), "KGU1", at)
	if !dynamic || thr != 1850 {
		t.Errorf("got (%v, %v), want (1850, dynamic)", thr, dynamic)
	}
}

func TestResolveCarriesForwardPreviousHour(t *testing.T) {
	st := store.NewMemoryStore()
	st.UpsertHourlyThreshold(context.Background(), "KGU1", "2024-03-10", 4, 1700)

	r, _ := newResolver(t, st, 2000)
	thr, _, dynamic := r.Resolve(context.Background(), "KGU1", at)
	if !dynamic || thr != 1700 {
		t.Errorf("got (%v, %v), want previous hour value 1700", thr, dynamic)
	}
}

func TestResolveRefreshesFallbackOnDynamicHit(t *testing.T) {
	st := store.NewMemoryStore()
	st.UpsertHourlyThreshold(context.Background(), "KGU1", "2024-03-10", 5, 1850)

	r, fallbacks := newResolver(t, st, 2000)
	r.Resolve(context.Background(), "KGU1", at)

	if v, _ := fallbacks.Get("KGU1"); v != 1850 {
		t.Errorf("fallback = %v, want refreshed to 1850", v)
	}
}

func TestResolveCapacityDefaults(t *testing.T) {
	st := store.NewMemoryStore()

	r, _ := newResolver(t, st, 2000)
	if _, c, _ := r.Resolve(context.Background(), "KGU1", at); c != 1 {
		t.Errorf("missing capacity = %v, want 1", c)
	}

	st.UpsertDailyCapacity(context.Background(), "KGU1", "2024-03-10", 0)
	if _, c, _ := r.Resolve(context.Background(), "KGU1", at); c != 1 {
		t.Errorf("zero capacity = %v, want 1", c)
	}

	st.UpsertDailyCapacity(context.Background(), "KGU1", "2024-03-10", 2.5)
	if _, c, _ := r.Resolve(context.Background(), "KGU1", at); c != 2.5 {
		t.Errorf("capacity = %v, want 2.5", c)
	}
}

func TestResolveNeverNegative(t *testing.T) {
	r, fallbacks := newResolver(t, store.NewMemoryStore(), -50)

	thr, _, _ := r.Resolve(context.Background(), "KGU1", at)
	if thr != 0 {
		t.Errorf("threshold = %v, want clamped to 0", thr)
	}
	_ = fallbacks
}

// failingStore simulates an unreachable store for every operation.
type failingStore struct{}

var errDown = errors.New("store down")

func (failingStore) HourlyThreshold(context.Context, string, string, int) (float64, bool, error) {
	return 0, false, errDown
}
func (failingStore) DailyCapacity(context.Context, string, string) (float64, bool, error) {
	return 0, false, errDown
}
func (failingStore) UpsertHourlyThreshold(context.Context, string, string, int, float64) error {
	return errDown
}
func (failingStore) UpsertDailyCapacity(context.Context, string, string, float64) error {
	return errDown
}
func (failingStore) SaveDay(context.Context, models.DayRecord) error { return errDown }
func (failingStore) Day(context.Context, string, string) ([]models.HourValue, error) {
	return nil, errDown
}
func (failingStore) Ping(context.Context) error { return errDown }
func (failingStore) Close() error               { return nil }

func TestResolveDegradesOnStoreFailure(t *testing.T) {
	r, _ := newResolver(t, failingStore{}, 2000)

	thr, capacity, dynamic := r.Resolve(context.Background(), "KGU1", at)
	if dynamic {
		t.Error("expected usedDynamic=false when store is down")
	}
	if thr != 2000 {
		t.Errorf("threshold = %v, want fallback 2000", thr)
	}
	if capacity != 1 {
		t.Errorf("capacity = %v, want default 1", capacity)
	}
}
