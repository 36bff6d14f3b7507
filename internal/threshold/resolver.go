package threshold

import (
	"context"
	"time"

	"github.com/Romanvolodimer/Dispetcher-progecr/internal/logger"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/metrics"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/store"
)

// DefaultCapacity is the adjustment step used when no daily capacity is
// stored or the stored value is not positive.
const DefaultCapacity = 1

// Resolver computes the effective threshold and capacity for an
// installation at a given instant, falling back through dynamic store
// values to the in-memory fallback. Store failures degrade to the fallback:
// resolution must never block the poll/alert path.
type Resolver struct {
	store     store.Store
	fallbacks *Fallbacks
}

// NewResolver creates a resolver over the given store and fallback
// registry.
func NewResolver(st store.Store, fallbacks *Fallbacks) *Resolver {
	return &Resolver{store: st, fallbacks: fallbacks}
}

// Resolve returns the effective threshold and capacity for "when". The
// threshold is the stored value for the current hour window, else the
// previous hour's value carried forward within the day, else the fallback.
// usedDynamic reports whether a stored value was found; when it was, the
// fallback cache is refreshed with it so later total misses degrade toward
// the last observed dynamic value.
func (r *Resolver) Resolve(ctx context.Context, installation string, when time.Time) (threshold, capacity float64, usedDynamic bool) {
	w := WindowAt(when)

	threshold, usedDynamic = r.dynamicThreshold(ctx, installation, w)
	if usedDynamic {
		r.fallbacks.Set(installation, threshold)
	} else {
		threshold, _ = r.fallbacks.Get(installation)
		metrics.FallbackResolutions.WithLabelValues(installation).Inc()
	}
	if threshold < 0 {
		threshold = 0
	}

	capacity = r.Capacity(ctx, installation, when)
	return threshold, capacity, usedDynamic
}

// Capacity returns the daily capacity step for "when", defaulting to
// DefaultCapacity when the stored value is absent or not positive.
func (r *Resolver) Capacity(ctx context.Context, installation string, when time.Time) float64 {
	w := WindowAt(when)

	v, ok, err := r.store.DailyCapacity(ctx, installation, w.Date)
	if err != nil {
		log := logger.WithComponent("resolver")
		log.Warn().Err(err).Str("installation", installation).Msg("capacity lookup failed, using default")
		metrics.StoreLookupErrors.WithLabelValues("capacity").Inc()
		return DefaultCapacity
	}
	if !ok || v <= 0 {
		return DefaultCapacity
	}
	return v
}

// dynamicThreshold looks up the current hour window, then the previous one
// within the same day. Lookup failures count as "not found".
func (r *Resolver) dynamicThreshold(ctx context.Context, installation string, w Window) (float64, bool) {
	for _, win := range [2]Window{w, w.Prev()} {
		v, ok, err := r.store.HourlyThreshold(ctx, installation, win.Date, win.Hour)
		if err != nil {
			log := logger.WithComponent("resolver")
			log.Warn().Err(err).Str("installation", installation).Int("hour", win.Hour).Msg("threshold lookup failed, degrading to fallback")
			metrics.StoreLookupErrors.WithLabelValues("threshold").Inc()
			continue
		}
		if ok {
			return v, true
		}
	}
	return 0, false
}
