// Package poll runs the recurring measurement cycle across all monitored
// installations.
package poll

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Romanvolodimer/Dispetcher-progecr/internal/config"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/logger"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/metrics"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/models"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/source"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/threshold"
)

// Sink receives the events a poll cycle emits.
type Sink interface {
	Broadcast(ev models.Event)
}

// Runner fetches, resolves and classifies one reading per installation.
// Stateless between cycles: every run re-resolves thresholds from scratch.
type Runner struct {
	installations []config.Installation
	reader        source.Reader
	resolver      *threshold.Resolver
	sink          Sink
	deadband      float64
	fetchTimeout  time.Duration
	now           func() time.Time

	// Counters for the stats endpoint
	cycles atomic.Uint64
	alerts atomic.Uint64
	errors atomic.Uint64
}

// RunnerConfig holds runner construction parameters.
type RunnerConfig struct {
	Installations []config.Installation
	Reader        source.Reader
	Resolver      *threshold.Resolver
	Sink          Sink
	Deadband      float64
	FetchTimeout  time.Duration
}

// NewRunner creates a runner.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Deadband <= 0 {
		cfg.Deadband = 100
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 15 * time.Second
	}
	return &Runner{
		installations: cfg.Installations,
		reader:        cfg.Reader,
		resolver:      cfg.Resolver,
		sink:          cfg.Sink,
		deadband:      cfg.Deadband,
		fetchTimeout:  cfg.FetchTimeout,
		now:           time.Now,
	}
}

// RunOnce polls every installation concurrently and returns the outcomes in
// card order. One installation's failure never cancels the others.
func (r *Runner) RunOnce(ctx context.Context) []models.PollOutcome {
	start := time.Now()
	outcomes := make([]models.PollOutcome, len(r.installations))

	var wg sync.WaitGroup
	for i, inst := range r.installations {
		wg.Add(1)
		go func(i int, inst config.Installation) {
			defer wg.Done()
			outcomes[i] = r.pollOne(ctx, inst)
		}(i, inst)
	}
	wg.Wait()

	r.cycles.Add(1)
	metrics.CycleDuration.Observe(time.Since(start).Seconds())
	return outcomes
}

// pollOne fetches and classifies a single installation's reading, emitting
// the corresponding events to the sink.
func (r *Runner) pollOne(ctx context.Context, inst config.Installation) models.PollOutcome {
	log := logger.WithInstallation(inst.Name)
	start := time.Now()

	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	raw, err := r.reader.Read(fetchCtx, inst.Name)
	metrics.PollDuration.WithLabelValues(inst.Name).Observe(time.Since(start).Seconds())
	ts := r.now()

	if err != nil {
		log.Warn().Err(err).Msg("reading fetch failed")
		metrics.PollsTotal.WithLabelValues(inst.Name, "error").Inc()
		r.errors.Add(1)
		r.sink.Broadcast(models.NewErrorEvent(inst.CardID, err.Error(), ts))
		return models.PollOutcome{
			CardID:       inst.CardID,
			Installation: inst.Name,
			Kind:         models.OutcomeError,
			Value:        math.NaN(),
			Message:      err.Error(),
			At:           ts,
		}
	}

	value := source.ParseReading(raw)
	thr, capacity, usedDynamic := r.resolver.Resolve(ctx, inst.Name, ts)

	outcome := models.PollOutcome{
		CardID:       inst.CardID,
		Installation: inst.Name,
		Kind:         models.OutcomeMetric,
		Value:        value,
		Threshold:    thr,
		Capacity:     capacity,
		At:           ts,
	}

	r.sink.Broadcast(models.NewMetric(inst.CardID, value, thr, capacity, ts))

	if r.isAlert(value, thr) {
		outcome.Kind = models.OutcomeAlert
		r.alerts.Add(1)
		metrics.PollsTotal.WithLabelValues(inst.Name, "alert").Inc()
		metrics.AlertsTotal.WithLabelValues(inst.Name).Inc()
		log.Warn().
			Float64("value", value).
			Float64("threshold", thr).
			Bool("dynamic", usedDynamic).
			Msg("reading outside deadband")
		r.sink.Broadcast(models.NewAlert(inst.CardID, value, thr, ts))
	} else {
		metrics.PollsTotal.WithLabelValues(inst.Name, "ok").Inc()
		log.Debug().
			Float64("value", value).
			Float64("threshold", thr).
			Bool("dynamic", usedDynamic).
			Msg("reading ok")
	}

	return outcome
}

// isAlert reports whether a reading leaves the acceptable band around the
// threshold. NaN readings never alert.
func (r *Runner) isAlert(value, thr float64) bool {
	if math.IsNaN(value) {
		return false
	}
	return value < thr-r.deadband || value > thr+r.deadband
}

// Stats returns cycle counters for the stats endpoint.
func (r *Runner) Stats() Stats {
	return Stats{
		Cycles: r.cycles.Load(),
		Alerts: r.alerts.Load(),
		Errors: r.errors.Load(),
	}
}

// Stats holds runner counters.
type Stats struct {
	Cycles uint64
	Alerts uint64
	Errors uint64
}
