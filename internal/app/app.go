// Package app wires the dispatcher together and owns its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Romanvolodimer/Dispetcher-progecr/internal/api"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/archive"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/config"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/hub"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/logger"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/middleware"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/poll"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/source"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/store"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/threshold"
)

// App is the high-level coordinator: store, threshold engine, poll loop,
// subscriber hub, archive, and the HTTP surface.
type App struct {
	cfg *config.Config

	store      store.Store
	reader     source.Reader
	hub        *hub.Hub
	runner     *poll.Runner
	scheduler  *poll.Scheduler
	archiver   *archive.Archiver
	httpServer *http.Server

	wg sync.WaitGroup
}

// New constructs an App with the given config.
func New(cfg *config.Config) *App {
	return &App{cfg: cfg}
}

// Run starts all components and blocks until the context is cancelled.
// Failure to reach the store or compile the source endpoints aborts
// startup: running without durable thresholds would be silently wrong.
func (a *App) Run(ctx context.Context) error {
	log := logger.WithComponent("app")
	log.Info().Int("installations", len(a.cfg.Installations)).Msg("dispatcher starting")

	st, err := store.NewRedisStore(a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB)
	if err != nil {
		return fmt.Errorf("connect threshold store: %w", err)
	}
	a.store = st
	defer a.store.Close()
	log.Info().Str("addr", a.cfg.RedisAddr).Msg("threshold store connected")

	reader, err := source.NewHTTPReader(a.cfg.Installations, a.cfg.SourceTimeout)
	if err != nil {
		return fmt.Errorf("configure source feed: %w", err)
	}
	a.reader = reader
	defer a.reader.Close()

	a.initCore()
	a.initArchiver()
	a.initHTTPServer()

	if a.archiver != nil {
		a.archiver.Start()
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.scheduler.Run(ctx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.Info().Str("addr", a.cfg.HTTPAddr).Msg("starting HTTP server")
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.reportStats(ctx)
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")
	return a.shutdown()
}

// initCore builds the threshold engine, hub, runner and scheduler. The hub
// broadcasts what the runner emits, and the scheduler the hub re-arms
// drives the runner, so the control handle is attached after construction.
func (a *App) initCore() {
	seed := make(map[string]float64, len(a.cfg.Installations))
	names := make([]string, 0, len(a.cfg.Installations))
	for _, inst := range a.cfg.Installations {
		seed[inst.Name] = inst.FallbackThreshold
		names = append(names, inst.Name)
	}

	fallbacks := threshold.NewFallbacks(seed)
	resolver := threshold.NewResolver(a.store, fallbacks)
	engine := threshold.NewEngine(a.store, resolver, names)

	a.hub = hub.New(a.cfg.Installations, fallbacks, engine)

	a.runner = poll.NewRunner(poll.RunnerConfig{
		Installations: a.cfg.Installations,
		Reader:        a.reader,
		Resolver:      resolver,
		Sink:          a.hub,
		Deadband:      a.cfg.Deadband,
		FetchTimeout:  a.cfg.SourceTimeout,
	})

	a.scheduler = poll.NewScheduler(a.cfg.PollInterval, func(ctx context.Context) {
		a.runner.RunOnce(ctx)
	})
	a.hub.AttachControl(a.scheduler)
}

// initArchiver enables Kafka event archival when brokers are configured.
func (a *App) initArchiver() {
	if len(a.cfg.KafkaBrokers) == 0 {
		return
	}
	a.archiver = archive.New(a.cfg.KafkaBrokers, a.cfg.KafkaTopic)
	a.hub.AttachArchiver(a.archiver)

	log := logger.WithComponent("app")
	log.Info().Strs("brokers", a.cfg.KafkaBrokers).Str("topic", a.cfg.KafkaTopic).Msg("event archival enabled")
}

// initHTTPServer builds the router: subscriber socket, data-entry API and
// operational endpoints.
func (a *App) initHTTPServer() {
	handler := api.NewHandler(a.store, a.collectStats)

	r := mux.NewRouter()
	r.HandleFunc("/ws", hub.ServeWS(a.hub))
	r.Handle("/api/save-data", middleware.Chain(
		http.HandlerFunc(handler.SaveDay),
		middleware.Recovery,
		middleware.Logging,
		middleware.Auth(a.cfg.APIToken),
	)).Methods(http.MethodPost)
	r.Handle("/api/get-data", middleware.Chain(
		http.HandlerFunc(handler.GetDay),
		middleware.Recovery,
		middleware.Logging,
	)).Methods(http.MethodGet)
	r.HandleFunc("/ping", handler.Ping)
	r.HandleFunc("/health", handler.Health)
	r.HandleFunc("/stats", handler.GetStats)
	r.Handle("/metrics", promhttp.Handler())

	a.httpServer = &http.Server{
		Addr:        a.cfg.HTTPAddr,
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
}

// collectStats snapshots the counters for the stats endpoint.
func (a *App) collectStats() api.Stats {
	rs := a.runner.Stats()
	return api.Stats{
		Cycles:      rs.Cycles,
		Alerts:      rs.Alerts,
		Errors:      rs.Errors,
		Subscribers: a.hub.ClientCount(),
	}
}

// shutdown stops the HTTP surface first, then flushes the archiver.
// In-flight polls and adjustments finish naturally via their contexts.
func (a *App) shutdown() error {
	log := logger.WithComponent("app")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info().Msg("stopping HTTP server")
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if a.archiver != nil {
		log.Info().Msg("flushing event archive")
		a.archiver.Stop()
	}

	a.wg.Wait()
	log.Info().Msg("dispatcher stopped gracefully")
	return nil
}

// reportStats periodically logs counters.
func (a *App) reportStats(ctx context.Context) {
	log := logger.WithComponent("app")
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := a.collectStats()
			log.Info().
				Uint64("cycles", s.Cycles).
				Uint64("alerts", s.Alerts).
				Uint64("errors", s.Errors).
				Int("subscribers", s.Subscribers).
				Msg("stats")
		}
	}
}
