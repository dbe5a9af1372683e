// Command ingestd is the long-running ingestion daemon: scheduled realtime
// refreshes and historical syncs, plus the HTTP API for registration and
// queries.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	httpadapter "github.com/riverwatch/hydrosync/internal/adapter/http"
	"github.com/riverwatch/hydrosync/internal/audit"
	"github.com/riverwatch/hydrosync/internal/config"
	"github.com/riverwatch/hydrosync/internal/domain"
	"github.com/riverwatch/hydrosync/internal/ingest"
	"github.com/riverwatch/hydrosync/internal/observability"
	"github.com/riverwatch/hydrosync/internal/provider/hydromet"
	"github.com/riverwatch/hydrosync/internal/query"
	"github.com/riverwatch/hydrosync/internal/register"
	"github.com/riverwatch/hydrosync/internal/store"
)

// backfillQueueSize bounds pending registrations awaiting backfill.
const backfillQueueSize = 64

type storeReadiness struct {
	st *store.Store
}

func (r storeReadiness) CheckReadiness(ctx context.Context) error {
	return r.st.Ping(ctx)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger, metrics)
	if err != nil {
		logger.Error("failed to connect to store", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	provider := hydromet.NewClient(cfg.ProviderBaseURL, cfg.ProviderTimeout, logger, metrics)
	recorder := audit.NewRecorder(cfg.KafkaBrokers, cfg.KafkaAuditTopic, logger)
	defer recorder.Close()

	engine := ingest.NewEngine(ingest.WrapStore(st), provider, recorder, logger, metrics, ingest.Options{
		HistoricalDays:  cfg.HistoricalDays,
		IncrementalDays: cfg.IncrementalDays,
		Workers:         cfg.SyncWorkers,
		KeepYears:       cfg.KeepYears,
		LockTTL:         cfg.LockTTL,
	})
	updater := ingest.NewRealtimeUpdater(st, provider, logger, metrics, cfg.SyncWorkers)

	// Registrations enqueue a backfill consumed by a single worker so the
	// API responds without waiting for five years of history.
	backfills := make(chan domain.Station, backfillQueueSize)
	workflow := register.NewWorkflow(st, provider, recorder, func(station domain.Station) {
		select {
		case backfills <- station:
		default:
			logger.Warn("backfill queue full, station will be picked up by the next sync run",
				"key", station.Identity())
		}
	}, logger, metrics)
	go func() {
		for station := range backfills {
			if _, err := engine.BackfillStation(ctx, station); err != nil {
				logger.Error("backfill failed", "key", station.Identity(), "error", err)
			}
		}
	}()

	layer := query.NewLayer(st, logger, metrics, query.Options{
		CacheTTL:     cfg.CacheTTL,
		StaleHorizon: cfg.StaleHorizon,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, layer, workflow, storeReadiness{st}, cfg.AdminPrincipals, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.RealtimeSchedule, func() {
		if _, err := updater.Run(ctx); err != nil {
			logger.Error("realtime refresh failed", "error", err)
		}
	}); err != nil {
		logger.Error("invalid realtime schedule", "schedule", cfg.RealtimeSchedule, "error", err)
		os.Exit(1)
	}
	if _, err := scheduler.AddFunc(cfg.HistoricalSchedule, func() {
		if _, err := engine.Run(ctx); err != nil && !errors.Is(err, store.ErrLockHeld) {
			logger.Error("historical sync failed", "error", err)
		}
	}); err != nil {
		logger.Error("invalid historical schedule", "schedule", cfg.HistoricalSchedule, "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	// Prime current conditions so the API is useful before the first tick.
	go func() {
		if _, err := updater.Run(ctx); err != nil {
			logger.Error("initial realtime refresh failed", "error", err)
		}
	}()

	logger.Info("ingestd started",
		"realtime_schedule", cfg.RealtimeSchedule,
		"historical_schedule", cfg.HistoricalSchedule)

	<-ctx.Done()
	logger.Info("shutting down")

	schedCtx := scheduler.Stop()
	close(backfills)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-schedCtx.Done():
	case <-shutdownCtx.Done():
	}

	logger.Info("shutdown complete")
}
