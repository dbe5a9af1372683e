package ingest

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/riverwatch/hydrosync/internal/audit"
	"github.com/riverwatch/hydrosync/internal/domain"
	"github.com/riverwatch/hydrosync/internal/identity"
	"github.com/riverwatch/hydrosync/internal/observability"
	"github.com/riverwatch/hydrosync/internal/store"
)

// Defaults for sync planning.
const (
	DefaultHistoricalDays  = 1825 // five years of backfill for new stations
	DefaultIncrementalDays = 3
	DefaultWorkers         = 4
	DefaultLockTTL         = 30 * time.Minute
)

// Lease is a held single-writer lock on the store.
type Lease interface {
	Refresh(ctx context.Context) error
	Release(ctx context.Context) error
}

// Store is the persistence surface the engine needs.
type Store interface {
	ActiveStations(ctx context.Context) ([]domain.Station, error)
	HasBuckets(ctx context.Context, key identity.Key) (bool, error)
	GetCurrentReading(ctx context.Context, key identity.Key) (domain.CurrentReading, error)
	WriteBuckets(ctx context.Context, writes []store.BucketWrite) error
	TrimBuckets(ctx context.Context, key identity.Key, keepYears int) error
	AcquireRunLock(ctx context.Context, ttl time.Duration) (Lease, error)
}

// Provider fetches official daily means from the upstream service.
type Provider interface {
	FetchDailyMeans(ctx context.Context, code string, from, to time.Time) (map[string]domain.DailyReading, error)
}

// Auditor records lifecycle events. audit.Recorder satisfies it.
type Auditor interface {
	Record(ctx context.Context, eventType string, station identity.Key, severity, format string, args ...any)
}

// Options tune a sync run.
type Options struct {
	HistoricalDays  int  // backfill window for stations with no buckets
	IncrementalDays int  // window for stations already synced
	Workers         int  // concurrent station syncs
	DryRun          bool // plan and log, write nothing
	Force           bool // treat every station as unsynced
	KeepYears       int  // bucket retention; 0 keeps everything
	LockTTL         time.Duration
}

func (o Options) withDefaults() Options {
	if o.HistoricalDays <= 0 {
		o.HistoricalDays = DefaultHistoricalDays
	}
	if o.IncrementalDays <= 0 {
		o.IncrementalDays = DefaultIncrementalDays
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.LockTTL <= 0 {
		o.LockTTL = DefaultLockTTL
	}
	return o
}

// Summary is the outcome of one sync run.
type Summary struct {
	Stations     int
	Synced       int
	Skipped      int
	Failed       int
	MeansWritten int
	DryRun       bool
	Duration     time.Duration
}

// Engine runs historical sync across all active stations.
type Engine struct {
	store    Store
	provider Provider
	auditor  Auditor
	logger   *slog.Logger
	metrics  *observability.Metrics
	opts     Options
}

// NewEngine creates a sync engine.
func NewEngine(st Store, p Provider, a Auditor, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Engine {
	return &Engine{
		store:    st,
		provider: p,
		auditor:  a,
		logger:   logger,
		metrics:  metrics,
		opts:     opts.withDefaults(),
	}
}

// Run executes one sync pass over every active station. It acquires the
// single-writer lease first; a concurrent run returns store.ErrLockHeld.
// Dry runs take no lease and write nothing.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	start := domain.Now()
	summary := Summary{DryRun: e.opts.DryRun}

	if !e.opts.DryRun {
		lease, err := e.store.AcquireRunLock(ctx, e.opts.LockTTL)
		if err != nil {
			return summary, err
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				e.logger.Warn("release run lock", "error", err)
			}
		}()
	}

	e.metrics.SyncRunning.Set(1)
	defer e.metrics.SyncRunning.Set(0)

	stations, err := e.store.ActiveStations(ctx)
	if err != nil {
		return summary, err
	}
	summary.Stations = len(stations)

	e.logger.Info("sync run started",
		"stations", len(stations), "workers", e.opts.Workers, "dry_run", e.opts.DryRun)
	e.auditor.Record(ctx, audit.TypeRunStarted, "", audit.SeverityInfo,
		"sync run started for %d stations", len(stations))

	results := e.runPool(ctx, stations)
	for r := range results {
		switch {
		case r.err != nil:
			summary.Failed++
			e.metrics.SyncErrors.Inc()
			e.logger.Error("station sync failed", "key", r.key, "error", r.err)
			e.auditor.Record(ctx, audit.TypeStationFailed, r.key, audit.SeverityError, "%v", r.err)
		case r.written == 0:
			summary.Skipped++
			e.metrics.StationsSkipped.Inc()
		default:
			summary.Synced++
			summary.MeansWritten += r.written
			e.metrics.StationsSynced.Inc()
			e.auditor.Record(ctx, audit.TypeStationSynced, r.key, audit.SeverityInfo,
				"wrote %d daily means", r.written)
		}
	}

	summary.Duration = domain.Now().Sub(start)
	e.logger.Info("sync run finished",
		"synced", summary.Synced, "skipped", summary.Skipped,
		"failed", summary.Failed, "means", summary.MeansWritten,
		"duration", summary.Duration)
	e.auditor.Record(ctx, audit.TypeRunCompleted, "", audit.SeverityInfo,
		"sync run finished: %d synced, %d skipped, %d failed", summary.Synced, summary.Skipped, summary.Failed)

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

type stationResult struct {
	key     identity.Key
	written int
	err     error
}

// runPool fans stations out to a bounded worker pool. The results channel
// closes once every station has been attempted or the context is cancelled.
func (e *Engine) runPool(ctx context.Context, stations []domain.Station) <-chan stationResult {
	jobs := make(chan domain.Station)
	results := make(chan stationResult)

	var wg sync.WaitGroup
	for i := 0; i < e.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for station := range jobs {
				written, err := e.syncStation(ctx, station)
				results <- stationResult{key: station.Identity(), written: written, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, station := range stations {
			select {
			case jobs <- station:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()
	return results
}

// syncStation fetches and persists daily means for one station. Stations
// with no buckets yet (or under Force) get the full historical window,
// already-synced stations get the short incremental window.
func (e *Engine) syncStation(ctx context.Context, station domain.Station) (int, error) {
	key := station.Identity()

	days := e.opts.IncrementalDays
	full := e.opts.Force
	if !full {
		synced, err := e.store.HasBuckets(ctx, key)
		if err != nil {
			return 0, err
		}
		full = !synced
	}
	if full {
		days = e.opts.HistoricalDays
	}

	return e.syncWindow(ctx, station, days, !full)
}

// BackfillStation loads the full historical window for one station,
// regardless of existing buckets. Used when a station is first registered.
func (e *Engine) BackfillStation(ctx context.Context, station domain.Station) (int, error) {
	return e.syncWindow(ctx, station, e.opts.HistoricalDays, false)
}

func (e *Engine) syncWindow(ctx context.Context, station domain.Station, days int, foldRealtime bool) (int, error) {
	key := station.Identity()
	to := domain.Now()
	from := to.AddDate(0, 0, -days)

	daily, err := e.provider.FetchDailyMeans(ctx, station.Code, from, to)
	if err != nil {
		return 0, err
	}

	if foldRealtime {
		e.foldRealtimeMeans(ctx, key, from, daily)
	}

	writes := buildWrites(key, daily)
	if len(writes) == 0 {
		e.logger.Debug("no daily means in window", "key", key, "days", days)
		return 0, nil
	}

	if e.opts.DryRun {
		e.logger.Info("dry run: would write daily means",
			"key", key, "count", len(writes), "window_days", days)
		return len(writes), nil
	}

	if err := e.store.WriteBuckets(ctx, writes); err != nil {
		return 0, err
	}
	if err := e.store.TrimBuckets(ctx, key, e.opts.KeepYears); err != nil {
		e.logger.Warn("bucket retention failed", "key", key, "error", err)
	}
	return len(writes), nil
}

// foldRealtimeMeans supplements official daily means with provisional ones
// aggregated from the station's cached realtime feed. Official values always
// win; only dates the provider has not published yet are filled in.
func (e *Engine) foldRealtimeMeans(ctx context.Context, key identity.Key, from time.Time, daily map[string]domain.DailyReading) {
	reading, err := e.store.GetCurrentReading(ctx, key)
	if err != nil {
		e.logger.Debug("no cached feed to fold", "key", key, "error", err)
		return
	}

	for date, provisional := range domain.AggregateDailyMeans(reading.Feed) {
		if _, official := daily[date]; official {
			continue
		}
		day, err := time.Parse(domain.DateLayout, date)
		if err != nil || day.Before(from.Truncate(24*time.Hour)) {
			continue
		}
		daily[date] = provisional
	}
}

// buildWrites converts provider daily means into bucket upserts, dropping
// undated or empty records. Output is ordered by date for deterministic
// batching.
func buildWrites(key identity.Key, daily map[string]domain.DailyReading) []store.BucketWrite {
	dates := make([]string, 0, len(daily))
	for date := range daily {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	writes := make([]store.BucketWrite, 0, len(dates))
	for _, date := range dates {
		reading := daily[date]
		if reading.Empty() {
			continue
		}
		day, err := time.Parse(domain.DateLayout, date)
		if err != nil {
			continue
		}
		writes = append(writes, store.BucketWrite{
			Key:     key,
			Year:    day.Year(),
			Date:    date,
			Reading: reading,
		})
	}
	return writes
}
