package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/riverwatch/hydrosync/internal/domain"
	"github.com/riverwatch/hydrosync/internal/identity"
	"github.com/riverwatch/hydrosync/internal/observability"
	"github.com/riverwatch/hydrosync/internal/provider/hydromet"
	"github.com/riverwatch/hydrosync/internal/store"
)

// FeedWindow is the trailing realtime history kept with each current
// reading.
const FeedWindow = 720 * time.Hour // 30 days

// UpdaterStore is the persistence surface the realtime updater needs.
type UpdaterStore interface {
	ActiveStations(ctx context.Context) ([]domain.Station, error)
	GetCurrentReading(ctx context.Context, key identity.Key) (domain.CurrentReading, error)
	PutCurrentReading(ctx context.Context, key identity.Key, reading domain.CurrentReading) error
}

// RealtimeProvider fetches realtime samples and feeds.
type RealtimeProvider interface {
	FetchLatestAll(ctx context.Context) ([]hydromet.LatestSample, error)
	FetchRealtime(ctx context.Context, code string, window time.Duration) (domain.FlowFeed, []byte, error)
}

// RealtimeUpdater refreshes current conditions for every active station.
// One bulk provider call locates the latest sample for the whole network;
// only tracked stations then get a per-station feed fetch.
type RealtimeUpdater struct {
	store    UpdaterStore
	provider RealtimeProvider
	logger   *slog.Logger
	metrics  *observability.Metrics
	workers  int
}

// NewRealtimeUpdater creates a realtime updater.
func NewRealtimeUpdater(st UpdaterStore, p RealtimeProvider, logger *slog.Logger, metrics *observability.Metrics, workers int) *RealtimeUpdater {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &RealtimeUpdater{store: st, provider: p, logger: logger, metrics: metrics, workers: workers}
}

// Run executes one refresh cycle. Stations absent from the bulk response
// keep their previous reading; one station failing never aborts the cycle.
func (u *RealtimeUpdater) Run(ctx context.Context) (int, error) {
	stations, err := u.store.ActiveStations(ctx)
	if err != nil {
		return 0, err
	}
	if len(stations) == 0 {
		return 0, nil
	}

	samples, err := u.provider.FetchLatestAll(ctx)
	if err != nil {
		return 0, err
	}
	byCode := make(map[string]hydromet.LatestSample, len(samples))
	for _, s := range samples {
		byCode[s.Code] = s
	}

	var (
		mu      sync.Mutex
		updated int
	)
	jobs := make(chan domain.Station)
	var wg sync.WaitGroup
	for i := 0; i < u.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for station := range jobs {
				sample, ok := byCode[station.Code]
				if !ok {
					u.logger.Debug("no realtime sample for station", "key", station.Identity())
					continue
				}
				if err := u.refreshStation(ctx, station, sample); err != nil {
					u.logger.Error("refresh station failed", "key", station.Identity(), "error", err)
					continue
				}
				mu.Lock()
				updated++
				mu.Unlock()
			}
		}()
	}

	for _, station := range stations {
		select {
		case jobs <- station:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return updated, ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	u.logger.Info("realtime refresh finished", "stations", len(stations), "updated", updated)
	return updated, ctx.Err()
}

// refreshStation writes a new current reading for one station. The trend is
// classified against the previously stored level, and the provider's raw
// sample fragment is carried through verbatim.
func (u *RealtimeUpdater) refreshStation(ctx context.Context, station domain.Station, sample hydromet.LatestSample) error {
	key := station.Identity()

	feed, _, err := u.provider.FetchRealtime(ctx, station.Code, FeedWindow)
	if err != nil {
		return err
	}

	var previous *float64
	prior, err := u.store.GetCurrentReading(ctx, key)
	switch {
	case err == nil:
		previous = prior.Level
	case errors.Is(err, store.ErrNotFound):
		// First reading for this station, trend starts stable.
	default:
		return err
	}

	level, discharge, timestamp := sample.Level, sample.Discharge, sample.Timestamp
	if latest, ok := feed.Latest(); ok && latest.Timestamp.After(timestamp) {
		level, discharge, timestamp = latest.Level, latest.Discharge, latest.Timestamp
	}

	reading := domain.CurrentReading{
		Provider:      station.Provider,
		Code:          station.Code,
		Level:         level,
		Discharge:     discharge,
		Timestamp:     timestamp,
		Trend:         domain.ClassifyTrend(previous, level),
		LevelUnit:     domain.LevelUnit,
		DischargeUnit: domain.DischargeUnit,
		UpdatedAt:     domain.Now(),
		Raw:           domain.RawPayload{Source: "hydrometric-realtime", Data: sample.Raw},
		Feed:          feed.Readings,
	}

	if err := u.store.PutCurrentReading(ctx, key, reading); err != nil {
		return err
	}
	u.metrics.CurrentReadingsUpdated.Inc()
	return nil
}
