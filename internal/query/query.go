// Package query serves read traffic: current conditions with a TTL cache
// and staleness marking, windowed daily means across year buckets, and a
// live watch channel. Station identifiers are accepted in any recognized
// shape and resolved on every call.
package query

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/riverwatch/hydrosync/internal/domain"
	"github.com/riverwatch/hydrosync/internal/identity"
	"github.com/riverwatch/hydrosync/internal/observability"
	"github.com/riverwatch/hydrosync/internal/store"
)

// Defaults for the read path.
const (
	DefaultCacheTTL     = 5 * time.Minute
	DefaultStaleHorizon = 6 * time.Hour
)

// Store is the persistence surface the query layer reads from.
type Store interface {
	GetCurrentReading(ctx context.Context, key identity.Key) (domain.CurrentReading, error)
	GetBucket(ctx context.Context, key identity.Key, year int) (domain.DailyMeanBucket, error)
	WatchCurrent(ctx context.Context, key identity.Key) (<-chan domain.CurrentReading, error)
}

// Current is a current reading annotated with staleness against the
// configured horizon.
type Current struct {
	domain.CurrentReading
	Stale bool `json:"stale"`
}

// Layer answers read queries over the document store.
type Layer struct {
	store        Store
	cache        *ttlCache
	clock        clockwork.Clock
	staleHorizon time.Duration
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// Options tune the read path. Zero values take the package defaults.
type Options struct {
	CacheTTL     time.Duration
	StaleHorizon time.Duration
	Clock        clockwork.Clock
}

// NewLayer creates a query layer.
func NewLayer(st Store, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Layer {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.StaleHorizon <= 0 {
		opts.StaleHorizon = DefaultStaleHorizon
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Layer{
		store:        st,
		cache:        newTTLCache(opts.CacheTTL, opts.Clock),
		clock:        opts.Clock,
		staleHorizon: opts.StaleHorizon,
		logger:       logger,
		metrics:      metrics,
	}
}

// CurrentReading returns the latest known conditions for a station given in
// any identifier shape. The second return is false when no reading exists.
// A store outage degrades to the last cached value, marked stale as needed,
// rather than an error.
func (l *Layer) CurrentReading(ctx context.Context, rawID string) (Current, bool) {
	key := l.resolve(rawID)

	if reading, fresh, ok := l.cache.get(key); ok && fresh {
		l.metrics.QueryCache.WithLabelValues("hit").Inc()
		return l.annotate(reading), true
	}

	reading, err := l.store.GetCurrentReading(ctx, key)
	if err == nil {
		l.metrics.QueryCache.WithLabelValues("miss").Inc()
		l.cache.put(key, reading)
		return l.annotate(reading), true
	}
	if errors.Is(err, store.ErrNotFound) {
		return Current{}, false
	}

	// Store unreachable. Serve the expired cache entry if there is one.
	if reading, _, ok := l.cache.get(key); ok {
		l.metrics.QueryCache.WithLabelValues("stale").Inc()
		l.metrics.QueryDegraded.Inc()
		l.logger.Warn("serving cached reading, store unavailable", "key", key, "error", err)
		return l.annotate(reading), true
	}
	l.logger.Error("current reading unavailable", "key", key, "error", err)
	return Current{}, false
}

func (l *Layer) annotate(reading domain.CurrentReading) Current {
	stale := !reading.Timestamp.IsZero() &&
		l.clock.Now().UTC().Sub(reading.Timestamp) > l.staleHorizon
	return Current{CurrentReading: reading, Stale: stale}
}

// resolve maps a surface identifier to its canonical key, counting and
// logging inputs that match no known shape before the lookup proceeds on
// the unchanged value.
func (l *Layer) resolve(rawID string) identity.Key {
	key, ok := identity.Resolve(rawID)
	if !ok {
		l.metrics.IdentityUnrecognized.Inc()
		l.logger.Warn("unrecognized station identifier", "raw", rawID)
	}
	return key
}

// DailyMeans returns official daily means for the trailing window, ascending
// by date and spanning year boundaries. Stations with no buckets yield an
// empty slice, and a bucket read failure degrades to the data the remaining
// buckets provide. Neither case is an error.
func (l *Layer) DailyMeans(ctx context.Context, rawID string, windowDays int) ([]domain.DailyMean, error) {
	key := l.resolve(rawID)

	to := l.clock.Now().UTC()
	from := to.AddDate(0, 0, -windowDays)
	fromDate := from.Format(domain.DateLayout)
	toDate := to.Format(domain.DateLayout)

	var means []domain.DailyMean
	for year := from.Year(); year <= to.Year(); year++ {
		bucket, err := l.store.GetBucket(ctx, key, year)
		if err != nil {
			l.metrics.QueryDegraded.Inc()
			l.logger.Error("daily means degraded, bucket unavailable",
				"key", key, "year", year, "error", err)
			continue
		}
		for _, date := range bucket.Dates() {
			if date < fromDate || date > toDate {
				continue
			}
			means = append(means, domain.DailyMean{
				Date:         date,
				DailyReading: bucket.DailyReadings[date],
			})
		}
	}

	sort.Slice(means, func(i, j int) bool { return means[i].Date < means[j].Date })
	return means, nil
}

// WatchCurrent streams current-reading updates for a station until ctx is
// cancelled.
func (l *Layer) WatchCurrent(ctx context.Context, rawID string) (<-chan domain.CurrentReading, error) {
	return l.store.WatchCurrent(ctx, l.resolve(rawID))
}
