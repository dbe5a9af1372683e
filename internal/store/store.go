package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/riverwatch/hydrosync/internal/observability"
)

// Store is the Redis-backed document store for stations, current readings,
// and daily-mean buckets.
type Store struct {
	rdb     *redis.Client
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Store around an existing Redis client.
func New(rdb *redis.Client, logger *slog.Logger, metrics *observability.Metrics) *Store {
	return &Store{rdb: rdb, logger: logger, metrics: metrics}
}

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, addr, password string, db int, logger *slog.Logger, metrics *observability.Metrics) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, err
	}
	return New(rdb, logger, metrics), nil
}

// Close releases the underlying Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Ping reports whether the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
