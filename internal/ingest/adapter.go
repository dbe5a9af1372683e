package ingest

import (
	"context"
	"time"

	"github.com/riverwatch/hydrosync/internal/store"
)

// storeAdapter lifts *store.Store onto the engine's Store interface; the
// concrete AcquireRunLock returns *store.RunLock rather than Lease.
type storeAdapter struct {
	*store.Store
}

func (a storeAdapter) AcquireRunLock(ctx context.Context, ttl time.Duration) (Lease, error) {
	return a.Store.AcquireRunLock(ctx, ttl)
}

// WrapStore adapts the Redis store for use with NewEngine.
func WrapStore(s *store.Store) Store {
	return storeAdapter{s}
}
