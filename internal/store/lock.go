package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another sync run already holds the run lock.
var ErrLockHeld = errors.New("run lock held by another process")

// releaseScript deletes the lock only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunLock is a held lease on the single-writer sync lock.
type RunLock struct {
	store *Store
	token string
	ttl   time.Duration
}

// AcquireRunLock takes the single-writer lease for a sync run. The lease
// expires on its own if the holder crashes.
func (s *Store) AcquireRunLock(ctx context.Context, ttl time.Duration) (*RunLock, error) {
	token := uuid.NewString()

	ok, err := s.rdb.SetNX(ctx, runLockKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &RunLock{store: s, token: token, ttl: ttl}, nil
}

// Refresh extends the lease. Returns ErrLockHeld if the lease expired and
// was taken by someone else.
func (l *RunLock) Refresh(ctx context.Context) error {
	current, err := l.store.rdb.Get(ctx, runLockKey).Result()
	if errors.Is(err, redis.Nil) || (err == nil && current != l.token) {
		return ErrLockHeld
	}
	if err != nil {
		return fmt.Errorf("refresh run lock: %w", err)
	}
	return l.store.rdb.Expire(ctx, runLockKey, l.ttl).Err()
}

// Release frees the lease. Releasing an already-expired lease is a no-op.
func (l *RunLock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.store.rdb, []string{runLockKey}, l.token).Err()
}
