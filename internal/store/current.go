package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/riverwatch/hydrosync/internal/domain"
	"github.com/riverwatch/hydrosync/internal/identity"
)

// ErrNotFound is returned when a document does not exist yet. Distinct from
// domain.ErrUnknownStation: the station may be registered but never synced.
var ErrNotFound = errors.New("document not found")

// PutCurrentReading overwrites the station's current-conditions document and
// notifies watchers on the station's channel.
func (s *Store) PutCurrentReading(ctx context.Context, key identity.Key, reading domain.CurrentReading) error {
	data, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("marshal current reading %s: %w", key, err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, currentKey(key), data, 0)
	pipe.Publish(ctx, currentKey(key), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: put current reading %s: %v", domain.ErrStoreWrite, key, err)
	}
	return nil
}

// GetCurrentReading loads the latest stored conditions for one station.
func (s *Store) GetCurrentReading(ctx context.Context, key identity.Key) (domain.CurrentReading, error) {
	data, err := s.rdb.Get(ctx, currentKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.CurrentReading{}, fmt.Errorf("%w: current reading %s", ErrNotFound, key)
	}
	if err != nil {
		return domain.CurrentReading{}, fmt.Errorf("get current reading %s: %w", key, err)
	}

	var reading domain.CurrentReading
	if err := json.Unmarshal(data, &reading); err != nil {
		return domain.CurrentReading{}, fmt.Errorf("decode current reading %s: %w", key, err)
	}
	return reading, nil
}

// WatchCurrent subscribes to current-reading updates for one station. The
// returned channel closes when ctx is cancelled. Undecodable messages are
// logged and dropped.
func (s *Store) WatchCurrent(ctx context.Context, key identity.Key) (<-chan domain.CurrentReading, error) {
	sub := s.rdb.Subscribe(ctx, currentKey(key))

	// Force the subscription to be established before returning so callers
	// never miss updates published after WatchCurrent returns.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", key, err)
	}

	out := make(chan domain.CurrentReading)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				var reading domain.CurrentReading
				if err := json.Unmarshal([]byte(msg.Payload), &reading); err != nil {
					s.logger.Warn("dropping undecodable update", "key", key, "error", err)
					continue
				}
				select {
				case out <- reading:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
