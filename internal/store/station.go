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

// PutStation writes the station document and adds it to the registry index.
func (s *Store) PutStation(ctx context.Context, station domain.Station) error {
	key := station.Identity()

	data, err := json.Marshal(station)
	if err != nil {
		return fmt.Errorf("marshal station %s: %w", key, err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, stationKey(key), data, 0)
	pipe.SAdd(ctx, stationIndexKey, string(key))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: put station %s: %v", domain.ErrStoreWrite, key, err)
	}
	return nil
}

// GetStation loads one station document. Returns domain.ErrUnknownStation
// when the key has never been registered.
func (s *Store) GetStation(ctx context.Context, key identity.Key) (domain.Station, error) {
	data, err := s.rdb.Get(ctx, stationKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Station{}, fmt.Errorf("%w: %s", domain.ErrUnknownStation, key)
	}
	if err != nil {
		return domain.Station{}, fmt.Errorf("get station %s: %w", key, err)
	}

	var station domain.Station
	if err := json.Unmarshal(data, &station); err != nil {
		return domain.Station{}, fmt.Errorf("decode station %s: %w", key, err)
	}
	return station, nil
}

// ActiveStations returns every registered station with active=true, in no
// particular order.
func (s *Store) ActiveStations(ctx context.Context) ([]domain.Station, error) {
	keys, err := s.rdb.SMembers(ctx, stationIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list station index: %w", err)
	}

	stations := make([]domain.Station, 0, len(keys))
	for _, raw := range keys {
		station, err := s.GetStation(ctx, identity.Key(raw))
		if err != nil {
			s.logger.Warn("skipping unreadable station document", "key", raw, "error", err)
			continue
		}
		if station.Active {
			stations = append(stations, station)
		}
	}
	return stations, nil
}

// DeactivateStation marks the station inactive. The document and all its
// readings are retained.
func (s *Store) DeactivateStation(ctx context.Context, key identity.Key) error {
	station, err := s.GetStation(ctx, key)
	if err != nil {
		return err
	}
	station.Active = false
	station.UpdatedAt = domain.Now()
	return s.PutStation(ctx, station)
}
