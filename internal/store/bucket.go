package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/riverwatch/hydrosync/internal/domain"
	"github.com/riverwatch/hydrosync/internal/identity"
)

// batchLimit caps the daily-mean field writes committed in one pipeline. The
// cap counts entries; each distinct bucket a chunk touches adds one metadata
// write and one year-set add on top.
const batchLimit = 500

// updatedAtField is the bucket metadata field. Reads skip the underscore
// prefix when reconstructing daily readings.
const updatedAtField = "_updated_at"

// BucketWrite is one pending daily-mean upsert.
type BucketWrite struct {
	Key     identity.Key
	Year    int
	Date    string // YYYY-MM-DD
	Reading domain.DailyReading
}

// chunkWrites splits pending writes into commit groups of at most
// batchLimit entries, preserving order.
func chunkWrites(writes []BucketWrite, limit int) [][]BucketWrite {
	if len(writes) == 0 {
		return nil
	}
	chunks := make([][]BucketWrite, 0, (len(writes)+limit-1)/limit)
	for len(writes) > limit {
		chunks = append(chunks, writes[:limit])
		writes = writes[limit:]
	}
	return append(chunks, writes)
}

// bucketRef identifies one year bucket of one station.
type bucketRef struct {
	key  identity.Key
	year int
}

// touchedBuckets returns the distinct buckets a chunk writes to, in
// first-seen order.
func touchedBuckets(chunk []BucketWrite) []bucketRef {
	seen := make(map[bucketRef]struct{}, len(chunk))
	refs := make([]bucketRef, 0, len(chunk))
	for _, w := range chunk {
		ref := bucketRef{key: w.Key, year: w.Year}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}
	return refs
}

// WriteBuckets commits daily-mean upserts in batches. Existing dates are
// overwritten, other dates in the same bucket are untouched. Each batch is
// retried independently; a batch that still fails after retries aborts the
// remainder so the caller can surface a partial write.
func (s *Store) WriteBuckets(ctx context.Context, writes []BucketWrite) error {
	now := domain.Now().Format(time.RFC3339)

	for _, chunk := range chunkWrites(writes, batchLimit) {
		commit := func() error {
			pipe := s.rdb.TxPipeline()
			for _, w := range chunk {
				data, err := json.Marshal(w.Reading)
				if err != nil {
					return backoff.Permanent(fmt.Errorf("marshal daily reading %s/%s: %w", w.Key, w.Date, err))
				}
				pipe.HSet(ctx, bucketKey(w.Key, w.Year), w.Date, data)
			}
			for _, ref := range touchedBuckets(chunk) {
				pipe.HSet(ctx, bucketKey(ref.key, ref.year), updatedAtField, now)
				pipe.SAdd(ctx, yearSetKey(ref.key), strconv.Itoa(ref.year))
			}
			_, err := pipe.Exec(ctx)
			return err
		}

		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 200 * time.Millisecond
		bo.MaxInterval = 2 * time.Second
		if err := backoff.Retry(commit, backoff.WithContext(backoff.WithMaxRetries(bo, 2), ctx)); err != nil {
			return fmt.Errorf("%w: commit bucket batch: %v", domain.ErrStoreWrite, err)
		}
		s.metrics.BucketWriteBatch.Observe(float64(len(chunk)))
	}
	return nil
}

// GetBucket loads one year bucket. A missing bucket returns an empty bucket,
// not an error.
func (s *Store) GetBucket(ctx context.Context, key identity.Key, year int) (domain.DailyMeanBucket, error) {
	fields, err := s.rdb.HGetAll(ctx, bucketKey(key, year)).Result()
	if err != nil {
		return domain.DailyMeanBucket{}, fmt.Errorf("get bucket %s/%d: %w", key, year, err)
	}

	bucket := domain.NewDailyMeanBucket(year)
	for field, raw := range fields {
		if strings.HasPrefix(field, "_") {
			if field == updatedAtField {
				if ts, err := time.Parse(time.RFC3339, raw); err == nil {
					bucket.UpdatedAt = ts
				}
			}
			continue
		}
		var reading domain.DailyReading
		if err := json.Unmarshal([]byte(raw), &reading); err != nil {
			s.logger.Warn("skipping undecodable daily reading",
				"key", key, "year", year, "date", field, "error", err)
			continue
		}
		bucket.DailyReadings[field] = reading
	}
	return *bucket, nil
}

// Years returns the years for which the station has a bucket, ascending.
func (s *Store) Years(ctx context.Context, key identity.Key) ([]int, error) {
	members, err := s.rdb.SMembers(ctx, yearSetKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("list years %s: %w", key, err)
	}
	years := make([]int, 0, len(members))
	for _, m := range members {
		y, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		years = append(years, y)
	}
	sort.Ints(years)
	return years, nil
}

// HasBuckets reports whether any historical data has ever been written for
// the station. Used to route stations to full backfill versus incremental
// sync.
func (s *Store) HasBuckets(ctx context.Context, key identity.Key) (bool, error) {
	n, err := s.rdb.SCard(ctx, yearSetKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("count years %s: %w", key, err)
	}
	return n > 0, nil
}

// TrimBuckets deletes buckets for years older than keepYears before the
// current year. A zero keepYears disables trimming.
func (s *Store) TrimBuckets(ctx context.Context, key identity.Key, keepYears int) error {
	if keepYears <= 0 {
		return nil
	}
	cutoff := domain.Now().Year() - keepYears

	years, err := s.Years(ctx, key)
	if err != nil {
		return err
	}
	for _, y := range years {
		if y >= cutoff {
			continue
		}
		pipe := s.rdb.TxPipeline()
		pipe.Del(ctx, bucketKey(key, y))
		pipe.SRem(ctx, yearSetKey(key), strconv.Itoa(y))
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("%w: trim bucket %s/%d: %v", domain.ErrStoreWrite, key, y, err)
		}
		s.logger.Info("trimmed expired bucket", "key", key, "year", y)
	}
	return nil
}
