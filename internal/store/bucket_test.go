package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverwatch/hydrosync/internal/domain"
	"github.com/riverwatch/hydrosync/internal/identity"
)

func makeWrites(n int) []BucketWrite {
	key := identity.NewKey("environment_canada", "08GA072")
	writes := make([]BucketWrite, n)
	for i := range writes {
		writes[i] = BucketWrite{
			Key:     key,
			Year:    2025,
			Date:    fmt.Sprintf("2025-01-%02d", i%28+1),
			Reading: domain.DailyReading{MeanLevel: domain.Float(1.0)},
		}
	}
	return writes
}

func TestChunkWrites(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		limit     int
		wantSizes []int
	}{
		{"empty", 0, 500, nil},
		{"single partial chunk", 10, 500, []int{10}},
		{"exactly one chunk", 500, 500, []int{500}},
		{"one over the limit", 501, 500, []int{500, 1}},
		{"several full chunks", 1500, 500, []int{500, 500, 500}},
		{"full plus remainder", 1203, 500, []int{500, 500, 203}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := chunkWrites(makeWrites(tt.total), tt.limit)

			require.Len(t, chunks, len(tt.wantSizes))
			seen := 0
			for i, chunk := range chunks {
				assert.Len(t, chunk, tt.wantSizes[i])
				seen += len(chunk)
			}
			assert.Equal(t, tt.total, seen, "no write may be dropped or duplicated")
		})
	}
}

func TestChunkWritesPreservesOrder(t *testing.T) {
	writes := makeWrites(1203)
	chunks := chunkWrites(writes, 500)

	i := 0
	for _, chunk := range chunks {
		for _, w := range chunk {
			assert.Equal(t, writes[i].Date, w.Date)
			i++
		}
	}
}

func TestTouchedBuckets(t *testing.T) {
	ec := identity.NewKey("environment_canada", "08GA072")
	usgs := identity.NewKey("usgs", "12134500")

	chunk := []BucketWrite{
		{Key: ec, Year: 2024, Date: "2024-12-30"},
		{Key: ec, Year: 2024, Date: "2024-12-31"},
		{Key: ec, Year: 2025, Date: "2025-01-01"},
		{Key: usgs, Year: 2025, Date: "2025-01-01"},
		{Key: ec, Year: 2024, Date: "2024-12-29"},
	}

	refs := touchedBuckets(chunk)

	assert.Equal(t, []bucketRef{
		{key: ec, year: 2024},
		{key: ec, year: 2025},
		{key: usgs, year: 2025},
	}, refs, "metadata is written once per bucket, in first-seen order")
}

func TestKeyLayout(t *testing.T) {
	key := identity.NewKey("environment_canada", "08GA072")

	assert.Equal(t, "stations:environment_canada_08GA072", stationKey(key))
	assert.Equal(t, "stations:environment_canada_08GA072:years", yearSetKey(key))
	assert.Equal(t, "station_current:environment_canada_08GA072", currentKey(key))
	assert.Equal(t, "stations:environment_canada_08GA072:readings:2025", bucketKey(key, 2025))
}
