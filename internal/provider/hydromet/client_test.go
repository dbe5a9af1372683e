package hydromet

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverwatch/hydrosync/internal/domain"
	"github.com/riverwatch/hydrosync/internal/observability"
)

func testClient(baseURL string) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(baseURL, 5*time.Second, logger, observability.NewMetricsForTesting())
}

func TestFetchRealtime(t *testing.T) {
	payload := "STATION_NUMBER,DATETIME,LEVEL,DISCHARGE\n" +
		"08GA072,2025-06-01T12:00:00Z,1.52,30.1\n" +
		"08GA072,2025-06-01T11:00:00Z,1.48,29.7\n"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, realtimePath, r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "08GA072", q.Get("STATION_NUMBER"))
		assert.Equal(t, "csv", q.Get("f"))
		assert.NotEmpty(t, q.Get("datetime"))
		w.Write([]byte(payload))
	}))
	defer server.Close()

	c := testClient(server.URL)
	feed, raw, err := c.FetchRealtime(context.Background(), "08GA072", 720*time.Hour)

	require.NoError(t, err)
	assert.Equal(t, []byte(payload), raw, "raw payload must be kept verbatim")
	require.Len(t, feed.Readings, 2)
	latest, ok := feed.Latest()
	require.True(t, ok)
	assert.Equal(t, 1.52, *latest.Level)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), latest.Timestamp)
}

func TestFetchLatestAll(t *testing.T) {
	// Most-recent-first ordering; the second 08GA072 feature is an older
	// duplicate and must be ignored. The malformed feature is dropped.
	body := `{"features": [
		{"properties": {"STATION_NUMBER": "08GA072", "DATETIME": "2025-06-01T12:00:00Z", "LEVEL": 1.5, "DISCHARGE": 30.0}},
		{"properties": {"STATION_NUMBER": "08GA072", "DATETIME": "2025-06-01T11:00:00Z", "LEVEL": 1.4}},
		{"properties": {"STATION_NUMBER": "05BB001", "DATETIME": "2025-06-01T12:05:00Z", "LEVEL": 2.1}},
		{"properties": {"STATION_NUMBER": "02KF005", "DATETIME": "not-a-time", "LEVEL": 0.9}},
		{"properties": {"STATION_NUMBER": "04HA001", "DATETIME": "2025-06-01T12:00:00Z"}}
	]}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, realtimePath, r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("f"))
		assert.Equal(t, "-DATETIME", r.URL.Query().Get("sortby"))
		w.Write([]byte(body))
	}))
	defer server.Close()

	c := testClient(server.URL)
	samples, err := c.FetchLatestAll(context.Background())

	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, "08GA072", samples[0].Code)
	assert.Equal(t, 1.5, *samples[0].Level)
	assert.NotEmpty(t, samples[0].Raw)
	assert.Equal(t, "05BB001", samples[1].Code)
	assert.Nil(t, samples[1].Discharge)
}

func TestFetchDailyMeans(t *testing.T) {
	body := `{"features": [
		{"properties": {"IDENTIFIER": "08GA072.2025-05-30", "DATE": "2025-05-30", "LEVEL": 1.234, "DISCHARGE": 28.56}},
		{"properties": {"IDENTIFIER": "08GA072.2025-05-31", "DATE": "2025-05-31", "LEVEL": 1.301}},
		{"properties": {"IDENTIFIER": "garbage", "DATE": "2025-06-01", "LEVEL": 9.9}},
		{"properties": {"IDENTIFIER": "08GA072.2025-06-02", "DATE": "2025-06-02"}}
	]}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, dailyMeanPath, r.URL.Path)
		assert.Equal(t, "08GA072", r.URL.Query().Get("STATION_NUMBER"))
		w.Write([]byte(body))
	}))
	defer server.Close()

	c := testClient(server.URL)
	from := time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	daily, err := c.FetchDailyMeans(context.Background(), "08GA072", from, to)

	require.NoError(t, err)
	require.Len(t, daily, 2, "bad identifier and empty record must be dropped")
	assert.Equal(t, 1.234, *daily["2025-05-30"].MeanLevel)
	assert.Equal(t, 28.56, *daily["2025-05-30"].MeanDischarge)
	assert.Nil(t, daily["2025-05-31"].MeanDischarge)
}

func TestLookupStation(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		body := `{"features": [
			{"properties": {"STATION_NUMBER": "08GA072", "STATION_NAME": "CHEAKAMUS RIVER NEAR BRACKENDALE", "PROV_TERR_STATE_LOC": "BC", "STATUS_EN": "Active"}}
		]}`
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, stationsPath, r.URL.Path)
			w.Write([]byte(body))
		}))
		defer server.Close()

		info, err := testClient(server.URL).LookupStation(context.Background(), "08GA072")
		require.NoError(t, err)
		assert.Equal(t, "08GA072", info.Code)
		assert.Equal(t, "CHEAKAMUS RIVER NEAR BRACKENDALE", info.Name)
		assert.Equal(t, "BC", info.Province)
	})

	t.Run("unknown station", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"features": []}`))
		}))
		defer server.Close()

		_, err := testClient(server.URL).LookupStation(context.Background(), "99ZZ999")
		assert.ErrorIs(t, err, domain.ErrUnknownStation)
	})
}

func TestGetRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"features": []}`))
	}))
	defer server.Close()

	c := testClient(server.URL)
	_, err := c.FetchLatestAll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetDoesNotRetryPermanentFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := testClient(server.URL)
	_, err := c.FetchLatestAll(context.Background())

	assert.ErrorIs(t, err, domain.ErrMalformed)
	assert.Equal(t, int32(1), calls.Load())
}
