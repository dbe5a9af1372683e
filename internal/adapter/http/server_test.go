package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/riverwatch/hydrosync/internal/adapter/http"
	"github.com/riverwatch/hydrosync/internal/domain"
	"github.com/riverwatch/hydrosync/internal/identity"
	"github.com/riverwatch/hydrosync/internal/query"
	"github.com/riverwatch/hydrosync/internal/register"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(context.Context) error { return m.err }

type mockQueries struct {
	current map[string]query.Current
	means   []domain.DailyMean
	updates chan domain.CurrentReading
}

func (m *mockQueries) CurrentReading(_ context.Context, rawID string) (query.Current, bool) {
	c, ok := m.current[string(identity.Normalize(rawID))]
	return c, ok
}

func (m *mockQueries) DailyMeans(context.Context, string, int) ([]domain.DailyMean, error) {
	return m.means, nil
}

func (m *mockQueries) WatchCurrent(context.Context, string) (<-chan domain.CurrentReading, error) {
	return m.updates, nil
}

type mockRegistrar struct {
	key identity.Key
	err error
}

func (m *mockRegistrar) Register(_ context.Context, principal register.Principal, _ register.Draft) (identity.Key, error) {
	if !principal.Admin {
		return "", fmt.Errorf("%w: %s", domain.ErrUnauthorized, principal.Name)
	}
	return m.key, m.err
}

func (m *mockRegistrar) Deactivate(_ context.Context, principal register.Principal, _ string) error {
	if !principal.Admin {
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, principal.Name)
	}
	return m.err
}

func newTestServer(q *mockQueries, reg *mockRegistrar, readyErr error) *httpadapter.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httpadapter.NewServer(":0", q, reg, &mockReadiness{err: readyErr}, []string{"ops"}, logger)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&mockQueries{}, &mockRegistrar{}, nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		srv := newTestServer(&mockQueries{}, &mockRegistrar{}, nil)
		rec := httptest.NewRecorder()

		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("not ready", func(t *testing.T) {
		srv := newTestServer(&mockQueries{}, &mockRegistrar{}, errors.New("store unreachable"))
		rec := httptest.NewRecorder()

		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestRegisterStation(t *testing.T) {
	body := `{"provider":"environment_canada","station_id":"08GA072","station_name":"Cheakamus","country":"CA"}`

	t.Run("created", func(t *testing.T) {
		reg := &mockRegistrar{key: identity.NewKey("environment_canada", "08GA072")}
		srv := newTestServer(&mockQueries{}, reg, nil)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/stations", strings.NewReader(body))
		req.Header.Set("X-Principal", "ops")

		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "environment_canada_08GA072", resp["station"])
	})

	t.Run("forbidden without admin principal", func(t *testing.T) {
		srv := newTestServer(&mockQueries{}, &mockRegistrar{}, nil)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/stations", strings.NewReader(body))
		req.Header.Set("X-Principal", "viewer")

		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("bad body", func(t *testing.T) {
		srv := newTestServer(&mockQueries{}, &mockRegistrar{}, nil)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/stations", strings.NewReader("{"))
		req.Header.Set("X-Principal", "ops")

		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown station maps to 404", func(t *testing.T) {
		reg := &mockRegistrar{err: fmt.Errorf("%w: 99ZZ999", domain.ErrUnknownStation)}
		srv := newTestServer(&mockQueries{}, reg, nil)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/stations", strings.NewReader(body))
		req.Header.Set("X-Principal", "ops")

		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDeactivateStation(t *testing.T) {
	srv := newTestServer(&mockQueries{}, &mockRegistrar{}, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/stations/08GA072", nil)
	req.Header.Set("X-Principal", "ops")

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCurrentReadingEndpoint(t *testing.T) {
	q := &mockQueries{current: map[string]query.Current{
		"environment_canada_08GA072": {
			CurrentReading: domain.CurrentReading{
				Code:  "08GA072",
				Level: domain.Float(1.5),
				Trend: domain.TrendRising,
			},
		},
	}}
	srv := newTestServer(q, &mockRegistrar{}, nil)

	t.Run("found via any identifier shape", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/stations/Provider.environmentCanada_08GA072/current", nil)

		srv.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "rising", resp["trend"])
		assert.Equal(t, 1.5, resp["level"])
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/stations/99ZZ999/current", nil)

		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDailyMeansEndpoint(t *testing.T) {
	q := &mockQueries{means: []domain.DailyMean{
		{Date: "2025-01-01", DailyReading: domain.DailyReading{MeanLevel: domain.Float(1.2)}},
	}}
	srv := newTestServer(q, &mockRegistrar{}, nil)

	t.Run("default window", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/stations/08GA072/daily-means", nil)

		srv.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			WindowDays int                `json:"window_days"`
			DailyMeans []domain.DailyMean `json:"daily_means"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 30, resp.WindowDays)
		require.Len(t, resp.DailyMeans, 1)
	})

	t.Run("invalid window", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/stations/08GA072/daily-means?days=0", nil)

		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("no data is an empty list", func(t *testing.T) {
		srv := newTestServer(&mockQueries{}, &mockRegistrar{}, nil)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/stations/08GA072/daily-means", nil)

		srv.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"daily_means":[]`)
	})
}

func TestStreamEndpoint(t *testing.T) {
	updates := make(chan domain.CurrentReading, 1)
	updates <- domain.CurrentReading{Code: "08GA072", Level: domain.Float(1.7)}
	close(updates)

	q := &mockQueries{updates: updates}
	srv := newTestServer(q, &mockRegistrar{}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/stations/08GA072/stream", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `data: {`)
	assert.Contains(t, rec.Body.String(), `"station_id":"08GA072"`)
}
