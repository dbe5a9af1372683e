// Package hydromet is the client for the national hydrometric web service:
// realtime samples, daily means, and the station catalog. Requests are
// retried with exponential backoff on transient failures and guarded by a
// circuit breaker so a provider outage fails fast instead of stalling a run.
package hydromet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/riverwatch/hydrosync/internal/domain"
	"github.com/riverwatch/hydrosync/internal/observability"
)

const (
	realtimePath  = "/collections/hydrometric-realtime/items"
	dailyMeanPath = "/collections/hydrometric-daily-mean/items"
	stationsPath  = "/collections/hydrometric-stations/items"

	// pageLimit is the provider's large-result cap, applied to every query.
	pageLimit = 10000

	maxAttempts     = 3
	initialInterval = 500 * time.Millisecond
	maxInterval     = 5 * time.Second
)

// identifierRe validates the daily-mean record identifier "{code}.{date}".
var identifierRe = regexp.MustCompile(`^[0-9A-Z]+\.\d{4}-\d{2}-\d{2}$`)

// Client talks to the hydrometric provider API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a provider client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "hydromet",
		MaxRequests: 5,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    cb,
		logger:     logger,
		metrics:    metrics,
	}
}

// FetchRealtime retrieves the realtime feed for one station over the given
// trailing window as the provider's CSV export. It returns the parsed feed
// and the verbatim payload for provenance.
func (c *Client) FetchRealtime(ctx context.Context, code string, window time.Duration) (domain.FlowFeed, []byte, error) {
	end := domain.Now()
	start := end.Add(-window)

	params := url.Values{
		"STATION_NUMBER": {code},
		"f":              {"csv"},
		"sortby":         {"-DATETIME"},
		"limit":          {fmt.Sprint(pageLimit)},
		"datetime":       {start.Format(time.RFC3339) + "/" + end.Format(time.RFC3339)},
	}

	body, err := c.get(ctx, realtimePath, params)
	if err != nil {
		return domain.FlowFeed{}, nil, err
	}

	feed := ParseFeedPayload(body)
	if feed.Skipped > 0 {
		c.metrics.FeedRowsSkipped.Add(float64(feed.Skipped))
		c.logger.Warn("realtime rows skipped", "station", code, "skipped", feed.Skipped)
	}
	return feed, body, nil
}

// ParseFeedPayload parses a realtime CSV payload. Exposed so clients of the
// persisted feed bundle can re-derive history from the raw fragment.
func ParseFeedPayload(payload []byte) domain.FlowFeed {
	return domain.ParseFlowFeed(payload)
}

// FetchLatestAll retrieves the most recent sample for every station the
// provider carries in one bulk call (no station filter, most-recent-first),
// keeping only the first sample seen per station. Callers filter the result
// to the tracked set; this converts O(stations) provider calls into O(1).
func (c *Client) FetchLatestAll(ctx context.Context) ([]LatestSample, error) {
	end := domain.Now()
	start := end.Add(-24 * time.Hour)

	params := url.Values{
		"f":        {"json"},
		"sortby":   {"-DATETIME"},
		"limit":    {fmt.Sprint(pageLimit)},
		"datetime": {start.Format(time.RFC3339) + "/" + end.Format(time.RFC3339)},
	}

	body, err := c.get(ctx, realtimePath, params)
	if err != nil {
		return nil, err
	}

	var fc featureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, fmt.Errorf("%w: decode bulk realtime response: %v", domain.ErrMalformed, err)
	}

	seen := make(map[string]struct{})
	samples := make([]LatestSample, 0, len(fc.Features))
	for _, raw := range fc.Features {
		var f realtimeFeature
		if err := json.Unmarshal(raw, &f); err != nil {
			c.logger.Warn("dropping malformed realtime feature", "error", err)
			continue
		}
		p := f.Properties
		if p.StationNumber == "" {
			continue
		}
		if _, dup := seen[p.StationNumber]; dup {
			continue // sorted most-recent-first; first wins
		}
		if p.Level == nil && p.Discharge == nil {
			continue
		}
		ts, err := time.Parse(time.RFC3339, p.Datetime)
		if err != nil {
			c.logger.Warn("dropping realtime feature with bad datetime",
				"station", p.StationNumber, "datetime", p.Datetime)
			continue
		}
		seen[p.StationNumber] = struct{}{}
		samples = append(samples, LatestSample{
			Code:      p.StationNumber,
			Timestamp: ts.UTC(),
			Level:     p.Level,
			Discharge: p.Discharge,
			Raw:       raw,
		})
	}
	return samples, nil
}

// FetchDailyMeans retrieves official daily means for one station between
// from and to (inclusive), keyed by ISO date. Records whose identifier does
// not match the expected "{code}.{YYYY-MM-DD}" form are dropped with a
// warning, never fatal to the run.
func (c *Client) FetchDailyMeans(ctx context.Context, code string, from, to time.Time) (map[string]domain.DailyReading, error) {
	params := url.Values{
		"STATION_NUMBER": {code},
		"f":              {"json"},
		"sortby":         {"DATE"},
		"limit":          {fmt.Sprint(pageLimit)},
		"datetime": {from.UTC().Format(domain.DateLayout) + "T00:00:00Z/" +
			to.UTC().Format(domain.DateLayout) + "T23:59:59Z"},
	}

	body, err := c.get(ctx, dailyMeanPath, params)
	if err != nil {
		return nil, err
	}

	var fc featureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, fmt.Errorf("%w: decode daily-mean response: %v", domain.ErrMalformed, err)
	}

	daily := make(map[string]domain.DailyReading, len(fc.Features))
	for _, raw := range fc.Features {
		var f dailyMeanFeature
		if err := json.Unmarshal(raw, &f); err != nil {
			c.logger.Warn("dropping malformed daily-mean feature", "station", code, "error", err)
			continue
		}
		p := f.Properties
		if !identifierRe.MatchString(p.Identifier) {
			c.logger.Warn("dropping daily-mean record with unexpected identifier",
				"station", code, "identifier", p.Identifier)
			continue
		}
		if p.Date == "" || (p.Level == nil && p.Discharge == nil) {
			continue
		}
		daily[p.Date] = domain.DailyReading{
			MeanLevel:     p.Level,
			MeanDischarge: p.Discharge,
		}
	}
	return daily, nil
}

// LookupStation verifies a station code against the provider catalog.
// Returns domain.ErrUnknownStation when the code does not exist.
func (c *Client) LookupStation(ctx context.Context, code string) (*StationInfo, error) {
	params := url.Values{
		"STATION_NUMBER": {code},
		"f":              {"json"},
		"limit":          {"1"},
	}

	body, err := c.get(ctx, stationsPath, params)
	if err != nil {
		return nil, err
	}

	var fc featureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, fmt.Errorf("%w: decode station catalog response: %v", domain.ErrMalformed, err)
	}
	if len(fc.Features) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownStation, code)
	}

	var f stationFeature
	if err := json.Unmarshal(fc.Features[0], &f); err != nil {
		return nil, fmt.Errorf("%w: decode station catalog feature: %v", domain.ErrMalformed, err)
	}
	return &StationInfo{
		Code:     f.Properties.StationNumber,
		Name:     f.Properties.StationName,
		Province: f.Properties.Province,
		Status:   f.Properties.Status,
	}, nil
}

// get executes one provider request with retry, backoff, and the circuit
// breaker. Transient failures (network errors, 5xx, 429) are retried up to
// maxAttempts; anything else is permanent.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	fullURL := c.baseURL + path + "?" + params.Encode()
	endpoint := endpointLabel(path)
	start := time.Now()

	var body []byte
	operation := func() error {
		result, err := c.breaker.Execute(func() (any, error) {
			return c.doRequest(ctx, fullURL)
		})
		if err != nil {
			if gobreakerOpen(err) {
				return backoff.Permanent(fmt.Errorf("%w: circuit open: %v", domain.ErrTransient, err))
			}
			return err
		}
		body = result.([]byte)
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialInterval
	bo.MaxInterval = maxInterval

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, maxAttempts-1), ctx))
	c.metrics.ProviderAPIDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.ProviderRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, err
	}
	c.metrics.ProviderRequests.WithLabelValues(endpoint, "success").Inc()
	return body, nil
}

func endpointLabel(path string) string {
	switch path {
	case realtimePath:
		return "realtime"
	case dailyMeanPath:
		return "daily_mean"
	case stationsPath:
		return "stations"
	default:
		return "other"
	}
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: provider status %d", domain.ErrTransient, resp.StatusCode)
	default:
		return nil, backoff.Permanent(fmt.Errorf("%w: provider status %d", domain.ErrMalformed, resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrTransient, err)
	}
	return body, nil
}

func gobreakerOpen(err error) bool {
	return err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests
}
