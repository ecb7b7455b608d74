// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

// Package catalog provides the read-only client for the series catalog
// API. The catalog is the sole authority for aired-episode counts and
// episode identity; nothing in this package writes to it.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/koenoe/tvseri.es-sub003/internal/config"
	"github.com/koenoe/tvseri.es-sub003/internal/metrics"
	"github.com/koenoe/tvseri.es-sub003/internal/models"
)

// ErrNotFound is returned when the catalog has no entity for the given
// identifier. Callers distinguish it from transport failures: a missing
// series is a permanent condition, an unreachable catalog is not.
var ErrNotFound = errors.New("catalog: not found")

// maxErrorBodySize caps how much of an error response body is read for
// diagnostics.
const maxErrorBodySize = 64 * 1024

// Client is the catalog lookup surface used by the reconcilers and the
// scrobble resolver.
type Client interface {
	// FetchSeries returns the series facts for the given catalog ID.
	FetchSeries(ctx context.Context, seriesID int64) (*models.Series, error)

	// FetchEpisode returns one episode by series, season and episode number.
	FetchEpisode(ctx context.Context, seriesID int64, season, episode int) (*models.Episode, error)

	// SearchSeries performs a fuzzy title search, optionally narrowed by
	// first-air year (0 means unfiltered).
	SearchSeries(ctx context.Context, title string, year int) ([]models.Series, error)

	// FindByExternalID looks up episodes carrying the given external ID.
	FindByExternalID(ctx context.Context, source models.ExternalIDSource, id string) (*models.ExternalIDMatch, error)
}

// HTTPClient talks to the catalog REST API with client-side rate
// limiting and bounded retries on HTTP 429.
//
// Thread safety: safe for concurrent use; each call builds its own
// request and the limiter is internally synchronized.
type HTTPClient struct {
	baseURL        string
	apiKey         string
	client         *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewHTTPClient creates a catalog client from configuration.
func NewHTTPClient(cfg *config.CatalogConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPClient{
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		client:         &http.Client{Timeout: timeout},
		limiter:        rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		maxRetries:     5,
		retryBaseDelay: time.Second,
	}
}

// FetchSeries returns the series facts for the given catalog ID.
func (c *HTTPClient) FetchSeries(ctx context.Context, seriesID int64) (*models.Series, error) {
	path := fmt.Sprintf("/series/%d", seriesID)
	return doGet[models.Series](ctx, c, "fetch_series", path, nil)
}

// FetchEpisode returns one episode by series, season and episode number.
func (c *HTTPClient) FetchEpisode(ctx context.Context, seriesID int64, season, episode int) (*models.Episode, error) {
	path := fmt.Sprintf("/series/%d/season/%d/episode/%d", seriesID, season, episode)
	return doGet[models.Episode](ctx, c, "fetch_episode", path, nil)
}

// SearchSeries performs a fuzzy title search against the catalog.
func (c *HTTPClient) SearchSeries(ctx context.Context, title string, year int) ([]models.Series, error) {
	params := url.Values{}
	params.Set("query", title)
	if year > 0 {
		params.Set("first_air_year", strconv.Itoa(year))
	}

	result, err := doGet[searchResponse](ctx, c, "search_series", "/search/series", params)
	if err != nil {
		return nil, err
	}
	return result.Results, nil
}

// FindByExternalID looks up episodes carrying the given external ID.
func (c *HTTPClient) FindByExternalID(ctx context.Context, source models.ExternalIDSource, id string) (*models.ExternalIDMatch, error) {
	params := url.Values{}
	params.Set("source", string(source))

	path := "/find/" + url.PathEscape(id)
	return doGet[models.ExternalIDMatch](ctx, c, "find_external_id", path, params)
}

type searchResponse struct {
	Results []models.Series `json:"results"`
}

// doGet issues a rate-limited GET and decodes the JSON response into T.
// HTTP 429 responses are retried with exponential backoff up to
// maxRetries; 404 maps to ErrNotFound.
func doGet[T any](ctx context.Context, c *HTTPClient, operation, path string, params url.Values) (*T, error) {
	start := time.Now()
	result, err := getWithRetry[T](ctx, c, path, params)
	metrics.ObserveCatalogRequest(operation, time.Since(start), err)
	return result, err
}

func getWithRetry[T any](ctx context.Context, c *HTTPClient, path string, params url.Values) (*T, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryBaseDelay * (1 << (attempt - 1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, retryable, err := c.getOnce(ctx, path, params)
		if err == nil {
			var v T
			if err := json.Unmarshal(result, &v); err != nil {
				return nil, fmt.Errorf("decode catalog response for %s: %w", path, err)
			}
			return &v, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("catalog request %s exhausted retries: %w", path, lastErr)
}

// getOnce performs a single request. The second return value reports
// whether the failure is worth retrying (only rate limiting is).
func (c *HTTPClient) getOnce(ctx context.Context, path string, params url.Values) ([]byte, bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, false, fmt.Errorf("catalog rate limiter: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("catalog request %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, fmt.Errorf("read catalog response: %w", err)
		}
		return body, false, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("catalog rate limited on %s", path)
	default:
		body := readBodyForError(resp.Body)
		return nil, false, fmt.Errorf("catalog %s returned %d: %s", path, resp.StatusCode, body)
	}
}

func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	return body
}
