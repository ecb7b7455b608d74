// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/koenoe/tvseri.es-sub003/internal/logging"
	"github.com/koenoe/tvseri.es-sub003/internal/metrics"
	"github.com/koenoe/tvseri.es-sub003/internal/models"
)

// CircuitBreakerClient wraps a Client with circuit breaker protection
// so a degraded catalog cannot stall the whole pipeline. ErrNotFound is
// not counted as a breaker failure: a missing series is a valid answer.
type CircuitBreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker[any]
	name   string
}

// NewCircuitBreakerClient wraps client with a circuit breaker. The
// breaker opens at a 60% failure rate over at least 10 requests and
// probes recovery after 2 minutes.
func NewCircuitBreakerClient(client Client) *CircuitBreakerClient {
	cbName := "catalog-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // closed

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("Opening catalog circuit")
			}
			return shouldTrip
		},

		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().
				Str("from", fromStr).
				Str("to", toStr).
				Msg("Catalog circuit state transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &CircuitBreakerClient{
		client: client,
		cb:     cb,
		name:   cbName,
	}
}

// FetchSeries returns series facts with circuit breaker protection.
func (cbc *CircuitBreakerClient) FetchSeries(ctx context.Context, seriesID int64) (*models.Series, error) {
	return castResult[models.Series](cbc.cb.Execute(func() (any, error) {
		return cbc.client.FetchSeries(ctx, seriesID)
	}))
}

// FetchEpisode returns one episode with circuit breaker protection.
func (cbc *CircuitBreakerClient) FetchEpisode(ctx context.Context, seriesID int64, season, episode int) (*models.Episode, error) {
	return castResult[models.Episode](cbc.cb.Execute(func() (any, error) {
		return cbc.client.FetchEpisode(ctx, seriesID, season, episode)
	}))
}

// SearchSeries performs a fuzzy title search with circuit breaker
// protection.
func (cbc *CircuitBreakerClient) SearchSeries(ctx context.Context, title string, year int) ([]models.Series, error) {
	result, err := cbc.cb.Execute(func() (any, error) {
		return cbc.client.SearchSeries(ctx, title, year)
	})
	if err != nil {
		return nil, err
	}
	typed, ok := result.([]models.Series)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// FindByExternalID looks up episodes by external ID with circuit
// breaker protection.
func (cbc *CircuitBreakerClient) FindByExternalID(ctx context.Context, source models.ExternalIDSource, id string) (*models.ExternalIDMatch, error) {
	return castResult[models.ExternalIDMatch](cbc.cb.Execute(func() (any, error) {
		return cbc.client.FindByExternalID(ctx, source, id)
	}))
}

func castResult[T any](result any, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	typed, ok := result.(*T)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
