// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package reconcile

import (
	"context"
	"time"

	"github.com/koenoe/tvseri.es-sub003/internal/cache"
	"github.com/koenoe/tvseri.es-sub003/internal/catalog"
	"github.com/koenoe/tvseri.es-sub003/internal/models"
)

// WatchedCounter exposes the ledger's authoritative count query.
// Satisfied by ledger.Store.
type WatchedCounter interface {
	Count(ctx context.Context, userID string, seriesID int64) (int, error)
	LastWatchedAt(ctx context.Context, userID string, seriesID int64) (time.Time, error)
}

// ListStore is the membership surface the reconcilers mutate.
// Satisfied by lists.Store.
type ListStore interface {
	Upsert(ctx context.Context, userID, listID string, item *models.ListItem) error
	Remove(ctx context.Context, userID, listID string, seriesID int64) error
	Membership(ctx context.Context, userID string, seriesID int64) (map[string]bool, error)
	List(ctx context.Context, userID, listID, cursor string, limit int) (*models.ListPage, error)
}

// SeriesSource resolves series facts, typically through the tiered
// cache in front of the catalog client.
type SeriesSource interface {
	Series(ctx context.Context, seriesID int64) (*models.Series, error)
}

// CachedSeriesSource reads through the series cache and falls back to
// the catalog. Not a correctness dependency: a cold cache only costs a
// catalog round trip.
type CachedSeriesSource struct {
	cache  cache.SeriesCache
	client catalog.Client
}

// NewCachedSeriesSource builds a series source. cache may be nil.
func NewCachedSeriesSource(c cache.SeriesCache, client catalog.Client) *CachedSeriesSource {
	return &CachedSeriesSource{cache: c, client: client}
}

// Series returns series facts, consulting the cache first.
func (s *CachedSeriesSource) Series(ctx context.Context, seriesID int64) (*models.Series, error) {
	if s.cache != nil {
		if series, ok := s.cache.Get(seriesID); ok {
			return series, nil
		}
	}

	series, err := s.client.FetchSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(series)
	}
	return series, nil
}
