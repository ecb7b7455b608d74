// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package cache

import (
	"strconv"
	"time"

	"github.com/koenoe/tvseri.es-sub003/internal/metrics"
	"github.com/koenoe/tvseri.es-sub003/internal/models"
)

// SeriesCache is the injected series-facts cache the reconcilers memoize
// catalog lookups through. Series facts are user-independent, so one
// instance is shared across all handlers of a worker.
type SeriesCache interface {
	Get(seriesID int64) (*models.Series, bool)
	Set(series *models.Series)
}

// TieredSeriesCache layers the in-process LRU over an optional persistent
// Badger tier. The Badger tier may be nil (small deployments).
type TieredSeriesCache struct {
	lru    *LRU[*models.Series]
	badger *BadgerStore
}

// NewTieredSeriesCache builds the tiered cache. Pass nil for store to run
// with the LRU tier alone.
func NewTieredSeriesCache(entries int, ttl time.Duration, store *BadgerStore) *TieredSeriesCache {
	return &TieredSeriesCache{
		lru:    NewLRU[*models.Series](entries, ttl),
		badger: store,
	}
}

// Get looks the series up in the LRU first, then Badger. A Badger hit is
// promoted into the LRU.
func (c *TieredSeriesCache) Get(seriesID int64) (*models.Series, bool) {
	key := seriesKey(seriesID)

	if series, ok := c.lru.Get(key); ok {
		metrics.SeriesCacheHits.WithLabelValues("lru").Inc()
		return series, true
	}

	if c.badger != nil {
		var series models.Series
		if c.badger.Get(key, &series) {
			metrics.SeriesCacheHits.WithLabelValues("badger").Inc()
			c.lru.Set(key, &series)
			return &series, true
		}
	}

	metrics.SeriesCacheMisses.Inc()
	return nil, false
}

// Set stores the series in every configured tier.
func (c *TieredSeriesCache) Set(series *models.Series) {
	if series == nil {
		return
	}
	key := seriesKey(series.ID)
	c.lru.Set(key, series)
	if c.badger != nil {
		c.badger.Set(key, series)
	}
}

func seriesKey(id int64) string {
	return "series:" + strconv.FormatInt(id, 10)
}
