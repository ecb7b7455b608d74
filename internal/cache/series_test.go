// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package cache

import (
	"testing"
	"time"

	"github.com/koenoe/tvseri.es-sub003/internal/models"
)

func TestTieredSeriesCacheLRUOnly(t *testing.T) {
	c := NewTieredSeriesCache(10, time.Minute, nil)

	if _, ok := c.Get(42); ok {
		t.Error("expected miss on empty cache")
	}

	c.Set(&models.Series{ID: 42, Title: "Example Show", AiredEpisodeCount: 10})

	series, ok := c.Get(42)
	if !ok {
		t.Fatal("expected hit after set")
	}
	if series.Title != "Example Show" || series.AiredEpisodeCount != 10 {
		t.Errorf("unexpected series: %+v", series)
	}
}

func TestTieredSeriesCacheBadgerPromotion(t *testing.T) {
	store, err := NewBadgerStore(t.TempDir(), time.Minute)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	defer store.Close()

	c := NewTieredSeriesCache(10, time.Minute, store)
	c.Set(&models.Series{ID: 7, Title: "Persistent Show", Status: models.SeriesStatusReturning})

	// Drop the LRU tier; the badger tier must still answer and repopulate it.
	c.lru.Purge()

	series, ok := c.Get(7)
	if !ok {
		t.Fatal("expected badger tier hit after LRU purge")
	}
	if series.Status != models.SeriesStatusReturning {
		t.Errorf("unexpected status %q", series.Status)
	}

	if _, ok := c.lru.Get(seriesKey(7)); !ok {
		t.Error("expected badger hit to be promoted into LRU")
	}
}

func TestTieredSeriesCacheNilSeries(t *testing.T) {
	c := NewTieredSeriesCache(10, time.Minute, nil)
	c.Set(nil) // must not panic
	if _, ok := c.Get(0); ok {
		t.Error("expected miss for zero id")
	}
}
