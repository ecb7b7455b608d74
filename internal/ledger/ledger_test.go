// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/koenoe/tvseri.es-sub003/internal/database"
	"github.com/koenoe/tvseri.es-sub003/internal/models"
)

type capturingPublisher struct {
	events []models.WatchedChangeEvent
	keys   []string
}

func (p *capturingPublisher) PublishEvent(_ context.Context, topic string, v any, partitionKey, _ string) error {
	event, ok := v.(models.WatchedChangeEvent)
	if !ok {
		return nil
	}
	p.events = append(p.events, event)
	p.keys = append(p.keys, partitionKey)
	return nil
}

func newTestStore(t *testing.T) (*Store, *capturingPublisher) {
	t.Helper()
	db, err := database.NewMemory()
	if err != nil {
		t.Fatalf("open in-memory database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	pub := &capturingPublisher{}
	return NewStore(db, pub), pub
}

func testRecord(season, episode int) *models.WatchedRecord {
	return &models.WatchedRecord{
		UserID:        "user-1",
		SeriesID:      1399,
		SeasonNumber:  season,
		EpisodeNumber: episode,
		WatchedAt:     time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC),
		Runtime:       58,
		Provider:      &models.PlexWatchProvider,
		SeriesTitle:   "Game of Thrones",
		SeriesSlug:    "game-of-thrones",
	}
}

func TestUpsertEmitsInsertEvent(t *testing.T) {
	store, pub := newTestStore(t)
	ctx := context.Background()

	rec := testRecord(1, 1)
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if len(pub.events) != 1 {
		t.Fatalf("events = %d, want 1", len(pub.events))
	}
	event := pub.events[0]
	if event.Type != models.ChangeInsert {
		t.Errorf("Type = %q", event.Type)
	}
	if event.Before != nil {
		t.Error("fresh insert should have no before image")
	}
	if event.After == nil || event.After.Key() != rec.Key() {
		t.Errorf("After = %+v", event.After)
	}
	if pub.keys[0] != rec.Key() {
		t.Errorf("partition key = %q, want %q", pub.keys[0], rec.Key())
	}
}

func TestUpsertOverwriteIsIdempotent(t *testing.T) {
	store, pub := newTestStore(t)
	ctx := context.Background()

	rec := testRecord(1, 1)
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}

	rec2 := testRecord(1, 1)
	rec2.WatchedAt = rec.WatchedAt.Add(time.Hour)
	if err := store.Upsert(ctx, rec2); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	count, err := store.Count(ctx, "user-1", 1399)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1 (overwrite must not append)", count)
	}

	if len(pub.events) != 2 {
		t.Fatalf("events = %d, want 2", len(pub.events))
	}
	if pub.events[1].Before == nil {
		t.Error("overwrite should carry the before image")
	}

	got, err := store.Get(ctx, "user-1", 1399, 1, 1)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.WatchedAt.Equal(rec2.WatchedAt) {
		t.Errorf("WatchedAt = %v, want %v", got.WatchedAt, rec2.WatchedAt)
	}
}

func TestDelete(t *testing.T) {
	store, pub := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, testRecord(1, 1)); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := store.Delete(ctx, "user-1", 1399, 1, 1); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	count, _ := store.Count(ctx, "user-1", 1399)
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}

	if len(pub.events) != 2 {
		t.Fatalf("events = %d, want 2", len(pub.events))
	}
	removal := pub.events[1]
	if removal.Type != models.ChangeRemove {
		t.Errorf("Type = %q", removal.Type)
	}
	if removal.Before == nil || removal.After != nil {
		t.Errorf("REMOVE should carry only before image: %+v", removal)
	}
}

func TestDeleteMissingIsNoop(t *testing.T) {
	store, pub := newTestStore(t)

	if err := store.Delete(context.Background(), "user-1", 1399, 1, 1); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(pub.events) != 0 {
		t.Errorf("events = %d, want 0 (deleting a missing record emits nothing)", len(pub.events))
	}
}

func TestCountDistinctEpisodes(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, ep := range []int{1, 2, 3} {
		if err := store.Upsert(ctx, testRecord(1, ep)); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}
	// Rewatching one episode must not inflate the count.
	if err := store.Upsert(ctx, testRecord(1, 2)); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	count, err := store.Count(ctx, "user-1", 1399)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestWatchedSeriesIDs(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	recA := testRecord(1, 1)
	recB := testRecord(1, 1)
	recB.SeriesID = 95396
	for _, rec := range []*models.WatchedRecord{recA, recB} {
		if err := store.Upsert(ctx, rec); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}

	ids, err := store.WatchedSeriesIDs(ctx, "user-1")
	if err != nil {
		t.Fatalf("WatchedSeriesIDs() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != 1399 || ids[1] != 95396 {
		t.Errorf("ids = %v", ids)
	}
}

func TestValidateRejectsBadRecords(t *testing.T) {
	store, pub := newTestStore(t)

	rec := testRecord(1, 1)
	rec.UserID = ""
	if err := store.Upsert(context.Background(), rec); err == nil {
		t.Fatal("expected validation error")
	}
	if len(pub.events) != 0 {
		t.Error("invalid record must not emit events")
	}
}
