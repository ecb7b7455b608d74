// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package lists

import (
	"context"
	"testing"
	"time"

	"github.com/koenoe/tvseri.es-sub003/internal/database"
	"github.com/koenoe/tvseri.es-sub003/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.NewMemory()
	if err != nil {
		t.Fatalf("open in-memory database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func item(seriesID int64, createdAt time.Time) *models.ListItem {
	return &models.ListItem{
		SeriesID:  seriesID,
		Title:     "Series",
		Slug:      "series",
		CreatedAt: createdAt,
	}
}

func TestUpsertAndContains(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	if err := store.Upsert(ctx, "user-1", models.ListWatchlist, item(1399, now)); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	ok, err := store.Contains(ctx, "user-1", models.ListWatchlist, 1399)
	if err != nil {
		t.Fatalf("Contains() error = %v", err)
	}
	if !ok {
		t.Error("series should be in the watchlist")
	}

	ok, _ = store.Contains(ctx, "user-1", models.ListWatched, 1399)
	if ok {
		t.Error("series should not be in WATCHED")
	}
}

func TestUpsertTwiceKeepsOneEntry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	if err := store.Upsert(ctx, "user-1", models.ListWatched, item(1399, now)); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := store.Upsert(ctx, "user-1", models.ListWatched, item(1399, now.Add(time.Hour))); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	page, err := store.List(ctx, "user-1", models.ListWatched, "", 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(page.Items))
	}
	// Re-adding keeps the original created_at so ordering is stable.
	if !page.Items[0].CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", page.Items[0].CreatedAt, now)
	}
}

func TestRemoveMissingIsNoop(t *testing.T) {
	store := newTestStore(t)
	if err := store.Remove(context.Background(), "user-1", models.ListWatched, 1399); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
}

func TestMembership(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.Upsert(ctx, "user-1", models.ListInProgress, item(1399, now)); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := store.Upsert(ctx, "user-1", models.ListWatchlist, item(1399, now)); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	membership, err := store.Membership(ctx, "user-1", 1399)
	if err != nil {
		t.Fatalf("Membership() error = %v", err)
	}
	if !membership[models.ListInProgress] {
		t.Error("expected IN_PROGRESS membership")
	}
	if membership[models.ListWatched] {
		t.Error("unexpected WATCHED membership")
	}
	// Membership only reports derived lists.
	if membership[models.ListWatchlist] {
		t.Error("watchlist must not appear in derived membership")
	}
}

func TestListPagination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := int64(1); i <= 5; i++ {
		if err := store.Upsert(ctx, "user-1", models.ListFavorites, item(i, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Upsert(%d) error = %v", i, err)
		}
	}

	page1, err := store.List(ctx, "user-1", models.ListFavorites, "", 2)
	if err != nil {
		t.Fatalf("List() page 1 error = %v", err)
	}
	if len(page1.Items) != 2 || page1.Cursor == "" {
		t.Fatalf("page 1 = %d items, cursor %q", len(page1.Items), page1.Cursor)
	}
	// Newest first.
	if page1.Items[0].SeriesID != 5 || page1.Items[1].SeriesID != 4 {
		t.Errorf("page 1 ids = %d, %d", page1.Items[0].SeriesID, page1.Items[1].SeriesID)
	}

	page2, err := store.List(ctx, "user-1", models.ListFavorites, page1.Cursor, 2)
	if err != nil {
		t.Fatalf("List() page 2 error = %v", err)
	}
	if len(page2.Items) != 2 || page2.Items[0].SeriesID != 3 {
		t.Errorf("page 2 = %+v", page2.Items)
	}

	page3, err := store.List(ctx, "user-1", models.ListFavorites, page2.Cursor, 2)
	if err != nil {
		t.Fatalf("List() page 3 error = %v", err)
	}
	if len(page3.Items) != 1 || page3.Cursor != "" {
		t.Errorf("page 3 = %d items, cursor %q (want final page)", len(page3.Items), page3.Cursor)
	}
}

func TestListRejectsMalformedCursor(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.List(context.Background(), "user-1", models.ListFavorites, "not-a-cursor", 10); err == nil {
		t.Fatal("expected cursor error")
	}
}

func TestCustomListLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	list, err := store.CreateCustomList(ctx, "user-1", "Comfort Shows")
	if err != nil {
		t.Fatalf("CreateCustomList() error = %v", err)
	}
	if list.ID == "" {
		t.Fatal("expected ULID")
	}

	if err := store.Upsert(ctx, "user-1", list.ID, item(1399, time.Now().UTC())); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := store.GetCustomList(ctx, "user-1", list.ID)
	if err != nil {
		t.Fatalf("GetCustomList() error = %v", err)
	}
	if got == nil || got.Name != "Comfort Shows" {
		t.Errorf("got = %+v", got)
	}

	// Wrong owner gets nothing.
	other, err := store.GetCustomList(ctx, "user-2", list.ID)
	if err != nil {
		t.Fatalf("GetCustomList() error = %v", err)
	}
	if other != nil {
		t.Error("custom lists must be owner-scoped")
	}

	if err := store.DeleteCustomList(ctx, "user-1", list.ID); err != nil {
		t.Fatalf("DeleteCustomList() error = %v", err)
	}
	ok, _ := store.Contains(ctx, "user-1", list.ID, 1399)
	if ok {
		t.Error("deleting a custom list must delete its items")
	}
}

func TestCreateCustomListRejectsEmptyName(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.CreateCustomList(context.Background(), "user-1", "  "); err == nil {
		t.Fatal("expected name validation error")
	}
}
