// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/koenoe/tvseri.es-sub003/internal/database"
	"github.com/koenoe/tvseri.es-sub003/internal/models"
	"github.com/koenoe/tvseri.es-sub003/internal/users"
)

func newFollowFixture(t *testing.T) (*users.Store, *FollowCounterMaintainer) {
	t.Helper()
	db, err := database.NewMemory()
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := users.NewStore(db, nil)
	ctx := context.Background()
	for _, u := range []models.User{
		{ID: "alice", Username: "alice"},
		{ID: "bob", Username: "bob"},
		{ID: "carol", Username: "carol"},
	} {
		user := u
		if err := store.Create(ctx, &user); err != nil {
			t.Fatalf("create user %s: %v", u.ID, err)
		}
	}
	return store, NewFollowCounterMaintainer(store)
}

func followEvent(id, typ, follower, following string) models.FollowChangeEvent {
	return models.FollowChangeEvent{
		EventID:     id,
		Type:        typ,
		FollowerID:  follower,
		FollowingID: following,
		EmittedAt:   time.Now().UTC(),
	}
}

func TestFollowEventIncrementsBothCounters(t *testing.T) {
	store, m := newFollowFixture(t)
	ctx := context.Background()

	err := m.HandleBatch(ctx, []models.FollowChangeEvent{
		followEvent("e1", models.ChangeInsert, "alice", "bob"),
	})
	if err != nil {
		t.Fatalf("HandleBatch: %v", err)
	}

	alice, _ := store.Get(ctx, "alice")
	bob, _ := store.Get(ctx, "bob")
	if alice.FollowingCount != 1 {
		t.Errorf("alice following count = %d, want 1", alice.FollowingCount)
	}
	if bob.FollowerCount != 1 {
		t.Errorf("bob follower count = %d, want 1", bob.FollowerCount)
	}
	if alice.FollowerCount != 0 || bob.FollowingCount != 0 {
		t.Error("counters on the wrong side of the edge moved")
	}
}

func TestFollowBatchGroupsDeltasPerUser(t *testing.T) {
	store, m := newFollowFixture(t)
	ctx := context.Background()

	err := m.HandleBatch(ctx, []models.FollowChangeEvent{
		followEvent("e1", models.ChangeInsert, "alice", "bob"),
		followEvent("e2", models.ChangeInsert, "carol", "bob"),
		followEvent("e3", models.ChangeInsert, "bob", "alice"),
	})
	if err != nil {
		t.Fatalf("HandleBatch: %v", err)
	}

	bob, _ := store.Get(ctx, "bob")
	if bob.FollowerCount != 2 {
		t.Errorf("bob follower count = %d, want 2", bob.FollowerCount)
	}
	if bob.FollowingCount != 1 {
		t.Errorf("bob following count = %d, want 1", bob.FollowingCount)
	}
}

func TestUnfollowEventDecrementsCounters(t *testing.T) {
	store, m := newFollowFixture(t)
	ctx := context.Background()

	err := m.HandleBatch(ctx, []models.FollowChangeEvent{
		followEvent("e1", models.ChangeInsert, "alice", "bob"),
		followEvent("e2", models.ChangeRemove, "alice", "bob"),
	})
	if err != nil {
		t.Fatalf("HandleBatch: %v", err)
	}

	alice, _ := store.Get(ctx, "alice")
	bob, _ := store.Get(ctx, "bob")
	if alice.FollowingCount != 0 || bob.FollowerCount != 0 {
		t.Errorf("counters not back to zero: following=%d followers=%d",
			alice.FollowingCount, bob.FollowerCount)
	}
}

func TestFollowCounterNeverGoesNegative(t *testing.T) {
	store, m := newFollowFixture(t)
	ctx := context.Background()

	// A duplicated REMOVE would drive the counter below zero without the
	// clamp. The drift is measurable via RecountFollows either way.
	err := m.HandleBatch(ctx, []models.FollowChangeEvent{
		followEvent("e1", models.ChangeRemove, "alice", "bob"),
	})
	if err != nil {
		t.Fatalf("HandleBatch: %v", err)
	}

	bob, _ := store.Get(ctx, "bob")
	if bob.FollowerCount != 0 {
		t.Errorf("bob follower count = %d, want clamped 0", bob.FollowerCount)
	}
}

func TestFollowSkipsMalformedEvents(t *testing.T) {
	store, m := newFollowFixture(t)
	ctx := context.Background()

	err := m.HandleBatch(ctx, []models.FollowChangeEvent{
		followEvent("e1", "MUTATE", "alice", "bob"),
		followEvent("e2", models.ChangeInsert, "", "bob"),
		followEvent("e3", models.ChangeInsert, "alice", "bob"),
	})
	if err != nil {
		t.Fatalf("HandleBatch: %v", err)
	}

	bob, _ := store.Get(ctx, "bob")
	if bob.FollowerCount != 1 {
		t.Errorf("bob follower count = %d, want 1 from the single valid event", bob.FollowerCount)
	}
}
