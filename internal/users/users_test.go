// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package users

import (
	"context"
	"testing"

	"github.com/koenoe/tvseri.es-sub003/internal/database"
	"github.com/koenoe/tvseri.es-sub003/internal/models"
)

type capturingPublisher struct {
	events []models.FollowChangeEvent
}

func (p *capturingPublisher) PublishEvent(_ context.Context, _ string, v any, _, _ string) error {
	if event, ok := v.(models.FollowChangeEvent); ok {
		p.events = append(p.events, event)
	}
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

func mustCreate(t *testing.T, store *Store, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username}
	if err := store.Create(context.Background(), user); err != nil {
		t.Fatalf("Create(%s) error = %v", username, err)
	}
	return user
}

func TestCreateAndGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	user := mustCreate(t, store, "koenoe")
	if user.ID == "" {
		t.Fatal("expected generated ID")
	}

	got, err := store.GetByUsername(ctx, "koenoe")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if got == nil || got.ID != user.ID {
		t.Errorf("got = %+v", got)
	}

	missing, err := store.Get(ctx, "nope")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if missing != nil {
		t.Error("missing user should be nil")
	}
}

func TestListPagination(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"alice", "bob", "carol", "dave", "erin"} {
		mustCreate(t, store, name)
	}

	seen := make(map[string]bool)
	cursor := ""
	pages := 0
	for {
		page, err := store.List(ctx, cursor, 2)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		pages++
		for _, u := range page.Users {
			if seen[u.ID] {
				t.Errorf("user %s returned twice", u.Username)
			}
			seen[u.ID] = true
		}
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	if len(seen) != 5 {
		t.Errorf("saw %d users, want 5", len(seen))
	}
	if pages != 3 {
		t.Errorf("pages = %d, want 3", pages)
	}
}

func TestFollowEmitsOnce(t *testing.T) {
	store, pub := newTestStore(t)
	ctx := context.Background()

	alice := mustCreate(t, store, "alice")
	bob := mustCreate(t, store, "bob")

	if err := store.Follow(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("Follow() error = %v", err)
	}
	// Redelivered request: edge already exists, nothing emitted.
	if err := store.Follow(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("second Follow() error = %v", err)
	}

	if len(pub.events) != 1 {
		t.Fatalf("events = %d, want 1", len(pub.events))
	}
	event := pub.events[0]
	if event.Type != models.ChangeInsert || event.FollowerID != alice.ID || event.FollowingID != bob.ID {
		t.Errorf("event = %+v", event)
	}
	if event.Delta() != 1 {
		t.Errorf("Delta() = %d, want 1", event.Delta())
	}

	ok, _ := store.IsFollowing(ctx, alice.ID, bob.ID)
	if !ok {
		t.Error("edge should exist")
	}
}

func TestUnfollowEmitsOnce(t *testing.T) {
	store, pub := newTestStore(t)
	ctx := context.Background()

	alice := mustCreate(t, store, "alice")
	bob := mustCreate(t, store, "bob")

	if err := store.Follow(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("Follow() error = %v", err)
	}
	if err := store.Unfollow(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("Unfollow() error = %v", err)
	}
	if err := store.Unfollow(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("second Unfollow() error = %v", err)
	}

	if len(pub.events) != 2 {
		t.Fatalf("events = %d, want 2", len(pub.events))
	}
	if pub.events[1].Type != models.ChangeRemove {
		t.Errorf("Type = %q", pub.events[1].Type)
	}
	if pub.events[1].Delta() != -1 {
		t.Errorf("Delta() = %d, want -1", pub.events[1].Delta())
	}
}

func TestSelfFollowRejected(t *testing.T) {
	store, _ := newTestStore(t)
	alice := mustCreate(t, store, "alice")

	if err := store.Follow(context.Background(), alice.ID, alice.ID); err == nil {
		t.Fatal("expected self-follow error")
	}
}

func TestApplyCounterDeltas(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	alice := mustCreate(t, store, "alice")
	bob := mustCreate(t, store, "bob")

	err := store.ApplyCounterDeltas(ctx, map[string]CounterDelta{
		alice.ID: {Following: 1},
		bob.ID:   {Followers: 1},
	})
	if err != nil {
		t.Fatalf("ApplyCounterDeltas() error = %v", err)
	}

	gotBob, _ := store.Get(ctx, bob.ID)
	if gotBob.FollowerCount != 1 {
		t.Errorf("bob followers = %d, want 1", gotBob.FollowerCount)
	}
	gotAlice, _ := store.Get(ctx, alice.ID)
	if gotAlice.FollowingCount != 1 {
		t.Errorf("alice following = %d, want 1", gotAlice.FollowingCount)
	}
}

func TestCounterClampAtZero(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	alice := mustCreate(t, store, "alice")

	// Duplicate REMOVE delivery: the counter must not go negative.
	err := store.ApplyCounterDeltas(ctx, map[string]CounterDelta{
		alice.ID: {Followers: -2},
	})
	if err != nil {
		t.Fatalf("ApplyCounterDeltas() error = %v", err)
	}

	got, _ := store.Get(ctx, alice.ID)
	if got.FollowerCount != 0 {
		t.Errorf("followers = %d, want 0", got.FollowerCount)
	}
}

func TestRecountFollows(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	alice := mustCreate(t, store, "alice")
	bob := mustCreate(t, store, "bob")
	carol := mustCreate(t, store, "carol")

	if err := store.Follow(ctx, alice.ID, bob.ID); err != nil {
		t.Fatal(err)
	}
	if err := store.Follow(ctx, carol.ID, bob.ID); err != nil {
		t.Fatal(err)
	}

	followers, following, err := store.RecountFollows(ctx, bob.ID)
	if err != nil {
		t.Fatalf("RecountFollows() error = %v", err)
	}
	if followers != 2 || following != 0 {
		t.Errorf("followers = %d, following = %d", followers, following)
	}
}
