// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

// Package users implements the user directory and the follow graph.
// Follow counters on the user row are maintained by the follow counter
// maintainer from change events, not by the edge writes themselves.
package users

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/koenoe/tvseri.es-sub003/internal/database"
	"github.com/koenoe/tvseri.es-sub003/internal/eventprocessor"
	"github.com/koenoe/tvseri.es-sub003/internal/models"
)

// DefaultPageSize bounds directory pagination when no limit is given.
const DefaultPageSize = 100

// EventPublisher is the change-event sink. Satisfied by
// eventprocessor.Publisher.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, v any, partitionKey, eventType string) error
}

// Store reads and writes users and follow edges.
type Store struct {
	db        *sql.DB
	publisher EventPublisher

	now func() time.Time
}

// NewStore creates a user store. publisher may be nil, which disables
// follow change events.
func NewStore(db *database.DB, publisher EventPublisher) *Store {
	return &Store{
		db:        db.Conn(),
		publisher: publisher,
		now:       time.Now,
	}
}

// Create inserts a new user. A zero ID gets a fresh UUID.
func (s *Store) Create(ctx context.Context, user *models.User) error {
	if user.Username == "" {
		return fmt.Errorf("user: missing username")
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, created_at) VALUES (?, ?, ?)`,
		user.ID, user.Username, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create user %s: %w", user.Username, err)
	}
	return nil
}

// Get returns a user by ID, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*models.User, error) {
	return s.getBy(ctx, "id", id)
}

// GetByUsername returns a user by username, or nil when absent.
func (s *Store) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getBy(ctx, "username", username)
}

func (s *Store) getBy(ctx context.Context, column, value string) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, username, created_at, follower_count, following_count
		FROM users WHERE %s = ?`, column),
		value,
	).Scan(&user.ID, &user.Username, &user.CreatedAt, &user.FollowerCount, &user.FollowingCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by %s: %w", column, err)
	}
	return &user, nil
}

// List returns one page of the user directory ordered by ID, with a
// cursor for the next page. The sweep scheduler walks the whole
// directory through this method.
func (s *Store) List(ctx context.Context, cursor string, limit int) (*models.UserPage, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, created_at, follower_count, following_count
		FROM users
		WHERE id > ?
		ORDER BY id
		LIMIT ?`,
		cursor, limit+1,
	)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var page models.UserPage
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username, &user.CreatedAt, &user.FollowerCount, &user.FollowingCount); err != nil {
			return nil, err
		}
		page.Users = append(page.Users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(page.Users) > limit {
		page.Users = page.Users[:limit]
		page.Cursor = page.Users[len(page.Users)-1].ID
	}
	return &page, nil
}

// Follow creates a follow edge. Re-following an existing edge is a
// no-op and emits no event, so redelivered requests cannot inflate
// counters.
func (s *Store) Follow(ctx context.Context, followerID, followingID string) error {
	if followerID == followingID {
		return fmt.Errorf("user %s cannot follow themselves", followerID)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO follows (follower_id, following_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (follower_id, following_id) DO NOTHING`,
		followerID, followingID, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("create follow edge %s->%s: %w", followerID, followingID, err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("follow edge rows affected: %w", err)
	}
	if inserted == 0 {
		return nil
	}

	return s.emit(ctx, models.FollowChangeEvent{
		EventID:     uuid.New().String(),
		Type:        models.ChangeInsert,
		FollowerID:  followerID,
		FollowingID: followingID,
		EmittedAt:   s.now().UTC(),
	})
}

// Unfollow removes a follow edge. Removing an absent edge is a no-op
// and emits no event.
func (s *Store) Unfollow(ctx context.Context, followerID, followingID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM follows WHERE follower_id = ? AND following_id = ?`,
		followerID, followingID,
	)
	if err != nil {
		return fmt.Errorf("delete follow edge %s->%s: %w", followerID, followingID, err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unfollow rows affected: %w", err)
	}
	if deleted == 0 {
		return nil
	}

	return s.emit(ctx, models.FollowChangeEvent{
		EventID:     uuid.New().String(),
		Type:        models.ChangeRemove,
		FollowerID:  followerID,
		FollowingID: followingID,
		EmittedAt:   s.now().UTC(),
	})
}

// IsFollowing reports whether the edge exists.
func (s *Store) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM follows WHERE follower_id = ? AND following_id = ?`,
		followerID, followingID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check follow edge: %w", err)
	}
	return n > 0, nil
}

// CounterDelta is one user's pending counter adjustment, grouped by the
// follow counter maintainer before applying.
type CounterDelta struct {
	Followers int64
	Following int64
}

// ApplyCounterDeltas applies grouped counter adjustments in one
// transaction. Counters are clamped at zero: duplicate REMOVE delivery
// must not drive them negative.
func (s *Store) ApplyCounterDeltas(ctx context.Context, deltas map[string]CounterDelta) error {
	if len(deltas) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin counter transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for userID, delta := range deltas {
		_, err := tx.ExecContext(ctx, `
			UPDATE users SET
				follower_count  = GREATEST(0, follower_count + ?),
				following_count = GREATEST(0, following_count + ?)
			WHERE id = ?`,
			delta.Followers, delta.Following, userID,
		)
		if err != nil {
			return fmt.Errorf("apply counter delta for %s: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit counter transaction: %w", err)
	}
	return nil
}

// RecountFollows returns the authoritative edge counts for one user.
// Exposed so drift between materialized counters and the edge table can
// be measured.
func (s *Store) RecountFollows(ctx context.Context, userID string) (followers, following int64, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM follows WHERE following_id = ?),
			(SELECT COUNT(*) FROM follows WHERE follower_id = ?)`,
		userID, userID,
	).Scan(&followers, &following)
	if err != nil {
		return 0, 0, fmt.Errorf("recount follows for %s: %w", userID, err)
	}
	return followers, following, nil
}

func (s *Store) emit(ctx context.Context, event models.FollowChangeEvent) error {
	if s.publisher == nil {
		return nil
	}
	key := event.FollowerID + "#" + event.FollowingID
	if err := s.publisher.PublishEvent(ctx, eventprocessor.TopicFollowChanges, event, key, "follow_change"); err != nil {
		return fmt.Errorf("publish follow event %s: %w", event.EventID, err)
	}
	return nil
}
