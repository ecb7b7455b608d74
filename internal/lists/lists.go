// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

// Package lists implements per-user list membership storage. The
// derived lists (WATCHED, IN_PROGRESS) are written only by the
// reconcilers; WATCHLIST, FAVORITES and custom lists hold direct user
// intent.
package lists

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/koenoe/tvseri.es-sub003/internal/database"
	"github.com/koenoe/tvseri.es-sub003/internal/models"
)

// DefaultPageSize bounds list reads when the caller does not specify a
// limit.
const DefaultPageSize = 20

// MaxPageSize caps caller-specified limits.
const MaxPageSize = 100

// Store reads and writes list membership. All writes are idempotent on
// (user, list, series).
type Store struct {
	db *sql.DB

	now func() time.Time
}

// NewStore creates a list store.
func NewStore(db *database.DB) *Store {
	return &Store{
		db:  db.Conn(),
		now: time.Now,
	}
}

// Upsert adds or refreshes one series entry in a list. Re-adding an
// existing entry overwrites the snapshot fields but keeps the original
// created_at, so pagination order is stable under redelivery.
func (s *Store) Upsert(ctx context.Context, userID, listID string, item *models.ListItem) error {
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO list_items (user_id, list_id, series_id, title, slug, poster_path, status, created_at, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, list_id, series_id) DO UPDATE SET
			title       = excluded.title,
			slug        = excluded.slug,
			poster_path = excluded.poster_path,
			status      = excluded.status,
			position    = excluded.position`,
		userID, listID, item.SeriesID, item.Title, item.Slug, item.PosterPath, item.Status, createdAt, item.SortPosition,
	)
	if err != nil {
		return fmt.Errorf("upsert list item %s/%s/%d: %w", userID, listID, item.SeriesID, err)
	}
	return nil
}

// Remove deletes one series entry from a list. Removing an absent entry
// is a no-op.
func (s *Store) Remove(ctx context.Context, userID, listID string, seriesID int64) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM list_items WHERE user_id = ? AND list_id = ? AND series_id = ?`,
		userID, listID, seriesID,
	)
	if err != nil {
		return fmt.Errorf("remove list item %s/%s/%d: %w", userID, listID, seriesID, err)
	}
	return nil
}

// Contains reports whether a series is in a list.
func (s *Store) Contains(ctx context.Context, userID, listID string, seriesID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM list_items WHERE user_id = ? AND list_id = ? AND series_id = ?`,
		userID, listID, seriesID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check list membership %s/%s/%d: %w", userID, listID, seriesID, err)
	}
	return n > 0, nil
}

// Membership returns the derived lists (WATCHED, IN_PROGRESS) currently
// holding the series for the user. The reconcilers read this to decide
// which idempotent mutations to apply.
func (s *Store) Membership(ctx context.Context, userID string, seriesID int64) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT list_id FROM list_items
		WHERE user_id = ? AND series_id = ? AND list_id IN (?, ?)`,
		userID, seriesID, models.ListWatched, models.ListInProgress,
	)
	if err != nil {
		return nil, fmt.Errorf("read membership %s/%d: %w", userID, seriesID, err)
	}
	defer func() { _ = rows.Close() }()

	membership := make(map[string]bool, 2)
	for rows.Next() {
		var listID string
		if err := rows.Scan(&listID); err != nil {
			return nil, err
		}
		membership[listID] = true
	}
	return membership, rows.Err()
}

// List returns one page of a list, newest first, with an opaque cursor
// for the next page. limit <= 0 uses DefaultPageSize.
func (s *Store) List(ctx context.Context, userID, listID, cursor string, limit int) (*models.ListPage, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	query := `
		SELECT series_id, title, slug, poster_path, status, created_at, position
		FROM list_items
		WHERE user_id = ? AND list_id = ?`
	args := []any{userID, listID}

	if cursor != "" {
		curAt, curID, err := decodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		query += ` AND (created_at < ? OR (created_at = ? AND series_id < ?))`
		args = append(args, curAt, curAt, curID)
	}

	// Fetch one extra row to detect the last page.
	query += ` ORDER BY created_at DESC, series_id DESC LIMIT ?`
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s/%s: %w", userID, listID, err)
	}
	defer func() { _ = rows.Close() }()

	var items []models.ListItem
	for rows.Next() {
		var item models.ListItem
		if err := rows.Scan(&item.SeriesID, &item.Title, &item.Slug, &item.PosterPath, &item.Status, &item.CreatedAt, &item.SortPosition); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	page := &models.ListPage{}
	if len(items) > limit {
		items = items[:limit]
		last := items[len(items)-1]
		page.Cursor = encodeCursor(last.CreatedAt, last.SeriesID)
	}
	page.Items = items
	return page, nil
}

// CreateCustomList creates a user-defined list and returns it with a
// fresh ULID.
func (s *Store) CreateCustomList(ctx context.Context, userID, name string) (*models.CustomList, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("custom list: empty name")
	}

	now := s.now().UTC()
	list := &models.CustomList{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Name:      name,
		CreatedAt: now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO custom_lists (id, user_id, name, created_at) VALUES (?, ?, ?, ?)`,
		list.ID, list.UserID, list.Name, list.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create custom list: %w", err)
	}
	return list, nil
}

// GetCustomList returns a custom list by ID, scoped to its owner. Nil
// when absent.
func (s *Store) GetCustomList(ctx context.Context, userID, listID string) (*models.CustomList, error) {
	var list models.CustomList
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, created_at FROM custom_lists WHERE id = ? AND user_id = ?`,
		listID, userID,
	).Scan(&list.ID, &list.UserID, &list.Name, &list.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get custom list %s: %w", listID, err)
	}
	return &list, nil
}

// CustomLists returns all of a user's custom lists, oldest first.
func (s *Store) CustomLists(ctx context.Context, userID string) ([]models.CustomList, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, created_at FROM custom_lists WHERE user_id = ? ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list custom lists for %s: %w", userID, err)
	}
	defer func() { _ = rows.Close() }()

	var result []models.CustomList
	for rows.Next() {
		var list models.CustomList
		if err := rows.Scan(&list.ID, &list.UserID, &list.Name, &list.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, list)
	}
	return result, rows.Err()
}

// DeleteCustomList removes a custom list and its items.
func (s *Store) DeleteCustomList(ctx context.Context, userID, listID string) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM list_items WHERE user_id = ? AND list_id = ?`, userID, listID); err != nil {
		return fmt.Errorf("delete custom list items %s: %w", listID, err)
	}
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM custom_lists WHERE id = ? AND user_id = ?`, listID, userID); err != nil {
		return fmt.Errorf("delete custom list %s: %w", listID, err)
	}
	return nil
}

func encodeCursor(createdAt time.Time, seriesID int64) string {
	raw := createdAt.UTC().Format(time.RFC3339Nano) + "|" + strconv.FormatInt(seriesID, 10)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (time.Time, int64, error) {
	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("malformed cursor: %w", err)
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, 0, fmt.Errorf("malformed cursor")
	}
	at, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("malformed cursor timestamp: %w", err)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("malformed cursor id: %w", err)
	}
	return at, id, nil
}
