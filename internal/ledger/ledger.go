// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

// Package ledger implements the watched ledger: the single source of
// truth for which episodes a user has watched. Every committed write
// emits a change event; derived list membership is never written here.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/koenoe/tvseri.es-sub003/internal/database"
	"github.com/koenoe/tvseri.es-sub003/internal/eventprocessor"
	"github.com/koenoe/tvseri.es-sub003/internal/metrics"
	"github.com/koenoe/tvseri.es-sub003/internal/models"
)

// EventPublisher is the change-event sink. Satisfied by
// eventprocessor.Publisher.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, v any, partitionKey, eventType string) error
}

// Store reads and writes the watched ledger.
//
// Writes are idempotent on the ledger identity (user, series, season,
// episode): re-applying the same write converges to the same row and is
// safe under redelivery. Publish failures after a committed write
// surface as errors so the caller retries the whole operation.
type Store struct {
	db        *sql.DB
	publisher EventPublisher

	// now is swappable for tests.
	now func() time.Time
}

// NewStore creates a ledger store. publisher may be nil, which disables
// change-event emission (used by backfill tooling and some tests).
func NewStore(db *database.DB, publisher EventPublisher) *Store {
	return &Store{
		db:        db.Conn(),
		publisher: publisher,
		now:       time.Now,
	}
}

// Upsert writes one watched record. An existing row with the same
// identity is overwritten. On success an INSERT change event carrying
// the before image (when one existed) and the after image is emitted.
func (s *Store) Upsert(ctx context.Context, rec *models.WatchedRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	before, err := s.Get(ctx, rec.UserID, rec.SeriesID, rec.SeasonNumber, rec.EpisodeNumber)
	if err != nil {
		return fmt.Errorf("read before image: %w", err)
	}

	var providerName, providerLogo sql.NullString
	if rec.Provider != nil {
		providerName = sql.NullString{String: rec.Provider.Name, Valid: true}
		providerLogo = sql.NullString{String: rec.Provider.Logo, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO watched (
			user_id, series_id, season_number, episode_number,
			watched_at, runtime, provider_name, provider_logo,
			series_title, series_slug, poster_path, episode_title, still_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, series_id, season_number, episode_number) DO UPDATE SET
			watched_at    = excluded.watched_at,
			runtime       = excluded.runtime,
			provider_name = excluded.provider_name,
			provider_logo = excluded.provider_logo,
			series_title  = excluded.series_title,
			series_slug   = excluded.series_slug,
			poster_path   = excluded.poster_path,
			episode_title = excluded.episode_title,
			still_path    = excluded.still_path`,
		rec.UserID, rec.SeriesID, rec.SeasonNumber, rec.EpisodeNumber,
		rec.WatchedAt, rec.Runtime, providerName, providerLogo,
		rec.SeriesTitle, rec.SeriesSlug, rec.PosterPath, rec.EpisodeTitle, rec.StillPath,
	)
	if err != nil {
		return fmt.Errorf("upsert watched record %s: %w", rec.Key(), err)
	}
	metrics.LedgerWrites.WithLabelValues("upsert").Inc()

	return s.emit(ctx, models.WatchedChangeEvent{
		EventID:   uuid.New().String(),
		Type:      models.ChangeInsert,
		Before:    before,
		After:     rec,
		EmittedAt: s.now().UTC(),
	})
}

// Delete removes one watched record by identity. Deleting a missing
// record is a no-op and emits nothing.
func (s *Store) Delete(ctx context.Context, userID string, seriesID int64, season, episode int) error {
	before, err := s.Get(ctx, userID, seriesID, season, episode)
	if err != nil {
		return fmt.Errorf("read before image: %w", err)
	}
	if before == nil {
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM watched
		WHERE user_id = ? AND series_id = ? AND season_number = ? AND episode_number = ?`,
		userID, seriesID, season, episode,
	)
	if err != nil {
		return fmt.Errorf("delete watched record %s: %w", models.WatchedKey(userID, seriesID, season, episode), err)
	}
	metrics.LedgerWrites.WithLabelValues("delete").Inc()

	return s.emit(ctx, models.WatchedChangeEvent{
		EventID:   uuid.New().String(),
		Type:      models.ChangeRemove,
		Before:    before,
		EmittedAt: s.now().UTC(),
	})
}

// Get returns one record by identity, or nil when absent.
func (s *Store) Get(ctx context.Context, userID string, seriesID int64, season, episode int) (*models.WatchedRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, series_id, season_number, episode_number,
		       watched_at, runtime, provider_name, provider_logo,
		       series_title, series_slug, poster_path, episode_title, still_path
		FROM watched
		WHERE user_id = ? AND series_id = ? AND season_number = ? AND episode_number = ?`,
		userID, seriesID, season, episode,
	)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// Count returns the authoritative number of distinct watched episodes
// for (userID, seriesID). Reconcilers classify from this number alone;
// they never maintain running counts.
func (s *Store) Count(ctx context.Context, userID string, seriesID int64) (int, error) {
	metrics.LedgerCountQueries.Inc()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM watched WHERE user_id = ? AND series_id = ?`,
		userID, seriesID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count watched for user %s series %d: %w", userID, seriesID, err)
	}
	return count, nil
}

// ListBySeries returns a user's watched records for one series ordered
// by season and episode.
func (s *Store) ListBySeries(ctx context.Context, userID string, seriesID int64) ([]models.WatchedRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, series_id, season_number, episode_number,
		       watched_at, runtime, provider_name, provider_logo,
		       series_title, series_slug, poster_path, episode_title, still_path
		FROM watched
		WHERE user_id = ? AND series_id = ?
		ORDER BY season_number, episode_number`,
		userID, seriesID,
	)
	if err != nil {
		return nil, fmt.Errorf("list watched for user %s series %d: %w", userID, seriesID, err)
	}
	defer func() { _ = rows.Close() }()

	var records []models.WatchedRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// WatchedSeriesIDs returns the distinct series a user has any ledger
// rows for, in series-ID order. Backs the per-user watched overview
// endpoint; the sweep walks the derived WATCHED list instead, since
// only completed series can drift from new airings.
func (s *Store) WatchedSeriesIDs(ctx context.Context, userID string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT series_id FROM watched WHERE user_id = ? ORDER BY series_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list watched series for user %s: %w", userID, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LastWatchedAt returns the most recent watched timestamp for
// (userID, seriesID), or the zero time when no rows exist.
func (s *Store) LastWatchedAt(ctx context.Context, userID string, seriesID int64) (time.Time, error) {
	var last sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(watched_at) FROM watched WHERE user_id = ? AND series_id = ?`,
		userID, seriesID,
	).Scan(&last)
	if err != nil {
		return time.Time{}, fmt.Errorf("last watched for user %s series %d: %w", userID, seriesID, err)
	}
	if !last.Valid {
		return time.Time{}, nil
	}
	return last.Time, nil
}

func (s *Store) emit(ctx context.Context, event models.WatchedChangeEvent) error {
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.PublishEvent(ctx, eventprocessor.TopicWatchedChanges, event, event.PartitionKey(), "watched_change"); err != nil {
		return fmt.Errorf("publish change event %s: %w", event.EventID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.WatchedRecord, error) {
	var rec models.WatchedRecord
	var providerName, providerLogo sql.NullString

	err := row.Scan(
		&rec.UserID, &rec.SeriesID, &rec.SeasonNumber, &rec.EpisodeNumber,
		&rec.WatchedAt, &rec.Runtime, &providerName, &providerLogo,
		&rec.SeriesTitle, &rec.SeriesSlug, &rec.PosterPath, &rec.EpisodeTitle, &rec.StillPath,
	)
	if err != nil {
		return nil, err
	}

	if providerName.Valid {
		rec.Provider = &models.WatchProvider{
			Name: providerName.String,
			Logo: providerLogo.String,
		}
	}
	return &rec, nil
}
