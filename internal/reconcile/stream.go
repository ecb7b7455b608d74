// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/koenoe/tvseri.es-sub003/internal/catalog"
	"github.com/koenoe/tvseri.es-sub003/internal/logging"
	"github.com/koenoe/tvseri.es-sub003/internal/metrics"
	"github.com/koenoe/tvseri.es-sub003/internal/models"
)

// StreamReconciler consumes watched-ledger change events and converges
// derived list membership (WATCHED, IN_PROGRESS) to the classification
// of the authoritative ledger count.
//
// The count is always recomputed from the ledger, never derived from
// the event's delta. That makes the reconciler self-correcting under
// duplicate delivery, reordering across partition keys, and whole-batch
// redelivery.
type StreamReconciler struct {
	counter WatchedCounter
	lists   ListStore
	series  SeriesSource
}

// NewStreamReconciler creates a stream reconciler.
func NewStreamReconciler(counter WatchedCounter, lists ListStore, series SeriesSource) *StreamReconciler {
	return &StreamReconciler{
		counter: counter,
		lists:   lists,
		series:  series,
	}
}

// HandleBatch processes change events sequentially in delivery order.
//
// Per-batch memoization: series facts are fetched once per distinct
// series, and consecutive events for the same partition key are
// coalesced so only the last one triggers a count query ("mark whole
// season watched" bursts touch the same pair dozens of times).
// Coalescing consecutive events is safe because events for one key are
// delivered in order; it would not be safe across keys.
//
// Malformed events are skipped, not retried: the rest of the batch
// still processes. A transient dependency failure aborts the batch so
// the delivery substrate redelivers it, which is safe because every
// mutation is idempotent.
func (r *StreamReconciler) HandleBatch(ctx context.Context, events []models.WatchedChangeEvent) error {
	seriesFacts := make(map[int64]*models.Series)

	for i, event := range events {
		rec, err := event.Record()
		if err != nil {
			logging.Warn().Err(err).Str("event_id", event.EventID).Msg("Skipping malformed change event")
			metrics.ReconcileSkippedRecords.WithLabelValues("malformed_event").Inc()
			continue
		}

		// Coalesce: if the next event targets the same key, this one's
		// classification would be immediately recomputed anyway.
		if i+1 < len(events) && events[i+1].PartitionKey() == event.PartitionKey() {
			metrics.ReconcileCoalescedEvents.Inc()
			continue
		}

		if err := r.reconcilePair(ctx, rec.UserID, rec.SeriesID, rec.WatchedAt, seriesFacts); err != nil {
			return err
		}
	}
	return nil
}

// reconcilePair recomputes and applies the membership target for one
// (user, series) pair. watchedAt becomes the WATCHED entry's createdAt
// when the pair completes.
func (r *StreamReconciler) reconcilePair(ctx context.Context, userID string, seriesID int64, watchedAt time.Time, seriesFacts map[int64]*models.Series) error {
	series, ok := seriesFacts[seriesID]
	if !ok {
		var err error
		series, err = r.series.Series(ctx, seriesID)
		if errors.Is(err, catalog.ErrNotFound) {
			logging.Warn().Int64("series_id", seriesID).Msg("Series missing from catalog, skipping reconciliation")
			metrics.ReconcileSkippedRecords.WithLabelValues("series_not_found").Inc()
			return nil
		}
		if err != nil {
			return fmt.Errorf("fetch series %d: %w", seriesID, err)
		}
		seriesFacts[seriesID] = series
	}

	count, err := r.counter.Count(ctx, userID, seriesID)
	if err != nil {
		return fmt.Errorf("count watched for %s/%d: %w", userID, seriesID, err)
	}

	target := Classify(count, series.AiredEpisodeCount)
	if err := applyTarget(ctx, r.lists, userID, series, target, watchedAt); err != nil {
		return err
	}

	metrics.ReconcileClassifications.WithLabelValues("stream", target.String()).Inc()
	return nil
}

// applyTarget converges list membership to the classified state using
// only idempotent mutations. The mutations are not transactional: a
// partial failure leaves a transient inconsistency that the next event
// for the pair, or the sweep, corrects.
func applyTarget(ctx context.Context, lists ListStore, userID string, series *models.Series, target State, watchedAt time.Time) error {
	seriesID := series.ID

	switch target {
	case StateNone:
		if err := lists.Remove(ctx, userID, models.ListWatched, seriesID); err != nil {
			return fmt.Errorf("remove from WATCHED: %w", err)
		}
		if err := lists.Remove(ctx, userID, models.ListInProgress, seriesID); err != nil {
			return fmt.Errorf("remove from IN_PROGRESS: %w", err)
		}

	case StateInProgress:
		if err := lists.Upsert(ctx, userID, models.ListInProgress, snapshot(series, watchedAt)); err != nil {
			return fmt.Errorf("upsert into IN_PROGRESS: %w", err)
		}
		if err := lists.Remove(ctx, userID, models.ListWatched, seriesID); err != nil {
			return fmt.Errorf("remove from WATCHED: %w", err)
		}
		if err := lists.Remove(ctx, userID, models.ListWatchlist, seriesID); err != nil {
			return fmt.Errorf("remove from WATCHLIST: %w", err)
		}

	case StateWatched:
		if err := lists.Upsert(ctx, userID, models.ListWatched, snapshot(series, watchedAt)); err != nil {
			return fmt.Errorf("upsert into WATCHED: %w", err)
		}
		if err := lists.Remove(ctx, userID, models.ListInProgress, seriesID); err != nil {
			return fmt.Errorf("remove from IN_PROGRESS: %w", err)
		}
		if err := lists.Remove(ctx, userID, models.ListWatchlist, seriesID); err != nil {
			return fmt.Errorf("remove from WATCHLIST: %w", err)
		}
	}
	return nil
}

// snapshot builds the independent list-entry snapshot of catalog
// display fields.
func snapshot(series *models.Series, createdAt time.Time) *models.ListItem {
	return &models.ListItem{
		SeriesID:   series.ID,
		Title:      series.Title,
		Slug:       series.Slug,
		PosterPath: series.PosterPath,
		Status:     series.Status,
		CreatedAt:  createdAt,
	}
}
