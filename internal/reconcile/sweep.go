// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/koenoe/tvseri.es-sub003/internal/catalog"
	"github.com/koenoe/tvseri.es-sub003/internal/config"
	"github.com/koenoe/tvseri.es-sub003/internal/eventprocessor"
	"github.com/koenoe/tvseri.es-sub003/internal/logging"
	"github.com/koenoe/tvseri.es-sub003/internal/metrics"
	"github.com/koenoe/tvseri.es-sub003/internal/models"
)

// EventPublisher is the slice of the publisher the sweep scheduler needs.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, v any, partitionKey, eventType string) error
}

// UserDirectory pages through the user population for sweep fan-out.
// Satisfied by users.Store.
type UserDirectory interface {
	List(ctx context.Context, cursor string, limit int) (*models.UserPage, error)
}

// SweepScheduler periodically fans the whole user population out as
// per-user sweep tasks. It is a suture service: Serve blocks until the
// context is canceled.
//
// The scheduler only enqueues; the sweep workers consuming the task
// topic do the actual reconciliation. Missing a tick is harmless, the
// next tick covers the same population.
type SweepScheduler struct {
	users     UserDirectory
	publisher EventPublisher
	cfg       config.SweepConfig
}

// NewSweepScheduler creates the fan-out scheduler.
func NewSweepScheduler(users UserDirectory, publisher EventPublisher, cfg config.SweepConfig) *SweepScheduler {
	return &SweepScheduler{
		users:     users,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Serve runs the sweep ticker until ctx is canceled.
func (s *SweepScheduler) Serve(ctx context.Context) error {
	if !s.cfg.Enabled {
		logging.Info().Msg("Sweep scheduler disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	logging.Info().
		Dur("interval", s.cfg.Interval).
		Int("page_size", s.cfg.PageSize).
		Int("batch_size", s.cfg.BatchSize).
		Msg("Sweep scheduler started")

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.runSweep(ctx); err != nil {
				logging.Error().Err(err).Msg("Sweep fan-out failed")
			}
		}
	}
}

// runSweep pages through the user directory and enqueues one task per
// batch of users, so publish volume scales with population over batch
// size rather than population. Fan-out is restartable: a crash
// mid-sweep just means some users are swept twice on the next tick,
// which the idempotent worker absorbs.
func (s *SweepScheduler) runSweep(ctx context.Context) error {
	start := time.Now()
	metrics.SweepRunsTotal.Inc()

	var enqueued int
	cursor := ""
	for {
		page, err := s.users.List(ctx, cursor, s.cfg.PageSize)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}

		for _, batch := range batchUsers(page.Users, s.cfg.BatchSize) {
			ids := make([]string, len(batch))
			for i, u := range batch {
				ids[i] = u.ID
			}
			task := models.SweepTask{UserIDs: ids, EnqueuedAt: time.Now().UTC()}
			// Sweeps are order-free, so the key only needs to be stable
			// for the task; the first user of the batch serves.
			if err := s.publisher.PublishEvent(ctx, eventprocessor.TopicSweepUser, task, ids[0], "SWEEP"); err != nil {
				return fmt.Errorf("enqueue sweep task for %d users: %w", len(ids), err)
			}
			enqueued += len(ids)
			metrics.SweepUsersEnqueued.Add(float64(len(ids)))
		}

		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	logging.Info().
		Int("users", enqueued).
		Dur("duration", time.Since(start)).
		Msg("Sweep fan-out complete")
	return nil
}

// batchUsers splits users into groups of at most size.
func batchUsers(users []models.User, size int) [][]models.User {
	if size <= 0 {
		size = 1
	}
	var batches [][]models.User
	for len(users) > 0 {
		n := size
		if n > len(users) {
			n = len(users)
		}
		batches = append(batches, users[:n])
		users = users[n:]
	}
	return batches
}

// SweepWorker re-validates one user's derived list membership against
// live catalog facts. It closes the gap the stream reconciler cannot
// see: a series gaining aired episodes changes classification without
// any ledger write.
type SweepWorker struct {
	counter     WatchedCounter
	lists       ListStore
	series      SeriesSource
	concurrency int
}

// NewSweepWorker creates a sweep worker with bounded per-user catalog
// fan-out.
func NewSweepWorker(counter WatchedCounter, lists ListStore, series SeriesSource, concurrency int) *SweepWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &SweepWorker{
		counter:     counter,
		lists:       lists,
		series:      series,
		concurrency: concurrency,
	}
}

// SweepUser walks the user's WATCHED list and reclassifies every entry
// whose series can still gain episodes. Only WATCHED entries can drift
// from new airings: IN_PROGRESS stays IN_PROGRESS when the aired count
// grows, and the WATCHED-to-IN_PROGRESS transition is exactly the one
// no ledger write triggers.
//
// The snapshot status is a cheap pre-filter; live facts make the final
// call. A series whose snapshot says ended never drifts from airings,
// so skipping it costs nothing.
func (w *SweepWorker) SweepUser(ctx context.Context, userID string) error {
	var candidates []models.ListItem
	cursor := ""
	for {
		page, err := w.lists.List(ctx, userID, models.ListWatched, cursor, 0)
		if err != nil {
			return fmt.Errorf("list WATCHED for %s: %w", userID, err)
		}
		for _, item := range page.Items {
			if item.Status == models.SeriesStatusReturning {
				candidates = append(candidates, item)
			}
		}
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	if len(candidates) == 0 {
		return nil
	}

	sem := make(chan struct{}, w.concurrency)
	errCh := make(chan error, len(candidates))
	var wg sync.WaitGroup

	for _, item := range candidates {
		wg.Add(1)
		sem <- struct{}{}
		go func(item models.ListItem) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := w.sweepEntry(ctx, userID, item); err != nil {
				errCh <- err
			}
		}(item)
	}
	wg.Wait()
	close(errCh)

	// Report one failure; redelivery reruns the whole user, and every
	// mutation is idempotent.
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

// sweepEntry reclassifies a single WATCHED entry against live facts.
func (w *SweepWorker) sweepEntry(ctx context.Context, userID string, item models.ListItem) error {
	series, err := w.series.Series(ctx, item.SeriesID)
	if errors.Is(err, catalog.ErrNotFound) {
		logging.Warn().
			Str("user_id", userID).
			Int64("series_id", item.SeriesID).
			Msg("Series missing from catalog, skipping sweep entry")
		metrics.ReconcileSkippedRecords.WithLabelValues("series_not_found").Inc()
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch series %d: %w", item.SeriesID, err)
	}

	count, err := w.counter.Count(ctx, userID, item.SeriesID)
	if err != nil {
		return fmt.Errorf("count watched for %s/%d: %w", userID, item.SeriesID, err)
	}

	target := Classify(count, series.AiredEpisodeCount)
	metrics.ReconcileClassifications.WithLabelValues("sweep", target.String()).Inc()

	membership, err := w.lists.Membership(ctx, userID, item.SeriesID)
	if err != nil {
		return fmt.Errorf("membership for %s/%d: %w", userID, item.SeriesID, err)
	}
	if matchesTarget(membership, target) {
		return nil
	}

	createdAt := item.CreatedAt
	if target == StateWatched {
		// Entry time for a completed series is the last watch, not the
		// moment the sweep noticed.
		if last, err := w.counter.LastWatchedAt(ctx, userID, item.SeriesID); err == nil && !last.IsZero() {
			createdAt = last
		}
	}

	if err := applyTarget(ctx, w.lists, userID, series, target, createdAt); err != nil {
		return err
	}

	metrics.SweepDriftCorrected.Inc()
	logging.Info().
		Str("user_id", userID).
		Int64("series_id", item.SeriesID).
		Str("target", target.String()).
		Int("count", count).
		Int("aired", series.AiredEpisodeCount).
		Msg("Sweep corrected drifted list membership")
	return nil
}

// matchesTarget reports whether current derived membership already
// reflects the classified state.
func matchesTarget(membership map[string]bool, target State) bool {
	switch target {
	case StateWatched:
		return membership[models.ListWatched] && !membership[models.ListInProgress]
	case StateInProgress:
		return membership[models.ListInProgress] && !membership[models.ListWatched]
	default:
		return !membership[models.ListWatched] && !membership[models.ListInProgress]
	}
}
