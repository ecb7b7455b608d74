// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package reconcile

import (
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/koenoe/tvseri.es-sub003/internal/eventprocessor"
	"github.com/koenoe/tvseri.es-sub003/internal/metrics"
	"github.com/koenoe/tvseri.es-sub003/internal/models"
)

// Handler names registered on the router. These become durable consumer
// names, so renaming one abandons its delivery position.
const (
	HandlerWatchedChanges = "watched_changes_reconciler"
	HandlerFollowChanges  = "follow_counter_maintainer"
	HandlerSweepUser      = "sweep_user_worker"
)

// WatchedChangesHandler adapts the stream reconciler to the message
// router. Each delivery carries one change event; HandleBatch still
// does the classification so batch and single-message paths share code.
//
// Decode failures are permanent and go to the poison queue. Downstream
// failures surface as retryable so the substrate redelivers.
func WatchedChangesHandler(r *StreamReconciler) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		start := time.Now()
		metrics.ChangeEventsConsumed.WithLabelValues(HandlerWatchedChanges).Inc()

		event, err := eventprocessor.DecodeEvent[models.WatchedChangeEvent](msg)
		if err != nil {
			return err
		}

		if err := r.HandleBatch(msg.Context(), []models.WatchedChangeEvent{*event}); err != nil {
			return eventprocessor.NewRetryableError(fmt.Errorf("reconcile watched change: %w", err))
		}

		metrics.ObservePipelineDuration(HandlerWatchedChanges, time.Since(start))
		return nil
	}
}

// FollowChangesHandler adapts the follow counter maintainer to the
// message router.
func FollowChangesHandler(m *FollowCounterMaintainer) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		start := time.Now()
		metrics.ChangeEventsConsumed.WithLabelValues(HandlerFollowChanges).Inc()

		event, err := eventprocessor.DecodeEvent[models.FollowChangeEvent](msg)
		if err != nil {
			return err
		}

		if err := m.HandleBatch(msg.Context(), []models.FollowChangeEvent{*event}); err != nil {
			return eventprocessor.NewRetryableError(fmt.Errorf("apply follow counters: %w", err))
		}

		metrics.ObservePipelineDuration(HandlerFollowChanges, time.Since(start))
		return nil
	}
}

// SweepTaskHandler adapts the sweep worker to the message router. One
// task carries a batch of user IDs; a failure on any user fails the
// whole task, and redelivery re-sweeps the batch, which the idempotent
// worker absorbs.
func SweepTaskHandler(w *SweepWorker) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		start := time.Now()
		metrics.ChangeEventsConsumed.WithLabelValues(HandlerSweepUser).Inc()

		task, err := eventprocessor.DecodeEvent[models.SweepTask](msg)
		if err != nil {
			return err
		}
		if len(task.UserIDs) == 0 {
			return eventprocessor.NewPermanentError(errors.New("sweep task without user IDs"))
		}

		for _, userID := range task.UserIDs {
			if userID == "" {
				return eventprocessor.NewPermanentError(errors.New("sweep task with empty user ID"))
			}
			if err := w.SweepUser(msg.Context(), userID); err != nil {
				return eventprocessor.NewRetryableError(fmt.Errorf("sweep user %s: %w", userID, err))
			}
		}

		metrics.ObservePipelineDuration(HandlerSweepUser, time.Since(start))
		return nil
	}
}
