// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package reconcile

import (
	"context"
	"fmt"

	"github.com/koenoe/tvseri.es-sub003/internal/logging"
	"github.com/koenoe/tvseri.es-sub003/internal/metrics"
	"github.com/koenoe/tvseri.es-sub003/internal/models"
	"github.com/koenoe/tvseri.es-sub003/internal/users"
)

// CounterStore applies grouped counter deltas. Satisfied by users.Store.
type CounterStore interface {
	ApplyCounterDeltas(ctx context.Context, deltas map[string]users.CounterDelta) error
}

// FollowCounterMaintainer folds follow-edge change events into the
// denormalized follower and following counters.
//
// Unlike the list reconcilers this is delta arithmetic, not an
// authoritative recount: a lost or duplicated event drifts the counter
// until RecountFollows repairs it. The edge store emits exactly one
// event per effective edge change, which keeps deltas honest as long as
// the dedup window holds.
type FollowCounterMaintainer struct {
	counters CounterStore
}

// NewFollowCounterMaintainer creates the counter maintainer.
func NewFollowCounterMaintainer(counters CounterStore) *FollowCounterMaintainer {
	return &FollowCounterMaintainer{counters: counters}
}

// HandleBatch groups the batch's deltas per user and applies them in a
// single transaction. A follow edge touches two users: the followed
// user's follower count and the follower's following count.
func (m *FollowCounterMaintainer) HandleBatch(ctx context.Context, events []models.FollowChangeEvent) error {
	deltas := make(map[string]users.CounterDelta)

	for _, event := range events {
		delta := int64(event.Delta())
		if delta == 0 {
			logging.Warn().
				Str("event_id", event.EventID).
				Str("type", event.Type).
				Msg("Skipping follow event with unknown type")
			metrics.FollowCounterEvents.WithLabelValues("SKIPPED").Inc()
			continue
		}
		if event.FollowerID == "" || event.FollowingID == "" {
			logging.Warn().Str("event_id", event.EventID).Msg("Skipping follow event with missing user IDs")
			metrics.FollowCounterEvents.WithLabelValues("SKIPPED").Inc()
			continue
		}

		d := deltas[event.FollowingID]
		d.Followers += delta
		deltas[event.FollowingID] = d

		d = deltas[event.FollowerID]
		d.Following += delta
		deltas[event.FollowerID] = d

		metrics.FollowCounterEvents.WithLabelValues(event.Type).Inc()
	}

	if len(deltas) == 0 {
		return nil
	}
	if err := m.counters.ApplyCounterDeltas(ctx, deltas); err != nil {
		return fmt.Errorf("apply follow counter deltas: %w", err)
	}
	return nil
}
