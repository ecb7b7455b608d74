// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package models

import (
	"fmt"
	"time"
)

// Change event types emitted by the watched ledger.
const (
	ChangeInsert = "INSERT"
	ChangeRemove = "REMOVE"
)

// WatchedChangeEvent is one change-data-capture record for the watched
// ledger. INSERT carries the after image, REMOVE the before image; an
// overwrite of an existing identity carries both.
//
// Delivery contract: consumers must assume at-least-once delivery and
// reordering across different partition keys. Events sharing a partition
// key (the ledger identity, see WatchedRecord.Key) arrive in order. Any
// substitute delivery substrate must preserve per-key ordering or the
// stream reconciler's same-key coalescing becomes unsafe.
type WatchedChangeEvent struct {
	EventID   string         `json:"event_id"`
	Type      string         `json:"type"` // INSERT or REMOVE
	Before    *WatchedRecord `json:"before,omitempty"`
	After     *WatchedRecord `json:"after,omitempty"`
	EmittedAt time.Time      `json:"emitted_at"`
}

// Record returns the image that identifies the affected ledger entry:
// the after image for inserts, the before image for removals. An error
// means the event is malformed and should be skipped, not retried.
func (e *WatchedChangeEvent) Record() (*WatchedRecord, error) {
	switch e.Type {
	case ChangeInsert:
		if e.After == nil {
			return nil, fmt.Errorf("change event %s: INSERT without after image", e.EventID)
		}
		return e.After, nil
	case ChangeRemove:
		if e.Before == nil {
			return nil, fmt.Errorf("change event %s: REMOVE without before image", e.EventID)
		}
		return e.Before, nil
	default:
		return nil, fmt.Errorf("change event %s: unknown type %q", e.EventID, e.Type)
	}
}

// PartitionKey returns the stream partition key for this event.
func (e *WatchedChangeEvent) PartitionKey() string {
	rec, err := e.Record()
	if err != nil {
		return ""
	}
	return rec.Key()
}

// FollowChangeEvent is one change-data-capture record for the follow-edge
// table, consumed by the follow counter maintainer.
type FollowChangeEvent struct {
	EventID     string    `json:"event_id"`
	Type        string    `json:"type"` // INSERT or REMOVE
	FollowerID  string    `json:"follower_id"`
	FollowingID string    `json:"following_id"`
	EmittedAt   time.Time `json:"emitted_at"`
}

// Delta returns the signed counter delta for this event: +1 for a new
// follow edge, -1 for a removed one, 0 for malformed types.
func (e *FollowChangeEvent) Delta() int {
	switch e.Type {
	case ChangeInsert:
		return 1
	case ChangeRemove:
		return -1
	default:
		return 0
	}
}
