// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package models

import "time"

// User is the minimal user record the pipeline touches: identity for the
// sweep fan-out and the derived follow counters. Authentication and profile
// data live elsewhere.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	CreatedAt      time.Time `json:"created_at"`
	FollowerCount  int64     `json:"follower_count"`
	FollowingCount int64     `json:"following_count"`
}

// UserPage is one page of the user directory, cursor-based.
type UserPage struct {
	Users  []User `json:"users"`
	Cursor string `json:"cursor,omitempty"`
}

// FollowEdge is a follower relationship. Identity is (FollowerID,
// FollowingID); creating it twice is an upsert, not a second edge.
type FollowEdge struct {
	FollowerID  string    `json:"follower_id"`
	FollowingID string    `json:"following_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// SweepTask is one unit of sweep fan-out work: re-validate the derived
// list membership of a group of users against live catalog facts. The
// scheduler packs up to sweep.batch_size user IDs per task, bounding
// publish volume by population over batch size. Tasks are delivered at
// least once; re-sweeping a user is a no-op once converged.
type SweepTask struct {
	UserIDs    []string  `json:"user_ids"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
