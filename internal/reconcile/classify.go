// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

// Package reconcile keeps derived list membership consistent with the
// watched ledger. The stream reconciler reacts to ledger change events;
// the sweep reconciler closes the gap external facts open (a new
// episode airing changes derived state with no ledger write); the
// follow counter maintainer applies counter deltas from follow-edge
// events.
package reconcile

// State is the derived membership target for one (user, series) pair.
// Membership in WATCHED and IN_PROGRESS is mutually exclusive and fully
// determined by the watched count against the aired count.
type State int

const (
	// StateNone: nothing watched, absent from both derived lists.
	StateNone State = iota
	// StateInProgress: some episodes watched, not all aired ones.
	StateInProgress
	// StateWatched: every aired episode watched.
	StateWatched
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateInProgress:
		return "in_progress"
	case StateWatched:
		return "watched"
	default:
		return "unknown"
	}
}

// Classify maps (watched count, aired count) to exactly one membership
// state. It is a total function: every non-negative input pair lands in
// exactly one state.
//
// A positive count against zero aired episodes can happen when a series
// was retracted from the catalog or its episode order was restructured
// after the user watched it. Completion is undefined there, so the pair
// stays IN_PROGRESS until the catalog facts stabilize.
func Classify(count, aired int) State {
	switch {
	case count == 0:
		return StateNone
	case count >= aired && aired > 0:
		return StateWatched
	default:
		return StateInProgress
	}
}
