// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package eventprocessor

// Topic names for the watch-state pipeline. All subjects live under a
// single JetStream stream so one retention/storage policy covers the
// whole pipeline.
const (
	// TopicScrobblePlex carries raw Plex scrobble events from the
	// webhook handler to the scrobble resolver.
	TopicScrobblePlex = "scrobble.plex"

	// TopicWatchedChanges carries change events emitted by the watched
	// ledger (one event per committed insert or remove). Events for the
	// same (user, series, season, episode) key are delivered in commit
	// order; events for different keys carry no ordering guarantee.
	TopicWatchedChanges = "watched.changes"

	// TopicFollowChanges carries follow-edge change events consumed by
	// the follow counter maintainer.
	TopicFollowChanges = "follow.changes"

	// TopicSweepUser carries per-user sweep tasks fanned out by the
	// sweep scheduler.
	TopicSweepUser = "sweep.user"

	// PoisonTopic receives messages that exhausted their retry budget.
	PoisonTopic = "poison.watchstate"
)

// StreamName is the JetStream stream holding all pipeline subjects.
const StreamName = "WATCHSTATE"

// StreamSubjects lists every subject bound to StreamName.
func StreamSubjects() []string {
	return []string{
		TopicScrobblePlex,
		TopicWatchedChanges,
		TopicFollowChanges,
		TopicSweepUser,
		PoisonTopic,
	}
}
