// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package models

import (
	"fmt"
	"time"
)

// WatchProvider identifies where an episode was watched.
// Nil on a WatchedRecord means the provider is unknown (e.g. manual backfill).
type WatchProvider struct {
	Name string `json:"name"`
	Logo string `json:"logo,omitempty"`
}

// PlexWatchProvider is the fixed provider identity synthesized for records
// written by the scrobble pipeline. Other media servers become new fixed
// identities when their payload variants are added.
var PlexWatchProvider = WatchProvider{
	Name: "Plex",
	Logo: "/images/providers/plex.svg",
}

// WatchedRecord is a single watched episode in the ledger.
//
// Identity is (UserID, SeriesID, SeasonNumber, EpisodeNumber); a later write
// with the same identity overwrites rather than appends. The ledger is the
// single source of truth for watched state - list membership is derived.
type WatchedRecord struct {
	UserID        string `json:"user_id"`
	SeriesID      int64  `json:"series_id"`
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`

	WatchedAt time.Time      `json:"watched_at"`
	Runtime   int            `json:"runtime"` // minutes
	Provider  *WatchProvider `json:"watch_provider,omitempty"`

	// Denormalized display fields. EpisodeTitle and StillPath may be
	// back-filled asynchronously and can be empty on fresh records.
	SeriesTitle  string `json:"series_title"`
	SeriesSlug   string `json:"series_slug"`
	PosterPath   string `json:"poster_path,omitempty"`
	EpisodeTitle string `json:"episode_title,omitempty"`
	StillPath    string `json:"still_path,omitempty"`
}

// Key returns the stable identity string for this record. It doubles as the
// partition key for the change-event stream, so all events for one episode
// of one user are delivered in order.
func (r *WatchedRecord) Key() string {
	return WatchedKey(r.UserID, r.SeriesID, r.SeasonNumber, r.EpisodeNumber)
}

// WatchedKey builds the ledger identity string without a record instance.
func WatchedKey(userID string, seriesID int64, season, episode int) string {
	return fmt.Sprintf("%s#%d#%d#%d", userID, seriesID, season, episode)
}

// Validate checks structural integrity of a record before it enters the ledger.
func (r *WatchedRecord) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("watched record: missing user id")
	}
	if r.SeriesID <= 0 {
		return fmt.Errorf("watched record: invalid series id %d", r.SeriesID)
	}
	if r.SeasonNumber < 0 || r.EpisodeNumber <= 0 {
		return fmt.Errorf("watched record: invalid episode identity S%02dE%02d", r.SeasonNumber, r.EpisodeNumber)
	}
	return nil
}
