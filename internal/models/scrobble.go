// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package models

import (
	"fmt"
	"strings"
)

// Provider names for scrobble payload variants.
const (
	ScrobbleProviderPlex = "plex"
)

// ScrobbleEvent is a passive "this user finished this episode" event from a
// third-party media server. It is transient: consumed once by the resolver
// and never persisted as-is.
//
// The payload is a tagged union over provider variants. Exactly one variant
// field is non-nil; Provider() reports which. Adding a media server means
// adding a variant field and extending the switch in Payload(), so missing
// cases surface at review time rather than as silent presence checks.
type ScrobbleEvent struct {
	UserID string `json:"user_id"`

	Plex *PlexScrobblePayload `json:"plex,omitempty"`
}

// Provider returns the tag of the payload variant carried by this event,
// or an empty string if no variant is set.
func (e *ScrobbleEvent) Provider() string {
	if e.Plex != nil {
		return ScrobbleProviderPlex
	}
	return ""
}

// Payload normalizes the provider variant into canonical scrobble metadata.
func (e *ScrobbleEvent) Payload() (*ScrobbleMetadata, error) {
	switch {
	case e.Plex != nil:
		return e.Plex.Normalize(), nil
	default:
		return nil, fmt.Errorf("scrobble event for user %s: no provider payload", e.UserID)
	}
}

// PlexScrobblePayload carries the episode identification fields extracted
// from a Plex media.scrobble webhook.
type PlexScrobblePayload struct {
	EpisodeTitle  string   `json:"episode_title"`
	SeasonTitle   string   `json:"season_title,omitempty"`
	SeriesTitle   string   `json:"series_title"`
	EpisodeNumber int      `json:"episode_number"`
	SeasonNumber  int      `json:"season_number"`
	Year          int      `json:"year,omitempty"`
	GUIDs         []string `json:"guids,omitempty"` // opaque scheme://value strings
}

// ExternalIDs holds catalog-relevant IDs stripped from provider GUID strings.
type ExternalIDs struct {
	IMDB string `json:"imdb_id,omitempty"`
	TVDB string `json:"tvdb_id,omitempty"`
	TMDB string `json:"tmdb_id,omitempty"`
}

// Empty reports whether no external ID was extracted.
func (ids *ExternalIDs) Empty() bool {
	return ids == nil || (ids.IMDB == "" && ids.TVDB == "" && ids.TMDB == "")
}

// ScrobbleMetadata is the provider-independent shape the resolver works on.
type ScrobbleMetadata struct {
	EpisodeTitle  string
	SeasonTitle   string
	SeriesTitle   string
	EpisodeNumber int
	SeasonNumber  int
	Year          int
	ExternalIDs   *ExternalIDs
}

// Normalize scans the GUID list for imdb://, tvdb:// and tmdb:// prefixes
// and strips them into ExternalIDs. Unknown schemes are ignored.
func (p *PlexScrobblePayload) Normalize() *ScrobbleMetadata {
	md := &ScrobbleMetadata{
		EpisodeTitle:  p.EpisodeTitle,
		SeasonTitle:   p.SeasonTitle,
		SeriesTitle:   p.SeriesTitle,
		EpisodeNumber: p.EpisodeNumber,
		SeasonNumber:  p.SeasonNumber,
		Year:          p.Year,
	}

	ids := &ExternalIDs{}
	for _, guid := range p.GUIDs {
		switch {
		case strings.HasPrefix(guid, "imdb://"):
			ids.IMDB = strings.TrimPrefix(guid, "imdb://")
		case strings.HasPrefix(guid, "tvdb://"):
			ids.TVDB = strings.TrimPrefix(guid, "tvdb://")
		case strings.HasPrefix(guid, "tmdb://"):
			ids.TMDB = strings.TrimPrefix(guid, "tmdb://")
		}
	}
	if !ids.Empty() {
		md.ExternalIDs = ids
	}
	return md
}
