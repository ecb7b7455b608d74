// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package models

// Series holds the catalog facts the reconcilers depend on. A series whose
// AiredEpisodeCount grows (a new episode airs) changes derived list state
// without any ledger write - that gap is what the sweep reconciler closes.
type Series struct {
	ID                int64  `json:"id"`
	Title             string `json:"title"`
	Slug              string `json:"slug"`
	PosterPath        string `json:"poster_path,omitempty"`
	Status            string `json:"status"`
	AiredEpisodeCount int    `json:"aired_episode_count"`
	FirstAirYear      int    `json:"first_air_year,omitempty"`
}

// Episode holds the catalog facts for a single episode, including the
// series reference the resolver uses to hop from an external-ID match back
// to the owning series.
type Episode struct {
	ID            int64  `json:"id"`
	SeriesID      int64  `json:"series_id"`
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`
	Title         string `json:"title"`
	StillPath     string `json:"still_path,omitempty"`
	Runtime       int    `json:"runtime"` // minutes
	AirDate       string `json:"air_date,omitempty"`
}

// ExternalIDSource enumerates the catalog's external-ID namespaces.
type ExternalIDSource string

// External-ID sources understood by the catalog's find endpoint.
const (
	SourceIMDB ExternalIDSource = "imdb_id"
	SourceTVDB ExternalIDSource = "tvdb_id"
	SourceTMDB ExternalIDSource = "tmdb_id"
)

// ExternalIDMatch is the catalog's answer to a find-by-external-id lookup:
// episodes that carry the ID, each embedding its series reference.
type ExternalIDMatch struct {
	Episodes []Episode `json:"episodes"`
}
