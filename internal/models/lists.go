// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package models

import (
	"time"
)

// Well-known list IDs. Custom lists use a ULID instead.
//
// WATCHED and IN_PROGRESS are derived caches computed by the reconcilers
// from ledger counts. WATCHLIST and FAVORITES are direct user intent with
// no derivation.
const (
	ListWatched    = "WATCHED"
	ListInProgress = "IN_PROGRESS"
	ListWatchlist  = "WATCHLIST"
	ListFavorites  = "FAVORITES"
)

// Series status values as reported by the catalog. Only returning series
// can gain aired episodes, which is what the sweep reconciler keys on.
const (
	SeriesStatusReturning = "Returning Series"
	SeriesStatusEnded     = "Ended"
	SeriesStatusCanceled  = "Canceled"
)

// ListItem is one series entry in a user's list. Each entry is an
// independent snapshot of catalog display fields taken at write time.
type ListItem struct {
	SeriesID     int64     `json:"series_id"`
	Title        string    `json:"title"`
	Slug         string    `json:"slug"`
	PosterPath   string    `json:"poster_path,omitempty"`
	Status       string    `json:"status,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	SortPosition int       `json:"sort_position,omitempty"`
}

// ListPage is a single page of list entries with an opaque cursor for the
// next page. Cursor is empty when the page is the last one.
type ListPage struct {
	Items  []ListItem `json:"items"`
	Cursor string     `json:"cursor,omitempty"`
}

// CustomList describes a user-created list. The ID is a ULID assigned at
// creation time.
type CustomList struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
