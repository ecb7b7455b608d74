// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

/*
Package models defines the data structures shared across the watch-state
pipeline. It is the single source of truth for wire formats and database
row shapes; no other package declares persisted or published types.

Key Components:

  - WatchedRecord: one watched episode in the ledger, identified by
    (user, series, season, episode)
  - WatchedChangeEvent / FollowChangeEvent: change-data-capture records
    published on every ledger and follow-edge mutation
  - ListItem / ListPage / CustomList: list membership rows and pagination
  - Series / Episode: catalog facts consumed by the reconcilers
  - ScrobbleEvent / PlexWebhook: raw Plex scrobble intake

Change events carry a partition key derived from the ledger identity so
that all changes to one episode of one user are delivered in order.
Everything in this package marshals with goccy/go-json field tags.
*/
package models
