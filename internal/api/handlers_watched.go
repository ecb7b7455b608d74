// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/koenoe/tvseri.es-sub003/internal/models"
)

// MarkWatched records one watched episode in the ledger.
// PUT /api/v1/users/{userID}/watched
//
// The write is an upsert on the episode identity; marking an already
// watched episode updates its attributes instead of appending. Derived
// lists catch up via the change event, not in this request.
func (h *Handler) MarkWatched(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var rec models.WatchedRecord
	if err := decodeBody(r, &rec); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	rec.UserID = userID
	if rec.WatchedAt.IsZero() {
		rec.WatchedAt = time.Now().UTC()
	}
	if err := rec.Validate(); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	// Enrich missing display fields from the catalog when possible; a
	// catalog outage degrades the snapshot, not the write.
	if h.series != nil && rec.SeriesTitle == "" {
		if series, err := h.series.Series(r.Context(), rec.SeriesID); err == nil {
			rec.SeriesTitle = series.Title
			rec.SeriesSlug = series.Slug
			rec.PosterPath = series.PosterPath
		}
	}

	if err := h.ledger.Upsert(r.Context(), &rec); err != nil {
		respondInternal(w, r, err)
		return
	}
	respondOK(w, rec)
}

// UnmarkWatched removes one watched episode from the ledger.
// DELETE /api/v1/users/{userID}/watched/{seriesID}/{season}/{episode}
//
// Removing an episode that is not in the ledger is a no-op success.
func (h *Handler) UnmarkWatched(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	seriesID, season, episode, ok := episodePathParams(w, r)
	if !ok {
		return
	}

	if err := h.ledger.Delete(r.Context(), userID, seriesID, season, episode); err != nil {
		respondInternal(w, r, err)
		return
	}
	respondNoContent(w)
}

// WatchedSeries lists the distinct series the user has watched episodes
// of, regardless of derived list state.
// GET /api/v1/users/{userID}/watched
func (h *Handler) WatchedSeries(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	ids, err := h.ledger.WatchedSeriesIDs(r.Context(), userID)
	if err != nil {
		respondInternal(w, r, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	respondOK(w, map[string]any{"series_ids": ids})
}

// WatchedCount returns the authoritative distinct-episode count for one
// series, the same query the reconcilers classify on.
// GET /api/v1/users/{userID}/watched/{seriesID}/count
func (h *Handler) WatchedCount(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	seriesID, err := strconv.ParseInt(chi.URLParam(r, "seriesID"), 10, 64)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid series id")
		return
	}

	count, err := h.ledger.Count(r.Context(), userID, seriesID)
	if err != nil {
		respondInternal(w, r, err)
		return
	}
	respondOK(w, map[string]any{"series_id": seriesID, "count": count})
}

// WatchedEpisodes lists the ledger entries for one series in episode order.
// GET /api/v1/users/{userID}/watched/{seriesID}
func (h *Handler) WatchedEpisodes(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	seriesID, err := strconv.ParseInt(chi.URLParam(r, "seriesID"), 10, 64)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid series id")
		return
	}

	records, err := h.ledger.ListBySeries(r.Context(), userID, seriesID)
	if err != nil {
		respondInternal(w, r, err)
		return
	}
	respondOK(w, records)
}

// episodePathParams parses the {seriesID}/{season}/{episode} triple.
func episodePathParams(w http.ResponseWriter, r *http.Request) (seriesID int64, season, episode int, ok bool) {
	var err error
	seriesID, err = strconv.ParseInt(chi.URLParam(r, "seriesID"), 10, 64)
	if err == nil {
		season, err = strconv.Atoi(chi.URLParam(r, "season"))
	}
	if err == nil {
		episode, err = strconv.Atoi(chi.URLParam(r, "episode"))
	}
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid episode identity")
		return 0, 0, 0, false
	}
	return seriesID, season, episode, true
}
