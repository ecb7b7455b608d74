// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/koenoe/tvseri.es-sub003/internal/catalog"
	"github.com/koenoe/tvseri.es-sub003/internal/models"
)

// derivedLists are reconciler-owned: direct mutation through the API
// would be overwritten by the next classification, so it is rejected.
var derivedLists = map[string]bool{
	models.ListWatched:    true,
	models.ListInProgress: true,
}

// ListItems returns one page of a list, newest entries first.
// GET /api/v1/users/{userID}/lists/{listID}/items?cursor=&limit=
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	listID := chi.URLParam(r, "listID")

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		var err error
		if limit, err = strconv.Atoi(s); err != nil || limit < 0 {
			respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid limit")
			return
		}
	}

	page, err := h.lists.List(r.Context(), userID, listID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	respondOK(w, page)
}

// AddListItem puts a series on a watchlist, favorites or custom list.
// PUT /api/v1/users/{userID}/lists/{listID}/items/{seriesID}
func (h *Handler) AddListItem(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	listID := chi.URLParam(r, "listID")
	if derivedLists[listID] {
		respondError(w, r, http.StatusConflict, ErrCodeConflict, "list is derived from watch activity and cannot be edited directly")
		return
	}

	seriesID, err := strconv.ParseInt(chi.URLParam(r, "seriesID"), 10, 64)
	if err != nil || seriesID <= 0 {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid series id")
		return
	}

	item := models.ListItem{SeriesID: seriesID, CreatedAt: time.Now().UTC()}
	if h.series != nil {
		series, err := h.series.Series(r.Context(), seriesID)
		if errors.Is(err, catalog.ErrNotFound) {
			respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "series not found")
			return
		}
		if err == nil {
			item.Title = series.Title
			item.Slug = series.Slug
			item.PosterPath = series.PosterPath
			item.Status = series.Status
		}
	}

	if err := h.lists.Upsert(r.Context(), userID, listID, &item); err != nil {
		respondInternal(w, r, err)
		return
	}
	respondOK(w, item)
}

// RemoveListItem removes a series from a non-derived list.
// DELETE /api/v1/users/{userID}/lists/{listID}/items/{seriesID}
func (h *Handler) RemoveListItem(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	listID := chi.URLParam(r, "listID")
	if derivedLists[listID] {
		respondError(w, r, http.StatusConflict, ErrCodeConflict, "list is derived from watch activity and cannot be edited directly")
		return
	}

	seriesID, err := strconv.ParseInt(chi.URLParam(r, "seriesID"), 10, 64)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid series id")
		return
	}

	if err := h.lists.Remove(r.Context(), userID, listID, seriesID); err != nil {
		respondInternal(w, r, err)
		return
	}
	respondNoContent(w)
}

// CreateCustomList creates a user-owned list with a ULID identifier.
// POST /api/v1/users/{userID}/lists
func (h *Handler) CreateCustomList(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	list, err := h.lists.CreateCustomList(r.Context(), userID, body.Name)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	respondCreated(w, list)
}

// CustomLists returns the user's custom lists.
// GET /api/v1/users/{userID}/lists
func (h *Handler) CustomLists(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	lists, err := h.lists.CustomLists(r.Context(), userID)
	if err != nil {
		respondInternal(w, r, err)
		return
	}
	respondOK(w, lists)
}

// DeleteCustomList deletes a custom list and its items.
// DELETE /api/v1/users/{userID}/lists/{listID}
func (h *Handler) DeleteCustomList(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	listID := chi.URLParam(r, "listID")
	if derivedLists[listID] || listID == models.ListWatchlist || listID == models.ListFavorites {
		respondError(w, r, http.StatusConflict, ErrCodeConflict, "built-in lists cannot be deleted")
		return
	}

	if err := h.lists.DeleteCustomList(r.Context(), userID, listID); err != nil {
		respondInternal(w, r, err)
		return
	}
	respondNoContent(w)
}
