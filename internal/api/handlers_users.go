// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/koenoe/tvseri.es-sub003/internal/models"
)

// CreateUser registers a user.
// POST /api/v1/users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var user models.User
	if err := decodeBody(r, &user); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	if err := h.users.Create(r.Context(), &user); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	respondCreated(w, user)
}

// GetUser returns one user with their denormalized follow counters.
// GET /api/v1/users/{userID}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondInternal(w, r, err)
		return
	}
	if user == nil {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "user not found")
		return
	}
	respondOK(w, user)
}

// ListUsers pages through the user directory.
// GET /api/v1/users?cursor=&limit=
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		var err error
		if limit, err = strconv.Atoi(s); err != nil || limit < 0 {
			respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid limit")
			return
		}
	}

	page, err := h.users.List(r.Context(), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		respondInternal(w, r, err)
		return
	}
	respondOK(w, page)
}

// Follow creates a follow edge. The denormalized counters move through
// the change event, not in this request.
// PUT /api/v1/users/{userID}/follow/{targetID}
func (h *Handler) Follow(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	targetID := chi.URLParam(r, "targetID")

	if err := h.users.Follow(r.Context(), userID, targetID); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	respondNoContent(w)
}

// Unfollow removes a follow edge. Unfollowing someone never followed is
// a no-op success.
// DELETE /api/v1/users/{userID}/follow/{targetID}
func (h *Handler) Unfollow(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	targetID := chi.URLParam(r, "targetID")

	if err := h.users.Unfollow(r.Context(), userID, targetID); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	respondNoContent(w)
}
