// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/koenoe/tvseri.es-sub003/internal/eventprocessor"
	"github.com/koenoe/tvseri.es-sub003/internal/logging"
	"github.com/koenoe/tvseri.es-sub003/internal/metrics"
	"github.com/koenoe/tvseri.es-sub003/internal/models"
)

// maxWebhookBody bounds the accepted webhook payload.
const maxWebhookBody = 1 << 20

// PlexWebhook receives Plex webhook notifications.
// POST /api/v1/webhooks/plex
//
// Only media.scrobble events for episodes enter the pipeline; every
// other event type is acknowledged and dropped, so Plex never retries
// events we will not use. When a webhook secret is configured the
// X-Plex-Signature header must carry a hex HMAC-SHA256 of the raw body.
//
// Plex sends webhooks as multipart form data with the JSON in the
// "payload" field; plain JSON bodies are accepted too for manual
// replay.
func (h *Handler) PlexWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "failed to read request body")
		return
	}
	defer r.Body.Close()

	if secret := h.cfg.Scrobble.WebhookSecret; secret != "" {
		signature := r.Header.Get("X-Plex-Signature")
		if signature == "" || !verifyWebhookSignature(body, signature, secret) {
			metrics.WebhooksReceived.WithLabelValues("rejected").Inc()
			respondError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "webhook signature verification failed")
			return
		}
	}

	payload := extractWebhookPayload(r, body)
	var webhook models.PlexWebhook
	if err := json.Unmarshal(payload, &webhook); err != nil {
		metrics.WebhooksReceived.WithLabelValues("rejected").Inc()
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid webhook payload")
		return
	}

	if !webhook.IsEpisodeScrobble() {
		metrics.WebhooksReceived.WithLabelValues("ignored").Inc()
		respondOK(w, map[string]string{"status": "ignored"})
		return
	}

	userID := webhook.GetUsername()
	event := models.ScrobbleEvent{
		UserID: userID,
		Plex:   webhook.ScrobblePayload(),
	}

	err = h.publisher.PublishEvent(r.Context(), eventprocessor.TopicScrobblePlex, event, userID, "SCROBBLE")
	if err != nil {
		respondInternal(w, r, err)
		return
	}

	metrics.WebhooksReceived.WithLabelValues("forwarded").Inc()
	logging.Info().
		Str("user", userID).
		Str("content", webhook.GetContentTitle()).
		Msg("Plex scrobble forwarded to resolver")
	respondOK(w, map[string]string{"status": "accepted"})
}

// extractWebhookPayload returns the JSON document from either a
// multipart "payload" field or the raw body.
func extractWebhookPayload(r *http.Request, body []byte) []byte {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		return body
	}

	// Replay the already-read body through the multipart reader.
	replay := r.Clone(r.Context())
	replay.Body = io.NopCloser(bytes.NewReader(body))
	if err := replay.ParseMultipartForm(maxWebhookBody); err != nil {
		return body
	}
	if payload := replay.FormValue("payload"); payload != "" {
		return []byte(payload)
	}
	return body
}

func verifyWebhookSignature(body []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
