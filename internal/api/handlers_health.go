// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package api

import (
	"context"
	"net/http"
	"time"
)

// HealthFunc adapts a plain function to HealthChecker.
type HealthFunc func(ctx context.Context) error

// Healthy implements HealthChecker.
func (f HealthFunc) Healthy(ctx context.Context) error { return f(ctx) }

// componentHealth is one component's entry in the health report.
type componentHealth struct {
	Status string `json:"status"` // "up" or "down"
	Error  string `json:"error,omitempty"`
}

// Health reports per-component availability. The endpoint returns 503
// when any component is down so load balancers can act on the status
// code alone.
// GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	components := make(map[string]componentHealth, len(h.health))
	healthy := true
	for name, checker := range h.health {
		if err := checker.Healthy(ctx); err != nil {
			components[name] = componentHealth{Status: "down", Error: err.Error()}
			healthy = false
			continue
		}
		components[name] = componentHealth{Status: "up"}
	}

	status := http.StatusOK
	overall := "up"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "down"
	}
	respondJSON(w, status, Response{
		Success: healthy,
		Data: map[string]any{
			"status":     overall,
			"components": components,
			"checked_at": time.Now().UTC(),
		},
	})
}
