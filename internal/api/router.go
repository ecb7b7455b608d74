// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/koenoe/tvseri.es-sub003/internal/config"
	"github.com/koenoe/tvseri.es-sub003/internal/ledger"
	"github.com/koenoe/tvseri.es-sub003/internal/lists"
	"github.com/koenoe/tvseri.es-sub003/internal/middleware"
	"github.com/koenoe/tvseri.es-sub003/internal/models"
	"github.com/koenoe/tvseri.es-sub003/internal/users"
)

// SeriesSource resolves series facts for list-entry snapshots.
type SeriesSource interface {
	Series(ctx context.Context, seriesID int64) (*models.Series, error)
}

// ScrobblePublisher forwards accepted webhook scrobbles to the resolver
// topic.
type ScrobblePublisher interface {
	PublishEvent(ctx context.Context, topic string, v any, partitionKey, eventType string) error
}

// HealthChecker reports one component's availability.
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// Handler carries the store and pipeline dependencies for all endpoints.
type Handler struct {
	cfg       *config.Config
	ledger    *ledger.Store
	lists     *lists.Store
	users     *users.Store
	series    SeriesSource
	publisher ScrobblePublisher
	health    map[string]HealthChecker
}

// NewHandler creates the API handler. health maps component names to
// their checkers; series may be nil to disable snapshot enrichment.
func NewHandler(
	cfg *config.Config,
	ledgerStore *ledger.Store,
	listStore *lists.Store,
	userStore *users.Store,
	series SeriesSource,
	publisher ScrobblePublisher,
	health map[string]HealthChecker,
) *Handler {
	return &Handler{
		cfg:       cfg,
		ledger:    ledgerStore,
		lists:     listStore,
		users:     userStore,
		series:    series,
		publisher: publisher,
		health:    health,
	}
}

// NewRouter assembles the chi router with the full middleware stack.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/api/v1/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(h.cfg.Server.RateLimitReqs, h.cfg.Server.RateLimitWindow))
		r.Use(middleware.PrometheusMetrics)

		r.Post("/webhooks/plex", h.PlexWebhook)

		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.CreateUser)
			r.Get("/", h.ListUsers)
			r.Get("/{userID}", h.GetUser)

			r.Put("/{userID}/follow/{targetID}", h.Follow)
			r.Delete("/{userID}/follow/{targetID}", h.Unfollow)

			r.Put("/{userID}/watched", h.MarkWatched)
			r.Get("/{userID}/watched", h.WatchedSeries)
			r.Delete("/{userID}/watched/{seriesID}/{season}/{episode}", h.UnmarkWatched)
			r.Get("/{userID}/watched/{seriesID}/count", h.WatchedCount)
			r.Get("/{userID}/watched/{seriesID}", h.WatchedEpisodes)

			r.Post("/{userID}/lists", h.CreateCustomList)
			r.Get("/{userID}/lists", h.CustomLists)
			r.Delete("/{userID}/lists/{listID}", h.DeleteCustomList)
			r.Get("/{userID}/lists/{listID}/items", h.ListItems)
			r.Put("/{userID}/lists/{listID}/items/{seriesID}", h.AddListItem)
			r.Delete("/{userID}/lists/{listID}/items/{seriesID}", h.RemoveListItem)
		})
	})

	return r
}
