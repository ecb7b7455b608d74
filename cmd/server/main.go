// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

// Package main is the entry point for the tvseri.es watch-state server.
//
// The server owns the watched ledger, list memberships, and follow
// counters for the social TV tracker, and keeps the derived lists
// (watched, in-progress) converged with the ledger through an
// event-driven reconciliation pipeline.
//
// # Application Architecture
//
// Components start in the following order:
//
//  1. Configuration: layered Koanf v2 load (defaults, YAML file, TVSERIES_ env)
//  2. NATS: embedded JetStream server (optional) and the WATCHSTATE stream
//  3. Database: DuckDB with the ledger, lists, users, and follows schema
//  4. Pipeline: Watermill router with the stream reconciler, follow counter
//     maintainer, sweep worker, and scrobble resolver handlers
//  5. Sweep scheduler: periodic fan-out of per-user sweep tasks
//  6. HTTP API: chi router with the watched/lists/users endpoints, the Plex
//     webhook, Prometheus metrics, and health
//
// Everything runs under a suture supervisor tree. Pipeline services and the
// HTTP server sit in separate layers so one crashing handler never takes the
// API down with it.
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the supervisor drains both
// layers, in-flight messages get their router close timeout, the HTTP server
// stops accepting connections, and NATS plus DuckDB close last.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/koenoe/tvseri.es-sub003/internal/api"
	"github.com/koenoe/tvseri.es-sub003/internal/cache"
	"github.com/koenoe/tvseri.es-sub003/internal/catalog"
	"github.com/koenoe/tvseri.es-sub003/internal/config"
	"github.com/koenoe/tvseri.es-sub003/internal/database"
	"github.com/koenoe/tvseri.es-sub003/internal/eventprocessor"
	"github.com/koenoe/tvseri.es-sub003/internal/ledger"
	"github.com/koenoe/tvseri.es-sub003/internal/lists"
	"github.com/koenoe/tvseri.es-sub003/internal/logging"
	"github.com/koenoe/tvseri.es-sub003/internal/reconcile"
	"github.com/koenoe/tvseri.es-sub003/internal/scrobble"
	"github.com/koenoe/tvseri.es-sub003/internal/supervisor"
	"github.com/koenoe/tvseri.es-sub003/internal/users"
)

//nolint:gocyclo // Sequential wiring of every component.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("nats_url", cfg.NATS.URL).
		Bool("embedded_nats", cfg.NATS.EmbeddedServer).
		Bool("sweep_enabled", cfg.Sweep.Enabled).
		Msg("Starting tvseri.es watch-state server")

	// Embedded NATS starts before anything that dials it.
	natsURL := cfg.NATS.URL
	var embedded *eventprocessor.EmbeddedServer
	if cfg.NATS.EmbeddedServer {
		serverOpts := eventprocessor.DefaultServerOptions(cfg.NATS.StoreDir)
		embedded, err = eventprocessor.NewEmbeddedServer(&serverOpts)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to start embedded NATS server")
		}
		natsURL = embedded.ClientURL()
		logging.Info().Str("url", natsURL).Msg("Embedded NATS server ready")
	}

	nc, err := natsgo.Connect(natsURL,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
	)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to NATS")
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create JetStream context")
	}

	streamOpts := eventprocessor.DefaultStreamOptions()
	streamInit, err := eventprocessor.NewStreamInitializer(js, &streamOpts)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create stream initializer")
	}

	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	if _, err := streamInit.EnsureStream(initCtx); err != nil {
		cancelInit()
		logging.Fatal().Err(err).Msg("Failed to ensure pipeline stream")
	}
	cancelInit()
	logging.Info().Str("stream", streamOpts.Name).Msg("Pipeline stream ready")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	wmLogger := logging.NewWatermillAdapter()

	publisher, err := eventprocessor.NewPublisher(
		eventprocessor.DefaultPublisherConfig(natsURL), wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create publisher")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing publisher")
		}
	}()
	publisher.SetCircuitBreaker(newPublisherBreaker())

	subscriber, err := eventprocessor.NewSubscriber(subscriberConfig(cfg, natsURL), wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create subscriber")
	}
	defer func() {
		if err := subscriber.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing subscriber")
		}
	}()

	router, err := eventprocessor.NewRouter(routerConfig(cfg), publisher.WatermillPublisher(), wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create pipeline router")
	}

	// Stores. The ledger and user stores publish change events so the
	// reconcilers observe every mutation, API-driven or not.
	ledgerStore := ledger.NewStore(db, publisher)
	listStore := lists.NewStore(db)
	userStore := users.NewStore(db, publisher)

	// Catalog client behind a circuit breaker, fronted by the tiered
	// series-facts cache.
	catalogClient := catalog.NewCircuitBreakerClient(catalog.NewHTTPClient(&cfg.Catalog))

	var badgerStore *cache.BadgerStore
	if cfg.Cache.BadgerPath != "" {
		badgerStore, err = cache.NewBadgerStore(cfg.Cache.BadgerPath, cfg.Cache.TTL)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open badger cache")
		}
		defer func() {
			if err := badgerStore.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing badger cache")
			}
		}()
	}
	seriesCache := cache.NewTieredSeriesCache(cfg.Cache.Entries, cfg.Cache.TTL, badgerStore)
	seriesSource := reconcile.NewCachedSeriesSource(seriesCache, catalogClient)

	// Pipeline handlers.
	streamReconciler := reconcile.NewStreamReconciler(ledgerStore, listStore, seriesSource)
	followMaintainer := reconcile.NewFollowCounterMaintainer(userStore)
	sweepWorker := reconcile.NewSweepWorker(ledgerStore, listStore, seriesSource, cfg.Sweep.Concurrency)
	scrobbleProcessor := scrobble.NewProcessor(
		scrobble.NewResolver(catalogClient, cfg.Scrobble.ResolveTimeout), ledgerStore)

	sub := subscriber.WatermillSubscriber()
	router.AddConsumerHandler(reconcile.HandlerWatchedChanges,
		eventprocessor.TopicWatchedChanges, sub, reconcile.WatchedChangesHandler(streamReconciler))
	router.AddConsumerHandler(reconcile.HandlerFollowChanges,
		eventprocessor.TopicFollowChanges, sub, reconcile.FollowChangesHandler(followMaintainer))
	router.AddConsumerHandler(reconcile.HandlerSweepUser,
		eventprocessor.TopicSweepUser, sub, reconcile.SweepTaskHandler(sweepWorker))
	router.AddConsumerHandler(scrobble.HandlerName,
		eventprocessor.TopicScrobblePlex, sub, scrobble.Handler(scrobbleProcessor))

	sweepScheduler := reconcile.NewSweepScheduler(userStore, publisher, cfg.Sweep)

	// HTTP API.
	apiHandler := api.NewHandler(cfg, ledgerStore, listStore, userStore, seriesSource, publisher,
		map[string]api.HealthChecker{
			"database": api.HealthFunc(db.Ping),
			"nats": api.HealthFunc(func(ctx context.Context) error {
				if !streamInit.IsHealthy(ctx) {
					return fmt.Errorf("stream %s unavailable", streamOpts.Name)
				}
				return nil
			}),
		})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(apiHandler),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddPipelineService(supervisor.NewRouterService(router))
	tree.AddPipelineService(sweepScheduler)
	tree.AddAPIService(supervisor.NewHTTPService(srv, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", srv.Addr).Msg("Supervisor tree starting")
	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("Supervisor tree exited")
	}

	if embedded != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := embedded.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("Error shutting down embedded NATS server")
		}
		cancel()
	}

	logging.Info().Msg("Shutdown complete")
}

// subscriberConfig applies the configured consumer settings on top of
// the subscriber defaults.
func subscriberConfig(cfg *config.Config, natsURL string) *eventprocessor.SubscriberConfig {
	sc := eventprocessor.DefaultSubscriberConfig(natsURL)
	if cfg.NATS.DurableName != "" {
		sc.DurableName = cfg.NATS.DurableName
	}
	if cfg.NATS.QueueGroup != "" {
		sc.QueueGroup = cfg.NATS.QueueGroup
	}
	if cfg.NATS.AckWaitTimeout > 0 {
		sc.AckWaitTimeout = cfg.NATS.AckWaitTimeout
	}
	if cfg.NATS.MaxDeliver > 0 {
		sc.MaxDeliver = cfg.NATS.MaxDeliver
	}
	return &sc
}

// routerConfig applies the configured retry settings on top of the
// router defaults.
func routerConfig(cfg *config.Config) *eventprocessor.RouterConfig {
	rc := eventprocessor.DefaultRouterConfig()
	if cfg.NATS.RouterRetryCount > 0 {
		rc.RetryMaxRetries = cfg.NATS.RouterRetryCount
	}
	if cfg.NATS.RouterRetryInitialInterval > 0 {
		rc.RetryInitialInterval = cfg.NATS.RouterRetryInitialInterval
	}
	if cfg.NATS.RouterRetryMaxInterval > 0 {
		rc.RetryMaxInterval = cfg.NATS.RouterRetryMaxInterval
	}
	if cfg.NATS.RouterCloseTimeout > 0 {
		rc.CloseTimeout = cfg.NATS.RouterCloseTimeout
	}
	if cfg.NATS.PoisonQueueTopic != "" {
		rc.PoisonQueueTopic = cfg.NATS.PoisonQueueTopic
	}
	return &rc
}

// newPublisherBreaker guards NATS publishes. Opening at a 60% failure
// rate over at least 10 attempts keeps API writes fast when the broker
// is down instead of blocking every request on reconnect.
func newPublisherBreaker() *gobreaker.CircuitBreaker[any] {
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "nats-publisher",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 10 &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	})
}
