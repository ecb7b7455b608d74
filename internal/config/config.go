// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

// Package config loads and validates application configuration.
//
// Loading order (koanf v2): built-in defaults, then an optional YAML config
// file, then environment variables with the TVSERIES_ prefix. Config is
// immutable after Load and safe for concurrent reads.
package config

import (
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	NATS     NATSConfig     `koanf:"nats"`
	Catalog  CatalogConfig  `koanf:"catalog"`
	Scrobble ScrobbleConfig `koanf:"scrobble"`
	Sweep    SweepConfig    `koanf:"sweep"`
	Cache    CacheConfig    `koanf:"cache"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout"`

	// RateLimitReqs/RateLimitWindow bound request rates per client IP.
	RateLimitReqs   int           `koanf:"rate_limit_requests"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count; 0 means runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// NATSConfig holds JetStream transport settings.
type NATSConfig struct {
	URL            string `koanf:"url" validate:"required"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`

	DurableName string `koanf:"durable_name"`
	QueueGroup  string `koanf:"queue_group"`

	// Router middleware settings (retry with exponential backoff, poison queue).
	RouterRetryCount           int           `koanf:"router_retry_count"`
	RouterRetryInitialInterval time.Duration `koanf:"router_retry_initial_interval"`
	RouterRetryMaxInterval     time.Duration `koanf:"router_retry_max_interval"`
	RouterCloseTimeout         time.Duration `koanf:"router_close_timeout"`
	PoisonQueueTopic           string        `koanf:"poison_queue_topic"`

	AckWaitTimeout time.Duration `koanf:"ack_wait_timeout"`
	MaxDeliver     int           `koanf:"max_deliver"`
}

// CatalogConfig holds catalog client settings.
type CatalogConfig struct {
	BaseURL string        `koanf:"base_url" validate:"required,url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`

	// RateLimit is requests per second against the catalog; Burst the bucket size.
	RateLimit float64 `koanf:"rate_limit"`
	Burst     int     `koanf:"burst"`
}

// ScrobbleConfig holds scrobble intake and resolution settings.
type ScrobbleConfig struct {
	// WebhookSecret enables HMAC-SHA256 verification of Plex webhook bodies
	// when non-empty.
	WebhookSecret string `koanf:"webhook_secret"`

	// ResolveTimeout bounds the concurrent external-ID lookups per scrobble.
	ResolveTimeout time.Duration `koanf:"resolve_timeout"`
}

// SweepConfig holds the periodic full-corpus reconciliation settings.
type SweepConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`

	// PageSize bounds user-directory pagination; BatchSize groups enqueued
	// work items to bound publish calls.
	PageSize  int `koanf:"page_size" validate:"min=1"`
	BatchSize int `koanf:"batch_size" validate:"min=1"`

	// Concurrency bounds per-series catalog fan-out within one user.
	Concurrency int `koanf:"concurrency" validate:"min=1"`
}

// CacheConfig holds the series-facts cache settings. The cache is
// best-effort and instance-scoped; it is never a correctness dependency.
type CacheConfig struct {
	// Entries bounds the in-process LRU size.
	Entries int           `koanf:"entries" validate:"min=1"`
	TTL     time.Duration `koanf:"ttl"`

	// BadgerPath enables the persistent second-level cache when non-empty.
	BadgerPath string `koanf:"badger_path"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}
