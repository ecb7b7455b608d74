// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, first hit wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tvseries/config.yaml",
	"/etc/tvseries/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix is the prefix for environment variable overrides, e.g.
// TVSERIES_CATALOG_BASE_URL maps to catalog.base_url.
const envPrefix = "TVSERIES_"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8484,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{
			Path:      "/data/tvseries.duckdb",
			MaxMemory: "2GB",
			Threads:   0,
		},
		NATS: NATSConfig{
			URL:                        "nats://127.0.0.1:4222",
			EmbeddedServer:             true,
			StoreDir:                   "/data/nats/jetstream",
			DurableName:                "watch-state",
			QueueGroup:                 "reconcilers",
			RouterRetryCount:           5,
			RouterRetryInitialInterval: time.Second,
			RouterRetryMaxInterval:     time.Minute,
			RouterCloseTimeout:         30 * time.Second,
			PoisonQueueTopic:           "poison.watchstate",
			AckWaitTimeout:             30 * time.Second,
			MaxDeliver:                 5,
		},
		Catalog: CatalogConfig{
			BaseURL:   "https://catalog.tvseri.es",
			Timeout:   10 * time.Second,
			RateLimit: 40,
			Burst:     10,
		},
		Scrobble: ScrobbleConfig{
			WebhookSecret:  "",
			ResolveTimeout: 10 * time.Second,
		},
		Sweep: SweepConfig{
			Enabled:     true,
			Interval:    12 * time.Hour,
			PageSize:    100,
			BatchSize:   25,
			Concurrency: 4,
		},
		Cache: CacheConfig{
			Entries:    10000,
			TTL:        15 * time.Minute,
			BadgerPath: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// TVSERIES_SWEEP_PAGE_SIZE -> sweep.page_size. Only the first
	// underscore separates the section from the key; the rest is the key.
	if err := k.Load(env.Provider(envPrefix, ".", envToKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envToKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(s, "_", 2)
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + parts[1]
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Validate checks struct tags plus cross-field constraints that tags
// cannot express.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	if cfg.NATS.EmbeddedServer && cfg.NATS.StoreDir == "" {
		return fmt.Errorf("validate config: nats.store_dir required when nats.embedded_server is set")
	}
	if cfg.Sweep.BatchSize > cfg.Sweep.PageSize {
		return fmt.Errorf("validate config: sweep.batch_size (%d) must not exceed sweep.page_size (%d)",
			cfg.Sweep.BatchSize, cfg.Sweep.PageSize)
	}
	if cfg.Catalog.RateLimit <= 0 {
		return fmt.Errorf("validate config: catalog.rate_limit must be positive")
	}
	return nil
}
