// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

// Package database owns the DuckDB connection and schema shared by the
// watched ledger, the list store and the user directory.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/koenoe/tvseri.es-sub003/internal/config"
	"github.com/koenoe/tvseri.es-sub003/internal/logging"
)

// DB wraps the DuckDB connection.
type DB struct {
	conn *sql.DB
	cfg  config.DatabaseConfig
}

// New opens the database file and initializes the schema. The parent
// directory is created when missing.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	if dbDir := filepath.Dir(cfg.Path); dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "1GB"
	}

	// Auto-install/auto-load stays off so startup cannot hang on a
	// network fetch in restricted environments.
	connStr := fmt.Sprintf(
		"%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, maxMemory,
	)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{
		conn: conn,
		cfg:  *cfg,
	}

	conn.SetMaxOpenConns(numThreads)
	conn.SetMaxIdleConns(numThreads)
	conn.SetConnMaxLifetime(0)

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Int("threads", numThreads).Msg("Database opened")
	return db, nil
}

// NewMemory opens an in-memory database with the full schema. Used by
// tests.
func NewMemory() (*DB, error) {
	conn, err := sql.Open("duckdb", ":memory:?autoinstall_known_extensions=false&autoload_known_extensions=false")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, err
	}
	return db, nil
}

// Conn returns the underlying connection for the store packages.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, stmt := range schema {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

func closeQuietly(c *sql.DB) {
	if err := c.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close database connection")
	}
}

// schema is applied in order at startup; every statement is idempotent.
var schema = []string{
	// Watched ledger: one row per (user, series, season, episode).
	// Later writes with the same identity overwrite.
	`CREATE TABLE IF NOT EXISTS watched (
		user_id        TEXT      NOT NULL,
		series_id      BIGINT    NOT NULL,
		season_number  INTEGER   NOT NULL,
		episode_number INTEGER   NOT NULL,
		watched_at     TIMESTAMP NOT NULL,
		runtime        INTEGER   NOT NULL DEFAULT 0,
		provider_name  TEXT,
		provider_logo  TEXT,
		series_title   TEXT      NOT NULL DEFAULT '',
		series_slug    TEXT      NOT NULL DEFAULT '',
		poster_path    TEXT      NOT NULL DEFAULT '',
		episode_title  TEXT      NOT NULL DEFAULT '',
		still_path     TEXT      NOT NULL DEFAULT '',
		PRIMARY KEY (user_id, series_id, season_number, episode_number)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_watched_user_series ON watched (user_id, series_id)`,

	// Derived and direct list membership, keyed by well-known list ID
	// or custom-list ULID.
	`CREATE TABLE IF NOT EXISTS list_items (
		user_id     TEXT      NOT NULL,
		list_id     TEXT      NOT NULL,
		series_id   BIGINT    NOT NULL,
		title       TEXT      NOT NULL DEFAULT '',
		slug        TEXT      NOT NULL DEFAULT '',
		poster_path TEXT      NOT NULL DEFAULT '',
		status      TEXT      NOT NULL DEFAULT '',
		created_at  TIMESTAMP NOT NULL,
		position    INTEGER   NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, list_id, series_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_list_items_page ON list_items (user_id, list_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS custom_lists (
		id         TEXT      PRIMARY KEY,
		user_id    TEXT      NOT NULL,
		name       TEXT      NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,

	// User directory with materialized follow counters.
	`CREATE TABLE IF NOT EXISTS users (
		id              TEXT      PRIMARY KEY,
		username        TEXT      NOT NULL,
		created_at      TIMESTAMP NOT NULL,
		follower_count  BIGINT    NOT NULL DEFAULT 0,
		following_count BIGINT    NOT NULL DEFAULT 0
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users (username)`,

	`CREATE TABLE IF NOT EXISTS follows (
		follower_id  TEXT      NOT NULL,
		following_id TEXT      NOT NULL,
		created_at   TIMESTAMP NOT NULL,
		PRIMARY KEY (follower_id, following_id)
	)`,
}
