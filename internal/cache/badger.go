// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package cache

import (
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/koenoe/tvseri.es-sub003/internal/logging"
)

// BadgerStore is a persistent key-value cache tier backed by Badger.
// It survives process restarts, which matters for the sweep reconciler:
// a sweep touches the whole user corpus and re-fetching every series'
// facts from the catalog after a redeploy is wasteful.
//
// Entries carry a TTL enforced by Badger itself. Like the LRU tier, this
// store is best-effort; read and write failures are logged and swallowed.
type BadgerStore struct {
	db  *badger.DB
	ttl time.Duration
}

// NewBadgerStore opens (or creates) the Badger database at path.
func NewBadgerStore(path string, ttl time.Duration) (*BadgerStore, error) {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil // badger's own logger is too chatty; errors surface via return values

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store at %s: %w", path, err)
	}
	return &BadgerStore{db: db, ttl: ttl}, nil
}

// Get unmarshals the cached value for key into out. The second return is
// false on miss, expiry or decode failure.
func (s *BadgerStore) Get(key string, out any) bool {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			logging.Debug().Err(err).Str("key", key).Msg("badger cache read failed")
		}
		return false
	}
	return true
}

// Set marshals value under key with the store's TTL.
func (s *BadgerStore) Set(key string, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		logging.Debug().Err(err).Str("key", key).Msg("badger cache marshal failed")
		return
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), payload).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		logging.Debug().Err(err).Str("key", key).Msg("badger cache write failed")
	}
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
