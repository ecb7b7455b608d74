// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package eventprocessor

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// JetStreamContext is the subset of jetstream.JetStream used by
// StreamInitializer, narrowed for testing.
type JetStreamContext interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	UpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

// StreamInitializer creates or updates the pipeline stream before any
// publisher or subscriber starts. Initialization is idempotent.
type StreamInitializer struct {
	js   JetStreamContext
	opts StreamOptions
}

// NewStreamInitializer creates an initializer for the given stream
// settings.
func NewStreamInitializer(js JetStreamContext, opts *StreamOptions) (*StreamInitializer, error) {
	if js == nil {
		return nil, fmt.Errorf("JetStream context required")
	}
	if opts == nil {
		return nil, fmt.Errorf("stream options required")
	}

	return &StreamInitializer{
		js:   js,
		opts: *opts,
	}, nil
}

// EnsureStream creates the stream if missing, or updates its
// configuration if it already exists.
func (s *StreamInitializer) EnsureStream(ctx context.Context) (jetstream.Stream, error) {
	streamCfg := jetstream.StreamConfig{
		Name:        s.opts.Name,
		Subjects:    s.opts.Subjects,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      s.opts.MaxAge,
		MaxBytes:    s.opts.MaxBytes,
		MaxMsgs:     s.opts.MaxMsgs,
		Duplicates:  s.opts.DuplicateWindow,
		Replicas:    s.opts.Replicas,
		Storage:     jetstream.FileStorage,
		AllowDirect: true,
		Discard:     jetstream.DiscardOld,
	}

	_, err := s.js.Stream(ctx, s.opts.Name)
	if err == nil {
		stream, err := s.js.UpdateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("update stream %s: %w", s.opts.Name, err)
		}
		return stream, nil
	}

	if errors.Is(err, jetstream.ErrStreamNotFound) {
		stream, err := s.js.CreateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("create stream %s: %w", s.opts.Name, err)
		}
		return stream, nil
	}

	return nil, fmt.Errorf("check stream %s: %w", s.opts.Name, err)
}

// IsHealthy reports whether the stream exists and responds.
func (s *StreamInitializer) IsHealthy(ctx context.Context) bool {
	_, err := s.js.Stream(ctx, s.opts.Name)
	return err == nil
}
