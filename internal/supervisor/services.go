// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/koenoe/tvseri.es-sub003/internal/logging"
)

// HTTPService runs an http.Server under supervision. Serve blocks until
// the context is canceled, then drains connections within the timeout.
type HTTPService struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

// NewHTTPService wraps srv for the tree.
func NewHTTPService(srv *http.Server, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout == 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: srv, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("HTTP server shutdown incomplete, closing")
			_ = s.server.Close()
		}
		<-errCh
		return ctx.Err()
	}
}

// MessageRouter is the slice of the event router the service wrapper
// needs.
type MessageRouter interface {
	Run(ctx context.Context) error
	Close() error
}

// RouterService runs the watermill router under supervision.
type RouterService struct {
	router MessageRouter
}

// NewRouterService wraps the router for the tree.
func NewRouterService(router MessageRouter) *RouterService {
	return &RouterService{router: router}
}

// Serve implements suture.Service. Run blocks until the context is
// canceled; a non-context error propagates so suture restarts the
// consumer loop.
func (s *RouterService) Serve(ctx context.Context) error {
	err := s.router.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return ctx.Err()
}
