// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

type fakeRouter struct {
	ran     chan struct{}
	runErr  error
	blockOn bool
}

func (f *fakeRouter) Run(ctx context.Context) error {
	close(f.ran)
	if f.blockOn {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.runErr
}

func (f *fakeRouter) Close() error { return nil }

func TestRouterServiceStopsWithContext(t *testing.T) {
	r := &fakeRouter{ran: make(chan struct{}), blockOn: true}
	svc := NewRouterService(r)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	<-r.ran
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestRouterServicePropagatesFailure(t *testing.T) {
	r := &fakeRouter{ran: make(chan struct{}), runErr: errors.New("consumer lost")}
	svc := NewRouterService(r)

	err := svc.Serve(context.Background())
	if err == nil || err.Error() != "consumer lost" {
		t.Errorf("Serve returned %v, want consumer lost", err)
	}
}

func TestHTTPServiceShutsDownGracefully(t *testing.T) {
	srv := &http.Server{
		Addr:    "127.0.0.1:0",
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	}
	// Addr with port 0 makes ListenAndServe bind an ephemeral port; the
	// test only exercises the shutdown path.
	svc := NewHTTPService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
