// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package eventprocessor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

func newTestPubSub(t *testing.T) *gochannel.GoChannel {
	t.Helper()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })
	return pubSub
}

func runTestRouter(t *testing.T, r *Router) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = r.Run(ctx)
	}()
	select {
	case <-r.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}
	return cancel
}

func TestRouterRetriesRetryableErrors(t *testing.T) {
	pubSub := newTestPubSub(t)

	cfg := DefaultRouterConfig()
	cfg.RetryMaxRetries = 3
	cfg.RetryInitialInterval = time.Millisecond
	cfg.RetryMaxInterval = 5 * time.Millisecond
	cfg.PoisonQueueTopic = "" // exercise the no-poison path

	r, err := NewRouter(&cfg, nil, watermill.NopLogger{})
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}

	var attempts int32
	done := make(chan struct{})
	r.AddConsumerHandler("retry-test", "test.topic", pubSub, func(msg *message.Message) error {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return NewRetryableError(context.DeadlineExceeded)
		}
		close(done)
		return nil
	})

	cancel := runTestRouter(t, r)
	defer cancel()
	defer func() { _ = r.Close() }()

	if err := pubSub.Publish("test.topic", message.NewMessage("m1", []byte("{}"))); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("handler never succeeded, attempts = %d", atomic.LoadInt32(&attempts))
	}

	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestRouterRoutesPermanentErrorsToPoison(t *testing.T) {
	pubSub := newTestPubSub(t)

	cfg := DefaultRouterConfig()
	cfg.RetryInitialInterval = time.Millisecond
	cfg.PoisonQueueTopic = "test.poison"

	r, err := NewRouter(&cfg, pubSub, watermill.NopLogger{})
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}

	poisoned, err := pubSub.Subscribe(context.Background(), "test.poison")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	var attempts int32
	r.AddConsumerHandler("poison-test", "test.topic", pubSub, func(msg *message.Message) error {
		atomic.AddInt32(&attempts, 1)
		return NewPermanentError(context.Canceled)
	})

	cancel := runTestRouter(t, r)
	defer cancel()
	defer func() { _ = r.Close() }()

	if err := pubSub.Publish("test.topic", message.NewMessage("m1", []byte("{}"))); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-poisoned:
		msg.Ack()
	case <-time.After(5 * time.Second):
		t.Fatal("message never reached poison topic")
	}

	// The poison filter sits inside Retry, so a permanent error must
	// not consume retry attempts.
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("attempts = %d, want 1 (permanent errors must not retry)", got)
	}
}

func TestRouterSwallowsPermanentWithoutPoison(t *testing.T) {
	pubSub := newTestPubSub(t)

	cfg := DefaultRouterConfig()
	cfg.RetryInitialInterval = time.Millisecond
	cfg.PoisonQueueTopic = ""

	r, err := NewRouter(&cfg, nil, watermill.NopLogger{})
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}

	var attempts int32
	r.AddConsumerHandler("swallow-test", "test.topic", pubSub, func(msg *message.Message) error {
		atomic.AddInt32(&attempts, 1)
		return NewPermanentError(context.Canceled)
	})

	cancel := runTestRouter(t, r)
	defer cancel()
	defer func() { _ = r.Close() }()

	if err := pubSub.Publish("test.topic", message.NewMessage("m1", []byte("{}"))); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	// The message is acked after the single attempt; give redelivery a
	// moment to prove it does not happen.
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}
