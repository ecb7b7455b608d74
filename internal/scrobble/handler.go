// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package scrobble

import (
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/koenoe/tvseri.es-sub003/internal/eventprocessor"
	"github.com/koenoe/tvseri.es-sub003/internal/metrics"
	"github.com/koenoe/tvseri.es-sub003/internal/models"
)

// HandlerName is the router registration for the scrobble consumer.
// It doubles as the durable consumer name.
const HandlerName = "scrobble_resolver"

// Handler adapts the processor to the message router.
//
// Unresolved scrobbles and malformed payloads are permanent: redelivery
// cannot fix a catalog gap, and retrying would wedge the partition
// behind a poison message. Ledger failures are retryable.
func Handler(p *Processor) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		start := time.Now()
		metrics.ChangeEventsConsumed.WithLabelValues(HandlerName).Inc()

		event, err := eventprocessor.DecodeEvent[models.ScrobbleEvent](msg)
		if err != nil {
			return err
		}

		if err := p.Process(msg.Context(), event); err != nil {
			if errors.Is(err, ErrUnresolved) || errors.Is(err, ErrMalformed) {
				return eventprocessor.NewPermanentError(err)
			}
			return eventprocessor.NewRetryableError(fmt.Errorf("process scrobble: %w", err))
		}

		metrics.ObservePipelineDuration(HandlerName, time.Since(start))
		return nil
	}
}
