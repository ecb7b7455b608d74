// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package eventprocessor

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Metadata keys carried on every pipeline message.
const (
	// MetaPartitionKey holds the ordering key of the event. Consumers
	// that coalesce or memoize per key read it without decoding the
	// payload.
	MetaPartitionKey = "partition_key"

	// MetaEventType names the payload type for poison-queue triage.
	MetaEventType = "event_type"
)

// NewEventMessage serializes v as a watermill message. The message UUID
// doubles as the JetStream deduplication ID, so publishing the same
// message twice within the dedup window is a no-op.
func NewEventMessage(v any, partitionKey, eventType string) (*message.Message, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)
	msg.Metadata.Set(MetaPartitionKey, partitionKey)
	msg.Metadata.Set(MetaEventType, eventType)
	return msg, nil
}

// DecodeEvent unmarshals a pipeline message payload into T. A decode
// failure is permanent: redelivery cannot fix a malformed payload.
func DecodeEvent[T any](msg *message.Message) (*T, error) {
	var v T
	if err := json.Unmarshal(msg.Payload, &v); err != nil {
		return nil, NewPermanentError(fmt.Errorf("failed to decode %T: %w", v, err))
	}
	return &v, nil
}
