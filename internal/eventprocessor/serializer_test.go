// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package eventprocessor

import (
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/koenoe/tvseri.es-sub003/internal/models"
)

func TestNewEventMessage(t *testing.T) {
	rec := &models.WatchedRecord{
		UserID:        "user-1",
		SeriesID:      1399,
		SeasonNumber:  1,
		EpisodeNumber: 3,
		WatchedAt:     time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC),
	}
	event := models.WatchedChangeEvent{
		EventID:   "evt-1",
		Type:      models.ChangeInsert,
		After:     rec,
		EmittedAt: rec.WatchedAt,
	}

	msg, err := NewEventMessage(event, event.PartitionKey(), "watched_change")
	if err != nil {
		t.Fatalf("NewEventMessage() error = %v", err)
	}

	if msg.UUID == "" {
		t.Error("message UUID should be set")
	}
	if got := msg.Metadata.Get(MetaPartitionKey); got != rec.Key() {
		t.Errorf("partition key = %q, want %q", got, rec.Key())
	}
	if got := msg.Metadata.Get(MetaEventType); got != "watched_change" {
		t.Errorf("event type = %q, want watched_change", got)
	}

	decoded, err := DecodeEvent[models.WatchedChangeEvent](msg)
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	if decoded.EventID != event.EventID || decoded.Type != event.Type {
		t.Errorf("decoded event = %+v, want %+v", decoded, event)
	}
	if decoded.After == nil || decoded.After.SeriesID != rec.SeriesID {
		t.Errorf("decoded After = %+v, want series %d", decoded.After, rec.SeriesID)
	}
}

func TestDecodeEventMalformedIsPermanent(t *testing.T) {
	msg := message.NewMessage("bad", []byte("{not json"))

	_, err := DecodeEvent[models.WatchedChangeEvent](msg)
	if err == nil {
		t.Fatal("expected decode error")
	}
	if !IsPermanentError(err) {
		t.Errorf("decode failure should be permanent, got %v", err)
	}
	if IsRetryableError(err) {
		t.Error("decode failure must not be retryable")
	}
}
