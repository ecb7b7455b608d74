// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package models

import (
	"testing"
	"time"
)

func TestWatchedChangeEventRecord(t *testing.T) {
	rec := &WatchedRecord{UserID: "alice", SeriesID: 42, SeasonNumber: 1, EpisodeNumber: 3}

	tests := []struct {
		name    string
		event   WatchedChangeEvent
		want    *WatchedRecord
		wantErr bool
	}{
		{
			name:  "insert uses after image",
			event: WatchedChangeEvent{Type: ChangeInsert, After: rec},
			want:  rec,
		},
		{
			name:  "remove uses before image",
			event: WatchedChangeEvent{Type: ChangeRemove, Before: rec},
			want:  rec,
		},
		{
			name:  "overwrite carries both, after wins",
			event: WatchedChangeEvent{Type: ChangeInsert, Before: &WatchedRecord{}, After: rec},
			want:  rec,
		},
		{
			name:    "insert without after is malformed",
			event:   WatchedChangeEvent{Type: ChangeInsert},
			wantErr: true,
		},
		{
			name:    "remove without before is malformed",
			event:   WatchedChangeEvent{Type: ChangeRemove, After: rec},
			wantErr: true,
		},
		{
			name:    "unknown type is malformed",
			event:   WatchedChangeEvent{Type: "TRUNCATE", Before: rec, After: rec},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.event.Record()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Record() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Record() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPartitionKeyMatchesLedgerIdentity(t *testing.T) {
	rec := &WatchedRecord{UserID: "alice", SeriesID: 42, SeasonNumber: 1, EpisodeNumber: 3}
	insert := WatchedChangeEvent{Type: ChangeInsert, After: rec}
	remove := WatchedChangeEvent{Type: ChangeRemove, Before: rec}

	if insert.PartitionKey() != rec.Key() {
		t.Errorf("insert partition key %q != record key %q", insert.PartitionKey(), rec.Key())
	}
	if insert.PartitionKey() != remove.PartitionKey() {
		t.Error("insert and remove for the same entry must share a partition key")
	}
	if rec.Key() != "alice#42#1#3" {
		t.Errorf("unexpected key format: %q", rec.Key())
	}

	malformed := WatchedChangeEvent{Type: ChangeInsert}
	if malformed.PartitionKey() != "" {
		t.Errorf("malformed event partition key = %q, want empty", malformed.PartitionKey())
	}
}

func TestFollowChangeEventDelta(t *testing.T) {
	tests := []struct {
		eventType string
		want      int
	}{
		{ChangeInsert, 1},
		{ChangeRemove, -1},
		{"UPDATE", 0},
		{"", 0},
	}

	for _, tt := range tests {
		e := FollowChangeEvent{Type: tt.eventType}
		if got := e.Delta(); got != tt.want {
			t.Errorf("Delta(%q) = %d, want %d", tt.eventType, got, tt.want)
		}
	}
}

func TestWatchedRecordValidate(t *testing.T) {
	valid := WatchedRecord{
		UserID:        "alice",
		SeriesID:      42,
		SeasonNumber:  1,
		EpisodeNumber: 1,
		WatchedAt:     time.Now(),
	}

	tests := []struct {
		name    string
		mutate  func(r *WatchedRecord)
		wantErr bool
	}{
		{"valid record", func(r *WatchedRecord) {}, false},
		{"season zero is specials", func(r *WatchedRecord) { r.SeasonNumber = 0 }, false},
		{"missing user", func(r *WatchedRecord) { r.UserID = "" }, true},
		{"zero series", func(r *WatchedRecord) { r.SeriesID = 0 }, true},
		{"negative season", func(r *WatchedRecord) { r.SeasonNumber = -1 }, true},
		{"episode zero", func(r *WatchedRecord) { r.EpisodeNumber = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			err := r.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPlexPayloadNormalizeExtractsExternalIDs(t *testing.T) {
	p := PlexScrobblePayload{
		SeriesTitle:   "Severance",
		EpisodeTitle:  "Good News About Hell",
		SeasonNumber:  1,
		EpisodeNumber: 1,
		Year:          2022,
		GUIDs: []string{
			"imdb://tt11280740",
			"tvdb://8394312",
			"tmdb://95396",
			"plex://episode/5d9c11154eefaa001f6364e0",
		},
	}

	md := p.Normalize()
	if md.ExternalIDs == nil {
		t.Fatal("expected external IDs")
	}
	if md.ExternalIDs.IMDB != "tt11280740" {
		t.Errorf("IMDB = %q", md.ExternalIDs.IMDB)
	}
	if md.ExternalIDs.TVDB != "8394312" {
		t.Errorf("TVDB = %q", md.ExternalIDs.TVDB)
	}
	if md.ExternalIDs.TMDB != "95396" {
		t.Errorf("TMDB = %q", md.ExternalIDs.TMDB)
	}
	if md.SeriesTitle != "Severance" || md.SeasonNumber != 1 || md.EpisodeNumber != 1 {
		t.Errorf("metadata fields not carried over: %+v", md)
	}
}

func TestPlexPayloadNormalizeWithoutIDs(t *testing.T) {
	p := PlexScrobblePayload{SeriesTitle: "Severance", GUIDs: []string{"plex://episode/abc"}}
	if md := p.Normalize(); md.ExternalIDs != nil {
		t.Errorf("expected nil external IDs, got %+v", md.ExternalIDs)
	}
}

func TestPlexWebhookIsEpisodeScrobble(t *testing.T) {
	episode := &PlexWebhookMetadata{Type: "episode"}
	movie := &PlexWebhookMetadata{Type: "movie"}

	tests := []struct {
		name     string
		event    string
		metadata *PlexWebhookMetadata
		want     bool
	}{
		{"episode scrobble", PlexWebhookEventScrobble, episode, true},
		{"movie scrobble", PlexWebhookEventScrobble, movie, false},
		{"episode pause", "media.pause", episode, false},
		{"scrobble without metadata", PlexWebhookEventScrobble, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := PlexWebhook{Event: tt.event, Metadata: tt.metadata}
			if got := w.IsEpisodeScrobble(); got != tt.want {
				t.Errorf("IsEpisodeScrobble() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScrobblePayloadCollectsGUIDVariants(t *testing.T) {
	w := PlexWebhook{
		Event: PlexWebhookEventScrobble,
		Metadata: &PlexWebhookMetadata{
			Type:             "episode",
			Title:            "The We We Are",
			ParentTitle:      "Season 1",
			GrandparentTitle: "Severance",
			Index:            9,
			ParentIndex:      1,
			GUID:             "tvdb://8394320",
			GUIDs:            []PlexWebhookGUID{{ID: "imdb://tt13303712"}},
		},
	}

	p := w.ScrobblePayload()
	if p == nil {
		t.Fatal("expected payload")
	}
	if p.SeriesTitle != "Severance" || p.SeasonNumber != 1 || p.EpisodeNumber != 9 {
		t.Errorf("unexpected payload: %+v", p)
	}
	if len(p.GUIDs) != 2 {
		t.Fatalf("GUIDs = %v, want both the Guid list entry and the legacy field", p.GUIDs)
	}
}

func TestScrobbleEventPayloadRequiresVariant(t *testing.T) {
	e := ScrobbleEvent{UserID: "alice"}
	if _, err := e.Payload(); err == nil {
		t.Fatal("expected error for event without provider payload")
	}
	if e.Provider() != "" {
		t.Errorf("Provider() = %q, want empty", e.Provider())
	}

	e.Plex = &PlexScrobblePayload{SeriesTitle: "Severance"}
	if e.Provider() != ScrobbleProviderPlex {
		t.Errorf("Provider() = %q, want %q", e.Provider(), ScrobbleProviderPlex)
	}
	if _, err := e.Payload(); err != nil {
		t.Fatalf("Payload() error: %v", err)
	}
}
