// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package models

import (
	"fmt"
	"strings"
)

// Plex webhook payload models.
// Plex POSTs these as the multipart "payload" field on playback events.
// Documentation: https://support.plex.tv/articles/115002267687-webhooks/

// PlexWebhookEventScrobble is the event fired when content passes the
// watched threshold (75%+ viewed). It is the only event the scrobble
// pipeline consumes; play/pause/stop are acknowledged and ignored.
const PlexWebhookEventScrobble = "media.scrobble"

// PlexWebhook represents a Plex webhook HTTP POST payload.
type PlexWebhook struct {
	Event    string               `json:"event"`
	User     bool                 `json:"user"`
	Owner    bool                 `json:"owner"`
	Account  PlexWebhookAccount   `json:"Account"`
	Server   PlexWebhookServer    `json:"Server"`
	Player   PlexWebhookPlayer    `json:"Player"`
	Metadata *PlexWebhookMetadata `json:"Metadata,omitempty"`
}

// PlexWebhookAccount identifies the Plex account that triggered the event.
type PlexWebhookAccount struct {
	ID    int    `json:"id"`
	Thumb string `json:"thumb"`
	Title string `json:"title"` // username/display name
}

// PlexWebhookServer identifies the originating Plex server.
type PlexWebhookServer struct {
	Title string `json:"title"`
	UUID  string `json:"uuid"`
}

// PlexWebhookPlayer identifies the client device.
type PlexWebhookPlayer struct {
	Local         bool   `json:"local"`
	PublicAddress string `json:"publicAddress"`
	Title         string `json:"title"`
	UUID          string `json:"uuid"`
}

// PlexWebhookGUID is one external identifier attached to the content,
// e.g. {"id": "tvdb://123456"}.
type PlexWebhookGUID struct {
	ID string `json:"id"`
}

// PlexWebhookMetadata carries content metadata for media events.
// For episodes, Title is the episode title, ParentTitle the season title
// and GrandparentTitle the series title.
type PlexWebhookMetadata struct {
	LibrarySectionType   string            `json:"librarySectionType"`
	RatingKey            string            `json:"ratingKey"`
	Key                  string            `json:"key"`
	ParentRatingKey      string            `json:"parentRatingKey"`
	GrandparentRatingKey string            `json:"grandparentRatingKey"`
	GUID                 string            `json:"guid"`
	GUIDs                []PlexWebhookGUID `json:"Guid,omitempty"`
	Type                 string            `json:"type"` // "movie", "episode", ...
	Title                string            `json:"title"`
	GrandparentTitle     string            `json:"grandparentTitle"`
	ParentTitle          string            `json:"parentTitle"`
	Index                int               `json:"index"`       // episode number
	ParentIndex          int               `json:"parentIndex"` // season number
	Year                 int               `json:"year"`
	Thumb                string            `json:"thumb"`
	GrandparentThumb     string            `json:"grandparentThumb"`
	AddedAt              int64             `json:"addedAt"`
	UpdatedAt            int64             `json:"updatedAt"`
}

// IsEpisodeScrobble reports whether this webhook is a scrobble for a TV
// episode, the only shape the resolver accepts.
func (w *PlexWebhook) IsEpisodeScrobble() bool {
	return w.Event == PlexWebhookEventScrobble &&
		w.Metadata != nil &&
		w.Metadata.Type == "episode"
}

// GetUsername returns the account display name.
func (w *PlexWebhook) GetUsername() string {
	return w.Account.Title
}

// GetContentTitle returns a formatted content title for logging.
func (w *PlexWebhook) GetContentTitle() string {
	if w.Metadata == nil {
		return ""
	}
	if w.Metadata.GrandparentTitle != "" {
		return fmt.Sprintf("%s - S%02dE%02d - %s",
			w.Metadata.GrandparentTitle,
			w.Metadata.ParentIndex,
			w.Metadata.Index,
			w.Metadata.Title)
	}
	return w.Metadata.Title
}

// ScrobblePayload converts the webhook metadata into the resolver's Plex
// payload variant. The grandparent/parent year hierarchy follows Plex's
// episode layout; GUIDs are passed through opaquely for the resolver's
// normalization step.
func (w *PlexWebhook) ScrobblePayload() *PlexScrobblePayload {
	if w.Metadata == nil {
		return nil
	}

	guids := make([]string, 0, len(w.Metadata.GUIDs)+1)
	for _, g := range w.Metadata.GUIDs {
		if g.ID != "" {
			guids = append(guids, g.ID)
		}
	}
	// Older Plex versions put a single GUID string on the metadata itself.
	if w.Metadata.GUID != "" && strings.Contains(w.Metadata.GUID, "://") {
		guids = append(guids, w.Metadata.GUID)
	}

	return &PlexScrobblePayload{
		EpisodeTitle:  w.Metadata.Title,
		SeasonTitle:   w.Metadata.ParentTitle,
		SeriesTitle:   w.Metadata.GrandparentTitle,
		EpisodeNumber: w.Metadata.Index,
		SeasonNumber:  w.Metadata.ParentIndex,
		Year:          w.Metadata.Year,
		GUIDs:         guids,
	}
}
