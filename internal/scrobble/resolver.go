// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

// Package scrobble turns passive media-server watch events into ledger
// writes. A scrobble identifies an episode by external IDs and titles;
// the resolver maps that to a catalog identity or drops the event.
package scrobble

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/koenoe/tvseri.es-sub003/internal/catalog"
	"github.com/koenoe/tvseri.es-sub003/internal/logging"
	"github.com/koenoe/tvseri.es-sub003/internal/metrics"
	"github.com/koenoe/tvseri.es-sub003/internal/models"
)

// Resolution strategy names, used as the metric label.
const (
	StrategyExternalID  = "external_id"
	StrategyFuzzySearch = "fuzzy_search"
	StrategyUnresolved  = "unresolved"
)

// Resolution is the tagged outcome of resolving a scrobble. Exactly one
// of Resolved or Unresolved applies; failure to resolve is a value, not
// an error, because it is terminal rather than retryable.
type Resolution struct {
	Series   *models.Series
	Episode  *models.Episode
	Strategy string

	// Reason is non-empty when the scrobble could not be resolved.
	Reason string
}

// Resolved reports whether the scrobble mapped to a catalog identity.
func (r *Resolution) Resolved() bool {
	return r.Series != nil && r.Episode != nil
}

func unresolved(reason string) Resolution {
	return Resolution{Strategy: StrategyUnresolved, Reason: reason}
}

// Resolver maps scrobble metadata to catalog identities.
//
// Strategy order: external-ID lookups first (imdb and tvdb queried
// concurrently, winner picked in fixed priority order imdb then tvdb),
// then fuzzy title search with an exact episode fetch. The tmdb ID is
// extracted during normalization but never queried.
type Resolver struct {
	client  catalog.Client
	timeout time.Duration
}

// NewResolver creates a resolver. timeout bounds the concurrent
// external-ID lookups; zero disables the bound.
func NewResolver(client catalog.Client, timeout time.Duration) *Resolver {
	return &Resolver{client: client, timeout: timeout}
}

// Resolve runs the strategy chain for one scrobble.
func (r *Resolver) Resolve(ctx context.Context, md *models.ScrobbleMetadata) Resolution {
	if res, ok := r.resolveByExternalID(ctx, md); ok {
		metrics.ScrobbleResolutions.WithLabelValues(StrategyExternalID).Inc()
		return res
	}

	if res, ok := r.resolveByFuzzySearch(ctx, md); ok {
		metrics.ScrobbleResolutions.WithLabelValues(StrategyFuzzySearch).Inc()
		return res
	}

	metrics.ScrobbleResolutions.WithLabelValues(StrategyUnresolved).Inc()
	return unresolved("no strategy produced a catalog identity")
}

type lookupResult struct {
	match *models.ExternalIDMatch
	err   error
}

// resolveByExternalID queries imdb and tvdb concurrently and picks the
// first usable match in priority order, not arrival order: a fast tvdb
// answer never outranks a slower imdb one.
func (r *Resolver) resolveByExternalID(ctx context.Context, md *models.ScrobbleMetadata) (Resolution, bool) {
	ids := md.ExternalIDs
	if ids.Empty() {
		return Resolution{}, false
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	lookups := []struct {
		source models.ExternalIDSource
		id     string
	}{
		{models.SourceIMDB, ids.IMDB},
		{models.SourceTVDB, ids.TVDB},
	}

	results := make([]chan lookupResult, len(lookups))
	for i, l := range lookups {
		results[i] = make(chan lookupResult, 1)
		if l.id == "" {
			results[i] <- lookupResult{}
			continue
		}
		go func(source models.ExternalIDSource, id string, out chan<- lookupResult) {
			match, err := r.client.FindByExternalID(ctx, source, id)
			out <- lookupResult{match: match, err: err}
		}(l.source, l.id, results[i])
	}

	for i, l := range lookups {
		res := <-results[i]
		if res.err != nil {
			if !errors.Is(res.err, catalog.ErrNotFound) {
				logging.Warn().Err(res.err).
					Str("source", string(l.source)).
					Str("external_id", l.id).
					Msg("External-ID lookup failed, falling through")
			}
			continue
		}
		if res.match == nil || len(res.match.Episodes) == 0 {
			continue
		}

		episode := res.match.Episodes[0]
		series, err := r.client.FetchSeries(ctx, episode.SeriesID)
		if err != nil {
			logging.Warn().Err(err).
				Int64("series_id", episode.SeriesID).
				Msg("Series fetch after external-ID match failed, falling through")
			continue
		}
		return Resolution{Series: series, Episode: &episode, Strategy: StrategyExternalID}, true
	}
	return Resolution{}, false
}

// resolveByFuzzySearch searches the catalog by title and year, takes the
// top hit and fetches the exact (season, episode) identity from it.
func (r *Resolver) resolveByFuzzySearch(ctx context.Context, md *models.ScrobbleMetadata) (Resolution, bool) {
	if md.SeriesTitle == "" {
		return Resolution{}, false
	}

	matches, err := r.client.SearchSeries(ctx, md.SeriesTitle, md.Year)
	if err != nil || len(matches) == 0 {
		if err != nil && !errors.Is(err, catalog.ErrNotFound) {
			logging.Warn().Err(err).Str("title", md.SeriesTitle).Msg("Fuzzy series search failed")
		}
		return Resolution{}, false
	}

	series := matches[0]
	episode, err := r.client.FetchEpisode(ctx, series.ID, md.SeasonNumber, md.EpisodeNumber)
	if err != nil {
		if !errors.Is(err, catalog.ErrNotFound) {
			logging.Warn().Err(err).
				Int64("series_id", series.ID).
				Int("season", md.SeasonNumber).
				Int("episode", md.EpisodeNumber).
				Msg("Episode fetch after fuzzy match failed")
		}
		return Resolution{}, false
	}

	return Resolution{Series: &series, Episode: episode, Strategy: StrategyFuzzySearch}, true
}

// WatchedLedger is the ledger write surface the processor needs.
// Satisfied by ledger.Store.
type WatchedLedger interface {
	Upsert(ctx context.Context, rec *models.WatchedRecord) error
}

// Processor resolves scrobble events and writes resolved ones to the
// watched ledger. Unresolved scrobbles are dropped terminally: the full
// payload is logged so the event can be replayed by hand once the
// catalog gap is fixed.
type Processor struct {
	resolver *Resolver
	ledger   WatchedLedger
	now      func() time.Time
}

// NewProcessor creates a scrobble processor.
func NewProcessor(resolver *Resolver, ledger WatchedLedger) *Processor {
	return &Processor{
		resolver: resolver,
		ledger:   ledger,
		now:      time.Now,
	}
}

// ErrUnresolved marks a scrobble that exhausted the strategy chain.
// ErrMalformed marks a structurally unusable event. Callers treat both
// as permanent.
var (
	ErrUnresolved = errors.New("scrobble: unresolved after all strategies")
	ErrMalformed  = errors.New("scrobble: malformed event")
)

// Process resolves one scrobble event and records the watch. The ledger
// write is an upsert on the episode identity, so duplicate scrobbles of
// the same episode collapse into one row.
func (p *Processor) Process(ctx context.Context, event *models.ScrobbleEvent) error {
	if event.UserID == "" {
		return fmt.Errorf("%w: missing user id", ErrMalformed)
	}
	md, err := event.Payload()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	res := p.resolver.Resolve(ctx, md)
	if !res.Resolved() {
		metrics.ScrobbleDropped.Inc()
		logging.Warn().
			Str("user_id", event.UserID).
			Str("provider", event.Provider()).
			Str("reason", res.Reason).
			Interface("payload", event).
			Msg("Dropping unresolvable scrobble")
		return ErrUnresolved
	}

	provider := models.PlexWatchProvider
	rec := &models.WatchedRecord{
		UserID:        event.UserID,
		SeriesID:      res.Series.ID,
		SeasonNumber:  res.Episode.SeasonNumber,
		EpisodeNumber: res.Episode.EpisodeNumber,
		WatchedAt:     p.now().UTC(),
		Runtime:       res.Episode.Runtime,
		Provider:      &provider,
		SeriesTitle:   res.Series.Title,
		SeriesSlug:    res.Series.Slug,
		PosterPath:    res.Series.PosterPath,
		EpisodeTitle:  res.Episode.Title,
		StillPath:     res.Episode.StillPath,
	}
	if err := p.ledger.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("record scrobbled watch: %w", err)
	}

	logging.Info().
		Str("user_id", event.UserID).
		Int64("series_id", res.Series.ID).
		Int("season", res.Episode.SeasonNumber).
		Int("episode", res.Episode.EpisodeNumber).
		Str("strategy", res.Strategy).
		Msg("Scrobble resolved and recorded")
	return nil
}
