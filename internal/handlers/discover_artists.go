package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oakmoss-dev/enrichqueue/internal/clients/spotify"
	"github.com/oakmoss-dev/enrichqueue/internal/metrics"
	"github.com/oakmoss-dev/enrichqueue/internal/ratelimit"
	"github.com/oakmoss-dev/enrichqueue/internal/store"
	"github.com/oakmoss-dev/enrichqueue/internal/worker"
)

// genreSeedDelay is the pause between successive genre-seed search
// calls, named explicitly in the discovery contract so a cold start
// (no query, no cached seeds) doesn't burst five searches at once.
const genreSeedDelay = 250 * time.Millisecond

type discoverArtistsMetadata struct {
	Query string `json:"query,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// DiscoverArtists implements the discover-artists batch_type: a
// query-driven search when metadata carries one, otherwise a sweep
// over the first five genre seeds.
type DiscoverArtists struct {
	client     *spotify.Client
	gate       *ratelimit.Gate
	throttler  *worker.Throttler
	batches    store.BatchWriter
	genreSeeds func(ctx context.Context) ([]string, error)

	// cachedSeeds holds the last genre-seed list fetched this process
	// lifetime; Spotify's seed list changes rarely enough that
	// refetching it every tick would be wasted rate-limit budget.
	cachedSeeds []string
}

func NewDiscoverArtists(client *spotify.Client, gate *ratelimit.Gate, throttler *worker.Throttler, batches store.BatchWriter) *DiscoverArtists {
	h := &DiscoverArtists{client: client, gate: gate, throttler: throttler, batches: batches}
	h.genreSeeds = h.fetchGenreSeeds
	return h
}

func (h *DiscoverArtists) fetchGenreSeeds(ctx context.Context) ([]string, error) {
	if len(h.cachedSeeds) > 0 {
		return h.cachedSeeds, nil
	}
	if err := h.call(ctx, "/recommendations/available-genre-seeds", func() (spotify.CallResult, error) {
		seeds, result, err := h.client.GenreSeeds(ctx)
		if err != nil {
			return result, err
		}
		h.cachedSeeds = seeds
		return result, nil
	}); err != nil {
		return nil, err
	}
	return h.cachedSeeds, nil
}

func (h *DiscoverArtists) call(ctx context.Context, endpoint string, fn func() (spotify.CallResult, error)) error {
	if err := h.gate.Check(ctx, spotify.APIName, endpoint); err != nil {
		return err
	}
	if h.throttler != nil {
		if err := h.throttler.Acquire(ctx); err != nil {
			return err
		}
		defer h.throttler.Release()
	}
	result, err := fn()
	if result.RequestsLimit > 0 {
		if updateErr := h.gate.Update(ctx, spotify.APIName, endpoint, result.RequestsRemaining, result.RequestsLimit, result.ResetAt, ""); updateErr != nil {
			return updateErr
		}
	}
	if err != nil {
		metrics.IncRateLimitThrottled(spotify.APIName, endpoint)
		return classify(err)
	}
	return nil
}

func (h *DiscoverArtists) Handle(ctx context.Context, metadata json.RawMessage) error {
	var meta discoverArtistsMetadata
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &meta); err != nil {
			return err
		}
	}

	var artists []spotify.Artist

	if meta.Query != "" {
		var found []spotify.Artist
		if err := h.call(ctx, "/search", func() (spotify.CallResult, error) {
			var result spotify.CallResult
			var err error
			found, result, err = h.client.SearchArtists(ctx, meta.Query, meta.Limit)
			return result, err
		}); err != nil {
			return err
		}
		artists = found
	} else {
		seeds, err := h.genreSeeds(ctx)
		if err != nil {
			return err
		}
		if len(seeds) > 5 {
			seeds = seeds[:5]
		}
		for i, seed := range seeds {
			if i > 0 {
				select {
				case <-time.After(genreSeedDelay):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			var found []spotify.Artist
			if err := h.call(ctx, "/search", func() (spotify.CallResult, error) {
				var result spotify.CallResult
				var err error
				found, result, err = h.client.SearchArtistsByGenre(ctx, seed, 5)
				return result, err
			}); err != nil {
				return err
			}
			artists = append(artists, found...)
		}
	}

	for _, artist := range artists {
		payload, err := json.Marshal(map[string]string{"artist_id": artist.ID, "artist_name": artist.Name})
		if err != nil {
			return err
		}
		if _, _, err := h.batches.InsertBatch(ctx, "album_page", payload, 5, ""); err != nil {
			return err
		}
	}
	return nil
}
