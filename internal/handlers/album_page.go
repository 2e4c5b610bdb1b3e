package handlers

import (
	"context"
	"encoding/json"

	"github.com/oakmoss-dev/enrichqueue/internal/clients/spotify"
	"github.com/oakmoss-dev/enrichqueue/internal/metrics"
	"github.com/oakmoss-dev/enrichqueue/internal/ratelimit"
	"github.com/oakmoss-dev/enrichqueue/internal/store"
	"github.com/oakmoss-dev/enrichqueue/internal/worker"
)

type albumPageMetadata struct {
	ArtistID   string `json:"artist_id"`
	ArtistName string `json:"artist_name"`
	Offset     int    `json:"offset,omitempty"`
}

// AlbumPage implements album_page/album_discovery: pages one artist's
// albums and emits a track_page child batch per album, then -- if
// Spotify reports another page -- a follow-up album_page batch for
// the next offset.
type AlbumPage struct {
	client    *spotify.Client
	gate      *ratelimit.Gate
	throttler *worker.Throttler
	batches   store.BatchWriter
}

func NewAlbumPage(client *spotify.Client, gate *ratelimit.Gate, throttler *worker.Throttler, batches store.BatchWriter) *AlbumPage {
	return &AlbumPage{client: client, gate: gate, throttler: throttler, batches: batches}
}

func (h *AlbumPage) call(ctx context.Context, endpoint string, fn func() (spotify.CallResult, error)) error {
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

func (h *AlbumPage) Handle(ctx context.Context, metadata json.RawMessage) error {
	var meta albumPageMetadata
	if err := json.Unmarshal(metadata, &meta); err != nil {
		return err
	}

	var albums []spotify.Album
	var hasNext bool
	if err := h.call(ctx, "/artists/albums", func() (spotify.CallResult, error) {
		var result spotify.CallResult
		var err error
		albums, hasNext, result, err = h.client.ListAlbums(ctx, meta.ArtistID, meta.Offset, 50)
		return result, err
	}); err != nil {
		return err
	}

	for _, album := range albums {
		payload, err := json.Marshal(map[string]string{
			"album_id":    album.ID,
			"album_name":  album.Name,
			"artist_id":   meta.ArtistID,
			"artist_name": meta.ArtistName,
		})
		if err != nil {
			return err
		}
		if _, _, err := h.batches.InsertBatch(ctx, "track_page", payload, 5, ""); err != nil {
			return err
		}
	}

	if hasNext {
		payload, err := json.Marshal(albumPageMetadata{ArtistID: meta.ArtistID, ArtistName: meta.ArtistName, Offset: meta.Offset + 50})
		if err != nil {
			return err
		}
		if _, _, err := h.batches.InsertBatch(ctx, "album_page", payload, 5, ""); err != nil {
			return err
		}
	}
	return nil
}
