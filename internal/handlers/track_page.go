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

type trackPageMetadata struct {
	AlbumID    string `json:"album_id"`
	AlbumName  string `json:"album_name"`
	ArtistID   string `json:"artist_id"`
	ArtistName string `json:"artist_name"`
	Offset     int    `json:"offset,omitempty"`
}

// TrackPage implements track_page/track_discovery: pages one album's
// tracks and emits a producer_discovery child batch per track.
type TrackPage struct {
	client    *spotify.Client
	gate      *ratelimit.Gate
	throttler *worker.Throttler
	batches   store.BatchWriter
}

func NewTrackPage(client *spotify.Client, gate *ratelimit.Gate, throttler *worker.Throttler, batches store.BatchWriter) *TrackPage {
	return &TrackPage{client: client, gate: gate, throttler: throttler, batches: batches}
}

func (h *TrackPage) call(ctx context.Context, endpoint string, fn func() (spotify.CallResult, error)) error {
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

func (h *TrackPage) Handle(ctx context.Context, metadata json.RawMessage) error {
	var meta trackPageMetadata
	if err := json.Unmarshal(metadata, &meta); err != nil {
		return err
	}

	var tracks []spotify.Track
	var hasNext bool
	if err := h.call(ctx, "/albums/tracks", func() (spotify.CallResult, error) {
		var result spotify.CallResult
		var err error
		tracks, hasNext, result, err = h.client.ListTracks(ctx, meta.AlbumID, meta.Offset, 50)
		return result, err
	}); err != nil {
		return err
	}

	for _, track := range tracks {
		payload, err := json.Marshal(map[string]string{
			"track_id":    track.ID,
			"track_name":  track.Name,
			"album_id":    meta.AlbumID,
			"album_name":  meta.AlbumName,
			"artist_id":   meta.ArtistID,
			"artist_name": meta.ArtistName,
		})
		if err != nil {
			return err
		}
		if _, _, err := h.batches.InsertBatch(ctx, "producer_discovery", payload, 5, ""); err != nil {
			return err
		}
	}

	if hasNext {
		payload, err := json.Marshal(trackPageMetadata{
			AlbumID: meta.AlbumID, AlbumName: meta.AlbumName,
			ArtistID: meta.ArtistID, ArtistName: meta.ArtistName,
			Offset: meta.Offset + 50,
		})
		if err != nil {
			return err
		}
		if _, _, err := h.batches.InsertBatch(ctx, "track_page", payload, 5, ""); err != nil {
			return err
		}
	}
	return nil
}
