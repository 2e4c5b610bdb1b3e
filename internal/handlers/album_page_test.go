package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/oakmoss-dev/enrichqueue/internal/ratelimit"
)

func TestAlbumPageEmitsTrackPagePerAlbumAndFollowUpWhenPaged(t *testing.T) {
	client := newTestSpotifyClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/albums") {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"items":[{"id":"al1","name":"Album One"},{"id":"al2","name":"Album Two"}],"next":"https://api.spotify.com/v1/artists/a1/albums?offset=50"}`))
	})
	gate := ratelimit.New(newFakeRateLimitStore())
	batches := newFakeBatchWriter()
	h := NewAlbumPage(client, gate, nil, batches)

	meta, _ := json.Marshal(map[string]any{"artist_id": "a1", "artist_name": "Artist One"})
	if err := h.Handle(context.Background(), meta); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(batches.byType("track_page")) != 2 {
		t.Fatalf("expected 2 track_page batches, got %d", len(batches.byType("track_page")))
	}
	followUps := batches.byType("album_page")
	if len(followUps) != 1 {
		t.Fatalf("expected 1 follow-up album_page batch, got %d", len(followUps))
	}
	var followUp albumPageMetadata
	if err := json.Unmarshal(followUps[0].metadata, &followUp); err != nil {
		t.Fatalf("unexpected metadata: %v", err)
	}
	if followUp.Offset != 50 {
		t.Fatalf("expected follow-up offset 50, got %d", followUp.Offset)
	}
}

func TestAlbumPageNoFollowUpWhenLastPage(t *testing.T) {
	client := newTestSpotifyClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[{"id":"al1","name":"Album One"}],"next":null}`))
	})
	gate := ratelimit.New(newFakeRateLimitStore())
	batches := newFakeBatchWriter()
	h := NewAlbumPage(client, gate, nil, batches)

	meta, _ := json.Marshal(map[string]any{"artist_id": "a1", "artist_name": "Artist One"})
	if err := h.Handle(context.Background(), meta); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches.byType("album_page")) != 0 {
		t.Fatalf("expected no follow-up album_page batch, got %d", len(batches.byType("album_page")))
	}
}
