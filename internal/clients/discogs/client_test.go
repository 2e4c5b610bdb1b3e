package discogs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return newWithBaseURL("consumer-key", "consumer-secret", srv.URL)
}

func TestSearchCreditsFetchesReleaseExtraArtists(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/database/search"):
			if r.URL.Query().Get("key") != "consumer-key" {
				t.Fatalf("expected consumer key query param")
			}
			w.Write([]byte(`{"results":[{"id":123}]}`))
		case strings.HasPrefix(r.URL.Path, "/releases/123"):
			w.Write([]byte(`{"extraartists":[{"name":"Producer One","role":"Producer"}]}`))
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	})

	credits, result, err := c.SearchCredits(context.Background(), "Test Artist", "Test Release")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 status, got %d", result.StatusCode)
	}
	if len(credits) != 1 || credits[0].Name != "Producer One" {
		t.Fatalf("unexpected credits: %+v", credits)
	}
}

func TestSearchCreditsNoResultsReturnsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	})

	credits, _, err := c.SearchCredits(context.Background(), "Nobody", "Nothing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(credits) != 0 {
		t.Fatalf("expected no credits, got %+v", credits)
	}
}

func TestSearchCreditsSearchNon2xxReturnsStatusCoderError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, result, err := c.SearchCredits(context.Background(), "a", "b")
	if err == nil {
		t.Fatal("expected error on 429 response")
	}
	if result.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", result.StatusCode)
	}
	sc, ok := err.(interface{ StatusCode() int })
	if !ok || sc.StatusCode() != http.StatusTooManyRequests {
		t.Fatalf("expected StatusCode()==429, got %T %v", err, err)
	}
}

func TestReleaseCreditsNon2xxReturnsStatusCoderError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/database/search"):
			w.Write([]byte(`{"results":[{"id":456}]}`))
		case strings.HasPrefix(r.URL.Path, "/releases/456"):
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	_, result, err := c.SearchCredits(context.Background(), "a", "b")
	if err == nil {
		t.Fatal("expected error on release lookup failure")
	}
	if result.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", result.StatusCode)
	}
}
