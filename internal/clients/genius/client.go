// Package genius is a thin client over the Genius API endpoint the
// producer-discovery handler uses to look up writer/producer credits
// for a track, authenticated with a static bearer access token.
package genius

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	APIName        = "genius"
	defaultBaseURL = "https://api.genius.com"
)

type Client struct {
	httpClient  *http.Client
	accessToken string
	baseURL     string
}

func New(accessToken string) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		accessToken: accessToken,
		baseURL:     defaultBaseURL,
	}
}

// newWithBaseURL builds a client pointed at a test server instead of
// the real Genius API.
func newWithBaseURL(accessToken, baseURL string) *Client {
	c := New(accessToken)
	c.baseURL = baseURL
	return c
}

// NewForTest exposes newWithBaseURL to other packages' tests.
func NewForTest(baseURL string) *Client {
	return newWithBaseURL("test-access-token", baseURL)
}

// Credit is one writer/producer attribution surfaced by a song hit.
type Credit struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// CallResult carries the fields the rate-limit gate needs to persist
// alongside whatever the call itself returned.
type CallResult struct {
	RequestsRemaining int
	RequestsLimit     int
	ResetAt           time.Time
	StatusCode        int
}

type httpStatusError struct {
	status int
	path   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("genius request to %s failed: status %d", e.path, e.status)
}

func (e *httpStatusError) StatusCode() int { return e.status }

// SearchCredits looks up a track by artist/title and returns whatever
// writer/producer credits the first matching hit carries.
func (c *Client) SearchCredits(ctx context.Context, artist, title string) ([]Credit, CallResult, error) {
	path := fmt.Sprintf("/search?q=%s", url.QueryEscape(artist+" "+title))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, CallResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, CallResult{}, err
	}
	defer resp.Body.Close()

	result := CallResult{StatusCode: resp.StatusCode}
	if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining != "" {
		result.RequestsRemaining, _ = strconv.Atoi(remaining)
	}
	if limit := resp.Header.Get("X-RateLimit-Limit"); limit != "" {
		result.RequestsLimit, _ = strconv.Atoi(limit)
	}
	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if secs, err := strconv.Atoi(retryAfter); err == nil {
			result.ResetAt = time.Now().Add(time.Duration(secs) * time.Second)
		}
	}

	if resp.StatusCode >= 300 {
		return nil, result, &httpStatusError{status: resp.StatusCode, path: path}
	}

	var body struct {
		Response struct {
			Hits []struct {
				Result struct {
					PrimaryArtist struct {
						Name string `json:"name"`
					} `json:"primary_artist"`
					ProducerArtists []struct {
						Name string `json:"name"`
					} `json:"producer_artists"`
					WriterArtists []struct {
						Name string `json:"name"`
					} `json:"writer_artists"`
				} `json:"result"`
			} `json:"hits"`
		} `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, result, err
	}
	if len(body.Response.Hits) == 0 {
		return nil, result, nil
	}

	hit := body.Response.Hits[0].Result
	var credits []Credit
	for _, p := range hit.ProducerArtists {
		credits = append(credits, Credit{Name: p.Name, Role: "producer"})
	}
	for _, w := range hit.WriterArtists {
		credits = append(credits, Credit{Name: w.Name, Role: "writer"})
	}
	return credits, result, nil
}
