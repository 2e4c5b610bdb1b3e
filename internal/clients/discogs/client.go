// Package discogs is a thin client over the Discogs API endpoint the
// producer-discovery handler uses to cross-reference writer/producer
// credits, authenticated with a static consumer key/secret pair
// appended as query parameters per Discogs's own auth scheme.
package discogs

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
	APIName        = "discogs"
	defaultBaseURL = "https://api.discogs.com"
)

type Client struct {
	httpClient     *http.Client
	consumerKey    string
	consumerSecret string
	baseURL        string
}

func New(consumerKey, consumerSecret string) *Client {
	return &Client{
		httpClient:     &http.Client{Timeout: 15 * time.Second},
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		baseURL:        defaultBaseURL,
	}
}

// newWithBaseURL builds a client pointed at a test server instead of
// the real Discogs API.
func newWithBaseURL(consumerKey, consumerSecret, baseURL string) *Client {
	c := New(consumerKey, consumerSecret)
	c.baseURL = baseURL
	return c
}

// NewForTest exposes newWithBaseURL to other packages' tests.
func NewForTest(baseURL string) *Client {
	return newWithBaseURL("test-consumer-key", "test-consumer-secret", baseURL)
}

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

func parseRateLimitHeaders(resp *http.Response) CallResult {
	result := CallResult{StatusCode: resp.StatusCode}
	if remaining := resp.Header.Get("X-Discogs-Ratelimit-Remaining"); remaining != "" {
		result.RequestsRemaining, _ = strconv.Atoi(remaining)
	}
	if limit := resp.Header.Get("X-Discogs-Ratelimit"); limit != "" {
		result.RequestsLimit, _ = strconv.Atoi(limit)
	}
	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if secs, err := strconv.Atoi(retryAfter); err == nil {
			result.ResetAt = time.Now().Add(time.Duration(secs) * time.Second)
		}
	}
	return result
}

type httpStatusError struct {
	status int
	path   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("discogs request to %s failed: status %d", e.path, e.status)
}

func (e *httpStatusError) StatusCode() int { return e.status }

// SearchCredits looks up a release by artist/title and returns the
// extraartists credits Discogs records for it.
func (c *Client) SearchCredits(ctx context.Context, artist, title string) ([]Credit, CallResult, error) {
	q := url.Values{}
	q.Set("artist", artist)
	q.Set("release_title", title)
	q.Set("type", "release")
	q.Set("key", c.consumerKey)
	q.Set("secret", c.consumerSecret)
	path := "/database/search?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, CallResult{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, CallResult{}, err
	}
	defer resp.Body.Close()
	result := parseRateLimitHeaders(resp)
	if resp.StatusCode >= 300 {
		return nil, result, &httpStatusError{status: resp.StatusCode, path: "/database/search"}
	}

	var body struct {
		Results []struct {
			ID int `json:"id"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, result, err
	}
	if len(body.Results) == 0 {
		return nil, result, nil
	}

	return c.releaseCredits(ctx, body.Results[0].ID)
}

func (c *Client) releaseCredits(ctx context.Context, releaseID int) ([]Credit, CallResult, error) {
	path := fmt.Sprintf("/releases/%d?key=%s&secret=%s", releaseID, url.QueryEscape(c.consumerKey), url.QueryEscape(c.consumerSecret))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, CallResult{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, CallResult{}, err
	}
	defer resp.Body.Close()
	result := parseRateLimitHeaders(resp)
	if resp.StatusCode >= 300 {
		return nil, result, &httpStatusError{status: resp.StatusCode, path: "/releases"}
	}

	var body struct {
		ExtraArtists []struct {
			Name string `json:"name"`
			Role string `json:"role"`
		} `json:"extraartists"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, result, err
	}

	var credits []Credit
	for _, a := range body.ExtraArtists {
		credits = append(credits, Credit{Name: a.Name, Role: a.Role})
	}
	return credits, result, nil
}
