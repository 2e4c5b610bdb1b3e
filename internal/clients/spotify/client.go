// Package spotify is a thin client over the subset of the Spotify Web
// API the discovery DAG needs: artist search, an artist's albums, and
// an album's tracks. Token refresh is OAuth2 client-credentials,
// implemented against the standard library rather than
// golang.org/x/oauth2.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	APIName        = "spotify"
	defaultAuthURL = "https://accounts.spotify.com/api/token"
	defaultBaseURL = "https://api.spotify.com/v1"
)

type Client struct {
	httpClient   *http.Client
	clientID     string
	clientSecret string
	authURL      string
	baseURL      string

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func New(clientID, clientSecret string) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		clientID:     clientID,
		clientSecret: clientSecret,
		authURL:      defaultAuthURL,
		baseURL:      defaultBaseURL,
	}
}

// newWithBaseURL builds a client pointed at a test server instead of
// the real Spotify API.
func newWithBaseURL(clientID, clientSecret, authURL, baseURL string) *Client {
	c := New(clientID, clientSecret)
	c.authURL = authURL
	c.baseURL = baseURL
	return c
}

// NewForTest exposes newWithBaseURL to other packages' tests (the
// handlers package exercises this client against an httptest.Server
// without going through the real Spotify API).
func NewForTest(authURL, baseURL string) *Client {
	return newWithBaseURL("test-client-id", "test-client-secret", authURL, baseURL)
}

type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Album struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Track struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CallResult carries the fields the rate-limit gate needs to persist
// alongside whatever the call itself returned.
type CallResult struct {
	RequestsRemaining int
	RequestsLimit     int
	ResetAt           time.Time
	StatusCode        int
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && time.Now().Before(c.expiresAt) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("spotify token request failed: status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	c.accessToken = body.AccessToken
	c.expiresAt = time.Now().Add(time.Duration(body.ExpiresIn-30) * time.Second)
	return c.accessToken, nil
}

func (c *Client) do(ctx context.Context, path string, out any) (CallResult, error) {
	token, err := c.token(ctx)
	if err != nil {
		return CallResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return CallResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return CallResult{}, err
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
		return result, &httpStatusError{status: resp.StatusCode, path: path}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return result, err
		}
	}
	return result, nil
}

type httpStatusError struct {
	status int
	path   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("spotify request to %s failed: status %d", e.path, e.status)
}

func (e *httpStatusError) StatusCode() int { return e.status }

// SearchArtists finds artists matching a free-text query.
func (c *Client) SearchArtists(ctx context.Context, query string, limit int) ([]Artist, CallResult, error) {
	if limit <= 0 {
		limit = 20
	}
	path := fmt.Sprintf("/search?type=artist&q=%s&limit=%d", url.QueryEscape(query), limit)
	var body struct {
		Artists struct {
			Items []Artist `json:"items"`
		} `json:"artists"`
	}
	result, err := c.do(ctx, path, &body)
	return body.Artists.Items, result, err
}

// SearchArtistsByGenre finds artists tagged with a genre seed.
func (c *Client) SearchArtistsByGenre(ctx context.Context, genre string, limit int) ([]Artist, CallResult, error) {
	if limit <= 0 {
		limit = 5
	}
	query := fmt.Sprintf(`genre:"%s"`, genre)
	path := fmt.Sprintf("/search?type=artist&q=%s&limit=%d", url.QueryEscape(query), limit)
	var body struct {
		Artists struct {
			Items []Artist `json:"items"`
		} `json:"artists"`
	}
	result, err := c.do(ctx, path, &body)
	return body.Artists.Items, result, err
}

// GenreSeeds returns the fixed list of genre seeds Spotify's
// recommendation surface exposes, used by discover-artists when no
// explicit query is given.
func (c *Client) GenreSeeds(ctx context.Context) ([]string, CallResult, error) {
	var body struct {
		Genres []string `json:"genres"`
	}
	result, err := c.do(ctx, "/recommendations/available-genre-seeds", &body)
	return body.Genres, result, err
}

// ListAlbums pages through an artist's albums.
func (c *Client) ListAlbums(ctx context.Context, artistID string, offset, limit int) ([]Album, bool, CallResult, error) {
	if limit <= 0 {
		limit = 50
	}
	path := fmt.Sprintf("/artists/%s/albums?offset=%d&limit=%d", url.PathEscape(artistID), offset, limit)
	var body struct {
		Items []Album `json:"items"`
		Next  *string `json:"next"`
	}
	result, err := c.do(ctx, path, &body)
	return body.Items, body.Next != nil, result, err
}

// ListTracks pages through an album's tracks.
func (c *Client) ListTracks(ctx context.Context, albumID string, offset, limit int) ([]Track, bool, CallResult, error) {
	if limit <= 0 {
		limit = 50
	}
	path := fmt.Sprintf("/albums/%s/tracks?offset=%d&limit=%d", url.PathEscape(albumID), offset, limit)
	var body struct {
		Items []Track `json:"items"`
		Next  *string `json:"next"`
	}
	result, err := c.do(ctx, path, &body)
	return body.Items, body.Next != nil, result, err
}
