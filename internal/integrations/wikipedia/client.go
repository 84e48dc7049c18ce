package wikipedia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	defaultAPIURL    = "https://en.wikipedia.org/w/api.php"
	defaultUserAgent = "tour-guide-agent/1.0 (city walk assistant)"
)

// HTTPStatusError captures non-2xx responses from the MediaWiki API.
type HTTPStatusError struct {
	StatusCode int
	URL        string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("wikipedia: unexpected status %d from %s", e.StatusCode, e.URL)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type queryResponse struct {
	Query *struct {
		Pages []struct {
			PageID  int    `json:"pageid"`
			Title   string `json:"title"`
			Index   int    `json:"index"`
			Extract string `json:"extract"`
			Missing bool   `json:"missing"`
		} `json:"pages"`
	} `json:"query"`
}

// Client fetches plain-text article bodies through the MediaWiki search generator.
type Client struct {
	apiURL     string
	userAgent  string
	httpClient *http.Client
	cache      *cache.Cache
}

type Option func(*Client)

func WithAPIURL(apiURL string) Option {
	return func(c *Client) {
		c.apiURL = strings.TrimSpace(apiURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = strings.TrimSpace(userAgent)
	}
}

// WithCacheTTL keeps article lookups in process memory for ttl. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl <= 0 {
			c.cache = nil
			return
		}
		c.cache = cache.New(ttl, 2*ttl)
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		apiURL:     defaultAPIURL,
		userAgent:  defaultUserAgent,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.apiURL == "" {
		c.apiURL = defaultAPIURL
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	return c
}

// Lookup returns the plain-text body of the article best matching phrase, or
// "" when the search has no hit.
func (c *Client) Lookup(ctx context.Context, phrase string) (string, error) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return "", errors.New("wikipedia: search phrase is required")
	}
	key := strings.ToLower(phrase)
	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			return v.(string), nil
		}
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("formatversion", "2")
	params.Set("generator", "search")
	params.Set("gsrsearch", phrase)
	params.Set("gsrlimit", "1")
	params.Set("prop", "extracts")
	params.Set("explaintext", "1")
	params.Set("redirects", "1")
	reqURL := c.apiURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("wikipedia: create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("wikipedia: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", &HTTPStatusError{StatusCode: res.StatusCode, URL: c.apiURL}
	}

	var payload queryResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 4<<20)).Decode(&payload); err != nil {
		return "", fmt.Errorf("wikipedia: decode response: %w", err)
	}

	article := ""
	if payload.Query != nil {
		for _, p := range payload.Query.Pages {
			if p.Missing {
				continue
			}
			article = strings.TrimSpace(p.Extract)
			break
		}
	}
	if c.cache != nil {
		c.cache.Set(key, article, cache.DefaultExpiration)
	}
	return article, nil
}
