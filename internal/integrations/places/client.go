package places

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"tour-guide-agent/internal/domain"
	"tour-guide-agent/internal/integrations/paramstore"
)

const (
	defaultBaseURL = "https://places.googleapis.com/v1"

	// Fixed nearby-search parameters for landmark discovery.
	LandmarkType   = "tourist_attraction"
	LandmarkRadius = 5000.0
	MaxLandmarks   = 20

	maxReviews = 5

	nearbyFieldMask = "places.displayName,places.location,places.rating"
	textFieldMask   = "places.displayName,places.formattedAddress,places.priceLevel,places.rating,places.reviews,places.generativeSummary"
)

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx responses from the Places API.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("places: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type searchNearbyRequest struct {
	IncludedTypes       []string `json:"includedTypes"`
	MaxResultCount      int      `json:"maxResultCount"`
	LocationRestriction struct {
		Circle struct {
			Center latLng  `json:"center"`
			Radius float64 `json:"radius"`
		} `json:"circle"`
	} `json:"locationRestriction"`
}

type searchTextRequest struct {
	TextQuery      string `json:"textQuery"`
	MaxResultCount int    `json:"maxResultCount"`
}

type localizedText struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode"`
}

// rawPlace is the nested provider record; both searches share it.
type rawPlace struct {
	DisplayName      *localizedText `json:"displayName"`
	Location         *latLng        `json:"location"`
	Rating           *float64       `json:"rating"`
	FormattedAddress string         `json:"formattedAddress"`
	PriceLevel       string         `json:"priceLevel"`
	Reviews          []struct {
		Rating float64        `json:"rating"`
		Text   *localizedText `json:"text"`
	} `json:"reviews"`
	GenerativeSummary *struct {
		Overview *localizedText `json:"overview"`
	} `json:"generativeSummary"`
}

type searchResponse struct {
	Places *[]rawPlace `json:"places"`
}

// Client talks to the Google Places API (New).
type Client struct {
	baseURL     string
	httpClient  *http.Client
	getter      Getter
	paramPrefix string
	cache       *cache.Cache

	keyMu  sync.RWMutex
	apiKey string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithCacheTTL keeps lookup results in process memory for ttl. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl <= 0 {
			c.cache = nil
			return
		}
		c.cache = cache.New(ttl, 2*ttl)
	}
}

// NewClient builds a Places client. The API key is read from
// <paramPrefix>/google-api-key on first use.
func NewClient(ps Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("places: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("places: parameter prefix must not be empty")
	}
	c := &Client{
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// resolveAPIKey caches only a key that was read successfully, so a transient
// parameter store failure is retried on the next lookup.
func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	c.keyMu.RLock()
	key := c.apiKey
	c.keyMu.RUnlock()
	if key != "" {
		return key, nil
	}

	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	if c.apiKey != "" {
		return c.apiKey, nil
	}
	key, err := c.fetchAPIKey(ctx)
	if err != nil {
		return "", err
	}
	c.apiKey = key
	return key, nil
}

func (c *Client) fetchAPIKey(ctx context.Context) (string, error) {
	key, err := paramstore.Token(ctx, c.getter, c.paramPrefix+"/google-api-key")
	if err != nil {
		return "", fmt.Errorf("places: resolve api key: %w", err)
	}
	return key, nil
}

// SearchNearby returns up to MaxLandmarks tourist attractions within
// LandmarkRadius meters of center. A response without a places field yields
// an empty slice.
func (c *Client) SearchNearby(ctx context.Context, center domain.Coordinates) ([]domain.Location, error) {
	key := fmt.Sprintf("nearby:%.4f,%.4f", center.Latitude, center.Longitude)
	if cached, ok := c.cached(key); ok {
		return slices.Clone(cached.([]domain.Location)), nil
	}

	var body searchNearbyRequest
	body.IncludedTypes = []string{LandmarkType}
	body.MaxResultCount = MaxLandmarks
	body.LocationRestriction.Circle.Center = latLng{Latitude: center.Latitude, Longitude: center.Longitude}
	body.LocationRestriction.Circle.Radius = LandmarkRadius

	resp, err := c.search(ctx, "/places:searchNearby", nearbyFieldMask, body)
	if err != nil {
		return nil, err
	}

	locations := make([]domain.Location, 0)
	if resp.Places != nil {
		for _, p := range *resp.Places {
			locations = append(locations, toLocation(p))
		}
	}
	c.store(key, locations)
	return slices.Clone(locations), nil
}

// SearchText returns the best match for a free-text place query, or nil when
// the provider has none.
func (c *Client) SearchText(ctx context.Context, query string) (*domain.PlaceDetails, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("places: text query is required")
	}
	key := "text:" + strings.ToLower(query)
	if cached, ok := c.cached(key); ok {
		return cached.(*domain.PlaceDetails), nil
	}

	resp, err := c.search(ctx, "/places:searchText", textFieldMask, searchTextRequest{
		TextQuery:      query,
		MaxResultCount: 1,
	})
	if err != nil {
		return nil, err
	}

	var details *domain.PlaceDetails
	if resp.Places != nil && len(*resp.Places) > 0 {
		details = toPlaceDetails((*resp.Places)[0])
	}
	c.store(key, details)
	return details, nil
}

func (c *Client) search(ctx context.Context, path, fieldMask string, body any) (searchResponse, error) {
	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return searchResponse{}, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return searchResponse{}, fmt.Errorf("places: marshal request: %w", err)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return searchResponse{}, fmt.Errorf("places: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return searchResponse{}, fmt.Errorf("places: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return searchResponse{}, &HTTPStatusError{StatusCode: res.StatusCode, URL: url, Body: string(buf)}
	}

	var out searchResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&out); err != nil {
		return searchResponse{}, fmt.Errorf("places: decode response: %w", err)
	}
	return out, nil
}

func toLocation(p rawPlace) domain.Location {
	loc := domain.Location{}
	if p.Location != nil {
		loc.Latitude = p.Location.Latitude
		loc.Longitude = p.Location.Longitude
	}
	if p.DisplayName != nil {
		loc.DisplayName = p.DisplayName.Text
	}
	if p.Rating != nil {
		loc.Rating = *p.Rating
	}
	return loc
}

func toPlaceDetails(p rawPlace) *domain.PlaceDetails {
	details := &domain.PlaceDetails{
		Address:    p.FormattedAddress,
		PriceLevel: p.PriceLevel,
	}
	if p.DisplayName != nil {
		details.Name = p.DisplayName.Text
	}
	if p.Rating != nil {
		details.Rating = *p.Rating
	}
	if p.GenerativeSummary != nil && p.GenerativeSummary.Overview != nil {
		details.Summary = p.GenerativeSummary.Overview.Text
	}
	for _, r := range p.Reviews {
		if len(details.Reviews) == maxReviews {
			break
		}
		if r.Text == nil || strings.TrimSpace(r.Text.Text) == "" {
			continue
		}
		details.Reviews = append(details.Reviews, domain.PlaceReview{Rating: r.Rating, Text: r.Text.Text})
	}
	return details
}

func (c *Client) cached(key string) (any, bool) {
	if c.cache == nil {
		return nil, false
	}
	return c.cache.Get(key)
}

func (c *Client) store(key string, v any) {
	if c.cache == nil {
		return
	}
	c.cache.Set(key, v, cache.DefaultExpiration)
}
