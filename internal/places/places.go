// Package places searches a geocoding API for clinics near a location.
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	DefaultQuery     = "OBGYN clinic"
	DefaultLatitude  = 40.7128
	DefaultLongitude = -74.0060

	cacheTTL = 10 * time.Minute
)

// ErrNotConfigured is returned by Search when no access token is set.
var ErrNotConfigured = errors.New("places: access token not configured")

type Config struct {
	Token string
}

// Place is one search result.
type Place struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Address       string  `json:"address"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	DirectionsURL string  `json:"directions_url"`
}

type cacheEntry struct {
	places    []Place
	fetchedAt time.Time
}

// Client queries the Mapbox places endpoint and caches results briefly.
type Client struct {
	config  Config
	client  *http.Client
	baseURL string

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

func NewClient(cfg Config) *Client {
	return &Client{
		config:  cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: "https://api.mapbox.com/geocoding/v5/mapbox.places",
		cache:   make(map[string]cacheEntry),
	}
}

func (c *Client) Configured() bool {
	return c.config.Token != ""
}

// Search returns points of interest matching query near (lat, lon). An empty
// query searches for DefaultQuery; a zero coordinate pair uses the default
// location.
func (c *Client) Search(ctx context.Context, query string, lat, lon float64) ([]Place, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	query = strings.TrimSpace(query)
	if query == "" {
		query = DefaultQuery
	}
	if lat == 0 && lon == 0 {
		lat, lon = DefaultLatitude, DefaultLongitude
	}

	key := cacheKey(query, lat, lon)
	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < cacheTTL {
		return entry.places, nil
	}

	places, err := c.fetch(ctx, query, lat, lon)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[key] = cacheEntry{places: places, fetchedAt: time.Now()}
	c.mu.Unlock()
	return places, nil
}

// Prune evicts cached results older than the cache lifetime and reports how
// many were removed.
func (c *Client) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key, entry := range c.cache {
		if time.Since(entry.fetchedAt) >= cacheTTL {
			delete(c.cache, key)
			n++
		}
	}
	return n
}

// cacheKey rounds coordinates to roughly 100m so small moves reuse results.
func cacheKey(query string, lat, lon float64) string {
	round := func(v float64) float64 { return math.Round(v*1000) / 1000 }
	return fmt.Sprintf("%s|%.3f|%.3f", strings.ToLower(query), round(lat), round(lon))
}

type apiResponse struct {
	Features []struct {
		ID        string    `json:"id"`
		Text      string    `json:"text"`
		PlaceName string    `json:"place_name"`
		Center    []float64 `json:"center"`
	} `json:"features"`
}

func (c *Client) fetch(ctx context.Context, query string, lat, lon float64) ([]Place, error) {
	params := url.Values{}
	params.Set("proximity", fmt.Sprintf("%f,%f", lon, lat))
	params.Set("types", "poi")
	params.Set("access_token", c.config.Token)
	endpoint := fmt.Sprintf("%s/%s.json?%s", c.baseURL, url.PathEscape(query), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("places API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("places API returned status %d", resp.StatusCode)
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode places response: %w", err)
	}

	places := make([]Place, 0, len(apiResp.Features))
	for _, f := range apiResp.Features {
		if len(f.Center) < 2 {
			continue
		}
		p := Place{
			ID:        f.ID,
			Name:      f.Text,
			Address:   f.PlaceName,
			Longitude: f.Center[0],
			Latitude:  f.Center[1],
		}
		p.DirectionsURL = DirectionsURL(p.Latitude, p.Longitude)
		places = append(places, p)
	}
	return places, nil
}

// DirectionsURL links to turn-by-turn directions to the given point.
func DirectionsURL(lat, lon float64) string {
	return fmt.Sprintf("https://www.google.com/maps/dir/?api=1&destination=%s,%s",
		formatCoord(lat), formatCoord(lon))
}

func formatCoord(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", v), "0"), ".")
}
