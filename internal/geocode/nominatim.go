// Package geocode resolves a destination name to a map center.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/paulmach/orb"
)

// DefaultBaseURL is the public Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// Lookups are cached for a day. Misses are cached too so a destination the
// geocoder does not know is asked about once.
const cacheTTL = 24 * time.Hour

// Result is the best match for a destination.
type Result struct {
	Lat         float64
	Lon         float64
	DisplayName string
	// Bound is the extent of the place, zero when the geocoder sent none.
	Bound orb.Bound
}

// Client is a Nominatim geocoding client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	cache      *cache.Cache
	logger     *slog.Logger
}

// New creates a Nominatim geocoding client.
// userAgent is required by Nominatim's usage policy.
func New(baseURL, userAgent string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
		userAgent:  userAgent,
		cache:      cache.New(cacheTTL, time.Hour),
		logger:     logger.With("component", "geocode"),
	}
}

type place struct {
	Lat         string   `json:"lat"`
	Lon         string   `json:"lon"`
	DisplayName string   `json:"display_name"`
	BoundingBox []string `json:"boundingbox"` // minlat, maxlat, minlon, maxlon
}

// Search geocodes a free-form destination name such as "Barcelona, Spain".
// Returns the top result, or nil if nothing found.
func (c *Client) Search(ctx context.Context, query string) (*Result, error) {
	key := strings.ToLower(strings.Join(strings.Fields(query), " "))
	if key == "" {
		return nil, nil
	}
	if cached, ok := c.cache.Get(key); ok {
		r, _ := cached.(*Result)
		return r, nil
	}

	u := c.baseURL + "/search?" + url.Values{
		"q":              {query},
		"format":         {"jsonv2"},
		"limit":          {"1"},
		"addressdetails": {"0"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nominatim request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim status %d", resp.StatusCode)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, fmt.Errorf("nominatim decode: %w", err)
	}

	var result *Result
	if len(places) > 0 {
		result, err = places[0].result()
		if err != nil {
			return nil, err
		}
	}
	c.cache.Set(key, result, cache.DefaultExpiration)
	c.logger.Debug("destination geocoded", "query", query, "found", result != nil)
	return result, nil
}

func (p place) result() (*Result, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("parse lat: %w", err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("parse lon: %w", err)
	}
	r := &Result{Lat: lat, Lon: lon, DisplayName: p.DisplayName}

	if len(p.BoundingBox) == 4 {
		var v [4]float64
		for i, s := range p.BoundingBox {
			if v[i], err = strconv.ParseFloat(s, 64); err != nil {
				return r, nil
			}
		}
		r.Bound = orb.Bound{Min: orb.Point{v[2], v[0]}, Max: orb.Point{v[3], v[1]}}
	}
	return r, nil
}
