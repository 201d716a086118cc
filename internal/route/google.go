package route

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/paulmach/orb"
	"github.com/twpayne/go-polyline"

	"itera/internal/itinerary"
)

// DefaultDirectionsURL is the Google Directions JSON endpoint.
const DefaultDirectionsURL = "https://maps.googleapis.com/maps/api/directions/json"

const cacheTTL = 10 * time.Minute

// DirectionsClient is a Provider backed by the Google Directions API.
type DirectionsClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	cache   *cache.Cache
	logger  *slog.Logger
}

// NewDirections creates a directions client.
func NewDirections(baseURL, apiKey string, logger *slog.Logger) *DirectionsClient {
	if baseURL == "" {
		baseURL = DefaultDirectionsURL
	}
	return &DirectionsClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		cache:  cache.New(cacheTTL, 2*cacheTTL),
		logger: logger.With("component", "directions"),
	}
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type directionsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		Bounds struct {
			Northeast latLng `json:"northeast"`
			Southwest latLng `json:"southwest"`
		} `json:"bounds"`
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
		Legs []struct {
			Distance struct {
				Value float64 `json:"value"`
			} `json:"distance"`
		} `json:"legs"`
	} `json:"routes"`
}

// Route requests directions in the given waypoint order.
func (c *DirectionsClient) Route(ctx context.Context, req Request) (*Path, error) {
	key := req.Key()
	if cached, ok := c.cache.Get(key); ok {
		c.logger.Debug("directions cache hit", "waypoints", len(req.Waypoints))
		return cached.(*Path), nil
	}

	mode := req.Mode
	if mode == "" {
		mode = ModeWalking
	}
	params := url.Values{
		"origin":      {formatLatLon(req.Origin)},
		"destination": {formatLatLon(req.Destination)},
		"mode":        {mode},
		"key":         {c.apiKey},
	}
	if len(req.Waypoints) > 0 {
		wps := make([]string, len(req.Waypoints))
		for i, w := range req.Waypoints {
			wps[i] = formatLatLon(w)
		}
		params.Set("waypoints", strings.Join(wps, "|"))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("directions request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directions HTTP %d", resp.StatusCode)
	}

	var dr directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("decode directions: %w", err)
	}
	if dr.Status != "OK" {
		if dr.ErrorMessage != "" {
			return nil, fmt.Errorf("%w: %s: %s", ErrRouteStatus, dr.Status, dr.ErrorMessage)
		}
		return nil, fmt.Errorf("%w: %s", ErrRouteStatus, dr.Status)
	}
	if len(dr.Routes) == 0 {
		return nil, fmt.Errorf("%w: no routes", ErrRouteStatus)
	}

	r := dr.Routes[0]
	coords, _, err := polyline.DecodeCoords([]byte(r.OverviewPolyline.Points))
	if err != nil {
		return nil, fmt.Errorf("decode polyline: %w", err)
	}
	line := make(orb.LineString, 0, len(coords))
	for _, pt := range coords {
		line = append(line, orb.Point{pt[1], pt[0]})
	}

	bound := orb.Bound{
		Min: orb.Point{r.Bounds.Southwest.Lng, r.Bounds.Southwest.Lat},
		Max: orb.Point{r.Bounds.Northeast.Lng, r.Bounds.Northeast.Lat},
	}
	if bound.IsZero() {
		bound = line.Bound()
	}

	path := &Path{Line: line, Bound: bound}
	for _, leg := range r.Legs {
		path.DistanceMeters += leg.Distance.Value
	}

	c.cache.Set(key, path, cache.DefaultExpiration)
	c.logger.Debug("directions fetched", "points", len(line), "legs", len(r.Legs))
	return path, nil
}

func formatLatLon(ll itinerary.LatLon) string {
	return fmt.Sprintf("%.6f,%.6f", ll.Lat, ll.Lon)
}
