package route

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"itera/internal/geo"
	"itera/internal/itinerary"
)

// DefaultMaxWaypoints is the interior waypoint limit of the directions API.
const DefaultMaxWaypoints = 23

var errProviderUnavailable = errors.New("routing provider unavailable")

// Metrics receives one observation per computed route.
type Metrics interface {
	ObserveRoute(degraded bool, dropped int, d time.Duration)
}

// Result describes the path currently on the surface.
type Result struct {
	Line             orb.LineString `json:"-"`
	Bound            orb.Bound      `json:"-"`
	Degraded         bool           `json:"degraded"`
	DroppedWaypoints int            `json:"droppedWaypoints"`
	Reason           string         `json:"reason,omitempty"`
	DistanceMeters   float64        `json:"distanceMeters"`
	Stops            int            `json:"stops"`
}

// HasPath reports whether a path is drawn.
func (r *Result) HasPath() bool { return r != nil && len(r.Line) >= 2 }

// Config tunes a Renderer. Zero values take the defaults.
type Config struct {
	MaxWaypoints int
	Padding      *Padding
	Metrics      Metrics
}

// Renderer keeps exactly one path overlay on a surface in sync with the
// itinerary.
type Renderer struct {
	provider     Provider
	surface      Surface
	maxWaypoints int
	padding      Padding
	metrics      Metrics
	logger       *slog.Logger

	updateMu sync.Mutex // serializes Update

	mu       sync.RWMutex
	computed bool
	sig      string
	overlay  Overlay
	result   *Result

	wake chan struct{}
}

// NewRenderer creates a renderer. A nil provider always draws the fallback.
func NewRenderer(provider Provider, surface Surface, cfg Config, logger *slog.Logger) *Renderer {
	r := &Renderer{
		provider:     provider,
		surface:      surface,
		maxWaypoints: cfg.MaxWaypoints,
		padding:      DefaultPadding,
		metrics:      cfg.Metrics,
		logger:       logger.With("component", "route"),
		wake:         make(chan struct{}, 1),
	}
	if r.maxWaypoints <= 0 {
		r.maxWaypoints = DefaultMaxWaypoints
	}
	if cfg.Padding != nil {
		r.padding = *cfg.Padding
	}
	return r
}

// Update recomputes the path for it. Nothing happens when the ordered list
// of valid coordinates is the same as in the last update.
func (r *Renderer) Update(ctx context.Context, it itinerary.Itinerary) *Result {
	r.updateMu.Lock()
	defer r.updateMu.Unlock()

	located := it.Located()
	sig := signature(located)

	r.mu.RLock()
	if r.computed && r.sig == sig {
		res := r.result
		r.mu.RUnlock()
		return res
	}
	r.mu.RUnlock()

	if len(located) < 2 {
		res := &Result{Stops: len(located)}
		r.swap(nil, res, sig)
		r.logger.Debug("no path", "stops", len(located))
		return res
	}

	req, dropped := r.request(located)
	start := time.Now()
	path, err := r.route(ctx, req)
	if err != nil && ctx.Err() != nil {
		// Abandoned update; keep what is drawn and retry next time.
		return r.Result()
	}

	res := &Result{DroppedWaypoints: dropped, Stops: len(located)}
	var overlay Overlay
	if err == nil {
		res.Line = path.Line
		res.Bound = path.Bound
		res.DistanceMeters = path.DistanceMeters
		if res.DistanceMeters == 0 {
			res.DistanceMeters = geo.PathLength(path.Line)
		}
		r.detach()
		overlay = r.surface.DrawRoute(*path)
	} else {
		line := straightLine(located)
		res.Line = line
		res.Bound = line.Bound()
		res.Degraded = true
		res.Reason = err.Error()
		res.DistanceMeters = geo.PathLength(line)
		r.detach()
		overlay = r.surface.DrawPolyline(line)
		r.logger.Warn("route fallback", "error", err, "stops", len(located))
	}
	r.surface.FitBounds(res.Bound, r.padding)
	r.swap(overlay, res, sig)

	if r.metrics != nil {
		r.metrics.ObserveRoute(res.Degraded, dropped, time.Since(start))
	}
	r.logger.Info("route drawn",
		"stops", len(located),
		"degraded", res.Degraded,
		"dropped", dropped,
		"distance_km", fmt.Sprintf("%.1f", geo.MetersToKilometers(res.DistanceMeters)),
	)
	return res
}

// Result returns the last computed result, or nil before the first update.
func (r *Renderer) Result() *Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.result
}

// Invalidate schedules a recompute for Run. Calls coalesce.
func (r *Renderer) Invalidate() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run recomputes the path from latest whenever Invalidate is called, until
// ctx is done. The overlay is detached when Run returns.
func (r *Renderer) Run(ctx context.Context, latest func() itinerary.Itinerary) {
	defer r.Close()
	r.Update(ctx, latest())
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.wake:
			r.Update(ctx, latest())
		}
	}
}

// Close detaches the overlay. The next Update draws again.
func (r *Renderer) Close() {
	r.updateMu.Lock()
	defer r.updateMu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.overlay != nil {
		r.overlay.Detach()
		r.overlay = nil
	}
	r.result = nil
	r.sig = ""
	r.computed = false
}

func (r *Renderer) request(located []itinerary.Located) (Request, int) {
	interior := located[1 : len(located)-1]
	dropped := 0
	if len(interior) > r.maxWaypoints {
		dropped = len(interior) - r.maxWaypoints
		interior = interior[:r.maxWaypoints]
	}
	req := Request{
		Origin:      located[0].LatLon,
		Destination: located[len(located)-1].LatLon,
		Mode:        ModeWalking,
	}
	for _, s := range interior {
		req.Waypoints = append(req.Waypoints, s.LatLon)
	}
	return req, dropped
}

func (r *Renderer) route(ctx context.Context, req Request) (*Path, error) {
	if r.provider == nil {
		return nil, errProviderUnavailable
	}
	path, err := r.provider.Route(ctx, req)
	if err != nil {
		return nil, err
	}
	if path == nil || len(path.Line) < 2 {
		return nil, fmt.Errorf("%w: empty path", ErrRouteStatus)
	}
	return path, nil
}

// detach removes the current overlay. Callers hold updateMu.
func (r *Renderer) detach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.overlay != nil {
		r.overlay.Detach()
		r.overlay = nil
	}
}

// swap installs overlay as the only one on the surface.
func (r *Renderer) swap(overlay Overlay, res *Result, sig string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.overlay != nil && r.overlay != overlay {
		r.overlay.Detach()
	}
	r.overlay = overlay
	r.result = res
	r.sig = sig
	r.computed = true
}

func signature(located []itinerary.Located) string {
	var b strings.Builder
	for _, s := range located {
		fmt.Fprintf(&b, "%g,%g;", s.Lat, s.Lon)
	}
	return b.String()
}
