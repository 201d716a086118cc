// Package route turns itinerary coordinates into a drawn path. A routing
// provider supplies road-aware geometry; when it fails the renderer draws a
// straight line through the stops instead.
package route

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"

	"itera/internal/itinerary"
)

// ErrRouteStatus is returned by a provider that answered with a non-OK
// routing status.
var ErrRouteStatus = errors.New("routing status not OK")

// ModeWalking is the only travel mode the renderer requests.
const ModeWalking = "walking"

// Request asks for a path from Origin to Destination through Waypoints,
// visited in the given order.
type Request struct {
	Origin      itinerary.LatLon
	Destination itinerary.LatLon
	Waypoints   []itinerary.LatLon
	Mode        string
}

// Key identifies the request for caching.
func (r Request) Key() string {
	var b strings.Builder
	b.WriteString(r.Mode)
	for _, p := range r.points() {
		fmt.Fprintf(&b, "|%.6f,%.6f", p.Lat, p.Lon)
	}
	return b.String()
}

func (r Request) points() []itinerary.LatLon {
	pts := make([]itinerary.LatLon, 0, len(r.Waypoints)+2)
	pts = append(pts, r.Origin)
	pts = append(pts, r.Waypoints...)
	return append(pts, r.Destination)
}

// Path is a provider's answer.
type Path struct {
	Line           orb.LineString
	Bound          orb.Bound
	DistanceMeters float64
}

// Provider computes a path for a request.
type Provider interface {
	Route(ctx context.Context, req Request) (*Path, error)
}

// Padding is the viewport inset in pixels applied when fitting bounds.
type Padding struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
	Right  int `json:"right"`
}

// DefaultPadding leaves room for the itinerary sidebar on the left.
var DefaultPadding = Padding{Top: 100, Bottom: 100, Left: 450, Right: 100}

// Overlay is a drawn path that can be removed from its surface.
type Overlay interface {
	Detach()
}

// Surface is the map the renderer draws on.
type Surface interface {
	DrawRoute(p Path) Overlay
	DrawPolyline(line orb.LineString) Overlay
	FitBounds(b orb.Bound, pad Padding)
}

func toPoint(ll itinerary.LatLon) orb.Point {
	return orb.Point{ll.Lon, ll.Lat}
}

// straightLine joins the stops in order.
func straightLine(stops []itinerary.Located) orb.LineString {
	line := make(orb.LineString, 0, len(stops))
	for _, s := range stops {
		line = append(line, toPoint(s.LatLon))
	}
	return line
}
