package route

import (
	"math"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"itera/internal/geo"
	"itera/internal/itinerary"
)

// Overlay kinds on a Scene.
const (
	KindRoute    = "route"
	KindFallback = "fallback"
)

// Viewport is the last bounds fit requested on a Scene.
type Viewport struct {
	Bound   orb.Bound
	Padding Padding
	Set     bool
}

// Scene is an in-memory Surface. The service serves it to the browser as
// GeoJSON.
type Scene struct {
	mu       sync.RWMutex
	nextID   int
	overlays map[int]*sceneOverlay
	viewport Viewport
}

type sceneOverlay struct {
	scene *Scene
	id    int
	kind  string
	line  orb.LineString
}

func (o *sceneOverlay) Detach() {
	o.scene.mu.Lock()
	delete(o.scene.overlays, o.id)
	o.scene.mu.Unlock()
}

// NewScene creates an empty scene.
func NewScene() *Scene {
	return &Scene{overlays: make(map[int]*sceneOverlay)}
}

func (s *Scene) DrawRoute(p Path) Overlay {
	return s.add(KindRoute, p.Line)
}

func (s *Scene) DrawPolyline(line orb.LineString) Overlay {
	return s.add(KindFallback, line)
}

func (s *Scene) FitBounds(b orb.Bound, pad Padding) {
	s.mu.Lock()
	s.viewport = Viewport{Bound: b, Padding: pad, Set: true}
	s.mu.Unlock()
}

func (s *Scene) add(kind string, line orb.LineString) Overlay {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	o := &sceneOverlay{scene: s, id: s.nextID, kind: kind, line: line.Clone()}
	s.overlays[o.id] = o
	return o
}

// Active returns the number of attached overlays.
func (s *Scene) Active() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.overlays)
}

// Viewport returns the last fitted bounds.
func (s *Scene) Viewport() Viewport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewport
}

// FeatureCollection renders the attached overlays and the given stops. The
// collection's bbox is the fitted viewport.
func (s *Scene) FeatureCollection(stops []itinerary.Located) *geojson.FeatureCollection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fc := geojson.NewFeatureCollection()
	for _, o := range s.overlays {
		f := geojson.NewFeature(o.line)
		f.Properties["kind"] = o.kind
		fc.Append(f)
	}
	for i, st := range stops {
		f := geojson.NewFeature(toPoint(st.LatLon))
		f.Properties["kind"] = "stop"
		f.Properties["index"] = st.Index
		f.Properties["title"] = st.Title
		if i > 0 {
			f.Properties["legMeters"] = math.Round(geo.Distance(stops[i-1].LatLon, st.LatLon))
		}
		fc.Append(f)
	}
	if s.viewport.Set {
		fc.BBox = geojson.NewBBox(s.viewport.Bound)
	}
	return fc
}
