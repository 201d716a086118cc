package handler

import (
	"fmt"
	"net/http"

	"github.com/paulmach/orb/geojson"

	"itera/internal/geo"
	"itera/internal/route"
)

type routeResponse struct {
	*route.Result
	Distance string                     `json:"distance,omitempty"`
	Padding  route.Padding              `json:"padding"`
	Scene    *geojson.FeatureCollection `json:"scene"`
}

// Route serves the drawn path as GeoJSON with its degradation flags.
func (h *Handler) Route(w http.ResponseWriter, r *http.Request) {
	it := h.sess.Itinerary()
	res := h.renderer.Update(r.Context(), it)
	if res == nil {
		res = &route.Result{}
	}
	resp := routeResponse{
		Result:  res,
		Padding: h.scene.Viewport().Padding,
		Scene:   h.scene.FeatureCollection(it.Located()),
	}
	if res.HasPath() {
		resp.Distance = formatDistance(res.DistanceMeters)
	}
	respondJSON(w, http.StatusOK, resp)
}

// formatDistance renders meters as "850 m" or "2.3 km".
func formatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%.0f m", meters)
	}
	return fmt.Sprintf("%.1f km", geo.MetersToKilometers(meters))
}
