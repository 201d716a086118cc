package itinerary

// Itinerary is the ordered sequence of stops for a journey. Order is visit
// order.
type Itinerary []Stop

// LatLon is a coordinate pair in decimal degrees.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Located is a stop with parseable coordinates and its position in the
// itinerary.
type Located struct {
	Index int
	Title string
	LatLon
}

// Located returns the stops that can be placed on a map, in itinerary
// order. Stops with invalid coordinates are skipped but keep their slot in
// the timeline.
func (it Itinerary) Located() []Located {
	var out []Located
	for i, s := range it {
		lat, lon, ok := s.Coord()
		if !ok {
			continue
		}
		out = append(out, Located{Index: i, Title: s.Title, LatLon: LatLon{Lat: lat, Lon: lon}})
	}
	return out
}

// Clone returns a shallow copy with its own backing array.
func (it Itinerary) Clone() Itinerary {
	if it == nil {
		return nil
	}
	out := make(Itinerary, len(it))
	copy(out, it)
	return out
}

// TotalCost sums the numeric price of every stop.
func (it Itinerary) TotalCost() int {
	total := 0
	for _, s := range it {
		total += s.Cost()
	}
	return total
}

// ReachedView materializes the reached flag of every stop from the
// tracker index. The input is not modified.
func ReachedView(it Itinerary, lastReached int) Itinerary {
	out := it.Clone()
	for i := range out {
		out[i].Reached = i <= lastReached
	}
	return out
}

// Insight is an agent-supplied observation about the journey.
type Insight struct {
	Category string `json:"category"`
	Content  string `json:"content"`
	Value    Text   `json:"value,omitempty"`
}

// TransitCostCategory is reserved for the travel-to-destination estimate.
const TransitCostCategory = "Transit_Cost"
