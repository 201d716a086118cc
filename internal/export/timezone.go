package export

import (
	"time"

	"github.com/ringsaturn/tzf"
)

// Zoner resolves the IANA time zone of a coordinate.
type Zoner struct {
	finder tzf.F
}

// NewZoner loads the bundled time zone polygons.
func NewZoner() (*Zoner, error) {
	f, err := tzf.NewDefaultFinder()
	if err != nil {
		return nil, err
	}
	return &Zoner{finder: f}, nil
}

// Name returns the zone name at lat/lon, or "" when unknown.
func (z *Zoner) Name(lat, lon float64) string {
	if z == nil {
		return ""
	}
	return z.finder.GetTimezoneName(lon, lat)
}

// Location returns the zone at lat/lon, falling back to UTC.
func (z *Zoner) Location(lat, lon float64) *time.Location {
	name := z.Name(lat, lon)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
