package itinerary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Text is a JSON scalar kept as its textual form. The planning agent sends
// ids, coordinates and prices either as numbers or as strings, so decoding
// accepts both and encoding always emits a string.
type Text string

// UnmarshalJSON accepts a string, a number, a bool or null.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*t = Text(n.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("unsupported scalar %s", data)
	}
	*t = Text(strconv.FormatBool(b))
	return nil
}

func (t Text) String() string { return string(t) }

// Stop is one itinerary item as produced by the planning agent.
type Stop struct {
	ID          Text   `json:"id,omitempty"`
	Time        string `json:"time,omitempty"`
	Title       string `json:"title"`
	Loc         string `json:"loc,omitempty"`
	Lat         Text   `json:"lat,omitempty"`
	Lon         Text   `json:"lon,omitempty"`
	Type        string `json:"type,omitempty"`
	Price       Text   `json:"price,omitempty"`
	Logic       string `json:"logic,omitempty"`
	Description string `json:"description,omitempty"`

	// Note and Adjusted are written by the self-heal transform only.
	Note     string `json:"note,omitempty"`
	Adjusted bool   `json:"adjusted,omitempty"`

	// Reached is a projection of the progress tracker. Values decoded from
	// the wire are ignored.
	Reached bool `json:"reached"`
}

// Coord parses the stop's coordinates. ok is false when either value is
// missing, non-numeric or outside the valid degree range.
func (s Stop) Coord() (lat, lon float64, ok bool) {
	lat, err := parseDegrees(s.Lat)
	if err != nil || math.Abs(lat) > 90 {
		return 0, 0, false
	}
	lon, err = parseDegrees(s.Lon)
	if err != nil || math.Abs(lon) > 180 {
		return 0, 0, false
	}
	return lat, lon, true
}

func parseDegrees(t Text) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(t)), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite coordinate %q", t)
	}
	return v, nil
}

// IsOutdoor reports whether the stop is weather-sensitive.
func (s Stop) IsOutdoor() bool {
	return strings.Contains(strings.ToLower(s.Type), "outdoor")
}

// Cost is the numeric value of the display price.
func (s Stop) Cost() int {
	return ParseAmount(string(s.Price))
}

// Key identifies the stop for carry-over matching. Stops without an id use
// their position.
func (s Stop) Key(index int) string {
	if id := strings.TrimSpace(string(s.ID)); id != "" {
		return "id:" + id
	}
	return "pos:" + strconv.Itoa(index)
}

// ParseAmount extracts the numeric value of a display amount by keeping its
// digits only ("$1,200" is 1200). Input without digits, or too large to
// represent, is 0.
func ParseAmount(s string) int {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0
	}
	return n
}
