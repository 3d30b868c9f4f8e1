package radar

import "math"

const earthRadiusM = 6371000.0

// Position is a fixed lat/lng anchor for a radar station.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Radar is a fixed-position detector with a circular coverage range.
type Radar struct {
	Name     string   `json:"name"`
	Position Position `json:"position"`
	Range    float64  `json:"range"` // meters
}

// Radars is the static station registry. Never mutated at runtime.
var Radars = []Radar{
	{
		Name:     "north",
		Position: Position{Lat: 32.916485, Lng: 35.354004},
		Range:    250000, // 250km in meters
	},
	{
		Name:     "center",
		Position: Position{Lat: 32.157012, Lng: 34.870605},
		Range:    250000,
	},
	{
		Name:     "south",
		Position: Position{Lat: 30.642638, Lng: 34.942017},
		Range:    250000,
	},
}

// Distance calculates the great-circle distance between two points in
// meters using the haversine formula.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	radLat1 := lat1 * math.Pi / 180
	radLat2 := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(radLat1)*math.Cos(radLat2)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}

// DetectingRadars returns the names of all stations whose range covers the
// given point. The range boundary is inclusive. A NaN distance (malformed
// coordinates) never counts as coverage.
func DetectingRadars(lng, lat float64) []string {
	detecting := []string{}
	for _, r := range Radars {
		d := Distance(lat, lng, r.Position.Lat, r.Position.Lng)
		if !math.IsNaN(d) && d <= r.Range {
			detecting = append(detecting, r.Name)
		}
	}
	return detecting
}
