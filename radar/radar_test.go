package radar

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKnownPoints(t *testing.T) {
	// north and center stations are roughly 95km apart
	d := Distance(32.916485, 35.354004, 32.157012, 34.870605)
	assert.InDelta(t, 95000, d, 5000)

	assert.Zero(t, Distance(32.0, 35.0, 32.0, 35.0))
}

func TestDetectingRadarsInsideRange(t *testing.T) {
	// Directly on top of the north station.
	detected := DetectingRadars(35.354004, 32.916485)
	assert.Contains(t, detected, "north")
}

func TestDetectingRadarsOutsideRange(t *testing.T) {
	// Mid-Atlantic, thousands of km from every station.
	detected := DetectingRadars(-30.0, 40.0)
	assert.Empty(t, detected)
}

func TestDetectingRadarsBoundaryInclusive(t *testing.T) {
	// Walk due north from the north station until distance == range,
	// then confirm that boundary point still counts as covered.
	station := Radars[0]
	latPerMeter := 1.0 / 111320.0
	lat := station.Position.Lat + station.Range*latPerMeter

	// Nudge onto the boundary from inside.
	for Distance(lat, station.Position.Lng, station.Position.Lat, station.Position.Lng) > station.Range {
		lat -= latPerMeter
	}
	d := Distance(lat, station.Position.Lng, station.Position.Lat, station.Position.Lng)
	assert.LessOrEqual(t, d, station.Range)
	assert.Contains(t, DetectingRadars(station.Position.Lng, lat), "north")
}

func TestDetectingRadarsNaNNeverCovers(t *testing.T) {
	detected := DetectingRadars(math.NaN(), math.NaN())
	assert.Empty(t, detected)
}

func TestRegistryIsThreeStations(t *testing.T) {
	assert.Len(t, Radars, 3)
	for _, r := range Radars {
		assert.Equal(t, 250000.0, r.Range)
	}
}
