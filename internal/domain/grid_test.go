package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBinCoord(t *testing.T) {
	tests := []struct {
		name       string
		lat, lon   float64
		resolution float64
		want       CellKey
	}{
		{"rounds down", 30.2, -95.2, 0.5, CellKey{30.0, -95.0}},
		{"rounds up", 30.3, -95.3, 0.5, CellKey{30.5, -95.5}},
		{"exact multiple", 30.0, -95.0, 0.5, CellKey{30.0, -95.0}},
		{"southern hemisphere", -33.8688, 151.2093, 0.5, CellKey{-34.0, 151.0}},
		{"equator and meridian", 0.1, -0.1, 0.5, CellKey{0.0, -0.0}},
		{"finer resolution", 30.26, -95.26, 0.25, CellKey{30.25, -95.25}},
		{"zero resolution falls back to default", 30.2, -95.2, 0, CellKey{30.0, -95.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BinCoord(tt.lat, tt.lon, tt.resolution)
			assert.InDelta(t, tt.want.Lat, got.Lat, 1e-9)
			assert.InDelta(t, tt.want.Lon, got.Lon, 1e-9)
		})
	}
}

func TestBinCoordIdempotent(t *testing.T) {
	coords := []struct{ lat, lon float64 }{
		{30.2672, -97.7431},
		{40.7128, -74.0060},
		{-6.2088, 106.8456},
		{51.5074, -0.1278},
		{0, 0},
		{89.99, 179.99},
		{-89.99, -179.99},
	}

	for _, c := range coords {
		first := BinCoord(c.lat, c.lon, 0.5)
		second := BinCoord(first.Lat, first.Lon, 0.5)
		assert.Equal(t, first, second, "binning a binned coordinate must return itself (%g, %g)", c.lat, c.lon)
	}
}

func TestBinCoordGroupsNearbyPoints(t *testing.T) {
	// Two points within the same half-degree cell bin identically; a point
	// in the neighboring cell does not.
	a := BinCoord(30.01, -95.02, 0.5)
	b := BinCoord(29.95, -94.93, 0.5)
	c := BinCoord(30.30, -95.02, 0.5)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
