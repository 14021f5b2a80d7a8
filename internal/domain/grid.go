package domain

import "math"

// DefaultGridResolution is the spatial bin width in degrees.
const DefaultGridResolution = 0.5

// CellKey identifies one grid cell: coordinates rounded to the binning
// resolution. Comparable, so it can key aggregation maps directly.
type CellKey struct {
	Lat float64
	Lon float64
}

// BinCoord maps a coordinate to its grid cell by rounding each component to
// the nearest multiple of resolution. Pure, total, and idempotent: binning an
// already-binned coordinate returns itself. A resolution <= 0 falls back to
// DefaultGridResolution.
func BinCoord(lat, lon, resolution float64) CellKey {
	if resolution <= 0 {
		resolution = DefaultGridResolution
	}
	return CellKey{
		Lat: math.Round(lat/resolution) * resolution,
		Lon: math.Round(lon/resolution) * resolution,
	}
}
