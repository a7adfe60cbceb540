package geo

import (
	"math"

	"github.com/mmcloughlin/geohash"
)

// CellPrecision is the geohash length used for candidate cells.
// A precision-4 cell is roughly 39 km x 19.5 km at the equator, so its 3x3
// neighbourhood covers a few kilometres of radius almost everywhere.
const CellPrecision = 4

// hashPrecision is the length of the geohash stored alongside each request.
const hashPrecision = 9

// boxMargin widens search boxes slightly so float rounding never drops an edge point.
const boxMargin = 1.01

// Box is an axis-aligned lat/lng rectangle in decimal degrees.
type Box struct {
	MinLat, MinLng float64
	MaxLat, MaxLng float64
}

// Contains reports whether the point lies inside b (edges inclusive).
func (b Box) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// SearchBox returns a box containing every point within radiusKm of (lat, lng).
// It returns false when such a box would reach a pole or cross the
// antimeridian; callers should then fall back to scanning everything.
func SearchBox(lat, lng, radiusKm float64) (Box, bool) {
	if radiusKm < 0 || !ValidCoordinate(lat, lng) {
		return Box{}, false
	}
	delta := radiusKm / EarthRadiusKm // angular radius
	if delta >= math.Pi/2 {
		return Box{}, false
	}

	dLat := degrees(delta) * boxMargin
	if lat-dLat <= -90 || lat+dLat >= 90 {
		return Box{}, false
	}

	// Widest longitude offset reached by a spherical cap of angular radius delta.
	ratio := math.Sin(delta) / math.Cos(radians(lat))
	if ratio >= 1 {
		return Box{}, false
	}
	dLng := degrees(math.Asin(ratio)) * boxMargin
	if lng-dLng < -180 || lng+dLng > 180 {
		return Box{}, false
	}

	return Box{
		MinLat: lat - dLat,
		MinLng: lng - dLng,
		MaxLat: lat + dLat,
		MaxLng: lng + dLng,
	}, true
}

// Geohash encodes a point at the precision stored with each request.
func Geohash(lat, lng float64) string {
	return geohash.EncodeWithPrecision(lat, lng, hashPrecision)
}

// Cell returns the candidate cell a stored geohash belongs to.
func Cell(hash string) string {
	if len(hash) <= CellPrecision {
		return hash
	}
	return hash[:CellPrecision]
}

// CoveringCells returns the cell containing (lat, lng) plus its eight
// neighbours when that 3x3 block is guaranteed to contain every point within
// radiusKm. It returns false otherwise (large radius, polar or antimeridian
// locations) and the caller should scan without cell narrowing.
func CoveringCells(lat, lng, radiusKm float64) ([]string, bool) {
	search, ok := SearchBox(lat, lng, radiusKm)
	if !ok {
		return nil, false
	}

	center := geohash.EncodeWithPrecision(lat, lng, CellPrecision)
	cell := geohash.BoundingBox(center)
	height := cell.MaxLat - cell.MinLat
	width := cell.MaxLng - cell.MinLng

	covered := Box{
		MinLat: cell.MinLat - height,
		MinLng: cell.MinLng - width,
		MaxLat: cell.MaxLat + height,
		MaxLng: cell.MaxLng + width,
	}
	if !covered.Contains(search.MinLat, search.MinLng) || !covered.Contains(search.MaxLat, search.MaxLng) {
		return nil, false
	}

	return append([]string{center}, geohash.Neighbors(center)...), true
}
