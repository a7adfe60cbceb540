// Package geo holds the great-circle maths used by the pooling engine and the
// helpers stores use to narrow a radius query before the exact distance check.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by every distance in this service.
const EarthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance in kilometres between two
// WGS84 points given in decimal degrees. Identical points yield exactly 0.
// Range checking of the inputs is the caller's job.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	if lat1 == lat2 && lng1 == lng2 {
		return 0
	}
	dLat := radians(lat2 - lat1)
	dLng := radians(lng2 - lng1)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	a := sinLat*sinLat + math.Cos(radians(lat1))*math.Cos(radians(lat2))*sinLng*sinLng

	// Rounding can push a slightly outside [0,1] for antipodal points.
	a = math.Min(1, math.Max(0, a))

	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// ValidCoordinate reports whether lat/lng are finite and inside the WGS84 ranges.
func ValidCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
