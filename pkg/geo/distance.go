package geo

import (
	"math"
)

const (
	// EarthRadiusMiles is the mean Earth radius used for directory distances.
	EarthRadiusMiles = 3959.0

	// EarthRadiusKm is the mean Earth radius in kilometers.
	EarthRadiusKm = 6371.0
)

// Coordinate is a latitude/longitude pair in signed decimal degrees
type Coordinate struct {
	Latitude  float64 `json:"latitude" yaml:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" yaml:"longitude" validate:"gte=-180,lte=180"`
}

// Valid reports whether the coordinate lies inside the latitude/longitude bounds
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) ||
		math.IsInf(c.Latitude, 0) || math.IsInf(c.Longitude, 0) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// DistanceMiles returns the great-circle distance between a and b in miles.
// Bounds are not validated here; callers check Valid first.
func DistanceMiles(a, b Coordinate) float64 {
	return EarthRadiusMiles * centralAngle(a, b)
}

// DistanceKm returns the great-circle distance between a and b in kilometers
func DistanceKm(a, b Coordinate) float64 {
	return EarthRadiusKm * centralAngle(a, b)
}

// centralAngle is the haversine central angle in radians.
// The haversine term is clamped to [0, 1]; rounding can push it slightly
// outside for identical or antipodal points.
func centralAngle(a, b Coordinate) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	h = math.Min(1, math.Max(0, h))

	return 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
