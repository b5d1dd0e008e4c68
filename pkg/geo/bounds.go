package geo

import (
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// Bounds is a latitude/longitude box that contains every point within a
// radius of a center. When WrapsAntimeridian is set the longitude range is
// MinLongitude..180 plus -180..MaxLongitude. AllLongitudes is set for caps
// that contain a pole.
type Bounds struct {
	MinLatitude       float64
	MaxLatitude       float64
	MinLongitude      float64
	MaxLongitude      float64
	WrapsAntimeridian bool
	AllLongitudes     bool
}

// BoundsAround returns a conservative bounding box for the circle of
// radiusMiles around center.
func BoundsAround(center Coordinate, radiusMiles float64) Bounds {
	if radiusMiles < 0 {
		radiusMiles = 0
	}

	angle := s1.Angle(radiusMiles / EarthRadiusMiles)
	c := s2.CapFromCenterAngle(s2.PointFromLatLng(s2.LatLngFromDegrees(center.Latitude, center.Longitude)), angle)
	rect := c.RectBound()

	b := Bounds{
		MinLatitude: s1.Angle(rect.Lat.Lo).Degrees(),
		MaxLatitude: s1.Angle(rect.Lat.Hi).Degrees(),
	}

	switch {
	case rect.Lng.IsFull():
		b.AllLongitudes = true
		b.MinLongitude, b.MaxLongitude = -180, 180
	case rect.Lng.IsInverted():
		b.WrapsAntimeridian = true
		b.MinLongitude = s1.Angle(rect.Lng.Lo).Degrees()
		b.MaxLongitude = s1.Angle(rect.Lng.Hi).Degrees()
	default:
		b.MinLongitude = s1.Angle(rect.Lng.Lo).Degrees()
		b.MaxLongitude = s1.Angle(rect.Lng.Hi).Degrees()
	}

	return b
}

// Contains reports whether c falls inside the box
func (b Bounds) Contains(c Coordinate) bool {
	if c.Latitude < b.MinLatitude || c.Latitude > b.MaxLatitude {
		return false
	}
	if b.AllLongitudes {
		return true
	}
	if b.WrapsAntimeridian {
		return c.Longitude >= b.MinLongitude || c.Longitude <= b.MaxLongitude
	}
	return c.Longitude >= b.MinLongitude && c.Longitude <= b.MaxLongitude
}
