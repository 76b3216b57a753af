package spatial

import (
	"math"

	"github.com/golang/geo/s2"
)

// Point represents a 2D point with latitude and longitude
type Point struct {
	Lat float64
	Lon float64
}

// Bounds is a latitude/longitude bounding box
type Bounds struct {
	rect s2.Rect
}

// BoundingBox calculates the bounding box of a set of points.
// Longitude spans crossing the antimeridian are handled by s2.
func BoundingBox(points []Point) Bounds {
	rect := s2.EmptyRect()
	for _, p := range points {
		rect = rect.AddPoint(s2.LatLngFromDegrees(p.Lat, p.Lon))
	}
	return Bounds{rect: rect}
}

// IsEmpty reports whether no point was added
func (b Bounds) IsEmpty() bool {
	return b.rect.IsEmpty()
}

// Center returns the center of the box
func (b Bounds) Center() Point {
	c := b.rect.Center()
	return Point{Lat: c.Lat.Degrees(), Lon: c.Lng.Degrees()}
}

// Corners returns (minLat, minLon, maxLat, maxLon)
func (b Bounds) Corners() (float64, float64, float64, float64) {
	lo, hi := b.rect.Lo(), b.rect.Hi()
	return lo.Lat.Degrees(), lo.Lng.Degrees(), hi.Lat.Degrees(), hi.Lng.Degrees()
}

// ExtentKm returns the larger of the box's east-west and north-south extents.
// The east-west width is measured along the latitude closest to the equator,
// where meridians are farthest apart.
func (b Bounds) ExtentKm() float64 {
	if b.rect.IsEmpty() {
		return 0
	}
	minLat, minLon, maxLat, _ := b.Corners()
	widthLat := minLat
	if minLat <= 0 && maxLat >= 0 {
		widthLat = 0
	} else if minLat < 0 {
		widthLat = maxLat
	}
	// s2 keeps inverted longitude intervals for antimeridian crossings
	span := b.rect.Lng.Length() * 180 / math.Pi
	width := widthEastWest(widthLat, minLon, span)
	height := HaversineDistance(minLat, minLon, maxLat, minLon)
	if width > height {
		return width / 1000
	}
	return height / 1000
}

func widthEastWest(lat, fromLon, spanDeg float64) float64 {
	if spanDeg <= 180 {
		return HaversineDistance(lat, fromLon, lat, fromLon+spanDeg)
	}
	// split wide spans so the great-circle distance does not wrap the short way
	half := spanDeg / 2
	return 2 * HaversineDistance(lat, fromLon, lat, fromLon+half)
}
