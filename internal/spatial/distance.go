package spatial

import (
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// HaversineDistance calculates the great-circle distance between two points in meters.
// Only suitable for flagging heuristics; forensic speeds use a metric projection.
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	return AngularDistance(lat1, lon1, lat2, lon2).Radians() * EarthRadiusMeters
}

// AngularDistance returns the central angle between two points
func AngularDistance(lat1, lon1, lat2, lon2 float64) s1.Angle {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2)
}

// Bearing calculates the initial bearing (forward azimuth) from point 1 to point 2
// Returns bearing in degrees (0-360), where 0 is North, 90 is East, etc.
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	return BearingS2(s2.LatLngFromDegrees(lat1, lon1), s2.LatLngFromDegrees(lat2, lon2))
}

// BearingS2 calculates bearing between two s2 coordinates
func BearingS2(p1, p2 s2.LatLng) float64 {
	lat1 := p1.Lat.Radians()
	lat2 := p2.Lat.Radians()
	lonDiff := p2.Lng.Radians() - p1.Lng.Radians()

	y := math.Sin(lonDiff) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(lonDiff)
	bearing := math.Atan2(y, x)

	return NormalizeDegrees(bearing * 180 / math.Pi)
}

// DestinationPoint calculates the point reached from (lat, lon) after travelling
// along bearing (degrees) for the given central angle
func DestinationPoint(lat, lon, bearing float64, angularDistance s1.Angle) (float64, float64) {
	p := s2.LatLngFromDegrees(lat, lon)
	bearingRad := bearing * math.Pi / 180
	d := angularDistance.Radians()

	latRad := p.Lat.Radians()
	lonRad := p.Lng.Radians()

	lat2 := math.Asin(math.Sin(latRad)*math.Cos(d) +
		math.Cos(latRad)*math.Sin(d)*math.Cos(bearingRad))

	lon2 := lonRad + math.Atan2(
		math.Sin(bearingRad)*math.Sin(d)*math.Cos(latRad),
		math.Cos(d)-math.Sin(latRad)*math.Sin(lat2))

	out := s2.LatLngFromPoint(s2.PointFromLatLng(s2.LatLng{Lat: s1.Angle(lat2), Lng: s1.Angle(lon2)}))
	return out.Lat.Degrees(), out.Lng.Degrees()
}

// LocalRadius returns the Gaussian mean radius of curvature of the WGS84
// ellipsoid at the given latitude, the sphere that best fits the surface there.
func LocalRadius(lat float64) float64 {
	phi := lat * math.Pi / 180
	e2 := WGS84Flattening * (2 - WGS84Flattening)
	w := 1 - e2*math.Sin(phi)*math.Sin(phi)
	meridional := WGS84SemiMajorAxis * (1 - e2) / math.Pow(w, 1.5)
	normal := WGS84SemiMajorAxis / math.Sqrt(w)
	return math.Sqrt(meridional * normal)
}

// Constants
const (
	EarthRadiusMeters = 6371000.0 // Earth's mean radius in meters
	EarthRadiusKm     = 6371.0    // Earth's mean radius in kilometers

	WGS84SemiMajorAxis = 6378137.0
	WGS84Flattening    = 1 / 298.257223563
)
