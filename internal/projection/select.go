package projection

import (
	"github.com/sirupsen/logrus"

	"github.com/jengzang/vehicle-forensics-go/internal/models"
	"github.com/jengzang/vehicle-forensics-go/internal/spatial"
)

// DefaultAreaThresholdKm is the extent above which UTM replaces AEQD
const DefaultAreaThresholdKm = 100.0

// Extent describes the geographic footprint used to pick a projection
type Extent struct {
	Center   spatial.Point
	ExtentKm float64
}

// MeasureExtent computes the bounding-box center and extent of points.
// Points that failed coordinate validation are ignored unless nothing else is left.
func MeasureExtent(points []*models.GPSPoint) (Extent, error) {
	if len(points) == 0 {
		return Extent{}, ErrNoPoints
	}
	coords := make([]spatial.Point, 0, len(points))
	for _, p := range points {
		if p.Metadata.HasValidationErrors() {
			continue
		}
		coords = append(coords, spatial.Point{Lat: p.Latitude, Lon: p.Longitude})
	}
	if len(coords) == 0 {
		for _, p := range points {
			coords = append(coords, spatial.Point{Lat: p.Latitude, Lon: p.Longitude})
		}
	}
	box := spatial.BoundingBox(coords)
	return Extent{Center: box.Center(), ExtentKm: box.ExtentKm()}, nil
}

// SelectBestProjection picks AEQD for data whose extent is within
// areaThresholdKm and UTM for anything larger. The returned projection carries
// a human-readable Label.
func SelectBestProjection(points []*models.GPSPoint, areaThresholdKm float64) (*Projection, error) {
	return selectBest(points, areaThresholdKm, nil)
}

func selectBest(points []*models.GPSPoint, areaThresholdKm float64, cache *Cache) (*Projection, error) {
	if areaThresholdKm <= 0 {
		areaThresholdKm = DefaultAreaThresholdKm
	}
	ext, err := MeasureExtent(points)
	if err != nil {
		return nil, err
	}

	kind := KindAEQD
	if ext.ExtentKm > areaThresholdKm {
		kind = KindUTM
	}
	logger.WithFields(logrus.Fields{
		"extent_km": ext.ExtentKm,
		"kind":      kind,
	}).Debug("Selecting projection")

	build := func() (*Projection, error) {
		if kind == KindUTM {
			return GetUTMProjection(ext.Center)
		}
		return MakeLocalMetricProjection(ext.Center)
	}
	if cache == nil {
		return build()
	}
	return cache.GetOrCreate(kind, ext.Center, build)
}
