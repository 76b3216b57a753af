package preprocess

import (
	"fmt"
	"math"

	"github.com/jengzang/vehicle-forensics-go/internal/models"
)

// Bounds is the accepted coordinate window
type Bounds struct {
	MinLatitude  float64
	MaxLatitude  float64
	MinLongitude float64
	MaxLongitude float64
}

// BoundsFromSettings extracts the coordinate window of s
func BoundsFromSettings(s models.TrackingSettings) Bounds {
	return Bounds{
		MinLatitude:  s.MinLatitude,
		MaxLatitude:  s.MaxLatitude,
		MinLongitude: s.MinLongitude,
		MaxLongitude: s.MaxLongitude,
	}
}

// CleanAndValidate marks points with unusable coordinates. Nothing is removed:
// the returned slice is the input slice, with failing points flagged as
// anomalies and their reasons listed in Metadata.ValidationErrors.
func CleanAndValidate(points []*models.GPSPoint, bounds Bounds) []*models.GPSPoint {
	for _, p := range points {
		errs := coordinateErrors(p, bounds)
		if len(errs) == 0 {
			continue
		}
		for _, e := range errs {
			p.Metadata.AddValidationError(e)
		}
		p.IsAnomaly = true
		p.Metadata.AddAnomaly(models.AnomalyInfo{
			Kind:     models.AnomalyInvalidCoordinates,
			Severity: models.SeverityHigh,
		})
		logger.WithField("timestamp", p.Timestamp).Debugf("Invalid coordinates: %v", errs)
	}
	return points
}

func coordinateErrors(p *models.GPSPoint, b Bounds) []string {
	var errs []string
	if math.IsNaN(p.Latitude) || math.IsInf(p.Latitude, 0) {
		errs = append(errs, "latitude is not a finite number")
	} else if p.Latitude < b.MinLatitude || p.Latitude > b.MaxLatitude {
		errs = append(errs, fmt.Sprintf("latitude %.6f outside [%.1f, %.1f]", p.Latitude, b.MinLatitude, b.MaxLatitude))
	}
	if math.IsNaN(p.Longitude) || math.IsInf(p.Longitude, 0) {
		errs = append(errs, "longitude is not a finite number")
	} else if p.Longitude < b.MinLongitude || p.Longitude > b.MaxLongitude {
		errs = append(errs, fmt.Sprintf("longitude %.6f outside [%.1f, %.1f]", p.Longitude, b.MinLongitude, b.MaxLongitude))
	}
	// (0,0) is what most receivers emit before their first fix
	if p.Latitude == 0 && p.Longitude == 0 {
		errs = append(errs, "null island (0, 0)")
	}
	return errs
}
