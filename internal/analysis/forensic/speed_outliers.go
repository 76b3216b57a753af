package forensic

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/jengzang/vehicle-forensics-go/internal/analysis"
	"github.com/jengzang/vehicle-forensics-go/internal/models"
)

const (
	// DefaultOutlierThreshold is the modified z-score above which a segment
	// speed is reported
	DefaultOutlierThreshold = 3.5
	// minOutlierSamples is the fewest moving segments a vehicle needs
	minOutlierSamples = 5
	// madScale converts a MAD into a standard deviation estimate
	madScale = 0.6745
)

// SpeedOutliersAnalyzer reports moving segments whose speed departs from the
// vehicle's own median by more than Threshold modified z-scores
// Skill: speed_outliers
type SpeedOutliersAnalyzer struct {
	*analysis.BaseAnalyzer
	Threshold float64
}

// NewSpeedOutliersAnalyzer creates a new speed outlier analyzer
func NewSpeedOutliersAnalyzer() analysis.Analyzer {
	return &SpeedOutliersAnalyzer{
		BaseAnalyzer: analysis.NewBaseAnalyzer("speed_outliers"),
		Threshold:    DefaultOutlierThreshold,
	}
}

// Analyze scores every normal segment that carries a speed
func (a *SpeedOutliersAnalyzer) Analyze(ctx context.Context, vehicles []*models.VehicleData) (*analysis.Findings, error) {
	findings := a.NewFindings()
	profiles := make(map[string]interface{}, len(vehicles))

	for _, vd := range vehicles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var moving []*models.GPSSegment
		for _, seg := range vd.Segments {
			if seg.Speed.GapType == models.GapNormal && seg.Speed.HasSpeed() {
				moving = append(moving, seg)
			}
		}
		if len(moving) < minOutlierSamples {
			continue
		}

		speeds := make([]float64, len(moving))
		for i, seg := range moving {
			speeds[i] = *seg.Speed.SpeedKmh
		}
		median, mad := medianAbsDeviation(speeds)
		profiles[vd.VehicleID] = map[string]float64{
			"median_kmh": median,
			"mad_kmh":    mad,
		}
		if mad == 0 {
			continue
		}

		for i, seg := range moving {
			z := madScale * math.Abs(speeds[i]-median) / mad
			if z <= a.Threshold {
				continue
			}
			findings.Add(analysis.Finding{
				Kind:       "speed_outlier",
				VehicleID:  vd.VehicleID,
				Start:      seg.Start.Timestamp,
				End:        seg.End.Timestamp,
				Latitude:   seg.Start.Latitude,
				Longitude:  seg.Start.Longitude,
				DurationS:  seg.Speed.TimeSeconds,
				DistanceM:  seg.Speed.DistanceM,
				SegmentIDs: []int{seg.ID},
				Detail: fmt.Sprintf("%.1f km/h (%s) against a median of %.1f km/h, z=%.1f",
					speeds[i], seg.Speed.Certainty, median, z),
			})
		}
	}

	findings.Summary = map[string]interface{}{
		"outliers":  len(findings.Items),
		"threshold": a.Threshold,
		"profiles":  profiles,
	}
	return findings, nil
}

// medianAbsDeviation returns the median of values and the median of the
// absolute deviations from it. values is not modified.
func medianAbsDeviation(values []float64) (median, mad float64) {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	median = stat.Quantile(0.5, stat.Empirical, sorted, nil)

	dev := make([]float64, len(values))
	for i, v := range values {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = stat.Quantile(0.5, stat.Empirical, dev, nil)
	return median, mad
}

func init() {
	analysis.RegisterAnalyzer("speed_outliers", NewSpeedOutliersAnalyzer)
}
