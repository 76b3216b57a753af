// Package speed computes one non-interpolated speed per segment between
// consecutive observed points, with a certainty tier derived from the elapsed
// time. Distances always come from a metric projection.
package speed

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/jengzang/vehicle-forensics-go/internal/models"
	"github.com/jengzang/vehicle-forensics-go/internal/projection"
)

var logger = logrus.WithField("component", "speed")

// ErrMissingProjection is returned when a metric transformer is not supplied.
// There is no great-circle fallback.
var ErrMissingProjection = errors.New("metric projection is required for forensic speed calculation")

const msToKmh = 3.6

// Thresholds configures certainty tiers and the stop rule
type Thresholds struct {
	HighCertaintyS   float64
	MediumCertaintyS float64
	MaxGapS          float64

	// Less than StopDistanceM over more than StopMinTimeS is reported as a stop
	// with speed 0. Heuristic; pending domain-expert review.
	StopDistanceM float64
	StopMinTimeS  float64
}

// DefaultThresholds returns the 5/10/30 s tiers and the 5 m / 5 s stop rule
func DefaultThresholds() Thresholds {
	return ThresholdsFromSettings(models.DefaultTrackingSettings())
}

// ThresholdsFromSettings extracts the calculator thresholds of s
func ThresholdsFromSettings(s models.TrackingSettings) Thresholds {
	return Thresholds{
		HighCertaintyS:   s.HighCertaintyS,
		MediumCertaintyS: s.MediumCertaintyS,
		MaxGapS:          s.MaxGapS,
		StopDistanceM:    s.StopDistanceM,
		StopMinTimeS:     s.StopMinTimeS,
	}
}

// Calculator builds forensic segments
type Calculator struct {
	thresholds Thresholds
}

// NewCalculator creates a calculator with the given thresholds
func NewCalculator(th Thresholds) *Calculator {
	return &Calculator{thresholds: th}
}

// Thresholds returns the calculator configuration
func (c *Calculator) Thresholds() Thresholds {
	return c.thresholds
}

// CalculateSegmentSpeeds creates one segment per pair of consecutive observed
// points. Interpolated points are ignored. Segment endpoints are the point
// objects themselves; each point is stamped with the id, speed and certainty
// of the segment that starts at it (the final point with the last segment's).
func (c *Calculator) CalculateSegmentSpeeds(points []*models.GPSPoint, toMetric projection.Transformer, toWGS84 projection.InverseTransformer) ([]*models.GPSSegment, error) {
	if toMetric == nil || toWGS84 == nil {
		return nil, ErrMissingProjection
	}

	observed := models.ObservedOnly(points)
	if len(observed) < 2 {
		return nil, nil
	}
	checkRoundTrip(observed[0], toMetric, toWGS84)

	segments := make([]*models.GPSSegment, 0, len(observed)-1)
	for i := 0; i < len(observed)-1; i++ {
		seg := c.CreateSegment(i, observed[i], observed[i+1], toMetric)
		segments = append(segments, seg)
		stampPoint(seg.Start, seg)

		end := seg.End
		end.DistanceFromPrev = seg.Speed.DistanceM
		end.TimeFromPrev = seg.Speed.TimeSeconds
		end.CalculatedSpeed = seg.Speed.SpeedKmh
		end.IsGap = seg.Speed.GapType == models.GapTooLarge
	}
	stampPoint(observed[len(observed)-1], segments[len(segments)-1])

	logger.WithFields(logrus.Fields{
		"points":   len(observed),
		"segments": len(segments),
	}).Debug("Calculated segment speeds")
	return segments, nil
}

// CreateSegment computes the speed of a single segment
func (c *Calculator) CreateSegment(id int, start, end *models.GPSPoint, toMetric projection.Transformer) *models.GPSSegment {
	x1, y1 := toMetric(start.Latitude, start.Longitude)
	x2, y2 := toMetric(end.Latitude, end.Longitude)
	distance := math.Hypot(x2-x1, y2-y1)
	dt := end.Timestamp.Sub(start.Timestamp).Seconds()

	seg := &models.GPSSegment{ID: id, Start: start, End: end}
	seg.Speed = c.classify(distance, dt, start.SameLocation(end))
	return seg
}

func (c *Calculator) classify(distance, dt float64, sameLocation bool) models.SegmentSpeed {
	s := models.SegmentSpeed{DistanceM: distance}

	if dt == 0 {
		if sameLocation {
			s.GapType = models.GapStopCoalesced
			s.SpeedKmh = models.Float64Ptr(0)
			s.Certainty = models.CertaintyHigh
			return s
		}
		// speed is undefined, not zero; time stays 0
		s.GapType = models.GapTemporalConflict
		s.Certainty = models.CertaintyLow
		return s
	}

	s.TimeSeconds = dt
	s.Certainty = c.certaintyFor(dt)
	if s.Certainty == models.CertaintyUnknown {
		s.GapType = models.GapTooLarge
		return s
	}

	if distance < c.thresholds.StopDistanceM && dt > c.thresholds.StopMinTimeS {
		s.GapType = models.GapStop
		s.SpeedKmh = models.Float64Ptr(0)
		return s
	}
	s.GapType = models.GapNormal
	s.SpeedKmh = models.Float64Ptr(distance / dt * msToKmh)
	return s
}

func (c *Calculator) certaintyFor(dt float64) models.Certainty {
	switch {
	case dt <= c.thresholds.HighCertaintyS:
		return models.CertaintyHigh
	case dt <= c.thresholds.MediumCertaintyS:
		return models.CertaintyMedium
	case dt <= c.thresholds.MaxGapS:
		return models.CertaintyLow
	}
	return models.CertaintyUnknown
}

func stampPoint(p *models.GPSPoint, seg *models.GPSSegment) {
	p.SegmentID = models.IntPtr(seg.ID)
	p.SegmentSpeedKmh = seg.Speed.SpeedKmh
	p.SpeedCertainty = seg.Speed.Certainty
}

func checkRoundTrip(p *models.GPSPoint, toMetric projection.Transformer, toWGS84 projection.InverseTransformer) {
	x, y := toMetric(p.Latitude, p.Longitude)
	lat, lon := toWGS84(x, y)
	if math.Abs(lat-p.Latitude) > 1e-6 || math.Abs(lon-p.Longitude) > 1e-6 {
		logger.Warnf("Projection round trip drift at (%.6f, %.6f): got (%.6f, %.6f)", p.Latitude, p.Longitude, lat, lon)
	}
}

// Process builds the segments of vd with p, updates the vehicle's aggregate
// statistics and returns the segment rollup
func (c *Calculator) Process(vd *models.VehicleData, p *projection.Projection) (models.ForensicSpeedAnalysis, error) {
	if p == nil {
		return models.ForensicSpeedAnalysis{}, ErrMissingProjection
	}
	toMetric, toWGS84 := p.Transformers()
	segments, err := c.CalculateSegmentSpeeds(vd.Points, toMetric, toWGS84)
	if err != nil {
		return models.ForensicSpeedAnalysis{}, fmt.Errorf("vehicle %s: %w", vd.VehicleID, err)
	}
	vd.Segments = segments
	vd.ProjectionLabel = p.Label
	vd.UpdateStatistics()
	return AnalyzeSegments(segments), nil
}
