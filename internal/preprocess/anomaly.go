package preprocess

import (
	"context"
	"math"
	"time"

	"github.com/jengzang/vehicle-forensics-go/internal/models"
	"github.com/jengzang/vehicle-forensics-go/internal/spatial"
)

const (
	standardGravity = 9.80665 // m/s^2
	highSeverityMul = 1.5
	ctxCheckEvery   = 4096
)

// AnomalyThresholds configures DetectAndMarkAnomalies
type AnomalyThresholds struct {
	MaxSpeedKmh      float64
	MaxAccelerationG float64
	// Pairs closer in time than MinTimeDeltaS are skipped; tiny deltas turn
	// GPS jitter into absurd provisional speeds.
	MinTimeDeltaS float64
}

// AnomalyThresholdsFromSettings extracts the anomaly thresholds of s
func AnomalyThresholdsFromSettings(s models.TrackingSettings) AnomalyThresholds {
	return AnomalyThresholds{
		MaxSpeedKmh:      s.MaxSpeedKmh,
		MaxAccelerationG: s.MaxAccelerationG,
		MinTimeDeltaS:    s.MinTimeDeltaS,
	}
}

type speedSample struct {
	from, to *models.GPSPoint
	kmh      float64
	mid      time.Time
}

// DetectAndMarkAnomalies flags physically implausible movement between
// consecutive valid points. Great-circle distance is used: this is a flagging
// heuristic, not the forensic speed. Flagged points stay in the sequence.
// It returns the number of points newly marked as anomalies.
func DetectAndMarkAnomalies(ctx context.Context, points []*models.GPSPoint, th AnomalyThresholds) (int, error) {
	flagged := 0
	mark := func(p *models.GPSPoint, info models.AnomalyInfo) {
		if !p.IsAnomaly {
			flagged++
		}
		p.IsAnomaly = true
		p.Metadata.AddAnomaly(info)
	}

	var prev *models.GPSPoint
	var last *speedSample
	for i, p := range points {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return flagged, err
			}
		}
		if p.Metadata.HasValidationErrors() {
			continue
		}
		if prev == nil {
			prev = p
			continue
		}
		dt := p.Timestamp.Sub(prev.Timestamp).Seconds()
		if dt < th.MinTimeDeltaS || dt <= 0 {
			continue
		}

		dist := spatial.HaversineDistance(prev.Latitude, prev.Longitude, p.Latitude, p.Longitude)
		cur := &speedSample{
			from: prev,
			to:   p,
			kmh:  dist / dt * 3.6,
			mid:  prev.Timestamp.Add(p.Timestamp.Sub(prev.Timestamp) / 2),
		}

		if th.MaxSpeedKmh > 0 && cur.kmh > th.MaxSpeedKmh {
			severity := models.SeverityMedium
			if cur.kmh > th.MaxSpeedKmh*highSeverityMul {
				severity = models.SeverityHigh
			}
			fromTS, toTS := prev.Timestamp, p.Timestamp
			mark(prev, models.AnomalyInfo{
				Kind: models.AnomalyImpossibleSpeed, Severity: severity,
				SpeedKmh: cur.kmh, ThresholdKmh: th.MaxSpeedKmh, PairedWith: &toTS,
			})
			mark(p, models.AnomalyInfo{
				Kind: models.AnomalyImpossibleSpeed, Severity: severity,
				SpeedKmh: cur.kmh, ThresholdKmh: th.MaxSpeedKmh, PairedWith: &fromTS,
			})
		}

		if last != nil && th.MaxAccelerationG > 0 {
			dtMid := cur.mid.Sub(last.mid).Seconds()
			if dtMid > 0 {
				g := math.Abs((cur.kmh-last.kmh)/3.6/dtMid) / standardGravity
				if g > th.MaxAccelerationG {
					severity := models.SeverityMedium
					if g > th.MaxAccelerationG*highSeverityMul {
						severity = models.SeverityHigh
					}
					fromTS, toTS := cur.from.Timestamp, cur.to.Timestamp
					mark(cur.from, models.AnomalyInfo{
						Kind: models.AnomalyExcessiveAccel, Severity: severity,
						AccelerationG: g, ThresholdG: th.MaxAccelerationG, PairedWith: &toTS,
					})
					mark(cur.to, models.AnomalyInfo{
						Kind: models.AnomalyExcessiveAccel, Severity: severity,
						AccelerationG: g, ThresholdG: th.MaxAccelerationG, PairedWith: &fromTS,
					})
				}
			}
		}

		last = cur
		prev = p
	}
	return flagged, nil
}
