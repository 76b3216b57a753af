// Package interpolation resamples a vehicle path onto a uniform time grid for
// animation playback. Only geometry is interpolated; forensic segment speeds
// are inherited from the generating segment, never recomputed.
package interpolation

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jengzang/vehicle-forensics-go/internal/models"
	"github.com/jengzang/vehicle-forensics-go/internal/spatial"
)

var logger = logrus.WithField("component", "interpolation")

// ErrInvalidInterval is returned for a non-positive resampling interval
var ErrInvalidInterval = errors.New("interpolation interval must be positive")

// sourceMatchWindow is how close a tick must be to a source point to reuse it
const sourceMatchWindow = time.Millisecond

const ctxCheckEvery = 1024

// Options configures the resampler
type Options struct {
	IntervalS  float64
	ToleranceS float64
}

// OptionsFromSettings extracts the resampling options of s
func OptionsFromSettings(s models.TrackingSettings) Options {
	return Options{IntervalS: s.InterpolationIntervalS, ToleranceS: s.UniformToleranceS}
}

func (o Options) interval() time.Duration {
	return time.Duration(o.IntervalS * float64(time.Second))
}

func (o Options) tolerance() time.Duration {
	return time.Duration(o.ToleranceS * float64(time.Second))
}

// IsUniformCadence reports whether every consecutive gap equals dt within tol.
// Sequences with fewer than two points are trivially uniform.
func IsUniformCadence(points []*models.GPSPoint, dt, tol time.Duration) bool {
	for i := 1; i < len(points); i++ {
		diff := points[i].Timestamp.Sub(points[i-1].Timestamp) - dt
		if diff < 0 {
			diff = -diff
		}
		if diff > tol {
			return false
		}
	}
	return true
}

// InterpolatePathGlobalResampling returns a copy of vd whose points lie on the
// grid start + k*interval, where start is the first observed timestamp. The
// first and last observed points are always emitted verbatim; a tick within
// 1 ms of an observed point reuses that point unmodified. Data already at the
// requested cadence is returned as is. vd itself is not modified.
func InterpolatePathGlobalResampling(ctx context.Context, vd *models.VehicleData, opts Options) (*models.VehicleData, error) {
	dt := opts.interval()
	if dt <= 0 {
		return nil, ErrInvalidInterval
	}

	src := models.ObservedOnly(vd.Points)
	if len(src) < 2 || IsUniformCadence(src, dt, opts.tolerance()) {
		logger.WithField("vehicle_id", vd.VehicleID).Debug("Cadence already uniform, passthrough")
		return vd, nil
	}

	start, end := src[0].Timestamp, src[len(src)-1].Timestamp
	out := make([]*models.GPSPoint, 0, int(end.Sub(start)/dt)+2)
	out = append(out, src[0])
	emit := func(p *models.GPSPoint) {
		if out[len(out)-1] != p {
			out = append(out, p)
		}
	}

	j := 0
	for k := 1; ; k++ {
		if k%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		// integer multiples of dt keep the grid free of accumulated drift
		t := start.Add(time.Duration(k) * dt)
		if end.Sub(t) <= sourceMatchWindow {
			break
		}
		for j < len(src)-2 && src[j+1].Timestamp.Before(t) {
			j++
		}
		a, b := src[j], src[j+1]

		switch {
		case absDuration(t.Sub(a.Timestamp)) <= sourceMatchWindow:
			emit(a)
		case absDuration(b.Timestamp.Sub(t)) <= sourceMatchWindow:
			emit(b)
		default:
			out = append(out, interpolateAt(a, b, t))
		}
	}
	emit(src[len(src)-1])

	resampled := *vd
	resampled.Points = out
	resampled.HasInterpolatedPoints = true

	logger.WithFields(logrus.Fields{
		"vehicle_id": vd.VehicleID,
		"source":     len(src),
		"resampled":  len(out),
		"interval_s": opts.IntervalS,
	}).Debug("Resampled path")
	return &resampled, nil
}

// interpolateAt places a synthetic point on the path between a and b at t.
// Speed is carried over only when both ends report one and is for display;
// the forensic speed stays the generating segment's.
func interpolateAt(a, b *models.GPSPoint, t time.Time) *models.GPSPoint {
	ratio := 0.0
	if span := b.Timestamp.Sub(a.Timestamp); span > 0 {
		ratio = float64(t.Sub(a.Timestamp)) / float64(span)
	}

	p := &models.GPSPoint{
		Latitude:        lerp(a.Latitude, b.Latitude, ratio),
		Longitude:       wrapLongitude(a.Longitude + spatial.AngularDifferenceDegrees(a.Longitude, b.Longitude)*ratio),
		Timestamp:       t,
		IsInterpolated:  true,
		SegmentID:       a.SegmentID,
		SegmentSpeedKmh: a.SegmentSpeedKmh,
		SpeedCertainty:  a.SpeedCertainty,
	}
	if a.Altitude != nil && b.Altitude != nil {
		p.Altitude = models.Float64Ptr(lerp(*a.Altitude, *b.Altitude, ratio))
	}
	if a.Heading != nil && b.Heading != nil {
		p.Heading = models.Float64Ptr(spatial.InterpolateHeading(*a.Heading, *b.Heading, ratio))
	}
	if a.Speed != nil && b.Speed != nil {
		p.Speed = models.Float64Ptr(lerp(*a.Speed, *b.Speed, ratio))
	}
	return p
}

func lerp(a, b, ratio float64) float64 {
	return a + (b-a)*ratio
}

func wrapLongitude(lon float64) float64 {
	if lon > 180 {
		return lon - 360
	}
	if lon < -180 {
		return lon + 360
	}
	return lon
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
