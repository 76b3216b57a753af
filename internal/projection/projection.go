package projection

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/s1"
	"github.com/sirupsen/logrus"

	"github.com/jengzang/vehicle-forensics-go/internal/models"
	"github.com/jengzang/vehicle-forensics-go/internal/spatial"
)

var logger = logrus.WithField("component", "projection")

var (
	// ErrInvalidCenter is returned when a projection center is not a usable coordinate
	ErrInvalidCenter = errors.New("invalid projection center")
	// ErrProjectionFailed is returned when a built projection does not survive its self-check
	ErrProjectionFailed = errors.New("metric projection construction failed")
	// ErrOutsideUTM is returned for latitudes outside the UTM band (80S..84N)
	ErrOutsideUTM = errors.New("latitude outside UTM coverage")
	// ErrNoPoints is returned when no projection can be chosen for an empty track
	ErrNoPoints = errors.New("no points to build a projection from")
)

const (
	// centerTolerance is the allowed distance in meters of the projected center from the origin
	centerTolerance = 1e-6
	// roundTripTolerance is the allowed round-trip drift in degrees
	roundTripTolerance = 1e-6
	// failureTolerance is the drift in degrees past which a projection is unusable
	failureTolerance = 1e-3
)

// Kind identifies the projection family
type Kind string

// Kind constants
const (
	KindAEQD Kind = "AEQD"
	KindUTM  Kind = "UTM"
)

// Transformer maps WGS84 degrees onto planar meters
type Transformer func(lat, lon float64) (x, y float64)

// InverseTransformer maps planar meters back onto WGS84 degrees
type InverseTransformer func(x, y float64) (lat, lon float64)

// Projection is a forward/inverse transformer pair between WGS84 and a planar
// metric frame in which Euclidean distance approximates ground distance.
type Projection struct {
	Kind     Kind
	Label    string
	Center   spatial.Point
	Zone     int
	South    bool
	Warnings []string

	forward Transformer
	inverse InverseTransformer
}

// ToMetric projects a WGS84 coordinate into the metric frame
func (p *Projection) ToMetric(lat, lon float64) (float64, float64) {
	return p.forward(lat, lon)
}

// ToWGS84 maps a metric coordinate back to WGS84
func (p *Projection) ToWGS84(x, y float64) (float64, float64) {
	return p.inverse(x, y)
}

// Transformers returns the forward and inverse functions
func (p *Projection) Transformers() (Transformer, InverseTransformer) {
	return p.forward, p.inverse
}

// PlanarDistance returns the Euclidean distance in meters between two points
// after projecting both
func (p *Projection) PlanarDistance(a, b *models.GPSPoint) float64 {
	x1, y1 := p.forward(a.Latitude, a.Longitude)
	x2, y2 := p.forward(b.Latitude, b.Longitude)
	return math.Hypot(x2-x1, y2-y1)
}

// MakeLocalMetricProjection builds an azimuthal equidistant projection centered
// on center. Distances from the center are exact on the sphere of the local
// Gaussian radius; the frame is accurate within roughly 100 km of the center.
func MakeLocalMetricProjection(center spatial.Point) (*Projection, error) {
	if err := validateCenter(center); err != nil {
		return nil, err
	}
	if math.Abs(center.Lat) >= 90 {
		return nil, fmt.Errorf("%w: AEQD undefined at pole (lat=%f)", ErrInvalidCenter, center.Lat)
	}

	radius := spatial.LocalRadius(center.Lat)

	forward := func(lat, lon float64) (float64, float64) {
		rho := spatial.AngularDistance(center.Lat, center.Lon, lat, lon).Radians() * radius
		if rho == 0 {
			return 0, 0
		}
		az := spatial.Bearing(center.Lat, center.Lon, lat, lon) * math.Pi / 180
		return rho * math.Sin(az), rho * math.Cos(az)
	}

	inverse := func(x, y float64) (float64, float64) {
		rho := math.Hypot(x, y)
		if rho == 0 {
			return center.Lat, center.Lon
		}
		az := math.Atan2(x, y) * 180 / math.Pi
		return spatial.DestinationPoint(center.Lat, center.Lon, az, s1.Angle(rho/radius))
	}

	p := &Projection{
		Kind:    KindAEQD,
		Label:   fmt.Sprintf("AEQD (lat_0=%.6f, lon_0=%.6f)", center.Lat, center.Lon),
		Center:  center,
		forward: forward,
		inverse: inverse,
	}
	if err := selfCheck(p, true); err != nil {
		return nil, err
	}
	return p, nil
}

// validateCenter rejects NaN, infinite and out-of-range centers
func validateCenter(center spatial.Point) error {
	if math.IsNaN(center.Lat) || math.IsNaN(center.Lon) ||
		math.IsInf(center.Lat, 0) || math.IsInf(center.Lon, 0) {
		return fmt.Errorf("%w: non-finite coordinate", ErrInvalidCenter)
	}
	if center.Lat < -90 || center.Lat > 90 || center.Lon < -180 || center.Lon > 180 {
		return fmt.Errorf("%w: (%f, %f) out of range", ErrInvalidCenter, center.Lat, center.Lon)
	}
	return nil
}

// selfCheck verifies the center maps to the origin (AEQD only) and that
// metric->WGS84 recovers the input. Small drift is recorded as a warning for
// forensic reviewers; gross drift fails the construction.
func selfCheck(p *Projection, centerAtOrigin bool) error {
	c := p.Center

	if centerAtOrigin {
		x, y := p.forward(c.Lat, c.Lon)
		if math.IsNaN(x) || math.IsNaN(y) {
			return fmt.Errorf("%w: center projects to NaN", ErrProjectionFailed)
		}
		if d := math.Hypot(x, y); d > centerTolerance {
			p.warn(fmt.Sprintf("center projects to (%.9f, %.9f), %.3g m from origin", x, y, d))
		}
	}

	probes := []spatial.Point{
		c,
		{Lat: clampLat(c.Lat + 0.01), Lon: c.Lon},
		{Lat: c.Lat, Lon: wrapLon(c.Lon + 0.01)},
	}
	for _, probe := range probes {
		x, y := p.forward(probe.Lat, probe.Lon)
		lat, lon := p.inverse(x, y)
		if math.IsNaN(lat) || math.IsNaN(lon) {
			return fmt.Errorf("%w: round trip of (%f, %f) produced NaN", ErrProjectionFailed, probe.Lat, probe.Lon)
		}
		drift := math.Max(math.Abs(lat-probe.Lat), math.Abs(spatial.AngularDifferenceDegrees(probe.Lon, lon)))
		if drift > failureTolerance {
			return fmt.Errorf("%w: round trip drift %.3g deg at (%f, %f)", ErrProjectionFailed, drift, probe.Lat, probe.Lon)
		}
		if drift > roundTripTolerance {
			p.warn(fmt.Sprintf("round trip drift %.3g deg at (%.6f, %.6f)", drift, probe.Lat, probe.Lon))
		}
	}
	return nil
}

func (p *Projection) warn(msg string) {
	p.Warnings = append(p.Warnings, msg)
	logger.WithField("projection", p.Label).Warn(msg)
}

func clampLat(lat float64) float64 {
	return math.Max(-89.999, math.Min(89.999, lat))
}

func wrapLon(lon float64) float64 {
	if lon > 180 {
		return lon - 360
	}
	return lon
}
