// Package wire converts vehicle data to and from the self-describing
// transmission format consumed by visualisation processes. Units are declared
// explicitly and are never reinterpreted on the way back in.
package wire

import (
	"errors"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/jengzang/vehicle-forensics-go/internal/models"
)

var logger = logrus.WithField("component", "wire")

var (
	// ErrUnitMismatch is returned when a payload declares units other than the expected ones
	ErrUnitMismatch = errors.New("wire payload unit mismatch")
	// ErrInvalidPayload is returned for structurally invalid payloads
	ErrInvalidPayload = errors.New("invalid wire payload")
)

// Declared units
const (
	UnitSpeed     = "km/h"
	UnitDistance  = "meters"
	UnitTimestamp = "epoch_ms"
	UnitAltitude  = "meters"
	UnitHeading   = "degrees"
)

// Cadence classes
const (
	CadenceUniform = "uniform"
	CadenceMixed   = "mixed"
	CadenceRaw     = "raw"
)

// uniformVarianceMs2 is the interval variance below which a sequence is uniform
const uniformVarianceMs2 = 10.0

// speedSanityKmh is the speed above which a payload value is suspicious
const speedSanityKmh = 300.0

// Point is one point on the wire
type Point struct {
	Index          int                `json:"index"`
	TimestampMs    int64              `json:"timestamp_ms"`
	Lat            float64            `json:"lat"`
	Lon            float64            `json:"lon"`
	SpeedKmh       *float64           `json:"speed_kmh"`
	Certainty      models.Certainty   `json:"certainty"`
	IsObserved     bool               `json:"is_observed"`
	IsInterpolated bool               `json:"is_interpolated"`
	IsGap          bool               `json:"is_gap"`
	IsAnomaly      bool               `json:"is_anomaly"`
	SegmentID      *int               `json:"segment_id,omitempty"`
	Altitude       *float64           `json:"altitude,omitempty"`
	Heading        *float64           `json:"heading,omitempty"`
	Metadata       *models.Annotation `json:"metadata,omitempty"`
}

// Meta describes cadence, counts and units of a payload
type Meta struct {
	DtMs              int64  `json:"dt_ms"`
	Cadence           string `json:"cadence"`
	PointCount        int    `json:"point_count"`
	ObservedCount     int    `json:"observed_count"`
	InterpolatedCount int    `json:"interpolated_count"`
	GapCount          int    `json:"gap_count"`
	AnomalyCount      int    `json:"anomaly_count"`
	ProjectionLabel   string `json:"projection_label,omitempty"`

	UnitSpeed     string `json:"unit_speed"`
	UnitDistance  string `json:"unit_distance"`
	UnitTimestamp string `json:"unit_timestamp"`
	UnitAltitude  string `json:"unit_altitude"`
	UnitHeading   string `json:"unit_heading"`
}

// Payload is the wire representation of one vehicle
type Payload struct {
	VehicleID string  `json:"vehicle_id"`
	Points    []Point `json:"points"`
	Meta      Meta    `json:"meta"`
}

// ToWireFormat serialises vd. speed_kmh is the forensic segment speed of the
// point (null when none was computed), not a device or interpolated value.
func ToWireFormat(vd *models.VehicleData) *Payload {
	p := &Payload{
		VehicleID: vd.VehicleID,
		Points:    make([]Point, len(vd.Points)),
	}

	for i, gp := range vd.Points {
		certainty := gp.SpeedCertainty
		if certainty == "" {
			certainty = models.CertaintyUnknown
		}
		wp := Point{
			Index:          i,
			TimestampMs:    gp.Timestamp.UnixMilli(),
			Lat:            gp.Latitude,
			Lon:            gp.Longitude,
			SpeedKmh:       gp.SegmentSpeedKmh,
			Certainty:      certainty,
			IsObserved:     gp.IsObserved,
			IsInterpolated: gp.IsInterpolated,
			IsGap:          gp.IsGap,
			IsAnomaly:      gp.IsAnomaly,
			SegmentID:      gp.SegmentID,
			Altitude:       gp.Altitude,
			Heading:        gp.Heading,
		}
		if !gp.Metadata.IsEmpty() {
			md := gp.Metadata
			wp.Metadata = &md
		}
		p.Points[i] = wp
	}

	p.Meta = buildMeta(p.Points)
	p.Meta.ProjectionLabel = vd.ProjectionLabel
	return p
}

func buildMeta(points []Point) Meta {
	m := Meta{
		PointCount:    len(points),
		UnitSpeed:     UnitSpeed,
		UnitDistance:  UnitDistance,
		UnitTimestamp: UnitTimestamp,
		UnitAltitude:  UnitAltitude,
		UnitHeading:   UnitHeading,
	}
	for _, p := range points {
		if p.IsObserved {
			m.ObservedCount++
		}
		if p.IsInterpolated {
			m.InterpolatedCount++
		}
		if p.IsGap {
			m.GapCount++
		}
		if p.IsAnomaly {
			m.AnomalyCount++
		}
	}
	m.DtMs, m.Cadence = classifyCadence(points)
	return m
}

// classifyCadence returns the median interval in ms and the cadence class
func classifyCadence(points []Point) (int64, string) {
	if len(points) < 2 {
		return 0, CadenceRaw
	}
	intervals := make([]float64, len(points)-1)
	for i := 1; i < len(points); i++ {
		intervals[i-1] = float64(points[i].TimestampMs - points[i-1].TimestampMs)
	}

	sorted := append([]float64(nil), intervals...)
	sort.Float64s(sorted)
	dt := int64(stat.Quantile(0.5, stat.Empirical, sorted, nil))

	if len(intervals) == 1 {
		return dt, CadenceRaw
	}
	if stat.Variance(intervals, nil) < uniformVarianceMs2 {
		return dt, CadenceUniform
	}
	return dt, CadenceMixed
}
