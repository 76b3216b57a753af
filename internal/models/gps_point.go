package models

import "time"

// GPSPoint represents one raw or derived GPS sample of a vehicle
type GPSPoint struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`

	// Values reported by the device, nil when the source had no column for them
	Speed    *float64 `json:"speed,omitempty"`    // km/h
	Altitude *float64 `json:"altitude,omitempty"` // meters
	Heading  *float64 `json:"heading,omitempty"`  // degrees, 0 = north
	Accuracy *float64 `json:"accuracy,omitempty"` // meters

	// Derived by the speed calculator
	CalculatedSpeed  *float64 `json:"calculated_speed,omitempty"`
	DistanceFromPrev float64  `json:"distance_from_prev"` // meters, metric projection
	TimeFromPrev     float64  `json:"time_from_prev"`     // seconds

	IsInterpolated bool `json:"is_interpolated"`
	IsAnomaly      bool `json:"is_anomaly"`
	IsObserved     bool `json:"is_observed"`
	IsGap          bool `json:"is_gap"`

	SegmentID       *int      `json:"segment_id,omitempty"`
	SegmentSpeedKmh *float64  `json:"segment_speed_kmh,omitempty"`
	SpeedCertainty  Certainty `json:"speed_certainty,omitempty"`

	Metadata Annotation `json:"metadata"`
}

// NewObservedPoint creates a point that came from raw evidence
func NewObservedPoint(lat, lon float64, ts time.Time) *GPSPoint {
	return &GPSPoint{
		Latitude:   lat,
		Longitude:  lon,
		Timestamp:  ts,
		IsObserved: true,
	}
}

// SameLocation reports whether both points carry identical coordinates
func (p *GPSPoint) SameLocation(other *GPSPoint) bool {
	return p.Latitude == other.Latitude && p.Longitude == other.Longitude
}

// SameFix reports whether both points share timestamp and coordinates
func (p *GPSPoint) SameFix(other *GPSPoint) bool {
	return p.Timestamp.Equal(other.Timestamp) && p.SameLocation(other)
}

// ExactDuplicate reports whether other is indistinguishable from p in every
// raw field, including the optional device values.
func (p *GPSPoint) ExactDuplicate(other *GPSPoint) bool {
	return p.SameFix(other) &&
		equalOptional(p.Speed, other.Speed) &&
		equalOptional(p.Altitude, other.Altitude) &&
		equalOptional(p.Heading, other.Heading) &&
		equalOptional(p.Accuracy, other.Accuracy)
}

// FixCount returns how many raw fixes this point stands for
func (p *GPSPoint) FixCount() int {
	if p.Metadata.CoalescedCount > 0 {
		return p.Metadata.CoalescedCount
	}
	return 1 + p.Metadata.DuplicatesMerged
}

// Float64Ptr returns a pointer to v
func Float64Ptr(v float64) *float64 {
	return &v
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int {
	return &v
}

func equalOptional(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
