package models

import "time"

// VehicleData holds one vehicle's ordered points and everything derived from them
type VehicleData struct {
	VehicleID  string      `json:"vehicle_id"`
	SourceFile string      `json:"source_file,omitempty"`
	Points     []*GPSPoint `json:"points"`

	Segments        []*GPSSegment `json:"-"`
	ProjectionLabel string        `json:"projection_label,omitempty"`

	AvgSpeedKmh    *float64 `json:"avg_speed_kmh,omitempty"`
	MaxSpeedKmh    *float64 `json:"max_speed_kmh,omitempty"`
	MinSpeedKmh    *float64 `json:"min_speed_kmh,omitempty"`
	TotalDistanceM float64  `json:"total_distance_m"`
	TotalDurationS float64  `json:"total_duration_s"`

	HasInterpolatedPoints bool `json:"has_interpolated_points"`
	HasForensicSegments   bool `json:"has_forensic_segments"`
}

// StartTime returns the timestamp of the first point
func (v *VehicleData) StartTime() time.Time {
	if len(v.Points) == 0 {
		return time.Time{}
	}
	return v.Points[0].Timestamp
}

// EndTime returns the timestamp of the last point
func (v *VehicleData) EndTime() time.Time {
	if len(v.Points) == 0 {
		return time.Time{}
	}
	return v.Points[len(v.Points)-1].Timestamp
}

// ObservedPoints returns the points that came from raw evidence
func (v *VehicleData) ObservedPoints() []*GPSPoint {
	return ObservedOnly(v.Points)
}

// UpdateStatistics recomputes aggregate speed, distance and duration from the
// forensic segments. Conflict segments contribute distance but no time.
func (v *VehicleData) UpdateStatistics() {
	v.AvgSpeedKmh, v.MaxSpeedKmh, v.MinSpeedKmh = nil, nil, nil
	v.TotalDistanceM, v.TotalDurationS = 0, 0
	v.HasForensicSegments = len(v.Segments) > 0

	var sum float64
	var n int
	for _, seg := range v.Segments {
		v.TotalDistanceM += seg.Speed.DistanceM
		if seg.Speed.GapType != GapTemporalConflict {
			v.TotalDurationS += seg.Speed.TimeSeconds
		}
		if seg.Speed.SpeedKmh == nil {
			continue
		}
		s := *seg.Speed.SpeedKmh
		sum += s
		n++
		if v.MaxSpeedKmh == nil || s > *v.MaxSpeedKmh {
			v.MaxSpeedKmh = Float64Ptr(s)
		}
		if v.MinSpeedKmh == nil || s < *v.MinSpeedKmh {
			v.MinSpeedKmh = Float64Ptr(s)
		}
	}
	if n > 0 {
		v.AvgSpeedKmh = Float64Ptr(sum / float64(n))
	}
}

// ObservedOnly filters points down to raw, non-synthesized samples
func ObservedOnly(points []*GPSPoint) []*GPSPoint {
	out := make([]*GPSPoint, 0, len(points))
	for _, p := range points {
		if p.IsObserved && !p.IsInterpolated {
			out = append(out, p)
		}
	}
	return out
}

// VehicleSummary is the list view of a stored vehicle
type VehicleSummary struct {
	VehicleID        string    `json:"vehicle_id" db:"vehicle_id"`
	SourceFile       string    `json:"source_file,omitempty" db:"source_file"`
	ProjectionLabel  string    `json:"projection_label,omitempty" db:"projection_label"`
	PointCount       int       `json:"point_count" db:"point_count"`
	SegmentCount     int       `json:"segment_count" db:"segment_count"`
	StartTime        time.Time `json:"start_time" db:"start_time_ns"`
	EndTime          time.Time `json:"end_time" db:"end_time_ns"`
	AvgSpeedKmh      *float64  `json:"avg_speed_kmh,omitempty" db:"avg_speed_kmh"`
	MaxSpeedKmh      *float64  `json:"max_speed_kmh,omitempty" db:"max_speed_kmh"`
	MinSpeedKmh      *float64  `json:"min_speed_kmh,omitempty" db:"min_speed_kmh"`
	TotalDistanceM   float64   `json:"total_distance_m" db:"total_distance_m"`
	TotalDurationS   float64   `json:"total_duration_s" db:"total_duration_s"`
	ReliabilityScore float64   `json:"reliability_score" db:"reliability_score"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at_ns"`
}
