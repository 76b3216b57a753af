package models

import "time"

// Certainty is the confidence tier of a segment speed
type Certainty string

// Certainty constants
const (
	CertaintyHigh    Certainty = "HIGH"
	CertaintyMedium  Certainty = "MEDIUM"
	CertaintyLow     Certainty = "LOW"
	CertaintyUnknown Certainty = "UNKNOWN"
)

// Valid reports whether c is one of the four tiers
func (c Certainty) Valid() bool {
	switch c {
	case CertaintyHigh, CertaintyMedium, CertaintyLow, CertaintyUnknown:
		return true
	}
	return false
}

// Weight is the contribution of a tier to the reliability score
func (c Certainty) Weight() float64 {
	switch c {
	case CertaintyHigh:
		return 1.0
	case CertaintyMedium:
		return 0.6
	case CertaintyLow:
		return 0.3
	}
	return 0
}

// GapType classifies the interval between two observed points
type GapType string

// GapType constants
const (
	GapNormal           GapType = "normal"
	GapStop             GapType = "stop"
	GapTooLarge         GapType = "gap"
	GapTemporalConflict GapType = "temporal_conflict"
	GapStopCoalesced    GapType = "stop/coalesced"
)

// SegmentSpeed is the single speed value of a segment and its provenance
type SegmentSpeed struct {
	SpeedKmh    *float64  `json:"speed_kmh"`
	Certainty   Certainty `json:"certainty"`
	DistanceM   float64   `json:"distance_m"`
	TimeSeconds float64   `json:"time_seconds"`
	GapType     GapType   `json:"gap_type"`
}

// HasSpeed reports whether a speed was computed for the segment
func (s SegmentSpeed) HasSpeed() bool {
	return s.SpeedKmh != nil
}

// GPSSegment is the interval between two consecutive observed points.
// Start and End point into the owning vehicle's point slice.
type GPSSegment struct {
	ID    int          `json:"segment_id"`
	Start *GPSPoint    `json:"-"`
	End   *GPSPoint    `json:"-"`
	Speed SegmentSpeed `json:"speed"`
}

// SegmentView is the flattened, serializable form of a GPSSegment
type SegmentView struct {
	SegmentID  int       `json:"segment_id" db:"segment_id"`
	StartIndex int       `json:"start_index" db:"start_seq"`
	EndIndex   int       `json:"end_index" db:"end_seq"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	StartLat   float64   `json:"start_lat"`
	StartLon   float64   `json:"start_lon"`
	EndLat     float64   `json:"end_lat"`
	EndLon     float64   `json:"end_lon"`
	SegmentSpeed
}

// View flattens the segment
func (s *GPSSegment) View(startIndex, endIndex int) SegmentView {
	return SegmentView{
		SegmentID:    s.ID,
		StartIndex:   startIndex,
		EndIndex:     endIndex,
		StartTime:    s.Start.Timestamp,
		EndTime:      s.End.Timestamp,
		StartLat:     s.Start.Latitude,
		StartLon:     s.Start.Longitude,
		EndLat:       s.End.Latitude,
		EndLon:       s.End.Longitude,
		SegmentSpeed: s.Speed,
	}
}
