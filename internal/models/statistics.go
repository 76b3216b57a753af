package models

// ForensicSpeedAnalysis is the rollup of all segments of one vehicle
type ForensicSpeedAnalysis struct {
	TotalSegments int `json:"total_segments"`

	// Certainty distribution
	HighCertainty    int `json:"high_certainty"`
	MediumCertainty  int `json:"medium_certainty"`
	LowCertainty     int `json:"low_certainty"`
	UnknownCertainty int `json:"unknown_certainty"`

	// Gap type distribution
	NormalSegments        int `json:"normal_segments"`
	StopSegments          int `json:"stop_segments"`
	CoalescedStopSegments int `json:"coalesced_stop_segments"`
	GapSegments           int `json:"gap_segments"`
	TemporalConflicts     int `json:"temporal_conflicts"`

	// Valid speeds only
	ValidSpeedSegments int      `json:"valid_speed_segments"`
	MinSpeedKmh        *float64 `json:"min_speed_kmh"`
	MaxSpeedKmh        *float64 `json:"max_speed_kmh"`
	AvgSpeedKmh        *float64 `json:"avg_speed_kmh"`

	TotalDistanceM float64 `json:"total_distance_m"`
	TotalTimeS     float64 `json:"total_time_s"` // excludes temporal conflicts

	// Weighted: HIGH=1.0, MEDIUM=0.6, LOW=0.3, UNKNOWN=0
	ForensicReliabilityScore float64 `json:"forensic_reliability_score"`
}

// AnomalyCount returns the number of segments whose speed is not trustworthy
func (a ForensicSpeedAnalysis) AnomalyCount() int {
	return a.GapSegments + a.TemporalConflicts
}
