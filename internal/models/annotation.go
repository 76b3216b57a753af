package models

import "time"

// Anomaly kinds
const (
	AnomalyInvalidCoordinates = "INVALID_COORDINATES"
	AnomalyImpossibleSpeed    = "IMPOSSIBLE_SPEED"
	AnomalyExcessiveAccel     = "EXCESSIVE_ACCELERATION"
)

// Anomaly severities
const (
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// AnomalyInfo describes why a point was flagged
type AnomalyInfo struct {
	Kind          string     `json:"kind"`
	Severity      string     `json:"severity"`
	SpeedKmh      float64    `json:"speed_kmh,omitempty"`
	ThresholdKmh  float64    `json:"threshold_kmh,omitempty"`
	AccelerationG float64    `json:"acceleration_g,omitempty"`
	ThresholdG    float64    `json:"threshold_g,omitempty"`
	PairedWith    *time.Time `json:"paired_with,omitempty"`
}

// Annotation carries the forensic notes attached to a point. Every field is
// optional; a zero Annotation means nothing noteworthy happened to the point.
type Annotation struct {
	CoalescedCount   int           `json:"coalesced_count,omitempty"`
	GapType          GapType       `json:"gap_type,omitempty"`
	DuplicatesMerged int           `json:"duplicates_merged,omitempty"`
	ValidationErrors []string      `json:"validation_errors,omitempty"`
	Anomalies        []AnomalyInfo `json:"anomalies,omitempty"`
}

// IsEmpty reports whether the annotation holds no information
func (a Annotation) IsEmpty() bool {
	return a.CoalescedCount == 0 &&
		a.GapType == "" &&
		a.DuplicatesMerged == 0 &&
		len(a.ValidationErrors) == 0 &&
		len(a.Anomalies) == 0
}

// HasValidationErrors reports whether the point failed coordinate validation
func (a Annotation) HasValidationErrors() bool {
	return len(a.ValidationErrors) > 0
}

// AddValidationError records err once
func (a *Annotation) AddValidationError(err string) {
	for _, existing := range a.ValidationErrors {
		if existing == err {
			return
		}
	}
	a.ValidationErrors = append(a.ValidationErrors, err)
}

// AddAnomaly records info once per kind and counterpart
func (a *Annotation) AddAnomaly(info AnomalyInfo) {
	for _, existing := range a.Anomalies {
		if existing.Kind == info.Kind && samePairing(existing.PairedWith, info.PairedWith) {
			return
		}
	}
	a.Anomalies = append(a.Anomalies, info)
}

// Merge folds the notes of a removed duplicate into a
func (a *Annotation) Merge(other Annotation) {
	for _, err := range other.ValidationErrors {
		a.AddValidationError(err)
	}
	for _, info := range other.Anomalies {
		a.AddAnomaly(info)
	}
	if a.GapType == "" {
		a.GapType = other.GapType
	}
}

func samePairing(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
