// Package preprocess turns raw parsed points into a forensically sound,
// time-ordered sequence: invalid coordinates and implausible movement are
// annotated, never dropped, and repeated identical fixes become stops.
package preprocess

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jengzang/vehicle-forensics-go/internal/models"
)

var logger = logrus.WithField("component", "preprocess")

// Report summarises what preprocessing did to a vehicle's points
type Report struct {
	InputPoints        int `json:"input_points"`
	InvalidCoordinates int `json:"invalid_coordinates"`
	DuplicatesRemoved  int `json:"duplicates_removed"`
	CoalescedGroups    int `json:"coalesced_groups"`
	AnomaliesFlagged   int `json:"anomalies_flagged"`
	OutputPoints       int `json:"output_points"`
}

// PrepareForForensicAnalysis runs validate, sort/dedupe, coalesce and anomaly
// detection in that order. Validation comes first so corrupted coordinates are
// never compared; coalescing precedes anomaly detection so duplicate-timestamp
// artifacts do not read as impossible speeds.
func PrepareForForensicAnalysis(ctx context.Context, points []*models.GPSPoint, settings models.TrackingSettings) ([]*models.GPSPoint, Report, error) {
	report := Report{InputPoints: len(points)}

	points = CleanAndValidate(points, BoundsFromSettings(settings))
	for _, p := range points {
		if p.Metadata.HasValidationErrors() {
			report.InvalidCoordinates++
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, report, err
	}

	points, report.DuplicatesRemoved = SortAndDeduplicate(points, settings.PreserveMetadata)
	if err := ctx.Err(); err != nil {
		return nil, report, err
	}

	points, report.CoalescedGroups = CoalesceSameLocationDuplicates(points)

	flagged, err := DetectAndMarkAnomalies(ctx, points, AnomalyThresholdsFromSettings(settings))
	if err != nil {
		return nil, report, fmt.Errorf("anomaly detection: %w", err)
	}
	report.AnomaliesFlagged = flagged
	report.OutputPoints = len(points)

	logger.WithFields(logrus.Fields{
		"input":      report.InputPoints,
		"output":     report.OutputPoints,
		"invalid":    report.InvalidCoordinates,
		"duplicates": report.DuplicatesRemoved,
		"coalesced":  report.CoalescedGroups,
		"anomalies":  report.AnomaliesFlagged,
	}).Info("Preprocessing complete")
	return points, report, nil
}
