package forensic

import (
	"context"
	"fmt"

	"github.com/jengzang/vehicle-forensics-go/internal/analysis"
	"github.com/jengzang/vehicle-forensics-go/internal/models"
)

// TimestampJumpsAnalyzer reports segments whose timing cannot support a speed:
// gaps longer than the maximum certainty window and temporal conflicts
// Skill: timestamp_jumps
type TimestampJumpsAnalyzer struct {
	*analysis.BaseAnalyzer
}

// NewTimestampJumpsAnalyzer creates a new timestamp jump analyzer
func NewTimestampJumpsAnalyzer() analysis.Analyzer {
	return &TimestampJumpsAnalyzer{
		BaseAnalyzer: analysis.NewBaseAnalyzer("timestamp_jumps"),
	}
}

// Analyze lists every gap and temporal conflict segment
func (a *TimestampJumpsAnalyzer) Analyze(ctx context.Context, vehicles []*models.VehicleData) (*analysis.Findings, error) {
	findings := a.NewFindings()
	gaps, conflicts := 0, 0

	for _, vd := range vehicles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, seg := range vd.Segments {
			var detail string
			switch seg.Speed.GapType {
			case models.GapTooLarge:
				gaps++
				detail = fmt.Sprintf("%.0f s without a fix", seg.Speed.TimeSeconds)
			case models.GapTemporalConflict:
				conflicts++
				detail = fmt.Sprintf("two fixes %.1f m apart share a timestamp", seg.Speed.DistanceM)
			default:
				continue
			}
			findings.Add(analysis.Finding{
				Kind:       string(seg.Speed.GapType),
				VehicleID:  vd.VehicleID,
				Start:      seg.Start.Timestamp,
				End:        seg.End.Timestamp,
				Latitude:   seg.Start.Latitude,
				Longitude:  seg.Start.Longitude,
				DurationS:  seg.Speed.TimeSeconds,
				DistanceM:  seg.Speed.DistanceM,
				SegmentIDs: []int{seg.ID},
				Detail:     detail,
			})
		}
	}

	findings.Summary = map[string]interface{}{
		"gaps":               gaps,
		"temporal_conflicts": conflicts,
	}
	return findings, nil
}

func init() {
	analysis.RegisterAnalyzer("timestamp_jumps", NewTimestampJumpsAnalyzer)
}
