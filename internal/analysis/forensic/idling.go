package forensic

import (
	"context"
	"fmt"

	"github.com/jengzang/vehicle-forensics-go/internal/analysis"
	"github.com/jengzang/vehicle-forensics-go/internal/models"
)

// DefaultMinIdleS is the shortest stop reported as idling
const DefaultMinIdleS = 60.0

// IdlingAnalyzer reports runs of consecutive stop segments
// Skill: idling
type IdlingAnalyzer struct {
	*analysis.BaseAnalyzer
	MinIdleS float64
}

// NewIdlingAnalyzer creates a new idling analyzer
func NewIdlingAnalyzer() analysis.Analyzer {
	return &IdlingAnalyzer{
		BaseAnalyzer: analysis.NewBaseAnalyzer("idling"),
		MinIdleS:     DefaultMinIdleS,
	}
}

// Analyze scans each vehicle's segments for stop runs lasting at least MinIdleS
func (a *IdlingAnalyzer) Analyze(ctx context.Context, vehicles []*models.VehicleData) (*analysis.Findings, error) {
	findings := a.NewFindings()
	var total float64

	for _, vd := range vehicles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var run []*models.GPSSegment
		flush := func() {
			if len(run) == 0 {
				return
			}
			start, end := run[0].Start, run[len(run)-1].End
			duration := end.Timestamp.Sub(start.Timestamp).Seconds()
			if duration >= a.MinIdleS {
				ids := make([]int, len(run))
				for i, seg := range run {
					ids[i] = seg.ID
				}
				findings.Add(analysis.Finding{
					Kind:       "idling",
					VehicleID:  vd.VehicleID,
					Start:      start.Timestamp,
					End:        end.Timestamp,
					Latitude:   start.Latitude,
					Longitude:  start.Longitude,
					DurationS:  duration,
					SegmentIDs: ids,
					Detail:     fmt.Sprintf("%d stop segments", len(run)),
				})
				total += duration
			}
			run = run[:0]
		}

		for _, seg := range vd.Segments {
			if isStop(seg.Speed.GapType) {
				run = append(run, seg)
				continue
			}
			flush()
		}
		flush()
	}

	findings.Summary = map[string]interface{}{
		"idle_periods":  len(findings.Items),
		"total_idle_s":  total,
		"min_idle_s":    a.MinIdleS,
		"vehicle_count": len(vehicles),
	}
	return findings, nil
}

func isStop(g models.GapType) bool {
	return g == models.GapStop || g == models.GapStopCoalesced
}

func init() {
	analysis.RegisterAnalyzer("idling", NewIdlingAnalyzer)
}
