package forensic

import (
	"context"
	"fmt"
	"time"

	"github.com/jengzang/vehicle-forensics-go/internal/analysis"
	"github.com/jengzang/vehicle-forensics-go/internal/models"
	"github.com/jengzang/vehicle-forensics-go/internal/spatial"
)

// Co-location defaults
const (
	DefaultCoLocationRadiusM = 50.0
	DefaultCoLocationWindow  = 60 * time.Second
)

// CoLocationAnalyzer reports vehicles observed close to each other at about
// the same time. Matches closer together than Window merge into one encounter.
// Skill: co_location
type CoLocationAnalyzer struct {
	*analysis.BaseAnalyzer
	RadiusM float64
	Window  time.Duration
}

// NewCoLocationAnalyzer creates a new co-location analyzer
func NewCoLocationAnalyzer() analysis.Analyzer {
	return &CoLocationAnalyzer{
		BaseAnalyzer: analysis.NewBaseAnalyzer("co_location"),
		RadiusM:      DefaultCoLocationRadiusM,
		Window:       DefaultCoLocationWindow,
	}
}

type encounter struct {
	start, end   time.Time
	lat, lon     float64
	minDistanceM float64
	matches      int
}

// Analyze compares every pair of vehicles
func (a *CoLocationAnalyzer) Analyze(ctx context.Context, vehicles []*models.VehicleData) (*analysis.Findings, error) {
	findings := a.NewFindings()

	tracks := make([][]*models.GPSPoint, len(vehicles))
	for i, vd := range vehicles {
		tracks[i] = usablePoints(vd.Points)
	}

	for i := 0; i < len(vehicles); i++ {
		for j := i + 1; j < len(vehicles); j++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			for _, e := range a.encounters(tracks[i], tracks[j]) {
				findings.Add(analysis.Finding{
					Kind:           "co_location",
					VehicleID:      vehicles[i].VehicleID,
					OtherVehicleID: vehicles[j].VehicleID,
					Start:          e.start,
					End:            e.end,
					Latitude:       e.lat,
					Longitude:      e.lon,
					DurationS:      e.end.Sub(e.start).Seconds(),
					DistanceM:      e.minDistanceM,
					Detail:         fmt.Sprintf("%d matching fixes within %.0f m", e.matches, a.RadiusM),
				})
			}
		}
	}

	findings.Summary = map[string]interface{}{
		"encounters": len(findings.Items),
		"radius_m":   a.RadiusM,
		"window_s":   a.Window.Seconds(),
	}
	return findings, nil
}

// encounters walks a and b in time order; both must be sorted by timestamp
func (a *CoLocationAnalyzer) encounters(ta, tb []*models.GPSPoint) []encounter {
	var out []encounter
	var cur *encounter
	lo := 0

	for _, p := range ta {
		for lo < len(tb) && tb[lo].Timestamp.Before(p.Timestamp.Add(-a.Window)) {
			lo++
		}
		best := -1.0
		for k := lo; k < len(tb) && !tb[k].Timestamp.After(p.Timestamp.Add(a.Window)); k++ {
			d := spatial.HaversineDistance(p.Latitude, p.Longitude, tb[k].Latitude, tb[k].Longitude)
			if d <= a.RadiusM && (best < 0 || d < best) {
				best = d
			}
		}
		if best < 0 {
			continue
		}

		if cur != nil && p.Timestamp.Sub(cur.end) <= a.Window {
			cur.end = p.Timestamp
			cur.matches++
			if best < cur.minDistanceM {
				cur.minDistanceM = best
			}
			continue
		}
		if cur != nil {
			out = append(out, *cur)
		}
		cur = &encounter{
			start:        p.Timestamp,
			end:          p.Timestamp,
			lat:          p.Latitude,
			lon:          p.Longitude,
			minDistanceM: best,
			matches:      1,
		}
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return out
}

func usablePoints(points []*models.GPSPoint) []*models.GPSPoint {
	out := make([]*models.GPSPoint, 0, len(points))
	for _, p := range models.ObservedOnly(points) {
		if !p.Metadata.HasValidationErrors() {
			out = append(out, p)
		}
	}
	return out
}

func init() {
	analysis.RegisterAnalyzer("co_location", NewCoLocationAnalyzer)
}
