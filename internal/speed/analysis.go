package speed

import "github.com/jengzang/vehicle-forensics-go/internal/models"

// AnalyzeSegments rolls segments up into counts, speed range and the weighted
// reliability score
func AnalyzeSegments(segments []*models.GPSSegment) models.ForensicSpeedAnalysis {
	var a models.ForensicSpeedAnalysis
	a.TotalSegments = len(segments)
	if len(segments) == 0 {
		return a
	}

	var weight, speedSum float64
	for _, seg := range segments {
		s := seg.Speed

		switch s.Certainty {
		case models.CertaintyHigh:
			a.HighCertainty++
		case models.CertaintyMedium:
			a.MediumCertainty++
		case models.CertaintyLow:
			a.LowCertainty++
		default:
			a.UnknownCertainty++
		}
		weight += s.Certainty.Weight()

		switch s.GapType {
		case models.GapNormal:
			a.NormalSegments++
		case models.GapStop:
			a.StopSegments++
		case models.GapStopCoalesced:
			a.CoalescedStopSegments++
		case models.GapTooLarge:
			a.GapSegments++
		case models.GapTemporalConflict:
			a.TemporalConflicts++
		}

		a.TotalDistanceM += s.DistanceM
		if s.GapType != models.GapTemporalConflict {
			a.TotalTimeS += s.TimeSeconds
		}

		if s.SpeedKmh == nil {
			continue
		}
		v := *s.SpeedKmh
		a.ValidSpeedSegments++
		speedSum += v
		if a.MinSpeedKmh == nil || v < *a.MinSpeedKmh {
			a.MinSpeedKmh = models.Float64Ptr(v)
		}
		if a.MaxSpeedKmh == nil || v > *a.MaxSpeedKmh {
			a.MaxSpeedKmh = models.Float64Ptr(v)
		}
	}

	if a.ValidSpeedSegments > 0 {
		a.AvgSpeedKmh = models.Float64Ptr(speedSum / float64(a.ValidSpeedSegments))
	}
	a.ForensicReliabilityScore = weight / float64(len(segments))
	return a
}
