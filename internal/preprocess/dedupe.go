package preprocess

import (
	"sort"

	"github.com/jengzang/vehicle-forensics-go/internal/models"
)

// SortAndDeduplicate orders points by timestamp (stable, so equal timestamps
// keep file order) and removes exact duplicates. A removed duplicate's fix
// count is added to the kept point; its annotations are merged only when
// preserveMetadata is set. It returns the surviving points and the number
// removed.
func SortAndDeduplicate(points []*models.GPSPoint, preserveMetadata bool) ([]*models.GPSPoint, int) {
	sorted := make([]*models.GPSPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	out := make([]*models.GPSPoint, 0, len(sorted))
	removed := 0
	groupStart := 0 // index in out of the first point sharing the current timestamp
	for _, p := range sorted {
		if len(out) > 0 && !out[len(out)-1].Timestamp.Equal(p.Timestamp) {
			groupStart = len(out)
		}
		if kept := findExactDuplicate(out[groupStart:], p); kept != nil {
			absorbDuplicate(kept, p, preserveMetadata)
			removed++
			continue
		}
		out = append(out, p)
	}

	if removed > 0 {
		logger.Debugf("Removed %d exact duplicates", removed)
	}
	return out, removed
}

func findExactDuplicate(group []*models.GPSPoint, p *models.GPSPoint) *models.GPSPoint {
	for _, candidate := range group {
		if candidate.ExactDuplicate(p) {
			return candidate
		}
	}
	return nil
}

func absorbDuplicate(kept, dup *models.GPSPoint, preserveMetadata bool) {
	fixes := dup.FixCount()
	if kept.Metadata.CoalescedCount > 0 {
		kept.Metadata.CoalescedCount += fixes
	} else {
		kept.Metadata.DuplicatesMerged += fixes
	}
	if preserveMetadata {
		kept.Metadata.Merge(dup.Metadata)
		kept.IsAnomaly = kept.IsAnomaly || dup.IsAnomaly
	}
}

// CoalesceSameLocationDuplicates collapses runs of consecutive points sharing
// both timestamp and coordinates into the first point of the run. Points are
// expected in timestamp order. Only adjacent fixes merge: A, B, A at one
// timestamp stays three points so the back-and-forth conflicts remain visible.
// The kept point records how many raw fixes it stands for in
// Metadata.CoalescedCount and is tagged stop/coalesced: repeated identical
// fixes are evidence of a stop. Running it on its own output is a no-op.
// It returns the surviving points and the number of coalesced runs.
func CoalesceSameLocationDuplicates(points []*models.GPSPoint) ([]*models.GPSPoint, int) {
	out := make([]*models.GPSPoint, 0, len(points))
	groups := 0

	for i := 0; i < len(points); {
		head := points[i]
		total := head.FixCount()
		j := i + 1
		for ; j < len(points); j++ {
			next := points[j]
			if !next.Timestamp.Equal(head.Timestamp) || !next.SameLocation(head) {
				break
			}
			total += next.FixCount()
			head.Metadata.Merge(next.Metadata)
			head.IsAnomaly = head.IsAnomaly || next.IsAnomaly
		}
		if total > 1 {
			head.Metadata.CoalescedCount = total
			head.Metadata.DuplicatesMerged = 0
			head.Metadata.GapType = models.GapStopCoalesced
			head.IsObserved = true
			groups++
		}
		out = append(out, head)
		i = j
	}

	if groups > 0 {
		logger.Debugf("Coalesced %d same-location groups (%d -> %d points)", groups, len(points), len(out))
	}
	return out, groups
}
