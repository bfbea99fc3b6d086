package availability

import (
	"sort"

	"convene/models"
)

// MergeIntervals unions busy intervals from all providers into a single
// sorted list with overlapping and adjacent ranges coalesced.
func MergeIntervals(in []models.BusyInterval) []models.BusyInterval {
	if len(in) == 0 {
		return nil
	}

	sorted := make([]models.BusyInterval, len(in))
	copy(sorted, in)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].End.Before(sorted[j].End)
		}
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := []models.BusyInterval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}
