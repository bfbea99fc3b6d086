package availability

import (
	"time"

	"convene/models"
)

// Scoring weights. Buffer dominates: at the default 30-minute increment one
// extra step of buffer (0.125 of the half-window) outweighs any possible
// earliness difference, so earliness only decides between equal buffers.
const (
	bufferWeight    = 0.9
	earlinessWeight = 0.1
)

// scoreSlots assigns each candidate a score in [0,1]: monotonic in the
// distance to the nearest busy boundary, with earlier slots winning ties.
// Deterministic for a given busy set.
func scoreSlots(slots []models.CandidateSlot, busy []models.BusyInterval, windowStart, windowEnd time.Time) []models.CandidateSlot {
	windowLen := windowEnd.Sub(windowStart)
	if windowLen <= 0 {
		return slots
	}
	halfWindow := windowLen / 2

	out := make([]models.CandidateSlot, len(slots))
	for i, s := range slots {
		buf := bufferAround(s, busy, windowStart, windowEnd)
		bufScore := float64(buf) / float64(halfWindow)
		if bufScore > 1 {
			bufScore = 1
		}
		earliness := 1 - float64(s.Start.Sub(windowStart))/float64(windowLen)
		s.Score = bufferWeight*bufScore + earlinessWeight*earliness
		out[i] = s
	}
	return out
}

// bufferAround is the smaller of the gaps between the slot and its nearest
// busy neighbour on each side; the window edges bound the gaps.
func bufferAround(s models.CandidateSlot, busy []models.BusyInterval, windowStart, windowEnd time.Time) time.Duration {
	prevEnd := windowStart
	nextStart := windowEnd
	for _, b := range busy {
		if !b.End.After(s.Start) && b.End.After(prevEnd) {
			prevEnd = b.End
		}
		if !b.Start.Before(s.End) && b.Start.Before(nextStart) {
			nextStart = b.Start
		}
	}
	before := s.Start.Sub(prevEnd)
	after := nextStart.Sub(s.End)
	if before < after {
		return before
	}
	return after
}
