package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"convene/models"
	"convene/services/calendar"

	"go.uber.org/zap"
)

// Reason explains an empty result. Empty availability is a normal outcome,
// not an error; the reason lets the UI offer the right next step.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonNoProvider  Reason = "no_provider"
	ReasonFullyBooked Reason = "fully_booked"
)

// Defaults applied when a SlotRequest leaves a field zero.
const (
	DefaultBusinessStart = 9 * time.Hour
	DefaultBusinessEnd   = 17 * time.Hour
	DefaultIncrement     = 30 * time.Minute
	DefaultDuration      = 30 * time.Minute
	DefaultMaxResults    = 4
)

// SlotRequest describes one availability lookup. Date is midnight of the
// target day in the user's timezone; the business window is expressed as
// offsets from that midnight.
type SlotRequest struct {
	Date          time.Time
	Duration      time.Duration
	BusinessStart time.Duration
	BusinessEnd   time.Duration
	Increment     time.Duration
	MaxResults    int
}

func (r SlotRequest) withDefaults() SlotRequest {
	if r.Duration <= 0 {
		r.Duration = DefaultDuration
	}
	if r.BusinessStart <= 0 {
		r.BusinessStart = DefaultBusinessStart
	}
	if r.BusinessEnd <= 0 {
		r.BusinessEnd = DefaultBusinessEnd
	}
	if r.Increment <= 0 {
		r.Increment = DefaultIncrement
	}
	if r.MaxResults <= 0 {
		r.MaxResults = DefaultMaxResults
	}
	return r
}

// SlotResult carries scored candidates plus the merged busy set, which the
// check-schedule path reuses.
type SlotResult struct {
	Slots  []models.CandidateSlot
	Busy   []models.BusyInterval
	Reason Reason
}

// Resolver computes a provider-agnostic view of availability.
type Resolver interface {
	Resolve(ctx context.Context, userID string, req SlotRequest) (SlotResult, error)
}

// DefaultResolver merges busy intervals across every connected provider,
// enumerates increment-aligned candidates inside business hours, and scores
// the survivors.
type DefaultResolver struct {
	Calendar calendar.Service
	Logger   *zap.Logger
}

func NewDefaultResolver(cal calendar.Service, logger *zap.Logger) *DefaultResolver {
	return &DefaultResolver{Calendar: cal, Logger: logger}
}

func (r *DefaultResolver) Resolve(ctx context.Context, userID string, req SlotRequest) (SlotResult, error) {
	req = req.withDefaults()

	providers, err := r.Calendar.ConnectedProviders(userID)
	if err != nil {
		return SlotResult{}, fmt.Errorf("failed to list connected providers: %w", err)
	}
	if len(providers) == 0 {
		return SlotResult{Reason: ReasonNoProvider}, nil
	}

	windowStart := req.Date.Add(req.BusinessStart)
	windowEnd := req.Date.Add(req.BusinessEnd)

	var all []models.BusyInterval
	for _, p := range providers {
		busy, err := r.Calendar.ListBusy(ctx, userID, p, windowStart, windowEnd)
		if err != nil {
			return SlotResult{}, fmt.Errorf("failed to fetch busy intervals from %s: %w", p, err)
		}
		all = append(all, busy...)
	}
	merged := MergeIntervals(all)

	candidates := enumerate(windowStart, windowEnd, req.Increment, req.Duration, merged)
	if len(candidates) == 0 {
		r.Logger.Debug("no free slots in business window",
			zap.String("userID", userID),
			zap.Time("date", req.Date))
		return SlotResult{Busy: merged, Reason: ReasonFullyBooked}, nil
	}

	scored := scoreSlots(candidates, merged, windowStart, windowEnd)
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Start.Before(scored[j].Start)
	})
	if len(scored) > req.MaxResults {
		scored = scored[:req.MaxResults]
	}
	return SlotResult{Slots: scored, Busy: merged}, nil
}

// enumerate walks the window in increment steps, keeping candidates that fit
// inside the window and touch no busy interval. Any overlap disqualifies.
func enumerate(windowStart, windowEnd time.Time, increment, duration time.Duration, busy []models.BusyInterval) []models.CandidateSlot {
	var out []models.CandidateSlot
	for t := windowStart; ; t = t.Add(increment) {
		end := t.Add(duration)
		if end.After(windowEnd) {
			break
		}
		conflict := false
		for _, b := range busy {
			if b.Overlaps(t, end) {
				conflict = true
				break
			}
		}
		if !conflict {
			out = append(out, models.CandidateSlot{Start: t, End: end})
		}
	}
	return out
}
