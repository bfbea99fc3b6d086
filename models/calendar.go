package models

import "time"

// CalendarProvider identifies one of the connected calendar backends.
type CalendarProvider string

const (
	ProviderGoogle  CalendarProvider = "google"
	ProviderOutlook CalendarProvider = "outlook"
)

// KnownProviders is the fixed set of supported backends.
var KnownProviders = []CalendarProvider{ProviderGoogle, ProviderOutlook}

// ParseProvider normalizes a free-form provider name. Returns "" when unknown.
func ParseProvider(s string) CalendarProvider {
	switch s {
	case "google", "gcal", "google_calendar":
		return ProviderGoogle
	case "outlook", "microsoft", "ms":
		return ProviderOutlook
	}
	return ""
}

// CalendarCredential is the stored OAuth token pair for one provider.
// Mutated only by the credential refresh manager.
type CalendarCredential struct {
	Provider     CalendarProvider `bson:"provider" json:"provider"`
	AccessToken  string           `bson:"accessToken" json:"-"`
	RefreshToken string           `bson:"refreshToken" json:"-"`
	Expiry       time.Time        `bson:"expiry,omitempty" json:"expiry,omitempty"`
}

// BusyInterval is a half-open [Start, End) range during which a calendar
// account is unavailable.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewBusyInterval validates start < end. Malformed ranges are discarded by
// callers, not repaired.
func NewBusyInterval(start, end time.Time) (BusyInterval, bool) {
	if !start.Before(end) {
		return BusyInterval{}, false
	}
	return BusyInterval{Start: start, End: end}, true
}

// Overlaps reports whether [start, end) intersects the interval.
func (b BusyInterval) Overlaps(start, end time.Time) bool {
	return start.Before(b.End) && b.Start.Before(end)
}

// CandidateSlot is a scored, duration-matched, conflict-free time range
// proposed to the user. Immutable once produced.
type CandidateSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Score float64   `json:"score"`
}

// EventInput is the provider-neutral request to create a calendar event.
type EventInput struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
}

// CalendarEvent is the provider-neutral view of a created event.
type CalendarEvent struct {
	ID        string           `json:"id"`
	Provider  CalendarProvider `json:"provider"`
	Title     string           `json:"title"`
	Start     time.Time        `json:"start"`
	End       time.Time        `json:"end"`
	Attendees []string         `json:"attendees,omitempty"`
	HTMLLink  string           `json:"htmlLink,omitempty"`
}
