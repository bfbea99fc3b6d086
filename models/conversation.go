package models

import "time"

// NegotiationStage is the lifecycle stage of a scheduling negotiation.
type NegotiationStage string

const (
	StageIdle               NegotiationStage = "idle"
	StageCollectingParams   NegotiationStage = "collecting_params"
	StageAwaitingSlotChoice NegotiationStage = "awaiting_slot_choice"
	StageDone               NegotiationStage = "done"
)

// Layouts used for the normalized date and time fields.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// RequiredMeetingFields is the follow-up order for missing parameters.
var RequiredMeetingFields = []string{"title", "date", "time"}

// MeetingParams accumulates meeting details over successive turns.
// A set field is always well-formed: Date parses as 2006-01-02 and
// Time as 15:04; invalid extractions are dropped before they land here.
type MeetingParams struct {
	Title           string           `json:"title,omitempty"`
	Date            string           `json:"date,omitempty"`
	Time            string           `json:"time,omitempty"`
	DurationMinutes int              `json:"durationMinutes,omitempty"`
	Attendees       []string         `json:"attendees,omitempty"`
	Description     string           `json:"description,omitempty"`
	Provider        CalendarProvider `json:"provider,omitempty"`
}

// Missing returns the unset required fields in the fixed follow-up order.
func (p MeetingParams) Missing() []string {
	var missing []string
	for _, f := range RequiredMeetingFields {
		switch f {
		case "title":
			if p.Title == "" {
				missing = append(missing, f)
			}
		case "date":
			if p.Date == "" {
				missing = append(missing, f)
			}
		case "time":
			if p.Time == "" {
				missing = append(missing, f)
			}
		}
	}
	return missing
}

// Empty reports whether no field has been filled yet.
func (p MeetingParams) Empty() bool {
	return p.Title == "" && p.Date == "" && p.Time == "" &&
		p.DurationMinutes == 0 && len(p.Attendees) == 0 &&
		p.Description == "" && p.Provider == ""
}

// StartTime resolves Date+Time in the given location. The second return is
// false until both fields are set.
func (p MeetingParams) StartTime(loc *time.Location) (time.Time, bool) {
	if p.Date == "" || p.Time == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, p.Date+" "+p.Time, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ConversationState is the in-progress negotiation for one user. At most one
// is active per user; the scheduling orchestrator is the sole writer.
type ConversationState struct {
	Stage         NegotiationStage `json:"stage"`
	Params        MeetingParams    `json:"params"`
	MissingFields []string         `json:"missingFields,omitempty"`
	OfferedSlots  []CandidateSlot  `json:"offeredSlots,omitempty"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// NewConversationState returns a fresh Idle state.
func NewConversationState() *ConversationState {
	return &ConversationState{Stage: StageIdle}
}
