package models

import "time"

// ChatRequest is the payload coming from the frontend into /api/chat.
type ChatRequest struct {
	Text     string `json:"text" binding:"required"` // user's message (typed or voice→text)
	Timezone string `json:"timezone,omitempty"`      // IANA zone, e.g. "Europe/Berlin"
}

// SlotView is one offered slot as rendered to the user. Index is 1-based and
// matches the index expected back in a slot selection.
type SlotView struct {
	Index int       `json:"index"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label"` // e.g. "2:00 PM – 2:30 PM"
	Score float64   `json:"score"`
}

// Reply action hints for the UI.
const (
	ActionConnectCalendar   = "connect_calendar"
	ActionReconnectCalendar = "reconnect_calendar"
	ActionRetry             = "retry"
	ActionPickSlot          = "pick_slot"
	ActionPickAnotherDay    = "pick_another_day"
)

// ChatReply is what the chat handler returns to the frontend.
type ChatReply struct {
	Message         string          `json:"message"`
	FollowUp        string          `json:"followUp,omitempty"`
	Pending         []string        `json:"pending,omitempty"`
	CollectedParams *MeetingParams  `json:"collectedParams,omitempty"`
	AvailableSlots  []SlotView      `json:"availableSlots,omitempty"`
	Event           *CalendarEvent  `json:"event,omitempty"`
	BusyIntervals   []BusyInterval  `json:"busyIntervals,omitempty"`
	Action          string          `json:"action,omitempty"`
}
