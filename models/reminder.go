package models

import "time"

// ReminderPayload is the asynq task body for a meeting reminder.
type ReminderPayload struct {
	UserID   string           `json:"userId"`
	EventID  string           `json:"eventId"`
	Provider CalendarProvider `json:"provider"`
	Title    string           `json:"title"`
	Start    time.Time        `json:"start"`
}
