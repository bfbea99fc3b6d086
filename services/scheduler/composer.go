// File: services/scheduler/composer.go
// Pure mapping from orchestrator outcomes to the user-facing reply payload.
package scheduler

import (
	"fmt"
	"strings"
	"time"

	"convene/models"
)

const slotClockLayout = "3:04 PM"

// slotLabel renders "2:00 PM – 2:30 PM".
func slotLabel(s models.CandidateSlot, loc *time.Location) string {
	return s.Start.In(loc).Format(slotClockLayout) + " – " + s.End.In(loc).Format(slotClockLayout)
}

// slotViews numbers the offered slots 1-based; the same indices are expected
// back in a slot selection.
func slotViews(slots []models.CandidateSlot, loc *time.Location) []models.SlotView {
	views := make([]models.SlotView, len(slots))
	for i, s := range slots {
		views[i] = models.SlotView{
			Index: i + 1,
			Start: s.Start,
			End:   s.End,
			Label: slotLabel(s, loc),
			Score: s.Score,
		}
	}
	return views
}

func followUpQuestion(field string) string {
	switch field {
	case "title":
		return "What should the meeting be called?"
	case "date":
		return "What day should it be on?"
	case "time":
		return "What time works for you?"
	}
	return fmt.Sprintf("What should I use for the %s?", field)
}

func composeFollowUp(st *models.ConversationState) *models.ChatReply {
	params := st.Params
	return &models.ChatReply{
		Message:         "Got it so far.",
		FollowUp:        followUpQuestion(st.MissingFields[0]),
		Pending:         st.MissingFields,
		CollectedParams: &params,
	}
}

func composeOffer(st *models.ConversationState, loc *time.Location) *models.ChatReply {
	params := st.Params
	return &models.ChatReply{
		Message:         fmt.Sprintf("Here are the best times I found for %q on %s. Reply with a number to book one, or \"cancel\".", st.Params.Title, st.Params.Date),
		CollectedParams: &params,
		AvailableSlots:  slotViews(st.OfferedSlots, loc),
		Action:          models.ActionPickSlot,
	}
}

func composeReprompt(st *models.ConversationState, loc *time.Location) *models.ChatReply {
	return &models.ChatReply{
		Message:        fmt.Sprintf("I didn't catch that — please pick a slot between 1 and %d, or say \"cancel\".", len(st.OfferedSlots)),
		AvailableSlots: slotViews(st.OfferedSlots, loc),
		Action:         models.ActionPickSlot,
	}
}

func composeBooked(ev *models.CalendarEvent, loc *time.Location) *models.ChatReply {
	return &models.ChatReply{
		Message: fmt.Sprintf("Booked! %q is on your %s calendar, %s at %s.",
			ev.Title, ev.Provider,
			ev.Start.In(loc).Format("Monday, January 2"),
			ev.Start.In(loc).Format(slotClockLayout)),
		Event: ev,
	}
}

func composeCancelled() *models.ChatReply {
	return &models.ChatReply{
		Message: "No problem, I've cancelled that. Just ask whenever you want to schedule something.",
	}
}

func composeConnectCalendar() *models.ChatReply {
	return &models.ChatReply{
		Message: "You don't have a calendar connected yet. Connect Google Calendar or Outlook and I can find you a time.",
		Action:  models.ActionConnectCalendar,
	}
}

func composeReconnect(provider models.CalendarProvider) *models.ChatReply {
	name := string(provider)
	if name == "" {
		name = "calendar"
	}
	return &models.ChatReply{
		Message: fmt.Sprintf("I've lost access to your %s account. Please reconnect it and we'll pick up where we left off.", name),
		Action:  models.ActionReconnectCalendar,
	}
}

func composeRetry() *models.ChatReply {
	return &models.ChatReply{
		Message: "Your calendar isn't responding right now. Please try again in a moment — I've kept everything you told me.",
		Action:  models.ActionRetry,
	}
}

func composeNoSlots(st *models.ConversationState, date string) *models.ChatReply {
	params := st.Params
	return &models.ChatReply{
		Message:         fmt.Sprintf("Looks like %s is fully booked during business hours. Want to try another day?", date),
		FollowUp:        followUpQuestion("date"),
		Pending:         st.MissingFields,
		CollectedParams: &params,
		Action:          models.ActionPickAnotherDay,
	}
}

func composeSchedule(date string, busy []models.BusyInterval, loc *time.Location) *models.ChatReply {
	if len(busy) == 0 {
		return &models.ChatReply{
			Message: fmt.Sprintf("Your calendar is clear on %s.", date),
		}
	}
	var lines []string
	for _, b := range busy {
		lines = append(lines, fmt.Sprintf("%s – %s",
			b.Start.In(loc).Format(slotClockLayout),
			b.End.In(loc).Format(slotClockLayout)))
	}
	return &models.ChatReply{
		Message:       fmt.Sprintf("On %s you're busy: %s.", date, strings.Join(lines, ", ")),
		BusyIntervals: busy,
	}
}

func composeGeneral() *models.ChatReply {
	return &models.ChatReply{
		Message: "I can schedule meetings and check your calendar. Try something like \"book a 30 minute sync with anna@example.com tomorrow at 2pm\".",
	}
}
