package tasks

import (
	"context"
	"encoding/json"
	"time"

	"convene/models"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const TypeMeetingReminder = "reminder:meeting"

// NewMeetingReminderTask builds the asynq task scheduled at fireAt.
func NewMeetingReminderTask(payload models.ReminderPayload, fireAt time.Time) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeMeetingReminder, b)
	opts := []asynq.Option{asynq.ProcessAt(fireAt)}

	return task, opts, nil
}

// ReminderService enqueues meeting reminders ahead of booked events.
type ReminderService struct {
	Client *asynq.Client
	Lead   time.Duration
	Logger *zap.Logger
}

// ScheduleReminder queues a reminder Lead before the event start. Events
// starting sooner than the lead window get no reminder.
func (s *ReminderService) ScheduleReminder(ctx context.Context, userID string, ev *models.CalendarEvent) error {
	fireAt := ev.Start.Add(-s.Lead)
	if !fireAt.After(time.Now()) {
		return nil
	}

	task, opts, err := NewMeetingReminderTask(models.ReminderPayload{
		UserID:   userID,
		EventID:  ev.ID,
		Provider: ev.Provider,
		Title:    ev.Title,
		Start:    ev.Start,
	}, fireAt)
	if err != nil {
		return err
	}

	info, err := s.Client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return err
	}
	s.Logger.Debug("reminder enqueued",
		zap.String("taskID", info.ID),
		zap.String("userID", userID),
		zap.Time("fireAt", fireAt))
	return nil
}
