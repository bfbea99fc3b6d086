// File: services/scheduler/orchestrator.go
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"convene/models"
	"convene/services/availability"
	"convene/services/calendar"
	"convene/services/intent"

	"go.uber.org/zap"
)

// ReminderScheduler queues a reminder for a booked meeting.
type ReminderScheduler interface {
	ScheduleReminder(ctx context.Context, userID string, ev *models.CalendarEvent) error
}

// UserDirectory resolves stored account profiles. The orchestrator uses it
// to default the timezone when a turn doesn't carry one.
type UserDirectory interface {
	GetByID(id string) (*models.User, error)
}

// Orchestrator is the top-level state machine behind every chat turn. It is
// the sole writer of ConversationState; turns from the same user are
// serialized on a per-user mutex so concurrent requests can't race on the
// offered slots or stage.
type Orchestrator struct {
	Classifier intent.Classifier
	States     StateStore
	Resolver   availability.Resolver
	Calendar   calendar.Service
	Reminders  ReminderScheduler
	Users      UserDirectory
	Logger     *zap.Logger

	BusinessStart   time.Duration
	BusinessEnd     time.Duration
	Increment       time.Duration
	MaxResults      int
	DefaultDuration time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (o *Orchestrator) userLock(userID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.locks == nil {
		o.locks = make(map[string]*sync.Mutex)
	}
	l, ok := o.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		o.locks[userID] = l
	}
	return l
}

func (o *Orchestrator) defaultDuration() time.Duration {
	if o.DefaultDuration > 0 {
		return o.DefaultDuration
	}
	return availability.DefaultDuration
}

func location(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ProcessTurn is the single entry point external routing invokes. Every
// failure path resolves to a chat reply; only programming errors escape.
func (o *Orchestrator) ProcessTurn(ctx context.Context, userID, utterance, timezone string) (*models.ChatReply, error) {
	lock := o.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if timezone == "" && o.Users != nil {
		if u, err := o.Users.GetByID(userID); err == nil && u != nil {
			timezone = u.Timezone
		}
	}
	loc := location(timezone)

	st, err := o.States.Get(ctx, userID)
	if err != nil {
		o.Logger.Warn("failed to load conversation state, starting fresh",
			zap.String("userID", userID), zap.Error(err))
		st = models.NewConversationState()
	}

	in, err := o.Classifier.Classify(ctx, utterance, intent.Context{
		Stage:         st.Stage,
		MissingFields: st.MissingFields,
		OfferedCount:  len(st.OfferedSlots),
	})
	if err != nil {
		// Classifiers are fail-soft already; this is the belt to their braces.
		o.Logger.Warn("classifier error", zap.Error(err))
		in = intent.Intent{Type: intent.TypeGeneralQuery}
	}

	switch {
	case in.Cancel && st.Stage != models.StageIdle:
		// Explicit cancellation abandons the negotiation at any stage.
		if err := o.States.Clear(ctx, userID); err != nil {
			o.Logger.Warn("failed to clear conversation state", zap.Error(err))
		}
		return composeCancelled(), nil

	case in.Type == intent.TypeSlotSelection && st.Stage == models.StageAwaitingSlotChoice:
		return o.handleSlotChoice(ctx, userID, st, in, loc)

	case in.Type == intent.TypeCreateMeeting:
		if st.Stage != models.StageCollectingParams {
			// A fresh request replaces any pending negotiation outright;
			// leftover offered slots never leak into the new one.
			st = models.NewConversationState()
		}
		st.Stage = models.StageCollectingParams
		Merge(st, in.Params)
		return o.advance(ctx, userID, st, loc)

	case in.Type == intent.TypeCheckSchedule:
		return o.handleCheckSchedule(ctx, userID, in, loc)

	case st.Stage == models.StageCollectingParams:
		// Unclassifiable answer mid-collection: keep progress, re-ask. A
		// complete param set here means the previous turn failed after
		// collection (provider outage); re-run availability instead of
		// asking a question that no longer exists.
		if len(st.MissingFields) == 0 {
			return o.advance(ctx, userID, st, loc)
		}
		if err := o.States.Set(ctx, userID, st); err != nil {
			o.Logger.Warn("failed to save conversation state", zap.Error(err))
		}
		return composeFollowUp(st), nil

	case st.Stage == models.StageAwaitingSlotChoice:
		return composeReprompt(st, loc), nil

	default:
		return composeGeneral(), nil
	}
}

// advance moves a collecting negotiation forward: ask for the next missing
// field, or compute availability once the params are complete.
func (o *Orchestrator) advance(ctx context.Context, userID string, st *models.ConversationState, loc *time.Location) (*models.ChatReply, error) {
	if len(st.MissingFields) > 0 {
		if err := o.States.Set(ctx, userID, st); err != nil {
			o.Logger.Warn("failed to save conversation state", zap.Error(err))
		}
		return composeFollowUp(st), nil
	}

	date, err := time.ParseInLocation(models.DateLayout, st.Params.Date, loc)
	if err != nil {
		// Should be unreachable: a set date always parses.
		return nil, fmt.Errorf("invalid date in params: %w", err)
	}

	duration := o.defaultDuration()
	if st.Params.DurationMinutes > 0 {
		duration = time.Duration(st.Params.DurationMinutes) * time.Minute
	}

	res, err := o.Resolver.Resolve(ctx, userID, availability.SlotRequest{
		Date:          date,
		Duration:      duration,
		BusinessStart: o.BusinessStart,
		BusinessEnd:   o.BusinessEnd,
		Increment:     o.Increment,
		MaxResults:    o.MaxResults,
	})
	if err != nil {
		return o.providerFailure(ctx, userID, st, err)
	}

	if res.Reason == availability.ReasonNoProvider {
		if cerr := o.States.Clear(ctx, userID); cerr != nil {
			o.Logger.Warn("failed to clear conversation state", zap.Error(cerr))
		}
		return composeConnectCalendar(), nil
	}

	if len(res.Slots) == 0 {
		fullDate := st.Params.Date
		st.Params.Date = ""
		st.MissingFields = st.Params.Missing()
		if err := o.States.Set(ctx, userID, st); err != nil {
			o.Logger.Warn("failed to save conversation state", zap.Error(err))
		}
		return composeNoSlots(st, fullDate), nil
	}

	// With no attendees there is nothing to negotiate when the exact
	// requested time is free: book it straight away.
	if len(st.Params.Attendees) == 0 {
		if requested, ok := st.Params.StartTime(loc); ok {
			for _, slot := range res.Slots {
				if slot.Start.Equal(requested) {
					return o.book(ctx, userID, st, slot, loc)
				}
			}
		}
	}

	st.Stage = models.StageAwaitingSlotChoice
	st.OfferedSlots = res.Slots
	if err := o.States.Set(ctx, userID, st); err != nil {
		o.Logger.Warn("failed to save conversation state", zap.Error(err))
	}
	return composeOffer(st, loc), nil
}

// handleSlotChoice resolves the user's answer against the offered slots. On
// anything unusable it re-prompts with the same slots: identity must stay
// stable across a clarification round.
func (o *Orchestrator) handleSlotChoice(ctx context.Context, userID string, st *models.ConversationState, in intent.Intent, loc *time.Location) (*models.ChatReply, error) {
	var chosen *models.CandidateSlot
	if in.SlotIndex >= 1 && in.SlotIndex <= len(st.OfferedSlots) {
		chosen = &st.OfferedSlots[in.SlotIndex-1]
	} else if in.SlotTime != "" {
		for i := range st.OfferedSlots {
			if st.OfferedSlots[i].Start.In(loc).Format(models.TimeLayout) == in.SlotTime {
				chosen = &st.OfferedSlots[i]
				break
			}
		}
	}
	if chosen == nil {
		return composeReprompt(st, loc), nil
	}
	return o.book(ctx, userID, st, *chosen, loc)
}

// book commits the negotiation through the chosen provider and resets the
// state on success. Provider failures keep the negotiation alive.
func (o *Orchestrator) book(ctx context.Context, userID string, st *models.ConversationState, slot models.CandidateSlot, loc *time.Location) (*models.ChatReply, error) {
	provider, err := o.Calendar.PickProvider(userID, st.Params.Provider)
	if err != nil {
		if errors.Is(err, calendar.ErrNotConnected) {
			if cerr := o.States.Clear(ctx, userID); cerr != nil {
				o.Logger.Warn("failed to clear conversation state", zap.Error(cerr))
			}
			return composeConnectCalendar(), nil
		}
		return o.providerFailure(ctx, userID, st, err)
	}

	ev, err := o.Calendar.CreateEvent(ctx, userID, provider, models.EventInput{
		Title:       st.Params.Title,
		Description: st.Params.Description,
		Start:       slot.Start,
		End:         slot.End,
		Attendees:   st.Params.Attendees,
	})
	if err != nil {
		return o.providerFailure(ctx, userID, st, err)
	}

	if o.Reminders != nil {
		if rerr := o.Reminders.ScheduleReminder(ctx, userID, ev); rerr != nil {
			o.Logger.Warn("failed to schedule reminder",
				zap.String("userID", userID), zap.Error(rerr))
		}
	}

	if err := o.States.Clear(ctx, userID); err != nil {
		o.Logger.Warn("failed to clear conversation state", zap.Error(err))
	}
	o.Logger.Info("meeting booked",
		zap.String("userID", userID),
		zap.String("provider", string(provider)),
		zap.Time("start", ev.Start))
	return composeBooked(ev, loc), nil
}

// providerFailure maps adapter errors onto replies. The reconnect case is
// distinct on purpose: it changes the action the UI offers. Negotiation
// state is preserved either way so the user doesn't lose progress.
func (o *Orchestrator) providerFailure(ctx context.Context, userID string, st *models.ConversationState, err error) (*models.ChatReply, error) {
	if serr := o.States.Set(ctx, userID, st); serr != nil {
		o.Logger.Warn("failed to save conversation state", zap.Error(serr))
	}
	if errors.Is(err, calendar.ErrReconnectRequired) {
		o.Logger.Warn("provider requires reconnect", zap.String("userID", userID), zap.Error(err))
		return composeReconnect(st.Params.Provider), nil
	}
	o.Logger.Error("provider call failed", zap.String("userID", userID), zap.Error(err))
	return composeRetry(), nil
}

// handleCheckSchedule renders the merged busy view for the requested date
// (today when unspecified). It never touches negotiation state.
func (o *Orchestrator) handleCheckSchedule(ctx context.Context, userID string, in intent.Intent, loc *time.Location) (*models.ChatReply, error) {
	dateStr := in.Params.Date
	if dateStr == "" {
		dateStr = time.Now().In(loc).Format(models.DateLayout)
	}
	date, err := time.ParseInLocation(models.DateLayout, dateStr, loc)
	if err != nil {
		return composeGeneral(), nil
	}

	res, err := o.Resolver.Resolve(ctx, userID, availability.SlotRequest{
		Date:          date,
		BusinessStart: o.BusinessStart,
		BusinessEnd:   o.BusinessEnd,
		Increment:     o.Increment,
	})
	if err != nil {
		if errors.Is(err, calendar.ErrReconnectRequired) {
			return composeReconnect(""), nil
		}
		o.Logger.Error("schedule lookup failed", zap.String("userID", userID), zap.Error(err))
		return composeRetry(), nil
	}
	if res.Reason == availability.ReasonNoProvider {
		return composeConnectCalendar(), nil
	}
	return composeSchedule(dateStr, res.Busy, loc), nil
}
