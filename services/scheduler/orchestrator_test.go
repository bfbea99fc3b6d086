package scheduler

import (
	"context"
	"testing"
	"time"

	"convene/models"
	"convene/services/availability"
	"convene/services/calendar"
	"convene/services/intent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memoryStateStore mirrors the Redis store's miss behavior in memory.
type memoryStateStore struct {
	states map[string]models.ConversationState
}

func newMemoryStateStore() *memoryStateStore {
	return &memoryStateStore{states: make(map[string]models.ConversationState)}
}

func (m *memoryStateStore) Get(ctx context.Context, userID string) (*models.ConversationState, error) {
	st, ok := m.states[userID]
	if !ok {
		return models.NewConversationState(), nil
	}
	cp := st
	return &cp, nil
}

func (m *memoryStateStore) Set(ctx context.Context, userID string, st *models.ConversationState) error {
	m.states[userID] = *st
	return nil
}

func (m *memoryStateStore) Clear(ctx context.Context, userID string) error {
	delete(m.states, userID)
	return nil
}

// scriptedClassifier returns intents in order, one per turn.
type scriptedClassifier struct {
	queue []intent.Intent
}

func (s *scriptedClassifier) Classify(ctx context.Context, utterance string, conv intent.Context) (intent.Intent, error) {
	if len(s.queue) == 0 {
		return intent.Intent{Type: intent.TypeGeneralQuery}, nil
	}
	in := s.queue[0]
	s.queue = s.queue[1:]
	return in, nil
}

type fakeResolver struct {
	result availability.SlotResult
	err    error
}

func (f *fakeResolver) Resolve(ctx context.Context, userID string, req availability.SlotRequest) (availability.SlotResult, error) {
	return f.result, f.err
}

type fakeUserDirectory struct {
	user *models.User
}

func (f *fakeUserDirectory) GetByID(id string) (*models.User, error) {
	if f.user == nil {
		return nil, assert.AnError
	}
	return f.user, nil
}

type fakeCalendar struct {
	connected []models.CalendarProvider
	created   []models.EventInput
	createErr error
}

func (f *fakeCalendar) ConnectedProviders(userID string) ([]models.CalendarProvider, error) {
	return f.connected, nil
}

func (f *fakeCalendar) PickProvider(userID string, requested models.CalendarProvider) (models.CalendarProvider, error) {
	if len(f.connected) == 0 {
		return "", calendar.ErrNotConnected
	}
	return f.connected[0], nil
}

func (f *fakeCalendar) ListBusy(ctx context.Context, userID string, provider models.CalendarProvider, from, to time.Time) ([]models.BusyInterval, error) {
	return nil, nil
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, userID string, provider models.CalendarProvider, input models.EventInput) (*models.CalendarEvent, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, input)
	return &models.CalendarEvent{
		ID:       "ev-1",
		Provider: provider,
		Title:    input.Title,
		Start:    input.Start,
		End:      input.End,
	}, nil
}

func slotAt(t *testing.T, date, clock string) models.CandidateSlot {
	t.Helper()
	start, err := time.Parse(models.DateLayout+" "+models.TimeLayout, date+" "+clock)
	require.NoError(t, err)
	return models.CandidateSlot{Start: start, End: start.Add(30 * time.Minute)}
}

func newTestOrchestrator(cls intent.Classifier, states StateStore, res availability.Resolver, cal calendar.Service) *Orchestrator {
	return &Orchestrator{
		Classifier: cls,
		States:     states,
		Resolver:   res,
		Calendar:   cal,
		Logger:     zap.NewNop(),
	}
}

func TestFollowUpOrderTitleDateTime(t *testing.T) {
	states := newMemoryStateStore()
	cls := &scriptedClassifier{queue: []intent.Intent{
		{Type: intent.TypeCreateMeeting},
		{Type: intent.TypeCreateMeeting, Params: models.MeetingParams{Title: "Standup"}},
		{Type: intent.TypeCreateMeeting, Params: models.MeetingParams{Date: "2025-03-10"}},
	}}
	o := newTestOrchestrator(cls, states, &fakeResolver{}, &fakeCalendar{})

	reply, err := o.ProcessTurn(context.Background(), "u1", "book a meeting", "")
	require.NoError(t, err)
	assert.Equal(t, "What should the meeting be called?", reply.FollowUp)
	assert.Equal(t, []string{"title", "date", "time"}, reply.Pending)

	reply, err = o.ProcessTurn(context.Background(), "u1", "Standup", "")
	require.NoError(t, err)
	assert.Equal(t, "What day should it be on?", reply.FollowUp)
	assert.Equal(t, []string{"date", "time"}, reply.Pending)

	reply, err = o.ProcessTurn(context.Background(), "u1", "March 10", "")
	require.NoError(t, err)
	assert.Equal(t, "What time works for you?", reply.FollowUp)
	assert.Equal(t, []string{"time"}, reply.Pending)
	assert.Equal(t, "Standup", reply.CollectedParams.Title)
	assert.Equal(t, "2025-03-10", reply.CollectedParams.Date)
}

func TestOfferThenPickSlotByIndex(t *testing.T) {
	states := newMemoryStateStore()
	slots := []models.CandidateSlot{
		slotAt(t, "2025-03-10", "14:00"),
		slotAt(t, "2025-03-10", "15:30"),
	}
	cls := &scriptedClassifier{queue: []intent.Intent{
		{Type: intent.TypeCreateMeeting, Params: models.MeetingParams{
			Title: "Sync", Date: "2025-03-10", Time: "13:00",
			Attendees: []string{"anna@example.com"},
		}},
		{Type: intent.TypeSlotSelection, SlotIndex: 2},
	}}
	cal := &fakeCalendar{connected: []models.CalendarProvider{models.ProviderGoogle}}
	o := newTestOrchestrator(cls, states, &fakeResolver{result: availability.SlotResult{Slots: slots}}, cal)

	reply, err := o.ProcessTurn(context.Background(), "u1", "book a sync", "")
	require.NoError(t, err)
	require.Len(t, reply.AvailableSlots, 2)
	assert.Equal(t, models.ActionPickSlot, reply.Action)
	assert.Equal(t, 1, reply.AvailableSlots[0].Index)

	reply, err = o.ProcessTurn(context.Background(), "u1", "2", "")
	require.NoError(t, err)
	require.NotNil(t, reply.Event)
	assert.Equal(t, "Sync", reply.Event.Title)
	assert.True(t, reply.Event.Start.Equal(slots[1].Start))

	require.Len(t, cal.created, 1)
	assert.Equal(t, []string{"anna@example.com"}, cal.created[0].Attendees)

	// Booking ends the negotiation.
	st, err := states.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StageIdle, st.Stage)
}

func TestInvalidIndexRepromptsWithSameSlots(t *testing.T) {
	states := newMemoryStateStore()
	slots := []models.CandidateSlot{
		slotAt(t, "2025-03-10", "14:00"),
		slotAt(t, "2025-03-10", "15:30"),
	}
	cls := &scriptedClassifier{queue: []intent.Intent{
		{Type: intent.TypeCreateMeeting, Params: models.MeetingParams{
			Title: "Sync", Date: "2025-03-10", Time: "13:00",
			Attendees: []string{"anna@example.com"},
		}},
		{Type: intent.TypeSlotSelection, SlotIndex: 7},
	}}
	cal := &fakeCalendar{connected: []models.CalendarProvider{models.ProviderGoogle}}
	o := newTestOrchestrator(cls, states, &fakeResolver{result: availability.SlotResult{Slots: slots}}, cal)

	first, err := o.ProcessTurn(context.Background(), "u1", "book a sync", "")
	require.NoError(t, err)

	second, err := o.ProcessTurn(context.Background(), "u1", "7", "")
	require.NoError(t, err)
	assert.Nil(t, second.Event)
	assert.Equal(t, models.ActionPickSlot, second.Action)
	assert.Equal(t, first.AvailableSlots, second.AvailableSlots)
	assert.Empty(t, cal.created)
}

func TestCancelResetsNegotiation(t *testing.T) {
	states := newMemoryStateStore()
	slots := []models.CandidateSlot{slotAt(t, "2025-03-10", "14:00")}
	cls := &scriptedClassifier{queue: []intent.Intent{
		{Type: intent.TypeCreateMeeting, Params: models.MeetingParams{
			Title: "Sync", Date: "2025-03-10", Time: "13:00",
			Attendees: []string{"anna@example.com"},
		}},
		{Type: intent.TypeSlotSelection, Cancel: true},
		{Type: intent.TypeCreateMeeting},
	}}
	cal := &fakeCalendar{connected: []models.CalendarProvider{models.ProviderGoogle}}
	o := newTestOrchestrator(cls, states, &fakeResolver{result: availability.SlotResult{Slots: slots}}, cal)

	_, err := o.ProcessTurn(context.Background(), "u1", "book a sync", "")
	require.NoError(t, err)

	reply, err := o.ProcessTurn(context.Background(), "u1", "cancel", "")
	require.NoError(t, err)
	assert.Empty(t, reply.AvailableSlots)
	assert.Empty(t, cal.created)

	// A new request starts from scratch, nothing carried over.
	reply, err = o.ProcessTurn(context.Background(), "u1", "book a meeting", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "date", "time"}, reply.Pending)
}

func TestNoProviderAsksToConnect(t *testing.T) {
	states := newMemoryStateStore()
	cls := &scriptedClassifier{queue: []intent.Intent{
		{Type: intent.TypeCreateMeeting, Params: models.MeetingParams{
			Title: "Sync", Date: "2025-03-10", Time: "13:00",
		}},
	}}
	o := newTestOrchestrator(cls, states,
		&fakeResolver{result: availability.SlotResult{Reason: availability.ReasonNoProvider}},
		&fakeCalendar{})

	reply, err := o.ProcessTurn(context.Background(), "u1", "book a sync", "")
	require.NoError(t, err)
	assert.Equal(t, models.ActionConnectCalendar, reply.Action)

	st, err := states.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StageIdle, st.Stage)
}

func TestDirectBookingWhenRequestedTimeFree(t *testing.T) {
	states := newMemoryStateStore()
	slots := []models.CandidateSlot{
		slotAt(t, "2025-03-10", "14:00"),
		slotAt(t, "2025-03-10", "09:00"),
	}
	cls := &scriptedClassifier{queue: []intent.Intent{
		{Type: intent.TypeCreateMeeting, Params: models.MeetingParams{
			Title: "Focus block", Date: "2025-03-10", Time: "14:00",
		}},
	}}
	cal := &fakeCalendar{connected: []models.CalendarProvider{models.ProviderGoogle}}
	o := newTestOrchestrator(cls, states, &fakeResolver{result: availability.SlotResult{Slots: slots}}, cal)

	reply, err := o.ProcessTurn(context.Background(), "u1", "block 2pm monday", "")
	require.NoError(t, err)
	require.NotNil(t, reply.Event)
	assert.Empty(t, reply.AvailableSlots)
	require.Len(t, cal.created, 1)
	assert.True(t, cal.created[0].Start.Equal(slotAt(t, "2025-03-10", "14:00").Start))
}

func TestFullyBookedOffersAnotherDay(t *testing.T) {
	states := newMemoryStateStore()
	cls := &scriptedClassifier{queue: []intent.Intent{
		{Type: intent.TypeCreateMeeting, Params: models.MeetingParams{
			Title: "Sync", Date: "2025-03-10", Time: "13:00",
		}},
	}}
	o := newTestOrchestrator(cls, states,
		&fakeResolver{result: availability.SlotResult{Reason: availability.ReasonFullyBooked}},
		&fakeCalendar{connected: []models.CalendarProvider{models.ProviderGoogle}})

	reply, err := o.ProcessTurn(context.Background(), "u1", "book a sync", "")
	require.NoError(t, err)
	assert.Equal(t, models.ActionPickAnotherDay, reply.Action)
	assert.Equal(t, "What day should it be on?", reply.FollowUp)

	// The date is dropped, everything else survives.
	st, err := states.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Sync", st.Params.Title)
	assert.Empty(t, st.Params.Date)
	assert.Equal(t, "13:00", st.Params.Time)
}

func TestReconnectRequiredKeepsState(t *testing.T) {
	states := newMemoryStateStore()
	slots := []models.CandidateSlot{slotAt(t, "2025-03-10", "14:00")}
	cls := &scriptedClassifier{queue: []intent.Intent{
		{Type: intent.TypeCreateMeeting, Params: models.MeetingParams{
			Title: "Sync", Date: "2025-03-10", Time: "13:00",
			Attendees: []string{"anna@example.com"},
		}},
		{Type: intent.TypeSlotSelection, SlotIndex: 1},
	}}
	cal := &fakeCalendar{
		connected: []models.CalendarProvider{models.ProviderGoogle},
		createErr: calendar.ErrReconnectRequired,
	}
	o := newTestOrchestrator(cls, states, &fakeResolver{result: availability.SlotResult{Slots: slots}}, cal)

	_, err := o.ProcessTurn(context.Background(), "u1", "book a sync", "")
	require.NoError(t, err)

	reply, err := o.ProcessTurn(context.Background(), "u1", "1", "")
	require.NoError(t, err)
	assert.Equal(t, models.ActionReconnectCalendar, reply.Action)

	st, err := states.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StageAwaitingSlotChoice, st.Stage)
	assert.Len(t, st.OfferedSlots, 1)
}

func TestUnclassifiedAfterProviderOutageRetriesAvailability(t *testing.T) {
	states := newMemoryStateStore()
	slots := []models.CandidateSlot{slotAt(t, "2025-03-10", "14:00")}
	cls := &scriptedClassifier{queue: []intent.Intent{
		{Type: intent.TypeCreateMeeting, Params: models.MeetingParams{
			Title: "Sync", Date: "2025-03-10", Time: "13:00",
			Attendees: []string{"anna@example.com"},
		}},
		{Type: intent.TypeGeneralQuery},
	}}
	resolver := &fakeResolver{err: assert.AnError}
	cal := &fakeCalendar{connected: []models.CalendarProvider{models.ProviderGoogle}}
	o := newTestOrchestrator(cls, states, resolver, cal)

	reply, err := o.ProcessTurn(context.Background(), "u1", "book a sync", "")
	require.NoError(t, err)
	assert.Equal(t, models.ActionRetry, reply.Action)

	// The params are complete, so the next turn has no question to re-ask;
	// it must re-run availability with the collected params instead.
	resolver.err = nil
	resolver.result = availability.SlotResult{Slots: slots}
	reply, err = o.ProcessTurn(context.Background(), "u1", "ok?", "")
	require.NoError(t, err)
	assert.Empty(t, reply.FollowUp)
	require.Len(t, reply.AvailableSlots, 1)
	assert.Equal(t, models.ActionPickSlot, reply.Action)
}

func TestCancelDuringCollectionClearsState(t *testing.T) {
	states := newMemoryStateStore()
	cls := &scriptedClassifier{queue: []intent.Intent{
		{Type: intent.TypeCreateMeeting, Params: models.MeetingParams{Title: "Sync"}},
		{Type: intent.TypeGeneralQuery, Cancel: true},
		{Type: intent.TypeCreateMeeting},
	}}
	o := newTestOrchestrator(cls, states, &fakeResolver{}, &fakeCalendar{})

	reply, err := o.ProcessTurn(context.Background(), "u1", "book a sync", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "time"}, reply.Pending)

	reply, err = o.ProcessTurn(context.Background(), "u1", "cancel", "")
	require.NoError(t, err)
	assert.Empty(t, reply.Pending)
	assert.Empty(t, reply.FollowUp)

	st, err := states.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StageIdle, st.Stage)

	// The next request starts over; nothing from the cancelled one survives.
	reply, err = o.ProcessTurn(context.Background(), "u1", "book a meeting", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "date", "time"}, reply.Pending)
}

func TestPickSlotByTimeLiteral(t *testing.T) {
	states := newMemoryStateStore()
	slots := []models.CandidateSlot{
		slotAt(t, "2025-03-10", "14:00"),
		slotAt(t, "2025-03-10", "15:30"),
	}
	cls := &scriptedClassifier{queue: []intent.Intent{
		{Type: intent.TypeCreateMeeting, Params: models.MeetingParams{
			Title: "Sync", Date: "2025-03-10", Time: "13:00",
			Attendees: []string{"anna@example.com"},
		}},
		{Type: intent.TypeSlotSelection, SlotTime: "15:30"},
	}}
	cal := &fakeCalendar{connected: []models.CalendarProvider{models.ProviderGoogle}}
	o := newTestOrchestrator(cls, states, &fakeResolver{result: availability.SlotResult{Slots: slots}}, cal)

	_, err := o.ProcessTurn(context.Background(), "u1", "book a sync", "")
	require.NoError(t, err)

	reply, err := o.ProcessTurn(context.Background(), "u1", "15:30", "")
	require.NoError(t, err)
	require.NotNil(t, reply.Event)
	assert.True(t, reply.Event.Start.Equal(slots[1].Start))
	require.Len(t, cal.created, 1)
}

func TestStoredTimezoneDefaultsWhenRequestOmitsOne(t *testing.T) {
	states := newMemoryStateStore()
	// 14:00 in New York on 2025-03-10 is 18:00 UTC.
	wanted := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	slots := []models.CandidateSlot{{Start: wanted, End: wanted.Add(30 * time.Minute)}}
	cls := &scriptedClassifier{queue: []intent.Intent{
		{Type: intent.TypeCreateMeeting, Params: models.MeetingParams{
			Title: "Focus block", Date: "2025-03-10", Time: "14:00",
		}},
	}}
	cal := &fakeCalendar{connected: []models.CalendarProvider{models.ProviderGoogle}}
	o := newTestOrchestrator(cls, states, &fakeResolver{result: availability.SlotResult{Slots: slots}}, cal)
	o.Users = &fakeUserDirectory{user: &models.User{ID: "u1", Timezone: "America/New_York"}}

	reply, err := o.ProcessTurn(context.Background(), "u1", "block 2pm monday", "")
	require.NoError(t, err)

	// Requested 14:00 resolves in the stored zone, so the 18:00 UTC slot is
	// an exact match and books directly.
	require.NotNil(t, reply.Event)
	assert.True(t, reply.Event.Start.Equal(wanted))
}

func TestMergeKeepsExistingValues(t *testing.T) {
	st := models.NewConversationState()
	st.Params.Title = "Standup"

	Merge(st, models.MeetingParams{Title: "Other", Date: "2025-03-10"})

	assert.Equal(t, "Standup", st.Params.Title)
	assert.Equal(t, "2025-03-10", st.Params.Date)
	assert.Equal(t, []string{"time"}, st.MissingFields)
}
