package availability

import (
	"context"
	"testing"
	"time"

	"convene/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeCalendarService serves canned busy intervals per provider.
type fakeCalendarService struct {
	providers []models.CalendarProvider
	busy      map[models.CalendarProvider][]models.BusyInterval
	err       error
}

func (f *fakeCalendarService) ConnectedProviders(userID string) ([]models.CalendarProvider, error) {
	return f.providers, nil
}

func (f *fakeCalendarService) PickProvider(userID string, requested models.CalendarProvider) (models.CalendarProvider, error) {
	if len(f.providers) == 0 {
		return "", assert.AnError
	}
	return f.providers[0], nil
}

func (f *fakeCalendarService) ListBusy(ctx context.Context, userID string, provider models.CalendarProvider, from, to time.Time) ([]models.BusyInterval, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.busy[provider], nil
}

func (f *fakeCalendarService) CreateEvent(ctx context.Context, userID string, provider models.CalendarProvider, input models.EventInput) (*models.CalendarEvent, error) {
	return nil, assert.AnError
}

func day(t *testing.T) time.Time {
	t.Helper()
	d, err := time.Parse(models.DateLayout, "2025-03-10")
	require.NoError(t, err)
	return d
}

func at(t *testing.T, clock string) time.Time {
	t.Helper()
	return day(t).Add(mustClock(t, clock))
}

func mustClock(t *testing.T, clock string) time.Duration {
	t.Helper()
	tm, err := time.Parse(models.TimeLayout, clock)
	require.NoError(t, err)
	return time.Duration(tm.Hour())*time.Hour + time.Duration(tm.Minute())*time.Minute
}

func TestResolveNoProviderReason(t *testing.T) {
	r := NewDefaultResolver(&fakeCalendarService{}, zap.NewNop())

	res, err := r.Resolve(context.Background(), "u1", SlotRequest{Date: day(t)})
	require.NoError(t, err)
	assert.Equal(t, ReasonNoProvider, res.Reason)
	assert.Empty(t, res.Slots)
}

func TestResolveFullyBookedReason(t *testing.T) {
	cal := &fakeCalendarService{
		providers: []models.CalendarProvider{models.ProviderGoogle},
		busy: map[models.CalendarProvider][]models.BusyInterval{
			models.ProviderGoogle: {{Start: at(t, "09:00"), End: at(t, "17:00")}},
		},
	}
	r := NewDefaultResolver(cal, zap.NewNop())

	res, err := r.Resolve(context.Background(), "u1", SlotRequest{Date: day(t)})
	require.NoError(t, err)
	assert.Equal(t, ReasonFullyBooked, res.Reason)
	assert.Empty(t, res.Slots)
	assert.Len(t, res.Busy, 1)
}

func TestResolveSlotsAreDisjointFromBusy(t *testing.T) {
	cal := &fakeCalendarService{
		providers: []models.CalendarProvider{models.ProviderGoogle, models.ProviderOutlook},
		busy: map[models.CalendarProvider][]models.BusyInterval{
			models.ProviderGoogle:  {{Start: at(t, "10:00"), End: at(t, "11:00")}},
			models.ProviderOutlook: {{Start: at(t, "13:30"), End: at(t, "14:15")}},
		},
	}
	r := NewDefaultResolver(cal, zap.NewNop())

	res, err := r.Resolve(context.Background(), "u1", SlotRequest{Date: day(t), MaxResults: 50})
	require.NoError(t, err)
	require.NotEmpty(t, res.Slots)

	for _, s := range res.Slots {
		assert.True(t, s.End.Sub(s.Start) == 30*time.Minute)
		assert.False(t, s.Start.Before(at(t, "09:00")))
		assert.False(t, s.End.After(at(t, "17:00")))
		for _, b := range res.Busy {
			assert.Falsef(t, b.Overlaps(s.Start, s.End),
				"slot %s overlaps busy %s", s.Start, b.Start)
		}
	}
}

func TestResolveBufferDominatesEarliness(t *testing.T) {
	// One meeting 10:00-11:00. For hour-long requests the 09:00 and 11:00
	// candidates both sit flush against a boundary, so earliness must put
	// 09:00 ahead of 11:00.
	cal := &fakeCalendarService{
		providers: []models.CalendarProvider{models.ProviderGoogle},
		busy: map[models.CalendarProvider][]models.BusyInterval{
			models.ProviderGoogle: {{Start: at(t, "10:00"), End: at(t, "11:00")}},
		},
	}
	r := NewDefaultResolver(cal, zap.NewNop())

	res, err := r.Resolve(context.Background(), "u1", SlotRequest{
		Date:       day(t),
		Duration:   time.Hour,
		MaxResults: 50,
	})
	require.NoError(t, err)

	var nineScore, elevenScore float64
	for _, s := range res.Slots {
		if s.Start.Equal(at(t, "09:00")) {
			nineScore = s.Score
		}
		if s.Start.Equal(at(t, "11:00")) {
			elevenScore = s.Score
		}
	}
	require.NotZero(t, nineScore)
	require.NotZero(t, elevenScore)
	assert.Greater(t, nineScore, elevenScore)

	// A slot with room on both sides beats both edge-flush slots.
	var midScore float64
	for _, s := range res.Slots {
		if s.Start.Equal(at(t, "13:00")) {
			midScore = s.Score
		}
	}
	require.NotZero(t, midScore)
	assert.Greater(t, midScore, nineScore)
}

func TestResolveOrderingAndTruncation(t *testing.T) {
	cal := &fakeCalendarService{
		providers: []models.CalendarProvider{models.ProviderGoogle},
		busy: map[models.CalendarProvider][]models.BusyInterval{
			models.ProviderGoogle: {{Start: at(t, "12:00"), End: at(t, "12:30")}},
		},
	}
	r := NewDefaultResolver(cal, zap.NewNop())

	res, err := r.Resolve(context.Background(), "u1", SlotRequest{Date: day(t), MaxResults: 4})
	require.NoError(t, err)
	require.Len(t, res.Slots, 4)

	for i := 1; i < len(res.Slots); i++ {
		prev, cur := res.Slots[i-1], res.Slots[i]
		if prev.Score == cur.Score {
			assert.True(t, prev.Start.Before(cur.Start))
		} else {
			assert.Greater(t, prev.Score, cur.Score)
		}
	}
}

func TestResolveDeterministic(t *testing.T) {
	cal := &fakeCalendarService{
		providers: []models.CalendarProvider{models.ProviderGoogle},
		busy: map[models.CalendarProvider][]models.BusyInterval{
			models.ProviderGoogle: {
				{Start: at(t, "09:30"), End: at(t, "10:15")},
				{Start: at(t, "15:00"), End: at(t, "16:00")},
			},
		},
	}
	r := NewDefaultResolver(cal, zap.NewNop())

	first, err := r.Resolve(context.Background(), "u1", SlotRequest{Date: day(t)})
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), "u1", SlotRequest{Date: day(t)})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMergeIntervalsCoalesces(t *testing.T) {
	in := []models.BusyInterval{
		{Start: at(t, "13:00"), End: at(t, "14:00")},
		{Start: at(t, "09:00"), End: at(t, "10:00")},
		{Start: at(t, "09:30"), End: at(t, "10:30")},
		{Start: at(t, "10:30"), End: at(t, "11:00")},
	}
	merged := MergeIntervals(in)

	require.Len(t, merged, 2)
	assert.Equal(t, at(t, "09:00"), merged[0].Start)
	assert.Equal(t, at(t, "11:00"), merged[0].End)
	assert.Equal(t, at(t, "13:00"), merged[1].Start)
	assert.Equal(t, at(t, "14:00"), merged[1].End)
}

func TestMergeIntervalsEmpty(t *testing.T) {
	assert.Nil(t, MergeIntervals(nil))
}
