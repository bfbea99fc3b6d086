package calendar

import (
	"context"
	"fmt"
	"time"

	"convene/models"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleAdapter talks to the Google Calendar v3 API for the account's
// primary calendar.
type GoogleAdapter struct{}

func NewGoogleAdapter() *GoogleAdapter {
	return &GoogleAdapter{}
}

func (a *GoogleAdapter) Provider() models.CalendarProvider {
	return models.ProviderGoogle
}

// service builds a calendar client bound to the stored access token. The
// token source is static on purpose: refresh is the refresh manager's job,
// not the adapter's.
func (a *GoogleAdapter) service(ctx context.Context, cred *models.CalendarCredential) (*gcal.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cred.AccessToken})
	svc, err := gcal.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return svc, nil
}

func (a *GoogleAdapter) ListBusy(ctx context.Context, cred *models.CalendarCredential, from, to time.Time) ([]models.BusyInterval, error) {
	svc, err := a.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	req := &gcal.FreeBusyRequest{
		TimeMin: from.Format(time.RFC3339),
		TimeMax: to.Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: "primary"}},
	}
	resp, err := svc.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, googleError("freebusy query failed", err)
	}

	cal, ok := resp.Calendars["primary"]
	if !ok {
		return nil, nil
	}
	var busy []models.BusyInterval
	for _, p := range cal.Busy {
		start, err1 := time.Parse(time.RFC3339, p.Start)
		end, err2 := time.Parse(time.RFC3339, p.End)
		if err1 != nil || err2 != nil {
			continue
		}
		if iv, ok := models.NewBusyInterval(start, end); ok {
			busy = append(busy, iv)
		}
	}
	return busy, nil
}

func (a *GoogleAdapter) CreateEvent(ctx context.Context, cred *models.CalendarCredential, input models.EventInput) (*models.CalendarEvent, error) {
	svc, err := a.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	event := &gcal.Event{
		Summary:     input.Title,
		Description: input.Description,
		Start:       &gcal.EventDateTime{DateTime: input.Start.Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: input.End.Format(time.RFC3339)},
	}
	for _, email := range input.Attendees {
		event.Attendees = append(event.Attendees, &gcal.EventAttendee{Email: email})
	}

	created, err := svc.Events.Insert("primary", event).Context(ctx).Do()
	if err != nil {
		return nil, googleError("event insert failed", err)
	}

	return &models.CalendarEvent{
		ID:        created.Id,
		Provider:  models.ProviderGoogle,
		Title:     input.Title,
		Start:     input.Start,
		End:       input.End,
		Attendees: input.Attendees,
		HTMLLink:  created.HtmlLink,
	}, nil
}

// googleError maps a 401 onto the auth-expired sentinel.
func googleError(msg string, err error) error {
	if apiErr, ok := err.(*googleapi.Error); ok && apiErr.Code == 401 {
		return ErrAuthExpired
	}
	return fmt.Errorf("%s: %w", msg, err)
}
