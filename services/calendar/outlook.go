package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"convene/models"
)

// Microsoft Graph endpoints.
// See: https://learn.microsoft.com/en-us/graph/api/calendar-list-calendarview
const (
	graphCalendarViewURL = "https://graph.microsoft.com/v1.0/me/calendarView"
	graphEventsURL       = "https://graph.microsoft.com/v1.0/me/events"
)

// graphTimeLayout is Graph's fractional-second local datetime format.
const graphTimeLayout = "2006-01-02T15:04:05.9999999"

// OutlookAdapter talks to Microsoft Graph for the account's default calendar.
type OutlookAdapter struct {
	httpClient *http.Client
}

// OutlookOption configures an OutlookAdapter.
type OutlookOption func(*OutlookAdapter)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(client *http.Client) OutlookOption {
	return func(a *OutlookAdapter) {
		a.httpClient = client
	}
}

func NewOutlookAdapter(opts ...OutlookOption) *OutlookAdapter {
	a := &OutlookAdapter{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *OutlookAdapter) Provider() models.CalendarProvider {
	return models.ProviderOutlook
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

type graphEvent struct {
	ID      string        `json:"id,omitempty"`
	Subject string        `json:"subject"`
	Body    *graphBody    `json:"body,omitempty"`
	Start   graphDateTime `json:"start"`
	End     graphDateTime `json:"end"`
	ShowAs  string        `json:"showAs,omitempty"`
	WebLink string        `json:"webLink,omitempty"`

	Attendees []graphAttendee `json:"attendees,omitempty"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphAttendee struct {
	EmailAddress graphEmailAddress `json:"emailAddress"`
	Type         string            `json:"type"`
}

type graphEmailAddress struct {
	Address string `json:"address"`
}

func (a *OutlookAdapter) ListBusy(ctx context.Context, cred *models.CalendarCredential, from, to time.Time) ([]models.BusyInterval, error) {
	q := url.Values{}
	q.Set("startDateTime", from.UTC().Format(time.RFC3339))
	q.Set("endDateTime", to.UTC().Format(time.RFC3339))
	q.Set("$select", "start,end,showAs")
	q.Set("$top", "100")

	var busy []models.BusyInterval
	// Graph pages the view; each response may carry an @odata.nextLink.
	next := graphCalendarViewURL + "?" + q.Encode()
	for next != "" {
		events, nextLink, err := a.calendarViewPage(ctx, cred, next)
		if err != nil {
			return nil, err
		}
		for _, ev := range events {
			if ev.ShowAs == "free" {
				continue
			}
			start, err1 := parseGraphTime(ev.Start.DateTime)
			end, err2 := parseGraphTime(ev.End.DateTime)
			if err1 != nil || err2 != nil {
				continue
			}
			if iv, ok := models.NewBusyInterval(start, end); ok {
				busy = append(busy, iv)
			}
		}
		next = nextLink
	}
	return busy, nil
}

// calendarViewPage fetches one page of the calendar view and returns the
// events plus the link to the next page, if any.
func (a *OutlookAdapter) calendarViewPage(ctx context.Context, cred *models.CalendarCredential, pageURL string) ([]graphEvent, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build calendarView request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("calendarView request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := graphStatusError(resp); err != nil {
		return nil, "", err
	}

	var payload struct {
		Value    []graphEvent `json:"value"`
		NextLink string       `json:"@odata.nextLink"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, "", fmt.Errorf("failed to decode calendarView response: %w", err)
	}
	return payload.Value, payload.NextLink, nil
}

func (a *OutlookAdapter) CreateEvent(ctx context.Context, cred *models.CalendarCredential, input models.EventInput) (*models.CalendarEvent, error) {
	ev := graphEvent{
		Subject: input.Title,
		Start:   graphDateTime{DateTime: input.Start.UTC().Format(graphTimeLayout), TimeZone: "UTC"},
		End:     graphDateTime{DateTime: input.End.UTC().Format(graphTimeLayout), TimeZone: "UTC"},
	}
	if input.Description != "" {
		ev.Body = &graphBody{ContentType: "text", Content: input.Description}
	}
	for _, email := range input.Attendees {
		ev.Attendees = append(ev.Attendees, graphAttendee{
			EmailAddress: graphEmailAddress{Address: email},
			Type:         "required",
		})
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, graphEventsURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build event request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("event create request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := graphStatusError(resp); err != nil {
		return nil, err
	}

	var created graphEvent
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("failed to decode created event: %w", err)
	}

	return &models.CalendarEvent{
		ID:        created.ID,
		Provider:  models.ProviderOutlook,
		Title:     input.Title,
		Start:     input.Start,
		End:       input.End,
		Attendees: input.Attendees,
		HTMLLink:  created.WebLink,
	}, nil
}

// graphStatusError maps a 401 onto the auth-expired sentinel and turns other
// non-2xx responses into errors carrying the Graph error body.
func graphStatusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrAuthExpired
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return fmt.Errorf("graph API returned %d: %s", resp.StatusCode, string(body))
}

func parseGraphTime(s string) (time.Time, error) {
	if t, err := time.Parse(graphTimeLayout, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.RFC3339, s)
}
