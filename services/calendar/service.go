package calendar

import (
	"context"
	"fmt"
	"time"

	"convene/models"
)

// DefaultCalendarService dispatches to the registered adapters per user,
// with credential refresh applied around every provider call.
type DefaultCalendarService struct {
	Adapters map[models.CalendarProvider]Adapter
	Store    CredentialStore
	Auth     *RefreshManager

	// Order is the preference when more than one provider is connected and
	// the user did not name one. The default is google before outlook; it is
	// configuration, not inference (see PROVIDER_ORDER).
	Order []models.CalendarProvider
}

func NewDefaultCalendarService(store CredentialStore, auth *RefreshManager, order []models.CalendarProvider, adapters ...Adapter) *DefaultCalendarService {
	byProvider := make(map[models.CalendarProvider]Adapter, len(adapters))
	for _, a := range adapters {
		byProvider[a.Provider()] = a
	}
	if len(order) == 0 {
		order = models.KnownProviders
	}
	return &DefaultCalendarService{
		Adapters: byProvider,
		Store:    store,
		Auth:     auth,
		Order:    order,
	}
}

func (s *DefaultCalendarService) ConnectedProviders(userID string) ([]models.CalendarProvider, error) {
	return s.Store.ConnectedProviders(userID)
}

// PickProvider applies the provider-choice policy: exactly one connected
// wins outright; otherwise an explicit request wins, then the configured
// order, over the connected set.
func (s *DefaultCalendarService) PickProvider(userID string, requested models.CalendarProvider) (models.CalendarProvider, error) {
	connected, err := s.Store.ConnectedProviders(userID)
	if err != nil {
		return "", fmt.Errorf("failed to list connected providers: %w", err)
	}
	if len(connected) == 0 {
		return "", ErrNotConnected
	}
	if len(connected) == 1 {
		return connected[0], nil
	}
	if requested != "" {
		for _, p := range connected {
			if p == requested {
				return p, nil
			}
		}
	}
	for _, p := range s.Order {
		for _, c := range connected {
			if p == c {
				return p, nil
			}
		}
	}
	return connected[0], nil
}

func (s *DefaultCalendarService) adapter(provider models.CalendarProvider) (Adapter, error) {
	a, ok := s.Adapters[provider]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for provider %s", provider)
	}
	return a, nil
}

func (s *DefaultCalendarService) ListBusy(ctx context.Context, userID string, provider models.CalendarProvider, from, to time.Time) ([]models.BusyInterval, error) {
	a, err := s.adapter(provider)
	if err != nil {
		return nil, err
	}
	var busy []models.BusyInterval
	err = s.Auth.Do(ctx, userID, provider, func(cred *models.CalendarCredential) error {
		var callErr error
		busy, callErr = a.ListBusy(ctx, cred, from, to)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return busy, nil
}

func (s *DefaultCalendarService) CreateEvent(ctx context.Context, userID string, provider models.CalendarProvider, input models.EventInput) (*models.CalendarEvent, error) {
	a, err := s.adapter(provider)
	if err != nil {
		return nil, err
	}
	var event *models.CalendarEvent
	err = s.Auth.Do(ctx, userID, provider, func(cred *models.CalendarCredential) error {
		var callErr error
		event, callErr = a.CreateEvent(ctx, cred, input)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}
