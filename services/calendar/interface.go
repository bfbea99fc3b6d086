package calendar

import (
	"context"
	"errors"
	"time"

	"convene/models"
)

var (
	// ErrAuthExpired signals that the provider rejected the access token.
	// Adapters return it distinctly from other failures so the refresh
	// manager can renew and retry.
	ErrAuthExpired = errors.New("calendar: access token expired")

	// ErrReconnectRequired means a refresh was attempted and failed; the user
	// must re-run the OAuth consent flow.
	ErrReconnectRequired = errors.New("calendar: reconnect required")

	// ErrNotConnected means the user has no credential for the provider.
	ErrNotConnected = errors.New("calendar: provider not connected")
)

// Adapter translates one external calendar API into the common busy-interval
// and event representation. One implementation per backend.
type Adapter interface {
	Provider() models.CalendarProvider

	// ListBusy fetches busy intervals within [from, to). Malformed provider
	// ranges are discarded, not repaired.
	ListBusy(ctx context.Context, cred *models.CalendarCredential, from, to time.Time) ([]models.BusyInterval, error)

	// CreateEvent books an event on the account's primary calendar.
	CreateEvent(ctx context.Context, cred *models.CalendarCredential, input models.EventInput) (*models.CalendarEvent, error)
}

// CredentialStore is the slice of user persistence the calendar layer needs.
type CredentialStore interface {
	// Credential returns (nil, nil) when no credential is stored for the
	// provider; a non-nil error means the store itself failed.
	Credential(userID string, provider models.CalendarProvider) (*models.CalendarCredential, error)
	SaveCredential(userID string, cred models.CalendarCredential) error
	ConnectedProviders(userID string) ([]models.CalendarProvider, error)
}

// Service is the per-user entry point into the provider adapters, with
// credential refresh handled transparently.
type Service interface {
	ConnectedProviders(userID string) ([]models.CalendarProvider, error)
	PickProvider(userID string, requested models.CalendarProvider) (models.CalendarProvider, error)
	ListBusy(ctx context.Context, userID string, provider models.CalendarProvider, from, to time.Time) ([]models.BusyInterval, error)
	CreateEvent(ctx context.Context, userID string, provider models.CalendarProvider, input models.EventInput) (*models.CalendarEvent, error)
}
