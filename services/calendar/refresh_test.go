package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"convene/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// memoryCredentialStore keeps one credential per user/provider and counts
// writes.
type memoryCredentialStore struct {
	creds   map[string]models.CalendarCredential
	saves   int
	loadErr error
}

func credKey(userID string, provider models.CalendarProvider) string {
	return userID + "/" + string(provider)
}

func (m *memoryCredentialStore) Credential(userID string, provider models.CalendarProvider) (*models.CalendarCredential, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	c, ok := m.creds[credKey(userID, provider)]
	if !ok {
		return nil, nil
	}
	cp := c
	return &cp, nil
}

func (m *memoryCredentialStore) SaveCredential(userID string, cred models.CalendarCredential) error {
	m.saves++
	m.creds[credKey(userID, cred.Provider)] = cred
	return nil
}

func (m *memoryCredentialStore) ConnectedProviders(userID string) ([]models.CalendarProvider, error) {
	var out []models.CalendarProvider
	for _, p := range models.KnownProviders {
		if _, ok := m.creds[credKey(userID, p)]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func newStoreWith(cred models.CalendarCredential) *memoryCredentialStore {
	return &memoryCredentialStore{
		creds: map[string]models.CalendarCredential{
			credKey("u1", cred.Provider): cred,
		},
	}
}

func googleCred() models.CalendarCredential {
	return models.CalendarCredential{
		Provider:     models.ProviderGoogle,
		AccessToken:  "old-access",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(-time.Hour),
	}
}

func TestDoRefreshesAndRetriesOnce(t *testing.T) {
	store := newStoreWith(googleCred())
	exchanges := 0
	mgr := NewRefreshManager(store, zap.NewNop()).WithExchange(
		func(ctx context.Context, provider models.CalendarProvider, refreshToken string) (*oauth2.Token, error) {
			exchanges++
			assert.Equal(t, "refresh-1", refreshToken)
			return &oauth2.Token{AccessToken: "new-access", Expiry: time.Now().Add(time.Hour)}, nil
		})

	var seen []string
	err := mgr.Do(context.Background(), "u1", models.ProviderGoogle, func(cred *models.CalendarCredential) error {
		seen = append(seen, cred.AccessToken)
		if cred.AccessToken == "old-access" {
			return ErrAuthExpired
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"old-access", "new-access"}, seen)
	assert.Equal(t, 1, exchanges)
	assert.Equal(t, 1, store.saves)

	// Empty refresh token in the response keeps the stored one.
	persisted, err := store.Credential("u1", models.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "new-access", persisted.AccessToken)
	assert.Equal(t, "refresh-1", persisted.RefreshToken)
}

func TestDoSkipsRefreshOnSuccess(t *testing.T) {
	store := newStoreWith(googleCred())
	mgr := NewRefreshManager(store, zap.NewNop()).WithExchange(
		func(ctx context.Context, provider models.CalendarProvider, refreshToken string) (*oauth2.Token, error) {
			t.Fatal("exchange must not be called")
			return nil, nil
		})

	err := mgr.Do(context.Background(), "u1", models.ProviderGoogle, func(cred *models.CalendarCredential) error {
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, store.saves)
}

func TestDoSurfacesReconnectWhenRetryExpiresAgain(t *testing.T) {
	store := newStoreWith(googleCred())
	mgr := NewRefreshManager(store, zap.NewNop()).WithExchange(
		func(ctx context.Context, provider models.CalendarProvider, refreshToken string) (*oauth2.Token, error) {
			return &oauth2.Token{AccessToken: "new-access"}, nil
		})

	err := mgr.Do(context.Background(), "u1", models.ProviderGoogle, func(cred *models.CalendarCredential) error {
		return ErrAuthExpired
	})
	assert.ErrorIs(t, err, ErrReconnectRequired)
}

func TestDoSurfacesReconnectWhenExchangeFails(t *testing.T) {
	store := newStoreWith(googleCred())
	mgr := NewRefreshManager(store, zap.NewNop()).WithExchange(
		func(ctx context.Context, provider models.CalendarProvider, refreshToken string) (*oauth2.Token, error) {
			return nil, errors.New("invalid_grant")
		})

	err := mgr.Do(context.Background(), "u1", models.ProviderGoogle, func(cred *models.CalendarCredential) error {
		return ErrAuthExpired
	})
	assert.ErrorIs(t, err, ErrReconnectRequired)
	assert.Zero(t, store.saves)
}

func TestDoWithoutRefreshTokenRequiresReconnect(t *testing.T) {
	cred := googleCred()
	cred.RefreshToken = ""
	store := newStoreWith(cred)
	mgr := NewRefreshManager(store, zap.NewNop())

	err := mgr.Do(context.Background(), "u1", models.ProviderGoogle, func(cred *models.CalendarCredential) error {
		return ErrAuthExpired
	})
	assert.ErrorIs(t, err, ErrReconnectRequired)
}

func TestDoStoreFailureIsNotTreatedAsDisconnected(t *testing.T) {
	storeDown := errors.New("connection reset")
	store := &memoryCredentialStore{loadErr: storeDown}
	mgr := NewRefreshManager(store, zap.NewNop())

	err := mgr.Do(context.Background(), "u1", models.ProviderGoogle, func(cred *models.CalendarCredential) error {
		t.Fatal("call must not run without a credential")
		return nil
	})
	assert.ErrorIs(t, err, storeDown)
	assert.NotErrorIs(t, err, ErrNotConnected)
}

func TestDoNotConnected(t *testing.T) {
	store := &memoryCredentialStore{creds: map[string]models.CalendarCredential{}}
	mgr := NewRefreshManager(store, zap.NewNop())

	err := mgr.Do(context.Background(), "u1", models.ProviderOutlook, func(cred *models.CalendarCredential) error {
		return nil
	})
	assert.ErrorIs(t, err, ErrNotConnected)

	// Non-auth errors pass through untouched.
	store.creds[credKey("u1", models.ProviderOutlook)] = models.CalendarCredential{Provider: models.ProviderOutlook}
	boom := errors.New("boom")
	err = mgr.Do(context.Background(), "u1", models.ProviderOutlook, func(cred *models.CalendarCredential) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}
