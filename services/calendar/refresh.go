package calendar

import (
	"context"
	"errors"
	"fmt"

	"convene/models"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// ExchangeFunc swaps a refresh token for a fresh token pair.
type ExchangeFunc func(ctx context.Context, provider models.CalendarProvider, refreshToken string) (*oauth2.Token, error)

// RefreshManager wraps adapter calls with expired-credential recovery: on
// ErrAuthExpired it renews the access token once, persists the renewed
// credential, and retries the call once. A second auth failure surfaces as
// ErrReconnectRequired so the UI can offer a reconnect instead of a retry.
type RefreshManager struct {
	store    CredentialStore
	exchange ExchangeFunc
	logger   *zap.Logger
}

func NewRefreshManager(store CredentialStore, logger *zap.Logger) *RefreshManager {
	return &RefreshManager{
		store:    store,
		exchange: exchangeRefreshToken,
		logger:   logger,
	}
}

// WithExchange overrides the token exchange (for testing).
func (m *RefreshManager) WithExchange(fn ExchangeFunc) *RefreshManager {
	m.exchange = fn
	return m
}

// Do loads the user's credential for the provider and runs call with it,
// applying the refresh-and-retry-once policy.
func (m *RefreshManager) Do(ctx context.Context, userID string, provider models.CalendarProvider, call func(cred *models.CalendarCredential) error) error {
	cred, err := m.store.Credential(userID, provider)
	if err != nil {
		return fmt.Errorf("failed to load %s credential: %w", provider, err)
	}
	if cred == nil {
		return ErrNotConnected
	}

	err = call(cred)
	if !errors.Is(err, ErrAuthExpired) {
		return err
	}

	renewed, rerr := m.refresh(ctx, userID, *cred)
	if rerr != nil {
		m.logger.Warn("credential refresh failed",
			zap.String("userID", userID),
			zap.String("provider", string(provider)),
			zap.Error(rerr))
		return ErrReconnectRequired
	}

	if err := call(renewed); err != nil {
		if errors.Is(err, ErrAuthExpired) {
			return ErrReconnectRequired
		}
		return err
	}
	return nil
}

// refresh exchanges the stored refresh token and persists the result before
// the retry. Persistence is last-write-wins across concurrent refreshes.
func (m *RefreshManager) refresh(ctx context.Context, userID string, cred models.CalendarCredential) (*models.CalendarCredential, error) {
	if cred.RefreshToken == "" {
		return nil, fmt.Errorf("no refresh token stored")
	}

	tok, err := m.exchange(ctx, cred.Provider, cred.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	cred.AccessToken = tok.AccessToken
	cred.Expiry = tok.Expiry
	if tok.RefreshToken != "" {
		cred.RefreshToken = tok.RefreshToken
	}
	if err := m.store.SaveCredential(userID, cred); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed credential: %w", err)
	}

	m.logger.Info("refreshed calendar credential",
		zap.String("userID", userID),
		zap.String("provider", string(cred.Provider)))
	return &cred, nil
}

func exchangeRefreshToken(ctx context.Context, provider models.CalendarProvider, refreshToken string) (*oauth2.Token, error) {
	cfg, err := OAuthConfig(provider)
	if err != nil {
		return nil, err
	}
	ts := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	return ts.Token()
}
