package calendar

import (
	"fmt"

	"convene/config"
	"convene/models"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
)

const graphCalendarScope = "https://graph.microsoft.com/Calendars.ReadWrite"

// OAuthConfig builds the oauth2 config for one provider from app config.
func OAuthConfig(provider models.CalendarProvider) (*oauth2.Config, error) {
	cfg := config.AppConfig
	switch provider {
	case models.ProviderGoogle:
		if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
			return nil, fmt.Errorf("google OAuth not configured")
		}
		return &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/calendar",
				"https://www.googleapis.com/auth/userinfo.email",
			},
			Endpoint: google.Endpoint,
		}, nil
	case models.ProviderOutlook:
		if cfg.OutlookClientID == "" || cfg.OutlookClientSecret == "" {
			return nil, fmt.Errorf("outlook OAuth not configured")
		}
		return &oauth2.Config{
			ClientID:     cfg.OutlookClientID,
			ClientSecret: cfg.OutlookClientSecret,
			RedirectURL:  cfg.OutlookRedirectURL,
			Scopes:       []string{"offline_access", graphCalendarScope},
			Endpoint:     microsoft.AzureADEndpoint(cfg.OutlookTenant),
		}, nil
	}
	return nil, fmt.Errorf("unsupported provider: %s", provider)
}
