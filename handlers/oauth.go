package handlers

import (
	"net/http"
	"time"

	userRepo "convene/database/repository/user"
	"convene/models"
	"convene/services/calendar"
	"convene/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// stateTTL bounds how long an OAuth consent round-trip may take.
const stateTTL = 10 * time.Minute

// CalendarConnectHandler runs the provider OAuth consent flow and stores the
// resulting credential on the user record.
type CalendarConnectHandler struct {
	Repo userRepo.UserRepository
}

func NewCalendarConnectHandler(repo userRepo.UserRepository) *CalendarConnectHandler {
	return &CalendarConnectHandler{Repo: repo}
}

func providerParam(c *gin.Context) (models.CalendarProvider, bool) {
	p := models.ParseProvider(c.Param("provider"))
	if p == "" {
		utils.JSONError(c, http.StatusBadRequest, "Unknown calendar provider", c.Param("provider"))
		return "", false
	}
	return p, true
}

// ConnectHandler returns the consent URL for the requested provider. The
// OAuth state is a short-lived JWT carrying the user identity, so the
// callback can be served without a session.
func (h *CalendarConnectHandler) ConnectHandler(c *gin.Context) {
	provider, ok := providerParam(c)
	if !ok {
		return
	}
	userID := c.GetString("userID")
	if userID == "" {
		utils.JSONError(c, http.StatusUnauthorized, "Unauthorized", "missing user identity")
		return
	}

	cfg, err := calendar.OAuthConfig(provider)
	if err != nil {
		utils.JSONError(c, http.StatusServiceUnavailable, "Provider not configured", err.Error())
		return
	}

	state, err := utils.GenerateToken(userID, "", stateTTL)
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "Failed to start OAuth flow", err.Error())
		return
	}

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	c.JSON(http.StatusOK, gin.H{"authUrl": authURL})
}

// CallbackHandler exchanges the authorization code and persists the token
// pair as the user's credential for the provider.
func (h *CalendarConnectHandler) CallbackHandler(c *gin.Context) {
	logger := utils.GetLogger()

	provider, ok := providerParam(c)
	if !ok {
		return
	}

	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		utils.JSONError(c, http.StatusBadRequest, "Missing state or code", "")
		return
	}

	userID, err := utils.ExtractIDFromToken(state)
	if err != nil {
		utils.JSONError(c, http.StatusUnauthorized, "Invalid or expired OAuth state", "")
		return
	}

	cfg, err := calendar.OAuthConfig(provider)
	if err != nil {
		utils.JSONError(c, http.StatusServiceUnavailable, "Provider not configured", err.Error())
		return
	}

	token, err := cfg.Exchange(c.Request.Context(), code)
	if err != nil {
		logger.Error("OAuth code exchange failed",
			zap.String("provider", string(provider)), zap.Error(err))
		utils.JSONError(c, http.StatusBadGateway, "Provider token exchange failed", "")
		return
	}

	cred := models.CalendarCredential{
		Provider:     provider,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}
	if err := h.Repo.SaveCredential(userID, cred); err != nil {
		logger.Error("failed to persist calendar credential",
			zap.String("userID", userID), zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Failed to store credential", "")
		return
	}

	logger.Info("calendar connected",
		zap.String("userID", userID),
		zap.String("provider", string(provider)))
	c.JSON(http.StatusOK, gin.H{"connected": provider})
}

// DisconnectHandler removes the stored credential for the provider.
func (h *CalendarConnectHandler) DisconnectHandler(c *gin.Context) {
	provider, ok := providerParam(c)
	if !ok {
		return
	}
	userID := c.GetString("userID")
	if userID == "" {
		utils.JSONError(c, http.StatusUnauthorized, "Unauthorized", "missing user identity")
		return
	}

	if err := h.Repo.DeleteCredential(userID, provider); err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "Failed to disconnect calendar", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"disconnected": provider})
}

// ListConnectionsHandler reports which providers the user has connected.
func (h *CalendarConnectHandler) ListConnectionsHandler(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.JSONError(c, http.StatusUnauthorized, "Unauthorized", "missing user identity")
		return
	}

	providers, err := h.Repo.ConnectedProviders(userID)
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "Failed to list connections", err.Error())
		return
	}
	if providers == nil {
		providers = []models.CalendarProvider{}
	}
	c.JSON(http.StatusOK, gin.H{"connected": providers})
}
