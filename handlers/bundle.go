package handlers

import (
	"github.com/gin-gonic/gin"
)

// HandlerBundle aggregates all handler functions so routes can be
// registered from a single value.
type HandlerBundle struct {
	// Account endpoints
	RegisterUserHandler     gin.HandlerFunc
	AuthenticateUserHandler gin.HandlerFunc

	// Chat endpoint
	ChatTurnHandler gin.HandlerFunc

	// Calendar connection endpoints
	CalendarConnectHandler     gin.HandlerFunc
	CalendarCallbackHandler    gin.HandlerFunc
	CalendarDisconnectHandler  gin.HandlerFunc
	CalendarConnectionsHandler gin.HandlerFunc
}

// NewHandlerBundle builds the bundle from the concrete handlers.
func NewHandlerBundle(auth *AuthHandler, chat *ChatHandler, conn *CalendarConnectHandler) *HandlerBundle {
	return &HandlerBundle{
		RegisterUserHandler:     auth.RegisterUserHandler,
		AuthenticateUserHandler: auth.AuthenticateUserHandler,

		ChatTurnHandler: chat.HandleChatTurn,

		CalendarConnectHandler:     conn.ConnectHandler,
		CalendarCallbackHandler:    conn.CallbackHandler,
		CalendarDisconnectHandler:  conn.DisconnectHandler,
		CalendarConnectionsHandler: conn.ListConnectionsHandler,
	}
}
