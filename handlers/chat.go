package handlers

import (
	"net/http"

	"convene/models"
	"convene/services/scheduler"
	"convene/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ChatHandler exposes the scheduling conversation over HTTP.
type ChatHandler struct {
	Orchestrator *scheduler.Orchestrator
}

func NewChatHandler(orc *scheduler.Orchestrator) *ChatHandler {
	return &ChatHandler{Orchestrator: orc}
}

// HandleChatTurn processes one chat turn for the authenticated user.
func (h *ChatHandler) HandleChatTurn(c *gin.Context) {
	logger := utils.GetLogger()

	userID := c.GetString("userID")
	if userID == "" {
		utils.JSONError(c, http.StatusUnauthorized, "Unauthorized", "missing user identity")
		return
	}

	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid chat request", err.Error())
		return
	}

	reply, err := h.Orchestrator.ProcessTurn(c.Request.Context(), userID, req.Text, req.Timezone)
	if err != nil {
		logger.Error("chat turn failed", zap.String("userID", userID), zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Chat turn failed", "An unexpected error occurred. Please try again later.")
		return
	}
	c.JSON(http.StatusOK, reply)
}
