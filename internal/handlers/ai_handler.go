package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AskRequest struct {
	Message string `json:"message" binding:"required"`
}

func (h *Handler) AskAI(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Message is required")
		return
	}

	// 1. The assistant is optional (GEMINI_API_KEY)
	if h.Assistant == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Assistant is not configured"})
		return
	}

	// 2. Run the agent as the caller
	reply, err := h.Assistant.Ask(c.Request.Context(), req.Message, actor(c))
	if err != nil {
		h.Log.Error("assistant failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Assistant request failed"})
		return
	}

	// 3. Return the Answer
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}
