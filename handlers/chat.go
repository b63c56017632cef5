package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/resolvedesk/resolvedesk/services"
)

// ChatHandler proxies the support chat to the gemini-chat edge function.
// The server adds the caller identity so the function can load chat
// context without trusting the client.
type ChatHandler struct {
	functions *services.FunctionsClient
}

func NewChatHandler(functions *services.FunctionsClient) *ChatHandler {
	return &ChatHandler{functions: functions}
}

type chatRequest struct {
	Message string                 `json:"message" binding:"required"`
	History []services.ChatMessage `json:"chat_history"`
}

// Chat handles POST /chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	reply, err := h.functions.GeminiChat(req.Message, req.History, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Chat service unavailable", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}
