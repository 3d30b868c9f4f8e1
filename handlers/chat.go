package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-skywatch/chat"
	"go-skywatch/types"
)

// SendChatMessage answers an operator question. The response field is
// always present; upstream failure degrades to apology text inside the
// service.
func SendChatMessage(c *gin.Context, svc *chat.Service) {
	var req types.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, svc.ProcessMessage(c.Request.Context(), req))
}

// SummarizeMessages condenses a message list into a rolling memory note.
func SummarizeMessages(c *gin.Context, svc *chat.Service) {
	var req types.SummarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, svc.SummarizeMessages(c.Request.Context(), req.Messages))
}

// GetSystemMessages returns the retained notification ring buffer for
// late-joining pollers.
func GetSystemMessages(c *gin.Context, svc *chat.Service) {
	c.JSON(http.StatusOK, svc.SystemMessages())
}

// ClearConversation drops all turns except the system turn.
func ClearConversation(c *gin.Context, svc *chat.Service) {
	svc.ClearConversation()
	c.JSON(http.StatusOK, gin.H{"message": "Conversation history cleared"})
}

// SetCurrentObject focuses the conversation context on an object.
func SetCurrentObject(c *gin.Context, svc *chat.Service) {
	var obj types.ObjectData
	if err := c.ShouldBindJSON(&obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	svc.SetCurrentObject(&obj)
	c.JSON(http.StatusOK, gin.H{"message": "Current object context updated"})
}

// ClearCurrentObject removes the focused object from the context.
func ClearCurrentObject(c *gin.Context, svc *chat.Service) {
	svc.ClearCurrentObject()
	c.JSON(http.StatusOK, gin.H{"message": "Current object context cleared"})
}

// CreateRealtimeSession proxies a voice session bootstrap to the upstream
// realtime endpoint. There is no fallback here; failure propagates.
func CreateRealtimeSession(c *gin.Context, svc *chat.Service) {
	var req struct {
		Voice string `json:"voice"`
	}
	// An empty body defaults the voice selection.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := svc.CreateRealtimeSession(c.Request.Context(), req.Voice)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, session)
}
