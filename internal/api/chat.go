package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ChatFallback is sent when the assistant cannot answer.
const ChatFallback = "Sorry, I couldn't process your request. Please try again later."

// ChatGreeting opens every conversation.
const ChatGreeting = "Hello! I'm your AI nutrition assistant. How can I help you today?"

type chatRequest struct {
	Message string `json:"message"`
}

// Chat streams the assistant's reply as server-sent events: one "message"
// event per chunk and a final "done" event carrying the full reply.
func (h *Handler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	s := currentSession(c)
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.ScanTimeout)
	defer cancel()

	chat, err := h.App.Chat(ctx, s.Email)
	if err != nil {
		h.logger(c).WithError(err).Error("failed to start chat")
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	chunks := make(chan string)
	var reply string
	var sendErr error
	go func() {
		defer close(chunks)
		if chat == nil {
			sendErr = err
			return
		}
		reply, sendErr = chat.Send(ctx, message, func(chunk string) {
			select {
			case chunks <- chunk:
			case <-ctx.Done():
			}
		})
	}()

	streamed := false
	for chunk := range chunks {
		streamed = true
		c.SSEvent("message", chunk)
		c.Writer.Flush()
	}

	if sendErr != nil {
		h.logger(c).WithError(sendErr).Warn("chat reply failed")
		if !streamed {
			c.SSEvent("message", ChatFallback)
		}
		c.SSEvent("done", ChatFallback)
		c.Writer.Flush()
		return
	}
	c.SSEvent("done", reply)
	c.Writer.Flush()
}

// ResetChat starts the conversation over.
func (h *Handler) ResetChat(c *gin.Context) {
	h.App.ResetChat(currentSession(c).Email)
	c.JSON(http.StatusOK, gin.H{"message": ChatGreeting})
}
