package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"nutritrack/internal/session"
)

const (
	sessionKey      = "session"
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
)

// RequestID tags every request with an id, reusing the caller's when given.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

// RequireSession rejects requests without a valid bearer token.
func (h *Handler) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		s, err := h.App.Restore(c.Request.Context(), token)
		if err != nil {
			h.logger(c).WithError(err).Debug("rejected token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

// OptionalSession attaches the session when a valid token is present and
// carries on without one otherwise.
func (h *Handler) OptionalSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if s, err := h.App.Restore(c.Request.Context(), token); err == nil {
				c.Set(sessionKey, s)
			}
		}
		c.Next()
	}
}

// RequireProfile rejects signed-in users whose profile is not complete yet.
// It runs after RequireSession.
func (h *Handler) RequireProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := currentSession(c)
		if s == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		ctx, cancel := h.requestContext(c)
		defer cancel()
		ok, err := h.App.HasProfile(ctx, s.Email)
		if err != nil {
			h.fail(c, err)
			c.Abort()
			return
		}
		if !ok {
			h.fail(c, session.ErrProfileRequired)
			c.Abort()
			return
		}
		c.Next()
	}
}

func currentSession(c *gin.Context) *session.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	s, _ := v.(*session.Session)
	return s
}
