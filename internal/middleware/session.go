package middleware

import (
	"context"
	"errors"
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"bank_system/internal/domain"  // Domain errors
	"bank_system/internal/session" // Session tokens

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// Context keys set by SessionAuthMiddleware
const (
	UserIDKey       = "userID"
	SessionTokenKey = "sessionToken"
)

// SessionCookie is the name of the http-only cookie holding the session token
const SessionCookie = "session"

// SessionResolver turns a session token into its claims
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*session.Claims, error)
}

// SessionAuthMiddleware validates the session token and stores the user in the request context
func SessionAuthMiddleware(sessions SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := SessionToken(c) // Cookie first, then Authorization header
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		claims, err := sessions.Resolve(c.Request.Context(), token)
		if errors.Is(err, domain.ErrSessionInvalid) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
			return
		}
		if err != nil {
			// Registry unreachable
			logrus.WithFields(logrus.Fields{"path": c.FullPath(), "error": err.Error()}).Error("Session lookup failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		c.Set(UserIDKey, claims.UserID) // Store userID in context
		c.Set(SessionTokenKey, token)
		c.Next() // Proceed to the next handler
	}
}

// SessionToken reads the token from the session cookie or a Bearer header
func SessionToken(c *gin.Context) string {
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
		return cookie
	}
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// UserID returns the authenticated user set by SessionAuthMiddleware
func UserID(c *gin.Context) (uint, bool) {
	v, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
