package api

import (
	"context"
	"net/http" // HTTP status codes
	"time"

	"bank_system/internal/domain"     // Domain errors
	"bank_system/internal/middleware" // Session cookie helpers
	"bank_system/internal/service"    // Identity service

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// RegisterRequest is the body of POST /auth/register
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`           // Login email
	Password string `json:"password" binding:"required,min=8,max=72"` // Plain password, bcrypt limit
	FullName string `json:"fullName" binding:"required"`              // Display name
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`    // Email must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// LoginResponse identifies the logged in user
type LoginResponse struct {
	UserID   uint   `json:"userId"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

// Sessions issues and revokes login sessions
type Sessions interface {
	Issue(ctx context.Context, userID uint) (string, time.Time, error)
	Revoke(ctx context.Context, token string) error
}

// CookieConfig controls the session cookie
type CookieConfig struct {
	Secure bool // Only send over HTTPS
}

func (cc CookieConfig) set(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)                                            // Not sent on cross-site POSTs
	c.SetCookie(middleware.SessionCookie, token, maxAge, "/", "", cc.Secure, true) // HTTP-only
}

// RegisterHandler creates a user with an empty account
func RegisterHandler(identity *service.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, domain.ErrInvalidSignup)
			return
		}
		reg, err := identity.Register(c.Request.Context(), req.Email, req.Password, req.FullName)
		if err != nil {
			respondError(c, err) // Taken email or invalid signup
			return
		}
		c.JSON(http.StatusCreated, reg)
	}
}

// LoginHandler checks credentials and starts a session carried in a cookie
func LoginHandler(identity *service.Identity, sessions Sessions, cookie CookieConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		user, err := identity.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondError(c, err) // Same answer for unknown email and wrong password
			return
		}
		token, expiresAt, err := sessions.Issue(c.Request.Context(), user.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		cookie.set(c, token, int(time.Until(expiresAt).Seconds())) // Cookie expires with the session
		c.JSON(http.StatusOK, LoginResponse{UserID: user.ID, Email: user.Email, FullName: user.FullName})
	}
}

// LogoutHandler revokes the current session, if any, and clears the cookie
func LogoutHandler(sessions Sessions, cookie CookieConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := middleware.SessionToken(c); token != "" {
			if err := sessions.Revoke(c.Request.Context(), token); err != nil {
				logrus.WithField("error", err.Error()).Error("Logout failed")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Logout failed"})
				return
			}
		}
		cookie.set(c, "", -1) // Clear the cookie
		c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
	}
}
