package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"bank_system/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AccountKey is the context key AccountOwnerMiddleware stores the account under
const AccountKey = "account"

// AccountAuthorizer checks that a user may act on an account
type AccountAuthorizer interface {
	Authorize(ctx context.Context, userID, accountID uint) (*domain.Account, error)
}

// AccountOwnerMiddleware loads the account named by the :id route parameter and
// only lets its owner through. Must run after SessionAuthMiddleware.
func AccountOwnerMiddleware(accounts AccountAuthorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		accountID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid account id"})
			return
		}
		account, err := accounts.Authorize(c.Request.Context(), userID, uint(accountID))
		switch {
		case err == nil:
			c.Set(AccountKey, account)
			c.Next()
		case errors.Is(err, domain.ErrAccountNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		case errors.Is(err, domain.ErrForbidden):
			logrus.WithFields(logrus.Fields{
				"user_id":    userID,    // Requesting user
				"account_id": accountID, // Account they asked for
			}).Warn("Account access denied")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied - not your account"})
		default:
			logrus.WithFields(logrus.Fields{"account_id": accountID, "error": err.Error()}).Error("Account lookup failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
	}
}

// Account returns the account loaded by AccountOwnerMiddleware
func Account(c *gin.Context) (*domain.Account, bool) {
	v, exists := c.Get(AccountKey)
	if !exists {
		return nil, false
	}
	account, ok := v.(*domain.Account)
	return account, ok
}
