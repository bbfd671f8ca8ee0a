package api

import (
	"context"
	"net/http" // HTTP status codes
	"strconv"  // String conversion

	"bank_system/internal/domain"     // Importing domain models
	"bank_system/internal/middleware" // Request context helpers
	"bank_system/internal/repository" // Pagination
	"bank_system/internal/service"    // Ledger service

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Decimal amounts
)

// LedgerRequest is the body of the deposit and withdraw endpoints
type LedgerRequest struct {
	AccountID   uint            `json:"accountId" binding:"required"`  // Target account
	Amount      decimal.Decimal `json:"amount"`                        // Positive, at most 2 decimals
	Description string          `json:"description" binding:"max=255"` // Optional free text
}

type ledgerOperation func(ctx context.Context, accountID uint, amount decimal.Decimal, description string) (decimal.Decimal, error)

// MyAccountsHandler lists the accounts of the authenticated user
func MyAccountsHandler(ledger *service.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c) // Get userID from context
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		accounts, err := ledger.AccountsFor(c.Request.Context(), userID) // Cached per user
		if err != nil {
			respondError(c, err)
			return
		}
		if accounts == nil {
			accounts = []domain.Account{} // Encode as [] rather than null
		}
		c.JSON(http.StatusOK, accounts)
	}
}

// DepositHandler adds money to one of the user's accounts
func DepositHandler(ledger *service.Ledger) gin.HandlerFunc {
	return ledgerHandler(ledger, ledger.Deposit)
}

// WithdrawHandler takes money from one of the user's accounts
func WithdrawHandler(ledger *service.Ledger) gin.HandlerFunc {
	return ledgerHandler(ledger, ledger.Withdraw)
}

func ledgerHandler(ledger *service.Ledger, apply ledgerOperation) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c) // Get userID from context
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		var req LedgerRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
			return
		}
		// Validate before touching the account so bad input is always a 400
		if err := domain.ValidateAmount(req.Amount); err != nil {
			respondError(c, err)
			return
		}
		ctx := c.Request.Context()
		if _, err := ledger.Authorize(ctx, userID, req.AccountID); err != nil {
			respondError(c, err) // 404 or 403
			return
		}
		balance, err := apply(ctx, req.AccountID, req.Amount, req.Description)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"NewBalance": balance}) // Return new balance
	}
}

// TransactionHistoryHandler lists the transactions of the account loaded by
// AccountOwnerMiddleware, newest first. Without page or page_size the whole
// history is returned. Paging details are reported in headers.
func TransactionHistoryHandler(ledger *service.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		account, ok := middleware.Account(c)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
			return
		}
		result, err := ledger.History(c.Request.Context(), account.ID, pageFromQuery(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.Header("X-Total-Count", strconv.FormatInt(result.Total, 10)) // Entries across all pages
		c.Header("X-Total-Pages", strconv.Itoa(result.TotalPages))
		if result.PageSize > 0 {
			c.Header("X-Page", strconv.Itoa(result.Page))
			c.Header("X-Page-Size", strconv.Itoa(result.PageSize))
		}
		if result.Cached {
			c.Header("X-Cache", "HIT")
		} else {
			c.Header("X-Cache", "MISS")
		}
		transactions := result.Transactions
		if transactions == nil {
			transactions = []domain.Transaction{} // Encode as [] rather than null
		}
		c.JSON(http.StatusOK, transactions)
	}
}

// pageFromQuery reads page and page_size. Invalid values fall back to the defaults.
func pageFromQuery(c *gin.Context) repository.Page {
	p, ps := c.Query("page"), c.Query("page_size")
	if p == "" && ps == "" {
		return repository.Page{}
	}
	page, _ := strconv.Atoi(p)      // Zero when missing or malformed
	pageSize, _ := strconv.Atoi(ps) // Zero when missing or malformed
	return repository.NewPage(page, pageSize)
}
