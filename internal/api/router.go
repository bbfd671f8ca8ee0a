package api

import (
	"bank_system/internal/middleware"
	"bank_system/internal/service"
	"bank_system/internal/session"

	"github.com/gin-gonic/gin"
)

// Deps are the collaborators the HTTP API is built from
type Deps struct {
	Identity     *service.Identity
	Ledger       *service.Ledger
	Sessions     *session.Manager
	CookieSecure bool
	HealthChecks map[string]HealthCheck
}

// NewRouter wires every route onto a new gin engine
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Logger(), gin.Recovery())

	cookie := CookieConfig{Secure: d.CookieSecure}

	r.GET("/health", HealthHandler(d.HealthChecks))

	// Auth routes
	auth := r.Group("/auth")
	auth.POST("/register", RegisterHandler(d.Identity))
	auth.POST("/login", LoginHandler(d.Identity, d.Sessions, cookie))
	auth.POST("/logout", LogoutHandler(d.Sessions, cookie))

	// Account routes (protected by the session cookie)
	accounts := r.Group("/accounts")
	accounts.Use(middleware.SessionAuthMiddleware(d.Sessions))
	accounts.GET("/my-accounts", MyAccountsHandler(d.Ledger))
	accounts.POST("/deposit", DepositHandler(d.Ledger))
	accounts.POST("/withdraw", WithdrawHandler(d.Ledger))
	accounts.GET("/:id/transactions", middleware.AccountOwnerMiddleware(d.Ledger), TransactionHistoryHandler(d.Ledger))

	return r
}
