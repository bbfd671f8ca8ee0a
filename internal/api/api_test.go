package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"bank_system/internal/cache"
	"bank_system/internal/domain"
	"bank_system/internal/memstore"
	"bank_system/internal/middleware"
	"bank_system/internal/repository"
	"bank_system/internal/service"
	"bank_system/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	decimal.MarshalJSONWithoutQuotes = true
	os.Exit(m.Run())
}

type testServer struct {
	router *gin.Engine
	store  *memstore.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memstore.New()
	router := NewRouter(Deps{
		Identity: service.NewIdentity(store, service.BcryptHasher{Cost: bcrypt.MinCost}),
		Ledger:   service.NewLedger(store, service.WithCache(cache.NewMemory(), time.Minute)),
		Sessions: session.NewManager("test-secret", time.Hour, session.NewMemoryRegistry()),
	})
	return &testServer{router: router, store: store}
}

func (s *testServer) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type registered struct {
	UserID    uint `json:"userId"`
	AccountID uint `json:"accountId"`
}

// signup registers and logs in, returning the session cookie
func (s *testServer) signup(t *testing.T, email string) (registered, *http.Cookie) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/auth/register", gin.H{"email": email, "password": "password123", "fullName": "Test User"}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var reg registered
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reg))

	w = s.do(t, http.MethodPost, "/auth/login", gin.H{"email": email, "password": "password123"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			assert.True(t, c.HttpOnly)
			return reg, c
		}
	}
	t.Fatal("login did not set a session cookie")
	return reg, nil
}

func newBalance(t *testing.T, w *httptest.ResponseRecorder) decimal.Decimal {
	t.Helper()
	var body struct {
		NewBalance decimal.Decimal `json:"NewBalance"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.NewBalance
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func TestRegister(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/auth/register", gin.H{"email": "jane@email.com", "password": "password123", "fullName": "Jane"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var reg registered
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reg))
	assert.NotZero(t, reg.UserID)
	assert.NotZero(t, reg.AccountID)

	w = s.do(t, http.MethodPost, "/auth/register", gin.H{"email": "JANE@email.com", "password": "password123", "fullName": "Jane"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email already registered", errorMessage(t, w))

	for _, body := range []gin.H{
		{"email": "not-an-email", "password": "password123", "fullName": "Jane"},
		{"email": "x@email.com", "password": "short", "fullName": "Jane"},
		{"email": "x@email.com", "password": "password123"},
	} {
		w = s.do(t, http.MethodPost, "/auth/register", body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	reg, _ := s.signup(t, "jane@email.com")

	w := s.do(t, http.MethodPost, "/auth/login", gin.H{"email": "jane@email.com", "password": "password123"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":`+jsonNumber(reg.UserID)+`,"email":"jane@email.com","fullName":"Test User"}`, w.Body.String())

	wrongPassword := s.do(t, http.MethodPost, "/auth/login", gin.H{"email": "jane@email.com", "password": "password000"}, nil)
	unknownEmail := s.do(t, http.MethodPost, "/auth/login", gin.H{"email": "ghost@email.com", "password": "password123"}, nil)
	assert.Equal(t, http.StatusBadRequest, wrongPassword.Code)
	assert.Equal(t, http.StatusBadRequest, unknownEmail.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
	assert.Empty(t, wrongPassword.Result().Cookies())
}

func jsonNumber(n uint) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestAccountsRequireSession(t *testing.T) {
	s := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/accounts/my-accounts"},
		{http.MethodPost, "/accounts/deposit"},
		{http.MethodPost, "/accounts/withdraw"},
		{http.MethodGet, "/accounts/1/transactions"},
	} {
		w := s.do(t, tc.method, tc.path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, tc.path)
	}
}

func TestMyAccounts(t *testing.T) {
	s := newTestServer(t)
	reg, cookie := s.signup(t, "jane@email.com")

	w := s.do(t, http.MethodGet, "/accounts/my-accounts", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	var accounts []struct {
		ID      uint            `json:"id"`
		Balance decimal.Decimal `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accounts))
	require.Len(t, accounts, 1)
	assert.Equal(t, reg.AccountID, accounts[0].ID)
	assert.True(t, accounts[0].Balance.IsZero())
}

func TestDepositAndWithdraw(t *testing.T) {
	s := newTestServer(t)
	reg, cookie := s.signup(t, "jane@email.com")

	w := s.do(t, http.MethodPost, "/accounts/deposit", gin.H{"accountId": reg.AccountID, "amount": 1000}, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, newBalance(t, w).Equal(decimal.NewFromInt(1000)))

	w = s.do(t, http.MethodPost, "/accounts/deposit", gin.H{"accountId": reg.AccountID, "amount": 500}, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, newBalance(t, w).Equal(decimal.NewFromInt(1500)))

	w = s.do(t, http.MethodPost, "/accounts/withdraw", gin.H{"accountId": reg.AccountID, "amount": 2000}, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, strings.ToLower(errorMessage(t, w)), "insufficient funds")

	w = s.do(t, http.MethodPost, "/accounts/withdraw", gin.H{"accountId": reg.AccountID, "amount": 300, "description": "Rent"}, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, newBalance(t, w).Equal(decimal.NewFromInt(1200)))

	w = s.do(t, http.MethodGet, "/accounts/my-accounts", nil, cookie)
	assert.Contains(t, w.Body.String(), `"balance":1200`)
}

func TestLedgerInputErrors(t *testing.T) {
	s := newTestServer(t)
	jane, janeCookie := s.signup(t, "jane@email.com")
	ben, _ := s.signup(t, "ben@email.com")

	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{"zero amount", "/accounts/deposit", gin.H{"accountId": jane.AccountID, "amount": 0}, http.StatusBadRequest},
		{"negative amount", "/accounts/withdraw", gin.H{"accountId": jane.AccountID, "amount": -5}, http.StatusBadRequest},
		{"three decimals", "/accounts/deposit", gin.H{"accountId": jane.AccountID, "amount": 1.005}, http.StatusBadRequest},
		{"amount not a number", "/accounts/deposit", gin.H{"accountId": jane.AccountID, "amount": "lots"}, http.StatusBadRequest},
		{"amount wider than a balance", "/accounts/deposit", gin.H{"accountId": jane.AccountID, "amount": json.Number("1e25")}, http.StatusBadRequest},
		{"nineteen integer digits", "/accounts/deposit", gin.H{"accountId": jane.AccountID, "amount": json.Number("1000000000000000000")}, http.StatusBadRequest},
		{"missing account", "/accounts/deposit", gin.H{"amount": 10}, http.StatusBadRequest},
		{"unknown account", "/accounts/deposit", gin.H{"accountId": 9999, "amount": 10}, http.StatusNotFound},
		{"someone else's account", "/accounts/deposit", gin.H{"accountId": ben.AccountID, "amount": 10}, http.StatusForbidden},
		{"withdraw from someone else's account", "/accounts/withdraw", gin.H{"accountId": ben.AccountID, "amount": 10}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, tt.path, tt.body, janeCookie)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	acc, err := s.store.Accounts().GetByID(context.Background(), ben.AccountID)
	require.NoError(t, err)
	assert.True(t, acc.Balance.IsZero())
}

func TestTransactionHistory(t *testing.T) {
	s := newTestServer(t)
	jane, cookie := s.signup(t, "jane@email.com")
	ben, _ := s.signup(t, "ben@email.com")

	for _, op := range []struct {
		path   string
		amount int
	}{{"/accounts/deposit", 100}, {"/accounts/withdraw", 30}, {"/accounts/deposit", 5}} {
		w := s.do(t, http.MethodPost, op.path, gin.H{"accountId": jane.AccountID, "amount": op.amount}, cookie)
		require.Equal(t, http.StatusOK, w.Code)
	}

	path := "/accounts/" + jsonNumber(jane.AccountID) + "/transactions"
	w := s.do(t, http.MethodGet, path, nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3", w.Header().Get("X-Total-Count"))
	var txs []struct {
		Type        string          `json:"type"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &txs))
	require.Len(t, txs, 3)
	assert.Equal(t, "deposit", txs[0].Type)
	assert.True(t, txs[0].Amount.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, "withdraw", txs[1].Type)
	assert.Equal(t, "Withdrawal", txs[1].Description)

	w = s.do(t, http.MethodGet, path+"?page=2&page_size=2", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-Total-Pages"))
	assert.Equal(t, "2", w.Header().Get("X-Page"))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &txs))
	require.Len(t, txs, 1)
	assert.True(t, txs[0].Amount.Equal(decimal.NewFromInt(100)))

	w = s.do(t, http.MethodGet, path+"?page=2&page_size=2", nil, cookie)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

	// A page far past the end is empty rather than wrapping around
	w = s.do(t, http.MethodGet, path+"?page=9223372036854775807&page_size=20", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "3", w.Header().Get("X-Total-Count"))
	assert.Equal(t, strconv.Itoa(repository.MaxPageNumber), w.Header().Get("X-Page"))
	assert.JSONEq(t, `[]`, w.Body.String())

	w = s.do(t, http.MethodGet, "/accounts/"+jsonNumber(ben.AccountID)+"/transactions", nil, cookie)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(t, http.MethodGet, "/accounts/9999/transactions", nil, cookie)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogoutRevokesSession(t *testing.T) {
	s := newTestServer(t)
	_, cookie := s.signup(t, "jane@email.com")

	w := s.do(t, http.MethodPost, "/auth/logout", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	cleared := w.Result().Cookies()
	require.NotEmpty(t, cleared)
	assert.Equal(t, middleware.SessionCookie, cleared[0].Name)
	assert.Empty(t, cleared[0].Value)

	w = s.do(t, http.MethodGet, "/accounts/my-accounts", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Logging out without a session still succeeds
	w = s.do(t, http.MethodPost, "/auth/logout", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealth(t *testing.T) {
	ok := NewRouter(Deps{HealthChecks: map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
	}})
	w := httptest.NewRecorder()
	ok.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","database":"up"}`, w.Body.String())

	down := NewRouter(Deps{HealthChecks: map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}})
	w = httptest.NewRecorder()
	down.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
	assert.Equal(t, http.StatusUnauthorized, statusFor(fmt.Errorf("resolve: %w", domain.ErrSessionInvalid)))
	assert.Equal(t, http.StatusBadRequest, statusFor(&domain.InsufficientFundsError{}))
}
