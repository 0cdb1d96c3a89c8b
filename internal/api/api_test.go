package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/IlyasAtabaev731/family-finance/internal/config"
	"github.com/IlyasAtabaev731/family-finance/internal/domain/models"
	"github.com/IlyasAtabaev731/family-finance/internal/finance"
	"github.com/IlyasAtabaev731/family-finance/internal/lib/jwt" // custom jwt functions
	"github.com/IlyasAtabaev731/family-finance/internal/storage/memory"
	"github.com/shopspring/decimal"
)

// ========================================================
// Helpers
// ========================================================

var jwtSecret = []byte("secret")

func newTestServer(t *testing.T) (*APIServer, *finance.Service) {
	t.Helper()
	cfg := &config.Config{ApiHost: "localhost", ApiPort: 8080, JWT: config.JWT{TTL: time.Hour}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := finance.New(memory.New(), nil, logger)
	return New(cfg, logger, svc, jwtSecret), svc
}

func do(t *testing.T, s *APIServer, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func tokenFor(t *testing.T, id int64) string {
	t.Helper()
	token, err := jwt.NewToken(&models.User{ID: id}, string(jwtSecret), time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return token
}

// ========================================================
// Directory endpoints
// ========================================================

func TestUserLifecycle(t *testing.T) {
	s, _ := newTestServer(t)

	rr := do(t, s, "POST", "/api/users", "", UserRequest{Name: "Asha", Address: "12 Elm St", Phone: "555-1234"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body)
	}
	var created AddUserResponse
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.UserID != 1 {
		t.Errorf("expected user_id 1, got %d", created.UserID)
	}

	rr = do(t, s, "PUT", "/api/users/1", "", UserRequest{Name: "Asha K", Address: "7 Oak Rd"})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d: %s", rr.Code, rr.Body)
	}

	rr = do(t, s, "GET", "/api/users", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var users []models.User
	if err := json.NewDecoder(rr.Body).Decode(&users); err != nil {
		t.Fatalf("failed to decode users: %v", err)
	}
	if len(users) != 1 || users[0].Name != "Asha K" {
		t.Errorf("unexpected users: %+v", users)
	}

	rr = do(t, s, "DELETE", "/api/users/1", "", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	rr = do(t, s, "DELETE", "/api/users/1", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for a deleted user, got %d", rr.Code)
	}
}

func TestAddUserValidation(t *testing.T) {
	s, _ := newTestServer(t)

	rr := do(t, s, "POST", "/api/users", "", UserRequest{Name: "Asha"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	if resp.Error == "" {
		t.Error("expected an error message")
	}
}

// ========================================================
// Sessions
// ========================================================

func TestAuth(t *testing.T) {
	s, svc := newTestServer(t)
	id, err := svc.AddUser(context.Background(), "Asha", "12 Elm St", "")
	if err != nil {
		t.Fatalf("AddUser: %v", err)
	}

	rr := do(t, s, "POST", "/api/auth", "", AuthRequest{UserID: id})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp AuthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	claims, err := jwt.ParseToken(resp.Token, string(jwtSecret))
	if err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}
	if claims.UserID != id {
		t.Errorf("expected uid %d, got %d", id, claims.UserID)
	}

	rr = do(t, s, "POST", "/api/auth", "", AuthRequest{UserID: 77})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for an unknown user, got %d", rr.Code)
	}
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	s, _ := newTestServer(t)

	if rr := do(t, s, "GET", "/api/balance", "", nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 without token, got %d", rr.Code)
	}
	if rr := do(t, s, "GET", "/api/balance", "garbage", nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 for a bad token, got %d", rr.Code)
	}
}

// ========================================================
// Ledger endpoints
// ========================================================

func TestDepositWithdrawBalanceHistory(t *testing.T) {
	s, svc := newTestServer(t)
	id, err := svc.AddUser(context.Background(), "Asha", "12 Elm St", "")
	if err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	token := tokenFor(t, id)

	rr := do(t, s, "POST", "/api/deposit", token, map[string]any{"amount": 500.0})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body)
	}

	rr = do(t, s, "POST", "/api/withdraw", token, map[string]any{"amount": "200"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body)
	}
	var balance BalanceResponse
	if err := json.NewDecoder(rr.Body).Decode(&balance); err != nil {
		t.Fatalf("failed to decode balance: %v", err)
	}
	if !balance.Balance.Equal(decimal.NewFromInt(300)) {
		t.Errorf("expected balance 300, got %s", balance.Balance)
	}

	rr = do(t, s, "POST", "/api/withdraw", token, map[string]any{"amount": 1000})
	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("expected status 402, got %d", rr.Code)
	}

	rr = do(t, s, "POST", "/api/deposit", token, map[string]any{"amount": -5})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}

	rr = do(t, s, "GET", "/api/balance", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if err := json.NewDecoder(rr.Body).Decode(&balance); err != nil {
		t.Fatalf("failed to decode balance: %v", err)
	}
	if !balance.Balance.Equal(decimal.NewFromInt(300)) || balance.UserID != id {
		t.Errorf("unexpected balance response: %+v", balance)
	}

	rr = do(t, s, "GET", "/api/history", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var entries []models.LedgerEntry
	if err := json.NewDecoder(rr.Body).Decode(&entries); err != nil {
		t.Fatalf("failed to decode history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !entries[0].Amount.Equal(decimal.NewFromInt(500)) || !entries[1].Amount.Equal(decimal.NewFromInt(-200)) {
		t.Errorf("unexpected history: %+v", entries)
	}
}

func TestDeletedUserTokenIsNotFound(t *testing.T) {
	s, svc := newTestServer(t)
	ctx := context.Background()
	id, err := svc.AddUser(ctx, "Asha", "12 Elm St", "")
	if err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	token := tokenFor(t, id)
	if err := svc.DeleteUser(ctx, id); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	if rr := do(t, s, "GET", "/api/balance", token, nil); rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestRequestID(t *testing.T) {
	s, _ := newTestServer(t)

	rr := do(t, s, "GET", "/api/users", "", nil)
	if rr.Header().Get(requestIDHeader) == "" {
		t.Error("expected a generated request id")
	}

	req := httptest.NewRequest("GET", "/api/users", nil)
	req.Header.Set(requestIDHeader, "abc")
	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	if got := rr.Header().Get(requestIDHeader); got != "abc" {
		t.Errorf("expected request id abc, got %q", got)
	}
}
