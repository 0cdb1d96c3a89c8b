package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/IlyasAtabaev731/family-finance/internal/config"
	"github.com/IlyasAtabaev731/family-finance/internal/domain/models"
	"github.com/IlyasAtabaev731/family-finance/internal/finance"
	"github.com/IlyasAtabaev731/family-finance/internal/lib/jwt"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type ctxKey string

const (
	userIDKey    ctxKey = "user_id"
	requestIDKey ctxKey = "request_id"

	requestIDHeader = "X-Request-ID"
)

type APIServer struct {
	config    *config.Config
	logger    *slog.Logger
	server    *http.Server
	finance   *finance.Service
	jwtSecret []byte
}

func New(config *config.Config, logger *slog.Logger, finance *finance.Service, jwtSecret []byte) *APIServer {
	s := &APIServer{
		config: config,
		logger: logger,
		server: &http.Server{
			Addr:              config.ApiHost + ":" + strconv.Itoa(config.ApiPort),
			ReadHeaderTimeout: 5 * time.Second,
		},
		finance:   finance,
		jwtSecret: jwtSecret,
	}
	s.configureRouter()
	return s
}

func (s *APIServer) Start() error {
	s.logger.Info("Starting server", slog.String("port", strconv.Itoa(s.config.ApiPort)))

	return s.server.ListenAndServe()
}

func (s *APIServer) MustStart() {
	err := s.Start()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic("Failed to start server: " + err.Error())
	}
}

func (s *APIServer) Stop(ctx context.Context) error {
	defer s.logger.Info("Server successfully stopped")
	return s.server.Shutdown(ctx)
}

func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *APIServer) configureRouter() {
	router := mux.NewRouter()
	router.Use(s.requestID)

	router.HandleFunc("/api/users", s.listUsersHandler()).Methods("GET")
	router.HandleFunc("/api/users", s.addUserHandler()).Methods("POST")
	router.HandleFunc("/api/users/{id:[0-9]+}", s.updateUserHandler()).Methods("PUT")
	router.HandleFunc("/api/users/{id:[0-9]+}", s.deleteUserHandler()).Methods("DELETE")
	router.HandleFunc("/api/auth", s.authHandler()).Methods("POST")

	router.HandleFunc("/api/deposit", s.authenticate(s.depositHandler())).Methods("POST")
	router.HandleFunc("/api/withdraw", s.authenticate(s.withdrawHandler())).Methods("POST")
	router.HandleFunc("/api/balance", s.authenticate(s.balanceHandler())).Methods("GET")
	router.HandleFunc("/api/history", s.authenticate(s.historyHandler())).Methods("GET")
	s.server.Handler = router
}

type UserRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

type AddUserResponse struct {
	UserID int64 `json:"user_id"`
}

type AuthRequest struct {
	UserID int64 `json:"user_id"`
}

type AuthResponse struct {
	Token string `json:"token"`
}

type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type BalanceResponse struct {
	UserID  int64           `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *APIServer) listUsersHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := s.finance.ListUsers(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}

		s.respond(w, http.StatusOK, users)
	}
}

func (s *APIServer) addUserHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respond(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}

		id, err := s.finance.AddUser(r.Context(), req.Name, req.Address, req.Phone)
		if err != nil {
			s.fail(w, r, err)
			return
		}

		s.respond(w, http.StatusCreated, AddUserResponse{UserID: id})
	}
}

func (s *APIServer) updateUserHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			s.respond(w, http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
			return
		}

		var req UserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respond(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}

		if err := s.finance.UpdateUser(r.Context(), id, req.Name, req.Address, req.Phone); err != nil {
			s.fail(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *APIServer) deleteUserHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			s.respond(w, http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
			return
		}

		if err := s.finance.DeleteUser(r.Context(), id); err != nil {
			s.fail(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// authHandler opens a session on one user's account.
func (s *APIServer) authHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AuthRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respond(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}

		user, err := s.finance.User(r.Context(), req.UserID)
		if err != nil {
			s.fail(w, r, err)
			return
		}

		token, err := jwt.NewToken(user, string(s.jwtSecret), s.config.JWT.TTL)
		if err != nil {
			s.logger.Error("Failed to sign token", "error", err)
			s.respond(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to create session"})
			return
		}

		s.respond(w, http.StatusOK, AuthResponse{Token: token})
	}
}

func (s *APIServer) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenHeader := r.Header.Get("Authorization")
		if tokenHeader == "" {
			s.respond(w, http.StatusUnauthorized, ErrorResponse{Error: "missing token"})
			return
		}

		parts := strings.Split(tokenHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.respond(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid token format"})
			return
		}

		claims, err := jwt.ParseToken(parts[1], string(s.jwtSecret))
		if err != nil {
			s.respond(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
			return
		}

		r = r.WithContext(context.WithValue(r.Context(), userIDKey, claims.UserID))
		next(w, r)
	}
}

func (s *APIServer) depositHandler() func(http.ResponseWriter, *http.Request) {
	return s.movementHandler(s.finance.Deposit)
}

func (s *APIServer) withdrawHandler() func(http.ResponseWriter, *http.Request) {
	return s.movementHandler(s.finance.Withdraw)
}

type movement func(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error)

func (s *APIServer) movementHandler(apply movement) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AmountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respond(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}

		userID := r.Context().Value(userIDKey).(int64)

		balance, err := apply(r.Context(), userID, req.Amount)
		if err != nil {
			s.fail(w, r, err)
			return
		}

		s.respond(w, http.StatusOK, BalanceResponse{UserID: userID, Balance: balance})
	}
}

func (s *APIServer) balanceHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(userIDKey).(int64)

		balance, err := s.finance.Balance(r.Context(), userID)
		if err != nil {
			s.fail(w, r, err)
			return
		}

		s.respond(w, http.StatusOK, BalanceResponse{UserID: userID, Balance: balance})
	}
}

func (s *APIServer) historyHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(userIDKey).(int64)

		entries, err := s.finance.History(r.Context(), userID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if entries == nil {
			entries = []models.LedgerEntry{}
		}

		s.respond(w, http.StatusOK, entries)
	}
}

func (s *APIServer) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))

		s.logger.Debug("Request served",
			slog.String("request_id", id),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("took", time.Since(start)),
		)
	})
}

func (s *APIServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, finance.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, finance.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, finance.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}

	s.logger.Info("Request failed",
		slog.Any("request_id", r.Context().Value(requestIDKey)),
		slog.Int("status", status),
		"error", err,
	)

	s.respond(w, status, ErrorResponse{Error: msg})
}

func (s *APIServer) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}
