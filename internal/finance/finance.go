// Package finance implements the family ledger: the user directory and the
// per-user ledgers of deposits and withdrawals.
package finance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IlyasAtabaev731/family-finance/internal/domain/models"
	"github.com/IlyasAtabaev731/family-finance/internal/events"
	"github.com/IlyasAtabaev731/family-finance/internal/storage"
	"github.com/shopspring/decimal"
)

// amountScale is the number of fractional digits an amount may carry.
const amountScale = 2

// amountLimit bounds a single amount to what NUMERIC(18,2) can hold.
var amountLimit = decimal.New(1, 18-amountScale)

// Storage persists users and their ledgers.
//
// SaveUser provisions the user's empty ledger in the same transaction.
// AppendEntry assigns the entry id and refuses, with
// storage.ErrInsufficientFunds, any entry that would leave the balance
// negative; it returns the stored entry and the new balance.
type Storage interface {
	SaveUser(ctx context.Context, user models.User) (int64, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	UpdateUser(ctx context.Context, user models.User) error
	DeleteUser(ctx context.Context, userID int64) error
	AppendEntry(ctx context.Context, entry models.LedgerEntry) (models.LedgerEntry, decimal.Decimal, error)
	Balance(ctx context.Context, userID int64) (decimal.Decimal, error)
	Entries(ctx context.Context, userID int64) ([]models.LedgerEntry, error)
}

type Service struct {
	storage   Storage
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func New(storage Storage, publisher events.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		storage:   storage,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.storage.ListUsers(ctx)
	if err != nil {
		return nil, s.translate(err, 0)
	}
	return users, nil
}

// User returns the user with the given id.
func (s *Service) User(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.storage.GetUser(ctx, userID)
	if err != nil {
		return nil, s.translate(err, userID)
	}
	return user, nil
}

// AddUser registers a family member and opens an empty ledger for them.
func (s *Service) AddUser(ctx context.Context, name, address, phone string) (int64, error) {
	user, err := newUser(name, address, phone)
	if err != nil {
		return 0, err
	}
	user.CreatedAt = s.now()

	id, err := s.storage.SaveUser(ctx, user)
	if err != nil {
		return 0, s.translate(err, 0)
	}

	s.logger.Info("User added", slog.Int64("user_id", id))

	return id, nil
}

func (s *Service) UpdateUser(ctx context.Context, userID int64, name, address, phone string) error {
	user, err := newUser(name, address, phone)
	if err != nil {
		return err
	}
	user.ID = userID

	if err := s.storage.UpdateUser(ctx, user); err != nil {
		return s.translate(err, userID)
	}

	s.logger.Info("User updated", slog.Int64("user_id", userID))

	return nil
}

// DeleteUser removes the user together with the whole ledger. It cannot be undone.
func (s *Service) DeleteUser(ctx context.Context, userID int64) error {
	if err := s.storage.DeleteUser(ctx, userID); err != nil {
		return s.translate(err, userID)
	}

	s.logger.Info("User deleted", slog.Int64("user_id", userID))
	s.publish(ctx, events.UserDeleted{UserID: userID, OccurredAt: s.now()})

	return nil
}

func (s *Service) Deposit(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := validateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return s.record(ctx, userID, models.Deposit, amount)
}

// Withdraw is all-or-nothing: when the balance does not cover amount no entry is written.
func (s *Service) Withdraw(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := validateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return s.record(ctx, userID, models.Withdrawal, amount.Neg())
}

func (s *Service) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	balance, err := s.storage.Balance(ctx, userID)
	if err != nil {
		return decimal.Zero, s.translate(err, userID)
	}
	return balance, nil
}

// History returns the user's entries in the order they were recorded.
func (s *Service) History(ctx context.Context, userID int64) ([]models.LedgerEntry, error) {
	entries, err := s.storage.Entries(ctx, userID)
	if err != nil {
		return nil, s.translate(err, userID)
	}
	return entries, nil
}

func (s *Service) record(ctx context.Context, userID int64, kind models.EntryKind, amount decimal.Decimal) (decimal.Decimal, error) {
	entry, balance, err := s.storage.AppendEntry(ctx, models.LedgerEntry{
		UserID:    userID,
		Kind:      kind,
		Amount:    amount,
		CreatedAt: s.now(),
	})
	if err != nil {
		return decimal.Zero, s.translate(err, userID)
	}

	s.logger.Debug("Entry recorded",
		slog.Int64("user_id", userID),
		slog.Int64("entry_id", entry.ID),
		slog.String("kind", string(kind)),
		slog.String("amount", amount.String()),
	)

	s.publish(ctx, events.EntryRecorded{
		UserID:     userID,
		EntryID:    entry.ID,
		Kind:       string(kind),
		Amount:     entry.Amount,
		Balance:    balance,
		OccurredAt: entry.CreatedAt,
	})

	return balance, nil
}

// publish runs after commit, so a failure is only logged.
func (s *Service) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event", slog.String("type", event.Type()), "error", err)
	}
}

func (s *Service) translate(err error, userID int64) error {
	switch {
	case errors.Is(err, storage.ErrUserNotFound):
		return fmt.Errorf("%w: user %d", ErrNotFound, userID)
	case errors.Is(err, storage.ErrInsufficientFunds):
		return fmt.Errorf("%w: user %d", ErrInsufficientFunds, userID)
	default:
		s.logger.Error("Storage failure", slog.Int64("user_id", userID), "error", err)
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
}

func newUser(name, address, phone string) (models.User, error) {
	user := models.User{
		Name:    strings.TrimSpace(name),
		Address: strings.TrimSpace(address),
		Phone:   strings.TrimSpace(phone),
	}
	if user.Name == "" {
		return models.User{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if user.Address == "" {
		return models.User{}, fmt.Errorf("%w: address is required", ErrValidation)
	}
	return user, nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", ErrValidation, amount)
	}
	if amount.GreaterThanOrEqual(amountLimit) {
		return fmt.Errorf("%w: amount %s must be below %s", ErrValidation, amount, amountLimit)
	}
	if !amount.Equal(amount.Truncate(amountScale)) {
		return fmt.Errorf("%w: amount %s has more than %d decimal places", ErrValidation, amount, amountScale)
	}
	return nil
}
