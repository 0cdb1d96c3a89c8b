package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/IlyasAtabaev731/family-finance/internal/domain/models"
	"github.com/IlyasAtabaev731/family-finance/internal/storage"
	"github.com/shopspring/decimal"
)

// The database behind FINANCE_TEST_POSTGRES_URL must have the migrations applied;
// its tables are emptied by the test.
func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	dbUrl := os.Getenv("FINANCE_TEST_POSTGRES_URL")
	if dbUrl == "" {
		t.Skip("FINANCE_TEST_POSTGRES_URL is not set")
	}

	s, err := New(dbUrl, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })

	if _, err := s.db.Exec("TRUNCATE ledger_entries, ledgers, users RESTART IDENTITY CASCADE"); err != nil {
		t.Fatalf("failed to reset tables: %v", err)
	}
	return s
}

func TestLedgerLifecycle(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	id, err := s.SaveUser(ctx, models.User{Name: "Asha", Address: "12 Elm St", Phone: "555-1234", CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("SaveUser: %v", err)
	}
	if id != 1 {
		t.Errorf("expected id 1, got %d", id)
	}

	_, balance, err := s.AppendEntry(ctx, models.LedgerEntry{
		UserID: id, Kind: models.Deposit, Amount: decimal.RequireFromString("500"), CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("AppendEntry: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("500")) {
		t.Errorf("expected balance 500, got %s", balance)
	}

	_, _, err = s.AppendEntry(ctx, models.LedgerEntry{
		UserID: id, Kind: models.Withdrawal, Amount: decimal.RequireFromString("-1000"), CreatedAt: time.Now(),
	})
	if !errors.Is(err, storage.ErrInsufficientFunds) {
		t.Fatalf("AppendEntry overdraft error = %v, want ErrInsufficientFunds", err)
	}

	entries, err := s.Entries(ctx, id)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != 1 {
		t.Errorf("unexpected entries: %+v", entries)
	}

	if err := s.DeleteUser(ctx, id); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := s.Entries(ctx, id); !errors.Is(err, storage.ErrUserNotFound) {
		t.Errorf("Entries after delete error = %v, want ErrUserNotFound", err)
	}
}
