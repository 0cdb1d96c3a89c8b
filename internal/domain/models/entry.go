package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind tells a deposit from a withdrawal.
type EntryKind string

const (
	Deposit    EntryKind = "deposit"
	Withdrawal EntryKind = "withdrawal"
)

func (k EntryKind) Valid() bool {
	return k == Deposit || k == Withdrawal
}

// ParseEntryKind maps a persisted kind back to an EntryKind.
func ParseEntryKind(s string) (EntryKind, error) {
	k := EntryKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown entry kind %q", s)
	}
	return k, nil
}

// LedgerEntry is one immutable, signed movement on a user's ledger.
// Amount is positive for deposits and negative for withdrawals.
type LedgerEntry struct {
	ID        int64           `json:"entry_id"`
	UserID    int64           `json:"user_id"`
	Kind      EntryKind       `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"timestamp"`
}

// Sum returns the balance of the given entries.
func Sum(entries []LedgerEntry) decimal.Decimal {
	balance := decimal.Zero
	for _, e := range entries {
		balance = balance.Add(e.Amount)
	}
	return balance
}
