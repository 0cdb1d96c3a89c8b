package events

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypeEntryRecorded = "entry_recorded"
	TypeUserDeleted   = "user_deleted"
)

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Event is implemented by every published payload.
type Event interface {
	Type() string
	Key() string
}

type EntryRecorded struct {
	UserID     int64           `json:"user_id"`
	EntryID    int64           `json:"entry_id"`
	Kind       string          `json:"kind"`
	Amount     decimal.Decimal `json:"amount"`
	Balance    decimal.Decimal `json:"balance"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func (EntryRecorded) Type() string  { return TypeEntryRecorded }
func (e EntryRecorded) Key() string { return userKey(e.UserID) }

type UserDeleted struct {
	UserID     int64     `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (UserDeleted) Type() string  { return TypeUserDeleted }
func (e UserDeleted) Key() string { return userKey(e.UserID) }

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

func userKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
