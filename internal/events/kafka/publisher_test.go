package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/IlyasAtabaev731/family-finance/internal/events"
	"github.com/shopspring/decimal"
)

func TestMessage(t *testing.T) {
	ev := events.EntryRecorded{
		UserID:     7,
		EntryID:    3,
		Kind:       "deposit",
		Amount:     decimal.RequireFromString("500"),
		Balance:    decimal.RequireFromString("750.5"),
		OccurredAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	msg, err := message(ev)
	if err != nil {
		t.Fatalf("message: %v", err)
	}

	if string(msg.Key) != "7" {
		t.Errorf("expected key 7, got %q", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != events.TypeEntryRecorded {
		t.Errorf("unexpected headers: %+v", msg.Headers)
	}

	var got events.EntryRecorded
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if got.EntryID != 3 || !got.Balance.Equal(ev.Balance) {
		t.Errorf("unexpected payload: %+v", got)
	}
}

func TestNewPublisherWritesWithoutBatching(t *testing.T) {
	p := NewPublisher([]string{"localhost:9092"}, "family_finance.ledger")
	defer p.Close()

	if p.writer.BatchSize != 1 {
		t.Errorf("expected batch size 1, got %d", p.writer.BatchSize)
	}
	if p.writer.BatchTimeout <= 0 || p.writer.BatchTimeout > 10*time.Millisecond {
		t.Errorf("expected batch timeout of at most 10ms, got %s", p.writer.BatchTimeout)
	}
}
