package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"walletize/internal/amqp"
	"walletize/internal/core"
	"walletize/internal/sheets/memory"
)

func sampleEvent(kind amqp.EventKind) *amqp.TransactionEvent {
	rate := decimal.RequireFromString("0.9")
	e := amqp.NewTransactionEvent(kind, "alice", []core.Transaction{
		{
			ID: "t1", AccountID: "a1", TypeID: core.TypeTransfer, CurrencyID: "usd",
			Amount: core.Amount(-100000), Rate: &rate, Date: core.NewDate(2024, 5, 1),
			Description: "to savings", TransferID: "tr1",
		},
		{
			ID: "t2", AccountID: "a2", TypeID: core.TypeTransfer, CurrencyID: "usd",
			Amount: core.Amount(100000), Date: core.NewDate(2024, 5, 1), TransferID: "tr1",
		},
	})
	e.Timestamp = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return e
}

func TestLedgerEntries(t *testing.T) {
	entries := LedgerEntries(sampleEvent(amqp.EventPosted))
	if len(entries) != 2 {
		t.Fatalf("entries: got %d want 2", len(entries))
	}
	first := entries[0]
	if first.Event != "posted" || first.TransactionID != "t1" || first.UserID != "alice" {
		t.Fatalf("unexpected entry: %+v", first)
	}
	if first.Type != "Transfer" || first.Rate != "0.9" || first.Amount != core.Amount(-100000) {
		t.Fatalf("unexpected entry values: %+v", first)
	}
	if entries[1].Rate != "" {
		t.Fatalf("nil rate should be empty, got %q", entries[1].Rate)
	}
	if !first.RecordedAt.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("recorded at: %v", first.RecordedAt)
	}
}

func TestHandleTransactionEventMirrorsDeletes(t *testing.T) {
	store := memory.New()
	w := NewLedgerWorker(store)
	ctx := context.Background()

	if err := w.HandleTransactionEvent(ctx, sampleEvent(amqp.EventPosted)); err != nil {
		t.Fatalf("posted: %v", err)
	}
	if err := w.HandleTransactionEvent(ctx, sampleEvent(amqp.EventDeleted)); err != nil {
		t.Fatalf("deleted: %v", err)
	}

	trail, _ := store.ListEntries(ctx, "t2")
	if len(trail) != 2 || trail[0].Event != "posted" || trail[1].Event != "deleted" {
		t.Fatalf("unexpected trail: %+v", trail)
	}
}

func TestHandleTransactionEventEmpty(t *testing.T) {
	store := memory.New()
	w := NewLedgerWorker(store)
	e := amqp.NewTransactionEvent(amqp.EventEdited, "alice", nil)
	if err := w.HandleTransactionEvent(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.All()) != 0 {
		t.Fatal("nothing should be written")
	}
}

type failingLedger struct{}

func (failingLedger) AppendEntries(context.Context, []core.LedgerEntry) (int, error) {
	return 0, errors.New("quota exceeded")
}

func TestHandleTransactionEventPropagatesFailure(t *testing.T) {
	w := NewLedgerWorker(failingLedger{})
	err := w.HandleTransactionEvent(context.Background(), sampleEvent(amqp.EventPosted))
	if err == nil {
		t.Fatal("expected error so the message is requeued")
	}
}
