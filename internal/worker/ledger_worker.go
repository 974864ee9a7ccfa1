package worker

import (
	"context"
	"fmt"
	"log/slog"

	"walletize/internal/amqp"
	"walletize/internal/core"
	"walletize/internal/sheets"
)

// LedgerWorker mirrors transaction events into an append-only audit ledger.
type LedgerWorker struct {
	ledger sheets.LedgerWriter
}

func NewLedgerWorker(ledger sheets.LedgerWriter) *LedgerWorker {
	return &LedgerWorker{ledger: ledger}
}

// HandleTransactionEvent appends one ledger row per transaction carried by
// the event. Deleted rows are mirrored from the event payload, so the
// database is never consulted. A returned error makes the consumer requeue
// the message.
func (w *LedgerWorker) HandleTransactionEvent(ctx context.Context, event *amqp.TransactionEvent) error {
	slog.InfoContext(ctx, "Processing transaction event",
		"kind", event.Kind,
		"user_id", event.UserID,
		"transactions", len(event.Transactions))

	entries := LedgerEntries(event)
	if len(entries) == 0 {
		return nil
	}

	n, err := w.ledger.AppendEntries(ctx, entries)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to append ledger entries",
			"kind", event.Kind,
			"written", n,
			"error", err)
		return fmt.Errorf("append ledger entries: %w", err)
	}

	slog.InfoContext(ctx, "Ledger entries appended",
		"kind", event.Kind,
		"written", n,
		"transaction_ids", event.TransactionIDs())
	return nil
}

// LedgerEntries converts an event into ledger rows, one per transaction.
func LedgerEntries(event *amqp.TransactionEvent) []core.LedgerEntry {
	out := make([]core.LedgerEntry, 0, len(event.Transactions))
	for _, t := range event.Transactions {
		rate := ""
		if t.Rate != nil {
			rate = t.Rate.String()
		}
		out = append(out, core.LedgerEntry{
			Event:         string(event.Kind),
			TransactionID: t.ID,
			AccountID:     t.AccountID,
			UserID:        event.UserID,
			Type:          t.TypeID.String(),
			Date:          t.Date,
			Amount:        t.Amount,
			CurrencyID:    t.CurrencyID,
			Rate:          rate,
			Description:   t.Description,
			RecordedAt:    event.Timestamp,
		})
	}
	return out
}
