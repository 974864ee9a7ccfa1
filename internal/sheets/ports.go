package sheets

import (
	"context"

	"walletize/internal/core"
)

// Ports for the audit ledger mirror.
type (
	// LedgerWriter appends audit rows and reports how many were written.
	LedgerWriter interface {
		AppendEntries(ctx context.Context, entries []core.LedgerEntry) (int, error)
	}

	// LedgerReader returns the audit trail of a single transaction in the
	// order it was recorded.
	LedgerReader interface {
		ListEntries(ctx context.Context, transactionID string) ([]core.LedgerEntry, error)
	}

	Ledger interface {
		LedgerWriter
		LedgerReader
	}
)
