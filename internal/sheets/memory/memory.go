package memory

import (
	"context"
	"sync"

	"walletize/internal/core"
	"walletize/internal/sheets"
)

var _ sheets.Ledger = (*Store)(nil)

// Store is an in-process ledger mirror, used when no spreadsheet is
// configured and in tests.
type Store struct {
	mu      sync.Mutex
	entries []core.LedgerEntry
}

func New() *Store {
	return &Store{}
}

// AppendEntries stores the entries in arrival order.
func (s *Store) AppendEntries(_ context.Context, entries []core.LedgerEntry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
	return len(entries), nil
}

// ListEntries returns the entries recorded for one transaction.
func (s *Store) ListEntries(_ context.Context, transactionID string) ([]core.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.LedgerEntry
	for _, e := range s.entries {
		if e.TransactionID == transactionID {
			out = append(out, e)
		}
	}
	return out, nil
}

// All returns a copy of every stored entry.
func (s *Store) All() []core.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.LedgerEntry(nil), s.entries...)
}
