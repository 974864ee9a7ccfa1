package google

import (
	"testing"
	"time"

	"walletize/internal/core"
)

func sampleEntry() core.LedgerEntry {
	return core.LedgerEntry{
		Event:         "posted",
		TransactionID: "tx-1",
		AccountID:     "acc-1",
		UserID:        "alice",
		Type:          "expense",
		Date:          core.NewDate(2024, 3, 9),
		Amount:        core.Amount(-125000),
		CurrencyID:    "eur",
		Rate:          "0.9",
		Description:   "groceries",
		RecordedAt:    time.Date(2024, 3, 9, 18, 4, 5, 0, time.UTC),
	}
}

func TestFormatAndParseLedgerRow(t *testing.T) {
	e := sampleEntry()
	row := formatLedgerRow(e)
	if len(row) != ledgerWidth {
		t.Fatalf("row width: got %d want %d", len(row), ledgerWidth)
	}
	if row[colAmount] != "-12.5000" {
		t.Fatalf("amount cell: got %v", row[colAmount])
	}

	got, err := parseLedgerRow(row)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if got.TransactionID != e.TransactionID || got.Amount != e.Amount || got.Rate != e.Rate {
		t.Fatalf("unexpected entry: %+v", got)
	}
	if got.Date.String() != "2024-03-09" || !got.RecordedAt.Equal(e.RecordedAt) {
		t.Fatalf("unexpected dates: %+v", got)
	}
}

func TestParseLedgerRowRejects(t *testing.T) {
	tests := []struct {
		name string
		row  []any
	}{
		{"header", []any{"Recorded at", "Event", "Transaction", "Account", "User", "Type", "Date", "Amount", "Currency", "Rate", "Description"}},
		{"short", []any{"2024-03-09T18:04:05Z", "posted", "tx-1"}},
		{"bad amount", []any{"2024-03-09T18:04:05Z", "posted", "tx-1", "acc", "u", "expense", "2024-03-09", "abc", "eur"}},
		{"bad date", []any{"2024-03-09T18:04:05Z", "posted", "tx-1", "acc", "u", "expense", "09/03/2024", "1", "eur"}},
		{"no id", []any{"2024-03-09T18:04:05Z", "posted", "", "acc", "u", "expense", "2024-03-09", "1", "eur"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseLedgerRow(tt.row); err == nil {
				t.Fatalf("expected error for %v", tt.row)
			}
		})
	}
}

func TestParseLedgerRowTrailingCellsOptional(t *testing.T) {
	row := []any{"2024-03-09T18:04:05Z", "deleted", "tx-1", "acc", "u", "income", "2024-03-09", "7", "usd"}
	e, err := parseLedgerRow(row)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if e.Rate != "" || e.Description != "" || e.Amount != core.Amount(70000) {
		t.Fatalf("unexpected entry: %+v", e)
	}
}
