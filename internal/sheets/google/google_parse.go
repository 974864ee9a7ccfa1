package google

import (
	"fmt"
	"strings"
	"time"

	"walletize/internal/core"
)

// Ledger row layout, columns A..K.
const (
	colRecordedAt = iota
	colEvent
	colTransactionID
	colAccountID
	colUserID
	colType
	colDate
	colAmount
	colCurrency
	colRate
	colDescription
	ledgerWidth
)

func formatLedgerRow(e core.LedgerEntry) []any {
	row := make([]any, ledgerWidth)
	row[colRecordedAt] = e.RecordedAt.UTC().Format(time.RFC3339)
	row[colEvent] = e.Event
	row[colTransactionID] = e.TransactionID
	row[colAccountID] = e.AccountID
	row[colUserID] = e.UserID
	row[colType] = e.Type
	row[colDate] = e.Date.String()
	row[colAmount] = core.FormatAmount(e.Amount)
	row[colCurrency] = e.CurrencyID
	row[colRate] = e.Rate
	row[colDescription] = e.Description
	return row
}

// parseLedgerRow converts a values row (as returned by the Sheets API) back
// into an entry. Trailing empty cells may be omitted by the API.
func parseLedgerRow(row []any) (core.LedgerEntry, error) {
	cols := toStrings(row)
	if len(cols) <= colCurrency {
		return core.LedgerEntry{}, fmt.Errorf("short ledger row: %d columns", len(cols))
	}
	recorded, err := time.Parse(time.RFC3339, cols[colRecordedAt])
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("recorded at %q: %w", cols[colRecordedAt], err)
	}
	date, err := core.ParseDate(cols[colDate])
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("date %q: %w", cols[colDate], err)
	}
	amount, err := core.ParseAmount(cols[colAmount])
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("amount %q: %w", cols[colAmount], err)
	}
	if cols[colTransactionID] == "" {
		return core.LedgerEntry{}, fmt.Errorf("missing transaction id")
	}
	return core.LedgerEntry{
		Event:         cols[colEvent],
		TransactionID: cols[colTransactionID],
		AccountID:     cols[colAccountID],
		UserID:        cols[colUserID],
		Type:          cols[colType],
		Date:          date,
		Amount:        amount,
		CurrencyID:    cols[colCurrency],
		Rate:          safeGet(cols, colRate),
		Description:   safeGet(cols, colDescription),
		RecordedAt:    recorded,
	}, nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
