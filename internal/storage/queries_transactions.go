package storage

import (
	"context"
	"database/sql"

	"walletize/internal/core"
)

const transactionColumns = `t.id, t.account_id, t.category_id, t.type_id, t.currency_id, t.amount, t.account_amount,
t.rate, t.date, t.description, t.recurrence_id, t.transfer_id, t.created_at`

func scanTransaction(row interface{ Scan(...interface{}) error }) (core.Transaction, error) {
	var (
		t            core.Transaction
		rate         sql.NullString
		date         string
		recurrenceID sql.NullString
		transferID   sql.NullString
		created      string
	)
	err := row.Scan(&t.ID, &t.AccountID, &t.CategoryID, &t.TypeID, &t.CurrencyID, &t.Amount, &t.AccountAmount,
		&rate, &date, &t.Description, &recurrenceID, &transferID, &created)
	if err != nil {
		return core.Transaction{}, err
	}
	if t.Rate, err = scanRate(rate); err != nil {
		return core.Transaction{}, err
	}
	if t.Date, err = parseDate(date); err != nil {
		return core.Transaction{}, err
	}
	t.RecurrenceID = recurrenceID.String
	t.TransferID = transferID.String
	t.CreatedAt = parseTime(created)
	return t, nil
}

func collectTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	defer rows.Close()
	var items []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const insertTransaction = `
INSERT INTO transactions (id, account_id, category_id, type_id, currency_id, amount, account_amount,
    rate, date, description, recurrence_id, transfer_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertTransaction(ctx context.Context, t core.Transaction) error {
	_, err := q.db.ExecContext(ctx, insertTransaction,
		t.ID, t.AccountID, t.CategoryID, int(t.TypeID), t.CurrencyID, int64(t.Amount), int64(t.AccountAmount),
		nullRate(t.Rate), t.Date.String(), t.Description, nullString(t.RecurrenceID), nullString(t.TransferID),
		formatTime(t.CreatedAt))
	return err
}

const getTransaction = `SELECT ` + transactionColumns + ` FROM transactions t WHERE t.id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	t, err := scanTransaction(q.db.QueryRowContext(ctx, getTransaction, id))
	if err != nil {
		return core.Transaction{}, notFound(err)
	}
	return t, nil
}

const updateTransaction = `
UPDATE transactions
SET category_id = ?, type_id = ?, currency_id = ?, amount = ?, account_amount = ?, rate = ?,
    date = ?, description = ?
WHERE id = ?`

func (q *Queries) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := q.db.ExecContext(ctx, updateTransaction,
		t.CategoryID, int(t.TypeID), t.CurrencyID, int64(t.Amount), int64(t.AccountAmount), nullRate(t.Rate),
		t.Date.String(), t.Description, t.ID)
	if err != nil {
		return err
	}
	return expectRow(res)
}

const deleteTransaction = `DELETE FROM transactions WHERE id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, deleteTransaction, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

const listRecurrence = `
SELECT ` + transactionColumns + ` FROM transactions t
WHERE t.recurrence_id = ? AND t.date >= ?
ORDER BY t.date, t.id`

// ListRecurrence returns the series rows dated on or after from. A zero
// from returns the whole series.
func (q *Queries) ListRecurrence(ctx context.Context, recurrenceID string, from core.Date) ([]core.Transaction, error) {
	lower := ""
	if !from.IsZero() {
		lower = from.String()
	}
	rows, err := q.db.QueryContext(ctx, listRecurrence, recurrenceID, lower)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

const deleteRecurrence = `DELETE FROM transactions WHERE recurrence_id = ? AND date >= ?`

// DeleteRecurrence removes series rows dated on or after from (all rows
// for a zero from).
func (q *Queries) DeleteRecurrence(ctx context.Context, recurrenceID string, from core.Date) (int64, error) {
	lower := ""
	if !from.IsZero() {
		lower = from.String()
	}
	res, err := q.db.ExecContext(ctx, deleteRecurrence, recurrenceID, lower)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const insertTransfer = `
INSERT INTO transaction_transfers (id, origin_transaction_id, destination_transaction_id)
VALUES (?, ?, ?)`

func (q *Queries) InsertTransfer(ctx context.Context, tr core.TransactionTransfer) error {
	_, err := q.db.ExecContext(ctx, insertTransfer,
		tr.ID, nullString(tr.OriginTransactionID), nullString(tr.DestinationTransactionID))
	return err
}

const getTransfer = `
SELECT id, origin_transaction_id, destination_transaction_id
FROM transaction_transfers WHERE id = ?`

func (q *Queries) GetTransfer(ctx context.Context, id string) (core.TransactionTransfer, error) {
	var (
		tr                  core.TransactionTransfer
		origin, destination sql.NullString
	)
	if err := q.db.QueryRowContext(ctx, getTransfer, id).Scan(&tr.ID, &origin, &destination); err != nil {
		return core.TransactionTransfer{}, notFound(err)
	}
	tr.OriginTransactionID = origin.String
	tr.DestinationTransactionID = destination.String
	return tr, nil
}

const deleteTransfer = `DELETE FROM transaction_transfers WHERE id = ?`

func (q *Queries) DeleteTransfer(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, deleteTransfer, id)
	return err
}
