package storage

import (
	"context"
	"database/sql"
	"fmt"

	"walletize/internal/core"
)

const (
	minStoredDate = "0000-01-01"
	maxStoredDate = "9999-12-31"
)

// periodBounds maps an unbounded period to the widest comparable strings.
func periodBounds(p core.Period) (string, string) {
	if p.Unbounded() {
		return minStoredDate, maxStoredDate
	}
	return p.Start.String(), p.End.String()
}

// AccountTotal is a per-account sum.
type AccountTotal struct {
	AccountID string
	Total     core.Amount
}

// TypeTotal is a per-account, per-type sum.
type TypeTotal struct {
	AccountID string
	TypeID    core.TransactionType
	Total     core.Amount
}

// BucketTotal is the sum of one chart bucket for one account.
type BucketTotal struct {
	AccountID string
	Bucket    core.Date
	Total     core.Amount
}

// CategoryTotalRow is a per-account, per-category sum.
type CategoryTotalRow struct {
	AccountID  string
	CategoryID string
	Name       string
	TypeID     core.TransactionType
	Color      string
	Total      core.Amount
}

const listTransactionsPage = `
SELECT ` + transactionColumns + ` FROM transactions t
WHERE t.account_id IN (%s) AND t.date >= ? AND t.date <= ?
ORDER BY t.date DESC, t.created_at DESC, t.id DESC
LIMIT ? OFFSET ?`

// ListTransactionsPage returns newest-first rows of the given accounts.
func (q *Queries) ListTransactionsPage(ctx context.Context, accountIDs []string, p core.Period, limit, offset int) ([]core.Transaction, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	in, args := inClause(accountIDs)
	start, end := periodBounds(p)
	args = append(args, start, end, limit, offset)
	rows, err := q.db.QueryContext(ctx, fmt.Sprintf(listTransactionsPage, in), args...)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

const sumBefore = `
SELECT t.account_id, COALESCE(SUM(t.account_amount), 0) FROM transactions t
WHERE t.account_id IN (%s) AND t.date < ?
GROUP BY t.account_id`

// SumBefore returns each account's transaction sum strictly before the
// given day, in account currency. Accounts without rows are absent.
func (q *Queries) SumBefore(ctx context.Context, accountIDs []string, before core.Date) ([]AccountTotal, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	in, args := inClause(accountIDs)
	bound := maxStoredDate
	if !before.IsZero() {
		bound = before.String()
	}
	args = append(args, bound)
	rows, err := q.db.QueryContext(ctx, fmt.Sprintf(sumBefore, in), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AccountTotal
	for rows.Next() {
		var it AccountTotal
		if err := rows.Scan(&it.AccountID, &it.Total); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// SumThrough returns each account's transaction sum up to and including day.
func (q *Queries) SumThrough(ctx context.Context, accountIDs []string, day core.Date) ([]AccountTotal, error) {
	if day.IsZero() {
		return q.SumBefore(ctx, accountIDs, core.Date{})
	}
	return q.SumBefore(ctx, accountIDs, day.AddDays(1))
}

const sumByType = `
SELECT t.account_id, t.type_id, COALESCE(SUM(t.account_amount), 0) FROM transactions t
WHERE t.account_id IN (%s) AND t.date >= ? AND t.date <= ? AND t.type_id IN (1, 2)
GROUP BY t.account_id, t.type_id`

// SumByType returns income and expense sums per account for the period.
func (q *Queries) SumByType(ctx context.Context, accountIDs []string, p core.Period) ([]TypeTotal, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	in, args := inClause(accountIDs)
	start, end := periodBounds(p)
	args = append(args, start, end)
	rows, err := q.db.QueryContext(ctx, fmt.Sprintf(sumByType, in), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TypeTotal
	for rows.Next() {
		var it TypeTotal
		if err := rows.Scan(&it.AccountID, &it.TypeID, &it.Total); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const seriesBuckets = `
SELECT t.account_id, %s AS bucket, COALESCE(SUM(t.account_amount), 0) FROM transactions t
WHERE t.account_id IN (%s) AND t.date >= ? AND t.date <= ?
GROUP BY t.account_id, bucket
ORDER BY bucket`

// bucketExpr returns the SQL expression that maps t.date to the start of
// its bucket, with the arguments it needs.
func bucketExpr(interval core.Interval, origin core.Date) (string, []interface{}) {
	if n := interval.Days(); n > 0 {
		o := origin.String()
		return `date(?, '+' || ((CAST(julianday(t.date) - julianday(?) AS INTEGER) / ?) * ?) || ' days')`,
			[]interface{}{o, o, n, n}
	}
	if interval == core.Interval1Month {
		return `strftime('%Y-%m-01', t.date)`, nil
	}
	return `strftime('%Y-01-01', t.date)`, nil
}

// SeriesBuckets sums each account's rows per chart bucket. Day-based
// buckets are counted from origin, which must not be after the period
// start.
func (q *Queries) SeriesBuckets(ctx context.Context, accountIDs []string, p core.Period, interval core.Interval, origin core.Date) ([]BucketTotal, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	expr, args := bucketExpr(interval, origin)
	in, idArgs := inClause(accountIDs)
	start, end := periodBounds(p)
	args = append(args, idArgs...)
	args = append(args, start, end)
	rows, err := q.db.QueryContext(ctx, fmt.Sprintf(seriesBuckets, expr, in), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BucketTotal
	for rows.Next() {
		var (
			it     BucketTotal
			bucket string
		)
		if err := rows.Scan(&it.AccountID, &bucket, &it.Total); err != nil {
			return nil, err
		}
		if it.Bucket, err = parseDate(bucket); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const categoryTotals = `
SELECT t.account_id, c.id, c.name, c.type_id, c.color, COALESCE(SUM(t.account_amount), 0)
FROM transactions t
JOIN transaction_categories c ON c.id = t.category_id
WHERE t.account_id IN (%s) AND t.date >= ? AND t.date <= ? AND t.type_id IN (1, 2)
GROUP BY t.account_id, c.id
ORDER BY c.type_id, c.name`

// CategoryTotals sums income and expense rows per account and category.
func (q *Queries) CategoryTotals(ctx context.Context, accountIDs []string, p core.Period) ([]CategoryTotalRow, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	in, args := inClause(accountIDs)
	start, end := periodBounds(p)
	args = append(args, start, end)
	rows, err := q.db.QueryContext(ctx, fmt.Sprintf(categoryTotals, in), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CategoryTotalRow
	for rows.Next() {
		var it CategoryTotalRow
		if err := rows.Scan(&it.AccountID, &it.CategoryID, &it.Name, &it.TypeID, &it.Color, &it.Total); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const dateBounds = `SELECT MIN(t.date), MAX(t.date) FROM transactions t WHERE t.account_id IN (%s)`

// DateBounds returns the first and last transaction day across the given
// accounts. Both are zero when there are no rows.
func (q *Queries) DateBounds(ctx context.Context, accountIDs []string) (core.Date, core.Date, error) {
	if len(accountIDs) == 0 {
		return core.Date{}, core.Date{}, nil
	}
	in, args := inClause(accountIDs)
	var lo, hi sql.NullString
	if err := q.db.QueryRowContext(ctx, fmt.Sprintf(dateBounds, in), args...).Scan(&lo, &hi); err != nil {
		return core.Date{}, core.Date{}, err
	}
	if !lo.Valid || !hi.Valid {
		return core.Date{}, core.Date{}, nil
	}
	first, err := parseDate(lo.String)
	if err != nil {
		return core.Date{}, core.Date{}, err
	}
	last, err := parseDate(hi.String)
	if err != nil {
		return core.Date{}, core.Date{}, err
	}
	return first, last, nil
}
