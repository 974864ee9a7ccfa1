package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"walletize/internal/core"

	"github.com/shopspring/decimal"
)

const createUser = `INSERT INTO users (id, email, main_currency_id, created_at) VALUES (?, ?, ?, ?)`

func (q *Queries) CreateUser(ctx context.Context, u core.User) error {
	_, err := q.db.ExecContext(ctx, createUser, u.ID, strings.ToLower(u.Email), u.MainCurrencyID, formatTime(u.CreatedAt))
	return err
}

const getUser = `SELECT id, email, main_currency_id, created_at FROM users WHERE id = ?`

func (q *Queries) GetUser(ctx context.Context, id string) (core.User, error) {
	var (
		u       core.User
		created string
	)
	err := q.db.QueryRowContext(ctx, getUser, id).Scan(&u.ID, &u.Email, &u.MainCurrencyID, &created)
	if err != nil {
		return core.User{}, notFound(err)
	}
	u.CreatedAt = parseTime(created)
	return u, nil
}

const updateUserMainCurrency = `UPDATE users SET main_currency_id = ? WHERE id = ?`

func (q *Queries) UpdateUserMainCurrency(ctx context.Context, userID, currencyID string) error {
	_, err := q.db.ExecContext(ctx, updateUserMainCurrency, currencyID, userID)
	return err
}

const listCurrencies = `SELECT id, code, symbol FROM currencies ORDER BY code`

func (q *Queries) ListCurrencies(ctx context.Context) ([]core.Currency, error) {
	rows, err := q.db.QueryContext(ctx, listCurrencies)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.Currency
	for rows.Next() {
		var c core.Currency
		if err := rows.Scan(&c.ID, &c.Code, &c.Symbol); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const getCurrency = `SELECT id, code, symbol FROM currencies WHERE id = ?`

func (q *Queries) GetCurrency(ctx context.Context, id string) (core.Currency, error) {
	var c core.Currency
	if err := q.db.QueryRowContext(ctx, getCurrency, id).Scan(&c.ID, &c.Code, &c.Symbol); err != nil {
		return core.Currency{}, notFound(err)
	}
	return c, nil
}

const insertRateSnapshot = `INSERT INTO currency_rate_snapshots (base, fetched_at) VALUES (?, ?)`

func (q *Queries) InsertRateSnapshot(ctx context.Context, base string, fetchedAt time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertRateSnapshot, base, formatTime(fetchedAt))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Codes unknown to the currencies table are skipped.
const insertRate = `
INSERT INTO currency_rates (snapshot_id, currency_id, rate)
SELECT ?, id, ? FROM currencies WHERE code = ?`

func (q *Queries) InsertRate(ctx context.Context, snapshotID int64, code string, rate decimal.Decimal) (bool, error) {
	res, err := q.db.ExecContext(ctx, insertRate, snapshotID, rate.String(), strings.ToUpper(code))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Copies the rates of the snapshot preceding ? that ? does not have yet,
// when both snapshots share a base.
const carryForwardRates = `
INSERT INTO currency_rates (snapshot_id, currency_id, rate)
SELECT cur.id, prev.currency_id, prev.rate
FROM currency_rate_snapshots cur
JOIN currency_rate_snapshots ps
  ON ps.id = (SELECT MAX(id) FROM currency_rate_snapshots WHERE id < cur.id)
 AND ps.base = cur.base
JOIN currency_rates prev ON prev.snapshot_id = ps.id
WHERE cur.id = ?
  AND prev.currency_id NOT IN (SELECT currency_id FROM currency_rates WHERE snapshot_id = cur.id)`

// CarryForwardRates fills snapshotID with the previous snapshot's rates for
// the currencies it lacks and returns how many were copied.
func (q *Queries) CarryForwardRates(ctx context.Context, snapshotID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, carryForwardRates, snapshotID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const latestSnapshot = `SELECT id, base, fetched_at FROM currency_rate_snapshots ORDER BY id DESC LIMIT 1`

const snapshotRates = `SELECT currency_id, rate FROM currency_rates WHERE snapshot_id = ?`

// LatestRates returns the newest snapshot keyed by currency id. Every rate
// comes from that single snapshot.
func (q *Queries) LatestRates(ctx context.Context) (core.RateSnapshot, error) {
	var (
		snap    core.RateSnapshot
		fetched string
	)
	if err := q.db.QueryRowContext(ctx, latestSnapshot).Scan(&snap.ID, &snap.Base, &fetched); err != nil {
		return core.RateSnapshot{}, notFound(err)
	}
	snap.FetchedAt = parseTime(fetched)

	rows, err := q.db.QueryContext(ctx, snapshotRates, snap.ID)
	if err != nil {
		return core.RateSnapshot{}, err
	}
	defer rows.Close()
	snap.Rates = make(map[string]decimal.Decimal)
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return core.RateSnapshot{}, err
		}
		r, err := decimal.NewFromString(raw)
		if err != nil {
			return core.RateSnapshot{}, fmt.Errorf("snapshot %d rate for %s: %w", snap.ID, id, err)
		}
		snap.Rates[id] = r
	}
	return snap, rows.Err()
}

const listAccountCategories = `SELECT id, name, liability FROM account_categories ORDER BY id`

func (q *Queries) ListAccountCategories(ctx context.Context) ([]core.AccountCategory, error) {
	rows, err := q.db.QueryContext(ctx, listAccountCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.AccountCategory
	for rows.Next() {
		var c core.AccountCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.Liability); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}
