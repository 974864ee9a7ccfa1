package storage

import (
	"context"
	"database/sql"
	"strings"

	"walletize/internal/core"
)

const getUserByEmail = `SELECT id, email, main_currency_id, created_at FROM users WHERE email = ?`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	var (
		u       core.User
		created string
	)
	err := q.db.QueryRowContext(ctx, getUserByEmail, strings.ToLower(email)).Scan(&u.ID, &u.Email, &u.MainCurrencyID, &created)
	if err != nil {
		return core.User{}, notFound(err)
	}
	u.CreatedAt = parseTime(created)
	return u, nil
}

const accountColumns = `a.id, a.user_id, a.name, a.category_id, a.currency_id, a.initial_value, a.icon, a.color, a.created_at`

func scanAccount(row interface{ Scan(...interface{}) error }) (core.FinancialAccount, error) {
	var (
		a       core.FinancialAccount
		created string
	)
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.CategoryID, &a.CurrencyID, &a.InitialValue, &a.Icon, &a.Color, &created)
	if err != nil {
		return core.FinancialAccount{}, err
	}
	a.CreatedAt = parseTime(created)
	return a, nil
}

const createAccount = `
INSERT INTO financial_accounts (id, user_id, name, category_id, currency_id, initial_value, icon, color, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateAccount(ctx context.Context, a core.FinancialAccount) error {
	_, err := q.db.ExecContext(ctx, createAccount,
		a.ID, a.UserID, a.Name, a.CategoryID, a.CurrencyID, int64(a.InitialValue), a.Icon, a.Color, formatTime(a.CreatedAt))
	return err
}

const getAccount = `SELECT ` + accountColumns + ` FROM financial_accounts a WHERE a.id = ?`

func (q *Queries) GetAccount(ctx context.Context, id string) (core.FinancialAccount, error) {
	a, err := scanAccount(q.db.QueryRowContext(ctx, getAccount, id))
	if err != nil {
		return core.FinancialAccount{}, notFound(err)
	}
	return a, nil
}

const updateAccount = `
UPDATE financial_accounts
SET name = ?, category_id = ?, currency_id = ?, initial_value = ?, icon = ?, color = ?
WHERE id = ?`

func (q *Queries) UpdateAccount(ctx context.Context, a core.FinancialAccount) error {
	res, err := q.db.ExecContext(ctx, updateAccount,
		a.Name, a.CategoryID, a.CurrencyID, int64(a.InitialValue), a.Icon, a.Color, a.ID)
	if err != nil {
		return err
	}
	return expectRow(res)
}

const deleteAccount = `DELETE FROM financial_accounts WHERE id = ?`

func (q *Queries) DeleteAccount(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, deleteAccount, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// Owned accounts plus accounts shared through an accepted invite bound to
// the user id or, for invites that predate the user, the email.
const listAccessibleAccounts = `
SELECT ` + accountColumns + ` FROM financial_accounts a
WHERE a.user_id = ?1
   OR a.id IN (
       SELECT i.account_id FROM account_invites i
       WHERE i.status = 'ACCEPTED' AND (i.user_id = ?1 OR i.email = ?2)
   )
ORDER BY a.created_at, a.id`

func (q *Queries) ListAccessibleAccounts(ctx context.Context, userID, email string) ([]core.FinancialAccount, error) {
	rows, err := q.db.QueryContext(ctx, listAccessibleAccounts, userID, strings.ToLower(email))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.FinancialAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

const countAccountTransactions = `SELECT COUNT(*) FROM transactions WHERE account_id = ?`

func (q *Queries) CountAccountTransactions(ctx context.Context, accountID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countAccountTransactions, accountID).Scan(&n)
	return n, err
}

const inviteColumns = `id, account_id, owner_id, email, user_id, status, created_at`

func scanInvite(row interface{ Scan(...interface{}) error }) (core.AccountInvite, error) {
	var (
		inv     core.AccountInvite
		userID  sql.NullString
		status  string
		created string
	)
	if err := row.Scan(&inv.ID, &inv.AccountID, &inv.OwnerID, &inv.Email, &userID, &status, &created); err != nil {
		return core.AccountInvite{}, err
	}
	inv.UserID = userID.String
	inv.Status = core.InviteStatus(status)
	inv.CreatedAt = parseTime(created)
	return inv, nil
}

const createInvite = `
INSERT INTO account_invites (id, account_id, owner_id, email, user_id, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateInvite(ctx context.Context, inv core.AccountInvite) error {
	_, err := q.db.ExecContext(ctx, createInvite,
		inv.ID, inv.AccountID, inv.OwnerID, strings.ToLower(inv.Email), nullString(inv.UserID), string(inv.Status), formatTime(inv.CreatedAt))
	return err
}

const getInvite = `SELECT ` + inviteColumns + ` FROM account_invites WHERE id = ?`

func (q *Queries) GetInvite(ctx context.Context, id string) (core.AccountInvite, error) {
	inv, err := scanInvite(q.db.QueryRowContext(ctx, getInvite, id))
	if err != nil {
		return core.AccountInvite{}, notFound(err)
	}
	return inv, nil
}

const listInvitesForUser = `
SELECT ` + inviteColumns + ` FROM account_invites
WHERE user_id = ?1 OR email = ?2
ORDER BY created_at`

func (q *Queries) ListInvitesForUser(ctx context.Context, userID, email string) ([]core.AccountInvite, error) {
	return q.listInvites(ctx, listInvitesForUser, userID, strings.ToLower(email))
}

const listAccountInvites = `SELECT ` + inviteColumns + ` FROM account_invites WHERE account_id = ? ORDER BY created_at`

func (q *Queries) ListAccountInvites(ctx context.Context, accountID string) ([]core.AccountInvite, error) {
	return q.listInvites(ctx, listAccountInvites, accountID)
}

func (q *Queries) listInvites(ctx context.Context, query string, args ...interface{}) ([]core.AccountInvite, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.AccountInvite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, inv)
	}
	return items, rows.Err()
}

const acceptInvite = `UPDATE account_invites SET status = 'ACCEPTED', user_id = ? WHERE id = ? AND status = 'PENDING'`

func (q *Queries) AcceptInvite(ctx context.Context, id, userID string) error {
	res, err := q.db.ExecContext(ctx, acceptInvite, userID, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

const deleteInvite = `DELETE FROM account_invites WHERE id = ?`

func (q *Queries) DeleteInvite(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, deleteInvite, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

const hasAcceptedInvite = `
SELECT EXISTS (
    SELECT 1 FROM account_invites
    WHERE account_id = ?1 AND status = 'ACCEPTED' AND (user_id = ?2 OR email = ?3)
)`

func (q *Queries) HasAcceptedInvite(ctx context.Context, accountID, userID, email string) (bool, error) {
	var ok bool
	err := q.db.QueryRowContext(ctx, hasAcceptedInvite, accountID, userID, strings.ToLower(email)).Scan(&ok)
	return ok, err
}

const bindInvitesToUser = `UPDATE account_invites SET user_id = ? WHERE email = ? AND user_id IS NULL`

// BindInvitesToUser attaches invites sent to an email before that user
// existed.
func (q *Queries) BindInvitesToUser(ctx context.Context, userID, email string) error {
	_, err := q.db.ExecContext(ctx, bindInvitesToUser, userID, strings.ToLower(email))
	return err
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
