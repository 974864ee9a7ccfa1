package storage

import (
	"context"
	"database/sql"
	"time"

	"walletize/internal/core"
)

const categoryColumns = `id, user_id, type_id, name, icon, color`

func scanCategory(row interface{ Scan(...interface{}) error }) (core.TransactionCategory, error) {
	var (
		c      core.TransactionCategory
		userID sql.NullString
	)
	if err := row.Scan(&c.ID, &userID, &c.TypeID, &c.Name, &c.Icon, &c.Color); err != nil {
		return core.TransactionCategory{}, err
	}
	c.UserID = userID.String
	return c, nil
}

const createCategory = `
INSERT INTO transaction_categories (id, user_id, type_id, name, icon, color, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateCategory(ctx context.Context, c core.TransactionCategory) error {
	_, err := q.db.ExecContext(ctx, createCategory,
		c.ID, nullString(c.UserID), int(c.TypeID), c.Name, c.Icon, c.Color, formatTime(time.Now()))
	return err
}

const getCategory = `SELECT ` + categoryColumns + ` FROM transaction_categories WHERE id = ?`

func (q *Queries) GetCategory(ctx context.Context, id string) (core.TransactionCategory, error) {
	c, err := scanCategory(q.db.QueryRowContext(ctx, getCategory, id))
	if err != nil {
		return core.TransactionCategory{}, notFound(err)
	}
	return c, nil
}

const updateCategory = `UPDATE transaction_categories SET name = ?, icon = ?, color = ? WHERE id = ?`

func (q *Queries) UpdateCategory(ctx context.Context, c core.TransactionCategory) error {
	res, err := q.db.ExecContext(ctx, updateCategory, c.Name, c.Icon, c.Color, c.ID)
	if err != nil {
		return err
	}
	return expectRow(res)
}

const deleteCategory = `DELETE FROM transaction_categories WHERE id = ?`

func (q *Queries) DeleteCategory(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, deleteCategory, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// System categories (user_id NULL) are listed for everyone.
const listCategories = `
SELECT ` + categoryColumns + ` FROM transaction_categories
WHERE user_id = ? OR user_id IS NULL
ORDER BY type_id, created_at, name`

func (q *Queries) ListCategories(ctx context.Context, userID string) ([]core.TransactionCategory, error) {
	rows, err := q.db.QueryContext(ctx, listCategories, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []core.TransactionCategory
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const countUserCategoriesByType = `SELECT COUNT(*) FROM transaction_categories WHERE user_id = ? AND type_id = ?`

func (q *Queries) CountUserCategoriesByType(ctx context.Context, userID string, t core.TransactionType) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countUserCategoriesByType, userID, int(t)).Scan(&n)
	return n, err
}

const firstOtherCategory = `
SELECT ` + categoryColumns + ` FROM transaction_categories
WHERE user_id = ? AND type_id = ? AND id <> ?
ORDER BY created_at, id
LIMIT 1`

// FirstOtherCategory returns the user's oldest category of type t other
// than excludeID.
func (q *Queries) FirstOtherCategory(ctx context.Context, userID string, t core.TransactionType, excludeID string) (core.TransactionCategory, error) {
	c, err := scanCategory(q.db.QueryRowContext(ctx, firstOtherCategory, userID, int(t), excludeID))
	if err != nil {
		return core.TransactionCategory{}, notFound(err)
	}
	return c, nil
}

const reassignCategory = `UPDATE transactions SET category_id = ? WHERE category_id = ?`

func (q *Queries) ReassignCategory(ctx context.Context, fromID, toID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, reassignCategory, toID, fromID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
