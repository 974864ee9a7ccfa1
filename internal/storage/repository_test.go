package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"walletize/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "walletize.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedAccount(t *testing.T, q *Queries, userID, accountID, currency string) {
	t.Helper()
	ctx := context.Background()
	if _, err := q.GetUser(ctx, userID); errors.Is(err, core.ErrNotFound) {
		require.NoError(t, q.CreateUser(ctx, core.User{ID: userID, Email: userID + "@example.com", MainCurrencyID: "usd", CreatedAt: time.Now()}))
		require.NoError(t, q.CreateCategory(ctx, core.TransactionCategory{ID: userID + "-food", UserID: userID, TypeID: core.TypeExpense, Name: "Food"}))
		require.NoError(t, q.CreateCategory(ctx, core.TransactionCategory{ID: userID + "-salary", UserID: userID, TypeID: core.TypeIncome, Name: "Salary"}))
	}
	require.NoError(t, q.CreateAccount(ctx, core.FinancialAccount{
		ID: accountID, UserID: userID, Name: accountID, CategoryID: 2, CurrencyID: currency,
		InitialValue: 1000 * core.AmountScale, CreatedAt: time.Now(),
	}))
}

func tx(id, account, category string, typ core.TransactionType, amount core.Amount, date string) core.Transaction {
	d, _ := core.ParseDate(date)
	return core.Transaction{
		ID: id, AccountID: account, CategoryID: category, TypeID: typ, CurrencyID: "usd",
		Amount: amount, AccountAmount: amount, Date: d, CreatedAt: time.Now(),
	}
}

func TestMigrationsSeedReferenceData(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	currencies, err := repo.Queries().ListCurrencies(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(currencies), 5)

	snap, err := repo.Queries().LatestRates(ctx)
	require.NoError(t, err)
	assert.Equal(t, "USD", snap.Base)
	assert.True(t, snap.Rates["usd"].Equal(decimal.NewFromInt(1)))

	cat, err := repo.Queries().GetCategory(ctx, core.CategoryIncomingTransfer)
	require.NoError(t, err)
	assert.Equal(t, core.TypeTransfer, cat.TypeID)
	assert.Empty(t, cat.UserID)
}

func TestRateSnapshotsAreVersioned(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	err := repo.WithTx(ctx, func(q *Queries) error {
		id, err := q.InsertRateSnapshot(ctx, "USD", time.Now())
		if err != nil {
			return err
		}
		for code, r := range map[string]string{"USD": "1", "EUR": "0.95", "XXX": "3"} {
			if _, err := q.InsertRate(ctx, id, code, decimal.RequireFromString(r)); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	snap, err := repo.Queries().LatestRates(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Rates, 2, "unknown codes are skipped and old snapshot rows are not mixed in")
	assert.True(t, snap.Rates["eur"].Equal(decimal.RequireFromString("0.95")))
}

func TestCarryForwardRates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	q := repo.Queries()

	id, err := q.InsertRateSnapshot(ctx, "USD", time.Now())
	require.NoError(t, err)
	_, err = q.InsertRate(ctx, id, "EUR", decimal.RequireFromString("0.95"))
	require.NoError(t, err)

	n, err := q.CarryForwardRates(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 9, n)

	snap, err := q.LatestRates(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Rates, 10)
	assert.True(t, snap.Rates["eur"].Equal(decimal.RequireFromString("0.95")), "fresh rates win")
	assert.True(t, snap.Rates["gbp"].Equal(decimal.RequireFromString("0.78")))

	// A snapshot in another base cannot reuse USD-based rates.
	other, err := q.InsertRateSnapshot(ctx, "EUR", time.Now())
	require.NoError(t, err)
	_, err = q.InsertRate(ctx, other, "EUR", decimal.NewFromInt(1))
	require.NoError(t, err)
	n, err = q.CarryForwardRates(ctx, other)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWithTxRollsBack(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedAccount(t, repo.Queries(), "u1", "a1", "usd")

	boom := errors.New("boom")
	err := repo.WithTx(ctx, func(q *Queries) error {
		require.NoError(t, q.InsertTransaction(ctx, tx("t1", "a1", "u1-food", core.TypeExpense, -5, "2024-01-01")))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = repo.Queries().GetTransaction(ctx, "t1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestAggregations(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	q := repo.Queries()
	seedAccount(t, q, "u1", "a1", "usd")

	rows := []core.Transaction{
		tx("t1", "a1", "u1-food", core.TypeExpense, -100, "2024-01-01"),
		tx("t2", "a1", "u1-food", core.TypeExpense, -50, "2024-01-03"),
		tx("t3", "a1", "u1-salary", core.TypeIncome, 1000, "2024-01-08"),
		tx("t4", "a1", core.CategoryBalanceUpdate, core.TypeUpdate, 7, "2024-01-09"),
		tx("t5", "a1", "u1-food", core.TypeExpense, -1, "2024-02-01"),
	}
	for _, r := range rows {
		require.NoError(t, q.InsertTransaction(ctx, r))
	}

	jan, err := core.ParsePeriod("2024-01-01_2024-01-31")
	require.NoError(t, err)

	byType, err := q.SumByType(ctx, []string{"a1"}, jan)
	require.NoError(t, err)
	got := map[core.TransactionType]core.Amount{}
	for _, r := range byType {
		got[r.TypeID] = r.Total
	}
	assert.Equal(t, core.Amount(-150), got[core.TypeExpense])
	assert.Equal(t, core.Amount(1000), got[core.TypeIncome])
	assert.NotContains(t, got, core.TypeUpdate)

	before, err := q.SumBefore(ctx, []string{"a1"}, core.NewDate(2024, 1, 8))
	require.NoError(t, err)
	require.Len(t, before, 1)
	assert.Equal(t, core.Amount(-150), before[0].Total)

	buckets, err := q.SeriesBuckets(ctx, []string{"a1"}, jan, core.Interval1Week, jan.Start)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, "2024-01-01", buckets[0].Bucket.String())
	assert.Equal(t, core.Amount(-150), buckets[0].Total)
	assert.Equal(t, "2024-01-08", buckets[1].Bucket.String())
	assert.Equal(t, core.Amount(1007), buckets[1].Total)

	all := core.Period{}
	monthly, err := q.SeriesBuckets(ctx, []string{"a1"}, all, core.Interval1Month, core.NewDate(2024, 1, 1))
	require.NoError(t, err)
	require.Len(t, monthly, 2)
	assert.Equal(t, "2024-02-01", monthly[1].Bucket.String())

	cats, err := q.CategoryTotals(ctx, []string{"a1"}, jan)
	require.NoError(t, err)
	require.Len(t, cats, 2)

	page, err := q.ListTransactionsPage(ctx, []string{"a1"}, all, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "t5", page[0].ID)

	first, last, err := q.DateBounds(ctx, []string{"a1"})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", first.String())
	assert.Equal(t, "2024-02-01", last.String())
}

func TestDeleteRecurrenceFromDate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	q := repo.Queries()
	seedAccount(t, q, "u1", "a1", "usd")

	for i, day := range []string{"2024-01-01", "2024-02-01", "2024-03-01"} {
		r := tx("r"+string(rune('0'+i)), "a1", "u1-food", core.TypeExpense, -10, day)
		r.RecurrenceID = "series"
		require.NoError(t, q.InsertTransaction(ctx, r))
	}

	n, err := q.DeleteRecurrence(ctx, "series", core.NewDate(2024, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	left, err := q.ListRecurrence(ctx, "series", core.Date{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "2024-01-01", left[0].Date.String())
}

func TestDeletingAccountLeavesOneSidedTransfer(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	q := repo.Queries()
	seedAccount(t, q, "u1", "a1", "usd")
	seedAccount(t, q, "u1", "a2", "usd")

	origin := tx("o", "a1", core.CategoryOutgoingTransfer, core.TypeTransfer, -10, "2024-01-01")
	origin.TransferID = "tr"
	dest := tx("d", "a2", core.CategoryIncomingTransfer, core.TypeTransfer, 10, "2024-01-01")
	dest.TransferID = "tr"
	require.NoError(t, q.InsertTransaction(ctx, origin))
	require.NoError(t, q.InsertTransaction(ctx, dest))
	require.NoError(t, q.InsertTransfer(ctx, core.TransactionTransfer{ID: "tr", OriginTransactionID: "o", DestinationTransactionID: "d"}))

	require.NoError(t, q.DeleteAccount(ctx, "a1"))

	tr, err := q.GetTransfer(ctx, "tr")
	require.NoError(t, err)
	assert.Empty(t, tr.OriginTransactionID)
	assert.Equal(t, "d", tr.DestinationTransactionID)

	require.NoError(t, q.DeleteAccount(ctx, "a2"))
	_, err = q.GetTransfer(ctx, "tr")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestAcceptedInviteGrantsAccess(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	q := repo.Queries()
	seedAccount(t, q, "owner", "a1", "usd")

	require.NoError(t, q.CreateInvite(ctx, core.AccountInvite{
		ID: "inv", AccountID: "a1", OwnerID: "owner", Email: "Friend@Example.com",
		Status: core.InvitePending, CreatedAt: time.Now(),
	}))

	ok, err := q.HasAcceptedInvite(ctx, "a1", "friend", "friend@example.com")
	require.NoError(t, err)
	assert.False(t, ok, "pending invites grant nothing")

	require.NoError(t, q.CreateUser(ctx, core.User{ID: "friend", Email: "friend@example.com", MainCurrencyID: "eur", CreatedAt: time.Now()}))
	require.NoError(t, q.AcceptInvite(ctx, "inv", "friend"))
	ok, err = q.HasAcceptedInvite(ctx, "a1", "friend", "")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.ErrorIs(t, q.AcceptInvite(ctx, "inv", "friend"), core.ErrNotFound, "accepting twice is not a transition")
}
