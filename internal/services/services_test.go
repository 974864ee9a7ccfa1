package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"walletize/internal/amqp"
	"walletize/internal/core"
	"walletize/internal/storage"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.TransactionEvent
}

func (p *recordingPublisher) PublishTransactionEvent(_ context.Context, e *amqp.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) last() *amqp.TransactionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return nil
	}
	return p.events[len(p.events)-1]
}

type fixture struct {
	repo       *storage.SQLiteRepository
	tx         *TransactionService
	reports    *ReportService
	accounts   *AccountService
	categories *CategoryService
	pub        *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "walletize.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	reports := NewReportService(repo, NewReportCache(100, time.Minute))
	reports.today = func() core.Date { return core.NewDate(2024, 6, 30) }
	pub := &recordingPublisher{}
	return &fixture{
		repo:       repo,
		tx:         NewTransactionService(repo, pub, reports),
		reports:    reports,
		accounts:   NewAccountService(repo, reports),
		categories: NewCategoryService(repo, reports),
		pub:        pub,
	}
}

func (f *fixture) user(t *testing.T, id string) Actor {
	t.Helper()
	actor := Actor{ID: id, Email: id + "@example.com"}
	_, err := f.accounts.EnsureUser(context.Background(), actor)
	require.NoError(t, err)
	return actor
}

func (f *fixture) account(t *testing.T, actor Actor, currency string) core.FinancialAccount {
	t.Helper()
	a, err := f.accounts.CreateAccount(context.Background(), actor, AccountInput{
		Name:         "Checking " + currency,
		CategoryID:   2,
		CurrencyID:   currency,
		InitialValue: amt(1000),
	})
	require.NoError(t, err)
	return a
}

func (f *fixture) category(t *testing.T, actor Actor, typ core.TransactionType) core.TransactionCategory {
	t.Helper()
	cats, err := f.categories.ListCategories(context.Background(), actor)
	require.NoError(t, err)
	for _, c := range cats {
		if c.UserID == actor.ID && c.TypeID == typ {
			return c
		}
	}
	t.Fatalf("no %s category for %s", typ, actor.ID)
	return core.TransactionCategory{}
}

func (f *fixture) post(t *testing.T, actor Actor, account core.FinancialAccount, category core.TransactionCategory, amount core.Amount, date string) core.Transaction {
	t.Helper()
	txs, err := f.tx.CreateTransaction(context.Background(), actor, CreateTransactionInput{
		AccountID:  account.ID,
		CategoryID: category.ID,
		CurrencyID: account.CurrencyID,
		Amount:     amount,
		Date:       day(date),
	})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	return txs[0]
}

func amt(major int64) core.Amount {
	return core.Amount(major * core.AmountScale)
}

func amtPtr(major int64) *core.Amount {
	a := amt(major)
	return &a
}

func day(s string) core.Date {
	d, err := core.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}
