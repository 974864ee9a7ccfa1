package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"walletize/internal/amqp"
	"walletize/internal/core"
	"walletize/internal/storage"
)

// EventPublisher publishes committed transaction mutations.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, event *amqp.TransactionEvent) error
}

// Invalidator drops cached reads that depend on the given accounts.
type Invalidator interface {
	InvalidateAccounts(accountIDs []string)
}

// TransactionService is the posting engine. Every multi-row mutation runs
// in a single database transaction; events and cache invalidation happen
// after commit.
type TransactionService struct {
	repo        *storage.SQLiteRepository
	publisher   EventPublisher
	invalidator Invalidator
	now         func() time.Time
}

func NewTransactionService(repo *storage.SQLiteRepository, publisher EventPublisher, invalidator Invalidator) *TransactionService {
	return &TransactionService{
		repo:        repo,
		publisher:   publisher,
		invalidator: invalidator,
		now:         time.Now,
	}
}

type CreateTransactionInput struct {
	AccountID         string
	CategoryID        string
	CurrencyID        string
	Amount            core.Amount
	Date              core.Date
	Description       string
	Rate              *core.ManualRate
	Recurrence        core.Recurrence
	RecurrenceEndDate core.Date
}

type TransferInput struct {
	OriginAccountID      string
	DestinationAccountID string
	CurrencyID           string
	Amount               core.Amount
	Date                 core.Date
	Description          string
	Rate                 *core.ManualRate
	// CategoryID and TypeID optionally show one side as a real expense
	// (origin) or income (destination).
	CategoryID string
	TypeID     core.TransactionType
}

// BalanceUpdateInput posts either a delta (Amount) or a target account
// value (NewValue, in account currency). Exactly one must be set.
type BalanceUpdateInput struct {
	AccountID   string
	CurrencyID  string
	Date        core.Date
	Description string
	Amount      *core.Amount
	NewValue    *core.Amount
	Rate        *core.ManualRate
}

// EditTransactionInput replaces the editable fields of a row. Empty ids
// and a zero date keep the stored value.
type EditTransactionInput struct {
	CategoryID  string
	CurrencyID  string
	Amount      *core.Amount
	Date        core.Date
	Description *string
	Rate        *core.ManualRate
}

func validateDescription(s string) error {
	if len(s) > 200 {
		return fmt.Errorf("%w: description too long (max 200 characters)", core.ErrInvalidInput)
	}
	return nil
}

// CreateTransaction posts an expense or income, expanding a recurrence
// preset into one row per occurrence sharing a fresh recurrence id.
func (s *TransactionService) CreateTransaction(ctx context.Context, actor Actor, in CreateTransactionInput) ([]core.Transaction, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if in.Date.IsZero() || in.AccountID == "" || in.CategoryID == "" || in.CurrencyID == "" {
		return nil, fmt.Errorf("create transaction: %w", core.ErrInvalidInput)
	}
	if err := validateDescription(in.Description); err != nil {
		return nil, err
	}

	var posted []core.Transaction
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		auth := NewAuthorizer(q)
		category, err := auth.Category(ctx, actor, in.CategoryID)
		if err != nil {
			return err
		}
		if !category.TypeID.UserEditable() {
			return fmt.Errorf("category %s is reserved: %w", category.ID, core.ErrInvalidInput)
		}
		account, err := auth.Account(ctx, actor, in.AccountID)
		if err != nil {
			return err
		}
		rate, err := resolveRate(ctx, q, account.CurrencyID, in.CurrencyID, in.Rate)
		if err != nil {
			return err
		}

		dates, err := core.ExpandRecurrence(in.Recurrence, in.Date, in.RecurrenceEndDate)
		if err != nil {
			return err
		}
		if len(dates) == 0 {
			return fmt.Errorf("%w: %s has no occurrence between %s and %s",
				core.ErrInvalidInput, in.Recurrence, in.Date, in.RecurrenceEndDate)
		}
		recurrenceID := ""
		if in.Recurrence.IsSeries() {
			recurrenceID = uuid.NewString()
		}

		amount := in.Amount.Signed(category.TypeID)
		now := s.now()
		posted = make([]core.Transaction, 0, len(dates))
		for _, d := range dates {
			t := core.Transaction{
				ID:            uuid.NewString(),
				AccountID:     account.ID,
				CategoryID:    category.ID,
				TypeID:        category.TypeID,
				CurrencyID:    in.CurrencyID,
				Amount:        amount,
				AccountAmount: core.ConvertToAccount(amount, rate),
				Rate:          rate,
				Date:          d,
				Description:   strings.TrimSpace(in.Description),
				RecurrenceID:  recurrenceID,
				CreatedAt:     now,
			}
			if err := q.InsertTransaction(ctx, t); err != nil {
				return fmt.Errorf("insert transaction: %w", err)
			}
			posted = append(posted, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Transactions posted",
		"account_id", in.AccountID,
		"count", len(posted),
		"recurrence", in.Recurrence)

	s.afterCommit(ctx, amqp.EventPosted, actor, posted)
	return posted, nil
}

// CreateTransfer posts up to two rows (origin outflow, destination inflow)
// and the record pairing them. A missing side is money moving in or out of
// the tracked accounts.
func (s *TransactionService) CreateTransfer(ctx context.Context, actor Actor, in TransferInput) ([]core.Transaction, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if in.OriginAccountID == "" && in.DestinationAccountID == "" {
		return nil, fmt.Errorf("transfer needs an origin or a destination: %w", core.ErrInvalidInput)
	}
	if in.OriginAccountID == in.DestinationAccountID {
		return nil, fmt.Errorf("transfer to the same account: %w", core.ErrInvalidInput)
	}
	if in.Date.IsZero() || in.CurrencyID == "" || in.Amount == 0 {
		return nil, fmt.Errorf("create transfer: %w", core.ErrInvalidInput)
	}
	if err := validateDescription(in.Description); err != nil {
		return nil, err
	}

	var posted []core.Transaction
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		auth := NewAuthorizer(q)

		var origin, destination *core.FinancialAccount
		if in.OriginAccountID != "" {
			a, err := auth.Account(ctx, actor, in.OriginAccountID)
			if err != nil {
				return err
			}
			origin = &a
		}
		if in.DestinationAccountID != "" {
			a, err := auth.Account(ctx, actor, in.DestinationAccountID)
			if err != nil {
				return err
			}
			destination = &a
		}
		if _, err := q.GetCurrency(ctx, in.CurrencyID); err != nil {
			return fmt.Errorf("currency %s: %w", in.CurrencyID, err)
		}

		originCategory := core.TransactionCategory{ID: core.CategoryOutgoingTransfer, TypeID: core.TypeTransfer}
		destinationCategory := core.TransactionCategory{ID: core.CategoryIncomingTransfer, TypeID: core.TypeTransfer}
		if in.CategoryID != "" && in.TypeID.UserEditable() {
			c, err := auth.Category(ctx, actor, in.CategoryID)
			if err != nil {
				return err
			}
			if c.TypeID != in.TypeID {
				return fmt.Errorf("category %s is not of type %s: %w", c.ID, in.TypeID, core.ErrInvalidInput)
			}
			switch {
			case in.TypeID == core.TypeExpense && origin != nil:
				originCategory = c
			case in.TypeID == core.TypeIncome && destination != nil:
				destinationCategory = c
			}
		}

		// Rates are resolved once per distinct account currency so two
		// accounts sharing a currency store the same rate.
		rates := make(map[string]*decimal.Decimal)
		rateFor := func(accountCurrency string) (*decimal.Decimal, error) {
			if r, ok := rates[accountCurrency]; ok {
				return r, nil
			}
			r, err := resolveRate(ctx, q, accountCurrency, in.CurrencyID, in.Rate)
			if err != nil {
				return nil, err
			}
			rates[accountCurrency] = r
			return r, nil
		}

		transfer := core.TransactionTransfer{ID: uuid.NewString()}
		magnitude := in.Amount.Abs()
		now := s.now()
		side := func(account *core.FinancialAccount, category core.TransactionCategory, amount core.Amount) (core.Transaction, error) {
			rate, err := rateFor(account.CurrencyID)
			if err != nil {
				return core.Transaction{}, err
			}
			t := core.Transaction{
				ID:            uuid.NewString(),
				AccountID:     account.ID,
				CategoryID:    category.ID,
				TypeID:        category.TypeID,
				CurrencyID:    in.CurrencyID,
				Amount:        amount,
				AccountAmount: core.ConvertToAccount(amount, rate),
				Rate:          rate,
				Date:          in.Date,
				Description:   strings.TrimSpace(in.Description),
				TransferID:    transfer.ID,
				CreatedAt:     now,
			}
			if err := q.InsertTransaction(ctx, t); err != nil {
				return core.Transaction{}, fmt.Errorf("insert transfer side: %w", err)
			}
			return t, nil
		}

		if origin != nil {
			t, err := side(origin, originCategory, -magnitude)
			if err != nil {
				return err
			}
			transfer.OriginTransactionID = t.ID
			posted = append(posted, t)
		}
		if destination != nil {
			t, err := side(destination, destinationCategory, magnitude)
			if err != nil {
				return err
			}
			transfer.DestinationTransactionID = t.ID
			posted = append(posted, t)
		}
		if err := q.InsertTransfer(ctx, transfer); err != nil {
			return fmt.Errorf("insert transfer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Transfer posted",
		"origin_account_id", in.OriginAccountID,
		"destination_account_id", in.DestinationAccountID)

	s.afterCommit(ctx, amqp.EventPosted, actor, posted)
	return posted, nil
}

// CreateBalanceUpdate posts a reconciliation row. With NewValue the delta
// is computed from the account's current value inside the same database
// transaction; concurrent requests against the same account are not
// serialised beyond that.
func (s *TransactionService) CreateBalanceUpdate(ctx context.Context, actor Actor, in BalanceUpdateInput) (core.Transaction, error) {
	if err := actor.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if (in.Amount == nil) == (in.NewValue == nil) {
		return core.Transaction{}, fmt.Errorf("exactly one of amount or newValue is required: %w", core.ErrInvalidInput)
	}
	if in.Date.IsZero() || in.AccountID == "" || in.CurrencyID == "" {
		return core.Transaction{}, fmt.Errorf("create balance update: %w", core.ErrInvalidInput)
	}
	if err := validateDescription(in.Description); err != nil {
		return core.Transaction{}, err
	}

	var posted core.Transaction
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		account, err := NewAuthorizer(q).Account(ctx, actor, in.AccountID)
		if err != nil {
			return err
		}
		rate, err := resolveRate(ctx, q, account.CurrencyID, in.CurrencyID, in.Rate)
		if err != nil {
			return err
		}

		var amount, accountAmount core.Amount
		if in.Amount != nil {
			amount = *in.Amount
			accountAmount = core.ConvertToAccount(amount, rate)
		} else {
			current, err := accountValue(ctx, q, account, core.Date{})
			if err != nil {
				return err
			}
			accountAmount = *in.NewValue - current
			amount = core.ConvertFromAccount(accountAmount, rate)
		}

		posted = core.Transaction{
			ID:            uuid.NewString(),
			AccountID:     account.ID,
			CategoryID:    core.CategoryBalanceUpdate,
			TypeID:        core.TypeUpdate,
			CurrencyID:    in.CurrencyID,
			Amount:        amount,
			AccountAmount: accountAmount,
			Rate:          rate,
			Date:          in.Date,
			Description:   strings.TrimSpace(in.Description),
			CreatedAt:     s.now(),
		}
		if err := q.InsertTransaction(ctx, posted); err != nil {
			return fmt.Errorf("insert balance update: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Balance update posted",
		"account_id", posted.AccountID,
		"account_amount", posted.AccountAmount.String())

	s.afterCommit(ctx, amqp.EventPosted, actor, []core.Transaction{posted})
	return posted, nil
}

// EditTransaction replaces a row's editable fields. When the row is one
// side of a transfer the counterpart follows: same date, description,
// currency and rate, with the amount negated.
func (s *TransactionService) EditTransaction(ctx context.Context, actor Actor, id string, in EditTransactionInput) ([]core.Transaction, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if in.Description != nil {
		if err := validateDescription(*in.Description); err != nil {
			return nil, err
		}
	}

	var edited []core.Transaction
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		auth := NewAuthorizer(q)
		t, err := q.GetTransaction(ctx, id)
		if err != nil {
			return fmt.Errorf("transaction %s: %w", id, err)
		}
		account, err := auth.Account(ctx, actor, t.AccountID)
		if err != nil {
			return err
		}

		var transfer *core.TransactionTransfer
		if t.TransferID != "" {
			tr, err := q.GetTransfer(ctx, t.TransferID)
			switch {
			case err == nil:
				transfer = &tr
			case !errors.Is(err, core.ErrNotFound):
				return fmt.Errorf("transfer %s: %w", t.TransferID, err)
			}
		}

		if in.CategoryID != "" && in.CategoryID != t.CategoryID {
			c, err := auth.Category(ctx, actor, in.CategoryID)
			if err != nil {
				return err
			}
			if !compatibleCategory(t, c) {
				return fmt.Errorf("category %s cannot replace %s: %w", c.ID, t.CategoryID, core.ErrInvalidInput)
			}
			t.CategoryID = c.ID
			t.TypeID = c.TypeID
		}

		currencyChanged := in.CurrencyID != "" && in.CurrencyID != t.CurrencyID
		if currencyChanged {
			t.CurrencyID = in.CurrencyID
		}
		if currencyChanged || in.Rate != nil {
			if t.Rate, err = resolveRate(ctx, q, account.CurrencyID, t.CurrencyID, in.Rate); err != nil {
				return err
			}
		}
		if !in.Date.IsZero() {
			t.Date = in.Date
		}
		if in.Description != nil {
			t.Description = strings.TrimSpace(*in.Description)
		}

		amount := t.Amount
		if in.Amount != nil {
			amount = *in.Amount
		}
		t.Amount = signForRow(t, transfer, amount)
		t.AccountAmount = core.ConvertToAccount(t.Amount, t.Rate)
		if err := q.UpdateTransaction(ctx, t); err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		edited = append(edited, t)

		if transfer == nil {
			return nil
		}
		otherID := transfer.Other(t.ID)
		if otherID == "" {
			return nil
		}
		other, err := q.GetTransaction(ctx, otherID)
		if err != nil {
			return fmt.Errorf("transfer counterpart %s: %w", otherID, err)
		}
		otherAccount, err := q.GetAccount(ctx, other.AccountID)
		if err != nil {
			return fmt.Errorf("transfer counterpart account: %w", err)
		}
		otherCurrencyChanged := other.CurrencyID != t.CurrencyID
		other.CurrencyID = t.CurrencyID
		if otherCurrencyChanged || in.Rate != nil {
			if other.Rate, err = resolveRate(ctx, q, otherAccount.CurrencyID, other.CurrencyID, in.Rate); err != nil {
				return err
			}
		}
		other.Date = t.Date
		other.Description = t.Description
		other.Amount = -t.Amount
		other.AccountAmount = core.ConvertToAccount(other.Amount, other.Rate)
		if err := q.UpdateTransaction(ctx, other); err != nil {
			return fmt.Errorf("update transfer counterpart: %w", err)
		}
		edited = append(edited, other)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Transaction edited", "id", id, "rows", len(edited))

	s.afterCommit(ctx, amqp.EventEdited, actor, edited)
	return edited, nil
}

// DeleteTransaction removes a row. Transfer sides take their counterpart
// and pairing record with them; recurring rows honour deleteType.
func (s *TransactionService) DeleteTransaction(ctx context.Context, actor Actor, id string, deleteType core.DeleteType) ([]core.Transaction, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if deleteType == "" {
		deleteType = core.DeleteThis
	}

	var removed []core.Transaction
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		t, err := q.GetTransaction(ctx, id)
		if err != nil {
			return fmt.Errorf("transaction %s: %w", id, err)
		}
		if _, err := NewAuthorizer(q).Account(ctx, actor, t.AccountID); err != nil {
			return err
		}

		switch {
		case t.TransferID != "":
			removed, err = deleteTransferPair(ctx, q, t)
			return err

		case t.RecurrenceID != "" && deleteType != core.DeleteThis:
			from := t.Date
			if deleteType == core.DeleteAll {
				from = core.Date{}
			}
			if removed, err = q.ListRecurrence(ctx, t.RecurrenceID, from); err != nil {
				return fmt.Errorf("list recurrence: %w", err)
			}
			if _, err := q.DeleteRecurrence(ctx, t.RecurrenceID, from); err != nil {
				return fmt.Errorf("delete recurrence: %w", err)
			}
			return nil

		default:
			if err := q.DeleteTransaction(ctx, t.ID); err != nil {
				return fmt.Errorf("delete transaction: %w", err)
			}
			removed = []core.Transaction{t}
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Transactions deleted",
		"id", id,
		"delete_type", deleteType,
		"rows", len(removed))

	s.afterCommit(ctx, amqp.EventDeleted, actor, removed)
	return removed, nil
}

func deleteTransferPair(ctx context.Context, q *storage.Queries, t core.Transaction) ([]core.Transaction, error) {
	removed := []core.Transaction{t}
	tr, err := q.GetTransfer(ctx, t.TransferID)
	switch {
	case errors.Is(err, core.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("transfer %s: %w", t.TransferID, err)
	default:
		if err := q.DeleteTransfer(ctx, tr.ID); err != nil {
			return nil, fmt.Errorf("delete transfer: %w", err)
		}
		if otherID := tr.Other(t.ID); otherID != "" {
			other, err := q.GetTransaction(ctx, otherID)
			if err != nil && !errors.Is(err, core.ErrNotFound) {
				return nil, fmt.Errorf("transfer counterpart %s: %w", otherID, err)
			}
			if err == nil {
				if err := q.DeleteTransaction(ctx, other.ID); err != nil {
					return nil, fmt.Errorf("delete transfer counterpart: %w", err)
				}
				removed = append(removed, other)
			}
		}
	}
	if err := q.DeleteTransaction(ctx, t.ID); err != nil {
		return nil, fmt.Errorf("delete transaction: %w", err)
	}
	return removed, nil
}

// compatibleCategory reports whether c may replace the category of t.
// Expense and income rows (including transfer sides shown as such) switch
// freely between user categories; reserved rows keep their type.
func compatibleCategory(t core.Transaction, c core.TransactionCategory) bool {
	if c.TypeID.UserEditable() {
		return t.TypeID.UserEditable() || t.TransferID != ""
	}
	if t.TransferID != "" {
		return c.TypeID == core.TypeTransfer
	}
	return c.TypeID == t.TypeID
}

// signForRow applies the sign rule of the row: transfer origins are
// outflows, destinations inflows, expense and income follow their type and
// balance updates keep the given sign.
func signForRow(t core.Transaction, transfer *core.TransactionTransfer, amount core.Amount) core.Amount {
	if transfer != nil {
		if transfer.OriginTransactionID == t.ID {
			return -amount.Abs()
		}
		return amount.Abs()
	}
	return amount.Signed(t.TypeID)
}

// resolveRate resolves the rate of a transaction in txCurrency posted to
// an account held in accountCurrency, reading the latest rate snapshot
// when no manual rate is given.
func resolveRate(ctx context.Context, q *storage.Queries, accountCurrency, txCurrency string, manual *core.ManualRate) (*decimal.Decimal, error) {
	if _, err := q.GetCurrency(ctx, txCurrency); err != nil {
		return nil, fmt.Errorf("currency %s: %w", txCurrency, err)
	}
	in := core.RateInput{
		AccountCurrency:     accountCurrency,
		TransactionCurrency: txCurrency,
		Manual:              manual,
	}
	if accountCurrency != txCurrency && manual == nil {
		snap, err := q.LatestRates(ctx)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return nil, core.ErrRateUnavailable
			}
			return nil, fmt.Errorf("latest rates: %w", err)
		}
		in.AccountRate = snap.Rates[accountCurrency]
		in.TransactionRate = snap.Rates[txCurrency]
	}
	rate, err := core.ResolveRate(in)
	if err != nil {
		return nil, fmt.Errorf("resolve %s/%s rate: %w", txCurrency, accountCurrency, err)
	}
	return rate, nil
}

// accountValue is initial value plus every row strictly before before (all
// rows for a zero date), in account currency.
func accountValue(ctx context.Context, q *storage.Queries, account core.FinancialAccount, before core.Date) (core.Amount, error) {
	sums, err := q.SumBefore(ctx, []string{account.ID}, before)
	if err != nil {
		return 0, fmt.Errorf("account value: %w", err)
	}
	value := account.InitialValue
	for _, s := range sums {
		value += s.Total
	}
	return value, nil
}

func (s *TransactionService) afterCommit(ctx context.Context, kind amqp.EventKind, actor Actor, txs []core.Transaction) {
	if len(txs) == 0 {
		return
	}
	event := amqp.NewTransactionEvent(kind, actor.ID, txs)
	if s.invalidator != nil {
		s.invalidator.InvalidateAccounts(event.AccountIDs)
	}
	if s.publisher == nil {
		slog.DebugContext(ctx, "Event publisher not configured, skipping transaction event", "kind", kind)
		return
	}
	if err := s.publisher.PublishTransactionEvent(ctx, event); err != nil {
		// The rows are committed; the ledger mirror is best effort.
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"kind", kind, "error", err)
	}
}
