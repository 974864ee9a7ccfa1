package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"walletize/internal/core"
	"walletize/internal/storage"
)

// DefaultCurrencyID is the main currency of newly seen users.
const DefaultCurrencyID = "usd"

// ScopeInvalidator extends Invalidator with the cache scopes that depend
// on who can see which accounts.
type ScopeInvalidator interface {
	Invalidator
	InvalidateUser(userID string)
	InvalidateAll()
}

var defaultCategories = []core.TransactionCategory{
	{TypeID: core.TypeExpense, Name: "Food", Icon: "utensils", Color: "#f97316"},
	{TypeID: core.TypeExpense, Name: "Housing", Icon: "home", Color: "#0ea5e9"},
	{TypeID: core.TypeExpense, Name: "Transport", Icon: "car", Color: "#8b5cf6"},
	{TypeID: core.TypeExpense, Name: "Other", Icon: "circle", Color: "#64748b"},
	{TypeID: core.TypeIncome, Name: "Salary", Icon: "briefcase", Color: "#22c55e"},
	{TypeID: core.TypeIncome, Name: "Other income", Icon: "plus", Color: "#14b8a6"},
}

// AccountService manages users, financial accounts and account invites.
type AccountService struct {
	repo        *storage.SQLiteRepository
	invalidator ScopeInvalidator
	now         func() time.Time
}

func NewAccountService(repo *storage.SQLiteRepository, invalidator ScopeInvalidator) *AccountService {
	return &AccountService{
		repo:        repo,
		invalidator: invalidator,
		now:         time.Now,
	}
}

// EnsureUser returns the actor's user record, creating it on first sight
// with the default categories. Invites sent to the actor's email before
// the user existed are bound to the new id.
func (s *AccountService) EnsureUser(ctx context.Context, actor Actor) (core.User, error) {
	if err := actor.Validate(); err != nil {
		return core.User{}, err
	}
	q := s.repo.Queries()
	if u, err := q.GetUser(ctx, actor.ID); err == nil {
		return u, nil
	} else if !errors.Is(err, core.ErrNotFound) {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	if strings.TrimSpace(actor.Email) == "" {
		return core.User{}, fmt.Errorf("new user needs an email: %w", core.ErrUnauthorized)
	}

	u := core.User{
		ID:             actor.ID,
		Email:          strings.ToLower(strings.TrimSpace(actor.Email)),
		MainCurrencyID: DefaultCurrencyID,
		CreatedAt:      s.now(),
	}
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if err := q.CreateUser(ctx, u); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		for _, c := range defaultCategories {
			c.ID = uuid.NewString()
			c.UserID = u.ID
			if err := q.CreateCategory(ctx, c); err != nil {
				return fmt.Errorf("seed category %q: %w", c.Name, err)
			}
		}
		return q.BindInvitesToUser(ctx, u.ID, u.Email)
	})
	if err != nil {
		// Another request may have created the user concurrently.
		if existing, getErr := s.repo.Queries().GetUser(ctx, actor.ID); getErr == nil {
			return existing, nil
		}
		return core.User{}, err
	}

	slog.InfoContext(ctx, "User created", "user_id", u.ID)
	return u, nil
}

// SetMainCurrency changes the currency user reports are converted into.
func (s *AccountService) SetMainCurrency(ctx context.Context, actor Actor, currencyID string) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	q := s.repo.Queries()
	if _, err := q.GetCurrency(ctx, currencyID); err != nil {
		return fmt.Errorf("currency %s: %w", currencyID, err)
	}
	if err := q.UpdateUserMainCurrency(ctx, actor.ID, currencyID); err != nil {
		return fmt.Errorf("update main currency: %w", err)
	}
	s.invalidateUser(actor.ID)
	return nil
}

// ListCurrencies returns the supported currencies.
func (s *AccountService) ListCurrencies(ctx context.Context) ([]core.Currency, error) {
	return s.repo.Queries().ListCurrencies(ctx)
}

// ListAccountCategories returns the asset and liability account kinds.
func (s *AccountService) ListAccountCategories(ctx context.Context) ([]core.AccountCategory, error) {
	return s.repo.Queries().ListAccountCategories(ctx)
}

// ListAccounts returns the accounts the actor owns or shares.
func (s *AccountService) ListAccounts(ctx context.Context, actor Actor) ([]core.FinancialAccount, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	accounts, err := s.repo.Queries().ListAccessibleAccounts(ctx, actor.ID, actor.Email)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

type AccountInput struct {
	Name         string
	CategoryID   int
	CurrencyID   string
	InitialValue core.Amount
	Icon         string
	Color        string
}

func (s *AccountService) CreateAccount(ctx context.Context, actor Actor, in AccountInput) (core.FinancialAccount, error) {
	if err := actor.Validate(); err != nil {
		return core.FinancialAccount{}, err
	}
	a := core.FinancialAccount{
		ID:           uuid.NewString(),
		UserID:       actor.ID,
		Name:         strings.TrimSpace(in.Name),
		CategoryID:   in.CategoryID,
		CurrencyID:   in.CurrencyID,
		InitialValue: in.InitialValue,
		Icon:         in.Icon,
		Color:        in.Color,
		CreatedAt:    s.now(),
	}
	if err := a.Validate(); err != nil {
		return core.FinancialAccount{}, err
	}

	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if err := checkAccountReferences(ctx, q, a); err != nil {
			return err
		}
		return q.CreateAccount(ctx, a)
	})
	if err != nil {
		return core.FinancialAccount{}, fmt.Errorf("create account: %w", err)
	}

	slog.InfoContext(ctx, "Account created", "account_id", a.ID, "user_id", a.UserID)
	s.invalidateUser(actor.ID)
	return a, nil
}

// UpdateAccount changes an owned account. The currency is locked once the
// account has transactions because stored rates refer to it.
func (s *AccountService) UpdateAccount(ctx context.Context, actor Actor, id string, in AccountInput) (core.FinancialAccount, error) {
	if err := actor.Validate(); err != nil {
		return core.FinancialAccount{}, err
	}

	var updated core.FinancialAccount
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		a, err := NewAuthorizer(q).OwnedAccount(ctx, actor, id)
		if err != nil {
			return err
		}
		if in.CurrencyID != "" && in.CurrencyID != a.CurrencyID {
			n, err := q.CountAccountTransactions(ctx, a.ID)
			if err != nil {
				return fmt.Errorf("count transactions: %w", err)
			}
			if n > 0 {
				return core.ErrCurrencyLocked
			}
			a.CurrencyID = in.CurrencyID
		}
		if in.Name != "" {
			a.Name = strings.TrimSpace(in.Name)
		}
		if in.CategoryID != 0 {
			a.CategoryID = in.CategoryID
		}
		a.InitialValue = in.InitialValue
		a.Icon = in.Icon
		a.Color = in.Color
		if err := a.Validate(); err != nil {
			return err
		}
		if err := checkAccountReferences(ctx, q, a); err != nil {
			return err
		}
		if err := q.UpdateAccount(ctx, a); err != nil {
			return fmt.Errorf("update account: %w", err)
		}
		updated = a
		return nil
	})
	if err != nil {
		return core.FinancialAccount{}, err
	}

	s.invalidateAccount(updated.ID)
	return updated, nil
}

// DeleteAccount removes an owned account with its transactions and
// invites. Transfers to other accounts keep their surviving side.
func (s *AccountService) DeleteAccount(ctx context.Context, actor Actor, id string) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if _, err := NewAuthorizer(q).OwnedAccount(ctx, actor, id); err != nil {
			return err
		}
		return q.DeleteAccount(ctx, id)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Account deleted", "account_id", id, "user_id", actor.ID)
	s.invalidateAccount(id)
	if s.invalidator != nil {
		s.invalidator.InvalidateAll()
	}
	return nil
}

func checkAccountReferences(ctx context.Context, q *storage.Queries, a core.FinancialAccount) error {
	if _, err := q.GetCurrency(ctx, a.CurrencyID); err != nil {
		return fmt.Errorf("currency %s: %w", a.CurrencyID, err)
	}
	kinds, err := q.ListAccountCategories(ctx)
	if err != nil {
		return fmt.Errorf("account categories: %w", err)
	}
	for _, k := range kinds {
		if k.ID == a.CategoryID {
			return nil
		}
	}
	return fmt.Errorf("account category %d: %w", a.CategoryID, core.ErrNotFound)
}

// CreateInvite shares an owned account with an email address. The invite
// is bound to the user id right away when that user already exists.
func (s *AccountService) CreateInvite(ctx context.Context, actor Actor, accountID, email string) (core.AccountInvite, error) {
	if err := actor.Validate(); err != nil {
		return core.AccountInvite{}, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return core.AccountInvite{}, fmt.Errorf("invite email: %w", core.ErrInvalidInput)
	}
	if strings.EqualFold(email, actor.Email) {
		return core.AccountInvite{}, fmt.Errorf("cannot invite yourself: %w", core.ErrInvalidInput)
	}

	inv := core.AccountInvite{
		ID:        uuid.NewString(),
		AccountID: accountID,
		OwnerID:   actor.ID,
		Email:     email,
		Status:    core.InvitePending,
		CreatedAt: s.now(),
	}
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if _, err := NewAuthorizer(q).OwnedAccount(ctx, actor, accountID); err != nil {
			return err
		}
		u, err := q.GetUserByEmail(ctx, email)
		switch {
		case err == nil:
			if u.ID == actor.ID {
				return fmt.Errorf("cannot invite yourself: %w", core.ErrInvalidInput)
			}
			inv.UserID = u.ID
		case !errors.Is(err, core.ErrNotFound):
			return fmt.Errorf("lookup invitee: %w", err)
		}
		existing, err := q.ListAccountInvites(ctx, accountID)
		if err != nil {
			return fmt.Errorf("list invites: %w", err)
		}
		for _, e := range existing {
			if e.Email == email {
				return fmt.Errorf("%s is already invited: %w", email, core.ErrInvalidInput)
			}
		}
		return q.CreateInvite(ctx, inv)
	})
	if err != nil {
		return core.AccountInvite{}, err
	}

	slog.InfoContext(ctx, "Invite created", "invite_id", inv.ID, "account_id", accountID)
	return inv, nil
}

// ListInvites returns the invites addressed to the actor.
func (s *AccountService) ListInvites(ctx context.Context, actor Actor) ([]core.AccountInvite, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Queries().ListInvitesForUser(ctx, actor.ID, actor.Email)
}

// ListAccountInvites returns the invites of an owned account.
func (s *AccountService) ListAccountInvites(ctx context.Context, actor Actor, accountID string) ([]core.AccountInvite, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	q := s.repo.Queries()
	if _, err := NewAuthorizer(q).OwnedAccount(ctx, actor, accountID); err != nil {
		return nil, err
	}
	return q.ListAccountInvites(ctx, accountID)
}

func isInvitee(actor Actor, inv core.AccountInvite) bool {
	if inv.UserID != "" {
		return inv.UserID == actor.ID
	}
	return actor.Email != "" && strings.EqualFold(inv.Email, actor.Email)
}

// AcceptInvite moves a pending invite addressed to the actor to ACCEPTED.
// Acceptance is one-way.
func (s *AccountService) AcceptInvite(ctx context.Context, actor Actor, id string) (core.AccountInvite, error) {
	if err := actor.Validate(); err != nil {
		return core.AccountInvite{}, err
	}
	var inv core.AccountInvite
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		if inv, err = q.GetInvite(ctx, id); err != nil {
			return fmt.Errorf("invite %s: %w", id, err)
		}
		if !isInvitee(actor, inv) {
			return fmt.Errorf("invite %s: %w", id, core.ErrForbidden)
		}
		if inv.Status == core.InviteAccepted {
			return nil
		}
		if err := q.AcceptInvite(ctx, id, actor.ID); err != nil {
			return fmt.Errorf("accept invite: %w", err)
		}
		inv.Status = core.InviteAccepted
		inv.UserID = actor.ID
		return nil
	})
	if err != nil {
		return core.AccountInvite{}, err
	}

	slog.InfoContext(ctx, "Invite accepted", "invite_id", id, "user_id", actor.ID)
	s.invalidateUser(actor.ID)
	return inv, nil
}

// DeleteInvite lets the owner revoke an invite or the invitee decline or
// leave the shared account.
func (s *AccountService) DeleteInvite(ctx context.Context, actor Actor, id string) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	var inv core.AccountInvite
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		if inv, err = q.GetInvite(ctx, id); err != nil {
			return fmt.Errorf("invite %s: %w", id, err)
		}
		if inv.OwnerID != actor.ID && !isInvitee(actor, inv) {
			return fmt.Errorf("invite %s: %w", id, core.ErrForbidden)
		}
		return q.DeleteInvite(ctx, id)
	})
	if err != nil {
		return err
	}

	if inv.UserID != "" {
		s.invalidateUser(inv.UserID)
	}
	return nil
}

func (s *AccountService) invalidateUser(userID string) {
	if s.invalidator != nil {
		s.invalidator.InvalidateUser(userID)
	}
}

func (s *AccountService) invalidateAccount(accountID string) {
	if s.invalidator != nil {
		s.invalidator.InvalidateAccounts([]string{accountID})
	}
}
