// Package services provides business logic and orchestration services.
package services

import (
	"context"
	"fmt"
	"strings"

	"walletize/internal/core"
	"walletize/internal/storage"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID    string
	Email string
}

// Validate rejects anonymous actors.
func (a Actor) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return core.ErrUnauthorized
	}
	return nil
}

// Authorizer decides whether an actor may touch an account. Access is
// granted to the owner and to holders of an ACCEPTED invite, matched by
// user id or, for invites sent before the user existed, by email.
type Authorizer struct {
	q *storage.Queries
}

func NewAuthorizer(q *storage.Queries) *Authorizer {
	return &Authorizer{q: q}
}

// CanAccessAccount returns core.ErrForbidden unless actor may use account.
func (a *Authorizer) CanAccessAccount(ctx context.Context, actor Actor, account core.FinancialAccount) error {
	if account.UserID == actor.ID {
		return nil
	}
	ok, err := a.q.HasAcceptedInvite(ctx, account.ID, actor.ID, actor.Email)
	if err != nil {
		return fmt.Errorf("check invite: %w", err)
	}
	if !ok {
		return core.ErrForbidden
	}
	return nil
}

// Account loads an account and checks access. Missing accounts fail with
// core.ErrNotFound before any access check.
func (a *Authorizer) Account(ctx context.Context, actor Actor, accountID string) (core.FinancialAccount, error) {
	account, err := a.q.GetAccount(ctx, accountID)
	if err != nil {
		return core.FinancialAccount{}, fmt.Errorf("account %s: %w", accountID, err)
	}
	if err := a.CanAccessAccount(ctx, actor, account); err != nil {
		return core.FinancialAccount{}, fmt.Errorf("account %s: %w", accountID, err)
	}
	return account, nil
}

// OwnedAccount is Account restricted to the owner.
func (a *Authorizer) OwnedAccount(ctx context.Context, actor Actor, accountID string) (core.FinancialAccount, error) {
	account, err := a.q.GetAccount(ctx, accountID)
	if err != nil {
		return core.FinancialAccount{}, fmt.Errorf("account %s: %w", accountID, err)
	}
	if account.UserID != actor.ID {
		return core.FinancialAccount{}, fmt.Errorf("account %s: %w", accountID, core.ErrForbidden)
	}
	return account, nil
}

// Category loads a transaction category usable by actor: a system
// category or one the actor owns.
func (a *Authorizer) Category(ctx context.Context, actor Actor, categoryID string) (core.TransactionCategory, error) {
	c, err := a.q.GetCategory(ctx, categoryID)
	if err != nil {
		return core.TransactionCategory{}, fmt.Errorf("category %s: %w", categoryID, err)
	}
	if c.UserID != "" && c.UserID != actor.ID {
		return core.TransactionCategory{}, fmt.Errorf("category %s: %w", categoryID, core.ErrForbidden)
	}
	return c, nil
}
