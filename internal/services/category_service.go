package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"walletize/internal/core"
	"walletize/internal/storage"
)

// CategoryService manages user transaction categories. System categories
// are listed but never modified.
type CategoryService struct {
	repo        *storage.SQLiteRepository
	invalidator ScopeInvalidator
}

func NewCategoryService(repo *storage.SQLiteRepository, invalidator ScopeInvalidator) *CategoryService {
	return &CategoryService{repo: repo, invalidator: invalidator}
}

type CategoryInput struct {
	TypeID core.TransactionType
	Name   string
	Icon   string
	Color  string
}

// ListCategories returns the actor's categories followed by the system
// ones, grouped by type.
func (s *CategoryService) ListCategories(ctx context.Context, actor Actor) ([]core.TransactionCategory, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Queries().ListCategories(ctx, actor.ID)
}

func (s *CategoryService) CreateCategory(ctx context.Context, actor Actor, in CategoryInput) (core.TransactionCategory, error) {
	if err := actor.Validate(); err != nil {
		return core.TransactionCategory{}, err
	}
	c := core.TransactionCategory{
		ID:     uuid.NewString(),
		UserID: actor.ID,
		TypeID: in.TypeID,
		Name:   strings.TrimSpace(in.Name),
		Icon:   in.Icon,
		Color:  in.Color,
	}
	if err := c.Validate(); err != nil {
		return core.TransactionCategory{}, err
	}
	if err := s.repo.Queries().CreateCategory(ctx, c); err != nil {
		return core.TransactionCategory{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

// UpdateCategory renames or restyles an owned category. The type is fixed
// because posted amounts carry its sign.
func (s *CategoryService) UpdateCategory(ctx context.Context, actor Actor, id string, in CategoryInput) (core.TransactionCategory, error) {
	if err := actor.Validate(); err != nil {
		return core.TransactionCategory{}, err
	}
	q := s.repo.Queries()
	c, err := ownedCategory(ctx, q, actor, id)
	if err != nil {
		return core.TransactionCategory{}, err
	}
	if in.TypeID != 0 && in.TypeID != c.TypeID {
		return core.TransactionCategory{}, fmt.Errorf("category type cannot change: %w", core.ErrInvalidInput)
	}
	c.Name = strings.TrimSpace(in.Name)
	c.Icon = in.Icon
	c.Color = in.Color
	if err := c.Validate(); err != nil {
		return core.TransactionCategory{}, err
	}
	if err := q.UpdateCategory(ctx, c); err != nil {
		return core.TransactionCategory{}, fmt.Errorf("update category: %w", err)
	}
	s.invalidate()
	return c, nil
}

// DeleteCategory removes an owned category and moves its transactions to
// the oldest remaining category of the same type. The last category of a
// type cannot be deleted.
func (s *CategoryService) DeleteCategory(ctx context.Context, actor Actor, id string) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	var moved int64
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		c, err := ownedCategory(ctx, q, actor, id)
		if err != nil {
			return err
		}
		n, err := q.CountUserCategoriesByType(ctx, actor.ID, c.TypeID)
		if err != nil {
			return fmt.Errorf("count categories: %w", err)
		}
		if n <= 1 {
			return core.ErrCategoryCannotBeEmpty
		}
		target, err := q.FirstOtherCategory(ctx, actor.ID, c.TypeID, c.ID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return core.ErrCategoryCannotBeEmpty
			}
			return fmt.Errorf("replacement category: %w", err)
		}
		if moved, err = q.ReassignCategory(ctx, c.ID, target.ID); err != nil {
			return fmt.Errorf("reassign transactions: %w", err)
		}
		return q.DeleteCategory(ctx, c.ID)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Category deleted", "category_id", id, "moved_transactions", moved)
	s.invalidate()
	return nil
}

func ownedCategory(ctx context.Context, q *storage.Queries, actor Actor, id string) (core.TransactionCategory, error) {
	c, err := q.GetCategory(ctx, id)
	if err != nil {
		return core.TransactionCategory{}, fmt.Errorf("category %s: %w", id, err)
	}
	if c.UserID != actor.ID {
		return core.TransactionCategory{}, fmt.Errorf("category %s: %w", id, core.ErrForbidden)
	}
	return c, nil
}

// Category names and totals show up in reports of every account the
// category was used on, including shared ones.
func (s *CategoryService) invalidate() {
	if s.invalidator != nil {
		s.invalidator.InvalidateAll()
	}
}
