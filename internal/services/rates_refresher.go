package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"walletize/internal/adapters"
	"walletize/internal/storage"
)

// RatesSource provides the latest conversion rates for a base currency.
type RatesSource interface {
	Latest(ctx context.Context, base string) (adapters.FeedRates, error)
}

var errEmptySnapshot = errors.New("no known currency in rates feed")

// RatesRefresher writes a new currency rate snapshot from an external
// feed. Older snapshots are kept; readers always take the newest.
type RatesRefresher struct {
	repo        *storage.SQLiteRepository
	source      RatesSource
	invalidator ScopeInvalidator
	base        string
}

func NewRatesRefresher(repo *storage.SQLiteRepository, source RatesSource, invalidator ScopeInvalidator) *RatesRefresher {
	return &RatesRefresher{
		repo:        repo,
		source:      source,
		invalidator: invalidator,
		base:        "USD",
	}
}

// Refresh fetches and stores new rates. Failures are logged and leave the
// existing rates untouched.
func (r *RatesRefresher) Refresh(ctx context.Context) {
	n, err := r.RefreshOnce(ctx)
	if err != nil {
		if errors.Is(err, adapters.ErrMissingAPIKey) {
			slog.WarnContext(ctx, "Rates API key not configured, keeping existing rates")
			return
		}
		slog.ErrorContext(ctx, "Currency rate refresh failed, keeping existing rates", "error", err)
		return
	}
	slog.InfoContext(ctx, "Currency rates refreshed", "currencies", n)
}

// RefreshOnce stores one snapshot and returns how many currencies the feed
// covered. Feed codes without a matching currency are ignored; currencies
// the feed left out keep their previous rate.
func (r *RatesRefresher) RefreshOnce(ctx context.Context) (int, error) {
	if r.source == nil {
		return 0, adapters.ErrMissingAPIKey
	}
	feed, err := r.source.Latest(ctx, r.base)
	if err != nil {
		return 0, err
	}
	base := feed.Base
	if base == "" {
		base = r.base
	}

	stored := 0
	err = r.repo.WithTx(ctx, func(q *storage.Queries) error {
		id, err := q.InsertRateSnapshot(ctx, base, feed.FetchedAt)
		if err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
		for code, rate := range feed.Rates {
			if !rate.IsPositive() {
				slog.WarnContext(ctx, "Skipping non-positive rate", "code", code, "rate", rate.String())
				continue
			}
			ok, err := q.InsertRate(ctx, id, code, rate)
			if err != nil {
				return fmt.Errorf("insert rate %s: %w", code, err)
			}
			if ok {
				stored++
			}
		}
		if stored == 0 {
			return errEmptySnapshot
		}
		carried, err := q.CarryForwardRates(ctx, id)
		if err != nil {
			return fmt.Errorf("carry forward rates: %w", err)
		}
		if carried > 0 {
			slog.WarnContext(ctx, "Rates feed omitted known currencies, keeping previous rates", "carried", carried)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if r.invalidator != nil {
		r.invalidator.InvalidateAll()
	}
	return stored, nil
}
