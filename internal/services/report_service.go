package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"walletize/internal/cache"
	"walletize/internal/core"
	"walletize/internal/storage"
)

// ReportPageSize is the number of transactions per report page.
const ReportPageSize = 50

// reportBuildTimeout bounds a shared report build once it no longer
// follows any caller's context.
const reportBuildTimeout = 30 * time.Second

// reportEntry is a cached report together with the accounts it reads.
type reportEntry struct {
	accounts []string
	value    interface{}
}

// ReportService builds the account, user and category reports. Built
// reports are cached until a mutation touches one of their accounts.
type ReportService struct {
	repo  *storage.SQLiteRepository
	cache *cache.LRUCache[reportEntry]
	group singleflight.Group
	gen   atomic.Uint64
	today func() core.Date
}

// NewReportService creates a report service. A nil cache disables caching.
func NewReportService(repo *storage.SQLiteRepository, c *cache.LRUCache[reportEntry]) *ReportService {
	return &ReportService{
		repo:  repo,
		cache: c,
		today: core.Today,
	}
}

// NewReportCache returns the cache type ReportService expects.
func NewReportCache(maxSize int, ttl time.Duration) *cache.LRUCache[reportEntry] {
	return cache.NewLRUCache[reportEntry](maxSize, ttl)
}

// InvalidateAccounts drops every cached report that reads one of the
// given accounts.
func (s *ReportService) InvalidateAccounts(accountIDs []string) {
	s.gen.Add(1)
	if s.cache == nil || len(accountIDs) == 0 {
		return
	}
	touched := make(map[string]bool, len(accountIDs))
	for _, id := range accountIDs {
		touched[id] = true
	}
	s.cache.DeleteFunc(func(_ string, e reportEntry) bool {
		for _, id := range e.accounts {
			if touched[id] {
				return true
			}
		}
		return false
	})
}

// InvalidateUser drops the cross-account reports of a user, whose set of
// accessible accounts may have changed.
func (s *ReportService) InvalidateUser(userID string) {
	s.gen.Add(1)
	if s.cache == nil {
		return
	}
	s.cache.DeletePrefix("user:" + userID + ":")
	s.cache.DeletePrefix("chart:" + userID + ":")
}

// InvalidateAll drops every cached report.
func (s *ReportService) InvalidateAll() {
	s.gen.Add(1)
	if s.cache == nil {
		return
	}
	s.cache.DeleteFunc(func(string, reportEntry) bool { return true })
}

// cached serves key from the cache or builds it once for every concurrent
// caller. The shared build is detached from the caller's cancellation so
// one abandoned request cannot fail the others waiting on it.
func (s *ReportService) cached(ctx context.Context, key string, accounts []string, build func(context.Context) (interface{}, error)) (interface{}, error) {
	if s.cache != nil {
		if e, ok := s.cache.Get(key); ok {
			return e.value, nil
		}
	}
	ch := s.group.DoChan(key, func() (interface{}, error) {
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportBuildTimeout)
		defer cancel()

		gen := s.gen.Load()
		value, err := build(bctx)
		if err != nil {
			return nil, err
		}
		// A mutation committed while building may not be reflected.
		if s.cache != nil && s.gen.Load() == gen {
			s.cache.Set(key, reportEntry{accounts: accounts, value: value})
		}
		return value, nil
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AccountReport returns one page of an account's transactions grouped by
// day, its value chart and the previous-period comparisons, all in the
// account currency. page is 1-based.
func (s *ReportService) AccountReport(ctx context.Context, actor Actor, accountID string, period core.Period, page int) (core.AccountReport, error) {
	if err := actor.Validate(); err != nil {
		return core.AccountReport{}, err
	}
	if page < 1 {
		page = 1
	}
	q := s.repo.Queries()
	account, err := NewAuthorizer(q).Account(ctx, actor, accountID)
	if err != nil {
		return core.AccountReport{}, err
	}

	key := "acct:" + account.ID + ":" + period.String() + ":" + strconv.Itoa(page)
	v, err := s.cached(ctx, key, []string{account.ID}, func(ctx context.Context) (interface{}, error) {
		body, err := s.build(ctx, q, []core.FinancialAccount{account}, period, page, identity)
		if err != nil {
			return nil, err
		}
		return core.AccountReport{
			AccountID:  account.ID,
			CurrencyID: account.CurrencyID,
			Period:     body.period,
			Page:       page,
			HasMore:    body.hasMore,
			Days:       body.days,
			Chart:      body.chart,
			Value:      body.value,
			Income:     body.income,
			Expense:    body.expense,
		}, nil
	})
	if err != nil {
		return core.AccountReport{}, fmt.Errorf("account report: %w", err)
	}
	return v.(core.AccountReport), nil
}

// UserReport is AccountReport across every account the user can access,
// converted into the user's main currency with the latest rate snapshot.
func (s *ReportService) UserReport(ctx context.Context, actor Actor, userID string, period core.Period, page int) (core.UserReport, error) {
	if err := actor.Validate(); err != nil {
		return core.UserReport{}, err
	}
	if page < 1 {
		page = 1
	}
	q := s.repo.Queries()
	user, err := q.GetUser(ctx, userID)
	if err != nil {
		return core.UserReport{}, fmt.Errorf("user %s: %w", userID, err)
	}
	if user.ID != actor.ID {
		return core.UserReport{}, fmt.Errorf("user %s: %w", userID, core.ErrForbidden)
	}
	accounts, err := q.ListAccessibleAccounts(ctx, user.ID, actor.Email)
	if err != nil {
		return core.UserReport{}, fmt.Errorf("list accounts: %w", err)
	}

	key := "user:" + user.ID + ":" + period.String() + ":" + strconv.Itoa(page)
	v, err := s.cached(ctx, key, accountIDs(accounts), func(ctx context.Context) (interface{}, error) {
		conv, err := converterTo(ctx, q, accounts, user.MainCurrencyID)
		if err != nil {
			return nil, err
		}
		body, err := s.build(ctx, q, accounts, period, page, conv)
		if err != nil {
			return nil, err
		}
		return core.UserReport{
			UserID:     user.ID,
			CurrencyID: user.MainCurrencyID,
			Period:     body.period,
			Page:       page,
			HasMore:    body.hasMore,
			Days:       body.days,
			Chart:      body.chart,
			Value:      body.value,
			Income:     body.income,
			Expense:    body.expense,
		}, nil
	})
	if err != nil {
		return core.UserReport{}, fmt.Errorf("user report: %w", err)
	}
	return v.(core.UserReport), nil
}

// CategoryChart sums income and expense per category across the actor's
// accessible accounts, in the actor's main currency. Largest totals come
// first.
func (s *ReportService) CategoryChart(ctx context.Context, actor Actor, period core.Period) (core.CategoryChart, error) {
	if err := actor.Validate(); err != nil {
		return core.CategoryChart{}, err
	}
	q := s.repo.Queries()
	user, err := q.GetUser(ctx, actor.ID)
	if err != nil {
		return core.CategoryChart{}, fmt.Errorf("user %s: %w", actor.ID, err)
	}
	accounts, err := q.ListAccessibleAccounts(ctx, user.ID, actor.Email)
	if err != nil {
		return core.CategoryChart{}, fmt.Errorf("list accounts: %w", err)
	}

	key := "chart:" + user.ID + ":" + period.String()
	v, err := s.cached(ctx, key, accountIDs(accounts), func(ctx context.Context) (interface{}, error) {
		conv, err := converterTo(ctx, q, accounts, user.MainCurrencyID)
		if err != nil {
			return nil, err
		}
		rows, err := q.CategoryTotals(ctx, accountIDs(accounts), period)
		if err != nil {
			return nil, fmt.Errorf("category totals: %w", err)
		}

		byCategory := make(map[string]*core.CategoryTotal)
		var order []string
		for _, r := range rows {
			amount, err := conv(r.AccountID, r.Total)
			if err != nil {
				return nil, err
			}
			ct, ok := byCategory[r.CategoryID]
			if !ok {
				ct = &core.CategoryTotal{CategoryID: r.CategoryID, Name: r.Name, TypeID: r.TypeID, Color: r.Color}
				byCategory[r.CategoryID] = ct
				order = append(order, r.CategoryID)
			}
			ct.Total += amount
		}

		chart := core.CategoryChart{
			CurrencyID: user.MainCurrencyID,
			Period:     period.String(),
			Income:     []core.CategoryTotal{},
			Expense:    []core.CategoryTotal{},
		}
		for _, id := range order {
			ct := *byCategory[id]
			if ct.TypeID == core.TypeIncome {
				chart.Income = append(chart.Income, ct)
			} else {
				chart.Expense = append(chart.Expense, ct)
			}
		}
		byMagnitude := func(items []core.CategoryTotal) {
			sort.SliceStable(items, func(i, j int) bool {
				return items[i].Total.Abs() > items[j].Total.Abs()
			})
		}
		byMagnitude(chart.Income)
		byMagnitude(chart.Expense)
		return chart, nil
	})
	if err != nil {
		return core.CategoryChart{}, fmt.Errorf("category chart: %w", err)
	}
	return v.(core.CategoryChart), nil
}

// converter maps an amount in the currency of accountID into the report
// currency.
type converter func(accountID string, amount core.Amount) (core.Amount, error)

func identity(_ string, amount core.Amount) (core.Amount, error) {
	return amount, nil
}

func converterTo(ctx context.Context, q *storage.Queries, accounts []core.FinancialAccount, target string) (converter, error) {
	currencyOf := make(map[string]string, len(accounts))
	mixed := false
	for _, a := range accounts {
		currencyOf[a.ID] = a.CurrencyID
		if a.CurrencyID != target {
			mixed = true
		}
	}
	if !mixed {
		return identity, nil
	}

	snap, err := q.LatestRates(ctx)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.ErrRateUnavailable
		}
		return nil, fmt.Errorf("latest rates: %w", err)
	}
	toRate := snap.Rates[target]
	return func(accountID string, amount core.Amount) (core.Amount, error) {
		from := currencyOf[accountID]
		if from == target || amount == 0 {
			return amount, nil
		}
		converted, err := core.ConvertBetween(amount, snap.Rates[from], toRate)
		if err != nil {
			return 0, fmt.Errorf("convert %s to %s: %w", from, target, err)
		}
		return converted, nil
	}, nil
}

type reportBody struct {
	period  core.ReportPeriod
	hasMore bool
	days    []core.DayGroup
	chart   []core.ChartPoint
	value   core.Comparison
	income  core.Comparison
	expense core.Comparison
}

// resolvePeriod turns "all history" into the span between the first
// transaction and the later of the last transaction and today.
func (s *ReportService) resolvePeriod(ctx context.Context, q *storage.Queries, ids []string, period core.Period) (core.Period, error) {
	if !period.Unbounded() {
		return period, nil
	}
	today := s.today()
	first, last, err := q.DateBounds(ctx, ids)
	if err != nil {
		return core.Period{}, fmt.Errorf("date bounds: %w", err)
	}
	if first.IsZero() {
		return core.Period{Start: today, End: today}, nil
	}
	if last.Before(today) {
		last = today
	}
	return core.Period{Start: first, End: last}, nil
}

func (s *ReportService) build(ctx context.Context, q *storage.Queries, accounts []core.FinancialAccount, period core.Period, page int, conv converter) (reportBody, error) {
	ids := accountIDs(accounts)
	span, err := s.resolvePeriod(ctx, q, ids, period)
	if err != nil {
		return reportBody{}, err
	}
	previous, hasPrevious := period.Previous()
	interval := core.DateInterval(span.Start, span.End)

	var (
		rows          []core.Transaction
		before        []storage.AccountTotal
		buckets       []storage.BucketTotal
		totals        []storage.TypeTotal
		previousTotal []storage.TypeTotal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = q.ListTransactionsPage(gctx, ids, span, ReportPageSize+1, (page-1)*ReportPageSize)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		before, err = q.SumBefore(gctx, ids, span.Start)
		if err != nil {
			return fmt.Errorf("value before period: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		buckets, err = q.SeriesBuckets(gctx, ids, span, interval, span.Start)
		if err != nil {
			return fmt.Errorf("series buckets: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		totals, err = q.SumByType(gctx, ids, span)
		if err != nil {
			return fmt.Errorf("period totals: %w", err)
		}
		return nil
	})
	if hasPrevious {
		g.Go(func() error {
			var err error
			previousTotal, err = q.SumByType(gctx, ids, previous)
			if err != nil {
				return fmt.Errorf("previous period totals: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reportBody{}, err
	}

	// The value at the start of the period feeds the chart, so everything
	// below depends on the queries above.
	startValue := core.Amount(0)
	for _, a := range accounts {
		v, err := conv(a.ID, a.InitialValue)
		if err != nil {
			return reportBody{}, err
		}
		startValue += v
	}
	for _, b := range before {
		v, err := conv(b.AccountID, b.Total)
		if err != nil {
			return reportBody{}, err
		}
		startValue += v
	}

	bucketSums := make(map[string]core.Amount)
	for _, b := range buckets {
		v, err := conv(b.AccountID, b.Total)
		if err != nil {
			return reportBody{}, err
		}
		bucketSums[b.Bucket.String()] += v
	}
	chart := make([]core.ChartPoint, 0)
	running := startValue
	for b := interval.BucketStart(span.Start, span.Start); !b.After(span.End); b = interval.Next(b) {
		running += bucketSums[b.String()]
		chart = append(chart, core.ChartPoint{Date: b, Value: running})
	}

	income, expense, err := typeTotals(totals, conv)
	if err != nil {
		return reportBody{}, err
	}
	var prevIncome, prevExpense, prevValue core.Amount
	if hasPrevious {
		if prevIncome, prevExpense, err = typeTotals(previousTotal, conv); err != nil {
			return reportBody{}, err
		}
		prevValue = startValue
	}

	body := reportBody{
		period: core.ReportPeriod{
			Period:   period.String(),
			Interval: interval,
		},
		chart:   chart,
		value:   core.NewComparison(running, prevValue),
		income:  core.NewComparison(income, prevIncome),
		expense: core.NewComparison(expense, prevExpense),
	}
	if hasPrevious {
		body.period.Previous = previous.String()
	}
	if len(rows) > ReportPageSize {
		rows = rows[:ReportPageSize]
		body.hasMore = true
	}
	if body.days, err = groupByDay(rows, conv); err != nil {
		return reportBody{}, err
	}
	return body, nil
}

func typeTotals(rows []storage.TypeTotal, conv converter) (income, expense core.Amount, err error) {
	for _, r := range rows {
		v, err := conv(r.AccountID, r.Total)
		if err != nil {
			return 0, 0, err
		}
		switch r.TypeID {
		case core.TypeIncome:
			income += v
		case core.TypeExpense:
			expense += v
		}
	}
	return income, expense, nil
}

// groupByDay groups newest-first rows into day groups, preserving order.
func groupByDay(rows []core.Transaction, conv converter) ([]core.DayGroup, error) {
	days := make([]core.DayGroup, 0)
	for _, t := range rows {
		v, err := conv(t.AccountID, t.AccountAmount)
		if err != nil {
			return nil, err
		}
		if n := len(days); n == 0 || !days[n-1].Date.Equal(t.Date.Time) {
			days = append(days, core.DayGroup{Date: t.Date})
		}
		last := &days[len(days)-1]
		last.Total += v
		last.Transactions = append(last.Transactions, t)
	}
	return days, nil
}

func accountIDs(accounts []core.FinancialAccount) []string {
	ids := make([]string, len(accounts))
	for i, a := range accounts {
		ids[i] = a.ID
	}
	return ids
}
