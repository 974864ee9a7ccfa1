package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"walletize/internal/core"
	"walletize/internal/log"
	"walletize/internal/services"
	"walletize/internal/storage"
)

type testAPI struct {
	t   *testing.T
	srv *Server
}

func newTestAPI(t *testing.T, opts Options) testAPI {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "walletize.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	reports := services.NewReportService(repo, services.NewReportCache(100, time.Minute))
	if opts.Logger == nil {
		opts.Logger = log.New(log.Config{Output: io.Discard, Component: log.ComponentHTTP})
	}
	srv := NewServer(":0", Services{
		Transactions: services.NewTransactionService(repo, nil, reports),
		Reports:      reports,
		Accounts:     services.NewAccountService(repo, reports),
		Categories:   services.NewCategoryService(repo, reports),
	}, opts)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return testAPI{t: t, srv: srv}
}

// do sends a request as user (no identity headers when empty).
func (a testAPI) do(method, path, user string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			a.t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if user != "" {
		req.Header.Set(HeaderUserID, user)
		req.Header.Set(HeaderUserEmail, user+"@example.com")
	}
	rr := httptest.NewRecorder()
	a.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (a testAPI) decode(rr *httptest.ResponseRecorder, want int, dst any) {
	a.t.Helper()
	if rr.Code != want {
		a.t.Fatalf("status %d, want %d: %s", rr.Code, want, rr.Body.String())
	}
	if dst != nil {
		if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
			a.t.Fatalf("decode %s: %v", rr.Body.String(), err)
		}
	}
}

func (a testAPI) account(user, currency string) core.FinancialAccount {
	a.t.Helper()
	var acc core.FinancialAccount
	a.decode(a.do(http.MethodPost, "/accounts", user, accountRequest{
		Name: "Checking", CategoryID: 2, CurrencyID: currency, InitialValue: 1000 * core.AmountScale,
	}), http.StatusCreated, &acc)
	return acc
}

func (a testAPI) categoryOf(user string, typ core.TransactionType) []core.TransactionCategory {
	a.t.Helper()
	var cats []core.TransactionCategory
	a.decode(a.do(http.MethodGet, "/categories", user, nil), http.StatusOK, &cats)
	var out []core.TransactionCategory
	for _, c := range cats {
		if c.UserID == user && c.TypeID == typ {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		a.t.Fatalf("no %s category for %s", typ, user)
	}
	return out
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("status %d, want %d: %s", rr.Code, status, rr.Body.String())
	}
	var body errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error != code {
		t.Fatalf("error code %q, want %q", body.Error, code)
	}
}

func TestHealthAndReady(t *testing.T) {
	api := newTestAPI(t, Options{})
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		if rr := api.do(http.MethodGet, path, "", nil); rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	down := newTestAPI(t, Options{Ready: func(context.Context) error { return errors.New("db gone") }})
	rr := down.do(http.MethodGet, "/readyz", "", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "db gone") {
		t.Fatal("readiness must not leak error details")
	}
}

func TestIdentityRequired(t *testing.T) {
	api := newTestAPI(t, Options{})
	expectError(t, api.do(http.MethodGet, "/accounts", "", nil), http.StatusUnauthorized, core.CodeUnauthorized)

	// A first-time user needs an email to be created.
	req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	req.Header.Set(HeaderUserID, "ghost")
	rr := httptest.NewRecorder()
	api.srv.Handler.ServeHTTP(rr, req)
	expectError(t, rr, http.StatusUnauthorized, core.CodeUnauthorized)
}

func TestResponseHeaders(t *testing.T) {
	api := newTestAPI(t, Options{})
	rr := api.do(http.MethodGet, "/currencies", "alice", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	for _, h := range []string{"X-Request-ID", "Content-Security-Policy", "X-Content-Type-Options"} {
		if rr.Header().Get(h) == "" {
			t.Errorf("missing %s header", h)
		}
	}
	if got := rr.Header().Get("Content-Type"); !strings.HasPrefix(got, "application/json") {
		t.Errorf("content type %q", got)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	api := newTestAPI(t, Options{})
	acc := api.account("alice", "usd")
	food := api.categoryOf("alice", core.TypeExpense)[0]

	var msg messageResponse
	api.decode(api.do(http.MethodPost, "/transactions", "alice", map[string]any{
		"transaction": map[string]any{
			"accountId":  acc.ID,
			"amount":     25 * core.AmountScale,
			"categoryId": food.ID,
			"currencyId": "usd",
			"date":       "2024-01-01",
		},
		"selectedReccurence": "everyWeek",
		"recurrenceEndDate":  "2024-01-22",
	}), http.StatusOK, &msg)
	if msg.Message != "success" {
		t.Fatalf("message %q", msg.Message)
	}

	reportPath := "/transactions/account/" + acc.ID + "?startDate=2024-01-01&endDate=2024-01-31"
	var report core.AccountReport
	api.decode(api.do(http.MethodGet, reportPath, "alice", nil), http.StatusOK, &report)
	if len(report.Days) != 4 {
		t.Fatalf("days %d, want 4", len(report.Days))
	}
	if want := core.Amount(900 * core.AmountScale); report.Value.Current != want {
		t.Fatalf("value %s, want %s", report.Value.Current, want)
	}

	// Delete the 2024-01-15 occurrence and everything after it.
	third := report.Days[1].Transactions[0]
	if third.Date.String() != "2024-01-15" {
		t.Fatalf("unexpected ordering, got %s", third.Date)
	}
	api.decode(api.do(http.MethodDelete, "/transactions/"+third.ID, "alice",
		map[string]string{"recurringDeleteType": "this_and_following"}), http.StatusOK, &msg)

	api.decode(api.do(http.MethodGet, reportPath, "alice", nil), http.StatusOK, &report)
	if len(report.Days) != 2 {
		t.Fatalf("days after delete %d, want 2", len(report.Days))
	}

	// Edit keeps the expense sign regardless of input.
	first := report.Days[1].Transactions[0]
	api.decode(api.do(http.MethodPut, "/transactions/"+first.ID, "alice", map[string]any{
		"amount": 40 * core.AmountScale,
		"date":   "2024-01-02",
	}), http.StatusOK, &msg)
	api.decode(api.do(http.MethodGet, reportPath, "alice", nil), http.StatusOK, &report)
	if want := core.Amount(-65 * core.AmountScale); report.Expense.Current != want {
		t.Fatalf("expense %s, want %s", report.Expense.Current, want)
	}

	// Fields left out of the edit body keep their stored values.
	api.decode(api.do(http.MethodPut, "/transactions/"+first.ID, "alice", map[string]any{
		"description": "groceries",
	}), http.StatusOK, &msg)
	api.decode(api.do(http.MethodGet, reportPath, "alice", nil), http.StatusOK, &report)
	if want := core.Amount(-65 * core.AmountScale); report.Expense.Current != want {
		t.Fatalf("expense after description edit %s, want %s", report.Expense.Current, want)
	}

	// Deleting without a body removes a single row.
	api.decode(api.do(http.MethodDelete, "/transactions/"+first.ID, "alice", nil), http.StatusOK, &msg)

	var chart core.CategoryChart
	api.decode(api.do(http.MethodGet, "/transactions/chart?period=2024-01-01_2024-01-31", "alice", nil), http.StatusOK, &chart)
	if len(chart.Expense) != 1 || chart.Expense[0].Total != -25*core.AmountScale {
		t.Fatalf("unexpected chart %+v", chart.Expense)
	}
}

func TestTransferAndBalanceUpdate(t *testing.T) {
	api := newTestAPI(t, Options{})
	checking := api.account("alice", "usd")
	savings := api.account("alice", "usd")

	var msg messageResponse
	api.decode(api.do(http.MethodPost, "/transactions/transfer", "alice", map[string]any{
		"originAccountId":      checking.ID,
		"destinationAccountId": savings.ID,
		"selectedCurrencyId":   "usd",
		"date":                 "2024-03-01",
		"amount":               100 * core.AmountScale,
	}), http.StatusOK, &msg)

	api.decode(api.do(http.MethodPost, "/transactions/update", "alice", map[string]any{
		"accountId":  savings.ID,
		"currencyId": "usd",
		"date":       "2024-03-02",
		"newValue":   2000 * core.AmountScale,
	}), http.StatusOK, &msg)

	var report core.AccountReport
	api.decode(api.do(http.MethodGet, "/transactions/account/"+savings.ID+"?period=2024-03-01_2024-03-31", "alice", nil), http.StatusOK, &report)
	if want := core.Amount(2000 * core.AmountScale); report.Value.Current != want {
		t.Fatalf("savings value %s, want %s", report.Value.Current, want)
	}
	api.decode(api.do(http.MethodGet, "/transactions/account/"+checking.ID+"?period=2024-03-01_2024-03-31", "alice", nil), http.StatusOK, &report)
	if want := core.Amount(900 * core.AmountScale); report.Value.Current != want {
		t.Fatalf("checking value %s, want %s", report.Value.Current, want)
	}
}

func TestErrorMapping(t *testing.T) {
	api := newTestAPI(t, Options{})
	acc := api.account("alice", "usd")
	income := api.categoryOf("alice", core.TypeIncome)
	api.do(http.MethodGet, "/me", "bob", nil)

	// Leave alice with one income category so the next delete must fail.
	for _, c := range income[1:] {
		api.decode(api.do(http.MethodDelete, "/categories/"+c.ID, "alice", nil), http.StatusOK, nil)
	}

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   any
		status int
		code   string
	}{
		{"malformed json", http.MethodPost, "/transactions", "alice", "{", http.StatusBadRequest, core.CodeInvalidRequest},
		{"unknown preset", http.MethodPost, "/transactions", "alice", map[string]any{"selectedReccurence": "hourly"}, http.StatusBadRequest, core.CodeInvalidRequest},
		{"missing account", http.MethodPost, "/transactions", "alice", map[string]any{
			"transaction": map[string]any{"accountId": "nope", "amount": 1, "categoryId": income[0].ID, "currencyId": "usd", "date": "2024-01-01"},
		}, http.StatusNotFound, core.CodeNotFound},
		{"foreign account report", http.MethodGet, "/transactions/account/" + acc.ID, "bob", nil, http.StatusForbidden, core.CodeForbidden},
		{"foreign user report", http.MethodGet, "/transactions/user/alice", "bob", nil, http.StatusForbidden, core.CodeForbidden},
		{"bad page", http.MethodGet, "/transactions/account/" + acc.ID + "?page=0", "alice", nil, http.StatusBadRequest, core.CodeInvalidRequest},
		{"bad period", http.MethodGet, "/transactions/chart?startDate=2024-02-01&endDate=2024-01-01", "alice", nil, http.StatusBadRequest, core.CodeInvalidRequest},
		{"bad delete type", http.MethodDelete, "/transactions/x", "alice", map[string]string{"recurringDeleteType": "some"}, http.StatusBadRequest, core.CodeInvalidRequest},
		{"missing transaction", http.MethodDelete, "/transactions/x", "alice", nil, http.StatusNotFound, core.CodeNotFound},
		{"last category", http.MethodDelete, "/categories/" + income[0].ID, "alice", nil, http.StatusConflict, core.CodeCategoryCannotBeEmpty},
		{"foreign invite", http.MethodPost, "/accounts/" + acc.ID + "/invites", "bob", inviteRequest{Email: "carol@example.com"}, http.StatusForbidden, core.CodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, api.do(tt.method, tt.path, tt.user, tt.body), tt.status, tt.code)
		})
	}

	if rr := api.do(http.MethodPatch, "/transactions/x", "alice", nil); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestCurrencyLockedConflict(t *testing.T) {
	api := newTestAPI(t, Options{})
	acc := api.account("alice", "usd")
	food := api.categoryOf("alice", core.TypeExpense)[0]
	api.decode(api.do(http.MethodPost, "/transactions", "alice", map[string]any{
		"transaction": map[string]any{"accountId": acc.ID, "amount": 1, "categoryId": food.ID, "currencyId": "usd", "date": "2024-01-01"},
	}), http.StatusOK, nil)

	expectError(t, api.do(http.MethodPut, "/accounts/"+acc.ID, "alice", accountRequest{CurrencyID: "eur"}),
		http.StatusConflict, core.CodeCurrencyLocked)
}

func TestInviteFlow(t *testing.T) {
	api := newTestAPI(t, Options{})
	acc := api.account("alice", "usd")

	var inv core.AccountInvite
	api.decode(api.do(http.MethodPost, "/accounts/"+acc.ID+"/invites", "alice", inviteRequest{Email: "bob@example.com"}), http.StatusCreated, &inv)

	var pending []core.AccountInvite
	api.decode(api.do(http.MethodGet, "/invites", "bob", nil), http.StatusOK, &pending)
	if len(pending) != 1 || pending[0].ID != inv.ID {
		t.Fatalf("unexpected invites %+v", pending)
	}

	api.decode(api.do(http.MethodPost, "/invites/"+inv.ID+"/accept", "bob", nil), http.StatusOK, &inv)
	if inv.Status != core.InviteAccepted {
		t.Fatalf("status %s", inv.Status)
	}

	var accounts []core.FinancialAccount
	api.decode(api.do(http.MethodGet, "/accounts", "bob", nil), http.StatusOK, &accounts)
	if len(accounts) != 1 || accounts[0].ID != acc.ID {
		t.Fatalf("shared account missing: %+v", accounts)
	}

	api.decode(api.do(http.MethodDelete, "/invites/"+inv.ID, "alice", nil), http.StatusOK, nil)
	api.decode(api.do(http.MethodGet, "/accounts", "bob", nil), http.StatusOK, &accounts)
	if len(accounts) != 0 {
		t.Fatalf("revoked account still listed: %+v", accounts)
	}
}

func TestProfileMainCurrency(t *testing.T) {
	api := newTestAPI(t, Options{})
	var user core.User
	api.decode(api.do(http.MethodPut, "/me", "alice", meRequest{MainCurrencyID: "eur"}), http.StatusOK, &user)
	if user.MainCurrencyID != "eur" {
		t.Fatalf("main currency %q", user.MainCurrencyID)
	}
	expectError(t, api.do(http.MethodPut, "/me", "alice", meRequest{MainCurrencyID: "zzz"}), http.StatusNotFound, core.CodeNotFound)
}

func TestRateLimitOnlyMutations(t *testing.T) {
	api := newTestAPI(t, Options{RateLimitPerMinute: 1})
	api.account("alice", "usd")

	rr := api.do(http.MethodPost, "/categories", "alice", categoryRequest{TypeID: core.TypeExpense, Name: "Pets"})
	expectError(t, rr, http.StatusTooManyRequests, "rate_limited")
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
	if rr := api.do(http.MethodGet, "/categories", "alice", nil); rr.Code != http.StatusOK {
		t.Fatalf("reads must not be limited, got %d", rr.Code)
	}
}
