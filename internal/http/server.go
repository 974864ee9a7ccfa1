// Package http exposes the Walletize JSON API.
package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"walletize/internal/core"
	"walletize/internal/log"
	"walletize/internal/middleware/ratelimit"
	"walletize/internal/middleware/security"
	"walletize/internal/middleware/trace"
	"walletize/internal/services"
)

const (
	// HeaderUserID and HeaderUserEmail carry the identity asserted by the
	// authenticating proxy in front of the API.
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
)

// Services bundles the application services the API routes to.
type Services struct {
	Transactions *services.TransactionService
	Reports      *services.ReportService
	Accounts     *services.AccountService
	Categories   *services.CategoryService
}

// Options tunes the server. Zero values pick defaults.
type Options struct {
	RateLimitPerMinute int
	Logger             *log.Logger
	// Ready reports whether dependencies are reachable. Nil means always
	// ready.
	Ready func(context.Context) error
}

type Server struct {
	http.Server
	svc    Services
	logger *log.Logger
	ready  func(context.Context) error

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	headers          *security.HeadersMiddleware

	started      time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, svc Services, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentHTTP})
	}

	rlConfig := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		rlConfig.RequestsPerMinute = opts.RateLimitPerMinute
	}
	detector := security.NewDetector()

	s := &Server{
		svc:              svc,
		logger:           logger,
		ready:            opts.Ready,
		rateLimiter:      ratelimit.NewLimiter(rlConfig),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP, logger),
		headers:          security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		started:          time.Now(),
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	// Transactions
	mux.Handle("POST /transactions", s.authed(s.handleCreateTransaction))
	mux.Handle("POST /transactions/transfer", s.authed(s.handleCreateTransfer))
	mux.Handle("POST /transactions/update", s.authed(s.handleCreateBalanceUpdate))
	mux.Handle("PUT /transactions/{id}", s.authed(s.handleEditTransaction))
	mux.Handle("DELETE /transactions/{id}", s.authed(s.handleDeleteTransaction))
	mux.Handle("GET /transactions/account/{accountId}", s.authed(s.handleAccountReport))
	mux.Handle("GET /transactions/user/{userId}", s.authed(s.handleUserReport))
	mux.Handle("GET /transactions/chart", s.authed(s.handleCategoryChart))

	// Accounts and sharing
	mux.Handle("GET /accounts", s.authed(s.handleListAccounts))
	mux.Handle("POST /accounts", s.authed(s.handleCreateAccount))
	mux.Handle("GET /accounts/categories", s.authed(s.handleListAccountCategories))
	mux.Handle("PUT /accounts/{id}", s.authed(s.handleUpdateAccount))
	mux.Handle("DELETE /accounts/{id}", s.authed(s.handleDeleteAccount))
	mux.Handle("GET /accounts/{id}/invites", s.authed(s.handleListAccountInvites))
	mux.Handle("POST /accounts/{id}/invites", s.authed(s.handleCreateInvite))
	mux.Handle("GET /invites", s.authed(s.handleListInvites))
	mux.Handle("POST /invites/{id}/accept", s.authed(s.handleAcceptInvite))
	mux.Handle("DELETE /invites/{id}", s.authed(s.handleDeleteInvite))

	// Categories, currencies and profile
	mux.Handle("GET /categories", s.authed(s.handleListCategories))
	mux.Handle("POST /categories", s.authed(s.handleCreateCategory))
	mux.Handle("PUT /categories/{id}", s.authed(s.handleUpdateCategory))
	mux.Handle("DELETE /categories/{id}", s.authed(s.handleDeleteCategory))
	mux.Handle("GET /currencies", s.authed(s.handleListCurrencies))
	mux.Handle("GET /me", s.authed(s.handleGetMe))
	mux.Handle("PUT /me", s.authed(s.handleUpdateMe))

	limit := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.handleRateLimited)

	var h http.Handler = mux
	h = limit(h)
	h = s.headers.Middleware(h)
	h = s.securityDetector.Middleware(h)
	h = s.traceMiddleware.Middleware(h)
	return h
}

// authed resolves the caller from the proxy headers, creating the user on
// first sight, and tags the request logger with the user id.
func (s *Server) authed(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := services.Actor{
			ID:    strings.TrimSpace(r.Header.Get(HeaderUserID)),
			Email: strings.TrimSpace(r.Header.Get(HeaderUserEmail)),
		}
		if actor.ID == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: core.CodeUnauthorized, Message: "missing " + HeaderUserID})
			return
		}

		ctx := r.Context()
		user, err := s.svc.Accounts.EnsureUser(ctx, actor)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if actor.Email == "" {
			actor.Email = user.Email
		}

		logger := log.FromContext(ctx).WithFields(log.NewFields().WithUser(actor.ID))
		ctx = log.NewContext(withActor(ctx, actor), logger)
		next(w, r.WithContext(ctx))
	})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.NewFields().
			WithComponent(log.ComponentRateLimit).
			WithClientIP(s.securityDetector.ExtractClientIP(r)).
			WithHTTPRequest(r.Method, r.URL.Path, "", "").
			ToSlice()...)
	writeJSON(w, http.StatusTooManyRequests, errorResponse{
		Error:   "rate_limited",
		Message: "Rate limit exceeded. Please try again later.",
	})
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
