// Package http provides HTTP server and handler implementations.
//
// The server exposes the ledger, budgets, scheduled payments, notifications
// and reports as a JSON API under /api/v1, plus health, readiness and metrics
// endpoints.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"lana/internal/core"
	"lana/internal/ledger"
	applog "lana/internal/log"
	"lana/internal/metrics"
	"lana/internal/middleware/ratelimit"
	"lana/internal/middleware/security"
	"lana/internal/middleware/trace"
	"lana/internal/services"
)

type (
	Catalog interface {
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
		ListCategories(ctx context.Context) ([]core.Category, error)
		CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
		GetAccount(ctx context.Context, owner, id int64) (core.Account, error)
	}

	Transactions interface {
		Record(ctx context.Context, tx core.Transaction) (int64, error)
	}

	Budgets interface {
		Create(ctx context.Context, b core.Budget) (core.Budget, error)
		Get(ctx context.Context, owner, id int64) (core.Budget, error)
		Update(ctx context.Context, owner, id int64, u core.BudgetUpdate) (core.Budget, error)
		Status(ctx context.Context, owner, id int64) (core.BudgetStatus, error)
	}

	Payments interface {
		Create(ctx context.Context, p core.Payment) (core.Payment, error)
		Get(ctx context.Context, owner, id int64) (core.Payment, error)
		Update(ctx context.Context, owner, id int64, u core.PaymentUpdate) (core.Payment, error)
		Cancel(ctx context.Context, owner, id int64) error
		Upcoming(ctx context.Context, owner int64, today core.Date, days int) ([]core.Payment, error)
	}

	Processor interface {
		ProcessDuePayments(ctx context.Context, today core.Date) ([]services.PaymentOutcome, error)
	}

	Notifications interface {
		List(ctx context.Context, owner int64, f ledger.NotificationFilter) ([]core.Notification, error)
		Pending(ctx context.Context, owner int64) ([]core.Notification, error)
		Get(ctx context.Context, owner, id int64) (core.Notification, error)
		MarkRead(ctx context.Context, owner, id int64) error
		Delete(ctx context.Context, owner, id int64) error
		Preferences(ctx context.Context, owner int64) (core.NotificationPreferences, error)
		SavePreferences(ctx context.Context, p core.NotificationPreferences) error
	}

	Reports interface {
		MonthOverview(ctx context.Context, owner int64, p core.Period) (core.MonthOverview, error)
		YearHistory(ctx context.Context, owner int64, year int) (core.YearHistory, error)
		TopCategories(ctx context.Context, owner int64, kind core.CategoryKind, year, month, limit int) ([]core.CategoryShare, error)
		Budgets(ctx context.Context, owner int64, p core.Period) ([]core.BudgetStatus, error)
	}

	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// Deps are the services the API is built on. Metrics may be nil.
type Deps struct {
	Catalog       Catalog
	Transactions  Transactions
	Budgets       Budgets
	Payments      Payments
	Processor     Processor
	Notifications Notifications
	Reports       Reports
	Store         Pinger
	Metrics       *metrics.Metrics
}

// Options tune the transport. Zero values fall back to defaults; a nil
// Logger writes through slog.Default.
type Options struct {
	Logger       *applog.Logger
	APIToken     string
	RateLimit    ratelimit.Config
	Location     *time.Location
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type Server struct {
	http.Server
	deps     Deps
	location *time.Location
	limiter  *ratelimit.Limiter
	access   *applog.StructuredLogger

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.Config{Handler: slog.Default().Handler(), Component: applog.ComponentHTTP})
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 60 * time.Second
	}

	router := mux.NewRouter()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           router,
			ReadTimeout:       opts.ReadTimeout,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      opts.WriteTimeout,
			IdleTimeout:       opts.IdleTimeout,
		},
		deps:     deps,
		location: opts.Location,
		limiter:  ratelimit.NewLimiter(opts.RateLimit),
		access:   applog.NewStructuredLogger(opts.Logger),
	}

	clientIP := security.NewClientIP()
	tracer := trace.NewMiddleware(clientIP.Extract, s.observe)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	router.Use(
		applog.Middleware(opts.Logger),
		tracer.Middleware,
		applog.RequestIDMiddleware(func(r *http.Request) string { return trace.GetRequestID(r.Context()) }),
		headers.Middleware,
	)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("route not found").Write(w)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	router.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	router.Handle("/metrics", deps.Metrics.Handler()).Methods(http.MethodGet)

	auth := security.NewAuth(opts.APIToken, func(w http.ResponseWriter, _ *http.Request, status int, msg string) {
		ErrorResponse(status, msg).Write(w)
	})
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").
			Header("Retry-After", "1").
			Write(w)
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.limiter.Middleware(clientIP.Extract, onLimit), auth.Middleware)
	s.routes(api)

	return s
}

func (s *Server) routes(api *mux.Router) {
	api.HandleFunc("/categories", s.handleListCategories).Methods(http.MethodGet)
	api.HandleFunc("/categories", s.handleCreateCategory).Methods(http.MethodPost)
	api.HandleFunc("/accounts", s.handleCreateAccount).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{id:[0-9]+}", s.handleGetAccount).Methods(http.MethodGet)
	api.HandleFunc("/transactions", s.handleCreateTransaction).Methods(http.MethodPost)

	api.HandleFunc("/budgets", s.handleCreateBudget).Methods(http.MethodPost)
	api.HandleFunc("/budgets/{id:[0-9]+}", s.handleGetBudget).Methods(http.MethodGet)
	api.HandleFunc("/budgets/{id:[0-9]+}", s.handleUpdateBudget).Methods(http.MethodPatch)
	api.HandleFunc("/budgets/{id:[0-9]+}/status", s.handleBudgetStatus).Methods(http.MethodGet)

	api.HandleFunc("/scheduled-payments", s.handleCreatePayment).Methods(http.MethodPost)
	api.HandleFunc("/scheduled-payments/upcoming", s.handleUpcomingPayments).Methods(http.MethodGet)
	api.HandleFunc("/scheduled-payments/process", s.handleProcessPayments).Methods(http.MethodPost)
	api.HandleFunc("/scheduled-payments/{id:[0-9]+}", s.handleGetPayment).Methods(http.MethodGet)
	api.HandleFunc("/scheduled-payments/{id:[0-9]+}", s.handleUpdatePayment).Methods(http.MethodPatch)
	api.HandleFunc("/scheduled-payments/{id:[0-9]+}", s.handleCancelPayment).Methods(http.MethodDelete)

	api.HandleFunc("/notifications", s.handleListNotifications).Methods(http.MethodGet)
	api.HandleFunc("/notifications/pending", s.handlePendingNotifications).Methods(http.MethodGet)
	api.HandleFunc("/notifications/preferences", s.handleGetPreferences).Methods(http.MethodGet)
	api.HandleFunc("/notifications/preferences", s.handleSavePreferences).Methods(http.MethodPut)
	api.HandleFunc("/notifications/{id:[0-9]+}", s.handleGetNotification).Methods(http.MethodGet)
	api.HandleFunc("/notifications/{id:[0-9]+}", s.handleDeleteNotification).Methods(http.MethodDelete)
	api.HandleFunc("/notifications/{id:[0-9]+}/read", s.handleMarkRead).Methods(http.MethodPost)

	api.HandleFunc("/reports/categories", s.handleCategoryReport).Methods(http.MethodGet)
	api.HandleFunc("/reports/history", s.handleHistoryReport).Methods(http.MethodGet)
	api.HandleFunc("/reports/top-categories", s.handleTopCategories).Methods(http.MethodGet)
	api.HandleFunc("/reports/budgets", s.handleBudgetReport).Methods(http.MethodGet)
}

// observe writes the access log line and records request metrics under the
// route template so that path parameters do not explode label cardinality.
func (s *Server) observe(r *http.Request, c trace.Completion) {
	s.access.LogHTTPEnd(r.Context(), r, c.RequestID, c.StatusCode, c.Duration.Milliseconds(), c.ClientIP)

	route := "unmatched"
	if cur := mux.CurrentRoute(r); cur != nil {
		if tpl, err := cur.GetPathTemplate(); err == nil {
			route = tpl
		}
	}
	s.deps.Metrics.ObserveHTTP(route, r.Method, c.StatusCode, c.Duration)
}

// Shutdown gracefully shuts down the server and the rate limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// today is the current calendar day in the configured time zone.
func (s *Server) today() core.Date {
	return core.Today(s.location)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Store.Ping(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			ErrorResponse(http.StatusServiceUnavailable, "storage unavailable").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

// owner returns the authenticated owner. The auth middleware guarantees it is
// present on every /api/v1 route.
func owner(r *http.Request) int64 {
	id, _ := security.OwnerFromContext(r.Context())
	return id
}
