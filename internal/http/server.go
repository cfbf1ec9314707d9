package http

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"presupuesto/internal/alerts"
	"presupuesto/internal/cache"
	"presupuesto/internal/core"
	"presupuesto/internal/ledger"
	applog "presupuesto/internal/log"
	"presupuesto/internal/middleware/ratelimit"
	"presupuesto/internal/middleware/security"
	"presupuesto/internal/middleware/trace"
	"presupuesto/internal/services"
)

// Ledger is what the API needs from the ledger service.
type Ledger interface {
	AddTransaction(ctx context.Context, draft services.NewTransaction, receipt services.ReceiptTask) (services.AddResult, error)
	AddCategory(ctx context.Context, name string) (bool, error)
	SetBudget(ctx context.Context, category string, limit decimal.Decimal) ([]alerts.Alert, error)
	SetSavingsGoal(ctx context.Context, goal decimal.Decimal) error
	AddDebt(ctx context.Context, d core.Debt) (core.Debt, error)
	PayDebt(ctx context.Context, id string, amount decimal.Decimal) (core.Debt, error)
	AddRecurring(ctx context.Context, rule core.RecurringRule) (core.RecurringRule, error)
	RollRecurring(ctx context.Context) ([]core.Transaction, error)

	Summary() ledger.Summary
	SpentByCategory(category string) decimal.Decimal
	Alerts() []alerts.Alert
	Query(f services.TransactionFilter) []core.Transaction
	Budgets() map[string]decimal.Decimal
	Debts() []core.Debt
	Recurring() []core.RecurringRule
	Categories() []string
	SavingsProgress() ledger.SavingsProgress
	MonthlyReport(year, month int) core.MonthOverview
	ExportCSV(w io.Writer) error
	Version() uint64
	Currencies() []core.Currency
}

// Options tunes the server. Zero values pick the defaults.
type Options struct {
	// RequestsPerMinute caps mutating requests per client IP.
	RequestsPerMinute int
	RequestTimeout    time.Duration
	MaxBodyBytes      int64
	BlockSuspicious   bool
	TrustedProxies    []string
	// Ready reports whether the ledger has been loaded; nil means always ready.
	Ready func(ctx context.Context) error
	Clock func() time.Time
}

// Server serves the ledger over a JSON API.
type Server struct {
	http.Server
	ledger   Ledger
	reports  *cache.ReportCache
	logger   *applog.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	ready    func(ctx context.Context) error
	maxBody  int64
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// A nil reports cache disables report caching.
func NewServer(addr string, l Ledger, reports *cache.ReportCache, logger *applog.Logger, opts Options) *Server {
	if logger == nil {
		logger = applog.Default(applog.ComponentHTTP)
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	s := &Server{
		ledger:   l,
		reports:  reports,
		logger:   logger.WithComponent(applog.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute, Methods: ratelimit.MutatingMethods, Now: opts.Clock}),
		detector: security.NewDetector(opts.BlockSuspicious),
		ready:    opts.Ready,
		maxBody:  opts.MaxBodyBytes,
		now:      opts.Clock,
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", applog.FieldError, err)
		}
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(opts.RequestTimeout),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(timeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(s.tracer.Handler)
	r.Use(chimw.Recoverer)
	r.Use(applog.Middleware(s.logger))
	r.Use(applog.RequestIDMiddleware(trace.RequestID))
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware(s.logger.WithComponent(applog.ComponentSecurity)))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api", func(r chi.Router) {
		r.Use(applog.ComponentMiddleware(applog.ComponentAPI))
		r.Use(chimw.Timeout(timeout))
		r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit))

		r.Get("/summary", s.handleSummary)

		r.Get("/transactions", s.handleListTransactions)
		r.Post("/transactions", s.handleCreateTransaction)

		r.Get("/categories", s.handleListCategories)
		r.Post("/categories", s.handleCreateCategory)

		r.Get("/budgets", s.handleListBudgets)
		r.Put("/budgets/{category}", s.handleSetBudget)
		r.Get("/alerts", s.handleAlerts)

		r.Get("/debts", s.handleListDebts)
		r.Post("/debts", s.handleCreateDebt)
		r.Post("/debts/{id}/payments", s.handlePayDebt)

		r.Get("/recurring", s.handleListRecurring)
		r.Post("/recurring", s.handleCreateRecurring)
		r.Post("/recurring/roll", s.handleRollRecurring)

		r.Get("/savings-goal", s.handleSavingsGoal)
		r.Put("/savings-goal", s.handleSetSavingsGoal)

		r.Get("/reports/monthly", s.handleMonthlyReport)
		r.Get("/export.csv", s.handleExportCSV)
	})
	return r
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	TooManyRequestsError().Write(w)
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics reports request counters of the middleware chain.
type Metrics struct {
	Requests  trace.Metrics             `json:"requests"`
	RateLimit ratelimit.Metrics         `json:"rateLimit"`
	Security  security.DetectionMetrics `json:"security"`
	Reports   cache.Stats               `json:"reports"`
}

func (s *Server) Metrics() Metrics {
	m := Metrics{
		Requests:  s.tracer.GetMetrics(),
		RateLimit: s.limiter.GetMetrics(),
		Security:  s.detector.GetMetrics(),
	}
	if s.reports != nil {
		m.Reports = s.reports.Stats()
	}
	return m
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.Metrics()).Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			ServiceUnavailableError(err.Error()).Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}
