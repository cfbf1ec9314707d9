package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"presupuesto/internal/alerts"
	"presupuesto/internal/core"
	"presupuesto/internal/ledger"
	applog "presupuesto/internal/log"
	"presupuesto/internal/middleware/trace"
	"presupuesto/internal/services"
)

// fail logs err and writes the mapped error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error, mutation bool) {
	status := statusFor(err, mutation)
	logger := applog.FromContext(r.Context())
	fields := applog.NewFields().
		WithOperation(op).
		WithError(err).
		WithHTTPResponse(status, 0, false)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", fields.WithErrorType(applog.ErrorTypeInternal).ToSlice()...)
	} else {
		logger.WarnContext(r.Context(), "Request rejected", fields.WithErrorType(applog.ErrorTypeValidation).ToSlice()...)
	}

	b := NewJSONResponse().
		Status(status).
		Body(ErrorBody{Error: err.Error(), RequestID: trace.GetRequestID(r.Context())})
	if status == http.StatusServiceUnavailable {
		b.Header("Retry-After", "5")
	}
	b.Write(w)
}

// parseBody runs the body parser and writes the error response on failure.
func (s *Server) parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(w, r, s.maxBody)
	if err := p.Parse(); err != nil {
		s.fail(w, r, applog.OpParse, err, false)
		return nil, false
	}
	return p, true
}

type summaryResponse struct {
	ledger.Summary
	Currencies []core.Currency `json:"currencies"`
	Version    uint64          `json:"version"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(summaryResponse{
		Summary:    s.ledger.Summary(),
		Currencies: s.ledger.Currencies(),
		Version:    s.ledger.Version(),
	}).Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := services.TransactionFilter{
		Category: sanitizeInput(q.Get("category")),
		Type:     core.TransactionType(strings.ToLower(sanitizeInput(q.Get("type")))),
	}
	if filter.Type != "" && !filter.Type.Valid() {
		s.fail(w, r, applog.OpList, badRequest("invalid type %q", filter.Type), false)
		return
	}
	txs := s.ledger.Query(filter)
	if txs == nil {
		txs = []core.Transaction{}
	}
	NewJSONResponse().Body(map[string]any{"transactions": txs}).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	draft, err := parseTransaction(p)
	if err != nil {
		s.fail(w, r, applog.OpAppend, err, true)
		return
	}
	res, err := s.ledger.AddTransaction(r.Context(), draft, p.Receipt("receipt"))
	if err != nil {
		s.fail(w, r, applog.OpAppend, err, true)
		return
	}
	if res.Alerts == nil {
		res.Alerts = []alerts.Alert{}
	}
	NewJSONResponse().Status(http.StatusCreated).Body(res).Write(w)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{"categories": s.ledger.Categories()}).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	name := p.Get("name")
	added, err := s.ledger.AddCategory(r.Context(), name)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err, true)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	NewJSONResponse().
		Status(status).
		Body(map[string]any{"name": name, "added": added}).
		Write(w)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().
		Body(map[string]any{"budgets": budgetViews(s.ledger.Budgets(), s.ledger.SpentByCategory)}).
		Write(w)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	category := pathParam(r, "category")
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	limit, err := p.Amount("limit")
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err, true)
		return
	}
	fired, err := s.ledger.SetBudget(r.Context(), category, limit)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err, true)
		return
	}
	if fired == nil {
		fired = []alerts.Alert{}
	}
	NewJSONResponse().Body(map[string]any{
		"category": category,
		"limit":    limit,
		"spent":    s.ledger.SpentByCategory(category),
		"alerts":   fired,
	}).Write(w)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	active := s.ledger.Alerts()
	if active == nil {
		active = []alerts.Alert{}
	}
	NewJSONResponse().Body(map[string]any{"alerts": active}).Write(w)
}

func (s *Server) handleListDebts(w http.ResponseWriter, r *http.Request) {
	debts := s.ledger.Debts()
	if debts == nil {
		debts = []core.Debt{}
	}
	NewJSONResponse().Body(map[string]any{
		"debts":            debts,
		"totalOutstanding": totalOutstanding(debts),
	}).Write(w)
}

func (s *Server) handleCreateDebt(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	d, err := parseDebt(p)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err, true)
		return
	}
	stored, err := s.ledger.AddDebt(r.Context(), d)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err, true)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Body(stored).
		Write(w)
}

func (s *Server) handlePayDebt(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	amount, err := p.Amount("amount")
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err, true)
		return
	}
	paid, err := s.ledger.PayDebt(r.Context(), id, amount)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err, true)
		return
	}
	NewJSONResponse().Body(paid).Write(w)
}

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	rules := s.ledger.Recurring()
	if rules == nil {
		rules = []core.RecurringRule{}
	}
	NewJSONResponse().Body(map[string]any{"recurring": rules}).Write(w)
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	rule, err := parseRecurring(p)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err, true)
		return
	}
	stored, err := s.ledger.AddRecurring(r.Context(), rule)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err, true)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(stored).Write(w)
}

func (s *Server) handleRollRecurring(w http.ResponseWriter, r *http.Request) {
	created, err := s.ledger.RollRecurring(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpRoll, err, true)
		return
	}
	if created == nil {
		created = []core.Transaction{}
	}
	NewJSONResponse().Body(map[string]any{"created": created}).Write(w)
}

func (s *Server) handleSavingsGoal(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.ledger.SavingsProgress()).Write(w)
}

func (s *Server) handleSetSavingsGoal(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	goal, err := p.Amount("goal")
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err, true)
		return
	}
	if err := s.ledger.SetSavingsGoal(r.Context(), goal); err != nil {
		s.fail(w, r, applog.OpUpdate, err, true)
		return
	}
	NewJSONResponse().Body(s.ledger.SavingsProgress()).Write(w)
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		s.fail(w, r, applog.OpRead, err, false)
		return
	}
	compute := func() core.MonthOverview { return s.ledger.MonthlyReport(params.Year, params.Month) }

	cacheStatus := "BYPASS"
	var ov core.MonthOverview
	if s.reports != nil {
		var hit bool
		ov, hit = s.reports.GetOrCompute(params.Year, params.Month, s.ledger.Version(), compute)
		cacheStatus = "MISS"
		if hit {
			cacheStatus = "HIT"
		}
	} else {
		ov = compute()
	}
	NewJSONResponse().Header("X-Cache", cacheStatus).Body(ov).Write(w)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.ledger.ExportCSV(&buf); err != nil {
		s.fail(w, r, applog.OpRead, err, false)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="presupuesto-%s.csv"`, s.now().Format("2006-01-02")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
