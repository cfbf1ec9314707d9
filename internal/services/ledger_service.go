package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"presupuesto/internal/alerts"
	"presupuesto/internal/backend"
	"presupuesto/internal/core"
	"presupuesto/internal/ledger"
	applog "presupuesto/internal/log"
)

const (
	DefaultQueueSize        = 64
	DefaultAutoSaveCategory = "Ahorro Automático"
	DefaultAutoSaveNotes    = "Ahorro de ingreso"
)

var (
	ErrStopped    = errors.New("ledger service stopped")
	ErrNotStarted = errors.New("ledger service not started")
	ErrReceipt    = errors.New("receipt")
)

// Options configures a LedgerService. Zero values pick the defaults.
type Options struct {
	Rates             core.RateTable
	DefaultCategories []string
	AutoSavePercent   decimal.Decimal
	AutoSaveCategory  string
	AutoSaveNotes     string
	Evaluator         *alerts.Evaluator
	Gate              alerts.Gate
	Notifier          alerts.Notifier
	Logger            *applog.Logger
	Clock             func() time.Time
	QueueSize         int
}

// NewTransaction is a transaction submitted to AddTransaction. AutoSave asks
// for the auto-saving companion when the transaction is income.
type NewTransaction struct {
	core.Transaction
	AutoSave bool
}

type AddResult struct {
	Transaction core.Transaction  `json:"transaction"`
	AutoSaving  *core.Transaction `json:"autoSaving,omitempty"`
	Alerts      []alerts.Alert    `json:"alerts"`
}

// TransactionFilter selects transactions; empty fields match everything.
type TransactionFilter struct {
	Category string
	Type     core.TransactionType
}

// LedgerService owns the ledger. Mutations are queued and applied one at a
// time by a single writer goroutine, in submission order; each applied
// mutation is persisted and followed by a budget alert check. Reads take a
// consistent copy under a read lock.
type LedgerService struct {
	store    backend.Persister
	rates    core.RateTable
	engine   *ledger.Engine
	roller   *RecurringRoller
	eval     *alerts.Evaluator
	gate     alerts.Gate
	notifier alerts.Notifier
	logger   *applog.Logger
	audit    *applog.StructuredLogger
	clock    func() time.Time

	defaultCategories []string
	autoSavePercent   decimal.Decimal
	autoSaveCategory  string
	autoSaveNotes     string

	mu      sync.RWMutex
	ledger  *ledger.Ledger
	version uint64

	jobs      chan *job
	stopCh    chan struct{}
	doneCh    chan struct{}
	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
}

type outcome int

const (
	unchanged outcome = iota
	// reloaded means the state was replaced from the store and needs no write-back.
	reloaded
	mutated
)

type job struct {
	ctx  context.Context
	name string
	// await runs before the writer takes the lock; a failure rejects the job.
	await func(ctx context.Context) error
	apply func(ctx context.Context, l *ledger.Ledger) (any, outcome, error)
	done  chan jobResult
}

type jobResult struct {
	value  any
	alerts []alerts.Alert
	err    error
}

// NewLedgerService returns a stopped service holding an empty ledger. A nil
// store disables persistence.
func NewLedgerService(store backend.Persister, opts Options) *LedgerService {
	if opts.Rates == nil {
		opts.Rates = core.DefaultRates()
	}
	if opts.Logger == nil {
		opts.Logger = applog.Default(applog.ComponentLedger)
	}
	logger := opts.Logger.WithComponent(applog.ComponentLedger)
	if opts.Evaluator == nil {
		opts.Evaluator = alerts.NewEvaluator(decimal.Zero)
	}
	if opts.Gate == nil {
		opts.Gate = alerts.AllowAll{}
	}
	if opts.Notifier == nil {
		opts.Notifier = alerts.LogNotifier{Logger: opts.Logger.WithComponent(applog.ComponentAlerts)}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.AutoSaveCategory == "" {
		opts.AutoSaveCategory = DefaultAutoSaveCategory
	}
	if opts.AutoSaveNotes == "" {
		opts.AutoSaveNotes = DefaultAutoSaveNotes
	}

	return &LedgerService{
		store:             store,
		rates:             opts.Rates,
		engine:            ledger.NewEngine(opts.Rates),
		roller:            NewRecurringRoller(opts.Rates, opts.Logger),
		eval:              opts.Evaluator,
		gate:              opts.Gate,
		notifier:          opts.Notifier,
		logger:            logger,
		audit:             applog.NewStructuredLogger(logger),
		clock:             opts.Clock,
		defaultCategories: append([]string(nil), opts.DefaultCategories...),
		autoSavePercent:   opts.AutoSavePercent,
		autoSaveCategory:  opts.AutoSaveCategory,
		autoSaveNotes:     opts.AutoSaveNotes,
		ledger:            ledger.New(opts.DefaultCategories),
		jobs:              make(chan *job, opts.QueueSize),
		stopCh:            make(chan struct{}),
		doneCh:            make(chan struct{}),
	}
}

// Start launches the writer goroutine.
func (s *LedgerService) Start() {
	s.startOnce.Do(func() {
		s.started.Store(true)
		go s.run()
		s.logger.Info("Ledger service started")
	})
}

// Stop drains the queue and waits for the writer to exit or ctx to end.
// Queued mutations are never dropped.
func (s *LedgerService) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	if !s.started.Load() {
		return nil
	}
	select {
	case <-s.doneCh:
		s.logger.Info("Ledger service stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop ledger service: %w", ctx.Err())
	}
}

func (s *LedgerService) run() {
	defer close(s.doneCh)
	for {
		select {
		case j := <-s.jobs:
			s.process(j)
		case <-s.stopCh:
			for {
				select {
				case j := <-s.jobs:
					s.process(j)
				default:
					return
				}
			}
		}
	}
}

func (s *LedgerService) process(j *job) {
	if j.await != nil {
		if err := j.await(j.ctx); err != nil {
			// The caller may have stopped waiting; the rejection is still recorded here.
			s.logger.WarnContext(j.ctx, "Mutation rejected",
				applog.FieldOperation, j.name, applog.FieldError, err)
			j.done <- jobResult{err: err}
			return
		}
	}

	s.mu.Lock()
	value, out, err := j.apply(j.ctx, s.ledger)
	var snap core.Snapshot
	if err == nil && out != unchanged {
		s.version++
		if out == mutated {
			snap = s.ledger.Snapshot()
		}
	}
	s.mu.Unlock()

	res := jobResult{value: value, err: err}
	if err == nil && out == mutated {
		s.persist(j.ctx, j.name, snap)
		res.alerts = s.checkAlerts(j.ctx)
	}
	j.done <- res
}

func (s *LedgerService) persist(ctx context.Context, op string, snap core.Snapshot) {
	if s.store == nil {
		return
	}
	res, err := s.store.Save(ctx, snap)
	if err != nil {
		s.audit.LogError(ctx, "Failed to persist ledger", err, applog.ComponentLedger, op, applog.NewFields())
		return
	}
	if res.Remote != nil {
		s.logger.WarnContext(ctx, "Ledger saved locally only, pending sync",
			applog.FieldOperation, op, applog.FieldError, res.Remote)
	}
}

// checkAlerts evaluates every budget, hands what passes the gate to the
// notifier, and returns the full evaluation.
func (s *LedgerService) checkAlerts(ctx context.Context) []alerts.Alert {
	list := s.Alerts()
	if notify := s.gate.Filter(list); len(notify) > 0 {
		if err := s.notifier.Notify(ctx, notify); err != nil {
			s.logger.WarnContext(ctx, "Failed to deliver budget alerts", applog.FieldError, err)
		}
	}
	return list
}

func (s *LedgerService) submit(ctx context.Context, j *job) (jobResult, error) {
	if !s.started.Load() {
		return jobResult{}, ErrNotStarted
	}
	select {
	case <-s.stopCh:
		return jobResult{}, ErrStopped
	default:
	}

	j.ctx = context.WithoutCancel(ctx)
	j.done = make(chan jobResult, 1)

	select {
	case s.jobs <- j:
	case <-s.stopCh:
		return jobResult{}, ErrStopped
	case <-ctx.Done():
		return jobResult{}, ctx.Err()
	}

	select {
	case r := <-j.done:
		return r, r.err
	case <-s.doneCh:
		select {
		case r := <-j.done:
			return r, r.err
		default:
			return jobResult{}, ErrStopped
		}
	case <-ctx.Done():
		// The job stays queued and will still be applied.
		return jobResult{}, ctx.Err()
	}
}

func (s *LedgerService) today() core.Date {
	return core.DateOf(s.clock())
}

// Load replaces the ledger with the persisted snapshot, then rolls due
// recurring rules and persists them if any fired.
func (s *LedgerService) Load(ctx context.Context) (backend.Source, error) {
	var (
		snap core.Snapshot
		src  = backend.SourceEmpty
	)
	j := &job{
		name: applog.OpLoad,
		await: func(ctx context.Context) error {
			if s.store == nil {
				snap = core.Snapshot{}
				return nil
			}
			var err error
			snap, src, err = s.store.Load(ctx)
			return err
		},
		apply: func(ctx context.Context, l *ledger.Ledger) (any, outcome, error) {
			l.Restore(snap, s.defaultCategories)
			s.logger.InfoContext(ctx, "Ledger loaded",
				applog.FieldSource, src, "transactions", l.Len())
			if rolled := s.roller.Roll(ctx, l, s.today()); len(rolled) > 0 {
				return nil, mutated, nil
			}
			return nil, reloaded, nil
		},
	}
	if _, err := s.submit(ctx, j); err != nil {
		return backend.SourceEmpty, err
	}
	return src, nil
}

// AddTransaction validates the draft and queues its append. A receipt task,
// when given, starts right away; the append waits for it and a failing task
// rejects the transaction.
func (s *LedgerService) AddTransaction(ctx context.Context, draft NewTransaction, receipt ReceiptTask) (AddResult, error) {
	tx := draft.Transaction
	tx.ID = ""
	tx.Currency = core.NormalizeCode(string(tx.Currency))
	tx.Category = strings.TrimSpace(tx.Category)
	tx.Receipt = nil
	if tx.Date.IsEmpty() {
		tx.Date = s.today()
	}
	if err := tx.Validate(); err != nil {
		return AddResult{}, err
	}
	if _, ok := s.rates.Rate(tx.Currency); !ok {
		return AddResult{}, fmt.Errorf("%w: %q", core.ErrUnknownCurrency, tx.Currency)
	}

	j := &job{name: applog.OpAppend}
	if receipt != nil {
		fut := startReceipt(context.WithoutCancel(ctx), receipt)
		j.await = func(ctx context.Context) error {
			r, err := fut.wait(ctx)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrReceipt, err)
			}
			tx.Receipt = r
			return nil
		}
	}
	j.apply = func(ctx context.Context, l *ledger.Ledger) (any, outcome, error) {
		res := AddResult{Transaction: l.Append(tx)}
		s.logTransaction(ctx, res.Transaction)
		if draft.AutoSave && tx.Type == core.Income && s.autoSavePercent.IsPositive() {
			saving := l.Append(core.Transaction{
				Type:     core.Saving,
				Amount:   core.Percent(tx.Amount, s.autoSavePercent),
				Currency: tx.Currency,
				Date:     tx.Date,
				Category: s.autoSaveCategory,
				Notes:    s.autoSaveNotes,
			})
			s.logTransaction(ctx, saving)
			res.AutoSaving = &saving
		}
		return res, mutated, nil
	}

	r, err := s.submit(ctx, j)
	if err != nil {
		return AddResult{}, err
	}
	res := r.value.(AddResult)
	res.Alerts = r.alerts
	return res, nil
}

func (s *LedgerService) logTransaction(ctx context.Context, t core.Transaction) {
	s.audit.LogTransactionAppended(ctx, t.ID, string(t.Type), t.Amount.String(), string(t.Currency), t.Category)
}

// AddCategory adds name to the category set; it reports whether it was new.
func (s *LedgerService) AddCategory(ctx context.Context, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, core.ErrEmptyCategory
	}
	r, err := s.submit(ctx, &job{
		name: "add_category",
		apply: func(_ context.Context, l *ledger.Ledger) (any, outcome, error) {
			if l.AppendCategoryIfAbsent(name) {
				return true, mutated, nil
			}
			return false, unchanged, nil
		},
	})
	if err != nil {
		return false, err
	}
	return r.value.(bool), nil
}

// SetBudget sets the limit of category; the returned alerts reflect it.
func (s *LedgerService) SetBudget(ctx context.Context, category string, limit decimal.Decimal) ([]alerts.Alert, error) {
	r, err := s.submit(ctx, &job{
		name: "set_budget",
		apply: func(_ context.Context, l *ledger.Ledger) (any, outcome, error) {
			if err := l.SetBudget(category, limit); err != nil {
				return nil, unchanged, err
			}
			return nil, mutated, nil
		},
	})
	return r.alerts, err
}

func (s *LedgerService) SetSavingsGoal(ctx context.Context, goal decimal.Decimal) error {
	_, err := s.submit(ctx, &job{
		name: "set_savings_goal",
		apply: func(_ context.Context, l *ledger.Ledger) (any, outcome, error) {
			if err := l.SetSavingsGoal(goal); err != nil {
				return nil, unchanged, err
			}
			return nil, mutated, nil
		},
	})
	return err
}

func (s *LedgerService) AddDebt(ctx context.Context, d core.Debt) (core.Debt, error) {
	d.ID = ""
	d.Name = strings.TrimSpace(d.Name)
	r, err := s.submit(ctx, &job{
		name: "add_debt",
		apply: func(_ context.Context, l *ledger.Ledger) (any, outcome, error) {
			stored, err := l.AddDebt(d)
			if err != nil {
				return nil, unchanged, err
			}
			return stored, mutated, nil
		},
	})
	if err != nil {
		return core.Debt{}, err
	}
	return r.value.(core.Debt), nil
}

// PayDebt reduces the outstanding amount of debt id. Payments do not create
// a transaction.
func (s *LedgerService) PayDebt(ctx context.Context, id string, amount decimal.Decimal) (core.Debt, error) {
	r, err := s.submit(ctx, &job{
		name: "pay_debt",
		apply: func(_ context.Context, l *ledger.Ledger) (any, outcome, error) {
			paid, err := l.PayDebt(id, amount)
			if err != nil {
				return nil, unchanged, err
			}
			return paid, mutated, nil
		},
	})
	if err != nil {
		return core.Debt{}, err
	}
	return r.value.(core.Debt), nil
}

func (s *LedgerService) AddRecurring(ctx context.Context, rule core.RecurringRule) (core.RecurringRule, error) {
	rule.ID = ""
	rule.Currency = core.NormalizeCode(string(rule.Currency))
	rule.Category = strings.TrimSpace(rule.Category)
	if err := rule.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	if _, ok := s.rates.Rate(rule.Currency); !ok {
		return core.RecurringRule{}, fmt.Errorf("%w: %q", core.ErrUnknownCurrency, rule.Currency)
	}
	r, err := s.submit(ctx, &job{
		name: "add_recurring",
		apply: func(_ context.Context, l *ledger.Ledger) (any, outcome, error) {
			stored, err := l.AddRecurring(rule)
			if err != nil {
				return nil, unchanged, err
			}
			l.AppendCategoryIfAbsent(stored.Category)
			return stored, mutated, nil
		},
	})
	if err != nil {
		return core.RecurringRule{}, err
	}
	return r.value.(core.RecurringRule), nil
}

// RollRecurring materializes every due recurring rule as of today.
func (s *LedgerService) RollRecurring(ctx context.Context) ([]core.Transaction, error) {
	r, err := s.submit(ctx, &job{
		name: applog.OpRoll,
		apply: func(ctx context.Context, l *ledger.Ledger) (any, outcome, error) {
			created := s.roller.Roll(ctx, l, s.today())
			if len(created) == 0 {
				return created, unchanged, nil
			}
			return created, mutated, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return r.value.([]core.Transaction), nil
}

func (s *LedgerService) Summary() ledger.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Summary(s.ledger)
}

func (s *LedgerService) SpentByCategory(category string) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.SpentByCategory(s.ledger, category)
}

// Alerts evaluates every budget against current spending.
func (s *LedgerService) Alerts() []alerts.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eval.Evaluate(s.ledger.Budgets(), func(category string) decimal.Decimal {
		return s.engine.SpentByCategory(s.ledger, category)
	})
}

func (s *LedgerService) Transactions() []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Transactions()
}

// Query returns the transactions matching f in insertion order.
func (s *LedgerService) Query(f TransactionFilter) []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f.Category != "" && f.Type != "" {
		return s.ledger.QueryByCategoryAndType(f.Category, f.Type)
	}
	out := []core.Transaction{}
	for _, t := range s.ledger.Transactions() {
		if f.Category != "" && t.Category != f.Category {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (s *LedgerService) Budgets() map[string]decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Budgets()
}

func (s *LedgerService) Debts() []core.Debt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Debts()
}

func (s *LedgerService) Recurring() []core.RecurringRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Recurring()
}

func (s *LedgerService) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Categories()
}

func (s *LedgerService) SavingsProgress() ledger.SavingsProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.SavingsProgress(s.ledger)
}

func (s *LedgerService) MonthlyReport(year, month int) core.MonthOverview {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.MonthlyReport(s.ledger, year, month)
}

// ExportCSV renders the export under the read lock, then writes it to w.
func (s *LedgerService) ExportCSV(w io.Writer) error {
	var buf bytes.Buffer
	s.mu.RLock()
	err := s.ledger.ExportCSV(&buf)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	_, err = buf.WriteTo(w)
	return err
}

// Version increases with every applied mutation or reload.
func (s *LedgerService) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *LedgerService) Snapshot() core.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Snapshot()
}

// Currencies returns the configured currency codes.
func (s *LedgerService) Currencies() []core.Currency {
	return s.rates.Codes()
}

type receiptFuture struct {
	done    chan struct{}
	receipt *core.Receipt
	err     error
}

func startReceipt(ctx context.Context, task ReceiptTask) *receiptFuture {
	f := &receiptFuture{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.receipt, f.err = task(ctx)
	}()
	return f
}

func (f *receiptFuture) wait(ctx context.Context) (*core.Receipt, error) {
	select {
	case <-f.done:
		return f.receipt, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
