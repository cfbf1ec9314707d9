// Package ledger holds the in-memory application state: the ordered
// transaction list, budgets, debts, recurring rules, categories and the
// savings goal, plus the aggregates derived from them.
//
// A Ledger is not safe for concurrent use; the owning service serializes
// every access.
package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
)

var (
	ErrDebtNotFound      = errors.New("debt not found")
	ErrRecurringNotFound = errors.New("recurring rule not found")
	ErrNegativeLimit     = errors.New("budget limit cannot be negative")
)

type Ledger struct {
	transactions []core.Transaction
	budgets      map[string]decimal.Decimal
	debts        []core.Debt
	recurring    []core.RecurringRule
	categories   []string
	savingsGoal  decimal.Decimal
}

// New returns an empty ledger seeded with the given categories.
func New(categories []string) *Ledger {
	l := &Ledger{budgets: map[string]decimal.Decimal{}}
	for _, c := range categories {
		l.AppendCategoryIfAbsent(c)
	}
	return l
}

// FromSnapshot builds a ledger from persisted state.
func FromSnapshot(s core.Snapshot, defaultCategories []string) *Ledger {
	l := New(nil)
	l.Restore(s, defaultCategories)
	return l
}

// Restore replaces the whole state with s. Categories used by stored
// transactions are merged into the category set.
func (l *Ledger) Restore(s core.Snapshot, defaultCategories []string) {
	s = s.WithDefaults(defaultCategories)
	*l = Ledger{
		transactions: append([]core.Transaction(nil), s.Transactions...),
		budgets:      make(map[string]decimal.Decimal, len(s.Budgets)),
		debts:        copyDebts(s.Debts),
		recurring:    append([]core.RecurringRule(nil), s.Recurring...),
		savingsGoal:  s.SavingsGoal,
	}
	for k, v := range s.Budgets {
		l.budgets[k] = v
	}
	// Records written by older clients carry no IDs; payments and roll-overs address them by ID.
	for i := range l.debts {
		if l.debts[i].ID == "" {
			l.debts[i].ID = uuid.NewString()
		}
	}
	for i := range l.recurring {
		if l.recurring[i].ID == "" {
			l.recurring[i].ID = uuid.NewString()
		}
	}
	// Older clients omitted the currency on base-currency entries.
	for i := range l.transactions {
		if l.transactions[i].Currency == "" {
			l.transactions[i].Currency = core.BaseCurrency
		}
	}
	for _, c := range s.Categories {
		l.AppendCategoryIfAbsent(c)
	}
	for _, t := range l.transactions {
		l.AppendCategoryIfAbsent(t.Category)
	}
}

// Snapshot returns a deep copy of the state suitable for persistence.
func (l *Ledger) Snapshot() core.Snapshot {
	return core.Snapshot{
		Transactions: l.Transactions(),
		Budgets:      l.Budgets(),
		Debts:        l.Debts(),
		SavingsGoal:  l.savingsGoal,
		Recurring:    l.Recurring(),
		Categories:   l.Categories(),
	}
}

// Append adds t at the end of the ledger and returns the stored copy.
// A missing ID is generated; an unseen category joins the category set.
func (l *Ledger) Append(t core.Transaction) core.Transaction {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Receipt != nil {
		r := *t.Receipt
		t.Receipt = &r
	}
	l.transactions = append(l.transactions, t)
	l.AppendCategoryIfAbsent(t.Category)
	return t
}

// AppendCategoryIfAbsent adds name to the category set unless it is empty or
// already present. Reports whether the set grew.
func (l *Ledger) AppendCategoryIfAbsent(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	for _, c := range l.categories {
		if c == name {
			return false
		}
	}
	l.categories = append(l.categories, name)
	return true
}

// QueryByCategoryAndType filters transactions in insertion order using an
// exact, case-sensitive category match.
func (l *Ledger) QueryByCategoryAndType(category string, typ core.TransactionType) []core.Transaction {
	var out []core.Transaction
	for _, t := range l.transactions {
		if t.Category == category && t.Type == typ {
			out = append(out, t)
		}
	}
	return out
}

func (l *Ledger) Transactions() []core.Transaction {
	return append([]core.Transaction{}, l.transactions...)
}

func (l *Ledger) Len() int { return len(l.transactions) }

func (l *Ledger) Debts() []core.Debt { return copyDebts(l.debts) }

func (l *Ledger) Recurring() []core.RecurringRule {
	return append([]core.RecurringRule{}, l.recurring...)
}

func (l *Ledger) Categories() []string { return append([]string{}, l.categories...) }

func (l *Ledger) SavingsGoal() decimal.Decimal { return l.savingsGoal }

// Budgets returns a copy of the category -> limit map.
func (l *Ledger) Budgets() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(l.budgets))
	for k, v := range l.budgets {
		out[k] = v
	}
	return out
}

// Budget looks up the limit configured for category.
func (l *Ledger) Budget(category string) (decimal.Decimal, bool) {
	v, ok := l.budgets[category]
	return v, ok
}

// SetBudget sets the limit for category. A zero limit means "no limit".
func (l *Ledger) SetBudget(category string, limit decimal.Decimal) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return core.ErrEmptyCategory
	}
	if limit.IsNegative() {
		return ErrNegativeLimit
	}
	l.budgets[category] = limit
	l.AppendCategoryIfAbsent(category)
	return nil
}

func (l *Ledger) SetSavingsGoal(goal decimal.Decimal) error {
	if goal.IsNegative() {
		return core.ErrInvalidAmount
	}
	l.savingsGoal = goal
	return nil
}

// AddDebt validates and stores d, assigning an ID when missing.
func (l *Ledger) AddDebt(d core.Debt) (core.Debt, error) {
	if err := d.Validate(); err != nil {
		return core.Debt{}, err
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Remaining != nil {
		r := *d.Remaining
		d.Remaining = &r
	}
	l.debts = append(l.debts, d)
	return copyDebt(d), nil
}

// PayDebt reduces the outstanding amount of the debt, never below zero.
func (l *Ledger) PayDebt(id string, amount decimal.Decimal) (core.Debt, error) {
	if !amount.IsPositive() {
		return core.Debt{}, core.ErrInvalidAmount
	}
	for i := range l.debts {
		if l.debts[i].ID != id {
			continue
		}
		remaining := l.debts[i].Outstanding().Sub(amount)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		l.debts[i].Remaining = &remaining
		return copyDebt(l.debts[i]), nil
	}
	return core.Debt{}, fmt.Errorf("%w: %s", ErrDebtNotFound, id)
}

// AddRecurring validates and stores a recurring rule.
func (l *Ledger) AddRecurring(r core.RecurringRule) (core.RecurringRule, error) {
	if err := r.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	l.recurring = append(l.recurring, r)
	return r, nil
}

// MarkRecurringApplied advances the last-applied date of rule id.
func (l *Ledger) MarkRecurringApplied(id string, on core.Date) error {
	for i := range l.recurring {
		if l.recurring[i].ID == id {
			l.recurring[i].LastApplied = on
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrRecurringNotFound, id)
}

func copyDebt(d core.Debt) core.Debt {
	if d.Remaining != nil {
		r := *d.Remaining
		d.Remaining = &r
	}
	return d
}

func copyDebts(in []core.Debt) []core.Debt {
	out := make([]core.Debt, len(in))
	for i, d := range in {
		out[i] = copyDebt(d)
	}
	return out
}
