package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
)

// Normalizer converts an amount in a currency into the base unit.
type Normalizer interface {
	Normalize(amount decimal.Decimal, code core.Currency) (decimal.Decimal, error)
}

// Summary holds the derived totals of a ledger, all in the base unit.
// Unnormalized counts transactions left out because their currency has no rate.
type Summary struct {
	Income       decimal.Decimal `json:"income"`
	Expenses     decimal.Decimal `json:"expenses"`
	Savings      decimal.Decimal `json:"savings"`
	TotalDebts   decimal.Decimal `json:"totalDebts"`
	Balance      decimal.Decimal `json:"balance"`
	Unnormalized int             `json:"unnormalized,omitempty"`
}

// SavingsProgress compares accumulated savings with the savings goal.
type SavingsProgress struct {
	Goal    decimal.Decimal `json:"goal"`
	Saved   decimal.Decimal `json:"saved"`
	Percent decimal.Decimal `json:"percent"`
}

// Engine computes aggregates on demand. Nothing is cached or rounded.
type Engine struct {
	rates Normalizer
}

func NewEngine(rates Normalizer) *Engine {
	return &Engine{rates: rates}
}

// Summary computes income, expenses, savings, outstanding debt and
// balance = income - expenses - totalDebts + savings.
func (e *Engine) Summary(l *Ledger) Summary {
	s := Summary{
		Income:     decimal.Zero,
		Expenses:   decimal.Zero,
		Savings:    decimal.Zero,
		TotalDebts: decimal.Zero,
	}
	for _, t := range l.transactions {
		amount, err := e.rates.Normalize(t.Amount, t.Currency)
		if err != nil {
			s.Unnormalized++
			continue
		}
		switch t.Type {
		case core.Income:
			s.Income = s.Income.Add(amount)
		case core.Expense:
			s.Expenses = s.Expenses.Add(amount)
		case core.Saving:
			s.Savings = s.Savings.Add(amount)
		}
	}
	for _, d := range l.debts {
		s.TotalDebts = s.TotalDebts.Add(d.Outstanding())
	}
	s.Balance = s.Income.Sub(s.Expenses).Sub(s.TotalDebts).Add(s.Savings)
	return s
}

// SpentByCategory sums normalized expenses whose category matches exactly.
func (e *Engine) SpentByCategory(l *Ledger, category string) decimal.Decimal {
	total := decimal.Zero
	for _, t := range l.transactions {
		if t.Type != core.Expense || t.Category != category {
			continue
		}
		amount, err := e.rates.Normalize(t.Amount, t.Currency)
		if err != nil {
			continue
		}
		total = total.Add(amount)
	}
	return total
}

// SavingsProgress reports saved vs goal; the percentage is zero without a goal.
func (e *Engine) SavingsProgress(l *Ledger) SavingsProgress {
	p := SavingsProgress{Goal: l.savingsGoal, Saved: e.Summary(l).Savings, Percent: decimal.Zero}
	if p.Goal.IsPositive() {
		p.Percent = p.Saved.Mul(decimal.NewFromInt(100)).Div(p.Goal)
	}
	return p
}

// MonthlyReport aggregates the transactions dated in year/month.
// Expense categories are ordered by amount, largest first.
func (e *Engine) MonthlyReport(l *Ledger, year, month int) core.MonthOverview {
	ov := core.MonthOverview{
		Year:       year,
		Month:      month,
		Income:     decimal.Zero,
		Expenses:   decimal.Zero,
		Savings:    decimal.Zero,
		ByCategory: []core.CategoryAmount{},
	}
	byCat := map[string]decimal.Decimal{}
	order := make([]string, 0)
	for _, t := range l.transactions {
		if t.Date.Year() != year || t.Date.Month() != month {
			continue
		}
		amount, err := e.rates.Normalize(t.Amount, t.Currency)
		if err != nil {
			continue
		}
		ov.Count++
		switch t.Type {
		case core.Income:
			ov.Income = ov.Income.Add(amount)
		case core.Saving:
			ov.Savings = ov.Savings.Add(amount)
		case core.Expense:
			ov.Expenses = ov.Expenses.Add(amount)
			if _, seen := byCat[t.Category]; !seen {
				order = append(order, t.Category)
			}
			byCat[t.Category] = byCat[t.Category].Add(amount)
		}
	}
	for _, name := range order {
		ov.ByCategory = append(ov.ByCategory, core.CategoryAmount{Name: name, Amount: byCat[name]})
	}
	sort.SliceStable(ov.ByCategory, func(i, j int) bool {
		return ov.ByCategory[i].Amount.GreaterThan(ov.ByCategory[j].Amount)
	})
	ov.Net = ov.Income.Sub(ov.Expenses).Add(ov.Savings)
	return ov
}
