// Package alerts evaluates per-category spend against budget limits.
package alerts

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultThreshold is the spend/limit fraction above which an alert fires.
var DefaultThreshold = decimal.RequireFromString("0.8")

// ErrZeroLimit is returned by Usage when no limit is configured.
var ErrZeroLimit = errors.New("budget limit is zero")

var hundred = decimal.NewFromInt(100)

// Alert reports a category whose spend crossed the threshold.
type Alert struct {
	Category   string          `json:"category"`
	Spent      decimal.Decimal `json:"spent"`
	Limit      decimal.Decimal `json:"limit"`
	Percentage decimal.Decimal `json:"percentage"`
}

// SpendSource returns the normalized expense total of a category.
type SpendSource func(category string) decimal.Decimal

// Usage returns spent/limit. A zero or negative limit yields ErrZeroLimit.
func Usage(spent, limit decimal.Decimal) (decimal.Decimal, error) {
	if !limit.IsPositive() {
		return decimal.Zero, ErrZeroLimit
	}
	return spent.Div(limit), nil
}

type Evaluator struct {
	threshold decimal.Decimal
}

// NewEvaluator returns an evaluator for the given threshold fraction.
// A non-positive threshold falls back to DefaultThreshold.
func NewEvaluator(threshold decimal.Decimal) *Evaluator {
	if !threshold.IsPositive() {
		threshold = DefaultThreshold
	}
	return &Evaluator{threshold: threshold}
}

func (e *Evaluator) Threshold() decimal.Decimal { return e.threshold }

// Evaluate emits at most one alert per budgeted category, sorted by category.
// Categories without a positive limit never alert.
func (e *Evaluator) Evaluate(budgets map[string]decimal.Decimal, spent SpendSource) []Alert {
	names := make([]string, 0, len(budgets))
	for name := range budgets {
		names = append(names, name)
	}
	sort.Strings(names)

	out := []Alert{}
	for _, name := range names {
		limit := budgets[name]
		s := spent(name)
		usage, err := Usage(s, limit)
		if err != nil {
			continue
		}
		if usage.GreaterThan(e.threshold) {
			out = append(out, Alert{
				Category:   name,
				Spent:      s,
				Limit:      limit,
				Percentage: usage.Mul(hundred),
			})
		}
	}
	return out
}
