package http

import (
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
)

// sanitizeInput drops control characters except tab, newline and carriage return.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// pathParam returns a decoded, sanitized chi route parameter.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		raw = v
	}
	return sanitizeInput(raw)
}

type budgetView struct {
	Category string          `json:"category"`
	Limit    decimal.Decimal `json:"limit"`
	Spent    decimal.Decimal `json:"spent"`
}

// budgetViews lists budgets by category name with the spending next to each limit.
func budgetViews(budgets map[string]decimal.Decimal, spent func(string) decimal.Decimal) []budgetView {
	names := make([]string, 0, len(budgets))
	for name := range budgets {
		names = append(names, name)
	}
	sort.Strings(names)

	views := make([]budgetView, 0, len(names))
	for _, name := range names {
		views = append(views, budgetView{Category: name, Limit: budgets[name], Spent: spent(name)})
	}
	return views
}

func totalOutstanding(debts []core.Debt) decimal.Decimal {
	total := decimal.Zero
	for _, d := range debts {
		total = total.Add(d.Outstanding())
	}
	return total
}
