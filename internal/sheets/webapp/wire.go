package webapp

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
)

// The web app does arithmetic on amounts, so they go out as JSON numbers
// rather than the quoted strings decimal.Decimal marshals to.

type wireSnapshot struct {
	Transactions []wireTransaction      `json:"transactions"`
	Budgets      map[string]json.Number `json:"budgets"`
	Debts        []wireDebt             `json:"debts"`
	SavingsGoal  json.Number            `json:"savingsGoal"`
	Recurring    []wireRecurring        `json:"recurring"`
	Categories   []string               `json:"categories"`
}

type wireTransaction struct {
	ID          string               `json:"id,omitempty"`
	Type        core.TransactionType `json:"type"`
	Amount      json.Number          `json:"amount"`
	Currency    core.Currency        `json:"currency"`
	Date        core.Date            `json:"date"`
	Category    string               `json:"category"`
	ExpenseType string               `json:"expenseType,omitempty"`
	Notes       string               `json:"notes,omitempty"`
	Receipt     *core.Receipt        `json:"receipt,omitempty"`
}

type wireDebt struct {
	ID        string       `json:"id,omitempty"`
	Name      string       `json:"name,omitempty"`
	Amount    json.Number  `json:"amount"`
	Remaining *json.Number `json:"remaining,omitempty"`
}

type wireRecurring struct {
	ID          string               `json:"id,omitempty"`
	Type        core.TransactionType `json:"type"`
	Amount      json.Number          `json:"amount"`
	Currency    core.Currency        `json:"currency"`
	Category    string               `json:"category"`
	Notes       string               `json:"notes,omitempty"`
	Every       core.RepetitionTypes `json:"period"`
	StartDate   core.Date            `json:"startDate"`
	LastApplied core.Date            `json:"lastApplied"`
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func toWire(s core.Snapshot) wireSnapshot {
	s = s.WithDefaults(nil)
	w := wireSnapshot{
		Transactions: make([]wireTransaction, 0, len(s.Transactions)),
		Budgets:      make(map[string]json.Number, len(s.Budgets)),
		Debts:        make([]wireDebt, 0, len(s.Debts)),
		SavingsGoal:  number(s.SavingsGoal),
		Recurring:    make([]wireRecurring, 0, len(s.Recurring)),
		Categories:   s.Categories,
	}
	for _, t := range s.Transactions {
		w.Transactions = append(w.Transactions, wireTransaction{
			ID:          t.ID,
			Type:        t.Type,
			Amount:      number(t.Amount),
			Currency:    t.Currency,
			Date:        t.Date,
			Category:    t.Category,
			ExpenseType: t.ExpenseType,
			Notes:       t.Notes,
			Receipt:     t.Receipt,
		})
	}
	for k, v := range s.Budgets {
		w.Budgets[k] = number(v)
	}
	for _, d := range s.Debts {
		wd := wireDebt{ID: d.ID, Name: d.Name, Amount: number(d.Principal)}
		if d.Remaining != nil {
			n := number(*d.Remaining)
			wd.Remaining = &n
		}
		w.Debts = append(w.Debts, wd)
	}
	for _, r := range s.Recurring {
		w.Recurring = append(w.Recurring, wireRecurring{
			ID:          r.ID,
			Type:        r.Type,
			Amount:      number(r.Amount),
			Currency:    r.Currency,
			Category:    r.Category,
			Notes:       r.Notes,
			Every:       r.Every,
			StartDate:   r.StartDate,
			LastApplied: r.LastApplied,
		})
	}
	return w
}
