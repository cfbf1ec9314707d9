package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Snapshot is the full persisted state exchanged with remote and local stores.
// Field names match the payload of the spreadsheet web app.
type Snapshot struct {
	Transactions []Transaction              `json:"transactions"`
	Budgets      map[string]decimal.Decimal `json:"budgets"`
	Debts        []Debt                     `json:"debts"`
	SavingsGoal  decimal.Decimal            `json:"savingsGoal"`
	Recurring    []RecurringRule            `json:"recurring"`
	Categories   []string                   `json:"categories"`
}

// WithDefaults fills missing collections; categories fall back to defaults
// only when the stored list is absent.
func (s Snapshot) WithDefaults(categories []string) Snapshot {
	if s.Transactions == nil {
		s.Transactions = []Transaction{}
	}
	if s.Budgets == nil {
		s.Budgets = map[string]decimal.Decimal{}
	}
	if s.Debts == nil {
		s.Debts = []Debt{}
	}
	if s.Recurring == nil {
		s.Recurring = []RecurringRule{}
	}
	if s.Categories == nil {
		s.Categories = append([]string{}, categories...)
	}
	return s
}

// Clone returns a deep copy; nil collections stay nil.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Transactions != nil {
		out.Transactions = make([]Transaction, len(s.Transactions))
		for i, t := range s.Transactions {
			if t.Receipt != nil {
				r := *t.Receipt
				t.Receipt = &r
			}
			out.Transactions[i] = t
		}
	}
	if s.Budgets != nil {
		out.Budgets = make(map[string]decimal.Decimal, len(s.Budgets))
		for k, v := range s.Budgets {
			out.Budgets[k] = v
		}
	}
	if s.Debts != nil {
		out.Debts = make([]Debt, len(s.Debts))
		for i, d := range s.Debts {
			if d.Remaining != nil {
				r := *d.Remaining
				d.Remaining = &r
			}
			out.Debts[i] = d
		}
	}
	if s.Recurring != nil {
		out.Recurring = append([]RecurringRule{}, s.Recurring...)
	}
	if s.Categories != nil {
		out.Categories = append([]string{}, s.Categories...)
	}
	return out
}

// IsEmpty reports whether the snapshot carries no user data at all.
func (s Snapshot) IsEmpty() bool {
	return len(s.Transactions) == 0 && len(s.Budgets) == 0 && len(s.Debts) == 0 &&
		len(s.Recurring) == 0 && len(s.Categories) == 0 && s.SavingsGoal.IsZero()
}

// ErrTransport matches every *TransportError via errors.Is.
var ErrTransport = errors.New("transport error")

// TransportError reports an unreachable remote store or a non-2xx answer.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: remote answered %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }
