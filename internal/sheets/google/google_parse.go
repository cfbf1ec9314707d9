package google

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
)

// Tab names and their header rows. Columns are fixed; extra columns are ignored.
const (
	TabTransactions = "Transactions"
	TabBudgets      = "Budgets"
	TabDebts        = "Debts"
	TabRecurring    = "Recurring"
	TabCategories   = "Categories"
	TabSettings     = "Settings"
)

var tabHeaders = map[string][]any{
	TabTransactions: {"ID", "Type", "Amount", "Currency", "Date", "Category", "ExpenseType", "Notes", "ReceiptRef", "ReceiptName", "ReceiptContentType", "ReceiptSize"},
	TabBudgets:      {"Category", "Limit"},
	TabDebts:        {"ID", "Name", "Amount", "Remaining"},
	TabRecurring:    {"ID", "Type", "Amount", "Currency", "Category", "Notes", "Period", "StartDate", "LastApplied"},
	TabCategories:   {"Name"},
	TabSettings:     {"Key", "Value"},
}

// tabOrder is the order of ranges in batch requests.
var tabOrder = []string{TabTransactions, TabBudgets, TabDebts, TabRecurring, TabCategories, TabSettings}

const settingSavingsGoal = "savingsGoal"

// snapshotToValues renders one matrix per tab, header row first.
func snapshotToValues(s core.Snapshot) map[string][][]any {
	out := make(map[string][][]any, len(tabOrder))
	for _, tab := range tabOrder {
		out[tab] = [][]any{tabHeaders[tab]}
	}

	for _, t := range s.Transactions {
		ref, name, contentType, size := "", "", "", ""
		if r := t.Receipt; r != nil {
			ref, name, contentType = r.Ref, r.Name, r.ContentType
			if r.Size > 0 {
				size = strconv.FormatInt(r.Size, 10)
			}
		}
		out[TabTransactions] = append(out[TabTransactions], []any{
			t.ID, string(t.Type), t.Amount.String(), string(t.Currency), t.Date.String(),
			t.Category, t.ExpenseType, t.Notes, ref, name, contentType, size,
		})
	}
	for _, cat := range sortedKeys(s.Budgets) {
		out[TabBudgets] = append(out[TabBudgets], []any{cat, s.Budgets[cat].String()})
	}
	for _, d := range s.Debts {
		remaining := ""
		if d.Remaining != nil {
			remaining = d.Remaining.String()
		}
		out[TabDebts] = append(out[TabDebts], []any{d.ID, d.Name, d.Principal.String(), remaining})
	}
	for _, r := range s.Recurring {
		out[TabRecurring] = append(out[TabRecurring], []any{
			r.ID, string(r.Type), r.Amount.String(), string(r.Currency), r.Category, r.Notes,
			string(r.Every), r.StartDate.String(), r.LastApplied.String(),
		})
	}
	for _, c := range s.Categories {
		out[TabCategories] = append(out[TabCategories], []any{c})
	}
	out[TabSettings] = append(out[TabSettings], []any{settingSavingsGoal, s.SavingsGoal.String()})
	return out
}

// valuesToSnapshot parses the tabs back. Rows that cannot be parsed are
// skipped and reported in the returned count.
func valuesToSnapshot(tabs map[string][][]any) (core.Snapshot, int) {
	s := core.Snapshot{
		Transactions: []core.Transaction{},
		Budgets:      map[string]decimal.Decimal{},
		Debts:        []core.Debt{},
		Recurring:    []core.RecurringRule{},
	}
	skipped := 0

	for _, row := range body(tabs[TabTransactions]) {
		t, err := parseTransaction(toStrings(row))
		if err != nil {
			skipped++
			continue
		}
		s.Transactions = append(s.Transactions, t)
	}
	for _, row := range body(tabs[TabBudgets]) {
		cols := toStrings(row)
		name := safeGet(cols, 0)
		limit, err := parseDecimal(safeGet(cols, 1))
		if name == "" || err != nil {
			skipped++
			continue
		}
		s.Budgets[name] = limit
	}
	for _, row := range body(tabs[TabDebts]) {
		d, err := parseDebt(toStrings(row))
		if err != nil {
			skipped++
			continue
		}
		s.Debts = append(s.Debts, d)
	}
	for _, row := range body(tabs[TabRecurring]) {
		r, err := parseRecurring(toStrings(row))
		if err != nil {
			skipped++
			continue
		}
		s.Recurring = append(s.Recurring, r)
	}
	if rows, ok := tabs[TabCategories]; ok {
		s.Categories = []string{}
		for _, row := range body(rows) {
			if name := safeGet(toStrings(row), 0); name != "" {
				s.Categories = append(s.Categories, name)
			}
		}
	}
	for _, row := range body(tabs[TabSettings]) {
		cols := toStrings(row)
		if safeGet(cols, 0) == settingSavingsGoal {
			if goal, err := parseDecimal(safeGet(cols, 1)); err == nil {
				s.SavingsGoal = goal
			}
		}
	}
	return s, skipped
}

func parseTransaction(cols []string) (core.Transaction, error) {
	amount, err := parseDecimal(safeGet(cols, 2))
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := core.ParseDate(safeGet(cols, 4))
	if err != nil {
		return core.Transaction{}, err
	}
	t := core.Transaction{
		ID:          safeGet(cols, 0),
		Type:        core.TransactionType(strings.ToLower(safeGet(cols, 1))),
		Amount:      amount,
		Currency:    core.NormalizeCode(safeGet(cols, 3)),
		Date:        date,
		Category:    safeGet(cols, 5),
		ExpenseType: safeGet(cols, 6),
		Notes:       safeGet(cols, 7),
	}
	if ref := safeGet(cols, 8); ref != "" {
		t.Receipt = &core.Receipt{Ref: ref, Name: safeGet(cols, 9), ContentType: safeGet(cols, 10)}
		// Size is informational; an unreadable cell leaves it unset.
		if size, err := strconv.ParseInt(safeGet(cols, 11), 10, 64); err == nil && size > 0 {
			t.Receipt.Size = size
		}
	}
	if !t.Type.Valid() {
		return core.Transaction{}, core.ErrInvalidType
	}
	return t, nil
}

func parseDebt(cols []string) (core.Debt, error) {
	principal, err := parseDecimal(safeGet(cols, 2))
	if err != nil {
		return core.Debt{}, err
	}
	d := core.Debt{ID: safeGet(cols, 0), Name: safeGet(cols, 1), Principal: principal}
	if rem := safeGet(cols, 3); rem != "" {
		r, err := parseDecimal(rem)
		if err != nil {
			return core.Debt{}, err
		}
		d.Remaining = &r
	}
	return d, nil
}

func parseRecurring(cols []string) (core.RecurringRule, error) {
	amount, err := parseDecimal(safeGet(cols, 2))
	if err != nil {
		return core.RecurringRule{}, err
	}
	start, err := core.ParseDate(safeGet(cols, 7))
	if err != nil {
		return core.RecurringRule{}, err
	}
	r := core.RecurringRule{
		ID:        safeGet(cols, 0),
		Type:      core.TransactionType(strings.ToLower(safeGet(cols, 1))),
		Amount:    amount,
		Currency:  core.NormalizeCode(safeGet(cols, 3)),
		Category:  safeGet(cols, 4),
		Notes:     safeGet(cols, 5),
		Every:     core.RepetitionTypes(strings.ToLower(safeGet(cols, 6))),
		StartDate: start,
	}
	if last := safeGet(cols, 8); last != "" {
		if r.LastApplied, err = core.ParseDate(last); err != nil {
			return core.RecurringRule{}, err
		}
	}
	if err := r.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	return r, nil
}

// parseDecimal accepts the decimal strings written by Save as well as numbers
// typed by hand in the sheet, with either separator.
func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := core.ParseAmount(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}

// body drops the header row.
func body(rows [][]any) [][]any {
	if len(rows) <= 1 {
		return nil
	}
	return rows[1:]
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
