package ledger

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
)

func tx(typ core.TransactionType, amount int64, currency core.Currency, category string) core.Transaction {
	return core.Transaction{
		Type:     typ,
		Amount:   decimal.NewFromInt(amount),
		Currency: currency,
		Date:     core.NewDate(2025, 3, 10),
		Category: category,
	}
}

func TestAppendPreservesOrderAndPrevious(t *testing.T) {
	l := New(nil)
	first := l.Append(tx(core.Income, 100, "USD", "Salario"))
	before := l.Transactions()

	for i := 0; i < 5; i++ {
		l.Append(tx(core.Expense, int64(i+1), "USD", "Comida"))
	}

	after := l.Transactions()
	if len(after) != 6 {
		t.Fatalf("expected 6 transactions, got %d", len(after))
	}
	if !reflect.DeepEqual(before[0], after[0]) || after[0].ID != first.ID {
		t.Fatalf("first transaction changed: %+v vs %+v", before[0], after[0])
	}
	for i := 1; i < len(after); i++ {
		if !after[i].Amount.Equal(decimal.NewFromInt(int64(i))) {
			t.Fatalf("position %d holds %s", i, after[i].Amount)
		}
	}

	// Mutating a returned copy never reaches the store.
	after[0].Notes = "tampered"
	if l.Transactions()[0].Notes != "" {
		t.Fatalf("ledger exposed its internal slice")
	}
}

func TestAppendAssignsIDAndGrowsCategories(t *testing.T) {
	l := New([]string{"Comida"})
	got := l.Append(tx(core.Expense, 5, "USD", "Mascotas"))
	if got.ID == "" {
		t.Fatalf("expected generated ID")
	}
	cats := l.Categories()
	if !reflect.DeepEqual(cats, []string{"Comida", "Mascotas"}) {
		t.Fatalf("unexpected categories %v", cats)
	}
	l.Append(tx(core.Expense, 5, "USD", "Comida"))
	l.Append(tx(core.Expense, 5, "USD", ""))
	if len(l.Categories()) != 2 {
		t.Fatalf("known or empty categories must not be added: %v", l.Categories())
	}
}

func TestAppendCategoryIfAbsent(t *testing.T) {
	l := New([]string{"A", "B", "A"})
	if len(l.Categories()) != 2 {
		t.Fatalf("seed should be deduplicated: %v", l.Categories())
	}
	if !l.AppendCategoryIfAbsent("C") {
		t.Fatalf("expected C to be added")
	}
	if l.AppendCategoryIfAbsent("C") || l.AppendCategoryIfAbsent("  ") {
		t.Fatalf("duplicate or blank must not be added")
	}
}

func TestQueryByCategoryAndType(t *testing.T) {
	l := New(nil)
	l.Append(tx(core.Expense, 1, "USD", "Comida"))
	l.Append(tx(core.Income, 2, "USD", "Comida"))
	l.Append(tx(core.Expense, 3, "USD", "comida"))
	l.Append(tx(core.Expense, 4, "USD", "Comida"))

	got := l.QueryByCategoryAndType("Comida", core.Expense)
	if len(got) != 2 || !got[0].Amount.Equal(decimal.NewFromInt(1)) || !got[1].Amount.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("unexpected query result %+v", got)
	}
}

func TestBudgetsAndDebts(t *testing.T) {
	l := New(nil)
	if err := l.SetBudget("Comida", decimal.NewFromInt(50)); err != nil {
		t.Fatalf("set budget: %v", err)
	}
	if err := l.SetBudget("Comida", decimal.NewFromInt(-1)); !errors.Is(err, ErrNegativeLimit) {
		t.Fatalf("expected ErrNegativeLimit, got %v", err)
	}
	if err := l.SetBudget("", decimal.NewFromInt(1)); !errors.Is(err, core.ErrEmptyCategory) {
		t.Fatalf("expected ErrEmptyCategory, got %v", err)
	}
	budgets := l.Budgets()
	budgets["Comida"] = decimal.NewFromInt(999)
	if v, _ := l.Budget("Comida"); !v.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("budget map leaked: %s", v)
	}

	d, err := l.AddDebt(core.Debt{Name: "Tarjeta", Principal: decimal.NewFromInt(100)})
	if err != nil {
		t.Fatalf("add debt: %v", err)
	}
	paid, err := l.PayDebt(d.ID, decimal.NewFromInt(30))
	if err != nil || !paid.Outstanding().Equal(decimal.NewFromInt(70)) {
		t.Fatalf("expected 70 outstanding, got %v (err=%v)", paid.Outstanding(), err)
	}
	paid, err = l.PayDebt(d.ID, decimal.NewFromInt(500))
	if err != nil || !paid.Outstanding().IsZero() {
		t.Fatalf("overpayment should clamp to zero, got %v (err=%v)", paid.Outstanding(), err)
	}
	if _, err := l.PayDebt("missing", decimal.NewFromInt(1)); !errors.Is(err, ErrDebtNotFound) {
		t.Fatalf("expected ErrDebtNotFound, got %v", err)
	}
}

func TestSnapshotRestore(t *testing.T) {
	l := New([]string{"Comida"})
	l.Append(tx(core.Income, 100, "USD", "Salario"))
	_ = l.SetBudget("Comida", decimal.NewFromInt(50))
	_ = l.SetSavingsGoal(decimal.NewFromInt(1000))
	_, _ = l.AddDebt(core.Debt{Principal: decimal.NewFromInt(20)})

	snap := l.Snapshot()
	restored := FromSnapshot(snap, []string{"ignored"})
	if !reflect.DeepEqual(restored.Snapshot(), snap) {
		t.Fatalf("restore mismatch:\n%+v\n%+v", restored.Snapshot(), snap)
	}
}

func TestRestoreFillsIDsAndDefaults(t *testing.T) {
	snap := core.Snapshot{
		Transactions: []core.Transaction{tx(core.Expense, 1, "USD", "Viajes")},
		Debts:        []core.Debt{{Principal: decimal.NewFromInt(5)}},
	}
	l := FromSnapshot(snap, []string{"Comida"})
	if l.Debts()[0].ID == "" {
		t.Fatalf("debt without ID should receive one")
	}
	if !reflect.DeepEqual(l.Categories(), []string{"Comida", "Viajes"}) {
		t.Fatalf("unexpected categories %v", l.Categories())
	}
}

func TestRestoreDefaultsMissingCurrency(t *testing.T) {
	l := FromSnapshot(core.Snapshot{
		Transactions: []core.Transaction{tx(core.Income, 40, "", "Salario")},
	}, nil)
	if got := l.Transactions()[0].Currency; got != core.BaseCurrency {
		t.Fatalf("expected %s, got %q", core.BaseCurrency, got)
	}
	s := NewEngine(core.DefaultRates()).Summary(l)
	if s.Unnormalized != 0 || !s.Income.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("legacy entry should count as base currency, got %+v", s)
	}
}
