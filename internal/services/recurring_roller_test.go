package services

import (
	"bytes"
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
	"presupuesto/internal/ledger"
	applog "presupuesto/internal/log"
)

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Output: &bytes.Buffer{}})
}

func TestRollIsIdempotent(t *testing.T) {
	l := ledger.New(nil)
	_, err := l.AddRecurring(core.RecurringRule{
		Type: core.Expense, Amount: decimal.NewFromInt(700), Currency: "usd",
		Category: "Vivienda", Every: core.Monthly, StartDate: core.NewDate(2025, 1, 1),
	})
	if err != nil {
		t.Fatalf("add rule: %v", err)
	}

	roller := NewRecurringRoller(core.DefaultRates(), quietLogger())
	today := core.NewDate(2025, 3, 5)

	first := roller.Roll(context.Background(), l, today)
	if len(first) != 1 {
		t.Fatalf("expected one transaction, got %d", len(first))
	}
	if first[0].Date != today || first[0].Currency != "USD" || first[0].Category != "Vivienda" {
		t.Fatalf("unexpected transaction %+v", first[0])
	}
	if got := l.Recurring()[0].LastApplied; got != today {
		t.Fatalf("LastApplied not advanced: %v", got)
	}

	if again := roller.Roll(context.Background(), l, today); len(again) != 0 {
		t.Fatalf("second roll created %d transactions", len(again))
	}
	if l.Len() != 1 {
		t.Fatalf("expected ledger of 1, got %d", l.Len())
	}

	// One transaction per rule per pass, even after several missed months.
	if next := roller.Roll(context.Background(), l, core.NewDate(2025, 7, 5)); len(next) != 1 {
		t.Fatalf("expected a single catch-up transaction, got %d", len(next))
	}
}

func TestRollSkipsUnknownCurrencyAndFutureRules(t *testing.T) {
	l := ledger.New(nil)
	_, _ = l.AddRecurring(core.RecurringRule{
		Type: core.Income, Amount: decimal.NewFromInt(1), Currency: "EUR",
		Category: "Salario", Every: core.Daily, StartDate: core.NewDate(2025, 1, 1),
	})
	_, _ = l.AddRecurring(core.RecurringRule{
		Type: core.Income, Amount: decimal.NewFromInt(1), Currency: "USD",
		Category: "Salario", Every: core.Daily, StartDate: core.NewDate(2026, 1, 1),
	})

	got := NewRecurringRoller(core.DefaultRates(), quietLogger()).Roll(context.Background(), l, core.NewDate(2025, 2, 1))
	if len(got) != 0 || l.Len() != 0 {
		t.Fatalf("nothing should roll, got %d", len(got))
	}
}

func TestRollSkipsInvalidRestoredRules(t *testing.T) {
	l := ledger.FromSnapshot(core.Snapshot{
		Recurring: []core.RecurringRule{
			{ID: "bad", Amount: decimal.NewFromInt(-5), Currency: "USD", Category: "Otros",
				Every: core.Monthly, StartDate: core.NewDate(2024, 1, 1)},
			{ID: "good", Type: core.Expense, Amount: decimal.NewFromInt(30), Currency: "USD", Category: "Servicios",
				Every: core.Monthly, StartDate: core.NewDate(2024, 1, 1)},
		},
	}, nil)

	got := NewRecurringRoller(core.DefaultRates(), quietLogger()).Roll(context.Background(), l, core.NewDate(2024, 3, 1))
	if len(got) != 1 || got[0].Category != "Servicios" {
		t.Fatalf("expected only the valid rule to roll, got %+v", got)
	}
	for _, tx := range l.Transactions() {
		if err := tx.Validate(); err != nil {
			t.Fatalf("ledger holds an invalid transaction %+v: %v", tx, err)
		}
	}
	for _, rule := range l.Recurring() {
		if rule.ID == "bad" && !rule.LastApplied.IsZero() {
			t.Fatalf("skipped rule must not be marked applied")
		}
	}
}
