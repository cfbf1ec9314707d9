package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
)

func openCaches(t *testing.T) map[string]Cache {
	t.Helper()
	dir := t.TempDir()

	sq, err := NewSQLiteCache(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	bo, err := NewBoltCache(filepath.Join(dir, "cache.bolt"))
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	t.Cleanup(func() {
		sq.Close()
		bo.Close()
	})
	return map[string]Cache{"sqlite": sq, "bolt": bo}
}

func sampleSnapshot() core.Snapshot {
	remaining := decimal.NewFromInt(15)
	return core.Snapshot{
		Transactions: []core.Transaction{
			{ID: "t1", Type: core.Income, Amount: decimal.NewFromInt(100), Currency: "USD", Date: core.NewDate(2025, 3, 1), Category: "Salario"},
			{ID: "t2", Type: core.Expense, Amount: decimal.RequireFromString("12.34"), Currency: "BTC", Date: core.NewDate(2025, 3, 2), Category: "Comida", Notes: "pan",
				Receipt: &core.Receipt{Ref: "sha256:abc", Name: "ticket.jpg"}},
		},
		Budgets:     map[string]decimal.Decimal{"Comida": decimal.NewFromInt(50)},
		Debts:       []core.Debt{{ID: "d1", Name: "Tarjeta", Principal: decimal.NewFromInt(20), Remaining: &remaining}},
		SavingsGoal: decimal.NewFromInt(1000),
		Recurring: []core.RecurringRule{{ID: "r1", Type: core.Expense, Amount: decimal.NewFromInt(700), Currency: "USD",
			Category: "Vivienda", Every: core.Monthly, StartDate: core.NewDate(2025, 1, 1)}},
		Categories: []string{"Comida", "Salario", "Vivienda"},
	}
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, c := range openCaches(t) {
		t.Run(name, func(t *testing.T) {
			if _, found, err := c.Load(ctx); err != nil || found {
				t.Fatalf("fresh cache should be empty (found=%v err=%v)", found, err)
			}

			want := sampleSnapshot()
			if err := c.Save(ctx, want); err != nil {
				t.Fatalf("save: %v", err)
			}
			got, found, err := c.Load(ctx)
			if err != nil || !found {
				t.Fatalf("load: found=%v err=%v", found, err)
			}
			if len(got.Transactions) != 2 || got.Transactions[1].Receipt == nil || got.Transactions[1].Date != want.Transactions[1].Date {
				t.Fatalf("transactions mismatch: %+v", got.Transactions)
			}
			if !got.Transactions[1].Amount.Equal(want.Transactions[1].Amount) {
				t.Fatalf("amount mismatch: %s", got.Transactions[1].Amount)
			}
			if !got.Budgets["Comida"].Equal(decimal.NewFromInt(50)) || !got.SavingsGoal.Equal(want.SavingsGoal) {
				t.Fatalf("budgets or goal mismatch: %+v", got)
			}
			if !got.Debts[0].Outstanding().Equal(decimal.NewFromInt(15)) {
				t.Fatalf("debt mismatch: %+v", got.Debts)
			}
			if !reflect.DeepEqual(got.Categories, want.Categories) || got.Recurring[0].Every != core.Monthly {
				t.Fatalf("categories or recurring mismatch: %+v", got)
			}
		})
	}
}

func TestCachePendingFlag(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for name, c := range openCaches(t) {
		t.Run(name, func(t *testing.T) {
			if p, err := c.Pending(ctx); err != nil || p {
				t.Fatalf("fresh cache should not be pending (p=%v err=%v)", p, err)
			}
			if err := c.MarkPending(ctx, now); err != nil {
				t.Fatalf("mark: %v", err)
			}
			if err := c.MarkPending(ctx, now.Add(time.Hour)); err != nil {
				t.Fatalf("mark twice: %v", err)
			}
			if p, _ := c.Pending(ctx); !p {
				t.Fatalf("expected pending")
			}
			if err := c.ClearPending(ctx, now); err != nil {
				t.Fatalf("clear: %v", err)
			}
			if p, _ := c.Pending(ctx); p {
				t.Fatalf("expected cleared")
			}
		})
	}
}

func TestSQLiteCacheReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cache.db")

	c, err := NewSQLiteCache(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := c.Save(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("save: %v", err)
	}
	c.Close()

	// Migrations must be a no-op on an existing schema.
	c, err = NewSQLiteCache(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c.Close()
	if _, found, err := c.Load(ctx); err != nil || !found {
		t.Fatalf("expected data after reopen (found=%v err=%v)", found, err)
	}
}
