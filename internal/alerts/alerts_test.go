package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func spendOf(m map[string]int64) SpendSource {
	return func(c string) decimal.Decimal { return decimal.NewFromInt(m[c]) }
}

func TestEvaluate(t *testing.T) {
	e := NewEvaluator(decimal.Zero)

	tests := []struct {
		name    string
		budgets map[string]decimal.Decimal
		spent   map[string]int64
		want    []string
	}{
		{"over threshold", map[string]decimal.Decimal{"Comida": decimal.NewFromInt(50)}, map[string]int64{"Comida": 45}, []string{"Comida"}},
		{"exactly at threshold", map[string]decimal.Decimal{"Comida": decimal.NewFromInt(50)}, map[string]int64{"Comida": 40}, nil},
		{"zero limit", map[string]decimal.Decimal{"Comida": decimal.Zero}, map[string]int64{"Comida": 1000}, nil},
		{"no spend", map[string]decimal.Decimal{"Salud": decimal.NewFromInt(10)}, nil, nil},
		{"sorted", map[string]decimal.Decimal{"B": decimal.NewFromInt(1), "A": decimal.NewFromInt(1)}, map[string]int64{"A": 5, "B": 5}, []string{"A", "B"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Evaluate(tt.budgets, spendOf(tt.spent))
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d alerts, got %+v", len(tt.want), got)
			}
			for i, name := range tt.want {
				if got[i].Category != name {
					t.Errorf("alert %d: expected %s, got %s", i, name, got[i].Category)
				}
			}
		})
	}
}

func TestEvaluatePercentage(t *testing.T) {
	got := NewEvaluator(DefaultThreshold).Evaluate(
		map[string]decimal.Decimal{"Comida": decimal.NewFromInt(50)},
		spendOf(map[string]int64{"Comida": 45}),
	)
	if len(got) != 1 || !got[0].Percentage.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("expected a 90%% alert, got %+v", got)
	}
}

func TestUsageZeroLimit(t *testing.T) {
	if _, err := Usage(decimal.NewFromInt(5), decimal.Zero); !errors.Is(err, ErrZeroLimit) {
		t.Fatalf("expected ErrZeroLimit, got %v", err)
	}
}

func TestCooldownGate(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	g := NewCooldownGate(time.Hour, func() time.Time { return now })
	batch := []Alert{{Category: "Comida"}, {Category: "Salud"}}

	if got := g.Filter(batch); len(got) != 2 {
		t.Fatalf("first pass should forward all, got %d", len(got))
	}
	now = now.Add(30 * time.Minute)
	if got := g.Filter(batch); len(got) != 0 {
		t.Fatalf("within window nothing should pass, got %d", len(got))
	}
	now = now.Add(31 * time.Minute)
	if got := g.Filter(batch[:1]); len(got) != 1 {
		t.Fatalf("after window the alert should pass again, got %d", len(got))
	}
}

type failingNotifier struct{ calls int }

func (f *failingNotifier) Notify(context.Context, []Alert) error {
	f.calls++
	return errors.New("boom")
}

func TestMultiNotifier(t *testing.T) {
	a, b := &failingNotifier{}, &failingNotifier{}
	m := MultiNotifier{a, nil, b}

	if err := m.Notify(context.Background(), nil); err != nil || a.calls != 0 {
		t.Fatalf("empty batch should be a no-op")
	}
	if err := m.Notify(context.Background(), []Alert{{Category: "x"}}); err == nil {
		t.Fatalf("expected joined error")
	}
	if a.calls != 1 || b.calls != 1 {
		t.Fatalf("every notifier should be called once, got %d/%d", a.calls, b.calls)
	}
}
