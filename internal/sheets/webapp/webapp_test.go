package webapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
)

// fakeWebApp mimics the script: the last saved payload is returned on load.
func fakeWebApp(t *testing.T) *httptest.Server {
	t.Helper()
	var (
		mu    sync.Mutex
		state = []byte(`{}`)
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			if r.URL.Query().Get("action") != "load" {
				http.Error(w, "unknown action", http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(state)
		case http.MethodPost:
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				http.Error(w, "bad content type "+ct, http.StatusBadRequest)
				return
			}
			body, _ := io.ReadAll(r.Body)
			var req struct {
				Action string          `json:"action"`
				Data   json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal(body, &req); err != nil || req.Action != "save" {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			state = req.Data
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSaveThenLoad(t *testing.T) {
	srv := fakeWebApp(t)
	c, err := New(srv.URL, srv.Client(), time.Second)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	snap := core.Snapshot{
		Transactions: []core.Transaction{
			{ID: "a", Type: core.Income, Amount: decimal.RequireFromString("0.5"), Currency: "BTC", Date: core.NewDate(2025, 2, 1), Category: "Salario"},
			{ID: "b", Type: core.Expense, Amount: decimal.NewFromInt(30), Currency: "USD", Date: core.NewDate(2025, 2, 3), Category: "Comida"},
		},
		Budgets:     map[string]decimal.Decimal{"Comida": decimal.NewFromInt(50)},
		SavingsGoal: decimal.NewFromInt(500),
		Categories:  []string{"Comida", "Salario"},
	}
	if err := c.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := c.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Transactions) != 2 || !got.Transactions[0].Amount.Equal(snap.Transactions[0].Amount) {
		t.Fatalf("transactions mismatch: %+v", got.Transactions)
	}
	if !got.Budgets["Comida"].Equal(decimal.NewFromInt(50)) || !got.SavingsGoal.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("budgets/goal mismatch: %+v", got)
	}
}

func TestLoadAcceptsNumericPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"transactions":[{"type":"expense","amount":12.5,"currency":"USD","date":"2025-03-01","category":"Comida"}],"budgets":{"Comida":50},"savingsGoal":0}`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL, srv.Client(), time.Second)
	got, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got.Transactions[0].Amount.Equal(decimal.RequireFromString("12.5")) || got.Categories != nil {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

func TestSaveSendsNumericAmounts(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	remaining := decimal.NewFromInt(20)
	c, _ := New(srv.URL, srv.Client(), time.Second)
	err := c.Save(context.Background(), core.Snapshot{
		Transactions: []core.Transaction{
			{Type: core.Income, Amount: decimal.NewFromInt(100), Currency: "USD", Date: core.NewDate(2025, 2, 1), Category: "Salario"},
		},
		Budgets:     map[string]decimal.Decimal{"Comida": decimal.RequireFromString("50.25")},
		Debts:       []core.Debt{{Principal: decimal.NewFromInt(50), Remaining: &remaining}},
		SavingsGoal: decimal.Zero,
		Recurring: []core.RecurringRule{
			{Type: core.Expense, Amount: decimal.NewFromInt(7), Currency: "USD", Category: "Servicios", Every: core.Monthly, StartDate: core.NewDate(2025, 1, 1)},
		},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	var req struct {
		Data struct {
			Transactions []struct {
				Amount any `json:"amount"`
			} `json:"transactions"`
			Budgets map[string]any `json:"budgets"`
			Debts   []struct {
				Amount    any `json:"amount"`
				Remaining any `json:"remaining"`
			} `json:"debts"`
			SavingsGoal any `json:"savingsGoal"`
			Recurring   []struct {
				Amount any `json:"amount"`
			} `json:"recurring"`
			Categories []string `json:"categories"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatalf("decode payload %s: %v", body, err)
	}
	d := req.Data
	for name, v := range map[string]any{
		"transaction amount": d.Transactions[0].Amount,
		"budget":             d.Budgets["Comida"],
		"debt amount":        d.Debts[0].Amount,
		"debt remaining":     d.Debts[0].Remaining,
		"savings goal":       d.SavingsGoal,
		"recurring amount":   d.Recurring[0].Amount,
	} {
		if _, ok := v.(float64); !ok {
			t.Errorf("%s sent as %T (%v), want a JSON number", name, v, v)
		}
	}
	remainingOut, _ := d.Debts[0].Remaining.(float64)
	budgetOut, _ := d.Budgets["Comida"].(float64)
	if remainingOut != 20 || budgetOut != 50.25 {
		t.Errorf("unexpected values in %s", body)
	}
	if d.Categories == nil {
		t.Errorf("categories must be an array, got %s", body)
	}
}

func TestNon2xxIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := New(srv.URL, srv.Client(), time.Second)
	_, err := c.Load(context.Background())

	var te *core.TransportError
	if !errors.As(err, &te) || te.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected TransportError 503, got %v", err)
	}
	if err := c.Save(context.Background(), core.Snapshot{}); !errors.Is(err, core.ErrTransport) {
		t.Fatalf("expected transport error on save, got %v", err)
	}
}

func TestUnreachableIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, _ := New(url, nil, 200*time.Millisecond)
	if _, err := c.Load(context.Background()); !errors.Is(err, core.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New("not a url", nil, 0); err == nil {
		t.Fatalf("expected error")
	}
}
