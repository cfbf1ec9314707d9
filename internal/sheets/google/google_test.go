package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"presupuesto/internal/core"
)

// fakeSheetsAPI implements the handful of endpoints the client calls.
type fakeSheetsAPI struct {
	mu     sync.Mutex
	tabs   map[string][][]any
	titles map[string]bool
	fail   int
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	if f.fail != 0 {
		w.WriteHeader(f.fail)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": f.fail, "message": "denied"}})
		return
	}

	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, "/values:batchGet"):
		var ranges []map[string]any
		for _, rng := range r.URL.Query()["ranges"] {
			tab := strings.SplitN(rng, "!", 2)[0]
			ranges = append(ranges, map[string]any{"range": rng, "majorDimension": "ROWS", "values": f.tabs[tab]})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"valueRanges": ranges})
	case strings.HasSuffix(path, "/values:batchClear"):
		var req gsheet.BatchClearValuesRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, rng := range req.Ranges {
			delete(f.tabs, strings.SplitN(rng, "!", 2)[0])
		}
		_, _ = w.Write([]byte(`{}`))
	case strings.HasSuffix(path, "/values:batchUpdate"):
		var req gsheet.BatchUpdateValuesRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, vr := range req.Data {
			f.tabs[strings.SplitN(vr.Range, "!", 2)[0]] = vr.Values
		}
		_, _ = w.Write([]byte(`{}`))
	case strings.HasSuffix(path, ":batchUpdate"):
		var req gsheet.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			if rq.AddSheet != nil {
				f.titles[rq.AddSheet.Properties.Title] = true
			}
		}
		_, _ = w.Write([]byte(`{}`))
	default:
		var sheets []map[string]any
		for title := range f.titles {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"title": title}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"sheets": sheets})
	}
}

func newTestClient(t *testing.T, api *fakeSheetsAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return NewWithService(svc, "sheet-id", nil)
}

func TestClientSaveThenLoad(t *testing.T) {
	api := &fakeSheetsAPI{tabs: map[string][][]any{}, titles: map[string]bool{"Sheet1": true}}
	c := newTestClient(t, api)
	ctx := context.Background()

	in := core.Snapshot{
		Transactions: []core.Transaction{
			{ID: "1", Type: core.Income, Amount: decimal.NewFromInt(100), Currency: "USD", Date: core.NewDate(2025, 5, 1), Category: "Salario"},
			{ID: "2", Type: core.Expense, Amount: decimal.NewFromInt(30), Currency: "USD", Date: core.NewDate(2025, 5, 2), Category: "Comida"},
		},
		Budgets:    map[string]decimal.Decimal{"Comida": decimal.NewFromInt(50)},
		Categories: []string{"Comida", "Salario"},
	}
	if err := c.Save(ctx, in); err != nil {
		t.Fatalf("save: %v", err)
	}
	for _, tab := range tabOrder {
		if !api.titles[tab] {
			t.Fatalf("tab %s was not created", tab)
		}
	}

	out, err := c.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(out.Transactions) != 2 || out.Transactions[1].Category != "Comida" {
		t.Fatalf("transactions mismatch: %+v", out.Transactions)
	}
	if !out.Budgets["Comida"].Equal(decimal.NewFromInt(50)) {
		t.Fatalf("budget mismatch: %+v", out.Budgets)
	}
}

func TestClientErrorsAreTransportErrors(t *testing.T) {
	api := &fakeSheetsAPI{tabs: map[string][][]any{}, titles: map[string]bool{}, fail: http.StatusForbidden}
	c := newTestClient(t, api)

	_, err := c.Load(context.Background())
	var te *core.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if te.StatusCode != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", te.StatusCode)
	}
}
