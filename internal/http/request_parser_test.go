package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
)

func TestParseMonthParams(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		query     url.Values
		wantYear  int
		wantMonth int
		wantErr   bool
	}{
		{"defaults", url.Values{}, 2024, 6, false},
		{"both", url.Values{"year": {"2023"}, "month": {"12"}}, 2023, 12, false},
		{"padded", url.Values{"year": {" 2022 "}, "month": {"03"}}, 2022, 3, false},
		{"month zero", url.Values{"month": {"0"}}, 0, 0, true},
		{"month 13", url.Values{"month": {"13"}}, 0, 0, true},
		{"year text", url.Values{"year": {"abc"}}, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMonthParams(tt.query, now)
			if tt.wantErr {
				if !errors.Is(err, ErrBadRequest) {
					t.Fatalf("expected ErrBadRequest, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if got.Year != tt.wantYear || got.Month != tt.wantMonth {
				t.Errorf("got %d-%d, want %d-%d", got.Year, got.Month, tt.wantYear, tt.wantMonth)
			}
		})
	}
}

func newParser(t *testing.T, contentType, body string) *RequestBodyParser {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	p := NewRequestBodyParser(httptest.NewRecorder(), req, 0)
	if err := p.Parse(); err != nil {
		t.Fatalf("parse: %v", err)
	}
	return p
}

func TestRequestBodyParser_JSON(t *testing.T) {
	p := newParser(t, "application/json", `{"amount": 0.1, "name": " Tarjeta\u0007 ", "autoSave": true, "remaining": null}`)

	amount, err := p.Amount("amount")
	if err != nil || !amount.Equal(decimal.RequireFromString("0.1")) {
		t.Fatalf("amount = %s, %v", amount, err)
	}
	if got := p.Get("name"); got != "Tarjeta" {
		t.Errorf("name = %q", got)
	}
	if ok, _ := p.Bool("autoSave"); !ok {
		t.Error("autoSave should be true")
	}
	if p.Has("remaining") || p.Has("missing") {
		t.Error("null and absent keys count as not sent")
	}
}

func TestRequestBodyParser_Form(t *testing.T) {
	p := newParser(t, "application/x-www-form-urlencoded", "amount=12%2C34&autoSave=on&date=2025-03-01")

	amount, err := p.Amount("amount")
	if err != nil || !amount.Equal(decimal.RequireFromString("12.34")) {
		t.Fatalf("amount = %s, %v", amount, err)
	}
	if ok, _ := p.Bool("autoSave"); !ok {
		t.Error("checkbox value should read as true")
	}
	d, err := p.Date("date")
	if err != nil || d.String() != "2025-03-01" {
		t.Fatalf("date = %s, %v", d, err)
	}
}

func TestRequestBodyParser_Errors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"broken"`))
	p := NewRequestBodyParser(httptest.NewRecorder(), req, 0)
	if err := p.Parse(); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 64)))
	p = NewRequestBodyParser(httptest.NewRecorder(), req, 16)
	if err := p.Parse(); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("oversized body should be rejected, got %v", err)
	}

	ok := newParser(t, "application/json", `{"amount":"-3","flag":"maybe","date":"2025-13-01"}`)
	if _, err := ok.Amount("amount"); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("negative amount: %v", err)
	}
	if _, err := ok.Amount("missing"); !errors.Is(err, ErrBadRequest) {
		t.Errorf("missing amount: %v", err)
	}
	if _, err := ok.Bool("flag"); !errors.Is(err, ErrBadRequest) {
		t.Errorf("bad bool: %v", err)
	}
	if _, err := ok.Date("date"); !errors.Is(err, ErrBadRequest) {
		t.Errorf("bad date: %v", err)
	}
}

func TestParseTransaction(t *testing.T) {
	p := newParser(t, "application/json", `{"type":"Income","amount":"100","currency":"usd","category":"Salario","autoSave":"true"}`)
	draft, err := parseTransaction(p)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if draft.Type != core.Income || !draft.AutoSave || draft.Category != "Salario" {
		t.Fatalf("unexpected draft %+v", draft)
	}
	if !draft.Date.IsEmpty() {
		t.Fatal("absent date should stay empty for the service to fill")
	}

	p = newParser(t, "application/json", `{"type":"refund","amount":"1"}`)
	if _, err := parseTransaction(p); !errors.Is(err, core.ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}

func TestParseDebtRemaining(t *testing.T) {
	p := newParser(t, "application/json", `{"name":"Auto","amount":"500","remaining":"200"}`)
	d, err := parseDebt(p)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.Remaining == nil || !d.Outstanding().Equal(decimal.NewFromInt(200)) {
		t.Fatalf("unexpected debt %+v", d)
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  a\x00b\tc\n "); got != "ab\tc" {
		t.Fatalf("sanitizeInput = %q", got)
	}
}
