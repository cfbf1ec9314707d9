package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateJSON(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"2025-03-09"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Year() != 2025 || d.Month() != 3 || d.Day() != 9 {
		t.Fatalf("unexpected date %v", d)
	}
	b, err := json.Marshal(d)
	if err != nil || string(b) != `"2025-03-09"` {
		t.Fatalf("marshal: %s %v", b, err)
	}

	// Timestamps written by the web app keep only their calendar day.
	if err := json.Unmarshal([]byte(`"2025-03-09T18:30:00.000Z"`), &d); err != nil || d.Day() != 9 {
		t.Fatalf("timestamp unmarshal: %v %v", d, err)
	}
	if err := json.Unmarshal([]byte(`""`), &d); err != nil || !d.IsEmpty() {
		t.Fatalf("empty unmarshal: %v %v", d, err)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Type:     Expense,
		Amount:   decimal.NewFromInt(30),
		Currency: "USD",
		Date:     NewDate(2025, 1, 1),
		Category: "Comida",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	zero := good
	zero.Amount = decimal.Zero
	if err := zero.Validate(); err != nil {
		t.Fatalf("zero amount should be accepted, got %v", err)
	}

	bads := []struct {
		name string
		tx   Transaction
		want error
	}{
		{"bad type", Transaction{Type: "gift", Amount: decimal.NewFromInt(1), Currency: "USD", Date: NewDate(2025, 1, 1)}, ErrInvalidType},
		{"negative", Transaction{Type: Income, Amount: decimal.NewFromInt(-1), Currency: "USD", Date: NewDate(2025, 1, 1)}, ErrInvalidAmount},
		{"no currency", Transaction{Type: Income, Amount: decimal.NewFromInt(1), Date: NewDate(2025, 1, 1)}, ErrEmptyCurrency},
		{"zero date", Transaction{Type: Income, Amount: decimal.NewFromInt(1), Currency: "USD"}, nil},
	}
	for _, tc := range bads {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.tx.Validate()
			if err == nil {
				t.Fatalf("expected error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestDebtOutstanding(t *testing.T) {
	d := Debt{Principal: decimal.NewFromInt(100)}
	if !d.Outstanding().Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected principal when remaining is absent, got %s", d.Outstanding())
	}
	paid := decimal.Zero
	d.Remaining = &paid
	if !d.Outstanding().IsZero() {
		t.Fatalf("a fully paid debt must count as zero, got %s", d.Outstanding())
	}
}

func TestRecurringRuleValidate(t *testing.T) {
	good := RecurringRule{
		Type:      Expense,
		Amount:    decimal.NewFromInt(500),
		Currency:  "USD",
		Category:  "Vivienda",
		Every:     Monthly,
		StartDate: NewDate(2025, 1, 5),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bad := good
	bad.Every = "hourly"
	if err := bad.Validate(); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
	bad = good
	bad.Category = " "
	if err := bad.Validate(); !errors.Is(err, ErrEmptyCategory) {
		t.Fatalf("expected ErrEmptyCategory, got %v", err)
	}
}

func TestTransportErrorIs(t *testing.T) {
	err := error(&TransportError{Op: "load", StatusCode: 502, Err: errors.New("bad gateway")})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport match")
	}
	var te *TransportError
	if !errors.As(err, &te) || te.StatusCode != 502 {
		t.Fatalf("expected status 502, got %v", err)
	}
}
