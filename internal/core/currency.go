package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// BaseCurrency is the unit every amount is normalized into.
const BaseCurrency Currency = "USD"

// RateTable maps a currency code to its value in the base unit.
// Rates are static configuration; there is no live lookup.
type RateTable map[Currency]decimal.Decimal

// DefaultRates mirrors the rates the tracker has always shipped with.
func DefaultRates() RateTable {
	return RateTable{
		"USD": decimal.NewFromInt(1),
		"BTC": decimal.NewFromInt(60000),
	}
}

// Rate returns the rate for code and whether it is configured.
func (rt RateTable) Rate(code Currency) (decimal.Decimal, bool) {
	r, ok := rt[Currency(strings.ToUpper(strings.TrimSpace(string(code))))]
	return r, ok
}

// Normalize converts amount in code into the base unit.
func (rt RateTable) Normalize(amount decimal.Decimal, code Currency) (decimal.Decimal, error) {
	rate, ok := rt.Rate(code)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}
	return amount.Mul(rate), nil
}

// Codes returns the configured currency codes in sorted order.
func (rt RateTable) Codes() []Currency {
	out := make([]Currency, 0, len(rt))
	for c := range rt {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate rejects empty tables and non-positive rates.
func (rt RateTable) Validate() error {
	if len(rt) == 0 {
		return fmt.Errorf("rate table is empty")
	}
	for code, rate := range rt {
		if strings.TrimSpace(string(code)) == "" {
			return fmt.Errorf("rate table has an empty currency code")
		}
		if !rate.IsPositive() {
			return fmt.Errorf("rate for %s must be positive, got %s", code, rate)
		}
	}
	return nil
}

// NormalizeCode upper-cases and trims a currency code.
func NormalizeCode(code string) Currency {
	return Currency(strings.ToUpper(strings.TrimSpace(code)))
}
