package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
	Saving  TransactionType = "saving"
)

const (
	Monthly RepetitionTypes = "monthly"
	Yearly  RepetitionTypes = "yearly"
	Weekly  RepetitionTypes = "weekly"
	Daily   RepetitionTypes = "daily"
)

type (
	TransactionType string

	RepetitionTypes string

	// Currency is a code resolved through a RateTable (e.g. "USD", "BTC").
	Currency string

	Date struct {
		time.Time
	}

	// Receipt references attached binary content; the content itself is never stored.
	Receipt struct {
		Ref         string `json:"ref"`
		Name        string `json:"name,omitempty"`
		ContentType string `json:"contentType,omitempty"`
		Size        int64  `json:"size,omitempty"`
	}

	Transaction struct {
		ID          string          `json:"id,omitempty"`
		Type        TransactionType `json:"type"`
		Amount      decimal.Decimal `json:"amount"`
		Currency    Currency        `json:"currency"`
		Date        Date            `json:"date"`
		Category    string          `json:"category"`
		ExpenseType string          `json:"expenseType,omitempty"`
		Notes       string          `json:"notes,omitempty"`
		Receipt     *Receipt        `json:"receipt,omitempty"`
	}

	// Debt is owed in base currency. A nil Remaining means nothing was paid yet.
	Debt struct {
		ID        string           `json:"id,omitempty"`
		Name      string           `json:"name,omitempty"`
		Principal decimal.Decimal  `json:"amount"`
		Remaining *decimal.Decimal `json:"remaining,omitempty"`
	}

	RecurringRule struct {
		ID          string          `json:"id,omitempty"`
		Type        TransactionType `json:"type"`
		Amount      decimal.Decimal `json:"amount"`
		Currency    Currency        `json:"currency"`
		Category    string          `json:"category"`
		Notes       string          `json:"notes,omitempty"`
		Every       RepetitionTypes `json:"period"`
		StartDate   Date            `json:"startDate"`
		LastApplied Date            `json:"lastApplied"`
	}
)

var (
	ErrInvalidDay      = errors.New("invalid day")
	ErrInvalidMonth    = errors.New("invalid month")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrInvalidPeriod   = errors.New("invalid repetition type")
	ErrEmptyCurrency   = errors.New("empty currency")
	ErrEmptyCategory   = errors.New("empty category")
	ErrUnknownCurrency = errors.New("unknown currency")
)

// Valid reports whether t is one of income, expense or saving.
func (t TransactionType) Valid() bool {
	switch t {
	case Income, Expense, Saving:
		return true
	}
	return false
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// IsEmpty returns true if the date is zero (for optional dates such as LastApplied)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if t.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(string(t.Currency)) == "" {
		return ErrEmptyCurrency
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(t.Notes) > 500 {
		return errors.New("notes too long (max 500 characters)")
	}
	return nil
}

// Outstanding returns Remaining when set, otherwise the principal.
func (d Debt) Outstanding() decimal.Decimal {
	if d.Remaining != nil {
		return *d.Remaining
	}
	return d.Principal
}

func (d Debt) Validate() error {
	if !d.Principal.IsPositive() {
		return ErrInvalidAmount
	}
	if d.Remaining != nil && (d.Remaining.IsNegative() || d.Remaining.GreaterThan(d.Principal)) {
		return errors.New("remaining must be between zero and the principal")
	}
	return nil
}

func (re RecurringRule) Validate() error {
	if err := re.StartDate.Validate(); err != nil {
		return errors.New("invalid start date: " + err.Error())
	}

	switch re.Every {
	case Daily, Weekly, Monthly, Yearly:
	default:
		return ErrInvalidPeriod
	}

	if !re.Type.Valid() {
		return ErrInvalidType
	}
	if !re.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(string(re.Currency)) == "" {
		return ErrEmptyCurrency
	}
	if strings.TrimSpace(re.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}
