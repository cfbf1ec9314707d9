// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Every request body of the API is a flat object, so one parser serves JSON,
// url-encoded and multipart bodies alike.

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
	"presupuesto/internal/services"
)

// DefaultMaxBodyBytes bounds request bodies, receipt uploads included.
const DefaultMaxBodyBytes = 10 << 20

// multipartMemory is the part of a multipart body kept in memory; the rest
// spills to temporary files.
const multipartMemory = 1 << 20

// ErrBadRequest marks malformed input that never reached the ledger.
var ErrBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from query parameters, using now
// as the default. Present but malformed values are rejected.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{
		Year:  now.Year(),
		Month: int(now.Month()),
	}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return params, badRequest("invalid year %q", v)
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return params, badRequest("invalid month %q", v)
		}
		params.Month = m
	}

	return params, nil
}

// RequestBodyParser handles different content types for request body parsing.
type RequestBodyParser struct {
	r           *http.Request
	contentType string
	maxBytes    int64
	jsonData    map[string]any
	formData    url.Values
	files       map[string][]*multipart.FileHeader
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request. The body is
// read lazily by Parse and capped at maxBytes.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request, maxBytes int64) *RequestBodyParser {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	return &RequestBodyParser{
		r:           r,
		contentType: r.Header.Get("Content-Type"),
		maxBytes:    maxBytes,
	}
}

// Parse reads the body as JSON, multipart or url-encoded form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	mediaType, _, _ := mime.ParseMediaType(p.contentType)
	if mediaType == "multipart/form-data" {
		if err := p.r.ParseMultipartForm(multipartMemory); err != nil {
			p.err = badRequest("multipart body: %v", err)
			return p.err
		}
		p.formData = url.Values(p.r.MultipartForm.Value)
		p.files = p.r.MultipartForm.File
		return nil
	}

	body, err := io.ReadAll(p.r.Body)
	if err != nil {
		p.err = badRequest("read body: %v", err)
		return p.err
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if mediaType == "application/json" || body[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = badRequest("json body: %v", err)
			return p.err
		}
		return nil
	}

	p.formData, err = url.ParseQuery(string(body))
	if err != nil {
		p.err = badRequest("form body: %v", err)
	}
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
		return ""
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// Has reports whether key was sent at all.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		v, ok := p.jsonData[key]
		return ok && v != nil
	}
	_, ok := p.formData[key]
	return ok
}

// Amount parses key as a non-negative decimal. Both "12.34" and "12,34" work.
func (p *RequestBodyParser) Amount(key string) (decimal.Decimal, error) {
	v := p.Get(key)
	if v == "" {
		return decimal.Zero, badRequest("missing %s", key)
	}
	d, err := core.ParseAmount(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// Date parses key as YYYY-MM-DD; an absent key yields the zero date.
func (p *RequestBodyParser) Date(key string) (core.Date, error) {
	v := p.Get(key)
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, badRequest("invalid %s %q", key, v)
	}
	return d, nil
}

// Bool accepts the usual boolean spellings plus the "on" of HTML checkboxes.
func (p *RequestBodyParser) Bool(key string) (bool, error) {
	v := strings.ToLower(p.Get(key))
	switch v {
	case "":
		return false, nil
	case "on", "yes":
		return true, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, badRequest("invalid %s %q", key, v)
	}
	return b, nil
}

// Receipt turns the uploaded file field into a receipt task, or nil when no
// file was sent.
func (p *RequestBodyParser) Receipt(field string) services.ReceiptTask {
	headers := p.files[field]
	if len(headers) == 0 {
		return nil
	}
	fh := headers[0]
	return func(ctx context.Context) (*core.Receipt, error) {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return services.ReceiptFromReader(fh.Filename, fh.Header.Get("Content-Type"), f)(ctx)
	}
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

func parseTransaction(p *RequestBodyParser) (services.NewTransaction, error) {
	var draft services.NewTransaction
	typ := core.TransactionType(strings.ToLower(p.Get("type")))
	if !typ.Valid() {
		return draft, fmt.Errorf("%w: %q", core.ErrInvalidType, p.Get("type"))
	}
	amount, err := p.Amount("amount")
	if err != nil {
		return draft, err
	}
	date, err := p.Date("date")
	if err != nil {
		return draft, err
	}
	autoSave, err := p.Bool("autoSave")
	if err != nil {
		return draft, err
	}
	draft.Transaction = core.Transaction{
		Type:        typ,
		Amount:      amount,
		Currency:    core.Currency(p.Get("currency")),
		Date:        date,
		Category:    p.Get("category"),
		ExpenseType: p.Get("expenseType"),
		Notes:       p.Get("notes"),
	}
	draft.AutoSave = autoSave
	return draft, nil
}

func parseDebt(p *RequestBodyParser) (core.Debt, error) {
	principal, err := p.Amount("amount")
	if err != nil {
		return core.Debt{}, err
	}
	d := core.Debt{Name: p.Get("name"), Principal: principal}
	if p.Has("remaining") {
		remaining, err := p.Amount("remaining")
		if err != nil {
			return core.Debt{}, err
		}
		d.Remaining = &remaining
	}
	return d, nil
}

func parseRecurring(p *RequestBodyParser) (core.RecurringRule, error) {
	amount, err := p.Amount("amount")
	if err != nil {
		return core.RecurringRule{}, err
	}
	start, err := p.Date("startDate")
	if err != nil {
		return core.RecurringRule{}, err
	}
	return core.RecurringRule{
		Type:      core.TransactionType(strings.ToLower(p.Get("type"))),
		Amount:    amount,
		Currency:  core.Currency(p.Get("currency")),
		Category:  p.Get("category"),
		Notes:     p.Get("notes"),
		Every:     core.RepetitionTypes(strings.ToLower(p.Get("period"))),
		StartDate: start,
	}, nil
}
