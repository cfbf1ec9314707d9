package log

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Output: &buf, Component: ComponentLedger})

	l.WithComponent(ComponentAlerts).Info("hello", FieldCategory, "Comida")

	out := buf.String()
	if !strings.Contains(out, "component=alerts") || !strings.Contains(out, "category=Comida") {
		t.Fatalf("unexpected log line %q", out)
	}
	if strings.Count(out, "component=") != 1 {
		t.Fatalf("component should appear once: %q", out)
	}
}

func TestMiddlewareStoresLogger(t *testing.T) {
	l := New(Config{Output: &bytes.Buffer{}, Component: ComponentHTTP})
	var got *Logger
	h := Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got != l {
		t.Fatalf("expected logger from context")
	}
	if FromContext(context.Background()) == nil {
		t.Fatalf("FromContext should fall back to the default logger")
	}
}

func TestComponentMiddlewareScopesLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf, Component: ComponentHTTP})
	h := Middleware(l)(ComponentMiddleware(ComponentAPI)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("handled")
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/summary", nil))

	if out := buf.String(); !strings.Contains(out, "component=api") {
		t.Fatalf("expected api component, got %q", out)
	}
}

func TestStructuredLoggerStampsComponentOnce(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Output: &buf, Component: ComponentHTTP}))

	sl.LogTransactionAppended(context.Background(), "t1", "expense", "12.5", "USD", "Comida")

	out := buf.String()
	if !strings.Contains(out, "component=ledger") || strings.Count(out, "component=") != 1 {
		t.Fatalf("unexpected log line %q", out)
	}
	if !strings.Contains(out, "amount=12.5") {
		t.Fatalf("transaction fields missing: %q", out)
	}
}
