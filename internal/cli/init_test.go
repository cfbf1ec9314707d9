package cli

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"presupuesto/internal/backend"
	applog "presupuesto/internal/log"
)

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Output: io.Discard})
}

func setMemoryEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("DATA_DIR", dir)
	t.Setenv("LOCAL_CACHE", "bolt")
	t.Setenv("BOLT_DB_PATH", filepath.Join(dir, "ledger.bolt"))
	t.Setenv("AMQP_URL", "")
	t.Setenv("SETTINGS_FILE", "")
}

func TestLoadConfigRejectsInvalidBackend(t *testing.T) {
	setMemoryEnv(t)
	t.Setenv("DATA_BACKEND", "postgres")

	_, err := LoadConfig()
	if err == nil || !strings.Contains(err.Error(), "invalid data backend") {
		t.Fatalf("expected backend validation error, got %v", err)
	}
}

func TestOpenLedgerReadyAfterLoad(t *testing.T) {
	setMemoryEnv(t)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	l, err := OpenLedger(ctx, cfg, quietLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, cancel := ShutdownContext(5 * time.Second)
		defer cancel()
		if err := l.Close(stopCtx); err != nil {
			t.Errorf("close: %v", err)
		}
	})

	if l.Ready(ctx) == nil {
		t.Fatal("ledger should not be ready before Load")
	}
	if err := l.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := l.Ready(ctx); err != nil {
		t.Fatalf("ledger should be ready: %v", err)
	}
	if l.Source != backend.SourceRemote {
		t.Errorf("source = %q, want %q", l.Source, backend.SourceRemote)
	}
	if l.Gateway.Events != nil {
		t.Error("no AMQP client expected without AMQP_URL")
	}

	added, err := l.Service.AddCategory(ctx, "Viajes")
	if err != nil || !added {
		t.Fatalf("add category: added=%v err=%v", added, err)
	}
	found := false
	for _, c := range l.Service.Categories() {
		if c == "Viajes" {
			found = true
		}
	}
	if !found {
		t.Fatal("new category missing after add")
	}
}

func TestShutdownContextDefaultsTimeout(t *testing.T) {
	ctx, cancel := ShutdownContext(0)
	defer cancel()
	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected a deadline")
	}
	if left := time.Until(deadline); left <= 25*time.Second || left > DefaultShutdownTimeout {
		t.Fatalf("unexpected remaining time %v", left)
	}
}
