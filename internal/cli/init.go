// Package cli holds the start-up and shutdown steps shared by the binaries
// under cmd/.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"presupuesto/internal/alerts"
	"presupuesto/internal/backend"
	"presupuesto/internal/config"
	applog "presupuesto/internal/log"
	"presupuesto/internal/services"
)

// DefaultShutdownTimeout bounds the cleanup after a shutdown signal.
const DefaultShutdownTimeout = 30 * time.Second

// LoadEnvFile loads .env for local development. A missing file is ignored.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and makes it the
// slog default.
func SetupLogger(component string) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Level = applog.ParseLevel(os.Getenv("LOG_LEVEL"))
	cfg.Component = component
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg, err := LoadConfig()
	if err != nil {
		logger.Error("Configuration validation failed",
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeConfiguration)
		os.Exit(1)
	}
	return cfg
}

// LoadConfig is LoadAndValidateConfig without the exit.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NotifyContext returns a context cancelled on SIGINT or SIGTERM.
func NotifyContext(parent context.Context, logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// ShutdownContext returns a fresh context bounded by timeout for cleanup
// that must run after the main context was cancelled.
func ShutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	return context.WithTimeout(context.Background(), timeout)
}

// Ledger is a loaded, running ledger service and the gateway behind it.
type Ledger struct {
	Service *services.LedgerService
	Gateway *backend.Result
	Source  backend.Source

	logger *applog.Logger
	loaded atomic.Bool
}

// Ready reports an error until the ledger has been loaded.
func (l *Ledger) Ready(context.Context) error {
	if !l.loaded.Load() {
		return fmt.Errorf("ledger not loaded")
	}
	return nil
}

// Close stops the service, draining queued mutations, then releases the
// gateway.
func (l *Ledger) Close(ctx context.Context) error {
	stopErr := l.Service.Stop(ctx)
	var cleanupErr error
	if l.Gateway != nil && l.Gateway.Cleanup != nil {
		cleanupErr = l.Gateway.Cleanup()
	}
	if stopErr != nil {
		return stopErr
	}
	return cleanupErr
}

// OpenLedger builds the persistence gateway from cfg and starts the ledger
// service on it. Budget alerts go to the log and, when AMQP is up, to the
// event exchange. Call Load before serving reads.
func OpenLedger(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*Ledger, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateGateway(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	notifier := alerts.MultiNotifier{alerts.LogNotifier{Logger: logger.WithComponent(applog.ComponentAlerts)}}
	if res.Events != nil {
		notifier = append(notifier, res.Events)
	}
	var gate alerts.Gate = alerts.AllowAll{}
	if cfg.AlertCooldown > 0 {
		gate = alerts.NewCooldownGate(cfg.AlertCooldown, time.Now)
	}

	svc := services.NewLedgerService(res.Gateway, services.Options{
		Rates:             cfg.Settings.Rates,
		DefaultCategories: cfg.Settings.Categories,
		AutoSavePercent:   cfg.Settings.AutoSavePercent,
		AutoSaveCategory:  cfg.Settings.AutoSaveCategory,
		AutoSaveNotes:     cfg.Settings.AutoSaveNotes,
		Evaluator:         alerts.NewEvaluator(cfg.Settings.AlertThreshold),
		Gate:              gate,
		Notifier:          notifier,
		Logger:            logger,
	})
	svc.Start()
	return &Ledger{Service: svc, Gateway: res, logger: logger}, nil
}

// Load reads the persisted state into the service and marks it ready.
func (l *Ledger) Load(ctx context.Context) error {
	src, err := l.Service.Load(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	l.Source = src
	l.loaded.Store(true)
	l.logger.InfoContext(ctx, "Ledger ready",
		applog.FieldSource, src,
		"events", l.Gateway.Events != nil)
	return nil
}
