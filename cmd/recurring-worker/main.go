package main

import (
	"context"
	"os"
	"time"

	"presupuesto/internal/cli"
	applog "presupuesto/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentRecurring)
	logger.Info("Starting recurring-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.NotifyContext(context.Background(), logger)
	defer cancel()

	ledger, err := cli.OpenLedger(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open ledger", applog.FieldError, err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := cli.ShutdownContext(cli.DefaultShutdownTimeout)
		defer shutdownCancel()
		if err := ledger.Close(shutdownCtx); err != nil {
			logger.Error("Ledger shutdown error", applog.FieldError, err)
		}
		logger.Info("Recurring-worker shutdown complete")
	}()

	// Load rolls whatever is due, so the first pass happens here.
	if err := ledger.Load(ctx); err != nil {
		logger.Error("Initial load failed", applog.FieldError, err)
		return
	}

	interval := cfg.RecurringInterval
	logger.Info("Recurring roller configured", "interval", interval, applog.FieldBackend, cfg.DataBackend)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			created, err := ledger.Service.RollRecurring(ctx)
			if err != nil {
				logger.Error("Periodic roll failed", applog.FieldOperation, applog.OpRoll, applog.FieldError, err)
				continue
			}
			logger.Info("Periodic roll complete",
				"transactions_created", len(created),
				"next_check", now.Add(interval).Format("15:04:05"))
		}
	}
}
