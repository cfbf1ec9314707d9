package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"presupuesto/internal/cache"
	"presupuesto/internal/cli"
	apphttp "presupuesto/internal/http"
	applog "presupuesto/internal/log"
)

const (
	reportCacheSize = 64
	reportCacheTTL  = 10 * time.Minute
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.NotifyContext(context.Background(), logger)
	defer cancel()

	ledger, err := cli.OpenLedger(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open ledger", applog.FieldError, err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	reports := cache.NewReportCache(reportCacheSize, reportCacheTTL)
	caches := cache.NewManager(logger)
	caches.Register(reports)
	caches.StartCleanup(reportCacheTTL)

	srv := apphttp.NewServer(":"+cfg.Port, ledger.Service, reports, logger, apphttp.Options{
		RequestsPerMinute: 60,
		Ready:             ledger.Ready,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 35 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting presupuesto server",
			"port", cfg.Port,
			applog.FieldBackend, cfg.DataBackend,
			"local_cache", cfg.LocalCache)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		// /readyz answers 503 until this returns.
		return ledger.Load(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := cli.ShutdownContext(cli.DefaultShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		caches.Stop()
		return ledger.Close(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
