package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"presupuesto/internal/backend"
	"presupuesto/internal/cli"
	applog "presupuesto/internal/log"
	"presupuesto/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting sync-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.NotifyContext(context.Background(), logger)
	defer cancel()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateGateway(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize persistence gateway", applog.FieldError, err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Gateway cleanup error", applog.FieldError, err)
		}
	}()

	syncWorker := worker.NewSyncWorker(res.Gateway, cfg.SyncInterval, logger)

	// Whatever was left pending while the worker was down goes first.
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", applog.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return syncWorker.Start(gctx)
	})
	if res.Events != nil {
		g.Go(func() error {
			err := res.Events.Consume(gctx, syncWorker.HandleSyncPending)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("AMQP disabled, relying on periodic sync only", "interval", cfg.SyncInterval)
	}

	<-gctx.Done()

	shutdownCtx, shutdownCancel := cli.ShutdownContext(cli.DefaultShutdownTimeout)
	defer shutdownCancel()
	if err := syncWorker.Stop(shutdownCtx); err != nil {
		logger.Warn("Sync worker stop error", applog.FieldError, err)
	}
	if err := g.Wait(); err != nil {
		logger.Error("Sync-worker stopped with error", applog.FieldError, err)
		return
	}
	logger.Info("Sync-worker shutdown complete")
}
