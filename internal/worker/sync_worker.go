// Package worker pushes locally cached ledger snapshots back to the remote
// store after it was unreachable.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"presupuesto/internal/amqp"
	applog "presupuesto/internal/log"
)

// PendingPusher is satisfied by *backend.Gateway.
type PendingPusher interface {
	PushPending(ctx context.Context) (bool, error)
}

// SyncWorker retries pending local snapshots on a ticker and whenever a
// sync-pending event arrives.
type SyncWorker struct {
	pusher   PendingPusher
	interval time.Duration
	logger   *applog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncWorker(pusher PendingPusher, interval time.Duration, logger *applog.Logger) *SyncWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = applog.Default(applog.ComponentWorker)
	}
	return &SyncWorker{
		pusher:   pusher,
		interval: interval,
		logger:   logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleSyncPending is the AMQP handler for sync-pending events. Returning
// an error requeues the message.
func (w *SyncWorker) HandleSyncPending(ctx context.Context, ev *amqp.Event) error {
	if ev.Type != amqp.EventSyncPending {
		w.logger.DebugContext(ctx, "Ignoring event", "type", ev.Type)
		return nil
	}
	w.logger.InfoContext(ctx, "Processing sync-pending event",
		"reason", ev.Reason, "timestamp", ev.Timestamp)

	if _, err := w.pusher.PushPending(ctx); err != nil {
		return fmt.Errorf("push pending snapshot: %w", err)
	}
	return nil
}

// StartupSyncCheck pushes whatever was left pending while the worker was down.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	pushed, err := w.pusher.PushPending(ctx)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	if pushed {
		w.logger.InfoContext(ctx, "Pushed pending snapshot on startup")
	} else {
		w.logger.InfoContext(ctx, "No pending snapshot found on startup")
	}
	return nil
}

// Start begins the polling loop. Returns an error if already running.
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("sync worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	w.logger.InfoContext(ctx, "Sync worker started", "poll_interval", w.interval)
	return nil
}

// Stop gracefully stops the worker and waits for the loop to exit.
func (w *SyncWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.running = false
	w.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		w.logger.InfoContext(ctx, "Sync worker stopped gracefully")
		return nil
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Sync worker stop timed out")
		return ctx.Err()
	}
}

func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *SyncWorker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.poll(ctx)

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *SyncWorker) poll(ctx context.Context) {
	pushed, err := w.pusher.PushPending(ctx)
	if err != nil {
		w.logger.WarnContext(ctx, "Pending snapshot still not pushed",
			applog.FieldOperation, applog.OpSync, applog.FieldError, err)
		return
	}
	if pushed {
		w.logger.InfoContext(ctx, "Pending snapshot pushed", applog.FieldOperation, applog.OpSync)
	}
}
