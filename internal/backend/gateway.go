// Package backend builds and runs the persistence gateway: a remote snapshot
// store guarded by a timeout, with a local cache as fallback.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"presupuesto/internal/core"
	applog "presupuesto/internal/log"
	"presupuesto/internal/sheets"
	"presupuesto/internal/storage"
)

const DefaultRemoteTimeout = 10 * time.Second

var _ Persister = (*Gateway)(nil)

type Gateway struct {
	remote            sheets.Store
	local             storage.Cache
	events            PendingNotifier
	timeout           time.Duration
	defaultCategories []string
	logger            *applog.Logger
	now               func() time.Time
}

// GatewayOptions configures NewGateway. Events may be nil.
type GatewayOptions struct {
	Events            PendingNotifier
	Timeout           time.Duration
	DefaultCategories []string
	Logger            *applog.Logger
	Now               func() time.Time
}

func NewGateway(remote sheets.Store, local storage.Cache, opts GatewayOptions) *Gateway {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRemoteTimeout
	}
	if opts.Logger == nil {
		opts.Logger = applog.Default(applog.ComponentBackend)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Gateway{
		remote:            remote,
		local:             local,
		events:            opts.Events,
		timeout:           opts.Timeout,
		defaultCategories: append([]string(nil), opts.DefaultCategories...),
		logger:            opts.Logger.WithComponent(applog.ComponentBackend),
		now:               opts.Now,
	}
}

// Load returns the freshest snapshot it can reach.
//
// A local copy flagged as pending sync wins over the remote one and is pushed
// back first. Otherwise the remote store is asked under the timeout and a
// successful answer refreshes the local cache. When the remote fails the
// local copy is used, and when neither has data the result is an empty
// snapshot carrying the default categories.
func (g *Gateway) Load(ctx context.Context) (core.Snapshot, Source, error) {
	if snap, ok := g.loadPending(ctx); ok {
		return snap.WithDefaults(g.defaultCategories), SourceLocal, nil
	}

	snap, err := g.remoteLoad(ctx)
	if err == nil {
		if lerr := g.local.Save(ctx, snap); lerr != nil {
			g.logger.WarnContext(ctx, "Failed to refresh local cache",
				applog.FieldOperation, applog.OpLoad, applog.FieldError, lerr)
		}
		g.logger.DebugContext(ctx, "Loaded snapshot from remote store",
			applog.FieldSource, SourceRemote, "transactions", len(snap.Transactions))
		return snap.WithDefaults(g.defaultCategories), SourceRemote, nil
	}
	if cerr := ctx.Err(); cerr != nil {
		return core.Snapshot{}.WithDefaults(g.defaultCategories), SourceEmpty, cerr
	}

	g.logger.WarnContext(ctx, "Remote load failed, falling back to local cache",
		applog.FieldOperation, applog.OpLoad,
		applog.FieldErrorType, errorType(err),
		applog.FieldError, err)

	local, found, lerr := g.local.Load(ctx)
	if lerr != nil {
		g.logger.ErrorContext(ctx, "Local cache load failed",
			applog.FieldOperation, applog.OpLoad, applog.FieldError, lerr)
	}
	if lerr == nil && found {
		return local.WithDefaults(g.defaultCategories), SourceLocal, nil
	}
	return core.Snapshot{}.WithDefaults(g.defaultCategories), SourceEmpty, nil
}

func (g *Gateway) loadPending(ctx context.Context) (core.Snapshot, bool) {
	pending, err := g.local.Pending(ctx)
	if err != nil {
		g.logger.WarnContext(ctx, "Cannot read pending-sync flag", applog.FieldError, err)
		return core.Snapshot{}, false
	}
	if !pending {
		return core.Snapshot{}, false
	}
	snap, found, err := g.local.Load(ctx)
	if err != nil || !found {
		g.logger.WarnContext(ctx, "Pending-sync flag set but local snapshot unavailable",
			"found", found, applog.FieldError, err)
		return core.Snapshot{}, false
	}
	if err := g.remoteSave(ctx, snap); err != nil {
		g.logger.InfoContext(ctx, "Local snapshot still pending sync",
			applog.FieldSource, SourceLocal, applog.FieldError, err)
		return snap, true
	}
	if err := g.local.ClearPending(ctx, g.now()); err != nil {
		g.logger.WarnContext(ctx, "Failed to clear pending-sync flag", applog.FieldError, err)
	}
	g.logger.InfoContext(ctx, "Pushed pending local snapshot to remote store")
	return snap, true
}

// Save writes the snapshot remotely under the timeout and always to the
// local cache. A remote failure leaves the local copy flagged as pending
// sync. The error is non-nil only when neither side kept the snapshot.
func (g *Gateway) Save(ctx context.Context, s core.Snapshot) (SaveResult, error) {
	var res SaveResult

	res.Remote = g.remoteSave(ctx, s)
	res.Local = g.local.Save(ctx, s)

	if res.Remote != nil {
		g.logger.WarnContext(ctx, "Remote save failed",
			applog.FieldOperation, applog.OpSave,
			applog.FieldErrorType, errorType(res.Remote),
			applog.FieldError, res.Remote)
		if res.Local == nil {
			if err := g.local.MarkPending(ctx, g.now()); err != nil {
				res.Local = fmt.Errorf("mark pending: %w", err)
			} else {
				g.publishPending(ctx, res.Remote)
			}
		}
	} else if res.Local == nil {
		if err := g.local.ClearPending(ctx, g.now()); err != nil {
			g.logger.WarnContext(ctx, "Failed to clear pending-sync flag", applog.FieldError, err)
		}
	}
	if res.Local != nil {
		g.logger.ErrorContext(ctx, "Local cache save failed",
			applog.FieldOperation, applog.OpSave, applog.FieldError, res.Local)
	}

	if !res.Persisted() {
		return res, fmt.Errorf("snapshot not persisted: %w", res.Err())
	}
	return res, nil
}

// PushPending sends a pending local snapshot to the remote store. It reports
// whether something was pushed.
func (g *Gateway) PushPending(ctx context.Context) (bool, error) {
	pending, err := g.local.Pending(ctx)
	if err != nil {
		return false, fmt.Errorf("read pending flag: %w", err)
	}
	if !pending {
		return false, nil
	}
	snap, found, err := g.local.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load local snapshot: %w", err)
	}
	if !found {
		return false, g.local.ClearPending(ctx, g.now())
	}
	if err := g.remoteSave(ctx, snap); err != nil {
		return false, err
	}
	if err := g.local.ClearPending(ctx, g.now()); err != nil {
		return true, fmt.Errorf("clear pending flag: %w", err)
	}
	g.logger.InfoContext(ctx, "Pushed pending local snapshot to remote store",
		applog.FieldOperation, applog.OpSync, "transactions", len(snap.Transactions))
	return true, nil
}

// Pending reports whether the local copy is ahead of the remote store.
func (g *Gateway) Pending(ctx context.Context) (bool, error) {
	return g.local.Pending(ctx)
}

func (g *Gateway) publishPending(ctx context.Context, cause error) {
	if g.events == nil {
		return
	}
	if err := g.events.PublishSyncPending(ctx, cause.Error()); err != nil {
		g.logger.WarnContext(ctx, "Failed to publish sync-pending event", applog.FieldError, err)
	}
}

func (g *Gateway) remoteLoad(ctx context.Context) (core.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	snap, err := g.remote.Load(ctx)
	if err != nil {
		return core.Snapshot{}, asTransport(ctx, "load", err)
	}
	return snap, nil
}

func (g *Gateway) remoteSave(ctx context.Context, s core.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if err := g.remote.Save(ctx, s); err != nil {
		return asTransport(ctx, "save", err)
	}
	return nil
}

// asTransport reports an expired remote deadline as a transport failure.
func asTransport(ctx context.Context, op string, err error) error {
	if errors.Is(err, core.ErrTransport) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &core.TransportError{Op: op, Err: err}
	}
	return err
}

func errorType(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return applog.ErrorTypeTimeout
	}
	if errors.Is(err, core.ErrTransport) {
		return applog.ErrorTypeNetwork
	}
	return applog.ErrorTypeInternal
}
