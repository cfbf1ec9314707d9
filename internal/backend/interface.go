package backend

import (
	"context"
	"errors"

	"presupuesto/internal/amqp"
	"presupuesto/internal/core"
)

// Source tells where a loaded snapshot came from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
	SourceEmpty  Source = "empty"
)

// SaveResult reports the remote and local outcomes of a save separately.
// A nil field means that side succeeded.
type SaveResult struct {
	Remote error
	Local  error
}

// OK reports whether both sides succeeded.
func (r SaveResult) OK() bool { return r.Remote == nil && r.Local == nil }

// Persisted reports whether at least one side kept the snapshot.
func (r SaveResult) Persisted() bool { return r.Remote == nil || r.Local == nil }

// Err joins both outcomes.
func (r SaveResult) Err() error { return errors.Join(r.Remote, r.Local) }

// PendingNotifier is told when the local copy got ahead of the remote store.
type PendingNotifier interface {
	PublishSyncPending(ctx context.Context, reason string) error
}

// Persister is what the ledger service needs from the gateway.
type Persister interface {
	Load(ctx context.Context) (core.Snapshot, Source, error)
	Save(ctx context.Context, s core.Snapshot) (SaveResult, error)
}

// CleanupFunc releases the resources opened by the factory.
type CleanupFunc func() error

// Result holds the gateway and the pieces it was built from. Events is nil
// when AMQP is not configured or unreachable.
type Result struct {
	Gateway *Gateway
	Events  *amqp.Client
	Cleanup CleanupFunc
}

// Factory builds gateways from configuration
type Factory interface {
	CreateGateway(ctx context.Context, config Config) (*Result, error)
}
