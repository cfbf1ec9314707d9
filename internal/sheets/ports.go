package sheets

import (
	"context"

	"presupuesto/internal/core"
)

// Ports for remote snapshot stores. Implementations report unreachable or
// failing remotes as *core.TransportError.
type (
	SnapshotLoader interface {
		Load(ctx context.Context) (core.Snapshot, error)
	}

	SnapshotSaver interface {
		Save(ctx context.Context, s core.Snapshot) error
	}

	Store interface {
		SnapshotLoader
		SnapshotSaver
	}
)
