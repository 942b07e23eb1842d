// Package counters provides the aggregate counter ledger: the denormalized
// integer columns stored on each aggregate-root row. All mutations are
// atomic relative adjustments pushed to the storage layer, never
// read-modify-write in the application, so concurrent actors on the same
// root cannot lose updates.
package counters

import (
	"context"

	"artfolio/internal/server/models"
)

type Repository interface {
	// Adjust applies an atomic relative delta to one counter and returns the
	// post-mutation value. Values are clamped at zero at the storage layer.
	// Returns common.ErrNotFound when the root row is absent.
	Adjust(ctx context.Context, kind models.RootKind, id, counter string, delta int64) (int64, error)

	// Set overwrites a counter with an absolute value. Repair path only;
	// steady-state mutation goes through Adjust.
	Set(ctx context.Context, kind models.RootKind, id, counter string, value int64) error

	// Snapshot reads all counters of a root.
	Snapshot(ctx context.Context, kind models.RootKind, id string) (*models.CounterSnapshot, error)
}
