// Package events provides the durable event store: one row per atomic user
// action (a like, a follow, a download, a comment, a collection membership).
// Toggle-kind rows are unique per (actor, target) pair; the database
// constraint is what makes the reconciler's existence check safe under races.
package events

import (
	"context"

	"artfolio/internal/server/models"
)

type Repository interface {
	// Record inserts a toggle-kind event row and returns its id. A racing
	// duplicate insert returns common.ErrConflict.
	Record(ctx context.Context, kind models.EventKind, actorID, targetID string) (string, error)

	// Remove hard-deletes a toggle-kind event row. The returned bool is
	// false when no row existed (e.g. the loser of a double-unlike race);
	// that case is not an error.
	Remove(ctx context.Context, kind models.EventKind, actorID, targetID string) (bool, error)

	// Exists reports whether a toggle-kind row is present for the pair.
	Exists(ctx context.Context, kind models.EventKind, actorID, targetID string) (bool, error)

	// CountLive returns the number of live rows for the target: the ground
	// truth a counter must converge to.
	CountLive(ctx context.Context, kind models.EventKind, targetID string) (int64, error)

	// CountLiveByActor counts rows by the actor column instead (used for
	// users.following_count, where the actor side carries the counter).
	CountLiveByActor(ctx context.Context, kind models.EventKind, actorID string) (int64, error)

	// RecordMembership inserts a collection membership row with an explicit
	// position. Duplicate pairs return common.ErrConflict.
	RecordMembership(ctx context.Context, collectionID, photoID string, position int) (string, error)

	// RecordDownload appends a download event; no toggle semantics.
	RecordDownload(ctx context.Context, d *models.Download) (string, error)

	// RecordComment appends a comment event; no toggle semantics.
	RecordComment(ctx context.Context, c *models.Comment) (string, error)
}
