// Package services hosts the application services built on top of the
// repositories: the counter reconciler, the cached view reads, drift repair
// and media URL resolution.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"artfolio/internal/common"
	"artfolio/internal/dbx"
	"artfolio/internal/logging"
	"artfolio/internal/server/invalidation"
	"artfolio/internal/server/models"
	"artfolio/internal/server/repositories/repomanager"
)

// Reconciler keeps the denormalized counters in lockstep with the event
// store. Every mutation records (or removes) an event row and applies an
// atomic relative counter adjustment inside one transaction; cache
// invalidation runs strictly after commit, never before, so a racing reader
// cannot repopulate the cache with pre-mutation data that never gets evicted.
type Reconciler struct {
	db          *sql.DB
	repos       repomanager.RepositoryManager
	coordinator *invalidation.Coordinator
	logger      logging.Logger
}

func NewReconciler(db *sql.DB, repos repomanager.RepositoryManager, coordinator *invalidation.Coordinator, logger logging.Logger) *Reconciler {
	return &Reconciler{
		db:          db,
		repos:       repos,
		coordinator: coordinator,
		logger:      logger.With("component", "reconciler"),
	}
}

// counterAdjust is one ledger mutation derived from an event.
type counterAdjust struct {
	kind    models.RootKind
	id      string
	counter string
}

// primaryRoot returns the aggregate root whose snapshot an event reports,
// and its event-derived counter.
func primaryRoot(kind models.EventKind) (models.RootKind, string, error) {
	switch kind {
	case models.EventPhotoLike:
		return models.RootPhoto, models.CounterLikes, nil
	case models.EventCollectionLike:
		return models.RootCollection, models.CounterLikes, nil
	case models.EventCommentLike:
		return models.RootComment, models.CounterLikes, nil
	case models.EventFollow:
		return models.RootUser, models.CounterFollowers, nil
	case models.EventCollectionPhoto:
		return models.RootCollection, models.CounterArtworks, nil
	case models.EventDownload:
		return models.RootPhoto, models.CounterDownloads, nil
	case models.EventComment:
		return models.RootPhoto, models.CounterComments, nil
	}
	return "", "", fmt.Errorf("unknown event kind: %s", kind)
}

// counterAdjusts lists every ledger column an event touches. Follow events
// touch two: the target's followers_count and the actor's following_count.
func counterAdjusts(kind models.EventKind, actorID, targetID string) ([]counterAdjust, error) {
	root, counter, err := primaryRoot(kind)
	if err != nil {
		return nil, err
	}
	adjusts := []counterAdjust{{kind: root, id: targetID, counter: counter}}
	if kind == models.EventFollow {
		adjusts = append(adjusts, counterAdjust{kind: models.RootUser, id: actorID, counter: models.CounterFollowing})
	}
	return adjusts, nil
}

// ApplyEvent runs the reconciliation state machine for one event and returns
// the post-mutation snapshot of the target root.
//
// Toggle-kind events treat Add on an existing row as toggle-off: the row is
// deleted and the counter decremented, so calling "add" twice is equivalent
// to add-then-remove. Remove on an absent row is a no-op. Append-kind events
// always insert a new row; Remove is invalid for them.
func (r *Reconciler) ApplyEvent(ctx context.Context, kind models.EventKind, actorID, targetID string, direction models.Direction) (*models.CounterSnapshot, error) {
	if kind.IsToggle() {
		_, snap, err := r.applyToggle(ctx, kind, actorID, targetID, direction, 0)
		return snap, err
	}

	if direction == models.Remove {
		return nil, fmt.Errorf("%s events are append-only", kind)
	}
	switch kind {
	case models.EventDownload:
		return r.applyAppend(ctx, kind, targetID, func(ctx context.Context, tx dbx.DBTX) error {
			_, err := r.repos.Events(tx).RecordDownload(ctx, &models.Download{
				ActorID: actorID, PhotoID: targetID, Variant: models.VariantOriginal,
			})
			return err
		})
	case models.EventComment:
		return r.applyAppend(ctx, kind, targetID, func(ctx context.Context, tx dbx.DBTX) error {
			_, err := r.repos.Events(tx).RecordComment(ctx, &models.Comment{
				UserID: actorID, PhotoID: targetID, IsPublic: true,
			})
			return err
		})
	}
	return nil, fmt.Errorf("unknown event kind: %s", kind)
}

// applyToggle performs the {Absent, Present} state transition for one
// (actor, target) pair. The unique constraint on the event row is the sole
// synchronization primitive: the loser of a racing duplicate insert gets
// ErrConflict and is resolved by exactly one retry that re-reads existence
// and performs the complementary action.
func (r *Reconciler) applyToggle(ctx context.Context, kind models.EventKind, actorID, targetID string, direction models.Direction, position int) (bool, *models.CounterSnapshot, error) {
	root, _, err := primaryRoot(kind)
	if err != nil {
		return false, nil, err
	}

	// NotFound aborts before any write.
	inv, err := r.resolveTarget(ctx, kind, actorID, targetID)
	if err != nil {
		return false, nil, err
	}

	active, snap, err := r.toggleOnce(ctx, kind, actorID, targetID, direction, position, root)
	if errors.Is(err, common.ErrConflict) {
		r.logger.Debug(ctx, "toggle conflict, retrying as complementary action",
			"event", string(kind), "actor", actorID, "target", targetID)
		active, snap, err = r.toggleOnce(ctx, kind, actorID, targetID, direction, position, root)
		if errors.Is(err, common.ErrConflict) {
			return false, nil, fmt.Errorf("toggle %s: %w", kind, common.ErrConcurrentModification)
		}
	}
	if err != nil {
		return false, nil, err
	}

	r.invalidateToggle(ctx, kind, actorID, inv)
	return active, snap, nil
}

func (r *Reconciler) toggleOnce(ctx context.Context, kind models.EventKind, actorID, targetID string, direction models.Direction, position int, root models.RootKind) (bool, *models.CounterSnapshot, error) {
	var active bool
	var snap *models.CounterSnapshot

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		ev := r.repos.Events(tx)
		ctr := r.repos.Counters(tx)

		exists, err := ev.Exists(ctx, kind, actorID, targetID)
		if err != nil {
			return err
		}

		switch {
		case direction == models.Add && !exists:
			if kind == models.EventCollectionPhoto {
				_, err = ev.RecordMembership(ctx, targetID, actorID, position)
			} else {
				_, err = ev.Record(ctx, kind, actorID, targetID)
			}
			if err != nil {
				return err
			}
			if err := r.adjustAll(ctx, tx, kind, actorID, targetID, +1); err != nil {
				return err
			}
			if kind == models.EventCollectionPhoto {
				if err := r.repos.Roots(tx).SetCoverIfUnset(ctx, targetID, actorID); err != nil {
					return err
				}
			}
			active = true

		case exists:
			// Toggle-off: either an explicit Remove, or Add on a present
			// row (the double-duty single-endpoint semantics).
			removed, err := ev.Remove(ctx, kind, actorID, targetID)
			if err != nil {
				return err
			}
			if removed {
				if err := r.adjustAll(ctx, tx, kind, actorID, targetID, -1); err != nil {
					return err
				}
				if kind == models.EventCollectionPhoto {
					if err := r.repos.Roots(tx).ReassignCoverAfterRemoval(ctx, targetID, actorID); err != nil {
						return err
					}
				}
			}
			active = false

		default:
			// Remove on Absent: no-op.
			active = false
		}

		snap, err = ctr.Snapshot(ctx, root, targetID)
		return err
	})
	if err != nil {
		return false, nil, err
	}
	return active, snap, nil
}

func (r *Reconciler) adjustAll(ctx context.Context, tx dbx.DBTX, kind models.EventKind, actorID, targetID string, delta int64) error {
	adjusts, err := counterAdjusts(kind, actorID, targetID)
	if err != nil {
		return err
	}
	ctr := r.repos.Counters(tx)
	for _, a := range adjusts {
		if _, err := ctr.Adjust(ctx, a.kind, a.id, a.counter, delta); err != nil {
			return err
		}
	}
	return nil
}

// applyAppend inserts an append-kind event row and increments its counter in
// one transaction, then invalidates.
func (r *Reconciler) applyAppend(ctx context.Context, kind models.EventKind, targetID string, record func(ctx context.Context, tx dbx.DBTX) error) (*models.CounterSnapshot, error) {
	root, counter, err := primaryRoot(kind)
	if err != nil {
		return nil, err
	}

	inv, err := r.resolveTarget(ctx, kind, "", targetID)
	if err != nil {
		return nil, err
	}

	var snap *models.CounterSnapshot
	err = dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := record(ctx, tx); err != nil {
			return err
		}
		ctr := r.repos.Counters(tx)
		if _, err := ctr.Adjust(ctx, root, targetID, counter, +1); err != nil {
			return err
		}
		snap, err = ctr.Snapshot(ctx, root, targetID)
		return err
	})
	if err != nil {
		return nil, err
	}

	reason := invalidation.ReasonDownload
	if kind == models.EventComment {
		reason = invalidation.ReasonComment
	}
	r.coordinator.Invalidate(ctx, inv, reason)
	return snap, nil
}

// resolveTarget verifies the target root exists and assembles the
// invalidation closure (owner, containing collections, parent photo) while
// still outside the transaction.
func (r *Reconciler) resolveTarget(ctx context.Context, kind models.EventKind, actorID, targetID string) (invalidation.Target, error) {
	roots := r.repos.Roots(r.db)
	root, _, err := primaryRoot(kind)
	if err != nil {
		return invalidation.Target{}, err
	}

	owner, err := roots.OwnerID(ctx, root, targetID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return invalidation.Target{}, fmt.Errorf("%s %s: %w", root, targetID, common.ErrNotFound)
		}
		return invalidation.Target{}, err
	}

	t := invalidation.Target{Kind: root, ID: targetID, OwnerID: owner}

	switch kind {
	case models.EventPhotoLike:
		ids, err := roots.CollectionsContainingPhoto(ctx, targetID)
		if err != nil {
			return invalidation.Target{}, err
		}
		t.CollectionIDs = ids
	case models.EventCommentLike:
		c, err := roots.GetComment(ctx, targetID)
		if err != nil {
			return invalidation.Target{}, err
		}
		t.PhotoID = c.PhotoID
	case models.EventFollow:
		t.ViewerID = actorID
	case models.EventCollectionPhoto:
		// The member photo must exist as well.
		if _, err := roots.OwnerID(ctx, models.RootPhoto, actorID); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return invalidation.Target{}, fmt.Errorf("photo %s: %w", actorID, common.ErrNotFound)
			}
			return invalidation.Target{}, err
		}
	}
	return t, nil
}

// Toggle flips a toggle-kind event for one (actor, target) pair and reports
// whether the pair is active afterwards.
func (r *Reconciler) Toggle(ctx context.Context, kind models.EventKind, actorID, targetID string, direction models.Direction) (bool, *models.CounterSnapshot, error) {
	if !kind.IsToggle() {
		return false, nil, fmt.Errorf("%s is not a toggle-kind event", kind)
	}
	return r.applyToggle(ctx, kind, actorID, targetID, direction, 0)
}

// ToggleMembership is Toggle for collection membership, which additionally
// carries a position within the collection. The photo plays the actor role.
func (r *Reconciler) ToggleMembership(ctx context.Context, collectionID, photoID string, direction models.Direction, position int) (bool, *models.CounterSnapshot, error) {
	return r.applyToggle(ctx, models.EventCollectionPhoto, photoID, collectionID, direction, position)
}

// AppendEvent records an append-kind event through the given closure and
// increments the derived counter in the same transaction.
func (r *Reconciler) AppendEvent(ctx context.Context, kind models.EventKind, targetID string, record func(ctx context.Context, tx dbx.DBTX) error) (*models.CounterSnapshot, error) {
	if kind.IsToggle() {
		return nil, fmt.Errorf("%s is not an append-kind event", kind)
	}
	return r.applyAppend(ctx, kind, targetID, record)
}

// BumpViews increments a views counter directly. Views have no event
// relation: the increment is the single atomic UPDATE, outside any
// transaction, and the counter is excluded from drift repair.
func (r *Reconciler) BumpViews(ctx context.Context, kind models.RootKind, id string) (int64, error) {
	if kind != models.RootPhoto && kind != models.RootCollection {
		return 0, fmt.Errorf("root %s has no views counter", kind)
	}
	n, err := r.repos.Counters(r.db).Adjust(ctx, kind, id, models.CounterViews, +1)
	if err != nil {
		return 0, err
	}
	r.coordinator.Invalidate(ctx, invalidation.Target{Kind: kind, ID: id}, invalidation.ReasonView)
	return n, nil
}

func (r *Reconciler) invalidateToggle(ctx context.Context, kind models.EventKind, actorID string, t invalidation.Target) {
	switch kind {
	case models.EventPhotoLike, models.EventCollectionLike, models.EventCommentLike:
		r.coordinator.Invalidate(ctx, t, invalidation.ReasonLike)
	case models.EventFollow:
		r.coordinator.Invalidate(ctx, t, invalidation.ReasonFollow)
		r.coordinator.Invalidate(ctx, invalidation.Target{Kind: models.RootUser, ID: actorID}, invalidation.ReasonFollow)
	case models.EventCollectionPhoto:
		r.coordinator.Invalidate(ctx, t, invalidation.ReasonMembership)
	}
}
