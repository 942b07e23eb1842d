// Package roots provides lookups on aggregate-root rows: existence and
// ownership pre-checks for the reconciler, detail reads for cached-view
// recomputation, and collection cover maintenance.
package roots

import (
	"context"

	"artfolio/internal/server/models"
)

type Repository interface {
	// OwnerID returns the owning user id of a root, or common.ErrNotFound.
	// Users own themselves; categories have no owner and return "".
	OwnerID(ctx context.Context, kind models.RootKind, id string) (string, error)

	GetPhoto(ctx context.Context, id string) (*models.Photo, error)
	GetCollection(ctx context.Context, id string) (*models.Collection, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetComment(ctx context.Context, id string) (*models.Comment, error)

	// ListCollectionPhotos returns the membership rows of a collection
	// ordered by position.
	ListCollectionPhotos(ctx context.Context, collectionID string, limit int) ([]*models.CollectionPhoto, error)

	// CollectionsContainingPhoto returns ids of collections that surface the
	// photo as cover or member; their cache keys belong to the photo's
	// invalidation closure.
	CollectionsContainingPhoto(ctx context.Context, photoID string) ([]string, error)

	// SetCoverIfUnset assigns the photo as the collection cover when no
	// cover is set yet.
	SetCoverIfUnset(ctx context.Context, collectionID, photoID string) error

	// ReassignCoverAfterRemoval points the cover at the earliest remaining
	// member (or NULL) when the current cover was just removed.
	ReassignCoverAfterRemoval(ctx context.Context, collectionID, removedPhotoID string) error

	// UpdateCommentText edits a comment body (append-only event with a soft
	// edit, per the comment lifecycle).
	UpdateCommentText(ctx context.Context, commentID, text string) error

	// SetCommentVisibility flips the soft is_public flag.
	SetCommentVisibility(ctx context.Context, commentID string, public bool) error

	// ListIDs pages over root ids for the drift-repair scan.
	ListIDs(ctx context.Context, kind models.RootKind, limit, offset int) ([]string, error)
}
