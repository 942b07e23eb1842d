package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"artfolio/internal/dbx"
	"artfolio/internal/logging"
	"artfolio/internal/server/invalidation"
	"artfolio/internal/server/models"
	"artfolio/internal/server/repositories/repomanager"
)

// EngagementService is the write surface of the subsystem: likes, follows,
// downloads, comments, collection membership and view hits. Every operation
// goes through the reconciler so event rows and counters move together.
type EngagementService struct {
	db         *sql.DB
	repos      repomanager.RepositoryManager
	reconciler *Reconciler
	media      *MediaService
	logger     logging.Logger
}

func NewEngagementService(db *sql.DB, repos repomanager.RepositoryManager, reconciler *Reconciler, media *MediaService, logger logging.Logger) *EngagementService {
	return &EngagementService{
		db:         db,
		repos:      repos,
		reconciler: reconciler,
		media:      media,
		logger:     logger.With("component", "engagement"),
	}
}

type ToggleLikeResult struct {
	Liked      bool
	LikesCount int64
}

type ToggleFollowResult struct {
	Following      bool
	FollowersCount int64
}

type MembershipResult struct {
	InCollection bool
	ArtworkCount int64
}

type DownloadResult struct {
	URL            string
	DownloadsCount int64
}

type CommentResult struct {
	CommentID     string
	CommentsCount int64
}

func likeKindFor(kind models.RootKind) (models.EventKind, error) {
	switch kind {
	case models.RootPhoto:
		return models.EventPhotoLike, nil
	case models.RootCollection:
		return models.EventCollectionLike, nil
	case models.RootComment:
		return models.EventCommentLike, nil
	}
	return "", fmt.Errorf("root %s is not likeable", kind)
}

// ToggleLike flips the actor's like on a photo, collection or comment and
// returns the resulting state with the post-mutation like count.
func (s *EngagementService) ToggleLike(ctx context.Context, actorID string, targetKind models.RootKind, targetID string) (*ToggleLikeResult, error) {
	kind, err := likeKindFor(targetKind)
	if err != nil {
		return nil, err
	}

	liked, snap, err := s.reconciler.Toggle(ctx, kind, actorID, targetID, models.Add)
	if err != nil {
		return nil, fmt.Errorf("toggle like: %w", err)
	}
	return &ToggleLikeResult{Liked: liked, LikesCount: snap.Counters[models.CounterLikes]}, nil
}

// Unlike removes the actor's like if present; absent likes are a no-op.
func (s *EngagementService) Unlike(ctx context.Context, actorID string, targetKind models.RootKind, targetID string) (*ToggleLikeResult, error) {
	kind, err := likeKindFor(targetKind)
	if err != nil {
		return nil, err
	}

	liked, snap, err := s.reconciler.Toggle(ctx, kind, actorID, targetID, models.Remove)
	if err != nil {
		return nil, fmt.Errorf("unlike: %w", err)
	}
	return &ToggleLikeResult{Liked: liked, LikesCount: snap.Counters[models.CounterLikes]}, nil
}

// ToggleFollow flips the follower relation and keeps both sides' counters in
// step: the target's followers_count and the actor's following_count move in
// the same transaction.
func (s *EngagementService) ToggleFollow(ctx context.Context, actorID, userID string) (*ToggleFollowResult, error) {
	if actorID == userID {
		return nil, fmt.Errorf("user %s cannot follow themselves", actorID)
	}

	following, snap, err := s.reconciler.Toggle(ctx, models.EventFollow, actorID, userID, models.Add)
	if err != nil {
		return nil, fmt.Errorf("toggle follow: %w", err)
	}
	return &ToggleFollowResult{Following: following, FollowersCount: snap.Counters[models.CounterFollowers]}, nil
}

// AddToCollection records a membership row and bumps artwork_count; adding a
// photo already in the collection toggles it back out. The first photo added
// to a coverless collection becomes its cover.
func (s *EngagementService) AddToCollection(ctx context.Context, collectionID, photoID string, position int) (*MembershipResult, error) {
	in, snap, err := s.reconciler.ToggleMembership(ctx, collectionID, photoID, models.Add, position)
	if err != nil {
		return nil, fmt.Errorf("add to collection: %w", err)
	}
	return &MembershipResult{InCollection: in, ArtworkCount: snap.Counters[models.CounterArtworks]}, nil
}

// RemoveFromCollection drops the membership row if present. Removing the
// cover photo reassigns the cover to the earliest remaining member.
func (s *EngagementService) RemoveFromCollection(ctx context.Context, collectionID, photoID string) (*MembershipResult, error) {
	in, snap, err := s.reconciler.ToggleMembership(ctx, collectionID, photoID, models.Remove, 0)
	if err != nil {
		return nil, fmt.Errorf("remove from collection: %w", err)
	}
	return &MembershipResult{InCollection: in, ArtworkCount: snap.Counters[models.CounterArtworks]}, nil
}

// RecordDownload appends a download event (two downloads by the same actor
// count twice) and returns a presigned URL for the requested variant. The
// URL is signed before the event is written so a signing failure leaves no
// state behind.
func (s *EngagementService) RecordDownload(ctx context.Context, actorID, photoID string, variant models.DownloadVariant, ipAddress, userAgent string) (*DownloadResult, error) {
	photo, err := s.repos.Roots(s.db).GetPhoto(ctx, photoID)
	if err != nil {
		return nil, fmt.Errorf("record download: %w", err)
	}

	url, err := s.media.DownloadURL(ctx, photo.StorageKey, variant)
	if err != nil {
		return nil, fmt.Errorf("presign download url: %w", err)
	}

	snap, err := s.reconciler.AppendEvent(ctx, models.EventDownload, photoID, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := s.repos.Events(tx).RecordDownload(ctx, &models.Download{
			ActorID:   actorID,
			PhotoID:   photoID,
			Variant:   variant,
			IPAddress: ipAddress,
			UserAgent: userAgent,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("record download: %w", err)
	}

	return &DownloadResult{URL: url, DownloadsCount: snap.Counters[models.CounterDownloads]}, nil
}

// AddComment appends a comment event and bumps the photo's comments_count.
func (s *EngagementService) AddComment(ctx context.Context, actorID, photoID, parentID, text string) (*CommentResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("comment text is empty")
	}

	var commentID string
	snap, err := s.reconciler.AppendEvent(ctx, models.EventComment, photoID, func(ctx context.Context, tx dbx.DBTX) error {
		id, err := s.repos.Events(tx).RecordComment(ctx, &models.Comment{
			UserID:   actorID,
			PhotoID:  photoID,
			ParentID: parentID,
			Text:     text,
			IsPublic: true,
		})
		commentID = id
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("add comment: %w", err)
	}

	return &CommentResult{CommentID: commentID, CommentsCount: snap.Counters[models.CounterComments]}, nil
}

// EditComment replaces a comment's text. Counters are untouched; only the
// comment's cache entries go stale.
func (s *EngagementService) EditComment(ctx context.Context, commentID, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("comment text is empty")
	}

	roots := s.repos.Roots(s.db)
	c, err := roots.GetComment(ctx, commentID)
	if err != nil {
		return fmt.Errorf("edit comment: %w", err)
	}
	if err := roots.UpdateCommentText(ctx, commentID, text); err != nil {
		return fmt.Errorf("edit comment: %w", err)
	}

	s.reconciler.coordinator.Invalidate(ctx, invalidation.Target{
		Kind: models.RootComment, ID: commentID, PhotoID: c.PhotoID,
	}, invalidation.ReasonComment)
	return nil
}

// SetCommentVisibility flips the soft is_public flag.
func (s *EngagementService) SetCommentVisibility(ctx context.Context, commentID string, public bool) error {
	roots := s.repos.Roots(s.db)
	c, err := roots.GetComment(ctx, commentID)
	if err != nil {
		return fmt.Errorf("set comment visibility: %w", err)
	}
	if err := roots.SetCommentVisibility(ctx, commentID, public); err != nil {
		return fmt.Errorf("set comment visibility: %w", err)
	}

	s.reconciler.coordinator.Invalidate(ctx, invalidation.Target{
		Kind: models.RootComment, ID: commentID, PhotoID: c.PhotoID,
	}, invalidation.ReasonComment)
	return nil
}

// RecordView bumps a photo or collection views counter. Views are fire and
// forget: no event row backs them, so they are exempt from drift repair.
func (s *EngagementService) RecordView(ctx context.Context, kind models.RootKind, id string) (int64, error) {
	n, err := s.reconciler.BumpViews(ctx, kind, id)
	if err != nil {
		return 0, fmt.Errorf("record view: %w", err)
	}
	return n, nil
}
