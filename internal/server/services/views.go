package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"artfolio/internal/logging"
	"artfolio/internal/server/cache"
	sc "artfolio/internal/server/config"
	"artfolio/internal/server/models"
	"artfolio/internal/server/repositories/repomanager"
)

// ViewService serves the cached read models. Reads go through the cache
// (read-through with per-entry TTLs); the ledger row is always the source of
// truth and an unreachable cache degrades to a direct read, never to an
// error.
type ViewService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	cache  cache.Cache
	config *sc.Config
	logger logging.Logger
}

func NewViewService(db *sql.DB, repos repomanager.RepositoryManager, c cache.Cache, config *sc.Config, logger logging.Logger) *ViewService {
	return &ViewService{
		db:     db,
		repos:  repos,
		cache:  c,
		config: config,
		logger: logger.With("component", "views"),
	}
}

// PhotoView is the cached detail read model of a photo.
type PhotoView struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Width          int       `json:"width"`
	Height         int       `json:"height"`
	Format         string    `json:"format"`
	LikesCount     int64     `json:"likes_count"`
	ViewsCount     int64     `json:"views_count"`
	DownloadsCount int64     `json:"downloads_count"`
	CommentsCount  int64     `json:"comments_count"`
	IsPublic       bool      `json:"is_public"`
	IsFeatured     bool      `json:"is_featured"`
	CreatedAt      time.Time `json:"created_at"`
}

// ProfileView is the cached read model of a user profile with its
// aggregate stats.
type ProfileView struct {
	ID             string    `json:"id"`
	UserName       string    `json:"user_name"`
	FullName       string    `json:"full_name"`
	FollowersCount int64     `json:"followers_count"`
	FollowingCount int64     `json:"following_count"`
	PhotosCount    int64     `json:"photos_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// CollectionView is the cached detail read model of a collection.
type CollectionView struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	IsPrivate    bool      `json:"is_private"`
	CoverPhotoID string    `json:"cover_photo_id"`
	ArtworkCount int64     `json:"artwork_count"`
	ViewsCount   int64     `json:"views_count"`
	LikesCount   int64     `json:"likes_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// CollectionPhotosView lists a collection's member photo ids in position
// order.
type CollectionPhotosView struct {
	CollectionID string   `json:"collection_id"`
	PhotoIDs     []string `json:"photo_ids"`
}

func (s *ViewService) detailTTL() time.Duration { return s.config.CacheDetailTTL }
func (s *ViewService) listTTL() time.Duration   { return s.config.CacheListTTL }

func (s *ViewService) reportDegraded(ctx context.Context, key string) {
	s.logger.Warn(ctx, "cache unavailable, serving direct read", "key", key)
}

// GetPhoto returns the photo detail view, cache first.
func (s *ViewService) GetPhoto(ctx context.Context, id string) (*PhotoView, error) {
	key := cache.KeyPhoto(id)
	v, healthy, err := cache.GetOrCompute(ctx, s.cache, key, s.detailTTL(), func(ctx context.Context) (*PhotoView, error) {
		p, err := s.repos.Roots(s.db).GetPhoto(ctx, id)
		if err != nil {
			return nil, err
		}
		return &PhotoView{
			ID:             p.ID,
			UserID:         p.UserID,
			Title:          p.Title,
			Description:    p.Description,
			Width:          p.Width,
			Height:         p.Height,
			Format:         p.Format,
			LikesCount:     p.LikesCount,
			ViewsCount:     p.ViewsCount,
			DownloadsCount: p.DownloadsCount,
			CommentsCount:  p.CommentsCount,
			IsPublic:       p.IsPublic,
			IsFeatured:     p.IsFeatured,
			CreatedAt:      p.CreatedAt,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("get photo: %w", err)
	}
	if !healthy {
		s.reportDegraded(ctx, key)
	}
	return v, nil
}

// GetProfile returns the user profile view with aggregate stats, cache first.
func (s *ViewService) GetProfile(ctx context.Context, id string) (*ProfileView, error) {
	key := cache.KeyUser(id)
	v, healthy, err := cache.GetOrCompute(ctx, s.cache, key, s.detailTTL(), func(ctx context.Context) (*ProfileView, error) {
		u, err := s.repos.Roots(s.db).GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		return &ProfileView{
			ID:             u.ID,
			UserName:       u.UserName,
			FullName:       u.FullName,
			FollowersCount: u.FollowersCount,
			FollowingCount: u.FollowingCount,
			PhotosCount:    u.PhotosCount,
			CreatedAt:      u.CreatedAt,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if !healthy {
		s.reportDegraded(ctx, key)
	}
	return v, nil
}

// GetCollection returns the collection detail view, cache first.
func (s *ViewService) GetCollection(ctx context.Context, id string) (*CollectionView, error) {
	key := cache.KeyCollection(id)
	v, healthy, err := cache.GetOrCompute(ctx, s.cache, key, s.detailTTL(), func(ctx context.Context) (*CollectionView, error) {
		c, err := s.repos.Roots(s.db).GetCollection(ctx, id)
		if err != nil {
			return nil, err
		}
		return &CollectionView{
			ID:           c.ID,
			UserID:       c.UserID,
			Name:         c.Name,
			Description:  c.Description,
			IsPrivate:    c.IsPrivate,
			CoverPhotoID: c.CoverPhotoID,
			ArtworkCount: c.ArtworkCount,
			ViewsCount:   c.ViewsCount,
			LikesCount:   c.LikesCount,
			CreatedAt:    c.CreatedAt,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}
	if !healthy {
		s.reportDegraded(ctx, key)
	}
	return v, nil
}

// GetCollectionPhotos returns the member photo ids of a collection in
// position order, cache first with the shorter list TTL.
func (s *ViewService) GetCollectionPhotos(ctx context.Context, id string, limit int) (*CollectionPhotosView, error) {
	key := cache.KeyCollectionPhotos(id)
	v, healthy, err := cache.GetOrCompute(ctx, s.cache, key, s.listTTL(), func(ctx context.Context) (*CollectionPhotosView, error) {
		rows, err := s.repos.Roots(s.db).ListCollectionPhotos(ctx, id, limit)
		if err != nil {
			return nil, err
		}
		view := &CollectionPhotosView{CollectionID: id, PhotoIDs: make([]string, 0, len(rows))}
		for _, row := range rows {
			view.PhotoIDs = append(view.PhotoIDs, row.PhotoID)
		}
		return view, nil
	})
	if err != nil {
		return nil, fmt.Errorf("get collection photos: %w", err)
	}
	if !healthy {
		s.reportDegraded(ctx, key)
	}
	return v, nil
}

// IsFollowing reports whether viewer follows user, cache first.
func (s *ViewService) IsFollowing(ctx context.Context, viewerID, userID string) (bool, error) {
	key := cache.KeyFollows(viewerID, userID)
	v, healthy, err := cache.GetOrCompute(ctx, s.cache, key, s.listTTL(), func(ctx context.Context) (bool, error) {
		return s.repos.Events(s.db).Exists(ctx, models.EventFollow, viewerID, userID)
	})
	if err != nil {
		return false, fmt.Errorf("is following: %w", err)
	}
	if !healthy {
		s.reportDegraded(ctx, key)
	}
	return v, nil
}
