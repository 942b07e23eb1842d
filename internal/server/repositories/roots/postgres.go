package roots

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"artfolio/internal/common"
	"artfolio/internal/dbx"
	"artfolio/internal/server/models"
)

// PostgresRepository implements root lookups over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var ownerQueries = map[models.RootKind]string{
	models.RootPhoto:      `SELECT user_id FROM photos WHERE id = $1`,
	models.RootCollection: `SELECT user_id FROM collections WHERE id = $1`,
	models.RootComment:    `SELECT user_id FROM photo_comments WHERE id = $1`,
	models.RootUser:       `SELECT id FROM users WHERE id = $1`,
	models.RootCategory:   `SELECT '' FROM categories WHERE id = $1`,
}

var idTables = map[models.RootKind]string{
	models.RootPhoto:      "photos",
	models.RootCollection: "collections",
	models.RootCategory:   "categories",
	models.RootComment:    "photo_comments",
	models.RootUser:       "users",
}

func (r *PostgresRepository) OwnerID(ctx context.Context, kind models.RootKind, id string) (string, error) {
	query, ok := ownerQueries[kind]
	if !ok {
		return "", fmt.Errorf("unknown root kind: %s", kind)
	}

	var owner string
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return owner, nil
}

func (r *PostgresRepository) GetPhoto(ctx context.Context, id string) (*models.Photo, error) {
	query := `
		SELECT id, user_id, title, COALESCE(description, ''), storage_key,
			COALESCE(width, 0), COALESCE(height, 0), COALESCE(format, ''),
			likes_count, views_count, downloads_count, comments_count,
			is_public, is_featured, created_at, updated_at
		FROM photos WHERE id = $1
	`
	p := &models.Photo{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.UserID, &p.Title, &p.Description, &p.StorageKey,
		&p.Width, &p.Height, &p.Format,
		&p.LikesCount, &p.ViewsCount, &p.DownloadsCount, &p.CommentsCount,
		&p.IsPublic, &p.IsFeatured, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) GetCollection(ctx context.Context, id string) (*models.Collection, error) {
	query := `
		SELECT id, user_id, name, COALESCE(description, ''), is_private,
			COALESCE(cover_photo_id::text, ''),
			artwork_count, views_count, likes_count, created_at, updated_at
		FROM collections WHERE id = $1
	`
	c := &models.Collection{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.UserID, &c.Name, &c.Description, &c.IsPrivate,
		&c.CoverPhotoID,
		&c.ArtworkCount, &c.ViewsCount, &c.LikesCount, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, username, full_name, followers_count, following_count,
			photos_count, created_at, updated_at
		FROM users WHERE id = $1
	`
	u := &models.User{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.UserName, &u.FullName, &u.FollowersCount, &u.FollowingCount,
		&u.PhotosCount, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	query := `
		SELECT id, user_id, photo_id, COALESCE(parent_id::text, ''), body,
			likes_count, is_public, created_at, updated_at
		FROM photo_comments WHERE id = $1
	`
	c := &models.Comment{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.UserID, &c.PhotoID, &c.ParentID, &c.Text,
		&c.LikesCount, &c.IsPublic, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) ListCollectionPhotos(ctx context.Context, collectionID string, limit int) ([]*models.CollectionPhoto, error) {
	query := `
		SELECT id, collection_id, photo_id, position, created_at
		FROM collection_photos
		WHERE collection_id = $1
		ORDER BY position, created_at
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, collectionID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.CollectionPhoto
	for rows.Next() {
		var item models.CollectionPhoto
		if err := rows.Scan(&item.ID, &item.CollectionID, &item.PhotoID, &item.Position, &item.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) CollectionsContainingPhoto(ctx context.Context, photoID string) ([]string, error) {
	query := `
		SELECT collection_id FROM collection_photos WHERE photo_id = $1
		UNION
		SELECT id FROM collections WHERE cover_photo_id = $1
	`
	rows, err := r.db.QueryContext(ctx, query, photoID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *PostgresRepository) SetCoverIfUnset(ctx context.Context, collectionID, photoID string) error {
	query := `
		UPDATE collections SET cover_photo_id = $1, updated_at = now()
		WHERE id = $2 AND cover_photo_id IS NULL
	`
	if _, err := r.db.ExecContext(ctx, query, photoID, collectionID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ReassignCoverAfterRemoval(ctx context.Context, collectionID, removedPhotoID string) error {
	query := `
		UPDATE collections SET cover_photo_id = (
			SELECT photo_id FROM collection_photos
			WHERE collection_id = $1
			ORDER BY position, created_at
			LIMIT 1
		), updated_at = now()
		WHERE id = $1 AND cover_photo_id = $2
	`
	if _, err := r.db.ExecContext(ctx, query, collectionID, removedPhotoID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateCommentText(ctx context.Context, commentID, text string) error {
	return r.execOnComment(ctx, `UPDATE photo_comments SET body = $1, updated_at = now() WHERE id = $2`, text, commentID)
}

func (r *PostgresRepository) SetCommentVisibility(ctx context.Context, commentID string, public bool) error {
	return r.execOnComment(ctx, `UPDATE photo_comments SET is_public = $1, updated_at = now() WHERE id = $2`, public, commentID)
}

func (r *PostgresRepository) execOnComment(ctx context.Context, query string, arg any, commentID string) error {
	res, err := r.db.ExecContext(ctx, query, arg, commentID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ListIDs(ctx context.Context, kind models.RootKind, limit, offset int) ([]string, error) {
	table, ok := idTables[kind]
	if !ok {
		return nil, fmt.Errorf("unknown root kind: %s", kind)
	}

	query := fmt.Sprintf(`SELECT id FROM %s ORDER BY created_at LIMIT $1 OFFSET $2`, table)
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
