package events

import (
	"context"
	"errors"
	"fmt"

	"artfolio/internal/common"
	"artfolio/internal/dbx"
	"artfolio/internal/server/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique-constraint errors.
const pgUniqueViolation = "23505"

// tableSpec maps a toggle-kind event to its table and column names. Only
// kinds listed here may be passed to Record/Remove/Exists.
type tableSpec struct {
	table     string
	actorCol  string
	targetCol string
}

var toggleTables = map[models.EventKind]tableSpec{
	models.EventPhotoLike:       {table: "photo_likes", actorCol: "user_id", targetCol: "photo_id"},
	models.EventCollectionLike:  {table: "collection_likes", actorCol: "user_id", targetCol: "collection_id"},
	models.EventCommentLike:     {table: "comment_likes", actorCol: "user_id", targetCol: "comment_id"},
	models.EventFollow:          {table: "user_follows", actorCol: "follower_id", targetCol: "following_id"},
	models.EventCollectionPhoto: {table: "collection_photos", actorCol: "photo_id", targetCol: "collection_id"},
	models.EventPhotoCategory:   {table: "photo_categories", actorCol: "photo_id", targetCol: "category_id"},
}

// appendTables covers the append-kind relations for CountLive.
var appendTables = map[models.EventKind]tableSpec{
	models.EventDownload: {table: "photo_downloads", actorCol: "user_id", targetCol: "photo_id"},
	models.EventComment:  {table: "photo_comments", actorCol: "user_id", targetCol: "photo_id"},
}

// PostgresRepository implements the event store over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func toggleSpec(kind models.EventKind) (tableSpec, error) {
	s, ok := toggleTables[kind]
	if !ok {
		return tableSpec{}, fmt.Errorf("not a toggle-kind event: %s", kind)
	}
	return s, nil
}

func anySpec(kind models.EventKind) (tableSpec, error) {
	if s, ok := toggleTables[kind]; ok {
		return s, nil
	}
	if s, ok := appendTables[kind]; ok {
		return s, nil
	}
	return tableSpec{}, fmt.Errorf("unknown event kind: %s", kind)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func (r *PostgresRepository) Record(ctx context.Context, kind models.EventKind, actorID, targetID string) (string, error) {
	s, err := toggleSpec(kind)
	if err != nil {
		return "", err
	}

	id := uuid.New().String()
	query := fmt.Sprintf(`INSERT INTO %s (id, %s, %s) VALUES ($1, $2, $3)`, s.table, s.actorCol, s.targetCol)
	if _, err := r.db.ExecContext(ctx, query, id, actorID, targetID); err != nil {
		if isUniqueViolation(err) {
			return "", common.ErrConflict
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) Remove(ctx context.Context, kind models.EventKind, actorID, targetID string) (bool, error) {
	s, err := toggleSpec(kind)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND %s = $2`, s.table, s.actorCol, s.targetCol)
	res, err := r.db.ExecContext(ctx, query, actorID, targetID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) Exists(ctx context.Context, kind models.EventKind, actorID, targetID string) (bool, error) {
	s, err := toggleSpec(kind)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1 AND %s = $2)`, s.table, s.actorCol, s.targetCol)
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, actorID, targetID).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) CountLive(ctx context.Context, kind models.EventKind, targetID string) (int64, error) {
	s, err := anySpec(kind)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1`, s.table, s.targetCol)
	var n int64
	if err := r.db.QueryRowContext(ctx, query, targetID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) CountLiveByActor(ctx context.Context, kind models.EventKind, actorID string) (int64, error) {
	s, err := anySpec(kind)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1`, s.table, s.actorCol)
	var n int64
	if err := r.db.QueryRowContext(ctx, query, actorID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) RecordMembership(ctx context.Context, collectionID, photoID string, position int) (string, error) {
	id := uuid.New().String()
	query := `
		INSERT INTO collection_photos (id, collection_id, photo_id, position)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, query, id, collectionID, photoID, position); err != nil {
		if isUniqueViolation(err) {
			return "", common.ErrConflict
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) RecordDownload(ctx context.Context, d *models.Download) (string, error) {
	id := uuid.New().String()
	query := `
		INSERT INTO photo_downloads (id, user_id, photo_id, variant, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	var actor any
	if d.ActorID != "" {
		actor = d.ActorID
	}
	if _, err := r.db.ExecContext(ctx, query, id, actor, d.PhotoID, string(d.Variant), d.IPAddress, d.UserAgent); err != nil {
		return "", fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) RecordComment(ctx context.Context, c *models.Comment) (string, error) {
	id := uuid.New().String()
	query := `
		INSERT INTO photo_comments (id, user_id, photo_id, parent_id, body, is_public)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	var parent any
	if c.ParentID != "" {
		parent = c.ParentID
	}
	if _, err := r.db.ExecContext(ctx, query, id, c.UserID, c.PhotoID, parent, c.Text, c.IsPublic); err != nil {
		return "", fmt.Errorf("db error: %w", err)
	}
	return id, nil
}
