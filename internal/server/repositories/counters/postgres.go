package counters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"artfolio/internal/common"
	"artfolio/internal/dbx"
	"artfolio/internal/server/models"
)

// rootSpec whitelists the counter columns per aggregate table. Table and
// column names are interpolated into SQL, so nothing outside this map may
// ever reach the query builder.
type rootSpec struct {
	table    string
	counters []string
}

var rootTables = map[models.RootKind]rootSpec{
	models.RootPhoto: {
		table:    "photos",
		counters: []string{models.CounterLikes, models.CounterViews, models.CounterDownloads, models.CounterComments},
	},
	models.RootCollection: {
		table:    "collections",
		counters: []string{models.CounterLikes, models.CounterViews, models.CounterArtworks},
	},
	models.RootCategory: {
		table:    "categories",
		counters: []string{models.CounterPhotos},
	},
	models.RootComment: {
		table:    "photo_comments",
		counters: []string{models.CounterLikes},
	},
	models.RootUser: {
		table:    "users",
		counters: []string{models.CounterFollowers, models.CounterFollowing, models.CounterPhotos},
	},
}

// PostgresRepository implements the ledger over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func spec(kind models.RootKind, counter string) (rootSpec, error) {
	s, ok := rootTables[kind]
	if !ok {
		return rootSpec{}, fmt.Errorf("unknown root kind: %s", kind)
	}
	if counter != "" {
		for _, c := range s.counters {
			if c == counter {
				return s, nil
			}
		}
		return rootSpec{}, fmt.Errorf("root %s has no counter %s", kind, counter)
	}
	return s, nil
}

func (r *PostgresRepository) Adjust(ctx context.Context, kind models.RootKind, id, counter string, delta int64) (int64, error) {
	s, err := spec(kind, counter)
	if err != nil {
		return 0, err
	}

	// GREATEST keeps counters non-negative even if an event row vanished
	// out of band; drift repair restores the exact value later.
	query := fmt.Sprintf(`
		UPDATE %s SET %s = GREATEST(0, %s + $1), updated_at = now()
		WHERE id = $2
		RETURNING %s
	`, s.table, counter, counter, counter)

	var value int64
	if err := r.db.QueryRowContext(ctx, query, delta, id).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return value, nil
}

func (r *PostgresRepository) Set(ctx context.Context, kind models.RootKind, id, counter string, value int64) error {
	s, err := spec(kind, counter)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET %s = $1, updated_at = now() WHERE id = $2`, s.table, counter)
	res, err := r.db.ExecContext(ctx, query, value, id)
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

func (r *PostgresRepository) Snapshot(ctx context.Context, kind models.RootKind, id string) (*models.CounterSnapshot, error) {
	s, err := spec(kind, "")
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, strings.Join(s.counters, ", "), s.table)

	values := make([]int64, len(s.counters))
	dest := make([]any, len(s.counters))
	for i := range values {
		dest[i] = &values[i]
	}

	if err := r.db.QueryRowContext(ctx, query, id).Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	snap := &models.CounterSnapshot{Kind: kind, ID: id, Counters: make(map[string]int64, len(s.counters))}
	for i, c := range s.counters {
		snap.Counters[c] = values[i]
	}
	return snap, nil
}

// Reconciled lists the counters of a root kind that are derived from an
// event relation, paired with the event kind and which side of the relation
// carries the counter. Views counters are absent on purpose: the original
// system increments them without any event row, so there is nothing to
// recount them from.
type ReconciledCounter struct {
	Counter   string
	EventKind models.EventKind
	ByActor   bool
}

func Reconciled(kind models.RootKind) []ReconciledCounter {
	switch kind {
	case models.RootPhoto:
		return []ReconciledCounter{
			{Counter: models.CounterLikes, EventKind: models.EventPhotoLike},
			{Counter: models.CounterDownloads, EventKind: models.EventDownload},
			{Counter: models.CounterComments, EventKind: models.EventComment},
		}
	case models.RootCollection:
		return []ReconciledCounter{
			{Counter: models.CounterLikes, EventKind: models.EventCollectionLike},
			{Counter: models.CounterArtworks, EventKind: models.EventCollectionPhoto},
		}
	case models.RootComment:
		return []ReconciledCounter{
			{Counter: models.CounterLikes, EventKind: models.EventCommentLike},
		}
	case models.RootCategory:
		return []ReconciledCounter{
			{Counter: models.CounterPhotos, EventKind: models.EventPhotoCategory},
		}
	case models.RootUser:
		return []ReconciledCounter{
			{Counter: models.CounterFollowers, EventKind: models.EventFollow},
			{Counter: models.CounterFollowing, EventKind: models.EventFollow, ByActor: true},
		}
	}
	return nil
}
