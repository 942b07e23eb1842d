package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"artfolio/internal/common"
	"artfolio/internal/dbx"
	"artfolio/internal/server/models"
	countersrepo "artfolio/internal/server/repositories/counters"
	eventsrepo "artfolio/internal/server/repositories/events"
	rootsrepo "artfolio/internal/server/repositories/roots"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// fakeStore backs all three repositories with shared in-memory state, so
// counter mutations are visible through root reads the way they are with the
// real schema (counters live on the root rows).
type fakeStore struct {
	mu sync.Mutex

	users       map[string]*models.User
	photos      map[string]*models.Photo
	collections map[string]*models.Collection
	comments    map[string]*models.Comment
	categories  map[string]*models.Category

	// togglePairs holds toggle-kind rows keyed kind|actor|target, mirroring
	// the unique constraints of the event tables.
	togglePairs map[string]bool
	memberships map[string]*models.CollectionPhoto
	downloads   []*models.Download

	// beforeRecord, when set, runs under the lock right before a Record
	// presence check. Tests use it to inject a racing writer between the
	// reconciler's existence read and its insert.
	beforeRecord func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       make(map[string]*models.User),
		photos:      make(map[string]*models.Photo),
		collections: make(map[string]*models.Collection),
		comments:    make(map[string]*models.Comment),
		categories:  make(map[string]*models.Category),
		togglePairs: make(map[string]bool),
		memberships: make(map[string]*models.CollectionPhoto),
	}
}

func pairKey(kind models.EventKind, actorID, targetID string) string {
	return string(kind) + "|" + actorID + "|" + targetID
}

// fakeManager vends the shared store for every DBTX; the fakes are not
// transactional, which is fine because the tested paths either commit or
// fail before the first write.
type fakeManager struct{ store *fakeStore }

func (m *fakeManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }
func (m *fakeManager) Events(db dbx.DBTX) eventsrepo.Repository            { return m.store }
func (m *fakeManager) Counters(db dbx.DBTX) countersrepo.Repository       { return m.store }
func (m *fakeManager) Roots(db dbx.DBTX) rootsrepo.Repository             { return m.store }

// --- events repository ---

func (f *fakeStore) Record(ctx context.Context, kind models.EventKind, actorID, targetID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.beforeRecord != nil {
		f.beforeRecord()
	}

	key := pairKey(kind, actorID, targetID)
	if f.togglePairs[key] {
		return "", common.ErrConflict
	}
	f.togglePairs[key] = true
	return uuid.New().String(), nil
}

func (f *fakeStore) Remove(ctx context.Context, kind models.EventKind, actorID, targetID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := pairKey(kind, actorID, targetID)
	if !f.togglePairs[key] {
		return false, nil
	}
	delete(f.togglePairs, key)
	if kind == models.EventCollectionPhoto {
		delete(f.memberships, targetID+"|"+actorID)
	}
	return true, nil
}

func (f *fakeStore) Exists(ctx context.Context, kind models.EventKind, actorID, targetID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.togglePairs[pairKey(kind, actorID, targetID)], nil
}

func (f *fakeStore) CountLive(ctx context.Context, kind models.EventKind, targetID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch kind {
	case models.EventDownload:
		var n int64
		for _, d := range f.downloads {
			if d.PhotoID == targetID {
				n++
			}
		}
		return n, nil
	case models.EventComment:
		var n int64
		for _, c := range f.comments {
			if c.PhotoID == targetID {
				n++
			}
		}
		return n, nil
	}

	var n int64
	suffix := "|" + targetID
	prefix := string(kind) + "|"
	for key := range f.togglePairs {
		if len(key) > len(prefix)+len(suffix) && key[:len(prefix)] == prefix && key[len(key)-len(suffix):] == suffix {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CountLiveByActor(ctx context.Context, kind models.EventKind, actorID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int64
	prefix := string(kind) + "|" + actorID + "|"
	for key := range f.togglePairs {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) RecordMembership(ctx context.Context, collectionID, photoID string, position int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.beforeRecord != nil {
		f.beforeRecord()
	}

	key := pairKey(models.EventCollectionPhoto, photoID, collectionID)
	if f.togglePairs[key] {
		return "", common.ErrConflict
	}
	f.togglePairs[key] = true

	id := uuid.New().String()
	f.memberships[collectionID+"|"+photoID] = &models.CollectionPhoto{
		ID: id, CollectionID: collectionID, PhotoID: photoID, Position: position,
	}
	return id, nil
}

func (f *fakeStore) RecordDownload(ctx context.Context, d *models.Download) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored := *d
	stored.ID = uuid.New().String()
	f.downloads = append(f.downloads, &stored)
	return stored.ID, nil
}

func (f *fakeStore) RecordComment(ctx context.Context, c *models.Comment) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored := *c
	stored.ID = uuid.New().String()
	f.comments[stored.ID] = &stored
	return stored.ID, nil
}

// --- counters repository ---

func (f *fakeStore) counterRef(kind models.RootKind, id, counter string) (*int64, error) {
	switch kind {
	case models.RootPhoto:
		p, ok := f.photos[id]
		if !ok {
			return nil, common.ErrNotFound
		}
		switch counter {
		case models.CounterLikes:
			return &p.LikesCount, nil
		case models.CounterViews:
			return &p.ViewsCount, nil
		case models.CounterDownloads:
			return &p.DownloadsCount, nil
		case models.CounterComments:
			return &p.CommentsCount, nil
		}
	case models.RootCollection:
		c, ok := f.collections[id]
		if !ok {
			return nil, common.ErrNotFound
		}
		switch counter {
		case models.CounterLikes:
			return &c.LikesCount, nil
		case models.CounterViews:
			return &c.ViewsCount, nil
		case models.CounterArtworks:
			return &c.ArtworkCount, nil
		}
	case models.RootComment:
		c, ok := f.comments[id]
		if !ok {
			return nil, common.ErrNotFound
		}
		if counter == models.CounterLikes {
			return &c.LikesCount, nil
		}
	case models.RootCategory:
		c, ok := f.categories[id]
		if !ok {
			return nil, common.ErrNotFound
		}
		if counter == models.CounterPhotos {
			return &c.PhotosCount, nil
		}
	case models.RootUser:
		u, ok := f.users[id]
		if !ok {
			return nil, common.ErrNotFound
		}
		switch counter {
		case models.CounterFollowers:
			return &u.FollowersCount, nil
		case models.CounterFollowing:
			return &u.FollowingCount, nil
		case models.CounterPhotos:
			return &u.PhotosCount, nil
		}
	}
	return nil, fmt.Errorf("root %s has no counter %s", kind, counter)
}

func (f *fakeStore) Adjust(ctx context.Context, kind models.RootKind, id, counter string, delta int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ref, err := f.counterRef(kind, id, counter)
	if err != nil {
		return 0, err
	}
	*ref += delta
	if *ref < 0 {
		*ref = 0
	}
	return *ref, nil
}

func (f *fakeStore) Set(ctx context.Context, kind models.RootKind, id, counter string, value int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	ref, err := f.counterRef(kind, id, counter)
	if err != nil {
		return err
	}
	*ref = value
	return nil
}

func (f *fakeStore) Snapshot(ctx context.Context, kind models.RootKind, id string) (*models.CounterSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := map[models.RootKind][]string{
		models.RootPhoto:      {models.CounterLikes, models.CounterViews, models.CounterDownloads, models.CounterComments},
		models.RootCollection: {models.CounterLikes, models.CounterViews, models.CounterArtworks},
		models.RootComment:    {models.CounterLikes},
		models.RootCategory:   {models.CounterPhotos},
		models.RootUser:       {models.CounterFollowers, models.CounterFollowing, models.CounterPhotos},
	}[kind]

	snap := &models.CounterSnapshot{Kind: kind, ID: id, Counters: make(map[string]int64, len(names))}
	for _, name := range names {
		ref, err := f.counterRef(kind, id, name)
		if err != nil {
			return nil, err
		}
		snap.Counters[name] = *ref
	}
	return snap, nil
}

// --- roots repository ---

func (f *fakeStore) OwnerID(ctx context.Context, kind models.RootKind, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch kind {
	case models.RootPhoto:
		if p, ok := f.photos[id]; ok {
			return p.UserID, nil
		}
	case models.RootCollection:
		if c, ok := f.collections[id]; ok {
			return c.UserID, nil
		}
	case models.RootComment:
		if c, ok := f.comments[id]; ok {
			return c.UserID, nil
		}
	case models.RootCategory:
		if _, ok := f.categories[id]; ok {
			return "", nil
		}
	case models.RootUser:
		if _, ok := f.users[id]; ok {
			return id, nil
		}
	}
	return "", common.ErrNotFound
}

func (f *fakeStore) GetPhoto(ctx context.Context, id string) (*models.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.photos[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeStore) GetCollection(ctx context.Context, id string) (*models.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.collections[id]; ok {
		cc := *c
		return &cc, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		cu := *u
		return &cu, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeStore) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.comments[id]; ok {
		cc := *c
		return &cc, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeStore) ListCollectionPhotos(ctx context.Context, collectionID string, limit int) ([]*models.CollectionPhoto, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*models.CollectionPhoto
	for _, m := range f.memberships {
		if m.CollectionID == collectionID {
			cm := *m
			out = append(out, &cm)
		}
	}
	return out, nil
}

func (f *fakeStore) CollectionsContainingPhoto(ctx context.Context, photoID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	seen := make(map[string]struct{})
	var out []string
	for _, m := range f.memberships {
		if m.PhotoID == photoID {
			if _, ok := seen[m.CollectionID]; !ok {
				seen[m.CollectionID] = struct{}{}
				out = append(out, m.CollectionID)
			}
		}
	}
	for id, c := range f.collections {
		if c.CoverPhotoID == photoID {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) SetCoverIfUnset(ctx context.Context, collectionID, photoID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.collections[collectionID]
	if !ok {
		return common.ErrNotFound
	}
	if c.CoverPhotoID == "" {
		c.CoverPhotoID = photoID
	}
	return nil
}

func (f *fakeStore) ReassignCoverAfterRemoval(ctx context.Context, collectionID, removedPhotoID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.collections[collectionID]
	if !ok {
		return common.ErrNotFound
	}
	if c.CoverPhotoID != removedPhotoID {
		return nil
	}
	c.CoverPhotoID = ""
	best := (*models.CollectionPhoto)(nil)
	for _, m := range f.memberships {
		if m.CollectionID != collectionID {
			continue
		}
		if best == nil || m.Position < best.Position {
			best = m
		}
	}
	if best != nil {
		c.CoverPhotoID = best.PhotoID
	}
	return nil
}

func (f *fakeStore) UpdateCommentText(ctx context.Context, commentID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.comments[commentID]
	if !ok {
		return common.ErrNotFound
	}
	c.Text = text
	return nil
}

func (f *fakeStore) SetCommentVisibility(ctx context.Context, commentID string, public bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.comments[commentID]
	if !ok {
		return common.ErrNotFound
	}
	c.IsPublic = public
	return nil
}

func (f *fakeStore) ListIDs(ctx context.Context, kind models.RootKind, limit, offset int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var ids []string
	switch kind {
	case models.RootPhoto:
		for id := range f.photos {
			ids = append(ids, id)
		}
	case models.RootCollection:
		for id := range f.collections {
			ids = append(ids, id)
		}
	case models.RootComment:
		for id := range f.comments {
			ids = append(ids, id)
		}
	case models.RootCategory:
		for id := range f.categories {
			ids = append(ids, id)
		}
	case models.RootUser:
		for id := range f.users {
			ids = append(ids, id)
		}
	}

	if offset >= len(ids) {
		return nil, nil
	}
	ids = ids[offset:]
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// openTestDB returns an in-memory database used only for transaction
// demarcation; the fakes never touch it.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	t.Cleanup(func() { _ = db.Close() })
	return db
}
