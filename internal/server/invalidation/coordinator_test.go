package invalidation

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"artfolio/internal/logging"
	"artfolio/internal/server/cache"
	"artfolio/internal/server/models"

	"github.com/stretchr/testify/require"
)

func newCoordinator(t *testing.T) (*Coordinator, *cache.MemoryCache, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	mc := cache.NewMemoryCache()
	return NewCoordinator(mc, logger), mc, &buf
}

func seed(t *testing.T, mc *cache.MemoryCache, keys ...string) {
	t.Helper()
	for _, k := range keys {
		require.NoError(t, mc.Set(context.Background(), k, []byte("cached"), time.Hour))
	}
}

func missing(t *testing.T, mc *cache.MemoryCache, key string) {
	t.Helper()
	_, err := mc.Get(context.Background(), key)
	require.ErrorIs(t, err, cache.ErrMiss, "expected %s to be evicted", key)
}

func present(t *testing.T, mc *cache.MemoryCache, key string) {
	t.Helper()
	_, err := mc.Get(context.Background(), key)
	require.NoError(t, err, "expected %s to survive", key)
}

func TestInvalidate_PhotoLikeClosure(t *testing.T) {
	co, mc, _ := newCoordinator(t)
	ctx := context.Background()

	seed(t, mc,
		cache.KeyPhoto("p1"),
		cache.KeyPhotoLikes("p1"),
		cache.KeyUser("u1"),
		cache.KeyUserPhotosCount("u1"),
		cache.KeyCollection("c1"),
		cache.PrefixPhotoList+"page1",
		cache.KeyPhoto("p2"), // unrelated
	)

	co.Invalidate(ctx, Target{
		Kind:          models.RootPhoto,
		ID:            "p1",
		OwnerID:       "u1",
		CollectionIDs: []string{"c1"},
	}, ReasonLike)

	missing(t, mc, cache.KeyPhoto("p1"))
	missing(t, mc, cache.KeyPhotoLikes("p1"))
	missing(t, mc, cache.KeyUser("u1"))
	missing(t, mc, cache.KeyUserPhotosCount("u1"))
	missing(t, mc, cache.KeyCollection("c1"))
	missing(t, mc, cache.PrefixPhotoList+"page1")
	present(t, mc, cache.KeyPhoto("p2"))
}

func TestInvalidate_MembershipEvictsCollectionKeys(t *testing.T) {
	co, mc, _ := newCoordinator(t)
	ctx := context.Background()

	seed(t, mc,
		cache.KeyCollection("c1"),
		cache.KeyCollectionPhotos("c1"),
		cache.PrefixCollectionList+"u1",
	)

	co.Invalidate(ctx, Target{Kind: models.RootCollection, ID: "c1", OwnerID: "u1"}, ReasonMembership)

	missing(t, mc, cache.KeyCollection("c1"))
	missing(t, mc, cache.KeyCollectionPhotos("c1"))
	missing(t, mc, cache.PrefixCollectionList+"u1")
}

func TestInvalidate_FollowEvictsPairAndCountKeys(t *testing.T) {
	co, mc, _ := newCoordinator(t)
	ctx := context.Background()

	seed(t, mc,
		cache.KeyUser("u2"),
		cache.KeyUserFollowersCount("u2"),
		cache.KeyUserFollowingCount("u2"),
		cache.KeyFollows("u1", "u2"),
	)

	co.Invalidate(ctx, Target{Kind: models.RootUser, ID: "u2", ViewerID: "u1"}, ReasonFollow)

	missing(t, mc, cache.KeyUser("u2"))
	missing(t, mc, cache.KeyUserFollowersCount("u2"))
	missing(t, mc, cache.KeyUserFollowingCount("u2"))
	missing(t, mc, cache.KeyFollows("u1", "u2"))
}

func TestInvalidate_DownloadTouchesOnlyPhotoDetail(t *testing.T) {
	co, mc, _ := newCoordinator(t)
	ctx := context.Background()

	seed(t, mc, cache.KeyPhoto("p1"), cache.KeyPhotoLikes("p1"))

	co.Invalidate(ctx, Target{Kind: models.RootPhoto, ID: "p1", OwnerID: "u1"}, ReasonDownload)

	missing(t, mc, cache.KeyPhoto("p1"))
	present(t, mc, cache.KeyPhotoLikes("p1"))
}

// failingCache rejects every operation.
type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]byte, error) { return nil, errors.New("down") }
func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("down")
}
func (failingCache) Delete(context.Context, ...string) error      { return errors.New("down") }
func (failingCache) DeleteByPrefix(context.Context, string) error { return errors.New("down") }

func TestInvalidate_EvictionFailureIsLoggedNotReturned(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	co := NewCoordinator(failingCache{}, logger)

	// Must not panic or propagate the failure.
	co.Invalidate(context.Background(), Target{Kind: models.RootPhoto, ID: "p1"}, ReasonLike)

	out := buf.String()
	require.True(t, strings.Contains(out, "cache eviction failed") ||
		strings.Contains(out, "cache prefix eviction failed"),
		"eviction failure must be logged: %q", out)
}
