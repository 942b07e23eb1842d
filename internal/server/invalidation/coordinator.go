// Package invalidation decides which cache keys to evict after a committed
// ledger mutation. Eviction is delete-only (the next read recomputes) and
// best-effort: a failed eviction is logged and otherwise ignored, because
// every entry's TTL bounds its staleness and the ledger stays ground truth.
package invalidation

import (
	"context"

	"artfolio/internal/logging"
	"artfolio/internal/server/cache"
	"artfolio/internal/server/models"
)

// Reason describes why a root's cache entries went stale.
type Reason string

const (
	ReasonLike       Reason = "like"
	ReasonView       Reason = "view"
	ReasonDownload   Reason = "download"
	ReasonComment    Reason = "comment"
	ReasonMembership Reason = "membership"
	ReasonFollow     Reason = "follow"
	ReasonRepair     Reason = "repair"
)

// Target identifies the mutated root plus the relationship closure the
// reconciler resolved before committing: the owner (for aggregate-stats
// keys), the collections surfacing a photo, the photo a comment belongs to,
// and the acting viewer for follow-pair keys.
type Target struct {
	Kind    models.RootKind
	ID      string
	OwnerID string

	// CollectionIDs lists collections showing this photo as cover or member.
	CollectionIDs []string

	// PhotoID is set for comment roots.
	PhotoID string

	// ViewerID is the acting user for follow mutations (pair-key eviction).
	ViewerID string
}

// Coordinator maps (root kind, reason) pairs to cache key patterns.
type Coordinator struct {
	cache  cache.Cache
	logger logging.Logger
}

func NewCoordinator(c cache.Cache, logger logging.Logger) *Coordinator {
	return &Coordinator{cache: c, logger: logger}
}

// Invalidate evicts every cache key derived from the target for the given
// reasons. It never fails observably: callers have already committed.
func (c *Coordinator) Invalidate(ctx context.Context, t Target, reasons ...Reason) {
	keys := make([]string, 0, 8)
	prefixes := make([]string, 0, 2)

	seen := make(map[string]struct{})
	addKey := func(ks ...string) {
		for _, k := range ks {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	addPrefix := func(p string) {
		for _, have := range prefixes {
			if have == p {
				return
			}
		}
		prefixes = append(prefixes, p)
	}

	for _, reason := range reasons {
		c.collect(t, reason, addKey, addPrefix)
	}

	if len(keys) > 0 {
		if err := c.cache.Delete(ctx, keys...); err != nil {
			c.logger.Warn(ctx, "cache eviction failed", "keys", keys, "error", err)
		}
	}
	for _, p := range prefixes {
		if err := c.cache.DeleteByPrefix(ctx, p); err != nil {
			c.logger.Warn(ctx, "cache prefix eviction failed", "prefix", p, "error", err)
		}
	}
}

func (c *Coordinator) collect(t Target, reason Reason, addKey func(...string), addPrefix func(string)) {
	switch t.Kind {
	case models.RootPhoto:
		addKey(cache.KeyPhoto(t.ID))
		switch reason {
		case ReasonLike, ReasonRepair:
			addKey(cache.KeyPhotoLikes(t.ID))
			if t.OwnerID != "" {
				addKey(cache.KeyUser(t.OwnerID), cache.KeyUserPhotosCount(t.OwnerID))
			}
			// Collections surfacing the photo show its like count on
			// thumbnails; their detail views are part of the closure.
			for _, cid := range t.CollectionIDs {
				addKey(cache.KeyCollection(cid))
			}
			addPrefix(cache.PrefixPhotoList)
		case ReasonComment:
			addKey(cache.KeyPhotoComments(t.ID))
		}

	case models.RootCollection:
		addKey(cache.KeyCollection(t.ID))
		switch reason {
		case ReasonMembership, ReasonRepair:
			addKey(cache.KeyCollectionPhotos(t.ID))
			addPrefix(cache.PrefixCollectionList)
		case ReasonLike:
			addPrefix(cache.PrefixCollectionList)
		}

	case models.RootComment:
		addKey(cache.KeyComment(t.ID))
		if t.PhotoID != "" {
			addKey(cache.KeyPhotoComments(t.PhotoID))
		}

	case models.RootUser:
		addKey(cache.KeyUser(t.ID))
		switch reason {
		case ReasonFollow, ReasonRepair:
			addKey(cache.KeyUserFollowersCount(t.ID), cache.KeyUserFollowingCount(t.ID))
			if t.ViewerID != "" {
				addKey(cache.KeyFollows(t.ViewerID, t.ID))
			}
		}

	case models.RootCategory:
		addKey(cache.KeyCategory(t.ID))
	}
}
