// Package models contains the server-side domain types: aggregate roots
// carrying denormalized counters, and the event records those counters are
// derived from.
package models

// RootKind identifies an aggregate root carrying denormalized counters.
type RootKind string

const (
	RootPhoto      RootKind = "photo"
	RootCollection RootKind = "collection"
	RootCategory   RootKind = "category"
	RootComment    RootKind = "comment"
	RootUser       RootKind = "user"
)

// EventKind identifies a durable user-action record.
type EventKind string

const (
	// Toggle-kind events: presence/absence alone encodes user state, so
	// creation and deletion are the only lifecycle transitions.
	EventPhotoLike       EventKind = "photo_like"
	EventCollectionLike  EventKind = "collection_like"
	EventCommentLike     EventKind = "comment_like"
	EventFollow          EventKind = "follow"
	EventCollectionPhoto EventKind = "collection_photo"

	// Append-kind events: every action adds a new row, never toggles.
	EventDownload EventKind = "download"
	EventComment  EventKind = "comment"

	// EventPhotoCategory rows are written by the external CRUD layer; the
	// kind exists here so drift repair can recount categories.photos_count.
	EventPhotoCategory EventKind = "photo_category"
)

// IsToggle reports whether the event kind has toggle semantics
// (one row per actor/target pair, enforced by a unique constraint).
func (k EventKind) IsToggle() bool {
	switch k {
	case EventPhotoLike, EventCollectionLike, EventCommentLike, EventFollow, EventCollectionPhoto:
		return true
	}
	return false
}

// Direction tells the reconciler whether an action adds or removes an event.
type Direction int

const (
	Add Direction = iota
	Remove
)

// Counter column names, shared between the ledger repository, the
// invalidation coordinator and drift repair.
const (
	CounterLikes     = "likes_count"
	CounterViews     = "views_count"
	CounterDownloads = "downloads_count"
	CounterComments  = "comments_count"
	CounterArtworks  = "artwork_count"
	CounterPhotos    = "photos_count"
	CounterFollowers = "followers_count"
	CounterFollowing = "following_count"
)

// CounterSnapshot is the post-mutation view of a root's counters returned by
// the reconciler.
type CounterSnapshot struct {
	Kind     RootKind
	ID       string
	Counters map[string]int64
}
