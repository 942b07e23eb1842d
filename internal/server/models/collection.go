package models

import "time"

type Collection struct {
	ID          string
	UserID      string
	Name        string
	Description string
	IsPrivate   bool

	// CoverPhotoID is assigned to the first member when unset and
	// reassigned when the cover photo is removed from the collection.
	CoverPhotoID string

	// Denormalized counters, mutated only through the reconciler.
	ArtworkCount int64
	ViewsCount   int64
	LikesCount   int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CollectionPhoto is a toggle-kind membership event: one row per
// (collection, photo) pair, ordered by Position within the collection.
type CollectionPhoto struct {
	ID           string
	CollectionID string
	PhotoID      string
	Position     int
	CreatedAt    time.Time
}
