package models

import "time"

type User struct {
	ID       string
	UserName string
	FullName string

	// Denormalized counters, mutated only through the reconciler.
	FollowersCount int64
	FollowingCount int64
	PhotosCount    int64

	CreatedAt time.Time
	UpdatedAt time.Time
}
