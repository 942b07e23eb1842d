package models

import "time"

// Comment is an append-kind event against a photo and, at the same time, an
// aggregate root of its own (it carries a likes counter). Rows are never
// toggled; the text may be edited later and visibility soft-flagged.
type Comment struct {
	ID       string
	UserID   string
	PhotoID  string
	ParentID string
	Text     string

	LikesCount int64
	IsPublic   bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
