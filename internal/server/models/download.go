package models

import "time"

// Download is an append-kind event: two downloads by the same actor count
// twice. ActorID is empty for anonymous downloads.
type Download struct {
	ID      string
	ActorID string
	PhotoID string
	Variant DownloadVariant

	// Client metadata recorded for analytics; never part of any counter.
	IPAddress string
	UserAgent string

	CreatedAt time.Time
}
