package models

import "time"

// Photo is the central aggregate root. Image bytes live in object storage;
// the row only carries the opaque storage key and processing metadata
// reported by the (external) image pipeline.
type Photo struct {
	ID          string
	UserID      string
	Title       string
	Description string

	// StorageKey is the object-storage key of the original asset. Processed
	// variants are stored next to it (see services.variantStorageKey).
	StorageKey string
	Width      int
	Height     int
	Format     string

	// Denormalized counters, mutated only through the reconciler.
	LikesCount     int64
	ViewsCount     int64
	DownloadsCount int64
	CommentsCount  int64

	IsPublic   bool
	IsFeatured bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DownloadVariant names a processed asset size. The image pipeline writes one
// object per variant; the core only resolves URLs for them.
type DownloadVariant string

const (
	VariantOriginal DownloadVariant = "original"
	VariantLarge    DownloadVariant = "large"
	VariantMedium   DownloadVariant = "medium"
	VariantSmall    DownloadVariant = "small"
)

// ValidVariant reports whether v is a known download variant.
func ValidVariant(v DownloadVariant) bool {
	switch v {
	case VariantOriginal, VariantLarge, VariantMedium, VariantSmall:
		return true
	}
	return false
}
