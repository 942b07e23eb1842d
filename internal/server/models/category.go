package models

import "time"

type Category struct {
	ID          string
	Name        string
	Slug        string
	Description string

	// PhotosCount is recounted from photo_categories rows by drift repair;
	// categorization itself is written by the external CRUD layer.
	PhotosCount int64

	CreatedAt time.Time
	UpdatedAt time.Time
}
