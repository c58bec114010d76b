package model

import "time"

// GalleryImage is one photo in the memorial gallery. Lists are sorted by
// DisplayOrder ascending, then CreatedAt, then ID.
type GalleryImage struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Caption      string    `json:"caption"`
	Featured     bool      `json:"featured"`
	DisplayOrder int       `json:"displayOrder"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
