// model/book.go
package model

import "time"

type Book struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	ISBN        *string   `json:"isbn,omitempty"`
	Description *string   `json:"description,omitempty"`
	CoverImage  *string   `json:"cover_image,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// BookSummary is the slim shape joined into borrow records.
type BookSummary struct {
	ID     int64   `json:"id"`
	Title  string  `json:"title"`
	Author string  `json:"author"`
	ISBN   *string `json:"isbn,omitempty"`
}

// CatalogBook is one merged-catalog entry: a book plus where copies of
// it can currently be borrowed.
type CatalogBook struct {
	ID             int64             `json:"id"`
	Title          string            `json:"title"`
	Author         string            `json:"author"`
	ISBN           *string           `json:"isbn,omitempty"`
	Description    *string           `json:"description,omitempty"`
	CoverImage     *string           `json:"cover_image,omitempty"`
	TotalAvailable int               `json:"total_available"`
	Locations      []CatalogLocation `json:"locations"`
}

type CatalogLocation struct {
	Location string         `json:"location"`
	Count    int            `json:"count"`
	Owners   []CatalogOwner `json:"owners"`
}

// CatalogOwner points at a concrete borrowable copy. Name is empty for
// admin stock.
type CatalogOwner struct {
	CopyID int64  `json:"copy_id"`
	UserID *int64 `json:"user_id,omitempty"`
	Name   string `json:"name,omitempty"`
}

// BookMeta is the result of an ISBN lookup against a third-party catalog.
type BookMeta struct {
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	ISBN        string  `json:"isbn"`
	Description string  `json:"description"`
	CoverImage  *string `json:"cover_image,omitempty"`
	Publisher   *string `json:"publisher,omitempty"`
	PublishDate *string `json:"publish_date,omitempty"`
}
