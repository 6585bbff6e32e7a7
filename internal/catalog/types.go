// Package catalog holds books, their inventory and the requests families
// submit. The Store here is in-memory; a document store can implement the
// same interface.
package catalog

import (
	"context"
	"errors"
	"time"

	"bookmatch-gateway/internal/preferences"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidStatus = errors.New("invalid status")
)

// Book is a catalog entry. Only the descriptive fields matter for ranking.
type Book struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Author       string   `json:"author"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags"`
	AgeMin       *int     `json:"age_min"`
	AgeMax       *int     `json:"age_max"`
	ReadingLevel string   `json:"reading_level,omitempty"`
	Language     string   `json:"language"`
	Format       string   `json:"format"`
	CoverURL     string   `json:"cover_url,omitempty"`
	ISBN         string   `json:"isbn,omitempty"`
	Source       string   `json:"source,omitempty"`
	SourceID     string   `json:"source_id,omitempty"`
}

// InventoryItem tracks copies of one book at one location.
type InventoryItem struct {
	BookID       string    `json:"book_id"`
	LocationID   string    `json:"location_id"`
	QtyAvailable int       `json:"qty_available"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Request statuses, in fulfilment order.
const (
	StatusNew         = "new"
	StatusApproved    = "approved"
	StatusPicked      = "picked"
	StatusPacked      = "packed"
	StatusDistributed = "distributed"
)

// ValidStatus reports whether s is a known request status.
func ValidStatus(s string) bool {
	switch s {
	case StatusNew, StatusApproved, StatusPicked, StatusPacked, StatusDistributed:
		return true
	}
	return false
}

// Match is one ranked book attached to a request.
type Match struct {
	BookID string  `json:"book_id"`
	Score  float64 `json:"score"`
}

// Request is a family's submitted request and what it was matched to.
type Request struct {
	ID                string             `json:"id"`
	CreatedAt         time.Time          `json:"created_at"`
	RawText           string             `json:"raw_text"`
	ParsedPreferences preferences.Record `json:"parsed_preferences"`
	Matched           []Match            `json:"matched"`
	LocationID        string             `json:"location_id"`
	Status            string             `json:"status"`
}

// Picklist is what staff print to pull a request's books from the shelves.
type Picklist struct {
	RequestID  string   `json:"request_id"`
	LocationID string   `json:"location_id"`
	Lines      []string `json:"lines"`
}

// Store is the persistence boundary used by the handlers.
type Store interface {
	UpsertBook(ctx context.Context, b Book) (Book, error)
	GetBook(ctx context.Context, id string) (Book, error)
	ListBooks(ctx context.Context) ([]Book, error)
	SetInventory(ctx context.Context, bookID, locationID string, qty int) (InventoryItem, error)
	// AvailableBooks returns books with at least one copy available, in
	// catalog insertion order.
	AvailableBooks(ctx context.Context) ([]Book, error)

	CreateRequest(ctx context.Context, r Request) (Request, error)
	GetRequest(ctx context.Context, id string) (Request, error)
	// ListRequests returns requests newest first; empty status means all.
	ListRequests(ctx context.Context, status string) ([]Request, error)
	UpdateRequestStatus(ctx context.Context, id, status string) (Request, error)
	Picklist(ctx context.Context, requestID string) (Picklist, error)
}
