package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultLocation = "main"

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	books     map[string]Book
	order     []string // book ids in insertion order
	inventory map[string]map[string]InventoryItem
	requests  map[string]Request
	now       func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		books:     make(map[string]Book),
		inventory: make(map[string]map[string]InventoryItem),
		requests:  make(map[string]Request),
		now:       time.Now,
	}
}

// UpsertBook inserts b, or replaces the book with the same ID.
// Tags are lowercased; an empty ID gets a fresh UUID.
func (s *MemoryStore) UpsertBook(_ context.Context, b Book) (Book, error) {
	if strings.TrimSpace(b.Title) == "" {
		return Book{}, fmt.Errorf("catalog: book title is required")
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	tags := make([]string, 0, len(b.Tags))
	for _, t := range b.Tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			tags = append(tags, t)
		}
	}
	b.Tags = tags

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.books[b.ID]; !exists {
		s.order = append(s.order, b.ID)
	}
	s.books[b.ID] = b
	return b, nil
}

func (s *MemoryStore) GetBook(_ context.Context, id string) (Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.books[id]
	if !ok {
		return Book{}, fmt.Errorf("book %s: %w", id, ErrNotFound)
	}
	return b, nil
}

func (s *MemoryStore) ListBooks(_ context.Context) ([]Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Book, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.books[id])
	}
	return out, nil
}

// SetInventory records qty available copies of a book at a location.
func (s *MemoryStore) SetInventory(_ context.Context, bookID, locationID string, qty int) (InventoryItem, error) {
	if qty < 0 {
		return InventoryItem{}, fmt.Errorf("catalog: quantity must not be negative")
	}
	if locationID == "" {
		locationID = defaultLocation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[bookID]; !ok {
		return InventoryItem{}, fmt.Errorf("book %s: %w", bookID, ErrNotFound)
	}

	item := InventoryItem{
		BookID:       bookID,
		LocationID:   locationID,
		QtyAvailable: qty,
		UpdatedAt:    s.now().UTC(),
	}
	if s.inventory[bookID] == nil {
		s.inventory[bookID] = make(map[string]InventoryItem)
	}
	s.inventory[bookID][locationID] = item
	return item, nil
}

func (s *MemoryStore) AvailableBooks(_ context.Context) ([]Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Book
	for _, id := range s.order {
		for _, item := range s.inventory[id] {
			if item.QtyAvailable > 0 {
				out = append(out, s.books[id])
				break
			}
		}
	}
	return out, nil
}

// CreateRequest stores r as a new request, assigning ID, timestamp, status
// and default location.
func (s *MemoryStore) CreateRequest(_ context.Context, r Request) (Request, error) {
	r.ID = uuid.NewString()
	r.CreatedAt = s.now().UTC()
	r.Status = StatusNew
	if r.LocationID == "" {
		r.LocationID = defaultLocation
	}
	if r.Matched == nil {
		r.Matched = []Match{}
	}
	r.ParsedPreferences = r.ParsedPreferences.Normalize()

	s.mu.Lock()
	s.requests[r.ID] = r
	s.mu.Unlock()
	return r, nil
}

func (s *MemoryStore) GetRequest(_ context.Context, id string) (Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[id]
	if !ok {
		return Request{}, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	return r, nil
}

func (s *MemoryStore) ListRequests(_ context.Context, status string) ([]Request, error) {
	s.mu.RLock()
	out := make([]Request, 0, len(s.requests))
	for _, r := range s.requests {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) UpdateRequestStatus(_ context.Context, id, status string) (Request, error) {
	if !ValidStatus(status) {
		return Request{}, fmt.Errorf("status %q: %w", status, ErrInvalidStatus)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return Request{}, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	r.Status = status
	s.requests[id] = r
	return r, nil
}

// Picklist lists the matched books that are still in the catalog as
// "<title> - <author> (<format>)".
func (s *MemoryStore) Picklist(_ context.Context, requestID string) (Picklist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[requestID]
	if !ok {
		return Picklist{}, fmt.Errorf("request %s: %w", requestID, ErrNotFound)
	}

	lines := []string{}
	for _, m := range r.Matched {
		b, ok := s.books[m.BookID]
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s - %s (%s)", b.Title, b.Author, b.Format))
	}

	return Picklist{
		RequestID:  r.ID,
		LocationID: r.LocationID,
		Lines:      lines,
	}, nil
}
