package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookmatch-gateway/internal/preferences"
)

func seed(t *testing.T, s *MemoryStore, titles ...string) []Book {
	t.Helper()
	var out []Book
	for _, title := range titles {
		b, err := s.UpsertBook(context.Background(), Book{
			Title:  title,
			Author: "Author of " + title,
			Format: "chapter",
			Tags:   []string{" Space ", "SCIENCE", ""},
		})
		require.NoError(t, err)
		out = append(out, b)
	}
	return out
}

func TestUpsertBook(t *testing.T) {
	s := NewMemoryStore()
	books := seed(t, s, "Moon Base")

	require.NotEmpty(t, books[0].ID)
	assert.Equal(t, []string{"space", "science"}, books[0].Tags)

	updated := books[0]
	updated.Title = "Moon Base Two"
	_, err := s.UpsertBook(context.Background(), updated)
	require.NoError(t, err)

	all, err := s.ListBooks(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Moon Base Two", all[0].Title)

	_, err = s.UpsertBook(context.Background(), Book{})
	assert.Error(t, err)
}

func TestAvailableBooksKeepsCatalogOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	books := seed(t, s, "A", "B", "C", "D")

	_, err := s.SetInventory(ctx, books[2].ID, "", 2)
	require.NoError(t, err)
	_, err = s.SetInventory(ctx, books[0].ID, "north", 1)
	require.NoError(t, err)
	_, err = s.SetInventory(ctx, books[1].ID, "", 0)
	require.NoError(t, err)

	got, err := s.AvailableBooks(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Title)
	assert.Equal(t, "C", got[1].Title)

	_, err = s.SetInventory(ctx, "missing", "", 1)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = s.SetInventory(ctx, books[3].ID, "", -1)
	assert.Error(t, err)
}

func TestRequestLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	clock := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return clock }

	books := seed(t, s, "Rocket Kids", "Space Cats")

	first, err := s.CreateRequest(ctx, Request{
		RawText: "space books",
		Matched: []Match{{BookID: books[1].ID, Score: 4.5}, {BookID: "gone", Score: 1}, {BookID: books[0].ID, Score: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusNew, first.Status)
	assert.Equal(t, "main", first.LocationID)
	assert.NotNil(t, first.ParsedPreferences.Tags)

	clock = clock.Add(time.Minute)
	second, err := s.CreateRequest(ctx, Request{
		RawText:           "dragons",
		LocationID:        "east",
		ParsedPreferences: preferences.Record{Tags: []string{"Fantasy"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"fantasy"}, second.ParsedPreferences.Tags)

	list, err := s.ListRequests(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")

	_, err = s.UpdateRequestStatus(ctx, first.ID, "shipped")
	assert.True(t, errors.Is(err, ErrInvalidStatus))
	_, err = s.UpdateRequestStatus(ctx, "nope", StatusApproved)
	assert.True(t, errors.Is(err, ErrNotFound))

	updated, err := s.UpdateRequestStatus(ctx, first.ID, StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, updated.Status)

	approved, err := s.ListRequests(ctx, StatusApproved)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, first.ID, approved[0].ID)

	pl, err := s.Picklist(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "main", pl.LocationID)
	assert.Equal(t, []string{
		"Space Cats - Author of Space Cats (chapter)",
		"Rocket Kids - Author of Rocket Kids (chapter)",
	}, pl.Lines)

	_, err = s.Picklist(ctx, "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}
