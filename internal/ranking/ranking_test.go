package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookmatch-gateway/internal/catalog"
	"bookmatch-gateway/internal/preferences"
)

func age(v int) *int { return &v }

func book(id string, lo, hi *int, tags []string, format, lang string) catalog.Book {
	return catalog.Book{
		ID:       id,
		Title:    "Book " + id,
		AgeMin:   lo,
		AgeMax:   hi,
		Tags:     tags,
		Format:   format,
		Language: lang,
	}
}

func prefs(p preferences.Record) preferences.Record {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Keywords == nil {
		p.Keywords = []string{}
	}
	return p
}

func TestAgeSignal(t *testing.T) {
	b := book("a", age(6), age(9), nil, "", "")

	cases := []struct {
		name string
		age  *int
		want float64
	}{
		{"in range", age(7), 3.0},
		{"lower bound", age(6), 3.0},
		{"upper bound", age(9), 3.0},
		{"above", age(10), -1.0},
		{"below", age(5), -1.0},
		{"absent", nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(b, prefs(preferences.Record{Age: tc.age}), "")
			assert.Equal(t, tc.want, got.Age)
		})
	}

	halfOpen := book("b", age(6), nil, nil, "", "")
	assert.Zero(t, Score(halfOpen, prefs(preferences.Record{Age: age(7)}), "").Age)
}

func TestLanguageAndFormatSignals(t *testing.T) {
	b := book("a", nil, nil, nil, "Chapter", "english")

	got := Score(b, prefs(preferences.Record{Language: "English", Format: "chapter"}), "")
	assert.Equal(t, 2.0, got.Language)
	assert.Equal(t, 2.0, got.Format)

	got = Score(b, prefs(preferences.Record{Language: "Spanish", Format: "any"}), "")
	assert.Zero(t, got.Language, "mismatch is not penalized")
	assert.Zero(t, got.Format, "any never matches")

	got = Score(book("c", nil, nil, nil, "", ""), prefs(preferences.Record{Language: "English", Format: "chapter"}), "")
	assert.Zero(t, got.Total())
}

func TestTagOverlap(t *testing.T) {
	b := book("a", nil, nil, []string{"space", "fantasy"}, "", "")
	got := Score(b, prefs(preferences.Record{Tags: []string{"space", "mystery"}}), "")
	assert.Equal(t, 1.5, got.Tags)

	b = book("b", nil, nil, []string{"Space", "MYSTERY", "space"}, "", "")
	got = Score(b, prefs(preferences.Record{Tags: []string{"space", "mystery"}}), "")
	assert.Equal(t, 3.0, got.Tags, "book tags compared as a lowercase set")

	b = book("c", nil, nil, nil, "", "")
	assert.Zero(t, Score(b, prefs(preferences.Record{Tags: []string{"space"}}), "").Tags)
}

func TestTextSignal(t *testing.T) {
	b := catalog.Book{
		Title:       "Rocket Dragons",
		Description: "A rocket full of dragons travels to the moon.",
	}

	// "rocket" appears twice in the haystack and in both keywords and query,
	// but counts once. "to" is too short. "moon" hits.
	got := Score(b, prefs(preferences.Record{Keywords: []string{"rocket"}}), "Rocket to MOON zebra")
	assert.Equal(t, 1.0, got.Text)

	// Substring matching: "cat" hits inside "catalog".
	b = catalog.Book{Title: "The Catalog"}
	assert.Equal(t, 0.5, Score(b, prefs(preferences.Record{}), "cat").Text)
}

func TestRankEndToEnd(t *testing.T) {
	a := book("A", age(6), age(9), []string{"dragons", "fantasy"}, "picture", "English")
	b := book("B", age(8), age(11), []string{"mystery"}, "chapter", "English")
	c := book("C", age(7), age(10), []string{"space", "science"}, "chapter", "English")

	p := preferences.Record{
		Age:      age(7),
		Language: "English",
		Format:   "chapter",
		Tags:     []string{"space"},
		Keywords: []string{"rocket"},
	}

	ranked := Rank([]catalog.Book{a, b, c}, p, "")
	require.Len(t, ranked, 3)

	assert.Equal(t, "C", ranked[0].ID)
	assert.Equal(t, 8.5, ranked[0].Score)
	assert.Equal(t, "A", ranked[1].ID)
	assert.Equal(t, 5.0, ranked[1].Score)
	assert.Equal(t, "B", ranked[2].ID)
	assert.Equal(t, 3.0, ranked[2].Score)

	assert.Equal(t, Breakdown{Age: 3, Language: 2, Format: 2, Tags: 1.5}, ranked[0].Breakdown)
}

func TestRankStableAndDeterministic(t *testing.T) {
	var books []catalog.Book
	for _, id := range []string{"1", "2", "3", "4", "5", "6"} {
		books = append(books, book(id, nil, nil, nil, "", ""))
	}
	books[3].Tags = []string{"space"}

	p := prefs(preferences.Record{Tags: []string{"space"}})

	first := Rank(books, p, "")
	second := Rank(books, p, "")
	assert.Equal(t, first, second)

	var order []string
	for _, sb := range first {
		order = append(order, sb.ID)
	}
	assert.Equal(t, []string{"4", "1", "2", "3", "5", "6"}, order)
}

func TestRankNegativeScore(t *testing.T) {
	ranked := Rank([]catalog.Book{
		book("young", age(2), age(4), nil, "", ""),
		book("unknown", nil, nil, nil, "", ""),
	}, prefs(preferences.Record{Age: age(10)}), "")

	require.Len(t, ranked, 2)
	assert.Equal(t, "unknown", ranked[0].ID)
	assert.Equal(t, -1.0, ranked[1].Score)
}

func TestRankEmpty(t *testing.T) {
	assert.Empty(t, Rank(nil, prefs(preferences.Record{}), "anything"))
	assert.NotNil(t, Rank(nil, prefs(preferences.Record{}), ""))
}

func TestTop(t *testing.T) {
	ranked := make([]ScoredBook, 7)
	assert.Len(t, Top(ranked, DefaultTopN), 5)
	assert.Len(t, Top(ranked[:3], DefaultTopN), 3)
	assert.Empty(t, Top(ranked, -1))
}
