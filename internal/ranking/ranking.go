// Package ranking scores candidate books against a preference record.
package ranking

import (
	"sort"
	"strings"
	"unicode/utf8"

	"bookmatch-gateway/internal/catalog"
	"bookmatch-gateway/internal/preferences"
)

// Signal weights.
const (
	AgeInRange     = 3.0
	AgeOutOfRange  = -1.0
	LanguageMatch  = 2.0
	FormatMatch    = 2.0
	TagOverlap     = 1.5 // per shared tag
	TextHit        = 0.5 // per distinct needle found in title/description
	minNeedleRunes = 3
)

// DefaultTopN is how many ranked books callers hand to families.
const DefaultTopN = 5

// Breakdown is the contribution of each signal to a score.
type Breakdown struct {
	Age      float64 `json:"age"`
	Language float64 `json:"language"`
	Format   float64 `json:"format"`
	Tags     float64 `json:"tags"`
	Text     float64 `json:"text"`
}

// Total sums the signals.
func (b Breakdown) Total() float64 {
	return b.Age + b.Language + b.Format + b.Tags + b.Text
}

// ScoredBook is a book with its score for one ranking call.
type ScoredBook struct {
	catalog.Book
	Score     float64   `json:"score"`
	Breakdown Breakdown `json:"breakdown"`
}

// Rank scores every book and sorts by score descending. Books with equal
// scores keep their input order. Nothing is dropped; use Top to truncate.
func Rank(books []catalog.Book, prefs preferences.Record, query string) []ScoredBook {
	needles := needleSet(prefs.Keywords, query)
	tags := lowerSet(prefs.Tags)

	out := make([]ScoredBook, 0, len(books))
	for _, b := range books {
		bd := score(b, prefs, tags, needles)
		out = append(out, ScoredBook{Book: b, Score: bd.Total(), Breakdown: bd})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// Score returns the per-signal breakdown for one book.
func Score(b catalog.Book, prefs preferences.Record, query string) Breakdown {
	return score(b, prefs, lowerSet(prefs.Tags), needleSet(prefs.Keywords, query))
}

// Top returns at most n leading entries of scored.
func Top(scored []ScoredBook, n int) []ScoredBook {
	if n < 0 {
		n = 0
	}
	if len(scored) > n {
		return scored[:n]
	}
	return scored
}

func score(b catalog.Book, prefs preferences.Record, tags map[string]struct{}, needles []string) Breakdown {
	var bd Breakdown

	if prefs.Age != nil && b.AgeMin != nil && b.AgeMax != nil {
		age := *prefs.Age
		if *b.AgeMin <= age && age <= *b.AgeMax {
			bd.Age = AgeInRange
		} else {
			bd.Age = AgeOutOfRange
		}
	}

	if prefs.Language != "" && b.Language != "" && strings.EqualFold(prefs.Language, b.Language) {
		bd.Language = LanguageMatch
	}

	if prefs.Format != "" && !strings.EqualFold(prefs.Format, preferences.FormatAny) &&
		b.Format != "" && strings.EqualFold(prefs.Format, b.Format) {
		bd.Format = FormatMatch
	}

	if len(tags) > 0 {
		overlap := 0
		for t := range lowerSet(b.Tags) {
			if _, ok := tags[t]; ok {
				overlap++
			}
		}
		bd.Tags = TagOverlap * float64(overlap)
	}

	if len(needles) > 0 {
		haystack := strings.ToLower(b.Title + " " + b.Description)
		for _, n := range needles {
			if strings.Contains(haystack, n) {
				bd.Text += TextHit
			}
		}
	}

	return bd
}

// needleSet merges keywords and whitespace-split query tokens, lowercased
// and deduplicated, keeping only tokens of at least minNeedleRunes.
func needleSet(keywords []string, query string) []string {
	joined := strings.ToLower(strings.Join(keywords, " ") + " " + query)

	seen := make(map[string]struct{})
	var out []string
	for _, tok := range strings.Fields(joined) {
		if utf8.RuneCountInString(tok) < minNeedleRunes {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

func lowerSet(in []string) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for _, s := range in {
		out[strings.ToLower(s)] = struct{}{}
	}
	return out
}
