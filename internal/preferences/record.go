// Package preferences turns free-text book requests into structured
// preference records, either through the external text-understanding
// service or through deterministic keyword rules.
package preferences

import (
	"encoding/json"
	"sort"
	"strings"
)

// Format hints understood by the ranker.
const (
	FormatPicture = "picture"
	FormatChapter = "chapter"
	FormatGraphic = "graphic"
	FormatAny     = "any"
)

// Record is the structured result of extraction.
//
// Tags and Keywords are never nil: they are lowercase, deduplicated and
// sorted. Language and Format are empty when unconstrained.
type Record struct {
	Age      *int     `json:"age"`
	Language string   `json:"language,omitempty"`
	Format   string   `json:"format,omitempty"`
	Tags     []string `json:"tags"`
	Keywords []string `json:"keywords"`

	Extras
}

// Extras are the optional fields of the extended extraction prompt. They are
// passed through as returned, without validation.
type Extras struct {
	Tone   json.RawMessage `json:"tone,omitempty"`
	Themes json.RawMessage `json:"themes,omitempty"`
	Series json.RawMessage `json:"series,omitempty"`
	Length json.RawMessage `json:"length,omitempty"`
}

// Meta is what the caller already knows about the request.
type Meta struct {
	Age      *int   `json:"age"`
	Language string `json:"language,omitempty"`
	Format   string `json:"format,omitempty"`
}

// Result is the outcome of Extractor.Extract.
type Result struct {
	Preferences  Record `json:"preferences"`
	UsedExternal bool   `json:"used_external_service"`
	// ExternalError says why the external service was not used; empty when it was.
	ExternalError string `json:"external_error,omitempty"`
}

// New returns an empty record seeded from meta.
func New(meta Meta) Record {
	r := Record{
		Language: strings.TrimSpace(meta.Language),
		Format:   strings.TrimSpace(meta.Format),
		Tags:     []string{},
		Keywords: []string{},
	}
	if meta.Age != nil && *meta.Age >= 0 {
		age := *meta.Age
		r.Age = &age
	}
	return r
}

// Normalize restores the Record invariants after a Record was built or
// decoded elsewhere.
func (r Record) Normalize() Record {
	r.Tags = normalizeSet(r.Tags)
	r.Keywords = normalizeSet(r.Keywords)
	r.Language = strings.TrimSpace(r.Language)
	r.Format = normalizeFormat(r.Format)
	if r.Age != nil && *r.Age < 0 {
		r.Age = nil
	}
	return r
}

// IsEmpty reports whether the record constrains nothing.
func (r Record) IsEmpty() bool {
	return r.Age == nil && r.Language == "" && (r.Format == "" || r.Format == FormatAny) &&
		len(r.Tags) == 0 && len(r.Keywords) == 0
}

// Int returns a pointer to v, for building records and metadata.
func Int(v int) *int {
	return &v
}

func normalizeSet(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// normalizeFormat lowercases known format hints and drops anything else.
func normalizeFormat(f string) string {
	f = strings.ToLower(strings.TrimSpace(f))
	switch f {
	case FormatPicture, FormatChapter, FormatGraphic, FormatAny:
		return f
	default:
		return ""
	}
}
