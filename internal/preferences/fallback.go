package preferences

import (
	"strconv"
	"strings"
)

// Fallback extracts preferences with the static rule tables. It is pure:
// the same text and meta always give the same Record.
func Fallback(text string, meta Meta) Record {
	lowered := strings.ToLower(text)
	rec := New(meta)

	for _, r := range keywordTags {
		if strings.Contains(lowered, r.trigger) {
			rec.Tags = append(rec.Tags, r.value)
			rec.Keywords = append(rec.Keywords, r.trigger)
		}
	}

	for _, r := range formatWords {
		if strings.Contains(lowered, r.trigger) {
			rec.Format = r.value
		}
	}

	for _, r := range languageWords {
		if strings.Contains(lowered, r.trigger) {
			rec.Language = r.value
		}
	}

	if m := ageRe.FindStringSubmatch(lowered); m != nil {
		if age, err := strconv.Atoi(m[1]); err == nil {
			rec.Age = &age
		}
	}

	rec.Tags = normalizeSet(rec.Tags)
	rec.Keywords = normalizeSet(rec.Keywords)
	return rec
}
