package preferences

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// systemPrompt is the fixed instruction sent with every extraction call.
const systemPrompt = "You are a JSON-only parser for kid book requests. " +
	"Return ONLY JSON with keys: age (number or null), language (string or null), " +
	"format (picture|chapter|graphic|any|null), tags (array of strings), keywords (array of strings). " +
	"You may also include tone (string), themes (array of strings), series (string) and length (string)."

// ErrMalformed marks an external response that could not be turned into a Record.
var ErrMalformed = errors.New("malformed extraction response")

var requiredKeys = []string{"age", "language", "format", "tags", "keywords"}

var (
	fenceOpen  = regexp.MustCompile("^```(?:json)?")
	fenceClose = regexp.MustCompile("```$")
)

// StripCodeFence removes a surrounding Markdown code fence, if any.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimSpace(fenceOpen.ReplaceAllString(text, ""))
	return strings.TrimSpace(fenceClose.ReplaceAllString(text, ""))
}

// ParseExternal decodes the service's text output into a Record. Every key
// in requiredKeys must be present (null is allowed for age, language and
// format); anything else is ErrMalformed.
func ParseExternal(text string) (Record, error) {
	body := StripCodeFence(text)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for _, k := range requiredKeys {
		if _, ok := fields[k]; !ok {
			return Record{}, fmt.Errorf("%w: missing key %q", ErrMalformed, k)
		}
	}

	rec := Record{}

	age, err := decodeAge(fields["age"])
	if err != nil {
		return Record{}, err
	}
	rec.Age = age

	if rec.Language, err = decodeOptionalString("language", fields["language"]); err != nil {
		return Record{}, err
	}
	if rec.Format, err = decodeOptionalString("format", fields["format"]); err != nil {
		return Record{}, err
	}
	if rec.Tags, err = decodeStrings("tags", fields["tags"]); err != nil {
		return Record{}, err
	}
	if rec.Keywords, err = decodeStrings("keywords", fields["keywords"]); err != nil {
		return Record{}, err
	}

	rec.Tone = fields["tone"]
	rec.Themes = fields["themes"]
	rec.Series = fields["series"]
	rec.Length = fields["length"]

	return rec.Normalize(), nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func decodeAge(raw json.RawMessage) (*int, error) {
	if isNull(raw) {
		return nil, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: age: %v", ErrMalformed, err)
	}
	if f < 0 || math.IsNaN(f) || f > 150 {
		return nil, nil
	}
	age := int(f)
	return &age, nil
}

func decodeOptionalString(name string, raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrMalformed, name, err)
	}
	return s, nil
}

func decodeStrings(name string, raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, name, err)
	}
	return out, nil
}
