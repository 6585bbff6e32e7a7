package googlebooks

import (
	"strings"

	"bookmatch-gateway/internal/catalog"
	"bookmatch-gateway/internal/preferences"
)

type volumesResponse struct {
	TotalItems int      `json:"totalItems"`
	Items      []volume `json:"items"`
}

type volume struct {
	ID         string     `json:"id"`
	VolumeInfo volumeInfo `json:"volumeInfo"`
}

type volumeInfo struct {
	Title       string   `json:"title"`
	Authors     []string `json:"authors"`
	Description string   `json:"description"`
	Categories  []string `json:"categories"`
	Language    string   `json:"language"`
	PageCount   int      `json:"pageCount"`
	ImageLinks  struct {
		Thumbnail      string `json:"thumbnail"`
		SmallThumbnail string `json:"smallThumbnail"`
	} `json:"imageLinks"`
	IndustryIdentifiers []struct {
		Type       string `json:"type"`
		Identifier string `json:"identifier"`
	} `json:"industryIdentifiers"`
}

// formatHint guesses a format from page count: short books are picture
// books, mid-length ones graphic, everything else (and unknown) chapter.
func formatHint(pages int) string {
	switch {
	case pages > 0 && pages <= pictureMaxPages:
		return preferences.FormatPicture
	case pages > 0 && pages <= graphicMaxPages:
		return preferences.FormatGraphic
	default:
		return preferences.FormatChapter
	}
}

func (v volume) toBook() catalog.Book {
	info := v.VolumeInfo

	b := catalog.Book{
		Title:        info.Title,
		Author:       strings.Join(info.Authors, ", "),
		Description:  info.Description,
		Tags:         []string{},
		ReadingLevel: "unknown",
		Language:     info.Language,
		Format:       formatHint(info.PageCount),
		CoverURL:     info.ImageLinks.Thumbnail,
		Source:       "google",
		SourceID:     v.ID,
	}
	if b.Title == "" {
		b.Title = "Unknown Title"
	}
	if b.Author == "" {
		b.Author = "Unknown Author"
	}
	if b.Language == "" {
		b.Language = "English"
	}
	if b.CoverURL == "" {
		b.CoverURL = info.ImageLinks.SmallThumbnail
	}
	for _, c := range info.Categories {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			b.Tags = append(b.Tags, c)
		}
	}
	for _, id := range info.IndustryIdentifiers {
		if (id.Type == "ISBN_13" || id.Type == "ISBN_10") && id.Identifier != "" {
			b.ISBN = id.Identifier
			break
		}
	}
	return b
}
