package handlers

import (
	"context"

	"bookmatch-gateway/internal/catalog"
	"bookmatch-gateway/internal/concierge"
	"bookmatch-gateway/internal/preferences"
	"bookmatch-gateway/internal/ranking"
)

// Extractor turns free text into preferences. *preferences.Extractor
// satisfies it.
type Extractor interface {
	Extract(ctx context.Context, text string, meta preferences.Meta, modelHint string) preferences.Result
	Enabled() bool
}

// Concierge writes the conversational text. *concierge.Concierge satisfies it.
type Concierge interface {
	Explain(ctx context.Context, text string, prefs preferences.Record, matches []ranking.ScoredBook) concierge.Explanation
	Summarize(ctx context.Context, b catalog.Book, modelHint string) (string, bool)
	Chat(ctx context.Context, message string, history []string, modelHint string) concierge.Reply
}

// BookLookup searches an external book catalog. *googlebooks.Client
// satisfies it.
type BookLookup interface {
	Search(ctx context.Context, query string, maxResults int, language string) ([]catalog.Book, error)
}
