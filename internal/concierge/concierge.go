// Package concierge produces the conversational text around a match: the
// explanation of why books were picked, parent-facing book summaries and
// short chat replies. Every operation degrades to a template when the
// external service is unavailable.
package concierge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"bookmatch-gateway/internal/catalog"
	"bookmatch-gateway/internal/llm"
	"bookmatch-gateway/internal/preferences"
	"bookmatch-gateway/internal/ranking"
)

const (
	explainPrompt = "You are a friendly children's librarian. Given a child's request, " +
		"the preferences extracted from it and the books picked for them, write two or " +
		"three warm sentences explaining why these books fit. Mention titles. Plain text only."

	summaryPrompt = "You write short summaries of children's books for parents. " +
		"Given a book as JSON, reply with at most three plain sentences: what the book " +
		"is about and who it suits. No spoilers, no markdown."

	chatPrompt = "You are a book concierge for kids. Reply in one or two friendly " +
		"sentences, then a line starting with 'Try:' followed by up to three short " +
		"search phrases separated by ';'."

	// SummaryMaxRunes bounds the fallback summary.
	SummaryMaxRunes = 280

	maxSuggestions = 3
)

// Explanation is the narrative accompanying a ranked result.
type Explanation struct {
	Message      string `json:"message"`
	UsedExternal bool   `json:"used_external_service"`
}

// Reply is a concierge chat answer.
type Reply struct {
	Reply            string   `json:"reply"`
	SuggestedQueries []string `json:"suggested_queries"`
	UsedExternal     bool     `json:"used_external_service"`
}

// Concierge wraps an llm.Client. A nil client or enabled=false means every
// call uses the template path.
type Concierge struct {
	client  llm.Client
	enabled bool
	logger  *zap.Logger
}

func New(client llm.Client, enabled bool, logger *zap.Logger) *Concierge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Concierge{
		client:  client,
		enabled: enabled && client != nil,
		logger:  logger.Named("concierge"),
	}
}

type explainInput struct {
	Request     string             `json:"request"`
	Preferences preferences.Record `json:"preferences"`
	Books       []explainBook      `json:"books"`
}

type explainBook struct {
	Title  string   `json:"title"`
	Author string   `json:"author,omitempty"`
	Tags   []string `json:"tags,omitempty"`
	Format string   `json:"format,omitempty"`
}

// Explain says why matches suit the request. It never fails.
func (c *Concierge) Explain(ctx context.Context, text string, prefs preferences.Record, matches []ranking.ScoredBook) Explanation {
	fallback := Explanation{Message: templateExplanation(prefs, matches)}
	if !c.enabled || len(matches) == 0 {
		return fallback
	}

	in := explainInput{Request: text, Preferences: prefs}
	for _, m := range matches {
		in.Books = append(in.Books, explainBook{Title: m.Title, Author: m.Author, Tags: m.Tags, Format: m.Format})
	}

	out, ok := c.generate(ctx, "explain", explainPrompt, in, "")
	if !ok {
		return fallback
	}
	return Explanation{Message: out, UsedExternal: true}
}

// Summarize returns a short parent-facing summary of b. modelHint may pick
// a specific model.
func (c *Concierge) Summarize(ctx context.Context, b catalog.Book, modelHint string) (string, bool) {
	if c.enabled {
		in := explainBook{Title: b.Title, Author: b.Author, Tags: b.Tags, Format: b.Format}
		payload := struct {
			explainBook
			Description string `json:"description,omitempty"`
		}{in, b.Description}
		if out, ok := c.generate(ctx, "summary", summaryPrompt, payload, modelHint); ok {
			return out, true
		}
	}
	return templateSummary(b), false
}

type chatInput struct {
	Message string   `json:"message"`
	History []string `json:"history,omitempty"`
}

// Chat answers a free-form question and proposes follow-up searches.
func (c *Concierge) Chat(ctx context.Context, message string, history []string, modelHint string) Reply {
	if c.enabled {
		if out, ok := c.generate(ctx, "chat", chatPrompt, chatInput{Message: message, History: history}, modelHint); ok {
			reply, suggestions := splitSuggestions(out)
			return Reply{Reply: reply, SuggestedQueries: suggestions, UsedExternal: true}
		}
	}
	return templateReply(message)
}

func (c *Concierge) generate(ctx context.Context, op, system string, input any, model string) (string, bool) {
	raw, err := json.Marshal(input)
	if err != nil {
		c.logger.Warn("encode concierge input", zap.String("op", op), zap.Error(err))
		return "", false
	}

	resp, err := c.client.Generate(ctx, &llm.GenerateRequest{
		System: system,
		Input:  string(raw),
		Model:  model,
	})
	if err != nil {
		c.logger.Warn("concierge call failed, using template",
			zap.String("op", op),
			zap.String("kind", string(llm.KindOf(err))),
			zap.Error(err),
		)
		return "", false
	}

	out := strings.TrimSpace(preferences.StripCodeFence(resp.Text))
	if out == "" {
		c.logger.Warn("concierge call returned empty text", zap.String("op", op), zap.String("model", resp.Model))
		return "", false
	}
	return out, true
}

func templateExplanation(prefs preferences.Record, matches []ranking.ScoredBook) string {
	if len(matches) == 0 {
		return "We couldn't find a book on the shelf that fits yet. Try different words or fewer details."
	}

	var wants []string
	if prefs.Age != nil {
		wants = append(wants, fmt.Sprintf("age %d", *prefs.Age))
	}
	if len(prefs.Tags) > 0 {
		wants = append(wants, strings.Join(prefs.Tags, ", "))
	}
	if prefs.Format != "" && prefs.Format != preferences.FormatAny {
		wants = append(wants, prefs.Format+" books")
	}
	if prefs.Language != "" {
		wants = append(wants, "in "+prefs.Language)
	}

	titles := make([]string, 0, len(matches))
	for _, m := range matches {
		titles = append(titles, m.Title)
	}

	msg := "Here are our top picks: " + strings.Join(titles, "; ") + "."
	if len(wants) > 0 {
		msg = "Looking for " + strings.Join(wants, ", ") + ". " + msg
	}
	return msg
}

func templateSummary(b catalog.Book) string {
	desc := strings.Join(strings.Fields(b.Description), " ")
	if desc == "" {
		if b.Author != "" {
			return fmt.Sprintf("%s by %s.", b.Title, b.Author)
		}
		return b.Title + "."
	}
	if utf8.RuneCountInString(desc) <= SummaryMaxRunes {
		return desc
	}
	runes := []rune(desc)[:SummaryMaxRunes]
	cut := string(runes)
	if i := strings.LastIndexByte(cut, ' '); i > SummaryMaxRunes/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:.") + "..."
}

func templateReply(message string) Reply {
	rec := preferences.Fallback(message, preferences.Meta{})
	suggestions := []string{}
	for _, tag := range rec.Tags {
		if len(suggestions) == maxSuggestions {
			break
		}
		suggestions = append(suggestions, tag+" books")
	}
	if len(suggestions) == 0 {
		suggestions = append(suggestions, "funny picture books", "adventure chapter books")
	}
	return Reply{
		Reply:            "Tell me the reader's age and what they love, and I'll find a book on our shelves.",
		SuggestedQueries: suggestions,
	}
}

// splitSuggestions separates the trailing "Try:" line from a chat answer.
func splitSuggestions(out string) (string, []string) {
	suggestions := []string{}
	lines := strings.Split(out, "\n")
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		rest, found := strings.CutPrefix(trimmed, "Try:")
		if !found {
			kept = append(kept, line)
			continue
		}
		for _, s := range strings.Split(rest, ";") {
			if s = strings.TrimSpace(s); s != "" && len(suggestions) < maxSuggestions {
				suggestions = append(suggestions, s)
			}
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n")), suggestions
}
