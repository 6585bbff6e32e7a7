package concierge

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"bookmatch-gateway/internal/catalog"
	"bookmatch-gateway/internal/llm"
	"bookmatch-gateway/internal/preferences"
	"bookmatch-gateway/internal/ranking"
)

type fakeClient struct {
	text  string
	err   error
	calls []*llm.GenerateRequest
}

func (f *fakeClient) Generate(_ context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.GenerateResponse{Text: f.text, Model: "gemini-1.5-flash"}, nil
}

func matches(titles ...string) []ranking.ScoredBook {
	out := make([]ranking.ScoredBook, 0, len(titles))
	for _, t := range titles {
		out = append(out, ranking.ScoredBook{Book: catalog.Book{Title: t, Tags: []string{"space"}}})
	}
	return out
}

func TestExplainExternal(t *testing.T) {
	client := &fakeClient{text: "These rocket stories fit a curious 7 year old."}
	c := New(client, true, zaptest.NewLogger(t))

	age := 7
	got := c.Explain(context.Background(), "rockets please", preferences.Record{Age: &age, Tags: []string{"space"}}, matches("Moon Base"))

	assert.True(t, got.UsedExternal)
	assert.Equal(t, "These rocket stories fit a curious 7 year old.", got.Message)

	require.Len(t, client.calls, 1)
	assert.Equal(t, explainPrompt, client.calls[0].System)
	var in explainInput
	require.NoError(t, json.Unmarshal([]byte(client.calls[0].Input), &in))
	assert.Equal(t, "rockets please", in.Request)
	require.Len(t, in.Books, 1)
	assert.Equal(t, "Moon Base", in.Books[0].Title)
}

func TestExplainTemplateFallback(t *testing.T) {
	age := 7
	prefs := preferences.Record{Age: &age, Tags: []string{"space"}, Format: preferences.FormatChapter, Language: "English"}

	for name, c := range map[string]*Concierge{
		"disabled":   New(&fakeClient{text: "unused"}, false, zaptest.NewLogger(t)),
		"nil client": New(nil, true, nil),
		"error":      New(&fakeClient{err: &llm.CallError{Kind: llm.KindUpstream}}, true, zaptest.NewLogger(t)),
		"empty":      New(&fakeClient{text: "  "}, true, zaptest.NewLogger(t)),
	} {
		t.Run(name, func(t *testing.T) {
			got := c.Explain(context.Background(), "x", prefs, matches("Moon Base", "Star Cats"))
			assert.False(t, got.UsedExternal)
			assert.Equal(t,
				"Looking for age 7, space, chapter books, in English. Here are our top picks: Moon Base; Star Cats.",
				got.Message)
		})
	}
}

func TestExplainNoMatchesSkipsClient(t *testing.T) {
	client := &fakeClient{text: "unused"}
	c := New(client, true, zaptest.NewLogger(t))

	got := c.Explain(context.Background(), "x", preferences.Record{}, nil)
	assert.Empty(t, client.calls)
	assert.False(t, got.UsedExternal)
	assert.Contains(t, got.Message, "couldn't find")
}

func TestSummarize(t *testing.T) {
	b := catalog.Book{Title: "Moon Base", Author: "R. Kid", Description: "A short tale."}

	client := &fakeClient{text: "```\nA cosy space story.\n```"}
	out, external := New(client, true, zaptest.NewLogger(t)).Summarize(context.Background(), b, "gemini-1.5-pro")
	assert.True(t, external)
	assert.Equal(t, "A cosy space story.", out)
	assert.Equal(t, "gemini-1.5-pro", client.calls[0].Model)
	assert.Contains(t, client.calls[0].Input, `"description":"A short tale."`)

	out, external = New(nil, false, nil).Summarize(context.Background(), b, "")
	assert.False(t, external)
	assert.Equal(t, "A short tale.", out)

	out, _ = New(nil, false, nil).Summarize(context.Background(), catalog.Book{Title: "Moon Base", Author: "R. Kid"}, "")
	assert.Equal(t, "Moon Base by R. Kid.", out)
}

func TestTemplateSummaryTruncates(t *testing.T) {
	long := strings.Repeat("dragons fly high ", 40)
	out := templateSummary(catalog.Book{Title: "t", Description: long})

	assert.True(t, strings.HasSuffix(out, "..."))
	assert.LessOrEqual(t, len([]rune(out)), SummaryMaxRunes+3)
	assert.False(t, strings.HasSuffix(strings.TrimSuffix(out, "..."), " "))
}

func TestChat(t *testing.T) {
	client := &fakeClient{text: "Dinosaurs are a great pick!\nTry: dinosaur picture books; fossil facts; t-rex; volcanoes"}
	got := New(client, true, zaptest.NewLogger(t)).Chat(context.Background(), "my kid loves dinosaurs", []string{"hi"}, "")

	assert.True(t, got.UsedExternal)
	assert.Equal(t, "Dinosaurs are a great pick!", got.Reply)
	assert.Equal(t, []string{"dinosaur picture books", "fossil facts", "t-rex"}, got.SuggestedQueries)

	var in chatInput
	require.NoError(t, json.Unmarshal([]byte(client.calls[0].Input), &in))
	assert.Equal(t, []string{"hi"}, in.History)
}

func TestChatFallback(t *testing.T) {
	got := New(nil, false, nil).Chat(context.Background(), "something about space and dragons", nil, "")
	assert.False(t, got.UsedExternal)
	assert.NotEmpty(t, got.Reply)
	assert.Equal(t, []string{"fantasy books", "space books"}, got.SuggestedQueries)

	got = New(nil, false, nil).Chat(context.Background(), "hello", nil, "")
	assert.Len(t, got.SuggestedQueries, 2)
}
