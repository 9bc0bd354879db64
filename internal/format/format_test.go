package format

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsearch/pkg/models"
)

func result(title, heading, url string, score float64, text string) models.SearchResult {
	md := models.ChunkMetadata{SourceFile: title + ".md", Title: title, URL: url}
	if heading != "" {
		md.Heading = heading
		md.HeadingID = strings.ToLower(heading)
	}
	return models.SearchResult{
		Chunk: models.DocumentChunk{ID: title, Text: text, Metadata: md},
		Score: score,
	}
}

func TestFormatAnswer_Empty(t *testing.T) {
	a := FormatAnswer("anything at all", nil)
	assert.Equal(t, NotFoundMessage, a.Answer)
	assert.Empty(t, a.Sources)
	assert.NotNil(t, a.Sources)
}

func TestFormatAnswer_IntentFraming(t *testing.T) {
	results := []models.SearchResult{
		result("Guide", "Install", "/guide", 0.5, "run the installer"),
		result("Guide", "Config", "/guide", 0.5, "edit the config"),
	}

	tests := []struct {
		query string
		want  string
	}{
		{"how to install the thing", "Here's how the documentation covers it:"},
		{"How do I configure logging", "Here's how the documentation covers it:"},
		{"how can I get started", "Here's how the documentation covers it:"},
		{"what is a vector database", "Here's what the documentation says:"},
		{"What are embeddings", "Here's what the documentation says:"},
		{"why does indexing take long", "Here's the reasoning from the documentation:"},
		{"vector database", "Found 2 relevant sections:"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			a := FormatAnswer(tt.query, results)
			assert.True(t, strings.HasPrefix(a.Answer, tt.want),
				"answer starts with %q", a.Answer[:min(len(a.Answer), 60)])
		})
	}
}

func TestFormatAnswer_SingleResultFraming(t *testing.T) {
	a := FormatAnswer("logging", []models.SearchResult{
		result("Guide", "Logs", "/guide", 0.5, "log text"),
	})
	assert.True(t, strings.HasPrefix(a.Answer, "Found one relevant section:"))
}

func TestFormatAnswer_FramingDoesNotAffectOrder(t *testing.T) {
	results := []models.SearchResult{
		result("First", "A", "/a", 0.9, "first text"),
		result("Second", "B", "/b", 0.8, "second text"),
	}
	how := FormatAnswer("how to do it", results)
	generic := FormatAnswer("do it", results)

	assert.Less(t, strings.Index(how.Answer, "### A"), strings.Index(how.Answer, "### B"))
	assert.Less(t, strings.Index(generic.Answer, "### A"), strings.Index(generic.Answer, "### B"))
}

func TestFormatAnswer_TopThreeAndFooter(t *testing.T) {
	var results []models.SearchResult
	for i := 0; i < 5; i++ {
		results = append(results, result(
			fmt.Sprintf("Doc%d", i), fmt.Sprintf("H%d", i), fmt.Sprintf("/d%d", i), 0.5, "body"))
	}

	a := FormatAnswer("query words", results)
	assert.Contains(t, a.Answer, "### H0")
	assert.Contains(t, a.Answer, "### H1")
	assert.Contains(t, a.Answer, "### H2")
	assert.NotContains(t, a.Answer, "### H3")
	assert.Contains(t, a.Answer, "2 more matching sections not shown.")

	// All results still contribute sources.
	assert.Len(t, a.Sources, 5)
}

func TestFormatAnswer_HighlyRelevantAnnotation(t *testing.T) {
	a := FormatAnswer("query", []models.SearchResult{
		result("Doc", "Hot", "/d", 0.93, "hot text"),
		result("Doc", "Cold", "/d", 0.31, "cold text"),
	})
	assert.Contains(t, a.Answer, "### Hot (highly relevant)")
	assert.NotContains(t, a.Answer, "### Cold (highly relevant)")
}

func TestFormatAnswer_HeadingFallsBackToTitle(t *testing.T) {
	a := FormatAnswer("query", []models.SearchResult{
		result("Plain Title", "", "/p", 0.5, "text"),
	})
	assert.Contains(t, a.Answer, "### Plain Title")
}

func TestFormatAnswer_DeepLinks(t *testing.T) {
	a := FormatAnswer("query", []models.SearchResult{
		result("Doc", "Setup", "/docs/guide", 0.5, "text"),
		result("Other", "", "/docs/other", 0.5, "text"),
	})
	assert.Contains(t, a.Answer, "/docs/guide#setup")
	assert.Contains(t, a.Answer, "See: /docs/other\n")
}

func TestFormatAnswer_SourceDeduplication(t *testing.T) {
	a := FormatAnswer("query", []models.SearchResult{
		result("Guide", "Install", "/guide", 0.9, "a"),
		result("Guide", "Config", "/guide", 0.8, "b"),
		result("Reference", "", "/ref", 0.7, "c"),
	})

	require.Len(t, a.Sources, 2)
	assert.Equal(t, "Guide → Install", a.Sources[0].Title)
	assert.Equal(t, "/guide", a.Sources[0].URL)
	assert.Equal(t, "Reference", a.Sources[1].Title)
}

func TestPreview_ShortVerbatim(t *testing.T) {
	text := "short chunk body"
	assert.Equal(t, text, Preview(text))

	exactly := strings.Repeat("a", 400)
	assert.Equal(t, exactly, Preview(exactly))
}

func TestPreview_HardTruncation(t *testing.T) {
	long := strings.Repeat("b", 900)
	got := Preview(long)
	assert.Equal(t, strings.Repeat("b", 400)+"…", got)
}

func TestPreview_KeepsFirstCodeBlockIntact(t *testing.T) {
	block := "```go\nfunc main() {\n\tfmt.Println(\"hi\")\n}\n```"
	text := strings.Repeat("prose before. ", 30) + "\n" + block + "\n" + strings.Repeat("prose after. ", 30)
	require.Greater(t, len(text), 400)

	got := Preview(text)
	assert.Contains(t, got, block)
	assert.Less(t, len(got), len(text))
	assert.Contains(t, got, "…")
}

func TestPreview_UnclosedFenceFallsBackToTruncation(t *testing.T) {
	text := "```\n" + strings.Repeat("c", 800)
	got := Preview(text)
	assert.Equal(t, text[:400]+"…", got)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
