package format

import (
	"fmt"
	"regexp"
	"strings"

	"docsearch/pkg/models"
)

// NotFoundMessage is returned whenever retrieval produces no results.
// "Nothing found" is a normal answer, never an error.
const NotFoundMessage = "No relevant documentation found for that query. Try rephrasing it or using different keywords."

const (
	maxShownResults = 3
	previewLimit    = 400
	proseMargin     = 150
	highScore       = 0.7
)

// Source is one cited document, deduplicated by URL.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Answer is the formatted response to a query: excerpt text assembled
// from retrieved chunks plus the list of cited sources. Built purely
// from its inputs; no generative model is involved.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

var (
	howRe  = regexp.MustCompile(`(?i)^how\s+(to|do|can)\b`)
	whatRe = regexp.MustCompile(`(?i)^what\s+(is|are)\b`)
	whyRe  = regexp.MustCompile(`(?i)^why\b`)
)

// FormatAnswer turns ranked results into a citation-bearing answer.
// The intent framing is cosmetic only; it never affects ranking.
func FormatAnswer(query string, results []models.SearchResult) Answer {
	if len(results) == 0 {
		return Answer{Answer: NotFoundMessage, Sources: []Source{}}
	}

	shown := results
	if len(shown) > maxShownResults {
		shown = shown[:maxShownResults]
	}

	var b strings.Builder
	b.WriteString(intro(query, len(results)))
	b.WriteString("\n")

	for _, r := range shown {
		heading := r.Chunk.Metadata.Heading
		if heading == "" {
			heading = r.Chunk.Metadata.Title
		}
		b.WriteString("\n### " + heading)
		if r.Score > highScore {
			b.WriteString(" (highly relevant)")
		}
		b.WriteString("\n\n")
		b.WriteString(Preview(r.Chunk.Text))
		b.WriteString("\n\n")
		b.WriteString("See: " + deepLink(r.Chunk.Metadata) + "\n")
	}

	if extra := len(results) - len(shown); extra > 0 {
		b.WriteString(fmt.Sprintf("\n%d more matching sections not shown.\n", extra))
	}

	return Answer{Answer: b.String(), Sources: sources(results)}
}

func intro(query string, n int) string {
	q := strings.TrimSpace(query)
	switch {
	case howRe.MatchString(q):
		return "Here's how the documentation covers it:"
	case whatRe.MatchString(q):
		return "Here's what the documentation says:"
	case whyRe.MatchString(q):
		return "Here's the reasoning from the documentation:"
	case n == 1:
		return "Found one relevant section:"
	default:
		return fmt.Sprintf("Found %d relevant sections:", n)
	}
}

func deepLink(md models.ChunkMetadata) string {
	if md.HeadingID != "" {
		return md.URL + "#" + md.HeadingID
	}
	return md.URL
}

// Preview renders a chunk's text for display. Short text passes
// through verbatim. Text containing a fenced code block keeps the
// first block intact with the surrounding prose trimmed to a margin.
// Anything else is hard-truncated with an ellipsis.
func Preview(text string) string {
	if len(text) <= previewLimit {
		return text
	}

	if before, block, after, ok := firstCodeBlock(text); ok {
		return trimTail(before, proseMargin) + block + trimHead(after, proseMargin)
	}

	return text[:previewLimit] + "…"
}

// firstCodeBlock splits text around its first complete fenced code
// block. ok is false when no complete block exists.
func firstCodeBlock(text string) (before, block, after string, ok bool) {
	open := strings.Index(text, "```")
	if open < 0 {
		return "", "", "", false
	}
	rest := text[open+3:]
	closeRel := strings.Index(rest, "```")
	if closeRel < 0 {
		return "", "", "", false
	}
	end := open + 3 + closeRel + 3
	// include the rest of the closing fence line
	if nl := strings.IndexByte(text[end:], '\n'); nl >= 0 {
		end += nl
	} else {
		end = len(text)
	}
	return text[:open], text[open:end], text[end:], true
}

func trimTail(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		if s == "" {
			return ""
		}
		return s + "\n\n"
	}
	return "…" + s[len(s)-limit:] + "\n\n"
}

func trimHead(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		if s == "" {
			return ""
		}
		return "\n\n" + s
	}
	return "\n\n" + s[:limit] + "…"
}

// sources deduplicates cited documents by URL, first occurrence wins,
// preserving result order.
func sources(results []models.SearchResult) []Source {
	seen := make(map[string]bool, len(results))
	out := make([]Source, 0, len(results))
	for _, r := range results {
		md := r.Chunk.Metadata
		if seen[md.URL] {
			continue
		}
		seen[md.URL] = true

		title := md.Title
		if md.Heading != "" {
			title = md.Title + " → " + md.Heading
		}
		out = append(out, Source{Title: title, URL: md.URL})
	}
	return out
}
