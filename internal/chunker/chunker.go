package chunker

import (
	"regexp"
	"strings"

	"docsearch/pkg/models"
)

var (
	headingRe = regexp.MustCompile(`^#{1,3}\s+(.+)$`)
	nonWordRe = regexp.MustCompile(`[^a-z0-9-]`)
	spaceRe   = regexp.MustCompile(`\s+`)
	hyphenRe  = regexp.MustCompile(`-+`)
)

// EstimateTokens approximates the token count of a text as
// ceil(len/4). Rough, but it only has to be consistent: chunk size
// limits and overlap windows are both measured with it.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// HeadingID turns a heading into its URL anchor slug: lowercased,
// whitespace replaced with hyphens, non-word characters stripped,
// runs of hyphens collapsed and trimmed. This must match the anchor
// generator used by the page renderer or citation deep-links break.
func HeadingID(heading string) string {
	s := strings.ToLower(heading)
	s = spaceRe.ReplaceAllString(s, "-")
	s = nonWordRe.ReplaceAllString(s, "")
	s = hyphenRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// builder accumulates lines for the chunk currently being assembled.
type builder struct {
	lines     []string
	startLine int
}

func (b *builder) text() string { return strings.Join(b.lines, "\n") }

func (b *builder) empty() bool { return len(b.lines) == 0 }

// Chunk splits a document into ordered text chunks. maxChunkSize and
// chunkOverlap are measured in estimated tokens (EstimateTokens).
//
// The scan is line by line. Headings (levels 1-3) outside fenced code
// blocks close the current chunk and open a new one; fenced code
// blocks are appended atomically and never split; any other line that
// pushes the buffer to maxChunkSize closes the chunk and seeds the
// next one with an overlap window of whole trailing lines worth at
// most chunkOverlap tokens. A single line larger than maxChunkSize is
// still emitted as one oversized chunk, and an unterminated fence at
// end of file is flushed as-is.
func Chunk(doc models.Document, maxChunkSize, chunkOverlap int) []models.TextChunk {
	lines := strings.Split(doc.Content, "\n")

	var chunks []models.TextChunk
	cur := builder{startLine: 1}
	heading := ""
	inFence := false

	flush := func(h string, endLine int) {
		text := cur.text()
		if strings.TrimSpace(text) != "" {
			chunks = append(chunks, makeChunk(doc, text, h, cur.startLine, endLine))
		}
		cur = builder{startLine: endLine + 1}
	}

	for i, line := range lines {
		lineNo := i + 1

		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			// Fence delimiters and everything between them stay in
			// one chunk; heading and size rules are suspended.
			inFence = !inFence
			cur.lines = append(cur.lines, line)
			continue
		}
		if inFence {
			cur.lines = append(cur.lines, line)
			continue
		}

		if m := headingRe.FindStringSubmatch(line); m != nil {
			flush(heading, lineNo-1)
			heading = strings.TrimSpace(m[1])
			cur = builder{lines: []string{line}, startLine: lineNo}
			continue
		}

		cur.lines = append(cur.lines, line)
		if EstimateTokens(cur.text()) >= maxChunkSize {
			overlap := overlapWindow(cur.lines, chunkOverlap)
			flush(heading, lineNo)
			cur = builder{lines: overlap, startLine: lineNo + 1 - len(overlap)}
		}
	}

	flush(heading, len(lines))
	return chunks
}

// overlapWindow walks backward from the end of a flushed chunk's lines
// collecting whole lines until adding one more would exceed the
// overlap budget. Lines are never split, and the walk stops at fence
// delimiters so the next chunk never starts with a stray "```".
func overlapWindow(lines []string, chunkOverlap int) []string {
	if chunkOverlap <= 0 {
		return nil
	}
	var window []string
	tokens := 0
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "```") {
			break
		}
		t := EstimateTokens(lines[i])
		if tokens+t > chunkOverlap {
			break
		}
		tokens += t
		window = append([]string{lines[i]}, window...)
	}
	return window
}

func makeChunk(doc models.Document, text, heading string, startLine, endLine int) models.TextChunk {
	md := models.ChunkMetadata{
		SourceFile: doc.Path,
		Title:      doc.Title,
		URL:        doc.URL,
		StartLine:  startLine,
		EndLine:    endLine,
	}
	if heading != "" {
		md.Heading = heading
		md.HeadingID = HeadingID(heading)
	}
	return models.TextChunk{Text: text, Metadata: md}
}
