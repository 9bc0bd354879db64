package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// DatabaseVersion is the artifact format version written by the indexer.
const DatabaseVersion = "1.0"

// Document is one input file for a build: identifier (relative path),
// full raw text, display title, and the URL the rendered page lives at.
type Document struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Title   string `json:"title"`
	URL     string `json:"url"`
}

// ChunkMetadata carries everything needed to cite a chunk back to its
// source document and section.
type ChunkMetadata struct {
	SourceFile  string `json:"sourceFile"`
	Title       string `json:"title"`
	Heading     string `json:"heading,omitempty"`
	HeadingID   string `json:"headingId,omitempty"`
	URL         string `json:"url"`
	StartLine   int    `json:"startLine,omitempty"`
	EndLine     int    `json:"endLine,omitempty"`
	ContentHash string `json:"contentHash,omitempty"`
}

// TextChunk is a chunker output before embedding.
type TextChunk struct {
	Text     string
	Metadata ChunkMetadata
}

// DocumentChunk is an embedded chunk as persisted in the vector database.
type DocumentChunk struct {
	ID        string        `json:"id"`
	Text      string        `json:"text"`
	Embedding []float32     `json:"embedding"`
	Metadata  ChunkMetadata `json:"metadata"`
}

// VectorDatabase is the single persisted artifact. Every chunk's
// embedding has exactly Dimension elements.
type VectorDatabase struct {
	Version   string          `json:"version"`
	Model     string          `json:"model"`
	Dimension int             `json:"dimension"`
	Chunks    []DocumentChunk `json:"chunks"`
}

// SearchResult pairs a chunk with its cosine similarity to a query.
type SearchResult struct {
	Chunk DocumentChunk `json:"chunk"`
	Score float64       `json:"score"`
}

// ChunkID derives a stable chunk identifier from the source file, the
// chunk's index within that file, and the first 100 characters of its
// text. Identical inputs always produce identical ids, which is what
// makes incremental merges and cache lookups idempotent. The id is a
// SHA-256 hash truncated to 16 hex characters.
func ChunkID(sourceFile string, index int, text string) string {
	prefix := text
	if len(prefix) > 100 {
		prefix = prefix[:100]
	}
	h := sha256.Sum256([]byte(sourceFile + "#" + strconv.Itoa(index) + ":" + prefix))
	return hex.EncodeToString(h[:])[:16]
}

// ContentHash returns the SHA-256 digest of a document's raw text as a
// hex string. Used to detect whether a document needs re-embedding.
func ContentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
