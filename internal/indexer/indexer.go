package indexer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"docsearch/internal/chunker"
	"docsearch/internal/store"
	"docsearch/pkg/models"
)

// Embedder is the slice of the embedding client the builder needs.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string, batchSize int) ([][]float32, error)
	Dim() int
	Model() string
}

// Builder performs incremental vector database builds: documents whose
// content hash matches the prior artifact reuse their chunks and
// embeddings verbatim, and only changed documents are re-chunked and
// re-embedded. Embedding is the expensive step this exists to avoid.
type Builder struct {
	Store    *store.Store
	Embedder Embedder

	MaxChunkSize int
	ChunkOverlap int
	BatchSize    int
}

// New creates a Builder with the given store and embedder.
func New(s *store.Store, e Embedder, maxChunkSize, chunkOverlap, batchSize int) *Builder {
	if maxChunkSize <= 0 {
		maxChunkSize = 500
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	return &Builder{
		Store:        s,
		Embedder:     e,
		MaxChunkSize: maxChunkSize,
		ChunkOverlap: chunkOverlap,
		BatchSize:    batchSize,
	}
}

// Run loads the prior artifact, builds against it, and persists the
// result, overwriting the prior artifact.
func (b *Builder) Run(ctx context.Context, docs []models.Document) (*models.VectorDatabase, error) {
	db, err := b.Build(ctx, docs, b.Store.Load())
	if err != nil {
		return nil, err
	}
	if err := b.Store.Save(db); err != nil {
		return nil, fmt.Errorf("persist vector database: %w", err)
	}
	return db, nil
}

// Build produces the new vector database from docs and the prior one.
// Output order is reused documents first, then changed documents, each
// internally in original document order; there is no global re-sort.
func (b *Builder) Build(ctx context.Context, docs []models.Document, prior *models.VectorDatabase) (*models.VectorDatabase, error) {
	cache := store.CacheIndex(prior)
	if prior != nil && len(prior.Chunks) > 0 &&
		(prior.Model != b.Embedder.Model() || prior.Dimension != b.Embedder.Dim()) {
		log.Warn().
			Str("prior_model", prior.Model).Str("model", b.Embedder.Model()).
			Int("prior_dim", prior.Dimension).Int("dim", b.Embedder.Dim()).
			Msg("embedding model changed, discarding cache")
		cache = map[string]store.CacheEntry{}
	}

	var reused []models.DocumentChunk
	var changed []models.Document
	var changedHashes []string

	for _, doc := range docs {
		hash := models.ContentHash(doc.Content)
		entry, found := cache[doc.Path]
		if found && entry.ContentHash == hash {
			reused = append(reused, entry.Chunks...)
			continue
		}
		// Never previously indexed, or content changed: regenerate the
		// whole document. Invalidation is document granularity; partial
		// chunk reuse inside a changed document is not attempted.
		changed = append(changed, doc)
		changedHashes = append(changedHashes, hash)
	}

	log.Info().
		Int("documents", len(docs)).
		Int("unchanged", len(docs)-len(changed)).
		Int("changed", len(changed)).
		Msg("classified documents")

	fresh, err := b.embedChanged(ctx, changed, changedHashes)
	if err != nil {
		return nil, err
	}

	chunks := append(reused, fresh...)
	if chunks == nil {
		chunks = []models.DocumentChunk{}
	}
	return &models.VectorDatabase{
		Version:   models.DatabaseVersion,
		Model:     b.Embedder.Model(),
		Dimension: b.Embedder.Dim(),
		Chunks:    chunks,
	}, nil
}

func (b *Builder) embedChanged(ctx context.Context, docs []models.Document, hashes []string) ([]models.DocumentChunk, error) {
	type pending struct {
		doc   int // index into docs
		index int // chunk index within its document
		chunk models.TextChunk
	}

	var queue []pending
	for d, doc := range docs {
		for i, tc := range chunker.Chunk(doc, b.MaxChunkSize, b.ChunkOverlap) {
			queue = append(queue, pending{doc: d, index: i, chunk: tc})
		}
	}
	if len(queue) == 0 {
		return nil, nil
	}

	texts := make([]string, len(queue))
	for i, p := range queue {
		texts[i] = p.chunk.Text
	}

	vectors, err := b.Embedder.EmbedBatch(ctx, texts, b.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("embed changed documents: %w", err)
	}

	dim := b.Embedder.Dim()
	out := make([]models.DocumentChunk, len(queue))
	for i, p := range queue {
		if len(vectors[i]) != dim {
			return nil, fmt.Errorf("chunk %d of %s: %w: got %d, want %d",
				p.index, p.chunk.Metadata.SourceFile, store.ErrDimensionMismatch, len(vectors[i]), dim)
		}
		md := p.chunk.Metadata
		md.ContentHash = hashes[p.doc]
		out[i] = models.DocumentChunk{
			ID:        models.ChunkID(md.SourceFile, p.index, p.chunk.Text),
			Text:      p.chunk.Text,
			Embedding: vectors[i],
			Metadata:  md,
		}
	}
	return out, nil
}
