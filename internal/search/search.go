package search

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"docsearch/internal/store"
	"docsearch/pkg/models"
)

// Embedder is the slice of the embedding client the service needs.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Service answers natural-language queries against the persisted
// vector database: embed the query, then rank chunks by cosine
// similarity.
type Service struct {
	Embedder Embedder
	Store    *store.Store
}

// NewService creates a search service over the given embedder and store.
func NewService(e Embedder, s *store.Store) *Service {
	return &Service{Embedder: e, Store: s}
}

// Query embeds q and returns the topK most similar chunks, best first.
// An empty database legitimately yields zero results.
func (s *Service) Query(ctx context.Context, q string, topK int) ([]models.SearchResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []models.SearchResult{}, nil
	}

	vec, err := s.Embedder.EmbedQuery(ctx, q)
	if err != nil {
		return nil, err
	}

	results, err := s.Store.Search(vec, topK)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("query", q).Int("results", len(results)).Msg("search completed")
	return results, nil
}

// FilterByScore drops results scoring below min. A below-relevance
// outcome is reported downstream as a normal "nothing found" answer.
func FilterByScore(results []models.SearchResult, min float64) []models.SearchResult {
	if min <= 0 {
		return results
	}
	out := results[:0:0]
	for _, r := range results {
		if r.Score >= min {
			out = append(out, r)
		}
	}
	return out
}
