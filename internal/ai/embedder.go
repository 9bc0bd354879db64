package ai

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Embedder wraps a Client with lazy single-flight initialization and
// order-preserving batched embedding. Construct one per build or query
// session and pass it down explicitly; there is no package singleton.
//
// The first caller to need the client constructs it; concurrent callers
// block on the same construction and observe its result. Provider
// client construction may dial out (Vertex), so it is deferred until an
// embedding is actually requested.
type Embedder struct {
	config *ClientConfig

	once    sync.Once
	client  Client
	initErr error
}

// NewEmbedder creates an Embedder for the given provider configuration.
func NewEmbedder(config *ClientConfig) *Embedder {
	return &Embedder{config: config}
}

// NewEmbedderWithClient wraps an already-constructed client. Used by
// tests and by callers that manage provider setup themselves.
func NewEmbedderWithClient(client Client) *Embedder {
	e := &Embedder{}
	e.once.Do(func() { e.client = client })
	return e
}

func (e *Embedder) ensure(ctx context.Context) (Client, error) {
	e.once.Do(func() {
		e.client, e.initErr = NewClient(ctx, e.config)
	})
	if e.initErr != nil {
		return nil, fmt.Errorf("embedding client init: %w", e.initErr)
	}
	return e.client, nil
}

// Embed embeds a single document passage.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c, err := e.ensure(ctx)
	if err != nil {
		return nil, err
	}
	return c.Embed(ctx, text)
}

// EmbedQuery embeds a search query.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	c, err := e.ensure(ctx)
	if err != nil {
		return nil, err
	}
	return c.EmbedQuery(ctx, text)
}

// Dim returns the embedding dimension. Valid after the client has been
// initialized; before that it falls back to the configured value.
func (e *Embedder) Dim() int {
	if e.client != nil {
		return e.client.Dim()
	}
	if e.config != nil {
		return e.config.Dim
	}
	return 0
}

// Model returns the model identifier recorded in the artifact.
func (e *Embedder) Model() string {
	if e.client != nil {
		return e.client.Model()
	}
	if e.config != nil {
		return e.config.EmbedModel
	}
	return ""
}

// EmbedBatch embeds texts in order, issuing up to batchSize concurrent
// embedding calls per batch and awaiting each batch before starting the
// next. This bounds peak in-flight inference requests while overlapping
// per-item latency. The first error aborts the run; nothing is retried.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string, batchSize int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = 8
	}
	c, err := e.ensure(ctx)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		var wg sync.WaitGroup
		errCh := make(chan error, 1)
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				vec, err := c.Embed(ctx, texts[i])
				if err != nil {
					select {
					case errCh <- fmt.Errorf("embed text %d: %w", i, err):
					default:
					}
					return
				}
				vectors[i] = vec
			}(i)
		}
		wg.Wait()

		select {
		case err := <-errCh:
			return nil, err
		default:
		}

		log.Info().Int("done", end).Int("total", len(texts)).Msg("embedding progress")
	}
	return vectors, nil
}
