package ai

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"math"
)

// Client produces fixed-dimension embedding vectors for text. The
// dimension is a fixed property of the configured model; callers assert
// it, they never compute it.
type Client interface {
	// Embed returns the embedding of a document passage.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedQuery returns the embedding of a search query. Providers
	// that distinguish document and query task types implement them
	// differently; the rest alias Embed.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dim returns the embedding dimension.
	Dim() int
	// Model returns the model identifier recorded in the artifact.
	Model() string
}

// Provider is an enumeration of supported embedding providers.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGoogle Provider = "google"
	ProviderStub   Provider = "stub"
)

// ClientConfig holds configuration for embedding clients.
type ClientConfig struct {
	Provider   Provider
	APIKey     string
	BaseURL    string // OpenAI-compatible endpoint, e.g. a local inference runtime
	EmbedModel string
	Dim        int
	ProjectID  string
	Location   string
}

// NewClient creates an embedding client based on configuration.
func NewClient(ctx context.Context, config *ClientConfig) (Client, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}

	switch config.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(config), nil
	case ProviderGoogle:
		return NewGoogleClient(ctx, config)
	case ProviderStub:
		return NewStubClient(config.Dim), nil
	default:
		return nil, errors.New("unsupported provider: " + string(config.Provider))
	}
}

// StubClient is a deterministic offline implementation of Client. The
// vector for a text is seeded from a hash of the text, so equal inputs
// always embed equally and distinct inputs almost never collide.
type StubClient struct {
	dim int
}

// NewStubClient creates a new StubClient.
func NewStubClient(dim int) *StubClient {
	if dim <= 0 {
		dim = 384
	}
	return &StubClient{dim: dim}
}

// Embed implements deterministic pseudo-embedding.
func (s *StubClient) Embed(_ context.Context, text string) ([]float32, error) {
	seed := sha256.Sum256([]byte(text))
	vec := make([]float32, s.dim)
	state := binary.BigEndian.Uint64(seed[:8])
	for i := range vec {
		// xorshift walk over the seed, mapped into [-1, 1)
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		vec[i] = float32(int64(state%2000)-1000) / 1000
	}
	return normalize(vec), nil
}

// EmbedQuery is identical to Embed for the stub.
func (s *StubClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return s.Embed(ctx, text)
}

// Dim returns the embedding dimension.
func (s *StubClient) Dim() int { return s.dim }

// Model returns the stub model identifier.
func (s *StubClient) Model() string { return "stub" }

func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	n := math.Sqrt(sum)
	if n == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / n)
	}
	return vec
}
