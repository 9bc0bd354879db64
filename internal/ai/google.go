package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GoogleClient embeds text through the Gemini API.
type GoogleClient struct {
	config *ClientConfig
	client *genai.Client
}

// NewGoogleClient creates a new client for the Google Gemini API.
func NewGoogleClient(ctx context.Context, config *ClientConfig) (*GoogleClient, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}

	if config.EmbedModel == "" {
		config.EmbedModel = "text-embedding-005"
	}
	if config.Dim == 0 {
		config.Dim = 768
	}
	if config.Location == "" && strings.TrimSpace(config.APIKey) == "" {
		config.Location = "us-central1"
	}

	cc := genai.ClientConfig{
		Backend: genai.BackendVertexAI,
	}
	if strings.TrimSpace(config.APIKey) != "" {
		cc.APIKey = config.APIKey
	}
	if strings.TrimSpace(config.ProjectID) != "" {
		cc.Project = config.ProjectID
	}
	if strings.TrimSpace(config.Location) != "" {
		cc.Location = config.Location
	}

	client, err := genai.NewClient(ctx, &cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GoogleClient{
		config: config,
		client: client,
	}, nil
}

// Embed embeds a document passage with the RETRIEVAL_DOCUMENT task type.
func (c *GoogleClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, text, "RETRIEVAL_DOCUMENT")
}

// EmbedQuery embeds a search query with the RETRIEVAL_QUERY task type.
func (c *GoogleClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, text, "RETRIEVAL_QUERY")
}

func (c *GoogleClient) embed(ctx context.Context, text, taskType string) ([]float32, error) {
	cfg := genai.EmbedContentConfig{
		TaskType: taskType,
	}

	res, err := c.client.Models.EmbedContent(ctx, c.config.EmbedModel, genai.Text(text), &cfg)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}

	if res == nil || len(res.Embeddings) == 0 {
		return nil, errors.New("no embedding returned")
	}

	return res.Embeddings[0].Values, nil
}

// Dim returns the embedding dimension.
func (c *GoogleClient) Dim() int { return c.config.Dim }

// Model returns the configured model identifier.
func (c *GoogleClient) Model() string { return c.config.EmbedModel }
