package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"docsearch/internal/ai"
	"docsearch/internal/config"
	"docsearch/internal/docs"
	"docsearch/internal/indexer"
	"docsearch/internal/store"
)

func main() {
	_ = godotenv.Load()

	fs := pflag.NewFlagSet("docsearch-indexer", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	zerolog.SetGlobalLevel(level)
	zlog.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	clientConfig := clientConfigFor(cfg)

	loader := &docs.Loader{Root: cfg.DocsRoot, BaseURL: cfg.DocsBaseURL}
	documents, err := loader.Load()
	if err != nil {
		log.Fatalf("Failed to load documents: %v", err)
	}
	zlog.Info().Int("documents", len(documents)).Str("root", cfg.DocsRoot).Msg("loaded documents")

	ctx := context.Background()
	st := store.New(cfg.Artifact)
	embedder := ai.NewEmbedder(clientConfig)

	if embedder.Dim() == 0 {
		log.Fatal("embedding dimension must be set")
	}

	b := indexer.New(st, embedder, cfg.MaxChunkSize, cfg.ChunkOverlap, cfg.BatchSize)
	db, err := b.Run(ctx, documents)
	if err != nil {
		log.Fatal(err)
	}

	zlog.Info().
		Int("chunks", len(db.Chunks)).
		Str("model", db.Model).
		Int("dimension", db.Dimension).
		Str("artifact", cfg.Artifact).
		Msg("vector database written")
}

func clientConfigFor(cfg config.Specification) *ai.ClientConfig {
	cc := &ai.ClientConfig{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		EmbedModel: cfg.EmbedModel,
		Dim:        cfg.Dim,
		ProjectID:  cfg.ProjectID,
		Location:   cfg.Location,
	}
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		cc.Provider = ai.ProviderOpenAI
	case "google", "vertexai":
		cc.Provider = ai.ProviderGoogle
	case "stub":
		cc.Provider = ai.ProviderStub
	default:
		log.Fatalf("unsupported provider: %s", cfg.Provider)
	}
	return cc
}
