package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/spf13/pflag"

	"docsearch/internal/ai"
	"docsearch/internal/config"
	"docsearch/internal/format"
	"docsearch/internal/search"
	"docsearch/internal/store"
	"docsearch/pkg/models"
)

// Hit is the wire form of one search result.
type Hit struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Heading string  `json:"heading,omitempty"`
	URL     string  `json:"url"`
	Score   float64 `json:"score"`
	Preview string  `json:"preview"`
}

// Response is the wire form of a query answer.
type Response struct {
	Answer  string          `json:"answer"`
	Sources []format.Source `json:"sources"`
	Results []Hit           `json:"results"`
}

func output(answer format.Answer, results []models.SearchResult) Response {
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		score := r.Score
		if math.IsNaN(score) || math.IsInf(score, 0) {
			score = 0
		}
		url := r.Chunk.Metadata.URL
		if r.Chunk.Metadata.HeadingID != "" {
			url += "#" + r.Chunk.Metadata.HeadingID
		}
		hits = append(hits, Hit{
			ID:      r.Chunk.ID,
			Title:   r.Chunk.Metadata.Title,
			Heading: r.Chunk.Metadata.Heading,
			URL:     url,
			Score:   score,
			Preview: format.Preview(r.Chunk.Text),
		})
	}
	return Response{Answer: answer.Answer, Sources: answer.Sources, Results: hits}
}

func main() {
	_ = godotenv.Load()

	fs := pflag.NewFlagSet("docsearch-api", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	logger.Info().Str("provider", cfg.Provider).Str("artifact", cfg.Artifact).Msg("starting docsearch api")

	st := store.New(cfg.Artifact)
	embedder := ai.NewEmbedder(clientConfigFor(cfg))
	svc := search.NewService(embedder, st)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			http.Error(w, "missing q parameter", http.StatusBadRequest)
			return
		}
		topK := cfg.TopK
		if v := r.URL.Query().Get("k"); v != "" {
			k, err := strconv.Atoi(v)
			if err != nil || k <= 0 {
				http.Error(w, "invalid k parameter", http.StatusBadRequest)
				return
			}
			topK = k
		}

		results, err := svc.Query(r.Context(), q, topK)
		if err != nil {
			hlog.FromRequest(r).Error().Err(err).Str("query", q).Msg("search failed")
			http.Error(w, "search failed", http.StatusInternalServerError)
			return
		}
		results = search.FilterByScore(results, cfg.MinScore)
		answer := format.FormatAnswer(q, results)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(output(answer, results)); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("failed to encode response")
		}
	})

	handler := hlog.NewHandler(logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Dur("duration", duration).
				Msg("request")
		})(mux))

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info().Str("addr", addr).Msg("listening")
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatal(err)
	}
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
