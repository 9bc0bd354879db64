package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"docsearch/internal/ai"
	"docsearch/internal/config"
	"docsearch/internal/format"
	"docsearch/internal/search"
	"docsearch/internal/store"
	"docsearch/internal/tui"
)

var (
	answerStyle = lipgloss.NewStyle().PaddingLeft(1)
	sourceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func main() {
	_ = godotenv.Load()

	fs := pflag.NewFlagSet("docsearch", pflag.ExitOnError)
	interactive := fs.Bool("interactive", false, "Start an interactive search session")

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

	st := store.New(cfg.Artifact)
	embedder := ai.NewEmbedder(clientConfigFor(cfg))
	svc := search.NewService(embedder, st)

	if *interactive {
		p := tea.NewProgram(tui.New(svc, cfg.TopK), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			log.Fatalf("TUI error: %v", err)
		}
		return
	}

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, "Usage: docsearch [flags] <query>")
		fs.Usage()
		os.Exit(1)
	}

	results, err := svc.Query(context.Background(), query, cfg.TopK)
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}
	results = search.FilterByScore(results, cfg.MinScore)

	answer := format.FormatAnswer(query, results)
	fmt.Println(answerStyle.Render(answer.Answer))
	if len(answer.Sources) > 0 {
		fmt.Println("Sources:")
		for _, src := range answer.Sources {
			fmt.Println("  " + src.Title + "  " + sourceStyle.Render(src.URL))
		}
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
