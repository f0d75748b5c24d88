// Package app wires configuration into the provider clients, the vector
// index and the answering chain shared by the server and the CLI.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dgallion1/docqa/internal/config"
	"github.com/dgallion1/docqa/internal/errs"
	"github.com/dgallion1/docqa/internal/llm"
	"github.com/dgallion1/docqa/internal/rag"
	"github.com/dgallion1/docqa/internal/vectorindex"
)

const statsWindow = time.Hour

// App holds the long-lived components built from one Config.
type App struct {
	Config config.Config
	Log    *slog.Logger

	Embedder  llm.Embedder
	Generator llm.Generator
	Chain     *rag.Chain

	EmbedStats *llm.Stats
	ChatStats  *llm.Stats
}

// New validates cfg and builds the provider clients.
func New(cfg config.Config, log *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		Config:     cfg,
		Log:        log,
		EmbedStats: llm.NewStats(statsWindow),
		ChatStats:  llm.NewStats(statsWindow),
	}

	embedKey, embedURL := cfg.EmbeddingCredentials()
	embOpts := []llm.Option{
		llm.WithStats(a.EmbedStats),
		llm.WithLogger(log.With("client", "embeddings")),
	}
	if embedURL != "" {
		embOpts = append(embOpts, llm.WithBaseURL(embedURL))
	}
	if cfg.EmbeddingDimensions > 0 {
		embOpts = append(embOpts, llm.WithDimensions(cfg.EmbeddingDimensions))
	}
	a.Embedder = llm.NewOpenAIEmbedder(embedKey, cfg.EmbeddingModel, embOpts...)

	chatOpts := []llm.Option{
		llm.WithStats(a.ChatStats),
		llm.WithLogger(log.With("client", "chat")),
	}
	if u := cfg.LLMBaseURL(); u != "" {
		chatOpts = append(chatOpts, llm.WithBaseURL(u))
	}
	switch cfg.Provider() {
	case config.ProviderAnthropic:
		a.Generator = llm.NewAnthropicChat(cfg.LLMAPIKey(), cfg.Model(), chatOpts...)
	default:
		a.Generator = llm.NewOpenAIChat(cfg.LLMAPIKey(), cfg.Model(), chatOpts...)
	}

	a.Chain = rag.NewChain(a.Generator, rag.WithLogger(log))
	log.Info("llm clients ready",
		"provider", cfg.Provider(),
		"model", cfg.Model(),
		"embedding_model", cfg.EmbeddingModel,
	)
	return a, nil
}

// OpenIndex loads the persisted index, or returns an empty one when no
// store has been written yet. A partial or corrupt store is an error.
func (a *App) OpenIndex() (*vectorindex.Index, error) {
	return OpenIndex(a.Config.VectorStorePath, a.Embedder, a.Log)
}

func OpenIndex(dir string, emb llm.Embedder, log *slog.Logger) (*vectorindex.Index, error) {
	idx, err := vectorindex.Load(dir, emb)
	var notFound *errs.StoreNotFoundError
	switch {
	case err == nil:
		log.Info("loaded vector store", "path", dir, "chunks", idx.Len(), "dimension", idx.Dimension())
		return idx, nil
	case errors.As(err, &notFound) && !anyStoreFile(dir):
		log.Info("no vector store yet, starting empty", "path", dir)
		return vectorindex.New(emb), nil
	default:
		return nil, fmt.Errorf("open vector store: %w", err)
	}
}

func anyStoreFile(dir string) bool {
	for _, name := range []string{vectorindex.VectorFile, vectorindex.MetadataFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}
