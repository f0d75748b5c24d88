package app

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgallion1/docqa/internal/config"
	"github.com/dgallion1/docqa/internal/document"
	"github.com/dgallion1/docqa/internal/errs"
	"github.com/dgallion1/docqa/internal/llm"
	"github.com/dgallion1/docqa/internal/vectorindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type constEmbedder struct{}

func (constEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

func (constEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{0, 1}, nil
}

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	_, err := New(cfg, discard())
	var cfgErr *errs.ConfigurationError
	require.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %v", err)
}

func TestNew_PicksGeneratorByProvider(t *testing.T) {
	cfg := config.Default()
	cfg.OpenAIAPIKey = "sk-openai"
	a, err := New(cfg, discard())
	require.NoError(t, err)
	assert.IsType(t, &llm.OpenAIChat{}, a.Generator)
	assert.IsType(t, &llm.OpenAIEmbedder{}, a.Embedder)
	assert.NotNil(t, a.Chain)

	cfg = config.Default()
	cfg.AnthropicAPIKey = "sk-ant"
	cfg.OpenRouterAPIKey = "sk-or"
	a, err = New(cfg, discard())
	require.NoError(t, err)
	assert.IsType(t, &llm.OpenAIChat{}, a.Generator, "openrouter outranks anthropic")
}

func TestNew_AnthropicWithOpenAIEmbeddings(t *testing.T) {
	cfg := config.Default()
	cfg.AnthropicAPIKey = "sk-ant"
	_, err := New(cfg, discard())
	require.Error(t, err, "anthropic alone has no embeddings")

	cfg.OpenAIAPIKey = "sk-openai"
	cfg.LLMProvider = config.ProviderAnthropic
	a, err := New(cfg, discard())
	require.NoError(t, err)
	assert.IsType(t, &llm.AnthropicChat{}, a.Generator)
	assert.IsType(t, &llm.OpenAIEmbedder{}, a.Embedder)
}

func TestOpenIndex_EmptyWhenNoStore(t *testing.T) {
	idx, err := OpenIndex(filepath.Join(t.TempDir(), "store"), constEmbedder{}, discard())
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
}

func TestOpenIndex_LoadsSavedStore(t *testing.T) {
	dir := t.TempDir()
	idx, err := vectorindex.Build(t.Context(), []document.Chunk{
		{Content: "a", Metadata: document.Metadata{Source: "a.txt"}},
		{Content: "b", Metadata: document.Metadata{Source: "b.txt"}},
	}, constEmbedder{})
	require.NoError(t, err)
	require.NoError(t, idx.Save(dir))

	got, err := OpenIndex(dir, constEmbedder{}, discard())
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())
	assert.Equal(t, 2, got.Dimension())
}

func TestOpenIndex_PartialStoreIsError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, vectorindex.MetadataFile), []byte("{}"), 0o644))

	_, err := OpenIndex(dir, constEmbedder{}, discard())
	var notFound *errs.StoreNotFoundError
	require.True(t, errors.As(err, &notFound), "expected StoreNotFoundError, got %v", err)
	assert.Equal(t, vectorindex.VectorFile, notFound.Missing)
}
