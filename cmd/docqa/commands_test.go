package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/docqa/internal/config"
	"github.com/dgallion1/docqa/internal/rag"
	"github.com/dgallion1/docqa/internal/vectorindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lenEmbedder struct{}

func (lenEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (lenEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.VectorStorePath = filepath.Join(dir, "store")

	good := writeFile(t, dir, "guide.md", "# Coffee\n\nGrind the beans fresh.")
	dup := writeFile(t, dir, "copy.md", "# Coffee\n\nGrind the beans fresh.")
	bad := writeFile(t, dir, "image.png", "png")
	missing := filepath.Join(dir, "missing.txt")

	index := vectorindex.New(lenEmbedder{})
	var out bytes.Buffer
	err := ingestFiles(t.Context(), index, lenEmbedder{}, cfg, discard(), []string{good, dup, bad, missing}, &out)
	require.ErrorContains(t, err, "2 of 4 files failed")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "guide.md: 1 chunks")
	assert.Contains(t, lines[1], "already indexed")
	assert.Contains(t, lines[2], "unsupported file type .png")
	assert.Contains(t, lines[3], "missing.txt")
	assert.Equal(t, "1 chunks in store", lines[4])

	loaded, err := vectorindex.Load(cfg.VectorStorePath, lenEmbedder{})
	require.NoError(t, err)
	require.Equal(t, 1, loaded.Len())
	hits, err := loaded.SearchVector([]float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	meta := hits[0].Chunk.Metadata
	assert.Equal(t, good, meta.FilePath)
	assert.Equal(t, "guide.md", meta.Source)
	assert.Len(t, meta.DocID, 16)
}

func TestIngestFiles_SkipsIndexedDocuments(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.VectorStorePath = filepath.Join(dir, "store")
	src := writeFile(t, dir, "notes.txt", "Espresso needs pressure.")

	index := vectorindex.New(lenEmbedder{})
	require.NoError(t, ingestFiles(t.Context(), index, lenEmbedder{}, cfg, discard(), []string{src}, &bytes.Buffer{}))

	var out bytes.Buffer
	require.NoError(t, ingestFiles(t.Context(), index, lenEmbedder{}, cfg, discard(), []string{src}, &out))
	assert.Contains(t, out.String(), "already indexed")
	assert.Contains(t, out.String(), "store unchanged")
	assert.Equal(t, 1, index.Len())
}

func TestIngestFiles_Rebuild(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.VectorStorePath = filepath.Join(dir, "store")
	first := writeFile(t, dir, "notes.txt", "Espresso needs pressure.")
	second := writeFile(t, dir, "guide.md", "# Coffee\n\nGrind the beans fresh.")

	index := vectorindex.New(lenEmbedder{})
	require.NoError(t, ingestFiles(t.Context(), index, lenEmbedder{}, cfg, discard(), []string{first}, &bytes.Buffer{}))

	var out bytes.Buffer
	require.NoError(t, ingestFiles(t.Context(), nil, lenEmbedder{}, cfg, discard(), []string{second, first}, &out))
	assert.Contains(t, out.String(), "2 chunks in store")

	loaded, err := vectorindex.Load(cfg.VectorStorePath, lenEmbedder{})
	require.NoError(t, err)
	docs := loaded.Documents()
	require.Len(t, docs, 2)
	assert.Equal(t, "guide.md", docs[0].Source)
	assert.Equal(t, "notes.txt", docs[1].Source)
}

func TestIngestFiles_EmptyFileFails(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.VectorStorePath = filepath.Join(dir, "store")
	empty := writeFile(t, dir, "empty.txt", "   \n")

	var out bytes.Buffer
	err := ingestFiles(t.Context(), vectorindex.New(lenEmbedder{}), lenEmbedder{}, cfg, discard(), []string{empty}, &out)
	require.ErrorContains(t, err, "1 of 1 files failed")
	assert.Contains(t, out.String(), "no extractable content")
	assert.False(t, vectorindex.Exists(cfg.VectorStorePath))
}

func TestPrintStatus(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")

	var out bytes.Buffer
	require.NoError(t, printStatus(&out, dir))
	assert.Contains(t, out.String(), "no vector store")

	cfg := config.Default()
	cfg.VectorStorePath = dir
	index := vectorindex.New(lenEmbedder{})
	src := writeFile(t, t.TempDir(), "notes.txt", "Espresso needs pressure.")
	require.NoError(t, ingestFiles(t.Context(), index, lenEmbedder{}, cfg, discard(), []string{src}, &bytes.Buffer{}))

	out.Reset()
	require.NoError(t, printStatus(&out, dir))
	s := out.String()
	assert.Contains(t, s, "chunks:    1")
	assert.Contains(t, s, "dimension: 2")
	assert.Contains(t, s, "notes.txt")
}

func TestPrintSources(t *testing.T) {
	var out bytes.Buffer
	printSources(&out, []rag.Source{
		{Content: "line one\nline two...", Source: "a.pdf", Page: "3"},
		{Content: "plain...", Source: "b.txt", Page: "N/A"},
	})
	want := "[1] a.pdf, page 3\n    line one line two...\n[2] b.txt\n    plain...\n"
	assert.Equal(t, want, out.String())
}
