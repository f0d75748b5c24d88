// Package vectorindex is an in-memory flat vector index with exact
// squared-L2 search, persisted as a pair of files in a directory.
package vectorindex

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/dgallion1/docqa/internal/document"
	"github.com/dgallion1/docqa/internal/errs"
	"github.com/dgallion1/docqa/internal/llm"
)

// Result is one search hit. Lower Distance is more similar.
type Result struct {
	Chunk    document.Chunk `json:"chunk"`
	Distance float32        `json:"distance"`
}

// DocumentInfo summarizes the chunks indexed for one upload.
type DocumentInfo struct {
	DocID  string `json:"doc_id,omitempty"`
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
}

// Index holds vectors and their chunks in insertion order. Records never move
// once added, which keeps tie-breaking stable across searches.
type Index struct {
	mu      sync.RWMutex
	emb     llm.Embedder
	dim     int
	vectors [][]float32
	chunks  []document.Chunk
}

// New creates an empty index that embeds with emb.
func New(emb llm.Embedder) *Index {
	return &Index{emb: emb}
}

// Build embeds chunks in one batch and returns a new index over them.
func Build(ctx context.Context, chunks []document.Chunk, emb llm.Embedder) (*Index, error) {
	idx := New(emb)
	if err := idx.Add(ctx, chunks); err != nil {
		return nil, err
	}
	return idx, nil
}

// Add embeds chunks and appends them. Either every chunk is added or none is.
func (x *Index) Add(ctx context.Context, chunks []document.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, err := x.emb.EmbedDocuments(ctx, texts)
	if err != nil {
		return &errs.EmbeddingError{Op: "documents", Err: err}
	}
	if len(vecs) != len(chunks) {
		return &errs.EmbeddingError{Op: "documents", Err: fmt.Errorf("got %d vectors for %d chunks", len(vecs), len(chunks))}
	}
	dim := len(vecs[0])
	if dim == 0 {
		return &errs.EmbeddingError{Op: "documents", Err: fmt.Errorf("empty vector")}
	}
	for i, v := range vecs {
		if len(v) != dim {
			return &errs.EmbeddingError{Op: "documents", Err: fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim)}
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.dim != 0 && x.dim != dim {
		return &errs.EmbeddingError{Op: "documents", Err: fmt.Errorf("dimension %d does not match index dimension %d", dim, x.dim)}
	}
	x.dim = dim
	x.vectors = append(x.vectors, vecs...)
	x.chunks = append(x.chunks, chunks...)
	return nil
}

// Search embeds query and returns the k nearest chunks, nearest first. An
// empty index returns no results without calling the embedder.
func (x *Index) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 {
		return nil, errs.Configf("k", "must be positive, got %d", k)
	}
	if x.Len() == 0 {
		return []Result{}, nil
	}
	vec, err := x.emb.EmbedQuery(ctx, query)
	if err != nil {
		return nil, &errs.EmbeddingError{Op: "query", Err: err}
	}
	return x.SearchVector(vec, k)
}

// SearchVector ranks records against a pre-computed query vector. Ties keep
// insertion order.
func (x *Index) SearchVector(vec []float32, k int) ([]Result, error) {
	if k <= 0 {
		return nil, errs.Configf("k", "must be positive, got %d", k)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.vectors) == 0 {
		return []Result{}, nil
	}
	if len(vec) != x.dim {
		return nil, &errs.EmbeddingError{Op: "query", Err: fmt.Errorf("query dimension %d does not match index dimension %d", len(vec), x.dim)}
	}

	type scored struct {
		pos  int
		dist float32
	}
	all := make([]scored, len(x.vectors))
	for i, v := range x.vectors {
		all[i] = scored{pos: i, dist: squaredL2(vec, v)}
	}
	slices.SortStableFunc(all, func(a, b scored) int {
		switch {
		case a.dist < b.dist:
			return -1
		case a.dist > b.dist:
			return 1
		}
		return 0
	})

	n := min(k, len(all))
	out := make([]Result, n)
	for i := range n {
		out[i] = Result{Chunk: x.chunks[all[i].pos], Distance: all[i].dist}
	}
	return out, nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.chunks)
}

// Dimension is 0 until the first record is added.
func (x *Index) Dimension() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dim
}

// Documents lists indexed uploads in first-seen order. Chunks without a DocID
// are grouped by source.
func (x *Index) Documents() []DocumentInfo {
	x.mu.RLock()
	defer x.mu.RUnlock()

	pos := make(map[string]int)
	var out []DocumentInfo
	for _, c := range x.chunks {
		key := "id:" + c.Metadata.DocID
		if c.Metadata.DocID == "" {
			key = "src:" + c.Metadata.Source
		}
		i, ok := pos[key]
		if !ok {
			i = len(out)
			pos[key] = i
			out = append(out, DocumentInfo{DocID: c.Metadata.DocID, Source: c.Metadata.Source})
		}
		out[i].Chunks++
	}
	return out
}

// HasDocument reports whether any chunk carries docID.
func (x *Index) HasDocument(docID string) bool {
	if docID == "" {
		return false
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	for _, c := range x.chunks {
		if c.Metadata.DocID == docID {
			return true
		}
	}
	return false
}
