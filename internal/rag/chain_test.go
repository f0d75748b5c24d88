package rag

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/dgallion1/docqa/internal/document"
	"github.com/dgallion1/docqa/internal/errs"
	"github.com/dgallion1/docqa/internal/vectorindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRetriever struct {
	results []vectorindex.Result
	err     error
	gotK    int
}

func (f *fakeRetriever) Search(_ context.Context, _ string, k int) ([]vectorindex.Result, error) {
	f.gotK = k
	if f.err != nil {
		return nil, f.err
	}
	if k < len(f.results) {
		return f.results[:k], nil
	}
	return f.results, nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	answer  string
	err     error
	prompts []string
}

func (f *fakeGenerator) record(prompt string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.record(prompt)
	return f.answer, f.err
}

func (f *fakeGenerator) GenerateStream(_ context.Context, prompt string, fn func(string) error) (string, error) {
	f.record(prompt)
	if f.err != nil {
		return "", f.err
	}
	var sent strings.Builder
	for _, word := range strings.SplitAfter(f.answer, " ") {
		if err := fn(word); err != nil {
			return sent.String(), err
		}
		sent.WriteString(word)
	}
	return sent.String(), nil
}

func hit(content, source string, page int) vectorindex.Result {
	return vectorindex.Result{Chunk: document.Chunk{
		Content:  content,
		Metadata: document.Metadata{Source: source, Page: page},
	}}
}

func twoHits() *fakeRetriever {
	return &fakeRetriever{results: []vectorindex.Result{
		hit("Refunds take 5 days.", "policy.pdf", 3),
		hit("Contact support by email.", "faq.md", 0),
	}}
}

func TestFormatContext(t *testing.T) {
	got := FormatContext(twoHits().results)
	want := "[Document 1 - policy.pdf (Page 3)]:\nRefunds take 5 days." +
		"\n\n---\n\n" +
		"[Document 2 - faq.md (Page N/A)]:\nContact support by email."
	assert.Equal(t, want, got)
}

func TestFormatContext_UnknownSource(t *testing.T) {
	got := FormatContext([]vectorindex.Result{hit("text", "", 0)})
	assert.Equal(t, "[Document 1 - Unknown (Page N/A)]:\ntext", got)
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("CTX {question}", "Why?")
	assert.True(t, strings.HasPrefix(p, "You are a helpful assistant"))
	assert.Contains(t, p, `say "I don't have enough information to answer this question."`)
	assert.Contains(t, p, "Always cite your sources")
	assert.Contains(t, p, "Context:\nCTX {question}\n\nQuestion: Why?\n\nAnswer:")
	assert.True(t, strings.HasSuffix(p, "Answer:"))
}

func TestBuildSources(t *testing.T) {
	long := strings.Repeat("é", 250)
	got := BuildSources([]vectorindex.Result{hit("short", "a.txt", 0), hit(long, "b.pdf", 12)})

	require.Len(t, got, 2)
	assert.Equal(t, Source{Content: "short...", Source: "a.txt", Page: "N/A"}, got[0])
	assert.Equal(t, strings.Repeat("é", 200)+"...", got[1].Content)
	assert.Equal(t, "12", got[1].Page)
}

func TestAnswer_WithSources(t *testing.T) {
	gen := &fakeGenerator{answer: "Refunds take 5 days (policy.pdf)."}
	r := twoHits()
	chain := NewChain(gen)

	res, err := chain.Answer(t.Context(), r, "How long do refunds take?", 4, true)
	require.NoError(t, err)
	assert.Equal(t, "Refunds take 5 days (policy.pdf).", res.Answer)
	assert.Equal(t, 4, r.gotK)

	require.Len(t, res.Sources, 2)
	assert.Equal(t, "policy.pdf", res.Sources[0].Source)
	assert.Equal(t, "faq.md", res.Sources[1].Source)

	require.Equal(t, 1, gen.calls())
	assert.Contains(t, gen.prompts[0], FormatContext(r.results))
	assert.Contains(t, gen.prompts[0], "Question: How long do refunds take?")
}

func TestAnswer_WithoutSources(t *testing.T) {
	chain := NewChain(&fakeGenerator{answer: "ok"})
	res, err := chain.Answer(t.Context(), twoHits(), "q", 4, false)
	require.NoError(t, err)
	assert.Nil(t, res.Sources)
}

func TestAnswer_NothingRetrieved(t *testing.T) {
	gen := &fakeGenerator{answer: "should not be used"}
	chain := NewChain(gen)

	res, err := chain.Answer(t.Context(), &fakeRetriever{}, "q", 4, true)
	require.NoError(t, err)
	assert.Equal(t, InsufficientInfoAnswer, res.Answer)
	assert.Empty(t, res.Sources)
	assert.Equal(t, 0, gen.calls())
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	chain := NewChain(&fakeGenerator{})
	_, err := chain.Answer(t.Context(), twoHits(), "  ", 4, false)
	var cfgErr *errs.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestAnswer_RetrievalErrorKeepsType(t *testing.T) {
	embErr := &errs.EmbeddingError{Op: "query", Err: errors.New("timeout")}
	chain := NewChain(&fakeGenerator{})

	_, err := chain.Answer(t.Context(), &fakeRetriever{err: embErr}, "q", 4, false)
	var got *errs.EmbeddingError
	require.ErrorAs(t, err, &got)
	assert.Same(t, embErr, got)
}

func TestAnswer_GenerationError(t *testing.T) {
	cause := errors.New("model overloaded")
	chain := NewChain(&fakeGenerator{err: cause})

	_, err := chain.Answer(t.Context(), twoHits(), "q", 4, false)
	var genErr *errs.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.ErrorIs(t, err, cause)
}

func TestStream_DeliversFragments(t *testing.T) {
	chain := NewChain(&fakeGenerator{answer: "Five business days."})

	var parts []string
	res, err := chain.Stream(t.Context(), twoHits(), "q", 4, true, func(d string) error {
		parts = append(parts, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Five ", "business ", "days."}, parts)
	assert.Equal(t, strings.Join(parts, ""), res.Answer)
	assert.Len(t, res.Sources, 2)
}

func TestStream_NothingRetrieved(t *testing.T) {
	gen := &fakeGenerator{}
	chain := NewChain(gen)

	var parts []string
	res, err := chain.Stream(t.Context(), &fakeRetriever{}, "q", 4, true, func(d string) error {
		parts = append(parts, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{InsufficientInfoAnswer}, parts)
	assert.Equal(t, InsufficientInfoAnswer, res.Answer)
	assert.Equal(t, 0, gen.calls())
}

func TestStream_CallbackErrorReturnedUnchanged(t *testing.T) {
	stop := errors.New("client disconnected")
	chain := NewChain(&fakeGenerator{answer: "a b c"})

	_, err := chain.Stream(t.Context(), twoHits(), "q", 4, false, func(string) error { return stop })
	require.ErrorIs(t, err, stop)
	var genErr *errs.GenerationError
	assert.False(t, errors.As(err, &genErr))
}

func TestStream_GenerationError(t *testing.T) {
	chain := NewChain(&fakeGenerator{err: errors.New("boom")})
	_, err := chain.Stream(t.Context(), twoHits(), "q", 4, false, func(string) error { return nil })
	var genErr *errs.GenerationError
	require.ErrorAs(t, err, &genErr)
}

func TestAnswerAsync(t *testing.T) {
	chain := NewChain(&fakeGenerator{answer: "async answer"})

	ch := chain.AnswerAsync(t.Context(), twoHits(), "q", 2, false)
	got, ok := <-ch
	require.True(t, ok)
	require.NoError(t, got.Err)
	assert.Equal(t, "async answer", got.Result.Answer)

	_, ok = <-ch
	assert.False(t, ok, "channel must be closed after one value")
}

func TestAnswerAsync_Error(t *testing.T) {
	chain := NewChain(&fakeGenerator{})
	got := <-chain.AnswerAsync(t.Context(), &fakeRetriever{err: errors.New("down")}, "q", 2, false)
	require.Error(t, got.Err)
	assert.Nil(t, got.Result)
}

func TestAnswer_ConcurrentQuestions(t *testing.T) {
	gen := &fakeGenerator{answer: "ok"}
	chain := NewChain(gen)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := chain.Answer(context.Background(), twoHits(), "q", 4, true)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, gen.calls())
}
