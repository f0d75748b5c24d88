// Package rag answers questions from retrieved document chunks.
package rag

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/docqa/internal/chunker"
	"github.com/dgallion1/docqa/internal/errs"
	"github.com/dgallion1/docqa/internal/llm"
	"github.com/dgallion1/docqa/internal/vectorindex"
)

// Retriever returns the k chunks nearest to query, nearest first.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]vectorindex.Result, error)
}

var _ Retriever = (*vectorindex.Index)(nil)

// Result is an answer and, when requested, the chunks it was drawn from.
type Result struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources,omitempty"`
}

// AsyncResult carries the outcome of AnswerAsync.
type AsyncResult struct {
	Result *Result
	Err    error
}

type Option func(*Chain)

func WithLogger(l *slog.Logger) Option {
	return func(c *Chain) { c.log = l }
}

// Chain runs retrieve, format, generate. It holds no per-question state and
// is safe for concurrent use.
type Chain struct {
	gen llm.Generator
	log *slog.Logger
}

func NewChain(gen llm.Generator, opts ...Option) *Chain {
	c := &Chain{gen: gen, log: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retrieve returns the prompt for question, or an empty prompt when nothing
// was retrieved.
func (c *Chain) retrieve(ctx context.Context, r Retriever, question string, k int) ([]vectorindex.Result, string, error) {
	if strings.TrimSpace(question) == "" {
		return nil, "", errs.Configf("question", "must not be empty")
	}
	results, err := r.Search(ctx, question, k)
	if err != nil {
		return nil, "", err
	}
	if len(results) == 0 {
		return nil, "", nil
	}
	prompt := BuildPrompt(FormatContext(results), question)
	c.log.Debug("built prompt", "chunks", len(results), "prompt_tokens_est", chunker.EstimateTokens(prompt))
	return results, prompt, nil
}

func finish(answer string, results []vectorindex.Result, withSources bool) *Result {
	res := &Result{Answer: answer}
	if withSources && len(results) > 0 {
		res.Sources = BuildSources(results)
	}
	return res
}

// Answer retrieves k chunks for question and asks the model to answer from
// them. With nothing retrieved it returns InsufficientInfoAnswer without
// calling the model.
func (c *Chain) Answer(ctx context.Context, r Retriever, question string, k int, withSources bool) (*Result, error) {
	start := time.Now()
	results, prompt, err := c.retrieve(ctx, r, question, k)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		c.log.Info("no chunks retrieved", "k", k)
		return &Result{Answer: InsufficientInfoAnswer}, nil
	}

	answer, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, &errs.GenerationError{Err: err}
	}
	c.log.Info("answered question", "chunks", len(results), "duration_ms", time.Since(start).Milliseconds())
	return finish(answer, results, withSources), nil
}

// Stream is Answer with answer fragments passed to fn as they arrive. An
// error returned by fn stops generation and is returned unchanged.
func (c *Chain) Stream(ctx context.Context, r Retriever, question string, k int, withSources bool, fn func(delta string) error) (*Result, error) {
	start := time.Now()
	results, prompt, err := c.retrieve(ctx, r, question, k)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		c.log.Info("no chunks retrieved", "k", k)
		if err := fn(InsufficientInfoAnswer); err != nil {
			return nil, err
		}
		return &Result{Answer: InsufficientInfoAnswer}, nil
	}

	var cbErr error
	answer, err := c.gen.GenerateStream(ctx, prompt, func(delta string) error {
		if err := fn(delta); err != nil {
			cbErr = err
			return err
		}
		return nil
	})
	if cbErr != nil {
		return nil, cbErr
	}
	if err != nil {
		return nil, &errs.GenerationError{Err: err}
	}
	c.log.Info("streamed answer", "chunks", len(results), "duration_ms", time.Since(start).Milliseconds())
	return finish(answer, results, withSources), nil
}

// AnswerAsync runs Answer in a goroutine. The channel receives exactly one
// value and is then closed.
func (c *Chain) AnswerAsync(ctx context.Context, r Retriever, question string, k int, withSources bool) <-chan AsyncResult {
	ch := make(chan AsyncResult, 1)
	go func() {
		defer close(ch)
		res, err := c.Answer(ctx, r, question, k, withSources)
		ch <- AsyncResult{Result: res, Err: err}
	}()
	return ch
}
