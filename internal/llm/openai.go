package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

func newOpenAIClient(apiKey string, o clientOptions) openai.Client {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(o.httpClient),
		// Retries are handled by withRetry so they show up in logs and stats.
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimSuffix(o.baseURL, "/")+"/"))
	}
	return openai.NewClient(reqOpts...)
}

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client     openai.Client
	model      string
	dimensions int
	stats      *Stats
	log        *slog.Logger
	backoff    func(int) time.Duration
}

var _ Embedder = (*OpenAIEmbedder)(nil)

func NewOpenAIEmbedder(apiKey, model string, opts ...Option) *OpenAIEmbedder {
	o := buildOptions(opts)
	return &OpenAIEmbedder{
		client:     newOpenAIClient(apiKey, o),
		model:      model,
		dimensions: o.dimensions,
		stats:      o.stats,
		log:        o.log,
		backoff:    o.backoff,
	}
}

func (e *OpenAIEmbedder) Model() string { return e.model }

// EmbedDocuments embeds texts in batches of at most 100, preserving input order.
func (e *OpenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		vecs, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	}
	if e.dimensions > 0 {
		params.Dimensions = openai.Int(int64(e.dimensions))
	}

	start := time.Now()
	resp, err := withRetry(ctx, e.backoff, e.log, "embeddings", func() (*openai.CreateEmbeddingResponse, error) {
		return e.client.Embeddings.New(ctx, params)
	})
	e.stats.since(start, err)
	if err != nil {
		return nil, fmt.Errorf("embeddings request: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings response has %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(texts) || vecs[d.Index] != nil {
			return nil, fmt.Errorf("embeddings response has invalid index %d", d.Index)
		}
		v := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			v[i] = float32(f)
		}
		vecs[d.Index] = v
	}
	e.log.Debug("embedded batch", "inputs", len(texts), "model", e.model, "duration_ms", time.Since(start).Milliseconds())
	return vecs, nil
}

// OpenAIChat generates answers through an OpenAI-compatible chat completions
// endpoint: OpenAI itself, OpenRouter or Groq.
type OpenAIChat struct {
	client  openai.Client
	model   string
	stats   *Stats
	log     *slog.Logger
	backoff func(int) time.Duration
}

var _ Generator = (*OpenAIChat)(nil)

func NewOpenAIChat(apiKey, model string, opts ...Option) *OpenAIChat {
	o := buildOptions(opts)
	return &OpenAIChat{
		client:  newOpenAIClient(apiKey, o),
		model:   model,
		stats:   o.stats,
		log:     o.log,
		backoff: o.backoff,
	}
}

func (c *OpenAIChat) Model() string { return c.model }

func (c *OpenAIChat) params(prompt string) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0),
	}
}

func (c *OpenAIChat) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	resp, err := withRetry(ctx, c.backoff, c.log, "chat", func() (*openai.ChatCompletion, error) {
		return c.client.Chat.Completions.New(ctx, c.params(prompt))
	})
	c.stats.since(start, err)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateStream retries only while nothing has been delivered to fn.
func (c *OpenAIChat) GenerateStream(ctx context.Context, prompt string, fn func(delta string) error) (string, error) {
	start := time.Now()
	var full strings.Builder
	_, err := withRetry(ctx, c.backoff, c.log, "chat stream", func() (struct{}, error) {
		stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(prompt))
		defer stream.Close()
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			full.WriteString(delta)
			if err := fn(delta); err != nil {
				return struct{}{}, permanent(err)
			}
		}
		if err := stream.Err(); err != nil {
			if full.Len() > 0 {
				return struct{}{}, permanent(err)
			}
			return struct{}{}, err
		}
		return struct{}{}, nil
	})
	c.stats.since(start, err)
	if err != nil {
		return full.String(), fmt.Errorf("chat stream: %w", unwrapPermanent(err))
	}
	return full.String(), nil
}
