// Package llm holds the embedding and language-model boundaries and the
// provider clients behind them.
package llm

import (
	"context"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"
)

const (
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	GroqBaseURL       = "https://api.groq.com/openai/v1"
	AnthropicBaseURL  = "https://api.anthropic.com/v1"

	// embedBatchSize is the largest input list sent in one embeddings request.
	embedBatchSize = 100

	defaultTimeout = 120 * time.Second
)

// Embedder turns text into vectors. Every vector from one Embedder has the
// same dimension.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator produces an answer for a prompt. GenerateStream calls fn with
// each text fragment as it arrives; the fragments concatenate to the
// returned text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateStream(ctx context.Context, prompt string, fn func(delta string) error) (string, error)
}

// Truncate returns the first n characters of s followed by "..." when s is
// longer than n.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// Option configures a provider client.
type Option func(*clientOptions)

type clientOptions struct {
	baseURL    string
	stats      *Stats
	log        *slog.Logger
	dimensions int
	httpClient *http.Client
	backoff    func(int) time.Duration
}

func WithBaseURL(u string) Option {
	return func(o *clientOptions) { o.baseURL = u }
}

// WithStats records the latency of every call into s.
func WithStats(s *Stats) Option {
	return func(o *clientOptions) { o.stats = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *clientOptions) { o.log = l }
}

// WithDimensions requests vectors of the given size. Zero keeps the model default.
func WithDimensions(d int) Option {
	return func(o *clientOptions) { o.dimensions = d }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithBackoff overrides the wait between retries.
func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(o *clientOptions) { o.backoff = fn }
}

func buildOptions(opts []Option) clientOptions {
	o := clientOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return o
}
