package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 4096

	// statusOverloaded is the HTTP status Anthropic uses for overloaded_error.
	statusOverloaded = 529
)

// AnthropicChat calls the Anthropic Messages API.
type AnthropicChat struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	stats      *Stats
	log        *slog.Logger
	backoff    func(int) time.Duration
}

var _ Generator = (*AnthropicChat)(nil)

func NewAnthropicChat(apiKey, model string, opts ...Option) *AnthropicChat {
	o := buildOptions(opts)
	base := o.baseURL
	if base == "" {
		base = AnthropicBaseURL
	}
	return &AnthropicChat{
		apiKey:     apiKey,
		model:      model,
		baseURL:    strings.TrimSuffix(base, "/"),
		httpClient: o.httpClient,
		stats:      o.stats,
		log:        o.log,
		backoff:    o.backoff,
	}
}

func (c *AnthropicChat) Model() string { return c.model }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	Stream      bool               `json:"stream,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *anthropicError `json:"error"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// anthropicEvent is the data payload of one streaming event.
type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *anthropicError `json:"error"`
}

// post sends one Messages request and returns the response for a 200 status.
// The caller closes the body.
func (c *AnthropicChat) post(ctx context.Context, prompt string, stream bool) (*http.Response, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:       c.model,
		MaxTokens:   anthropicMaxTokens,
		Temperature: 0,
		Stream:      stream,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic api: %w", err)
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if retryableStatus(resp.StatusCode) {
		return nil, &RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}
	return nil, fmt.Errorf("anthropic api status %d: %s", resp.StatusCode, Truncate(string(respBody), 200))
}

func (c *AnthropicChat) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	text, err := withRetry(ctx, c.backoff, c.log, "anthropic", func() (string, error) {
		resp, err := c.post(ctx, prompt, false)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return "", fmt.Errorf("read response: %w", err)
		}
		var apiResp anthropicResponse
		if err := json.Unmarshal(respBody, &apiResp); err != nil {
			return "", fmt.Errorf("decode response: %w", err)
		}
		if apiResp.Error != nil {
			return "", fmt.Errorf("anthropic error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
		}
		var sb strings.Builder
		for _, block := range apiResp.Content {
			if block.Type == "text" {
				sb.WriteString(block.Text)
			}
		}
		if sb.Len() == 0 {
			return "", fmt.Errorf("empty response from anthropic")
		}
		return sb.String(), nil
	})
	c.stats.since(start, err)
	return text, err
}

// GenerateStream reads the server-sent event stream and forwards text deltas.
func (c *AnthropicChat) GenerateStream(ctx context.Context, prompt string, fn func(delta string) error) (string, error) {
	start := time.Now()
	var full strings.Builder
	_, err := withRetry(ctx, c.backoff, c.log, "anthropic stream", func() (struct{}, error) {
		resp, err := c.post(ctx, prompt, true)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			data, ok := strings.CutPrefix(scanner.Text(), "data:")
			if !ok {
				continue
			}
			var ev anthropicEvent
			if err := json.Unmarshal([]byte(strings.TrimSpace(data)), &ev); err != nil {
				return struct{}{}, permanent(fmt.Errorf("decode stream event: %w", err))
			}
			switch ev.Type {
			case "content_block_delta":
				if ev.Delta.Type != "text_delta" || ev.Delta.Text == "" {
					continue
				}
				full.WriteString(ev.Delta.Text)
				if err := fn(ev.Delta.Text); err != nil {
					return struct{}{}, permanent(err)
				}
			case "error":
				msg := "unknown"
				if ev.Error != nil {
					msg = ev.Error.Type + ": " + ev.Error.Message
				}
				if full.Len() > 0 {
					return struct{}{}, permanent(fmt.Errorf("anthropic stream error: %s", msg))
				}
				if ev.Error != nil && ev.Error.Type == "overloaded_error" {
					return struct{}{}, &RetryableError{StatusCode: statusOverloaded, Message: msg}
				}
				return struct{}{}, fmt.Errorf("anthropic stream error: %s", msg)
			case "message_stop":
				return struct{}{}, nil
			}
		}
		if err := scanner.Err(); err != nil {
			return struct{}{}, permanent(fmt.Errorf("read stream: %w", err))
		}
		return struct{}{}, permanent(fmt.Errorf("anthropic stream ended without message_stop after %d bytes", full.Len()))
	})
	c.stats.since(start, err)
	if err != nil {
		return full.String(), unwrapPermanent(err)
	}
	return full.String(), nil
}
