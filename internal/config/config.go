package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/docqa/internal/chunker"
	"github.com/dgallion1/docqa/internal/errs"
	"github.com/dgallion1/docqa/internal/llm"
	"github.com/dgallion1/docqa/internal/parser"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigPathEnv names the environment variable holding an optional YAML file.
const ConfigPathEnv = "DOCQA_CONFIG"

const (
	ProviderOpenRouter = "openrouter"
	ProviderGroq       = "groq"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
)

type Config struct {
	Port string `yaml:"port"`

	// LLMProvider pins the answering provider. Empty means the first key set,
	// in the order below.
	LLMProvider string `yaml:"llm_provider"`

	// Provider keys. The first one set, in this order, answers questions.
	OpenRouterAPIKey string `yaml:"openrouter_api_key"`
	GroqAPIKey       string `yaml:"groq_api_key"`
	OpenAIAPIKey     string `yaml:"openai_api_key"`
	AnthropicAPIKey  string `yaml:"anthropic_api_key"`

	// Models
	LLMModel            string `yaml:"llm_model"`
	AnthropicModel      string `yaml:"anthropic_model"`
	EmbeddingModel      string `yaml:"embedding_model"`
	EmbeddingDimensions int    `yaml:"embedding_dimensions"`

	// Retrieval
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	RetrievalK   int `yaml:"retrieval_k"`

	// Paths
	DataDir         string `yaml:"data_dir"`
	VectorStorePath string `yaml:"vector_store_path"`

	// Sessions
	MemoryMaxPairs int `yaml:"memory_max_pairs"`

	// Worker pool
	WorkerCount  int `yaml:"worker_count"`
	MaxQueueSize int `yaml:"max_queue_size"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// Job state
	JobTTL time.Duration `yaml:"job_ttl"`

	// PDF
	PDFFallbackPdftotext bool `yaml:"pdf_fallback_pdftotext"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func Default() Config {
	return Config{
		Port: "8090",

		LLMModel:       "gpt-4o-mini",
		AnthropicModel: "claude-sonnet-4-5-20250929",
		EmbeddingModel: "text-embedding-3-small",

		ChunkSize:    800,
		ChunkOverlap: 200,
		RetrievalK:   4,

		DataDir:         "data",
		VectorStorePath: "data/vectorstore",

		MemoryMaxPairs: 10,

		WorkerCount:  2,
		MaxQueueSize: 100,

		MaxUploadBytes: 52428800, // 50MB

		JobTTL: 1 * time.Hour,

		PDFFallbackPdftotext: true,

		LogLevel:  "info",
		LogFormat: "json",
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (or $DOCQA_CONFIG when path is empty), then .env, then the environment.
// Malformed numbers are errors, never silently replaced by defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(ConfigPathEnv)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errs.Configf(path, "invalid yaml: %v", err)
		}
	}

	// A missing .env is fine; existing environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	e := &envReader{}
	cfg.Port = e.str("PORT", cfg.Port)

	cfg.LLMProvider = strings.ToLower(e.str("LLM_PROVIDER", cfg.LLMProvider))
	cfg.OpenRouterAPIKey = e.str("OPENROUTER_API_KEY", cfg.OpenRouterAPIKey)
	cfg.GroqAPIKey = e.str("GROQ_API_KEY", cfg.GroqAPIKey)
	cfg.OpenAIAPIKey = e.str("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.AnthropicAPIKey = e.str("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)

	cfg.LLMModel = e.str("LLM_MODEL", cfg.LLMModel)
	cfg.AnthropicModel = e.str("ANTHROPIC_MODEL", cfg.AnthropicModel)
	cfg.EmbeddingModel = e.str("EMBEDDING_MODEL", cfg.EmbeddingModel)
	cfg.EmbeddingDimensions = e.integer("EMBEDDING_DIMENSIONS", cfg.EmbeddingDimensions)

	cfg.ChunkSize = e.integer("CHUNK_SIZE", cfg.ChunkSize)
	cfg.ChunkOverlap = e.integer("CHUNK_OVERLAP", cfg.ChunkOverlap)
	cfg.RetrievalK = e.integer("RETRIEVAL_K", cfg.RetrievalK)

	cfg.DataDir = e.str("DATA_DIR", cfg.DataDir)
	cfg.VectorStorePath = e.str("VECTOR_STORE_PATH", cfg.VectorStorePath)

	cfg.MemoryMaxPairs = e.integer("MEMORY_MAX_PAIRS", cfg.MemoryMaxPairs)

	cfg.WorkerCount = e.integer("WORKER_COUNT", cfg.WorkerCount)
	cfg.MaxQueueSize = e.integer("MAX_QUEUE_SIZE", cfg.MaxQueueSize)
	cfg.MaxUploadBytes = e.integer64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.JobTTL = e.duration("JOB_TTL", cfg.JobTTL)
	cfg.PDFFallbackPdftotext = e.boolean("PDF_FALLBACK_PDFTOTEXT", cfg.PDFFallbackPdftotext)

	cfg.LogLevel = e.str("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = e.str("LOG_FORMAT", cfg.LogFormat)

	if e.err != nil {
		return Config{}, e.err
	}
	return cfg, nil
}

// Validate checks the settings needed to ingest and answer.
func (c Config) Validate() error {
	if err := c.ChunkerConfig().Validate(); err != nil {
		return err
	}
	if c.RetrievalK <= 0 {
		return errs.Configf("RETRIEVAL_K", "must be positive, got %d", c.RetrievalK)
	}
	if c.EmbeddingDimensions < 0 {
		return errs.Configf("EMBEDDING_DIMENSIONS", "must not be negative, got %d", c.EmbeddingDimensions)
	}
	if c.WorkerCount <= 0 {
		return errs.Configf("WORKER_COUNT", "must be positive, got %d", c.WorkerCount)
	}
	if c.MaxQueueSize <= 0 {
		return errs.Configf("MAX_QUEUE_SIZE", "must be positive, got %d", c.MaxQueueSize)
	}
	if c.MemoryMaxPairs < 0 {
		return errs.Configf("MEMORY_MAX_PAIRS", "must not be negative, got %d", c.MemoryMaxPairs)
	}
	if c.MaxUploadBytes <= 0 {
		return errs.Configf("MAX_UPLOAD_BYTES", "must be positive, got %d", c.MaxUploadBytes)
	}
	switch c.LLMProvider {
	case "":
	case ProviderOpenRouter, ProviderGroq, ProviderOpenAI, ProviderAnthropic:
		if c.providerKey(c.LLMProvider) == "" {
			return errs.Configf("LLM_PROVIDER", "provider %q has no API key configured", c.LLMProvider)
		}
	default:
		return errs.Configf("LLM_PROVIDER", "unknown provider %q", c.LLMProvider)
	}
	if c.Provider() == "" {
		return errs.Configf("", "no LLM API key configured; set OPENROUTER_API_KEY, GROQ_API_KEY, OPENAI_API_KEY, or ANTHROPIC_API_KEY")
	}
	if key, _ := c.EmbeddingCredentials(); key == "" {
		return errs.Configf("", "embeddings require OPENROUTER_API_KEY or OPENAI_API_KEY")
	}
	return nil
}

// Provider returns LLMProvider when set, else the provider chosen by key
// precedence, or "" when no key is set.
func (c Config) Provider() string {
	if c.LLMProvider != "" {
		return c.LLMProvider
	}
	switch {
	case c.OpenRouterAPIKey != "":
		return ProviderOpenRouter
	case c.GroqAPIKey != "":
		return ProviderGroq
	case c.OpenAIAPIKey != "":
		return ProviderOpenAI
	case c.AnthropicAPIKey != "":
		return ProviderAnthropic
	}
	return ""
}

// LLMBaseURL is empty for providers that use their client's default.
func (c Config) LLMBaseURL() string {
	switch c.Provider() {
	case ProviderOpenRouter:
		return llm.OpenRouterBaseURL
	case ProviderGroq:
		return llm.GroqBaseURL
	}
	return ""
}

func (c Config) LLMAPIKey() string {
	return c.providerKey(c.Provider())
}

func (c Config) providerKey(provider string) string {
	switch provider {
	case ProviderOpenRouter:
		return c.OpenRouterAPIKey
	case ProviderGroq:
		return c.GroqAPIKey
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderAnthropic:
		return c.AnthropicAPIKey
	}
	return ""
}

// Model is the chat model for the active provider.
func (c Config) Model() string {
	if c.Provider() == ProviderAnthropic {
		return c.AnthropicModel
	}
	return c.LLMModel
}

// EmbeddingCredentials returns the key and base URL for embeddings. Groq and
// Anthropic have no embeddings endpoint, so only OpenRouter and OpenAI count.
func (c Config) EmbeddingCredentials() (apiKey, baseURL string) {
	switch {
	case c.OpenRouterAPIKey != "":
		return c.OpenRouterAPIKey, llm.OpenRouterBaseURL
	case c.OpenAIAPIKey != "":
		return c.OpenAIAPIKey, ""
	}
	return "", ""
}

func (c Config) ChunkerConfig() chunker.Config {
	return chunker.Config{ChunkSize: c.ChunkSize, ChunkOverlap: c.ChunkOverlap}
}

func (c Config) ParserOptions() parser.Options {
	return parser.Options{PDFFallbackPdftotext: c.PDFFallbackPdftotext}
}

// envReader keeps the first parse error so Load can report it once.
type envReader struct {
	err error
}

func (e *envReader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) fail(key, v, kind string) {
	if e.err == nil {
		e.err = errs.Configf(key, "%q is not a valid %s", v, kind)
	}
}

func (e *envReader) str(key, fallback string) string {
	if v, ok := e.lookup(key); ok {
		return v
	}
	return fallback
}

func (e *envReader) integer(key string, fallback int) int {
	v, ok := e.lookup(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, "integer")
		return fallback
	}
	return n
}

func (e *envReader) integer64(key string, fallback int64) int64 {
	v, ok := e.lookup(key)
	if !ok {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.fail(key, v, "integer")
		return fallback
	}
	return n
}

func (e *envReader) boolean(key string, fallback bool) bool {
	v, ok := e.lookup(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, "boolean")
		return fallback
	}
	return b
}

func (e *envReader) duration(key string, fallback time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, "duration")
		return fallback
	}
	return d
}
