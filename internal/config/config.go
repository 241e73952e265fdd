// Package config loads StudyMate's optional YAML file and exports its values
// as the environment variables every other package reads. A variable that
// is already set, from the shell or a .env file, is left alone.
//
// File search order:
//  1. --config CLI flag
//  2. STUDYMATE_CONFIG
//  3. ~/.studymate/config.yaml
//  4. ./studymate.yaml
//
// The first two must exist when given. Unknown keys are rejected so a typo
// does not silently fall back to a default.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/segment"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Model configures the generation chat model provider.
	Model ModelConfig `yaml:"model"`

	// Generation configures retry and pacing of generation calls.
	Generation GenerationConfig `yaml:"generation"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Chunking configures the passage window.
	Chunking ChunkingConfig `yaml:"chunking"`

	// Index configures the vector index backend.
	Index IndexConfig `yaml:"index"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Store configures the library snapshot database.
	Store StoreConfig `yaml:"store"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingConfig `yaml:"tracing"`
}

// ModelConfig holds chat model settings.
type ModelConfig struct {
	// Provider selects the backend: ollama, openai, azure, ark, gemini.
	Provider string `yaml:"provider"`

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature controls response randomness, from 0 to 2.
	Temperature float32 `yaml:"temperature"`

	Ollama OllamaConfig `yaml:"ollama"`
	OpenAI OpenAIConfig `yaml:"openai"`
	Azure  AzureConfig  `yaml:"azure"`
	Ark    ArkConfig    `yaml:"ark"`
	Gemini GeminiConfig `yaml:"gemini"`
}

// OllamaConfig holds Ollama provider settings.
type OllamaConfig struct {
	// Host is the Ollama API endpoint.
	Host string `yaml:"host"`
	// Model is the Ollama model name.
	Model string `yaml:"model"`
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the OpenAI model name.
	Model string `yaml:"model"`
	// BaseURL points at an OpenAI-compatible endpoint.
	BaseURL string `yaml:"base_url"`
}

// AzureConfig holds Azure OpenAI provider settings.
type AzureConfig struct {
	// APIKey is the Azure OpenAI API key. Prefer env var AZURE_OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the Azure OpenAI resource endpoint.
	Endpoint string `yaml:"endpoint"`
	// Deployment is the Azure OpenAI deployment name.
	Deployment string `yaml:"deployment"`
	// APIVersion is the Azure OpenAI API version.
	APIVersion string `yaml:"api_version"`
}

// ArkConfig holds Volcengine Ark provider settings.
type ArkConfig struct {
	// APIKey is the Ark API key. Prefer env var ARK_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the Ark endpoint or model id.
	Model string `yaml:"model"`
	// BaseURL overrides the regional Ark endpoint.
	BaseURL string `yaml:"base_url"`
}

// GeminiConfig holds Google Gemini provider settings.
type GeminiConfig struct {
	// APIKey is the Google API key. Prefer env var GOOGLE_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the Gemini model name.
	Model string `yaml:"model"`
}

// GenerationConfig holds retry settings for rate-limited generation calls.
type GenerationConfig struct {
	// RetryDelay is the first backoff delay, e.g. "2s".
	RetryDelay string `yaml:"retry_delay"`
	// MaxRetries is the total number of attempts per call.
	MaxRetries int `yaml:"max_retries"`
	// RequestsPerSecond paces outgoing calls. Zero means unpaced.
	RequestsPerSecond float32 `yaml:"requests_per_second"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (hash, ollama, openai, azure).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
}

// ChunkingConfig holds the passage window in words.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// IndexConfig selects and configures the vector index.
type IndexConfig struct {
	// Backend is flat, qdrant or pgvector.
	Backend  string         `yaml:"backend"`
	Qdrant   QdrantConfig   `yaml:"qdrant"`
	PGVector PGVectorConfig `yaml:"pgvector"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// PGVectorConfig holds Postgres/pgvector settings.
type PGVectorConfig struct {
	// URL is the Postgres connection string. Prefer env var PGVECTOR_URL.
	URL string `yaml:"url"`
	// Table holds the vectors.
	Table string `yaml:"table"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`
	// APIKey is the Bearer token for API authentication. Prefer env var STUDYMATE_API_KEY.
	APIKey string `yaml:"api_key"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// StoreConfig holds snapshot database settings.
type StoreConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to keep the
	// library in memory only.
	DBPath string `yaml:"db_path"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key"`
	// Host is the Langfuse API host.
	Host string `yaml:"host"`
}

// binding ties one environment variable to the YAML value that can supply it.
type binding struct {
	env   string
	value string
}

// bindings lists every YAML value that has an environment variable. Zero
// values render as "" and are not exported.
func (c *Config) bindings() []binding {
	return []binding{
		{"MODEL_PROVIDER", c.Model.Provider},
		{"MODEL_MAX_TOKENS", intStr(c.Model.MaxTokens)},
		{"MODEL_TEMPERATURE", float32Str(c.Model.Temperature)},
		{"OLLAMA_HOST", c.Model.Ollama.Host},
		{"OLLAMA_MODEL", c.Model.Ollama.Model},
		{"OPENAI_API_KEY", c.Model.OpenAI.APIKey},
		{"OPENAI_MODEL", c.Model.OpenAI.Model},
		{"OPENAI_BASE_URL", c.Model.OpenAI.BaseURL},
		{"AZURE_OPENAI_API_KEY", c.Model.Azure.APIKey},
		{"AZURE_OPENAI_ENDPOINT", c.Model.Azure.Endpoint},
		{"AZURE_OPENAI_DEPLOYMENT", c.Model.Azure.Deployment},
		{"AZURE_OPENAI_API_VERSION", c.Model.Azure.APIVersion},
		{"ARK_API_KEY", c.Model.Ark.APIKey},
		{"ARK_MODEL", c.Model.Ark.Model},
		{"ARK_BASE_URL", c.Model.Ark.BaseURL},
		{"GOOGLE_API_KEY", c.Model.Gemini.APIKey},
		{"GEMINI_MODEL", c.Model.Gemini.Model},
		{"GENERATION_RETRY_DELAY", c.Generation.RetryDelay},
		{"GENERATION_MAX_RETRIES", intStr(c.Generation.MaxRetries)},
		{"GENERATION_RPS", float32Str(c.Generation.RequestsPerSecond)},
		{"EMBEDDING_PROVIDER", c.Embedding.Provider},
		{"EMBEDDING_MODEL", c.Embedding.Model},
		{"EMBEDDING_DIMENSIONS", intStr(c.Embedding.Dimensions)},
		{"EMBEDDING_API_KEY", c.Embedding.APIKey},
		{"EMBEDDING_ENDPOINT", c.Embedding.Endpoint},
		{"MAX_CHUNK_SIZE", intStr(c.Chunking.Size)},
		{"CHUNK_OVERLAP", intStr(c.Chunking.Overlap)},
		{"VECTOR_BACKEND", c.Index.Backend},
		{"QDRANT_HOST", c.Index.Qdrant.Host},
		{"QDRANT_PORT", intStr(c.Index.Qdrant.Port)},
		{"QDRANT_COLLECTION", c.Index.Qdrant.Collection},
		{"QDRANT_API_KEY", c.Index.Qdrant.APIKey},
		{"QDRANT_TLS", boolStr(c.Index.Qdrant.TLS)},
		{"PGVECTOR_URL", c.Index.PGVector.URL},
		{"PGVECTOR_TABLE", c.Index.PGVector.Table},
		{"STUDYMATE_ADDR", c.Server.Addr},
		{"STUDYMATE_API_KEY", c.Server.APIKey},
		{"LOG_LEVEL", c.Logging.Level},
		{"LOG_FORMAT", c.Logging.Format},
		{"STUDYMATE_DB", c.Store.DBPath},
		{"LANGFUSE_PUBLIC_KEY", c.Tracing.PublicKey},
		{"LANGFUSE_SECRET_KEY", c.Tracing.SecretKey},
		{"LANGFUSE_HOST", c.Tracing.Host},
	}
}

// Accepted backend names per section. Empty means "use the default".
var (
	modelProviders     = []string{"", "ollama", "openai", "azure", "ark", "gemini"}
	embeddingProviders = []string{"", "hash", "ollama", "openai", "azure"}
	indexBackends      = []string{"", "flat", "qdrant", "pgvector"}
	logFormats         = []string{"", "text", "json"}
)

// Validate reports every value in c that would be rejected later, when the
// component that reads it is built.
func (c *Config) Validate() error {
	var errs []error
	oneOf := func(field, v string, allowed []string) {
		if !slices.Contains(allowed, v) {
			errs = append(errs, fmt.Errorf("%s: unknown value %q, valid values: %v", field, v, allowed[1:]))
		}
	}

	oneOf("model.provider", c.Model.Provider, modelProviders)
	oneOf("embedding.provider", c.Embedding.Provider, embeddingProviders)
	oneOf("index.backend", c.Index.Backend, indexBackends)
	oneOf("logging.format", c.Logging.Format, logFormats)

	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		errs = append(errs, fmt.Errorf("model.temperature: %v is outside [0, 2]", c.Model.Temperature))
	}
	if c.Generation.RetryDelay != "" {
		if d, err := time.ParseDuration(c.Generation.RetryDelay); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("generation.retry_delay: %q is not a positive duration", c.Generation.RetryDelay))
		}
	}
	if c.Generation.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("generation.max_retries: must not be negative"))
	}
	if c.Embedding.Dimensions < 0 {
		errs = append(errs, fmt.Errorf("embedding.dimensions: must not be negative"))
	}

	if c.Chunking.Size != 0 || c.Chunking.Overlap != 0 {
		window := segment.DefaultConfig()
		if c.Chunking.Size != 0 {
			window.ChunkSize = c.Chunking.Size
		}
		if c.Chunking.Overlap != 0 {
			window.ChunkOverlap = c.Chunking.Overlap
		}
		if err := window.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("chunking: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Load resolves and validates the YAML file and exports its non-empty
// values. It returns the path loaded, or "" when there is no file.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path, err := resolveConfigPath(explicitPath)
	if err != nil {
		return "", err
	}
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	cfg, err := parse(path)
	if err != nil {
		return "", err
	}

	var applied, shadowed int
	for _, b := range cfg.bindings() {
		if b.value == "" {
			continue
		}
		if os.Getenv(b.env) != "" {
			shadowed++
			log.Debug("config: env var overrides YAML", slog.String("key", b.env))
			continue
		}
		if err := os.Setenv(b.env, b.value); err != nil {
			return "", fmt.Errorf("config: set %s: %w", b.env, err)
		}
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
		slog.Int("keys_overridden", shadowed),
	)
	return path, nil
}

// parse decodes and validates the file at path. An empty file is valid.
func parse(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

// resolveConfigPath returns the config file to load, or "" if none of the
// default locations has one. A path given by flag or STUDYMATE_CONFIG must
// exist.
func resolveConfigPath(explicit string) (string, error) {
	for _, p := range []string{explicit, os.Getenv("STUDYMATE_CONFIG")} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("config: %w", err)
		}
		return p, nil
	}

	var candidates []string
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".studymate", "config.yaml"))
	}
	candidates = append(candidates, "studymate.yaml")

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}

func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
