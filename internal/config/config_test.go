package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/logging"
)

// unsetEnv clears keys for the duration of the test. t.Setenv registers the
// restore; Unsetenv makes the key truly absent rather than empty.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	t.Parallel()

	_, err := Load("/nonexistent/path/config.yaml", logging.Discard())
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("want fs.ErrNotExist, got %v", err)
	}
}

func TestLoad_NoFileAnywhere(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("STUDYMATE_CONFIG", "")
	t.Chdir(dir)

	path, err := Load("", logging.Discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("want empty path, got %q", path)
	}
}

func TestLoad_SearchOrder(t *testing.T) {
	home := t.TempDir()
	work := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("STUDYMATE_CONFIG", "")
	t.Chdir(work)

	local := filepath.Join(work, "studymate.yaml")
	if err := os.WriteFile(local, []byte("logging:\n  level: warn\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got, err := resolveConfigPath(""); err != nil || got != "studymate.yaml" {
		t.Errorf("want ./studymate.yaml, got %q (err %v)", got, err)
	}

	homeCfg := filepath.Join(home, ".studymate", "config.yaml")
	if err := os.MkdirAll(filepath.Dir(homeCfg), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(homeCfg, []byte("logging:\n  level: warn\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got, _ := resolveConfigPath(""); got != homeCfg {
		t.Errorf("home config should win over ./studymate.yaml, got %q", got)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: azure
  max_tokens: 2048
  temperature: 0.3
  azure:
    endpoint: https://my-resource.openai.azure.com
    deployment: gpt-4o
    api_version: "2025-04-01-preview"
generation:
  retry_delay: 500ms
  max_retries: 5
embedding:
  provider: ollama
  model: nomic-embed-text
chunking:
  size: 300
  overlap: 50
index:
  backend: qdrant
  qdrant:
    host: qdrant.internal
    port: 6334
    tls: true
store:
  db_path: /tmp/library.db
logging:
  level: debug
  format: json
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	checks := map[string]string{
		"MODEL_PROVIDER":           "azure",
		"MODEL_MAX_TOKENS":         "2048",
		"MODEL_TEMPERATURE":        "0.3",
		"AZURE_OPENAI_ENDPOINT":    "https://my-resource.openai.azure.com",
		"AZURE_OPENAI_DEPLOYMENT":  "gpt-4o",
		"AZURE_OPENAI_API_VERSION": "2025-04-01-preview",
		"GENERATION_RETRY_DELAY":   "500ms",
		"GENERATION_MAX_RETRIES":   "5",
		"EMBEDDING_PROVIDER":       "ollama",
		"EMBEDDING_MODEL":          "nomic-embed-text",
		"MAX_CHUNK_SIZE":           "300",
		"CHUNK_OVERLAP":            "50",
		"VECTOR_BACKEND":           "qdrant",
		"QDRANT_HOST":              "qdrant.internal",
		"QDRANT_PORT":              "6334",
		"QDRANT_TLS":               "true",
		"STUDYMATE_DB":             "/tmp/library.db",
		"LOG_LEVEL":                "debug",
		"LOG_FORMAT":               "json",
	}
	keys := make([]string, 0, len(checks))
	for k := range checks {
		keys = append(keys, k)
	}
	unsetEnv(t, keys...)

	loaded, err := Load(cfgPath, logging.Discard())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: want %q, got %q", cfgPath, loaded)
	}

	for k, want := range checks {
		if got := os.Getenv(k); got != want {
			t.Errorf("%s: want %q, got %q", k, want, got)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: ollama
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("MODEL_PROVIDER", "gemini")

	if _, err := Load(cfgPath, logging.Discard()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := os.Getenv("MODEL_PROVIDER"); got != "gemini" {
		t.Errorf("MODEL_PROVIDER: want env value %q, got %q", "gemini", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Parallel()

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(cfgPath, logging.Discard()); err == nil {
		t.Fatal("want error for invalid YAML")
	}
}

func TestResolveConfigPath_EnvVar(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "sm.yaml")
	if err := os.WriteFile(cfgPath, []byte("logging:\n  level: warn\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STUDYMATE_CONFIG", cfgPath)

	if got, err := resolveConfigPath(""); err != nil || got != cfgPath {
		t.Errorf("want %q, got %q (err %v)", cfgPath, got, err)
	}
	if _, err := resolveConfigPath("/does/not/exist.yaml"); err == nil {
		t.Error("explicit missing path: want an error even when STUDYMATE_CONFIG exists")
	}

	t.Setenv("STUDYMATE_CONFIG", "/does/not/exist.yaml")
	if _, err := resolveConfigPath(""); err == nil {
		t.Error("missing STUDYMATE_CONFIG: want an error")
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	t.Parallel()

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if got, err := Load(cfgPath, logging.Discard()); err != nil || got != cfgPath {
		t.Errorf("want empty file accepted, got %q (err %v)", got, err)
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	t.Parallel()

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("chunking:\n  sise: 300\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(cfgPath, logging.Discard())
	if err == nil || !strings.Contains(err.Error(), "sise") {
		t.Fatalf("want an error naming the unknown key, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "zero value", cfg: Config{}},
		{name: "valid", cfg: Config{
			Model:      ModelConfig{Provider: "gemini", Temperature: 0.7},
			Generation: GenerationConfig{RetryDelay: "1500ms", MaxRetries: 4},
			Embedding:  EmbeddingConfig{Provider: "ollama"},
			Chunking:   ChunkingConfig{Size: 300, Overlap: 60},
			Index:      IndexConfig{Backend: "pgvector"},
			Logging:    LoggingConfig{Format: "json"},
		}},
		{name: "unknown model provider", cfg: Config{Model: ModelConfig{Provider: "bedrock"}}, wantErr: "model.provider"},
		{name: "unknown embedder", cfg: Config{Embedding: EmbeddingConfig{Provider: "cohere"}}, wantErr: "embedding.provider"},
		{name: "unknown index", cfg: Config{Index: IndexConfig{Backend: "faiss"}}, wantErr: "index.backend"},
		{name: "unknown log format", cfg: Config{Logging: LoggingConfig{Format: "xml"}}, wantErr: "logging.format"},
		{name: "temperature", cfg: Config{Model: ModelConfig{Temperature: 3}}, wantErr: "model.temperature"},
		{name: "retry delay", cfg: Config{Generation: GenerationConfig{RetryDelay: "soon"}}, wantErr: "generation.retry_delay"},
		{name: "negative retries", cfg: Config{Generation: GenerationConfig{MaxRetries: -1}}, wantErr: "generation.max_retries"},
		{name: "overlap too large", cfg: Config{Chunking: ChunkingConfig{Size: 100, Overlap: 100}}, wantErr: "chunk_overlap"},
		{name: "size below default overlap", cfg: Config{Chunking: ChunkingConfig{Size: 80}}, wantErr: "chunk_overlap"},
		{name: "negative size", cfg: Config{Chunking: ChunkingConfig{Size: -1}}, wantErr: "chunk_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("want error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestFloat32Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.3, "0.3"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float32Str(tt.in); got != tt.want {
			t.Errorf("float32Str(%v): want %q, got %q", tt.in, tt.want, got)
		}
	}
}
