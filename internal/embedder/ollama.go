package embedder

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaConfig holds the settings for constructing an [Ollama] embedder.
type OllamaConfig struct {
	// Host is the Ollama base URL (default: http://localhost:11434).
	Host string
	// Model is the embedding model name (e.g. "nomic-embed-text").
	Model string
	// Dimensions is the vector length the model produces.
	Dimensions int
}

// Ollama implements [Provider] against a local Ollama server through the
// langchaingo client. It is safe for concurrent use.
type Ollama struct {
	llm   *ollama.LLM
	model string
	dims  int
}

// NewOllama constructs an Ollama embedder. No request is made until the
// first call to Embed.
func NewOllama(cfg *OllamaConfig) (*Ollama, error) {
	host := cfg.Host
	if host == "" {
		host = "http://localhost:11434"
	}
	llm, err := ollama.New(ollama.WithModel(cfg.Model), ollama.WithServerURL(host))
	if err != nil {
		return nil, fmt.Errorf("embedder: ollama client: %w", err)
	}
	return &Ollama{llm: llm, model: cfg.Model, dims: cfg.Dimensions}, nil
}

// Dimensions implements [Provider].
func (o *Ollama) Dimensions() int { return o.dims }

// Embed implements [Provider].
func (o *Ollama) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vecs, err := o.llm.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedder: ollama %s: %w", o.model, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedder: ollama %s: expected %d embeddings, got %d", o.model, len(texts), len(vecs))
	}
	return vecs, nil
}
