package embedder

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// maxOpenAIBatch is the largest number of inputs sent in one embeddings
// request. Longer batches are split and the results concatenated.
const maxOpenAIBatch = 256

// OpenAIConfig holds the settings for constructing an [OpenAI] embedder.
type OpenAIConfig struct {
	// BaseURL overrides the API base. For OpenAI it defaults to
	// "https://api.openai.com/v1"; for Azure it is the resource endpoint
	// ("https://<resource>.openai.azure.com").
	BaseURL string
	// APIKey is the authentication key.
	APIKey string
	// Model is the embedding model name, or the deployment name on Azure.
	Model string
	// Dimensions is the vector length to request and report.
	Dimensions int
	// Azure enables Azure OpenAI mode (api-key header, deployment routing).
	Azure bool
	// APIVersion is the Azure OpenAI API version. Ignored when Azure is false.
	APIVersion string
}

// OpenAI implements [Provider] using the OpenAI or Azure OpenAI embeddings
// API through go-openai. It is safe for concurrent use.
type OpenAI struct {
	client *openai.Client
	model  string
	dims   int
}

// NewOpenAI constructs an OpenAI embedder from cfg.
func NewOpenAI(cfg *OpenAIConfig) *OpenAI {
	var clientCfg openai.ClientConfig
	if cfg.Azure {
		clientCfg = openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
		if cfg.APIVersion != "" {
			clientCfg.APIVersion = cfg.APIVersion
		}
		deployment := cfg.Model
		clientCfg.AzureModelMapperFunc = func(string) string { return deployment }
	} else {
		clientCfg = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		dims:   cfg.Dimensions,
	}
}

// Dimensions implements [Provider].
func (e *OpenAI) Dimensions() int { return e.dims }

// Embed implements [Provider]. The API may return data out of order, so
// results are placed by their reported index.
func (e *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxOpenAIBatch {
		end := min(start+maxOpenAIBatch, len(texts))
		batch, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (e *OpenAI) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	}
	// Only the v3 models accept a requested output size.
	if e.dims > 0 && strings.HasPrefix(e.model, "text-embedding-3") {
		req.Dimensions = e.dims
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("embedder: openai %s: %w", e.model, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedder: openai %s: expected %d embeddings, got %d", e.model, len(texts), len(resp.Data))
	}

	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedder: openai %s: index %d out of range [0, %d)", e.model, d.Index, len(texts))
		}
		vecs[d.Index] = d.Embedding
	}
	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("embedder: openai %s: missing embedding for input %d", e.model, i)
		}
	}
	return vecs, nil
}
