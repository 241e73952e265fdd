//go:build integration

package embedder

import (
	"context"
	"os"
	"testing"
	"time"
)

// TestOllama_Integration performs a real call to a locally running Ollama
// instance to validate the embedder end-to-end.
//
// Prerequisites:
//
//	ollama pull nomic-embed-text
//	ollama serve   (or it must already be running)
//
// Run with:
//
//	go test -tags=integration -run TestOllama_Integration ./internal/embedder/
func TestOllama_Integration(t *testing.T) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}
	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = defaultOllamaModel
	}

	emb, err := NewOllama(&OllamaConfig{Host: host, Model: model, Dimensions: DefaultDimensions(BackendOllama, model)})
	if err != nil {
		t.Fatalf("NewOllama: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	texts := []string{
		"Photosynthesis converts light energy into chemical energy.",
		"The mitochondrion is the powerhouse of the cell.",
	}

	vecs, err := emb.Embed(ctx, texts)
	if err != nil {
		t.Fatalf("Embed() failed: %v\n\nEnsure Ollama is running and %q is pulled:\n  ollama pull %s", err, model, model)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("expected %d embeddings, got %d", len(texts), len(vecs))
	}
	for i, v := range vecs {
		if len(v) != emb.Dimensions() {
			t.Errorf("embedding[%d]: want %d dims, got %d", i, emb.Dimensions(), len(v))
		}
	}
}
