package embedder

import (
	"context"
	"math"
	"testing"
)

func TestHash_OrderPreserving(t *testing.T) {
	t.Parallel()

	h := NewHash(64)
	ctx := context.Background()

	pair, err := h.Embed(ctx, []string{"photosynthesis converts light", "mitochondria produce energy"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	single, err := h.Embed(ctx, []string{"photosynthesis converts light"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	second, err := h.Embed(ctx, []string{"mitochondria produce energy"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if !equalVec(pair[0], single[0]) {
		t.Error("embed([a,b])[0] should equal embed([a])[0]")
	}
	if !equalVec(pair[1], second[0]) {
		t.Error("embed([a,b])[1] should equal embed([b])[0]")
	}
}

func TestHash_UnitLength(t *testing.T) {
	t.Parallel()

	vecs, err := NewHash(0).Embed(context.Background(), []string{"The Krebs cycle, also called the citric acid cycle."})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs[0]) != DefaultHashDimensions {
		t.Fatalf("want %d dims, got %d", DefaultHashDimensions, len(vecs[0]))
	}

	var norm float64
	for _, v := range vecs[0] {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("want unit norm, got %f", norm)
	}
}

func TestHash_CaseAndPunctuationInsensitive(t *testing.T) {
	t.Parallel()

	vecs, err := NewHash(32).Embed(context.Background(), []string{"Hello, World!", "hello world"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if !equalVec(vecs[0], vecs[1]) {
		t.Error("tokenisation should ignore case and punctuation")
	}
}

func TestHash_EmptyTextIsZeroVector(t *testing.T) {
	t.Parallel()

	vecs, err := NewHash(16).Embed(context.Background(), []string{"  ...  "})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for i, v := range vecs[0] {
		if v != 0 {
			t.Fatalf("component %d: want 0, got %f", i, v)
		}
	}
}

func TestHash_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewHash(16).Embed(ctx, []string{"a"}); err == nil {
		t.Fatal("want error for cancelled context")
	}
}

func equalVec(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
