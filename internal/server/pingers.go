package server

import (
	"context"
	"fmt"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/embedder"
)

// pingable is implemented by dependencies with a native reachability check,
// such as [*store.SQLiteStore], [*index.Qdrant] and [*index.PGVector].
type pingable interface {
	Ping(ctx context.Context) error
}

// namedPinger adapts a pingable dependency to [Pinger].
type namedPinger struct {
	name string
	dep  pingable
}

// NewPinger wraps dep as a [Pinger] reported under name.
func NewPinger(name string, dep pingable) Pinger {
	return &namedPinger{name: name, dep: dep}
}

// Name returns the dependency label used in readiness responses.
func (p *namedPinger) Name() string { return p.name }

// Ping delegates to the dependency's own check.
func (p *namedPinger) Ping(ctx context.Context) error { return p.dep.Ping(ctx) }

// EmbedderPinger probes an embedding provider by embedding a one-word text
// and checking the vector length. For hosted providers this costs a few
// tokens per probe.
type EmbedderPinger struct {
	// emb is the provider to probe.
	emb embedder.Provider
}

// NewEmbedderPinger constructs an EmbedderPinger for emb.
func NewEmbedderPinger(emb embedder.Provider) *EmbedderPinger {
	return &EmbedderPinger{emb: emb}
}

// Name returns the dependency label used in readiness responses.
func (p *EmbedderPinger) Name() string { return "embedder" }

// Ping embeds "ping" and verifies the provider's advertised dimension.
func (p *EmbedderPinger) Ping(ctx context.Context) error {
	vecs, err := p.emb.Embed(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("embed failed: %w", err)
	}
	if len(vecs) != 1 {
		return fmt.Errorf("embed returned %d vectors for 1 text", len(vecs))
	}
	if got, want := len(vecs[0]), p.emb.Dimensions(); got != want {
		return fmt.Errorf("embed returned %d dimensions, provider advertises %d", got, want)
	}
	return nil
}

// connectionTester is implemented by [*generate.Client].
type connectionTester interface {
	TestConnection(ctx context.Context) error
}

// GeneratorPinger probes the generation service with a minimal prompt. It
// consumes tokens, so `serve` leaves it out of /readyz; `diagnose` uses it.
type GeneratorPinger struct {
	// name identifies the backend (e.g. "ollama").
	name string
	// tester sends the probe prompt.
	tester connectionTester
}

// NewGeneratorPinger constructs a GeneratorPinger for the given backend name.
func NewGeneratorPinger(name string, t connectionTester) *GeneratorPinger {
	return &GeneratorPinger{name: name, tester: t}
}

// Name returns the backend label.
func (p *GeneratorPinger) Name() string { return p.name }

// Ping sends the probe prompt.
func (p *GeneratorPinger) Ping(ctx context.Context) error {
	if err := p.tester.TestConnection(ctx); err != nil {
		return fmt.Errorf("%s generation probe failed: %w", p.name, err)
	}
	return nil
}
