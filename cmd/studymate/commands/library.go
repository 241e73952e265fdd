package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/embedder"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/generate"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/index"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/passage"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/provider"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/rag"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/segment"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/server"
	"github.com/katikolakarthik/cognivitex-hackathon-2025-Triplemind/internal/store"
)

// dbDisabled is the --db / STUDYMATE_DB value that keeps the library in memory.
const dbDisabled = "disabled"

// library bundles a retriever with the components it was built from and
// the database its contents are persisted to.
type library struct {
	*rag.Retriever

	emb embedder.Provider
	idx index.Index
	// db is nil when persistence is disabled.
	db *store.SQLiteStore
}

// resolveDBPath applies the precedence --db → STUDYMATE_DB → default path.
// It returns "" when persistence is disabled.
func resolveDBPath(flag string) (string, error) {
	p := flag
	if p == "" {
		p = os.Getenv("STUDYMATE_DB")
	}
	if p == dbDisabled {
		return "", nil
	}
	if p == "" {
		return store.DefaultDBPath()
	}
	return p, nil
}

// openLibrary builds the embedder, index and retriever from the environment
// and restores the saved library from the database at path. An empty path
// gives an in-memory library.
func openLibrary(ctx context.Context, log *slog.Logger, path string, opts ...rag.Option) (*library, error) {
	if err := embedder.ValidateForRAG(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	idx, err := index.NewFromEnv(ctx, emb.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("failed to initialise %s index: %w", index.Backend(), err)
	}

	r, err := rag.New(emb, idx, passage.NewStore(), segment.ConfigFromEnv(), opts...)
	if err != nil {
		closeIndex(idx)
		return nil, err
	}
	lib := &library{Retriever: r, emb: emb, idx: idx}

	log.Info("library initialised",
		slog.String("embedder", embedder.Backend()),
		slog.Int("dimensions", emb.Dimensions()),
		slog.String("index", index.Backend()),
	)

	if path == "" {
		log.Info("library: persistence disabled, contents are lost on exit")
		return lib, nil
	}

	db, err := store.Open(path)
	if err != nil {
		lib.close()
		return nil, err
	}
	lib.db = db

	snap, err := db.Load(ctx)
	if err != nil {
		lib.close()
		return nil, err
	}
	if err := r.Restore(ctx, snap); err != nil {
		lib.close()
		var dimErr *index.DimensionMismatchError
		if errors.As(err, &dimErr) {
			return nil, fmt.Errorf("library at %s was built with %d-dimensional embeddings but the current embedder produces %d; "+
				"switch back to the original embedder or run `studymate clear`: %w", path, dimErr.Got, dimErr.Want, err)
		}
		return nil, err
	}
	log.Debug("library: opened", slog.String("path", path), slog.Int("passages", len(snap.Passages)))
	return lib, nil
}

// save writes the current contents to the database, if any.
func (l *library) save(ctx context.Context) error {
	if l.db == nil {
		return nil
	}
	snap, err := l.Snapshot()
	if err != nil {
		return err
	}
	return l.db.Save(ctx, snap)
}

// openAndSave writes lib's contents to the database at path, replacing
// whatever was saved there.
func openAndSave(ctx context.Context, path string, lib *library) error {
	db, err := store.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	snap, err := lib.Snapshot()
	if err != nil {
		return err
	}
	return db.Save(ctx, snap)
}

// pingers returns readiness probes for every reachable dependency.
func (l *library) pingers() []server.Pinger {
	ps := []server.Pinger{server.NewEmbedderPinger(l.emb)}
	if p, ok := l.idx.(interface{ Ping(context.Context) error }); ok {
		ps = append(ps, server.NewPinger(index.Backend(), p))
	}
	if l.db != nil {
		ps = append(ps, server.NewPinger("store", l.db))
	}
	return ps
}

// close releases the database and any remote index connection.
func (l *library) close() {
	if l.db != nil {
		_ = l.db.Close()
	}
	closeIndex(l.idx)
}

func closeIndex(idx index.Index) {
	if c, ok := idx.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}

// buildGenerator constructs the generation client from the environment.
// onRetry, if non-nil, observes retries in addition to the warning log.
func buildGenerator(ctx context.Context, log *slog.Logger, onRetry generate.RetryFunc) (*generate.Client, *provider.Config, error) {
	chat, pcfg, err := provider.NewFromEnv(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}

	hook := func(attempt int, wait time.Duration, err error) {
		log.Warn("generation rate limited, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.Any("error", err),
		)
		if onRetry != nil {
			onRetry(attempt, wait, err)
		}
	}

	client, err := generate.NewClient(chat, pcfg.ModelName(), generate.ConfigFromEnv(), generate.WithRetryHook(hook))
	if err != nil {
		return nil, nil, err
	}
	log.Info("provider initialised",
		slog.String("provider", string(pcfg.Backend)),
		slog.String("model", pcfg.ModelName()),
	)
	return client, pcfg, nil
}
