package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/myvet-app/triage-assistant/internal/core/domain"
	"github.com/myvet-app/triage-assistant/internal/core/ports"
)

// IndexService owns the reference-document index: lazy one-time load per
// process, explicit rebuild, and best-effort persistence. The index is a
// rebuildable cache; a corrupt or missing artifact triggers a rebuild
// instead of an error.
type IndexService struct {
	corpus            ports.CorpusSource
	store             ports.IndexStore
	embedder          ports.Embedder
	embeddingsEnabled bool

	mu     sync.Mutex
	loaded bool
	docs   []domain.Document
}

func NewIndexService(corpus ports.CorpusSource, store ports.IndexStore, embedder ports.Embedder, embeddingsEnabled bool) *IndexService {
	return &IndexService{
		corpus:            corpus,
		store:             store,
		embedder:          embedder,
		embeddingsEnabled: embeddingsEnabled,
	}
}

// EnsureLoaded loads the persisted index if present, otherwise builds it
// from the corpus and persists the result. Subsequent calls are no-ops.
func (s *IndexService) EnsureLoaded(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}

	docs, err := s.store.Load(ctx)
	if err == nil {
		s.docs = docs
		s.loaded = true
		return nil
	}
	if !domain.IsKind(err, domain.ErrIndexNotFound) {
		slog.Warn("index_load_failed", "error", err)
	}

	return s.rebuildLocked(ctx)
}

// Reindex forces a rebuild from the corpus and returns the document count.
// Rebuilding an unchanged corpus yields the same ids in the same order.
func (s *IndexService) Reindex(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.rebuildLocked(ctx); err != nil {
		return 0, err
	}
	return len(s.docs), nil
}

// Documents returns the in-memory index in insertion order. Callers must
// not mutate the returned slice.
func (s *IndexService) Documents() []domain.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs
}

func (s *IndexService) rebuildLocked(ctx context.Context) error {
	docs, err := s.corpus.List(ctx)
	if err != nil {
		return fmt.Errorf("list corpus: %w", err)
	}

	embed := s.embeddingsEnabled && s.embedder != nil
	for i := range docs {
		if !embed {
			break
		}
		vector, err := s.embedder.Embed(ctx, docs[i].Text)
		if err != nil {
			if !domain.Degradable(err) {
				return fmt.Errorf("embed document %s: %w", docs[i].ID, err)
			}
			// Backend throttled or unconfigured: index the rest without
			// embeddings, the lexical path still works.
			slog.Warn("index_embeddings_unavailable", "document", docs[i].ID, "error", err)
			embed = false
			continue
		}
		docs[i].Embedding = vector
	}

	if err := s.store.Save(ctx, docs); err != nil {
		slog.Warn("index_persist_failed", "error", err)
	}

	s.docs = docs
	s.loaded = true
	return nil
}
