// Package jsonfile persists the document index as a single JSON artifact.
// Records with and without embeddings coexist in the same file.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/myvet-app/triage-assistant/internal/core/domain"
)

type Store struct {
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Save(_ context.Context, docs []domain.Document) error {
	raw, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	// Write-then-rename keeps a concurrent loader from seeing a torn file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace index: %w", err)
	}
	return nil
}

func (s *Store) Load(_ context.Context) ([]domain.Document, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.WrapError(domain.ErrIndexNotFound, "load index", err)
		}
		return nil, fmt.Errorf("read index: %w", err)
	}

	var docs []domain.Document
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	return docs, nil
}
