// Package localfs reads the reference corpus from a directory of plain
// text, markdown, and PDF files. The filename (including extension) is the
// document id; directory listing order is the index insertion order.
package localfs

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/myvet-app/triage-assistant/internal/core/domain"
)

// SpeciesTagger derives an optional species tag from a document filename.
type SpeciesTagger func(filename string) string

type Source struct {
	dir    string
	tagger SpeciesTagger
}

func New(dir string, tagger SpeciesTagger) *Source {
	return &Source{dir: dir, tagger: tagger}
}

// List returns every eligible corpus document in lexical filename order. A
// missing corpus directory yields an empty list: the index is a best-effort
// cache, not a mandatory input.
func (s *Source) List(ctx context.Context) ([]domain.Document, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.Document{}, nil
		}
		return nil, fmt.Errorf("read corpus dir: %w", err)
	}

	docs := make([]domain.Document, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		text, ok, err := s.readDocument(filepath.Join(s.dir, name))
		if err != nil {
			// One unreadable file must not sink the whole corpus.
			slog.Warn("corpus_document_skipped", "file", name, "error", err)
			continue
		}
		if !ok {
			continue
		}
		doc := domain.Document{ID: name, Text: text}
		if s.tagger != nil {
			doc.Species = s.tagger(name)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *Source) readDocument(path string) (string, bool, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".txt":
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", false, err
		}
		return string(raw), true, nil
	case ".pdf":
		text, err := extractPDFText(path)
		if err != nil {
			return "", false, err
		}
		return text, true, nil
	default:
		return "", false, nil
	}
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}
