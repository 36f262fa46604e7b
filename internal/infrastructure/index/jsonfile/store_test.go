package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/myvet-app/triage-assistant/internal/core/domain"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "nested", "index.json"))
	docs := []domain.Document{
		{ID: "a.md", Text: "con vector", Species: "perro", Embedding: []float32{0.1, 0.2}},
		{ID: "b.md", Text: "sin vector"},
	}

	if err := store.Save(context.Background(), docs); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(docs, loaded) {
		t.Fatalf("round trip mismatch:\nsaved  %+v\nloaded %+v", docs, loaded)
	}
}

func TestLoadMissingArtifact(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "index.json"))
	if _, err := store.Load(context.Background()); !domain.IsKind(err, domain.ErrIndexNotFound) {
		t.Fatalf("err = %v, want index-not-found kind", err)
	}
}

func TestLoadCorruptArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	store := New(path)
	_, err := store.Load(context.Background())
	if err == nil {
		t.Fatal("corrupt artifact loaded without error")
	}
	if domain.IsKind(err, domain.ErrIndexNotFound) {
		t.Fatal("corrupt artifact reported as missing")
	}
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	store := New(filepath.Join(dir, "index.json"))
	if err := store.Save(context.Background(), []domain.Document{{ID: "a.md"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "index.json.tmp")); !os.IsNotExist(err) {
		t.Fatal("temp file left behind after rename")
	}
}
