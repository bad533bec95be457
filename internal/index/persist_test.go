package index

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ragbot/internal/domain"
)

func buildTestIndex(t *testing.T) *Flat {
	t.Helper()
	f := NewFlat(MetricIP)
	vectors := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	records := []domain.Chunk{
		{Text: "первый чанк текста", SourceURL: "https://example.com/a", ChunkIndex: 0, Hash: "h1", Timestamp: time.Unix(1700000000, 0).UTC()},
		{Text: "второй чанк текста", SourceURL: "https://example.com/a", ChunkIndex: 1, Hash: "h2", Timestamp: time.Unix(1700000000, 0).UTC()},
		{Text: "third chunk", SourceURL: "https://example.com/b", ChunkIndex: 0, Hash: "h3", Timestamp: time.Unix(1700000100, 0).UTC()},
	}
	if err := f.Add(vectors, records); err != nil {
		t.Fatal(err)
	}
	return f
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	f := buildTestIndex(t)

	if err := Save(dir, f, Manifest{EmbeddingModel: "test-model", Normalized: true}); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, m, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Count != 3 || m.Dimension != 3 || m.Metric != "ip" || m.EmbeddingModel != "test-model" {
		t.Fatalf("manifest = %+v", m)
	}
	if loaded.Size() != f.Size() {
		t.Fatalf("loaded size %d, want %d", loaded.Size(), f.Size())
	}

	// Search behavior must round-trip: exact query returns ordinal 1 first.
	hits, err := loaded.Search([]float32{0, 1, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if hits[0].Ordinal != 1 {
		t.Fatalf("post-load search broken: %+v", hits)
	}

	// Metadata order and content survive byte-for-byte meaningful fields.
	recLoaded, err := loaded.Record(1)
	if err != nil {
		t.Fatal(err)
	}
	if recLoaded.Text != "второй чанк текста" || recLoaded.Hash != "h2" || recLoaded.ChunkIndex != 1 {
		t.Fatalf("record 1 = %+v", recLoaded)
	}
}

func TestLoad_MissingManifestIsIncomplete(t *testing.T) {
	dir := t.TempDir()
	f := buildTestIndex(t)
	if err := Save(dir, f, Manifest{}); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(dir, manifestFile)); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(dir); err == nil {
		t.Fatal("load must refuse a directory without a manifest")
	}
}

func TestLoad_CountMismatchRefused(t *testing.T) {
	dir := t.TempDir()
	f := buildTestIndex(t)
	if err := Save(dir, f, Manifest{}); err != nil {
		t.Fatal(err)
	}

	// Drop one metadata record: vectors and metadata now disagree.
	path := filepath.Join(dir, metadataFile)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := 0
	cut := 0
	for i, b := range data {
		if b == '\n' {
			lines++
			if lines == 2 {
				cut = i + 1
				break
			}
		}
	}
	if err := os.WriteFile(path, data[:cut], 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err = Load(dir)
	if !errors.Is(err, domain.ErrCorruptIndex) {
		t.Fatalf("expected ErrCorruptIndex, got %v", err)
	}
}

func TestLoad_TruncatedVectorsRefused(t *testing.T) {
	dir := t.TempDir()
	f := buildTestIndex(t)
	if err := Save(dir, f, Manifest{}); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, vectorsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data[:len(data)-4], 0o644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := Load(dir); err == nil {
		t.Fatal("load must refuse a truncated vector file")
	}
}

func TestSave_EmptyIndex(t *testing.T) {
	dir := t.TempDir()
	f := NewFlat(MetricIP)
	if err := Save(dir, f, Manifest{}); err != nil {
		t.Fatalf("saving an empty index should work: %v", err)
	}
	loaded, m, err := Load(dir)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if loaded.Size() != 0 || m.Count != 0 {
		t.Fatalf("expected empty index, got size %d", loaded.Size())
	}
}
