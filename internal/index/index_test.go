package index

import (
	"errors"
	"testing"
	"time"

	"ragbot/internal/domain"
)

func rec(text string) domain.Chunk {
	return domain.Chunk{Text: text, SourceURL: "https://example.com/a", Timestamp: time.Unix(1700000000, 0).UTC()}
}

func TestAdd_BatchLengthMismatch(t *testing.T) {
	f := NewFlat(MetricIP)
	err := f.Add([][]float32{{1, 0}}, nil)
	if !errors.Is(err, domain.ErrCorruptIndex) {
		t.Fatalf("expected ErrCorruptIndex, got %v", err)
	}
}

func TestAdd_DimensionFixedOnFirstBatch(t *testing.T) {
	f := NewFlat(MetricIP)
	if err := f.Add([][]float32{{1, 0, 0}}, []domain.Chunk{rec("a")}); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	err := f.Add([][]float32{{1, 0}}, []domain.Chunk{rec("b")})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if f.Size() != 1 {
		t.Fatalf("failed batch must not be partially added, size = %d", f.Size())
	}
}

func TestSearch_ExactMatchRanksFirst(t *testing.T) {
	f := NewFlat(MetricIP)
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.6, 0.8, 0},
	}
	records := []domain.Chunk{rec("x"), rec("y"), rec("xy")}
	if err := f.Add(vectors, records); err != nil {
		t.Fatal(err)
	}

	hits, err := f.Search([]float32{0, 1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if hits[0].Ordinal != 1 {
		t.Fatalf("exact match not at rank 0: %+v", hits)
	}
	if hits[0].Score != 1 {
		t.Fatalf("exact match score = %f, want 1", hits[0].Score)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Fatalf("hits not in descending order: %+v", hits)
		}
	}
}

func TestSearch_L2ExactMatchRanksFirst(t *testing.T) {
	f := NewFlat(MetricL2)
	if err := f.Add([][]float32{{1, 1}, {5, 5}, {1, 2}}, []domain.Chunk{rec("a"), rec("b"), rec("c")}); err != nil {
		t.Fatal(err)
	}
	hits, err := f.Search([]float32{1, 1}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if hits[0].Ordinal != 0 || hits[0].Score != 0 {
		t.Fatalf("nearest by distance should be ordinal 0 with distance 0: %+v", hits)
	}
	if hits[1].Ordinal != 2 {
		t.Fatalf("second nearest should be ordinal 2: %+v", hits)
	}
}

func TestSearch_TiesBrokenByOrdinal(t *testing.T) {
	f := NewFlat(MetricIP)
	// Identical vectors: identical scores, first-seen must win.
	if err := f.Add([][]float32{{1, 0}, {1, 0}, {1, 0}}, []domain.Chunk{rec("a"), rec("b"), rec("c")}); err != nil {
		t.Fatal(err)
	}
	hits, err := f.Search([]float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i, h := range hits {
		if h.Ordinal != i {
			t.Fatalf("tie order not by ordinal: %+v", hits)
		}
	}
}

func TestSearch_TopKLargerThanIndex(t *testing.T) {
	f := NewFlat(MetricIP)
	if err := f.Add([][]float32{{1, 0}, {0, 1}, {1, 1}}, []domain.Chunk{rec("a"), rec("b"), rec("c")}); err != nil {
		t.Fatal(err)
	}
	hits, err := f.Search([]float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("topK > size must degrade gracefully, got %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("got %d hits, want all 3", len(hits))
	}
}

func TestSearch_QueryDimensionMismatch(t *testing.T) {
	f := NewFlat(MetricIP)
	if err := f.Add([][]float32{{1, 0, 0}}, []domain.Chunk{rec("a")}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Search([]float32{1, 0}, 1); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestRecord_OutOfRangeFailsFast(t *testing.T) {
	f := NewFlat(MetricIP)
	if err := f.Add([][]float32{{1}}, []domain.Chunk{rec("a")}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Record(1); !errors.Is(err, domain.ErrCorruptIndex) {
		t.Fatalf("expected ErrCorruptIndex, got %v", err)
	}
	if _, err := f.Record(-1); !errors.Is(err, domain.ErrCorruptIndex) {
		t.Fatalf("expected ErrCorruptIndex for negative ordinal, got %v", err)
	}
}
