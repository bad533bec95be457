package rag

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"ragbot/internal/chunker"
	"ragbot/internal/domain"
	"ragbot/internal/index"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeEmbedder maps known texts to fixed unit vectors and counts calls.
type fakeEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
			continue
		}
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) Model() string { return "fake-embedder" }

type fakeProvider struct {
	answer string
	err    error
	gotCtx string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(_ context.Context, _, contextBlock string) (string, error) {
	f.gotCtx = contextBlock
	return f.answer, f.err
}

func (f *fakeProvider) Healthy(context.Context) error { return nil }

func testIndex(t *testing.T, emb *fakeEmbedder) (*index.Flat, index.Manifest) {
	t.Helper()
	f := index.NewFlat(index.MetricIP)
	var vectors [][]float32
	var records []domain.Chunk
	// Fixed insertion order so ordinals are stable across runs.
	texts := []string{"пай это доля", "фонд инвестирует", "доходность не гарантируется"}
	vecs := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	for j, text := range texts {
		emb.vectors[text] = vecs[j]
		vectors = append(vectors, vecs[j])
		records = append(records, domain.Chunk{
			Text:      text,
			SourceURL: "https://example.com/p",
			Timestamp: time.Unix(1700000000, 0).UTC(),
		})
	}
	if err := f.Add(vectors, records); err != nil {
		t.Fatal(err)
	}
	return f, index.Manifest{EmbeddingModel: "fake-embedder", Normalized: true, Metric: "ip"}
}

func newTestService(t *testing.T, emb *fakeEmbedder, prov domain.Provider) *Service {
	t.Helper()
	idx, m := testIndex(t, emb)
	r, err := NewRetriever(RetrieverConfig{Embedder: emb, Index: idx, Manifest: m, Logger: testLogger()})
	if err != nil {
		t.Fatal(err)
	}
	return NewService(ServiceConfig{
		Retriever: r,
		Assembler: NewAssembler(prov, testLogger()),
		Logger:    testLogger(),
	})
}

func TestService_InvalidQueryRejectedBeforeEmbedding(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{}}
	svc := newTestService(t, emb, &fakeProvider{answer: "ok"})
	calls := emb.calls // index built without the service embedding anything

	_, err := svc.Answer(context.Background(), "??")
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("err = %v, want ErrInvalidQuery", err)
	}
	if emb.calls != calls {
		t.Fatal("embedder was called for an invalid query")
	}
}

func TestService_AnswerWithSources(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{}}
	prov := &fakeProvider{answer: "  Пай — это доля инвестора в фонде.  "}
	svc := newTestService(t, emb, prov)
	emb.vectors["что такое пай фонда?"] = []float32{1, 0, 0}

	got, err := svc.Answer(context.Background(), "что такое пай фонда?")
	if err != nil {
		t.Fatal(err)
	}
	if got.Answer != "Пай — это доля инвестора в фонде." {
		t.Fatalf("answer = %q", got.Answer)
	}
	if len(got.Sources) != 3 {
		t.Fatalf("sources = %d, want 3", len(got.Sources))
	}
	if got.Sources[0].URL != "https://example.com/p" {
		t.Fatalf("source url = %q", got.Sources[0].URL)
	}
	// Context block carries the best-ranked chunk first, one bullet per line.
	if !strings.HasPrefix(prov.gotCtx, "- пай это доля\n") {
		t.Fatalf("context block = %q", prov.gotCtx)
	}
}

func TestService_ProviderFailureFallsBack(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{}}
	svc := newTestService(t, emb, &fakeProvider{err: errors.New("upstream down")})

	got, err := svc.Answer(context.Background(), "что такое пай фонда?")
	if err != nil {
		t.Fatal(err)
	}
	if got.Answer != fallbackAnswer {
		t.Fatalf("answer = %q, want fallback", got.Answer)
	}
	if len(got.Sources) == 0 {
		t.Fatal("fallback answer must keep its sources")
	}
}

func TestService_SearchClampsAndDegrades(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{}}
	svc := newTestService(t, emb, &fakeProvider{answer: "ok"})
	emb.vectors["что такое пай фонда?"] = []float32{0, 1, 0}

	// topK=5 over a 3-chunk index returns all 3 ranked, not an error.
	got, err := svc.Search(context.Background(), "что такое пай фонда?", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d results, want 3", len(got))
	}
	if got[0].Chunk.Text != "фонд инвестирует" {
		t.Fatalf("best hit = %q", got[0].Chunk.Text)
	}
	if got[0].Score <= got[1].Score {
		t.Fatal("results not ranked by score")
	}
}

func TestBuilder_DeduplicatesAcrossDocuments(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{}}
	ch := chunker.New(chunker.Config{Policy: chunker.PolicySize, MaxSize: 500, MinLength: 5})
	b, err := NewBuilder(BuilderConfig{
		Chunker: ch, Embedder: emb,
		Metric: index.MetricIP, Normalize: true,
		Logger: testLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}

	docs := []domain.Document{
		{SourceURL: "https://example.com/a", Text: "Пай это доля инвестора в фонде."},
		{SourceURL: "https://example.com/b", Text: "Пай это доля инвестора в фонде."},
	}
	idx, stats, err := b.Build(context.Background(), docs)
	if err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 1 {
		t.Fatalf("index size = %d, want 1 (duplicate dropped)", idx.Size())
	}
	if stats.Duplicates != 1 || stats.Chunks != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	// First occurrence wins: provenance points at the first document.
	rec, err := idx.Record(0)
	if err != nil {
		t.Fatal(err)
	}
	if rec.SourceURL != "https://example.com/a" {
		t.Fatalf("kept provenance %q", rec.SourceURL)
	}
}

func TestBuilder_ChunkIndexCountsDroppedDuplicates(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{}}
	// One sentence per chunk so each sentence gets its own ordinal.
	ch := chunker.New(chunker.Config{Policy: chunker.PolicySentences, SentencesPerChunk: 1, MinLength: 5})
	b, err := NewBuilder(BuilderConfig{
		Chunker: ch, Embedder: emb,
		Metric: index.MetricIP, Normalize: true,
		Logger: testLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}

	docs := []domain.Document{
		{SourceURL: "https://example.com/a", Text: "Пай это доля инвестора."},
		{SourceURL: "https://example.com/b", Text: "Пай это доля инвестора. Фонд инвестирует средства."},
	}
	idx, _, err := b.Build(context.Background(), docs)
	if err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 2 {
		t.Fatalf("index size = %d, want 2", idx.Size())
	}

	// The second document's first chunk is a duplicate and is dropped, but
	// its survivor keeps position 1 within the document.
	rec, err := idx.Record(1)
	if err != nil {
		t.Fatal(err)
	}
	if rec.SourceURL != "https://example.com/b" {
		t.Fatalf("record = %+v", rec)
	}
	if rec.ChunkIndex != 1 {
		t.Fatalf("chunk index = %d, want 1 (duplicates keep their ordinal)", rec.ChunkIndex)
	}
}
