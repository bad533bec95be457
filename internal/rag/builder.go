package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ragbot/internal/chunker"
	"ragbot/internal/domain"
	"ragbot/internal/embedding"
	"ragbot/internal/index"
)

// embedBatchSize bounds how many chunk texts go to the embedder per call.
const embedBatchSize = 64

// Builder runs the offline pipeline: chunk each document, drop duplicate
// chunks, embed the survivors and append vector+metadata pairs to a fresh
// index. One builder builds one index.
type Builder struct {
	chunker   *chunker.Chunker
	embedder  domain.Embedder
	metric    index.Metric
	normalize bool
	logger    *slog.Logger
}

type BuilderConfig struct {
	Chunker   *chunker.Chunker
	Embedder  domain.Embedder
	Metric    index.Metric
	Normalize bool
	Logger    *slog.Logger
}

// BuildStats summarizes one build run.
type BuildStats struct {
	Documents  int
	Chunks     int
	Duplicates int
	Dimension  int
}

func NewBuilder(cfg BuilderConfig) (*Builder, error) {
	if cfg.Chunker == nil || cfg.Embedder == nil {
		return nil, fmt.Errorf("builder needs a chunker and an embedder")
	}
	if cfg.Metric == index.MetricIP && !cfg.Normalize {
		return nil, fmt.Errorf("inner-product metric requires normalized embeddings")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Builder{
		chunker:   cfg.Chunker,
		embedder:  cfg.Embedder,
		metric:    cfg.Metric,
		normalize: cfg.Normalize,
		logger:    cfg.Logger,
	}, nil
}

// Build chunks and embeds all documents into a new index. Duplicate chunk
// texts (by sha256 of the trimmed text) are dropped; the first occurrence
// wins and keeps its original document provenance.
func (b *Builder) Build(ctx context.Context, docs []domain.Document) (*index.Flat, BuildStats, error) {
	idx := index.NewFlat(b.metric)
	dedup := chunker.NewDedup()
	stats := BuildStats{Documents: len(docs)}

	var pending []domain.Chunk
	for _, doc := range docs {
		// ChunkIndex is the chunk's position in its document, counting
		// chunks later dropped as duplicates.
		for ci, text := range b.chunker.Split(doc.Text) {
			if dedup.IsDuplicate(text) {
				stats.Duplicates++
				continue
			}
			pending = append(pending, domain.Chunk{
				Text:         text,
				SourceURL:    doc.SourceURL,
				Timestamp:    doc.FetchedAt,
				ChunkIndex:   ci,
				Hash:         chunker.Hash(text),
				DocumentPath: doc.Path,
			})

			if len(pending) >= embedBatchSize {
				if err := b.flush(ctx, idx, pending); err != nil {
					return nil, stats, err
				}
				stats.Chunks += len(pending)
				pending = pending[:0]
			}
		}
	}
	if len(pending) > 0 {
		if err := b.flush(ctx, idx, pending); err != nil {
			return nil, stats, err
		}
		stats.Chunks += len(pending)
	}

	stats.Dimension = idx.Dimension()
	b.logger.Info("index built",
		"documents", stats.Documents, "chunks", stats.Chunks,
		"duplicates", stats.Duplicates, "dimension", stats.Dimension)
	return idx, stats, nil
}

// BuildAndSave builds the index and persists its artifacts to dir.
func (b *Builder) BuildAndSave(ctx context.Context, docs []domain.Document, dir string) (BuildStats, error) {
	idx, stats, err := b.Build(ctx, docs)
	if err != nil {
		return stats, err
	}
	m := index.Manifest{
		EmbeddingModel: b.embedder.Model(),
		Normalized:     b.normalize,
		BuiltAt:        time.Now().UTC(),
	}
	if err := index.Save(dir, idx, m); err != nil {
		return stats, fmt.Errorf("persist index: %w", err)
	}
	return stats, nil
}

func (b *Builder) flush(ctx context.Context, idx *index.Flat, batch []domain.Chunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	vectors, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %d chunks: %w", len(texts), err)
	}
	if b.normalize {
		embedding.NormalizeAll(vectors)
	}

	records := make([]domain.Chunk, len(batch))
	copy(records, batch)
	if err := idx.Add(vectors, records); err != nil {
		return fmt.Errorf("index chunks: %w", err)
	}
	return nil
}
