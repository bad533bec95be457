package rag

import (
	"context"
	"fmt"
	"log/slog"

	"ragbot/internal/domain"
	"ragbot/internal/embedding"
	"ragbot/internal/index"
)

const (
	// DefaultTopK is the number of chunks retrieved when the caller does
	// not say otherwise.
	DefaultTopK = 5
	// MaxTopK caps caller-supplied topK values.
	MaxTopK = 20
)

// Retriever embeds a query and searches the index for the nearest chunks.
// The embedder and normalization flag must match the ones the index was
// built with; the manifest carries both and the constructor enforces the
// model name.
type Retriever struct {
	embedder  domain.Embedder
	idx       *index.Flat
	normalize bool
	logger    *slog.Logger
}

type RetrieverConfig struct {
	Embedder domain.Embedder
	Index    *index.Flat
	Manifest index.Manifest
	Logger   *slog.Logger
}

func NewRetriever(cfg RetrieverConfig) (*Retriever, error) {
	if cfg.Embedder == nil || cfg.Index == nil {
		return nil, fmt.Errorf("retriever needs an embedder and an index")
	}
	if cfg.Manifest.EmbeddingModel != "" && cfg.Manifest.EmbeddingModel != cfg.Embedder.Model() {
		return nil, fmt.Errorf("index was built with embedding model %q, configured model is %q",
			cfg.Manifest.EmbeddingModel, cfg.Embedder.Model())
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Retriever{
		embedder:  cfg.Embedder,
		idx:       cfg.Index,
		normalize: cfg.Manifest.Normalized,
		logger:    cfg.Logger,
	}, nil
}

// Retrieve validates the query, embeds it and returns the topK nearest
// chunks in rank order. topK outside [1, 20] is clamped; an index smaller
// than topK returns everything it has.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.ScoredChunk, error) {
	trimmed, err := ValidateQuery(query)
	if err != nil {
		return nil, err
	}
	if topK < 1 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	if r.idx.Size() == 0 {
		return nil, nil
	}

	vectors, err := r.embedder.EmbedBatch(ctx, []string{trimmed})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors for one input", len(vectors))
	}
	qvec := vectors[0]
	if r.normalize {
		qvec = embedding.Normalize(qvec)
	}

	hits, err := r.idx.Search(qvec, topK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	results := make([]domain.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		rec, err := r.idx.Record(h.Ordinal)
		if err != nil {
			return nil, fmt.Errorf("resolve hit %d: %w", h.Ordinal, err)
		}
		results = append(results, domain.ScoredChunk{Chunk: rec, Score: h.Score})
	}

	r.logger.Debug("retrieved chunks", "query_len", runeLen(trimmed), "top_k", topK, "hits", len(results))
	return results, nil
}
