// Package index implements a flat (exact) vector index with its parallel
// metadata store. Vector i always corresponds to metadata record i; the two
// are appended together and persisted together.
package index

import (
	"fmt"
	"sort"

	"ragbot/internal/domain"
)

// Metric is the similarity metric the index is built and searched with.
// Build-time and query-time metric must match.
type Metric string

const (
	// MetricIP ranks by inner product, descending. Equivalent to cosine
	// similarity when vectors are L2-normalized.
	MetricIP Metric = "ip"
	// MetricL2 ranks by squared Euclidean distance, ascending.
	MetricL2 Metric = "l2"
)

// Flat is a brute-force k-NN index. Writes happen only during a build
// (single writer); after that the index is immutable and safe to share
// across concurrent readers without locking.
type Flat struct {
	metric  Metric
	dim     int
	vectors [][]float32
	records []domain.Chunk
}

func NewFlat(metric Metric) *Flat {
	if metric != MetricL2 {
		metric = MetricIP
	}
	return &Flat{metric: metric}
}

func (f *Flat) Metric() Metric { return f.metric }
func (f *Flat) Size() int      { return len(f.vectors) }

// Dimension returns the vector dimension, or 0 before the first batch.
func (f *Flat) Dimension() int { return f.dim }

// Add appends a batch of vectors and their metadata records, preserving
// insertion order. The first batch fixes the index dimension; later batches
// with a different dimension fail fast.
func (f *Flat) Add(vectors [][]float32, records []domain.Chunk) error {
	if len(vectors) != len(records) {
		return fmt.Errorf("add batch: %d vectors for %d records: %w",
			len(vectors), len(records), domain.ErrCorruptIndex)
	}
	if len(vectors) == 0 {
		return nil
	}

	if f.dim == 0 {
		f.dim = len(vectors[0])
		if f.dim == 0 {
			return fmt.Errorf("add batch: zero-dimension vector: %w", domain.ErrDimensionMismatch)
		}
	}
	for i, v := range vectors {
		if len(v) != f.dim {
			return fmt.Errorf("add batch: vector %d has dimension %d, index has %d: %w",
				i, len(v), f.dim, domain.ErrDimensionMismatch)
		}
	}

	f.vectors = append(f.vectors, vectors...)
	f.records = append(f.records, records...)
	return nil
}

// Hit is one nearest-neighbor result: the ordinal position of the stored
// vector and its score under the index metric.
type Hit struct {
	Ordinal int
	Score   float32
}

// Search returns the k nearest stored vectors. Results are ordered best
// first (descending inner product or ascending distance), ties broken by
// lower ordinal. Asking for more results than stored returns everything.
func (f *Flat) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("search: query dimension %d, index dimension %d: %w",
			len(query), f.dim, domain.ErrDimensionMismatch)
	}
	if k <= 0 {
		return nil, fmt.Errorf("search: k must be positive, got %d", k)
	}
	if len(f.vectors) == 0 {
		return nil, nil
	}

	hits := make([]Hit, len(f.vectors))
	for i, v := range f.vectors {
		hits[i] = Hit{Ordinal: i, Score: f.score(query, v)}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			if f.metric == MetricL2 {
				return hits[i].Score < hits[j].Score
			}
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Ordinal < hits[j].Ordinal
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Record maps an ordinal returned by Search back to its metadata record.
// An ordinal outside the stored range is a consistency violation and fails
// fast rather than being skipped.
func (f *Flat) Record(ordinal int) (domain.Chunk, error) {
	if ordinal < 0 || ordinal >= len(f.records) {
		return domain.Chunk{}, fmt.Errorf("ordinal %d of %d records: %w",
			ordinal, len(f.records), domain.ErrCorruptIndex)
	}
	return f.records[ordinal], nil
}

// Records returns the metadata store in insertion order. The returned slice
// is shared; callers must treat it as read-only.
func (f *Flat) Records() []domain.Chunk { return f.records }

func (f *Flat) score(query, v []float32) float32 {
	switch f.metric {
	case MetricL2:
		var sum float32
		for i := range v {
			d := query[i] - v[i]
			sum += d * d
		}
		return sum
	default:
		var sum float32
		for i := range v {
			sum += query[i] * v[i]
		}
		return sum
	}
}
