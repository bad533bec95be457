package domain

import (
	"context"
	"time"
)

// ScoredChunk is a retrieval hit: a stored chunk together with its similarity
// score against the query. Higher is better for inner-product indexes and
// lower for L2; ordering is handled by the index, callers only rely on the
// returned rank.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"`
}

// Source is the provenance attached to an answer: where a retrieved chunk
// came from and when it was crawled. Sources keep retrieval order and are not
// deduplicated by URL.
type Source struct {
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
}

// Answer is the assembled response to a user question.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Embedder maps text to fixed-dimension vectors. One embedder is pinned per
// index: the model used at build time must be the model used at query time,
// otherwise scores are meaningless.
type Embedder interface {
	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// Provider generates a grounded answer from a question and a context block.
// Implementations talk to an external LLM and may fail; callers must treat a
// failure as recoverable and substitute a fallback answer.
type Provider interface {
	Name() string
	Generate(ctx context.Context, query, context string) (string, error)
	Healthy(ctx context.Context) error
}

// AnswerService is what the transport channels (HTTP API, Telegram) call.
type AnswerService interface {
	// Answer runs validation, retrieval and generation for one question.
	Answer(ctx context.Context, query string) (Answer, error)

	// Search returns the raw ranked chunks for a query without generation.
	Search(ctx context.Context, query string, topK int) ([]ScoredChunk, error)
}
