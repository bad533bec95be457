// Package rag wires the retrieval pipeline together: query validation,
// embedding, index search and answer assembly, with an offline builder for
// producing the index artifacts.
package rag

import (
	"context"
	"log/slog"

	"ragbot/internal/domain"
)

// MsgInvalidQuery is what every channel shows when the query fails
// validation.
const MsgInvalidQuery = "Пожалуйста, задайте осмысленный вопрос."

// InteractionLogger records answered queries. Logging is best-effort and
// must never fail a request.
type InteractionLogger interface {
	Log(ctx context.Context, channel, userID, query string, answer domain.Answer)
}

// Service answers user questions over a loaded index. It implements
// domain.AnswerService and is safe for concurrent use: the index is
// immutable after load and the provider clients are concurrency-safe.
type Service struct {
	retriever *Retriever
	assembler *Assembler
	topK      int
	logger    *slog.Logger
}

type ServiceConfig struct {
	Retriever *Retriever
	Assembler *Assembler
	TopK      int
	Logger    *slog.Logger
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.TopK < 1 || cfg.TopK > MaxTopK {
		cfg.TopK = DefaultTopK
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		retriever: cfg.Retriever,
		assembler: cfg.Assembler,
		topK:      cfg.TopK,
		logger:    cfg.Logger,
	}
}

var _ domain.AnswerService = (*Service)(nil)

// Answer retrieves the nearest chunks for the query and assembles an answer
// with sources. Invalid queries return domain.ErrInvalidQuery before any
// embedding happens.
func (s *Service) Answer(ctx context.Context, query string) (domain.Answer, error) {
	chunks, err := s.retriever.Retrieve(ctx, query, s.topK)
	if err != nil {
		return domain.Answer{}, err
	}
	return s.assembler.Assemble(ctx, query, chunks), nil
}

// Search returns the raw ranked chunks without LLM generation.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]domain.ScoredChunk, error) {
	return s.retriever.Retrieve(ctx, query, topK)
}
