package rag

import (
	"context"
	"log/slog"
	"strings"

	"ragbot/internal/domain"
)

// Fallback answers shown to users when the LLM cannot produce one. Retrieval
// keeps working; provider failures never turn into errors at this layer.
const (
	fallbackAnswer = "Не удалось получить ответ от модели. Попробуйте повторить вопрос позже."
	emptyAnswer    = "По вашему вопросу ничего не найдено в базе знаний."
)

// Assembler turns retrieved chunks into a final answer with provenance.
type Assembler struct {
	provider domain.Provider
	logger   *slog.Logger
}

func NewAssembler(provider domain.Provider, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{provider: provider, logger: logger}
}

// Assemble builds the context block from the chunks in rank order, asks the
// provider for an answer and attaches one source per chunk. A provider
// failure yields a fixed fallback answer, still with sources.
func (a *Assembler) Assemble(ctx context.Context, query string, chunks []domain.ScoredChunk) domain.Answer {
	sources := make([]domain.Source, 0, len(chunks))
	for _, c := range chunks {
		sources = append(sources, domain.Source{URL: c.Chunk.SourceURL, Timestamp: c.Chunk.Timestamp})
	}

	if len(chunks) == 0 {
		return domain.Answer{Answer: emptyAnswer, Sources: sources}
	}

	answer, err := a.provider.Generate(ctx, query, BuildContext(chunks))
	if err != nil {
		a.logger.Error("answer generation failed", "provider", a.provider.Name(), "error", err)
		return domain.Answer{Answer: fallbackAnswer, Sources: sources}
	}

	return domain.Answer{Answer: strings.TrimSpace(answer), Sources: sources}
}

// BuildContext renders chunks as a bullet list for prompt injection, one
// line per chunk in rank order.
func BuildContext(chunks []domain.ScoredChunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString("- ")
		sb.WriteString(c.Chunk.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}
