// Package embedding provides the embedding capability: clients that map text
// to fixed-dimension float32 vectors, plus vector normalization helpers.
package embedding

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"ragbot/internal/domain"
)

var _ domain.Embedder = (*OpenAI)(nil)

const defaultOpenAIModel = "text-embedding-3-small"

// OpenAI embeds text through the OpenAI embeddings API or any compatible
// endpoint (configurable base URL).
type OpenAI struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string // optional, for compatible APIs
	Model   string
	Logger  *slog.Logger
}

func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai embeddings: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: cfg.Logger,
	}, nil
}

func (o *OpenAI) Model() string { return o.model }

// EmbedBatch returns one vector per input text, in input order.
func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(o.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d texts", len(resp.Data), len(texts))
	}

	// The API may return data out of order; place vectors by index.
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("openai embeddings: index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
