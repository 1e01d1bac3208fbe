package embedding

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const defaultBatchSize = 64

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint. The
// sentence-transformer models are served behind such an endpoint, so
// BaseURL usually points at the local embedding server.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	batchSize int
	logger    *zap.Logger
}

func NewOpenAIEmbedder(apiKey, baseURL, model string, batchSize int, logger *zap.Logger) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts[start:end],
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			e.logger.Error("Failed to create embeddings",
				zap.Error(err),
				zap.String("model", e.model),
				zap.Int("batch", end-start))
			return nil, fmt.Errorf("embed with %s: %w", e.model, err)
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("embed with %s: got %d vectors for %d inputs", e.model, len(resp.Data), end-start)
		}
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= end-start {
				return nil, fmt.Errorf("embed with %s: index %d out of range", e.model, d.Index)
			}
			out[start+d.Index] = d.Embedding
		}
		for i := start; i < end; i++ {
			if out[i] == nil {
				return nil, fmt.Errorf("embed with %s: no vector for input %d", e.model, i)
			}
		}
	}
	return out, nil
}
