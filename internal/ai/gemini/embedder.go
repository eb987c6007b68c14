package gemini

import (
	"context"

	"go.uber.org/zap"
)

type textEmbedder interface {
	EmbedTexts(ctx context.Context, taskType string, texts []string) ([][]float32, error)
}

// Embedder adapts the Gemini embedding call to ai.Embedder.
type Embedder struct {
	client textEmbedder
	logger *zap.Logger
}

func NewEmbedder(client textEmbedder, logger *zap.Logger) *Embedder {
	return &Embedder{
		client: client,
		logger: logger,
	}
}

func (e *Embedder) Embed(ctx context.Context, taskType string, texts []string) ([][]float32, error) {
	e.logger.Debug("gemini embed request",
		zap.String("task_type", taskType),
		zap.Int("texts", len(texts)),
	)

	return e.client.EmbedTexts(ctx, taskType, texts)
}
