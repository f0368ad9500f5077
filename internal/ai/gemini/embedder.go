package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/candidate-matcher/internal/logger"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const embeddingTaskType = "SEMANTIC_SIMILARITY"

// Embedder produces text embeddings with a Gemini embedding model.
type Embedder struct {
	models        modelsAPI
	model         string
	dimensions    int32
	maxInputRunes int
	maxRetries    int
	logger        *zap.Logger
}

func NewEmbedder(client *genai.Client, cfg Config, log *zap.Logger) *Embedder {
	cfg = cfg.withDefaults()
	return &Embedder{
		models:        client.Models,
		model:         cfg.EmbeddingModel,
		dimensions:    int32(cfg.Dimensions),
		maxInputRunes: cfg.MaxInputRunes,
		maxRetries:    cfg.MaxRetries,
		logger:        logger.WithCommonFields(log, Provider, cfg.Model, cfg.EmbeddingModel),
	}
}

func (e *Embedder) Model() string {
	return e.model
}

// Embed returns the embedding of text. Text longer than the configured rune
// limit is cut before sending.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e == nil || e.models == nil {
		return nil, errors.New("gemini embedder is not initialized")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("text to embed must not be empty")
	}

	if runes := []rune(text); e.maxInputRunes > 0 && len(runes) > e.maxInputRunes {
		e.logger.Debug("truncating embedding input",
			zap.Int("runes", len(runes)),
			zap.Int("limit", e.maxInputRunes),
		)
		text = string(runes[:e.maxInputRunes])
	}

	config := &genai.EmbedContentConfig{TaskType: embeddingTaskType}
	if e.dimensions > 0 {
		config.OutputDimensionality = genai.Ptr(e.dimensions)
	}

	var resp *genai.EmbedContentResponse
	err := withRetries(ctx, e.logger, e.maxRetries, "embed content", func() error {
		var err error
		resp, err = e.models.EmbedContent(ctx, e.model, genai.Text(text), config)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}

	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
		return nil, errors.New("gemini api returned empty embedding")
	}

	return resp.Embeddings[0].Values, nil
}
