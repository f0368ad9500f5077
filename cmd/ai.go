package cmd

import (
	"context"
	"fmt"

	"github.com/spigell/candidate-matcher/internal/ai"
	"github.com/spigell/candidate-matcher/internal/ai/gemini"
	"github.com/spigell/candidate-matcher/internal/secrets"
	"go.uber.org/zap"
)

// newAIBackends builds the embedder and, when analysis is enabled, the analyzer.
func newAIBackends(ctx context.Context, cfg *Config, logger *zap.Logger) (ai.Embedder, ai.Analyzer, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  cfg.AI.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
		Value: cfg.AI.Gemini.APIKey,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w (set GEMINI_API_KEY, GEMINI_API_KEY_FILE or ai.gemini.api-key-file)", err)
	}

	client, err := gemini.NewClient(ctx, apiKey)
	if err != nil {
		return nil, nil, err
	}

	embedder := ai.NewCachingEmbedder(gemini.NewEmbedder(client, cfg.AI.Gemini, logger), cfg.AI.Cache)

	if !cfg.Analysis.Enabled {
		return embedder, nil, nil
	}

	generator := gemini.NewGenerator(client, cfg.AI.Gemini, logger).JSON()
	analyzer := gemini.NewAnalyzer(generator, cfg.AI.Gemini, logger.With(zap.String("component", "analyzer")))

	return embedder, analyzer, nil
}
