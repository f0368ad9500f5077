// Package gemini implements the ai interfaces on top of the Google GenAI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spigell/candidate-matcher/internal/logger"
	"github.com/spigell/candidate-matcher/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	Provider = "gemini"

	defaultModel          = "gemini-2.5-flash"
	defaultEmbeddingModel = "text-embedding-004"
	defaultMaxRetries     = 3
	defaultMaxInputRunes  = 8000
	defaultMaxLogLength   = 200
)

// Config holds the Gemini settings shared by the generator, analyzer and embedder.
type Config struct {
	APIKey         string `mapstructure:"api-key" json:"-"`
	APIKeyFile     string `mapstructure:"api-key-file"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding-model"`
	Dimensions     int    `mapstructure:"dimensions" validate:"gte=0"`
	MaxInputRunes  int    `mapstructure:"max-input-runes" validate:"gte=0"`
	MaxRetries     int    `mapstructure:"max-retries" validate:"gte=0"`
	MaxLogLength   int    `mapstructure:"max-log-length" validate:"gte=0"`
}

func (c Config) withDefaults() Config {
	if c.Model = strings.TrimSpace(c.Model); c.Model == "" {
		c.Model = defaultModel
	}
	if c.EmbeddingModel = strings.TrimSpace(c.EmbeddingModel); c.EmbeddingModel == "" {
		c.EmbeddingModel = defaultEmbeddingModel
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.MaxInputRunes <= 0 {
		c.MaxInputRunes = defaultMaxInputRunes
	}
	if c.MaxLogLength <= 0 {
		c.MaxLogLength = defaultMaxLogLength
	}
	return c
}

// modelsAPI is the subset of *genai.Models used here.
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// NewClient creates a GenAI client for the Gemini API backend.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return client, nil
}

// Generator sends prompts to a Gemini completion model.
type Generator struct {
	models     modelsAPI
	model      string
	maxRetries int
	maxLogLen  int
	jsonOutput bool
	logger     *zap.Logger
}

func NewGenerator(client *genai.Client, cfg Config, log *zap.Logger) *Generator {
	cfg = cfg.withDefaults()
	return &Generator{
		models:     client.Models,
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		maxLogLen:  cfg.MaxLogLength,
		logger:     logger.WithCommonFields(log, Provider, cfg.Model, cfg.EmbeddingModel),
	}
}

// JSON returns a copy of the generator that asks the model for application/json output.
func (g *Generator) JSON() *Generator {
	c := *g
	c.jsonOutput = true
	return &c
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

// GenerateContent sends the prompt and returns the concatenated textual parts of the answer.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	var config *genai.GenerateContentConfig
	if g.jsonOutput {
		config = &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	}

	g.logger.Debug("gemini generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, g.maxLogLen)),
	)

	var resp *genai.GenerateContentResponse
	err := withRetries(ctx, g.logger, g.maxRetries, "generate content", func() error {
		var err error
		resp, err = g.models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	output := responseText(resp)
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	g.logger.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(output)),
		zap.String("response_preview", utils.TruncateForLog(output, g.maxLogLen)),
	)

	return output, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	return strings.TrimSpace(builder.String())
}
