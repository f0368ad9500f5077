package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"github.com/spigell/candidate-matcher/internal/ai"
	"github.com/spigell/candidate-matcher/internal/utils"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

//go:embed prompt.md
var promptTemplate string

//go:embed schema.json
var featureSchema string

var compiledSchema = mustSchema(featureSchema)

// Analyzer asks a completion model for candidate features and accepts only
// answers that match the feature schema exactly.
type Analyzer struct {
	generator contentGenerator
	maxInput  int
	maxLogLen int
	logger    *zap.Logger
}

func NewAnalyzer(generator contentGenerator, cfg Config, logger *zap.Logger) *Analyzer {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		generator: generator,
		maxInput:  cfg.MaxInputRunes,
		maxLogLen: cfg.MaxLogLength,
		logger:    logger,
	}
}

func (a *Analyzer) Analyze(ctx context.Context, jobDescription, document string) (*ai.FeatureSet, error) {
	if strings.TrimSpace(jobDescription) == "" {
		return nil, fmt.Errorf("job description is required")
	}
	if strings.TrimSpace(document) == "" {
		return nil, fmt.Errorf("document is required")
	}

	prompt := buildPrompt(truncateRunes(jobDescription, a.maxInput), truncateRunes(document, a.maxInput))

	raw, err := a.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	features, err := parseFeatures(raw)
	if err != nil {
		a.logger.Debug("rejected analyzer output",
			zap.Error(err),
			zap.String("response_preview", utils.TruncateForLog(raw, a.maxLogLen)),
		)
		return nil, err
	}

	return features, nil
}

func buildPrompt(jobDescription, document string) string {
	prompt := strings.ReplaceAll(promptTemplate, "{{JOB_DESCRIPTION}}", strings.TrimSpace(jobDescription))
	return strings.ReplaceAll(prompt, "{{DOCUMENT}}", strings.TrimSpace(document))
}

// parseFeatures validates raw model output against the feature schema and decodes it.
func parseFeatures(raw string) (*ai.FeatureSet, error) {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return nil, &ai.ParseError{Reason: "empty output", Raw: raw}
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, &ai.ParseError{Reason: "output is not a json object", Raw: raw, Err: err}
	}

	result, err := compiledSchema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return nil, &ai.ParseError{Reason: "schema validation", Raw: raw, Err: err}
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			field := desc.Field()
			if field == "" {
				field = "(root)"
			}
			problems = append(problems, field+": "+desc.Description())
		}
		return nil, &ai.ParseError{Reason: "schema mismatch: " + strings.Join(problems, "; "), Raw: raw}
	}

	var features ai.FeatureSet
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      &features,
	})
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}

	if err := decoder.Decode(data); err != nil {
		return nil, &ai.ParseError{Reason: "decode features", Raw: raw, Err: err}
	}

	return &features, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if limit <= 0 || len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func mustSchema(content string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(content))
	if err != nil {
		panic(fmt.Sprintf("invalid feature schema: %v", err))
	}
	return schema
}
