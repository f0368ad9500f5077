package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldProvider is the structured log field key for the AI provider name.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the completion model.
	FieldModel = "ai_model"
	// FieldEmbeddingModel is the structured log field key for the embedding model.
	FieldEmbeddingModel = "ai_embedding_model"
	// FieldRunID identifies a single ranking run across all of its log entries.
	FieldRunID = "run_id"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts key/value pairs into zap fields, skipping blank keys and values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		value := strings.TrimSpace(field.Value)
		if key == "" || value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches fields to the logger. A nil logger becomes a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// CommonFields describes the AI provider together with the completion and embedding models.
func CommonFields(provider, model, embeddingModel string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
		StringField{Key: FieldEmbeddingModel, Value: embeddingModel},
	)
}

// WithCommonFields attaches CommonFields to the logger.
func WithCommonFields(logger *zap.Logger, provider, model, embeddingModel string) *zap.Logger {
	return WithFields(logger, CommonFields(provider, model, embeddingModel)...)
}

// WithRun tags every entry of the logger with the ranking run identifier.
func WithRun(logger *zap.Logger, runID string) *zap.Logger {
	return WithFields(logger, StringFields(StringField{Key: FieldRunID, Value: runID})...)
}
