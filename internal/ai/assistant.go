package ai

import (
	"context"
	"fmt"
)

// Embedder turns a text into a dense vector. All vectors produced by one
// embedder for one run are expected to share the same length.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Analyzer extracts structured features of a candidate document relative to a job description.
type Analyzer interface {
	Analyze(ctx context.Context, jobDescription, document string) (*FeatureSet, error)
}

type Recommendation string

const (
	RecommendationStrong         Recommendation = "strong"
	RecommendationPossible       Recommendation = "possible"
	RecommendationAverage        Recommendation = "average"
	RecommendationNotRecommended Recommendation = "not_recommended"
)

// FeatureSet is the validated output of an Analyzer.
type FeatureSet struct {
	Keywords       []string       `json:"keywords" mapstructure:"keywords"`
	Strengths      []string       `json:"strengths" mapstructure:"strengths"`
	Concerns       []string       `json:"concerns" mapstructure:"concerns"`
	Potential      float64        `json:"potential" mapstructure:"potential"`
	FitScore       int            `json:"fit_score" mapstructure:"fit_score"`
	Recommendation Recommendation `json:"recommendation" mapstructure:"recommendation"`
	Summary        string         `json:"summary" mapstructure:"summary"`
}

// ParseError reports model output that could not be turned into a FeatureSet.
type ParseError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse model output: %s: %v", e.Reason, e.Err)
	}
	return "parse model output: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
