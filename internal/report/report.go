// Package report renders ranking results for people: log entries, a JSON dump and an xlsx workbook.
package report

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/candidate-matcher/internal/ai"
	"github.com/spigell/candidate-matcher/internal/ranking"
	"github.com/spigell/candidate-matcher/internal/utils"
	"go.uber.org/zap"
)

const (
	jobDescriptionPreview = 300
	unanalyzed            = "unanalyzed"
)

// Report is the outcome of one ranking run. Ranked always holds the full
// ranking, Shown holds the candidates left after selection filters.
type Report struct {
	RunID          string                     `json:"run_id"`
	GeneratedAt    time.Time                  `json:"generated_at"`
	JobDescription string                     `json:"job_description"`
	Weights        ranking.WeightConfig       `json:"weights"`
	Total          int                        `json:"total"`
	Ranked         []ranking.ScoredCandidate  `json:"ranked"`
	Shown          []ranking.ScoredCandidate  `json:"shown"`
	Failed         []ranking.EmbeddingFailure `json:"failed"`
}

func New(runID string, jd ranking.JobDescription, weights ranking.WeightConfig, result *ranking.Result, shown []ranking.ScoredCandidate) *Report {
	r := &Report{
		RunID:          runID,
		GeneratedAt:    time.Now().UTC(),
		JobDescription: utils.TruncateForLog(jd.Text, jobDescriptionPreview),
		Weights:        weights,
		Shown:          shown,
	}
	if result != nil {
		r.Total = result.Len()
		r.Ranked = result.Ranked
		r.Failed = result.Failed
	}
	if r.Shown == nil {
		r.Shown = r.Ranked
	}
	return r
}

func (r *Report) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "candidates_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// ByRecommendation groups shown candidates by the analyzer recommendation.
func (r *Report) ByRecommendation() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, c := range r.Shown {
		key := unanalyzed
		entry := map[string]string{
			"position":       strconv.Itoa(c.Position),
			"document":       c.DocumentID,
			"similarity":     formatScore(c.Similarity),
			"weighted_score": formatScore(c.WeightedScore),
			"characters":     strconv.Itoa(c.CharCount),
			"words":          strconv.Itoa(c.WordCount),
		}

		if c.Features != nil {
			if c.Features.Recommendation != "" {
				key = string(c.Features.Recommendation)
			}
			entry["fit_score"] = strconv.Itoa(c.Features.FitScore)
			entry["strengths"] = strings.Join(c.Features.Strengths, "; ")
			entry["concerns"] = strings.Join(c.Features.Concerns, "; ")
			entry["summary"] = c.Features.Summary
		}
		if c.AnalysisError != "" {
			entry["analysis_error"] = c.AnalysisError
		}

		report[key] = append(report[key], entry)
	}
	return report
}

// Log writes one entry per shown candidate and one warning per failed document.
func (r *Report) Log(logger *zap.Logger) {
	for _, c := range r.Shown {
		fields := []zap.Field{
			zap.Int("position", c.Position),
			zap.String("document", c.DocumentID),
			zap.Float64("similarity", round(c.Similarity)),
			zap.Float64("weighted_score", round(c.WeightedScore)),
			zap.Int("characters", c.CharCount),
			zap.Int("words", c.WordCount),
		}
		if c.Features != nil {
			fields = append(fields,
				zap.String("recommendation", string(c.Features.Recommendation)),
				zap.Int("fit_score", c.Features.FitScore),
			)
		}
		logger.Info("candidate", fields...)
	}

	for _, f := range r.Failed {
		logger.Warn("document not ranked", zap.String("document", f.DocumentID), zap.Error(f.Err))
	}

	logger.Info("run summary",
		zap.String("run_id", r.RunID),
		zap.Int("total", r.Total),
		zap.Int("ranked", len(r.Ranked)),
		zap.Int("shown", len(r.Shown)),
		zap.Int("failed", len(r.Failed)),
	)
}

func recommendationOf(c ranking.ScoredCandidate) ai.Recommendation {
	if c.Features == nil {
		return ""
	}
	return c.Features.Recommendation
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func round(v float64) float64 {
	f, _ := strconv.ParseFloat(formatScore(v), 64)
	return f
}
