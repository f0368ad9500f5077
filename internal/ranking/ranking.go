// Package ranking scores candidate documents against a job description by
// embedding cosine similarity plus optional weighted feature terms.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spigell/candidate-matcher/internal/ai"
	"github.com/spigell/candidate-matcher/internal/documents"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 4

type JobDescription struct {
	Text string `json:"text"`
}

type ScoredCandidate struct {
	Position      int            `json:"position"`
	DocumentID    string         `json:"document_id"`
	Similarity    float64        `json:"similarity"`
	WeightedScore float64        `json:"weighted_score"`
	CharCount     int            `json:"char_count"`
	WordCount     int            `json:"word_count"`
	Contributions []Contribution `json:"contributions,omitempty"`
	Features      *ai.FeatureSet `json:"features,omitempty"`
	AnalysisError string         `json:"analysis_error,omitempty"`
}

// Result is a completed ranking. Ranked and Failed together cover every input document.
type Result struct {
	Ranked []ScoredCandidate  `json:"ranked"`
	Failed []EmbeddingFailure `json:"failed"`
}

// Top returns the first k ranked candidates, or all of them when k <= 0.
func (r *Result) Top(k int) []ScoredCandidate {
	if r == nil {
		return nil
	}
	if k <= 0 || k >= len(r.Ranked) {
		return r.Ranked
	}
	return r.Ranked[:k]
}

// Len is the number of input documents, ranked or failed.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Ranked) + len(r.Failed)
}

// FailedIDs returns identifiers of documents that could not be embedded.
func (r *Result) FailedIDs() []string {
	ids := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		ids = append(ids, f.DocumentID)
	}
	return ids
}

type options struct {
	concurrency   int
	contributions ContributionFunc
	analyzer      ai.Analyzer
	logger        *zap.Logger
}

type Option func(*options)

// WithConcurrency bounds the number of documents processed at once.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithContributions adds caller supplied score terms for every embedded document.
func WithContributions(fn ContributionFunc) Option {
	return func(o *options) {
		o.contributions = fn
	}
}

// WithAnalyzer enables feature analysis. Features are mapped to score terms with FeatureContributions.
func WithAnalyzer(a ai.Analyzer) Option {
	return func(o *options) {
		o.analyzer = a
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// slot is written by exactly one worker, the one handling the document at the same index.
type slot struct {
	vector        []float32
	err           error
	contributions []Contribution
	features      *ai.FeatureSet
	analysisErr   error
}

// Rank embeds jd and every document, scores them and returns them ordered by
// weighted score descending with ties kept in input order. A document that
// fails to embed is reported in Result.Failed and the rest are still ranked.
func Rank(ctx context.Context, jd JobDescription, docs []documents.Document, weights WeightConfig, embed ai.Embedder, opts ...Option) (*Result, error) {
	o := options{concurrency: DefaultConcurrency, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	if err := validate(jd, docs, weights); err != nil {
		return nil, err
	}
	if embed == nil {
		return nil, errors.New("embedder is required")
	}

	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}

	jdVec, err := embed.Embed(ctx, jd.Text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx.Err())
		}
		return nil, fmt.Errorf("embed job description: %w", err)
	}

	o.logger.Debug("job description embedded", zap.Int("dimensions", len(jdVec)))

	slots := make([]slot, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for i := range docs {
		g.Go(func() error {
			return process(gctx, jd, docs[i], jdVec, weights, embed, &o, &slots[i])
		})
	}

	waitErr := g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}
	if waitErr != nil {
		return nil, waitErr
	}

	result := collect(docs, slots, jdVec, weights)

	o.logger.Info("ranking completed",
		zap.Int("documents", len(docs)),
		zap.Int("ranked", len(result.Ranked)),
		zap.Int("failed", len(result.Failed)),
	)

	return result, nil
}

func validate(jd JobDescription, docs []documents.Document, weights WeightConfig) error {
	if strings.TrimSpace(jd.Text) == "" {
		return &ValidationError{Subject: "job description", Reason: "text is empty"}
	}
	if len(docs) == 0 {
		return &ValidationError{Subject: "documents", Reason: "at least one document is required"}
	}
	for i, doc := range docs {
		if strings.TrimSpace(doc.Text) == "" {
			subject := doc.ID
			if subject == "" {
				subject = fmt.Sprintf("document %d", i+1)
			}
			return &ValidationError{Subject: subject, Reason: "text is empty"}
		}
	}
	return weights.Validate()
}

func process(ctx context.Context, jd JobDescription, doc documents.Document, jdVec []float32, weights WeightConfig, embed ai.Embedder, o *options, s *slot) error {
	vec, err := embed.Embed(ctx, doc.Text)
	if err != nil {
		o.logger.Warn("embedding failed", zap.String("document", doc.ID), zap.Error(err))
		s.err = err
		return nil
	}

	if len(vec) != len(jdVec) {
		return &DimensionMismatchError{DocumentID: doc.ID, Expected: len(jdVec), Got: len(vec)}
	}
	s.vector = vec

	if o.analyzer != nil {
		features, err := o.analyzer.Analyze(ctx, jd.Text, doc.Text)
		if err != nil {
			o.logger.Warn("analysis failed, ranking on similarity only", zap.String("document", doc.ID), zap.Error(err))
			s.analysisErr = err
		} else {
			s.features = features
			s.contributions = append(s.contributions, FeatureContributions(features, weights)...)
		}
	}

	if o.contributions != nil {
		extra, err := o.contributions(ctx, doc)
		if err != nil {
			o.logger.Warn("contributions failed", zap.String("document", doc.ID), zap.Error(err))
			return nil
		}
		s.contributions = append(s.contributions, extra...)
	}

	return nil
}

// collect builds the ranking from the filled slots. It runs after all workers have finished.
func collect(docs []documents.Document, slots []slot, jdVec []float32, weights WeightConfig) *Result {
	result := &Result{
		Ranked: make([]ScoredCandidate, 0, len(docs)),
		Failed: make([]EmbeddingFailure, 0),
	}

	for i, doc := range docs {
		s := slots[i]
		if s.err != nil {
			result.Failed = append(result.Failed, EmbeddingFailure{DocumentID: doc.ID, Err: s.err})
			continue
		}

		sim := Cosine(jdVec, s.vector)
		score := sim * weights.KeywordWeight
		for _, c := range s.contributions {
			score += c.Score()
		}

		candidate := ScoredCandidate{
			DocumentID:    doc.ID,
			Similarity:    sim,
			WeightedScore: score,
			CharCount:     doc.CharCount,
			WordCount:     doc.WordCount,
			Contributions: s.contributions,
			Features:      s.features,
		}
		if s.analysisErr != nil {
			candidate.AnalysisError = s.analysisErr.Error()
		}

		result.Ranked = append(result.Ranked, candidate)
	}

	sort.SliceStable(result.Ranked, func(i, j int) bool {
		return result.Ranked[i].WeightedScore > result.Ranked[j].WeightedScore
	})

	for i := range result.Ranked {
		result.Ranked[i].Position = i + 1
	}

	return result
}

func cancelled(err error) error {
	return fmt.Errorf("%w: %w", ErrBatchCancelled, err)
}
