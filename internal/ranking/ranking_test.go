package ranking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spigell/candidate-matcher/internal/ai"
	"github.com/spigell/candidate-matcher/internal/documents"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const jdText = "backend engineer with Python experience"

type stubEmbedder struct {
	vectors map[string][]float32
	errs    map[string]error
	delays  map[string]time.Duration
	calls   atomic.Int32
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.calls.Add(1)
	if d := s.delays[text]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := s.errs[text]; err != nil {
		return nil, err
	}
	v, ok := s.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return v, nil
}

// unit returns a 2d vector with the given cosine to (1, 0).
func unit(cos float64) []float32 {
	return []float32{float32(cos), float32(math.Sqrt(1 - cos*cos))}
}

func mustDocs(t *testing.T, texts ...string) []documents.Document {
	t.Helper()
	store := documents.NewStore()
	for i, text := range texts {
		if _, err := store.Add(fmt.Sprintf("doc%d", i+1), text); err != nil {
			t.Fatalf("add document: %v", err)
		}
	}
	return store.All()
}

func ids(candidates []ScoredCandidate) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.DocumentID)
	}
	return out
}

func TestRankScenarioWithFailure(t *testing.T) {
	t.Parallel()

	embed := &stubEmbedder{
		vectors: map[string][]float32{
			jdText:         {1, 0},
			"python dev":   unit(0.9),
			"data analyst": unit(0.4),
		},
		errs: map[string]error{"broken": errors.New("timeout")},
	}

	docs := mustDocs(t, "data analyst", "broken", "python dev")

	result, err := Rank(context.Background(), JobDescription{Text: jdText}, docs, DefaultWeights(), embed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := ids(result.Ranked); !reflect.DeepEqual(got, []string{"doc3", "doc1"}) {
		t.Fatalf("unexpected ranking: %v", got)
	}
	if got := result.FailedIDs(); !reflect.DeepEqual(got, []string{"doc2"}) {
		t.Fatalf("unexpected failures: %v", got)
	}
	if len(result.Ranked) != len(docs)-len(result.Failed) {
		t.Fatalf("ranked plus failed must cover all documents")
	}

	if math.Abs(result.Ranked[0].Similarity-0.9) > 1e-6 || math.Abs(result.Ranked[1].Similarity-0.4) > 1e-6 {
		t.Fatalf("unexpected similarities: %+v", result.Ranked)
	}
	if result.Ranked[0].Position != 1 || result.Ranked[1].Position != 2 {
		t.Fatalf("unexpected positions: %+v", result.Ranked)
	}
	if result.Ranked[0].CharCount != 10 || result.Ranked[0].WordCount != 2 || result.Ranked[1].CharCount != 12 {
		t.Fatalf("text counts not carried from documents: %+v", result.Ranked)
	}

	if failure := result.Failed[0]; failure.Err == nil || failure.Err.Error() != "timeout" {
		t.Fatalf("unexpected failure: %+v", failure)
	}
}

func TestRankKeywordWeightOnlyEqualsSimilarity(t *testing.T) {
	t.Parallel()

	embed := &stubEmbedder{vectors: map[string][]float32{
		jdText: {1, 0},
		"a":    unit(0.2),
		"b":    unit(-0.5),
		"c":    unit(0.7),
	}}

	result, err := Rank(context.Background(), JobDescription{Text: jdText}, mustDocs(t, "a", "b", "c"),
		WeightConfig{KeywordWeight: 1}, embed, WithAnalyzer(fixedAnalyzer{features: &ai.FeatureSet{Strengths: []string{"x"}, Potential: 1}}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, c := range result.Ranked {
		if c.WeightedScore != c.Similarity {
			t.Fatalf("expected weighted score %v to equal similarity %v", c.WeightedScore, c.Similarity)
		}
	}
	if got := ids(result.Ranked); !reflect.DeepEqual(got, []string{"doc3", "doc1", "doc2"}) {
		t.Fatalf("unexpected ranking: %v", got)
	}
}

func TestRankStableTieBreakAndIdempotence(t *testing.T) {
	t.Parallel()

	embed := &stubEmbedder{
		vectors: map[string][]float32{
			jdText: {1, 0},
			"same": unit(0.5),
			"best": unit(0.8),
		},
		// Later documents finish first.
		delays: map[string]time.Duration{"same": 20 * time.Millisecond},
	}

	docs := []documents.Document{
		{ID: "first", Text: "same"},
		{ID: "second", Text: "same"},
		{ID: "top", Text: "best"},
		{ID: "third", Text: "same"},
	}

	var previous []ScoredCandidate
	for run := 0; run < 3; run++ {
		result, err := Rank(context.Background(), JobDescription{Text: jdText}, docs, DefaultWeights(), embed, WithConcurrency(4))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := ids(result.Ranked); !reflect.DeepEqual(got, []string{"top", "first", "second", "third"}) {
			t.Fatalf("unexpected ranking: %v", got)
		}
		if previous != nil && !reflect.DeepEqual(previous, result.Ranked) {
			t.Fatalf("expected identical output across runs")
		}
		previous = result.Ranked
	}
}

func TestRankValidationHappensBeforeEmbedding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		jd      string
		docs    []documents.Document
		weights WeightConfig
	}{
		{name: "empty job description", jd: "  ", docs: []documents.Document{{ID: "a", Text: "x"}}, weights: DefaultWeights()},
		{name: "no documents", jd: jdText, weights: DefaultWeights()},
		{name: "empty document", jd: jdText, docs: []documents.Document{{ID: "a", Text: "x"}, {ID: "b", Text: " \n"}}, weights: DefaultWeights()},
		{name: "nan weight", jd: jdText, docs: []documents.Document{{ID: "a", Text: "x"}}, weights: WeightConfig{KeywordWeight: math.NaN()}},
		{name: "inf weight", jd: jdText, docs: []documents.Document{{ID: "a", Text: "x"}}, weights: WeightConfig{PotentialWeight: math.Inf(-1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			embed := &stubEmbedder{vectors: map[string][]float32{jdText: {1}, "x": {1}}}

			_, err := Rank(context.Background(), JobDescription{Text: tt.jd}, tt.docs, tt.weights, embed)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if embed.calls.Load() != 0 {
				t.Fatalf("expected no embedding calls, got %d", embed.calls.Load())
			}
		})
	}
}

func TestRankNegativeWeightsAreNotClamped(t *testing.T) {
	t.Parallel()

	embed := &stubEmbedder{vectors: map[string][]float32{jdText: {1, 0}, "a": unit(0.5)}}

	result, err := Rank(context.Background(), JobDescription{Text: jdText}, mustDocs(t, "a"), WeightConfig{KeywordWeight: -2}, embed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result.Ranked[0].WeightedScore; math.Abs(got+1) > 1e-6 {
		t.Fatalf("expected -1, got %v", got)
	}
}

func TestRankDimensionMismatchIsFatal(t *testing.T) {
	t.Parallel()

	embed := &stubEmbedder{vectors: map[string][]float32{
		jdText: {1, 0},
		"ok":   {1, 0},
		"odd":  {1, 0, 0},
	}}

	result, err := Rank(context.Background(), JobDescription{Text: jdText}, mustDocs(t, "ok", "odd"), DefaultWeights(), embed)
	var dimErr *DimensionMismatchError
	if !errors.As(err, &dimErr) {
		t.Fatalf("expected DimensionMismatchError, got %v", err)
	}
	if dimErr.DocumentID != "doc2" || dimErr.Expected != 2 || dimErr.Got != 3 {
		t.Fatalf("unexpected error details: %+v", dimErr)
	}
	if result != nil {
		t.Fatalf("expected no result")
	}
}

func TestRankJobDescriptionFailureIsFatal(t *testing.T) {
	t.Parallel()

	embed := &stubEmbedder{errs: map[string]error{jdText: errors.New("quota")}}

	_, err := Rank(context.Background(), JobDescription{Text: jdText}, mustDocs(t, "a"), DefaultWeights(), embed)
	if err == nil || errors.Is(err, ErrBatchCancelled) {
		t.Fatalf("expected job description error, got %v", err)
	}
	if embed.calls.Load() != 1 {
		t.Fatalf("expected only the job description call, got %d", embed.calls.Load())
	}
}

func TestRankAllDocumentsFailing(t *testing.T) {
	t.Parallel()

	embed := &stubEmbedder{vectors: map[string][]float32{jdText: {1}}}

	result, err := Rank(context.Background(), JobDescription{Text: jdText}, mustDocs(t, "a", "b"), DefaultWeights(), embed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Ranked) != 0 || len(result.Failed) != 2 {
		t.Fatalf("expected every document to fail, got %+v", result)
	}
}

func TestRankCancellation(t *testing.T) {
	t.Parallel()

	embed := &stubEmbedder{
		vectors: map[string][]float32{jdText: {1}, "slow": {1}},
		delays:  map[string]time.Duration{"slow": time.Minute},
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	result, err := Rank(ctx, JobDescription{Text: jdText}, mustDocs(t, "slow", "slow"), DefaultWeights(), embed)
	if !errors.Is(err, ErrBatchCancelled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected ErrBatchCancelled wrapping context.Canceled, got %v", err)
	}
	if result != nil {
		t.Fatalf("expected no partial result")
	}
}

func TestRankAlreadyCancelledContext(t *testing.T) {
	t.Parallel()

	embed := &stubEmbedder{vectors: map[string][]float32{jdText: {1}, "a": {1}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Rank(ctx, JobDescription{Text: jdText}, mustDocs(t, "a"), DefaultWeights(), embed)
	if !errors.Is(err, ErrBatchCancelled) {
		t.Fatalf("expected ErrBatchCancelled, got %v", err)
	}
	if embed.calls.Load() != 0 {
		t.Fatalf("expected no embedding calls")
	}
}

type concurrencyProbe struct {
	mu      sync.Mutex
	current int
	peak    int
}

func (p *concurrencyProbe) Embed(_ context.Context, _ string) ([]float32, error) {
	p.mu.Lock()
	p.current++
	if p.current > p.peak {
		p.peak = p.current
	}
	p.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	p.mu.Lock()
	p.current--
	p.mu.Unlock()

	return []float32{1, 1}, nil
}

func TestRankRespectsConcurrencyLimit(t *testing.T) {
	t.Parallel()

	probe := &concurrencyProbe{}
	texts := make([]string, 12)
	for i := range texts {
		texts[i] = fmt.Sprintf("doc text %d", i)
	}

	result, err := Rank(context.Background(), JobDescription{Text: jdText}, mustDocs(t, texts...), DefaultWeights(), probe, WithConcurrency(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Ranked) != 12 {
		t.Fatalf("expected 12 ranked, got %d", len(result.Ranked))
	}
	if probe.peak > 2 {
		t.Fatalf("expected at most 2 concurrent calls, got %d", probe.peak)
	}
}

type fixedAnalyzer struct {
	features *ai.FeatureSet
	err      error
}

func (f fixedAnalyzer) Analyze(context.Context, string, string) (*ai.FeatureSet, error) {
	return f.features, f.err
}

func TestRankWithFeatureContributions(t *testing.T) {
	t.Parallel()

	embed := &stubEmbedder{vectors: map[string][]float32{jdText: {1, 0}, "a": unit(0.5)}}
	features := &ai.FeatureSet{
		Strengths: []string{"go", "k8s", "sql"},
		Concerns:  []string{"short tenure"},
		Potential: 0.5,
	}
	weights := WeightConfig{KeywordWeight: 1, StrengthWeight: 0.1, ConcernPenaltyWeight: 0.2, PotentialWeight: 0.4}

	result, err := Rank(context.Background(), JobDescription{Text: jdText}, mustDocs(t, "a"), weights, embed,
		WithAnalyzer(fixedAnalyzer{features: features}),
		WithContributions(func(context.Context, documents.Document) ([]Contribution, error) {
			return []Contribution{{Name: "referral", Value: 1, Weight: 0.05, Sign: 1}}, nil
		}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 0.5 + 3*0.1 - 1*0.2 + 0.5*0.4 + 0.05
	want := 0.85
	got := result.Ranked[0]
	if math.Abs(got.WeightedScore-want) > 1e-6 {
		t.Fatalf("expected %v, got %v", want, got.WeightedScore)
	}
	if len(got.Contributions) != 4 || got.Features != features {
		t.Fatalf("unexpected contributions: %+v", got)
	}
}

func TestRankAnalyzerFailureKeepsCandidate(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	embed := &stubEmbedder{vectors: map[string][]float32{jdText: {1, 0}, "a": unit(0.3)}}

	result, err := Rank(context.Background(), JobDescription{Text: jdText}, mustDocs(t, "a"), WeightConfig{KeywordWeight: 1, StrengthWeight: 5}, embed,
		WithAnalyzer(fixedAnalyzer{err: &ai.ParseError{Reason: "not json"}}),
		WithLogger(zap.New(core)),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := result.Ranked[0]
	if math.Abs(got.WeightedScore-0.3) > 1e-6 || len(got.Contributions) != 0 || got.AnalysisError == "" {
		t.Fatalf("expected similarity-only candidate with analysis error, got %+v", got)
	}
	if logs.FilterMessage("analysis failed, ranking on similarity only").Len() != 1 {
		t.Fatalf("expected analysis failure to be logged")
	}
}

func TestResultTop(t *testing.T) {
	t.Parallel()

	r := &Result{Ranked: []ScoredCandidate{{DocumentID: "a"}, {DocumentID: "b"}, {DocumentID: "c"}}}

	if got := ids(r.Top(2)); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("unexpected top 2: %v", got)
	}
	if got := len(r.Top(0)); got != 3 {
		t.Fatalf("expected all candidates for k=0, got %d", got)
	}
	if got := len(r.Top(10)); got != 3 {
		t.Fatalf("expected all candidates for large k, got %d", got)
	}
}
