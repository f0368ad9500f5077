package filtering

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/spigell/candidate-matcher/internal/ranking"
	"go.uber.org/zap"
)

type minScoreFilter struct {
	disabled  bool
	reason    string
	threshold float64
}

// NewMinScore creates a filter that drops candidates scoring below the configured minimum.
func NewMinScore() Filter {
	return &minScoreFilter{}
}

func (f *minScoreFilter) Name() string { return "min_score" }

func (f *minScoreFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *minScoreFilter) IsEnabled() bool { return !f.disabled }

func (f *minScoreFilter) Validate(cfg *Config) error {
	f.threshold = 0
	if cfg != nil {
		f.threshold = cfg.MinimumScore
	}
	if math.IsNaN(f.threshold) || math.IsInf(f.threshold, 0) {
		return fmt.Errorf("minimum score must be a finite number")
	}
	return nil
}

func (f *minScoreFilter) Apply(_ context.Context, deps Deps, c []ranking.ScoredCandidate) ([]ranking.ScoredCandidate, Step, error) {
	initial := len(c)
	if f.threshold <= 0 {
		return c, Step{Initial: initial, Left: initial}, nil
	}

	kept, dropped := keep(c, func(candidate ranking.ScoredCandidate) bool {
		return candidate.WeightedScore >= f.threshold
	})

	if len(dropped) > 0 {
		deps.Logger.Info("excluding candidates below minimum score",
			zap.Float64("threshold", f.threshold),
			zap.Strings("excluded_candidates", dropped),
			zap.Int("candidates_left", len(kept)),
		)
	}

	return kept, Step{Initial: initial, Dropped: len(dropped), Left: len(kept)}, nil
}

func (f *minScoreFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"threshold": strconv.FormatFloat(f.threshold, 'f', 2, 64)},
	}
}
