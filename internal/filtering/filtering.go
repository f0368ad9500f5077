// Package filtering selects which ranked candidates are shown after a run.
// Filters never reorder candidates and never touch the full ranking.
package filtering

import (
	"context"
	"fmt"

	"github.com/spigell/candidate-matcher/internal/ranking"
	"go.uber.org/zap"
)

// Filter represents a single selection step applied to ranked candidates.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, c []ranking.ScoredCandidate) ([]ranking.ScoredCandidate, Step, error)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger *zap.Logger
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Config contains configuration settings consumed by the filters.
type Config struct {
	MinimumScore float64
	ExcludeFile  string
	TopK         int
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Default returns the standard pipeline: minimum score, exclude file, then top-K.
func Default() []Filter {
	return []Filter{NewMinScore(), NewExcludeFile(), NewTopK()}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
// It reports whether a filter with that name was found.
func DisableByName(steps []Filter, name, reason string) bool {
	found := false
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
			found = true
		}
	}
	return found
}

// Run executes the supplied filters sequentially over a copy of the ranking
// and returns the candidates left to show.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, result *ranking.Result) ([]ranking.ScoredCandidate, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	var candidates []ranking.ScoredCandidate
	if result != nil {
		candidates = append(candidates, result.Ranked...)
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			deps.Logger.Info("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, deps, candidates)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		deps.Logger.Info("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		candidates = next
	}

	return candidates, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// keep returns the candidates for which pred holds, in order.
func keep(c []ranking.ScoredCandidate, pred func(ranking.ScoredCandidate) bool) (kept []ranking.ScoredCandidate, dropped []string) {
	kept = make([]ranking.ScoredCandidate, 0, len(c))
	for _, candidate := range c {
		if pred(candidate) {
			kept = append(kept, candidate)
			continue
		}
		dropped = append(dropped, candidate.DocumentID)
	}
	return kept, dropped
}
