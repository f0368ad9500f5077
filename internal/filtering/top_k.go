package filtering

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spigell/candidate-matcher/internal/ranking"
)

const DefaultTopK = 5

type topKFilter struct {
	disabled bool
	reason   string
	k        int
}

// NewTopK creates a filter that keeps only the best K candidates.
func NewTopK() Filter {
	return &topKFilter{}
}

func (f *topKFilter) Name() string { return "top_k" }

func (f *topKFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *topKFilter) IsEnabled() bool { return !f.disabled }

func (f *topKFilter) Validate(cfg *Config) error {
	f.k = 0
	if cfg != nil {
		f.k = cfg.TopK
	}
	if f.k < 0 {
		return fmt.Errorf("top-k must not be negative, got %d", f.k)
	}
	return nil
}

func (f *topKFilter) Apply(_ context.Context, _ Deps, c []ranking.ScoredCandidate) ([]ranking.ScoredCandidate, Step, error) {
	initial := len(c)
	if f.k == 0 || f.k >= initial {
		return c, Step{Initial: initial, Left: initial}, nil
	}

	return c[:f.k], Step{Initial: initial, Dropped: initial - f.k, Left: f.k}, nil
}

func (f *topKFilter) Status() Status {
	details := map[string]string{}
	if f.k > 0 {
		details["k"] = strconv.Itoa(f.k)
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
