package filtering

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spigell/candidate-matcher/internal/ranking"
	"go.uber.org/zap"
)

// ExcludedCandidates is the content of an exclude file.
type ExcludedCandidates struct {
	Items []*ExcludedCandidate
}

type ExcludedCandidate struct {
	ID            string
	RunID         string
	WeightedScore float64
	ExcludedAt    time.Time
}

// ToExcluded converts shown candidates into exclude file entries.
func ToExcluded(c []ranking.ScoredCandidate, runID string) *ExcludedCandidates {
	excluded := &ExcludedCandidates{}
	now := time.Now().UTC()
	for _, candidate := range c {
		excluded.Items = append(excluded.Items, &ExcludedCandidate{
			ID:            candidate.DocumentID,
			RunID:         runID,
			WeightedScore: candidate.WeightedScore,
			ExcludedAt:    now,
		})
	}
	return excluded
}

// GetExcludedCandidatesFromFile reads an exclude file. A missing or empty file yields an empty list.
func GetExcludedCandidatesFromFile(path string) (*ExcludedCandidates, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &ExcludedCandidates{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &ExcludedCandidates{}, nil
	}

	var excluded ExcludedCandidates
	if err := json.NewDecoder(file).Decode(&excluded); err != nil {
		return nil, err
	}
	return &excluded, nil
}

// Append adds entries whose ID is not in the list yet.
func (e *ExcludedCandidates) Append(s *ExcludedCandidates) {
	seen := make(map[string]struct{}, len(e.Items))
	for _, item := range e.Items {
		seen[item.ID] = struct{}{}
	}
	for _, item := range s.Items {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		e.Items = append(e.Items, item)
	}
}

func (e *ExcludedCandidates) IDs() []string {
	ids := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

func (e *ExcludedCandidates) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}

// AppendToFile merges the candidates into the exclude file at path.
func AppendToFile(path string, c []ranking.ScoredCandidate, runID string) (int, error) {
	excluded, err := GetExcludedCandidatesFromFile(path)
	if err != nil {
		return 0, fmt.Errorf("read exclude file: %w", err)
	}

	before := len(excluded.Items)
	excluded.Append(ToExcluded(c, runID))

	if err := excluded.ToFile(path); err != nil {
		return 0, fmt.Errorf("write exclude file: %w", err)
	}

	return len(excluded.Items) - before, nil
}

type excludeFileFilter struct {
	disabled bool
	reason   string
	path     string
}

// NewExcludeFile creates a filter that removes candidates listed in the exclude file.
func NewExcludeFile() Filter {
	return &excludeFileFilter{}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *excludeFileFilter) IsEnabled() bool { return !f.disabled }

func (f *excludeFileFilter) Validate(cfg *Config) error {
	f.path = ""
	if cfg != nil {
		f.path = strings.TrimSpace(cfg.ExcludeFile)
	}
	return nil
}

func (f *excludeFileFilter) Apply(_ context.Context, deps Deps, c []ranking.ScoredCandidate) ([]ranking.ScoredCandidate, Step, error) {
	initial := len(c)
	if f.path == "" {
		return c, Step{Initial: initial, Left: initial}, nil
	}

	excluded, err := GetExcludedCandidatesFromFile(f.path)
	if err != nil {
		return nil, Step{}, fmt.Errorf("getting excluded candidates from file: %w", err)
	}

	ids := make(map[string]struct{}, len(excluded.Items))
	for _, id := range excluded.IDs() {
		ids[id] = struct{}{}
	}

	kept, dropped := keep(c, func(candidate ranking.ScoredCandidate) bool {
		_, found := ids[candidate.DocumentID]
		return !found
	})

	if len(dropped) > 0 {
		deps.Logger.Info("excluding candidates based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_candidates", dropped),
			zap.Int("candidates_left", len(kept)),
		)
	}

	return kept, Step{Initial: initial, Dropped: len(dropped), Left: len(kept)}, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
