package ranking

import (
	"context"

	"github.com/spigell/candidate-matcher/internal/ai"
	"github.com/spigell/candidate-matcher/internal/documents"
)

const (
	ContributionStrengths = "strengths"
	ContributionConcerns  = "concerns"
	ContributionPotential = "potential"
)

// Contribution is one additive term of a weighted score: Sign * Value * Weight.
type Contribution struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
	// Sign is -1 for penalties, anything else counts as +1.
	Sign int `json:"sign"`
}

func (c Contribution) Score() float64 {
	if c.Sign < 0 {
		return -c.Value * c.Weight
	}
	return c.Value * c.Weight
}

// ContributionFunc supplies extra score terms for a document.
type ContributionFunc func(ctx context.Context, doc documents.Document) ([]Contribution, error)

// FeatureContributions turns analyzer features into score terms.
func FeatureContributions(fs *ai.FeatureSet, w WeightConfig) []Contribution {
	if fs == nil {
		return nil
	}

	return []Contribution{
		{Name: ContributionStrengths, Value: float64(len(fs.Strengths)), Weight: w.StrengthWeight, Sign: 1},
		{Name: ContributionConcerns, Value: float64(len(fs.Concerns)), Weight: w.ConcernPenaltyWeight, Sign: -1},
		{Name: ContributionPotential, Value: fs.Potential, Weight: w.PotentialWeight, Sign: 1},
	}
}
