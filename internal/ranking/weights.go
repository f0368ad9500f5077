package ranking

import (
	"fmt"
	"math"
)

// WeightConfig holds the linear weights of the score. Values are used as
// given, including negative ones.
type WeightConfig struct {
	KeywordWeight        float64 `json:"keyword" mapstructure:"keyword"`
	StrengthWeight       float64 `json:"strength" mapstructure:"strength"`
	ConcernPenaltyWeight float64 `json:"concern_penalty" mapstructure:"concern-penalty"`
	PotentialWeight      float64 `json:"potential" mapstructure:"potential"`
}

// DefaultWeights scores by similarity only.
func DefaultWeights() WeightConfig {
	return WeightConfig{KeywordWeight: 1}
}

func (w WeightConfig) Validate() error {
	weights := []struct {
		name  string
		value float64
	}{
		{"keyword", w.KeywordWeight},
		{"strength", w.StrengthWeight},
		{"concern-penalty", w.ConcernPenaltyWeight},
		{"potential", w.PotentialWeight},
	}

	for _, weight := range weights {
		if math.IsNaN(weight.value) || math.IsInf(weight.value, 0) {
			return &ValidationError{Subject: "weights", Reason: fmt.Sprintf("%s weight must be a finite number", weight.name)}
		}
	}
	return nil
}
