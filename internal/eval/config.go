// Package eval scores orchestrator output against expected test cases.
// It is indifferent to whether the output came from a live run or a trace
// replay; both arrive as the same OrchestrationData shape.
package eval

// Dimension names. The registry is constructed per engine from Config, not
// held in a process-wide table, so tests can score with alternate weights.
const (
	DimComplexity        = "complexity_classification"
	DimSpecialists       = "specialist_selection"
	DimAnalysisQuality   = "analysis_quality"
	DimToolUsage         = "tool_usage"
	DimResponseStructure = "response_structure"
)

// Evaluation methods reported per dimension.
const (
	MethodDeterministic = "deterministic"
	MethodHybrid        = "hybrid"
	MethodDegraded      = "deterministic (degraded)"
)

// DimensionConfig sets one dimension's contribution and pass bar.
type DimensionConfig struct {
	Weight float64 `yaml:"weight"`
	Target float64 `yaml:"target"`
}

// Config holds scoring parameters. The equivalence groups and the 0.8
// substitution credit are heuristics inherited from production tuning, kept
// configurable rather than hard-coded.
type Config struct {
	// Dimensions maps dimension name to its weight and target. A dimension
	// absent from the map is not evaluated.
	Dimensions map[string]DimensionConfig `yaml:"dimensions"`
	// EquivalenceGroups lists sets of specialists that substitute for each
	// other at a discount.
	EquivalenceGroups [][]string `yaml:"equivalence_groups"`
	// SubstitutionCredit is the score a substituted specialist match earns.
	SubstitutionCredit float64 `yaml:"substitution_credit"`
	// AcceptableSimilarity is the weighted-similarity floor for the
	// specialist-selection acceptability verdict.
	AcceptableSimilarity float64 `yaml:"acceptable_similarity"`
	// JudgeSplit is the judged share of a hybrid dimension's score; the
	// deterministic share is the complement.
	JudgeSplit float64 `yaml:"judge_split"`
}

// DefaultConfig returns the production scoring parameters.
func DefaultConfig() Config {
	return Config{
		Dimensions: map[string]DimensionConfig{
			DimComplexity:        {Weight: 0.20, Target: 1.00},
			DimSpecialists:       {Weight: 0.25, Target: 0.70},
			DimAnalysisQuality:   {Weight: 0.25, Target: 0.70},
			DimToolUsage:         {Weight: 0.15, Target: 0.60},
			DimResponseStructure: {Weight: 0.15, Target: 0.70},
		},
		EquivalenceGroups: [][]string{
			{"general_practice", "internal_medicine", "preventive_medicine"},
			{"nutrition", "endocrinology"},
			{"sleep_medicine", "mental_health"},
		},
		SubstitutionCredit:   0.8,
		AcceptableSimilarity: 0.7,
		JudgeSplit:           0.7,
	}
}

// WeightedTarget returns the pass bar for the overall score: the
// weight-normalized mean of the per-dimension targets.
func (c Config) WeightedTarget() float64 {
	var sum, weights float64
	for _, d := range c.Dimensions {
		sum += d.Target * d.Weight
		weights += d.Weight
	}
	if weights == 0 {
		return 0
	}
	return sum / weights
}

// equivalent reports whether two specialist names share an equivalence group.
func (c Config) equivalent(a, b string) bool {
	for _, group := range c.EquivalenceGroups {
		var hasA, hasB bool
		for _, member := range group {
			if member == a {
				hasA = true
			}
			if member == b {
				hasB = true
			}
		}
		if hasA && hasB {
			return true
		}
	}
	return false
}
