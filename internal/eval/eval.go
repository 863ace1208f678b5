package eval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/openrounds/rounds/pkg/models"
)

// DimensionResult is one scored dimension.
type DimensionResult struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
	Target float64 `json:"target"`
	Passed bool    `json:"passed"`
	// Method reports how the score was produced; hybrid dimensions degrade
	// to "deterministic (degraded)" when the judge is unavailable.
	Method  string         `json:"evaluation_method"`
	Details map[string]any `json:"details,omitempty"`
}

// FailureAnalysis is auxiliary root-cause commentary for a failed dimension.
// It never affects the score.
type FailureAnalysis struct {
	Dimension   string  `json:"dimension"`
	Score       float64 `json:"score"`
	Target      float64 `json:"target"`
	Explanation string  `json:"explanation"`
}

// Result is the scored outcome for one test case. Passed and OverallPassed
// are distinct verdicts; callers must not infer one from the other.
type Result struct {
	CaseID string `json:"case_id"`
	Query  string `json:"query"`
	// Dimensions are in fixed registry order regardless of config map order.
	Dimensions []DimensionResult `json:"dimensions"`
	// OverallScore is the weight-renormalized mean over evaluated dimensions.
	OverallScore  float64 `json:"overall_score"`
	OverallTarget float64 `json:"overall_target"`
	// Passed is true iff every evaluated dimension met its target.
	Passed bool `json:"passed"`
	// OverallPassed is true iff OverallScore met the weighted target.
	OverallPassed bool              `json:"overall_passed"`
	Failures      []FailureAnalysis `json:"failures,omitempty"`
	EvaluatedAt   time.Time         `json:"evaluated_at"`
}

// Engine scores orchestration output against test cases.
type Engine struct {
	cfg   Config
	judge Judge
}

// Option configures an Engine.
type Option func(*Engine)

// WithJudge attaches a semantic judge. Without one, hybrid dimensions score
// deterministically and are flagged degraded.
func WithJudge(j Judge) Option {
	return func(e *Engine) { e.judge = j }
}

// NewEngine creates an evaluation engine with the given scoring config.
func NewEngine(cfg Config, opts ...Option) *Engine {
	e := &Engine{cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// dimensionOrder fixes report ordering.
var dimensionOrder = []string{
	DimComplexity, DimSpecialists, DimAnalysisQuality, DimToolUsage, DimResponseStructure,
}

// Evaluate scores one test case against actual output. Judged-component
// failures degrade the affected dimension; they never fail the evaluation.
func (e *Engine) Evaluate(ctx context.Context, tc *TestCase, actual *models.OrchestrationData) *Result {
	result := &Result{
		CaseID:      tc.ID,
		Query:       tc.Query,
		EvaluatedAt: time.Now(),
	}

	for _, name := range dimensionOrder {
		cfg, enabled := e.cfg.Dimensions[name]
		if !enabled {
			continue
		}
		dim, evaluated := e.scoreDimension(ctx, name, cfg, tc, actual)
		if !evaluated {
			continue
		}
		result.Dimensions = append(result.Dimensions, dim)
	}

	var weighted, weights float64
	result.Passed = true
	for _, dim := range result.Dimensions {
		weighted += dim.Score * dim.Weight
		weights += dim.Weight
		if !dim.Passed {
			result.Passed = false
		}
	}
	if weights > 0 {
		result.OverallScore = weighted / weights
	}
	result.OverallTarget = e.weightedTarget(result.Dimensions)
	result.OverallPassed = result.OverallScore >= result.OverallTarget

	result.Failures = e.analyzeFailures(ctx, tc, result)
	return result
}

// weightedTarget renormalizes over the dimensions actually evaluated, so a
// case without an expected complexity does not lower the bar for the rest.
func (e *Engine) weightedTarget(dims []DimensionResult) float64 {
	var sum, weights float64
	for _, d := range dims {
		sum += d.Target * d.Weight
		weights += d.Weight
	}
	if weights == 0 {
		return 0
	}
	return sum / weights
}

// scoreDimension dispatches one dimension. The second return value is false
// when the test case carries no expectation for it.
func (e *Engine) scoreDimension(ctx context.Context, name string, cfg DimensionConfig, tc *TestCase, actual *models.OrchestrationData) (DimensionResult, bool) {
	dim := DimensionResult{Name: name, Weight: cfg.Weight, Target: cfg.Target}

	switch name {
	case DimComplexity:
		if tc.ExpectedComplexity == "" {
			return dim, false
		}
		dim.Method = MethodDeterministic
		expected, _ := models.ParseComplexity(tc.ExpectedComplexity)
		if actual.Complexity == expected {
			dim.Score = 1.0
		}
		dim.Details = map[string]any{
			"expected": string(expected),
			"actual":   string(actual.Complexity),
		}

	case DimSpecialists:
		if len(tc.ExpectedSpecialists) == 0 {
			return dim, false
		}
		dim.Method = MethodDeterministic
		match := MatchSpecialists(e.cfg, tc.ExpectedSpecialists, actual.Specialists())
		dim.Score = match.F1
		dim.Details = map[string]any{
			"precision":        match.Precision,
			"recall":           match.Recall,
			"substituted":      match.Substituted,
			"missing_critical": match.MissingCritical,
			"unexpected":       match.Unexpected,
			"acceptable":       match.Acceptable,
		}

	case DimAnalysisQuality:
		e.scoreHybrid(ctx, &dim, analysisDeterministic(actual), analysisJudgePrompt(tc, actual))

	case DimToolUsage:
		e.scoreHybrid(ctx, &dim, toolUsageDeterministic(actual), toolUsageJudgePrompt(tc, actual))

	case DimResponseStructure:
		e.scoreHybrid(ctx, &dim, structureDeterministic(actual), structureJudgePrompt(tc, actual))

	default:
		return dim, false
	}

	dim.Passed = dim.Score >= dim.Target
	return dim, true
}

// scoreHybrid combines a deterministic component with a judged one per the
// configured split. Judge failure degrades to deterministic-only at full
// weight, flagged on the dimension for transparency.
func (e *Engine) scoreHybrid(ctx context.Context, dim *DimensionResult, deterministic float64, prompt string) {
	dim.Details = map[string]any{"deterministic_score": deterministic}

	if e.judge == nil {
		dim.Method = MethodDegraded
		dim.Score = deterministic
		return
	}
	judgment, err := e.judge.Judge(ctx, prompt)
	if err != nil {
		dim.Method = MethodDegraded
		dim.Score = deterministic
		dim.Details["judge_error"] = err.Error()
		return
	}

	dim.Method = MethodHybrid
	dim.Score = (1-e.cfg.JudgeSplit)*deterministic + e.cfg.JudgeSplit*judgment.Score
	dim.Details["judged_score"] = judgment.Score
	dim.Details["judge_reasoning"] = judgment.Reasoning
}

// analyzeFailures asks the judge for root-cause commentary on each failed
// dimension. Judge errors substitute a generic explanation and never block
// the result.
func (e *Engine) analyzeFailures(ctx context.Context, tc *TestCase, result *Result) []FailureAnalysis {
	var failures []FailureAnalysis
	for _, dim := range result.Dimensions {
		if dim.Passed {
			continue
		}
		analysis := FailureAnalysis{Dimension: dim.Name, Score: dim.Score, Target: dim.Target}
		analysis.Explanation = fmt.Sprintf(
			"%s scored %.2f against a target of %.2f; review the orchestrator prompts feeding this dimension.",
			dim.Name, dim.Score, dim.Target)
		if e.judge != nil {
			if judgment, err := e.judge.Judge(ctx, failurePrompt(tc, dim)); err == nil && judgment.Reasoning != "" {
				analysis.Explanation = judgment.Reasoning
			}
		}
		failures = append(failures, analysis)
	}
	return failures
}

// analysisDeterministic checks required-field presence across specialist
// results.
func analysisDeterministic(actual *models.OrchestrationData) float64 {
	if len(actual.Results) == 0 {
		return 0
	}
	var withFindings, withRecommendations int
	for _, r := range actual.Results {
		if strings.TrimSpace(r.Findings) != "" {
			withFindings++
		}
		if len(r.Recommendations) > 0 {
			withRecommendations++
		}
	}
	n := float64(len(actual.Results))
	return 0.6*(float64(withFindings)/n) + 0.4*(float64(withRecommendations)/n)
}

// toolUsageDeterministic checks that specialists gathered data within their
// budgets. A specialist that answered without querying anything earns half
// credit; one that blew its budget earns none.
func toolUsageDeterministic(actual *models.OrchestrationData) float64 {
	if len(actual.Results) == 0 {
		return 0
	}
	budgets := make(map[models.SpecialistType]int)
	for _, task := range actual.Tasks {
		budgets[task.Specialist] = task.MaxToolCalls
	}

	var total float64
	for specialist, r := range actual.Results {
		budget, known := budgets[specialist]
		if !known {
			budget = actual.Complexity.ToolCallBudget()
		}
		switch {
		case r.ToolCallsMade == 0:
			total += 0.5
		case r.ToolCallsMade <= budget:
			total += 1.0
		}
	}
	return total / float64(len(actual.Results))
}

// structureDeterministic checks the synthesized response's shape.
func structureDeterministic(actual *models.OrchestrationData) float64 {
	var score float64
	narrative := strings.TrimSpace(actual.Narrative)
	if narrative != "" {
		score += 0.4
	}
	if strings.Contains(narrative, "\n\n") {
		score += 0.2
	}
	if len(actual.Results) > 0 {
		score += 0.2
	}
	confidenceOK := len(actual.Results) > 0
	for _, r := range actual.Results {
		if r.ConfidenceLevel <= 0 || r.ConfidenceLevel > 1 {
			confidenceOK = false
		}
	}
	if confidenceOK {
		score += 0.2
	}
	return score
}

func analysisJudgePrompt(tc *TestCase, actual *models.OrchestrationData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assess analysis quality for this health question.\n\nQuestion: %s\n\n", tc.Query)
	for _, specialist := range sortedSpecialists(actual) {
		r := actual.Results[specialist]
		fmt.Fprintf(&b, "%s findings: %s\n", specialist, r.Findings)
	}
	fmt.Fprintf(&b, "\nFinal answer:\n%s\n", actual.Narrative)
	b.WriteString("\nCriteria: findings grounded in data, no unsupported claims, the question actually answered.")
	return b.String()
}

func toolUsageJudgePrompt(tc *TestCase, actual *models.OrchestrationData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assess whether data gathering fit this health question.\n\nQuestion: %s\n\n", tc.Query)
	for _, specialist := range sortedSpecialists(actual) {
		r := actual.Results[specialist]
		fmt.Fprintf(&b, "%s made %d data queries over %d data points\n",
			specialist, r.ToolCallsMade, r.DataPointCount())
	}
	b.WriteString("\nCriteria: relevant metrics queried, no obviously missing data source, budgets respected.")
	return b.String()
}

func structureJudgePrompt(tc *TestCase, actual *models.OrchestrationData) string {
	return fmt.Sprintf("Assess the structure and readability of this answer to %q.\n\n%s\n\nCriteria: direct answer first, organized supporting detail, appropriate caveats.",
		tc.Query, actual.Narrative)
}

func failurePrompt(tc *TestCase, dim DimensionResult) string {
	return fmt.Sprintf("The evaluation dimension %q failed for the question %q (score %.2f, target %.2f).\nExplain the most likely root cause and suggest a concrete prompt edit. Respond as JSON with a reasoning field.",
		dim.Name, tc.Query, dim.Score, dim.Target)
}

func sortedSpecialists(actual *models.OrchestrationData) []models.SpecialistType {
	out := make([]models.SpecialistType, 0, len(actual.Results))
	for specialist := range actual.Results {
		out = append(out, specialist)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
