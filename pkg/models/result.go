package models

import "time"

// MaxDataPointSample caps how many records a specialist keeps per query label.
const MaxDataPointSample = 10

// SpecialistResult holds everything a specialist produced for one task.
// A result is written once by a completed executor run and never mutated.
// A failed specialist has no result at all; consumers must tolerate holes
// in the result set.
type SpecialistResult struct {
	// Specialist is the domain agent that produced this result.
	Specialist SpecialistType `json:"specialist"`
	// Findings is the specialist's narrative of what the data shows.
	Findings string `json:"findings"`
	// Recommendations lists suggested actions, in the order given.
	Recommendations []string `json:"recommendations,omitempty"`
	// Concerns lists flagged issues, in the order given.
	Concerns []string `json:"concerns,omitempty"`
	// DataPoints maps a query label to a capped sample of retrieved records.
	DataPoints map[string][]map[string]any `json:"data_points,omitempty"`
	// ToolCallsMade counts tool invocations issued during execution.
	ToolCallsMade int `json:"tool_calls_made"`
	// ConfidenceLevel is the specialist's self-reported confidence in [0,1].
	ConfidenceLevel float64 `json:"confidence_level"`
}

// DataPointCount returns the total number of sampled records across labels.
func (r *SpecialistResult) DataPointCount() int {
	var n int
	for _, rows := range r.DataPoints {
		n += len(rows)
	}
	return n
}

// OrchestrationData is the shape shared between a live orchestrator run and a
// trace replay. The evaluation engine consumes this and is indifferent to
// which path produced it.
type OrchestrationData struct {
	// Query is the original user question.
	Query string `json:"query"`
	// Complexity is the stage-1 classification.
	Complexity QueryComplexity `json:"complexity"`
	// Approach is the stage-1 analytical approach statement.
	Approach string `json:"approach"`
	// InitialData maps tool labels to data gathered during query analysis.
	InitialData map[string]any `json:"initial_data,omitempty"`
	// Tasks are the stage-2 specialist tasks.
	Tasks []SpecialistTask `json:"tasks"`
	// Results maps specialist to its result. Failed specialists are absent.
	Results map[SpecialistType]*SpecialistResult `json:"results,omitempty"`
	// Narrative is the stage-3 synthesized answer, if the run got that far.
	Narrative string `json:"narrative,omitempty"`
	// ExecutionTime is how long the run took end to end.
	ExecutionTime time.Duration `json:"execution_time"`
}

// Specialists returns the specialist types named by the task list, in order.
func (d *OrchestrationData) Specialists() []SpecialistType {
	out := make([]SpecialistType, 0, len(d.Tasks))
	for _, t := range d.Tasks {
		out = append(out, t.Specialist)
	}
	return out
}

// TotalToolCalls sums tool calls across all specialist results.
func (d *OrchestrationData) TotalToolCalls() int {
	var n int
	for _, r := range d.Results {
		if r != nil {
			n += r.ToolCallsMade
		}
	}
	return n
}
