// Package replay reconstructs orchestration output from a persisted trace.
// Extraction is deterministic and makes zero model calls: the same trace
// always yields the same OrchestrationData.
package replay

import (
	"encoding/json"
	"fmt"

	"github.com/openrounds/rounds/internal/extract"
	"github.com/openrounds/rounds/internal/trace"
	"github.com/openrounds/rounds/pkg/models"
)

// leadAgent matches the agent name the orchestrator records on its events.
const leadAgent = "orchestrator"

// toolCall is one paired tool invocation from the event log.
type toolCall struct {
	agent   string
	stage   string
	name    string
	input   string
	success bool
	result  any
}

// Extract rebuilds what the orchestrator decided during a recorded run.
// Complexity and the task list are lossless for traces written by this
// module; specialist data-point samples are not persisted and come back
// empty.
func Extract(tr *trace.Trace) (*models.OrchestrationData, error) {
	if tr == nil {
		return nil, fmt.Errorf("nil trace")
	}

	complexity := extractComplexity(tr)
	calls := pairToolCalls(tr)

	data := &models.OrchestrationData{
		Query:         tr.Query,
		Complexity:    complexity,
		Approach:      extractApproach(tr),
		InitialData:   healthContext(calls),
		Tasks:         extractTasks(tr, complexity.ToolCallBudget()),
		Results:       extractResults(tr, calls),
		Narrative:     extractNarrative(tr),
		ExecutionTime: tr.Duration(),
	}
	return data, nil
}

// extractComplexity reads the query_analysis stage_end field first, then
// falls back to <complexity> tags in that stage's responses, then to simple.
func extractComplexity(tr *trace.Trace) models.QueryComplexity {
	for _, e := range tr.StageEvents(trace.StageQueryAnalysis) {
		if e.Type != trace.EventStageEnd {
			continue
		}
		if s, ok := e.Data["complexity"].(string); ok {
			if c, valid := models.ParseComplexity(s); valid {
				return c
			}
		}
	}
	for _, e := range tr.StageEvents(trace.StageQueryAnalysis) {
		if e.Type != trace.EventLLMResponse {
			continue
		}
		if c := extract.Complexity(responseText(e), ""); c.Valid() {
			return c
		}
	}
	return models.ComplexitySimple
}

func extractApproach(tr *trace.Trace) string {
	for _, e := range tr.StageEvents(trace.StageQueryAnalysis) {
		if e.Type != trace.EventStageEnd {
			continue
		}
		if s, ok := e.Data["approach"].(string); ok && s != "" {
			return s
		}
	}
	for _, e := range tr.StageEvents(trace.StageQueryAnalysis) {
		if e.Type != trace.EventLLMResponse {
			continue
		}
		if s, ok := extract.Tag(responseText(e), "approach"); ok {
			return s
		}
	}
	return extract.DefaultApproach
}

// pairToolCalls matches each tool_invocation to the next chronologically
// following tool_result for the same tool name. An invocation with no match
// (a crash mid-call) is kept but marked unsuccessful.
func pairToolCalls(tr *trace.Trace) []toolCall {
	consumed := make(map[int]bool)
	var calls []toolCall
	for i, e := range tr.Events {
		if e.Type != trace.EventToolInvocation {
			continue
		}
		name, _ := e.Data["tool_name"].(string)
		input, _ := e.Data["tool_input"].(string)
		call := toolCall{agent: e.Agent, stage: e.Stage, name: name, input: input}

		for j := i + 1; j < len(tr.Events); j++ {
			r := tr.Events[j]
			if consumed[j] || r.Type != trace.EventToolResult {
				continue
			}
			if rn, _ := r.Data["tool_name"].(string); rn != name {
				continue
			}
			consumed[j] = true
			_, failed := r.Data["error"]
			if ok, isBool := r.Data["success"].(bool); isBool {
				call.success = ok
			} else {
				call.success = !failed
			}
			call.result = r.Data["result"]
			break
		}
		calls = append(calls, call)
	}
	return calls
}

// healthContext merges successful query_analysis tool results into the
// initial-data mapping, keyed the same way the live run keys them.
func healthContext(calls []toolCall) map[string]any {
	out := make(map[string]any)
	for _, c := range calls {
		if c.stage != trace.StageQueryAnalysis || !c.success || c.result == nil {
			continue
		}
		out[callLabel(c)] = c.result
	}
	return out
}

// callLabel mirrors live-run labeling: explicit label, else metric, else a
// constant.
func callLabel(c toolCall) string {
	var params struct {
		Label  string `json:"label"`
		Metric string `json:"metric"`
	}
	if err := json.Unmarshal([]byte(c.input), &params); err == nil {
		if params.Label != "" {
			return params.Label
		}
		if params.Metric != "" {
			return params.Metric
		}
	}
	return "initial_query"
}

// extractTasks parses the task_creation response with the same dual-format
// XML rules as the live run. When no response parses, it falls back to the
// stage_end specialist name list, losing objective and context detail.
func extractTasks(tr *trace.Trace, toolBudget int) []models.SpecialistTask {
	stageEvents := tr.StageEvents(trace.StageTaskCreation)
	for i := len(stageEvents) - 1; i >= 0; i-- {
		e := stageEvents[i]
		if e.Type != trace.EventLLMResponse {
			continue
		}
		if tasks := extract.Tasks(responseText(e), toolBudget); len(tasks) > 0 {
			return tasks
		}
	}

	for _, e := range stageEvents {
		if e.Type != trace.EventStageEnd {
			continue
		}
		var tasks []models.SpecialistTask
		for _, name := range stringList(e.Data["specialists"]) {
			specialist, ok := models.ParseSpecialist(name)
			if !ok {
				continue
			}
			tasks = append(tasks, models.SpecialistTask{
				Specialist:   specialist,
				Priority:     models.PriorityMedium,
				MaxToolCalls: toolBudget,
			})
		}
		if len(tasks) > 0 {
			return tasks
		}
	}
	return nil
}

// extractResults rebuilds per-specialist results from the execution stage.
// A specialist contributes a result only if its run reached stage_end; failed
// specialists stay absent, matching live behavior. Tool calls made count every
// invocation the agent issued, matched or not.
func extractResults(tr *trace.Trace, calls []toolCall) map[models.SpecialistType]*models.SpecialistResult {
	out := make(map[models.SpecialistType]*models.SpecialistResult)
	counted := make(map[models.SpecialistType]bool)

	for _, e := range tr.Events {
		if e.Type != trace.EventStageEnd || e.Agent == leadAgent {
			continue
		}
		specialist, ok := models.ParseSpecialist(e.Agent)
		if !ok {
			continue
		}

		result := &models.SpecialistResult{
			Specialist:      specialist,
			ConfidenceLevel: extract.DefaultConfidence,
			DataPoints:      make(map[string][]map[string]any),
		}
		if n, ok := asInt(e.Data["tool_calls_made"]); ok {
			result.ToolCallsMade = n
			counted[specialist] = true
		}
		if c, ok := asFloat(e.Data["confidence_level"]); ok {
			result.ConfidenceLevel = c
		}

		if text, found := summaryText(tr, e.Agent); found {
			result.Findings = extract.TagOr(text, "findings", text)
			result.Recommendations = extract.List(text, "recommendations")
			result.Concerns = extract.List(text, "concerns")
			result.ConfidenceLevel = extract.Confidence(text)
		}
		out[specialist] = result
	}

	// tool_calls_made is authoritative when recorded; invocation counting
	// covers traces from runs that aborted before stage_end wrote it.
	for _, c := range calls {
		if specialist, ok := models.ParseSpecialist(c.agent); ok {
			if r, exists := out[specialist]; exists && !counted[specialist] {
				r.ToolCallsMade++
			}
		}
	}
	return out
}

// summaryText returns the agent's final llm_response text in the execution
// stage. The summary call is the last response a specialist records.
func summaryText(tr *trace.Trace, agent string) (string, bool) {
	for i := len(tr.Events) - 1; i >= 0; i-- {
		e := tr.Events[i]
		if e.Type == trace.EventLLMResponse && e.Agent == agent {
			return responseText(e), true
		}
	}
	return "", false
}

func extractNarrative(tr *trace.Trace) string {
	events := tr.StageEvents(trace.StageSynthesis)
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == trace.EventLLMResponse {
			return responseText(events[i])
		}
	}
	return ""
}

// responseText reads the recorded response body, accepting both the current
// and the legacy field name.
func responseText(e trace.Event) string {
	if s, ok := e.Data["response_text"].(string); ok {
		return s
	}
	if s, ok := e.Data["content"].(string); ok {
		return s
	}
	return ""
}

// stringList handles both in-memory []string values and the []any a JSON
// round-trip produces.
func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// asInt accepts int and the float64 JSON numbers decode to.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
