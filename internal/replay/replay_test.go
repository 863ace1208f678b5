package replay

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/openrounds/rounds/internal/api"
	"github.com/openrounds/rounds/internal/orchestrator"
	"github.com/openrounds/rounds/internal/tools"
	"github.com/openrounds/rounds/internal/trace"
	"github.com/openrounds/rounds/pkg/models"
)

func analysisTrace(events ...trace.Event) *trace.Trace {
	return &trace.Trace{ID: "t1", Query: "q", Events: events}
}

func TestExtractComplexityStageEndWins(t *testing.T) {
	tr := analysisTrace(
		trace.Event{Type: trace.EventLLMResponse, Agent: "orchestrator", Stage: trace.StageQueryAnalysis,
			Data: map[string]any{"response_text": "<complexity>comprehensive</complexity>"}},
		trace.Event{Type: trace.EventStageEnd, Agent: "orchestrator", Stage: trace.StageQueryAnalysis,
			Data: map[string]any{"complexity": "complex"}},
	)
	data, err := Extract(tr)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if data.Complexity != models.ComplexityComplex {
		t.Errorf("complexity = %s, want complex from stage_end", data.Complexity)
	}
}

func TestExtractComplexityTagFallback(t *testing.T) {
	tr := analysisTrace(
		trace.Event{Type: trace.EventLLMResponse, Agent: "orchestrator", Stage: trace.StageQueryAnalysis,
			Data: map[string]any{"response_text": "Overall: <complexity>Standard</complexity>"}},
	)
	data, err := Extract(tr)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if data.Complexity != models.ComplexityStandard {
		t.Errorf("complexity = %s, want standard from tag", data.Complexity)
	}
}

func TestExtractComplexityDefaultsToSimple(t *testing.T) {
	data, err := Extract(analysisTrace(
		trace.Event{Type: trace.EventLLMResponse, Agent: "orchestrator", Stage: trace.StageQueryAnalysis,
			Data: map[string]any{"response_text": "no tags here"}},
	))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if data.Complexity != models.ComplexitySimple {
		t.Errorf("complexity = %s, want simple default", data.Complexity)
	}
}

func TestExtractUnmatchedInvocationDoesNotRaise(t *testing.T) {
	// A crash mid-call leaves an invocation with no result event.
	tr := analysisTrace(
		trace.Event{Type: trace.EventToolInvocation, Agent: "orchestrator", Stage: trace.StageQueryAnalysis,
			Data: map[string]any{"tool_name": "query_health_data", "tool_input": `{"metric":"hba1c"}`}},
	)
	data, err := Extract(tr)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(data.InitialData) != 0 {
		t.Errorf("unsuccessful call must not contribute data: %v", data.InitialData)
	}

	calls := pairToolCalls(tr)
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1 (made)", len(calls))
	}
	if calls[0].success {
		t.Error("unmatched invocation must not be successful")
	}
}

func TestExtractHealthContextQueryAnalysisOnly(t *testing.T) {
	rows := []map[string]any{{"date": "2026-08-01", "bpm": 58}}
	tr := analysisTrace(
		trace.Event{Type: trace.EventToolInvocation, Agent: "orchestrator", Stage: trace.StageQueryAnalysis,
			Data: map[string]any{"tool_name": "query_health_data", "tool_input": `{"metric":"resting_heart_rate"}`}},
		trace.Event{Type: trace.EventToolResult, Agent: "orchestrator", Stage: trace.StageQueryAnalysis,
			Data: map[string]any{"tool_name": "query_health_data", "success": true, "result": rows}},
		trace.Event{Type: trace.EventToolInvocation, Agent: "cardiology", Stage: "specialist_execution",
			Data: map[string]any{"tool_name": "query_health_data", "tool_input": `{"metric":"hrv"}`}},
		trace.Event{Type: trace.EventToolResult, Agent: "cardiology", Stage: "specialist_execution",
			Data: map[string]any{"tool_name": "query_health_data", "success": true, "result": rows}},
	)
	data, err := Extract(tr)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(data.InitialData) != 1 {
		t.Fatalf("initial data keys = %d, want 1", len(data.InitialData))
	}
	if !reflect.DeepEqual(data.InitialData["resting_heart_rate"], rows) {
		t.Errorf("initial data = %v", data.InitialData)
	}
}

func TestExtractTasksFromResponse(t *testing.T) {
	tr := analysisTrace(
		trace.Event{Type: trace.EventStageEnd, Agent: "orchestrator", Stage: trace.StageQueryAnalysis,
			Data: map[string]any{"complexity": "standard"}},
		trace.Event{Type: trace.EventLLMResponse, Agent: "orchestrator", Stage: trace.StageTaskCreation,
			Data: map[string]any{"response_text": `<task>
<specialist>cardiology</specialist>
<objective>Review trends</objective>
<priority>1</priority>
</task>`}},
	)
	data, err := Extract(tr)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(data.Tasks) != 1 {
		t.Fatalf("tasks = %d", len(data.Tasks))
	}
	task := data.Tasks[0]
	if task.Specialist != models.SpecialistCardiology || task.Objective != "Review trends" {
		t.Errorf("task = %+v", task)
	}
	if task.MaxToolCalls != models.ComplexityStandard.ToolCallBudget() {
		t.Errorf("budget = %d, want complexity-derived", task.MaxToolCalls)
	}
}

func TestExtractTasksSpecialistListFallback(t *testing.T) {
	tr := analysisTrace(
		trace.Event{Type: trace.EventLLMResponse, Agent: "orchestrator", Stage: trace.StageTaskCreation,
			Data: map[string]any{"response_text": "nothing parsable"}},
		trace.Event{Type: trace.EventStageEnd, Agent: "orchestrator", Stage: trace.StageTaskCreation,
			// JSON-decoded traces deliver the list as []any.
			Data: map[string]any{"task_count": float64(2), "specialists": []any{"cardiology", "nutrition"}}},
	)
	data, err := Extract(tr)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(data.Tasks) != 2 {
		t.Fatalf("tasks = %d, want 2 from fallback", len(data.Tasks))
	}
	if data.Tasks[0].Specialist != models.SpecialistCardiology || data.Tasks[0].Objective != "" {
		t.Errorf("fallback task = %+v", data.Tasks[0])
	}
	if data.Tasks[0].Priority != models.PriorityMedium {
		t.Errorf("fallback priority = %v", data.Tasks[0].Priority)
	}
}

func TestExtractSpecialistResults(t *testing.T) {
	summary := "<findings>Elevated evening heart rate</findings>\n" +
		"<recommendations>\n- reduce late caffeine\n</recommendations>\n" +
		"<confidence>0.9</confidence>"
	tr := analysisTrace(
		trace.Event{Type: trace.EventLLMResponse, Agent: "cardiology", Stage: "specialist_execution",
			Data: map[string]any{"prompt_id": "specialist_summary", "response_text": summary}},
		trace.Event{Type: trace.EventStageEnd, Agent: "cardiology", Stage: "specialist_execution",
			Data: map[string]any{"tool_calls_made": float64(2), "confidence_level": 0.9}},
	)
	data, err := Extract(tr)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	result := data.Results[models.SpecialistCardiology]
	if result == nil {
		t.Fatal("missing cardiology result")
	}
	if result.Findings != "Elevated evening heart rate" {
		t.Errorf("findings = %q", result.Findings)
	}
	if len(result.Recommendations) != 1 {
		t.Errorf("recommendations = %v", result.Recommendations)
	}
	if result.ToolCallsMade != 2 {
		t.Errorf("tool calls = %d", result.ToolCallsMade)
	}
	if result.ConfidenceLevel != 0.9 {
		t.Errorf("confidence = %v", result.ConfidenceLevel)
	}
}

func TestExtractFailedSpecialistAbsent(t *testing.T) {
	tr := analysisTrace(
		trace.Event{Type: trace.EventStageStart, Agent: "pharmacy", Stage: "specialist_execution"},
		trace.Event{Type: trace.EventError, Agent: "pharmacy", Stage: "specialist_execution",
			Data: map[string]any{"error": "overloaded"}},
	)
	data, err := Extract(tr)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if _, present := data.Results[models.SpecialistPharmacy]; present {
		t.Error("failed specialist must be absent from results")
	}
}

func TestExtractDurationPrecedence(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	tr := analysisTrace(
		trace.Event{Type: trace.EventUserQuery, Timestamp: base},
		trace.Event{Type: trace.EventStageEnd, Timestamp: base.Add(3 * time.Second)},
	)

	data, err := Extract(tr)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if data.ExecutionTime != 3*time.Second {
		t.Errorf("execution time = %v, want timestamp delta", data.ExecutionTime)
	}

	tr.DurationMS = 5000
	data, err = Extract(tr)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if data.ExecutionTime != 5*time.Second {
		t.Errorf("execution time = %v, want explicit field", data.ExecutionTime)
	}
}

func TestExtractJSONRoundTrippedTrace(t *testing.T) {
	tr := analysisTrace(
		trace.Event{ID: "e1", Type: trace.EventStageEnd, Agent: "orchestrator", Stage: trace.StageQueryAnalysis,
			Data: map[string]any{"complexity": "complex", "approach": "compare eras"}},
		trace.Event{ID: "e2", Type: trace.EventLLMResponse, Agent: "orchestrator", Stage: trace.StageTaskCreation,
			Data: map[string]any{"response_text": "unstructured"}},
		trace.Event{ID: "e3", Type: trace.EventStageEnd, Agent: "orchestrator", Stage: trace.StageTaskCreation,
			Data: map[string]any{"specialists": []string{"cardiology"}}},
	)
	raw, err := json.Marshal(tr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded trace.Trace
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	data, err := Extract(&decoded)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if data.Complexity != models.ComplexityComplex {
		t.Errorf("complexity = %s", data.Complexity)
	}
	if data.Approach != "compare eras" {
		t.Errorf("approach = %q", data.Approach)
	}
	if len(data.Tasks) != 1 || data.Tasks[0].Specialist != models.SpecialistCardiology {
		t.Errorf("tasks = %+v", data.Tasks)
	}
}

// Live-run round trip: extraction must reproduce exactly what the
// orchestrator decided.

type scriptedCompleter struct {
	byPrompt map[string]string
}

func (s *scriptedCompleter) Complete(_ context.Context, req api.CompletionRequest) (*api.Completion, error) {
	if req.PromptID == "initial_analysis" {
		return &api.Completion{
			StopReason: api.StopToolUse,
			Blocks: []api.ContentBlock{
				{Kind: api.BlockToolUse, ID: "t1", Name: tools.QueryHealthDataTool,
					Input: json.RawMessage(`{"metric": "resting_heart_rate"}`)},
			},
		}, nil
	}
	return &api.Completion{
		StopReason: api.StopEndTurn,
		Blocks:     []api.ContentBlock{api.TextBlock(s.byPrompt[req.PromptID])},
	}, nil
}

func (s *scriptedCompleter) CompleteStream(ctx context.Context, req api.CompletionRequest, onDelta func(string)) (*api.Completion, error) {
	c, err := s.Complete(ctx, req)
	if err == nil && onDelta != nil {
		onDelta(c.Text())
	}
	return c, err
}

type cannedRunner struct{}

func (cannedRunner) Execute(_ context.Context, task models.SpecialistTask) (*models.SpecialistResult, error) {
	return &models.SpecialistResult{Specialist: task.Specialist, Findings: "ok", ConfidenceLevel: 0.8}, nil
}

func TestExtractLiveRunRoundTrip(t *testing.T) {
	completer := &scriptedCompleter{byPrompt: map[string]string{
		"classification": "<complexity>standard</complexity>\n<approach>correlate rest and recovery</approach>",
		"task_creation": `<tasks>
<task>
  <specialist>cardiology</specialist>
  <objective>Review heart rate trends</objective>
  <context>90 day window</context>
  <expected_output>Trend summary</expected_output>
  <priority>1</priority>
</task>
<task>
  <specialist>sleep_medicine</specialist>
  <objective>Review sleep stages</objective>
  <priority>2</priority>
</task>
</tasks>`,
		"synthesis": "All clear.\n\nNothing alarming in the data.",
	}}

	registry := tools.NewRegistry()
	tools.RegisterHealthQuery(registry, &tools.StaticSource{Data: map[string][]map[string]any{
		"resting_heart_rate": {{"date": "2026-08-01", "bpm": 58}},
	}})

	recorder := trace.Start("how is my heart health?")
	o := orchestrator.New(orchestrator.RequiredConfig{
		Completer: completer,
		Tools:     registry,
		ToolDefs:  []api.ToolDef{tools.HealthQueryDef()},
	}, orchestrator.WithRecorder(recorder), orchestrator.WithSpecialistRunner(cannedRunner{}))
	go func() {
		for range o.Events() {
		}
	}()

	live, err := o.Run(context.Background(), "how is my heart health?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	replayed, err := Extract(recorder.End())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if replayed.Complexity != live.Complexity {
		t.Errorf("complexity: replayed %s, live %s", replayed.Complexity, live.Complexity)
	}
	if replayed.Approach != live.Approach {
		t.Errorf("approach: replayed %q, live %q", replayed.Approach, live.Approach)
	}
	if !reflect.DeepEqual(replayed.Tasks, live.Tasks) {
		t.Errorf("tasks differ:\nreplayed %+v\nlive     %+v", replayed.Tasks, live.Tasks)
	}
	if !reflect.DeepEqual(replayed.InitialData["resting_heart_rate"], live.InitialData["resting_heart_rate"]) {
		t.Errorf("initial data differ:\nreplayed %v\nlive     %v", replayed.InitialData, live.InitialData)
	}
	if replayed.Narrative != live.Narrative {
		t.Errorf("narrative: replayed %q, live %q", replayed.Narrative, live.Narrative)
	}
}
