package specialist

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/openrounds/rounds/internal/api"
	"github.com/openrounds/rounds/internal/tools"
	"github.com/openrounds/rounds/internal/trace"
	"github.com/openrounds/rounds/pkg/models"
)

// stubCompleter replays scripted completions in order, repeating the last
// one when the script runs out.
type stubCompleter struct {
	script   []*api.Completion
	requests []api.CompletionRequest
	err      error
}

func (s *stubCompleter) Complete(_ context.Context, req api.CompletionRequest) (*api.Completion, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.requests = append(s.requests, req)
	idx := len(s.requests) - 1
	if idx >= len(s.script) {
		idx = len(s.script) - 1
	}
	return s.script[idx], nil
}

func (s *stubCompleter) CompleteStream(ctx context.Context, req api.CompletionRequest, onDelta func(string)) (*api.Completion, error) {
	c, err := s.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if onDelta != nil {
		onDelta(c.Text())
	}
	return c, nil
}

func toolUseCompletion(id string) *api.Completion {
	return &api.Completion{
		StopReason: api.StopToolUse,
		Blocks: []api.ContentBlock{
			{Kind: api.BlockToolUse, ID: id, Name: tools.QueryHealthDataTool,
				Input: json.RawMessage(`{"metric": "resting_heart_rate", "label": "rhr_trend"}`)},
		},
	}
}

func summaryCompletion() *api.Completion {
	return &api.Completion{
		StopReason: api.StopEndTurn,
		Blocks: []api.ContentBlock{api.TextBlock(`<findings>Heart rate is stable.</findings>
<recommendations>
- Keep current routine
</recommendations>
<concerns>
</concerns>
<confidence>0.9</confidence>`)},
	}
}

// countingTools wraps a Registry counting executions.
type countingTools struct {
	inner tools.Executor
	calls int
}

func (c *countingTools) Execute(ctx context.Context, name string, input json.RawMessage) (tools.Result, error) {
	c.calls++
	return c.inner.Execute(ctx, name, input)
}

func healthRegistry() *tools.Registry {
	r := tools.NewRegistry()
	tools.RegisterHealthQuery(r, &tools.StaticSource{Data: map[string][]map[string]any{
		"resting_heart_rate": {{"date": "2026-08-01", "bpm": 58}},
	}})
	return r
}

func task(budget int) models.SpecialistTask {
	return models.SpecialistTask{
		Specialist:   models.SpecialistCardiology,
		Objective:    "Review resting heart rate trend",
		Priority:     models.PriorityCritical,
		MaxToolCalls: budget,
	}
}

func TestExecuteEnforcesToolBudget(t *testing.T) {
	// The model always wants another tool call; the executor must stop at the
	// budget and force a final no-tool summary.
	completer := &stubCompleter{script: []*api.Completion{
		toolUseCompletion("t1"),
		toolUseCompletion("t2"),
		toolUseCompletion("t3"),
		summaryCompletion(),
	}}
	counter := &countingTools{inner: healthRegistry()}
	exec := New(completer, counter, []api.ToolDef{tools.HealthQueryDef()})

	result, err := exec.Execute(context.Background(), task(3))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if counter.calls != 3 {
		t.Errorf("tool executions = %d, want 3", counter.calls)
	}
	if result.ToolCallsMade != 3 {
		t.Errorf("ToolCallsMade = %d, want 3", result.ToolCallsMade)
	}

	// The final request must offer no tools.
	last := completer.requests[len(completer.requests)-1]
	if len(last.Tools) != 0 {
		t.Errorf("summary call offered %d tools, want 0", len(last.Tools))
	}
	if last.PromptID != "specialist_summary" {
		t.Errorf("last prompt id = %q", last.PromptID)
	}
}

func TestExecuteExtractsSummaryFields(t *testing.T) {
	completer := &stubCompleter{script: []*api.Completion{
		toolUseCompletion("t1"),
		summaryCompletion(),
	}}
	exec := New(completer, healthRegistry(), []api.ToolDef{tools.HealthQueryDef()})

	result, err := exec.Execute(context.Background(), task(5))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Findings != "Heart rate is stable." {
		t.Errorf("findings = %q", result.Findings)
	}
	if len(result.Recommendations) != 1 || result.Recommendations[0] != "Keep current routine" {
		t.Errorf("recommendations = %v", result.Recommendations)
	}
	if len(result.Concerns) != 0 {
		t.Errorf("concerns = %v", result.Concerns)
	}
	if result.ConfidenceLevel != 0.9 {
		t.Errorf("confidence = %v", result.ConfidenceLevel)
	}
	if len(result.DataPoints["rhr_trend"]) != 1 {
		t.Errorf("data points = %v", result.DataPoints)
	}
}

func TestExecuteDefaultConfidence(t *testing.T) {
	completer := &stubCompleter{script: []*api.Completion{
		{StopReason: api.StopEndTurn, Blocks: []api.ContentBlock{api.TextBlock("just prose, no tags")}},
	}}
	exec := New(completer, healthRegistry(), nil)

	result, err := exec.Execute(context.Background(), task(3))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.ConfidenceLevel != 0.75 {
		t.Errorf("confidence = %v, want default 0.75", result.ConfidenceLevel)
	}
	// With no findings tag, the whole text is the findings.
	if result.Findings != "just prose, no tags" {
		t.Errorf("findings = %q", result.Findings)
	}
}

func TestExecuteCapsDataPointsAcrossCalls(t *testing.T) {
	// Two successful calls share one label; the accumulated sample must stay
	// within the per-label cap, not the per-call cap.
	rows := make([]map[string]any, 7)
	for i := range rows {
		rows[i] = map[string]any{"day": i, "bpm": 58 + i}
	}
	registry := tools.NewRegistry()
	tools.RegisterHealthQuery(registry, &tools.StaticSource{Data: map[string][]map[string]any{
		"resting_heart_rate": rows,
	}})

	completer := &stubCompleter{script: []*api.Completion{
		toolUseCompletion("t1"),
		toolUseCompletion("t2"),
		summaryCompletion(),
	}}
	exec := New(completer, registry, []api.ToolDef{tools.HealthQueryDef()})

	result, err := exec.Execute(context.Background(), task(5))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.ToolCallsMade != 2 {
		t.Errorf("ToolCallsMade = %d, want 2", result.ToolCallsMade)
	}
	if got := len(result.DataPoints["rhr_trend"]); got != models.MaxDataPointSample {
		t.Errorf("data points for label = %d, want cap %d", got, models.MaxDataPointSample)
	}
}

type erroringTools struct{}

func (erroringTools) Execute(context.Context, string, json.RawMessage) (tools.Result, error) {
	return tools.Result{}, errors.New("connection reset")
}

func TestExecuteToolErrorDoesNotAbort(t *testing.T) {
	completer := &stubCompleter{script: []*api.Completion{
		toolUseCompletion("t1"),
		summaryCompletion(),
	}}
	exec := New(completer, erroringTools{}, []api.ToolDef{tools.HealthQueryDef()})

	result, err := exec.Execute(context.Background(), task(3))
	if err != nil {
		t.Fatalf("tool failure must not abort the task: %v", err)
	}
	if result.ToolCallsMade != 1 {
		t.Errorf("ToolCallsMade = %d, want 1", result.ToolCallsMade)
	}
	if len(result.DataPoints) != 0 {
		t.Errorf("failed call should yield no data points: %v", result.DataPoints)
	}
}

func TestExecuteRecordsTraceEvents(t *testing.T) {
	completer := &stubCompleter{script: []*api.Completion{
		toolUseCompletion("t1"),
		summaryCompletion(),
	}}
	recorder := trace.Start("test query")
	exec := New(completer, healthRegistry(), []api.ToolDef{tools.HealthQueryDef()},
		WithRecorder(recorder))

	if _, err := exec.Execute(context.Background(), task(3)); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	tr := recorder.End()
	invocations := tr.EventsOfType(trace.EventToolInvocation)
	results := tr.EventsOfType(trace.EventToolResult)
	if len(invocations) != 1 || len(results) != 1 {
		t.Fatalf("invocations = %d, results = %d, want 1 each", len(invocations), len(results))
	}
	if results[0].ParentEventID != invocations[0].ID {
		t.Error("tool_result not linked to its invocation")
	}
	if results[0].Data["tool_call_id"] != invocations[0].Data["tool_call_id"] {
		t.Error("tool_call_id mismatch between invocation and result")
	}
}

func TestExecuteCompletionFailure(t *testing.T) {
	completer := &stubCompleter{err: errors.New("api down")}
	exec := New(completer, healthRegistry(), nil)

	_, err := exec.Execute(context.Background(), task(3))
	if err == nil || !strings.Contains(err.Error(), "api down") {
		t.Fatalf("err = %v", err)
	}
}
