// Package specialist runs one bounded domain-agent task: a tool loop capped
// by the task's budget, then a structured summary extraction.
package specialist

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/openrounds/rounds/internal/api"
	"github.com/openrounds/rounds/internal/extract"
	"github.com/openrounds/rounds/internal/tools"
	"github.com/openrounds/rounds/internal/trace"
	"github.com/openrounds/rounds/pkg/models"
)

// stageExecution is the trace stage for specialist activity.
const stageExecution = "specialist_execution"

// Executor runs specialist tasks against a model and a tool set.
type Executor struct {
	completer api.Completer
	tools     tools.Executor
	defs      []api.ToolDef
	recorder  *trace.Recorder
}

// Option configures an Executor.
type Option func(*Executor)

// WithRecorder attaches a trace recorder. A nil recorder disables tracing
// without changing executor behavior.
func WithRecorder(r *trace.Recorder) Option {
	return func(e *Executor) { e.recorder = r }
}

// New creates a specialist executor. defs lists the tools offered to the
// model; execution is dispatched through toolExec.
func New(completer api.Completer, toolExec tools.Executor, defs []api.ToolDef, opts ...Option) *Executor {
	e := &Executor{
		completer: completer,
		tools:     toolExec,
		defs:      defs,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one task to completion and returns its result. Tool execution
// errors are fed back to the model as error results and never abort the task;
// only completion failures surface as errors.
func (e *Executor) Execute(ctx context.Context, task models.SpecialistTask) (*models.SpecialistResult, error) {
	agent := string(task.Specialist)
	started := time.Now()
	e.recorder.AddEvent(trace.EventStageStart, agent, stageExecution,
		map[string]any{"objective": task.Objective}, 0)

	messages := []api.Message{api.UserMessage(taskPrompt(task))}
	dataPoints := make(map[string][]map[string]any)
	callsMade := 0

	for {
		completion, err := e.complete(ctx, api.CompletionRequest{
			System:    systemPrompt(task.Specialist),
			Messages:  messages,
			Tools:     e.defs,
			Agent:     agent,
			Stage:     stageExecution,
			PromptID:  "specialist_tool_loop",
			MaxTokens: 8192,
		})
		if err != nil {
			e.recorder.AddEvent(trace.EventError, agent, stageExecution,
				map[string]any{"error": err.Error()}, 0)
			return nil, fmt.Errorf("specialist %s completion: %w", task.Specialist, err)
		}

		toolUses := completion.ToolUses()
		if len(toolUses) == 0 {
			break
		}

		var assistantBlocks []api.ContentBlock
		var resultBlocks []api.ContentBlock
		for _, b := range completion.Blocks {
			if b.Kind == api.BlockText {
				assistantBlocks = append(assistantBlocks, api.TextBlock(b.Text))
			}
		}

		for _, use := range toolUses {
			assistantBlocks = append(assistantBlocks, use)

			if callsMade >= task.MaxToolCalls {
				resultBlocks = append(resultBlocks,
					api.ToolResultBlock(use.ID, "Tool call budget exhausted. Summarize with the data you have.", true))
				continue
			}
			callsMade++

			result := e.runTool(ctx, agent, use)
			resultBlocks = append(resultBlocks, api.ToolResultBlock(use.ID, result.Content, result.IsError))

			if !result.IsError && len(result.Rows) > 0 {
				// Cap the accumulated sample per label, not per call.
				label := queryLabel(use.Input)
				rows := append(dataPoints[label], result.Rows...)
				if len(rows) > models.MaxDataPointSample {
					rows = rows[:models.MaxDataPointSample]
				}
				dataPoints[label] = rows
			}
		}

		messages = append(messages, api.Message{Role: api.RoleAssistant, Blocks: assistantBlocks})
		messages = append(messages, api.Message{Role: api.RoleUser, Blocks: resultBlocks})

		if callsMade >= task.MaxToolCalls {
			break
		}
	}

	// Final no-tool call for the structured summary.
	messages = append(messages, api.UserMessage(summaryPrompt))
	summary, err := e.complete(ctx, api.CompletionRequest{
		System:    systemPrompt(task.Specialist),
		Messages:  messages,
		Agent:     agent,
		Stage:     stageExecution,
		PromptID:  "specialist_summary",
		MaxTokens: 4096,
	})
	if err != nil {
		e.recorder.AddEvent(trace.EventError, agent, stageExecution,
			map[string]any{"error": err.Error()}, 0)
		return nil, fmt.Errorf("specialist %s summary: %w", task.Specialist, err)
	}

	text := summary.Text()
	result := &models.SpecialistResult{
		Specialist:      task.Specialist,
		Findings:        extract.TagOr(text, "findings", text),
		Recommendations: extract.List(text, "recommendations"),
		Concerns:        extract.List(text, "concerns"),
		DataPoints:      dataPoints,
		ToolCallsMade:   callsMade,
		ConfidenceLevel: extract.Confidence(text),
	}

	e.recorder.AddEvent(trace.EventStageEnd, agent, stageExecution, map[string]any{
		"tool_calls_made":  callsMade,
		"confidence_level": result.ConfidenceLevel,
		"data_points":      result.DataPointCount(),
	}, time.Since(started))

	return result, nil
}

// complete wraps the model call with prompt/response trace events.
func (e *Executor) complete(ctx context.Context, req api.CompletionRequest) (*api.Completion, error) {
	e.recorder.AddEvent(trace.EventLLMPrompt, req.Agent, req.Stage,
		map[string]any{"prompt_id": req.PromptID}, 0)

	started := time.Now()
	completion, err := e.completer.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	e.recorder.AddEvent(trace.EventLLMResponse, req.Agent, req.Stage, map[string]any{
		"prompt_id":     req.PromptID,
		"response_text": completion.Text(),
		"stop_reason":   completion.StopReason,
	}, time.Since(started))
	return completion, nil
}

// runTool executes one tool call, recording invocation and result events.
// Any execution error becomes an error result fed back to the model.
func (e *Executor) runTool(ctx context.Context, agent string, use api.ContentBlock) tools.Result {
	invocationID := e.recorder.AddEvent(trace.EventToolInvocation, agent, stageExecution, map[string]any{
		"tool_name":    use.Name,
		"tool_call_id": use.ID,
		"tool_input":   string(use.Input),
	}, 0)

	started := time.Now()
	result, err := e.tools.Execute(ctx, use.Name, use.Input)
	if err != nil {
		log.Printf("[specialist] %s tool %s failed: %v", agent, use.Name, err)
		result = tools.Result{Content: fmt.Sprintf("Tool execution failed: %v", err), IsError: true}
	}

	data := map[string]any{
		"tool_name":    use.Name,
		"tool_call_id": use.ID,
		"success":      !result.IsError,
	}
	if result.IsError {
		data["error"] = result.Content
	}
	e.recorder.AddChildEvent(trace.EventToolResult, agent, stageExecution, data, time.Since(started), invocationID)

	return result
}

// queryLabel derives the data-point grouping label from a tool input payload:
// the explicit label field when present, else the metric, else a constant.
func queryLabel(input json.RawMessage) string {
	var params struct {
		Label  string `json:"label"`
		Metric string `json:"metric"`
	}
	if err := json.Unmarshal(input, &params); err == nil {
		if params.Label != "" {
			return params.Label
		}
		if params.Metric != "" {
			return params.Metric
		}
	}
	return "query"
}
