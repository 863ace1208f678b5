package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/openrounds/rounds/internal/api"
	"github.com/openrounds/rounds/internal/extract"
	"github.com/openrounds/rounds/internal/retry"
	"github.com/openrounds/rounds/internal/specialist"
	"github.com/openrounds/rounds/internal/tools"
	"github.com/openrounds/rounds/internal/trace"
	"github.com/openrounds/rounds/pkg/models"
)

const leadAgent = "orchestrator"

// RequiredConfig contains the minimal required configuration for an
// Orchestrator. All fields are required and have no defaults.
type RequiredConfig struct {
	// Completer is the model completion capability.
	Completer api.Completer
	// Tools executes tool calls for the lead agent and specialists.
	Tools tools.Executor
	// ToolDefs lists the tools offered to agents.
	ToolDefs []api.ToolDef
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*Orchestrator)

// WithRecorder attaches a trace recorder. A nil recorder disables tracing.
func WithRecorder(r *trace.Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithRetryPolicy overrides the specialist retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(o *Orchestrator) { o.retryPolicy = p }
}

// WithSpecialistRunner substitutes the specialist execution backend.
func WithSpecialistRunner(r SpecialistRunner) Option {
	return func(o *Orchestrator) { o.runner = r }
}

// Orchestrator coordinates one query through the three-stage pipeline.
// Each Orchestrator serves a single Run call.
type Orchestrator struct {
	completer   api.Completer
	tools       tools.Executor
	toolDefs    []api.ToolDef
	recorder    *trace.Recorder
	runner      SpecialistRunner
	retryPolicy retry.Policy
	events      chan Event
	dropped     atomic.Uint64
}

// New creates an Orchestrator with the given configuration.
func New(cfg RequiredConfig, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		completer:   cfg.Completer,
		tools:       cfg.Tools,
		toolDefs:    cfg.ToolDefs,
		retryPolicy: retry.DefaultPolicy(),
		events:      make(chan Event, 100),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.runner == nil {
		o.runner = specialist.New(o.completer, o.tools, o.toolDefs,
			specialist.WithRecorder(o.recorder))
	}
	return o
}

// Events returns the progress event channel. It is closed when Run returns.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// DroppedEventCount returns how many events were dropped because the channel
// was full.
func (o *Orchestrator) DroppedEventCount() uint64 {
	return o.dropped.Load()
}

// emit is called from the coordinator's specialist goroutines as well as the
// pipeline goroutine, so the drop counter must be atomic.
func (o *Orchestrator) emit(event Event) {
	event.Timestamp = time.Now()
	select {
	case o.events <- event:
	default:
		// Channel full, drop event to avoid blocking
		o.dropped.Add(1)
	}
}

// Run executes the full pipeline for one query. The stages run strictly in
// order with no backward transitions. A transient provider failure during
// query analysis aborts the whole query with ErrProviderBusy; no partial
// synthesis is attempted.
func (o *Orchestrator) Run(ctx context.Context, query string) (*models.OrchestrationData, error) {
	defer close(o.events)
	started := time.Now()

	complexity, approach, initialData, initialSummary, err := o.queryAnalysis(ctx, query)
	if err != nil {
		return nil, err
	}

	tasks, err := o.taskCreation(ctx, query, complexity, approach, initialSummary)
	if err != nil {
		return nil, err
	}

	results, narrative, err := o.synthesis(ctx, query, tasks)
	if err != nil {
		return nil, err
	}

	o.emit(Event{Type: EventQueryDone})
	return &models.OrchestrationData{
		Query:         query,
		Complexity:    complexity,
		Approach:      approach,
		InitialData:   initialData,
		Tasks:         tasks,
		Results:       results,
		Narrative:     narrative,
		ExecutionTime: time.Since(started),
	}, nil
}

// queryAnalysis is stage 1: an initial-analysis call permitting one
// data-gathering tool, then a no-tool classification call.
func (o *Orchestrator) queryAnalysis(ctx context.Context, query string) (models.QueryComplexity, string, map[string]any, string, error) {
	stage := trace.StageQueryAnalysis
	stageStart := time.Now()
	o.emit(Event{Type: EventStageStarted, Stage: stage})
	o.recorder.AddEvent(trace.EventStageStart, leadAgent, stage, nil, 0)

	messages := []api.Message{api.UserMessage(analysisPrompt(query))}
	initial, err := o.complete(ctx, api.CompletionRequest{
		System:   leadSystemPrompt,
		Messages: messages,
		Tools:    o.toolDefs,
		Agent:    leadAgent,
		Stage:    stage,
		PromptID: "initial_analysis",
	})
	if err != nil {
		return "", "", nil, "", o.stageOneFailure(err)
	}

	initialData := make(map[string]any)
	var initialSummary string
	if uses := initial.ToolUses(); len(uses) > 0 {
		// One data-gathering call is allowed; extras are answered with a
		// budget notice so the conversation stays well-formed.
		var assistantBlocks []api.ContentBlock
		var resultBlocks []api.ContentBlock
		for _, b := range initial.Blocks {
			if b.Kind == api.BlockText {
				assistantBlocks = append(assistantBlocks, b)
			}
		}
		for i, use := range uses {
			assistantBlocks = append(assistantBlocks, use)
			if i > 0 {
				resultBlocks = append(resultBlocks,
					api.ToolResultBlock(use.ID, "Only one initial query is allowed at this stage.", true))
				continue
			}
			result := o.runTool(ctx, stage, use)
			resultBlocks = append(resultBlocks, api.ToolResultBlock(use.ID, result.Content, result.IsError))
			if !result.IsError && len(result.Rows) > 0 {
				initialData[toolLabel(use.Input)] = result.Rows
				initialSummary = result.Content
			}
		}
		messages = append(messages, api.Message{Role: api.RoleAssistant, Blocks: assistantBlocks})
		messages = append(messages, api.Message{Role: api.RoleUser, Blocks: resultBlocks})
	}

	messages = append(messages, api.UserMessage(classificationPrompt))
	classification, err := o.complete(ctx, api.CompletionRequest{
		System:   leadSystemPrompt,
		Messages: messages,
		Agent:    leadAgent,
		Stage:    stage,
		PromptID: "classification",
	})
	if err != nil {
		return "", "", nil, "", o.stageOneFailure(err)
	}

	text := classification.Text()
	complexity := extract.Complexity(text, models.ComplexityStandard)
	approach := extract.Approach(text)

	o.recorder.AddEvent(trace.EventStageEnd, leadAgent, stage, map[string]any{
		"complexity": string(complexity),
		"approach":   approach,
	}, time.Since(stageStart))
	o.recorder.UpdateContext("complexity", string(complexity))
	o.emit(Event{Type: EventStageCompleted, Stage: stage,
		Message: fmt.Sprintf("complexity: %s", complexity)})

	return complexity, approach, initialData, initialSummary, nil
}

// stageOneFailure maps transient provider errors to the user-facing
// retry-later error; anything else propagates as-is.
func (o *Orchestrator) stageOneFailure(err error) error {
	o.recorder.AddEvent(trace.EventError, leadAgent, trace.StageQueryAnalysis,
		map[string]any{"error": err.Error()}, 0)
	if api.IsTransient(err) {
		log.Printf("[orchestrator] transient provider error, aborting query: %v", err)
		return fmt.Errorf("%w: %v", api.ErrProviderBusy, err)
	}
	return err
}

// taskCreation is stage 2: decompose the query into specialist tasks sized
// by complexity. Unparsable task blocks are discarded by the extraction
// layer; an empty decomposition is an error.
func (o *Orchestrator) taskCreation(ctx context.Context, query string, complexity models.QueryComplexity, approach, initialSummary string) ([]models.SpecialistTask, error) {
	stage := trace.StageTaskCreation
	stageStart := time.Now()
	o.emit(Event{Type: EventStageStarted, Stage: stage})
	o.recorder.AddEvent(trace.EventStageStart, leadAgent, stage, nil, 0)

	completion, err := o.complete(ctx, api.CompletionRequest{
		System:   leadSystemPrompt,
		Messages: []api.Message{api.UserMessage(taskCreationPrompt(query, complexity, approach, initialSummary))},
		Agent:    leadAgent,
		Stage:    stage,
		PromptID: "task_creation",
	})
	if err != nil {
		o.recorder.AddEvent(trace.EventError, leadAgent, stage, map[string]any{"error": err.Error()}, 0)
		return nil, fmt.Errorf("task creation: %w", err)
	}

	tasks := extract.Tasks(completion.Text(), complexity.ToolCallBudget())
	if len(tasks) == 0 {
		return nil, fmt.Errorf("task creation produced no parsable specialist tasks")
	}

	specialists := make([]string, 0, len(tasks))
	for _, t := range tasks {
		specialists = append(specialists, string(t.Specialist))
		o.emit(Event{Type: EventSpecialistQueued, Specialist: t.Specialist, Message: t.Objective})
	}

	o.recorder.AddEvent(trace.EventStageEnd, leadAgent, stage, map[string]any{
		"task_count":  len(tasks),
		"specialists": specialists,
	}, time.Since(stageStart))
	o.emit(Event{Type: EventStageCompleted, Stage: stage,
		Message: fmt.Sprintf("%d specialist tasks", len(tasks))})

	return tasks, nil
}

// synthesis is stage 3: run all specialists through the coordinator, then
// stream the final narrative over the digest of their results.
func (o *Orchestrator) synthesis(ctx context.Context, query string, tasks []models.SpecialistTask) (map[models.SpecialistType]*models.SpecialistResult, string, error) {
	coordinator := NewCoordinator(o.runner, o.retryPolicy, o.emit)
	results, dataPoints := coordinator.Run(ctx, tasks)

	stage := trace.StageSynthesis
	stageStart := time.Now()
	o.emit(Event{Type: EventStageStarted, Stage: stage})
	o.recorder.AddEvent(trace.EventStageStart, leadAgent, stage,
		map[string]any{"results": len(results), "data_points": dataPoints}, 0)

	narrator := NewNarrator(func(chunk string, firstParagraph bool) {
		o.emit(Event{Type: EventNarrativeChunk, Chunk: chunk, FirstParagraph: firstParagraph})
	})

	req := api.CompletionRequest{
		System:   leadSystemPrompt,
		Messages: []api.Message{api.UserMessage(synthesisPrompt(query, results))},
		Agent:    leadAgent,
		Stage:    stage,
		PromptID: "synthesis",
	}
	o.recorder.AddEvent(trace.EventLLMPrompt, leadAgent, stage, map[string]any{"prompt_id": req.PromptID}, 0)

	started := time.Now()
	completion, err := o.completer.CompleteStream(ctx, req, narrator.Write)
	if err != nil {
		o.recorder.AddEvent(trace.EventError, leadAgent, stage, map[string]any{"error": err.Error()}, 0)
		return nil, "", fmt.Errorf("synthesis: %w", err)
	}
	narrator.Flush()

	narrative := completion.Text()
	o.recorder.AddEvent(trace.EventLLMResponse, leadAgent, stage, map[string]any{
		"prompt_id":     req.PromptID,
		"response_text": narrative,
	}, time.Since(started))
	o.recorder.AddEvent(trace.EventStageEnd, leadAgent, stage, nil, time.Since(stageStart))
	o.emit(Event{Type: EventStageCompleted, Stage: stage})

	return results, narrative, nil
}

// complete wraps a model call with prompt/response trace events.
func (o *Orchestrator) complete(ctx context.Context, req api.CompletionRequest) (*api.Completion, error) {
	o.recorder.AddEvent(trace.EventLLMPrompt, req.Agent, req.Stage,
		map[string]any{"prompt_id": req.PromptID}, 0)

	started := time.Now()
	completion, err := o.completer.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	o.recorder.AddEvent(trace.EventLLMResponse, req.Agent, req.Stage, map[string]any{
		"prompt_id":     req.PromptID,
		"response_text": completion.Text(),
		"stop_reason":   completion.StopReason,
	}, time.Since(started))
	return completion, nil
}

// runTool executes one lead-agent tool call with trace events.
func (o *Orchestrator) runTool(ctx context.Context, stage string, use api.ContentBlock) tools.Result {
	invocationID := o.recorder.AddEvent(trace.EventToolInvocation, leadAgent, stage, map[string]any{
		"tool_name":    use.Name,
		"tool_call_id": use.ID,
		"tool_input":   string(use.Input),
	}, 0)

	started := time.Now()
	result, err := o.tools.Execute(ctx, use.Name, use.Input)
	if err != nil {
		log.Printf("[orchestrator] tool %s failed: %v", use.Name, err)
		result = tools.Result{Content: fmt.Sprintf("Tool execution failed: %v", err), IsError: true}
	}

	data := map[string]any{
		"tool_name":    use.Name,
		"tool_call_id": use.ID,
		"success":      !result.IsError,
	}
	if result.IsError {
		data["error"] = result.Content
	} else if len(result.Rows) > 0 {
		data["row_count"] = len(result.Rows)
		data["result"] = result.Rows
	}
	o.recorder.AddChildEvent(trace.EventToolResult, leadAgent, stage, data, time.Since(started), invocationID)

	return result
}

// toolLabel mirrors the specialist data-point labeling for initial data.
func toolLabel(input json.RawMessage) string {
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
	return "initial_query"
}
