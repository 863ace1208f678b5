// Package trace records and replays orchestration execution logs.
// A trace is an ordered, append-only sequence of timestamped events from one
// live run. Traces are immutable once persisted and are the sole input to
// offline evaluation.
package trace

import "time"

// EventType classifies a trace event.
type EventType string

const (
	EventUserQuery      EventType = "user_query"
	EventStageStart     EventType = "stage_start"
	EventStageEnd       EventType = "stage_end"
	EventToolInvocation EventType = "tool_invocation"
	EventToolResult     EventType = "tool_result"
	EventLLMPrompt      EventType = "llm_prompt"
	EventLLMResponse    EventType = "llm_response"
	EventError          EventType = "error"
)

// Valid returns true if the event type is a known value.
func (t EventType) Valid() bool {
	switch t {
	case EventUserQuery, EventStageStart, EventStageEnd, EventToolInvocation,
		EventToolResult, EventLLMPrompt, EventLLMResponse, EventError:
		return true
	default:
		return false
	}
}

// Stage names used by the orchestrator pipeline.
const (
	StageQueryAnalysis = "query_analysis"
	StageTaskCreation  = "task_creation"
	StageSynthesis     = "synthesis"
)

// Event is one timestamped entry in a trace.
type Event struct {
	// ID uniquely identifies this event within the trace.
	ID string `json:"event_id"`
	// Type classifies the event.
	Type EventType `json:"event_type"`
	// Agent names the agent that produced the event (orchestrator, a
	// specialist type, or "system").
	Agent string `json:"agent_type"`
	// Stage is the pipeline stage the event belongs to.
	Stage string `json:"stage,omitempty"`
	// Data carries event-specific fields (tool names, response text, etc).
	Data map[string]any `json:"data,omitempty"`
	// DurationMS is how long the recorded operation took, if known.
	DurationMS int64 `json:"duration_ms,omitempty"`
	// ParentEventID links to the event that caused this one, if any.
	ParentEventID string `json:"parent_event_id,omitempty"`
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`
}

// Trace is one complete execution log.
type Trace struct {
	// ID uniquely identifies the trace.
	ID string `json:"trace_id"`
	// Query is the user question that started the run.
	Query string `json:"query"`
	// Context carries run-level annotations set during execution.
	Context map[string]any `json:"context,omitempty"`
	// Events is the ordered event log.
	Events []Event `json:"events"`
	// StartedAt is when recording began.
	StartedAt time.Time `json:"started_at"`
	// CompletedAt is when the trace was ended, zero if the run aborted.
	CompletedAt time.Time `json:"completed_at,omitempty"`
	// DurationMS is the total execution time, when recorded.
	DurationMS int64 `json:"duration_ms,omitempty"`
}

// EventsOfType returns all events matching the given type, in log order.
func (t *Trace) EventsOfType(et EventType) []Event {
	var out []Event
	for _, e := range t.Events {
		if e.Type == et {
			out = append(out, e)
		}
	}
	return out
}

// StageEvents returns all events recorded in the given stage, in log order.
func (t *Trace) StageEvents(stage string) []Event {
	var out []Event
	for _, e := range t.Events {
		if e.Stage == stage {
			out = append(out, e)
		}
	}
	return out
}

// Duration returns the best available execution time: the explicit duration
// field when positive, else the first-to-last event timestamp delta, else 0.
func (t *Trace) Duration() time.Duration {
	if t.DurationMS > 0 {
		return time.Duration(t.DurationMS) * time.Millisecond
	}
	if len(t.Events) >= 2 {
		first := t.Events[0].Timestamp
		last := t.Events[len(t.Events)-1].Timestamp
		if last.After(first) {
			return last.Sub(first)
		}
	}
	return 0
}

// normalize maps unknown event types to EventError instead of rejecting the
// trace. Old trace files predate some event type renames.
func (t *Trace) normalize() {
	for i := range t.Events {
		if !t.Events[i].Type.Valid() {
			t.Events[i].Type = EventError
		}
	}
}
