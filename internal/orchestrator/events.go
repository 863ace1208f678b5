// Package orchestrator runs the lead-agent pipeline: query analysis, task
// creation, concurrent specialist execution, and synthesis.
package orchestrator

import (
	"time"

	"github.com/openrounds/rounds/pkg/models"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventStageStarted indicates a pipeline stage has begun.
	EventStageStarted EventType = "stage_started"
	// EventStageCompleted indicates a pipeline stage has finished.
	EventStageCompleted EventType = "stage_completed"
	// EventSpecialistQueued indicates a specialist task was created.
	EventSpecialistQueued EventType = "specialist_queued"
	// EventSpecialistStarted indicates a specialist began executing.
	EventSpecialistStarted EventType = "specialist_started"
	// EventSpecialistCompleted indicates a specialist finished successfully.
	EventSpecialistCompleted EventType = "specialist_completed"
	// EventSpecialistFailed indicates a specialist exhausted its retries.
	EventSpecialistFailed EventType = "specialist_failed"
	// EventNarrativeChunk carries one chunk of the streamed synthesis.
	EventNarrativeChunk EventType = "narrative_chunk"
	// EventQueryDone indicates the whole query completed.
	EventQueryDone EventType = "query_done"
)

// Event is emitted by the orchestrator for progress display. Consumers must
// not depend on completion order among sibling specialists; the stream is
// for narration only.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// Stage names the pipeline stage, if applicable.
	Stage string
	// Specialist is the related specialist, if applicable.
	Specialist models.SpecialistType
	// Message provides additional context about the event.
	Message string
	// Chunk is the narrative fragment for narrative_chunk events.
	Chunk string
	// FirstParagraph marks chunks belonging to the opening paragraph.
	FirstParagraph bool
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
