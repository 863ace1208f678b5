package trace

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Recorder accumulates events for one live run. All methods are safe for
// concurrent use and safe on a nil receiver: components report events
// unconditionally, and a disabled collector costs nothing and changes no
// behavior.
type Recorder struct {
	mu    sync.Mutex
	trace *Trace
}

// Start begins recording a new trace for the given query.
func Start(query string) *Recorder {
	now := time.Now()
	r := &Recorder{
		trace: &Trace{
			ID:        uuid.New().String(),
			Query:     query,
			Context:   make(map[string]any),
			StartedAt: now,
		},
	}
	r.AddEvent(EventUserQuery, "user", "", map[string]any{"query": query}, 0)
	return r
}

// TraceID returns the trace id, or empty on a nil recorder.
func (r *Recorder) TraceID() string {
	if r == nil {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trace.ID
}

// AddEvent appends an event and returns its id. No-op on a nil recorder.
func (r *Recorder) AddEvent(et EventType, agent, stage string, data map[string]any, duration time.Duration) string {
	if r == nil {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	event := Event{
		ID:         uuid.New().String(),
		Type:       et,
		Agent:      agent,
		Stage:      stage,
		Data:       data,
		DurationMS: duration.Milliseconds(),
		Timestamp:  time.Now(),
	}
	r.trace.Events = append(r.trace.Events, event)
	return event.ID
}

// AddChildEvent appends an event linked to a parent event id.
func (r *Recorder) AddChildEvent(et EventType, agent, stage string, data map[string]any, duration time.Duration, parentID string) string {
	if r == nil {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	event := Event{
		ID:            uuid.New().String(),
		Type:          et,
		Agent:         agent,
		Stage:         stage,
		Data:          data,
		DurationMS:    duration.Milliseconds(),
		ParentEventID: parentID,
		Timestamp:     time.Now(),
	}
	r.trace.Events = append(r.trace.Events, event)
	return event.ID
}

// UpdateContext sets a run-level annotation. No-op on a nil recorder.
func (r *Recorder) UpdateContext(key string, value any) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace.Context[key] = value
}

// End finalizes and returns the trace. Returns nil on a nil recorder.
func (r *Recorder) End() *Trace {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.trace.CompletedAt = now
	r.trace.DurationMS = now.Sub(r.trace.StartedAt).Milliseconds()
	return r.trace
}
