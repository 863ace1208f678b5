package models

// TaskPriority orders specialist tasks into execution groups.
// Lower values run earlier; tasks sharing a priority run concurrently.
type TaskPriority int

const (
	// PriorityCritical tasks run in the first group.
	PriorityCritical TaskPriority = 1
	// PriorityHigh tasks run after all critical tasks complete.
	PriorityHigh TaskPriority = 2
	// PriorityMedium tasks run after high-priority tasks.
	PriorityMedium TaskPriority = 3
	// PriorityLow tasks run last.
	PriorityLow TaskPriority = 4
)

// priorityNames maps priority levels to their historical names. Both
// directions are needed: task decompositions have arrived with either bare
// integers or level names over time.
var priorityNames = map[TaskPriority]string{
	PriorityCritical: "critical",
	PriorityHigh:     "high",
	PriorityMedium:   "medium",
	PriorityLow:      "low",
}

// String returns the named level for a priority, or "medium" for values
// outside the known range.
func (p TaskPriority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return "medium"
}

// Valid returns true if the priority is in the known range.
func (p TaskPriority) Valid() bool {
	_, ok := priorityNames[p]
	return ok
}

// PriorityFromName maps a level name back to its integer priority.
// Unknown names map to PriorityMedium.
func PriorityFromName(name string) TaskPriority {
	for p, n := range priorityNames {
		if n == name {
			return p
		}
	}
	return PriorityMedium
}

// SpecialistTask is one bounded unit of work handed to a specialist agent.
// Tasks are created exclusively during the orchestrator's task_creation stage
// and consumed read-only by the specialist executor.
type SpecialistTask struct {
	// Specialist is the domain agent this task is addressed to.
	Specialist SpecialistType `json:"specialist"`
	// Objective is what the specialist should determine.
	Objective string `json:"objective"`
	// Context carries query background and any initial data summary.
	Context string `json:"context,omitempty"`
	// ExpectedOutput describes the shape of answer the orchestrator wants.
	ExpectedOutput string `json:"expected_output,omitempty"`
	// Priority determines the execution group. Lower runs earlier.
	Priority TaskPriority `json:"priority"`
	// MaxToolCalls is the tool invocation ceiling for this task.
	MaxToolCalls int `json:"max_tool_calls"`
}
