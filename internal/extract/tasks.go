package extract

import (
	"log"
	"strconv"
	"strings"

	"github.com/openrounds/rounds/pkg/models"
)

// Task block tag names have drifted across prompt revisions. Both the block
// tag (<task> vs <specialist_task>) and the specialist field (<specialist> vs
// <specialty>) must keep parsing, so old traces stay replayable.
var taskBlockTags = []string{"task", "specialist_task"}
var specialistFieldTags = []string{"specialist", "specialty"}

// Tasks parses specialist task blocks out of a task-creation response.
// Blocks may sit inside an optional <tasks> wrapper. A block missing a
// recognized specialist or an objective is logged and skipped; its siblings
// still parse. toolBudget is applied when a block carries no usable
// max_tool_calls of its own.
func Tasks(text string, toolBudget int) []models.SpecialistTask {
	scope := text
	if wrapped, ok := Tag(text, "tasks"); ok {
		scope = wrapped
	}

	var blocks []string
	for _, tag := range taskBlockTags {
		blocks = append(blocks, AllTags(scope, tag)...)
	}

	var tasks []models.SpecialistTask
	for i, block := range blocks {
		task, ok := parseTaskBlock(block, toolBudget)
		if !ok {
			log.Printf("[extract] skipping unparsable task block %d", i+1)
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks
}

func parseTaskBlock(block string, toolBudget int) (models.SpecialistTask, bool) {
	var specialist models.SpecialistType
	found := false
	for _, tag := range specialistFieldTags {
		if content, ok := Tag(block, tag); ok {
			if st, valid := models.ParseSpecialist(content); valid {
				specialist = st
				found = true
				break
			}
		}
	}
	if !found {
		return models.SpecialistTask{}, false
	}

	objective, ok := Tag(block, "objective")
	if !ok || objective == "" {
		return models.SpecialistTask{}, false
	}

	task := models.SpecialistTask{
		Specialist:     specialist,
		Objective:      objective,
		Context:        TagOr(block, "context", ""),
		ExpectedOutput: TagOr(block, "expected_output", ""),
		Priority:       parsePriority(TagOr(block, "priority", "")),
		MaxToolCalls:   toolBudget,
	}

	if raw, ok := Tag(block, "max_tool_calls"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n > 0 {
			task.MaxToolCalls = n
		}
	}
	return task, true
}

// parsePriority accepts either a bare integer or a named level. Anything
// unrecognized lands on medium.
func parsePriority(raw string) models.TaskPriority {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return models.PriorityMedium
	}
	if n, err := strconv.Atoi(raw); err == nil {
		p := models.TaskPriority(n)
		if p.Valid() {
			return p
		}
		return models.PriorityMedium
	}
	return models.PriorityFromName(raw)
}
