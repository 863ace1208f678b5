package orchestrator

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/openrounds/rounds/internal/retry"
	"github.com/openrounds/rounds/pkg/models"
)

// SpecialistRunner executes one specialist task. Satisfied by
// specialist.Executor; tests substitute fakes.
type SpecialistRunner interface {
	Execute(ctx context.Context, task models.SpecialistTask) (*models.SpecialistResult, error)
}

// Coordinator fans specialist tasks out by priority group. Groups run
// strictly in ascending priority order; all tasks within a group run
// concurrently. Each task gets bounded retries; a task that exhausts them
// contributes no result and the remaining work proceeds.
type Coordinator struct {
	runner  SpecialistRunner
	policy  retry.Policy
	onEvent func(Event)
}

// NewCoordinator creates a coordinator over the given runner.
func NewCoordinator(runner SpecialistRunner, policy retry.Policy, onEvent func(Event)) *Coordinator {
	if onEvent == nil {
		onEvent = func(Event) {}
	}
	return &Coordinator{runner: runner, policy: policy, onEvent: onEvent}
}

// Run executes all tasks and returns the result map plus the total data
// point count. Absent map entries are specialists that failed every attempt.
func (c *Coordinator) Run(ctx context.Context, tasks []models.SpecialistTask) (map[models.SpecialistType]*models.SpecialistResult, int) {
	results := make(map[models.SpecialistType]*models.SpecialistResult)
	var mu sync.Mutex

	for _, group := range groupByPriority(tasks) {
		var wg sync.WaitGroup
		for _, task := range group {
			wg.Add(1)
			go func(task models.SpecialistTask) {
				defer wg.Done()

				c.onEvent(Event{Type: EventSpecialistStarted, Specialist: task.Specialist, Timestamp: time.Now()})

				var result *models.SpecialistResult
				err := c.policy.Do(ctx, func() error {
					var execErr error
					result, execErr = c.runner.Execute(ctx, task)
					return execErr
				}, nil)

				if err != nil {
					log.Printf("[coordinator] specialist %s failed after retries: %v", task.Specialist, err)
					c.onEvent(Event{Type: EventSpecialistFailed, Specialist: task.Specialist,
						Message: err.Error(), Error: err, Timestamp: time.Now()})
					return
				}

				mu.Lock()
				results[task.Specialist] = result
				mu.Unlock()
				c.onEvent(Event{Type: EventSpecialistCompleted, Specialist: task.Specialist, Timestamp: time.Now()})
			}(task)
		}
		// Hard barrier: the next priority group must not start until every
		// task here reached a terminal state, retries included.
		wg.Wait()
	}

	var dataPoints int
	for _, r := range results {
		dataPoints += r.DataPointCount()
	}
	return results, dataPoints
}

// groupByPriority buckets tasks by priority and returns the buckets in
// ascending priority order. Order within a bucket is not significant.
func groupByPriority(tasks []models.SpecialistTask) [][]models.SpecialistTask {
	buckets := make(map[models.TaskPriority][]models.SpecialistTask)
	for _, t := range tasks {
		buckets[t.Priority] = append(buckets[t.Priority], t)
	}

	priorities := make([]models.TaskPriority, 0, len(buckets))
	for p := range buckets {
		priorities = append(priorities, p)
	}
	sort.Slice(priorities, func(i, j int) bool { return priorities[i] < priorities[j] })

	out := make([][]models.SpecialistTask, 0, len(priorities))
	for _, p := range priorities {
		out = append(out, buckets[p])
	}
	return out
}
