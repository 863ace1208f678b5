package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/openrounds/rounds/internal/retry"
	"github.com/openrounds/rounds/pkg/models"
)

// fakeRunner records execution order and fails scripted specialists.
type fakeRunner struct {
	mu       sync.Mutex
	started  []models.SpecialistType
	failures map[models.SpecialistType]int // remaining failures per specialist
}

func (f *fakeRunner) Execute(_ context.Context, task models.SpecialistTask) (*models.SpecialistResult, error) {
	f.mu.Lock()
	f.started = append(f.started, task.Specialist)
	remaining := f.failures[task.Specialist]
	if remaining > 0 {
		f.failures[task.Specialist] = remaining - 1
	}
	f.mu.Unlock()

	if remaining > 0 {
		return nil, errors.New("specialist blew up")
	}
	return &models.SpecialistResult{
		Specialist: task.Specialist,
		Findings:   "ok",
		DataPoints: map[string][]map[string]any{"m": {{"v": 1}}},
	}, nil
}

func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}
}

func taskFor(s models.SpecialistType, p models.TaskPriority) models.SpecialistTask {
	return models.SpecialistTask{Specialist: s, Objective: "o", Priority: p, MaxToolCalls: 3}
}

func TestCoordinatorPriorityBarrier(t *testing.T) {
	runner := &fakeRunner{}
	c := NewCoordinator(runner, fastRetry(), nil)

	results, _ := c.Run(context.Background(), []models.SpecialistTask{
		taskFor(models.SpecialistCardiology, models.PriorityCritical),
		taskFor(models.SpecialistNutrition, models.PriorityCritical),
		taskFor(models.SpecialistPharmacy, models.PriorityHigh),
	})

	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	// Pharmacy (P2) must not start before both P1 tasks reached a terminal
	// state.
	if len(runner.started) != 3 {
		t.Fatalf("started = %v", runner.started)
	}
	if runner.started[2] != models.SpecialistPharmacy {
		t.Errorf("priority 2 task ran before barrier: order %v", runner.started)
	}
}

func TestCoordinatorBarrierCoversRetries(t *testing.T) {
	// Cardiology fails all attempts; pharmacy in the next group must still
	// wait for those retries to exhaust.
	runner := &fakeRunner{failures: map[models.SpecialistType]int{
		models.SpecialistCardiology: 99,
	}}
	c := NewCoordinator(runner, fastRetry(), nil)

	results, _ := c.Run(context.Background(), []models.SpecialistTask{
		taskFor(models.SpecialistCardiology, models.PriorityCritical),
		taskFor(models.SpecialistPharmacy, models.PriorityHigh),
	})

	if _, ok := results[models.SpecialistCardiology]; ok {
		t.Error("failed specialist should be absent from results")
	}
	if _, ok := results[models.SpecialistPharmacy]; !ok {
		t.Error("later group should still run after earlier group failure")
	}

	// 3 attempts for cardiology, then pharmacy.
	if len(runner.started) != 4 {
		t.Fatalf("executions = %d (%v), want 4", len(runner.started), runner.started)
	}
	if runner.started[3] != models.SpecialistPharmacy {
		t.Errorf("pharmacy started before retries exhausted: %v", runner.started)
	}
}

func TestCoordinatorRetrySucceeds(t *testing.T) {
	runner := &fakeRunner{failures: map[models.SpecialistType]int{
		models.SpecialistNutrition: 2,
	}}
	var events []Event
	c := NewCoordinator(runner, fastRetry(), func(e Event) { events = append(events, e) })

	results, dataPoints := c.Run(context.Background(), []models.SpecialistTask{
		taskFor(models.SpecialistNutrition, models.PriorityMedium),
	})

	if _, ok := results[models.SpecialistNutrition]; !ok {
		t.Fatal("specialist should succeed on third attempt")
	}
	if dataPoints != 1 {
		t.Errorf("dataPoints = %d, want 1", dataPoints)
	}

	var completed bool
	for _, e := range events {
		if e.Type == EventSpecialistCompleted {
			completed = true
		}
		if e.Type == EventSpecialistFailed {
			t.Error("no failure event expected when retries recover")
		}
	}
	if !completed {
		t.Error("missing specialist_completed event")
	}
}

func TestCoordinatorFailureEventCarriesReason(t *testing.T) {
	runner := &fakeRunner{failures: map[models.SpecialistType]int{
		models.SpecialistCardiology: 99,
	}}
	var events []Event
	c := NewCoordinator(runner, fastRetry(), func(e Event) { events = append(events, e) })

	c.Run(context.Background(), []models.SpecialistTask{
		taskFor(models.SpecialistCardiology, models.PriorityCritical),
	})

	var failed *Event
	for i := range events {
		if events[i].Type == EventSpecialistFailed {
			failed = &events[i]
		}
	}
	if failed == nil {
		t.Fatal("missing specialist_failed event")
	}
	// Consumers render Message; it must carry the failure reason, not be
	// left empty alongside Error.
	if failed.Error == nil {
		t.Error("failure event has no Error")
	}
	if failed.Message == "" || !strings.Contains(failed.Message, "specialist blew up") {
		t.Errorf("failure message = %q, want the underlying error text", failed.Message)
	}
}

func TestCoordinatorEmptyTaskList(t *testing.T) {
	c := NewCoordinator(&fakeRunner{}, fastRetry(), nil)
	results, dataPoints := c.Run(context.Background(), nil)
	if len(results) != 0 || dataPoints != 0 {
		t.Errorf("results = %v, dataPoints = %d", results, dataPoints)
	}
}
