package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/agentcore/orchestrator/internal/coreerr"
	"github.com/agentcore/orchestrator/internal/ids"
)

type recordingRunner struct {
	mu     sync.Mutex
	starts map[string]time.Time
	fail   map[string]bool
	delay  map[string]time.Duration
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{starts: make(map[string]time.Time), fail: make(map[string]bool), delay: make(map[string]time.Duration)}
}

func (r *recordingRunner) Run(ctx context.Context, task ParallelTask) (string, error) {
	r.mu.Lock()
	r.starts[task.ID] = time.Now()
	r.mu.Unlock()

	if d := r.delay[task.ID]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if r.fail[task.ID] {
		return "", fmt.Errorf("task %s failed", task.ID)
	}
	return "ok:" + task.ID, nil
}

// TestPlanWithParallelTasks covers scenario S6 from spec.md section 8.
func TestPlanWithParallelTasks(t *testing.T) {
	runner := newRecordingRunner()
	o := New(runner, nil, nil)

	plan := &ExecutionPlan{
		TaskID: ids.New(),
		Steps: []Step{
			{
				ID:       "step1",
				ParallelTasks: []ParallelTask{
					{ID: "create", ExpectedDurationMS: 1000, Critical: true},
				},
			},
			{
				ID:           "step2",
				Dependencies: []string{"step1"},
				ParallelTasks: []ParallelTask{
					{ID: "test", ExpectedDurationMS: 5000},
					{ID: "lint", ExpectedDurationMS: 3000},
				},
			},
		},
	}

	result := o.Execute(context.Background(), plan)
	if !result.Success {
		t.Fatalf("expected plan success, got err=%v failedStep=%s", result.Err, result.FailedStep)
	}
	if len(result.CompletedSteps) != 2 {
		t.Fatalf("expected both steps completed, got %v", result.CompletedSteps)
	}

	testStart := runner.starts["test"]
	lintStart := runner.starts["lint"]
	diff := testStart.Sub(lintStart)
	if diff < 0 {
		diff = -diff
	}
	if diff > 100*time.Millisecond {
		t.Fatalf("expected concurrent starts within 100ms, got %s apart", diff)
	}
}

func TestStepFailsWhenCriticalTaskFails(t *testing.T) {
	runner := newRecordingRunner()
	runner.fail["build"] = true
	o := New(runner, nil, nil)

	plan := &ExecutionPlan{
		Steps: []Step{
			{ID: "step1", ParallelTasks: []ParallelTask{{ID: "build", Critical: true}}},
		},
	}
	result := o.Execute(context.Background(), plan)
	if result.Success {
		t.Fatalf("expected plan failure when a critical task fails")
	}
	if result.FailedStep != "step1" {
		t.Fatalf("expected failed step step1, got %s", result.FailedStep)
	}
}

func TestExpectFailureTaskSucceedsWhenItFails(t *testing.T) {
	runner := newRecordingRunner()
	runner.fail["probe"] = true
	o := New(runner, nil, nil)

	plan := &ExecutionPlan{
		Steps: []Step{
			{ID: "step1", ParallelTasks: []ParallelTask{{ID: "probe", ExpectFailure: true}}},
		},
	}
	result := o.Execute(context.Background(), plan)
	if !result.Success {
		t.Fatalf("expected plan success when expect_failure task fails as expected, got %v", result.Err)
	}
}

func TestTaskTimeoutAtThreeXExpectedDuration(t *testing.T) {
	runner := newRecordingRunner()
	runner.delay["slow"] = 50 * time.Millisecond
	o := New(runner, nil, nil)

	plan := &ExecutionPlan{
		Steps: []Step{
			{ID: "step1", ParallelTasks: []ParallelTask{{ID: "slow", ExpectedDurationMS: 10, Critical: true}}},
		},
	}
	result := o.Execute(context.Background(), plan)
	if result.Success {
		t.Fatalf("expected timeout failure for task exceeding 3x expected duration")
	}
	res := result.StepResults["step1"][0]
	if !res.TimedOut {
		t.Fatalf("expected TimedOut true, got %+v", res)
	}
	if !coreerr.Is(res.Err, coreerr.KindTimeout) {
		t.Fatalf("expected Timeout kind error, got %v", res.Err)
	}
}

type insertRecoveryReplanner struct{ called bool }

func (r *insertRecoveryReplanner) Replan(plan *ExecutionPlan, failedIdx int, results []ParallelTaskResult) ([]Step, error) {
	r.called = true
	return []Step{{ID: "recovery", ParallelTasks: []ParallelTask{{ID: "fix", Critical: true}}}}, nil
}

func TestAdaptiveReplanInsertsRecoveryStep(t *testing.T) {
	runner := newRecordingRunner()
	runner.fail["broken"] = true
	replanner := &insertRecoveryReplanner{}
	o := New(runner, replanner, nil)

	plan := &ExecutionPlan{
		Adaptive: true,
		Steps: []Step{
			{ID: "step1", ParallelTasks: []ParallelTask{{ID: "broken", Critical: true}}},
		},
	}
	result := o.Execute(context.Background(), plan)
	if !replanner.called {
		t.Fatalf("expected replanner to be invoked on step failure")
	}
	if !result.Success {
		t.Fatalf("expected plan to succeed after recovery step, got %v", result.Err)
	}
	found := false
	for _, id := range result.CompletedSteps {
		if id == "recovery" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected recovery step among completed steps, got %v", result.CompletedSteps)
	}
}

func TestValidateTopologyRejectsCycle(t *testing.T) {
	steps := []Step{
		{ID: "a", Dependencies: []string{"b"}},
		{ID: "b", Dependencies: []string{"a"}},
	}
	if err := ValidateTopology(steps); !coreerr.Is(err, coreerr.KindValidation) {
		t.Fatalf("expected validation error for cycle, got %v", err)
	}
}

func TestValidateTopologyRejectsUnknownDependency(t *testing.T) {
	steps := []Step{{ID: "a", Dependencies: []string{"ghost"}}}
	if err := ValidateTopology(steps); !coreerr.Is(err, coreerr.KindValidation) {
		t.Fatalf("expected validation error for unknown dependency, got %v", err)
	}
}
