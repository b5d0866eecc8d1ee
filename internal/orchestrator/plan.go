// Package orchestrator implements the Plan Orchestrator (spec.md
// section 4.6): executing an ExecutionPlan of ordered Steps, each
// containing ParallelTasks run concurrently, within an agent session.
// The multi-step/parallel-step shape is grounded on the teacher's
// internal/supervisor/decision.go ActionPlan/PlannedAction structure
// (immediate/short-term/long-term buckets generalize to an ordered
// step sequence with explicit dependencies); the join logic itself is
// new, built directly from spec.md's algorithm.
package orchestrator

import (
	"context"
	"time"

	"github.com/agentcore/orchestrator/internal/coreerr"
	"github.com/agentcore/orchestrator/internal/ids"
)

// StepType is spec.md section 3's Step.step_type enumeration.
type StepType string

const (
	StepAnalysis  StepType = "Analysis"
	StepExecution StepType = "Execution"
	StepValidation StepType = "Validation"
	StepReview    StepType = "Review"
)

// ParallelTask is spec.md section 3's ParallelTask entity: one unit of
// concurrent work within a Step.
type ParallelTask struct {
	ID                 string
	Name               string
	Command            string
	ExpectedDurationMS int64
	Critical           bool
	ExpectFailure      bool
}

// ParallelTaskResult is the outcome of running one ParallelTask.
type ParallelTaskResult struct {
	TaskID   string
	Output   string
	Err      error
	TimedOut bool
	Duration time.Duration
}

// Succeeded reports whether this result counts as a success for step
// evaluation: expect_failure tasks succeed exactly when they failed.
func (r ParallelTaskResult) Succeeded(expectFailure bool) bool {
	if expectFailure {
		return r.Err != nil
	}
	return r.Err == nil
}

// Step is spec.md section 3's Step entity.
type Step struct {
	ID              string
	Name            string
	Description     string
	StepType        StepType
	ParallelTasks   []ParallelTask
	Dependencies    []string
	RequiredContext []string
}

// ExecutionPlan is spec.md section 3's ExecutionPlan entity.
type ExecutionPlan struct {
	TaskID   ids.TaskId
	Steps    []Step
	Context  map[string]string
	Adaptive bool
}

// Runner executes a single ParallelTask's command. Production wiring
// plugs in a ptybackend-backed session command runner; tests use a
// stub.
type Runner interface {
	Run(ctx context.Context, task ParallelTask) (string, error)
}

// Replanner is invoked on step failure when plan.Adaptive is set. It
// may return a modified step slice (recovery steps inserted, or the
// failed step removed) to re-enter execution with.
type Replanner interface {
	Replan(plan *ExecutionPlan, failedStepIndex int, results []ParallelTaskResult) ([]Step, error)
}

// PlanResult is the outcome of executing an ExecutionPlan.
type PlanResult struct {
	Success       bool
	CompletedSteps []string
	StepResults   map[string][]ParallelTaskResult
	FailedStep    string
	Err           error
}

// ValidateTopology rejects plans whose step dependencies form a cycle
// or reference an unknown step id, per spec.md section 4.6 step 1.
func ValidateTopology(steps []Step) error {
	byID := make(map[string]Step, len(steps))
	for _, s := range steps {
		byID[s.ID] = s
	}
	for _, s := range steps {
		for _, dep := range s.Dependencies {
			if _, ok := byID[dep]; !ok {
				return coreerr.Newf(coreerr.KindValidation, "step %q depends on unknown step %q", s.ID, dep)
			}
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(steps))
	var visit func(id string) error
	visit = func(id string) error {
		switch color[id] {
		case black:
			return nil
		case gray:
			return coreerr.Newf(coreerr.KindValidation, "cycle detected at step %q", id)
		}
		color[id] = gray
		for _, dep := range byID[id].Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[id] = black
		return nil
	}
	for _, s := range steps {
		if err := visit(s.ID); err != nil {
			return err
		}
	}
	return nil
}
