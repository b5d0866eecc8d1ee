package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/agentcore/orchestrator/internal/coreerr"
	"go.uber.org/zap"
)

// Orchestrator executes ExecutionPlans against a Runner.
type Orchestrator struct {
	runner    Runner
	replanner Replanner
	log       *zap.Logger
}

func New(runner Runner, replanner Replanner, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{runner: runner, replanner: replanner, log: log}
}

// Execute runs plan to completion per spec.md section 4.6's algorithm:
// topologically validate, then execute steps in declared order, failing
// the plan if a step's dependencies have not completed earlier in that
// order, running every ParallelTask in a step
// concurrently under a 3x-expected-duration timeout, and on failure
// either replanning (if plan.Adaptive) or aborting.
func (o *Orchestrator) Execute(ctx context.Context, plan *ExecutionPlan) PlanResult {
	if err := ValidateTopology(plan.Steps); err != nil {
		return PlanResult{Success: false, Err: err}
	}
	if plan.Context == nil {
		plan.Context = make(map[string]string)
	}

	completed := make(map[string]struct{})
	result := PlanResult{StepResults: make(map[string][]ParallelTaskResult)}

	steps := plan.Steps
	for i := 0; i < len(steps); i++ {
		step := steps[i]
		if !dependenciesMet(step.Dependencies, completed) {
			return PlanResult{Success: false, Err: coreerr.Newf(coreerr.KindState, "step %q dependencies not met in declared order", step.ID)}
		}

		stepResults := o.runStep(ctx, step)
		result.StepResults[step.ID] = stepResults

		if stepSucceeded(step, stepResults) {
			completed[step.ID] = struct{}{}
			result.CompletedSteps = append(result.CompletedSteps, step.ID)
			for _, r := range stepResults {
				if r.Err == nil {
					plan.Context[r.TaskID] = r.Output
				}
			}
			continue
		}

		o.log.Warn("plan step failed", zap.String("step_id", step.ID), zap.Bool("adaptive", plan.Adaptive))
		if !plan.Adaptive || o.replanner == nil {
			result.Success = false
			result.FailedStep = step.ID
			result.Err = coreerr.Newf(coreerr.KindState, "step %q failed", step.ID)
			return result
		}

		newSteps, err := o.replanner.Replan(plan, i, stepResults)
		if err != nil {
			result.Success = false
			result.FailedStep = step.ID
			result.Err = coreerr.Wrap(coreerr.KindState, "replanning failed", err)
			return result
		}
		steps = append(append(append([]Step{}, steps[:i]...), newSteps...), steps[i+1:]...)
		i-- // re-enter at the same index with the replanned steps
	}

	result.Success = true
	return result
}

func dependenciesMet(deps []string, completed map[string]struct{}) bool {
	for _, d := range deps {
		if _, ok := completed[d]; !ok {
			return false
		}
	}
	return true
}

// stepSucceeded implements spec.md section 4.6 step 3: every critical
// task succeeded, every non-expect_failure task succeeded, every
// expect_failure task failed.
func stepSucceeded(step Step, results []ParallelTaskResult) bool {
	byID := make(map[string]ParallelTaskResult, len(results))
	for _, r := range results {
		byID[r.TaskID] = r
	}
	for _, task := range step.ParallelTasks {
		r, ok := byID[task.ID]
		if !ok {
			return false
		}
		if task.Critical && !r.Succeeded(task.ExpectFailure) {
			return false
		}
		if !r.Succeeded(task.ExpectFailure) {
			return false
		}
	}
	return true
}

func (o *Orchestrator) runStep(ctx context.Context, step Step) []ParallelTaskResult {
	results := make([]ParallelTaskResult, len(step.ParallelTasks))
	var wg sync.WaitGroup
	for i, task := range step.ParallelTasks {
		wg.Add(1)
		go func(i int, task ParallelTask) {
			defer wg.Done()
			results[i] = o.runTask(ctx, task)
		}(i, task)
	}
	wg.Wait()
	return results
}

func (o *Orchestrator) runTask(ctx context.Context, task ParallelTask) ParallelTaskResult {
	timeout := 3 * time.Duration(task.ExpectedDurationMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan struct {
		out string
		err error
	}, 1)
	go func() {
		out, err := o.runner.Run(taskCtx, task)
		done <- struct {
			out string
			err error
		}{out, err}
	}()

	select {
	case r := <-done:
		return ParallelTaskResult{TaskID: task.ID, Output: r.out, Err: r.err, Duration: time.Since(start)}
	case <-taskCtx.Done():
		return ParallelTaskResult{
			TaskID:   task.ID,
			Err:      coreerr.Newf(coreerr.KindTimeout, "task %q exceeded %s timeout", task.ID, timeout),
			TimedOut: true,
			Duration: time.Since(start),
		}
	}
}
