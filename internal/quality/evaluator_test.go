package quality

import (
	"testing"
	"time"

	"github.com/agentcore/orchestrator/internal/ids"
	"github.com/agentcore/orchestrator/internal/tasks"
)

func TestHeuristicPassesCleanResult(t *testing.T) {
	h := NewHeuristic()
	clock := ids.NewFixedClock(time.Now())
	task := tasks.New(clock, "build the widget", tasks.PriorityMedium, tasks.TypeDevelopment)

	result, err := h.Evaluate(task, TaskResult{Success: true, Output: `{"files":["a.go"]}`}, "backend", "/tmp/ws")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !result.PassesStandards {
		t.Fatalf("expected clean result to pass standards, got score %v issues %v", result.OverallScore, result.Issues)
	}
}

func TestHeuristicFlagsFailure(t *testing.T) {
	h := NewHeuristic()
	clock := ids.NewFixedClock(time.Now())
	task := tasks.New(clock, "build the widget", tasks.PriorityMedium, tasks.TypeDevelopment)

	result, err := h.Evaluate(task, TaskResult{Success: false, Error: "compile error"}, "backend", "/tmp/ws")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.PassesStandards {
		t.Fatalf("expected failed task result to not pass standards")
	}
	if len(result.Issues) == 0 {
		t.Fatalf("expected at least one issue recorded")
	}
}

func TestHeuristicFlagsSuspiciousOutput(t *testing.T) {
	h := NewHeuristic()
	clock := ids.NewFixedClock(time.Now())
	task := tasks.New(clock, "implement feature", tasks.PriorityMedium, tasks.TypeFeature)

	result, err := h.Evaluate(task, TaskResult{Success: true, Output: "// TODO: not implemented yet (FIXME)"}, "backend", "/tmp/ws")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.PassesStandards {
		t.Fatalf("expected suspicious markers to fail standards, got score %v", result.OverallScore)
	}
}

func TestToQualityIssuesPreservesDescription(t *testing.T) {
	issues := []Issue{{Severity: SeverityError, Category: "output-quality", Description: "contains TODO"}}
	converted := ToQualityIssues(issues, 0.3)
	if len(converted) != 1 || converted[0].Description != "contains TODO" || converted[0].Score != 0.3 {
		t.Fatalf("unexpected conversion result: %+v", converted)
	}
}
