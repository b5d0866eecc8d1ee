// Package quality implements the Quality Evaluator (spec.md section
// 4.8): a pluggable contract scoring a completed Task's TaskResult,
// with a default heuristic implementation. The Issue/severity
// vocabulary is grounded on the teacher's internal/memory/review_board.go
// ReviewDefect shape; the heuristic's keyword matching reuses the
// case-insensitive substring-match idiom from
// internal/supervisor/decision.go's containsKeyword.
package quality

import (
	"strconv"
	"strings"

	"github.com/agentcore/orchestrator/internal/tasks"
)

// Severity is an Issue's severity level.
type Severity string

const (
	SeverityInfo     Severity = "Info"
	SeverityWarning  Severity = "Warning"
	SeverityError    Severity = "Error"
	SeverityCritical Severity = "Critical"
)

// Issue is one finding against a completed task, grounded on the
// teacher's ReviewDefect{category, severity, description} shape.
type Issue struct {
	Severity    Severity
	Category    string
	Description string
}

// Result is the Quality Evaluator's verdict for one task.
type Result struct {
	OverallScore   float64
	PassesStandards bool
	Issues         []Issue
	Feedback       string
	Confidence     float64
}

// TaskResult is the minimal slice of tasks.Task + output this package
// needs, decoupled from the orchestrator's execution types.
type TaskResult struct {
	Success  bool
	Output   string
	Error    string
	Duration float64
}

// Evaluator is the pluggable post-task quality contract. A production
// deployment may substitute an LLM-backed implementation; the default
// is Heuristic below.
type Evaluator interface {
	Evaluate(task *tasks.Task, result TaskResult, agentRole, workspace string) (Result, error)
}

// PassStandardsThreshold is the default overall_score cutoff below
// which passes_standards is false.
const PassStandardsThreshold = 0.7

// Heuristic is the default keyword/structure-based Evaluator.
type Heuristic struct {
	// FailureKeywords mark output as containing likely defects when
	// present (case-insensitive substring match).
	FailureKeywords []string
	// RequireNonEmptyOutput, when true, penalizes empty output on an
	// otherwise-successful result.
	RequireNonEmptyOutput bool
}

// NewHeuristic returns a Heuristic pre-populated with the teacher's
// own defect vocabulary (security/architecture/destructive-change
// keywords from internal/supervisor/decision.go), generalized here to
// flag suspicious task output rather than reconnaissance findings.
func NewHeuristic() *Heuristic {
	return &Heuristic{
		FailureKeywords: []string{
			"panic", "fatal", "exception", "traceback", "todo", "fixme",
			"not implemented", "stub",
		},
		RequireNonEmptyOutput: true,
	}
}

func (h *Heuristic) Evaluate(task *tasks.Task, result TaskResult, agentRole, workspace string) (Result, error) {
	var issues []Issue
	score := 1.0

	if !result.Success {
		issues = append(issues, Issue{
			Severity:    SeverityCritical,
			Category:    "execution",
			Description: "task result reported failure: " + result.Error,
		})
		score -= 0.6
	}

	if h.RequireNonEmptyOutput && result.Success && strings.TrimSpace(result.Output) == "" {
		issues = append(issues, Issue{
			Severity:    SeverityWarning,
			Category:    "completeness",
			Description: "task succeeded but produced empty output",
		})
		score -= 0.2
	}

	for _, kw := range h.FailureKeywords {
		if containsKeyword(result.Output, []string{kw}) {
			issues = append(issues, Issue{
				Severity:    SeverityError,
				Category:    "output-quality",
				Description: "output contains suspicious marker: " + kw,
			})
			score -= 0.15
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	feedback := "no issues found"
	if len(issues) > 0 {
		feedback = "found " + strconv.Itoa(len(issues)) + " issue(s); see issues list"
	}

	return Result{
		OverallScore:    score,
		PassesStandards: score >= PassStandardsThreshold,
		Issues:          issues,
		Feedback:        feedback,
		Confidence:      0.6,
	}, nil
}

// containsKeyword is the teacher's internal/supervisor/decision.go
// helper, reused verbatim for the same case-insensitive substring
// matching need.
func containsKeyword(text string, keywords []string) bool {
	lowerText := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lowerText, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// ToQualityIssues converts evaluator Issues into the tasks package's
// QualityIssue shape for remediation-task synthesis.
func ToQualityIssues(issues []Issue, score float64) []tasks.QualityIssue {
	out := make([]tasks.QualityIssue, 0, len(issues))
	for _, iss := range issues {
		out = append(out, tasks.QualityIssue{
			Description: iss.Description,
			Severity:    string(iss.Severity),
			Score:       score,
		})
	}
	return out
}
