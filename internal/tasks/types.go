// Package tasks implements the Task Model & Queue (spec.md section
// 4.5): typed tasks with priority/type/dependencies and a priority
// queue with dependency-gated claiming. Generalized from the teacher's
// internal/tasks/types.go and queue.go, which modeled a narrower
// PR-review workflow (string status enum, no dependency graph); this
// version replaces that vocabulary with spec.md's Task shape while
// keeping the teacher's sort-by-priority idiom.
package tasks

import (
	"fmt"
	"time"

	"github.com/agentcore/orchestrator/internal/coreerr"
	"github.com/agentcore/orchestrator/internal/ids"
)

// Priority is spec.md section 3's total ordering, Critical first.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityMedium
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "Critical"
	case PriorityHigh:
		return "High"
	case PriorityMedium:
		return "Medium"
	case PriorityLow:
		return "Low"
	default:
		return "Unknown"
	}
}

// AtLeast reports whether p is at least as urgent as other (lower
// numeric value means more urgent).
func (p Priority) AtLeast(other Priority) bool { return p <= other }

// Type is spec.md section 3's Task.type enumeration.
type Type string

const (
	TypeDevelopment    Type = "Development"
	TypeTesting        Type = "Testing"
	TypeDocumentation  Type = "Documentation"
	TypeInfrastructure Type = "Infrastructure"
	TypeCoordination   Type = "Coordination"
	TypeReview         Type = "Review"
	TypeBugfix         Type = "Bugfix"
	TypeFeature        Type = "Feature"
	TypeRemediation    Type = "Remediation"
	TypeAssistance     Type = "Assistance"
	TypeResearch       Type = "Research"
)

// Status tracks task lifecycle; spec.md's Task entity itself is
// status-less, but the queue needs one to implement claim/mark_complete/
// mark_failed, so this generalizes the teacher's TaskStatus enum down
// to the states the queue's operations actually require.
type Status string

const (
	StatusPending   Status = "pending"
	StatusClaimed   Status = "claimed"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// QualityIssue is carried by Remediation tasks, per spec.md section 3's
// invariant that a Remediation task has quality_issues non-empty.
type QualityIssue struct {
	Description string  `json:"description"`
	Severity    string  `json:"severity"`
	Score       float64 `json:"score"`
}

// Task is spec.md section 3's Task entity plus the scheduling fields
// the queue needs (status, dependencies, timestamps, claimant).
type Task struct {
	ID                ids.TaskId     `json:"id"`
	Description       string         `json:"description"`
	Details           string         `json:"details,omitempty"`
	Priority          Priority       `json:"priority"`
	Type              Type           `json:"type"`
	EstimatedDuration *time.Duration `json:"estimated_duration,omitempty"`
	AssignedTo        string         `json:"assigned_to,omitempty"`
	ParentTaskID      *ids.TaskId    `json:"parent_task_id,omitempty"`
	QualityIssues     []QualityIssue `json:"quality_issues,omitempty"`
	Dependencies      []ids.TaskId   `json:"dependencies,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`

	Status      Status     `json:"status"`
	FailReason  string     `json:"fail_reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// New builds a pending Task with a fresh id and timestamps from clock.
func New(clock ids.Clock, description string, priority Priority, typ Type) *Task {
	now := clock.Now()
	return &Task{
		ID:          ids.New(),
		Description: description,
		Priority:    priority,
		Type:        typ,
		Status:      StatusPending,
		Metadata:    make(map[string]string),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewRemediation builds a Remediation task for parent, satisfying
// spec.md section 3's invariant (parent_task_id set, quality_issues
// non-empty) and section 4.5's rule that remediation priority is at
// least the parent's.
func NewRemediation(clock ids.Clock, parent *Task, issues []QualityIssue) *Task {
	if len(issues) == 0 {
		issues = []QualityIssue{{Description: "quality score below threshold", Severity: "unspecified"}}
	}
	t := New(clock, fmt.Sprintf("remediate: %s", parent.Description), remediationPriority(parent.Priority), TypeRemediation)
	parentID := parent.ID
	t.ParentTaskID = &parentID
	t.QualityIssues = issues
	return t
}

// remediationPriority returns max(parent.priority, High) in urgency
// terms -- remediation is never less urgent than High.
func remediationPriority(parent Priority) Priority {
	if parent.AtLeast(PriorityHigh) {
		return parent
	}
	return PriorityHigh
}

// Validate checks invariants spec.md section 3 states for Task.
func (t *Task) Validate() error {
	if t.Description == "" {
		return coreerr.New(coreerr.KindValidation, "task description is required")
	}
	if t.Type == TypeRemediation {
		if t.ParentTaskID == nil {
			return coreerr.New(coreerr.KindValidation, "remediation task must have parent_task_id set")
		}
		if len(t.QualityIssues) == 0 {
			return coreerr.New(coreerr.KindValidation, "remediation task must have quality_issues")
		}
	}
	return nil
}

// DependenciesSatisfied reports whether every dependency id is present
// in completed.
func (t *Task) DependenciesSatisfied(completed map[ids.TaskId]struct{}) bool {
	for _, dep := range t.Dependencies {
		if _, ok := completed[dep]; !ok {
			return false
		}
	}
	return true
}
