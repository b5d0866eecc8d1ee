// Package supervisor implements the Proactive Supervisor (spec.md
// section 4.7): two periodic analysis loops producing risk-tagged
// Decisions from an ordered analyzer pipeline. The risk/approval
// escalation shape is grounded on the teacher's decision-engine module
// (internal/supervisor/decision.go in its original form, since
// replaced here) which recommended OperationalMode and escalation from
// reconnaissance findings; this package generalizes that shape to
// operate over live task-queue/fabric/resource snapshots instead of
// static recon reports.
package supervisor

import (
	"time"

	"github.com/agentcore/orchestrator/internal/ids"
	"github.com/agentcore/orchestrator/internal/tasks"
)

// Risk is a Decision's risk_assessment tag per spec.md section 4.7.
type Risk string

const (
	RiskLow      Risk = "Low"
	RiskMedium   Risk = "Medium"
	RiskHigh     Risk = "High"
	RiskCritical Risk = "Critical"
)

// AtLeastHigh reports whether r requires HITL/Proposal escalation
// rather than direct execution.
func (r Risk) AtLeastHigh() bool { return r == RiskHigh || r == RiskCritical }

// DecisionKind tags a Decision variant.
type DecisionKind string

const (
	DecisionSuspendAgent     DecisionKind = "SuspendAgent"
	DecisionRebalance        DecisionKind = "Rebalance"
	DecisionDispatch         DecisionKind = "Dispatch"
	DecisionCreateRemediation DecisionKind = "CreateRemediation"
	DecisionProposeAgent     DecisionKind = "ProposeAgent"
)

// Decision is one recommendation produced by an analyzer tick.
type Decision struct {
	Kind   DecisionKind
	Risk   Risk
	At     time.Time

	AgentID          ids.AgentId
	TaskID           ids.TaskId
	CandidateAgentID string
	ParentTaskID      ids.TaskId
	QualityIssues     []tasks.QualityIssue
	Role              string
	Reason            string
}

// Thresholds configures the analyzer pipeline's tunables, each with
// the default spec.md section 4.7 states.
type Thresholds struct {
	IdleThreshold     time.Duration
	BottleneckRatio   float64
	StaleThreshold    time.Duration
	QualityThreshold  float64
	CapacityTickCount int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		IdleThreshold:     15 * time.Minute,
		BottleneckRatio:   0.6,
		StaleThreshold:    5 * time.Minute,
		QualityThreshold:  0.7,
		CapacityTickCount: 3,
	}
}
