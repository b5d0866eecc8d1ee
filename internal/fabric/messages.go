// Package fabric implements the Coordination Fabric (spec.md section
// 4.3) and the Message Conversion Registry (spec.md section 4.4): a
// typed, bounded-channel message bus with per-agent mailboxes,
// broadcast, team scoping, and monitoring, plus the bidirectional
// translation between AgentMessage and SupervisorMessage vocabularies.
package fabric

import (
	"encoding/json"

	"github.com/agentcore/orchestrator/internal/ids"
)

// AgentMessageKind tags an AgentMessage variant.
type AgentMessageKind string

const (
	AgentRegistration   AgentMessageKind = "Registration"
	AgentTaskAssignment AgentMessageKind = "TaskAssignment"
	AgentTaskProgress   AgentMessageKind = "TaskProgress"
	AgentTaskCompleted  AgentMessageKind = "TaskCompleted"
	AgentHelpRequest    AgentMessageKind = "HelpRequest"
	AgentStatusUpdate   AgentMessageKind = "StatusUpdate"
	AgentCustom         AgentMessageKind = "Custom"
)

// AgentMessage is the tagged union spec.md section 3 defines. Only
// the fields relevant to Kind are populated by convention, matching
// the teacher's own typed-message-struct idiom (internal/nats/messages.go)
// rather than a sum-type library.
type AgentMessage struct {
	Kind AgentMessageKind `json:"kind"`

	AgentID      ids.AgentId `json:"agent_id,omitempty"`
	TaskID       ids.TaskId  `json:"task_id,omitempty"`
	Capabilities []string    `json:"capabilities,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	TaskData     json.RawMessage   `json:"task_data,omitempty"`
	Progress     float64     `json:"progress,omitempty"`
	Message      string      `json:"message,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	Context      string      `json:"context,omitempty"`
	Priority     Priority    `json:"priority,omitempty"`
	Status       string      `json:"status,omitempty"`
	Metrics      json.RawMessage `json:"metrics,omitempty"`
	CustomType   string      `json:"custom_type,omitempty"`
	CustomData   json.RawMessage `json:"custom_data,omitempty"`

	// Sender is the agent that produced this message. Bus neither sets
	// nor reads it: team delivery excludes its from argument instead.
	Sender ids.AgentId `json:"sender,omitempty"`
}

// SupervisorMessageKind tags a SupervisorMessage variant. This is a
// structurally different vocabulary from AgentMessageKind per spec.md
// section 3 -- the two are related only through the conversion rules
// in section 4.4, never shared directly.
type SupervisorMessageKind string

const (
	SupervisorTaskCompleted      SupervisorMessageKind = "TaskCompleted"
	SupervisorStatusUpdate       SupervisorMessageKind = "StatusUpdate"
	SupervisorRequestAssistance  SupervisorMessageKind = "RequestAssistance"
	SupervisorQualityIssue       SupervisorMessageKind = "QualityIssue"
	SupervisorInterAgentMessage  SupervisorMessageKind = "InterAgentMessage"
	SupervisorCoordination       SupervisorMessageKind = "Coordination"
)

// TaskResult mirrors spec.md section 3's TaskResult entity.
type TaskResult struct {
	Success  bool            `json:"success"`
	Output   json.RawMessage `json:"output"`
	Error    string          `json:"error,omitempty"`
	Duration float64         `json:"duration_seconds"`
}

// AgentStatus is the supervisor-side status vocabulary, converted to
// and from the session-side status string per the canonical mapping
// in spec.md section 4.4.
type AgentStatus string

const (
	StatusAvailable    AgentStatus = "Available"
	StatusWorking      AgentStatus = "Working"
	StatusWaitingReview AgentStatus = "WaitingForReview"
	StatusError        AgentStatus = "Error"
	StatusShuttingDown AgentStatus = "ShuttingDown"
)

// Priority is shared by both vocabularies' HelpRequest/RequestAssistance
// variants; its session-side string encoding is lower-case per spec.md
// section 6.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// SupervisorPriority is the supervisor-side priority vocabulary that
// maps to Priority per spec.md section 4.4 ({Low<->Low, Medium<->Normal,
// High<->High, Critical<->Critical}).
type SupervisorPriority string

const (
	SupervisorPriorityLow      SupervisorPriority = "Low"
	SupervisorPriorityMedium   SupervisorPriority = "Medium"
	SupervisorPriorityHigh     SupervisorPriority = "High"
	SupervisorPriorityCritical SupervisorPriority = "Critical"
)

// SupervisorMessage is the planner-side tagged union.
type SupervisorMessage struct {
	Kind SupervisorMessageKind `json:"kind"`

	AgentID  string          `json:"agent_id,omitempty"`
	TaskID   string          `json:"task_id,omitempty"`
	Result   TaskResult      `json:"result,omitempty"`
	Status   AgentStatus     `json:"status,omitempty"`
	Metrics  json.RawMessage `json:"metrics,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	Priority SupervisorPriority `json:"priority,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}
