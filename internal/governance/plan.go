package governance

import (
	"sync"
	"time"

	"github.com/agentcore/orchestrator/internal/coreerr"
	"github.com/agentcore/orchestrator/internal/ids"
)

// PlanStatus mirrors orchestrator/plan_approval.rs's PlanStatus enum.
// This is the Governance approval workflow's own Plan, distinct from
// internal/orchestrator's ExecutionPlan/Step (that package runs steps;
// this one gates whether a plan is allowed to run at all).
type PlanStatus string

const (
	PlanDraft           PlanStatus = "Draft"
	PlanPendingApproval PlanStatus = "PendingApproval"
	PlanApproved        PlanStatus = "Approved"
	PlanRejected        PlanStatus = "Rejected"
	PlanRevised         PlanStatus = "Revised"
)

// PlanStep is one line item of a Plan awaiting approval: a
// human-readable description of intended work, not an executable task.
type PlanStep struct {
	Description string
	Rationale   string
}

// Plan is a proposed course of action routed through human or Sangha
// approval before any orchestrator.ExecutionPlan is built from it.
type Plan struct {
	ID          ids.ExecutionId
	Title       string
	Steps       []PlanStep
	Status      PlanStatus
	AuthorID    string
	CreatedAt   time.Time
	DecidedAt   time.Time
	DecidedBy   string
	RejectNote  string
	RevisionOf  ids.ExecutionId
}

// NewPlan builds a Draft plan with no steps yet.
func NewPlan(clock ids.Clock, title, authorID string) *Plan {
	return &Plan{
		ID:        ids.New(),
		Title:     title,
		Status:    PlanDraft,
		AuthorID:  authorID,
		CreatedAt: clock.Now(),
	}
}

// AddStep appends a step while the plan is still a Draft.
func (p *Plan) AddStep(step PlanStep) error {
	if p.Status != PlanDraft {
		return coreerr.Newf(coreerr.KindState, "cannot add steps to a plan in status %s", p.Status)
	}
	p.Steps = append(p.Steps, step)
	return nil
}

// SubmitForApproval moves a Draft plan into PendingApproval.
func (p *Plan) SubmitForApproval() error {
	if p.Status != PlanDraft {
		return coreerr.Newf(coreerr.KindState, "only a Draft plan can be submitted, got %s", p.Status)
	}
	if len(p.Steps) == 0 {
		return coreerr.New(coreerr.KindValidation, "plan has no steps")
	}
	p.Status = PlanPendingApproval
	return nil
}

// PlanApprovalManager owns the Plan approval workflow: submit,
// approve, reject, revise.
type PlanApprovalManager struct {
	mu     sync.Mutex
	clock  ids.Clock
	plans  map[ids.ExecutionId]*Plan
	record func(kind, subjectID string, payload any)
}

func NewPlanApprovalManager(clock ids.Clock) *PlanApprovalManager {
	if clock == nil {
		clock = ids.SystemClock{}
	}
	return &PlanApprovalManager{clock: clock, plans: make(map[ids.ExecutionId]*Plan)}
}

// SetAuditSink wires an audit-append callback invoked on every Approve
// and Reject transition; nil disables auditing, the default.
func (m *PlanApprovalManager) SetAuditSink(fn func(kind, subjectID string, payload any)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = fn
}

// Submit records a plan already moved to PendingApproval via
// Plan.SubmitForApproval.
func (m *PlanApprovalManager) Submit(p *Plan) error {
	if p.Status != PlanPendingApproval {
		return coreerr.Newf(coreerr.KindState, "plan must be PendingApproval to submit, got %s", p.Status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[p.ID] = p
	return nil
}

func (m *PlanApprovalManager) Get(id ids.ExecutionId) (*Plan, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	return p, ok
}

// Approve transitions a PendingApproval plan to Approved.
func (m *PlanApprovalManager) Approve(id ids.ExecutionId, decidedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return coreerr.Newf(coreerr.KindNotFound, "plan %s not found", id)
	}
	if p.Status != PlanPendingApproval {
		return coreerr.Newf(coreerr.KindState, "plan %s is not PendingApproval, got %s", id, p.Status)
	}
	p.Status = PlanApproved
	p.DecidedAt = m.clock.Now()
	p.DecidedBy = decidedBy
	if m.record != nil {
		m.record("plan_approval", id.String(), map[string]any{"status": p.Status, "decided_by": decidedBy})
	}
	return nil
}

// Reject transitions a PendingApproval plan to Rejected with a note.
func (m *PlanApprovalManager) Reject(id ids.ExecutionId, decidedBy, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return coreerr.Newf(coreerr.KindNotFound, "plan %s not found", id)
	}
	if p.Status != PlanPendingApproval {
		return coreerr.Newf(coreerr.KindState, "plan %s is not PendingApproval, got %s", id, p.Status)
	}
	p.Status = PlanRejected
	p.DecidedAt = m.clock.Now()
	p.DecidedBy = decidedBy
	p.RejectNote = note
	if m.record != nil {
		m.record("plan_approval", id.String(), map[string]any{"status": p.Status, "decided_by": decidedBy, "note": note})
	}
	return nil
}

// Revise supersedes a Rejected plan with a fresh Draft carrying
// RevisionOf back to the original, matching plan_approval.rs's
// revise-then-resubmit cycle.
func (m *PlanApprovalManager) Revise(id ids.ExecutionId, authorID string) (*Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, coreerr.Newf(coreerr.KindNotFound, "plan %s not found", id)
	}
	if p.Status != PlanRejected {
		return nil, coreerr.Newf(coreerr.KindState, "only a Rejected plan can be revised, got %s", p.Status)
	}
	p.Status = PlanRevised

	revision := &Plan{
		ID:         ids.New(),
		Title:      p.Title,
		Status:     PlanDraft,
		AuthorID:   authorID,
		CreatedAt:  m.clock.Now(),
		RevisionOf: p.ID,
	}
	return revision, nil
}

// Pending returns every plan currently awaiting a decision.
func (m *PlanApprovalManager) Pending() []*Plan {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Plan
	for _, p := range m.plans {
		if p.Status == PlanPendingApproval {
			out = append(out, p)
		}
	}
	return out
}
