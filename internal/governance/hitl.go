package governance

import (
	"sync"
	"time"

	"github.com/agentcore/orchestrator/internal/coreerr"
	"github.com/agentcore/orchestrator/internal/ids"
)

// ActionType names the kind of action an ApprovalRequest is gating,
// per hitl/approval.rs.
type ActionType string

const (
	ActionDeployment     ActionType = "Deployment"
	ActionDestructive    ActionType = "Destructive"
	ActionPolicyChange   ActionType = "PolicyChange"
	ActionResourceGrant  ActionType = "ResourceGrant"
	ActionExternalCall   ActionType = "ExternalCall"
)

// RiskLevel is the risk classification attached to an ApprovalRequest.
// This mirrors supervisor.Risk's four tiers but is kept as its own
// type since Governance's approval routing (reminder cadence, channel
// fan-out) is a distinct concern from the Supervisor's decision risk.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "Low"
	RiskLevelMedium   RiskLevel = "Medium"
	RiskLevelHigh     RiskLevel = "High"
	RiskLevelCritical RiskLevel = "Critical"
)

// ApprovalChannel names where a pending approval was announced.
type ApprovalChannel string

const (
	ChannelCLI     ApprovalChannel = "Cli"
	ChannelSlack   ApprovalChannel = "Slack"
	ChannelEmail   ApprovalChannel = "Email"
	ChannelDiscord ApprovalChannel = "Discord"
	ChannelWebhook ApprovalChannel = "Webhook"
	ChannelSMS     ApprovalChannel = "Sms"
	// ChannelDesktop has no equivalent in hitl/approval.rs; it is
	// added so a PendingApproval can be routed to an OS-level toast
	// on the operator's own workstation via internal/notify.
	ChannelDesktop ApprovalChannel = "Desktop"
)

// ApprovalStatus is the terminal or in-flight state of an
// ApprovalRequest.
type ApprovalStatus string

const (
	ApprovalStatusPending                ApprovalStatus = "Pending"
	ApprovalStatusApproved               ApprovalStatus = "Approved"
	ApprovalStatusApprovedWithModifications ApprovalStatus = "ApprovedWithModifications"
	ApprovalStatusRejected               ApprovalStatus = "Rejected"
	ApprovalStatusTimeout                ApprovalStatus = "Timeout"
	ApprovalStatusCancelled              ApprovalStatus = "Cancelled"
)

// ApprovalRequest describes the action awaiting a human decision.
// Built with the builder-style With* methods, matching
// hitl/approval.rs's fluent request construction.
type ApprovalRequest struct {
	ID          ids.ID
	ActionType  ActionType
	Risk        RiskLevel
	Summary     string
	Details     map[string]string
	RequesterID string
	Notes       []string
}

func NewApprovalRequest(actionType ActionType, risk RiskLevel, summary string) *ApprovalRequest {
	return &ApprovalRequest{
		ID:         ids.New(),
		ActionType: actionType,
		Risk:       risk,
		Summary:    summary,
		Details:    make(map[string]string),
	}
}

func (r *ApprovalRequest) WithDetail(key, value string) *ApprovalRequest {
	r.Details[key] = value
	return r
}

func (r *ApprovalRequest) WithRequester(id string) *ApprovalRequest {
	r.RequesterID = id
	return r
}

func (r *ApprovalRequest) WithNote(note string) *ApprovalRequest {
	r.Notes = append(r.Notes, note)
	return r
}

// ApprovalResult is the outcome recorded once a PendingApproval is
// decided, including any human-entered modification note.
type ApprovalResult struct {
	Status       ApprovalStatus
	DecidedBy    string
	DecidedAt    time.Time
	Modification string
}

// PendingApproval tracks one ApprovalRequest's lifecycle: when it
// expires, which channels it has been announced on, and how many
// reminders have gone out.
type PendingApproval struct {
	Request          *ApprovalRequest
	Status           ApprovalStatus
	CreatedAt        time.Time
	ExpiresAt        time.Time
	NotifiedChannels []ApprovalChannel
	RemindersSent    int
	Result           *ApprovalResult
}

func (p *PendingApproval) isExpired(now time.Time) bool { return now.After(p.ExpiresAt) }

// MaxReminders bounds reminder fan-out per request, matching
// approval.rs's reminder cap so a forgotten approval doesn't spam
// every channel indefinitely.
const MaxReminders = 3

// ApprovalManager owns the HITL PendingApproval lifecycle: submit,
// notify, remind, decide, expire.
type ApprovalManager struct {
	mu      sync.Mutex
	clock   ids.Clock
	pending map[ids.ID]*PendingApproval
	timeout time.Duration
	record  func(kind, subjectID string, payload any)
}

// NewApprovalManager builds a manager whose requests expire after
// timeout unless decided first.
func NewApprovalManager(clock ids.Clock, timeout time.Duration) *ApprovalManager {
	if clock == nil {
		clock = ids.SystemClock{}
	}
	if timeout <= 0 {
		timeout = 24 * time.Hour
	}
	return &ApprovalManager{clock: clock, pending: make(map[ids.ID]*PendingApproval), timeout: timeout}
}

// SetAuditSink wires an audit-append callback invoked on every decided
// (approved/rejected/timed-out) PendingApproval; nil disables
// auditing, the default.
func (m *ApprovalManager) SetAuditSink(fn func(kind, subjectID string, payload any)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = fn
}

// Submit creates a PendingApproval for req and announces it on
// channels.
func (m *ApprovalManager) Submit(req *ApprovalRequest, channels ...ApprovalChannel) *PendingApproval {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	pa := &PendingApproval{
		Request:          req,
		Status:           ApprovalStatusPending,
		CreatedAt:        now,
		ExpiresAt:        now.Add(m.timeout),
		NotifiedChannels: append([]ApprovalChannel(nil), channels...),
	}
	m.pending[req.ID] = pa
	return pa
}

func (m *ApprovalManager) Get(id ids.ID) (*PendingApproval, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pa, ok := m.pending[id]
	return pa, ok
}

// Remind records a reminder send, capped at MaxReminders. Returns
// false once the cap is reached, so callers stop re-notifying.
func (m *ApprovalManager) Remind(id ids.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pa, ok := m.pending[id]
	if !ok {
		return false, coreerr.Newf(coreerr.KindNotFound, "approval %s not found", id)
	}
	if pa.Status != ApprovalStatusPending {
		return false, nil
	}
	if pa.RemindersSent >= MaxReminders {
		return false, nil
	}
	pa.RemindersSent++
	return true, nil
}

func (m *ApprovalManager) decide(id ids.ID, status ApprovalStatus, decidedBy, modification string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pa, ok := m.pending[id]
	if !ok {
		return coreerr.Newf(coreerr.KindNotFound, "approval %s not found", id)
	}
	if pa.Status != ApprovalStatusPending {
		return coreerr.Newf(coreerr.KindState, "approval %s already decided: %s", id, pa.Status)
	}
	now := m.clock.Now()
	if pa.isExpired(now) {
		pa.Status = ApprovalStatusTimeout
		pa.Result = &ApprovalResult{Status: ApprovalStatusTimeout, DecidedAt: now}
		if m.record != nil {
			m.record("hitl_approval", id.String(), map[string]any{"status": ApprovalStatusTimeout})
		}
		return coreerr.New(coreerr.KindTimeout, "approval window has expired")
	}
	pa.Status = status
	pa.Result = &ApprovalResult{Status: status, DecidedBy: decidedBy, DecidedAt: now, Modification: modification}
	if m.record != nil {
		m.record("hitl_approval", id.String(), map[string]any{"status": status, "decided_by": decidedBy})
	}
	return nil
}

// Approve records an unconditional approval.
func (m *ApprovalManager) Approve(id ids.ID, decidedBy string) error {
	return m.decide(id, ApprovalStatusApproved, decidedBy, "")
}

// ApproveWithModifications records an approval that carries a
// human-entered change to the proposed action.
func (m *ApprovalManager) ApproveWithModifications(id ids.ID, decidedBy, modification string) error {
	return m.decide(id, ApprovalStatusApprovedWithModifications, decidedBy, modification)
}

// Reject records a rejection.
func (m *ApprovalManager) Reject(id ids.ID, decidedBy string) error {
	return m.decide(id, ApprovalStatusRejected, decidedBy, "")
}

// Cancel withdraws a still-pending request, e.g. because the
// requesting workflow was aborted.
func (m *ApprovalManager) Cancel(id ids.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pa, ok := m.pending[id]
	if !ok {
		return coreerr.Newf(coreerr.KindNotFound, "approval %s not found", id)
	}
	if pa.Status != ApprovalStatusPending {
		return coreerr.Newf(coreerr.KindState, "approval %s already decided: %s", id, pa.Status)
	}
	pa.Status = ApprovalStatusCancelled
	pa.Result = &ApprovalResult{Status: ApprovalStatusCancelled, DecidedAt: m.clock.Now()}
	return nil
}

// ExpireOverdue transitions every still-Pending, now-expired request
// to Timeout and returns their ids.
func (m *ApprovalManager) ExpireOverdue() []ids.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	var expired []ids.ID
	for id, pa := range m.pending {
		if pa.Status == ApprovalStatusPending && pa.isExpired(now) {
			pa.Status = ApprovalStatusTimeout
			pa.Result = &ApprovalResult{Status: ApprovalStatusTimeout, DecidedAt: now}
			if m.record != nil {
				m.record("hitl_approval", id.String(), map[string]any{"status": ApprovalStatusTimeout})
			}
			expired = append(expired, id)
		}
	}
	return expired
}

// ListPending returns every request still awaiting a decision.
func (m *ApprovalManager) ListPending() []*PendingApproval {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*PendingApproval
	for _, pa := range m.pending {
		if pa.Status == ApprovalStatusPending {
			out = append(out, pa)
		}
	}
	return out
}
