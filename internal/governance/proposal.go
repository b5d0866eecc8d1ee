package governance

import (
	"sync"
	"time"

	"github.com/agentcore/orchestrator/internal/coreerr"
	"github.com/agentcore/orchestrator/internal/ids"
)

// ProposalStatus mirrors sangha/proposal.rs's ProposalStatus enum.
type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "Pending"
	ProposalVoting   ProposalStatus = "Voting"
	ProposalApproved ProposalStatus = "Approved"
	ProposalRejected ProposalStatus = "Rejected"
	ProposalExpired  ProposalStatus = "Expired"
)

// Proposal is a behavioral-change request submitted to Governance.
type Proposal struct {
	ID             ids.ProposalId
	Title          string
	Description    string
	ProposalType   string
	Status         ProposalStatus
	ProposerID     string
	Votes          []Vote
	CreatedAt      time.Time
	VotingDeadline time.Time
	Quorum         float32
	Metadata       map[string]any
}

// NewProposal builds a Pending proposal whose voting window is
// votingDuration from clock.Now().
func NewProposal(clock ids.Clock, title, description, proposalType, proposerID string, votingDuration time.Duration) *Proposal {
	now := clock.Now()
	return &Proposal{
		ID:             ids.New(),
		Title:          title,
		Description:    description,
		ProposalType:   proposalType,
		Status:         ProposalPending,
		ProposerID:     proposerID,
		CreatedAt:      now,
		VotingDeadline: now.Add(votingDuration),
		Quorum:         0.5,
		Metadata:       make(map[string]any),
	}
}

func (p *Proposal) isExpired(now time.Time) bool { return now.After(p.VotingDeadline) }

// AddVote appends vote if the proposal is open and the member has not
// already voted, matching proposal.rs's add_vote exactly (voting
// status required, not expired, no duplicate member_id).
func (p *Proposal) AddVote(now time.Time, vote Vote) error {
	if p.Status != ProposalVoting {
		return coreerr.Newf(coreerr.KindState, "proposal is not in voting status: %s", p.Status)
	}
	if p.isExpired(now) {
		return coreerr.New(coreerr.KindState, "voting deadline has passed")
	}
	for _, v := range p.Votes {
		if v.MemberID == vote.MemberID {
			return coreerr.Newf(coreerr.KindValidation, "member %s has already voted", vote.MemberID)
		}
	}
	p.Votes = append(p.Votes, vote)
	return nil
}

// ProposalManager owns the Proposal lifecycle: submit, vote,
// check-and-finalize, expiry.
type ProposalManager struct {
	mu        sync.Mutex
	clock     ids.Clock
	proposals map[ids.ProposalId]*Proposal
	record    func(kind, subjectID string, payload any)
}

func NewProposalManager(clock ids.Clock) *ProposalManager {
	if clock == nil {
		clock = ids.SystemClock{}
	}
	return &ProposalManager{clock: clock, proposals: make(map[ids.ProposalId]*Proposal)}
}

// SetAuditSink wires an audit-append callback invoked after every
// recorded Vote and every proposal finalization. fn is expected to
// swallow its own errors (§7's best-effort policy for the Audit
// Store); nil disables auditing, the default.
func (m *ProposalManager) SetAuditSink(fn func(kind, subjectID string, payload any)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = fn
}

// Submit transitions proposal into Voting and stores it.
func (m *ProposalManager) Submit(p *Proposal) ids.ProposalId {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.Status = ProposalVoting
	m.proposals[p.ID] = p
	return p.ID
}

func (m *ProposalManager) Get(id ids.ProposalId) (*Proposal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proposals[id]
	return p, ok
}

// Vote records a ballot against the proposal with id.
func (m *ProposalManager) Vote(id ids.ProposalId, vote Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proposals[id]
	if !ok {
		return coreerr.Newf(coreerr.KindNotFound, "proposal %s not found", id)
	}
	if err := p.AddVote(m.clock.Now(), vote); err != nil {
		return err
	}
	if m.record != nil {
		m.record("vote", id.String(), vote)
	}
	return nil
}

// CheckAndFinalize finalizes id using SimpleMajority, matching
// proposal.rs's check_and_finalize convenience wrapper.
func (m *ProposalManager) CheckAndFinalize(id ids.ProposalId, weights map[string]float32, threshold float32) (ProposalStatus, bool) {
	return m.CheckAndFinalizeWithAlgorithm(id, weights, AlgorithmSimpleMajority, threshold, nil)
}

// CheckAndFinalizeWithAlgorithm finalizes a Voting proposal using the
// named algorithm once it is eligible: either its deadline has passed,
// or every known member has voted. Returns (status, true) when
// finalization happened this call.
func (m *ProposalManager) CheckAndFinalizeWithAlgorithm(id ids.ProposalId, weights map[string]float32, algorithm Algorithm, threshold float32, contributions map[string]float32) (ProposalStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.proposals[id]
	if !ok {
		return "", false
	}
	now := m.clock.Now()
	shouldFinalize := p.Status == ProposalVoting && (p.isExpired(now) || len(p.Votes) >= len(weights))
	if !shouldFinalize {
		return "", false
	}

	approved := Check(algorithm, p.Votes, weights, contributions, threshold)
	if approved {
		p.Status = ProposalApproved
	} else {
		p.Status = ProposalRejected
	}
	if m.record != nil {
		m.record("proposal_decision", id.String(), map[string]any{"status": p.Status, "algorithm": algorithm})
	}
	return p.Status, true
}

// ListActive returns every Pending or Voting proposal.
func (m *ProposalManager) ListActive() []*Proposal {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Proposal
	for _, p := range m.proposals {
		if p.Status == ProposalPending || p.Status == ProposalVoting {
			out = append(out, p)
		}
	}
	return out
}

// ListAll returns every tracked proposal.
func (m *ProposalManager) ListAll() []*Proposal {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Proposal, 0, len(m.proposals))
	for _, p := range m.proposals {
		out = append(out, p)
	}
	return out
}

// ExpireOverdue transitions every still-Voting, now-expired proposal
// to Expired and returns their ids.
func (m *ProposalManager) ExpireOverdue() []ids.ProposalId {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	var expired []ids.ProposalId
	for id, p := range m.proposals {
		if p.Status == ProposalVoting && p.isExpired(now) {
			p.Status = ProposalExpired
			expired = append(expired, id)
		}
	}
	return expired
}
