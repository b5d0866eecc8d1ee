package fabric

import (
	"fmt"
	"sync"

	"github.com/agentcore/orchestrator/internal/coreerr"
	"github.com/agentcore/orchestrator/internal/ids"
)

// UnifiedAgentInfo is the joined view of an agent's supervisor-side
// string identity and its session-side uuid, per spec.md section 4.4.
type UnifiedAgentInfo struct {
	SupervisorID string
	SessionID    ids.AgentId
	Capabilities []string
}

// ConversionRegistry maintains the bijection between the supervisor's
// string agent ids and the session layer's uuid AgentId, and converts
// between the AgentMessage and SupervisorMessage vocabularies per the
// four rules in spec.md section 4.4. Grounded on the coordination
// module's id-mapping table in original_source's ai-session crate.
type ConversionRegistry struct {
	mu          sync.RWMutex
	bySupervisor map[string]*UnifiedAgentInfo
	bySession    map[ids.AgentId]*UnifiedAgentInfo

	// taskBySupervisor/taskBySession pair a supervisor-side task_id
	// string (not necessarily a valid session-side id, e.g. "t-123")
	// with the freshly minted session-side TaskId ToAgentMessage
	// allocates for it, so ToSupervisorMessage can restore the
	// original string on the way back per spec.md section 4.4.
	taskBySupervisor map[string]ids.TaskId
	taskBySession    map[ids.TaskId]string
}

func NewConversionRegistry() *ConversionRegistry {
	return &ConversionRegistry{
		bySupervisor:     make(map[string]*UnifiedAgentInfo),
		bySession:        make(map[ids.AgentId]*UnifiedAgentInfo),
		taskBySupervisor: make(map[string]ids.TaskId),
		taskBySession:    make(map[ids.TaskId]string),
	}
}

// pairTask records a supervisor task_id <-> session TaskId mapping,
// replacing any prior session-side id for the same supervisor id.
func (r *ConversionRegistry) pairTask(supervisorTaskID string, sessionTaskID ids.TaskId) {
	if old, ok := r.taskBySupervisor[supervisorTaskID]; ok {
		delete(r.taskBySession, old)
	}
	r.taskBySupervisor[supervisorTaskID] = sessionTaskID
	r.taskBySession[sessionTaskID] = supervisorTaskID
}

// Register establishes a bijective mapping; re-registering the same
// supervisorID replaces its prior session mapping.
func (r *ConversionRegistry) Register(supervisorID string, sessionID ids.AgentId, capabilities []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info := &UnifiedAgentInfo{SupervisorID: supervisorID, SessionID: sessionID, Capabilities: capabilities}
	if old, ok := r.bySupervisor[supervisorID]; ok {
		delete(r.bySession, old.SessionID)
	}
	r.bySupervisor[supervisorID] = info
	r.bySession[sessionID] = info
}

func (r *ConversionRegistry) Unregister(supervisorID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info, ok := r.bySupervisor[supervisorID]; ok {
		delete(r.bySession, info.SessionID)
		delete(r.bySupervisor, supervisorID)
	}
}

func (r *ConversionRegistry) SessionIDFor(supervisorID string) (ids.AgentId, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.bySupervisor[supervisorID]
	if !ok {
		return ids.Nil, false
	}
	return info.SessionID, true
}

func (r *ConversionRegistry) SupervisorIDFor(sessionID ids.AgentId) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.bySession[sessionID]
	if !ok {
		return "", false
	}
	return info.SupervisorID, true
}

var statusToAgentStatus = map[AgentStatus]string{
	StatusAvailable:     "available",
	StatusWorking:       "working",
	StatusWaitingReview: "waiting_for_review",
	StatusError:         "error",
	StatusShuttingDown:  "shutting_down",
}

var agentStatusToStatus = func() map[string]AgentStatus {
	m := make(map[string]AgentStatus, len(statusToAgentStatus))
	for k, v := range statusToAgentStatus {
		m[v] = k
	}
	return m
}()

var priorityToSupervisor = map[Priority]SupervisorPriority{
	PriorityLow:      SupervisorPriorityLow,
	PriorityNormal:   SupervisorPriorityMedium,
	PriorityHigh:     SupervisorPriorityHigh,
	PriorityCritical: SupervisorPriorityCritical,
}

var supervisorToPriority = map[SupervisorPriority]Priority{
	SupervisorPriorityLow:      PriorityLow,
	SupervisorPriorityMedium:   PriorityNormal,
	SupervisorPriorityHigh:     PriorityHigh,
	SupervisorPriorityCritical: PriorityCritical,
}

// ToSupervisorMessage converts an AgentMessage into its SupervisorMessage
// counterpart per spec.md section 4.4's four rules:
//   TaskCompleted   -> SupervisorTaskCompleted (agent id mapped to string)
//   StatusUpdate    -> SupervisorStatusUpdate  (status vocabulary mapped)
//   HelpRequest     -> SupervisorRequestAssistance (priority vocabulary mapped)
//   Custom          -> passthrough keyed by CustomType: "quality-issue" ->
//                       QualityIssue, "inter-agent-message" ->
//                       InterAgentMessage, "coordination" and
//                       "ccswarm-message" -> Coordination; CustomData is
//                       copied verbatim into Payload. No tag inside the
//                       payload is read, so a "ccswarm-message" always
//                       comes back as Coordination.
// Any other AgentMessageKind is a KindMapping error: there is no
// supervisor-side counterpart.
func (r *ConversionRegistry) ToSupervisorMessage(msg AgentMessage) (SupervisorMessage, error) {
	switch msg.Kind {
	case AgentTaskCompleted:
		supID, ok := r.SupervisorIDFor(msg.AgentID)
		if !ok {
			return SupervisorMessage{}, coreerr.Newf(coreerr.KindMapping, "no supervisor id mapped for agent %s", msg.AgentID)
		}
		taskID := msg.TaskID.String()
		r.mu.RLock()
		if supTaskID, ok := r.taskBySession[msg.TaskID]; ok {
			taskID = supTaskID
		}
		r.mu.RUnlock()
		return SupervisorMessage{
			Kind:    SupervisorTaskCompleted,
			AgentID: supID,
			TaskID:  taskID,
			Result: TaskResult{
				Success: msg.Result != nil,
				Output:  msg.Result,
			},
		}, nil

	case AgentStatusUpdate:
		supID, ok := r.SupervisorIDFor(msg.AgentID)
		if !ok {
			return SupervisorMessage{}, coreerr.Newf(coreerr.KindMapping, "no supervisor id mapped for agent %s", msg.AgentID)
		}
		status, ok := agentStatusToStatus[msg.Status]
		if !ok {
			return SupervisorMessage{}, coreerr.Newf(coreerr.KindMapping, "unrecognized session status %q", msg.Status)
		}
		return SupervisorMessage{Kind: SupervisorStatusUpdate, AgentID: supID, Status: status, Metrics: msg.Metrics}, nil

	case AgentHelpRequest:
		supID, ok := r.SupervisorIDFor(msg.AgentID)
		if !ok {
			return SupervisorMessage{}, coreerr.Newf(coreerr.KindMapping, "no supervisor id mapped for agent %s", msg.AgentID)
		}
		prio, ok := priorityToSupervisor[msg.Priority]
		if !ok {
			prio = SupervisorPriorityMedium
		}
		return SupervisorMessage{Kind: SupervisorRequestAssistance, AgentID: supID, Reason: msg.Message, Priority: prio}, nil

	case AgentCustom:
		kind, err := customTypeToSupervisorKind(msg.CustomType)
		if err != nil {
			return SupervisorMessage{}, err
		}
		return SupervisorMessage{Kind: kind, Payload: msg.CustomData}, nil

	default:
		return SupervisorMessage{}, coreerr.Newf(coreerr.KindMapping, "agent message kind %q has no supervisor counterpart", msg.Kind)
	}
}

func customTypeToSupervisorKind(customType string) (SupervisorMessageKind, error) {
	switch customType {
	case "quality-issue":
		return SupervisorQualityIssue, nil
	case "inter-agent-message":
		return SupervisorInterAgentMessage, nil
	case "coordination", "ccswarm-message":
		return SupervisorCoordination, nil
	default:
		return "", coreerr.Newf(coreerr.KindMapping, "unrecognized custom message type %q", customType)
	}
}

// ToAgentMessage is the reverse direction, used when the supervisor
// dispatches work down to a session-backed agent.
func (r *ConversionRegistry) ToAgentMessage(msg SupervisorMessage) (AgentMessage, error) {
	switch msg.Kind {
	case SupervisorTaskCompleted:
		sessID, ok := r.SessionIDFor(msg.AgentID)
		if !ok {
			return AgentMessage{}, coreerr.Newf(coreerr.KindMapping, "no session id mapped for supervisor agent %q", msg.AgentID)
		}
		taskID, err := ids.Parse(msg.TaskID)
		if err != nil {
			// Not a valid session-side id (e.g. "t-123"): mint a fresh
			// one and record the pairing so the reverse conversion
			// restores msg.TaskID instead of the minted uuid.
			r.mu.Lock()
			if existing, ok := r.taskBySupervisor[msg.TaskID]; ok {
				taskID = existing
			} else {
				taskID = ids.New()
				r.pairTask(msg.TaskID, taskID)
			}
			r.mu.Unlock()
		}
		return AgentMessage{Kind: AgentTaskCompleted, AgentID: sessID, TaskID: taskID, Result: msg.Result.Output}, nil

	case SupervisorStatusUpdate:
		sessID, ok := r.SessionIDFor(msg.AgentID)
		if !ok {
			return AgentMessage{}, coreerr.Newf(coreerr.KindMapping, "no session id mapped for supervisor agent %q", msg.AgentID)
		}
		status, ok := statusToAgentStatus[msg.Status]
		if !ok {
			return AgentMessage{}, coreerr.Newf(coreerr.KindMapping, "unrecognized supervisor status %q", msg.Status)
		}
		return AgentMessage{Kind: AgentStatusUpdate, AgentID: sessID, Status: status, Metrics: msg.Metrics}, nil

	case SupervisorRequestAssistance:
		sessID, ok := r.SessionIDFor(msg.AgentID)
		if !ok {
			return AgentMessage{}, coreerr.Newf(coreerr.KindMapping, "no session id mapped for supervisor agent %q", msg.AgentID)
		}
		prio, ok := supervisorToPriority[msg.Priority]
		if !ok {
			prio = PriorityNormal
		}
		return AgentMessage{Kind: AgentHelpRequest, AgentID: sessID, Message: msg.Reason, Priority: prio}, nil

	case SupervisorQualityIssue:
		return AgentMessage{Kind: AgentCustom, CustomType: "quality-issue", CustomData: msg.Payload}, nil
	case SupervisorInterAgentMessage:
		return AgentMessage{Kind: AgentCustom, CustomType: "inter-agent-message", CustomData: msg.Payload}, nil
	case SupervisorCoordination:
		return AgentMessage{Kind: AgentCustom, CustomType: "coordination", CustomData: msg.Payload}, nil

	default:
		return AgentMessage{}, coreerr.Newf(coreerr.KindMapping, "supervisor message kind %q has no agent counterpart", msg.Kind)
	}
}

func (i UnifiedAgentInfo) String() string {
	return fmt.Sprintf("%s<->%s", i.SupervisorID, i.SessionID)
}
