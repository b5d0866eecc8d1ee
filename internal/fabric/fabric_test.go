package fabric

import (
	"encoding/json"
	"testing"

	"github.com/agentcore/orchestrator/internal/coreerr"
	"github.com/agentcore/orchestrator/internal/ids"
)

// TestBackpressure covers scenario S3 from spec.md section 8: a full
// primary inbox returns Backpressure, and draining one message frees
// capacity for exactly one more send.
func TestBackpressure(t *testing.T) {
	caps := DefaultCapacities()
	caps.PrimaryInbox = 1000
	b := New(caps)
	from, to := ids.New(), ids.New()
	if err := b.RegisterAgent(to); err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}

	for i := 0; i < 1000; i++ {
		if err := b.SendMessage(from, to, SupervisorMessage{Kind: SupervisorStatusUpdate}); err != nil {
			t.Fatalf("send %d: expected success, got %v", i, err)
		}
	}

	err := b.SendMessage(from, to, SupervisorMessage{Kind: SupervisorStatusUpdate})
	if !coreerr.Is(err, coreerr.KindBackpressure) {
		t.Fatalf("expected Backpressure on 1001st send, got %v", err)
	}

	recv, ok := b.GetReceiver(to)
	if !ok {
		t.Fatalf("expected receiver")
	}
	<-recv // drain exactly one

	if err := b.SendMessage(from, to, SupervisorMessage{Kind: SupervisorStatusUpdate}); err != nil {
		t.Fatalf("expected send to succeed after drain, got %v", err)
	}
	if err := b.SendMessage(from, to, SupervisorMessage{Kind: SupervisorStatusUpdate}); !coreerr.Is(err, coreerr.KindBackpressure) {
		t.Fatalf("expected Backpressure again after single drain is consumed, got %v", err)
	}
}

// TestSendToUnregisteredAgentIsNotFound covers the spec.md section 8
// boundary property: sending to an unregistered agent returns
// AgentNotFound, never Backpressure.
func TestSendToUnregisteredAgentIsNotFound(t *testing.T) {
	b := New(DefaultCapacities())
	err := b.SendMessage(ids.New(), ids.New(), SupervisorMessage{Kind: SupervisorStatusUpdate})
	if !coreerr.Is(err, coreerr.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

// TestPublishSucceedsWithFullMonitoringChannel covers the boundary
// property that publish_to_agent succeeds even when the best-effort
// monitoring channel is saturated.
func TestPublishSucceedsWithFullMonitoringChannel(t *testing.T) {
	caps := Capacities{PrimaryInbox: 10, SecondaryInbox: 10, Broadcast: 10, Monitoring: 1}
	b := New(caps)
	agent := ids.New()
	if err := b.RegisterAgent(agent); err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}

	if err := b.PublishToAgent(agent, AgentMessage{Kind: AgentStatusUpdate}); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	// Monitoring channel (capacity 1) is now full; a second publish
	// must still succeed on the secondary inbox.
	if err := b.PublishToAgent(agent, AgentMessage{Kind: AgentStatusUpdate}); err != nil {
		t.Fatalf("expected publish to succeed despite full monitoring channel, got %v", err)
	}
}

// TestRegisterAgentIdempotent covers the boundary property that
// re-registering an agent is a no-op success, not an error, and does
// not reset its existing channels' contents.
func TestRegisterAgentIdempotent(t *testing.T) {
	b := New(DefaultCapacities())
	agent := ids.New()
	if err := b.RegisterAgent(agent); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := b.SendMessage(ids.New(), agent, SupervisorMessage{Kind: SupervisorStatusUpdate}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := b.RegisterAgent(agent); err != nil {
		t.Fatalf("second register: %v", err)
	}
	recv, _ := b.GetReceiver(agent)
	if len(recv) != 1 {
		t.Fatalf("expected re-registration to preserve pending messages, got %d pending", len(recv))
	}
}

// TestConversionRoundTrip covers scenario S7 from spec.md section 8:
// converting AgentMessage -> SupervisorMessage -> AgentMessage
// preserves the semantic payload.
func TestConversionRoundTrip(t *testing.T) {
	reg := NewConversionRegistry()
	sessID := ids.New()
	reg.Register("agent-007", sessID, []string{"go", "rust"})

	taskID := ids.New()
	result, _ := json.Marshal(map[string]string{"status": "ok"})
	agentMsg := AgentMessage{Kind: AgentTaskCompleted, AgentID: sessID, TaskID: taskID, Result: result}

	supMsg, err := reg.ToSupervisorMessage(agentMsg)
	if err != nil {
		t.Fatalf("ToSupervisorMessage: %v", err)
	}
	if supMsg.Kind != SupervisorTaskCompleted {
		t.Fatalf("expected SupervisorTaskCompleted, got %s", supMsg.Kind)
	}
	if supMsg.AgentID != "agent-007" {
		t.Fatalf("expected supervisor id agent-007, got %s", supMsg.AgentID)
	}

	back, err := reg.ToAgentMessage(supMsg)
	if err != nil {
		t.Fatalf("ToAgentMessage: %v", err)
	}
	if back.AgentID != sessID {
		t.Fatalf("expected session id to round trip, got %s", back.AgentID)
	}
	if string(back.Result) != string(result) {
		t.Fatalf("expected payload to round trip, got %s", back.Result)
	}
}

// TestConversionRoundTripNonUUIDTaskID covers the exact scenario S7
// from spec.md section 8: a supervisor-side task_id that is not a
// valid session-side id ("t-123") must round-trip through a freshly
// minted session TaskId and come back out as "t-123", not error.
func TestConversionRoundTripNonUUIDTaskID(t *testing.T) {
	reg := NewConversionRegistry()
	sessID := ids.New()
	reg.Register("frontend-001", sessID, nil)

	output, _ := json.Marshal(map[string]any{"files": []string{"a.js"}})
	supMsg := SupervisorMessage{
		Kind:    SupervisorTaskCompleted,
		AgentID: "frontend-001",
		TaskID:  "t-123",
		Result:  TaskResult{Success: true, Output: output, Duration: 5},
	}

	agentMsg, err := reg.ToAgentMessage(supMsg)
	if err != nil {
		t.Fatalf("ToAgentMessage: %v", err)
	}
	if agentMsg.TaskID.IsNil() {
		t.Fatalf("expected a freshly minted session task id, got nil")
	}

	back, err := reg.ToSupervisorMessage(agentMsg)
	if err != nil {
		t.Fatalf("ToSupervisorMessage: %v", err)
	}
	if back.AgentID != "frontend-001" {
		t.Fatalf("expected agent id frontend-001, got %s", back.AgentID)
	}
	if back.TaskID != "t-123" {
		t.Fatalf("expected task id t-123 to round trip, got %s", back.TaskID)
	}
	if back.Kind != SupervisorTaskCompleted {
		t.Fatalf("expected SupervisorTaskCompleted, got %s", back.Kind)
	}
	if !back.Result.Success {
		t.Fatalf("expected success result to round trip")
	}
}

func TestConversionCustomPassthrough(t *testing.T) {
	reg := NewConversionRegistry()
	payload, _ := json.Marshal(map[string]any{"detail": "low coverage"})
	msg := AgentMessage{Kind: AgentCustom, CustomType: "quality-issue", CustomData: payload}

	supMsg, err := reg.ToSupervisorMessage(msg)
	if err != nil {
		t.Fatalf("ToSupervisorMessage: %v", err)
	}
	if supMsg.Kind != SupervisorQualityIssue {
		t.Fatalf("expected SupervisorQualityIssue, got %s", supMsg.Kind)
	}
	if string(supMsg.Payload) != string(payload) {
		t.Fatalf("expected payload preserved, got %s", supMsg.Payload)
	}
}

func TestConversionMissingMappingIsMappingError(t *testing.T) {
	reg := NewConversionRegistry()
	_, err := reg.ToSupervisorMessage(AgentMessage{Kind: AgentTaskCompleted, AgentID: ids.New()})
	if !coreerr.Is(err, coreerr.KindMapping) {
		t.Fatalf("expected Mapping error, got %v", err)
	}
}

func TestBroadcastAndTeamScoping(t *testing.T) {
	b := New(DefaultCapacities())
	a, c, outsider := ids.New(), ids.New(), ids.New()
	for _, id := range []ids.AgentId{a, c, outsider} {
		if err := b.RegisterAgent(id); err != nil {
			t.Fatalf("RegisterAgent: %v", err)
		}
	}
	b.AddToTeam("team-x", a)
	b.AddToTeam("team-x", c)

	if errs := b.SendToTeam(a, "team-x", SupervisorMessage{Kind: SupervisorCoordination}); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	recvC, _ := b.GetReceiver(c)
	if len(recvC) != 1 {
		t.Fatalf("expected team member c to receive message, got %d", len(recvC))
	}
	recvA, _ := b.GetReceiver(a)
	if len(recvA) != 0 {
		t.Fatalf("expected sender a to be excluded from its own team send, got %d", len(recvA))
	}
	recvOutsider, _ := b.GetReceiver(outsider)
	if len(recvOutsider) != 0 {
		t.Fatalf("expected non-member outsider to receive nothing, got %d", len(recvOutsider))
	}

	// Sending to a nonexistent team is a silent no-op.
	if errs := b.SendToTeam(a, "no-such-team", SupervisorMessage{Kind: SupervisorCoordination}); len(errs) != 0 {
		t.Fatalf("expected no errors for missing team, got %v", errs)
	}
}
