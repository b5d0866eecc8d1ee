package fabric

import (
	"sync"

	"github.com/agentcore/orchestrator/internal/coreerr"
	"github.com/agentcore/orchestrator/internal/ids"
)

// Capacities mirrors spec.md section 4.3's bounded channel sizes.
type Capacities struct {
	PrimaryInbox   int
	SecondaryInbox int
	Broadcast      int
	Monitoring     int
}

// DefaultCapacities returns spec.md's stated defaults: 1000/1000/5000/10000.
func DefaultCapacities() Capacities {
	return Capacities{PrimaryInbox: 1000, SecondaryInbox: 1000, Broadcast: 5000, Monitoring: 10000}
}

type agentChannels struct {
	primary   chan SupervisorMessage
	secondary chan AgentMessage
}

// Bus is the Coordination Fabric. Its channel capacities and
// try-send/Backpressure/Disconnected semantics are grounded directly
// on original_source/crates/ai-session/src/coordination/mod.rs.
type Bus struct {
	mu         sync.RWMutex
	caps       Capacities
	agents     map[ids.AgentId]*agentChannels
	closed     map[ids.AgentId]bool
	broadcast  chan SupervisorMessage
	monitoring chan AgentMessage
	teams      map[string]map[ids.AgentId]struct{}
}

// New builds a Bus with the given channel capacities.
func New(caps Capacities) *Bus {
	return &Bus{
		caps:       caps,
		agents:     make(map[ids.AgentId]*agentChannels),
		closed:     make(map[ids.AgentId]bool),
		broadcast:  make(chan SupervisorMessage, caps.Broadcast),
		monitoring: make(chan AgentMessage, caps.Monitoring),
		teams:      make(map[string]map[ids.AgentId]struct{}),
	}
}

// RegisterAgent creates the per-agent channel pair; re-registering an
// already-registered agent is a no-op success (idempotent per spec.md).
func (b *Bus) RegisterAgent(id ids.AgentId) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.agents[id]; ok {
		return nil
	}
	b.agents[id] = &agentChannels{
		primary:   make(chan SupervisorMessage, b.caps.PrimaryInbox),
		secondary: make(chan AgentMessage, b.caps.SecondaryInbox),
	}
	delete(b.closed, id)
	return nil
}

// UnregisterAgent drops the channels for id; any in-flight messages
// are discarded.
func (b *Bus) UnregisterAgent(id ids.AgentId) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.agents, id)
	b.closed[id] = true
	for _, members := range b.teams {
		delete(members, id)
	}
}

// SendMessage try-sends msg on to's primary inbox.
func (b *Bus) SendMessage(from, to ids.AgentId, msg SupervisorMessage) error {
	b.mu.RLock()
	ch, ok := b.agents[to]
	closed := b.closed[to]
	b.mu.RUnlock()

	if !ok {
		return coreerr.Newf(coreerr.KindNotFound, "agent %s is not registered", to)
	}
	if closed {
		return coreerr.Newf(coreerr.KindDisconnected, "agent %s channel is closed", to)
	}
	select {
	case ch.primary <- msg:
		return nil
	default:
		return coreerr.Newf(coreerr.KindBackpressure, "agent %s primary inbox is full", to)
	}
}

// PublishToAgent try-sends msg on id's secondary inbox and, best
// effort, on the monitoring channel (overflow there is silently
// dropped per spec.md section 4.3).
func (b *Bus) PublishToAgent(id ids.AgentId, msg AgentMessage) error {
	b.mu.RLock()
	ch, ok := b.agents[id]
	b.mu.RUnlock()

	if !ok {
		return coreerr.Newf(coreerr.KindNotFound, "agent %s is not registered", id)
	}
	select {
	case ch.secondary <- msg:
	default:
		return coreerr.Newf(coreerr.KindBackpressure, "agent %s secondary inbox is full", id)
	}
	select {
	case b.monitoring <- msg:
	default:
		// monitoring overflow is silently dropped
	}
	return nil
}

// Broadcast try-sends msg on the broadcast channel. from is not
// attached to msg (SupervisorMessage has no sender field), so every
// receiver of the shared channel, the sender included, sees msg.
func (b *Bus) Broadcast(from ids.AgentId, msg SupervisorMessage) error {
	select {
	case b.broadcast <- msg:
		return nil
	default:
		return coreerr.New(coreerr.KindBackpressure, "broadcast channel is full")
	}
}

// SubscribeAll returns a receive-only handle to the monitoring channel.
func (b *Bus) SubscribeAll() <-chan AgentMessage { return b.monitoring }

// GetReceiver returns the primary inbox receive handle for id.
func (b *Bus) GetReceiver(id ids.AgentId) (<-chan SupervisorMessage, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ch, ok := b.agents[id]
	if !ok {
		return nil, false
	}
	return ch.primary, true
}

// GetAgentReceiver returns the secondary inbox receive handle for id.
func (b *Bus) GetAgentReceiver(id ids.AgentId) (<-chan AgentMessage, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ch, ok := b.agents[id]
	if !ok {
		return nil, false
	}
	return ch.secondary, true
}

// BroadcastReceiver returns the shared broadcast channel.
func (b *Bus) BroadcastReceiver() <-chan SupervisorMessage { return b.broadcast }

// AddToTeam registers agentID as a member of teamID.
func (b *Bus) AddToTeam(teamID string, agentID ids.AgentId) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.teams[teamID] == nil {
		b.teams[teamID] = make(map[ids.AgentId]struct{})
	}
	b.teams[teamID][agentID] = struct{}{}
}

// RemoveFromTeam drops agentID from teamID's membership.
func (b *Bus) RemoveFromTeam(teamID string, agentID ids.AgentId) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if members, ok := b.teams[teamID]; ok {
		delete(members, agentID)
	}
}

// SendToTeam delivers msg to every current member of teamID except
// from. A missing team is a silent no-op per spec.md section 4.3 (and
// original_source's mailbox.rs).
func (b *Bus) SendToTeam(from ids.AgentId, teamID string, msg SupervisorMessage) []error {
	b.mu.RLock()
	members := make([]ids.AgentId, 0, len(b.teams[teamID]))
	for m := range b.teams[teamID] {
		if m != from {
			members = append(members, m)
		}
	}
	b.mu.RUnlock()

	var errs []error
	for _, m := range members {
		if err := b.SendMessage(from, m, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
