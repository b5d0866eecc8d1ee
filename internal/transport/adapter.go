package transport

import (
	"encoding/json"

	natsclient "github.com/agentcore/orchestrator/internal/nats"

	"github.com/agentcore/orchestrator/internal/coreerr"
	"github.com/agentcore/orchestrator/internal/fabric"
	"github.com/agentcore/orchestrator/internal/ids"
	"go.uber.org/zap"
)

// Adapter bridges a fabric.Bus-shaped API onto a NATS connection, so
// the same AgentMessage/SupervisorMessage vocabulary can cross process
// boundaries instead of staying confined to in-process channels. Its
// methods carry the same names as Bus's (RegisterAgent, SendMessage,
// PublishToAgent, Broadcast, SendToTeam), but they take no from
// argument and SendToTeam returns a single error, so Adapter and Bus do
// not satisfy one shared interface.
type Adapter struct {
	client *natsclient.Client
	log    *zap.Logger
}

// New wraps an already-connected NATS client. Build one with
// internal/nats.NewClient, optionally against an
// internal/nats.EmbeddedServer started in-process for local
// development.
func New(client *natsclient.Client, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{client: client, log: log}
}

// RegisterAgent is a no-op for the NATS transport: subjects need no
// pre-declaration. It exists so Adapter satisfies the same registration
// call shape fabric.Bus callers already use.
func (a *Adapter) RegisterAgent(ids.AgentId) error { return nil }

// SendMessage publishes msg to the agent's primary-inbox subject.
func (a *Adapter) SendMessage(to ids.AgentId, msg fabric.SupervisorMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return coreerr.Wrap(coreerr.KindIO, "marshal supervisor message", err)
	}
	if err := a.client.Publish(agentPrimarySubject(to.String()), data); err != nil {
		return coreerr.Wrap(coreerr.KindIO, "publish to agent primary inbox", err)
	}
	return nil
}

// PublishToAgent publishes msg to the agent's secondary-inbox subject
// and best-effort mirrors it to the monitoring subject. NATS itself has
// no bounded mailbox to overflow the way fabric.Bus's channel does, so
// unlike Bus.PublishToAgent there is no Backpressure case here -- a
// slow subscriber simply falls behind its own slow-consumer limit,
// which NATS enforces on the subscription, not the publish call.
func (a *Adapter) PublishToAgent(to ids.AgentId, msg fabric.AgentMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return coreerr.Wrap(coreerr.KindIO, "marshal agent message", err)
	}
	if err := a.client.Publish(agentSecondarySubject(to.String()), data); err != nil {
		return coreerr.Wrap(coreerr.KindIO, "publish to agent secondary inbox", err)
	}
	if err := a.client.Publish(SubjectMonitoring, data); err != nil {
		a.log.Warn("monitoring publish failed, continuing", zap.Error(err))
	}
	return nil
}

// Broadcast publishes msg to the shared broadcast subject.
func (a *Adapter) Broadcast(msg fabric.SupervisorMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return coreerr.Wrap(coreerr.KindIO, "marshal supervisor message", err)
	}
	if err := a.client.Publish(SubjectBroadcast, data); err != nil {
		return coreerr.Wrap(coreerr.KindIO, "publish broadcast", err)
	}
	return nil
}

// SendToTeam publishes msg to a team's shared subject; membership
// filtering (excluding the sender) is the subscriber's job here, since
// NATS subjects have no server-side notion of team membership the way
// fabric.Bus.teams does.
func (a *Adapter) SendToTeam(teamID string, msg fabric.SupervisorMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return coreerr.Wrap(coreerr.KindIO, "marshal supervisor message", err)
	}
	if err := a.client.Publish(teamSubject(teamID), data); err != nil {
		return coreerr.Wrap(coreerr.KindIO, "publish to team subject", err)
	}
	return nil
}

// SubscribeAgentPrimary delivers every SupervisorMessage routed to
// agentID's primary inbox to handler.
func (a *Adapter) SubscribeAgentPrimary(agentID ids.AgentId, handler func(fabric.SupervisorMessage)) error {
	_, err := a.client.Subscribe(agentPrimarySubject(agentID.String()), func(m *natsclient.Message) {
		var msg fabric.SupervisorMessage
		if jsonErr := json.Unmarshal(m.Data, &msg); jsonErr != nil {
			a.log.Warn("dropping malformed supervisor message", zap.Error(jsonErr))
			return
		}
		handler(msg)
	})
	if err != nil {
		return coreerr.Wrap(coreerr.KindIO, "subscribe to agent primary inbox", err)
	}
	return nil
}

// SubscribeAgentSecondary delivers every AgentMessage routed to
// agentID's secondary inbox to handler.
func (a *Adapter) SubscribeAgentSecondary(agentID ids.AgentId, handler func(fabric.AgentMessage)) error {
	_, err := a.client.Subscribe(agentSecondarySubject(agentID.String()), func(m *natsclient.Message) {
		var msg fabric.AgentMessage
		if jsonErr := json.Unmarshal(m.Data, &msg); jsonErr != nil {
			a.log.Warn("dropping malformed agent message", zap.Error(jsonErr))
			return
		}
		handler(msg)
	})
	if err != nil {
		return coreerr.Wrap(coreerr.KindIO, "subscribe to agent secondary inbox", err)
	}
	return nil
}

// SubscribeBroadcast delivers every broadcast SupervisorMessage to
// handler.
func (a *Adapter) SubscribeBroadcast(handler func(fabric.SupervisorMessage)) error {
	_, err := a.client.Subscribe(SubjectBroadcast, func(m *natsclient.Message) {
		var msg fabric.SupervisorMessage
		if jsonErr := json.Unmarshal(m.Data, &msg); jsonErr != nil {
			a.log.Warn("dropping malformed broadcast message", zap.Error(jsonErr))
			return
		}
		handler(msg)
	})
	if err != nil {
		return coreerr.Wrap(coreerr.KindIO, "subscribe to broadcast subject", err)
	}
	return nil
}

// Close tears down the underlying NATS connection.
func (a *Adapter) Close() { a.client.Close() }
