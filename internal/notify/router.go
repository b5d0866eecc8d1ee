package notify

import (
	"sync"

	"github.com/agentcore/orchestrator/internal/governance"
	"go.uber.org/zap"
)

// Router dispatches Events to whichever registered Notifier matches
// the event's channel, adapted from the teacher's notifications.Router
// (fire-and-forget goroutine-per-channel Route, blocking RouteWithWait)
// generalized from an events.Event subscriber fan-out to a channel-keyed
// lookup, since a notification event here already names its one
// intended channel rather than being broadcast to every subscriber.
type Router struct {
	mu        sync.RWMutex
	notifiers map[governance.ApprovalChannel]Notifier
	log       *zap.Logger
}

// NewRouter builds an empty Router; register Notifiers with Register.
func NewRouter(log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{notifiers: make(map[governance.ApprovalChannel]Notifier), log: log}
}

// Register binds a Notifier to the channel it reports via Channel().
func (r *Router) Register(n Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifiers[n.Channel()] = n
}

// Route delivers event to its channel's Notifier. Channels with no
// registered Notifier no-op rather than error: spec.md excludes
// logging/tracing sinks as external collaborators, and an unconfigured
// Slack/Email/Webhook/Sms channel falls under the same exclusion.
func (r *Router) Route(event Event) error {
	r.mu.RLock()
	n, ok := r.notifiers[event.Channel]
	r.mu.RUnlock()
	if !ok {
		r.log.Debug("no notifier registered for channel, dropping", zap.String("channel", string(event.Channel)))
		return nil
	}
	if err := n.Notify(event); err != nil {
		r.log.Warn("notification delivery failed", zap.String("channel", string(event.Channel)), zap.Error(err))
		return err
	}
	return nil
}

// RouteAll delivers event to its channel in its own goroutine,
// matching the teacher's Route's fire-and-forget semantics.
func (r *Router) RouteAll(event Event) {
	go func() {
		_ = r.Route(event)
	}()
}
