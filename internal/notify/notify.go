// Package notify implements Notification Dispatch (spec.md section
// 4.9.1): delivery of PendingApproval reminders to the channels named
// on the ApprovalRequest. Grounded on the teacher's internal/notifications
// package (ToastNotifier/TerminalNotifier/BannerNotifier, Router/
// NotificationChannel fan-out), generalized from "supervisor needs
// input" dashboard alerts to governance.NotificationEvent delivery.
package notify

import (
	"time"

	"github.com/agentcore/orchestrator/internal/governance"
	"github.com/agentcore/orchestrator/internal/ids"
)

// Event is the payload a Notifier delivers, matching spec.md's
// NotificationEvent.
type Event struct {
	ApprovalID ids.ID
	Channel    governance.ApprovalChannel
	Summary    string
	SentAt     time.Time
}

// Notifier delivers a single notification event to its channel.
type Notifier interface {
	Notify(event Event) error
	Channel() governance.ApprovalChannel
}
