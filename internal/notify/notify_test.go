package notify

import (
	"errors"
	"testing"
	"time"

	"github.com/agentcore/orchestrator/internal/governance"
	"github.com/agentcore/orchestrator/internal/ids"
)

type fakeNotifier struct {
	channel governance.ApprovalChannel
	calls   []Event
	err     error
}

func (f *fakeNotifier) Channel() governance.ApprovalChannel { return f.channel }

func (f *fakeNotifier) Notify(event Event) error {
	f.calls = append(f.calls, event)
	return f.err
}

func TestRouterDeliversToRegisteredChannel(t *testing.T) {
	r := NewRouter(nil)
	slack := &fakeNotifier{channel: governance.ChannelSlack}
	r.Register(slack)

	event := Event{ApprovalID: ids.New(), Channel: governance.ChannelSlack, Summary: "deploy needs sign-off", SentAt: time.Now()}
	if err := r.Route(event); err != nil {
		t.Fatalf("Route: %v", err)
	}
	if len(slack.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(slack.calls))
	}
	if slack.calls[0].Summary != "deploy needs sign-off" {
		t.Fatalf("unexpected summary: %s", slack.calls[0].Summary)
	}
}

func TestRouterNoOpsForUnregisteredChannel(t *testing.T) {
	r := NewRouter(nil)
	event := Event{ApprovalID: ids.New(), Channel: governance.ChannelEmail, Summary: "unused"}
	if err := r.Route(event); err != nil {
		t.Fatalf("Route should no-op without error, got %v", err)
	}
}

func TestRouterPropagatesNotifierError(t *testing.T) {
	r := NewRouter(nil)
	broken := &fakeNotifier{channel: governance.ChannelWebhook, err: errors.New("endpoint unreachable")}
	r.Register(broken)

	event := Event{ApprovalID: ids.New(), Channel: governance.ChannelWebhook, Summary: "x"}
	if err := r.Route(event); err == nil {
		t.Fatal("expected error to propagate from Notify")
	}
}

func TestDesktopNotifierReportsPlatformSupport(t *testing.T) {
	d := NewDesktopNotifier("", "")
	if d.Channel() != governance.ChannelDesktop {
		t.Fatalf("unexpected channel: %s", d.Channel())
	}
	// IsSupported just needs to answer without panicking; actual toast
	// delivery is only exercised on Windows.
	_ = d.IsSupported()
}
