package transport

import (
	"testing"
	"time"

	natsclient "github.com/agentcore/orchestrator/internal/nats"

	"github.com/agentcore/orchestrator/internal/fabric"
	"github.com/agentcore/orchestrator/internal/ids"
)

func startEmbeddedServer(t *testing.T, port int) *natsclient.EmbeddedServer {
	t.Helper()
	srv, err := natsclient.NewEmbeddedServer(natsclient.EmbeddedServerConfig{Port: port})
	if err != nil {
		t.Fatalf("NewEmbeddedServer: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(srv.Shutdown)
	return srv
}

func TestAdapterDeliversAgentMessageAcrossConnections(t *testing.T) {
	srv := startEmbeddedServer(t, 14411)

	senderConn, err := natsclient.NewClient(srv.URL())
	if err != nil {
		t.Fatalf("NewClient(sender): %v", err)
	}
	defer senderConn.Close()
	receiverConn, err := natsclient.NewClient(srv.URL())
	if err != nil {
		t.Fatalf("NewClient(receiver): %v", err)
	}
	defer receiverConn.Close()

	sender := New(senderConn, nil)
	receiver := New(receiverConn, nil)

	agentID := ids.New()
	received := make(chan fabric.AgentMessage, 1)
	if err := receiver.SubscribeAgentSecondary(agentID, func(msg fabric.AgentMessage) {
		received <- msg
	}); err != nil {
		t.Fatalf("SubscribeAgentSecondary: %v", err)
	}

	if err := sender.PublishToAgent(agentID, fabric.AgentMessage{Kind: fabric.AgentStatusUpdate, Status: "Working"}); err != nil {
		t.Fatalf("PublishToAgent: %v", err)
	}

	select {
	case msg := <-received:
		if msg.Status != "Working" {
			t.Fatalf("unexpected status: %s", msg.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestAdapterBroadcastReachesAllSubscribers(t *testing.T) {
	srv := startEmbeddedServer(t, 14412)

	pubConn, err := natsclient.NewClient(srv.URL())
	if err != nil {
		t.Fatalf("NewClient(pub): %v", err)
	}
	defer pubConn.Close()
	sub1Conn, err := natsclient.NewClient(srv.URL())
	if err != nil {
		t.Fatalf("NewClient(sub1): %v", err)
	}
	defer sub1Conn.Close()
	sub2Conn, err := natsclient.NewClient(srv.URL())
	if err != nil {
		t.Fatalf("NewClient(sub2): %v", err)
	}
	defer sub2Conn.Close()

	pub := New(pubConn, nil)
	sub1 := New(sub1Conn, nil)
	sub2 := New(sub2Conn, nil)

	got1 := make(chan fabric.SupervisorMessage, 1)
	got2 := make(chan fabric.SupervisorMessage, 1)
	if err := sub1.SubscribeBroadcast(func(m fabric.SupervisorMessage) { got1 <- m }); err != nil {
		t.Fatalf("SubscribeBroadcast(1): %v", err)
	}
	if err := sub2.SubscribeBroadcast(func(m fabric.SupervisorMessage) { got2 <- m }); err != nil {
		t.Fatalf("SubscribeBroadcast(2): %v", err)
	}

	if err := pub.Broadcast(fabric.SupervisorMessage{Kind: fabric.SupervisorCoordination, Reason: "sync"}); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}

	for _, ch := range []chan fabric.SupervisorMessage{got1, got2} {
		select {
		case m := <-ch:
			if m.Reason != "sync" {
				t.Fatalf("unexpected reason: %s", m.Reason)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for broadcast delivery")
		}
	}
}
