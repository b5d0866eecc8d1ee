package nats

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// agentStatusMessage is a minimal stand-in for the fabric's
// AgentMessage payload, used here only to exercise pub/sub framing
// independent of the fabric package.
type agentStatusMessage struct {
	AgentID   string    `json:"agent_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type toolCallRequest struct {
	RequestID string                 `json:"request_id"`
	Tool      string                 `json:"tool"`
	Arguments map[string]interface{} `json:"arguments"`
}

type toolCallResponse struct {
	RequestID string      `json:"request_id"`
	Success   bool        `json:"success"`
	Result    interface{} `json:"result"`
	Error     string      `json:"error,omitempty"`
}

// TestNATSIntegration_PubSub exercises the agentcore.agent.*.primary
// subject pattern internal/transport publishes to, end to end through
// an embedded server.
func TestNATSIntegration_PubSub(t *testing.T) {
	server, err := NewEmbeddedServer(EmbeddedServerConfig{Port: 14300})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Shutdown()

	subscriber, err := NewClient(server.URL())
	if err != nil {
		t.Fatalf("Failed to create subscriber client: %v", err)
	}
	defer subscriber.Close()

	publisher, err := NewClient(server.URL())
	if err != nil {
		t.Fatalf("Failed to create publisher client: %v", err)
	}
	defer publisher.Close()

	var received []agentStatusMessage
	var mu sync.Mutex

	_, err = subscriber.Subscribe("agentcore.agent.*.primary", func(msg *Message) {
		var status agentStatusMessage
		if err := json.Unmarshal(msg.Data, &status); err != nil {
			t.Errorf("Failed to unmarshal status: %v", err)
			return
		}
		mu.Lock()
		received = append(received, status)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	for i := 0; i < 3; i++ {
		status := agentStatusMessage{AgentID: "agent-001", Status: "working", Timestamp: time.Now()}
		if err := publisher.PublishJSON("agentcore.agent.agent-001.primary", status); err != nil {
			t.Errorf("Failed to publish status: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	count := len(received)
	mu.Unlock()

	if count != 3 {
		t.Errorf("Expected 3 messages, got %d", count)
	}
}

// TestNATSIntegration_ToolCallRequestReply tests tool call request-reply pattern
func TestNATSIntegration_ToolCallRequestReply(t *testing.T) {
	server, err := NewEmbeddedServer(EmbeddedServerConfig{Port: 14301})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Shutdown()

	serverClient, err := NewClient(server.URL())
	if err != nil {
		t.Fatalf("Failed to create server client: %v", err)
	}
	defer serverClient.Close()

	agentClient, err := NewClient(server.URL())
	if err != nil {
		t.Fatalf("Failed to create agent client: %v", err)
	}
	defer agentClient.Close()

	const subjectToolCall = "agentcore.tools.call"

	_, err = serverClient.Subscribe(subjectToolCall, func(msg *Message) {
		var req toolCallRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return
		}

		resp := toolCallResponse{
			RequestID: req.RequestID,
			Success:   true,
			Result: map[string]interface{}{
				"status":  "ok",
				"message": "Tool executed successfully",
			},
		}

		if msg.Reply != "" {
			serverClient.PublishJSON(msg.Reply, resp)
		}
	})
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	req := toolCallRequest{
		RequestID: "req-001",
		Tool:      "report_status",
		Arguments: map[string]interface{}{
			"status": "working",
			"task":   "testing NATS",
		},
	}

	var resp toolCallResponse
	err = agentClient.RequestJSON(subjectToolCall, req, &resp, 2*time.Second)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	if !resp.Success {
		t.Errorf("Expected success, got failure: %s", resp.Error)
	}
	if resp.RequestID != "req-001" {
		t.Errorf("Request ID mismatch: got %s", resp.RequestID)
	}
}

// TestNATSIntegration_MultipleAgents tests multiple agents publishing
// status concurrently over distinct primary-inbox subjects.
func TestNATSIntegration_MultipleAgents(t *testing.T) {
	server, err := NewEmbeddedServer(EmbeddedServerConfig{Port: 14302})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Shutdown()

	monitor, err := NewClient(server.URL())
	if err != nil {
		t.Fatalf("Failed to create monitor client: %v", err)
	}
	defer monitor.Close()

	agentMessages := make(map[string]int)
	var mu sync.Mutex

	_, err = monitor.Subscribe("agentcore.agent.*.primary", func(msg *Message) {
		var status agentStatusMessage
		if err := json.Unmarshal(msg.Data, &status); err != nil {
			return
		}
		mu.Lock()
		agentMessages[status.AgentID]++
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	var wg sync.WaitGroup
	agentCount := 5
	messagesPerAgent := 10

	for i := 0; i < agentCount; i++ {
		wg.Add(1)
		go func(agentNum int) {
			defer wg.Done()

			client, err := NewClient(server.URL())
			if err != nil {
				t.Errorf("Failed to create agent %d client: %v", agentNum, err)
				return
			}
			defer client.Close()

			agentID := "agent-" + string(rune('A'+agentNum))
			subject := "agentcore.agent." + agentID + ".primary"

			for j := 0; j < messagesPerAgent; j++ {
				status := agentStatusMessage{AgentID: agentID, Status: "working", Timestamp: time.Now()}
				client.PublishJSON(subject, status)
				time.Sleep(10 * time.Millisecond)
			}
		}(i)
	}

	wg.Wait()
	time.Sleep(500 * time.Millisecond)

	mu.Lock()
	totalMessages := 0
	for _, count := range agentMessages {
		totalMessages += count
	}
	agentsSeen := len(agentMessages)
	mu.Unlock()

	expectedTotal := agentCount * messagesPerAgent
	if totalMessages != expectedTotal {
		t.Errorf("Expected %d total messages, got %d", expectedTotal, totalMessages)
	}
	if agentsSeen != agentCount {
		t.Errorf("Expected %d agents, saw %d", agentCount, agentsSeen)
	}
}

// TestNATSIntegration_JetStreamPersistence exercises StreamManager
// against an embedded server with JetStream enabled, confirming the
// AGENTS stream actually persists messages published to the
// agentcore.agent.> wildcard.
func TestNATSIntegration_JetStreamPersistence(t *testing.T) {
	dataDir := t.TempDir()
	server, err := NewEmbeddedServer(EmbeddedServerConfig{Port: 14303, JetStream: true, DataDir: dataDir})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Shutdown()

	client, err := NewClient(server.URL())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	sm, err := NewStreamManager(client.RawConn())
	if err != nil {
		t.Fatalf("Failed to create stream manager: %v", err)
	}
	if err := sm.SetupStreams(); err != nil {
		t.Fatalf("Failed to set up streams: %v", err)
	}

	status := agentStatusMessage{AgentID: "agent-001", Status: "working", Timestamp: time.Now()}
	if err := client.PublishJSON("agentcore.agent.agent-001.primary", status); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}
	if err := client.Flush(); err != nil {
		t.Fatalf("Failed to flush: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	info, err := sm.GetStreamInfo("AGENTS")
	if err != nil {
		t.Fatalf("Failed to get stream info: %v", err)
	}
	if info.State.Msgs != 1 {
		t.Errorf("Expected 1 persisted message, got %d", info.State.Msgs)
	}
}
