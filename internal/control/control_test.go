package control

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agentcore/orchestrator/internal/governance"
	"github.com/agentcore/orchestrator/internal/hooks"
	"github.com/agentcore/orchestrator/internal/ids"
	"github.com/agentcore/orchestrator/internal/quality"
	"github.com/agentcore/orchestrator/internal/tasks"

	"github.com/gorilla/websocket"
)

func testServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	clock := ids.SystemClock{}
	deps := Deps{
		Tasks:     tasks.NewQueue(clock),
		Proposals: governance.NewProposalManager(clock),
		Plans:     governance.NewPlanApprovalManager(clock),
		Approvals: governance.NewApprovalManager(clock, time.Hour),
		Quality:   quality.NewHeuristic(),
		Hooks:     hooks.WithDefaults(nil),
	}
	s := New("", deps, nil)
	go s.hub.Run()
	ts := httptest.NewServer(s.router)
	t.Cleanup(ts.Close)
	return s, ts
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := testServer(t)
	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestCreateAndListTasks(t *testing.T) {
	_, ts := testServer(t)
	body, _ := json.Marshal(map[string]any{
		"description": "fix the flaky test",
		"priority":    tasks.PriorityHigh,
		"type":        tasks.TypeBugfix,
	})
	resp, err := http.Post(ts.URL+"/api/tasks", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/tasks: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	listResp, err := http.Get(ts.URL + "/api/tasks")
	if err != nil {
		t.Fatalf("GET /api/tasks: %v", err)
	}
	defer listResp.Body.Close()
	var got []tasks.Task
	if err := json.NewDecoder(listResp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 task, got %d", len(got))
	}
	if got[0].Description != "fix the flaky test" {
		t.Fatalf("unexpected description: %s", got[0].Description)
	}
}

func TestCompleteTaskWithPoorQualityOutputSpawnsRemediation(t *testing.T) {
	_, ts := testServer(t)
	createBody, _ := json.Marshal(map[string]any{
		"description": "ship the feature",
		"priority":    tasks.PriorityMedium,
		"type":        tasks.TypeFeature,
	})
	createResp, err := http.Post(ts.URL+"/api/tasks", "application/json", bytes.NewReader(createBody))
	if err != nil {
		t.Fatalf("POST /api/tasks: %v", err)
	}
	defer createResp.Body.Close()
	var created tasks.Task
	if err := json.NewDecoder(createResp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	completeBody, _ := json.Marshal(map[string]any{"output": "panic: todo fixme still stubbed out"})
	completeResp, err := http.Post(ts.URL+"/api/tasks/"+created.ID.String()+"/complete", "application/json", bytes.NewReader(completeBody))
	if err != nil {
		t.Fatalf("POST complete: %v", err)
	}
	defer completeResp.Body.Close()
	if completeResp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", completeResp.StatusCode)
	}

	listResp, err := http.Get(ts.URL + "/api/tasks?status=pending")
	if err != nil {
		t.Fatalf("GET pending tasks: %v", err)
	}
	defer listResp.Body.Close()
	var pending []tasks.Task
	if err := json.NewDecoder(listResp.Body).Decode(&pending); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var found bool
	for _, pt := range pending {
		if pt.Type == tasks.TypeRemediation && pt.ParentTaskID != nil && *pt.ParentTaskID == created.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a remediation task for parent %s, pending = %+v", created.ID, pending)
	}
}

func TestJSONRPCToolCallBlockedByDenylist(t *testing.T) {
	_, ts := testServer(t)
	params, _ := json.Marshal(map[string]any{
		"name":      "tasks.list",
		"arguments": map[string]string{"command": "rm -rf /"},
	})
	body, _ := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: "tools/call", Params: params, ID: 1})
	resp, err := http.Post(ts.URL+"/rpc", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /rpc tools/call: %v", err)
	}
	defer resp.Body.Close()
	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rpcResp.Error == nil || rpcResp.Error.Code != rpcInvalidParams {
		t.Fatalf("expected tool call to be denied, got %+v", rpcResp.Error)
	}
}

func TestJSONRPCUnknownMethod(t *testing.T) {
	_, ts := testServer(t)
	body, _ := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: "bogus", ID: 1})
	resp, err := http.Post(ts.URL+"/rpc", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /rpc: %v", err)
	}
	defer resp.Body.Close()
	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rpcResp.Error == nil || rpcResp.Error.Code != rpcMethodNotFound {
		t.Fatalf("expected method-not-found error, got %+v", rpcResp.Error)
	}
}

func TestJSONRPCQueryClassifiesTasks(t *testing.T) {
	_, ts := testServer(t)
	params, _ := json.Marshal(map[string]string{"text": "what tasks are pending right now"})
	body, _ := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: "query", Params: params, ID: 1})
	resp, err := http.Post(ts.URL+"/rpc", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /rpc: %v", err)
	}
	defer resp.Body.Close()
	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rpcResp.Error != nil {
		t.Fatalf("unexpected error: %+v", rpcResp.Error)
	}
	resultMap, ok := rpcResp.Result.(map[string]any)
	if !ok {
		t.Fatalf("unexpected result shape: %#v", rpcResp.Result)
	}
	if resultMap["topic"] != string(QueryTopicTasks) {
		t.Fatalf("expected topic %q, got %v", QueryTopicTasks, resultMap["topic"])
	}
}

func TestWebSocketReceivesPublishedEvent(t *testing.T) {
	s, ts := testServer(t)
	wsURL := "ws" + ts.URL[len("http"):] + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	time.Sleep(50 * time.Millisecond)
	s.hub.Publish(EventTaskUpdate, map[string]string{"id": "t1"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var evt WSEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if evt.Type != EventTaskUpdate {
		t.Fatalf("unexpected event type: %s", evt.Type)
	}
}

func TestJSONRPCToolsListAndShutdown(t *testing.T) {
	s, ts := testServer(t)

	body, _ := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: "tools/list", ID: 1})
	resp, err := http.Post(ts.URL+"/rpc", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /rpc tools/list: %v", err)
	}
	resp.Body.Close()

	shutdownBody, _ := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: "shutdown", ID: 2})
	resp2, err := http.Post(ts.URL+"/rpc", "application/json", bytes.NewReader(shutdownBody))
	if err != nil {
		t.Fatalf("POST /rpc shutdown: %v", err)
	}
	resp2.Body.Close()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("Done() channel was not closed after shutdown RPC")
	}
}

func TestClassifyQueryTopics(t *testing.T) {
	cases := map[string]QueryTopic{
		"what tasks are blocked":       QueryTopicTasks,
		"any proposal awaiting a vote": QueryTopicProposals,
		"is there anything awaiting approval": QueryTopicApprovals,
		"why did the supervisor decide that":  QueryTopicSupervisor,
		"tell me a joke":               QueryTopicUnknown,
	}
	for query, want := range cases {
		if got := classifyQuery(query); got != want {
			t.Errorf("classifyQuery(%q) = %s, want %s", query, got, want)
		}
	}
}
