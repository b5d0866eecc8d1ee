package control

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/agentcore/orchestrator/internal/hooks"
	"github.com/agentcore/orchestrator/internal/tasks"
)

// rpcRequest is a JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id,omitempty"`
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
	ID      any       `json:"id,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	rpcParseError     = -32700
	rpcInvalidRequest = -32600
	rpcMethodNotFound = -32601
	rpcInvalidParams  = -32602
	rpcInternalError  = -32603
)

func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: rpcParseError, Message: err.Error()}})
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: rpcInvalidRequest, Message: "missing jsonrpc/method"}})
		return
	}

	result, rpcErr := s.dispatch(req.Method, req.Params)
	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) dispatch(method string, params json.RawMessage) (any, *rpcError) {
	switch method {
	case "initialize":
		return map[string]any{
			"server_name":    "agentcore-orchestrator",
			"protocolVersion": "2.0",
			"capabilities":   map[string]bool{"tools": true},
		}, nil
	case "tools/list":
		return map[string]any{"tools": toolDefs}, nil
	case "tools/call":
		var p struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &rpcError{Code: rpcInvalidParams, Message: err.Error()}
		}
		return s.callTool(p.Name, p.Arguments)
	case "shutdown":
		s.shutdownOne.Do(func() { close(s.shutdownCh) })
		return map[string]string{"status": "shutting down"}, nil
	case "query":
		var p struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &rpcError{Code: rpcInvalidParams, Message: err.Error()}
		}
		return s.handleQuery(p.Text), nil
	default:
		return s.callTool(method, params)
	}
}

// toolDefs describes the tools exposed through tools/list, mirroring
// the method names reachable directly or via tools/call.
var toolDefs = []map[string]string{
	{"name": "tasks.list", "description": "list every task in the queue"},
	{"name": "proposals.list", "description": "list proposals still open for voting"},
	{"name": "approvals.list", "description": "list HITL approvals awaiting a decision"},
}

func (s *Server) callTool(name string, rawArgs json.RawMessage) (result any, rpcErr *rpcError) {
	var args map[string]any
	json.Unmarshal(rawArgs, &args)

	if s.deps.Hooks != nil {
		hctx := hooks.NewContext("rpc")
		pre := s.deps.Hooks.RunPreToolUse(context.Background(), hooks.PreToolUseInput{ToolName: name, Arguments: args}, hctx)
		if !pre.ShouldContinue() {
			return nil, &rpcError{Code: rpcInvalidParams, Message: "tool call blocked: " + pre.Reason}
		}
		defer func() {
			s.deps.Hooks.RunPostToolUse(context.Background(), hooks.PostToolUseInput{
				ToolName: name,
				Success:  rpcErr == nil,
			}, hctx)
		}()
	}

	switch name {
	case "tasks.list":
		if s.deps.Tasks == nil {
			return nil, &rpcError{Code: rpcInternalError, Message: "task queue not configured"}
		}
		return s.deps.Tasks.All(), nil
	case "proposals.list":
		if s.deps.Proposals == nil {
			return nil, &rpcError{Code: rpcInternalError, Message: "governance not configured"}
		}
		return s.deps.Proposals.ListActive(), nil
	case "approvals.list":
		if s.deps.Approvals == nil {
			return nil, &rpcError{Code: rpcInternalError, Message: "governance not configured"}
		}
		return s.deps.Approvals.ListPending(), nil
	default:
		return nil, &rpcError{Code: rpcMethodNotFound, Message: "unknown method: " + name}
	}
}

// QueryTopic classifies a free-text "query" RPC call so the caller
// knows which read model answered it, generalized from the teacher's
// SkillRouter.ClassifyQuery keyword-pattern idiom (router.go) from
// knowledge/episode/operational/recon topics to this surface's own
// task/proposal/approval/supervisor vocabulary.
type QueryTopic string

const (
	QueryTopicTasks      QueryTopic = "tasks"
	QueryTopicProposals  QueryTopic = "proposals"
	QueryTopicApprovals  QueryTopic = "approvals"
	QueryTopicSupervisor QueryTopic = "supervisor"
	QueryTopicUnknown    QueryTopic = "unknown"
)

func classifyQuery(query string) QueryTopic {
	query = strings.ToLower(query)

	taskPatterns := []string{
		"task", "running", "status", "spawn", "claim", "assigned",
		"blocked", "pending task", "queue",
	}
	for _, p := range taskPatterns {
		if strings.Contains(query, p) {
			return QueryTopicTasks
		}
	}

	proposalPatterns := []string{
		"proposal", "vote", "consensus", "quorum", "approve the plan",
		"governance",
	}
	for _, p := range proposalPatterns {
		if strings.Contains(query, p) {
			return QueryTopicProposals
		}
	}

	approvalPatterns := []string{
		"approval", "sign off", "hitl", "needs approval", "awaiting approval",
	}
	for _, p := range approvalPatterns {
		if strings.Contains(query, p) {
			return QueryTopicApprovals
		}
	}

	supervisorPatterns := []string{
		"decision", "supervisor", "why did", "what happened", "last action",
	}
	for _, p := range supervisorPatterns {
		if strings.Contains(query, p) {
			return QueryTopicSupervisor
		}
	}

	return QueryTopicUnknown
}

type queryResult struct {
	Topic QueryTopic `json:"topic"`
	Items any        `json:"items,omitempty"`
}

func (s *Server) handleQuery(text string) queryResult {
	topic := classifyQuery(text)
	res := queryResult{Topic: topic}
	switch topic {
	case QueryTopicTasks:
		if s.deps.Tasks != nil {
			res.Items = s.deps.Tasks.GetByStatus(tasks.StatusPending)
		}
	case QueryTopicProposals:
		if s.deps.Proposals != nil {
			res.Items = s.deps.Proposals.ListActive()
		}
	case QueryTopicApprovals:
		if s.deps.Approvals != nil {
			res.Items = s.deps.Approvals.ListPending()
		}
	}
	return res
}
