// Package control implements the Control Surface (SPEC_FULL.md section
// 4.7.1): an HTTP REST API, a WebSocket push channel, and a JSON-RPC
// 2.0 surface over the Task Queue and Governance read models. Grounded on the teacher's internal/server (mux.Router setup,
// security headers, WebSocket Hub) and internal/router (keyword-based
// query classification, generalized here into JSON-RPC method
// dispatch).
package control

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/agentcore/orchestrator/internal/fabric"
	"github.com/agentcore/orchestrator/internal/governance"
	"github.com/agentcore/orchestrator/internal/hooks"
	"github.com/agentcore/orchestrator/internal/quality"
	"github.com/agentcore/orchestrator/internal/tasks"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Deps bundles the read models the Control Surface exposes. The list
// routes (task, proposal, pending plan and pending approval lists) and
// the JSON-RPC tools answer with an error when their field is nil; the
// per-item and action routes (get, claim, complete, fail, vote,
// approve, reject) do not check for nil and need their field set. Bus
// is held but not used by any route.
type Deps struct {
	Tasks       *tasks.Queue
	Proposals   *governance.ProposalManager
	Plans       *governance.PlanApprovalManager
	Approvals   *governance.ApprovalManager
	Bus         *fabric.Bus

	// Quality scores a completed task's output and, when configured,
	// drives automatic Remediation-task synthesis from
	// handleCompleteTask. Nil skips evaluation entirely.
	Quality quality.Evaluator
	// RecordAudit appends an audit record when set; nil disables
	// audit writes from this package (e.g. in unit tests).
	RecordAudit func(kind, subjectID string, payload any)

	// Hooks gates claim/complete/fail and JSON-RPC tool calls through
	// the pre/post-execution and pre/post-tool-use pipeline. Nil skips
	// hook invocation entirely.
	Hooks *hooks.Registry
}

// Server is the HTTP/WebSocket/JSON-RPC surface over Deps.
type Server struct {
	httpServer  *http.Server
	router      *mux.Router
	hub         *Hub
	deps        Deps
	log         *zap.Logger
	upgrader    websocket.Upgrader
	startTime   time.Time
	shutdownCh  chan struct{}
	shutdownOne sync.Once
}

// New builds a Server bound to addr, not yet listening.
func New(addr string, deps Deps, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		hub:        NewHub(),
		deps:       deps,
		log:        log,
		startTime:  time.Now(),
		upgrader:   websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		shutdownCh: make(chan struct{}),
	}
	s.setupRoutes()
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	return s
}

// Done is closed once a JSON-RPC "shutdown" call has been received, so
// the wiring binary can trigger a graceful Shutdown in response.
func (s *Server) Done() <-chan struct{} { return s.shutdownCh }

// Hub exposes the push channel so other components (e.g. the
// Supervisor Loop's DecisionSink) can publish events without importing
// the whole Server.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()
	s.router.Use(securityHeaders)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)

	api.HandleFunc("/tasks", s.handleListTasks).Methods(http.MethodGet)
	api.HandleFunc("/tasks", s.handleCreateTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}", s.handleGetTask).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}/claim", s.handleClaimTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}/complete", s.handleCompleteTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}/fail", s.handleFailTask).Methods(http.MethodPost)

	api.HandleFunc("/proposals", s.handleListProposals).Methods(http.MethodGet)
	api.HandleFunc("/proposals/{id}", s.handleGetProposal).Methods(http.MethodGet)
	api.HandleFunc("/proposals/{id}/vote", s.handleVoteProposal).Methods(http.MethodPost)

	api.HandleFunc("/plans/pending", s.handlePendingPlans).Methods(http.MethodGet)
	api.HandleFunc("/plans/{id}/approve", s.handleApprovePlan).Methods(http.MethodPost)
	api.HandleFunc("/plans/{id}/reject", s.handleRejectPlan).Methods(http.MethodPost)

	api.HandleFunc("/approvals/pending", s.handlePendingApprovals).Methods(http.MethodGet)
	api.HandleFunc("/approvals/{id}/approve", s.handleApproveRequest).Methods(http.MethodPost)
	api.HandleFunc("/approvals/{id}/reject", s.handleRejectRequest).Methods(http.MethodPost)

	s.router.HandleFunc("/rpc", s.handleJSONRPC).Methods(http.MethodPost)
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ListenAndServe blocks serving HTTP until the server is shut down.
func (s *Server) ListenAndServe() error {
	go s.hub.Run()
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &wsClient{hub: s.hub, conn: conn, send: make(chan []byte, hubBufferSize)}
	s.hub.register <- client
	go client.writePump()
	go client.readPump()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(s.startTime)
	stats := map[string]any{
		"uptime_seconds":    uptime.Seconds(),
		"uptime_human":      humanize.RelTime(s.startTime, time.Now(), "", ""),
		"websocket_clients": s.hub.ClientCount(),
	}
	if s.deps.Tasks != nil {
		stats["task_count"] = s.deps.Tasks.Len()
	}
	writeJSON(w, http.StatusOK, stats)
}
