package control

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/agentcore/orchestrator/internal/governance"
	"github.com/agentcore/orchestrator/internal/hooks"
	"github.com/agentcore/orchestrator/internal/ids"
	"github.com/agentcore/orchestrator/internal/quality"
	"github.com/agentcore/orchestrator/internal/tasks"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func pathID(r *http.Request) (ids.ID, error) {
	return ids.Parse(mux.Vars(r)["id"])
}

// --- tasks ---

type createTaskRequest struct {
	Description string         `json:"description"`
	Priority    tasks.Priority `json:"priority"`
	Type        tasks.Type     `json:"type"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tasks == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "task queue not configured"})
		return
	}
	if status := r.URL.Query().Get("status"); status != "" {
		writeJSON(w, http.StatusOK, s.deps.Tasks.GetByStatus(tasks.Status(status)))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Tasks.All())
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tasks == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "task queue not configured"})
		return
	}
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	t := tasks.New(ids.SystemClock{}, req.Description, req.Priority, req.Type)
	if err := s.deps.Tasks.Add(t); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.hub.Publish(EventTaskUpdate, t)
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	t := s.deps.Tasks.GetByID(ids.TaskId(id))
	if t == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleClaimTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID string `json:"agent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	t, ok := s.deps.Tasks.Claim(req.AgentID, nil)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no claimable task"})
		return
	}

	if s.deps.Hooks != nil {
		hctx := hooks.NewContext(req.AgentID).WithTask(t.ID.String())
		result := s.deps.Hooks.RunPreExecution(context.Background(), hooks.PreExecutionInput{
			TaskDescription: t.Description,
			TaskType:        string(t.Type),
			Priority:        t.Priority.String(),
		}, hctx)
		if !result.ShouldContinue() {
			s.deps.Tasks.MarkFailed(t.ID, "blocked by pre-execution hook: "+result.Reason)
			s.hub.Publish(EventTaskUpdate, map[string]string{"id": t.ID.String(), "status": "failed"})
			writeJSON(w, http.StatusConflict, map[string]string{"error": "claim blocked by hook", "reason": result.Reason})
			return
		}
	}

	s.hub.Publish(EventTaskUpdate, t)
	writeJSON(w, http.StatusOK, t)
}

type completeTaskRequest struct {
	Output      string  `json:"output"`
	DurationSec float64 `json:"duration_seconds"`
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req completeTaskRequest
	json.NewDecoder(r.Body).Decode(&req)

	if err := s.deps.Tasks.MarkComplete(ids.TaskId(id)); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.hub.Publish(EventTaskUpdate, map[string]string{"id": id.String(), "status": "completed"})

	if s.deps.Hooks != nil {
		completed := s.deps.Tasks.GetByID(ids.TaskId(id))
		hctx := hooks.NewContext(completed.AssignedTo).WithTask(id.String())
		s.deps.Hooks.RunPostExecution(context.Background(), hooks.PostExecutionInput{
			TaskDescription: completed.Description,
			Success:         true,
			Output:          map[string]any{"text": req.Output},
		}, hctx)
	}

	response := map[string]any{"status": "completed"}
	if s.deps.Quality != nil {
		response["quality"] = s.evaluateCompletedTask(ids.TaskId(id), req)
	}
	writeJSON(w, http.StatusOK, response)
}

// evaluateCompletedTask runs the configured Quality Evaluator against a
// just-completed task's reported output and, when the result falls
// below standards, enqueues a Remediation task per spec.md section 4.8.
// Evaluation failures and audit writes are logged-and-swallowed rather
// than failing the completion request, since quality scoring is a
// best-effort side effect of completion, not a precondition for it.
func (s *Server) evaluateCompletedTask(id ids.TaskId, req completeTaskRequest) quality.Result {
	parent := s.deps.Tasks.GetByID(id)
	result, err := s.deps.Quality.Evaluate(parent, quality.TaskResult{
		Success:  true,
		Output:   req.Output,
		Duration: req.DurationSec,
	}, "", "")
	if err != nil {
		s.log.Warn("quality evaluation failed", zap.String("task_id", id.String()), zap.Error(err))
		return quality.Result{}
	}

	if s.deps.RecordAudit != nil {
		s.deps.RecordAudit("quality_evaluation", id.String(), result)
	}

	if !result.PassesStandards && parent != nil {
		remediation := tasks.NewRemediation(ids.SystemClock{}, parent, quality.ToQualityIssues(result.Issues, result.OverallScore))
		if err := s.deps.Tasks.Add(remediation); err != nil {
			s.log.Warn("failed to enqueue remediation task", zap.String("parent_task_id", id.String()), zap.Error(err))
		} else {
			s.hub.Publish(EventTaskUpdate, remediation)
		}
	}
	return result
}

func (s *Server) handleFailTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	json.NewDecoder(r.Body).Decode(&req)
	failed := s.deps.Tasks.GetByID(ids.TaskId(id))
	if err := s.deps.Tasks.MarkFailed(ids.TaskId(id), req.Reason); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if s.deps.Hooks != nil && failed != nil {
		hctx := hooks.NewContext(failed.AssignedTo).WithTask(id.String())
		s.deps.Hooks.RunOnError(context.Background(), hooks.OnErrorInput{
			ErrorMessage:  req.Reason,
			IsRecoverable: false,
		}, hctx)
	}
	s.hub.Publish(EventTaskUpdate, map[string]string{"id": id.String(), "status": "failed"})
	writeJSON(w, http.StatusOK, map[string]string{"status": "failed"})
}

// --- proposals ---

func (s *Server) handleListProposals(w http.ResponseWriter, r *http.Request) {
	if s.deps.Proposals == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "governance not configured"})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Proposals.ListActive())
}

func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, ok := s.deps.Proposals.Get(ids.ProposalId(id))
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleVoteProposal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var vote governance.Vote
	if err := json.NewDecoder(r.Body).Decode(&vote); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.deps.Proposals.Vote(ids.ProposalId(id), vote); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.hub.Publish(EventProposalUpdate, map[string]string{"id": id.String()})
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// --- plans ---

func (s *Server) handlePendingPlans(w http.ResponseWriter, r *http.Request) {
	if s.deps.Plans == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "governance not configured"})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Plans.Pending())
}

func (s *Server) handleApprovePlan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		DecidedBy string `json:"decided_by"`
	}
	json.NewDecoder(r.Body).Decode(&req)
	if err := s.deps.Plans.Approve(ids.ExecutionId(id), req.DecidedBy); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.hub.Publish(EventDecision, map[string]string{"plan_id": id.String(), "decision": "approved"})
	writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

func (s *Server) handleRejectPlan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		DecidedBy string `json:"decided_by"`
		Note      string `json:"note"`
	}
	json.NewDecoder(r.Body).Decode(&req)
	if err := s.deps.Plans.Reject(ids.ExecutionId(id), req.DecidedBy, req.Note); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.hub.Publish(EventDecision, map[string]string{"plan_id": id.String(), "decision": "rejected"})
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

// --- HITL approvals ---

func (s *Server) handlePendingApprovals(w http.ResponseWriter, r *http.Request) {
	if s.deps.Approvals == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "governance not configured"})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Approvals.ListPending())
}

func (s *Server) handleApproveRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		DecidedBy string `json:"decided_by"`
	}
	json.NewDecoder(r.Body).Decode(&req)
	if err := s.deps.Approvals.Approve(id, req.DecidedBy); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.hub.Publish(EventApprovalUpdate, map[string]string{"id": id.String(), "decision": "approved"})
	writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

func (s *Server) handleRejectRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		DecidedBy string `json:"decided_by"`
	}
	json.NewDecoder(r.Body).Decode(&req)
	if err := s.deps.Approvals.Reject(id, req.DecidedBy); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.hub.Publish(EventApprovalUpdate, map[string]string{"id": id.String(), "decision": "rejected"})
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}
