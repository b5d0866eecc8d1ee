package hooks

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// LoggingHook logs every lifecycle and tool-use event at Info/Warn
// level and never blocks execution.
type LoggingHook struct {
	log *zap.Logger
}

func NewLoggingHook(log *zap.Logger) *LoggingHook {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoggingHook{log: log}
}

func (h *LoggingHook) Name() string { return "logging" }
func (h *LoggingHook) Priority() int { return 0 }

func (h *LoggingHook) PreExecution(_ context.Context, input PreExecutionInput, hctx Context) Result {
	h.log.Info("task starting", zap.String("agent", hctx.AgentID), zap.String("task", input.TaskDescription))
	return ContinueResult
}

func (h *LoggingHook) PostExecution(_ context.Context, input PostExecutionInput, hctx Context) Result {
	h.log.Info("task finished",
		zap.String("agent", hctx.AgentID),
		zap.String("task", input.TaskDescription),
		zap.Bool("success", input.Success),
		zap.Duration("duration", input.Duration))
	return ContinueResult
}

func (h *LoggingHook) OnError(_ context.Context, input OnErrorInput, hctx Context) Result {
	h.log.Warn("task error",
		zap.String("agent", hctx.AgentID),
		zap.String("error_type", input.ErrorType),
		zap.Bool("recoverable", input.IsRecoverable))
	return ContinueResult
}

func (h *LoggingHook) PreToolUse(_ context.Context, input PreToolUseInput, hctx Context) Result {
	h.log.Info("tool invoked", zap.String("agent", hctx.AgentID), zap.String("tool", input.ToolName))
	return ContinueResult
}

func (h *LoggingHook) PostToolUse(_ context.Context, input PostToolUseInput, hctx Context) Result {
	h.log.Info("tool completed",
		zap.String("agent", hctx.AgentID),
		zap.String("tool", input.ToolName),
		zap.Bool("success", input.Success))
	return ContinueResult
}

// SecurityHook denies tool calls that touch a configured denylist of
// dangerous command substrings, and aborts once the same agent reports
// an unrecoverable error twice in a row.
type SecurityHook struct {
	log          *zap.Logger
	denylist     []string
	unrecoverableStreak map[string]int
}

func NewSecurityHook(log *zap.Logger, denylist ...string) *SecurityHook {
	if log == nil {
		log = zap.NewNop()
	}
	if len(denylist) == 0 {
		denylist = []string{"rm -rf /", ":(){ :|:& };:"}
	}
	return &SecurityHook{log: log, denylist: denylist, unrecoverableStreak: make(map[string]int)}
}

func (h *SecurityHook) Name() string  { return "security" }
func (h *SecurityHook) Priority() int { return 100 }

func (h *SecurityHook) PreExecution(_ context.Context, _ PreExecutionInput, _ Context) Result {
	return ContinueResult
}

func (h *SecurityHook) PostExecution(_ context.Context, _ PostExecutionInput, _ Context) Result {
	return ContinueResult
}

func (h *SecurityHook) OnError(_ context.Context, input OnErrorInput, hctx Context) Result {
	if input.IsRecoverable {
		h.unrecoverableStreak[hctx.AgentID] = 0
		return ContinueResult
	}
	h.unrecoverableStreak[hctx.AgentID]++
	if h.unrecoverableStreak[hctx.AgentID] >= 2 {
		h.log.Warn("aborting after repeated unrecoverable errors", zap.String("agent", hctx.AgentID))
		return Result{Kind: Abort, Reason: "two consecutive unrecoverable errors"}
	}
	return ContinueResult
}

func (h *SecurityHook) PreToolUse(_ context.Context, input PreToolUseInput, hctx Context) Result {
	raw, _ := input.Arguments["command"].(string)
	for _, banned := range h.denylist {
		if raw != "" && strings.Contains(raw, banned) {
			h.log.Warn("denied dangerous tool invocation",
				zap.String("agent", hctx.AgentID), zap.String("tool", input.ToolName))
			return Result{Kind: Deny, Reason: "command matches security denylist"}
		}
	}
	return ContinueResult
}

func (h *SecurityHook) PostToolUse(_ context.Context, _ PostToolUseInput, _ Context) Result {
	return ContinueResult
}

// WithDefaults builds a Registry pre-loaded with LoggingHook and
// SecurityHook, matching the teacher's default hook set.
func WithDefaults(log *zap.Logger) *Registry {
	r := New(log)
	logging := NewLoggingHook(log)
	security := NewSecurityHook(log)
	r.RegisterExecutionHook(logging)
	r.RegisterToolHook(logging)
	r.RegisterExecutionHook(security)
	r.RegisterToolHook(security)
	return r
}
