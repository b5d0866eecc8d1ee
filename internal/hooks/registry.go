package hooks

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry holds execution and tool hooks, invoking them in
// descending-priority order and short-circuiting on the first result
// that does not let the operation continue (Skip, Deny or Abort). A
// ContinueWith result counts as continuing: later hooks still run and
// its Modified payload is not returned to the caller.
type Registry struct {
	mu             sync.RWMutex
	log            *zap.Logger
	executionHooks []ExecutionHooks
	toolHooks      []ToolHooks
}

func New(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{log: log}
}

// RegisterExecutionHook adds hook and re-sorts by descending priority.
func (r *Registry) RegisterExecutionHook(hook ExecutionHooks) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executionHooks = append(r.executionHooks, hook)
	sort.SliceStable(r.executionHooks, func(i, j int) bool {
		return r.executionHooks[i].Priority() > r.executionHooks[j].Priority()
	})
}

// RegisterToolHook adds hook and re-sorts by descending priority.
func (r *Registry) RegisterToolHook(hook ToolHooks) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toolHooks = append(r.toolHooks, hook)
	sort.SliceStable(r.toolHooks, func(i, j int) bool {
		return r.toolHooks[i].Priority() > r.toolHooks[j].Priority()
	})
}

// UnregisterExecutionHook removes the hook with the given name, if any.
func (r *Registry) UnregisterExecutionHook(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executionHooks = removeByName(r.executionHooks, name, ExecutionHooks.Name)
}

// UnregisterToolHook removes the hook with the given name, if any.
func (r *Registry) UnregisterToolHook(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toolHooks = removeByName(r.toolHooks, name, ToolHooks.Name)
}

func removeByName[T any](hooks []T, name string, nameOf func(T) string) []T {
	out := hooks[:0:0]
	for _, h := range hooks {
		if nameOf(h) != name {
			out = append(out, h)
		}
	}
	return out
}

// ListExecutionHooks returns the registered execution hook names in
// invocation order.
func (r *Registry) ListExecutionHooks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.executionHooks))
	for i, h := range r.executionHooks {
		names[i] = h.Name()
	}
	return names
}

// ListToolHooks returns the registered tool hook names in invocation
// order.
func (r *Registry) ListToolHooks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.toolHooks))
	for i, h := range r.toolHooks {
		names[i] = h.Name()
	}
	return names
}

func (r *Registry) executionSnapshot() []ExecutionHooks {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ExecutionHooks, len(r.executionHooks))
	copy(out, r.executionHooks)
	return out
}

func (r *Registry) toolSnapshot() []ToolHooks {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolHooks, len(r.toolHooks))
	copy(out, r.toolHooks)
	return out
}

// RunPreExecution runs every execution hook in priority order,
// returning the first Skip, Deny or Abort result, or Continue if there
// is none (a ContinueWith result is not returned).
func (r *Registry) RunPreExecution(ctx context.Context, input PreExecutionInput, hctx Context) Result {
	for _, hook := range r.executionSnapshot() {
		result := hook.PreExecution(ctx, input, hctx)
		if !result.ShouldContinue() {
			r.log.Info("pre-execution hook blocked operation", zap.String("hook", hook.Name()))
			return result
		}
	}
	return ContinueResult
}

// RunPostExecution runs every execution hook's PostExecution step.
func (r *Registry) RunPostExecution(ctx context.Context, input PostExecutionInput, hctx Context) Result {
	for _, hook := range r.executionSnapshot() {
		result := hook.PostExecution(ctx, input, hctx)
		if !result.ShouldContinue() {
			r.log.Info("post-execution hook blocked operation", zap.String("hook", hook.Name()))
			return result
		}
	}
	return ContinueResult
}

// RunOnError runs every execution hook's error handler.
func (r *Registry) RunOnError(ctx context.Context, input OnErrorInput, hctx Context) Result {
	for _, hook := range r.executionSnapshot() {
		result := hook.OnError(ctx, input, hctx)
		if !result.ShouldContinue() {
			r.log.Info("error hook modified handling", zap.String("hook", hook.Name()))
			return result
		}
	}
	return ContinueResult
}

// RunPreToolUse runs every tool hook before a tool call.
func (r *Registry) RunPreToolUse(ctx context.Context, input PreToolUseInput, hctx Context) Result {
	for _, hook := range r.toolSnapshot() {
		result := hook.PreToolUse(ctx, input, hctx)
		if !result.ShouldContinue() {
			r.log.Info("pre-tool-use hook blocked operation",
				zap.String("hook", hook.Name()), zap.String("tool", input.ToolName))
			return result
		}
	}
	return ContinueResult
}

// RunPostToolUse runs every tool hook after a tool call.
func (r *Registry) RunPostToolUse(ctx context.Context, input PostToolUseInput, hctx Context) Result {
	for _, hook := range r.toolSnapshot() {
		result := hook.PostToolUse(ctx, input, hctx)
		if !result.ShouldContinue() {
			r.log.Info("post-tool-use hook blocked operation",
				zap.String("hook", hook.Name()), zap.String("tool", input.ToolName))
			return result
		}
	}
	return ContinueResult
}
