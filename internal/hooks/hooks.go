// Package hooks implements the pre/post execution and tool-use
// interception points (spec.md section 4.10), grounded directly on
// original_source/crates/ccswarm/src/hooks/mod.rs and registry.go.
package hooks

import (
	"context"
	"time"
)

// Result is the outcome of running a hook.
type Result struct {
	Kind   ResultKind
	Reason string
	// Modified carries a replacement payload for ContinueWith.
	Modified map[string]any
}

type ResultKind string

const (
	Continue     ResultKind = "Continue"
	ContinueWith ResultKind = "ContinueWith"
	Skip         ResultKind = "Skip"
	Deny         ResultKind = "Deny"
	Abort        ResultKind = "Abort"
)

// ShouldContinue reports whether the pipeline may proceed to the next
// hook and then to normal execution.
func (r Result) ShouldContinue() bool {
	return r.Kind == Continue || r.Kind == ContinueWith
}

func (r Result) IsDenied() bool  { return r.Kind == Deny }
func (r Result) IsAborted() bool { return r.Kind == Abort }

// ContinueResult is the zero-value passthrough result.
var ContinueResult = Result{Kind: Continue}

// Context is the ambient state passed to every hook invocation.
type Context struct {
	AgentID          string
	SessionID        string
	TaskID           string
	WorkingDirectory string
	Metadata         map[string]any
}

func NewContext(agentID string) Context {
	return Context{AgentID: agentID, Metadata: make(map[string]any)}
}

func (c Context) WithSession(id string) Context        { c.SessionID = id; return c }
func (c Context) WithTask(id string) Context           { c.TaskID = id; return c }
func (c Context) WithWorkingDirectory(d string) Context { c.WorkingDirectory = d; return c }
func (c Context) WithMetadata(key string, value any) Context {
	m := make(map[string]any, len(c.Metadata)+1)
	for k, v := range c.Metadata {
		m[k] = v
	}
	m[key] = value
	c.Metadata = m
	return c
}

// PreExecutionInput is passed to ExecutionHooks.PreExecution.
type PreExecutionInput struct {
	TaskDescription string
	TaskType        string
	Priority        string
	Details         string
}

// PostExecutionInput is passed to ExecutionHooks.PostExecution.
type PostExecutionInput struct {
	TaskDescription string
	Success         bool
	Output          map[string]any
	Error           string
	Duration        time.Duration
}

// OnErrorInput is passed to ExecutionHooks.OnError.
type OnErrorInput struct {
	ErrorMessage  string
	ErrorType     string
	IsRecoverable bool
	StackTrace    string
}

// PreToolUseInput is passed to ToolHooks.PreToolUse.
type PreToolUseInput struct {
	ToolName    string
	Arguments   map[string]any
	Description string
}

// PostToolUseInput is passed to ToolHooks.PostToolUse.
type PostToolUseInput struct {
	ToolName  string
	Arguments map[string]any
	Success   bool
	Result    map[string]any
	Error     string
	Duration  time.Duration
}

// ExecutionHooks intercepts a task's execution lifecycle.
type ExecutionHooks interface {
	PreExecution(ctx context.Context, input PreExecutionInput, hctx Context) Result
	PostExecution(ctx context.Context, input PostExecutionInput, hctx Context) Result
	OnError(ctx context.Context, input OnErrorInput, hctx Context) Result
	Name() string
	Priority() int
}

// ToolHooks intercepts tool invocations.
type ToolHooks interface {
	PreToolUse(ctx context.Context, input PreToolUseInput, hctx Context) Result
	PostToolUse(ctx context.Context, input PostToolUseInput, hctx Context) Result
	Name() string
	Priority() int
}
