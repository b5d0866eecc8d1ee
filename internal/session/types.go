// Package session implements Session Core (spec.md section 4.1): a
// PTY-backed agent session with a status machine, a token-budgeted
// context buffer, bounded command history, a metadata map, and a
// current resource usage snapshot.
package session

import (
	"encoding/json"
	"time"

	"github.com/agentcore/orchestrator/internal/ids"
	"github.com/agentcore/orchestrator/internal/ptybackend"
)

// Status is one state of the Session Core state machine described in
// spec.md section 4.1.
type Status string

const (
	StatusInitializing Status = "Initializing"
	StatusRunning       Status = "Running"
	StatusPaused        Status = "Paused"
	StatusBackground    Status = "Background"
	StatusDetached      Status = "Detached"
	StatusTerminated    Status = "Terminated"
	StatusError         Status = "Error"
)

// IsTerminal reports whether status is an absorbing state.
func (s Status) IsTerminal() bool {
	return s == StatusTerminated || s == StatusError
}

// validTransitions mirrors the teacher's tasks.validTransitions
// pattern (internal/tasks/types.go), generalized to the Session
// status machine of spec.md section 4.1. Error(msg) is modeled as the
// single StatusError value; the message lives alongside in
// Session.errMessage.
var validTransitions = map[Status][]Status{
	StatusInitializing: {StatusRunning, StatusTerminated, StatusError},
	StatusRunning:       {StatusPaused, StatusBackground, StatusTerminated, StatusError},
	StatusPaused:        {StatusRunning, StatusTerminated, StatusError},
	StatusBackground:    {StatusRunning, StatusTerminated, StatusError},
	StatusDetached:      {StatusRunning, StatusTerminated, StatusError},
	StatusTerminated:    {},
	StatusError:         {},
}

func canTransition(from, to Status) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Role is the tagged role of a context Message.
type Role string

const (
	RoleUser      Role = "User"
	RoleAssistant Role = "Assistant"
	RoleSystem    Role = "System"
)

// Message is one immutable entry in a Session's context buffer.
type Message struct {
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	TokenCount int       `json:"token_count"`
}

// ResourceUsage is the per-session snapshot spec.md section 3 defines;
// the authoritative sampling logic lives in internal/resource, this
// is just the value Session Core carries alongside its own state.
type ResourceUsage struct {
	CPUPercent   float64   `json:"cpu_percent"`
	MemoryBytes  uint64    `json:"memory_bytes"`
	MemoryPercent float64  `json:"memory_percent"`
	ThreadCount  int       `json:"thread_count"`
	Timestamp    time.Time `json:"timestamp"`
}

// Config configures a new Session per spec.md section 4.1's create().
type Config struct {
	Shell             string
	WorkingDirectory   string
	Env               []string
	PTYSize           ptybackend.Size
	MaxTokens         int
	KeepRecentMessages int
	CompressionRatio  int
	GracePeriod       time.Duration
	AIFeatures        bool
	MaxCommandHistory int
}

// DefaultConfig returns sane defaults for the fields spec.md leaves as
// tunables (compression_ratio default 10:1, grace_period default 5s).
func DefaultConfig() Config {
	return Config{
		Shell:              "/bin/sh",
		PTYSize:            ptybackend.Size{Rows: 24, Cols: 80},
		MaxTokens:          8192,
		KeepRecentMessages: 50,
		CompressionRatio:   10,
		GracePeriod:        ptybackend.DefaultGracePeriod,
		MaxCommandHistory:  200,
	}
}

// SessionState is the persistable snapshot that Session.State builds
// and Restore reads back. Session itself holds no Persistence Store and
// does not write this snapshot anywhere.
type SessionState struct {
	ID             ids.SessionId   `json:"id"`
	Config         Config          `json:"config"`
	Status         Status          `json:"status"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	Context        []Message       `json:"context"`
	CommandHistory []string        `json:"command_history"`
	Metadata       map[string]string `json:"metadata"`
	CreatedAt      time.Time       `json:"created_at"`
	LastAccessed   time.Time       `json:"last_accessed"`
	CommandCount   int             `json:"command_count"`
	TotalTokens    int             `json:"total_tokens"`
}

func (s SessionState) marshal() ([]byte, error) {
	return json.Marshal(s)
}
