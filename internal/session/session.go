package session

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/agentcore/orchestrator/internal/coreerr"
	"github.com/agentcore/orchestrator/internal/ids"
	"github.com/agentcore/orchestrator/internal/ptybackend"
	"go.uber.org/zap"
)

// Session is a single PTY-backed agent session. Each Session is
// exclusively owned by its creating Session Core task (spec.md
// section 3's ownership rule); the Coordination Fabric only ever
// holds an AgentId handle to it, never the Session itself.
type Session struct {
	id     ids.SessionId
	config Config
	clock  ids.Clock
	log    *zap.Logger
	backend ptybackend.Backend

	mu             sync.RWMutex
	status         Status
	errMessage     string
	child          ptybackend.Child
	createdAt      time.Time
	lastActivity   time.Time
	ctx            *contextBuffer
	commandHistory []string
	metadata       map[string]string
}

// Create builds a new Session in Initializing, validating config per
// spec.md section 4.1's create() contract.
func Create(config Config, backend ptybackend.Backend, clock ids.Clock, log *zap.Logger) (*Session, error) {
	if config.WorkingDirectory != "" {
		info, err := os.Stat(config.WorkingDirectory)
		if err != nil || !info.IsDir() {
			return nil, coreerr.Newf(coreerr.KindValidation, "working_directory %q is not an existing directory", config.WorkingDirectory)
		}
	}
	if !config.PTYSize.Valid() {
		return nil, coreerr.New(coreerr.KindValidation, "pty_size must have non-zero rows and cols")
	}
	if clock == nil {
		clock = ids.SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	now := clock.Now()
	return &Session{
		id:           ids.New(),
		config:       config,
		clock:        clock,
		log:          log,
		backend:      backend,
		status:       StatusInitializing,
		createdAt:    now,
		lastActivity: now,
		ctx:          newContextBuffer(config.MaxTokens, config.KeepRecentMessages, RatioCompressor{Ratio: config.CompressionRatio}),
		metadata:     make(map[string]string),
	}, nil
}

func (s *Session) ID() ids.SessionId { return s.id }

func (s *Session) transition(to Status, errMsg string) error {
	if !canTransition(s.status, to) {
		return coreerr.Newf(coreerr.KindState, "invalid transition from %s to %s", s.status, to)
	}
	s.status = to
	s.errMessage = errMsg
	return nil
}

// Start idempotently moves Initializing to Running by spawning the
// backend child. Calling Start again while already Running is a no-op
// success.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusRunning {
		return nil
	}
	if s.status != StatusInitializing {
		return coreerr.Newf(coreerr.KindState, "cannot start from status %s", s.status)
	}

	cmdline := []string{s.config.Shell}
	child, err := s.backend.Spawn(ctx, cmdline, s.config.WorkingDirectory, s.config.Env, s.config.PTYSize)
	if err != nil {
		_ = s.transition(StatusError, err.Error())
		return coreerr.Wrap(coreerr.KindIO, "spawn pty child", err)
	}
	s.child = child
	if err := s.transition(StatusRunning, ""); err != nil {
		return err
	}
	s.lastActivity = s.clock.Now()
	s.log.Info("session started", zap.String("session_id", s.id.String()))
	return nil
}

// SendInput writes bytes to the PTY master, per spec.md section 4.1.
func (s *Session) SendInput(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusRunning {
		return coreerr.New(coreerr.KindState, "session is not running")
	}
	if err := s.child.Write(ctx, data); err != nil {
		if coreerr.Is(err, coreerr.KindIO) {
			return coreerr.New(coreerr.KindBackpressure, "pty write buffer is full")
		}
		return err
	}
	s.lastActivity = s.clock.Now()
	s.recordCommand(string(data))
	return nil
}

func (s *Session) recordCommand(cmd string) {
	cap := s.config.MaxCommandHistory
	if cap <= 0 {
		cap = 200
	}
	s.commandHistory = append(s.commandHistory, cmd)
	if len(s.commandHistory) > cap {
		s.commandHistory = s.commandHistory[len(s.commandHistory)-cap:]
	}
}

// ReadOutput returns bytes produced since the previous call.
func (s *Session) ReadOutput(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	status := s.status
	child := s.child
	s.mu.RUnlock()

	if status == StatusTerminated || status == StatusError {
		return nil, coreerr.New(coreerr.KindState, "session is not running")
	}
	if child == nil {
		return []byte{}, nil
	}
	return child.Read(ctx)
}

// GetAIContext returns a snapshot of the context buffer.
func (s *Session) GetAIContext() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx.Snapshot()
}

// MessagesWithinLimit returns the newest messages summing to at most
// limit tokens (spec.md section 8's testable property).
func (s *Session) MessagesWithinLimit(limit int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx.WithinLimit(limit)
}

// AddMessage appends to the context, compressing if necessary.
func (s *Session) AddMessage(role Role, content string, tokenCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx.Append(Message{Role: role, Content: content, Timestamp: s.clock.Now(), TokenCount: tokenCount})
	if s.ctx.totalTokens() > s.config.MaxTokens {
		s.log.Error("context exceeded max_tokens after compression",
			zap.String("session_id", s.id.String()),
			zap.Int("total_tokens", s.ctx.totalTokens()),
			zap.Int("max_tokens", s.config.MaxTokens))
	}
}

// TotalTokens reports the current context's combined token count.
func (s *Session) TotalTokens() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx.totalTokens()
}

func (s *Session) SetMetadata(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[key] = value
}

func (s *Session) GetMetadata(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.metadata[key]
	return v, ok
}

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// Pause moves Running to Paused.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(StatusPaused, "")
}

// Resume moves Paused or Background back to Running.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(StatusRunning, "")
}

// Detach moves Running to Background without terminating the child.
func (s *Session) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(StatusBackground, "")
}

// Stop gracefully signals the child to exit, force-killing after the
// configured grace period, then transitions to Terminated.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	child := s.child
	alreadyTerminal := s.status.IsTerminal()
	s.mu.Unlock()

	if alreadyTerminal {
		return nil
	}
	if child != nil {
		_ = child.Signal(os.Interrupt)
		grace := s.config.GracePeriod
		if grace <= 0 {
			grace = ptybackend.DefaultGracePeriod
		}
		waitCtx, cancel := context.WithTimeout(ctx, grace)
		err := child.Wait(waitCtx)
		cancel()
		if err != nil && child.Alive() {
			_ = child.Kill()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(StatusTerminated, "")
}

// State builds the persistable snapshot described in spec.md section
// 4.1.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	metadata := make(map[string]string, len(s.metadata))
	for k, v := range s.metadata {
		metadata[k] = v
	}
	history := make([]string, len(s.commandHistory))
	copy(history, s.commandHistory)
	return SessionState{
		ID:             s.id,
		Config:         s.config,
		Status:         s.status,
		ErrorMessage:   s.errMessage,
		Context:        s.ctx.Snapshot(),
		CommandHistory: history,
		Metadata:       metadata,
		CreatedAt:      s.createdAt,
		LastAccessed:   s.lastActivity,
		CommandCount:   len(history),
		TotalTokens:    s.ctx.totalTokens(),
	}
}

// Restore rebuilds a Session from a persisted SessionState without
// starting its backend child; callers restart Running/Paused sessions
// into Initializing per spec.md section 4.1's restart policy, and
// never restore Terminated sessions. The in-flight input buffer is
// explicitly not restored (see SPEC_FULL.md's Open Question
// resolution).
func Restore(state SessionState, backend ptybackend.Backend, clock ids.Clock, log *zap.Logger) *Session {
	if clock == nil {
		clock = ids.SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	buf := newContextBuffer(state.Config.MaxTokens, state.Config.KeepRecentMessages, RatioCompressor{Ratio: state.Config.CompressionRatio})
	for _, m := range state.Context {
		buf.messages = append(buf.messages, m)
	}
	status := StatusInitializing
	metadata := make(map[string]string, len(state.Metadata))
	for k, v := range state.Metadata {
		metadata[k] = v
	}
	return &Session{
		id:             state.ID,
		config:         state.Config,
		clock:          clock,
		log:            log,
		backend:        backend,
		status:         status,
		createdAt:      state.CreatedAt,
		lastActivity:   state.LastAccessed,
		ctx:            buf,
		commandHistory: append([]string(nil), state.CommandHistory...),
		metadata:       metadata,
	}
}
