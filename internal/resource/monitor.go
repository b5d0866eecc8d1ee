// Package resource implements the Resource Monitor (spec.md section
// 4.2): per-session CPU/memory sampling, rolling history, limit
// violation counting, idle detection, and suspend/resume. The shape
// generalizes original_source/crates/ccswarm/src/resource/monitoring_trait.rs's
// MonitorableResource/UnifiedMonitor pattern into a single Go type
// specialized to sessions, since Go has no equivalent to the source's
// generic trait-object monitor for a single moving part.
package resource

import (
	"sync"
	"time"

	"github.com/agentcore/orchestrator/internal/coreerr"
	"github.com/agentcore/orchestrator/internal/ids"
	"github.com/agentcore/orchestrator/internal/session"
	"go.uber.org/zap"
)

const historyCap = 100

// Limits mirrors spec.md section 4.2's default ResourceLimits.
type Limits struct {
	MaxCPUPercent      float64
	MaxMemoryBytes     uint64
	MaxMemoryPercent   float64
	IdleTimeout        time.Duration
	IdleCPUThreshold   float64
	AutoSuspendEnabled bool
	EnforceLimits      bool
}

// DefaultLimits returns spec.md section 4.2's stated defaults
// (2 GiB / 50% / 15 min / 5.0 / auto-suspend on / enforcement off),
// which supersede the narrower 1 GB/80%-only defaults the original
// Rust source used.
func DefaultLimits() Limits {
	return Limits{
		MaxCPUPercent:      80,
		MaxMemoryBytes:     2 * 1024 * 1024 * 1024,
		MaxMemoryPercent:   50,
		IdleTimeout:        15 * time.Minute,
		IdleCPUThreshold:   5.0,
		AutoSuspendEnabled: true,
		EnforceLimits:      false,
	}
}

// EventKind enumerates the Resource Monitor's observer events.
type EventKind string

const (
	EventMonitoringStarted EventKind = "MonitoringStarted"
	EventSampled           EventKind = "Sampled"
	EventLimitViolated     EventKind = "LimitViolated"
	EventSuspended         EventKind = "Suspended"
	EventResumed           EventKind = "Resumed"
	EventMonitoringStopped EventKind = "MonitoringStopped"
)

// Event is one item on the Resource Monitor's best-effort event
// stream.
type Event struct {
	Kind      EventKind
	SessionID ids.SessionId
	At        time.Time
}

// AgentResourceState is the per-session tracked state described in
// spec.md section 3.
type AgentResourceState struct {
	SessionID       ids.SessionId
	Limits          Limits
	Current         session.ResourceUsage
	History         []session.ResourceUsage
	LimitViolations int
	IsSuspended     bool
	LastActive      time.Time
	pauser          Pauser
}

// Pauser is the minimal Session Core surface the Monitor needs to
// invoke pause() on idle-suspend, keeping this package decoupled from
// the full session.Session type.
type Pauser interface {
	Pause() error
	Resume() error
}

// EfficiencyStats is the aggregate summary returned by
// get_efficiency_stats().
type EfficiencyStats struct {
	TotalSessions    int
	SuspendedCount   int
	SuspensionRate   float64
	AverageCPU       float64
	AverageMemory    float64
	TotalViolations  int
}

// Monitor is the Resource Monitor. One Monitor instance supervises
// every registered session.
type Monitor struct {
	mu       sync.RWMutex
	states   map[ids.SessionId]*AgentResourceState
	events   chan Event
	clock    ids.Clock
	log      *zap.Logger
}

func New(clock ids.Clock, log *zap.Logger, eventBuffer int) *Monitor {
	if clock == nil {
		clock = ids.SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if eventBuffer <= 0 {
		eventBuffer = 256
	}
	return &Monitor{
		states: make(map[ids.SessionId]*AgentResourceState),
		events: make(chan Event, eventBuffer),
		clock:  clock,
		log:    log,
	}
}

// Subscribe returns the best-effort event channel. Events are sent
// without blocking: when the channel is full the new event is dropped,
// so slow subscribers never stall the Monitor.
func (m *Monitor) Subscribe() <-chan Event { return m.events }

func (m *Monitor) emit(kind EventKind, sessionID ids.SessionId) {
	select {
	case m.events <- Event{Kind: kind, SessionID: sessionID, At: m.clock.Now()}:
	default:
		// Drop silently: event stream is best-effort per spec.md.
	}
}

// StartMonitoring registers sessionID with DefaultLimits(), or with
// *overrides when it is non-nil. overrides replaces the defaults as a
// whole: its zero-valued fields stay zero.
func (m *Monitor) StartMonitoring(sessionID ids.SessionId, pauser Pauser, overrides *Limits) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limits := DefaultLimits()
	if overrides != nil {
		limits = *overrides
	}
	m.states[sessionID] = &AgentResourceState{
		SessionID:  sessionID,
		Limits:     limits,
		LastActive: m.clock.Now(),
		pauser:     pauser,
	}
	m.emit(EventMonitoringStarted, sessionID)
}

// StopMonitoring drops a session's tracked state.
func (m *Monitor) StopMonitoring(sessionID ids.SessionId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, sessionID)
	m.emit(EventMonitoringStopped, sessionID)
}

// UpdateUsage appends a sample to history (capped at 100, evicting
// the oldest) and, if enforcement is enabled and any limit is
// exceeded, increments limit_violations.
func (m *Monitor) UpdateUsage(sessionID ids.SessionId, usage session.ResourceUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[sessionID]
	if !ok {
		return coreerr.Newf(coreerr.KindNotFound, "session %s is not monitored", sessionID)
	}
	st.Current = usage
	st.History = append(st.History, usage)
	if len(st.History) > historyCap {
		st.History = st.History[len(st.History)-historyCap:]
	}
	if st.Limits.EnforceLimits && exceedsLimits(usage, st.Limits) {
		st.LimitViolations++
		m.emit(EventLimitViolated, sessionID)
	}
	m.emit(EventSampled, sessionID)
	return nil
}

func exceedsLimits(u session.ResourceUsage, l Limits) bool {
	if u.CPUPercent > l.MaxCPUPercent {
		return true
	}
	if l.MaxMemoryBytes > 0 && u.MemoryBytes > l.MaxMemoryBytes {
		return true
	}
	if u.MemoryPercent > l.MaxMemoryPercent {
		return true
	}
	return false
}

// RecordActivity advances last_active; call on any activity event
// (input sent, output observed) so idle detection resets.
func (m *Monitor) RecordActivity(sessionID ids.SessionId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.states[sessionID]; ok {
		st.LastActive = m.clock.Now()
	}
}

// CheckAndSuspendIdle suspends every eligible session: not already
// suspended, auto_suspend_enabled, idle_timeout elapsed since
// last_active, and current cpu_percent at or below idle_cpu_threshold.
// Returns the ids it suspended.
func (m *Monitor) CheckAndSuspendIdle() []ids.SessionId {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	var suspended []ids.SessionId
	for id, st := range m.states {
		if st.IsSuspended || !st.Limits.AutoSuspendEnabled {
			continue
		}
		if now.Sub(st.LastActive) < st.Limits.IdleTimeout {
			continue
		}
		if st.Current.CPUPercent > st.Limits.IdleCPUThreshold {
			continue
		}
		if st.pauser != nil {
			if err := st.pauser.Pause(); err != nil {
				m.log.Warn("failed to pause idle session", zap.String("session_id", id.String()), zap.Error(err))
				continue
			}
		}
		st.IsSuspended = true
		suspended = append(suspended, id)
		m.emit(EventSuspended, id)
	}
	return suspended
}

// Resume clears the suspended flag and resumes the underlying Session.
func (m *Monitor) Resume(sessionID ids.SessionId) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[sessionID]
	if !ok {
		return coreerr.Newf(coreerr.KindNotFound, "session %s is not monitored", sessionID)
	}
	if !st.IsSuspended {
		return nil
	}
	if st.pauser != nil {
		if err := st.pauser.Resume(); err != nil {
			return err
		}
	}
	st.IsSuspended = false
	m.emit(EventResumed, sessionID)
	return nil
}

// State returns a copy of the tracked state for sessionID.
func (m *Monitor) State(sessionID ids.SessionId) (AgentResourceState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[sessionID]
	if !ok {
		return AgentResourceState{}, false
	}
	cp := *st
	cp.History = append([]session.ResourceUsage(nil), st.History...)
	return cp, true
}

// EfficiencyStats aggregates across every monitored session.
func (m *Monitor) EfficiencyStats() EfficiencyStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := EfficiencyStats{TotalSessions: len(m.states)}
	var cpuSum, memSum float64
	samples := 0
	for _, st := range m.states {
		if st.IsSuspended {
			stats.SuspendedCount++
		}
		stats.TotalViolations += st.LimitViolations
		if len(st.History) > 0 {
			cpuSum += st.Current.CPUPercent
			memSum += st.Current.MemoryPercent
			samples++
		}
	}
	if samples > 0 {
		stats.AverageCPU = cpuSum / float64(samples)
		stats.AverageMemory = memSum / float64(samples)
	}
	if stats.TotalSessions > 0 {
		stats.SuspensionRate = float64(stats.SuspendedCount) / float64(stats.TotalSessions)
	}
	return stats
}
