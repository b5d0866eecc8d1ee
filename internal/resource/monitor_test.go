package resource

import (
	"testing"
	"time"

	"github.com/agentcore/orchestrator/internal/ids"
	"github.com/agentcore/orchestrator/internal/session"
)

type fakePauser struct {
	paused  bool
	resumed bool
}

func (p *fakePauser) Pause() error  { p.paused = true; return nil }
func (p *fakePauser) Resume() error { p.resumed = true; return nil }

func TestHistoryCappedAt100(t *testing.T) {
	clock := ids.NewFixedClock(time.Now())
	m := New(clock, nil, 0)
	id := ids.New()
	m.StartMonitoring(id, nil, nil)

	for i := 0; i < 250; i++ {
		if err := m.UpdateUsage(id, session.ResourceUsage{CPUPercent: float64(i)}); err != nil {
			t.Fatalf("UpdateUsage: %v", err)
		}
	}

	st, ok := m.State(id)
	if !ok {
		t.Fatalf("expected state to exist")
	}
	if len(st.History) != 100 {
		t.Fatalf("expected history capped at 100, got %d", len(st.History))
	}
	// Oldest entries evicted: the newest sample (249) must be last.
	if st.History[len(st.History)-1].CPUPercent != 249 {
		t.Fatalf("expected newest sample retained, got %v", st.History[len(st.History)-1].CPUPercent)
	}
}

// TestIdleSuspension covers scenario S8 from spec.md section 8.
func TestIdleSuspension(t *testing.T) {
	clock := ids.NewFixedClock(time.Now())
	m := New(clock, nil, 0)
	id := ids.New()
	pauser := &fakePauser{}

	limits := Limits{
		IdleTimeout:        10 * time.Second,
		AutoSuspendEnabled: true,
		IdleCPUThreshold:   5.0,
	}
	m.StartMonitoring(id, pauser, &limits)

	if err := m.UpdateUsage(id, session.ResourceUsage{CPUPercent: 2.0}); err != nil {
		t.Fatalf("UpdateUsage: %v", err)
	}
	clock.Advance(12 * time.Second)

	suspended := m.CheckAndSuspendIdle()
	if len(suspended) != 1 || suspended[0] != id {
		t.Fatalf("expected [%s], got %v", id, suspended)
	}
	if !pauser.paused {
		t.Fatalf("expected underlying session to be paused")
	}
	st, _ := m.State(id)
	if !st.IsSuspended {
		t.Fatalf("expected IsSuspended true")
	}

	// Second call is a no-op since it is already suspended.
	suspended = m.CheckAndSuspendIdle()
	if len(suspended) != 0 {
		t.Fatalf("expected no further suspensions, got %v", suspended)
	}
}

func TestIdleSuspensionSkipsActiveCPU(t *testing.T) {
	clock := ids.NewFixedClock(time.Now())
	m := New(clock, nil, 0)
	id := ids.New()
	limits := Limits{IdleTimeout: 10 * time.Second, AutoSuspendEnabled: true, IdleCPUThreshold: 5.0}
	m.StartMonitoring(id, nil, &limits)
	_ = m.UpdateUsage(id, session.ResourceUsage{CPUPercent: 50.0})
	clock.Advance(20 * time.Second)

	if suspended := m.CheckAndSuspendIdle(); len(suspended) != 0 {
		t.Fatalf("expected no suspension while cpu is busy, got %v", suspended)
	}
}

func TestEfficiencyStats(t *testing.T) {
	clock := ids.NewFixedClock(time.Now())
	m := New(clock, nil, 0)
	a, b := ids.New(), ids.New()
	m.StartMonitoring(a, nil, nil)
	m.StartMonitoring(b, nil, nil)
	_ = m.UpdateUsage(a, session.ResourceUsage{CPUPercent: 10})
	_ = m.UpdateUsage(b, session.ResourceUsage{CPUPercent: 20})

	limits := DefaultLimits()
	limits.AutoSuspendEnabled = true
	limits.IdleTimeout = 0
	limits.IdleCPUThreshold = 100
	m.StartMonitoring(a, nil, &limits)
	clock.Advance(time.Second)
	m.CheckAndSuspendIdle()

	stats := m.EfficiencyStats()
	if stats.TotalSessions != 2 {
		t.Fatalf("expected 2 sessions, got %d", stats.TotalSessions)
	}
	if stats.SuspensionRate != 0.5 {
		t.Fatalf("expected suspension rate 0.5, got %v", stats.SuspensionRate)
	}
}
