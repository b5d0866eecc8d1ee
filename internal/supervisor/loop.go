package supervisor

import (
	"fmt"
	"sync"
	"time"

	"github.com/agentcore/orchestrator/internal/ids"
	"go.uber.org/zap"

	cronlib "github.com/robfig/cron/v3"
)

// DefaultStandardInterval and DefaultHighFrequencyInterval are spec.md
// section 4.7's T_std/T_hi defaults.
const (
	DefaultStandardInterval      = 30 * time.Second
	DefaultHighFrequencyInterval = 15 * time.Second
)

// SnapshotProvider supplies the live state one supervisor tick reasons
// over. Production wiring reads this from the Task Queue, Coordination
// Fabric monitoring channel, and Resource Monitor; tests supply a stub.
type SnapshotProvider interface {
	Snapshot(now time.Time) Snapshot
}

// DecisionSink receives every Decision the pipeline produces. Risk >=
// High decisions are the caller's responsibility to route to HITL or
// Governance per spec.md section 4.7; this package only tags risk, it
// does not decide the escalation policy.
type DecisionSink interface {
	HandleDecision(Decision)
}

// Loop drives the two periodic analysis ticks via robfig/cron/v3,
// grounded on the scheduler pattern in
// NeboLoop-nebo/internal/agent/tools/cron.go
// (cronlib.New(cronlib.WithSeconds()) + AddFunc), generalized from
// that repo's user-defined job scheduling to the Proactive
// Supervisor's two fixed-interval analysis ticks.
type Loop struct {
	mu        sync.Mutex
	cron      *cronlib.Cron
	provider  SnapshotProvider
	sink      DecisionSink
	clock     ids.Clock
	log       *zap.Logger
	thresholds Thresholds

	standardInterval time.Duration
	highFreqInterval time.Duration

	standardEntryID cronlib.EntryID
	highFreqEntryID cronlib.EntryID

	depthHistory []int
}

type Option func(*Loop)

func WithStandardInterval(d time.Duration) Option { return func(l *Loop) { l.standardInterval = d } }
func WithHighFrequencyInterval(d time.Duration) Option {
	return func(l *Loop) { l.highFreqInterval = d }
}
func WithThresholds(t Thresholds) Option { return func(l *Loop) { l.thresholds = t } }

// New builds a Loop. It does not start ticking until Start is called.
func New(provider SnapshotProvider, sink DecisionSink, clock ids.Clock, log *zap.Logger, opts ...Option) *Loop {
	if clock == nil {
		clock = ids.SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	l := &Loop{
		cron:             cronlib.New(cronlib.WithSeconds()),
		provider:         provider,
		sink:             sink,
		clock:            clock,
		log:              log,
		thresholds:       DefaultThresholds(),
		standardInterval: DefaultStandardInterval,
		highFreqInterval: DefaultHighFrequencyInterval,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Start registers both periodic ticks and begins the cron scheduler.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	standardSpec := fmt.Sprintf("@every %s", l.standardInterval)
	highSpec := fmt.Sprintf("@every %s", l.highFreqInterval)

	var err error
	l.standardEntryID, err = l.cron.AddFunc(standardSpec, l.standardTick)
	if err != nil {
		return err
	}
	l.highFreqEntryID, err = l.cron.AddFunc(highSpec, l.highFrequencyTick)
	if err != nil {
		return err
	}
	l.cron.Start()
	return nil
}

// Stop halts the scheduler, blocking until in-flight ticks finish.
func (l *Loop) Stop() {
	ctx := l.cron.Stop()
	<-ctx.Done()
}

// standardTick runs the full analyzer pipeline and records the queue
// depth sample the Capacity analyzer needs.
func (l *Loop) standardTick() {
	now := l.clock.Now()
	snap := l.provider.Snapshot(now)

	l.mu.Lock()
	if snap.Queue != nil {
		l.depthHistory = append(l.depthHistory, snap.Queue.Len())
		if len(l.depthHistory) > l.thresholds.CapacityTickCount+8 {
			l.depthHistory = l.depthHistory[len(l.depthHistory)-(l.thresholds.CapacityTickCount+8):]
		}
	}
	snap.QueueDepthHistory = append([]int(nil), l.depthHistory...)
	th := l.thresholds
	l.mu.Unlock()

	decisions := RunAnalyzers(snap, th)
	l.dispatch(decisions)
}

// highFrequencyTick runs only the latency-sensitive idle/bottleneck
// analyzers, matching spec.md section 4.7's two-loop design.
func (l *Loop) highFrequencyTick() {
	now := l.clock.Now()
	snap := l.provider.Snapshot(now)

	l.mu.Lock()
	th := l.thresholds
	l.mu.Unlock()

	var decisions []Decision
	decisions = append(decisions, analyzeIdle(snap, th)...)
	decisions = append(decisions, analyzeBottleneck(snap, th)...)
	l.dispatch(decisions)
}

func (l *Loop) dispatch(decisions []Decision) {
	for _, d := range decisions {
		if l.sink != nil {
			l.sink.HandleDecision(d)
		}
		if d.Risk.AtLeastHigh() {
			l.log.Info("supervisor decision requires escalation", zap.String("kind", string(d.Kind)), zap.String("risk", string(d.Risk)))
		}
	}
}
