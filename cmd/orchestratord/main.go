// Command orchestratord is the wiring binary for the agent
// orchestrator: it loads configuration, constructs every package's
// top-level singleton (Task Queue, Governance, Audit Store,
// Notification Router, Coordination Fabric, Persistence Store,
// Control Surface), wires them together, and runs until signaled to
// stop. Grounded on the teacher's cmd/cliaimonitor/main.go (flag
// parsing, signal.Notify(os.Interrupt, syscall.SIGTERM) graceful
// shutdown, server-goroutine-plus-error-channel startup shape);
// Captain/MCP/team-config/instance-lock wiring was not ported since it
// has no spec.md counterpart.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentcore/orchestrator/internal/audit"
	"github.com/agentcore/orchestrator/internal/config"
	"github.com/agentcore/orchestrator/internal/control"
	"github.com/agentcore/orchestrator/internal/fabric"
	"github.com/agentcore/orchestrator/internal/governance"
	"github.com/agentcore/orchestrator/internal/hooks"
	"github.com/agentcore/orchestrator/internal/ids"
	"github.com/agentcore/orchestrator/internal/logging"
	"github.com/agentcore/orchestrator/internal/notify"
	"github.com/agentcore/orchestrator/internal/persistence"
	"github.com/agentcore/orchestrator/internal/quality"
	"github.com/agentcore/orchestrator/internal/supervisor"
	"github.com/agentcore/orchestrator/internal/tasks"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/orchestrator.yaml", "configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logBase, err := logging.New(cfg.LogFilter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logBase.Sync()
	log := logBase.Named("main")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatal("failed to create data directory", zap.Error(err))
	}

	clock := ids.SystemClock{}

	store, err := persistence.NewFileStore(cfg.DataDir, logBase.Named(logging.Persistence))
	if err != nil {
		log.Fatal("failed to initialize persistence store", zap.Error(err))
	}
	_ = store // session lifecycle wiring owns Save/Load/Snapshot calls; this binary only guarantees it initializes cleanly

	bus := fabric.New(fabric.Capacities{
		PrimaryInbox:   cfg.Fabric.PrimaryInbox,
		SecondaryInbox: cfg.Fabric.SecondaryInbox,
		Broadcast:      cfg.Fabric.Broadcast,
		Monitoring:     cfg.Fabric.Monitoring,
	})

	auditStore, err := audit.Open(cfg.AuditDBPath)
	if err != nil {
		log.Fatal("failed to open audit store", zap.Error(err))
	}
	defer auditStore.Close()
	auditLog := logBase.Named(logging.Audit)
	recordAudit := func(kind, subjectID string, payload any) {
		if err := auditStore.Append(audit.Kind(kind), subjectID, payload); err != nil {
			auditLog.Warn("audit append failed", zap.String("kind", kind), zap.String("subject_id", subjectID), zap.Error(err))
		}
	}

	taskQueue := tasks.NewQueue(clock)

	proposals := governance.NewProposalManager(clock)
	proposals.SetAuditSink(recordAudit)
	plans := governance.NewPlanApprovalManager(clock)
	plans.SetAuditSink(recordAudit)
	approvals := governance.NewApprovalManager(clock, 0)
	approvals.SetAuditSink(recordAudit)

	notifyLog := logBase.Named(logging.Notify)
	notifier := notify.NewRouter(notifyLog)
	notifier.Register(notify.NewDesktopNotifier("agentcore-orchestrator", "http://localhost"+cfg.ControlBindAddr))

	controlLog := logBase.Named(logging.Control)
	srv := control.New(cfg.ControlBindAddr, control.Deps{
		Tasks:       taskQueue,
		Proposals:   proposals,
		Plans:       plans,
		Approvals:   approvals,
		Bus:         bus,
		Quality:     quality.NewHeuristic(),
		RecordAudit: recordAudit,
		Hooks:       hooks.WithDefaults(logBase.Named(logging.Control)),
	}, controlLog)

	supervisorLog := logBase.Named(logging.Supervisor)
	provider := &queueSnapshotProvider{queue: taskQueue}
	sink := &hubDecisionSink{hub: srv.Hub(), recordAudit: recordAudit}
	loop := supervisor.New(provider, sink, clock, supervisorLog,
		supervisor.WithStandardInterval(cfg.Supervisor.Standard),
		supervisor.WithHighFrequencyInterval(cfg.Supervisor.HighFreq),
	)
	if err := loop.Start(); err != nil {
		log.Fatal("failed to start supervisor loop", zap.Error(err))
	}
	defer loop.Stop()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe()
	}()

	log.Info("orchestrator started", zap.String("control_bind_addr", cfg.ControlBindAddr))

	select {
	case err := <-serverErr:
		if err != nil {
			log.Error("control surface stopped unexpectedly", zap.Error(err))
		}
	case <-shutdown:
		log.Info("shutdown signal received")
	case <-srv.Done():
		log.Info("shutdown requested over JSON-RPC")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("control surface shutdown error", zap.Error(err))
	}
}

// queueSnapshotProvider is the minimal production SnapshotProvider:
// it reports the live Task Queue and leaves Agents/RecentCompletions
// empty until an agent registry is wired into this binary, since
// analyzers over those fields simply find nothing to act on rather
// than failing.
type queueSnapshotProvider struct {
	queue *tasks.Queue
}

func (p *queueSnapshotProvider) Snapshot(now time.Time) supervisor.Snapshot {
	return supervisor.Snapshot{Now: now, Queue: p.queue}
}

// hubDecisionSink publishes every supervisor Decision to the Control
// Surface's WebSocket Hub and appends it to the Audit Store, matching
// spec.md section 4.7's note that Decision routing past risk-tagging
// is the caller's responsibility.
type hubDecisionSink struct {
	hub         *control.Hub
	recordAudit func(kind, subjectID string, payload any)
}

func (s *hubDecisionSink) HandleDecision(d supervisor.Decision) {
	s.hub.Publish(control.EventDecision, d)
	s.recordAudit("supervisor_decision", string(d.Kind), d)
}
