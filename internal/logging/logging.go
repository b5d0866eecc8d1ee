// Package logging builds the structured loggers every subsystem uses.
// It generalizes the bracketed-tag convention the rest of the pack's
// log.Printf calls used ("[SPAWNER]", "[EVENTS]", "[WEZTERM]") into
// named zap loggers with a "component" field, so the log-filter
// environment variable controls verbosity module-wide instead of
// per-call-site string tags.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Names of the per-subsystem loggers handed out by New.
const (
	Session      = "session"
	Resource     = "resource"
	Fabric       = "fabric"
	Tasks        = "tasks"
	Orchestrator = "orchestrator"
	Supervisor   = "supervisor"
	Governance   = "governance"
	Persistence  = "persistence"
	Control      = "control"
	Transport    = "transport"
	Audit        = "audit"
	Notify       = "notify"
	PTY          = "ptybackend"
)

// Base holds the shared root logger every named subsystem logger is
// derived from.
type Base struct {
	root *zap.Logger
}

// New builds a Base from a log-filter string such as "info" or
// "debug"; an empty filter defaults to "info". Unparseable filters
// fall back to info rather than failing startup.
func New(filter string) (*Base, error) {
	level := zapcore.InfoLevel
	if filter != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(filter))); err != nil {
			level = zapcore.InfoLevel
		}
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Base{root: logger}, nil
}

// NewNop returns a Base that discards everything, for tests.
func NewNop() *Base {
	return &Base{root: zap.NewNop()}
}

// Named returns the logger for a given subsystem, tagged with a
// "component" field.
func (b *Base) Named(component string) *zap.Logger {
	return b.root.With(zap.String("component", component))
}

// Sync flushes any buffered log entries; call during shutdown.
func (b *Base) Sync() error {
	return b.root.Sync()
}
