// Package config loads the orchestrator's ambient configuration: data
// directory, log filter, AI provider credential variable name,
// Resource Monitor defaults, Supervisor tick intervals, Coordination
// Fabric channel capacities, and Control Surface bind address. YAML is
// loaded first; environment variables, when set, win.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ResourceLimits mirrors spec.md section 4.2's defaults.
type ResourceLimits struct {
	MaxCPUPercent     float64       `yaml:"max_cpu_percent"`
	MaxMemoryBytes    int64         `yaml:"max_memory_bytes"`
	MaxMemoryPercent  float64       `yaml:"max_memory_percent"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	IdleCPUThreshold  float64       `yaml:"idle_cpu_threshold"`
	AutoSuspendEnabled bool         `yaml:"auto_suspend_enabled"`
	EnforceLimits     bool          `yaml:"enforce_limits"`
}

// DefaultResourceLimits returns spec.md section 4.2's stated defaults.
func DefaultResourceLimits() ResourceLimits {
	return ResourceLimits{
		MaxCPUPercent:      80,
		MaxMemoryBytes:     2 * 1024 * 1024 * 1024,
		MaxMemoryPercent:   50,
		IdleTimeout:        15 * time.Minute,
		IdleCPUThreshold:   5.0,
		AutoSuspendEnabled: true,
		EnforceLimits:      false,
	}
}

// FabricCapacities mirrors spec.md section 4.3's channel sizes.
type FabricCapacities struct {
	PrimaryInbox   int `yaml:"primary_inbox"`
	SecondaryInbox int `yaml:"secondary_inbox"`
	Broadcast      int `yaml:"broadcast"`
	Monitoring     int `yaml:"monitoring"`
}

func DefaultFabricCapacities() FabricCapacities {
	return FabricCapacities{
		PrimaryInbox:   1000,
		SecondaryInbox: 1000,
		Broadcast:      5000,
		Monitoring:     10000,
	}
}

// SupervisorIntervals mirrors spec.md section 4.7's tick periods.
type SupervisorIntervals struct {
	Standard   time.Duration `yaml:"standard"`
	HighFreq   time.Duration `yaml:"high_freq"`
	BottleneckRatio float64  `yaml:"bottleneck_ratio"`
}

func DefaultSupervisorIntervals() SupervisorIntervals {
	return SupervisorIntervals{
		Standard:        30 * time.Second,
		HighFreq:        15 * time.Second,
		BottleneckRatio: 0.6,
	}
}

// Config is the full ambient configuration surface.
type Config struct {
	DataDir          string               `yaml:"data_dir"`
	LogFilter        string               `yaml:"log_filter"`
	AICredentialVar  string               `yaml:"ai_credential_var"`
	ResourceLimits   ResourceLimits       `yaml:"resource_limits"`
	Fabric           FabricCapacities     `yaml:"fabric"`
	Supervisor       SupervisorIntervals  `yaml:"supervisor"`
	ControlBindAddr  string               `yaml:"control_bind_addr"`
	AuditDBPath      string               `yaml:"audit_db_path"`
}

// Default returns the built-in defaults used when no config file is
// present.
func Default() Config {
	return Config{
		DataDir:         "./data",
		LogFilter:       "info",
		AICredentialVar: "ORCHESTRATOR_AI_API_KEY",
		ResourceLimits:  DefaultResourceLimits(),
		Fabric:          DefaultFabricCapacities(),
		Supervisor:      DefaultSupervisorIntervals(),
		ControlBindAddr: ":8090",
		AuditDBPath:     "./data/audit.db",
	}
}

// Environment variable names honored per spec.md section 6. None are
// mandatory; all override the YAML value when set.
const (
	EnvDataDir   = "ORCHESTRATOR_DATA_DIR"
	EnvLogFilter = "ORCHESTRATOR_LOG_FILTER"
	EnvAICredVar = "ORCHESTRATOR_AI_CREDENTIAL_VAR"
)

// Load reads a YAML file at path (if it exists) over the defaults,
// then applies environment overrides. A missing file is not an error;
// Default() alone with env overrides is a valid configuration.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, err
			}
		} else if !os.IsNotExist(err) {
			return Config{}, err
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(EnvLogFilter); v != "" {
		cfg.LogFilter = v
	}
	if v := os.Getenv(EnvAICredVar); v != "" {
		cfg.AICredentialVar = v
	}
}
