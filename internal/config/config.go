package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete vaultd configuration
type Config struct {
	Vault     VaultConfig     `mapstructure:"vault"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Claim     ClaimConfig     `mapstructure:"claim"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Approval  ApprovalConfig  `mapstructure:"approval"`
	Loop      LoopConfig      `mapstructure:"loop"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// VaultConfig controls where the vault and its inputs live
type VaultConfig struct {
	// Root is the vault directory. All stages, Files/, Logs/, and the
	// dashboard live under it. Supports ~ expansion.
	Root string `mapstructure:"root"`
	// DropDir is the watched drop folder. If empty, defaults to
	// "<root>/Inbox_Drop". Supports ~ expansion.
	DropDir string `mapstructure:"drop_dir"`
}

// WorkerConfig controls this instance's identity
type WorkerConfig struct {
	// ID names this instance's private In_Progress sub-location.
	// If empty, defaults to "<hostname>-<pid>".
	ID string `mapstructure:"id"`
}

// ClaimConfig controls the claim protocol and stale-claim recovery
type ClaimConfig struct {
	// StaleAfterMinutes is how long a claim may sit before the sweep
	// treats its worker as dead and requeues the item (default: 30)
	StaleAfterMinutes int `mapstructure:"stale_after_minutes"`
	// AttemptCeiling is the number of attempts before an item is
	// quarantined instead of requeued (default: 3)
	AttemptCeiling int `mapstructure:"attempt_ceiling"`
}

// EngineConfig controls the external reasoning engine invocation
type EngineConfig struct {
	// Command is the CLI to run for each item (default: "claude")
	Command string `mapstructure:"command"`
	// Args are extra arguments placed before the prompt flag
	Args []string `mapstructure:"args"`
	// TimeoutSeconds bounds one invocation (default: 300)
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// ApprovalConfig controls the approval gate
type ApprovalConfig struct {
	// TTLHours is how long a pending request waits for a decision before
	// the expiry sweep auto-rejects it (default: 24)
	TTLHours int `mapstructure:"ttl_hours"`
}

// LoopConfig controls the orchestration loop
type LoopConfig struct {
	// IntervalSeconds is the sleep between passes (default: 30)
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

// DashboardConfig controls the single-writer dashboard
type DashboardConfig struct {
	// Writer marks this instance as the designated dashboard writer.
	// Exactly one instance sharing a vault should set it (default: true,
	// on the assumption of a single-instance deployment).
	Writer bool `mapstructure:"writer"`
}

// LoggingConfig controls structured logging behavior
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// File is the log file path. Empty logs to stderr.
	File string `mapstructure:"file"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Vault: VaultConfig{
			Root:    "~/vault",
			DropDir: "",
		},
		Worker: WorkerConfig{
			ID: "", // Empty means derive from hostname and pid
		},
		Claim: ClaimConfig{
			StaleAfterMinutes: 30,
			AttemptCeiling:    3,
		},
		Engine: EngineConfig{
			Command:        "claude",
			Args:           []string{},
			TimeoutSeconds: 300,
		},
		Approval: ApprovalConfig{
			TTLHours: 24,
		},
		Loop: LoopConfig{
			IntervalSeconds: 30,
		},
		Dashboard: DashboardConfig{
			Writer: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Vault defaults
	viper.SetDefault("vault.root", defaults.Vault.Root)
	viper.SetDefault("vault.drop_dir", defaults.Vault.DropDir)

	// Worker defaults
	viper.SetDefault("worker.id", defaults.Worker.ID)

	// Claim defaults
	viper.SetDefault("claim.stale_after_minutes", defaults.Claim.StaleAfterMinutes)
	viper.SetDefault("claim.attempt_ceiling", defaults.Claim.AttemptCeiling)

	// Engine defaults
	viper.SetDefault("engine.command", defaults.Engine.Command)
	viper.SetDefault("engine.args", defaults.Engine.Args)
	viper.SetDefault("engine.timeout_seconds", defaults.Engine.TimeoutSeconds)

	// Approval defaults
	viper.SetDefault("approval.ttl_hours", defaults.Approval.TTLHours)

	// Loop defaults
	viper.SetDefault("loop.interval_seconds", defaults.Loop.IntervalSeconds)

	// Dashboard defaults
	viper.SetDefault("dashboard.writer", defaults.Dashboard.Writer)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", defaults.Logging.File)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// StaleAfter returns the stale-claim threshold as a time.Duration
func (c *ClaimConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterMinutes) * time.Minute
}

// Timeout returns the engine timeout as a time.Duration
func (c *EngineConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TTL returns the approval time-to-live as a time.Duration
func (c *ApprovalConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// Interval returns the loop interval as a time.Duration
func (c *LoopConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// ResolveRoot returns the vault root with ~ expanded
func (c *VaultConfig) ResolveRoot() string {
	return expandHome(c.Root)
}

// ResolveDropDir returns the drop folder path, defaulting to Inbox_Drop
// under the vault root
func (c *VaultConfig) ResolveDropDir() string {
	if c.DropDir == "" {
		return filepath.Join(c.ResolveRoot(), "Inbox_Drop")
	}
	return expandHome(c.DropDir)
}

// WorkerID returns the configured worker identity, deriving one from the
// hostname and pid when unset
func (c *Config) WorkerID() string {
	if c.Worker.ID != "" {
		return c.Worker.ID
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

// expandHome expands a leading ~ to the user's home directory
func expandHome(path string) string {
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "vaultd")
	}
	// Fall back to ~/.config/vaultd
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vaultd"
	}
	return filepath.Join(home, ".config", "vaultd")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
