package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if errs := cfg.Validate(); len(errs) > 0 {
		t.Fatalf("default config invalid: %v", ValidationErrors(errs))
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	if got := cfg.Claim.StaleAfter(); got != 30*time.Minute {
		t.Errorf("StaleAfter = %v", got)
	}
	if got := cfg.Engine.Timeout(); got != 5*time.Minute {
		t.Errorf("Timeout = %v", got)
	}
	if got := cfg.Approval.TTL(); got != 24*time.Hour {
		t.Errorf("TTL = %v", got)
	}
	if got := cfg.Loop.Interval(); got != 30*time.Second {
		t.Errorf("Interval = %v", got)
	}
}

func TestResolveDropDirDefaultsUnderRoot(t *testing.T) {
	cfg := Default()
	cfg.Vault.Root = "/srv/vault"
	if got := cfg.Vault.ResolveDropDir(); got != filepath.Join("/srv/vault", "Inbox_Drop") {
		t.Errorf("ResolveDropDir = %q", got)
	}

	cfg.Vault.DropDir = "/mnt/drops"
	if got := cfg.Vault.ResolveDropDir(); got != "/mnt/drops" {
		t.Errorf("ResolveDropDir override = %q", got)
	}
}

func TestWorkerIDDerivedWhenUnset(t *testing.T) {
	cfg := Default()
	id := cfg.WorkerID()
	if id == "" {
		t.Fatal("derived worker id is empty")
	}
	if !strings.Contains(id, "-") {
		t.Errorf("derived id %q missing host-pid separator", id)
	}

	cfg.Worker.ID = "worker-7"
	if got := cfg.WorkerID(); got != "worker-7" {
		t.Errorf("configured id = %q", got)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty root", func(c *Config) { c.Vault.Root = " " }, "vault.root"},
		{"zero stale threshold", func(c *Config) { c.Claim.StaleAfterMinutes = 0 }, "claim.stale_after_minutes"},
		{"zero attempt ceiling", func(c *Config) { c.Claim.AttemptCeiling = 0 }, "claim.attempt_ceiling"},
		{"empty engine command", func(c *Config) { c.Engine.Command = "" }, "engine.command"},
		{"negative timeout", func(c *Config) { c.Engine.TimeoutSeconds = -1 }, "engine.timeout_seconds"},
		{"zero approval ttl", func(c *Config) { c.Approval.TTLHours = 0 }, "approval.ttl_hours"},
		{"zero loop interval", func(c *Config) { c.Loop.IntervalSeconds = 0 }, "loop.interval_seconds"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			errs := cfg.Validate()
			if len(errs) == 0 {
				t.Fatal("expected validation errors")
			}
			found := false
			for _, err := range errs {
				if err.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("no error for field %s in %v", tt.field, ValidationErrors(errs))
			}
		})
	}
}

func TestValidationErrorsFormatting(t *testing.T) {
	errs := ValidationErrors{
		{Field: "a.b", Value: 0, Message: "must be positive"},
		{Field: "c.d", Value: "", Message: "must not be empty"},
	}
	msg := errs.Error()
	if !strings.Contains(msg, "2 validation errors") {
		t.Errorf("message = %q", msg)
	}
	if !strings.Contains(msg, "a.b") || !strings.Contains(msg, "c.d") {
		t.Errorf("message missing fields: %q", msg)
	}
}
