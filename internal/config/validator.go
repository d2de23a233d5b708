package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "claim.attempt_ceiling")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation
// errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateVault()...)
	errors = append(errors, c.validateClaim()...)
	errors = append(errors, c.validateEngine()...)
	errors = append(errors, c.validateApproval()...)
	errors = append(errors, c.validateLoop()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateVault() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Vault.Root) == "" {
		errors = append(errors, ValidationError{
			Field:   "vault.root",
			Value:   c.Vault.Root,
			Message: "must not be empty",
		})
	}

	return errors
}

func (c *Config) validateClaim() []ValidationError {
	var errors []ValidationError

	if c.Claim.StaleAfterMinutes <= 0 {
		errors = append(errors, ValidationError{
			Field:   "claim.stale_after_minutes",
			Value:   c.Claim.StaleAfterMinutes,
			Message: "must be positive",
		})
	}
	if c.Claim.AttemptCeiling < 1 {
		errors = append(errors, ValidationError{
			Field:   "claim.attempt_ceiling",
			Value:   c.Claim.AttemptCeiling,
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateEngine() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Engine.Command) == "" {
		errors = append(errors, ValidationError{
			Field:   "engine.command",
			Value:   c.Engine.Command,
			Message: "must not be empty",
		})
	}
	if c.Engine.TimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "engine.timeout_seconds",
			Value:   c.Engine.TimeoutSeconds,
			Message: "must be positive",
		})
	}

	return errors
}

func (c *Config) validateApproval() []ValidationError {
	var errors []ValidationError

	if c.Approval.TTLHours <= 0 {
		errors = append(errors, ValidationError{
			Field:   "approval.ttl_hours",
			Value:   c.Approval.TTLHours,
			Message: "must be positive",
		})
	}

	return errors
}

func (c *Config) validateLoop() []ValidationError {
	var errors []ValidationError

	if c.Loop.IntervalSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "loop.interval_seconds",
			Value:   c.Loop.IntervalSeconds,
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
