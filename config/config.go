// Package config provides environment-variable configuration loading and
// validation utilities for the venomqa CLI, following the prefixed
// GetX/LoadXConfig/Validator pattern used throughout this codebase's
// services.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"venomqa.dev/venomqa/scheduler"
)

// EnvConfig provides utilities for loading configuration from environment variables
type EnvConfig struct {
	prefix string // Optional prefix for all environment variables
}

// NewEnvConfig creates a new environment configuration loader
func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{
		prefix: prefix,
	}
}

// GetString retrieves a string value from environment with optional default
func (ec *EnvConfig) GetString(key, defaultValue string) string {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		return value
	}
	return defaultValue
}

// GetInt64 retrieves an int64 value from environment with optional default
func (ec *EnvConfig) GetInt64(key string, defaultValue int64) int64 {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetInt retrieves an int value from environment with optional default
func (ec *EnvConfig) GetInt(key string, defaultValue int) int {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetBool retrieves a boolean value from environment with optional default
func (ec *EnvConfig) GetBool(key string, defaultValue bool) bool {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetDuration retrieves a duration value from environment with optional default
func (ec *EnvConfig) GetDuration(key string, defaultValue time.Duration) time.Duration {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		duration, err := time.ParseDuration(value)
		if err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetStringSlice retrieves a comma-separated string slice from environment
func (ec *EnvConfig) GetStringSlice(key string, defaultValue []string) []string {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultValue
}

// buildKey builds the full environment variable key with optional prefix
func (ec *EnvConfig) buildKey(key string) string {
	if ec.prefix != "" {
		return ec.prefix + "_" + key
	}
	return key
}

// TargetConfig names the API under exploration and which scenario to run
// against it.
type TargetConfig struct {
	URL              string
	Scenario         string
	StateFromContext []string
}

// LoadTargetConfig loads TargetConfig from environment, e.g. VENOMQA_TARGET,
// VENOMQA_SCENARIO, VENOMQA_STATE_FROM.
func LoadTargetConfig(prefix string) TargetConfig {
	env := NewEnvConfig(prefix)
	return TargetConfig{
		URL:              env.GetString("TARGET", ""),
		Scenario:         env.GetString("SCENARIO", "orders"),
		StateFromContext: env.GetStringSlice("STATE_FROM", nil),
	}
}

// LoadBudgetsConfig loads scheduler.Budgets directly from environment,
// leaving scheduler.DefaultBudgets' loop/transport-failure defaults intact
// and only overriding the numeric caps a user is likely to tune per run.
func LoadBudgetsConfig(prefix string) scheduler.Budgets {
	env := NewEnvConfig(prefix)
	budgets := scheduler.DefaultBudgets()
	budgets.MaxSteps = env.GetInt("MAX_STEPS", budgets.MaxSteps)
	budgets.MaxStates = env.GetInt("MAX_STATES", budgets.MaxStates)
	budgets.MaxTimeMs = env.GetInt64("MAX_TIME_MS", budgets.MaxTimeMs)
	budgets.MaxViolations = env.GetInt("MAX_VIOLATIONS", budgets.MaxViolations)
	budgets.StopOnFirstCritical = env.GetBool("STOP_ON_FIRST_CRITICAL", budgets.StopOnFirstCritical)
	return budgets
}

// Validator provides configuration validation utilities
type Validator struct {
	errors []string
}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{
		errors: make([]string, 0),
	}
}

// RequireOneOf validates that a value is one of the allowed options
func (v *Validator) RequireOneOf(field, value string, allowed []string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
		return
	}
	for _, option := range allowed {
		if value == option {
			return
		}
	}
	v.errors = append(v.errors, fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", ")))
}

// RequireURL validates that a string is empty (meaning: use the bundled
// demo) or a valid http(s) URL.
func (v *Validator) RequireURL(field, value string) {
	if value == "" {
		return
	}
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		v.errors = append(v.errors, fmt.Sprintf("%s must be empty or a valid URL (http:// or https://)", field))
	}
}

// IsValid returns true if there are no validation errors
func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

// ErrorString returns all validation errors as a single string
func (v *Validator) ErrorString() string {
	return strings.Join(v.errors, "; ")
}

// Validate runs validation and returns error if invalid
func (v *Validator) Validate() error {
	if !v.IsValid() {
		return fmt.Errorf("configuration validation failed: %s", v.ErrorString())
	}
	return nil
}

// ValidateTarget checks a TargetConfig's fields are well-formed.
func ValidateTarget(t TargetConfig) error {
	v := NewValidator()
	v.RequireURL("Target.URL", t.URL)
	v.RequireOneOf("Target.Scenario", t.Scenario, []string{"orders", "items", "poll"})
	return v.Validate()
}
