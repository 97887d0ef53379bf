package config

import (
	"fmt"
	"strings"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Validate checks cross-field rules cleanenv tags cannot express and
// normalizes the storage driver name. Load calls it.
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters (got %d)", len(c.Auth.JWTSecret))
	}

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres storage driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("storage.driver must be %q or %q (got %q)", DriverPostgres, DriverMemory, c.Storage.Driver)
	}

	if err := c.Workflow.validate(); err != nil {
		return fmt.Errorf("workflow: %w", err)
	}

	if c.Outbox.Enabled {
		if c.Outbox.PollInterval <= 0 {
			return fmt.Errorf("outbox.poll_interval must be > 0")
		}
		if c.Outbox.BatchSize <= 0 {
			return fmt.Errorf("outbox.batch_size must be > 0 (got %d)", c.Outbox.BatchSize)
		}
		if c.Outbox.MaxAttempts <= 0 {
			return fmt.Errorf("outbox.max_attempts must be > 0 (got %d)", c.Outbox.MaxAttempts)
		}
		if c.Outbox.ClaimLease <= 0 {
			return fmt.Errorf("outbox.claim_lease must be > 0")
		}
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("rate_limit.requests_per_minute must be >= 0 (got %d)", c.RateLimit.RequestsPerMinute)
	}

	if c.Mail.Enabled() && c.Mail.From == "" {
		return fmt.Errorf("mail.from is required when mail.host is set")
	}

	return nil
}

func (w *WorkflowConfig) validate() error {
	if w.CooldownWindow < 0 {
		return fmt.Errorf("cooldown_window must be >= 0 (got %v)", w.CooldownWindow)
	}
	if w.MaxActiveAssignments <= 0 {
		return fmt.Errorf("max_active_assignments must be > 0 (got %d)", w.MaxActiveAssignments)
	}
	if w.ReviewDue <= 0 {
		return fmt.Errorf("review_due must be > 0 (got %v)", w.ReviewDue)
	}
	if w.ProofWindow <= 0 {
		return fmt.Errorf("proof_window must be > 0 (got %v)", w.ProofWindow)
	}
	if w.SLASweepInterval <= 0 {
		return fmt.Errorf("sla_sweep_interval must be > 0 (got %v)", w.SLASweepInterval)
	}
	return nil
}
