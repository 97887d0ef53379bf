package config

import (
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Workflow  WorkflowConfig  `yaml:"workflow"`
	Outbox    OutboxConfig    `yaml:"outbox"`
	Mail      MailConfig      `yaml:"mail"`
	Log       LogConfig       `yaml:"log"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins   string `yaml:"allowed_origins"   env:"CORS_ALLOWED_ORIGINS"   env-default:"*"`
	AllowedMethods   string `yaml:"allowed_methods"   env:"CORS_ALLOWED_METHODS"   env-default:"GET,POST,PUT,PATCH,OPTIONS"`
	AllowedHeaders   string `yaml:"allowed_headers"   env:"CORS_ALLOWED_HEADERS"   env-default:"Authorization,Content-Type"`
	AllowCredentials bool   `yaml:"allow_credentials" env:"CORS_ALLOW_CREDENTIALS" env-default:"true"`
	MaxAge           int    `yaml:"max_age"           env:"CORS_MAX_AGE"           env-default:"86400"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"postgres"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"5"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// AuthConfig holds access-token validation settings. Tokens are issued by the
// external identity provider and share the HS256 secret.
type AuthConfig struct {
	JWTSecret      string        `yaml:"jwt_secret"       env:"AUTH_JWT_SECRET"       env-required:"true"`
	JWTIssuer      string        `yaml:"jwt_issuer"       env:"AUTH_JWT_ISSUER"       env-default:"journal"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl" env:"AUTH_ACCESS_TOKEN_TTL" env-default:"15m"`
}

// WorkflowConfig holds the editorial policy constants.
type WorkflowConfig struct {
	CooldownWindow       time.Duration `yaml:"cooldown_window"        env:"WORKFLOW_COOLDOWN_WINDOW"        env-default:"2160h"`
	MaxActiveAssignments int           `yaml:"max_active_assignments" env:"WORKFLOW_MAX_ACTIVE_ASSIGNMENTS" env-default:"5"`
	ReviewDue            time.Duration `yaml:"review_due"             env:"WORKFLOW_REVIEW_DUE"             env-default:"504h"`
	ProofWindow          time.Duration `yaml:"proof_window"           env:"WORKFLOW_PROOF_WINDOW"           env-default:"72h"`
	SLASweepInterval     time.Duration `yaml:"sla_sweep_interval"     env:"WORKFLOW_SLA_SWEEP_INTERVAL"     env-default:"5m"`
}

// OutboxConfig holds intent dispatcher settings.
type OutboxConfig struct {
	Enabled      bool          `yaml:"enabled"       env:"OUTBOX_ENABLED"       env-default:"true"`
	PollInterval time.Duration `yaml:"poll_interval" env:"OUTBOX_POLL_INTERVAL" env-default:"2s"`
	BatchSize    int           `yaml:"batch_size"    env:"OUTBOX_BATCH_SIZE"    env-default:"50"`
	MaxAttempts  int           `yaml:"max_attempts"  env:"OUTBOX_MAX_ATTEMPTS"  env-default:"8"`
	RetryBackoff time.Duration `yaml:"retry_backoff" env:"OUTBOX_RETRY_BACKOFF" env-default:"30s"`
	ClaimLease   time.Duration `yaml:"claim_lease"   env:"OUTBOX_CLAIM_LEASE"   env-default:"5m"`
}

// MailConfig holds SMTP settings. Mail is disabled when Host is empty and
// dispatched intents are only logged.
type MailConfig struct {
	Host        string `yaml:"host"         env:"MAIL_HOST"`
	Port        int    `yaml:"port"         env:"MAIL_PORT"         env-default:"587"`
	Username    string `yaml:"username"     env:"MAIL_USERNAME"`
	Password    string `yaml:"password"     env:"MAIL_PASSWORD"`
	From        string `yaml:"from"         env:"MAIL_FROM"         env-default:"editorial-office@journal.local"`
	OfficeEmail string `yaml:"office_email" env:"MAIL_OFFICE_EMAIL" env-default:"editorial-office@journal.local"`
}

// Enabled reports whether SMTP delivery is configured.
func (c MailConfig) Enabled() bool {
	return c.Host != ""
}

// LogConfig holds logging settings. When File is set, output goes to a
// rotated file instead of stderr.
type LogConfig struct {
	Level      string `yaml:"level"        env:"LOG_LEVEL"        env-default:"info"`
	Format     string `yaml:"format"       env:"LOG_FORMAT"       env-default:"json"`
	File       string `yaml:"file"         env:"LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb"  env:"LOG_MAX_SIZE_MB"  env-default:"100"`
	MaxBackups int    `yaml:"max_backups"  env:"LOG_MAX_BACKUPS"  env-default:"5"`
	MaxAgeDays int    `yaml:"max_age_days" env:"LOG_MAX_AGE_DAYS" env-default:"30"`
}

// RateLimitConfig holds per-client request limits.
type RateLimitConfig struct {
	RequestsPerMinute int           `yaml:"requests_per_minute" env:"RATE_LIMIT_RPM"     env-default:"300"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"    env:"RATE_LIMIT_CLEANUP" env-default:"5m"`
}
