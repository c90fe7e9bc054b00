package config

import (
	"errors"
	"fmt"
	"log/slog"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:           "8080",
		Environment:    "development",
		LogLevel:       "info",
		DatabaseType:   "memory",
		SnapshotKey:    "registry/snapshot.json",
		EnableMetrics:  true,
		EnableAuditLog: true,

		SnapshotOnWrite: true,
	}
}

// ServerConfig represents configuration for the registry server and admin CLI
type ServerConfig struct {
	Port        string `env:"REGISTRY_PORT"`
	Environment string `env:"REGISTRY_ENVIRONMENT"` // development, production, testing
	LogLevel    string `env:"REGISTRY_LOG_LEVEL"`   // debug, info, warn, error

	// MasterAuthority initializes a fresh store; an initialized store keeps its own.
	MasterAuthority string `env:"REGISTRY_MASTER_AUTHORITY"`

	// Database configuration
	DatabaseURL  string `env:"REGISTRY_DATABASE_URL"`
	DatabaseType string // "memory", "postgres"; derived from DatabaseURL by WithEnv
	DBSchema     string `env:"REGISTRY_DB_SCHEMA"`

	// Snapshot archive: memory://, file:///dir or s3://bucket?region=...
	SnapshotURL string `env:"REGISTRY_SNAPSHOT_URL"`
	SnapshotKey string `env:"REGISTRY_SNAPSHOT_KEY"`

	// SnapshotOnWrite saves the memory store after every committed mutation
	SnapshotOnWrite bool `env:"REGISTRY_SNAPSHOT_ON_WRITE"`

	// Static S3 credentials; empty falls back to the default AWS chain
	SnapshotAccessKeyID     string `env:"REGISTRY_SNAPSHOT_ACCESS_KEY_ID"`
	SnapshotSecretAccessKey string `env:"REGISTRY_SNAPSHOT_SECRET_ACCESS_KEY"`

	// HTTP identity; empty means the X-Principal header is trusted
	JWTSecret string `env:"REGISTRY_JWT_SECRET"`

	GrantCascade   bool `env:"REGISTRY_GRANT_CASCADE"`
	EnableMetrics  bool `env:"REGISTRY_ENABLE_METRICS"`
	EnableAuditLog bool `env:"REGISTRY_ENABLE_AUDIT_LOG"`
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.Environment {
	case "development", "production", "testing":
	default:
		return fmt.Errorf("environment must be 'development', 'production' or 'testing', got %q", c.Environment)
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}

	if c.MasterAuthority == "" {
		return errors.New("master_authority is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	if c.SnapshotURL != "" {
		if _, err := parseSnapshotURL(c.SnapshotURL); err != nil {
			return err
		}
		if c.SnapshotKey == "" {
			return errors.New("snapshot_key is required when snapshot_url is set")
		}
	}

	return nil
}

// WithPort sets the HTTP port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the runtime environment
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		c.Environment = env
		return nil
	}
}

// WithMasterAuthority sets the principal that initializes a fresh store
func WithMasterAuthority(authority string) Option {
	return func(c *ServerConfig) error {
		c.MasterAuthority = authority
		return nil
	}
}

// WithDatabaseURL selects the store from a connection string
func WithDatabaseURL(databaseURL string) Option {
	return func(c *ServerConfig) error {
		return applyDatabaseURL(c, databaseURL)
	}
}

// WithSnapshot sets the snapshot archive location and object key
func WithSnapshot(snapshotURL, key string) Option {
	return func(c *ServerConfig) error {
		c.SnapshotURL = snapshotURL
		if key != "" {
			c.SnapshotKey = key
		}
		return nil
	}
}

func parseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}
