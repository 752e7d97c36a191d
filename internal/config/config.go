// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends for event and export metadata.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Export dispatch transports.
const (
	DispatcherPool   = "pool"
	DispatcherPubSub = "pubsub"
)

// Config is the root configuration shared by the api and worker binaries.
type Config struct {
	Env      string `env:"APP_ENV"   envDefault:"development"`
	Port     string `env:"APP_PORT"  envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	BaseURL  string `env:"BASE_URL"  envDefault:"http://localhost:8080"`

	// RequireTLS rejects plain HTTP requests that did not pass through a TLS-terminating proxy.
	RequireTLS bool `env:"REQUIRE_TLS" envDefault:"false"`

	// Store selects the metadata backend: memory, postgres or mongo.
	Store string `env:"STORE" envDefault:"memory"`

	Postgres  DBConfig        `envPrefix:"DB_"`
	Mongo     MongoConfig     `envPrefix:"MONGO_"`
	Redis     RedisConfig     `envPrefix:"REDIS_"`
	Storage   StorageConfig   `envPrefix:"STORAGE_"`
	Auth      AuthConfig      `envPrefix:"JWT_"`
	Telemetry TelemetryConfig `envPrefix:"OTEL_"`
	Export    ExportConfig    `envPrefix:"EXPORT_"`
	PubSub    PubSubConfig    `envPrefix:"PUBSUB_"`
}

// DBConfig contains PostgreSQL configuration.
type DBConfig struct {
	Host            string        `env:"HOST"               envDefault:"localhost"`
	Port            int           `env:"PORT"               envDefault:"5432"`
	User            string        `env:"USER"               envDefault:"invitely"`
	Password        string        `env:"PASSWORD"           envDefault:"localdev"`
	Name            string        `env:"NAME"               envDefault:"invitely"`
	SSLMode         string        `env:"SSL_MODE"           envDefault:"disable"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS"     envDefault:"10"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS"     envDefault:"2"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME"  envDefault:"5m"`
	Migrate         bool          `env:"MIGRATE"            envDefault:"true"`
}

// ConnectionString returns the PostgreSQL connection string.
func (c DBConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// MongoConfig contains MongoDB configuration.
type MongoConfig struct {
	URI      string        `env:"URI"      envDefault:"mongodb://localhost:27017"`
	Database string        `env:"DATABASE" envDefault:"invitely"`
	Timeout  time.Duration `env:"TIMEOUT"  envDefault:"10s"`
}

// RedisConfig contains Redis configuration. Redis backs the export processing lease.
type RedisConfig struct {
	Enabled  bool   `env:"ENABLED"  envDefault:"false"`
	Addr     string `env:"ADDR"     envDefault:"localhost:6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB"       envDefault:"0"`
}

// StorageConfig selects and configures blob storage for rendered exports and uploaded assets.
type StorageConfig struct {
	Provider  string `env:"PROVIDER"   envDefault:"local"`
	LocalDir  string `env:"LOCAL_DIR"  envDefault:"uploads"`
	Bucket    string `env:"BUCKET"     envDefault:"invitely"`
	Region    string `env:"REGION"     envDefault:"us-east-1"`
	Endpoint  string `env:"ENDPOINT"   envDefault:""`
	AccessKey string `env:"ACCESS_KEY" envDefault:""`
	SecretKey string `env:"SECRET_KEY" envDefault:""`
	UseSSL    bool   `env:"USE_SSL"    envDefault:"true"`
}

// AuthConfig configures access token validation.
type AuthConfig struct {
	SigningKey string `env:"SIGNING_KEY" envDefault:"dev-signing-key-change-me"`
	Issuer     string `env:"ISSUER"      envDefault:"invitely"`
	Audience   string `env:"AUDIENCE"    envDefault:"invitely-api"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `env:"ENABLED"                envDefault:"true"`
	OTLPEndpoint string  `env:"EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	SampleRatio  float64 `env:"TRACES_SAMPLE_RATIO"    envDefault:"1"`
}

// ExportConfig tunes the export job pipeline.
type ExportConfig struct {
	Dispatcher   string        `env:"DISPATCHER"    envDefault:"pool"`
	Workers      int           `env:"WORKERS"       envDefault:"4"`
	QueueSize    int           `env:"QUEUE_SIZE"    envDefault:"256"`
	StepDelay    time.Duration `env:"STEP_DELAY"    envDefault:"1s"`

	// PollInterval is how often the pool re-reads pending jobs from the store.
	// Zero disables polling; jobs then only arrive through dispatch.
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"30s"`

	// SweepInterval is how often the reconciler runs. Zero disables it.
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m"`
	// StaleAfter is how long a job may sit in pending or processing before the reconciler acts on it.
	StaleAfter time.Duration `env:"STALE_AFTER" envDefault:"15m"`
	LeaseTTL   time.Duration `env:"LEASE_TTL"   envDefault:"2m"`
}

// PubSubConfig configures the Pub/Sub export queue.
type PubSubConfig struct {
	ProjectID    string `env:"PROJECT_ID"   envDefault:""`
	Topic        string `env:"TOPIC"        envDefault:"export-jobs"`
	Subscription string `env:"SUBSCRIPTION" envDefault:"export-jobs-worker"`
}

// Load reads a .env file if present, then parses the environment into Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Sanitize applies guardrails to values loaded from env.
func (c *Config) Sanitize() {
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	c.Storage.Provider = strings.ToLower(strings.TrimSpace(c.Storage.Provider))
	c.Export.Dispatcher = strings.ToLower(strings.TrimSpace(c.Export.Dispatcher))
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")

	if c.Export.Workers < 1 {
		c.Export.Workers = 1
	}
	if c.Export.Workers > 64 {
		c.Export.Workers = 64
	}
	if c.Export.QueueSize < c.Export.Workers {
		c.Export.QueueSize = c.Export.Workers
	}
	if c.Export.StepDelay < 0 {
		c.Export.StepDelay = 0
	}
	if c.Export.PollInterval < 0 {
		c.Export.PollInterval = 0
	}
	if c.Export.SweepInterval < 0 {
		c.Export.SweepInterval = 0
	}
	if c.Export.StaleAfter < time.Minute {
		c.Export.StaleAfter = time.Minute
	}
	if c.Export.LeaseTTL < 10*time.Second {
		c.Export.LeaseTTL = 10 * time.Second
	}
	if c.Postgres.MaxOpenConns < 1 {
		c.Postgres.MaxOpenConns = 1
	}
	if c.Postgres.MaxIdleConns > c.Postgres.MaxOpenConns {
		c.Postgres.MaxIdleConns = c.Postgres.MaxOpenConns
	}
}

// Validate rejects unknown backend selections.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory, StorePostgres, StoreMongo:
	default:
		return fmt.Errorf("invalid STORE %q", c.Store)
	}
	switch c.Storage.Provider {
	case "local", "s3", "minio":
	default:
		return fmt.Errorf("invalid STORAGE_PROVIDER %q", c.Storage.Provider)
	}
	switch c.Export.Dispatcher {
	case DispatcherPool:
	case DispatcherPubSub:
		if c.PubSub.ProjectID == "" {
			return errors.New("PUBSUB_PROJECT_ID is required when EXPORT_DISPATCHER=pubsub")
		}
	default:
		return fmt.Errorf("invalid EXPORT_DISPATCHER %q", c.Export.Dispatcher)
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
