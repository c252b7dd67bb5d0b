package config

import (
	"fmt"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Worker   WorkerConfig
	Log      LogConfig
	Pricing  PricingConfig
	Ingest   IngestConfig
}

// ServerConfig holds HTTP and gRPC server configuration
type ServerConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	GRPCPort int    `mapstructure:"grpc_port"`
	Env      string `mapstructure:"env"`
}

// PostgresConfig holds PostgreSQL configuration
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the host:port address for Redis clients
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WorkerConfig holds background worker configuration
type WorkerConfig struct {
	Concurrency     int    `mapstructure:"concurrency"`
	QueueCritical   string `mapstructure:"queue_critical"`
	QueueDefault    string `mapstructure:"queue_default"`
	QueueLow        string `mapstructure:"queue_low"`
	CostEnabled     bool   `mapstructure:"cost_enabled"`
	CostBatchSize   int    `mapstructure:"cost_batch_size"`
	CostIntervalMin int    `mapstructure:"cost_interval_minutes"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PricingConfig holds model pricing cache configuration
type PricingConfig struct {
	RefreshEnabled  bool          `mapstructure:"refresh_enabled"`
	RefreshInterval time.Duration `mapstructure:"-"`
	RefreshMinutes  int           `mapstructure:"refresh_minutes"`
}

// IngestConfig holds telemetry ingestion configuration
type IngestConfig struct {
	MaxBatchSpans int `mapstructure:"max_batch_spans"`
}

// IsDevelopment returns true if running in development mode
func (c Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c Config) IsProduction() bool {
	return c.Server.Env == "production"
}
