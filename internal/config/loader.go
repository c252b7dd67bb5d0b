package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Optionally read from config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/agentscope")

	// Ignore error if config file not found
	_ = v.ReadInConfig()

	var cfg Config

	// Server
	cfg.Server.Host = v.GetString("server_host")
	cfg.Server.Port = v.GetInt("server_port")
	cfg.Server.GRPCPort = v.GetInt("server_grpc_port")
	cfg.Server.Env = v.GetString("server_env")

	// PostgreSQL
	cfg.Postgres.Host = v.GetString("postgres_host")
	cfg.Postgres.Port = v.GetInt("postgres_port")
	cfg.Postgres.User = v.GetString("postgres_user")
	cfg.Postgres.Password = v.GetString("postgres_password")
	cfg.Postgres.Database = v.GetString("postgres_db")
	cfg.Postgres.SSLMode = v.GetString("postgres_ssl_mode")
	cfg.Postgres.MaxConns = int32(v.GetInt("postgres_max_conns"))
	cfg.Postgres.MinConns = int32(v.GetInt("postgres_min_conns"))

	// Redis
	cfg.Redis.Host = v.GetString("redis_host")
	cfg.Redis.Port = v.GetInt("redis_port")
	cfg.Redis.Password = v.GetString("redis_password")
	cfg.Redis.DB = v.GetInt("redis_db")

	// Worker
	cfg.Worker.Concurrency = v.GetInt("worker_concurrency")
	cfg.Worker.QueueCritical = v.GetString("worker_queue_critical")
	cfg.Worker.QueueDefault = v.GetString("worker_queue_default")
	cfg.Worker.QueueLow = v.GetString("worker_queue_low")
	cfg.Worker.CostEnabled = v.GetBool("cost_worker_enabled")
	cfg.Worker.CostBatchSize = v.GetInt("cost_worker_batch_size")
	cfg.Worker.CostIntervalMin = v.GetInt("cost_worker_interval_minutes")

	// Logging
	cfg.Log.Level = v.GetString("log_level")
	cfg.Log.Format = v.GetString("log_format")

	// Pricing
	cfg.Pricing.RefreshEnabled = v.GetBool("pricing_refresh_enabled")
	cfg.Pricing.RefreshMinutes = v.GetInt("pricing_refresh_minutes")
	cfg.Pricing.RefreshInterval = time.Duration(cfg.Pricing.RefreshMinutes) * time.Minute

	// Ingest
	cfg.Ingest.MaxBatchSpans = v.GetInt("ingest_max_batch_spans")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("server_port", 8080)
	v.SetDefault("server_grpc_port", 4317)
	v.SetDefault("server_env", "development")

	// PostgreSQL defaults
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "agentscope")
	v.SetDefault("postgres_password", "agentscope")
	v.SetDefault("postgres_db", "agentscope")
	v.SetDefault("postgres_ssl_mode", "disable")
	v.SetDefault("postgres_max_conns", 25)
	v.SetDefault("postgres_min_conns", 5)

	// Redis defaults
	v.SetDefault("redis_host", "localhost")
	v.SetDefault("redis_port", 6379)
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	// Worker defaults
	v.SetDefault("worker_concurrency", 10)
	v.SetDefault("worker_queue_critical", "critical")
	v.SetDefault("worker_queue_default", "default")
	v.SetDefault("worker_queue_low", "low")
	v.SetDefault("cost_worker_enabled", true)
	v.SetDefault("cost_worker_batch_size", 100)
	v.SetDefault("cost_worker_interval_minutes", 15)

	// Logging defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	// Pricing defaults
	v.SetDefault("pricing_refresh_enabled", true)
	v.SetDefault("pricing_refresh_minutes", 30)

	// Ingest defaults
	v.SetDefault("ingest_max_batch_spans", 10000)
}
