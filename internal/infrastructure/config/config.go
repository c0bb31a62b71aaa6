package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. RETAIL_DATABASE_PASSWORD.
const EnvPrefix = "RETAIL"

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Lock      LockConfig
	Log       LogConfig
	Event     EventConfig
	HTTP      HTTPConfig
	Ledger    LedgerConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	LogLevel        string
	AutoMigrate     bool // run embedded migrations on server start
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// LockConfig selects the key locker used by the ledger coordinator.
type LockConfig struct {
	Backend    string // memory or redis
	Retries    int
	MinBackoff time.Duration
	MaxBackoff time.Duration
	TTL        time.Duration
}

// EventConfig holds outbox relay and broker settings
type EventConfig struct {
	ProcessorEnabled bool
	BatchSize        int
	PollInterval     time.Duration
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
	PubSub           PubSubConfig
}

// PubSubConfig enables relaying outbox events to Google Cloud Pub/Sub.
type PubSubConfig struct {
	Enabled         bool
	ProjectID       string
	Topic           string
	CredentialsFile string
	CreateTopic     bool
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int
	TrustedProxies  []string
}

// LedgerConfig tunes the coordinator and the background ledger jobs.
type LedgerConfig struct {
	MaxAttempts       int
	RetryBackoff      time.Duration
	VerifyParallelism int
	ExpiryWindowDays  int
	MetricsInterval   time.Duration
	JobsEnabled       bool
	JobsSchedule      string // "minute hour * * *", daily
	JobWorkers        int
	JobTimeout        time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string  // OTLP gRPC endpoint, e.g. localhost:4317
	SamplingRatio     float64 // 0.0-1.0
	ServiceName       string
	Insecure          bool // plaintext gRPC, development only
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	DBTraceEnabled    bool
	DBLogFullSQL      bool
	DBSlowQueryThresh time.Duration
}

// Load reads configuration. Priority, highest first:
//  1. RETAIL_ environment variables (e.g. RETAIL_DATABASE_PASSWORD)
//  2. variables from a .env file in the working directory
//  3. config.toml
//  4. built-in defaults
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/retailops")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			LogLevel:        v.GetString("database.log_level"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Lock: LockConfig{
			Backend:    v.GetString("lock.backend"),
			Retries:    v.GetInt("lock.retries"),
			MinBackoff: v.GetDuration("lock.min_backoff"),
			MaxBackoff: v.GetDuration("lock.max_backoff"),
			TTL:        v.GetDuration("lock.ttl"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Event: EventConfig{
			ProcessorEnabled: v.GetBool("event.processor_enabled"),
			BatchSize:        v.GetInt("event.batch_size"),
			PollInterval:     v.GetDuration("event.poll_interval"),
			CleanupEnabled:   v.GetBool("event.cleanup_enabled"),
			CleanupRetention: v.GetDuration("event.cleanup_retention"),
			CleanupInterval:  v.GetDuration("event.cleanup_interval"),
			PubSub: PubSubConfig{
				Enabled:         v.GetBool("event.pubsub.enabled"),
				ProjectID:       v.GetString("event.pubsub.project_id"),
				Topic:           v.GetString("event.pubsub.topic"),
				CredentialsFile: v.GetString("event.pubsub.credentials_file"),
				CreateTopic:     v.GetBool("event.pubsub.create_topic"),
			},
		},
		HTTP: HTTPConfig{
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:  v.GetInt("http.max_header_bytes"),
			TrustedProxies:  v.GetStringSlice("http.trusted_proxies"),
		},
		Ledger: LedgerConfig{
			MaxAttempts:       v.GetInt("ledger.max_attempts"),
			RetryBackoff:      v.GetDuration("ledger.retry_backoff"),
			VerifyParallelism: v.GetInt("ledger.verify_parallelism"),
			ExpiryWindowDays:  v.GetInt("ledger.expiry_window_days"),
			MetricsInterval:   v.GetDuration("ledger.metrics_interval"),
			JobsEnabled:       v.GetBool("ledger.jobs_enabled"),
			JobsSchedule:      v.GetString("ledger.jobs_schedule"),
			JobWorkers:        v.GetInt("ledger.job_workers"),
			JobTimeout:        v.GetDuration("ledger.job_timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "retailops"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "retailops"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Lock.Backend == "" {
		cfg.Lock.Backend = "memory"
	}
	if cfg.Lock.Retries == 0 {
		cfg.Lock.Retries = 8
	}
	if cfg.Lock.MinBackoff == 0 {
		cfg.Lock.MinBackoff = 2 * time.Millisecond
	}
	if cfg.Lock.MaxBackoff == 0 {
		cfg.Lock.MaxBackoff = 200 * time.Millisecond
	}
	if cfg.Lock.TTL == 0 {
		cfg.Lock.TTL = 30 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Event.BatchSize == 0 {
		cfg.Event.BatchSize = 100
	}
	if cfg.Event.PollInterval == 0 {
		cfg.Event.PollInterval = 5 * time.Second
	}
	if cfg.Event.CleanupRetention == 0 {
		cfg.Event.CleanupRetention = 168 * time.Hour
	}
	if cfg.Event.CleanupInterval == 0 {
		cfg.Event.CleanupInterval = time.Hour
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.Ledger.MaxAttempts == 0 {
		cfg.Ledger.MaxAttempts = 3
	}
	if cfg.Ledger.RetryBackoff == 0 {
		cfg.Ledger.RetryBackoff = 25 * time.Millisecond
	}
	if cfg.Ledger.VerifyParallelism == 0 {
		cfg.Ledger.VerifyParallelism = 4
	}
	if cfg.Ledger.ExpiryWindowDays == 0 {
		cfg.Ledger.ExpiryWindowDays = 30
	}
	if cfg.Ledger.MetricsInterval == 0 {
		cfg.Ledger.MetricsInterval = time.Minute
	}
	if cfg.Ledger.JobsSchedule == "" {
		cfg.Ledger.JobsSchedule = "0 2 * * *"
	}
	if cfg.Ledger.JobWorkers == 0 {
		cfg.Ledger.JobWorkers = 2
	}
	if cfg.Ledger.JobTimeout == 0 {
		cfg.Ledger.JobTimeout = 30 * time.Minute
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Lock.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("lock.backend must be memory or redis, got %q", c.Lock.Backend)
	}
	if c.Ledger.MaxAttempts < 1 {
		return fmt.Errorf("ledger.max_attempts must be at least 1")
	}
	if c.Ledger.VerifyParallelism < 1 {
		return fmt.Errorf("ledger.verify_parallelism must be at least 1")
	}

	if c.Event.PubSub.Enabled {
		if c.Event.PubSub.ProjectID == "" || c.Event.PubSub.Topic == "" {
			return fmt.Errorf("event.pubsub.project_id and event.pubsub.topic are required when pubsub is enabled")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	if c.IsProduction() {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		// Several server instances share one database in production, so
		// in-process locks would not serialize them.
		if c.Lock.Backend != "redis" {
			return fmt.Errorf("lock.backend must be redis in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
	}
	return nil
}

// IsProduction reports whether the app runs with env=production.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns host:port for the Redis client.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
