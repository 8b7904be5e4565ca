package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override, e.g. HOSPITAL_DB_HOST.
const EnvPrefix = "hospital"

type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	Migration MigrationConfig `mapstructure:"migration"`
	Ops       OpsConfig       `mapstructure:"ops"`
	Log       LogConfig       `mapstructure:"log"`
	Seed      SeedConfig      `mapstructure:"seed"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host" envconfig:"DB_HOST"`
	Port            int           `mapstructure:"port" envconfig:"DB_PORT"`
	User            string        `mapstructure:"user" envconfig:"DB_USER"`
	Password        string        `mapstructure:"password" envconfig:"DB_PASSWORD"`
	Name            string        `mapstructure:"name" envconfig:"DB_NAME"`
	SSLMode         string        `mapstructure:"sslmode" envconfig:"DB_SSLMODE"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" envconfig:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" envconfig:"DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" envconfig:"DB_CONN_MAX_LIFETIME"`
}

// DSN renders the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	URL          string        `mapstructure:"url" envconfig:"REDIS_URL"`
	MaxRetries   int           `mapstructure:"max_retries" envconfig:"REDIS_MAX_RETRIES"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" envconfig:"REDIS_RETRY_BACKOFF"`
	PoolSize     int           `mapstructure:"pool_size" envconfig:"REDIS_POOL_SIZE"`
	MinIdleConns int           `mapstructure:"min_idle_conns" envconfig:"REDIS_MIN_IDLE_CONNS"`
}

type OutboxConfig struct {
	BatchSize     int           `mapstructure:"batch_size" envconfig:"OUTBOX_BATCH_SIZE"`
	PollInterval  time.Duration `mapstructure:"poll_interval" envconfig:"OUTBOX_POLL_INTERVAL"`
	RetryAttempts int           `mapstructure:"retry_attempts" envconfig:"OUTBOX_RETRY_ATTEMPTS"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" envconfig:"OUTBOX_RETRY_DELAY"`
	Retention     time.Duration `mapstructure:"retention" envconfig:"OUTBOX_RETENTION"`
}

type MigrationConfig struct {
	MaxRetries int           `mapstructure:"max_retries" envconfig:"MIGRATION_MAX_RETRIES"`
	Backoff    time.Duration `mapstructure:"backoff" envconfig:"MIGRATION_BACKOFF"`
	LockID     int64         `mapstructure:"lock_id" envconfig:"MIGRATION_LOCK_ID"`
}

type OpsConfig struct {
	Port        int    `mapstructure:"port" envconfig:"OPS_PORT"`
	MetricsPath string `mapstructure:"metrics_path" envconfig:"OPS_METRICS_PATH"`
	Namespace   string `mapstructure:"namespace" envconfig:"METRICS_NAMESPACE"`
}

type LogConfig struct {
	Level   string `mapstructure:"level" envconfig:"LOG_LEVEL"`
	Console bool   `mapstructure:"console" envconfig:"LOG_CONSOLE"`
}

type SeedConfig struct {
	DemoPassword string        `mapstructure:"demo_password" envconfig:"SEED_DEMO_PASSWORD"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl" envconfig:"CACHE_TTL"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "hospital")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval", 5*time.Second)
	v.SetDefault("outbox.retry_attempts", 3)
	v.SetDefault("outbox.retry_delay", time.Second)
	v.SetDefault("outbox.retention", 7*24*time.Hour)

	v.SetDefault("migration.max_retries", 3)
	v.SetDefault("migration.backoff", 500*time.Millisecond)
	v.SetDefault("migration.lock_id", 72_841_903)

	v.SetDefault("ops.port", 9090)
	v.SetDefault("ops.metrics_path", "/metrics")
	v.SetDefault("ops.namespace", "hospital")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)

	v.SetDefault("seed.demo_password", "ChangeMe!2024")
	v.SetDefault("seed.cache_ttl", 10*time.Minute)
}

// LoadConfig reads config.yaml from path (or the usual search paths when
// empty), falls back to defaults when no file exists and finally applies
// HOSPITAL_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app/config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Sections are processed one by one so keys stay flat (HOSPITAL_DB_HOST
	// rather than HOSPITAL_DATABASE_DB_HOST).
	for _, section := range []interface{}{
		&cfg.Database, &cfg.Redis, &cfg.Outbox, &cfg.Migration, &cfg.Ops, &cfg.Log, &cfg.Seed,
	} {
		if err := envconfig.Process(EnvPrefix, section); err != nil {
			return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var problems []string
	if c.Database.Host == "" {
		problems = append(problems, "database.host is required")
	}
	if c.Database.Port <= 0 {
		problems = append(problems, "database.port must be positive")
	}
	if c.Outbox.BatchSize <= 0 || c.Outbox.PollInterval <= 0 || c.Outbox.RetryAttempts <= 0 || c.Outbox.RetryDelay <= 0 {
		problems = append(problems, "outbox settings must be positive")
	}
	if c.Outbox.Retention < time.Hour {
		problems = append(problems, "outbox.retention must be at least 1h")
	}
	if c.Migration.MaxRetries < 0 {
		problems = append(problems, "migration.max_retries must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
