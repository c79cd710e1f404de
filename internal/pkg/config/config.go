package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	OTLPAddr    string `mapstructure:"otlp_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// ConfidenceTier maps a distance bound (exclusive) to a match confidence.
type ConfidenceTier struct {
	MaxKm float64 `mapstructure:"max_km"`
	Score float64 `mapstructure:"score"`
}

type RoutingConfig struct {
	AverageSpeedKmh    float64          `mapstructure:"average_speed_kmh"`
	ConfidenceTiers    []ConfidenceTier `mapstructure:"confidence_tiers"`
	FallbackConfidence float64          `mapstructure:"fallback_confidence"`
}

// SyncConfig configures the field sync client.
type SyncConfig struct {
	URL                string `mapstructure:"url"`
	InitialBackoffMs   int    `mapstructure:"initial_backoff_ms"`
	MaxBackoffMs       int    `mapstructure:"max_backoff_ms"`
	MaxAttempts        int    `mapstructure:"max_attempts"`
	DialTimeoutSeconds int    `mapstructure:"dial_timeout_seconds"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// Load reads configuration from .env, an optional config file and
// environment variables, in increasing order of precedence.
func Load(service string) (*Config, error) {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "eggtrail")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "eggtrail")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_addr", "localhost:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("routing.average_speed_kmh", 30.0)
	v.SetDefault("routing.confidence_tiers", []map[string]any{
		{"max_km": 1.0, "score": 0.95},
		{"max_km": 5.0, "score": 0.80},
		{"max_km": 10.0, "score": 0.60},
	})
	v.SetDefault("routing.fallback_confidence", 0.30)
	v.SetDefault("sync.url", "ws://localhost:8080/ws")
	v.SetDefault("sync.initial_backoff_ms", 1000)
	v.SetDefault("sync.max_backoff_ms", 60000)
	v.SetDefault("sync.max_attempts", 10)
	v.SetDefault("sync.dial_timeout_seconds", 10)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "route-dispatch")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: EGGTRAIL_DATABASE_HOST → database.host
	v.SetEnvPrefix("EGGTRAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Routing.AverageSpeedKmh <= 0 {
		errs = append(errs, "routing.average_speed_kmh must be positive")
	}
	for i, t := range c.Routing.ConfidenceTiers {
		if t.MaxKm <= 0 || t.Score < 0 || t.Score > 1 {
			errs = append(errs, fmt.Sprintf("routing.confidence_tiers[%d] must have max_km > 0 and score in 0..1", i))
		}
		if i > 0 {
			prev := c.Routing.ConfidenceTiers[i-1]
			if t.MaxKm <= prev.MaxKm || t.Score >= prev.Score {
				errs = append(errs, fmt.Sprintf("routing.confidence_tiers[%d] must widen the distance and lower the score", i))
			}
		}
	}
	if n := len(c.Routing.ConfidenceTiers); n > 0 && c.Routing.FallbackConfidence >= c.Routing.ConfidenceTiers[n-1].Score {
		errs = append(errs, "routing.fallback_confidence must be below the last tier score")
	}
	if c.Sync.InitialBackoffMs <= 0 || c.Sync.MaxBackoffMs < c.Sync.InitialBackoffMs {
		errs = append(errs, "sync backoff must satisfy 0 < initial_backoff_ms <= max_backoff_ms")
	}
	if c.Sync.MaxAttempts <= 0 {
		errs = append(errs, "sync.max_attempts must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
