package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config is the process configuration. Values come from Default, then an
// optional TOML file, then environment variables (highest precedence).
type Config struct {
	Server      Server     `toml:"server"`
	Log         Log        `toml:"log"`
	Storage     Storage    `toml:"storage"`
	Redis       Redis      `toml:"redis"`
	Invitations Invitation `toml:"invitations"`
	Audit       Audit      `toml:"audit"`
}

// Server captures HTTP server level configuration for the ops endpoints.
type Server struct {
	Addr            string        `toml:"addr" env:"HEALTHTRACK_ADDR"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" env:"HEALTHTRACK_SHUTDOWN_TIMEOUT"`
	ReadTimeout     time.Duration `toml:"read_timeout" env:"HEALTHTRACK_READ_TIMEOUT"`
	WriteTimeout    time.Duration `toml:"write_timeout" env:"HEALTHTRACK_WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `toml:"idle_timeout" env:"HEALTHTRACK_IDLE_TIMEOUT"`
}

type Log struct {
	Level  string `toml:"level" env:"LOG_LEVEL"`
	Format string `toml:"format" env:"LOG_FORMAT"`
}

// Storage selects the persistence driver for each component.
// ParticipationDriver may point the ledger at Redis while contacts and
// invitations stay on Driver.
type Storage struct {
	Driver              string        `toml:"driver" env:"STORAGE_DRIVER"`
	ParticipationDriver string        `toml:"participation_driver" env:"PARTICIPATION_DRIVER"`
	PostgresDSN         string        `toml:"postgres_dsn" env:"DATABASE_URL"`
	MaxOpenConns        int           `toml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns        int           `toml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime     time.Duration `toml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
	TxTimeout           time.Duration `toml:"tx_timeout" env:"DB_TX_TIMEOUT"`
	Migrate             bool          `toml:"migrate" env:"DB_MIGRATE"`
}

type Redis struct {
	URL          string        `toml:"url" env:"REDIS_URL"`
	PoolSize     int           `toml:"pool_size" env:"REDIS_POOL_SIZE"`
	MinIdleConns int           `toml:"min_idle_conns" env:"REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `toml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `toml:"read_timeout" env:"REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `toml:"write_timeout" env:"REDIS_WRITE_TIMEOUT"`
}

type Invitation struct {
	DefaultTTL    time.Duration `toml:"default_ttl" env:"INVITATION_TTL"`
	SweepInterval time.Duration `toml:"sweep_interval" env:"INVITATION_SWEEP_INTERVAL"`
}

// Audit configures where audit events go. Without brokers events are only
// logged.
type Audit struct {
	KafkaBrokers []string `toml:"kafka_brokers" env:"AUDIT_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `toml:"kafka_topic" env:"AUDIT_KAFKA_TOPIC"`
}

// Default returns a configuration suitable for local development.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
		Storage: Storage{
			Driver:          DriverMemory,
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			TxTimeout:       5 * time.Second,
			Migrate:         true,
		},
		Redis: Redis{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Invitations: Invitation{
			DefaultTTL:    7 * 24 * time.Hour,
			SweepInterval: time.Minute,
		},
		Audit: Audit{
			KafkaTopic: "healthtrack.audit",
		},
	}
}

// Load builds the configuration. An empty path skips the file layer.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode config file %s: %w", path, err)
		}
	}
	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c *Config) normalize() {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Storage.ParticipationDriver = strings.ToLower(strings.TrimSpace(c.Storage.ParticipationDriver))
	if c.Storage.ParticipationDriver == "" {
		c.Storage.ParticipationDriver = c.Storage.Driver
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
}

// Validate rejects inconsistent combinations before anything is dialed.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverPostgres:
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	switch c.Storage.ParticipationDriver {
	case DriverMemory, DriverPostgres, DriverRedis:
	default:
		return fmt.Errorf("unsupported participation driver %q", c.Storage.ParticipationDriver)
	}
	if c.UsesPostgres() && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("DATABASE_URL is required for the postgres driver")
	}
	if c.Storage.ParticipationDriver == DriverRedis && c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required for the redis participation driver")
	}
	if c.Invitations.DefaultTTL <= 0 {
		return fmt.Errorf("invitation default ttl must be positive")
	}
	if c.Invitations.SweepInterval <= 0 {
		return fmt.Errorf("invitation sweep interval must be positive")
	}
	if len(c.Audit.KafkaBrokers) > 0 && c.Audit.KafkaTopic == "" {
		return fmt.Errorf("audit kafka topic is required when brokers are set")
	}
	return nil
}

// UsesPostgres reports whether any component is backed by Postgres.
func (c *Config) UsesPostgres() bool {
	return c.Storage.Driver == DriverPostgres || c.Storage.ParticipationDriver == DriverPostgres
}
