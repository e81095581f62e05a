// Package config loads service settings from the environment. A .env file in
// the working directory is read first when present; real environment
// variables win over it.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	ServiceName   string `envconfig:"SERVICE_NAME" default:"seatsync"`
	Port          string `envconfig:"PORT" default:"8080"`
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"memory"`

	Database DatabaseConfig `envconfig:"DB"`
	Redis    RedisConfig    `envconfig:"REDIS"`
	Log      LogConfig      `envconfig:"LOG"`
}

// DatabaseConfig holds PostgreSQL connection settings (DB_*).
type DatabaseConfig struct {
	Host     string `envconfig:"HOST" default:"localhost"`
	Port     int    `envconfig:"PORT" default:"5432"`
	User     string `envconfig:"USER" default:"postgres"`
	Password string `envconfig:"PASSWORD" default:"postgres"`
	Name     string `envconfig:"NAME" default:"seatsync"`
	SSLMode  string `envconfig:"SSLMODE" default:"disable"`
	MaxConns int32  `envconfig:"MAX_CONNS" default:"20"`
}

// DSN builds a libpq-compatible connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig holds venue cache settings (REDIS_*). An empty address turns
// the cache off.
type RedisConfig struct {
	Addr     string        `envconfig:"ADDR"`
	Password string        `envconfig:"PASSWORD"`
	DB       int           `envconfig:"DB" default:"0"`
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"5m"`
}

// LogConfig holds logger settings (LOG_*).
type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"json"`
}

// Load reads .env (if any) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	switch c.StorageDriver {
	case StorageMemory, StoragePostgres:
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	return &c, nil
}
