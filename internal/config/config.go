// Package config loads readerstore configuration from the environment.
//
// Variables use the READERSTORE_ prefix and "__" between nesting levels, so
// READERSTORE_STORE__SURREAL__URL sets store.surreal.url. A .env file, when
// present, is loaded into the process environment first.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const Prefix = "READERSTORE_"

type Config struct {
	Env     string        `koanf:"env" validate:"required,oneof=development test production"`
	Log     LogConfig     `koanf:"log"`
	Store   StoreConfig   `koanf:"store"`
	Server  ServerConfig  `koanf:"server"`
	Sweeper SweeperConfig `koanf:"sweeper"`
	Quality QualityConfig `koanf:"quality"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Pretty bool   `koanf:"pretty"`
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Backend    string        `koanf:"backend" validate:"oneof=memory sqlite surrealdb mongodb"`
	SQLitePath string        `koanf:"sqlite_path" validate:"required_if=Backend sqlite"`
	Surreal    SurrealConfig `koanf:"surreal"`
	Mongo      MongoConfig   `koanf:"mongo"`
}

type SurrealConfig struct {
	URL       string `koanf:"url"`
	Namespace string `koanf:"namespace"`
	Database  string `koanf:"database"`
	Username  string `koanf:"username"`
	Password  string `koanf:"password"`
}

type MongoConfig struct {
	URI      string `koanf:"uri"`
	Database string `koanf:"database"`
}

type ServerConfig struct {
	GrpcPort        int           `koanf:"grpc_port" validate:"min=1,max=65535"`
	MetricsPort     int           `koanf:"metrics_port" validate:"min=1,max=65535,nefield=GrpcPort"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// SweeperConfig drives the pending-cascade sweeper. A zero interval
// disables it.
type SweeperConfig struct {
	Interval time.Duration `koanf:"interval" validate:"gte=0"`
	Batch    int           `koanf:"batch" validate:"gte=0"`
	MinAge   time.Duration `koanf:"min_age" validate:"gte=0"`
}

// QualityConfig drives periodic quality recomputation. A zero interval
// disables it.
type QualityConfig struct {
	Interval     time.Duration `koanf:"interval" validate:"gte=0"`
	Status       string        `koanf:"status" validate:"oneof=pending approved rejected hidden"`
	Batch        int           `koanf:"batch" validate:"gte=0"`
	HalfLifeDays float64       `koanf:"half_life_days" validate:"gte=0"`
}

// Default returns the configuration used for unset keys.
func Default() Config {
	return Config{
		Env: "development",
		Log: LogConfig{Level: "info"},
		Store: StoreConfig{
			Backend:    "memory",
			SQLitePath: "readerstore.db",
			Surreal: SurrealConfig{
				URL:       "ws://localhost:8000/rpc",
				Namespace: "readerstore",
				Database:  "readerstore",
				Username:  "root",
				Password:  "root",
			},
			Mongo: MongoConfig{URI: "mongodb://localhost:27017", Database: "readerstore"},
		},
		Server: ServerConfig{GrpcPort: 50051, MetricsPort: 9090, ShutdownTimeout: 10 * time.Second},
		Sweeper: SweeperConfig{
			Interval: time.Minute,
			Batch:    100,
			MinAge:   30 * time.Second,
		},
		Quality: QualityConfig{
			Interval:     15 * time.Minute,
			Status:       "approved",
			Batch:        200,
			HalfLifeDays: 30,
		},
	}
}

// EnvKey maps READERSTORE_STORE__SQLITE_PATH to store.sqlite_path.
func EnvKey(name string) string {
	name = strings.TrimPrefix(name, Prefix)
	return strings.ReplaceAll(strings.ToLower(name), "__", ".")
}

// Load reads dotenv files (missing ones are skipped), then the environment,
// over Default(), and validates the result.
func Load(dotenv ...string) (*Config, error) {
	for _, path := range dotenv {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	k := koanf.New(".")
	if err := k.Load(env.Provider(Prefix, ".", EnvKey), nil); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and backend-specific requirements.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch c.Store.Backend {
	case "surrealdb":
		s := c.Store.Surreal
		if s.URL == "" || s.Namespace == "" || s.Database == "" {
			return errors.New("invalid config: store.surreal needs url, namespace and database")
		}
	case "mongodb":
		if c.Store.Mongo.URI == "" || c.Store.Mongo.Database == "" {
			return errors.New("invalid config: store.mongo needs uri and database")
		}
	}
	return nil
}
