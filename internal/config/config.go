// Package config holds the membergraph process configuration. Values start
// from Default, are overlaid by a YAML file and finally by command-line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	GraphQL GraphQLConfig `yaml:"graphql"`
	Store   StoreConfig   `yaml:"store"`
	Log     LogConfig     `yaml:"log"`
	Otel    OtelConfig    `yaml:"otel"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	Timeout      time.Duration `yaml:"timeout"`
	Pretty       bool          `yaml:"pretty"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	CORS         []string      `yaml:"cors"`
}

type GraphQLConfig struct {
	// MaxDepth bounds the selection depth of every operation.
	MaxDepth int `yaml:"max_depth"`
	// MaxBatch caps the keys per batch call; 0 means unbounded.
	MaxBatch int `yaml:"max_batch"`
	// Introspection serves __schema and __type.
	Introspection bool `yaml:"introspection"`
}

type StoreConfig struct {
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`
	Migrate bool   `yaml:"migrate"`
	// Seed is an optional YAML file with rows loaded at startup.
	Seed string `yaml:"seed"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type OtelConfig struct {
	Endpoint string `yaml:"endpoint"`
	Service  string `yaml:"service"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Default returns a configuration that serves an in-memory store on :8080.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8080",
			Timeout:      10 * time.Second,
			MaxBodyBytes: 1 << 20,
		},
		GraphQL: GraphQLConfig{MaxDepth: 5, Introspection: true},
		Store:   StoreConfig{Driver: DriverMemory},
		Log:     LogConfig{Level: "info", Format: "text"},
		Otel:    OtelConfig{Service: "membergraph"},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// Load reads a YAML file over Default. An empty path returns the defaults.
// Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()
	if err := Decode(f, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode overlays the YAML document read from r onto cfg.
func Decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Validate reports the first setting that cannot be served.
func (c *Config) Validate() error {
	if c.GraphQL.MaxDepth < 1 {
		return fmt.Errorf("graphql max_depth must be at least 1, got: %d", c.GraphQL.MaxDepth)
	}
	if c.GraphQL.MaxBatch < 0 {
		return fmt.Errorf("graphql max_batch must not be negative, got: %d", c.GraphQL.MaxBatch)
	}
	if c.Server.Timeout < 0 {
		return fmt.Errorf("server timeout must not be negative, got: %s", c.Server.Timeout)
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store dsn is required for driver %s", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.Metrics.Enabled && (c.Metrics.Path == "" || c.Metrics.Path[0] != '/') {
		return fmt.Errorf("metrics path must start with /, got: %q", c.Metrics.Path)
	}
	return nil
}
