// Package config manages the YAML configuration for the engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	// Backend is "sqlite" or "postgres".
	Backend       string `yaml:"backend"`
	SQLitePath    string `yaml:"sqlite_path"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	MaxConns      int    `yaml:"max_conns"`
	PseudonymSalt string `yaml:"pseudonym_salt"`
}

// CacheConfig selects the cache backend.
type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend   string `yaml:"backend"`
	RedisAddr string `yaml:"redis_addr"`
	Prefix    string `yaml:"prefix"`
}

// GraphConfig points at an optional FalkorDB instance.
type GraphConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// EngineConfig carries pipeline tunables.
type EngineConfig struct {
	SessionExpiry    time.Duration `yaml:"session_expiry"`
	PredictionTTL    time.Duration `yaml:"prediction_ttl"`
	IntegrationTTL   time.Duration `yaml:"integration_ttl"`
	SourceFanout     int           `yaml:"source_fanout"`
	MaxFollowUps     int           `yaml:"max_follow_ups"`
	HistoryDepth     int           `yaml:"history_depth"`
	ModelFlushEvery  time.Duration `yaml:"model_flush_every"`
	ExpirySweepEvery time.Duration `yaml:"expiry_sweep_every"`
}

// Config is the top-level YAML structure.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Cache  CacheConfig  `yaml:"cache"`
	Graph  GraphConfig  `yaml:"graph"`
	Engine EngineConfig `yaml:"engine"`
	// LogLevel is a zerolog level name: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file exists yet.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8420"},
		Store: StoreConfig{
			Backend:    "sqlite",
			SQLitePath: filepath.Join(DataDir(), "insight.db"),
			MaxConns:   4,
		},
		Cache: CacheConfig{
			Backend: "memory",
			Prefix:  "insight",
		},
		Graph: GraphConfig{
			Enabled: false,
			Addr:    "localhost:6379",
		},
		Engine: EngineConfig{
			SessionExpiry:    30 * time.Minute,
			PredictionTTL:    5 * time.Minute,
			IntegrationTTL:   5 * time.Minute,
			SourceFanout:     4,
			MaxFollowUps:     5,
			HistoryDepth:     10,
			ModelFlushEvery:  5 * time.Minute,
			ExpirySweepEvery: 10 * time.Minute,
		},
		LogLevel: "info",
	}
}

// DataDir returns the directory for databases and config, honoring
// INSIGHT_ENGINE_DATA when set.
func DataDir() string {
	if dir := os.Getenv("INSIGHT_ENGINE_DATA"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".insight-engine"
	}
	return filepath.Join(home, ".insight-engine")
}

// Load reads the YAML file at path. A missing file returns Default()
// (not an error); a malformed file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as YAML, creating parent directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Store.Backend == "postgres" && c.Store.PostgresDSN == "" {
		return fmt.Errorf("postgres backend requires postgres_dsn")
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
		return fmt.Errorf("redis backend requires redis_addr")
	}
	if c.Engine.SourceFanout < 1 {
		c.Engine.SourceFanout = 1
	}
	return nil
}
