// Package config loads and persists the application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Engine  EngineConfig  `yaml:"engine"`
	Log     LogConfig     `yaml:"log"`
	DB      DBConfig      `yaml:"db"`
	Cache   CacheConfig   `yaml:"cache"`
	Server  ServerConfig  `yaml:"server"`
}

// BackendConfig holds connection settings for the narration backend.
type BackendConfig struct {
	BaseURL string   `yaml:"base_url"`
	WSURL   string   `yaml:"ws_url"`
	Timeout Duration `yaml:"timeout"`
}

// EngineConfig holds the task window and sequencer timing settings.
type EngineConfig struct {
	PrefetchAhead    int      `yaml:"prefetch_ahead"`
	PendingTimeout   Duration `yaml:"pending_timeout"`
	ResubmitInterval Duration `yaml:"resubmit_interval"`
	StaleSweep       Duration `yaml:"stale_sweep"`
	ErrorClearAfter  Duration `yaml:"error_clear_after"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server LogSettings `yaml:"server"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig holds audio cache settings.
type CacheConfig struct {
	MaxAge Duration `yaml:"max_age"`
}

// ServerConfig holds local HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL: "http://127.0.0.1:5060/api",
			WSURL:   "ws://127.0.0.1:5060/ws",
			Timeout: Duration(30 * time.Second),
		},
		Engine: EngineConfig{
			PrefetchAhead:    3,
			PendingTimeout:   Duration(30 * time.Second),
			ResubmitInterval: Duration(1 * time.Second),
			StaleSweep:       Duration(5 * time.Second),
			ErrorClearAfter:  Duration(3 * time.Second),
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/roveldesk.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Path: "./data/roveldesk.db",
		},
		Cache: CacheConfig{
			MaxAge: Duration(2 * Week),
		},
		Server: ServerConfig{
			Address: "localhost:1921",
		},
	}
}

// Load reads the configuration from a YAML file, falling back to defaults.
// A missing file is created with the defaults so users have something to edit.
// The backend URLs can be overridden through the environment (ROVEL_BASE_URL,
// ROVEL_WS_URL) without being written back to disk.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to save config file: %w", err)
		}
	}

	if base := os.Getenv("ROVEL_BASE_URL"); base != "" {
		cfg.Backend.BaseURL = base
	}
	if ws := os.Getenv("ROVEL_WS_URL"); ws != "" {
		cfg.Backend.WSURL = ws
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to a YAML file.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) validate() error {
	if c.Engine.PrefetchAhead < 0 {
		return fmt.Errorf("engine.prefetch_ahead must not be negative, got %d", c.Engine.PrefetchAhead)
	}
	if c.Engine.PendingTimeout <= 0 {
		return fmt.Errorf("engine.pending_timeout must be positive, got %s", time.Duration(c.Engine.PendingTimeout))
	}
	if c.Engine.ResubmitInterval <= 0 {
		return fmt.Errorf("engine.resubmit_interval must be positive, got %s", time.Duration(c.Engine.ResubmitInterval))
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url must not be empty")
	}
	return nil
}
