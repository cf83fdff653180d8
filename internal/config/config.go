// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type TransportConfig struct {
	URL              string        `yaml:"url"` // ws:// or wss:// endpoint
	InitialBackoff   time.Duration `yaml:"initial_backoff"`
	MaxBackoff       time.Duration `yaml:"max_backoff"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`
}

type SyncConfig struct {
	// RetryDelay/RetryAttempts bound the per-job pending queue used when a
	// progress event arrives before its message exists locally.
	RetryDelay    time.Duration `yaml:"retry_delay"`
	RetryAttempts int           `yaml:"retry_attempts"`
	// CancelGrace is the pause between a cancel acknowledgement and the
	// message deletion, leaving room for a UI exit transition.
	CancelGrace    time.Duration `yaml:"cancel_grace"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
	TerminalMaxAge time.Duration `yaml:"terminal_max_age"`
}

type APIConfig struct {
	BaseURL string        `yaml:"base_url"` // REST base, e.g. https://api.example.com
	Timeout time.Duration `yaml:"timeout"`
	Token   string        `yaml:"token"` // bearer token, optional
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type StoreConfig struct {
	// Backend selects the MessageStore implementation: memory|redis|postgres.
	Backend string `yaml:"backend"`
}

type WebConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Transport TransportConfig `yaml:"transport"`
	Sync      SyncConfig      `yaml:"sync"`
	API       APIConfig       `yaml:"api"`
	Redis     RedisConfig     `yaml:"redis"`
	Database  DatabaseConfig  `yaml:"database"`
	Store     StoreConfig     `yaml:"store"`
	Web       WebConfig       `yaml:"web"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero values. Exposed so tests can build configs without
// a file on disk.
func (cfg *Config) ApplyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Transport.InitialBackoff <= 0 {
		cfg.Transport.InitialBackoff = time.Second
	}
	if cfg.Transport.MaxBackoff <= 0 {
		cfg.Transport.MaxBackoff = 30 * time.Second
	}
	if cfg.Transport.HandshakeTimeout <= 0 {
		cfg.Transport.HandshakeTimeout = 10 * time.Second
	}
	if cfg.Transport.PingInterval <= 0 {
		cfg.Transport.PingInterval = 25 * time.Second
	}
	if cfg.Sync.RetryDelay <= 0 {
		cfg.Sync.RetryDelay = 300 * time.Millisecond
	}
	if cfg.Sync.RetryAttempts <= 0 {
		cfg.Sync.RetryAttempts = 3
	}
	if cfg.Sync.CancelGrace <= 0 {
		cfg.Sync.CancelGrace = 800 * time.Millisecond
	}
	if cfg.Sync.SweepInterval <= 0 {
		cfg.Sync.SweepInterval = 30 * time.Second
	}
	if cfg.Sync.TerminalMaxAge <= 0 {
		cfg.Sync.TerminalMaxAge = 15 * time.Second
	}
	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = 15 * time.Second
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "memory"
	}
	if cfg.Web.Port <= 0 {
		cfg.Web.Port = 8090
	}
}
