package trusty

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the process configuration. Values come from an optional YAML
// file overridden by TRUSTY_* environment variables; defaults are applied
// first so file and environment only ever narrow them.
type Config struct {
	Addr     string         `yaml:"addr"`
	Port     int            `yaml:"port"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Cache    ServerCache    `yaml:"cache"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RedisConfig enables the role-membership mirror when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ServerCache enables the decision cache when Enabled is set.
type ServerCache struct {
	Enabled     bool          `yaml:"enabled"`
	NumCounters int64         `yaml:"num_counters"`
	MaxCost     int64         `yaml:"max_cost"`
	BufferItems int64         `yaml:"buffer_items"`
	TTL         time.Duration `yaml:"ttl"`
}

// UnmarshalYAML accepts ttl as a duration string ("30s", "5m").
func (s *ServerCache) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Enabled     bool   `yaml:"enabled"`
		NumCounters int64  `yaml:"num_counters"`
		MaxCost     int64  `yaml:"max_cost"`
		BufferItems int64  `yaml:"buffer_items"`
		TTL         string `yaml:"ttl"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	s.Enabled = raw.Enabled
	s.NumCounters = raw.NumCounters
	s.MaxCost = raw.MaxCost
	s.BufferItems = raw.BufferItems
	if raw.TTL != "" {
		d, err := time.ParseDuration(raw.TTL)
		if err != nil {
			return fmt.Errorf("cache ttl: %w", err)
		}
		s.TTL = d
	}
	return nil
}

// CacheConfig converts the section into decision cache settings.
func (s ServerCache) CacheConfig() CacheConfig {
	return CacheConfig{
		NumCounters: s.NumCounters,
		MaxCost:     s.MaxCost,
		BufferItems: s.BufferItems,
		TTL:         s.TTL,
	}
}

// ListenAddr joins Addr and Port into a net listen address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Addr, c.Port)
}

// LoadConfig builds a Config from defaults, then the YAML file at path (if
// non-empty), then TRUSTY_* environment variables.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Addr: "0.0.0.0",
		Port: 3030,
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "trusty.db",
		},
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := envconfig.Process("trusty", cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	return cfg, nil
}
