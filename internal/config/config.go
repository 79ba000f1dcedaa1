package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Integrity policies applied when the stored chain fails verification
const (
	PolicyWarn  = "warn"
	PolicyBlock = "block"
)

// Ledger save modes
const (
	SaveModeAppend  = "append"
	SaveModeRewrite = "rewrite"
)

// Config represents the application configuration
type Config struct {
	Server ServerConfig `yaml:"server"`
	Pebble PebbleConfig `yaml:"pebble"`
	Ledger LedgerConfig `yaml:"ledger"`
}

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// PebbleConfig represents the Pebble database configuration
type PebbleConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
	CacheMB  int    `yaml:"cache_mb"`
}

// LedgerConfig represents the vote ledger behaviour
type LedgerConfig struct {
	IntegrityPolicy  string `yaml:"integrity_policy"`   // "warn" or "block"
	SaveMode         string `yaml:"save_mode"`          // "append" or "rewrite"
	MaxAppendRetries int    `yaml:"max_append_retries"` // retries after a head conflict
	VerifyCacheTTL   int    `yaml:"verify_cache_ttl"`   // seconds, 0 disables caching
}

// Default returns the configuration used when no file or env override is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Pebble: PebbleConfig{
			Path:    "./data/pebble",
			CacheMB: 64,
		},
		Ledger: LedgerConfig{
			IntegrityPolicy:  PolicyWarn,
			SaveMode:         SaveModeAppend,
			MaxAppendRetries: 3,
			VerifyCacheTTL:   30,
		},
	}
}

// Load loads configuration from a YAML file and environment variables
func Load(path string) (*Config, error) {
	cfg := Default()

	// Load from YAML file if it exists
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	cfg.loadEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated and numeric settings
func (c *Config) Validate() error {
	switch c.Ledger.IntegrityPolicy {
	case PolicyWarn, PolicyBlock:
	default:
		return fmt.Errorf("invalid ledger.integrity_policy %q: must be %q or %q", c.Ledger.IntegrityPolicy, PolicyWarn, PolicyBlock)
	}
	switch c.Ledger.SaveMode {
	case SaveModeAppend, SaveModeRewrite:
	default:
		return fmt.Errorf("invalid ledger.save_mode %q: must be %q or %q", c.Ledger.SaveMode, SaveModeAppend, SaveModeRewrite)
	}
	if c.Ledger.MaxAppendRetries < 0 {
		return fmt.Errorf("invalid ledger.max_append_retries %d", c.Ledger.MaxAppendRetries)
	}
	if c.Ledger.VerifyCacheTTL < 0 {
		return fmt.Errorf("invalid ledger.verify_cache_ttl %d", c.Ledger.VerifyCacheTTL)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if !c.Pebble.InMemory && c.Pebble.Path == "" {
		return fmt.Errorf("pebble.path is required unless pebble.in_memory is set")
	}
	return nil
}

func (c *Config) loadEnv() {
	// Server config
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}

	// Pebble config
	if path := os.Getenv("PEBBLE_PATH"); path != "" {
		c.Pebble.Path = path
	}
	if inMemory := os.Getenv("PEBBLE_IN_MEMORY"); inMemory != "" {
		c.Pebble.InMemory = inMemory == "true" || inMemory == "1"
	}

	// Ledger config
	if policy := os.Getenv("LEDGER_INTEGRITY_POLICY"); policy != "" {
		c.Ledger.IntegrityPolicy = policy
	}
	if mode := os.Getenv("LEDGER_SAVE_MODE"); mode != "" {
		c.Ledger.SaveMode = mode
	}
	if retries := os.Getenv("LEDGER_MAX_APPEND_RETRIES"); retries != "" {
		if r, err := strconv.Atoi(retries); err == nil {
			c.Ledger.MaxAppendRetries = r
		}
	}
	if ttl := os.Getenv("LEDGER_VERIFY_CACHE_TTL"); ttl != "" {
		if s, err := strconv.Atoi(ttl); err == nil {
			c.Ledger.VerifyCacheTTL = s
		}
	}
}
