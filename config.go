package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the service configuration. Values come from DefaultConfig, then
// an optional YAML file, then the environment, then command-line flags.
type Config struct {
	HTTPAddr string    `yaml:"http_addr"`
	DataDir  string    `yaml:"data_dir"`
	OASFile  string    `yaml:"oas_file"`
	Redis    Redis     `yaml:"redis"`
	RateLim  RateLimit `yaml:"rate_limit"`
	Logging  Logging   `yaml:"logging"`
}

// Redis configures the optional cross-process write lock.
type Redis struct {
	Addr    string        `yaml:"addr"`
	LockKey string        `yaml:"lock_key"`
	LockTTL time.Duration `yaml:"lock_ttl"`
	Wait    time.Duration `yaml:"wait"`
}

// RateLimit configures per-client request limiting. RPS 0 disables it.
type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Logging contains logging configuration.
type Logging struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	return &Config{
		HTTPAddr: ":3000",
		DataDir:  "./data",
		OASFile:  "./openapi.yaml",
		Redis: Redis{
			LockKey: "inventory:store:lock",
			LockTTL: 10 * time.Second,
			Wait:    5 * time.Second,
		},
		RateLim: RateLimit{Burst: 20},
		Logging: Logging{Level: "info"},
	}
}

// LoadConfig returns DefaultConfig overlaid with the YAML file at path (when
// path is not empty) and then with the environment.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	// PORT is honoured for compatibility with container platforms; HTTP_ADDR wins.
	if v := getenv("PORT"); v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.HTTPAddr = ":" + v
	}
	if v := getenv("HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := getenv("DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := getenv("OAS_FILE"); v != "" {
		c.OASFile = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := getenv("RATE_LIMIT_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_RPS %q: %w", v, err)
		}
		c.RateLim.RPS = rps
	}
	return nil
}
