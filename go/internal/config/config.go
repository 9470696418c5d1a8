package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcdev12/scoutsync/go/internal/environment"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config is everything a scouting device process needs. Values come from
// defaults, then the YAML file, then SCOUT_* environment variables.
type Config struct {
	Backend struct {
		URL            string        `yaml:"url"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
		PingTimeout    time.Duration `yaml:"ping_timeout"`
	} `yaml:"backend"`

	Environment struct {
		ProbeInterval time.Duration `yaml:"probe_interval"`
		// Hints stands in for the platform's connection estimates; nil
		// means none are available.
		Hints *environment.Hints `yaml:"hints"`
	} `yaml:"environment"`

	Claims struct {
		PollInterval time.Duration `yaml:"poll_interval"`
		Debounce     time.Duration `yaml:"debounce"`
	} `yaml:"claims"`

	Scouting struct {
		AutosaveInterval time.Duration `yaml:"autosave_interval"`
	} `yaml:"scouting"`

	DataDir  string `yaml:"data_dir"`
	LogLevel string `yaml:"log_level"`

	NATS struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
		StreamName    string `yaml:"stream_name"`
	} `yaml:"nats"`

	Monitor struct {
		Addr            string        `yaml:"addr"`
		RefreshInterval time.Duration `yaml:"refresh_interval"`
	} `yaml:"monitor"`
}

// Default returns the built-in configuration.
func Default() *Config {
	c := &Config{}
	c.Backend.URL = "http://localhost:8000"
	c.Backend.RequestTimeout = 30 * time.Second
	c.Backend.PingTimeout = 4 * time.Second
	c.Environment.ProbeInterval = 4500 * time.Millisecond
	c.Claims.PollInterval = 300 * time.Millisecond
	c.Claims.Debounce = 300 * time.Millisecond
	c.Scouting.AutosaveInterval = 3 * time.Second
	c.DataDir = "."
	c.LogLevel = "info"
	c.NATS.SubjectPrefix = "scouting"
	c.Monitor.Addr = ":8090"
	c.Monitor.RefreshInterval = 2 * time.Second
	return c
}

// Load reads an optional .env file, then the YAML file at path (a missing
// file is not an error), then environment overrides.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Backend.URL = getEnv("SCOUT_BACKEND_URL", c.Backend.URL)
	c.DataDir = getEnv("SCOUT_DATA_DIR", c.DataDir)
	c.LogLevel = getEnv("SCOUT_LOG_LEVEL", c.LogLevel)
	c.NATS.URL = getEnv("SCOUT_NATS_URL", c.NATS.URL)
	c.Monitor.Addr = getEnv("SCOUT_MONITOR_ADDR", c.Monitor.Addr)
}

// Validate rejects values the components cannot run with.
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return errors.New("backend url is required")
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	for name, d := range map[string]time.Duration{
		"backend.request_timeout":    c.Backend.RequestTimeout,
		"backend.ping_timeout":       c.Backend.PingTimeout,
		"environment.probe_interval": c.Environment.ProbeInterval,
		"claims.poll_interval":       c.Claims.PollInterval,
		"claims.debounce":            c.Claims.Debounce,
		"scouting.autosave_interval": c.Scouting.AutosaveInterval,
		"monitor.refresh_interval":   c.Monitor.RefreshInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

// Level returns the configured zerolog level.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
