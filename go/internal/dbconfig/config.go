package dbconfig

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	DriverName   = "sqlite"
	DefaultFile  = "scoutsync.db"
	defaultBusy  = 5 * time.Second
	memoryTarget = ":memory:"
)

// Config holds settings for the device-local SQLite database.
type Config struct {
	Path        string
	BusyTimeout time.Duration
	JournalMode string
	Synchronous string
}

// NewConfig places the database file inside dataDir.
func NewConfig(dataDir string) Config {
	return Config{
		Path:        filepath.Join(dataDir, DefaultFile),
		BusyTimeout: defaultBusy,
		JournalMode: "WAL",
		Synchronous: "NORMAL",
	}
}

// NewConfigFromEnv reads SCOUT_DB_* environment variables (with defaults).
func NewConfigFromEnv(dataDir string) Config {
	cfg := NewConfig(dataDir)
	cfg.Path = getEnv("SCOUT_DB_PATH", cfg.Path)
	cfg.JournalMode = getEnv("SCOUT_DB_JOURNAL_MODE", cfg.JournalMode)

	if ms, err := strconv.Atoi(getEnv("SCOUT_DB_BUSY_TIMEOUT_MS", "")); err == nil && ms >= 0 {
		cfg.BusyTimeout = time.Duration(ms) * time.Millisecond
	}
	return cfg
}

// InMemory reports whether the config targets a throwaway database.
func (c Config) InMemory() bool {
	return c.Path == memoryTarget || c.Path == ""
}

// DSN returns the modernc.org/sqlite connection string with pragmas applied
// on every new connection.
func (c Config) DSN() string {
	pragmas := url.Values{}
	pragmas.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	pragmas.Add("_pragma", "foreign_keys(1)")
	if c.JournalMode != "" && !c.InMemory() {
		pragmas.Add("_pragma", fmt.Sprintf("journal_mode(%s)", c.JournalMode))
	}
	if c.Synchronous != "" {
		pragmas.Add("_pragma", fmt.Sprintf("synchronous(%s)", c.Synchronous))
	}

	target := c.Path
	if c.InMemory() {
		target = memoryTarget
	}
	return fmt.Sprintf("file:%s?%s", target, pragmas.Encode())
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
