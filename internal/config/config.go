// CLAUDE:SUMMARY adfriend configuration: YAML file, .env loading, ADFRIEND_* overrides and defaults.
// Package config handles adfriend configuration from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ADFRIEND_"

// Config is the top-level adfriend configuration.
type Config struct {
	Debug    bool   `yaml:"debug"`
	LogLevel string `yaml:"log_level"`
	// TaxonomyFile is an optional YAML file merged over the built-in
	// ad taxonomy.
	TaxonomyFile string `yaml:"taxonomy_file"`

	Reminders RemindersConfig `yaml:"reminders"`
	Server    ServerConfig    `yaml:"server"`
	Browser   BrowserConfig   `yaml:"browser"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Observer  ObserverConfig  `yaml:"observer"`
}

// RemindersConfig controls the reminder store and service routing.
type RemindersConfig struct {
	DBPath string `yaml:"db_path"`
	// Service is the HTTP endpoint of a remote reminder service. Empty
	// serves reminders from the local store.
	Service string `yaml:"service"`
	// RoutesDB holds the connectivity routes table. Empty = DBPath.
	RoutesDB  string `yaml:"routes_db"`
	PurgeSpec string `yaml:"purge_spec"`
}

// ServerConfig controls the HTTP server of the serve command.
type ServerConfig struct {
	Addr    string `yaml:"addr"`
	MaxBody int64  `yaml:"max_body"`
}

// BrowserConfig controls Chrome for live mode.
type BrowserConfig struct {
	Remote   string `yaml:"remote"`
	Headless bool   `yaml:"headless"`
	Bin      string `yaml:"bin"`
}

// FetchConfig controls page acquisition for the rewrite proxy.
type FetchConfig struct {
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
	Rate      float64       `yaml:"rate"`
	Burst     int           `yaml:"burst"`
	MaxBody   int64         `yaml:"max_body"`
}

// ObserverConfig controls mutation batching on parsed documents.
type ObserverConfig struct {
	DebounceWindow time.Duration `yaml:"debounce_window"`
	MaxBuffer      int           `yaml:"max_buffer"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{Browser: BrowserConfig{Headless: true}}
	c.applyDefaults()
	return c
}

// Load reads path (optional), loads .env files from the working directory
// and applies ADFRIEND_* overrides, then defaults. A missing .env is not
// an error; a missing config file is, when path is set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: .env: %w", err)
	}
	cfg := &Config{Browser: BrowserConfig{Headless: true}}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Reminders.DBPath == "" {
		c.Reminders.DBPath = "adfriend.db"
	}
	if c.Reminders.RoutesDB == "" {
		c.Reminders.RoutesDB = c.Reminders.DBPath
	}
	if c.Reminders.PurgeSpec == "" {
		c.Reminders.PurgeSpec = "@daily"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8420"
	}
	if c.Server.MaxBody <= 0 {
		c.Server.MaxBody = 1 << 20
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "Mozilla/5.0 (compatible; adfriend/1.0)"
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.Fetch.Rate == 0 {
		c.Fetch.Rate = 2
	}
	if c.Fetch.Burst <= 0 {
		c.Fetch.Burst = 4
	}
	if c.Fetch.MaxBody <= 0 {
		c.Fetch.MaxBody = 10 << 20
	}
	if c.Observer.DebounceWindow <= 0 {
		c.Observer.DebounceWindow = 100 * time.Millisecond
	}
	if c.Observer.MaxBuffer <= 0 {
		c.Observer.MaxBuffer = 1000
	}
}

// applyEnv overlays ADFRIEND_* variables. Unparseable values are errors.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	var errs []error
	parse := func(key string, set func(string) error) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return
		}
		if err := set(v); err != nil {
			errs = append(errs, fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err))
		}
	}
	boolean := func(dst *bool) func(string) error {
		return func(v string) (err error) { *dst, err = strconv.ParseBool(v); return }
	}
	integer := func(dst *int64) func(string) error {
		return func(v string) (err error) { *dst, err = strconv.ParseInt(v, 10, 64); return }
	}
	duration := func(dst *time.Duration) func(string) error {
		return func(v string) (err error) { *dst, err = time.ParseDuration(v); return }
	}

	parse("DEBUG", boolean(&c.Debug))
	str("LOG_LEVEL", &c.LogLevel)
	str("TAXONOMY_FILE", &c.TaxonomyFile)

	str("REMINDERS_DB_PATH", &c.Reminders.DBPath)
	str("REMINDERS_SERVICE", &c.Reminders.Service)
	str("REMINDERS_ROUTES_DB", &c.Reminders.RoutesDB)
	str("REMINDERS_PURGE_SPEC", &c.Reminders.PurgeSpec)

	str("SERVER_ADDR", &c.Server.Addr)
	parse("SERVER_MAX_BODY", integer(&c.Server.MaxBody))

	str("BROWSER_REMOTE", &c.Browser.Remote)
	parse("BROWSER_HEADLESS", boolean(&c.Browser.Headless))
	str("BROWSER_BIN", &c.Browser.Bin)

	str("FETCH_USER_AGENT", &c.Fetch.UserAgent)
	parse("FETCH_TIMEOUT", duration(&c.Fetch.Timeout))
	parse("FETCH_RATE", func(v string) (err error) { c.Fetch.Rate, err = strconv.ParseFloat(v, 64); return })
	parse("FETCH_BURST", func(v string) (err error) { c.Fetch.Burst, err = strconv.Atoi(v); return })
	parse("FETCH_MAX_BODY", integer(&c.Fetch.MaxBody))

	parse("OBSERVER_DEBOUNCE_WINDOW", duration(&c.Observer.DebounceWindow))
	parse("OBSERVER_MAX_BUFFER", func(v string) (err error) { c.Observer.MaxBuffer, err = strconv.Atoi(v); return })

	return errors.Join(errs...)
}

// Level returns the slog level for LogLevel. Debug forces LevelDebug.
func (c *Config) Level() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
