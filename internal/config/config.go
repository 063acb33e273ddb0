// Package config provides configuration management for the chain service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// Filter defaults
const (
	// defaultMinVolume is the liquidity floor applied when filters.min_volume is unset.
	defaultMinVolume = 5
	// defaultMaxDTE is the maximum days-to-expiry kept when filters.max_dte is unset.
	defaultMaxDTE = 45
	// defaultStrikeRangePct is the strike band around the underlying estimate
	// when filters.strike_range_pct is unset.
	defaultStrikeRangePct = 0.15
)

// Session defaults
const (
	defaultTimezone     = "America/New_York"
	defaultSessionStart = "09:30"
	defaultSessionEnd   = "16:00"
)

const defaultServerPort = 9444

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Dataset     DatasetConfig     `yaml:"dataset"`
	Session     SessionConfig     `yaml:"session"`
	Filters     FiltersConfig     `yaml:"filters"`
	Server      ServerConfig      `yaml:"server"`
	Fetch       FetchConfig       `yaml:"fetch"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// DatasetConfig defines the historical dataset source.
type DatasetConfig struct {
	// Path is the columnar dataset file loaded eagerly at startup.
	Path string `yaml:"path"`
	// Underlying is informational; the loader reports the ticker found in the
	// data when the source carries one.
	Underlying string `yaml:"underlying"`
}

// SessionConfig defines the regular trading session band used to scope
// date-level queries.
type SessionConfig struct {
	Timezone string `yaml:"timezone"` // e.g., "America/New_York"
	Start    string `yaml:"start"`    // "HH:MM", inclusive
	End      string `yaml:"end"`      // "HH:MM", inclusive
}

// FiltersConfig defines the default per-day chain filters.
type FiltersConfig struct {
	MinVolume      int64   `yaml:"min_volume"`
	MaxDTE         int     `yaml:"max_dte"`
	StrikeRangePct float64 `yaml:"strike_range_pct"`
	// IncludeExpired keeps rows whose days-to-expiry is negative (stale rows
	// in a historical snapshot). Defaults to true, which also keeps same-day
	// 0DTE rows captured at or past expiry.
	IncludeExpired *bool `yaml:"include_expired"`
}

// ServerConfig defines the read API settings.
type ServerConfig struct {
	Port      int    `yaml:"port"`
	AuthToken string `yaml:"auth_token"`
}

// FetchConfig defines the dataset acquisition settings used by cmd/fetch.
type FetchConfig struct {
	BaseURL      string `yaml:"base_url"`
	DestDir      string `yaml:"dest_dir"`
	ManifestPath string `yaml:"manifest_path"`
	Concurrency  int    `yaml:"concurrency"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Environment.LogLevel == "" {
		c.Environment.LogLevel = "info"
	}
	if c.Session.Timezone == "" {
		c.Session.Timezone = defaultTimezone
	}
	if c.Session.Start == "" {
		c.Session.Start = defaultSessionStart
	}
	if c.Session.End == "" {
		c.Session.End = defaultSessionEnd
	}
	if c.Filters.MinVolume == 0 {
		c.Filters.MinVolume = defaultMinVolume
	}
	if c.Filters.MaxDTE == 0 {
		c.Filters.MaxDTE = defaultMaxDTE
	}
	if c.Filters.StrikeRangePct == 0 {
		c.Filters.StrikeRangePct = defaultStrikeRangePct
	}
	if c.Filters.IncludeExpired == nil {
		t := true
		c.Filters.IncludeExpired = &t
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultServerPort
	}
	if c.Fetch.Concurrency == 0 {
		c.Fetch.Concurrency = 4
	}
}

// Validate checks that all configuration values are valid and consistent.
func (c *Config) Validate() error {
	switch c.Environment.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("environment.log_level must be one of debug, info, warn, error")
	}

	if c.Dataset.Path == "" {
		return fmt.Errorf("dataset.path is required")
	}

	if _, err := time.LoadLocation(c.Session.Timezone); err != nil {
		return fmt.Errorf("session.timezone %q: %w", c.Session.Timezone, err)
	}

	startMin, err := parseClock(c.Session.Start)
	if err != nil {
		return fmt.Errorf("session.start: %w", err)
	}
	endMin, err := parseClock(c.Session.End)
	if err != nil {
		return fmt.Errorf("session.end: %w", err)
	}
	if startMin >= endMin {
		return fmt.Errorf("session.start %q must be before session.end %q", c.Session.Start, c.Session.End)
	}

	if c.Filters.MinVolume < 0 {
		return fmt.Errorf("filters.min_volume must be >= 0")
	}
	if c.Filters.MaxDTE < 0 {
		return fmt.Errorf("filters.max_dte must be >= 0")
	}
	if c.Filters.StrikeRangePct < 0 || c.Filters.StrikeRangePct >= 1 {
		return fmt.Errorf("filters.strike_range_pct must be in [0, 1)")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535]")
	}

	if c.Fetch.Concurrency < 1 {
		return fmt.Errorf("fetch.concurrency must be >= 1")
	}

	return nil
}

// Location returns the exchange time zone for the session.
func (c *SessionConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading session timezone: %w", err)
	}
	return loc, nil
}

// Band returns the session start and end as minutes past midnight.
func (c *SessionConfig) Band() (startMin, endMin int, err error) {
	startMin, err = parseClock(c.Start)
	if err != nil {
		return 0, 0, fmt.Errorf("session start: %w", err)
	}
	endMin, err = parseClock(c.End)
	if err != nil {
		return 0, 0, fmt.Errorf("session end: %w", err)
	}
	return startMin, endMin, nil
}

// IncludeExpiredRows reports the negative-DTE policy, defaulting to true.
func (c *FiltersConfig) IncludeExpiredRows() bool {
	if c.IncludeExpired == nil {
		return true
	}
	return *c.IncludeExpired
}

// parseClock parses "HH:MM" into minutes past midnight.
func parseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock value %q out of range", s)
	}
	return h*60 + m, nil
}
