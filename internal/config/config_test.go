package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	c := &Config{
		Environment: EnvironmentConfig{LogLevel: "info"},
		Dataset:     DatasetConfig{Path: "data/chains.parquet", Underlying: "SPY"},
		Session: SessionConfig{
			Timezone: "America/New_York",
			Start:    "09:30",
			End:      "16:00",
		},
		Filters: FiltersConfig{
			MinVolume:      5,
			MaxDTE:         45,
			StrikeRangePct: 0.15,
		},
		Server: ServerConfig{Port: 9444},
		Fetch:  FetchConfig{Concurrency: 4},
	}
	return c
}

func TestLoad_ExampleFile(t *testing.T) {
	configPath := filepath.Join("..", "..", "config.yaml.example")
	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "data/spy_chains.parquet", cfg.Dataset.Path)
	assert.Equal(t, "America/New_York", cfg.Session.Timezone)
	assert.True(t, cfg.Filters.IncludeExpiredRows())
}

func TestLoad_InvalidPath(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	require.Error(t, err)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
dataset:
  path: data/chains.parquet
surprise_section:
  foo: 1
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_DATASET_PATH", "/srv/chains.parquet")
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
dataset:
  path: ${TEST_DATASET_PATH}
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/chains.parquet", cfg.Dataset.Path)
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
dataset:
  path: data/chains.parquet
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Environment.LogLevel)
	assert.Equal(t, "America/New_York", cfg.Session.Timezone)
	assert.Equal(t, "09:30", cfg.Session.Start)
	assert.Equal(t, "16:00", cfg.Session.End)
	assert.Equal(t, int64(5), cfg.Filters.MinVolume)
	assert.Equal(t, 45, cfg.Filters.MaxDTE)
	assert.InDelta(t, 0.15, cfg.Filters.StrikeRangePct, 1e-9)
	assert.True(t, cfg.Filters.IncludeExpiredRows())
	assert.Equal(t, 9444, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing dataset path",
			mutate:  func(c *Config) { c.Dataset.Path = "" },
			wantErr: "dataset.path",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Environment.LogLevel = "loud" },
			wantErr: "log_level",
		},
		{
			name:    "bad timezone",
			mutate:  func(c *Config) { c.Session.Timezone = "Mars/Olympus" },
			wantErr: "session.timezone",
		},
		{
			name:    "session start after end",
			mutate:  func(c *Config) { c.Session.Start = "16:30" },
			wantErr: "must be before",
		},
		{
			name:    "malformed session clock",
			mutate:  func(c *Config) { c.Session.End = "4pm" },
			wantErr: "session.end",
		},
		{
			name:    "negative min volume",
			mutate:  func(c *Config) { c.Filters.MinVolume = -1 },
			wantErr: "min_volume",
		},
		{
			name:    "strike range out of bounds",
			mutate:  func(c *Config) { c.Filters.StrikeRangePct = 1.5 },
			wantErr: "strike_range_pct",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server.port",
		},
		{
			name:    "zero fetch concurrency",
			mutate:  func(c *Config) { c.Fetch.Concurrency = 0 },
			wantErr: "fetch.concurrency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestSessionBand(t *testing.T) {
	s := SessionConfig{Timezone: "America/New_York", Start: "09:30", End: "16:00"}

	startMin, endMin, err := s.Band()
	require.NoError(t, err)
	assert.Equal(t, 9*60+30, startMin)
	assert.Equal(t, 16*60, endMin)

	loc, err := s.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())
}
