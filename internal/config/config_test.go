package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, filepath.Join(DefaultDataDir(), "backups"), cfg.BackupDir)
	assert.Equal(t, filepath.Join(DefaultDataDir(), "schedules.json"), cfg.ScheduleFile)
	assert.True(t, cfg.Compression.Enabled)
	assert.Equal(t, "gzip", cfg.Compression.Algorithm)
	assert.Equal(t, DefaultCompressionLevel, cfg.Compression.Level)
	assert.Equal(t, DefaultWorkerLimit, cfg.Workers)
	assert.Equal(t, "table", cfg.Display.OutputFormat)
	require.NoError(t, cfg.Validate())
}

func TestConfig_ApplyDefaults_FillsOnlyUnsetFields(t *testing.T) {
	cfg := &Config{
		BackupDir: "/custom/backups",
		Compression: CompressionConfig{
			Algorithm: "zstd",
		},
	}
	cfg.ApplyDefaults()

	assert.Equal(t, "/custom/backups", cfg.BackupDir)
	assert.Equal(t, "zstd", cfg.Compression.Algorithm)
	assert.Equal(t, DefaultCompressionLevel, cfg.Compression.Level)
	assert.Equal(t, filepath.Join(DefaultDataDir(), "schedules.json"), cfg.ScheduleFile)
	assert.Equal(t, "table", cfg.Display.OutputFormat)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := NewDefaultConfig()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults pass", func(c *Config) {}, ""},
		{"missing backup dir", func(c *Config) { c.BackupDir = "" }, "backup directory is required"},
		{"missing schedule file", func(c *Config) { c.ScheduleFile = "" }, "schedule registry path is required"},
		{"verbose and quiet", func(c *Config) { c.Verbose = true; c.Quiet = true }, "mutually exclusive"},
		{"level too low", func(c *Config) { c.Compression.Level = 0 }, "compression level"},
		{"level too high", func(c *Config) { c.Compression.Level = 10 }, "compression level"},
		{"bad algorithm", func(c *Config) { c.Compression.Algorithm = "brotli" }, "unsupported algorithm"},
		{"bad output format", func(c *Config) { c.Display.OutputFormat = "xml" }, "invalid output format"},
		{"zero workers", func(c *Config) { c.Workers = 0 }, "worker count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
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

func TestConfig_Algorithm(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Compression.Algorithm = "lz4"
	assert.Equal(t, "lz4", string(cfg.Algorithm()))
}
