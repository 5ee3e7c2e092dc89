// Package config holds the application configuration and its defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"backup-dr/internal/backup"
)

// Defaults applied when neither flags, config file nor environment set a
// value
const (
	DefaultCompressionLevel = 6
	DefaultWorkerLimit      = 4
	DefaultTimeout          = 30 * time.Second
)

// Config is the full application configuration, populated by viper from the
// config file, environment (BACKUP_DR_*) and CLI flags.
type Config struct {
	// BackupDir is the backup repository root
	BackupDir string `mapstructure:"backup_dir"`

	// ScheduleFile is the schedule registry location
	ScheduleFile string `mapstructure:"schedule_file"`

	Compression CompressionConfig `mapstructure:"compression"`

	Verbose bool   `mapstructure:"verbose"`
	Quiet   bool   `mapstructure:"quiet"`
	LogFile string `mapstructure:"log_file"`

	// Workers bounds per-run file concurrency
	Workers int `mapstructure:"workers"`

	Display DisplayConfig `mapstructure:"display"`
}

// CompressionConfig configures the default codec for new backups
type CompressionConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Algorithm string `mapstructure:"algorithm"`
	Level     int    `mapstructure:"level"`
}

// DisplayConfig configures output rendering
type DisplayConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	OutputFormat string `mapstructure:"output_format"`
}

// DefaultDataDir returns the per-user state directory (~/.backup-dr)
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".backup-dr"
	}
	return filepath.Join(home, ".backup-dr")
}

// NewDefaultConfig returns a Config with every default applied
func NewDefaultConfig() *Config {
	dataDir := DefaultDataDir()
	return &Config{
		BackupDir:    filepath.Join(dataDir, "backups"),
		ScheduleFile: filepath.Join(dataDir, "schedules.json"),
		Compression: CompressionConfig{
			Enabled:   true,
			Algorithm: string(backup.AlgorithmGzip),
			Level:     DefaultCompressionLevel,
		},
		Workers: DefaultWorkerLimit,
		Display: DisplayConfig{
			ColorEnabled: true,
			OutputFormat: "table",
		},
	}
}

// ApplyDefaults fills unset fields with their defaults
func (c *Config) ApplyDefaults() {
	defaults := NewDefaultConfig()
	if c.BackupDir == "" {
		c.BackupDir = defaults.BackupDir
	}
	if c.ScheduleFile == "" {
		c.ScheduleFile = defaults.ScheduleFile
	}
	if c.Compression.Algorithm == "" {
		c.Compression.Algorithm = defaults.Compression.Algorithm
	}
	if c.Compression.Level == 0 {
		c.Compression.Level = defaults.Compression.Level
	}
	if c.Workers == 0 {
		c.Workers = defaults.Workers
	}
	if c.Display.OutputFormat == "" {
		c.Display.OutputFormat = defaults.Display.OutputFormat
	}
}

// Validate checks the configuration for contradictions and bad values
func (c *Config) Validate() error {
	var errs backup.ValidationErrors

	if c.BackupDir == "" {
		errs.Add("backup_dir", "backup directory is required", c.BackupDir)
	}
	if c.ScheduleFile == "" {
		errs.Add("schedule_file", "schedule registry path is required", c.ScheduleFile)
	}
	if c.Verbose && c.Quiet {
		errs.Add("verbose", "verbose and quiet are mutually exclusive", nil)
	}
	if c.Compression.Level < 1 || c.Compression.Level > 9 {
		errs.Add("compression.level", "compression level must be between 1 and 9", c.Compression.Level)
	}

	switch backup.CompressionAlgorithm(c.Compression.Algorithm) {
	case backup.AlgorithmGzip, backup.AlgorithmZstd, backup.AlgorithmLZ4:
	default:
		errs.Add("compression.algorithm",
			fmt.Sprintf("unsupported algorithm %q (gzip, zstd, lz4)", c.Compression.Algorithm),
			c.Compression.Algorithm)
	}

	validFormats := []string{"table", "json", "yaml", "compact"}
	formatOK := false
	for _, f := range validFormats {
		if c.Display.OutputFormat == f {
			formatOK = true
			break
		}
	}
	if !formatOK {
		errs.Add("display.output_format",
			fmt.Sprintf("invalid output format %q (must be one of: %s)",
				c.Display.OutputFormat, strings.Join(validFormats, ", ")),
			c.Display.OutputFormat)
	}

	if c.Workers < 1 {
		errs.Add("workers", "worker count must be at least 1", c.Workers)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// Algorithm returns the configured codec as a typed value
func (c *Config) Algorithm() backup.CompressionAlgorithm {
	return backup.CompressionAlgorithm(c.Compression.Algorithm)
}
