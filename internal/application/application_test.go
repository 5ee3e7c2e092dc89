package application

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backup-dr/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.NewDefaultConfig()
	cfg.BackupDir = filepath.Join(dir, "backups")
	cfg.ScheduleFile = filepath.Join(dir, "schedules.json")
	return cfg
}

func TestNew_AssemblesComponents(t *testing.T) {
	app, err := New(testConfig(t))
	require.NoError(t, err)
	defer app.Close()

	assert.NotNil(t, app.Logger)
	assert.NotNil(t, app.Store)
	assert.NotNil(t, app.Compressor)
	assert.NotNil(t, app.Backups)
	assert.NotNil(t, app.Restores)
	assert.NotNil(t, app.Renderer)
	assert.NotNil(t, app.Confirmation)
	assert.Nil(t, app.Scheduler, "scheduler starts lazily")
	assert.DirExists(t, app.Config.BackupDir)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Compression.Algorithm = "brotli"

	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
}

func TestNew_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		BackupDir:    filepath.Join(dir, "backups"),
		ScheduleFile: filepath.Join(dir, "schedules.json"),
	}

	app, err := New(cfg)
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, config.DefaultWorkerLimit, app.Config.Workers)
	assert.Equal(t, "gzip", app.Config.Compression.Algorithm)
}

func TestStartScheduler(t *testing.T) {
	app, err := New(testConfig(t))
	require.NoError(t, err)
	defer app.Close()

	require.NoError(t, app.StartScheduler(nil))
	assert.NotNil(t, app.Scheduler)

	status, err := app.Scheduler.Status()
	require.NoError(t, err)
	assert.Equal(t, 0, status.TotalSchedules)
}
