package schedule

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backup-dr/internal/backup"
)

// fakeRunner records scheduled jobs without any real cron dispatch
type fakeRunner struct {
	mu      sync.Mutex
	next    JobHandle
	jobs    map[JobHandle]func()
	stopped bool
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{jobs: make(map[JobHandle]func())}
}

func (r *fakeRunner) Schedule(cronExpr string, job func()) (JobHandle, error) {
	if _, err := ParseCron(cronExpr); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.jobs[r.next] = job
	return r.next, nil
}

func (r *fakeRunner) Cancel(handle JobHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, handle)
}

func (r *fakeRunner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
}

func (r *fakeRunner) activeJobs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// fire invokes every registered job synchronously, standing in for a cron
// tick
func (r *fakeRunner) fire() {
	r.mu.Lock()
	jobs := make([]func(), 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, job)
	}
	r.mu.Unlock()
	for _, job := range jobs {
		job()
	}
}

type serviceFixture struct {
	service *Service
	runner  *fakeRunner
	store   *backup.Store
	source  string
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	store, err := backup.NewStore(filepath.Join(t.TempDir(), "backups"))
	require.NoError(t, err)
	engine := backup.NewBackupEngine(store, backup.NewCompressor(backup.DefaultGzipLevel, nil), nil)
	registry, err := NewRegistry(filepath.Join(t.TempDir(), "schedules.json"))
	require.NoError(t, err)
	runner := newFakeRunner()

	service, err := NewService(registry, runner, engine, nil)
	require.NoError(t, err)
	t.Cleanup(service.Stop)

	source := filepath.Join(t.TempDir(), "source")
	require.NoError(t, os.MkdirAll(source, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(source, "data.txt"), []byte("scheduled payload"), 0644))

	return &serviceFixture{service: service, runner: runner, store: store, source: source}
}

func (f *serviceFixture) schedule(id string, enabled bool) Schedule {
	return Schedule{
		ScheduleID:     id,
		CronExpression: "0 2 * * *",
		Sources:        []string{f.source},
		Type:           backup.TypeFull,
		Compression:    true,
		Enabled:        enabled,
	}
}

func TestService_Create(t *testing.T) {
	f := newServiceFixture(t)

	created, err := f.service.Create(f.schedule("nightly", true))
	require.NoError(t, err)

	assert.Equal(t, "nightly", created.ScheduleID)
	require.NotNil(t, created.NextRun)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Nil(t, created.LastRun)
	assert.Equal(t, 1, f.runner.activeJobs())

	// Next run is a real cron evaluation: 02:00, minute and second aligned
	assert.Equal(t, 2, created.NextRun.Hour())
	assert.Equal(t, 0, created.NextRun.Minute())
}

func TestService_Create_DisabledStartsNoJob(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Create(f.schedule("paused", false))
	require.NoError(t, err)
	assert.Equal(t, 0, f.runner.activeJobs())
}

func TestService_Create_InvalidCronLeavesRegistryUnchanged(t *testing.T) {
	f := newServiceFixture(t)

	sched := f.schedule("broken", true)
	sched.CronExpression = "* * *"
	_, err := f.service.Create(sched)
	require.Error(t, err)
	assert.True(t, backup.IsValidation(err))

	schedules, err := f.service.List()
	require.NoError(t, err)
	assert.Empty(t, schedules)
	assert.Equal(t, 0, f.runner.activeJobs())
}

func TestService_Create_DuplicateIDDoesNotMutateExisting(t *testing.T) {
	f := newServiceFixture(t)

	original, err := f.service.Create(f.schedule("nightly", true))
	require.NoError(t, err)

	dup := f.schedule("nightly", true)
	dup.CronExpression = "30 4 * * *"
	_, err = f.service.Create(dup)
	require.Error(t, err)
	assert.True(t, backup.IsValidation(err))

	got, err := f.service.Get("nightly")
	require.NoError(t, err)
	assert.Equal(t, original.CronExpression, got.CronExpression)
}

func TestService_Update(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Create(f.schedule("nightly", true))
	require.NoError(t, err)

	newExpr := "30 4 * * *"
	updated, err := f.service.Update("nightly", UpdateParams{CronExpression: &newExpr})
	require.NoError(t, err)

	assert.Equal(t, newExpr, updated.CronExpression)
	require.NotNil(t, updated.NextRun)
	assert.Equal(t, 4, updated.NextRun.Hour())
	assert.Equal(t, 30, updated.NextRun.Minute())
	assert.Equal(t, 1, f.runner.activeJobs(), "job restarted, not duplicated")
}

func TestService_Update_InvalidCronRejectedBeforePersisting(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Create(f.schedule("nightly", true))
	require.NoError(t, err)

	bad := "not cron"
	_, err = f.service.Update("nightly", UpdateParams{CronExpression: &bad})
	require.Error(t, err)

	got, err := f.service.Get("nightly")
	require.NoError(t, err)
	assert.Equal(t, "0 2 * * *", got.CronExpression)
}

func TestService_Update_NotFound(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Update("ghost", UpdateParams{})
	require.Error(t, err)
	assert.True(t, backup.IsNotFound(err))
}

func TestService_Delete(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Create(f.schedule("nightly", true))
	require.NoError(t, err)

	require.NoError(t, f.service.Delete("nightly"))
	assert.Equal(t, 0, f.runner.activeJobs())

	_, err = f.service.Get("nightly")
	assert.True(t, backup.IsNotFound(err))

	err = f.service.Delete("nightly")
	assert.True(t, backup.IsNotFound(err))
}

func TestService_EnableDisable(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Create(f.schedule("nightly", true))
	require.NoError(t, err)

	disabled, err := f.service.Disable("nightly")
	require.NoError(t, err)
	assert.False(t, disabled.Enabled)
	assert.Equal(t, 0, f.runner.activeJobs())

	enabled, err := f.service.Enable("nightly")
	require.NoError(t, err)
	assert.True(t, enabled.Enabled)
	assert.Equal(t, 1, f.runner.activeJobs())
}

func TestService_Trigger_RunsBackupAndRecordsLastRun(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Create(f.schedule("nightly", false))
	require.NoError(t, err)

	result, err := f.service.Trigger(context.Background(), "nightly")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.FileCount)

	manifest, err := f.store.LoadManifest(result.BackupID)
	require.NoError(t, err)
	assert.Equal(t, backup.TypeFull, manifest.Type)

	got, err := f.service.Get("nightly")
	require.NoError(t, err)
	require.NotNil(t, got.LastRun)
	require.NotNil(t, got.NextRun)
	assert.True(t, got.NextRun.After(*got.LastRun))
}

func TestService_CronFire_ExecutesBackup(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Create(f.schedule("nightly", true))
	require.NoError(t, err)

	f.runner.fire()

	manifests, err := f.store.ListManifests()
	require.NoError(t, err)
	require.Len(t, manifests, 1)
}

func TestService_CronFire_FailureKeepsScheduleEnabled(t *testing.T) {
	f := newServiceFixture(t)

	sched := f.schedule("doomed", true)
	sched.Sources = []string{filepath.Join(t.TempDir(), "gone")}
	_, err := f.service.Create(sched)
	require.NoError(t, err)

	// The source does not exist; the fire fails but must be contained
	f.runner.fire()

	got, err := f.service.Get("doomed")
	require.NoError(t, err)
	assert.True(t, got.Enabled, "a failing run never disables its schedule")
	assert.Equal(t, 1, f.runner.activeJobs())
}

func TestService_Status(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Create(f.schedule("on-1", true))
	require.NoError(t, err)
	_, err = f.service.Create(f.schedule("on-2", true))
	require.NoError(t, err)
	_, err = f.service.Create(f.schedule("off-1", false))
	require.NoError(t, err)

	status, err := f.service.Status()
	require.NoError(t, err)
	assert.Equal(t, 3, status.TotalSchedules)
	assert.Equal(t, 2, status.EnabledSchedules)
	assert.Equal(t, 1, status.DisabledSchedules)
	assert.Equal(t, 2, status.ActiveJobs)
	assert.Len(t, status.Schedules, 3)
}

func TestService_RestartPicksUpEnabledSchedules(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Create(f.schedule("survivor", true))
	require.NoError(t, err)
	_, err = f.service.Create(f.schedule("paused", false))
	require.NoError(t, err)
	registryPath := f.service.registry.Path()
	f.service.Stop()

	// A fresh service over the same registry restores only the enabled job
	registry, err := NewRegistry(registryPath)
	require.NoError(t, err)
	runner := newFakeRunner()
	engine := backup.NewBackupEngine(f.store, backup.NewCompressor(backup.DefaultGzipLevel, nil), nil)
	revived, err := NewService(registry, runner, engine, nil)
	require.NoError(t, err)
	defer revived.Stop()

	assert.Equal(t, 1, runner.activeJobs())
}
