package schedule

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backup-dr/internal/backup"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	registry, err := NewRegistry(filepath.Join(t.TempDir(), "state", "schedules.json"))
	require.NoError(t, err)
	return registry
}

func sampleSchedule(id string) Schedule {
	return Schedule{
		ScheduleID:     id,
		CronExpression: "0 2 * * *",
		Sources:        []string{"/data"},
		Type:           backup.TypeFull,
		Compression:    true,
		Enabled:        true,
		CreatedAt:      time.Now().UTC(),
	}
}

func TestNewRegistry_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "nested", "schedules.json")
	registry, err := NewRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, path, registry.Path())
	assert.DirExists(t, filepath.Dir(path))
}

func TestRegistry_Load_MissingFileIsEmpty(t *testing.T) {
	registry := newTestRegistry(t)

	schedules, err := registry.Load()
	require.NoError(t, err)
	assert.Empty(t, schedules)
}

func TestRegistry_MutateAndLoad(t *testing.T) {
	registry := newTestRegistry(t)

	err := registry.Mutate(func(schedules []Schedule) ([]Schedule, error) {
		return append(schedules, sampleSchedule("nightly")), nil
	})
	require.NoError(t, err)

	schedules, err := registry.Load()
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, "nightly", schedules[0].ScheduleID)
	assert.Equal(t, "0 2 * * *", schedules[0].CronExpression)
}

func TestRegistry_WritesVersionedDocument(t *testing.T) {
	registry := newTestRegistry(t)

	require.NoError(t, registry.Mutate(func(schedules []Schedule) ([]Schedule, error) {
		return schedules, nil
	}))

	data, err := os.ReadFile(registry.Path())
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc, "version")
	assert.Contains(t, doc, "schedules")
	assert.JSONEq(t, "1", string(doc["version"]))
	assert.JSONEq(t, "[]", string(doc["schedules"]))

	// No temp file left behind
	_, err = os.Stat(registry.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestRegistry_Mutate_ErrorLeavesFileUntouched(t *testing.T) {
	registry := newTestRegistry(t)

	require.NoError(t, registry.Mutate(func(schedules []Schedule) ([]Schedule, error) {
		return append(schedules, sampleSchedule("keep-me")), nil
	}))
	before, err := os.ReadFile(registry.Path())
	require.NoError(t, err)

	mutateErr := registry.Mutate(func(schedules []Schedule) ([]Schedule, error) {
		return nil, backup.NewValidationError("rejected", nil)
	})
	require.Error(t, mutateErr)

	after, err := os.ReadFile(registry.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRegistry_Load_CorruptFile(t *testing.T) {
	registry := newTestRegistry(t)
	require.NoError(t, os.WriteFile(registry.Path(), []byte("{broken"), 0644))

	_, err := registry.Load()
	require.Error(t, err)
}

func TestRegistry_Load_UnsupportedVersion(t *testing.T) {
	registry := newTestRegistry(t)
	require.NoError(t, os.WriteFile(registry.Path(), []byte(`{"version": 99, "schedules": []}`), 0644))

	_, err := registry.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported registry version")
}

func TestRegistry_ConcurrentMutations(t *testing.T) {
	registry := newTestRegistry(t)

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := registry.Mutate(func(schedules []Schedule) ([]Schedule, error) {
				id := string(rune('a' + len(schedules)))
				return append(schedules, sampleSchedule(id)), nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Read-modify-write serialization: no update may be lost
	schedules, err := registry.Load()
	require.NoError(t, err)
	assert.Len(t, schedules, writers)
}
