package backup

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRestoreEngine(t *testing.T) (*RestoreEngine, *BackupEngine, *Store) {
	t.Helper()
	store := newTestStore(t)
	compressor := NewCompressor(DefaultGzipLevel, nil)
	backups := NewBackupEngine(store, compressor, nil)
	restores := NewRestoreEngine(store, compressor, backups, nil)
	return restores, backups, store
}

func createFixtureBackup(t *testing.T, backups *BackupEngine, files map[string]string) (string, string) {
	t.Helper()
	source := writeSourceTree(t, files)
	result, err := backups.Create(context.Background(), CreateParams{
		Sources:     []string{source},
		Type:        TypeFull,
		Compression: true,
	})
	require.NoError(t, err)
	return result.BackupID, source
}

func TestRestoreEngine_Restore_ToDestination(t *testing.T) {
	restores, backups, _ := newTestRestoreEngine(t)
	backupID, source := createFixtureBackup(t, backups, map[string]string{
		"a.txt":     "alpha content",
		"sub/b.txt": "beta content",
	})
	dest := t.TempDir()

	result, err := restores.Restore(context.Background(), RestoreParams{
		BackupID:    backupID,
		Destination: dest,
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, OperationRestore, result.Operation)
	assert.Equal(t, 2, result.Changes.FilesRestored)
	assert.Equal(t, 0, result.Changes.FilesSkipped)
	assert.Equal(t, int64(len("alpha content")+len("beta content")), result.Changes.BytesRestored)
	assert.Empty(t, result.Changes.Conflicts)
	assert.Empty(t, result.PreBackupID)

	base := filepath.Base(source)
	got, err := os.ReadFile(filepath.Join(dest, base, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "alpha content", string(got))
	got, err = os.ReadFile(filepath.Join(dest, base, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "beta content", string(got))
}

func TestRestoreEngine_Restore_ToOriginalPaths(t *testing.T) {
	restores, backups, _ := newTestRestoreEngine(t)
	backupID, source := createFixtureBackup(t, backups, map[string]string{"a.txt": "original"})

	// Delete the source so the restore recreates it in place
	require.NoError(t, os.RemoveAll(source))

	result, err := restores.Restore(context.Background(), RestoreParams{BackupID: backupID})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Changes.FilesRestored)

	got, err := os.ReadFile(filepath.Join(source, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))
}

func TestRestoreEngine_Restore_UnknownBackup(t *testing.T) {
	restores, _, _ := newTestRestoreEngine(t)

	_, err := restores.Restore(context.Background(), RestoreParams{BackupID: "backup-20260101-000000-ffffffff"})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestRestoreEngine_Restore_ConflictsSkippedWithoutOverwrite(t *testing.T) {
	restores, backups, _ := newTestRestoreEngine(t)
	backupID, source := createFixtureBackup(t, backups, map[string]string{"a.txt": "from backup"})

	// The live file diverged after the backup
	live := filepath.Join(source, "a.txt")
	require.NoError(t, os.WriteFile(live, []byte("diverged"), 0644))

	result, err := restores.Restore(context.Background(), RestoreParams{BackupID: backupID})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Changes.FilesRestored)
	assert.Equal(t, 1, result.Changes.FilesSkipped)
	require.Len(t, result.Changes.Conflicts, 1)
	assert.Equal(t, ConflictSkip, result.Changes.Conflicts[0].Action)

	got, err := os.ReadFile(live)
	require.NoError(t, err)
	assert.Equal(t, "diverged", string(got), "conflicted file must be untouched")
}

func TestRestoreEngine_Restore_OverwriteReplacesConflicts(t *testing.T) {
	restores, backups, _ := newTestRestoreEngine(t)
	backupID, source := createFixtureBackup(t, backups, map[string]string{"a.txt": "from backup"})

	live := filepath.Join(source, "a.txt")
	require.NoError(t, os.WriteFile(live, []byte("diverged"), 0644))

	result, err := restores.Restore(context.Background(), RestoreParams{
		BackupID:  backupID,
		Overwrite: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Changes.FilesRestored)
	require.Len(t, result.Changes.Conflicts, 1)
	assert.Equal(t, ConflictOverwrite, result.Changes.Conflicts[0].Action)

	got, err := os.ReadFile(live)
	require.NoError(t, err)
	assert.Equal(t, "from backup", string(got))
}

func TestRestoreEngine_Restore_DryRunHasNoEffect(t *testing.T) {
	restores, backups, _ := newTestRestoreEngine(t)
	backupID, source := createFixtureBackup(t, backups, map[string]string{
		"a.txt": "from backup",
		"b.txt": "also from backup",
	})

	live := filepath.Join(source, "a.txt")
	require.NoError(t, os.WriteFile(live, []byte("diverged"), 0644))
	require.NoError(t, os.Remove(filepath.Join(source, "b.txt")))

	result, err := restores.Restore(context.Background(), RestoreParams{
		BackupID:  backupID,
		DryRun:    true,
		Overwrite: true,
		PreBackup: true,
	})
	require.NoError(t, err)

	assert.Equal(t, OperationDryRun, result.Operation)
	assert.Equal(t, 0, result.Changes.FilesRestored)
	assert.Equal(t, len(result.Changes.Conflicts), result.Changes.FilesSkipped)
	require.Len(t, result.Changes.Conflicts, 1)
	assert.Empty(t, result.PreBackupID, "dry-run must not take a safety backup")

	// Nothing on disk changed
	got, err := os.ReadFile(live)
	require.NoError(t, err)
	assert.Equal(t, "diverged", string(got))
	_, err = os.Stat(filepath.Join(source, "b.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestRestoreEngine_Restore_DryRunWithoutConflictsReportsEmptyList(t *testing.T) {
	restores, backups, _ := newTestRestoreEngine(t)
	backupID, _ := createFixtureBackup(t, backups, map[string]string{"a.txt": "from backup"})

	result, err := restores.Restore(context.Background(), RestoreParams{
		BackupID:    backupID,
		Destination: t.TempDir(),
		DryRun:      true,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Changes.FilesSkipped)
	require.NotNil(t, result.Changes.Conflicts)
	assert.Empty(t, result.Changes.Conflicts)

	encoded, err := json.Marshal(result.Changes)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"conflicts":[]`)
}

func TestRestoreEngine_Restore_PreBackupSnapshotsOverwrittenFiles(t *testing.T) {
	restores, backups, store := newTestRestoreEngine(t)
	backupID, source := createFixtureBackup(t, backups, map[string]string{"a.txt": "from backup"})

	live := filepath.Join(source, "a.txt")
	require.NoError(t, os.WriteFile(live, []byte("pre-restore state"), 0644))

	result, err := restores.Restore(context.Background(), RestoreParams{
		BackupID:  backupID,
		Overwrite: true,
		PreBackup: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.PreBackupID)
	assert.NotEqual(t, backupID, result.PreBackupID)

	// The safety backup captured the diverged content before it was replaced
	pre, err := store.LoadManifest(result.PreBackupID)
	require.NoError(t, err)
	require.Len(t, pre.Files, 1)
	assert.Equal(t, live, pre.Files[0].OriginalPath)
	assert.Equal(t, int64(len("pre-restore state")), pre.Files[0].Size)

	got, err := os.ReadFile(live)
	require.NoError(t, err)
	assert.Equal(t, "from backup", string(got))
}

func TestRestoreEngine_Restore_PreBackupWithoutConflictsIsSkipped(t *testing.T) {
	restores, backups, _ := newTestRestoreEngine(t)
	backupID, source := createFixtureBackup(t, backups, map[string]string{"a.txt": "content"})
	require.NoError(t, os.RemoveAll(source))

	result, err := restores.Restore(context.Background(), RestoreParams{
		BackupID:  backupID,
		Overwrite: true,
		PreBackup: true,
	})
	require.NoError(t, err)
	assert.Empty(t, result.PreBackupID, "nothing to protect, nothing to snapshot")
	assert.Equal(t, 1, result.Changes.FilesRestored)
}

func TestSelectEntries(t *testing.T) {
	files := []FileEntry{
		{Path: "src/main.go", OriginalPath: "/project/src/main.go"},
		{Path: "src/util.go", OriginalPath: "/project/src/util.go"},
		{Path: "docs/readme.md", OriginalPath: "/project/docs/readme.md"},
		{Path: "config.yaml", OriginalPath: "/project/config.yaml"},
	}

	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{"empty selects all", nil, []string{"/project/src/main.go", "/project/src/util.go", "/project/docs/readme.md", "/project/config.yaml"}},
		{"substring", []string{"src"}, []string{"/project/src/main.go", "/project/src/util.go"}},
		{"glob on basename", []string{"*.go"}, []string{"/project/src/main.go", "/project/src/util.go"}},
		{"glob question mark", []string{"readme.m?"}, []string{"/project/docs/readme.md"}},
		{"leading double star stripped", []string{"**/config.yaml"}, []string{"/project/config.yaml"}},
		{"trailing double star stripped", []string{"docs/**"}, []string{"/project/docs/readme.md"}},
		{"no match", []string{"*.rs"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, entry := range selectEntries(files, tt.patterns) {
				got = append(got, entry.OriginalPath)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRestoreEngine_Restore_SelectiveToDestination(t *testing.T) {
	restores, backups, _ := newTestRestoreEngine(t)
	backupID, source := createFixtureBackup(t, backups, map[string]string{
		"keep/a.txt":  "kept",
		"other/b.txt": "not selected",
	})
	dest := t.TempDir()

	result, err := restores.Restore(context.Background(), RestoreParams{
		BackupID:    backupID,
		Destination: dest,
		Selective:   []string{"keep"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Changes.FilesRestored)

	base := filepath.Base(source)
	assert.FileExists(t, filepath.Join(dest, base, "keep", "a.txt"))
	_, err = os.Stat(filepath.Join(dest, base, "other", "b.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestRestoreEngine_Restore_InvalidParams(t *testing.T) {
	restores, _, _ := newTestRestoreEngine(t)

	_, err := restores.Restore(context.Background(), RestoreParams{})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestRestoreEngine_EndToEnd_RoundTrip(t *testing.T) {
	restores, backups, _ := newTestRestoreEngine(t)
	ie := NewIntegrity()

	source := writeSourceTree(t, map[string]string{
		"first.txt":  "fifteen bytes..",
		"second.txt": "fifteen more...",
	})

	created, err := backups.Create(context.Background(), CreateParams{
		Sources:     []string{source},
		Type:        TypeFull,
		Compression: true,
		Verify:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, created.FileCount)
	assert.Equal(t, int64(30), created.OriginalSize)

	origFirst, err := ie.ChecksumFile(filepath.Join(source, "first.txt"))
	require.NoError(t, err)
	origSecond, err := ie.ChecksumFile(filepath.Join(source, "second.txt"))
	require.NoError(t, err)

	dest := t.TempDir()
	restored, err := restores.Restore(context.Background(), RestoreParams{
		BackupID:    created.BackupID,
		Destination: dest,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, restored.Changes.FilesRestored)
	assert.Equal(t, int64(30), restored.Changes.BytesRestored)

	base := filepath.Base(source)
	gotFirst, err := ie.ChecksumFile(filepath.Join(dest, base, "first.txt"))
	require.NoError(t, err)
	gotSecond, err := ie.ChecksumFile(filepath.Join(dest, base, "second.txt"))
	require.NoError(t, err)
	assert.Equal(t, origFirst, gotFirst)
	assert.Equal(t, origSecond, gotSecond)
}
