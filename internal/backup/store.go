package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const manifestFileName = "manifest.json"

// Store is the repository authority for a local backup directory. Each backup
// occupies its own subdirectory holding a manifest.json and a data/ tree that
// mirrors the manifest's relative paths.
type Store struct {
	basePath    string
	permissions os.FileMode
}

// NewStore creates a Store rooted at basePath, creating the directory if
// needed.
func NewStore(basePath string) (*Store, error) {
	if basePath == "" {
		return nil, NewValidationError("backup directory path is required", nil)
	}

	store := &Store{
		basePath:    basePath,
		permissions: 0755,
	}

	if err := os.MkdirAll(basePath, store.permissions); err != nil {
		return nil, NewIOError("failed to create backup directory", err)
	}

	return store, nil
}

// BasePath returns the backup directory root
func (s *Store) BasePath() string {
	return s.basePath
}

// backupDir maps a backup ID onto its directory, stripping path separators so
// an ID can never escape the base path
func (s *Store) backupDir(backupID string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(backupID)
	return filepath.Join(s.basePath, safe)
}

// ManifestPath returns the location of a backup's manifest file
func (s *Store) ManifestPath(backupID string) string {
	return filepath.Join(s.backupDir(backupID), manifestFileName)
}

// DataPath maps a manifest-relative file path into the backup's data tree.
// Paths that resolve outside the backup directory are rejected.
func (s *Store) DataPath(backupID, relPath string) (string, error) {
	if backupID == "" {
		return "", NewValidationError("backup ID cannot be empty", nil)
	}
	if relPath == "" {
		return "", NewValidationError("relative path cannot be empty", nil)
	}

	dataRoot := filepath.Join(s.backupDir(backupID), "data")
	full := filepath.Join(dataRoot, filepath.FromSlash(relPath))

	rel, err := filepath.Rel(dataRoot, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", NewValidationError(
			fmt.Sprintf("path %q escapes the backup data directory", relPath), nil).
			WithContext("backup_id", backupID)
	}

	return full, nil
}

// SaveManifest seals and persists a manifest. The write goes through a
// temporary file and an atomic rename so a manifest is never observable
// partially written.
func (s *Store) SaveManifest(m *Manifest) error {
	if m == nil {
		return NewValidationError("manifest cannot be nil", nil)
	}

	if err := m.SealChecksum(); err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return NewValidationError("invalid manifest", err)
	}

	dir := s.backupDir(m.BackupID)
	if err := os.MkdirAll(dir, s.permissions); err != nil {
		return NewIOError("failed to create backup directory", err)
	}

	data, err := m.ToJSON()
	if err != nil {
		return NewValidationError("failed to serialize manifest", err)
	}

	target := filepath.Join(dir, manifestFileName)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return NewIOError("failed to write manifest", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return NewIOError("failed to finalize manifest", err)
	}

	return nil
}

// LoadManifest reads and verifies a backup's manifest. Unknown IDs yield a
// not-found error; a checksum mismatch yields an integrity error.
func (s *Store) LoadManifest(backupID string) (*Manifest, error) {
	if backupID == "" {
		return nil, NewValidationError("backup ID cannot be empty", nil)
	}

	path := s.ManifestPath(backupID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewNotFoundError(fmt.Sprintf("backup %s not found", backupID), err)
		}
		return nil, NewIOError("failed to read manifest", err)
	}

	var m Manifest
	if err := m.FromJSON(data); err != nil {
		return nil, err
	}
	if err := m.VerifyChecksum(); err != nil {
		return nil, err
	}

	return &m, nil
}

// ListManifests returns every readable manifest in the store, newest first.
// Directories without a valid manifest are skipped silently so one corrupt
// backup does not hide the rest.
func (s *Store) ListManifests() ([]*Manifest, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, NewIOError("failed to read backup directory", err)
	}

	var manifests []*Manifest
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		m, err := s.LoadManifest(entry.Name())
		if err != nil {
			continue
		}
		manifests = append(manifests, m)
	}

	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].CreatedAt.After(manifests[j].CreatedAt)
	})

	return manifests, nil
}

// LastBackupTime returns the creation time of the newest backup whose source
// set overlaps the given sources. This is the reference point incremental
// backups compare modification times against.
func (s *Store) LastBackupTime(sources []string) (time.Time, bool, error) {
	manifests, err := s.ListManifests()
	if err != nil {
		return time.Time{}, false, err
	}

	want := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		want[filepath.Clean(src)] = struct{}{}
	}

	for _, m := range manifests {
		for _, src := range m.Sources {
			if _, ok := want[filepath.Clean(src)]; ok {
				return m.CreatedAt, true, nil
			}
		}
	}

	return time.Time{}, false, nil
}

// DeleteBackup removes a backup's directory, manifest and data included
func (s *Store) DeleteBackup(backupID string) error {
	if backupID == "" {
		return NewValidationError("backup ID cannot be empty", nil)
	}

	dir := s.backupDir(backupID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return NewNotFoundError(fmt.Sprintf("backup %s not found", backupID), err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return NewIOError("failed to delete backup directory", err)
	}

	return nil
}
