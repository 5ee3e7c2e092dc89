package schedule

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	"backup-dr/internal/backup"
)

// registryVersion is the on-disk document format version
const registryVersion = 1

// registryDocument is the persisted shape of the registry file
type registryDocument struct {
	Version   int        `json:"version"`
	Schedules []Schedule `json:"schedules"`
}

// Registry persists schedules as a single JSON document. Every mutation is a
// read-modify-write of the whole document, serialized through an in-process
// mutex and an advisory file lock, and committed with a temp-file rename so
// readers never observe a partial write.
type Registry struct {
	path string
	mu   sync.Mutex
}

// NewRegistry creates a Registry stored at path, creating the parent
// directory if needed
func NewRegistry(path string) (*Registry, error) {
	if path == "" {
		return nil, backup.NewValidationError("registry path is required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, backup.NewIOError("failed to create registry directory", err)
	}
	return &Registry{path: path}, nil
}

// Path returns the registry file location
func (r *Registry) Path() string {
	return r.path
}

// Load reads all schedules from disk. A missing registry file is an empty
// registry, not an error.
func (r *Registry) Load() ([]Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, err := r.acquireLock()
	if err != nil {
		return nil, err
	}
	defer lock.release()

	return r.read()
}

// Mutate applies fn to the current schedule list and persists the result.
// The whole read-modify-write cycle holds the lock; if fn returns an error
// nothing is written.
func (r *Registry) Mutate(fn func([]Schedule) ([]Schedule, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, err := r.acquireLock()
	if err != nil {
		return err
	}
	defer lock.release()

	schedules, err := r.read()
	if err != nil {
		return err
	}

	updated, err := fn(schedules)
	if err != nil {
		return err
	}

	return r.write(updated)
}

func (r *Registry) read() ([]Schedule, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, backup.NewIOError("failed to read schedule registry", err)
	}

	var doc registryDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, backup.NewScheduleError("failed to parse schedule registry", err)
	}
	if doc.Version > registryVersion {
		return nil, backup.NewScheduleError(
			fmt.Sprintf("unsupported registry version %d", doc.Version), nil)
	}

	return doc.Schedules, nil
}

func (r *Registry) write(schedules []Schedule) error {
	doc := registryDocument{
		Version:   registryVersion,
		Schedules: schedules,
	}
	if doc.Schedules == nil {
		doc.Schedules = []Schedule{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return backup.NewScheduleError("failed to serialize schedule registry", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return backup.NewIOError("failed to write schedule registry", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		os.Remove(tmp)
		return backup.NewIOError("failed to finalize schedule registry", err)
	}

	return nil
}

// fileLock is an advisory flock on a sidecar lock file, guarding the
// registry against concurrent processes
type fileLock struct {
	file *os.File
}

func (r *Registry) acquireLock() (*fileLock, error) {
	f, err := os.OpenFile(r.path+".lock", os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, backup.NewIOError("failed to open registry lock file", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, backup.NewIOError("failed to lock schedule registry", err)
	}
	return &fileLock{file: f}, nil
}

func (l *fileLock) release() {
	unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	l.file.Close()
}
