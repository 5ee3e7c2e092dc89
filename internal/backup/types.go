package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BackupType is the closed set of backup variants. Inclusion decisions go
// through Includes rather than string comparisons in the engine.
type BackupType string

const (
	// TypeFull includes every non-excluded file unconditionally
	TypeFull BackupType = "full"

	// TypeIncremental includes only files modified after the last backup of
	// the same source set; with no prior backup it degrades to a full run
	TypeIncremental BackupType = "incremental"
)

// ParseBackupType converts a string into a BackupType
func ParseBackupType(s string) (BackupType, error) {
	switch BackupType(strings.ToLower(strings.TrimSpace(s))) {
	case TypeFull:
		return TypeFull, nil
	case TypeIncremental:
		return TypeIncremental, nil
	default:
		return "", NewValidationError(fmt.Sprintf("invalid backup type: %q", s), nil)
	}
}

// Valid reports whether the backup type is a known variant
func (t BackupType) Valid() bool {
	return t == TypeFull || t == TypeIncremental
}

// Includes is the inclusion policy for one candidate file. modTime is the
// file's mtime; lastBackup is the newest prior backup time for the source
// set, with hasPrior false when no such backup exists.
func (t BackupType) Includes(modTime, lastBackup time.Time, hasPrior bool) bool {
	switch t {
	case TypeIncremental:
		if !hasPrior {
			// Documented fallback: first incremental run is a full run.
			return true
		}
		return modTime.After(lastBackup)
	default:
		return true
	}
}

// CompressionAlgorithm identifies the codec used for data files
type CompressionAlgorithm string

const (
	AlgorithmGzip CompressionAlgorithm = "gzip"
	AlgorithmZstd CompressionAlgorithm = "zstd"
	AlgorithmLZ4  CompressionAlgorithm = "lz4"
)

// FileEntry is one file inside a backup manifest. Immutable once written.
type FileEntry struct {
	// Path within the backup, relative and slash-separated
	Path string `json:"path"`

	// Absolute source path at backup time
	OriginalPath string `json:"original_path"`

	// Uncompressed size in bytes
	Size int64 `json:"size"`

	// Source modification time at backup time
	Modified time.Time `json:"modified"`

	// SHA-256 hex digest of the uncompressed content
	Checksum string `json:"checksum"`
}

// RunConfig records the options a backup was created with. Restores consult
// it to decide whether data files are compressed and with which codec.
type RunConfig struct {
	Compression bool                 `json:"compression"`
	Algorithm   CompressionAlgorithm `json:"algorithm,omitempty"`
	Verify      bool                 `json:"verify"`
}

// Manifest is one backup run's record of truth. Written once by the engine
// at the end of a successful run; read-only thereafter.
type Manifest struct {
	BackupID         string      `json:"backup_id"`
	Sources          []string    `json:"sources"`
	Type             BackupType  `json:"type"`
	Label            string      `json:"label,omitempty"`
	Config           RunConfig   `json:"config"`
	Files            []FileEntry `json:"files"`
	CreatedAt        time.Time   `json:"created_at"`
	ManifestChecksum string      `json:"manifest_checksum"`
}

// FileListChecksum computes the SHA-256 hex digest over the serialized file
// list. It is the quick-verification signal: manifest integrity can be
// checked without re-hashing every file's content.
func (m *Manifest) FileListChecksum() (string, error) {
	data, err := json.Marshal(m.Files)
	if err != nil {
		return "", NewValidationError("failed to serialize file list for checksum", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// SealChecksum computes and stores the manifest checksum
func (m *Manifest) SealChecksum() error {
	sum, err := m.FileListChecksum()
	if err != nil {
		return err
	}
	m.ManifestChecksum = sum
	return nil
}

// VerifyChecksum recomputes the file-list checksum and compares it against
// the stored one
func (m *Manifest) VerifyChecksum() error {
	sum, err := m.FileListChecksum()
	if err != nil {
		return err
	}
	if sum != m.ManifestChecksum {
		return NewIntegrityError(
			fmt.Sprintf("manifest checksum mismatch for backup %s", m.BackupID), nil).
			WithContext("expected", m.ManifestChecksum).
			WithContext("actual", sum)
	}
	return nil
}

// Validate validates the Manifest struct
func (m *Manifest) Validate() error {
	var errs ValidationErrors

	if m.BackupID == "" {
		errs.Add("backup_id", "backup ID is required", m.BackupID)
	}
	if len(m.Sources) == 0 {
		errs.Add("sources", "at least one source is required", nil)
	}
	if !m.Type.Valid() {
		errs.Add("type", "invalid backup type", m.Type)
	}
	if m.CreatedAt.IsZero() {
		errs.Add("created_at", "creation timestamp is required", m.CreatedAt)
	}
	if m.ManifestChecksum == "" {
		errs.Add("manifest_checksum", "manifest checksum is required", m.ManifestChecksum)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// ToJSON serializes the Manifest to JSON
func (m *Manifest) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// FromJSON deserializes JSON data into a Manifest
func (m *Manifest) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, m); err != nil {
		return NewValidationError("failed to unmarshal manifest JSON", err)
	}
	return m.Validate()
}

// TotalSize returns the sum of uncompressed file sizes
func (m *Manifest) TotalSize() int64 {
	var total int64
	for _, f := range m.Files {
		total += f.Size
	}
	return total
}

// ConflictAction is the action a restore will take for a conflicted file
type ConflictAction string

const (
	ConflictOverwrite ConflictAction = "overwrite"
	ConflictSkip      ConflictAction = "skip"
)

// Conflict records a restore target that already exists on disk. Computed
// per restore invocation, never persisted.
type Conflict struct {
	Path             string         `json:"path"`
	ExistingModified time.Time      `json:"existing_modified"`
	BackupModified   time.Time      `json:"backup_modified"`
	Action           ConflictAction `json:"action"`
}

// CreateParams are the inputs to a backup run
type CreateParams struct {
	Sources         []string
	Type            BackupType
	Label           string
	Compression     bool
	Algorithm       CompressionAlgorithm
	Verify          bool
	ExcludePatterns []string
}

// Validate validates the backup parameters
func (p *CreateParams) Validate() error {
	var errs ValidationErrors

	if len(p.Sources) == 0 {
		errs.Add("sources", "at least one source is required", nil)
	}
	for i, s := range p.Sources {
		if strings.TrimSpace(s) == "" {
			errs.Add(fmt.Sprintf("sources[%d]", i), "source path cannot be empty", s)
		}
	}
	if !p.Type.Valid() {
		errs.Add("type", "invalid backup type", p.Type)
	}
	if len(p.Label) > 500 {
		errs.Add("label", "label too long (max 500 characters)", len(p.Label))
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// CreateResult is the outcome of a backup run
type CreateResult struct {
	Success        bool          `json:"success"`
	BackupID       string        `json:"backup_id"`
	Type           BackupType    `json:"type"`
	FileCount      int           `json:"file_count"`
	FilesSkipped   int           `json:"files_skipped"`
	OriginalSize   int64         `json:"original_size"`
	CompressedSize int64         `json:"compressed_size"`
	Duration       time.Duration `json:"duration_ms"`
	Warnings       []string      `json:"warnings,omitempty"`
}

// RestoreParams are the inputs to a restore run
type RestoreParams struct {
	BackupID    string
	Destination string
	Overwrite   bool
	Selective   []string
	DryRun      bool
	PreBackup   bool
}

// Validate validates the restore parameters
func (p *RestoreParams) Validate() error {
	var errs ValidationErrors

	if strings.TrimSpace(p.BackupID) == "" {
		errs.Add("backup_id", "backup ID is required", p.BackupID)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// RestoreChanges summarizes what a restore did (or would do, for dry-run)
type RestoreChanges struct {
	FilesRestored int        `json:"files_restored"`
	FilesSkipped  int        `json:"files_skipped"`
	BytesRestored int64      `json:"bytes_restored"`
	Conflicts     []Conflict `json:"conflicts"`
}

// RestoreOperation distinguishes a preview from a real restore
type RestoreOperation string

const (
	OperationDryRun  RestoreOperation = "dry-run"
	OperationRestore RestoreOperation = "restore"
)

// RestoreResult is the outcome of a restore run
type RestoreResult struct {
	Success     bool             `json:"success"`
	BackupID    string           `json:"backup_id"`
	Operation   RestoreOperation `json:"operation"`
	Changes     RestoreChanges   `json:"changes"`
	Duration    time.Duration    `json:"duration_ms"`
	PreBackupID string           `json:"pre_backup_id,omitempty"`
	Warnings    []string         `json:"warnings"`
}

// GenerateBackupID generates a unique, time-ordered backup ID
func GenerateBackupID() string {
	timestamp := time.Now().UTC().Format("20060102-150405")
	id := uuid.New().String()

	// Remove hyphens from UUID and take first 8 characters for brevity
	shortID := strings.ReplaceAll(id, "-", "")[:8]

	return fmt.Sprintf("backup-%s-%s", timestamp, shortID)
}
