package backup

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"backup-dr/internal/logging"
)

// DefaultWorkerLimit bounds how many files a backup run processes at once
const DefaultWorkerLimit = 4

// BackupEngine creates backups: it walks sources, checksums and compresses
// file content into the store, and seals a manifest describing the run.
type BackupEngine struct {
	store       *Store
	compressor  *Compressor
	integrity   *Integrity
	logger      *logging.Logger
	workerLimit int
}

// NewBackupEngine creates a BackupEngine on top of a Store
func NewBackupEngine(store *Store, compressor *Compressor, logger *logging.Logger) *BackupEngine {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &BackupEngine{
		store:       store,
		compressor:  compressor,
		integrity:   NewIntegrity(),
		logger:      logger,
		workerLimit: DefaultWorkerLimit,
	}
}

// SetWorkerLimit overrides the per-run file concurrency bound
func (e *BackupEngine) SetWorkerLimit(n int) {
	if n > 0 {
		e.workerLimit = n
	}
}

// candidate is one file discovered during the source walk
type candidate struct {
	originalPath string
	relPath      string
	info         fs.FileInfo
}

// Create performs a backup run and returns its result. Per-file read
// failures become recorded skips; a missing or unreadable top-level source
// aborts the run.
func (e *BackupEngine) Create(ctx context.Context, params CreateParams) (*CreateResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	backupID := GenerateBackupID()

	log := e.logger.WithFields(map[string]interface{}{
		"backup_id": backupID,
		"type":      string(params.Type),
	})
	log.Info("Starting backup run")

	lastBackup, hasPrior, err := e.store.LastBackupTime(params.Sources)
	if err != nil {
		return nil, err
	}
	effectiveType := params.Type
	if params.Type == TypeIncremental && !hasPrior {
		log.Info("No prior backup for sources, performing full backup")
		effectiveType = TypeFull
	}

	var (
		candidates []candidate
		warnings   []string
		skipped    int
	)
	roots := sourceRoots(params.Sources)
	for i, source := range params.Sources {
		found, walkWarnings, walkSkipped, err := e.collectSource(source, roots[i], effectiveType, lastBackup, hasPrior, params.ExcludePatterns)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, found...)
		warnings = append(warnings, walkWarnings...)
		skipped += walkSkipped
	}

	entries := make([]*FileEntry, len(candidates))
	var (
		mu             sync.Mutex
		originalSize   int64
		compressedSize int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workerLimit)
	for i, cand := range candidates {
		i, cand := i, cand
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entry, storedSize, err := e.processFile(backupID, cand, params)
			if err != nil {
				e.logger.LogFileSkipped(cand.originalPath, err)
				mu.Lock()
				warnings = append(warnings, fmt.Sprintf("skipped %s: %v", cand.originalPath, err))
				skipped++
				mu.Unlock()
				return nil
			}
			entries[i] = entry
			mu.Lock()
			originalSize += entry.Size
			compressedSize += storedSize
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.logger.LogBackupRun(backupID, 0, 0, time.Since(start), err)
		return nil, err
	}

	// Preserve walk order; drop slots whose file was skipped
	files := make([]FileEntry, 0, len(entries))
	for _, entry := range entries {
		if entry != nil {
			files = append(files, *entry)
		}
	}

	manifest := &Manifest{
		BackupID: backupID,
		Sources:  params.Sources,
		Type:     effectiveType,
		Label:    params.Label,
		Config: RunConfig{
			Compression: params.Compression,
			Algorithm:   params.Algorithm,
			Verify:      params.Verify,
		},
		Files:     files,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.SaveManifest(manifest); err != nil {
		return nil, err
	}

	if params.Verify {
		if err := e.quickVerify(backupID); err != nil {
			return nil, err
		}
		log.Debug("Post-backup verification passed")
	}

	duration := time.Since(start)
	e.logger.LogBackupRun(backupID, len(files), originalSize, duration, nil)

	return &CreateResult{
		Success:        true,
		BackupID:       backupID,
		Type:           effectiveType,
		FileCount:      len(files),
		FilesSkipped:   skipped,
		OriginalSize:   originalSize,
		CompressedSize: compressedSize,
		Duration:       duration,
		Warnings:       warnings,
	}, nil
}

// sourceRoots derives each source's backup-relative root. A root is the
// source's base name; when two sources share one, later sources get a numeric
// suffix so their data files cannot collide in the store.
func sourceRoots(sources []string) []string {
	roots := make([]string, len(sources))
	seen := make(map[string]bool)
	for i, source := range sources {
		base := filepath.Base(filepath.Clean(source))
		root := base
		for n := 2; seen[root]; n++ {
			root = fmt.Sprintf("%s-%d", base, n)
		}
		seen[root] = true
		roots[i] = root
	}
	return roots
}

// collectSource walks one source and returns the files the run will include
// under the given backup-relative root. Excluded files and directories are
// filtered here; incremental filtering applies the type's inclusion policy
// against the last backup time.
func (e *BackupEngine) collectSource(source, root string, backupType BackupType, lastBackup time.Time, hasPrior bool, excludes []string) ([]candidate, []string, int, error) {
	info, err := os.Stat(source)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, 0, NewNotFoundError(fmt.Sprintf("source %s does not exist", source), err)
		}
		return nil, nil, 0, NewIOError(fmt.Sprintf("failed to stat source %s", source), err)
	}

	base := filepath.Base(filepath.Clean(source))

	if !info.IsDir() {
		if matchesExclude(base, base, excludes) {
			return nil, nil, 0, nil
		}
		if !backupType.Includes(info.ModTime(), lastBackup, hasPrior) {
			return nil, nil, 0, nil
		}
		return []candidate{{originalPath: source, relPath: root, info: info}}, nil, 0, nil
	}

	var (
		found    []candidate
		warnings []string
		skipped  int
	)
	walkErr := filepath.WalkDir(source, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == source {
				return NewIOError(fmt.Sprintf("failed to walk source %s", source), err)
			}
			warnings = append(warnings, fmt.Sprintf("skipped %s: %v", p, err))
			skipped++
			return nil
		}

		rel, relErr := filepath.Rel(source, p)
		if relErr != nil {
			return NewIOError("failed to compute relative path", relErr)
		}
		relPath := path.Join(root, filepath.ToSlash(rel))

		if matchesExclude(relPath, d.Name(), excludes) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		fi, statErr := d.Info()
		if statErr != nil {
			warnings = append(warnings, fmt.Sprintf("skipped %s: %v", p, statErr))
			skipped++
			return nil
		}
		if !backupType.Includes(fi.ModTime(), lastBackup, hasPrior) {
			return nil
		}

		found = append(found, candidate{originalPath: p, relPath: relPath, info: fi})
		return nil
	})
	if walkErr != nil {
		return nil, nil, 0, walkErr
	}

	return found, warnings, skipped, nil
}

// matchesExclude reports whether a pattern matches the file's backup-relative
// slash path or its base name
func matchesExclude(relPath, name string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, err := path.Match(pattern, relPath); err == nil && ok {
			return true
		}
		if ok, err := path.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// processFile checksums one source file and writes its content into the
// store, compressed or verbatim per the run config. Returns the manifest
// entry and the on-disk stored size.
func (e *BackupEngine) processFile(backupID string, cand candidate, params CreateParams) (*FileEntry, int64, error) {
	checksum, err := e.integrity.ChecksumFile(cand.originalPath)
	if err != nil {
		return nil, 0, err
	}

	relPath := cand.relPath
	targetRel := relPath
	if params.Compression {
		codec, err := e.compressor.Codec(params.Algorithm)
		if err != nil {
			return nil, 0, err
		}
		targetRel += codec.Suffix()
	}

	target, err := e.store.DataPath(backupID, targetRel)
	if err != nil {
		return nil, 0, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return nil, 0, NewIOError("failed to create data directory", err)
	}

	var storedSize int64
	if params.Compression {
		stats, err := e.compressor.Compress(cand.originalPath, target, params.Algorithm)
		if err != nil {
			return nil, 0, err
		}
		storedSize = stats.CompressedSize
	} else {
		storedSize, err = copyFile(cand.originalPath, target)
		if err != nil {
			return nil, 0, err
		}
	}

	return &FileEntry{
		Path:         relPath,
		OriginalPath: cand.originalPath,
		Size:         cand.info.Size(),
		Modified:     cand.info.ModTime(),
		Checksum:     checksum,
	}, storedSize, nil
}

// quickVerify reloads the just-written manifest, which recomputes and checks
// the file-list checksum. It validates manifest integrity, not per-file
// content.
func (e *BackupEngine) quickVerify(backupID string) error {
	if _, err := e.store.LoadManifest(backupID); err != nil {
		return NewIntegrityError(
			fmt.Sprintf("post-backup verification failed for %s", backupID), err)
	}
	return nil
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, NewIOError(fmt.Sprintf("failed to open %s", src), err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, NewIOError(fmt.Sprintf("failed to create %s", dst), err)
	}

	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		os.Remove(dst)
		return 0, NewIOError(fmt.Sprintf("failed to copy %s", src), err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return 0, NewIOError(fmt.Sprintf("failed to finalize %s", dst), err)
	}

	return n, nil
}
