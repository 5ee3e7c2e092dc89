package backup

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"backup-dr/internal/logging"
)

// RestoreEngine restores files from an existing backup back onto the
// filesystem, with conflict detection, selective filtering, dry-run preview
// and an optional pre-restore safety backup.
type RestoreEngine struct {
	store      *Store
	compressor *Compressor
	backups    *BackupEngine
	logger     *logging.Logger
}

// NewRestoreEngine creates a RestoreEngine. The backup engine is used for
// pre-restore safety backups.
func NewRestoreEngine(store *Store, compressor *Compressor, backups *BackupEngine, logger *logging.Logger) *RestoreEngine {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &RestoreEngine{
		store:      store,
		compressor: compressor,
		backups:    backups,
		logger:     logger,
	}
}

// Restore applies (or previews) a restore run
func (e *RestoreEngine) Restore(ctx context.Context, params RestoreParams) (*RestoreResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()

	manifest, err := e.store.LoadManifest(params.BackupID)
	if err != nil {
		return nil, err
	}

	entries := selectEntries(manifest.Files, params.Selective)

	// Resolve target paths and detect conflicts before touching anything
	targets := make([]string, len(entries))
	conflicts := make([]Conflict, 0)
	for i, entry := range entries {
		target := entry.OriginalPath
		if params.Destination != "" {
			target = filepath.Join(params.Destination, filepath.FromSlash(entry.Path))
		}
		targets[i] = target

		info, statErr := os.Stat(target)
		if statErr == nil {
			action := ConflictSkip
			if params.Overwrite {
				action = ConflictOverwrite
			}
			conflicts = append(conflicts, Conflict{
				Path:             target,
				ExistingModified: info.ModTime(),
				BackupModified:   entry.Modified,
				Action:           action,
			})
		}
	}

	result := &RestoreResult{
		BackupID:  params.BackupID,
		Operation: OperationRestore,
		Warnings:  []string{},
	}

	if params.DryRun {
		result.Success = true
		result.Operation = OperationDryRun
		result.Changes = RestoreChanges{
			FilesSkipped: len(conflicts),
			Conflicts:    conflicts,
		}
		result.Duration = time.Since(start)
		return result, nil
	}

	if params.PreBackup && params.Overwrite {
		preID, err := e.safetyBackup(ctx, params, conflicts)
		if err != nil {
			return nil, err
		}
		result.PreBackupID = preID
	}

	conflicted := make(map[string]struct{}, len(conflicts))
	for _, c := range conflicts {
		conflicted[c.Path] = struct{}{}
	}

	changes := RestoreChanges{Conflicts: conflicts}
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, NewIOError("restore cancelled", err)
		}

		target := targets[i]
		if _, exists := conflicted[target]; exists && !params.Overwrite {
			changes.FilesSkipped++
			continue
		}

		if err := e.restoreFile(manifest, entry, target); err != nil {
			e.logger.LogFileSkipped(target, err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("failed to restore %s: %v", target, err))
			changes.FilesSkipped++
			continue
		}
		changes.FilesRestored++
		changes.BytesRestored += entry.Size
	}

	result.Success = true
	result.Changes = changes
	result.Duration = time.Since(start)
	e.logger.LogRestoreRun(params.BackupID, changes.FilesRestored, changes.FilesSkipped, result.Duration, nil)

	return result, nil
}

// restoreFile materializes one manifest entry at its target path
func (e *RestoreEngine) restoreFile(manifest *Manifest, entry FileEntry, target string) error {
	relPath := entry.Path
	if manifest.Config.Compression {
		codec, err := e.compressor.Codec(manifest.Config.Algorithm)
		if err != nil {
			return err
		}
		relPath += codec.Suffix()
	}

	source, err := e.store.DataPath(manifest.BackupID, relPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return NewIOError("failed to create target directory", err)
	}

	if manifest.Config.Compression {
		return e.compressor.Decompress(source, target, manifest.Config.Algorithm)
	}
	_, err = copyFile(source, target)
	return err
}

// safetyBackup takes a full backup of the paths an overwriting restore is
// about to touch. Runs before any write so the pre-restore state is always
// recoverable.
func (e *RestoreEngine) safetyBackup(ctx context.Context, params RestoreParams, conflicts []Conflict) (string, error) {
	var sources []string
	if params.Destination != "" {
		if _, err := os.Stat(params.Destination); err == nil {
			sources = []string{params.Destination}
		}
	} else {
		seen := make(map[string]struct{})
		for _, c := range conflicts {
			if _, ok := seen[c.Path]; ok {
				continue
			}
			seen[c.Path] = struct{}{}
			sources = append(sources, c.Path)
		}
	}
	if len(sources) == 0 {
		return "", nil
	}

	pre, err := e.backups.Create(ctx, CreateParams{
		Sources:     sources,
		Type:        TypeFull,
		Label:       fmt.Sprintf("pre-restore of %s", params.BackupID),
		Compression: true,
	})
	if err != nil {
		return "", NewIOError("pre-restore safety backup failed", err)
	}

	e.logger.WithField("pre_backup_id", pre.BackupID).Info("Created pre-restore safety backup")
	return pre.BackupID, nil
}

// selectEntries filters manifest entries against selective patterns. An
// empty pattern list selects everything. Leading "**/" and trailing "/**"
// are stripped; patterns containing glob metacharacters match the original
// path or its base name via path.Match, plain patterns match as substrings.
func selectEntries(files []FileEntry, patterns []string) []FileEntry {
	if len(patterns) == 0 {
		return files
	}

	normalized := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimPrefix(p, "**/")
		p = strings.TrimSuffix(p, "/**")
		if p != "" {
			normalized = append(normalized, p)
		}
	}

	var selected []FileEntry
	for _, entry := range files {
		slashed := filepath.ToSlash(entry.OriginalPath)
		for _, p := range normalized {
			if matchesSelective(p, slashed) {
				selected = append(selected, entry)
				break
			}
		}
	}
	return selected
}

func matchesSelective(pattern, slashed string) bool {
	if strings.ContainsAny(pattern, "*?[") {
		if ok, err := path.Match(pattern, slashed); err == nil && ok {
			return true
		}
		ok, err := path.Match(pattern, path.Base(slashed))
		return err == nil && ok
	}
	return strings.Contains(slashed, pattern)
}
