package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"backup-dr/internal/backup"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create and manage backups",
}

var (
	backupSources    []string
	backupType       string
	backupLabel      string
	backupNoCompress bool
	backupAlgorithm  string
	backupVerify     bool
	backupExcludes   []string
)

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a backup of one or more sources",
	Long: `Create a backup of one or more files or directories.

Each file is checksummed with SHA-256 before compression and stored under
a new backup identifier together with a manifest describing the run.
Incremental backups include only files modified since the last backup of
the same sources; when no prior backup exists an incremental run degrades
to a full one.

Examples:
  backup-dr backup create --source /etc --source /var/www
  backup-dr backup create --source /data --type incremental --verify
  backup-dr backup create --source /data --exclude "*.tmp" --exclude cache`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		algorithm := app.Config.Algorithm()
		if backupAlgorithm != "" {
			algorithm = backup.CompressionAlgorithm(backupAlgorithm)
			if _, err := app.Compressor.Codec(algorithm); err != nil {
				app.Renderer.Error(err)
				return err
			}
		}

		parsedType, err := backup.ParseBackupType(backupType)
		if err != nil {
			app.Renderer.Error(err)
			return err
		}

		params := backup.CreateParams{
			Sources:         backupSources,
			Type:            parsedType,
			Label:           backupLabel,
			Compression:     app.Config.Compression.Enabled && !backupNoCompress,
			Algorithm:       algorithm,
			Verify:          backupVerify,
			ExcludePatterns: backupExcludes,
		}

		result, err := app.Backups.Create(context.Background(), params)
		if err != nil {
			app.Renderer.Error(err)
			return err
		}
		return app.Renderer.BackupResult(result)
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all backups, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		manifests, err := app.Store.ListManifests()
		if err != nil {
			app.Renderer.Error(err)
			return err
		}
		return app.Renderer.ManifestList(manifests)
	},
}

var backupShowCmd = &cobra.Command{
	Use:   "show <backup-id>",
	Short: "Show the manifest of a backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		manifest, err := app.Store.LoadManifest(args[0])
		if err != nil {
			app.Renderer.Error(err)
			return err
		}
		return app.Renderer.Manifest(manifest)
	},
}

var backupDeleteCmd = &cobra.Command{
	Use:   "delete <backup-id>",
	Short: "Delete a backup and its stored data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Store.DeleteBackup(args[0]); err != nil {
			app.Renderer.Error(err)
			return err
		}
		fmt.Printf("Deleted backup %s\n", args[0])
		return nil
	},
}

var (
	pruneKeep      int
	pruneOlderThan time.Duration
	pruneDryRun    bool
)

// selectPrunable returns the backups a prune run would delete: everything
// beyond the keep newest, plus anything older than the cutoff when one is
// set. The keep count always wins, so a stale-but-recent backup survives.
func selectPrunable(manifests []*backup.Manifest, keep int, olderThan time.Duration, now time.Time) []*backup.Manifest {
	sorted := make([]*backup.Manifest, len(manifests))
	copy(sorted, manifests)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	var prunable []*backup.Manifest
	for i, m := range sorted {
		if i < keep {
			continue
		}
		if olderThan > 0 && now.Sub(m.CreatedAt) < olderThan {
			continue
		}
		prunable = append(prunable, m)
	}
	return prunable
}

var backupPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old backups by count or age",
	Long: `Delete old backups, always keeping the N most recent.

With --older-than, only backups beyond the keep count that are also older
than the given duration are deleted. Use --dry-run to see what would be
deleted without deleting anything.

Examples:
  backup-dr backup prune --keep 5
  backup-dr backup prune --keep 3 --older-than 720h
  backup-dr backup prune --keep 10 --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if pruneKeep < 1 {
			return backup.NewValidationError("keep must be at least 1", nil)
		}

		app, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		manifests, err := app.Store.ListManifests()
		if err != nil {
			app.Renderer.Error(err)
			return err
		}

		prunable := selectPrunable(manifests, pruneKeep, pruneOlderThan, time.Now().UTC())
		if len(prunable) == 0 {
			fmt.Printf("Nothing to prune: %d backup(s), keeping %d\n", len(manifests), pruneKeep)
			return nil
		}

		if pruneDryRun {
			fmt.Printf("Would prune %d backup(s):\n", len(prunable))
			for _, m := range prunable {
				fmt.Printf("  %s (%s)\n", m.BackupID, m.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			}
			return nil
		}

		deleted := 0
		for _, m := range prunable {
			if err := app.Store.DeleteBackup(m.BackupID); err != nil {
				app.Logger.Warnf("Failed to delete backup %s: %v", m.BackupID, err)
				continue
			}
			deleted++
		}
		fmt.Printf("Pruned %d backup(s), kept %d\n", deleted, len(manifests)-deleted)
		return nil
	},
}

func init() {
	backupCreateCmd.Flags().StringArrayVarP(&backupSources, "source", "s", nil, "source file or directory (repeatable)")
	backupCreateCmd.Flags().StringVarP(&backupType, "type", "t", string(backup.TypeFull), "backup type (full or incremental)")
	backupCreateCmd.Flags().StringVarP(&backupLabel, "label", "l", "", "human-readable label for the backup")
	backupCreateCmd.Flags().BoolVar(&backupNoCompress, "no-compression", false, "store files verbatim without compression")
	backupCreateCmd.Flags().StringVar(&backupAlgorithm, "algorithm", "", "compression algorithm (gzip, zstd or lz4)")
	backupCreateCmd.Flags().BoolVar(&backupVerify, "verify", false, "re-verify the manifest after the backup completes")
	backupCreateCmd.Flags().StringArrayVar(&backupExcludes, "exclude", nil, "glob pattern of paths to skip (repeatable)")
	backupCreateCmd.MarkFlagRequired("source")

	backupPruneCmd.Flags().IntVar(&pruneKeep, "keep", 5, "number of most recent backups to keep")
	backupPruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 0, "only prune backups older than this duration, e.g. 720h")
	backupPruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "show what would be pruned without deleting")

	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupShowCmd)
	backupCmd.AddCommand(backupDeleteCmd)
	backupCmd.AddCommand(backupPruneCmd)
	rootCmd.AddCommand(backupCmd)
}
