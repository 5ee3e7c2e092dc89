package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"backup-dr/internal/backup"
)

var (
	restoreDestination string
	restoreOverwrite   bool
	restoreSelective   []string
	restoreDryRun      bool
	restorePreBackup   bool
	restoreYes         bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore <backup-id>",
	Short: "Restore files from a backup",
	Long: `Restore files from a backup to their original paths or to a
different destination directory.

Existing files are never overwritten unless --overwrite is given; they
are reported as conflicts and skipped. Use --dry-run to preview what a
restore would do without touching the filesystem, and --pre-backup to
snapshot the files an overwriting restore is about to replace.

Examples:
  backup-dr restore backup-20260115-093000-deadbeef --dry-run
  backup-dr restore backup-20260115-093000-deadbeef --destination /tmp/recovered
  backup-dr restore backup-20260115-093000-deadbeef --overwrite --pre-backup
  backup-dr restore backup-20260115-093000-deadbeef --select "*.conf" --select docs`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		params := backup.RestoreParams{
			BackupID:    args[0],
			Destination: restoreDestination,
			Overwrite:   restoreOverwrite,
			Selective:   restoreSelective,
			DryRun:      restoreDryRun,
			PreBackup:   restorePreBackup,
		}

		ctx := context.Background()

		// An overwriting restore destroys live files, so surface the
		// conflicts and ask before doing it for real.
		if restoreOverwrite && !restoreDryRun {
			preview := params
			preview.DryRun = true
			previewResult, err := app.Restores.Restore(ctx, preview)
			if err != nil {
				app.Renderer.Error(err)
				return err
			}

			confirmed, err := app.Confirmation.ConfirmRestore(params.BackupID, previewResult.Changes.Conflicts, restoreYes)
			if err != nil {
				app.Renderer.Error(err)
				return err
			}
			if !confirmed {
				fmt.Println("Restore cancelled")
				return nil
			}
		}

		result, err := app.Restores.Restore(ctx, params)
		if err != nil {
			app.Renderer.Error(err)
			return err
		}
		return app.Renderer.RestoreResult(result)
	},
}

func init() {
	restoreCmd.Flags().StringVarP(&restoreDestination, "destination", "d", "", "restore into this directory instead of the original paths")
	restoreCmd.Flags().BoolVar(&restoreOverwrite, "overwrite", false, "overwrite files that already exist")
	restoreCmd.Flags().StringArrayVar(&restoreSelective, "select", nil, "restore only files matching this pattern (repeatable)")
	restoreCmd.Flags().BoolVar(&restoreDryRun, "dry-run", false, "preview the restore without writing anything")
	restoreCmd.Flags().BoolVar(&restorePreBackup, "pre-backup", false, "snapshot files before overwriting them")
	restoreCmd.Flags().BoolVarP(&restoreYes, "yes", "y", false, "skip the confirmation prompt")

	rootCmd.AddCommand(restoreCmd)
}
