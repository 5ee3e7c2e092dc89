package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"backup-dr/internal/backup"
	"backup-dr/internal/schedule"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage recurring backup schedules",
	Long: `Manage recurring backup schedules.

Schedules are persisted in a registry file and fire as standard five
field cron expressions (minute hour day-of-month month day-of-week).
Registered schedules only fire while a scheduler process is running;
use "backup-dr schedule run" to run one in the foreground.`,
}

var (
	schedCron     string
	schedSources  []string
	schedType     string
	schedLabel    string
	schedNoCompr  bool
	schedVerify   bool
	schedExcludes []string
	schedDisabled bool
)

var scheduleCreateCmd = &cobra.Command{
	Use:   "create <schedule-id>",
	Short: "Register a new backup schedule",
	Long: `Register a new backup schedule under a caller-chosen identifier.

Examples:
  backup-dr schedule create nightly --cron "0 2 * * *" --source /data
  backup-dr schedule create hourly-logs --cron "0 * * * *" \
      --source /var/log --type incremental --exclude "*.gz"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.StartScheduler(nil); err != nil {
			app.Renderer.Error(err)
			return err
		}

		backupType, err := backup.ParseBackupType(schedType)
		if err != nil {
			app.Renderer.Error(err)
			return err
		}

		created, err := app.Scheduler.Create(schedule.Schedule{
			ScheduleID:      args[0],
			CronExpression:  schedCron,
			Sources:         schedSources,
			Type:            backupType,
			Label:           schedLabel,
			Compression:     !schedNoCompr,
			Verify:          schedVerify,
			ExcludePatterns: schedExcludes,
			Enabled:         !schedDisabled,
		})
		if err != nil {
			app.Renderer.Error(err)
			return err
		}
		return app.Renderer.Schedule(created)
	},
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered schedules",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.StartScheduler(nil); err != nil {
			app.Renderer.Error(err)
			return err
		}

		schedules, err := app.Scheduler.List()
		if err != nil {
			app.Renderer.Error(err)
			return err
		}
		return app.Renderer.ScheduleList(schedules)
	},
}

var scheduleShowCmd = &cobra.Command{
	Use:   "show <schedule-id>",
	Short: "Show one schedule in detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.StartScheduler(nil); err != nil {
			app.Renderer.Error(err)
			return err
		}

		sched, err := app.Scheduler.Get(args[0])
		if err != nil {
			app.Renderer.Error(err)
			return err
		}
		return app.Renderer.Schedule(sched)
	},
}

var scheduleUpdateCmd = &cobra.Command{
	Use:   "update <schedule-id>",
	Short: "Update fields of an existing schedule",
	Long: `Update fields of an existing schedule. Only flags that are set
change the schedule; everything else keeps its current value.

Examples:
  backup-dr schedule update nightly --cron "30 3 * * *"
  backup-dr schedule update nightly --source /data --source /etc`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.StartScheduler(nil); err != nil {
			app.Renderer.Error(err)
			return err
		}

		params := schedule.UpdateParams{}
		if cmd.Flags().Changed("cron") {
			params.CronExpression = &schedCron
		}
		if cmd.Flags().Changed("source") {
			params.Sources = schedSources
		}
		if cmd.Flags().Changed("type") {
			backupType, err := backup.ParseBackupType(schedType)
			if err != nil {
				app.Renderer.Error(err)
				return err
			}
			params.Type = &backupType
		}
		if cmd.Flags().Changed("label") {
			params.Label = &schedLabel
		}
		if cmd.Flags().Changed("no-compression") {
			compression := !schedNoCompr
			params.Compression = &compression
		}
		if cmd.Flags().Changed("verify") {
			params.Verify = &schedVerify
		}
		if cmd.Flags().Changed("exclude") {
			params.ExcludePatterns = schedExcludes
		}

		updated, err := app.Scheduler.Update(args[0], params)
		if err != nil {
			app.Renderer.Error(err)
			return err
		}
		return app.Renderer.Schedule(updated)
	},
}

var scheduleDeleteCmd = &cobra.Command{
	Use:   "delete <schedule-id>",
	Short: "Remove a schedule from the registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.StartScheduler(nil); err != nil {
			app.Renderer.Error(err)
			return err
		}

		if err := app.Scheduler.Delete(args[0]); err != nil {
			app.Renderer.Error(err)
			return err
		}
		fmt.Printf("Deleted schedule %s\n", args[0])
		return nil
	},
}

var scheduleEnableCmd = &cobra.Command{
	Use:   "enable <schedule-id>",
	Short: "Enable a schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setScheduleEnabled(cmd, args[0], true) },
}

var scheduleDisableCmd = &cobra.Command{
	Use:   "disable <schedule-id>",
	Short: "Disable a schedule without deleting it",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setScheduleEnabled(cmd, args[0], false) },
}

func setScheduleEnabled(cmd *cobra.Command, scheduleID string, enabled bool) error {
	app, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.StartScheduler(nil); err != nil {
		app.Renderer.Error(err)
		return err
	}

	var sched *schedule.Schedule
	if enabled {
		sched, err = app.Scheduler.Enable(scheduleID)
	} else {
		sched, err = app.Scheduler.Disable(scheduleID)
	}
	if err != nil {
		app.Renderer.Error(err)
		return err
	}

	state := "enabled"
	if !sched.Enabled {
		state = "disabled"
	}
	fmt.Printf("Schedule %s %s\n", sched.ScheduleID, state)
	return nil
}

var scheduleTriggerCmd = &cobra.Command{
	Use:   "trigger <schedule-id>",
	Short: "Run a schedule's backup immediately",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.StartScheduler(nil); err != nil {
			app.Renderer.Error(err)
			return err
		}

		result, err := app.Scheduler.Trigger(context.Background(), args[0])
		if err != nil {
			app.Renderer.Error(err)
			return err
		}
		return app.Renderer.BackupResult(result)
	},
}

var scheduleStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show scheduler status and per-schedule state",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.StartScheduler(nil); err != nil {
			app.Renderer.Error(err)
			return err
		}

		status, err := app.Scheduler.Status()
		if err != nil {
			app.Renderer.Error(err)
			return err
		}
		return app.Renderer.ScheduleStatus(status)
	},
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler in the foreground",
	Long: `Run the scheduler in the foreground until interrupted.

All enabled schedules fire at their cron times for as long as this
process is alive. Stop it with Ctrl-C or SIGTERM; in-flight backups
are allowed to finish before the process exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.StartScheduler(nil); err != nil {
			app.Renderer.Error(err)
			return err
		}

		status, err := app.Scheduler.Status()
		if err != nil {
			app.Renderer.Error(err)
			return err
		}
		app.Logger.Infof("Scheduler running with %d enabled schedule(s)", status.EnabledSchedules)
		if status.EnabledSchedules == 0 {
			app.Logger.Warn("No enabled schedules; the scheduler will sit idle")
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		sig := <-sigCh
		app.Logger.Infof("Received %s, shutting down scheduler", sig)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{scheduleCreateCmd, scheduleUpdateCmd} {
		c.Flags().StringVar(&schedCron, "cron", "", "five-field cron expression, e.g. \"0 2 * * *\"")
		c.Flags().StringArrayVarP(&schedSources, "source", "s", nil, "source file or directory (repeatable)")
		c.Flags().StringVarP(&schedType, "type", "t", string(backup.TypeFull), "backup type (full or incremental)")
		c.Flags().StringVarP(&schedLabel, "label", "l", "", "label applied to backups created by this schedule")
		c.Flags().BoolVar(&schedNoCompr, "no-compression", false, "store files verbatim without compression")
		c.Flags().BoolVar(&schedVerify, "verify", false, "re-verify each scheduled backup after it completes")
		c.Flags().StringArrayVar(&schedExcludes, "exclude", nil, "glob pattern of paths to skip (repeatable)")
	}
	scheduleCreateCmd.Flags().BoolVar(&schedDisabled, "disabled", false, "register the schedule without enabling it")
	scheduleCreateCmd.MarkFlagRequired("cron")
	scheduleCreateCmd.MarkFlagRequired("source")

	scheduleCmd.AddCommand(scheduleCreateCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleShowCmd)
	scheduleCmd.AddCommand(scheduleUpdateCmd)
	scheduleCmd.AddCommand(scheduleDeleteCmd)
	scheduleCmd.AddCommand(scheduleEnableCmd)
	scheduleCmd.AddCommand(scheduleDisableCmd)
	scheduleCmd.AddCommand(scheduleTriggerCmd)
	scheduleCmd.AddCommand(scheduleStatusCmd)
	scheduleCmd.AddCommand(scheduleRunCmd)
	rootCmd.AddCommand(scheduleCmd)
}
