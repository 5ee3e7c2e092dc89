package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"backup-dr/internal/application"
	"backup-dr/internal/config"
)

var cfgFile string

// CLI flag variables
var (
	backupDir    string
	scheduleFile string
	verbose      bool
	quiet        bool
	logFile      string
	noColor      bool
	outputFormat string
	workers      int
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "backup-dr",
	Short: "Backup, restore and scheduling for local directory trees",
	Long: `backup-dr creates content-addressed, compressed backups of local
directories, restores them with conflict detection and dry-run preview,
and runs recurring backups on cron schedules.

Every backed-up file is checksummed with SHA-256 before compression, so
restores can always be verified against the original content. Backups are
full or incremental; incremental runs include only files modified since
the last backup of the same sources.

Examples:
  # Full backup of two directories
  backup-dr backup create --source /etc --source /var/www --label nightly

  # Incremental backup, zstd compression, with post-run verification
  backup-dr backup create --source /data --type incremental --algorithm zstd --verify

  # Preview a restore without touching the filesystem
  backup-dr restore backup-20260115-093000-deadbeef --dry-run

  # Restore into a different directory, overwriting, with a safety snapshot
  backup-dr restore backup-20260115-093000-deadbeef \
      --destination /tmp/recovered --overwrite --pre-backup

  # Nightly schedule at 02:00
  backup-dr schedule create nightly --cron "0 2 * * *" --source /data

  # Run enabled schedules in the foreground
  backup-dr schedule run`,
	SilenceUsage: true,
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.backup-dr.yaml)")
	rootCmd.PersistentFlags().StringVar(&backupDir, "backup-dir", "", "backup repository directory (default is $HOME/.backup-dr/backups)")
	rootCmd.PersistentFlags().StringVar(&scheduleFile, "schedule-file", "", "schedule registry file (default is $HOME/.backup-dr/schedules.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to file instead of stderr")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable color output")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "", "output format (table, json, yaml, compact)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "concurrent file workers per backup run")

	viper.BindPFlag("backup_dir", rootCmd.PersistentFlags().Lookup("backup-dir"))
	viper.BindPFlag("schedule_file", rootCmd.PersistentFlags().Lookup("schedule-file"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag("display.output_format", rootCmd.PersistentFlags().Lookup("format"))
	viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))

	rootCmd.AddCommand(createVersionCommand())
	rootCmd.AddCommand(createConfigCommand())
}

// initConfig reads the config file and BACKUP_DR_* environment variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".backup-dr")
	}

	viper.SetEnvPrefix("BACKUP_DR")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// buildApp builds the application from viper state plus explicit flag
// overrides
func buildApp(cmd *cobra.Command) (*application.Application, error) {
	cfg := &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if backupDir != "" {
		cfg.BackupDir = backupDir
	}
	if scheduleFile != "" {
		cfg.ScheduleFile = scheduleFile
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = verbose
	}
	if cmd.Flags().Changed("quiet") {
		cfg.Quiet = quiet
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	if outputFormat != "" {
		cfg.Display.OutputFormat = outputFormat
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = workers
	}

	if cmd.Flags().Changed("no-color") {
		cfg.Display.ColorEnabled = !noColor
	} else if !viper.IsSet("display.color_enabled") {
		cfg.Display.ColorEnabled = true
	}
	if !viper.IsSet("compression.enabled") {
		cfg.Compression.Enabled = true
	}

	return application.New(cfg)
}

// Version information (set by main package)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
	goVersion = "unknown"
)

// SetVersionInfo sets the version information from build flags
func SetVersionInfo(v, bt, gc, gv string) {
	version = v
	buildTime = bt
	gitCommit = gc
	goVersion = gv
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("backup-dr version %s\n", version)
			fmt.Printf("Built: %s\n", buildTime)
			fmt.Printf("Commit: %s\n", gitCommit)
			fmt.Printf("Go version: %s\n", goVersion)
		},
	}
}

func createConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Generate a sample configuration file",
		Long: `Generate a sample configuration file for use with the --config flag.

Examples:
  backup-dr config > ~/.backup-dr.yaml`,
		Run: func(cmd *cobra.Command, args []string) {
			sampleConfig := `# backup-dr configuration file

# Backup repository root; one subdirectory per backup
backup_dir: ~/.backup-dr/backups

# Schedule registry location
schedule_file: ~/.backup-dr/schedules.json

# Compression defaults for new backups
compression:
  enabled: true
  algorithm: gzip      # gzip, zstd or lz4
  level: 6             # gzip level 1-9

# Concurrent file workers per backup run
workers: 4

# Logging
verbose: false
quiet: false
log_file: ""           # empty = stderr

# Output rendering
display:
  color_enabled: true
  output_format: table # table, json, yaml or compact

# Environment variables override the file with the BACKUP_DR_ prefix:
#   BACKUP_DR_BACKUP_DIR=/mnt/backups
#   BACKUP_DR_VERBOSE=1
`
			fmt.Print(sampleConfig)
		},
	}
}
