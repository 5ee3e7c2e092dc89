package display

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"backup-dr/internal/backup"
	"backup-dr/internal/schedule"
)

// OutputFormat selects how results are rendered
type OutputFormat string

const (
	FormatTable   OutputFormat = "table"
	FormatJSON    OutputFormat = "json"
	FormatYAML    OutputFormat = "yaml"
	FormatCompact OutputFormat = "compact"
)

// Renderer writes operation results to a terminal or pipe
type Renderer struct {
	out    io.Writer
	format OutputFormat
	colors *ColorSystem
}

// NewRenderer creates a Renderer writing to out
func NewRenderer(out io.Writer, format OutputFormat, colors *ColorSystem) *Renderer {
	if colors == nil {
		colors = NewColorSystem(false)
	}
	return &Renderer{out: out, format: format, colors: colors}
}

// BackupResult renders the outcome of a backup run
func (r *Renderer) BackupResult(result *backup.CreateResult) error {
	switch r.format {
	case FormatJSON:
		return r.renderJSON(result)
	case FormatYAML:
		return r.renderYAML(result)
	case FormatCompact:
		_, err := fmt.Fprintf(r.out, "%s\t%s\t%d\t%d\t%d\t%d\n",
			result.BackupID, result.Type, result.FileCount, result.FilesSkipped,
			result.OriginalSize, result.CompressedSize)
		return err
	}

	fmt.Fprintln(r.out, r.colors.Sprint(ColorHeader, "Backup complete"))
	fmt.Fprintf(r.out, "  ID:          %s\n", r.colors.Sprint(ColorInfo, result.BackupID))
	fmt.Fprintf(r.out, "  Type:        %s\n", result.Type)
	fmt.Fprintf(r.out, "  Files:       %d", result.FileCount)
	if result.FilesSkipped > 0 {
		fmt.Fprintf(r.out, " (%s)", r.colors.Sprintf(ColorWarning, "%d skipped", result.FilesSkipped))
	}
	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "  Size:        %s", formatBytes(result.OriginalSize))
	if result.CompressedSize > 0 && result.CompressedSize != result.OriginalSize {
		fmt.Fprintf(r.out, " -> %s", formatBytes(result.CompressedSize))
	}
	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "  Duration:    %s\n", formatDuration(result.Duration))
	r.renderWarnings(result.Warnings)
	return nil
}

// RestoreResult renders the outcome of a restore or dry-run
func (r *Renderer) RestoreResult(result *backup.RestoreResult) error {
	switch r.format {
	case FormatJSON:
		return r.renderJSON(result)
	case FormatYAML:
		return r.renderYAML(result)
	case FormatCompact:
		_, err := fmt.Fprintf(r.out, "%s\t%s\t%d\t%d\t%d\n",
			result.BackupID, result.Operation, result.Changes.FilesRestored,
			result.Changes.FilesSkipped, result.Changes.BytesRestored)
		return err
	}

	header := "Restore complete"
	if result.Operation == backup.OperationDryRun {
		header = "Restore preview (dry run)"
	}
	fmt.Fprintln(r.out, r.colors.Sprint(ColorHeader, header))
	fmt.Fprintf(r.out, "  Backup:      %s\n", r.colors.Sprint(ColorInfo, result.BackupID))
	fmt.Fprintf(r.out, "  Restored:    %d files, %s\n",
		result.Changes.FilesRestored, formatBytes(result.Changes.BytesRestored))
	if result.Changes.FilesSkipped > 0 {
		fmt.Fprintf(r.out, "  Skipped:     %s\n",
			r.colors.Sprintf(ColorWarning, "%d files", result.Changes.FilesSkipped))
	}
	if result.PreBackupID != "" {
		fmt.Fprintf(r.out, "  Safety copy: %s\n", result.PreBackupID)
	}
	fmt.Fprintf(r.out, "  Duration:    %s\n", formatDuration(result.Duration))

	if len(result.Changes.Conflicts) > 0 {
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, r.colors.Sprint(ColorHeader, "Conflicts"))
		w := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "  PATH\tEXISTING\tBACKUP\tACTION")
		for _, c := range result.Changes.Conflicts {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n",
				c.Path,
				c.ExistingModified.Format(time.RFC3339),
				c.BackupModified.Format(time.RFC3339),
				c.Action)
		}
		w.Flush()
	}
	r.renderWarnings(result.Warnings)
	return nil
}

// ManifestList renders the backup inventory, newest first
func (r *Renderer) ManifestList(manifests []*backup.Manifest) error {
	switch r.format {
	case FormatJSON:
		return r.renderJSON(manifests)
	case FormatYAML:
		return r.renderYAML(manifests)
	case FormatCompact:
		for _, m := range manifests {
			fmt.Fprintf(r.out, "%s\t%s\t%d\t%d\t%s\n",
				m.BackupID, m.Type, len(m.Files), m.TotalSize(),
				m.CreatedAt.Format(time.RFC3339))
		}
		return nil
	}

	if len(manifests) == 0 {
		fmt.Fprintln(r.out, r.colors.Sprint(ColorMuted, "No backups found"))
		return nil
	}

	w := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tFILES\tSIZE\tLABEL\tCREATED")
	for _, m := range manifests {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			m.BackupID, m.Type, len(m.Files), formatBytes(m.TotalSize()),
			m.Label, m.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

// Manifest renders one backup in detail
func (r *Renderer) Manifest(m *backup.Manifest) error {
	switch r.format {
	case FormatJSON:
		return r.renderJSON(m)
	case FormatYAML:
		return r.renderYAML(m)
	case FormatCompact:
		for _, f := range m.Files {
			fmt.Fprintf(r.out, "%s\t%s\t%d\t%s\n", m.BackupID, f.Path, f.Size, f.Checksum)
		}
		return nil
	}

	fmt.Fprintln(r.out, r.colors.Sprint(ColorHeader, m.BackupID))
	fmt.Fprintf(r.out, "  Type:        %s\n", m.Type)
	if m.Label != "" {
		fmt.Fprintf(r.out, "  Label:       %s\n", m.Label)
	}
	fmt.Fprintf(r.out, "  Sources:     %s\n", strings.Join(m.Sources, ", "))
	fmt.Fprintf(r.out, "  Created:     %s\n", m.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(r.out, "  Compression: %s\n", compressionLabel(m.Config))
	fmt.Fprintf(r.out, "  Files:       %d (%s)\n", len(m.Files), formatBytes(m.TotalSize()))

	w := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  PATH\tSIZE\tMODIFIED")
	for _, f := range m.Files {
		fmt.Fprintf(w, "  %s\t%s\t%s\n",
			f.Path, formatBytes(f.Size), f.Modified.Local().Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

// ScheduleList renders all registered schedules
func (r *Renderer) ScheduleList(schedules []schedule.Schedule) error {
	switch r.format {
	case FormatJSON:
		return r.renderJSON(schedules)
	case FormatYAML:
		return r.renderYAML(schedules)
	case FormatCompact:
		for _, s := range schedules {
			fmt.Fprintf(r.out, "%s\t%s\t%s\t%t\n",
				s.ScheduleID, s.CronExpression, s.Type, s.Enabled)
		}
		return nil
	}

	if len(schedules) == 0 {
		fmt.Fprintln(r.out, r.colors.Sprint(ColorMuted, "No schedules registered"))
		return nil
	}

	w := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCRON\tTYPE\tSOURCES\tSTATE\tNEXT RUN")
	for _, s := range schedules {
		state := r.colors.Sprint(ColorSuccess, "enabled")
		if !s.Enabled {
			state = r.colors.Sprint(ColorMuted, "disabled")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ScheduleID, s.CronExpression, s.Type,
			strings.Join(s.Sources, ","), state, formatOptionalTime(s.NextRun))
	}
	return w.Flush()
}

// Schedule renders one schedule in detail
func (r *Renderer) Schedule(s *schedule.Schedule) error {
	switch r.format {
	case FormatJSON:
		return r.renderJSON(s)
	case FormatYAML:
		return r.renderYAML(s)
	case FormatCompact:
		_, err := fmt.Fprintf(r.out, "%s\t%s\t%s\t%t\n",
			s.ScheduleID, s.CronExpression, s.Type, s.Enabled)
		return err
	}

	fmt.Fprintln(r.out, r.colors.Sprint(ColorHeader, s.ScheduleID))
	fmt.Fprintf(r.out, "  Cron:        %s\n", s.CronExpression)
	fmt.Fprintf(r.out, "  Type:        %s\n", s.Type)
	if s.Label != "" {
		fmt.Fprintf(r.out, "  Label:       %s\n", s.Label)
	}
	fmt.Fprintf(r.out, "  Sources:     %s\n", strings.Join(s.Sources, ", "))
	if len(s.ExcludePatterns) > 0 {
		fmt.Fprintf(r.out, "  Excludes:    %s\n", strings.Join(s.ExcludePatterns, ", "))
	}
	fmt.Fprintf(r.out, "  Compression: %t\n", s.Compression)
	fmt.Fprintf(r.out, "  Verify:      %t\n", s.Verify)
	state := r.colors.Sprint(ColorSuccess, "enabled")
	if !s.Enabled {
		state = r.colors.Sprint(ColorMuted, "disabled")
	}
	fmt.Fprintf(r.out, "  State:       %s\n", state)
	fmt.Fprintf(r.out, "  Last run:    %s\n", formatOptionalTime(s.LastRun))
	fmt.Fprintf(r.out, "  Next run:    %s\n", formatOptionalTime(s.NextRun))
	fmt.Fprintf(r.out, "  Created:     %s\n", s.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	return nil
}

// ScheduleStatus renders the scheduler's aggregate status
func (r *Renderer) ScheduleStatus(status *schedule.Status) error {
	switch r.format {
	case FormatJSON:
		return r.renderJSON(status)
	case FormatYAML:
		return r.renderYAML(status)
	case FormatCompact:
		_, err := fmt.Fprintf(r.out, "%d\t%d\t%d\t%d\n",
			status.TotalSchedules, status.EnabledSchedules,
			status.DisabledSchedules, status.ActiveJobs)
		return err
	}

	fmt.Fprintln(r.out, r.colors.Sprint(ColorHeader, "Scheduler status"))
	fmt.Fprintf(r.out, "  Schedules:   %d total, %d enabled, %d disabled\n",
		status.TotalSchedules, status.EnabledSchedules, status.DisabledSchedules)
	fmt.Fprintf(r.out, "  Active jobs: %d\n", status.ActiveJobs)
	if len(status.Schedules) > 0 {
		fmt.Fprintln(r.out)
		return r.ScheduleList(status.Schedules)
	}
	return nil
}

// Error renders an operation failure
func (r *Renderer) Error(err error) {
	fmt.Fprintf(r.out, "%s %v\n", r.colors.Sprint(ColorError, "Error:"), err)
}

func (r *Renderer) renderWarnings(warnings []string) {
	for _, warning := range warnings {
		fmt.Fprintf(r.out, "  %s %s\n", r.colors.Sprint(ColorWarning, "warning:"), warning)
	}
}

func (r *Renderer) renderJSON(v interface{}) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *Renderer) renderYAML(v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = r.out.Write(data)
	return err
}

func compressionLabel(cfg backup.RunConfig) string {
	if !cfg.Compression {
		return "none"
	}
	if cfg.Algorithm == "" {
		return string(backup.AlgorithmGzip)
	}
	return string(cfg.Algorithm)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// formatBytes renders a byte count with a binary unit
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// formatDuration truncates sub-millisecond noise for readability
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Truncate(time.Millisecond).String()
	}
	return d.Truncate(10 * time.Millisecond).String()
}
