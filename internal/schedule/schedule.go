// Package schedule provides the recurring-backup scheduler: a persisted
// registry of named schedules, a cron runner managing in-process jobs, and
// the service tying them to the backup engine.
package schedule

import (
	"strings"
	"time"

	"backup-dr/internal/backup"
)

// Schedule is one named recurring backup job. The registry file is the sole
// source of truth; running cron jobs are a derived projection of the enabled
// schedules.
type Schedule struct {
	ScheduleID      string            `json:"schedule_id"`
	CronExpression  string            `json:"cron_expression"`
	Sources         []string          `json:"sources"`
	Type            backup.BackupType `json:"type"`
	Label           string            `json:"label,omitempty"`
	Compression     bool              `json:"compression"`
	Verify          bool              `json:"verify"`
	ExcludePatterns []string          `json:"exclude_patterns,omitempty"`
	Enabled         bool              `json:"enabled"`
	LastRun         *time.Time        `json:"last_run,omitempty"`
	NextRun         *time.Time        `json:"next_run,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// Validate checks the schedule's own fields. Cron expression validity is the
// runner's concern and checked separately.
func (s *Schedule) Validate() error {
	var errs backup.ValidationErrors

	if strings.TrimSpace(s.ScheduleID) == "" {
		errs.Add("schedule_id", "schedule ID is required", s.ScheduleID)
	}
	if strings.TrimSpace(s.CronExpression) == "" {
		errs.Add("cron_expression", "cron expression is required", s.CronExpression)
	}
	if len(s.Sources) == 0 {
		errs.Add("sources", "at least one source is required", nil)
	}
	if !s.Type.Valid() {
		errs.Add("type", "invalid backup type", s.Type)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// CreateParams converts the schedule into the backup parameters a fired run
// uses
func (s *Schedule) CreateParams() backup.CreateParams {
	return backup.CreateParams{
		Sources:         s.Sources,
		Type:            s.Type,
		Label:           s.Label,
		Compression:     s.Compression,
		Verify:          s.Verify,
		ExcludePatterns: s.ExcludePatterns,
	}
}

// UpdateParams carries a partial schedule update. Nil fields are left
// unchanged.
type UpdateParams struct {
	CronExpression  *string
	Sources         []string
	Type            *backup.BackupType
	Label           *string
	Compression     *bool
	Verify          *bool
	ExcludePatterns []string
	Enabled         *bool
}

// apply merges the update into a copy of the schedule
func (p UpdateParams) apply(s Schedule) Schedule {
	if p.CronExpression != nil {
		s.CronExpression = *p.CronExpression
	}
	if p.Sources != nil {
		s.Sources = p.Sources
	}
	if p.Type != nil {
		s.Type = *p.Type
	}
	if p.Label != nil {
		s.Label = *p.Label
	}
	if p.Compression != nil {
		s.Compression = *p.Compression
	}
	if p.Verify != nil {
		s.Verify = *p.Verify
	}
	if p.ExcludePatterns != nil {
		s.ExcludePatterns = p.ExcludePatterns
	}
	if p.Enabled != nil {
		s.Enabled = *p.Enabled
	}
	return s
}

// Status is the scheduler's aggregate view, always derived from the
// persisted registry
type Status struct {
	TotalSchedules    int        `json:"total_schedules"`
	EnabledSchedules  int        `json:"enabled_schedules"`
	DisabledSchedules int        `json:"disabled_schedules"`
	ActiveJobs        int        `json:"active_jobs"`
	Schedules         []Schedule `json:"schedules"`
}
