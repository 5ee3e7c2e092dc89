package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"backup-dr/internal/backup"
	"backup-dr/internal/logging"
)

// Service manages the schedule lifecycle: registry persistence, cron job
// lifecycles, and scheduled backup execution.
type Service struct {
	registry *Registry
	runner   Runner
	backups  *backup.BackupEngine
	logger   *logging.Logger

	mu   sync.Mutex
	jobs map[string]JobHandle
}

// NewService creates a scheduler Service and starts cron jobs for every
// enabled schedule already in the registry.
func NewService(registry *Registry, runner Runner, backups *backup.BackupEngine, logger *logging.Logger) (*Service, error) {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	s := &Service{
		registry: registry,
		runner:   runner,
		backups:  backups,
		logger:   logger,
		jobs:     make(map[string]JobHandle),
	}

	schedules, err := registry.Load()
	if err != nil {
		return nil, err
	}
	for _, sched := range schedules {
		if !sched.Enabled {
			continue
		}
		if err := s.startJob(sched); err != nil {
			s.logger.Warnf("Failed to start job for schedule %s: %v", sched.ScheduleID, err)
		}
	}

	return s, nil
}

// Create registers a new schedule. The cron expression is validated before
// the registry is touched; duplicate IDs are rejected without mutating the
// existing schedule.
func (s *Service) Create(sched Schedule) (*Schedule, error) {
	if err := sched.Validate(); err != nil {
		return nil, err
	}

	next, err := NextRun(sched.CronExpression, time.Now())
	if err != nil {
		return nil, err
	}
	sched.NextRun = &next
	sched.CreatedAt = time.Now().UTC()
	sched.LastRun = nil

	err = s.registry.Mutate(func(schedules []Schedule) ([]Schedule, error) {
		for _, existing := range schedules {
			if existing.ScheduleID == sched.ScheduleID {
				return nil, backup.NewValidationError(
					fmt.Sprintf("schedule %s already exists", sched.ScheduleID), nil)
			}
		}
		return append(schedules, sched), nil
	})
	if err != nil {
		return nil, err
	}

	if sched.Enabled {
		if err := s.startJob(sched); err != nil {
			return nil, err
		}
	}

	s.logger.WithField("schedule_id", sched.ScheduleID).Info("Schedule created")
	return &sched, nil
}

// Update applies a partial update. A changed cron expression is re-validated
// before anything persists; the job restarts if the schedule remains
// enabled.
func (s *Service) Update(scheduleID string, updates UpdateParams) (*Schedule, error) {
	if updates.CronExpression != nil {
		if _, err := ParseCron(*updates.CronExpression); err != nil {
			return nil, err
		}
	}

	var updated Schedule
	err := s.registry.Mutate(func(schedules []Schedule) ([]Schedule, error) {
		idx := findSchedule(schedules, scheduleID)
		if idx < 0 {
			return nil, backup.NewNotFoundError(
				fmt.Sprintf("schedule %s not found", scheduleID), nil)
		}

		merged := updates.apply(schedules[idx])
		if err := merged.Validate(); err != nil {
			return nil, err
		}
		next, err := NextRun(merged.CronExpression, time.Now())
		if err != nil {
			return nil, err
		}
		merged.NextRun = &next

		schedules[idx] = merged
		updated = merged
		return schedules, nil
	})
	if err != nil {
		return nil, err
	}

	s.stopJob(scheduleID)
	if updated.Enabled {
		if err := s.startJob(updated); err != nil {
			return nil, err
		}
	}

	s.logger.WithField("schedule_id", scheduleID).Info("Schedule updated")
	return &updated, nil
}

// Delete stops the schedule's job and removes it from the registry
func (s *Service) Delete(scheduleID string) error {
	err := s.registry.Mutate(func(schedules []Schedule) ([]Schedule, error) {
		idx := findSchedule(schedules, scheduleID)
		if idx < 0 {
			return nil, backup.NewNotFoundError(
				fmt.Sprintf("schedule %s not found", scheduleID), nil)
		}
		return append(schedules[:idx], schedules[idx+1:]...), nil
	})
	if err != nil {
		return err
	}

	s.stopJob(scheduleID)
	s.logger.WithField("schedule_id", scheduleID).Info("Schedule deleted")
	return nil
}

// Enable turns a schedule on and starts its cron job
func (s *Service) Enable(scheduleID string) (*Schedule, error) {
	return s.setEnabled(scheduleID, true)
}

// Disable turns a schedule off and stops its cron job
func (s *Service) Disable(scheduleID string) (*Schedule, error) {
	return s.setEnabled(scheduleID, false)
}

func (s *Service) setEnabled(scheduleID string, enabled bool) (*Schedule, error) {
	var updated Schedule
	err := s.registry.Mutate(func(schedules []Schedule) ([]Schedule, error) {
		idx := findSchedule(schedules, scheduleID)
		if idx < 0 {
			return nil, backup.NewNotFoundError(
				fmt.Sprintf("schedule %s not found", scheduleID), nil)
		}
		schedules[idx].Enabled = enabled
		if enabled {
			next, err := NextRun(schedules[idx].CronExpression, time.Now())
			if err != nil {
				return nil, err
			}
			schedules[idx].NextRun = &next
		}
		updated = schedules[idx]
		return schedules, nil
	})
	if err != nil {
		return nil, err
	}

	s.stopJob(scheduleID)
	if enabled {
		if err := s.startJob(updated); err != nil {
			return nil, err
		}
	}

	return &updated, nil
}

// List returns all registered schedules
func (s *Service) List() ([]Schedule, error) {
	return s.registry.Load()
}

// Get returns one schedule by ID
func (s *Service) Get(scheduleID string) (*Schedule, error) {
	schedules, err := s.registry.Load()
	if err != nil {
		return nil, err
	}
	idx := findSchedule(schedules, scheduleID)
	if idx < 0 {
		return nil, backup.NewNotFoundError(
			fmt.Sprintf("schedule %s not found", scheduleID), nil)
	}
	return &schedules[idx], nil
}

// Trigger runs the schedule's backup immediately, out of band from its cron
// timing, through the same execution path as a cron fire.
func (s *Service) Trigger(ctx context.Context, scheduleID string) (*backup.CreateResult, error) {
	sched, err := s.Get(scheduleID)
	if err != nil {
		return nil, err
	}
	return s.executeScheduledBackup(ctx, *sched)
}

// Status reloads the registry from disk so the counts always reflect the
// persisted state
func (s *Service) Status() (*Status, error) {
	schedules, err := s.registry.Load()
	if err != nil {
		return nil, err
	}

	status := &Status{
		TotalSchedules: len(schedules),
		Schedules:      schedules,
	}
	for _, sched := range schedules {
		if sched.Enabled {
			status.EnabledSchedules++
		} else {
			status.DisabledSchedules++
		}
	}

	s.mu.Lock()
	status.ActiveJobs = len(s.jobs)
	s.mu.Unlock()

	return status, nil
}

// Stop stops every running cron job and the runner itself
func (s *Service) Stop() {
	s.mu.Lock()
	for id, handle := range s.jobs {
		s.runner.Cancel(handle)
		delete(s.jobs, id)
	}
	s.mu.Unlock()
	s.runner.Stop()
}

// executeScheduledBackup runs one scheduled backup. Failures are logged and
// contained; a failing run never disables or removes its schedule.
func (s *Service) executeScheduledBackup(ctx context.Context, sched Schedule) (*backup.CreateResult, error) {
	start := time.Now()
	result, err := s.backups.Create(ctx, sched.CreateParams())
	if err != nil {
		s.logger.LogScheduleFire(sched.ScheduleID, "", time.Since(start), err)
		return nil, backup.NewScheduleError(
			fmt.Sprintf("scheduled backup for %s failed", sched.ScheduleID), err)
	}

	s.logger.LogScheduleFire(sched.ScheduleID, result.BackupID, result.Duration, nil)

	// Best effort bookkeeping; the backup itself already succeeded
	now := time.Now().UTC()
	updateErr := s.registry.Mutate(func(schedules []Schedule) ([]Schedule, error) {
		idx := findSchedule(schedules, sched.ScheduleID)
		if idx < 0 {
			return schedules, nil
		}
		schedules[idx].LastRun = &now
		if next, err := NextRun(schedules[idx].CronExpression, now); err == nil {
			schedules[idx].NextRun = &next
		}
		return schedules, nil
	})
	if updateErr != nil {
		s.logger.Warnf("Failed to record run for schedule %s: %v", sched.ScheduleID, updateErr)
	}

	return result, nil
}

func (s *Service) startJob(sched Schedule) error {
	scheduleID := sched.ScheduleID
	handle, err := s.runner.Schedule(sched.CronExpression, func() {
		// Reload so a fire always uses the persisted parameters
		current, err := s.Get(scheduleID)
		if err != nil {
			s.logger.Warnf("Schedule %s fired but could not be loaded: %v", scheduleID, err)
			return
		}
		if !current.Enabled {
			return
		}
		if _, err := s.executeScheduledBackup(context.Background(), *current); err != nil {
			s.logger.Errorf("Scheduled backup failed for %s: %v", scheduleID, err)
		}
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.jobs[scheduleID] = handle
	s.mu.Unlock()
	return nil
}

func (s *Service) stopJob(scheduleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if handle, ok := s.jobs[scheduleID]; ok {
		s.runner.Cancel(handle)
		delete(s.jobs, scheduleID)
	}
}

func findSchedule(schedules []Schedule, scheduleID string) int {
	for i := range schedules {
		if schedules[i].ScheduleID == scheduleID {
			return i
		}
	}
	return -1
}
