package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"backup-dr/internal/backup"
)

// JobHandle identifies one running cron job
type JobHandle int

// Runner is the scheduling capability the service depends on. The service
// never talks to a cron library directly, only through this interface.
type Runner interface {
	// Schedule registers job to fire per the cron expression and starts it
	Schedule(cronExpr string, job func()) (JobHandle, error)

	// Cancel stops the job behind the handle; unknown handles are a no-op
	Cancel(handle JobHandle)

	// Stop stops all jobs and the underlying dispatcher
	Stop()
}

// cronParser accepts standard 5-field expressions, minute precision
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseCron validates a cron expression
func ParseCron(expr string) (cron.Schedule, error) {
	parsed, err := cronParser.Parse(strings.TrimSpace(expr))
	if err != nil {
		return nil, backup.NewValidationError(
			fmt.Sprintf("invalid cron expression %q", expr), err)
	}
	return parsed, nil
}

// NextRun computes the next fire time of a cron expression after the given
// instant
func NextRun(expr string, from time.Time) (time.Time, error) {
	parsed, err := ParseCron(expr)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.Next(from), nil
}

// CronRunner is the production Runner backed by robfig/cron
type CronRunner struct {
	cron *cron.Cron
}

// NewCronRunner creates and starts a CronRunner
func NewCronRunner() *CronRunner {
	c := cron.New(cron.WithParser(cronParser))
	c.Start()
	return &CronRunner{cron: c}
}

func (r *CronRunner) Schedule(cronExpr string, job func()) (JobHandle, error) {
	id, err := r.cron.AddFunc(strings.TrimSpace(cronExpr), job)
	if err != nil {
		return 0, backup.NewValidationError(
			fmt.Sprintf("invalid cron expression %q", cronExpr), err)
	}
	return JobHandle(id), nil
}

func (r *CronRunner) Cancel(handle JobHandle) {
	r.cron.Remove(cron.EntryID(handle))
}

func (r *CronRunner) Stop() {
	r.cron.Stop()
}
