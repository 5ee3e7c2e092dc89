package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backup-dr/internal/backup"
)

func TestParseCron(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{"daily at 2am", "0 2 * * *", false},
		{"every minute", "* * * * *", false},
		{"every 15 minutes", "*/15 * * * *", false},
		{"weekday mornings", "30 6 * * 1-5", false},
		{"surrounding whitespace", "  0 2 * * *  ", false},
		{"too few fields", "* * *", true},
		{"six fields", "0 0 2 * * *", true},
		{"garbage", "not a cron", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCron(tt.expr)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, backup.IsValidation(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNextRun_ComputesRealFireTime(t *testing.T) {
	from := time.Date(2026, 3, 10, 1, 30, 0, 0, time.UTC)

	// Daily at 02:00 from 01:30 fires the same day, not "+1h"
	next, err := NextRun("0 2 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC), next)

	// From 02:30 the same expression rolls to the next day
	next, err = NextRun("0 2 * * *", from.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC), next)

	// Every 15 minutes snaps to the next boundary
	next, err = NextRun("*/15 * * * *", from.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 1, 45, 0, 0, time.UTC), next)
}

func TestNextRun_InvalidExpression(t *testing.T) {
	_, err := NextRun("* * *", time.Now())
	require.Error(t, err)
	assert.True(t, backup.IsValidation(err))
}

func TestCronRunner_ScheduleAndCancel(t *testing.T) {
	runner := NewCronRunner()
	defer runner.Stop()

	fired := make(chan struct{}, 1)
	handle, err := runner.Schedule("* * * * *", func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	assert.NotZero(t, handle)

	// Cancelling an unknown handle must not panic
	runner.Cancel(handle)
	runner.Cancel(JobHandle(9999))
}

func TestCronRunner_Schedule_InvalidExpression(t *testing.T) {
	runner := NewCronRunner()
	defer runner.Stop()

	_, err := runner.Schedule("bogus", func() {})
	require.Error(t, err)
	assert.True(t, backup.IsValidation(err))
}
