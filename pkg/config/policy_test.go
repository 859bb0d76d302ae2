package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func policyConfig() *CliConfig {
	return &CliConfig{
		Device: Device{Type: DeviceTypePoolPump, Label: "Pool Pump"},
		Schedule: Schedule{
			MinimumRunHoursPerDay: 3,
			MaximumRunHoursPerDay: 9,
			TargetRunHoursPerDay:  6,
		},
	}
}

func TestTargetHours(t *testing.T) {
	january := time.Date(2026, time.January, 15, 12, 0, 0, 0, time.Local)
	july := time.Date(2026, time.July, 15, 12, 0, 0, 0, time.Local)

	cfg := policyConfig()
	assert.Equal(t, 6.0, cfg.TargetHours(january))

	cfg.Schedule.MonthlyTargetRunHoursPerDay = map[string]float64{
		"January": 8,
		"July":    1,
	}
	assert.Equal(t, 8.0, cfg.TargetHours(january))
	// Overrides outside the min/max band are clamped.
	assert.Equal(t, 3.0, cfg.TargetHours(july))

	cfg.Schedule.MonthlyTargetRunHoursPerDay["January"] = 20
	assert.Equal(t, 9.0, cfg.TargetHours(january))
}

func TestTargetHoursHotWater(t *testing.T) {
	cfg := policyConfig()
	cfg.Device.Type = DeviceTypeHotWaterSystem
	assert.Equal(t, 24.0, cfg.TargetHours(time.Date(2026, time.January, 15, 12, 0, 0, 0, time.Local)))
}

func TestTargetHoursNoRunDay(t *testing.T) {
	cfg := policyConfig()
	cfg.Schedule.NoRunPeriods = []DatePeriod{
		{StartDate: "2026-06-01", EndDate: "2026-08-31"},
		{StartDate: "", EndDate: "2026-12-31"},
	}

	inside := time.Date(2026, time.July, 15, 12, 0, 0, 0, time.Local)
	outside := time.Date(2026, time.September, 1, 12, 0, 0, 0, time.Local)

	assert.True(t, cfg.NoRunDay(inside))
	assert.Equal(t, 0.0, cfg.TargetHours(inside))
	// Half-open periods are ignored rather than matching everything.
	assert.False(t, cfg.NoRunDay(outside))
}

func TestInsideManualSchedule(t *testing.T) {
	cfg := policyConfig()

	at := func(hour, minute int) time.Time {
		return time.Date(2026, time.March, 10, hour, minute, 0, 0, time.Local)
	}

	// No windows configured means nothing is inside the schedule.
	assert.False(t, cfg.InsideManualSchedule(at(12, 0)))

	cfg.Schedule.ManualSchedule = []TimeRange{
		{StartTime: "09:00", EndTime: "11:30"},
		{StartTime: "21:00", EndTime: "23:00"},
	}
	assert.True(t, cfg.InsideManualSchedule(at(9, 0)))
	assert.True(t, cfg.InsideManualSchedule(at(11, 30)))
	assert.True(t, cfg.InsideManualSchedule(at(22, 15)))
	assert.False(t, cfg.InsideManualSchedule(at(8, 59)))
	assert.False(t, cfg.InsideManualSchedule(at(12, 0)))

	// Malformed windows are skipped.
	cfg.Schedule.ManualSchedule = []TimeRange{{StartTime: "9am", EndTime: "11:00"}}
	assert.False(t, cfg.InsideManualSchedule(at(10, 0)))
}
