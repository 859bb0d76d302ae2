package config

import (
	"time"

	"github.com/sirupsen/logrus"
)

// NoRunDay reports whether the device is scheduled not to run at all on
// the given date.
func (c *CliConfig) NoRunDay(t time.Time) bool {
	day := t.Format("2006-01-02")
	for _, period := range c.Schedule.NoRunPeriods {
		if period.StartDate == "" || period.EndDate == "" {
			continue
		}
		if period.StartDate <= day && day <= period.EndDate {
			return true
		}
	}
	return false
}

// TargetHours returns the required daily runtime for the given date
// before any shortfall adjustment.
func (c *CliConfig) TargetHours(t time.Time) float64 {
	if c.NoRunDay(t) {
		return 0
	}

	// Hot water systems want to be available around the clock.
	if c.Device.Type == DeviceTypeHotWaterSystem {
		return 24
	}

	hours := c.Schedule.TargetRunHoursPerDay
	month := t.Format("January")
	if override, ok := c.Schedule.MonthlyTargetRunHoursPerDay[month]; ok {
		hours = override
	}

	if hours < c.Schedule.MinimumRunHoursPerDay {
		logrus.Warnf("%s target daily run hours for %s are too short, resetting to the minimum of %v", c.Device.Label, month, c.Schedule.MinimumRunHoursPerDay)
		hours = c.Schedule.MinimumRunHoursPerDay
	}
	if hours > c.Schedule.MaximumRunHoursPerDay {
		logrus.Warnf("%s target daily run hours for %s are too long, resetting to the maximum of %v", c.Device.Label, month, c.Schedule.MaximumRunHoursPerDay)
		hours = c.Schedule.MaximumRunHoursPerDay
	}
	return hours
}

// InsideManualSchedule reports whether t falls inside one of the
// configured fallback windows. With no windows configured nothing is
// inside the schedule: a degraded price feed must never leave the device
// running unattended.
func (c *CliConfig) InsideManualSchedule(t time.Time) bool {
	if len(c.Schedule.ManualSchedule) == 0 {
		return false
	}

	current := t.Format("15:04")
	for _, window := range c.Schedule.ManualSchedule {
		if window.StartTime == "" || window.EndTime == "" {
			continue
		}
		if _, err := time.Parse("15:04", window.StartTime); err != nil {
			logrus.Warnf("invalid time format in ManualSchedule: %v", err)
			continue
		}
		if _, err := time.Parse("15:04", window.EndTime); err != nil {
			logrus.Warnf("invalid time format in ManualSchedule: %v", err)
			continue
		}
		if window.StartTime <= current && current <= window.EndTime {
			return true
		}
	}
	return false
}
