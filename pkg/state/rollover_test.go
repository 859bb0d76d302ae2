package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRolloverIsNoOpOnSameDay(t *testing.T) {
	now := time.Date(2026, time.March, 10, 10, 0, 0, 0, time.Local)
	s := testStore(t, testConfig(t), now)

	rolled, err := s.CheckDayRollover()
	require.NoError(t, err)
	assert.False(t, rolled)
}

func TestRolloverShiftsWindow(t *testing.T) {
	yesterday := time.Date(2026, time.March, 9, 22, 0, 0, 0, time.Local)
	s := testStore(t, testConfig(t), yesterday)

	// Yesterday's activity, recorded while it was still day 0.
	day0 := s.State().DailyData[0]
	day0.DeviceRuns = append(day0.DeviceRuns, &RunRecord{
		StartTime:        *NewTimestamp(yesterday.Add(-2 * time.Hour)),
		EndTime:          NewTimestamp(yesterday),
		RunTime:          Float64(2),
		EnergyUsedForRun: 2000,
		Price:            Float64(10),
		Cost:             20,
	})
	day0.RuntimeToday = 2
	day0.EnergyUsed = 2000
	day0.TotalCost = 20

	// The oldest day is about to fall out of the window.
	oldest := s.State().DailyData[7]
	oldest.RuntimeToday = 5
	oldest.EnergyUsed = 1000
	oldest.TotalCost = 15

	now := time.Date(2026, time.March, 10, 0, 30, 0, 0, time.Local)
	s.now = func() time.Time { return now }

	rolled, err := s.CheckDayRollover()
	require.NoError(t, err)
	assert.True(t, rolled)

	// The evicted day was folded into the all-time bucket.
	assert.Equal(t, 1000.0, s.State().EarlierTotals.EnergyUsed)
	assert.Equal(t, 15.0, s.State().EarlierTotals.TotalCost)
	assert.Equal(t, 5.0, s.State().EarlierTotals.RunTime)

	// Yesterday's record moved to slot 1 with its runs intact.
	day1 := s.State().DailyData[1]
	assert.Equal(t, 1, day1.ID)
	assert.True(t, day1.Date.SameDay(yesterday))
	require.Len(t, day1.DeviceRuns, 1)
	assert.Equal(t, 2.0, day1.RuntimeToday)

	// Today's slot is fresh.
	day0 = s.State().DailyData[0]
	assert.Equal(t, 0, day0.ID)
	assert.True(t, day0.Date.SameDay(now))
	assert.Empty(t, day0.DeviceRuns)
	assert.Equal(t, 0.0, day0.RuntimeToday)

	// Dates stay contiguous across the whole window.
	for i, day := range s.State().DailyData {
		assert.Equal(t, i, day.ID)
		assert.True(t, day.Date.SameDay(now.AddDate(0, 0, -i)))
	}

	// A second check on the same day does nothing.
	rolled, err = s.CheckDayRollover()
	require.NoError(t, err)
	assert.False(t, rolled)
}

type recordingNotifier struct {
	subjects []string
}

func (r *recordingNotifier) SendEmail(subject, body string) error {
	r.subjects = append(r.subjects, subject)
	return nil
}

func TestRolloverEnergyUsageAlert(t *testing.T) {
	yesterday := time.Date(2026, time.March, 9, 22, 0, 0, 0, time.Local)
	cfg := testConfig(t)
	cfg.Email.DailyEnergyUseThreshold = 1000

	notifier := &recordingNotifier{}
	s := NewStore(cfg, notifier)
	s.now = func() time.Time { return yesterday }
	require.NoError(t, s.Load())

	s.State().DailyData[0].EnergyUsed = 2500

	s.now = func() time.Time { return yesterday.AddDate(0, 0, 1) }
	rolled, err := s.CheckDayRollover()
	require.NoError(t, err)
	assert.True(t, rolled)

	require.Len(t, notifier.subjects, 1)
	assert.Equal(t, "Energy Usage Alert", notifier.subjects[0])
}
