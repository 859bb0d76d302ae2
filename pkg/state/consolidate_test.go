package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsolidateClosesTodaysOpenRun(t *testing.T) {
	now := time.Date(2026, time.March, 10, 10, 0, 0, 0, time.Local)
	s := testStore(t, testConfig(t), now)

	today := s.State().DailyData[0]
	today.DeviceRuns = append(today.DeviceRuns, &RunRecord{
		StartTime:       *NewTimestamp(now.Add(-2 * time.Hour)),
		EnergyUsedStart: Float64(1000),
		Price:           Float64(10),
	})

	didClose := s.Consolidate(Float64(3000))
	assert.True(t, didClose)

	run := today.DeviceRuns[0]
	require.NotNil(t, run.EndTime)
	assert.Equal(t, now, run.EndTime.Time)
	require.NotNil(t, run.RunTime)
	assert.Equal(t, 2.0, *run.RunTime)
	assert.Equal(t, 2000.0, run.EnergyUsedForRun)
	assert.Equal(t, 20.0, run.Cost)
}

func TestConsolidateClosesPriorDayRunBeforeMidnight(t *testing.T) {
	now := time.Date(2026, time.March, 10, 10, 0, 0, 0, time.Local)
	s := testStore(t, testConfig(t), now)

	yesterday := s.State().DailyData[1]
	yesterday.DeviceRuns = append(yesterday.DeviceRuns, &RunRecord{
		StartTime:       *NewTimestamp(time.Date(2026, time.March, 9, 22, 0, 0, 0, time.Local)),
		EnergyUsedStart: Float64(500),
		Price:           Float64(10),
	})

	didClose := s.Consolidate(nil)
	assert.True(t, didClose)

	run := yesterday.DeviceRuns[0]
	require.NotNil(t, run.EndTime)
	assert.Equal(t, time.Date(2026, time.March, 9, 23, 59, 59, 0, time.Local), run.EndTime.Time)
	require.NotNil(t, run.RunTime)
	assert.Equal(t, 1.9997, *run.RunTime)
	// Without a meter reading no energy can be attributed.
	assert.Equal(t, 0.0, run.EnergyUsedForRun)
}

func TestConsolidateIsIdempotent(t *testing.T) {
	now := time.Date(2026, time.March, 10, 10, 0, 0, 0, time.Local)
	s := testStore(t, testConfig(t), now)

	today := s.State().DailyData[0]
	today.DeviceRuns = append(today.DeviceRuns, &RunRecord{
		StartTime:       *NewTimestamp(now.Add(-time.Hour)),
		EnergyUsedStart: Float64(0),
		Price:           Float64(10),
	})

	assert.True(t, s.Consolidate(Float64(1500)))
	first := *today.DeviceRuns[0]

	assert.False(t, s.Consolidate(Float64(1500)))
	require.Len(t, today.DeviceRuns, 1)
	assert.Equal(t, first, *today.DeviceRuns[0])
}

func TestConsolidateMergesAdjacentRuns(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.Local)
	s := testStore(t, testConfig(t), now)

	start1 := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.Local)
	start2 := time.Date(2026, time.March, 10, 8, 30, 20, 0, time.Local)
	today := s.State().DailyData[0]
	today.DeviceRuns = []*RunRecord{
		{
			ID:               0,
			StartTime:        *NewTimestamp(start1),
			EndTime:          NewTimestamp(start1.Add(30 * time.Minute)),
			RunTime:          Float64(0.5),
			EnergyUsedStart:  Float64(1000),
			EnergyUsedForRun: 1000,
			Price:            Float64(10),
			Cost:             10,
		},
		{
			ID:               1,
			StartTime:        *NewTimestamp(start2),
			EndTime:          NewTimestamp(start2.Add(30 * time.Minute)),
			RunTime:          Float64(0.5),
			EnergyUsedStart:  Float64(2000),
			EnergyUsedForRun: 1000,
			Price:            Float64(20),
			Cost:             20,
		},
	}

	s.Consolidate(nil)

	require.Len(t, today.DeviceRuns, 1)
	merged := today.DeviceRuns[0]
	assert.Equal(t, 0, merged.ID)
	assert.Equal(t, *NewTimestamp(start1), merged.StartTime)
	assert.Equal(t, NewTimestamp(start2.Add(30*time.Minute)), merged.EndTime)
	require.NotNil(t, merged.RunTime)
	assert.Equal(t, 1.0, *merged.RunTime)
	assert.Equal(t, 2000.0, merged.EnergyUsedForRun)
	assert.Equal(t, 30.0, merged.Cost)
	// Average price recomputed from the merged cost and energy.
	require.NotNil(t, merged.Price)
	assert.Equal(t, 15.0, *merged.Price)
}

func TestConsolidateKeepsSeparatedRuns(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.Local)
	s := testStore(t, testConfig(t), now)

	start1 := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.Local)
	start2 := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.Local)
	today := s.State().DailyData[0]
	today.DeviceRuns = []*RunRecord{
		{
			StartTime: *NewTimestamp(start1),
			EndTime:   NewTimestamp(start1.Add(30 * time.Minute)),
			RunTime:   Float64(0.5),
			Price:     Float64(10),
		},
		{
			StartTime: *NewTimestamp(start2),
			EndTime:   NewTimestamp(start2.Add(30 * time.Minute)),
			RunTime:   Float64(0.5),
			Price:     Float64(10),
		},
	}

	s.Consolidate(nil)

	require.Len(t, today.DeviceRuns, 2)
	assert.Equal(t, 0, today.DeviceRuns[0].ID)
	assert.Equal(t, 1, today.DeviceRuns[1].ID)
}

func TestBackfillEnergyFromNextRun(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.Local)
	s := testStore(t, testConfig(t), now)

	start1 := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.Local)
	start2 := time.Date(2026, time.March, 10, 10, 0, 0, 0, time.Local)
	today := s.State().DailyData[0]
	today.DeviceRuns = []*RunRecord{
		{
			StartTime:       *NewTimestamp(start1),
			EndTime:         NewTimestamp(start1.Add(time.Hour)),
			RunTime:         Float64(1),
			EnergyUsedStart: Float64(1000),
			Price:           Float64(10),
		},
		{
			StartTime:       *NewTimestamp(start2),
			EndTime:         NewTimestamp(start2.Add(time.Hour)),
			RunTime:         Float64(1),
			EnergyUsedStart: Float64(1500),
			EnergyUsedForRun: 600,
			Price:           Float64(10),
			Cost:            6,
		},
	}

	s.Consolidate(nil)

	run := today.DeviceRuns[0]
	assert.Equal(t, 500.0, run.EnergyUsedForRun)
	assert.Equal(t, 5.0, run.Cost)
}
