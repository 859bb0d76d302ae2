package scheduler

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/amberpower/controller/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestLogDailyStats(t *testing.T) {
	cfg := testConfig(t)
	cfg.Files.DailyRunStatsCSV = filepath.Join(t.TempDir(), "stats.csv")
	s, store, _ := newTestScheduler(t, cfg, makeSlots(5), true)

	today := store.State().DailyData[0]
	today.TargetRuntime = 6
	today.RuntimeToday = 2.5
	today.RemainingRuntimeToday = 3.5
	today.EnergyUsed = 2000
	today.TotalCost = 24
	today.AveragePrice = state.Float64(12)

	require.NoError(t, s.LogDailyStats())

	records := readCSV(t, cfg.Files.DailyRunStatsCSV)
	require.Len(t, records, 2)
	assert.Equal(t, statsHeader, records[0])

	date := time.Now().Format("2006-01-02")
	assert.Equal(t, []string{date, "Pool Pump", "false", "6", "2.5", "3.5", "2000", "24", "12"}, records[1])

	// A second write the same day updates the row instead of appending.
	today.RuntimeToday = 3
	require.NoError(t, s.LogDailyStats())
	records = readCSV(t, cfg.Files.DailyRunStatsCSV)
	require.Len(t, records, 2)
	assert.Equal(t, "3", records[1][4])
}

func TestLogDailyStatsPrunesOldRows(t *testing.T) {
	cfg := testConfig(t)
	cfg.Files.DailyRunStatsCSV = filepath.Join(t.TempDir(), "stats.csv")
	cfg.Files.DailyRunStatsDaysToKeep = 7

	recent := time.Now().AddDate(0, 0, -3).Format("2006-01-02")
	existing := "Date,DeviceName,CurrentState,TargetRuntime,RuntimeToday,RemainingRuntimeToday,EnergyUsage,EnergyCost,AveragePrice\n" +
		"2020-01-01,Pool Pump,false,6,0,6,0,0,0\n" +
		recent + ",Pool Pump,false,6,4,2,1000,10,10\n"
	require.NoError(t, os.WriteFile(cfg.Files.DailyRunStatsCSV, []byte(existing), 0644))

	s, _, _ := newTestScheduler(t, cfg, makeSlots(5), true)
	require.NoError(t, s.LogDailyStats())

	records := readCSV(t, cfg.Files.DailyRunStatsCSV)
	require.Len(t, records, 3)
	assert.Equal(t, recent, records[1][0])
	assert.Equal(t, time.Now().Format("2006-01-02"), records[2][0])
}

func TestLogDailyStatsNotConfigured(t *testing.T) {
	cfg := testConfig(t)
	s, _, _ := newTestScheduler(t, cfg, makeSlots(5), true)
	require.NoError(t, s.LogDailyStats())
}
