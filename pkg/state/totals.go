package state

import (
	"math"

	"github.com/amberpower/controller/pkg/config"
	"github.com/amberpower/controller/pkg/cycle"
)

// CalculateRunningTotals recomputes every aggregate from the consolidated
// run lists. The window must have rolled over first: DailyData[0] has to
// cover today.
//
// Days are processed oldest first because the runtime shortfall carries
// forward from older to newer days.
func (s *Store) CalculateRunningTotals() error {
	now := s.now()
	if !s.state.DailyData[0].Date.SameDay(now) {
		return cycle.Fatalf("calculate running totals called when DailyData[0] was not today")
	}

	s.state.TotalRuntimePriorDays = 0
	s.state.AverageRuntimePriorDays = 0
	s.state.EnergyUsed = 0
	s.state.TotalCost = 0
	s.state.AveragePrice = nil

	runningShortfall := 0.0
	for i := windowDays - 1; i >= 0; i-- {
		day := s.state.DailyData[i]
		day.PriorShortfall = runningShortfall

		// Aggregates are recomputed from the runs every cycle; the run
		// list is the single source of truth. Open runs never count.
		day.RuntimeToday = 0
		day.EnergyUsed = 0
		day.TotalCost = 0
		for _, run := range day.DeviceRuns {
			if run.Open() {
				continue
			}
			day.RuntimeToday += runtimeOrZero(run.RunTime)
			day.EnergyUsed += run.EnergyUsedForRun
			day.TotalCost += run.Cost
		}

		day.AveragePrice = nil
		if day.EnergyUsed > 0 {
			day.AveragePrice = Float64(day.TotalCost / (day.EnergyUsed / 1000))
		}

		switch {
		case s.skipRunToday:
			day.TargetRuntime = 0
		case s.cfg.Device.Type == config.DeviceTypeHotWaterSystem:
			// Hot water systems do not carry shortfall.
			day.TargetRuntime = day.RequiredDailyRuntime
		default:
			day.TargetRuntime = day.RequiredDailyRuntime + day.PriorShortfall
			day.TargetRuntime = math.Max(day.TargetRuntime, s.cfg.Schedule.MinimumRunHoursPerDay)
			day.TargetRuntime = math.Min(day.TargetRuntime, s.cfg.Schedule.MaximumRunHoursPerDay)
		}

		if s.cfg.Device.Type == config.DeviceTypePoolPump {
			runningShortfall += day.RequiredDailyRuntime - day.RuntimeToday
		}

		if day.ID > 0 {
			s.state.TotalRuntimePriorDays += day.RuntimeToday
		}
		s.state.EnergyUsed += day.EnergyUsed
		s.state.TotalCost += day.TotalCost
	}

	s.state.AverageRuntimePriorDays = s.state.TotalRuntimePriorDays / float64(windowDays-1)
	if s.state.EnergyUsed > 0 {
		s.state.AveragePrice = Float64(s.state.TotalCost / (s.state.EnergyUsed / 1000))
	}
	s.state.CurrentShortfall = math.Max(0, runningShortfall)

	s.state.AlltimeTotals.EnergyUsed = s.state.EnergyUsed + s.state.EarlierTotals.EnergyUsed
	s.state.AlltimeTotals.TotalCost = s.state.TotalCost + s.state.EarlierTotals.TotalCost
	s.state.AlltimeTotals.AveragePrice = nil
	if s.state.AlltimeTotals.EnergyUsed > 0 {
		s.state.AlltimeTotals.AveragePrice = Float64(s.state.AlltimeTotals.TotalCost / (s.state.AlltimeTotals.EnergyUsed / 1000))
	}
	today := s.state.DailyData[0]
	s.state.AlltimeTotals.RunTime = s.state.TotalRuntimePriorDays + today.RuntimeToday + s.state.EarlierTotals.RunTime

	// Floor to whole minutes so a sub-minute remainder cannot keep the
	// remaining runtime perpetually non-zero.
	midnight := NewDate(now).AddDate(0, 0, 1)
	hoursLeftToday := math.Floor(midnight.Sub(now).Minutes()) / 60

	remaining := today.TargetRuntime - today.RuntimeToday
	remaining = math.Max(remaining, 0)
	remaining = math.Min(remaining, hoursLeftToday)
	today.RemainingRuntimeToday = remaining

	return nil
}
