package state

import (
	"time"

	"github.com/sirupsen/logrus"
)

// mergeGap is the largest gap between two runs that still counts as one
// continuous interval.
const mergeGap = 60 * time.Second

// Consolidate makes the run list of every retained day internally
// consistent: closes dangling runs, backfills zero-energy readings for
// today and merges adjacent runs. meterReading is the current energy
// counter, nil when the device is unreachable or has no meter.
//
// Consolidating an already-consolidated window is a no-op: merged
// intervals are never within mergeGap of each other.
//
// Returns whether a dangling run had to be closed.
func (s *Store) Consolidate(meterReading *float64) bool {
	now := s.now()
	didCloseRun := false

	for _, day := range s.state.DailyData {
		if len(day.DeviceRuns) == 0 {
			continue
		}
		lastRun := day.DeviceRuns[len(day.DeviceRuns)-1]
		if !lastRun.Open() {
			continue
		}

		// A run on a prior day was never closed on that day (e.g. the
		// process died); close it one second before that midnight.
		didCloseRun = true
		var end time.Time
		if day.Date.SameDay(now) {
			end = now
		} else {
			end = day.Date.AddDate(0, 0, 1).Add(-time.Second)
		}

		lastRun.EndTime = NewTimestamp(end)
		lastRun.RunTime = Float64(round(end.Sub(lastRun.StartTime.Time).Hours(), 4))
		if meterReading == nil {
			lastRun.EnergyUsedForRun = 0
		} else {
			var startReading float64
			if lastRun.EnergyUsedStart != nil {
				startReading = *lastRun.EnergyUsedStart
			}
			lastRun.EnergyUsedForRun = *meterReading - startReading
			lastRun.Cost = lastRun.EnergyUsedForRun * priceOrZero(lastRun.Price) / 1000
		}
		logrus.Debugf("closed DailyData[%d].DeviceRuns[%d] at %s", day.ID, lastRun.ID, lastRun.EndTime.Format(timeLayout))
	}

	s.backfillEnergy()

	for _, day := range s.state.DailyData {
		day.DeviceRuns = mergeRuns(day.DeviceRuns)
	}

	return didCloseRun
}

// backfillEnergy recomputes today's zero-energy runs from the start
// reading of the following run. Covers the race where the close-time
// meter reading was taken before the counter advanced.
func (s *Store) backfillEnergy() {
	runs := s.state.DailyData[0].DeviceRuns
	for i := 0; i+1 < len(runs); i++ {
		thisRun, nextRun := runs[i], runs[i+1]
		if thisRun.EnergyUsedForRun != 0 {
			continue
		}
		var thisStart, nextStart float64
		if thisRun.EnergyUsedStart != nil {
			thisStart = *thisRun.EnergyUsedStart
		}
		if nextRun.EnergyUsedStart != nil {
			nextStart = *nextRun.EnergyUsedStart
		}
		thisRun.EnergyUsedForRun = nextStart - thisStart
		thisRun.Cost = thisRun.EnergyUsedForRun * priceOrZero(thisRun.Price) / 1000
	}
}

// mergeRuns builds the canonical run list for one day: a run extends the
// previous consolidated interval when it starts within mergeGap of that
// interval's end, otherwise it opens a new one.
func mergeRuns(runs []*RunRecord) []*RunRecord {
	consolidated := make([]*RunRecord, 0, len(runs))

	for _, run := range runs {
		var previous *RunRecord
		if len(consolidated) > 0 {
			previous = consolidated[len(consolidated)-1]
		}

		if previous == nil || previous.EndTime == nil ||
			run.StartTime.Sub(previous.EndTime.Time) > mergeGap {
			consolidated = append(consolidated, &RunRecord{
				ID:               len(consolidated),
				StartTime:        run.StartTime,
				EndTime:          run.EndTime,
				RunTime:          run.RunTime,
				EnergyUsedStart:  Float64(energyOrZero(run.EnergyUsedStart)),
				EnergyUsedForRun: run.EnergyUsedForRun,
				Price:            Float64(priceOrZero(run.Price)),
				Cost:             run.Cost,
			})
			continue
		}

		previous.EndTime = run.EndTime
		if run.RunTime != nil {
			previous.RunTime = Float64(runtimeOrZero(previous.RunTime) + *run.RunTime)
		}
		previous.EnergyUsedForRun += run.EnergyUsedForRun
		previous.Cost += run.Cost
		if previous.Cost > 0 && previous.EnergyUsedForRun > 0 {
			previous.Price = Float64(round(previous.Cost/(previous.EnergyUsedForRun/1000), 2))
		} else {
			// Avoid division artifacts from zero-energy merges.
			previous.Price = nil
		}
	}

	return consolidated
}

func priceOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func energyOrZero(e *float64) float64 {
	if e == nil {
		return 0
	}
	return *e
}

func runtimeOrZero(r *float64) float64 {
	if r == nil {
		return 0
	}
	return *r
}
