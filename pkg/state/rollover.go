package state

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// CheckDayRollover shifts the retained window when the wall-clock date
// has advanced past DailyData[0]. Runs at most once per invocation: the
// trigger condition is false once today's slot is fresh.
//
// Returns whether a rollover was performed.
func (s *Store) CheckDayRollover() (bool, error) {
	today := s.state.DailyData[0]
	if today.Date.SameDay(s.now()) {
		return false, nil
	}

	logrus.Debug("new day detected, rolling data over to prior days")

	// The oldest day falls out of the window; fold it into the all-time
	// bucket first.
	oldest := s.state.DailyData[windowDays-1]
	s.state.EarlierTotals.EnergyUsed += oldest.EnergyUsed
	s.state.EarlierTotals.TotalCost += oldest.TotalCost
	s.state.EarlierTotals.RunTime += oldest.RuntimeToday

	for i := windowDays - 1; i > 0; i-- {
		rec, err := s.DailyRecord(i - 1)
		if err != nil {
			return false, err
		}
		if err := s.SetDailyRecord(i, rec); err != nil {
			return false, err
		}
	}

	if err := s.SetDailyRecord(0, nil); err != nil {
		return false, err
	}

	s.checkYesterdayEnergyUsage()
	return true, nil
}

// checkYesterdayEnergyUsage warns when yesterday used more energy than
// the configured threshold.
func (s *Store) checkYesterdayEnergyUsage() {
	yesterday := s.state.DailyData[1]

	threshold := s.cfg.Email.DailyEnergyUseThreshold
	if threshold <= 0 || yesterday.EnergyUsed <= threshold {
		return
	}

	msg := fmt.Sprintf("%s energy used on %s was %.0f watts, which exceeded the expected limit of %.0f",
		s.state.DeviceName, yesterday.Date.Format(dateLayout), yesterday.EnergyUsed, threshold)
	logrus.Warn(msg)
	if err := s.notifier.SendEmail("Energy Usage Alert", msg); err != nil {
		logrus.Warnf("error sending energy usage alert: %v", err)
	}
}
