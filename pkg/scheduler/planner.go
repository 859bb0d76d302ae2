package scheduler

import (
	"fmt"
	"math"
	"strings"

	"github.com/amberpower/controller/pkg/config"
	"github.com/amberpower/controller/pkg/price"
	"github.com/amberpower/controller/pkg/state"
	"github.com/sirupsen/logrus"
)

// ShouldDeviceRun is the planning entry point for one invocation: select
// the cheapest slots, evaluate the run conditions for the current slot
// and persist the resulting run plan. The window must be consolidated
// and totalled first.
func (s *Scheduler) ShouldDeviceRun() (bool, error) {
	st := s.store.State()
	required, selected := s.CalculateRequiredSlots()

	runDevice := false
	st.TodayRunPlan = []state.PlanItem{}

	if selected > 0 {
		var reason, override string
		runDevice, reason, override = s.EvaluateRunConditions()
		s.RecordRunPlan(runDevice, selected, reason, override)
	} else {
		var statusMessage string
		switch {
		case s.store.SkipRunToday():
			statusMessage = fmt.Sprintf("%s is scheduled to not run today.", st.DeviceName)
		case required > 0:
			statusMessage = fmt.Sprintf("All remaining time slots for today are too expensive. %s will not run.", st.DeviceName)
		default:
			statusMessage = fmt.Sprintf("No runtime needed - %s will not run.", st.DeviceName)
		}
		st.LastStatusMessage = statusMessage
		logrus.Info(statusMessage)
	}

	if err := s.store.Save(); err != nil {
		return false, err
	}
	return runDevice, nil
}

// CalculateRequiredSlots works out how many half-hour slots are still
// needed today and flags the cheapest ones. With live prices a slot
// costing more than the configured maximum is never selected, and since
// the slots are walked cheapest first the selection stops at the first
// one over the limit.
func (s *Scheduler) CalculateRequiredSlots() (required, selected int) {
	today := s.store.State().DailyData[0]

	required = int(math.Ceil(today.RemainingRuntimeToday * 2))
	if available := len(s.prices.Prices); required > available {
		required = available
	}

	for i := 0; i < required; i++ {
		slot := s.prices.PricesSorted[i]
		if slot.Price <= s.cfg.Schedule.MaximumPriceToRun || !s.prices.Live() {
			price.Mark(slot, true)
			selected++
			continue
		}
		logrus.Debugf("price %.1f c/kWh at %s exceeds the maximum of %v c/kWh, only %d of the %d required slots could be selected",
			slot.Price, slot.StartTime.Format("15:04"), s.cfg.Schedule.MaximumPriceToRun, selected, required)
		break
	}

	s.store.State().ForecastRuntimeToday = float64(selected) / 2
	return required, selected
}

// EvaluateRunConditions decides whether the device runs in the current
// slot. The returned override, when non-empty, names a condition that
// vetoed an otherwise positive decision.
func (s *Scheduler) EvaluateRunConditions() (runDevice bool, reason, override string) {
	defer func() {
		s.flagCurrentSlot(runDevice)
	}()

	if !s.status.Online {
		return false, "smart switch is not available", ""
	}

	reason = "current time slot not one of the cheapest forecast slots for the rest of today"
	if price.IsSelected(s.prices.Prices[0]) {
		runDevice = true
		reason = "current time slot is in the cheapest slots"
	}

	// Below the daily minimum a slot close enough in price to the most
	// expensive planned one is still worth taking.
	today := s.store.State().DailyData[0]
	minHours := s.cfg.Schedule.MinimumRunHoursPerDay
	threshold := s.cfg.Schedule.PriceExcessThreshold
	if today.RuntimeToday < minHours && s.prices.CurrentPrice() < s.worstSelectedPrice()*threshold {
		runDevice = true
		reason = fmt.Sprintf("we haven't run the device for at least %v hours today and the current price is less than the most expensive planned slot plus %.0f%%",
			minHours, (threshold-1)*100)
	}

	if s.cfg.Device.Type == config.DeviceTypePoolPump && today.RuntimeToday >= s.cfg.Schedule.MaximumRunHoursPerDay {
		if runDevice {
			override = fmt.Sprintf("maximum daily runtime of %v hours reached", s.cfg.Schedule.MaximumRunHoursPerDay)
		}
		runDevice = false
	}

	if !s.prices.Live() && !s.cfg.InsideManualSchedule(s.now()) {
		if runDevice {
			override = "live prices unavailable and not inside the manual scheduled time range"
		}
		runDevice = false
	}

	return runDevice, reason, override
}

// worstSelectedPrice is the most expensive planned slot.
func (s *Scheduler) worstSelectedPrice() float64 {
	sorted := s.prices.PricesSorted
	for i := len(sorted) - 1; i >= 0; i-- {
		if price.IsSelected(sorted[i]) {
			return sorted[i].Price
		}
	}
	return 0
}

// flagCurrentSlot stamps the final decision on the slot covering now.
func (s *Scheduler) flagCurrentSlot(runDevice bool) {
	if len(s.prices.Prices) > 0 {
		price.Mark(s.prices.Prices[0], runDevice)
	}
}

// RecordRunPlan folds the selected slots into the human-facing plan:
// consecutive slots merge into one interval carrying their average
// price. The plan is logged, kept in state and optionally mailed out.
func (s *Scheduler) RecordRunPlan(runDevice bool, selectedSlots int, reason, override string) {
	st := s.store.State()
	st.TodayRunPlan = []state.PlanItem{}

	var planTotal, itemTotal float64
	itemCount := 0
	for i, slot := range s.prices.Prices {
		if !price.IsSelected(slot) {
			continue
		}
		planTotal += slot.Price

		if i > 0 && price.IsSelected(s.prices.Prices[i-1]) {
			// Consecutive with the previous slot, extend the last interval.
			itemCount++
			itemTotal += slot.Price
			item := &st.TodayRunPlan[len(st.TodayRunPlan)-1]
			item.To = slot.EndTime.Format("15:04")
			item.AveragePrice = round2(itemTotal / float64(itemCount))
		} else {
			itemCount = 1
			itemTotal = slot.Price
			st.TodayRunPlan = append(st.TodayRunPlan, state.PlanItem{
				ID:           len(st.TodayRunPlan),
				From:         slot.StartTime.Format("15:04"),
				To:           slot.EndTime.Format("15:04"),
				AveragePrice: round2(slot.Price),
			})
		}
	}

	averageForecast := planTotal / float64(selectedSlots)
	st.AverageForecastPrice = state.Float64(averageForecast)

	// Until the first run of the day is logged the plan is still the
	// original one, keep a copy for later comparison.
	if len(st.DailyData[0].DeviceRuns) == 0 {
		st.TodayOriginalRunPlan = append([]state.PlanItem{}, st.TodayRunPlan...)
	}

	var planMsg strings.Builder
	for _, item := range st.TodayRunPlan {
		fmt.Fprintf(&planMsg, "                     %d: From %s to %s - %.2f c/kWh\n", item.ID+1, item.From, item.To, item.AveragePrice)
	}

	today := st.DailyData[0]
	onOff := "off"
	if runDevice {
		onOff = "on"
	}
	msg := fmt.Sprintf("%s switch is %s. Target: %.2f hours. Actual: %.2f hours. Planned: %.2f. Price now: %.2f c/kWh. Average forecast price: %.2f c/kWh.",
		st.DeviceName, onOff, today.TargetRuntime, today.RuntimeToday, st.ForecastRuntimeToday, s.prices.CurrentPrice(), averageForecast)

	switch {
	case override != "":
		msg += fmt.Sprintf(" Won't run because %s.", override)
		st.LastStatusMessage = fmt.Sprintf("%s won't run because %s", st.DeviceName, override)
	case runDevice:
		msg += fmt.Sprintf(" Will run because %s.", reason)
		st.LastStatusMessage = fmt.Sprintf("%s will run because %s", st.DeviceName, reason)
	default:
		msg += fmt.Sprintf(" Won't run because %s.", reason)
		st.LastStatusMessage = fmt.Sprintf("%s won't run because %s", st.DeviceName, reason)
	}

	if planMsg.Len() > 0 {
		msg += fmt.Sprintf(" %s run plan:\n%s", st.DeviceName, planMsg.String())
	}

	logrus.Info(msg)
	if s.cfg.Email.SendSummary {
		subject := fmt.Sprintf("%s scheduler summary for %s", st.DeviceName, s.now().Format("2006-01-02 15:04:05"))
		if err := s.notifier.SendEmail(subject, msg); err != nil {
			logrus.Warnf("error sending summary email: %v", err)
		}
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
