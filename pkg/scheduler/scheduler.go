package scheduler

import (
	"fmt"
	"time"

	"github.com/amberpower/controller/pkg/config"
	"github.com/amberpower/controller/pkg/cycle"
	"github.com/amberpower/controller/pkg/device"
	"github.com/amberpower/controller/pkg/notify"
	"github.com/amberpower/controller/pkg/price"
	"github.com/amberpower/controller/pkg/state"
	"github.com/sirupsen/logrus"
)

// Scheduler ties one invocation together: the switch, the price forecast
// for the rest of today and the persisted runtime history.
type Scheduler struct {
	cfg      *config.CliConfig
	store    *state.Store
	prices   *price.PriceData
	sw       device.Switch
	notifier notify.Notifier

	status *device.Status
	now    func() time.Time
}

func New(cfg *config.CliConfig, store *state.Store, prices *price.PriceData, sw device.Switch, notifier notify.Notifier) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		store:    store,
		prices:   prices,
		sw:       sw,
		notifier: notifier,
		status:   &device.Status{},
		now:      time.Now,
	}
}

// RefreshDeviceStatus queries the switch. An unreachable device is a
// valid offline status, not an error.
func (s *Scheduler) RefreshDeviceStatus() {
	status, err := s.sw.Status()
	if err != nil {
		logrus.Warnf("error reading switch status: %v", err)
		status = &device.Status{}
	}
	s.status = status
	if !status.Online {
		logrus.Warnf("%s smart switch is offline", s.store.State().DeviceName)
	}
}

// MeterReading returns the current cumulative energy counter in Wh, nil
// when the device is offline or has no meter.
func (s *Scheduler) MeterReading() *float64 {
	return s.status.Energy
}

// ValidateDeviceState cross-checks the physical switch against the
// recorded state. Returns false when the device has been running longer
// than the daily maximum allows, which should never happen.
func (s *Scheduler) ValidateDeviceState() bool {
	st := s.store.State()

	if s.status.Online && s.status.Output != st.IsDeviceRunning {
		logrus.Warnf("%s switch was changed externally: output is %t but the recorded state was %t", st.DeviceName, s.status.Output, st.IsDeviceRunning)
	}

	if st.IsDeviceRunning && s.cfg.Device.Type == config.DeviceTypePoolPump && st.DeviceLastStartTime != nil {
		runningHours := s.now().Sub(st.DeviceLastStartTime.Time).Hours()
		maxHours := s.cfg.Schedule.MaximumRunHoursPerDay
		if runningHours > maxHours {
			msg := fmt.Sprintf("%s appears to have been running for %.1f hours, more than the maximum of %v hours. This should never happen.", st.DeviceName, runningHours, maxHours)
			logrus.Error(msg)
			if err := s.notifier.SendEmail(st.DeviceName+" has been running too long", msg); err != nil {
				logrus.Warnf("error sending email: %v", err)
			}

			// Reset the start time so the next invocation does not
			// repeat the alert.
			st.DeviceLastStartTime = state.NewTimestamp(s.now())
			return false
		}
	}
	return true
}

// ApplyDecision drives the switch to the decided state. An offline
// device is left alone; a write failure keeps the recorded output.
func (s *Scheduler) ApplyDecision(run bool) (didChange, newState bool) {
	if !s.status.Online {
		return false, false
	}

	didChange, newState, err := s.sw.SetOutput(run)
	if err != nil {
		logrus.Errorf("error changing %s switch state: %v", s.store.State().DeviceName, err)
		return false, s.status.Output
	}
	s.status.Output = newState
	return didChange, newState
}

// LogDeviceState records the switch outcome in today's run list: a new
// open run when the device is on, the stopped flags otherwise. Must not
// be called while a run is still open; consolidation closes runs first.
func (s *Scheduler) LogDeviceState(didChange, newState bool) error {
	st := s.store.State()

	if !s.status.Online {
		logrus.Debugf("switch is offline, marking %s as stopped", st.DeviceName)
		st.IsDeviceRunning = false
		st.DeviceLastStartTime = nil
	} else {
		if s.store.IsDeviceRunOpen() {
			return cycle.Fatalf("log device state called with an open device run")
		}

		runNumber := len(st.DailyData[0].DeviceRuns)
		if newState {
			if didChange {
				logrus.Infof("Turning the %s on, starting run %d.", st.DeviceName, runNumber+1)
			}
			var currentPrice float64
			if st.CurrentPrice != nil {
				currentPrice = *st.CurrentPrice
			}
			s.store.OpenRun(s.status.Energy, currentPrice)
		} else {
			if didChange {
				logrus.Infof("Turning the %s off, closing out run %d.", st.DeviceName, runNumber)
			}
			s.store.SetDeviceStopped()
		}
	}

	if err := s.store.Save(); err != nil {
		return err
	}
	return s.LogDailyStats()
}
