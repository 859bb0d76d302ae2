package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/amberpower/controller/pkg/config"
	"github.com/amberpower/controller/pkg/cycle"
	"github.com/amberpower/controller/pkg/device"
	"github.com/amberpower/controller/pkg/notify"
	"github.com/amberpower/controller/pkg/price"
	"github.com/amberpower/controller/pkg/scheduler"
	"github.com/amberpower/controller/pkg/state"
	"github.com/amberpower/controller/pkg/version"
	"github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGQUIT, syscall.SIGTERM)
	defer stop()
	err := Run(ctx)
	if err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

func Run(ctx context.Context) error {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return err
	}
	lvl, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("error setting logrus loglevel: %w", err)
	}
	logrus.SetLevel(lvl)
	logrus.Debugf("starting power scheduler %s", version.Version)

	mailer := notify.NewMailer(&cfg.Email)
	tracker := notify.NewFatalTracker(cfg.Files.FatalErrorMarker)
	heartbeat := notify.NewHeartbeat(&cfg.Heartbeat)

	err = runCycle(cfg, mailer)
	if err != nil {
		heartbeat.Ping(true)
		if cycle.IsFatal(err) {
			// Alert once per outage, not once per invocation.
			if tracker.Record(err.Error()) {
				if mailErr := mailer.SendEmail(cfg.Device.Label+" scheduler fatal error", err.Error()); mailErr != nil {
					logrus.Warnf("error sending fatal error email: %v", mailErr)
				}
			}
		}
		return err
	}

	heartbeat.Ping(false)
	if tracker.Pending() {
		msg := fmt.Sprintf("%s scheduler has recovered from an earlier fatal error: %s", cfg.Device.Label, tracker.Message())
		logrus.Info(msg)
		if mailErr := mailer.SendEmail(cfg.Device.Label+" scheduler recovered", msg); mailErr != nil {
			logrus.Warnf("error sending recovery email: %v", mailErr)
		}
		if err := tracker.Clear(); err != nil {
			logrus.Warn(err)
		}
	}
	return nil
}

// runCycle performs one complete scheduling pass: load state, fetch
// prices, reconcile the runtime history and drive the switch.
func runCycle(cfg *config.CliConfig, notifier notify.Notifier) error {
	store := state.NewStore(cfg, notifier)
	if err := store.Load(); err != nil {
		return err
	}

	// Synthetic fallback prices are pinned to what energy has actually
	// cost so far.
	averagePrice := price.DefaultAveragePrice
	if ap := store.State().AlltimeTotals.AveragePrice; ap != nil && *ap > 0 {
		averagePrice = *ap
	}

	prices, err := price.Load(cfg, averagePrice)
	if err != nil {
		return err
	}
	st := store.State()
	st.LivePrices = prices.Live()
	if prices.Live() {
		st.PriceAPIErrorCount = 0
	} else {
		st.PriceAPIErrorCount++
	}
	store.SetCurrentPrice(prices.CurrentPrice())

	sw, err := device.New(cfg)
	if err != nil {
		return err
	}

	sched := scheduler.New(cfg, store, prices, sw, notifier)
	sched.RefreshDeviceStatus()
	sched.ValidateDeviceState()

	store.Consolidate(sched.MeterReading())
	if _, err := store.CheckDayRollover(); err != nil {
		return err
	}
	if err := store.CalculateRunningTotals(); err != nil {
		return err
	}
	if err := store.Save(); err != nil {
		return err
	}

	runDevice, err := sched.ShouldDeviceRun()
	if err != nil {
		return err
	}

	didChange, newState := sched.ApplyDecision(runDevice)
	return sched.LogDeviceState(didChange, newState)
}
