package device

import (
	"github.com/amberpower/controller/pkg/config"
	"github.com/amberpower/controller/pkg/cycle"
	"github.com/amberpower/controller/pkg/mbus"
	"github.com/sirupsen/logrus"
)

// Status is what the scheduler needs to know about the switch. Energy is
// the cumulative meter reading in Wh, nil when no meter is available.
type Status struct {
	Online bool
	Output bool
	Energy *float64
}

// Switch is a controllable on/off load. A non-reachable device is a
// distinct state reported through Status, not an error.
type Switch interface {
	Status() (*Status, error)
	SetOutput(on bool) (didChange bool, newState bool, err error)
}

// New builds the switch backend selected by configuration. An unknown
// backend is fatal.
func New(cfg *config.CliConfig) (Switch, error) {
	var sw Switch
	switch cfg.Device.Backend {
	case config.SwitchBackendShelly:
		sw = newShelly(&cfg.Device)
	case config.SwitchBackendModbus:
		sw = newModbusRelay(&cfg.Device)
	case config.SwitchBackendSimulated:
		sw = NewSimulated()
	default:
		return nil, cycle.Fatalf("unsupported switch backend %q", cfg.Device.Backend)
	}

	if cfg.Device.MbusDevice != "" {
		logrus.Debugf("using M-Bus meter %s on %s for energy readings", cfg.Device.MbusModel, cfg.Device.MbusDevice)
		sw = &meterOverride{
			Switch: sw,
			meter:  mbus.New(cfg.Device.MbusDevice, cfg.Device.MbusModel),
			addr:   cfg.Device.MbusPrimaryID,
		}
	}
	return sw, nil
}

// meterOverride replaces the switch's own energy reading with one from an
// external M-Bus meter.
type meterOverride struct {
	Switch
	meter *mbus.Meter
	addr  int
}

func (m *meterOverride) Status() (*Status, error) {
	status, err := m.Switch.Status()
	if err != nil || !status.Online {
		return status, err
	}

	wh, err := m.meter.ReadEnergyWh(m.addr)
	if err != nil {
		logrus.Warnf("error reading M-Bus meter %d: %v", m.addr, err)
		status.Energy = nil
		return status, nil
	}
	status.Energy = &wh
	return status, nil
}
