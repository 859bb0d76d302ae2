package device

import (
	"sync"

	"github.com/amberpower/controller/pkg/config"
	"github.com/amberpower/controller/pkg/modbusclient"
	"github.com/goburrow/modbus"
	"github.com/sirupsen/logrus"
)

// modbusRelay drives a Modbus-TCP relay: one coil for the output and an
// optional 32-bit input register pair holding the Wh counter.
type modbusRelay struct {
	cfg *config.Device

	mutex  sync.Mutex
	client modbusclient.Client
}

func newModbusRelay(cfg *config.Device) *modbusRelay {
	return &modbusRelay{cfg: cfg}
}

func (m *modbusRelay) connect() modbusclient.Client {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.client == nil {
		handler := modbus.NewTCPClientHandler(m.cfg.Address)
		m.client = modbusclient.New(modbus.NewClient(handler), func() error {
			m.mutex.Lock()
			m.client = nil
			m.mutex.Unlock()
			return handler.Close()
		})
	}
	return m.client
}

func (m *modbusRelay) Status() (*Status, error) {
	client := m.connect()

	on, err := client.ReadCoil(m.cfg.CoilAddress)
	if err != nil {
		logrus.Warnf("error reading relay coil: %v", err)
		return &Status{Online: false}, nil
	}

	status := &Status{Online: true, Output: on}
	if m.cfg.HasMeter {
		wh, err := client.ReadInputRegister32(m.cfg.EnergyRegister)
		if err != nil {
			logrus.Warnf("error reading relay energy register: %v", err)
		} else {
			total := float64(wh)
			status.Energy = &total
		}
	}
	return status, nil
}

func (m *modbusRelay) SetOutput(on bool) (bool, bool, error) {
	client := m.connect()

	was, err := client.ReadCoil(m.cfg.CoilAddress)
	if err != nil {
		return false, false, err
	}
	if was == on {
		return false, was, nil
	}

	_, err = client.WriteSingleCoil(m.cfg.CoilAddress, modbusclient.CoilValue(on))
	if err != nil {
		return false, was, err
	}
	return true, on, nil
}
