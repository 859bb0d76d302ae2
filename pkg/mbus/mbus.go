package mbus

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonaz/gombus"
)

// Meter reads the cumulative energy counter of an M-Bus energy meter.
// Used when the smart switch itself has no built-in meter.
type Meter struct {
	device string
	model  string
	conn   gombus.Conn
	mutex  *sync.Mutex
}

func New(device, model string) *Meter {
	return &Meter{
		device: device,
		model:  model,
		mutex:  &sync.Mutex{},
	}
}

func (m *Meter) init() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.conn != nil {
		return nil
	}
	c, err := gombus.DialSerial(m.device)
	if err != nil {
		return err
	}
	m.conn = c
	return nil
}

func (m *Meter) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.conn != nil {
		err := m.conn.Close()
		m.conn = nil
		return err
	}
	return nil
}

// ReadEnergyWh returns the total imported energy in Wh for the meter at
// the given primary address.
func (m *Meter) ReadEnergyWh(primaryAddr int) (float64, error) {
	err := m.init()
	if err != nil {
		return 0, err
	}

	frame, err := m.read(primaryAddr)
	if err != nil {
		return 0, err
	}

	switch m.model {
	case "garo-GNM3D-MBUS":
		if len(frame.DataRecords) == 0 {
			return 0, fmt.Errorf("meter %d returned no data records", primaryAddr)
		}
		return frame.DataRecords[0].Value, nil
	}
	return 0, fmt.Errorf("unsupported meter model %s", m.model)
}

func (m *Meter) read(primaryAddr int) (*gombus.DecodedFrame, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	_, err := m.conn.Write(gombus.SndNKE(uint8(primaryAddr)))
	if err != nil {
		return nil, err
	}

	err = m.conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	if err != nil {
		return nil, err
	}

	_, err = gombus.ReadSingleCharFrame(m.conn)
	if err != nil {
		return nil, err
	}

	return gombus.ReadSingleFrame(m.conn, primaryAddr)
}
