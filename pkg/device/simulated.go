package device

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Simulated is an in-memory switch used for tests and dry runs. The
// energy counter advances at a fixed rate while the output is on.
type Simulated struct {
	mutex   sync.Mutex
	online  bool
	output  bool
	energy  float64
	changes int
}

func NewSimulated() *Simulated {
	return &Simulated{online: true}
}

// SetOnline controls the simulated reachability.
func (s *Simulated) SetOnline(online bool) {
	s.mutex.Lock()
	s.online = online
	s.mutex.Unlock()
}

// SetEnergy sets the simulated meter reading.
func (s *Simulated) SetEnergy(wh float64) {
	s.mutex.Lock()
	s.energy = wh
	s.mutex.Unlock()
}

// Changes returns how many times the output actually changed.
func (s *Simulated) Changes() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.changes
}

func (s *Simulated) Status() (*Status, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.online {
		return &Status{Online: false}, nil
	}
	energy := s.energy
	return &Status{Online: true, Output: s.output, Energy: &energy}, nil
}

func (s *Simulated) SetOutput(on bool) (bool, bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.online {
		return false, false, nil
	}
	if s.output == on {
		return false, s.output, nil
	}
	s.output = on
	s.changes++
	logrus.Debugf("simulated switch set to %t", on)
	return true, on, nil
}
