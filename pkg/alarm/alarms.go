package alarm

import "sync"

// ActiveAlarms keeps the set of alerts already raised during a cycle so
// the same condition never notifies twice.
type ActiveAlarms struct {
	activeAlarms []string
	sync.RWMutex
}

// Add adds string to alarm list and returns true if it was added. returns false if it already exists.
func (a *ActiveAlarms) Add(alarm string) bool {
	a.Lock()
	defer a.Unlock()
	for _, activeAlarm := range a.activeAlarms {
		if activeAlarm == alarm {
			return false
		}
	}

	a.activeAlarms = append(a.activeAlarms, alarm)
	return true
}

// Active returns a copy of the currently raised alarms.
func (a *ActiveAlarms) Active() []string {
	a.RLock()
	defer a.RUnlock()
	out := make([]string, len(a.activeAlarms))
	copy(out, a.activeAlarms)
	return out
}

func (a *ActiveAlarms) Clear() bool {
	hasActive := false
	a.Lock()
	if len(a.activeAlarms) > 0 {
		hasActive = true
		a.activeAlarms = nil
	}
	a.Unlock()
	return hasActive
}
