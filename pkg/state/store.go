package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/amberpower/controller/pkg/config"
	"github.com/amberpower/controller/pkg/cycle"
	"github.com/amberpower/controller/pkg/notify"
	"github.com/sirupsen/logrus"
)

const windowDays = 8

// staleStateAge is how old a state file may be before we warn that the
// external scheduler is not invoking us often enough.
const staleStateAge = 30 * time.Minute

// Store owns the persisted scheduler state: the 8-day rolling window,
// load/merge/save semantics and the day rollover.
type Store struct {
	cfg      *config.CliConfig
	notifier notify.Notifier

	state        *State
	skipRunToday bool

	httpClient *http.Client
	now        func() time.Time
}

func NewStore(cfg *config.CliConfig, notifier notify.Notifier) *Store {
	return &Store{
		cfg:      cfg,
		notifier: notifier,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Website.TimeoutSeconds) * time.Second,
		},
		now: time.Now,
	}
}

// State returns the in-memory state tree. Callers mutate it only through
// the defined cycle phases.
func (s *Store) State() *State {
	return s.state
}

// SkipRunToday reports whether today falls in a configured no-run period.
func (s *Store) SkipRunToday() bool {
	return s.skipRunToday
}

// Load reads the persisted state and merges it over built-in defaults so
// that keys absent from the file keep their default value. A corrupt
// state file is fatal: we must not continue with ambiguous history.
func (s *Store) Load() error {
	now := s.now()
	s.state = s.defaultState(now)

	path := s.cfg.Files.SavedStateFile
	if b, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(b, s.state); err != nil {
			return cycle.Fatal(fmt.Errorf("error decoding state file %s: %w", path, err))
		}
		logrus.Debugf("loaded state from %s", path)
	} else if !os.IsNotExist(err) {
		return cycle.Fatal(fmt.Errorf("error reading state file %s: %w", path, err))
	}

	// Re-normalize every retained day: window length, IDs and the
	// required runtime from current policy rather than the cached value.
	s.normalizeWindow(now)

	// Config always wins over persisted copies of its own values.
	s.state.MaxDailyRuntimeAllowed = s.cfg.Schedule.MaximumRunHoursPerDay
	s.state.DeviceType = s.cfg.Device.Type
	s.state.DeviceName = s.cfg.Device.Label
	s.state.LastStatusMessage = ""

	if s.cfg.NoRunDay(now) {
		logrus.Infof("%s is not scheduled to run today", s.state.DeviceName)
		s.skipRunToday = true
	}

	if last := s.state.LastStateSaveTime; last != nil && !last.IsZero() {
		if age := now.Sub(last.Time); age > staleStateAge {
			logrus.Warnf("%s last ran %.1f hours ago, please run at least every 30 minutes", s.state.DeviceName, age.Hours())
		}
	}
	return nil
}

// Save serializes the state to disk and best-effort forwards it to the
// configured website endpoint.
func (s *Store) Save() error {
	s.state.LastStateSaveTime = NewTimestamp(s.now())

	b, err := json.MarshalIndent(s.state, "", "    ")
	if err != nil {
		return cycle.Fatal(fmt.Errorf("error encoding state: %w", err))
	}

	path := s.cfg.Files.SavedStateFile
	if err := os.WriteFile(path, b, 0644); err != nil {
		return cycle.Fatal(fmt.Errorf("error writing state file %s: %w", path, err))
	}
	logrus.Debugf("saved state to %s", path)

	s.postToWebsite(b)
	return nil
}

// postToWebsite forwards the full state to the remote reporting endpoint.
// Transport failures are warnings; an access failure is an error but
// never aborts the cycle.
func (s *Store) postToWebsite(body []byte) {
	if s.cfg.Website.BaseURL == "" {
		return
	}

	url := s.cfg.Website.BaseURL + "/api/submit"
	if s.cfg.Website.AccessKey != "" {
		url += "?key=" + s.cfg.Website.AccessKey
	}

	resp, err := s.httpClient.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		logrus.Warnf("web server at %s is unavailable: %v", s.cfg.Website.BaseURL, err)
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		logrus.Errorf("access denied (403) posting state to %s, check the access key", s.cfg.Website.BaseURL)
	case resp.StatusCode >= 300:
		logrus.Warnf("HTTP error %d saving state to web server at %s", resp.StatusCode, s.cfg.Website.BaseURL)
	default:
		logrus.Debugf("posted scheduler state to %s", s.cfg.Website.BaseURL)
	}
}

// DailyRecord returns the record day offset n back from today (0=today,
// 7=oldest).
func (s *Store) DailyRecord(n int) (*DailyRecord, error) {
	if n < 0 || n >= windowDays {
		return nil, cycle.Fatalf("invalid day number %d", n)
	}
	return s.state.DailyData[n], nil
}

// SetDailyRecord stores rec at day offset n. A nil rec resets the slot to
// a fresh default for that calendar date. ID and RequiredDailyRuntime are
// always recomputed, never trusted from the caller.
func (s *Store) SetDailyRecord(n int, rec *DailyRecord) error {
	if n < 0 || n >= windowDays {
		return cycle.Fatalf("invalid day number %d", n)
	}

	date := s.now().AddDate(0, 0, -n)
	if rec == nil {
		rec = s.defaultDay(n, date)
	} else {
		rec.ID = n
		rec.RequiredDailyRuntime = s.cfg.TargetHours(date)
	}
	s.state.DailyData[n] = rec
	return nil
}

// IsDeviceRunOpen reports whether today's last device run has not been
// closed off yet.
func (s *Store) IsDeviceRunOpen() bool {
	runs := s.state.DailyData[0].DeviceRuns
	return len(runs) > 0 && runs[len(runs)-1].Open()
}

// OpenRun appends a new open run record for today and marks the device
// running.
func (s *Store) OpenRun(energyStart *float64, price float64) *RunRecord {
	today := s.state.DailyData[0]
	run := &RunRecord{
		ID:              len(today.DeviceRuns),
		StartTime:       *NewTimestamp(s.now()),
		EnergyUsedStart: energyStart,
		Price:           Float64(round(price, 2)),
	}
	today.DeviceRuns = append(today.DeviceRuns, run)

	s.state.IsDeviceRunning = true
	if s.state.DeviceLastStartTime == nil {
		s.state.DeviceLastStartTime = NewTimestamp(s.now())
		s.state.EnergyAtLastStart = energyStart
	}
	return run
}

// SetDeviceStopped clears the running flags. The open run itself is
// closed by the next consolidation pass.
func (s *Store) SetDeviceStopped() {
	s.state.IsDeviceRunning = false
	s.state.DeviceLastStartTime = nil
}

// SetCurrentPrice records the price in effect for the current slot.
func (s *Store) SetCurrentPrice(price float64) {
	s.state.CurrentPrice = Float64(price)
	s.state.PriceTime = NewTimestamp(s.now().Truncate(time.Minute))
}

func (s *Store) defaultState(now time.Time) *State {
	st := &State{
		MaxDailyRuntimeAllowed: s.cfg.Schedule.MaximumRunHoursPerDay,
		DeviceType:             s.cfg.Device.Type,
		DeviceName:             s.cfg.Device.Label,
		LivePrices:             true,
		TodayRunPlan:           []PlanItem{},
		TodayOriginalRunPlan:   []PlanItem{},
		DailyData:              make([]*DailyRecord, 0, windowDays),
	}
	for i := 0; i < windowDays; i++ {
		st.DailyData = append(st.DailyData, s.defaultDay(i, now.AddDate(0, 0, -i)))
	}
	return st
}

func (s *Store) defaultDay(id int, date time.Time) *DailyRecord {
	return &DailyRecord{
		ID:                   id,
		Date:                 NewDate(date),
		RequiredDailyRuntime: s.cfg.TargetHours(date),
		DeviceRuns:           []*RunRecord{},
	}
}

// normalizeWindow repairs the window shape after a load: exactly 8 days,
// contiguous IDs, required runtime recomputed from current policy.
func (s *Store) normalizeWindow(now time.Time) {
	for len(s.state.DailyData) < windowDays {
		i := len(s.state.DailyData)
		s.state.DailyData = append(s.state.DailyData, s.defaultDay(i, now.AddDate(0, 0, -i)))
	}
	s.state.DailyData = s.state.DailyData[:windowDays]

	for i, day := range s.state.DailyData {
		day.ID = i
		day.RequiredDailyRuntime = s.cfg.TargetHours(now.AddDate(0, 0, -i))
		if day.DeviceRuns == nil {
			day.DeviceRuns = []*RunRecord{}
		}
	}
}
