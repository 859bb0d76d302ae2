package config

import (
	"fmt"
	"os"

	"github.com/koding/multiconfig"
)

const (
	DeviceTypePoolPump       = "PoolPump"
	DeviceTypeHotWaterSystem = "HotWaterSystem"
)

const (
	SwitchBackendShelly    = "shelly"
	SwitchBackendModbus    = "modbus"
	SwitchBackendSimulated = "simulated"
)

type CliConfig struct {
	Device    Device
	Amber     Amber
	Schedule  Schedule
	Files     Files
	Email     Email
	Website   Website
	Heartbeat Heartbeat

	LogLevel string `default:"info"`
}

type Device struct {
	// PoolPump carries runtime shortfall forward between days,
	// HotWaterSystem does not.
	Type  string `default:"PoolPump"`
	Label string `default:"Pool Pump"`

	Backend string `default:"shelly"`
	Address string

	// Shelly settings.
	Generation int `default:"2"`
	SwitchID   int
	MeterID    int
	HasMeter   bool `default:"true"`

	// Modbus relay settings.
	CoilAddress    uint16
	EnergyRegister uint16

	// Optional external M-Bus energy meter. When configured its reading
	// replaces the switch's built-in meter.
	MbusDevice    string
	MbusModel     string
	MbusPrimaryID int

	TimeoutSeconds    int `default:"10"`
	RetryCount        int `default:"2"`
	RetryDelaySeconds int `default:"2"`
}

type Amber struct {
	APIKey         string
	BaseURL        string `default:"https://api.amber.com.au/v1"`
	Channel        string `default:"general"`
	TimeoutSeconds int    `default:"10"`
}

type Schedule struct {
	MinimumRunHoursPerDay float64 `default:"3"`
	MaximumRunHoursPerDay float64 `default:"9"`
	TargetRunHoursPerDay  float64 `default:"6"`

	// Slots costing more than this (price units per kWh) are never selected
	// while live prices are available.
	MaximumPriceToRun float64 `default:"20"`

	// Factor applied to the most expensive selected slot when deciding
	// whether to keep running to reach the daily minimum.
	PriceExcessThreshold float64 `default:"1.1"`

	// Month name (January..December) to daily target hours.
	MonthlyTargetRunHoursPerDay map[string]float64

	// Fallback windows used when live prices are unavailable.
	ManualSchedule []TimeRange

	NoRunPeriods []DatePeriod
}

// TimeRange is a daily window in local wall-clock time, HH:MM inclusive.
type TimeRange struct {
	StartTime string
	EndTime   string
}

// DatePeriod is an inclusive calendar date range, YYYY-MM-DD.
type DatePeriod struct {
	StartDate string
	EndDate   string
}

type Files struct {
	SavedStateFile          string `default:"system_state.json"`
	LatestPriceData         string
	DailyRunStatsCSV        string
	DailyRunStatsDaysToKeep int    `default:"365"`
	FatalErrorMarker        string `default:".fatal_error_pending"`
}

type Email struct {
	EnableEmail             bool
	SendSummary             bool
	DailyEnergyUseThreshold float64
	SendEmailsTo            string
	SMTPServer              string
	SMTPPort                int
	SMTPUsername            string
	SMTPPassword            string
	SubjectPrefix           string
}

// Website is the optional remote endpoint the full scheduler state is
// posted to after each save.
type Website struct {
	BaseURL        string
	AccessKey      string
	TimeoutSeconds int `default:"5"`
}

type Heartbeat struct {
	WebsiteURL     string
	TimeoutSeconds int `default:"10"`
}

// Load reads configuration from the TOML file (when present) overlaid
// with environment variables and flags.
func Load(path string) (*CliConfig, error) {
	cfg := &CliConfig{}

	var loader *multiconfig.DefaultLoader
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
		loader = multiconfig.NewWithPath(path)
	} else {
		loader = multiconfig.New()
	}

	err := loader.Load(cfg)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	return cfg, nil
}
