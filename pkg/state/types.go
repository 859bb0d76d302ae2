package state

import "math"

// RunRecord is one on-interval of the device. EndTime, RunTime and the
// energy fields stay nil/zero while the run is open and are filled in on
// close or consolidation.
type RunRecord struct {
	ID               int        `json:"ID"`
	StartTime        Timestamp  `json:"StartTime"`
	EndTime          *Timestamp `json:"EndTime"`
	RunTime          *float64   `json:"RunTime"`
	EnergyUsedStart  *float64   `json:"EnergyUsedStart"`
	EnergyUsedForRun float64    `json:"EnergyUsedForRun"`
	Price            *float64   `json:"Price"`
	Cost             float64    `json:"Cost"`
}

// Open reports whether the run has not been closed yet.
func (r *RunRecord) Open() bool {
	return r.EndTime == nil
}

// DailyRecord holds one day of runtime history. ID 0 is today, 7 the
// oldest retained day.
type DailyRecord struct {
	ID                    int          `json:"ID"`
	Date                  Date         `json:"Date"`
	RequiredDailyRuntime  float64      `json:"RequiredDailyRuntime"`
	PriorShortfall        float64      `json:"PriorShortfall"`
	TargetRuntime         float64      `json:"TargetRuntime"`
	RuntimeToday          float64      `json:"RuntimeToday"`
	RemainingRuntimeToday float64      `json:"RemainingRuntimeToday"`
	EnergyUsed            float64      `json:"EnergyUsed"`
	AveragePrice          *float64     `json:"AveragePrice"`
	TotalCost             float64      `json:"TotalCost"`
	DeviceRuns            []*RunRecord `json:"DeviceRuns"`
}

// Totals aggregates energy, cost and runtime outside the daily window.
type Totals struct {
	EnergyUsed   float64  `json:"EnergyUsed"`
	TotalCost    float64  `json:"TotalCost"`
	AveragePrice *float64 `json:"AveragePrice,omitempty"`
	RunTime      float64  `json:"RunTime"`
}

// PlanItem is one interval of the human-facing run plan for today.
type PlanItem struct {
	ID           int     `json:"ID"`
	From         string  `json:"From"`
	To           string  `json:"To"`
	AveragePrice float64 `json:"AveragePrice"`
}

// State is the full persisted scheduler state. DailyData is always kept
// as 8 elements ordered ID 0..7.
type State struct {
	MaxDailyRuntimeAllowed  float64        `json:"MaxDailyRuntimeAllowed"`
	LastStateSaveTime       *Timestamp     `json:"LastStateSaveTime"`
	TotalRuntimePriorDays   float64        `json:"TotalRuntimePriorDays"`
	AverageRuntimePriorDays float64        `json:"AverageRuntimePriorDays"`
	CurrentShortfall        float64        `json:"CurrentShortfall"`
	ForecastRuntimeToday    float64        `json:"ForecastRuntimeToday"`
	IsDeviceRunning         bool           `json:"IsDeviceRunning"`
	DeviceLastStartTime     *Timestamp     `json:"DeviceLastStartTime"`
	DeviceType              string         `json:"DeviceType"`
	DeviceName              string         `json:"DeviceName"`
	LastStatusMessage       string         `json:"LastStatusMessage"`
	LivePrices              bool           `json:"LivePrices"`
	CurrentPrice            *float64       `json:"CurrentPrice"`
	PriceTime               *Timestamp     `json:"PriceTime"`
	PriceAPIErrorCount      int            `json:"PriceAPIErrorCount"`
	EnergyAtLastStart       *float64       `json:"EnergyAtLastStart"`
	EnergyUsed              float64        `json:"EnergyUsed"`
	TotalCost               float64        `json:"TotalCost"`
	AveragePrice            *float64       `json:"AveragePrice"`
	AverageForecastPrice    *float64       `json:"AverageForecastPrice"`
	EarlierTotals           Totals         `json:"EarlierTotals"`
	AlltimeTotals           Totals         `json:"AlltimeTotals"`
	TodayRunPlan            []PlanItem     `json:"TodayRunPlan"`
	TodayOriginalRunPlan    []PlanItem     `json:"TodayOriginalRunPlan"`
	DailyData               []*DailyRecord `json:"DailyData"`
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 {
	return &v
}

func round(v float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor) / factor
}
