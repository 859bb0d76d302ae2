package scheduler

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/amberpower/controller/pkg/cycle"
	"github.com/sirupsen/logrus"
)

var statsHeader = []string{
	"Date", "DeviceName", "CurrentState", "TargetRuntime", "RuntimeToday",
	"RemainingRuntimeToday", "EnergyUsage", "EnergyCost", "AveragePrice",
}

// LogDailyStats upserts today's row in the daily stats CSV and prunes
// rows older than the retention window. One row per calendar day; a row
// for today is replaced in place.
func (s *Scheduler) LogDailyStats() error {
	path := s.cfg.Files.DailyRunStatsCSV
	if path == "" {
		logrus.Debug("DailyRunStatsCSV is not configured, skipping daily stats")
		return nil
	}

	st := s.store.State()
	today := st.DailyData[0]
	date := s.now().Format("2006-01-02")

	var averagePrice float64
	if today.AveragePrice != nil {
		averagePrice = *today.AveragePrice
	}
	row := []string{
		date,
		st.DeviceName,
		strconv.FormatBool(st.IsDeviceRunning),
		formatFloat(today.TargetRuntime),
		formatFloat(today.RuntimeToday),
		formatFloat(today.RemainingRuntimeToday),
		formatFloat(today.EnergyUsed),
		formatFloat(today.TotalCost),
		formatFloat(round2(averagePrice)),
	}

	rows, err := s.readStatsRows(path)
	if err != nil {
		return err
	}

	updated := false
	for i, rec := range rows {
		if len(rec) > 0 && rec[0] == date {
			rows[i] = row
			updated = true
		}
	}
	if !updated {
		rows = append(rows, row)
	}

	cutoff := s.now().AddDate(0, 0, -s.cfg.Files.DailyRunStatsDaysToKeep).Format("2006-01-02")
	kept := rows[:0]
	for _, rec := range rows {
		if len(rec) > 0 && rec[0] >= cutoff {
			kept = append(kept, rec)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return cycle.Fatal(fmt.Errorf("error writing daily stats file %s: %w", path, err))
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(statsHeader); err != nil {
		return cycle.Fatal(fmt.Errorf("error writing daily stats file %s: %w", path, err))
	}
	if err := w.WriteAll(kept); err != nil {
		return cycle.Fatal(fmt.Errorf("error writing daily stats file %s: %w", path, err))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return cycle.Fatal(fmt.Errorf("error writing daily stats file %s: %w", path, err))
	}

	logrus.Debugf("updated daily stats in %s", path)
	return nil
}

// readStatsRows loads the existing data rows, skipping the header. A
// missing file is an empty history.
func (s *Scheduler) readStatsRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, cycle.Fatal(fmt.Errorf("error reading daily stats file %s: %w", path, err))
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, cycle.Fatal(fmt.Errorf("error parsing daily stats file %s: %w", path, err))
	}

	if len(records) > 0 && len(records[0]) > 0 && records[0][0] == statsHeader[0] {
		records = records[1:]
	}
	return records, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
