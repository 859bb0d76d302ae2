package price

import "time"

// DefaultAveragePrice seeds the flat fallback price when no history
// exists yet.
const DefaultAveragePrice = 15.0

// GenerateMock builds flat-price slots from the current half hour to
// midnight so the scheduling logic still runs when the live feed is
// unavailable.
func GenerateMock(now time.Time, averagePrice float64) []*Slot {
	// Round down to the nearest local half hour; Truncate works on
	// absolute time and misbehaves in half-hour timezones.
	base := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), (now.Minute()/30)*30, 1, 0, now.Location())

	slots := make([]*Slot, 0, 48)
	for i := 0; i < 48; i++ {
		start := base.Add(time.Duration(i) * 30 * time.Minute)
		if start.Day() != now.Day() || start.Month() != now.Month() || start.Year() != now.Year() {
			break
		}
		slots = append(slots, &Slot{
			Slot:      i,
			StartTime: start,
			EndTime:   start.Add(30*time.Minute - time.Second),
			Price:     averagePrice,
		})
	}
	return slots
}
