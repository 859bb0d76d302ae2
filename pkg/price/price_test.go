package price

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeSlots(start time.Time, prices ...float64) []*Slot {
	slots := make([]*Slot, 0, len(prices))
	for i, p := range prices {
		slotStart := start.Add(time.Duration(i) * 30 * time.Minute)
		slots = append(slots, &Slot{
			Slot:      i,
			StartTime: slotStart,
			EndTime:   slotStart.Add(30*time.Minute - time.Second),
			Price:     p,
		})
	}
	return slots
}

func TestSortedViewIsPriceAscending(t *testing.T) {
	start := time.Date(2026, time.March, 10, 10, 0, 0, 0, time.Local)
	p := New(makeSlots(start, 12, 5, 30, 8), true)

	assert.Equal(t, 5.0, p.PricesSorted[0].Price)
	assert.Equal(t, 8.0, p.PricesSorted[1].Price)
	assert.Equal(t, 12.0, p.PricesSorted[2].Price)
	assert.Equal(t, 30.0, p.PricesSorted[3].Price)

	assert.Equal(t, 12.0, p.CurrentPrice())
	assert.Equal(t, 30.0, p.WorstPrice())
}

func TestViewsShareSlots(t *testing.T) {
	start := time.Date(2026, time.March, 10, 10, 0, 0, 0, time.Local)
	p := New(makeSlots(start, 12, 5, 30, 8), true)

	// Flag the cheapest slot via the sorted view, observe it in the
	// chronological one and vice versa.
	Mark(p.PricesSorted[0], true)
	assert.True(t, IsSelected(p.Prices[1]))

	Mark(p.Prices[1], false)
	assert.False(t, IsSelected(p.PricesSorted[0]))

	// Unconsidered slots are neither selected nor deselected.
	assert.Nil(t, p.Prices[2].Selected)
}

func TestGenerateMockRestOfDay(t *testing.T) {
	now := time.Date(2026, time.March, 10, 22, 40, 0, 0, time.Local)
	slots := GenerateMock(now, 15)

	// 22:30 and 23:00 and 23:30 remain today.
	require.Len(t, slots, 3)
	assert.Equal(t, 0, slots[0].Slot)
	assert.Equal(t, time.Date(2026, time.March, 10, 22, 30, 1, 0, time.Local), slots[0].StartTime)
	for _, s := range slots {
		assert.Equal(t, 15.0, s.Price)
		assert.Equal(t, s.StartTime.Add(30*time.Minute-time.Second), s.EndTime)
		assert.Equal(t, now.Day(), s.StartTime.Day())
	}
}

func TestGenerateMockFullDayIsCapped(t *testing.T) {
	now := time.Date(2026, time.March, 10, 0, 5, 0, 0, time.Local)
	slots := GenerateMock(now, 15)
	assert.Len(t, slots, 48)
}
