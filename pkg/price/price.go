package price

import (
	"sort"
	"time"
)

// Slot is one 30-minute price-forecast interval for the remainder of
// today. Selected is nil until the planner has considered the slot.
type Slot struct {
	Slot      int       `json:"Slot"`
	StartTime time.Time `json:"StartTime"`
	EndTime   time.Time `json:"EndTime"`
	Price     float64   `json:"Price"`
	Selected  *bool     `json:"Selected"`
}

// PriceData holds the slots for the remainder of today in two views that
// stay in lockstep: chronological order and price-ascending order. Both
// views share the same Slot values, so a Selected flag set through either
// view is seen by the other.
type PriceData struct {
	Prices       []*Slot
	PricesSorted []*Slot

	live bool
}

func New(slots []*Slot, live bool) *PriceData {
	sorted := make([]*Slot, len(slots))
	copy(sorted, slots)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Price < sorted[j].Price
	})
	return &PriceData{
		Prices:       slots,
		PricesSorted: sorted,
		live:         live,
	}
}

// Live reports whether the slots carry real forecast prices rather than
// synthetic fallback ones.
func (p *PriceData) Live() bool {
	return p.live
}

// CurrentPrice is the price of the slot covering now.
func (p *PriceData) CurrentPrice() float64 {
	if len(p.Prices) == 0 {
		return 0
	}
	return p.Prices[0].Price
}

// WorstPrice is the most expensive remaining price today.
func (p *PriceData) WorstPrice() float64 {
	if len(p.PricesSorted) == 0 {
		return 0
	}
	return p.PricesSorted[len(p.PricesSorted)-1].Price
}

// Mark sets the slot's Selected flag.
func Mark(s *Slot, selected bool) {
	s.Selected = &selected
}

// IsSelected reports whether the slot has been chosen by the planner.
func IsSelected(s *Slot) bool {
	return s.Selected != nil && *s.Selected
}
