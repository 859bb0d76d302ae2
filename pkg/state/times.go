package state

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "2006-01-02 15:04:05"
)

// Date is a calendar day serialized as YYYY-MM-DD in local time.
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, t.Location())}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.ParseInLocation(dateLayout, s, time.Local)
	if err != nil {
		return fmt.Errorf("error parsing date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// SameDay reports whether t falls on this calendar day.
func (d Date) SameDay(t time.Time) bool {
	y1, m1, d1 := d.Date()
	y2, m2, d2 := t.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Timestamp is a wall-clock instant serialized as
// "YYYY-MM-DD HH:MM:SS" in local time.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{t.Truncate(time.Second)}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format(timeLayout))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.ParseInLocation(timeLayout, s, time.Local)
	if err != nil {
		return fmt.Errorf("error parsing timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}
