package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	dayLayout  = "2006-01-02"
	timeLayout = "15:04"
)

// Day is a calendar date in YYYY-MM-DD form. Stored and compared as text so
// a room key never depends on time zones.
type Day string

func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return "", fmt.Errorf("parse day %q: %w", s, err)
	}
	return Day(t.Format(dayLayout)), nil
}

// Time returns the midnight UTC instant of the day.
func (d Day) Time() time.Time {
	t, _ := time.Parse(dayLayout, string(d))
	return t
}

func (d Day) AddDays(n int) Day {
	return Day(d.Time().AddDate(0, 0, n).Format(dayLayout))
}

func (d Day) String() string { return string(d) }

// ClockTime is a wall-clock slot start in HH:MM form.
type ClockTime string

func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return "", fmt.Errorf("parse time %q: %w", s, err)
	}
	return ClockTime(t.Format(timeLayout)), nil
}

func ClockTimeFromMinutes(m int) ClockTime {
	return ClockTime(fmt.Sprintf("%02d:%02d", m/60, m%60))
}

// Minutes returns the offset from midnight. A ClockTime built by one of the
// constructors always parses.
func (c ClockTime) Minutes() int {
	t, _ := time.Parse(timeLayout, string(c))
	return t.Hour()*60 + t.Minute()
}

func (c ClockTime) String() string { return string(c) }

// SlotKey identifies one bookable slot: one vet, one day, one start time.
type SlotKey struct {
	VetID uuid.UUID
	Day   Day
	Start ClockTime
}

func (k SlotKey) String() string {
	return k.VetID.String() + "|" + string(k.Day) + "|" + string(k.Start)
}
