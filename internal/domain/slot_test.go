package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestParseDay(t *testing.T) {
	d, err := ParseDay("2025-06-01")
	if err != nil {
		t.Fatalf("ParseDay error: %v", err)
	}
	if d != "2025-06-01" {
		t.Fatalf("day = %s", d)
	}

	for _, bad := range []string{"", "01-06-2025", "2025/06/01", "2025-13-01", "yesterday"} {
		if _, err := ParseDay(bad); err == nil {
			t.Fatalf("ParseDay(%q) accepted", bad)
		}
	}
}

func TestDayAddDays(t *testing.T) {
	d, _ := ParseDay("2025-06-30")
	if got := d.AddDays(1); got != "2025-07-01" {
		t.Fatalf("AddDays(1) = %s, want month rollover", got)
	}
	if got := d.AddDays(-30); got != "2025-05-31" {
		t.Fatalf("AddDays(-30) = %s", got)
	}
}

func TestParseClockTime(t *testing.T) {
	ct, err := ParseClockTime("09:30")
	if err != nil {
		t.Fatalf("ParseClockTime error: %v", err)
	}
	if ct.Minutes() != 9*60+30 {
		t.Fatalf("Minutes = %d", ct.Minutes())
	}

	for _, bad := range []string{"", "9:30am", "25:00", "09:60", "0930"} {
		if _, err := ParseClockTime(bad); err == nil {
			t.Fatalf("ParseClockTime(%q) accepted", bad)
		}
	}
}

func TestClockTimeFromMinutes(t *testing.T) {
	if got := ClockTimeFromMinutes(0); got != "00:00" {
		t.Fatalf("got %s", got)
	}
	if got := ClockTimeFromMinutes(9*60 + 5); got != "09:05" {
		t.Fatalf("got %s", got)
	}
}

func TestSlotKeyString(t *testing.T) {
	id := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	key := SlotKey{VetID: id, Day: "2025-06-01", Start: "10:00"}
	want := id.String() + "|2025-06-01|10:00"
	if key.String() != want {
		t.Fatalf("String = %s, want %s", key.String(), want)
	}
}
