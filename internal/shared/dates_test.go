package shared

import (
	"testing"
	"time"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func TestParseDate(t *testing.T) {
	d := mustDate(t, "2026-02-28")
	if d.Hour() != 0 || d.Location() != time.UTC {
		t.Fatalf("parsed date not UTC midnight: %v", d)
	}
	if _, err := ParseDate("28/02/2026"); err == nil {
		t.Fatalf("expected error for non-ISO input")
	}
}

func TestDayTruncates(t *testing.T) {
	in := time.Date(2026, 3, 15, 22, 45, 9, 12, time.FixedZone("x", 3600))
	got := Day(in)
	want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Day = %v, want %v", got, want)
	}
}

func TestMonthBounds(t *testing.T) {
	d := mustDate(t, "2026-02-17")
	if got := MonthStart(d); !got.Equal(mustDate(t, "2026-02-01")) {
		t.Fatalf("MonthStart = %v", got)
	}
	if got := MonthEnd(d); !got.Equal(mustDate(t, "2026-02-28")) {
		t.Fatalf("MonthEnd = %v", got)
	}
	// Leap year.
	if got := MonthEnd(mustDate(t, "2028-02-10")); !got.Equal(mustDate(t, "2028-02-29")) {
		t.Fatalf("leap MonthEnd = %v", got)
	}
}

func TestEachDayAndDaysBetween(t *testing.T) {
	start, end := mustDate(t, "2026-03-30"), mustDate(t, "2026-04-02")
	var seen []string
	EachDay(start, end, func(d time.Time) {
		seen = append(seen, d.Format(DateLayout))
	})
	want := []string{"2026-03-30", "2026-03-31", "2026-04-01", "2026-04-02"}
	if len(seen) != len(want) {
		t.Fatalf("EachDay visited %d days, want %d", len(seen), len(want))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("day %d = %s, want %s", i, seen[i], want[i])
		}
	}
	if got := DaysBetween(start, end); got != 4 {
		t.Fatalf("DaysBetween = %d, want 4", got)
	}
	if got := DaysBetween(end, start); got != 0 {
		t.Fatalf("reversed DaysBetween = %d, want 0", got)
	}
}
