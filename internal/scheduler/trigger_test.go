package scheduler

import (
	"testing"
	"time"
)

func TestDateTrigger(t *testing.T) {
	when := time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)
	trig := &DateTrigger{When: when}

	if got := trig.Next(when.Add(-time.Hour)); !got.Equal(when) {
		t.Errorf("Next before the instant = %v, want %v", got, when)
	}
	if got := trig.Next(when); !got.IsZero() {
		t.Errorf("Next at the instant = %v, want zero (strictly after)", got)
	}
	if got := trig.Next(when.Add(time.Hour)); !got.IsZero() {
		t.Errorf("Next past the instant = %v, want zero", got)
	}
}

func TestCronTrigger_Daily(t *testing.T) {
	trig := &CronTrigger{Hour: 8, Minute: 30, tz: time.UTC}

	// Before today's occurrence
	after := time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC)
	want := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)
	if got := trig.Next(after); !got.Equal(want) {
		t.Errorf("Next = %v, want %v", got, want)
	}

	// Exactly at the occurrence: strictly-after means tomorrow
	want = time.Date(2024, 6, 2, 8, 30, 0, 0, time.UTC)
	if got := trig.Next(time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)); !got.Equal(want) {
		t.Errorf("Next at occurrence = %v, want %v", got, want)
	}
}

func TestCronTrigger_Weekdays(t *testing.T) {
	trig := &CronTrigger{Hour: 7, Minute: 0, Days: weekdayFilter, tz: time.UTC}

	// 2024-06-01 is a Saturday; next weekday occurrence is Monday the 3rd
	after := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	want := time.Date(2024, 6, 3, 7, 0, 0, 0, time.UTC)
	if got := trig.Next(after); !got.Equal(want) {
		t.Errorf("Next = %v (%s), want %v", got, got.Weekday(), want)
	}
}

func TestCronTrigger_Weekends(t *testing.T) {
	trig := &CronTrigger{Hour: 10, Minute: 0, Days: weekendFilter, tz: time.UTC}

	// Monday 2024-06-03: next weekend slot is Saturday the 8th
	after := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	want := time.Date(2024, 6, 8, 10, 0, 0, 0, time.UTC)
	if got := trig.Next(after); !got.Equal(want) {
		t.Errorf("Next = %v (%s), want %v", got, got.Weekday(), want)
	}
}

func TestBuildTrigger_Recurrences(t *testing.T) {
	now := time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC) // a Wednesday

	tests := []struct {
		recurrence string
		wantDays   int // expected number of allowed weekdays, 0 = every day
	}{
		{"daily", 0},
		{"everyday", 0},
		{"Daily", 0},
		{"weekdays", 5},
		{"weekends", 2},
		{"weekly", 1},
	}

	for _, tt := range tests {
		trig := BuildTrigger(9, 0, "", tt.recurrence, now, time.UTC)
		cron, ok := trig.(*CronTrigger)
		if !ok {
			t.Errorf("BuildTrigger(%q) = %T, want *CronTrigger", tt.recurrence, trig)
			continue
		}
		if len(cron.Days) != tt.wantDays {
			t.Errorf("BuildTrigger(%q) allows %d days, want %d", tt.recurrence, len(cron.Days), tt.wantDays)
		}
	}
}

func TestBuildTrigger_WeeklyUsesCurrentWeekday(t *testing.T) {
	now := time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC) // Wednesday
	trig := BuildTrigger(9, 0, "", "weekly", now, time.UTC)

	cron, ok := trig.(*CronTrigger)
	if !ok {
		t.Fatalf("weekly trigger = %T, want *CronTrigger", trig)
	}
	if len(cron.Days) != 1 || cron.Days[0] != time.Wednesday {
		t.Errorf("weekly days = %v, want [Wednesday]", cron.Days)
	}

	next := trig.Next(now)
	if next.Weekday() != time.Wednesday {
		t.Errorf("next weekly run on %s, want Wednesday", next.Weekday())
	}
}

func TestBuildTrigger_OneShotRollover(t *testing.T) {
	now := time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC)

	// Time already past today: rolls to tomorrow
	trig := BuildTrigger(9, 0, "", "", now, time.UTC)
	want := time.Date(2024, 6, 6, 9, 0, 0, 0, time.UTC)
	if got := trig.Next(now); !got.Equal(want) {
		t.Errorf("past time rolled to %v, want %v", got, want)
	}

	// Time still ahead today: stays today
	trig = BuildTrigger(18, 0, "today", "", now, time.UTC)
	want = time.Date(2024, 6, 5, 18, 0, 0, 0, time.UTC)
	if got := trig.Next(now); !got.Equal(want) {
		t.Errorf("future time = %v, want %v", got, want)
	}
}

func TestBuildTrigger_Tomorrow(t *testing.T) {
	now := time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC)

	trig := BuildTrigger(9, 0, "tomorrow", "", now, time.UTC)
	want := time.Date(2024, 6, 6, 9, 0, 0, 0, time.UTC)
	if got := trig.Next(now); !got.Equal(want) {
		t.Errorf("tomorrow = %v, want %v", got, want)
	}
}

func TestBuildTrigger_ExplicitDateTakenLiterally(t *testing.T) {
	now := time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC)

	// A future explicit date
	trig := BuildTrigger(9, 0, "2024-07-01", "", now, time.UTC)
	want := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
	if got := trig.Next(now); !got.Equal(want) {
		t.Errorf("explicit date = %v, want %v", got, want)
	}

	// An explicit past date never rolls forward: the trigger simply never fires
	trig = BuildTrigger(9, 0, "2024-01-01", "", now, time.UTC)
	if got := trig.Next(now); !got.IsZero() {
		t.Errorf("explicit past date fires at %v, want never", got)
	}
}

func TestBuildTrigger_UnparseableDateActsLikeToday(t *testing.T) {
	now := time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC)

	trig := BuildTrigger(9, 0, "next thursday", "", now, time.UTC)
	want := time.Date(2024, 6, 6, 9, 0, 0, 0, time.UTC) // 09:00 passed, rolls over
	if got := trig.Next(now); !got.Equal(want) {
		t.Errorf("unparseable date = %v, want %v", got, want)
	}
}
