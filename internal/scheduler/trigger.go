package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Trigger computes the firing times of a job
type Trigger interface {
	// Next returns the first firing time strictly after the given time,
	// or the zero time if the trigger will never fire again
	Next(after time.Time) time.Time

	// Describe returns a short human-readable form for listings
	Describe() string
}

// DateTrigger fires exactly once at a fixed instant
type DateTrigger struct {
	When time.Time
}

// Next returns the trigger instant if still in the future
func (t *DateTrigger) Next(after time.Time) time.Time {
	if t.When.After(after) {
		return t.When
	}
	return time.Time{}
}

// Describe returns the trigger in date form
func (t *DateTrigger) Describe() string {
	return fmt.Sprintf("date[%s]", t.When.Format("2006-01-02 15:04"))
}

// CronTrigger fires daily at a fixed hour and minute, optionally limited to
// a set of weekdays.
type CronTrigger struct {
	Hour   int
	Minute int
	Days   []time.Weekday // empty means every day
	tz     *time.Location
}

// Next returns the next allowed occurrence after the given time
func (t *CronTrigger) Next(after time.Time) time.Time {
	local := after.In(t.tz)

	for i := 0; i <= 7; i++ {
		day := local.AddDate(0, 0, i)
		candidate := time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, 0, 0, t.tz)
		if !candidate.After(after) {
			continue
		}
		if t.dayAllowed(candidate.Weekday()) {
			return candidate
		}
	}
	return time.Time{}
}

func (t *CronTrigger) dayAllowed(d time.Weekday) bool {
	if len(t.Days) == 0 {
		return true
	}
	for _, allowed := range t.Days {
		if allowed == d {
			return true
		}
	}
	return false
}

// Describe returns the trigger in cron form
func (t *CronTrigger) Describe() string {
	if len(t.Days) == 0 {
		return fmt.Sprintf("cron[%02d:%02d daily]", t.Hour, t.Minute)
	}

	days := make([]string, 0, len(t.Days))
	sorted := append([]time.Weekday(nil), t.Days...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, d := range sorted {
		days = append(days, strings.ToLower(d.String()[:3]))
	}
	return fmt.Sprintf("cron[%02d:%02d %s]", t.Hour, t.Minute, strings.Join(days, ","))
}

var (
	weekdayFilter = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	weekendFilter = []time.Weekday{time.Saturday, time.Sunday}
)

// BuildTrigger translates a resolved (hour, minute) plus date and
// recurrence specs into a concrete trigger.
//
// One-shot times already in the past roll forward to the next day, but only
// when the date spec is empty or "today"; an explicit date is taken
// literally even if in the past (the resulting trigger never fires, which
// signals a caller error instead of silently correcting it).
func BuildTrigger(hour, minute int, dateSpec, recurrence string, now time.Time, tz *time.Location) Trigger {
	switch strings.ToLower(strings.TrimSpace(recurrence)) {
	case "daily", "everyday":
		return &CronTrigger{Hour: hour, Minute: minute, tz: tz}
	case "weekdays":
		return &CronTrigger{Hour: hour, Minute: minute, Days: weekdayFilter, tz: tz}
	case "weekends":
		return &CronTrigger{Hour: hour, Minute: minute, Days: weekendFilter, tz: tz}
	case "weekly":
		// Recurs on the current weekday
		return &CronTrigger{Hour: hour, Minute: minute, Days: []time.Weekday{now.In(tz).Weekday()}, tz: tz}
	}

	return &DateTrigger{When: resolveDate(hour, minute, dateSpec, now, tz)}
}

func resolveDate(hour, minute int, dateSpec string, now time.Time, tz *time.Location) time.Time {
	local := now.In(tz)
	spec := strings.ToLower(strings.TrimSpace(dateSpec))

	var target time.Time
	rollover := false

	switch spec {
	case "", "today":
		target = time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, tz)
		rollover = true
	case "tomorrow":
		next := local.AddDate(0, 0, 1)
		target = time.Date(next.Year(), next.Month(), next.Day(), hour, minute, 0, 0, tz)
	default:
		parsed, err := time.ParseInLocation("2006-01-02", spec, tz)
		if err != nil {
			// Unparseable dates behave like "today"
			target = time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, tz)
			rollover = true
		} else {
			target = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), hour, minute, 0, 0, tz)
		}
	}

	if rollover && !target.After(now) {
		target = target.AddDate(0, 0, 1)
	}

	return target
}
